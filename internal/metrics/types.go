package metrics

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"ShiftMetrics/internal/models/domain"
)

// Kind classifies how a metric is evaluated.
type Kind string

const (
	// KindRatio metrics produce a per-record numerator/denominator pair and
	// aggregate as sum-of-numerators over sum-of-denominators.
	KindRatio Kind = "ratio"
	// KindRTY multiplies the aggregated yield of each pipeline stage in
	// fixed stage order.
	KindRTY Kind = "rty"
	// KindOEE multiplies the aggregated fractions of its component metrics.
	KindOEE Kind = "oee"
)

// RuleKind identifies one fallback strategy. The numeric fallback level of a
// resolved input is fixed by the rule kind, not by chain position.
type RuleKind string

const (
	RuleAlternate      RuleKind = "alternate"
	RuleDerived        RuleKind = "derived"
	RuleRollingAverage RuleKind = "rollingAverage"
	RuleDefault        RuleKind = "default"
)

// Level returns the fallback level a rule kind resolves at.
func (k RuleKind) Level() int {
	switch k {
	case RuleAlternate:
		return 1
	case RuleDerived:
		return 2
	case RuleRollingAverage:
		return 3
	case RuleDefault:
		return 4
	}
	return -1
}

// FallbackRule is one strategy in a field's fallback chain.
type FallbackRule struct {
	Kind       RuleKind
	Alternate  domain.Field // RuleAlternate
	Derivation string       // RuleDerived: name of a registered derivation
	WindowDays int          // RuleRollingAverage
	Default    float64      // RuleDefault
}

// UnmarshalYAML decodes the single-key catalog form, e.g.
// `- alternate: plannedCycleTime` or `- rollingAverage: 30`.
func (r *FallbackRule) UnmarshalYAML(value *yaml.Node) error {
	var m map[string]yaml.Node
	if err := value.Decode(&m); err != nil {
		return err
	}
	if len(m) != 1 {
		return fmt.Errorf("fallback rule must have exactly one key, got %d", len(m))
	}
	for key, node := range m {
		switch RuleKind(key) {
		case RuleAlternate:
			var f string
			if err := node.Decode(&f); err != nil {
				return err
			}
			*r = FallbackRule{Kind: RuleAlternate, Alternate: domain.Field(f)}
		case RuleDerived:
			var name string
			if err := node.Decode(&name); err != nil {
				return err
			}
			*r = FallbackRule{Kind: RuleDerived, Derivation: name}
		case RuleRollingAverage:
			var days int
			if err := node.Decode(&days); err != nil {
				return err
			}
			*r = FallbackRule{Kind: RuleRollingAverage, WindowDays: days}
		case RuleDefault:
			var v float64
			if err := node.Decode(&v); err != nil {
				return err
			}
			*r = FallbackRule{Kind: RuleDefault, Default: v}
		default:
			return fmt.Errorf("unknown fallback rule kind %q", key)
		}
	}
	return nil
}

// FieldSpec declares one required input field and its ordered fallback chain.
type FieldSpec struct {
	Field     domain.Field   `yaml:"field"`
	Fallbacks []FallbackRule `yaml:"fallbacks"`
}

// Definition is one KPI entry of the catalog. Definitions are built once at
// startup and shared read-only across requests.
type Definition struct {
	Name       string           `yaml:"name"`
	Title      string           `yaml:"title"`
	Kind       Kind             `yaml:"kind"`
	Unit       string           `yaml:"unit"`
	Scale      float64          `yaml:"scale"`
	Direction  domain.Direction `yaml:"direction"`
	Target     *float64         `yaml:"target"`
	PerStage   bool             `yaml:"perStage"`
	Components []string         `yaml:"components"`
	Required   []FieldSpec      `yaml:"requiredFields"`

	ratio RatioFunc `yaml:"-"`
}

// Evaluate applies the metric's pure formula to one record's resolved
// inputs, returning the unscaled numerator/denominator contribution.
func (d *Definition) Evaluate(rec domain.RawRecord, in Inputs) (num, den float64) {
	return d.ratio(rec, in)
}

// catalogFile mirrors the embedded YAML document.
type catalogFile struct {
	PlannedLeaveTypes []string     `yaml:"plannedLeaveTypes"`
	Metrics           []Definition `yaml:"metrics"`
}
