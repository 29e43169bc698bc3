package metrics

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"ShiftMetrics/internal/metrics/catalog"
	"ShiftMetrics/internal/models/domain"
)

// Registry is the immutable catalogue of KPI definitions. It is built once
// at process start from the embedded catalog and shared read-only across
// requests; concurrent use needs no locking.
type Registry struct {
	defs         map[string]*Definition
	names        []string
	plannedLeave map[string]struct{}
}

// NewRegistry parses the embedded KPI catalog, binds formulas and validates
// every definition. It performs the following operations:
//
//  1. Unmarshals the embedded YAML catalog.
//  2. Attaches the per-record ratio formula of each ratio metric.
//  3. Checks fallback chains: known derivations, positive rolling windows,
//     and non-decreasing fallback levels along each chain.
//  4. Checks composite metrics reference existing ratio components.
//
// Returns an error if the catalog is malformed; a process must not start
// with a partially valid registry.
func NewRegistry() (*Registry, error) {
	op := "metrics.NewRegistry"

	var file catalogFile
	if err := yaml.Unmarshal(catalog.KPICatalog, &file); err != nil {
		return nil, fmt.Errorf("%s: unmarshal embedded catalog: %w", op, err)
	}

	plannedLeave := make(map[string]struct{}, len(file.PlannedLeaveTypes))
	for _, lt := range file.PlannedLeaveTypes {
		plannedLeave[lt] = struct{}{}
	}
	ratioFuncs := newRatioFuncs(plannedLeave)

	r := &Registry{
		defs:         make(map[string]*Definition, len(file.Metrics)),
		plannedLeave: plannedLeave,
	}

	for i := range file.Metrics {
		def := &file.Metrics[i]
		if _, dup := r.defs[def.Name]; dup {
			return nil, fmt.Errorf("%s: duplicate metric %q", op, def.Name)
		}
		if err := validateDefinition(def); err != nil {
			return nil, fmt.Errorf("%s: metric %q: %w", op, def.Name, err)
		}
		if def.Kind == KindRatio {
			fn, ok := ratioFuncs[def.Name]
			if !ok {
				return nil, fmt.Errorf("%s: metric %q has no formula", op, def.Name)
			}
			def.ratio = fn
		}
		r.defs[def.Name] = def
		r.names = append(r.names, def.Name)
	}

	for _, def := range r.defs {
		for _, comp := range def.Components {
			cd, ok := r.defs[comp]
			if !ok {
				return nil, fmt.Errorf("%s: metric %q references unknown component %q", op, def.Name, comp)
			}
			if cd.Kind != KindRatio {
				return nil, fmt.Errorf("%s: metric %q component %q is not a ratio metric", op, def.Name, comp)
			}
		}
	}

	sort.Strings(r.names)
	return r, nil
}

func validateDefinition(def *Definition) error {
	switch def.Kind {
	case KindRatio:
		if len(def.Required) == 0 {
			return fmt.Errorf("ratio metric has no required fields")
		}
	case KindRTY, KindOEE:
		if len(def.Components) == 0 {
			return fmt.Errorf("composite metric has no components")
		}
	default:
		return fmt.Errorf("unknown kind %q", def.Kind)
	}
	if def.Scale <= 0 {
		return fmt.Errorf("scale must be positive")
	}
	if def.Direction != domain.HigherIsBetter && def.Direction != domain.LowerIsBetter {
		return fmt.Errorf("unknown direction %q", def.Direction)
	}

	for _, spec := range def.Required {
		prevLevel := 0
		for _, rule := range spec.Fallbacks {
			level := rule.Kind.Level()
			if level < 0 {
				return fmt.Errorf("field %q: unknown fallback kind %q", spec.Field, rule.Kind)
			}
			// Confidence is non-increasing along the chain because levels
			// never go backwards.
			if level < prevLevel {
				return fmt.Errorf("field %q: fallback chain levels must be non-decreasing", spec.Field)
			}
			prevLevel = level
			switch rule.Kind {
			case RuleDerived:
				if _, ok := Derivation(rule.Derivation); !ok {
					return fmt.Errorf("field %q: unknown derivation %q", spec.Field, rule.Derivation)
				}
			case RuleRollingAverage:
				if rule.WindowDays <= 0 {
					return fmt.Errorf("field %q: rolling average window must be positive", spec.Field)
				}
			}
		}
	}
	return nil
}

// Get returns the definition of a metric.
func (r *Registry) Get(name string) (*Definition, error) {
	def, ok := r.defs[name]
	if !ok {
		return nil, &domain.UnknownMetricError{Metric: name}
	}
	return def, nil
}

// Names returns every registered metric name, sorted.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// PlannedLeaveTypes reports whether a leave type is planned leave.
func (r *Registry) PlannedLeave(leaveType string) bool {
	_, ok := r.plannedLeave[leaveType]
	return ok
}
