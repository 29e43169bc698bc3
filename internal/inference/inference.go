// Package inference fills missing required inputs on shift records by
// walking each field's fallback chain in declared order. Every resolved
// value carries the fallback level it came from and a confidence score that
// never increases with the level.
package inference

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ShiftMetrics/internal/metrics"
	"ShiftMetrics/internal/models/domain"
	"ShiftMetrics/internal/utils/logger/sl"
)

// confidenceByLevel fixes the confidence of each fallback level. Monotonic
// non-increase with level is an invariant, not a tunable.
var confidenceByLevel = [5]float64{1.0, 0.85, 0.7, 0.5, 0.3}

// ConfidenceForLevel returns the confidence of a fallback level.
func ConfidenceForLevel(level int) float64 {
	return confidenceByLevel[level]
}

// HistoryProvider supplies trailing rolling averages for level-3 fallbacks.
// Implemented by the record repository.
type HistoryProvider interface {
	RollingAverage(ctx context.Context, client domain.ClientID, styleModel string,
		field domain.Field, windowDays int, asOf time.Time) (avg float64, samples int, err error)
}

// Resolver resolves required fields for records. Safe for concurrent use;
// the only state it keeps is the rolling-average memo cache.
type Resolver struct {
	history HistoryProvider
	cache   *rollingCache
	log     *slog.Logger
}

// NewResolver creates a resolver. cacheSize and ttl bound the rolling
// average memo cache; a zero cacheSize disables it.
func NewResolver(logger *slog.Logger, history HistoryProvider, cacheSize int, ttl time.Duration) *Resolver {
	r := &Resolver{
		history: history,
		log:     logger.With(slog.String("component", "inference")),
	}
	if cacheSize > 0 {
		r.cache = newRollingCache(cacheSize, ttl)
	}
	return r
}

// Resolve fills one required field for one record.
//
// The record's own value wins at level 0 with confidence 1.0. Otherwise the
// fallback chain is walked in declared order and the first usable rule
// yields the value. When every rule is exhausted the field is not guessed:
// the returned input has Source "none" and the record must be excluded from
// the metric and tallied as insufficient data.
//
// Deterministic: the same record and the same historical window produce the
// same ResolvedInput, so estimates are auditable.
func (r *Resolver) Resolve(ctx context.Context, rec domain.RawRecord, spec metrics.FieldSpec) (domain.ResolvedInput, error) {
	op := "inference.Resolver.Resolve"

	if v, ok := rec.Get(spec.Field); ok {
		return resolved(spec.Field, v, 0, domain.SourceExact), nil
	}

	for _, rule := range spec.Fallbacks {
		switch rule.Kind {
		case metrics.RuleAlternate:
			if v, ok := rec.Get(rule.Alternate); ok {
				return resolved(spec.Field, v, rule.Kind.Level(), domain.SourceAlternate), nil
			}

		case metrics.RuleDerived:
			fn, ok := metrics.Derivation(rule.Derivation)
			if !ok {
				// Unreachable with a validated registry.
				return domain.ResolvedInput{}, fmt.Errorf("%s: unknown derivation %q", op, rule.Derivation)
			}
			if v, ok := fn(rec); ok {
				return resolved(spec.Field, v, rule.Kind.Level(), domain.SourceDerived), nil
			}

		case metrics.RuleRollingAverage:
			avg, samples, err := r.rollingAverage(ctx, rec, spec.Field, rule.WindowDays)
			if err != nil {
				return domain.ResolvedInput{}, fmt.Errorf("%s: %w", op, err)
			}
			if samples >= 1 {
				return resolved(spec.Field, avg, rule.Kind.Level(), domain.SourceRollingAvg), nil
			}

		case metrics.RuleDefault:
			return resolved(spec.Field, rule.Default, rule.Kind.Level(), domain.SourceDefault), nil
		}
	}

	return domain.ResolvedInput{Field: spec.Field, Level: len(confidenceByLevel), Source: domain.SourceNone}, nil
}

// ResolveAll resolves every required field of a definition for one record.
// The second return value is the first field that could not be filled, if
// any; inputs are only usable when it is empty.
func (r *Resolver) ResolveAll(ctx context.Context, rec domain.RawRecord, def *metrics.Definition) ([]domain.ResolvedInput, domain.Field, error) {
	op := "inference.Resolver.ResolveAll"

	inputs := make([]domain.ResolvedInput, 0, len(def.Required))
	for _, spec := range def.Required {
		in, err := r.Resolve(ctx, rec, spec)
		if err != nil {
			return nil, "", fmt.Errorf("%s: %w", op, err)
		}
		if in.Incomplete() {
			return nil, spec.Field, nil
		}
		inputs = append(inputs, in)
	}
	return inputs, "", nil
}

func (r *Resolver) rollingAverage(ctx context.Context, rec domain.RawRecord, field domain.Field, windowDays int) (float64, int, error) {
	key := rollingKey{
		client:     rec.ClientID,
		styleModel: rec.StyleModel,
		field:      field,
		windowDays: windowDays,
	}
	if r.cache != nil {
		if entry, ok := r.cache.get(key); ok {
			return entry.avg, entry.samples, nil
		}
	}

	avg, samples, err := r.history.RollingAverage(ctx, rec.ClientID, rec.StyleModel, field, windowDays, rec.Timestamp)
	if err != nil {
		r.log.Warn("rolling average lookup failed",
			slog.String("client", string(rec.ClientID)),
			slog.String("field", string(field)),
			sl.Err(err))
		return 0, 0, err
	}

	if r.cache != nil {
		r.cache.add(key, rollingEntry{avg: avg, samples: samples})
	}
	return avg, samples, nil
}

func resolved(field domain.Field, value float64, level int, source domain.FallbackSource) domain.ResolvedInput {
	return domain.ResolvedInput{
		Field:      field,
		Value:      value,
		Level:      level,
		Source:     source,
		Confidence: confidenceByLevel[level],
	}
}
