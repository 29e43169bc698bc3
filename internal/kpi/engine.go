package kpi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"ShiftMetrics/internal/access"
	"ShiftMetrics/internal/aggregate"
	"ShiftMetrics/internal/inference"
	"ShiftMetrics/internal/metrics"
	"ShiftMetrics/internal/models/domain"
	"ShiftMetrics/internal/utils/logger/sl"
)

// clientColumn is the record store column the scope predicate filters on.
const clientColumn = "client_id"

// RecordRepository is the fetch collaborator. The engine never issues raw
// queries itself, only predicates built from the caller's scope.
type RecordRepository interface {
	Fetch(ctx context.Context, pred *access.Predicate, filter domain.RecordFilter, window domain.Window) ([]domain.RawRecord, error)
	GetRecordByID(ctx context.Context, id uuid.UUID) (*domain.RawRecord, error)
}

// Engine orchestrates one metric computation: resolve scope, narrow the
// fetch, infer missing inputs, evaluate the formula per record, aggregate.
// It is a pure read-only pipeline; concurrent calls share nothing mutable
// beyond the registry and the resolver's memo cache.
type Engine struct {
	registry *metrics.Registry
	repo     RecordRepository
	resolver *inference.Resolver
	workers  int
	log      *slog.Logger
}

// New creates the engine. workers bounds dashboard fan-out concurrency.
func New(logger *slog.Logger, registry *metrics.Registry, repo RecordRepository, resolver *inference.Resolver, workers int) *Engine {
	if workers < 1 {
		workers = 1
	}
	return &Engine{
		registry: registry,
		repo:     repo,
		resolver: resolver,
		workers:  workers,
		log:      logger.With(slog.String("component", "kpi")),
	}
}

// Compute evaluates one metric for the caller over the window.
//
// ConfigurationError, AccessDeniedError and UnknownMetricError propagate
// immediately with no partial result. Per-record inference failures never
// abort the computation; they degrade that record's contribution only.
func (e *Engine) Compute(ctx context.Context, caller *domain.CallerContext, metricName string, filter domain.RecordFilter, window domain.Window, groupBy []domain.Dimension) (*domain.MetricResult, error) {
	op := "kpi.Engine.Compute"

	def, err := e.registry.Get(metricName)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	scope, err := access.ResolveScope(caller)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	pred := access.BuildFilter(scope, clientColumn)

	// Caller-supplied client filters AND-compose with the scope predicate in
	// the repository; they can narrow the scope but never widen it.
	records, err := e.repo.Fetch(ctx, pred, filter, window)
	if err != nil {
		return nil, fmt.Errorf("%s: fetch: %w", op, err)
	}

	switch def.Kind {
	case metrics.KindRatio:
		values, err := e.evaluate(ctx, def, records)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if def.PerStage {
			groupBy = withStage(groupBy)
		}
		return aggregate.Aggregate(def, values, groupBy, window), nil

	case metrics.KindRTY:
		stage, err := e.registry.Get(def.Components[0])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		values, err := e.evaluate(ctx, stage, records)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return aggregate.AggregateRTY(def, values, groupBy, window), nil

	case metrics.KindOEE:
		componentValues := make(map[string][]aggregate.RecordValue, len(def.Components))
		for _, name := range def.Components {
			comp, err := e.registry.Get(name)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
			values, err := e.evaluate(ctx, comp, records)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
			componentValues[name] = values
		}
		return aggregate.AggregateComposite(def, def.Components, componentValues, groupBy, window), nil
	}

	return nil, fmt.Errorf("%s: metric %q has unsupported kind %q", op, def.Name, def.Kind)
}

// Record fetches a single record and verifies the caller's scope against
// its client before anything is returned.
func (e *Engine) Record(ctx context.Context, caller *domain.CallerContext, id uuid.UUID) (*domain.RawRecord, error) {
	op := "kpi.Engine.Record"

	scope, err := access.ResolveScope(caller)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rec, err := e.repo.GetRecordByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := access.Verify(scope, rec.ClientID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rec, nil
}

// evaluate resolves every required field of the definition for each record
// and applies the metric formula. Records with an unfillable field are
// excluded, never guessed; an inference I/O failure degrades the record the
// same way unless the context itself is done.
func (e *Engine) evaluate(ctx context.Context, def *metrics.Definition, records []domain.RawRecord) ([]aggregate.RecordValue, error) {
	values := make([]aggregate.RecordValue, 0, len(records))
	for _, rec := range records {
		inputs, missing, err := e.resolver.ResolveAll(ctx, rec, def)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			e.log.Warn("record inference failed, excluding record",
				slog.String("metric", def.Name),
				slog.String("recordID", rec.ID.String()),
				sl.Err(err))
			values = append(values, aggregate.ExcludedRecord(rec, missing))
			continue
		}
		if missing != "" {
			values = append(values, aggregate.ExcludedRecord(rec, missing))
			continue
		}

		in := make(metrics.Inputs, len(inputs))
		for _, ri := range inputs {
			in[ri.Field] = ri.Value
		}
		num, den := def.Evaluate(rec, in)
		values = append(values, aggregate.FromRecord(rec, num, den, inputs))
	}
	return values, nil
}

func withStage(groupBy []domain.Dimension) []domain.Dimension {
	for _, dim := range groupBy {
		if dim == domain.DimStage {
			return groupBy
		}
	}
	out := make([]domain.Dimension, 0, len(groupBy)+1)
	out = append(out, groupBy...)
	return append(out, domain.DimStage)
}
