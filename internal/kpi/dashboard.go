package kpi

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"ShiftMetrics/internal/access"
	"ShiftMetrics/internal/models/domain"
	"ShiftMetrics/internal/utils/logger/sl"
)

// DashboardResult holds one result or one error per registered metric.
// A metric that failed never invalidates its siblings.
type DashboardResult struct {
	Results map[string]*domain.MetricResult
	Errors  map[string]error
}

// ComputeDashboard evaluates every registered metric for the caller with a
// bounded worker pool. Each Compute call is independent and idempotent, so
// per-metric failures are isolated and recorded in Errors.
//
// A caller with a broken setup fails the whole dashboard up front; partial
// dashboards are only ever the result of per-metric data problems.
func (e *Engine) ComputeDashboard(ctx context.Context, caller *domain.CallerContext, filter domain.RecordFilter, window domain.Window, groupBy []domain.Dimension) (*DashboardResult, error) {
	op := "kpi.Engine.ComputeDashboard"

	if _, err := access.ResolveScope(caller); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	res := &DashboardResult{
		Results: make(map[string]*domain.MetricResult),
		Errors:  make(map[string]error),
	}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(e.workers)
	for _, name := range e.registry.Names() {
		name := name
		g.Go(func() error {
			result, err := e.Compute(ctx, caller, name, filter, window, groupBy)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				e.log.Warn("dashboard metric failed",
					slog.String("metric", name),
					sl.Err(err))
				res.Errors[name] = err
				return nil
			}
			res.Results[name] = result
			return nil
		})
	}
	// Goroutines report failures through res.Errors, never through the group.
	_ = g.Wait()

	return res, nil
}
