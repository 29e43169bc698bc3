package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"ShiftMetrics/internal/config"
	"ShiftMetrics/internal/graceful"
	"ShiftMetrics/internal/inference"
	"ShiftMetrics/internal/kpi"
	"ShiftMetrics/internal/metrics"
	"ShiftMetrics/internal/models/domain"
	"ShiftMetrics/internal/repositories"
	"ShiftMetrics/internal/utils/logger/handlers/slogpretty"
	"ShiftMetrics/internal/utils/logger/sl"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

var Version = "0.1"

func main() {
	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info(
		"starting shift metrics engine",
		slog.String("env", cfg.Env),
		slog.String("version", Version),
	)

	registry, err := metrics.NewRegistry()
	if err != nil {
		log.Error("error building metric registry", sl.Err(err))
		os.Exit(1)
	}

	repositoryService := repositories.New(log, cfg)
	resolver := inference.NewResolver(log, repositoryService,
		cfg.Engine.RollingCacheSize, cfg.Engine.RollingCacheTTL)
	engine := kpi.New(log, registry, repositoryService, resolver,
		cfg.Engine.DashboardWorkers)

	maxSecond := 15 * time.Second
	waitShutdown := graceful.GracefulShutdown(
		context.Background(),
		maxSecond,
		map[string]graceful.Operation{
			"Repository service": func(ctx context.Context) error {
				return repositoryService.Shutdown(ctx)
			},
		},
		log,
	)

	go runReport(context.Background(), log, cfg, engine)

	<-waitShutdown
}

// runReport computes the configured dashboard once and logs the outcome.
func runReport(ctx context.Context, log *slog.Logger, cfg *config.Config, engine *kpi.Engine) {
	op := "main.runReport"
	log = log.With(slog.String("op", op))

	role, err := domain.ParseRole(cfg.Report.Role)
	if err != nil {
		log.Error("invalid report role", sl.Err(err))
		return
	}
	caller, err := domain.NewCallerContext(role, cfg.Report.AssignedClients)
	if err != nil {
		log.Error("invalid report caller", sl.Err(err))
		return
	}

	now := time.Now().UTC()
	window := domain.Window{
		From:        now.AddDate(0, 0, -cfg.Report.WindowDays),
		To:          now,
		Granularity: domain.Granularity(cfg.Report.Granularity),
	}
	groupBy := make([]domain.Dimension, 0, len(cfg.Report.GroupBy))
	for _, dim := range cfg.Report.GroupBy {
		groupBy = append(groupBy, domain.Dimension(dim))
	}

	dashboard, err := engine.ComputeDashboard(ctx, caller, domain.RecordFilter{}, window, groupBy)
	if err != nil {
		log.Error("dashboard computation failed", sl.Err(err))
		return
	}

	for name, result := range dashboard.Results {
		log.Info("metric computed",
			slog.String("metric", name),
			slog.Float64("value", result.Value),
			slog.String("unit", result.Unit),
			slog.Float64("confidence", result.Confidence),
			slog.Bool("noDenominator", result.NoDenominator),
			slog.Int("buckets", len(result.Buckets)),
			slog.Int("insufficientData", result.InsufficientDataCount),
		)
	}
	for name, metricErr := range dashboard.Errors {
		log.Warn("metric failed",
			slog.String("metric", name),
			sl.Err(metricErr))
	}
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlog(slog.LevelDebug)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}

func setupPrettySlog(level slog.Level) *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: level,
		},
	}
	handler := opts.NewPrettyHandler(os.Stdout)
	return slog.New(handler)
}
