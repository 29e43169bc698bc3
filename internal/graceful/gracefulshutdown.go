package graceful

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

type Operation func(ctx context.Context) error

// GracefulShutdown waits for termination syscalls or context cancellation
// and runs the cleanup operations concurrently, each bounded by timeout.
func GracefulShutdown(ctx context.Context, timeout time.Duration, ops map[string]Operation, logger *slog.Logger) <-chan struct{} {
	op := "GracefulShutdown()"
	log := logger.With(
		slog.String("op", op))

	wait := make(chan struct{})
	go func() {
		s := make(chan os.Signal, 1)
		signal.Notify(s, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
		select {
		case <-s:
		case <-ctx.Done():
		}

		log.Info("shutting down")

		ctxTimeout, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		var wg sync.WaitGroup

		for key, op := range ops {
			key, op := key, op
			wg.Add(1)
			go func() {
				defer wg.Done()

				log.Info("cleaning up: ", slog.String("process", key))
				if err := op(ctxTimeout); err != nil {
					log.Error("error clean up", slog.String("process", key), slog.String("error", err.Error()))
					return
				}

				log.Info("shutdown gracefully", slog.String("process", key))
			}()
		}

		wg.Wait()
		log.Info("graceful shutdown completed")

		close(wait)
	}()

	return wait
}
