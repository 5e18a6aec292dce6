package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/allisson/legalvault/internal/app"
)

// RunWorker starts the Audit Ledger's flush loop and the Verification
// Monitor's sweep scheduler and blocks until SIGINT/SIGTERM. There is no
// HTTP surface to serve; this is the platform's only long-running process.
func RunWorker(ctx context.Context, container *app.Container, version string) error {
	logger := container.Logger()
	logger.Info("starting background workers", slog.String("version", version))

	if _, err := container.Facade(); err != nil {
		return err
	}

	if err := container.Run(ctx); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	<-ctx.Done()
	logger.Info("shutdown signal received")
	return nil
}
