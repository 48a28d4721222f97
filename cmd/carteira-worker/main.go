package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"carteira/internal/backend"
	"carteira/internal/cli"
	applog "carteira/internal/log"
	gsheet "carteira/internal/sheets/google"
	"carteira/internal/worker"
)

func main() {
	cfg := cli.LoadConfig()
	logger := cli.SetupLogger(cfg.SlogLevel(), applog.ComponentWorker)
	cli.ValidateOrExit(logger, cfg.Validate, cfg.ValidateWorker, func() error {
		if cfg.DataBackend == backend.MemoryBackend.String() {
			return errors.New("the worker needs a shared backend (sqlite or postgres), not memory")
		}
		return nil
	})

	res := cli.InitBackend(context.Background(), logger, cfg)
	if res.AMQP == nil {
		logger.Error("AMQP broker unreachable, worker cannot receive changes", "url_set", cfg.AMQPURL != "")
		_ = res.Cleanup()
		os.Exit(1)
	}

	mirror, err := gsheet.New(context.Background(), cfg.GoogleSpreadsheetID, gsheet.Credentials{
		JSON: cfg.GoogleServiceAccountJSON,
		File: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
		_ = res.Cleanup()
		os.Exit(1)
	}

	w := worker.NewSyncWorker(res.Repository, mirror)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", applog.FieldError, err)
		}
	})

	logger.Info("Starting carteira sheets mirror worker",
		"backend", cfg.DataBackend,
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sync_interval", cfg.SyncInterval)

	// Initial mirror of the default user's datasets so the sheet is current
	// even when changes happened while the worker was down.
	if err := w.SyncOwner(ctx, cfg.DefaultUser); err != nil {
		logger.Warn("Initial sync incomplete", applog.FieldError, err, applog.FieldOwner, cfg.DefaultUser)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return res.AMQP.ConsumeDatasetChanged(gctx, w.HandleDatasetChanged)
	})
	g.Go(func() error {
		ticker := time.NewTicker(cfg.SyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if err := w.RetryFailed(gctx); err != nil {
					logger.Warn("Retry of failed mirrors incomplete",
						applog.FieldError, err,
						applog.FieldCount, len(w.Pending()))
				}
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", applog.FieldError, err)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
