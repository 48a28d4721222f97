package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"carteira/internal/cache"
	"carteira/internal/cli"
	apphttp "carteira/internal/http"
	applog "carteira/internal/log"
	"carteira/internal/recurrence"
	"carteira/internal/services"
	"carteira/internal/sheets"
	gsheet "carteira/internal/sheets/google"
)

func main() {
	cfg := cli.LoadConfig()
	logger := cli.SetupLogger(cfg.SlogLevel(), applog.ComponentApp)
	cli.ValidateOrExit(logger, cfg.Validate)

	res := cli.InitBackend(context.Background(), logger, cfg)

	opts := []services.Option{
		services.WithViewCache(cache.NewLoadingCache[[]recurrence.Visible](cfg.CacheSize, cfg.CacheTTL)),
	}
	if res.AMQP != nil {
		opts = append(opts, services.WithPublisher(res.AMQP))
	}
	svc := services.NewDatasetService(res.Repository, opts...)

	// Sheets import is optional; without credentials the endpoint answers 503.
	var sheetReader sheets.ValuesReader
	if cfg.SheetsEnabled() {
		client, err := gsheet.New(context.Background(), cfg.GoogleSpreadsheetID, gsheet.Credentials{
			JSON: cfg.GoogleServiceAccountJSON,
			File: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
		} else {
			sheetReader = client
			logger.Info("Google Sheets import enabled")
		}
	}

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		DefaultUser:        cfg.DefaultUser,
		UploadMaxBytes:     cfg.UploadMaxBytes,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		SheetReader:        sheetReader,
		Logger:             logger,
	})
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", applog.FieldError, err)
		}
	})

	logger.Info("Starting carteira server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"amqp_enabled", res.AMQP != nil,
		"sheets_import", sheetReader != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
