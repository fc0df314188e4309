package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/strata/internal/config"
	"github.com/JonMunkholm/strata/internal/core"
	"github.com/JonMunkholm/strata/internal/logging"
	"github.com/JonMunkholm/strata/internal/session"
	"github.com/JonMunkholm/strata/internal/sheet"
	"github.com/JonMunkholm/strata/internal/storage"
	"github.com/JonMunkholm/strata/internal/storage/schema"
	"github.com/JonMunkholm/strata/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"storage_driver", cfg.Storage.Driver,
		"extract_max_concurrent", cfg.Extraction.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx := context.Background()
	store, err := storage.Open(ctx, storage.Options{
		Driver:          cfg.Storage.Driver,
		URL:             cfg.Storage.URL,
		Path:            cfg.Storage.Path,
		MaxConns:        cfg.Storage.MaxConns,
		MinConns:        cfg.Storage.MinConns,
		MaxConnLifetime: cfg.Storage.MaxConnLifetime,
		MaxConnIdleTime: cfg.Storage.MaxConnIdleTime,
		Logger:          logger,
	})
	if err != nil {
		slog.Error("failed to open record store", "error", err)
		os.Exit(1)
	}

	validator, err := schema.New()
	if err != nil {
		slog.Error("failed to compile record schema", "error", err)
		os.Exit(1)
	}

	patterns, err := core.LoadPatternsFile(cfg.Extraction.PatternsFile)
	if err != nil {
		slog.Error("failed to load header patterns", "error", err)
		os.Exit(1)
	}

	limiter := core.NewExtractionLimiter(cfg.Extraction.MaxConcurrent, cfg.Extraction.MaxWaitTime)
	deps := web.Deps{
		Decoder: sheet.NewDecoder(
			sheet.WithMaxBytes(cfg.Extraction.MaxFileSize),
			sheet.WithSheet(cfg.Extraction.Sheet),
			sheet.WithLogger(logger),
		),
		Extractor: core.NewExtractor(
			core.WithPatterns(patterns),
			core.WithLimiter(limiter),
			core.WithExtractorLogger(logger),
		),
		Limiter: limiter,
		Persister: core.NewPersister(store,
			core.WithCollection(cfg.Storage.Collection),
			core.WithSchemaValidator(validator),
			core.WithPersisterLogger(logger),
		),
		Sessions: session.NewManager(cfg.Review.SessionTTL, cfg.Review.CleanupInterval, logger),
		Store:    store,
		Logger:   logger,
	}

	server := web.NewServer(deps, cfg)

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		if status := limiter.Status(); status.Active > 0 {
			slog.Info("waiting for extractions to complete", "active", status.Active)
			if err := limiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("extractions did not complete in time", "error", err)
			}
		}

		if err := store.Close(); err != nil {
			slog.Error("close record store", "error", err)
		}
	}()

	if err := server.Start(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	<-done
}
