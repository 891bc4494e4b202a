package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"fintrack/internal/api"
	"fintrack/internal/backend"
	"fintrack/internal/cli"
	"fintrack/internal/log"
)

func main() {
	cfg, logger := cli.LoadConfig(log.ComponentAPI, nil)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}

	result, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend",
			log.FieldError, err,
			log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}

	provider, err := backend.NewIdentityProvider(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize identity provider", log.FieldError, err)
		_ = result.Cleanup()
		os.Exit(1)
	}

	srv, err := api.New(api.Options{
		Addr:               ":" + cfg.APIPort,
		Service:            result.Service,
		Provider:           provider,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
	})
	if err != nil {
		logger.Error("Failed to create API server", log.FieldError, err)
		_ = result.Cleanup()
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting fintrack API",
		log.FieldOperation, log.OpStartup,
		"port", cfg.APIPort,
		log.FieldBackend, cfg.DataBackend,
		"identity", cfg.IdentityBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.APIPort)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully", log.FieldOperation, log.OpShutdown)
}
