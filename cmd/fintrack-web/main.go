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
	"fintrack/internal/client"
	"fintrack/internal/config"
	apphttp "fintrack/internal/http"
	"fintrack/internal/identity"
	"fintrack/internal/log"
)

func main() {
	cfg, logger := cli.LoadConfig(log.ComponentApp, nil)

	provider, err := backend.NewIdentityProvider(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize identity provider", log.FieldError, err)
		os.Exit(1)
	}

	// Tokens minted by the in-memory provider only verify against the same
	// instance, so the API has to run in this process.
	var embedded *embeddedAPI
	apiBaseURL := cfg.APIBaseURL
	if cfg.IdentityBackend == "memory" {
		embedded, err = startEmbeddedAPI(cfg, provider, logger)
		if err != nil {
			logger.Error("Failed to start in-process API", log.FieldError, err)
			os.Exit(1)
		}
		apiBaseURL = "http://127.0.0.1:" + cfg.APIPort
	}

	var google *identity.GoogleSignIn
	if cfg.GoogleSignInEnabled() {
		google = identity.NewGoogleSignIn(cfg.GoogleOAuthClientID, cfg.GoogleOAuthClientSecret,
			cfg.GoogleOAuthRedirectURL, provider)
		logger.Info("Google sign-in enabled")
	}

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		Client:             client.New(apiBaseURL, client.WithLogger(logger)),
		Provider:           provider,
		Google:             google,
		SessionTTL:         cfg.SessionTTL,
		SecureCookies:      cfg.SecureCookies,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
	})
	if err != nil {
		logger.Error("Failed to create web server", log.FieldError, err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if embedded != nil {
			embedded.stop(ctx)
		}
	})

	logger.Info("Starting fintrack web",
		log.FieldOperation, log.OpStartup,
		"port", cfg.Port,
		"api", apiBaseURL,
		"identity", cfg.IdentityBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully", log.FieldOperation, log.OpShutdown)
}

type embeddedAPI struct {
	server  *api.Server
	cleanup backend.CleanupFunc
	logger  *log.Logger
}

func startEmbeddedAPI(cfg *config.Config, provider identity.Provider, logger *log.Logger) (*embeddedAPI, error) {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	result, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		return nil, err
	}

	srv, err := api.New(api.Options{
		Addr:               "127.0.0.1:" + cfg.APIPort,
		Service:            result.Service,
		Provider:           provider,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
	})
	if err != nil {
		_ = result.Cleanup()
		return nil, err
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("In-process API stopped", log.FieldError, err, "port", cfg.APIPort)
		}
	}()
	logger.Info("Serving transactions API in-process", "port", cfg.APIPort, log.FieldBackend, cfg.DataBackend)

	return &embeddedAPI{server: srv, cleanup: result.Cleanup, logger: logger}, nil
}

func (e *embeddedAPI) stop(ctx context.Context) {
	if err := e.server.Shutdown(ctx); err != nil {
		e.logger.Error("In-process API shutdown error", log.FieldError, err)
	}
	if err := e.cleanup(); err != nil {
		e.logger.Error("Backend cleanup error", log.FieldError, err)
	}
}
