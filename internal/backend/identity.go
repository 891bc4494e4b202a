package backend

import (
	"fmt"
	"time"

	"fintrack/internal/config"
	"fintrack/internal/identity"
	"fintrack/internal/log"
)

const memoryTokenTTL = time.Hour

// NewIdentityProvider builds the identity provider named by IDENTITY_BACKEND.
func NewIdentityProvider(cfg *config.Config, logger *log.Logger) (identity.Provider, error) {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentBackend)

	switch cfg.IdentityBackend {
	case "firebase":
		fb, err := identity.NewFirebase(cfg.FirebaseAPIKey, identity.WithFirebaseLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Firebase identity: %w", err)
		}
		logger.Info("Initialized identity provider", log.FieldBackend, "firebase")
		return fb, nil
	case "memory", "":
		logger.Warn("Using in-memory identity provider; accounts are lost on restart",
			log.FieldBackend, "memory")
		return identity.NewMemory(memoryTokenTTL), nil
	default:
		return nil, fmt.Errorf("invalid identity backend: %s", cfg.IdentityBackend)
	}
}
