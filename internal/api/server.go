// Package api serves the transactions REST API used by the web app and the
// terminal client.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/identity"
	"fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/services"
)

const (
	verifierCacheSize = 1000
	verifierCacheTTL  = 5 * time.Minute
	maxBodyBytes      = 1 << 20
)

// Options configures a Server. Provider is optional; without it the /auth
// endpoints are not mounted.
type Options struct {
	Addr               string
	Service            *services.TransactionService
	Verifier           identity.Verifier
	Provider           identity.Provider
	RateLimitPerMinute int
	Logger             *log.Logger
}

// Server wraps http.Server with the API's routes and middleware.
type Server struct {
	http.Server
	svc      *services.TransactionService
	verifier *identity.CachedVerifier
	provider identity.Provider
	logger   *log.Logger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	cacheManager     *cache.Manager

	appMetrics   *appMetrics
	shutdownOnce sync.Once
}

type appMetrics struct {
	created atomic.Int64
	updated atomic.Int64
	deleted atomic.Int64
	uptime  time.Time
}

// New builds the server and starts its background cleanup.
func New(opts Options) (*Server, error) {
	if opts.Service == nil {
		return nil, fmt.Errorf("api: transaction service is required")
	}
	verifier := opts.Verifier
	if verifier == nil && opts.Provider != nil {
		verifier = opts.Provider
	}
	if verifier == nil {
		return nil, fmt.Errorf("api: token verifier is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentAPI)

	limits := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		limits.RequestsPerMinute = opts.RateLimitPerMinute
	}
	limits.Methods = []string{http.MethodPost, http.MethodPut, http.MethodDelete}

	s := &Server{
		svc:              opts.Service,
		verifier:         identity.NewCachedVerifier(verifier, verifierCacheSize, verifierCacheTTL),
		provider:         opts.Provider,
		logger:           logger,
		rateLimiter:      ratelimit.NewLimiter(limits, logger),
		securityDetector: security.NewDetector(logger),
		cacheManager:     cache.NewManager(logger),
		appMetrics:       &appMetrics{uptime: time.Now()},
	}
	s.traceMiddleware = trace.NewMiddleware(logger, s.securityDetector.ExtractClientIP)

	s.cacheManager.Register(s.verifier.Cache())
	s.cacheManager.StartCleanup(10 * time.Minute)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.Handle("GET /my-transactions", s.requireAuth(s.handleList))
	mux.Handle("POST /transactions", s.requireAuth(s.handleCreate))
	mux.Handle("GET /transaction/{id}", s.requireAuth(s.handleGet))
	mux.Handle("PUT /transaction/{id}", s.requireAuth(s.handleUpdate))
	mux.Handle("DELETE /transaction/{id}", s.requireAuth(s.handleDelete))
	mux.Handle("GET /totalOverview", s.requireAuth(s.handleOverview))

	if s.provider != nil {
		mux.HandleFunc("POST /auth/signup", s.handleSignUp)
		mux.HandleFunc("POST /auth/signin", s.handleSignIn)
		mux.HandleFunc("POST /auth/refresh", s.handleRefresh)
		mux.HandleFunc("POST /auth/password-reset", s.handlePasswordReset)
	}

	headers := security.NewHeadersMiddleware(security.APIHeadersConfig())
	limited := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
	})

	var h http.Handler = mux
	h = limited(h)
	h = s.securityDetector.Middleware(true)(h)
	h = headers.Middleware(h)
	h = log.Middleware(s.logger, trace.GetRequestID)(h)
	h = s.traceMiddleware.Middleware(h)
	return h
}

// Shutdown stops the background goroutines and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
