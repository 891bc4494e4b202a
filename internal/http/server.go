// Package http serves the server-rendered web interface. Every page reads
// and writes transactions through the REST client with the signed-in
// user's credential.
package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/client"
	"fintrack/internal/identity"
	"fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/session"
	appweb "fintrack/web"
)

const (
	defaultSessionTTL  = 24 * time.Hour
	maxSessions        = 10000
	refreshMargin      = 2 * time.Minute
	fetchTimeout       = 10 * time.Second
	sessionCookieName  = "fintrack_session"
	oauthStateKey      = "oauth_state"
	nextPageKey        = "next"
	cacheCleanInterval = 10 * time.Minute
)

// Options configures the web server. Google is optional. FetchTimeout bounds
// each API call made while serving a page.
type Options struct {
	Addr               string
	Client             *client.Client
	Provider           identity.Provider
	Google             *identity.GoogleSignIn
	SessionTTL         time.Duration
	SecureCookies      bool
	RateLimitPerMinute int
	FetchTimeout       time.Duration
	Logger             *log.Logger
}

type Server struct {
	http.Server
	client     *client.Client
	provider   identity.Provider
	google     *identity.GoogleSignIn
	sessions   *session.Store
	sessionTTL time.Duration
	timeout    time.Duration
	secure     bool
	pages      map[string]*template.Template
	logger     *log.Logger
	now        func() time.Time

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	cacheManager     *cache.Manager

	appMetrics   *appMetrics
	shutdownOnce sync.Once
}

type appMetrics struct {
	signIns      atomic.Int64
	failedLogins atomic.Int64
	pageErrors   atomic.Int64
	uptime       time.Time
}

// NewServer parses the embedded templates and wires routes and middleware.
func NewServer(opts Options) (*Server, error) {
	if opts.Client == nil || opts.Provider == nil {
		return nil, fmt.Errorf("web: client and identity provider are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	ttl := opts.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}

	timeout := opts.FetchTimeout
	if timeout <= 0 {
		timeout = fetchTimeout
	}

	pages, err := parsePages(appweb.TemplatesFS)
	if err != nil {
		return nil, err
	}

	limits := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		limits.RequestsPerMinute = opts.RateLimitPerMinute
	}
	limits.Methods = []string{http.MethodPost}

	s := &Server{
		client:           opts.Client,
		provider:         opts.Provider,
		google:           opts.Google,
		sessions:         session.NewStore(maxSessions, ttl),
		sessionTTL:       ttl,
		timeout:          timeout,
		secure:           opts.SecureCookies,
		pages:            pages,
		logger:           logger,
		now:              time.Now,
		rateLimiter:      ratelimit.NewLimiter(limits, logger),
		securityDetector: security.NewDetector(logger),
		cacheManager:     cache.NewManager(logger),
		appMetrics:       &appMetrics{uptime: time.Now()},
	}
	s.traceMiddleware = trace.NewMiddleware(logger, s.securityDetector.ExtractClientIP)

	s.cacheManager.Register(s.sessions.Cleaner())
	s.cacheManager.StartCleanup(cacheCleanInterval)

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

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	page := func(h http.HandlerFunc) http.Handler { return s.withSession(h) }
	private := func(h http.HandlerFunc) http.Handler { return s.withSession(s.requireUser(h)) }

	mux.Handle("GET /{$}", page(s.handleHome))
	mux.Handle("GET /login", page(s.handleLoginPage))
	mux.Handle("POST /login", page(s.handleLogin))
	mux.Handle("GET /register", page(s.handleRegisterPage))
	mux.Handle("POST /register", page(s.handleRegister))
	mux.Handle("GET /reset-password", page(s.handleResetPage))
	mux.Handle("POST /reset-password", page(s.handleReset))
	mux.Handle("POST /logout", page(s.handleLogout))
	mux.Handle("GET /auth/google", page(s.handleGoogleStart))
	mux.Handle("GET /auth/google/callback", page(s.handleGoogleCallback))

	mux.Handle("GET /profile", private(s.handleProfile))
	mux.Handle("POST /profile", private(s.handleProfileUpdate))

	mux.Handle("GET /transactions", private(s.handleTransactions))
	mux.Handle("GET /transactions/new", private(s.handleNewTransaction))
	mux.Handle("POST /transactions", private(s.handleCreateTransaction))
	mux.Handle("GET /transactions/{id}", private(s.handleTransactionDetails))
	mux.Handle("GET /transactions/{id}/edit", private(s.handleEditTransaction))
	mux.Handle("POST /transactions/{id}/edit", private(s.handleUpdateTransaction))
	mux.Handle("GET /transactions/{id}/delete", private(s.handleConfirmDelete))
	mux.Handle("POST /transactions/{id}/delete", private(s.handleDeleteTransaction))

	mux.Handle("GET /reports", private(s.handleReports))
	mux.Handle("GET /reports/data", s.withSession(s.handleReportData))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limited := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, nil)

	var h http.Handler = mux
	h = limited(h)
	h = s.securityDetector.Middleware(true)(h)
	h = headers.Middleware(h)
	h = log.Middleware(s.logger, trace.GetRequestID)(h)
	h = s.traceMiddleware.Middleware(h)
	return h
}

// Shutdown stops background cleanup and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
