// Package ratelimit throttles clients with one token bucket per client key.
package ratelimit

import (
	"math"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"fintrack/internal/log"
)

// idleAfter is how long a bucket may go unused before cleanup forgets it.
// It must exceed the one-minute refill time.
const idleAfter = 10 * time.Minute

// Limiter lets each client spend up to RequestsPerMinute requests in a
// burst, refilled continuously at the same rate.
type Limiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	rpm      int
	methods  []string
	interval time.Duration
	now      func() time.Time

	hits     atomic.Int64
	logger   *log.Logger
	stop     chan struct{}
	stopOnce sync.Once
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type Config struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration
	// Methods limits counting to these HTTP methods; empty means all.
	Methods []string
}

func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		CleanupInterval:   5 * time.Minute,
	}
}

// NewLimiter starts a limiter and its cleanup goroutine; call Stop to end it.
func NewLimiter(config Config, logger *log.Logger) *Limiter {
	def := DefaultConfig()
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = def.RequestsPerMinute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = def.CleanupInterval
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	l := &Limiter{
		buckets:  make(map[string]*bucket),
		rpm:      config.RequestsPerMinute,
		methods:  config.Methods,
		interval: config.CleanupInterval,
		now:      time.Now,
		logger:   logger.WithComponent(log.ComponentRateLimit),
		stop:     make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Allow spends one token of key's bucket.
func (l *Limiter) Allow(key string) bool {
	ok, _ := l.take(key)
	return ok
}

// take spends a token, or reports how long until one is available.
func (l *Limiter) take(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rate.Limit(float64(l.rpm)/60), l.rpm)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	if b.lim.AllowN(now, 1) {
		return true, 0
	}
	l.hits.Add(1)
	missing := 1 - b.lim.TokensAt(now)
	wait := math.Ceil(missing * 60 / float64(l.rpm))
	return false, time.Duration(wait) * time.Second
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := l.cleanupStaleEntries(); n > 0 {
				l.logger.Debug("Dropped idle rate limit buckets", "count", n)
			}
		case <-l.stop:
			return
		}
	}
}

func (l *Limiter) cleanupStaleEntries() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-idleAfter)
	removed := 0
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

func (l *Limiter) ActiveClients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Stop ends the cleanup goroutine. Safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

type Metrics struct {
	TotalHits   int64
	ClientCount int64
}

func (l *Limiter) GetMetrics() Metrics {
	return Metrics{
		TotalHits:   l.hits.Load(),
		ClientCount: int64(l.ActiveClients()),
	}
}

// Middleware limits requests per key. onLimit writes the rejection; nil
// answers 429 in plain text. Retry-After is set before onLimit runs.
func (l *Limiter) Middleware(key func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(l.methods) > 0 && !slices.Contains(l.methods, r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			client := key(r)
			ok, wait := l.take(client)
			if ok {
				next.ServeHTTP(w, r)
				return
			}

			l.logger.WarnContext(r.Context(), "Rate limit exceeded",
				log.FieldClientIP, client,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", strconv.Itoa(int(wait/time.Second)))
			if onLimit != nil {
				onLimit(w, r)
				return
			}
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
		})
	}
}
