package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"fintrack/internal/client"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/report"
	"fintrack/internal/session"
	"fintrack/internal/task"
)

const recentLimit = 5

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	})
}

// handleReady checks templates and the transactions API.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]any{}

	if len(s.pages) == 0 {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if err := s.client.Health(ctx); err != nil {
		checks["transactions_api"] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["transactions_api"] = "ok"
	}

	checks["sessions"] = map[string]any{
		"active": s.sessions.Len(),
		"status": "ok",
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()

	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", traceMetrics.TotalRequests)

	fmt.Fprintf(w, "# HELP sign_ins_total Successful sign-ins\n")
	fmt.Fprintf(w, "# TYPE sign_ins_total counter\n")
	fmt.Fprintf(w, "sign_ins_total %d\n\n", s.appMetrics.signIns.Load())

	fmt.Fprintf(w, "# HELP failed_logins_total Rejected sign-in attempts\n")
	fmt.Fprintf(w, "# TYPE failed_logins_total counter\n")
	fmt.Fprintf(w, "failed_logins_total %d\n\n", s.appMetrics.failedLogins.Load())

	fmt.Fprintf(w, "# HELP template_errors_total Pages that failed to render\n")
	fmt.Fprintf(w, "# TYPE template_errors_total counter\n")
	fmt.Fprintf(w, "template_errors_total %d\n\n", s.appMetrics.pageErrors.Load())

	fmt.Fprintf(w, "# HELP active_sessions Sessions currently held\n")
	fmt.Fprintf(w, "# TYPE active_sessions gauge\n")
	fmt.Fprintf(w, "active_sessions %d\n\n", s.sessions.Len())

	fmt.Fprintf(w, "# HELP rate_limit_hits_total Total rate limit hits\n")
	fmt.Fprintf(w, "# TYPE rate_limit_hits_total counter\n")
	fmt.Fprintf(w, "rate_limit_hits_total %d\n\n", rateLimitMetrics.TotalHits)

	fmt.Fprintf(w, "# HELP suspicious_requests_total Total suspicious requests detected\n")
	fmt.Fprintf(w, "# TYPE suspicious_requests_total counter\n")
	fmt.Fprintf(w, "suspicious_requests_total %d\n\n", securityMetrics.SuspiciousRequests)

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n", time.Since(s.appMetrics.uptime).Seconds())
}

type homeView struct {
	Overview    core.Overview
	Recent      []core.Transaction
	FetchFailed bool
}

// handleHome shows the financial overview. The totals and the recent list
// are fetched concurrently and both are dropped if the visitor goes away.
func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	page := NewPage("home.html", "Home")
	user, cred := credential(r)
	if cred == "" || !sessionFrom(r.Context()).State().Authenticated() {
		s.render(w, r, page)
		return
	}

	var view homeView
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	scope := task.NewScope(ctx)
	defer scope.Close()

	task.Go(scope, func(ctx context.Context) (core.Overview, error) {
		return s.client.Overview(ctx, cred)
	}, func(o core.Overview, err error) {
		if err == nil {
			view.Overview = o
		}
	})
	task.Go(scope, func(ctx context.Context) ([]core.Transaction, error) {
		return s.client.List(ctx, user.Email, cred)
	}, func(records []core.Transaction, err error) {
		if err != nil {
			return
		}
		recent := report.SortTransactions(records, report.SortByDate)
		if len(recent) > recentLimit {
			recent = recent[:recentLimit]
		}
		view.Recent = recent
	})

	if err := scope.Wait(); err != nil {
		if s.sessionLost(w, r, err) {
			return
		}
		s.logClientError(r, log.OpRead, err)
		view.FetchFailed = true
		page.FieldError("", userMessage(err))
	}
	s.render(w, r, page.With(view))
}

// sessionLost handles a rejected credential: the session is signed out and
// the visitor sent to the login page.
func (s *Server) sessionLost(w http.ResponseWriter, r *http.Request, err error) bool {
	if !errors.Is(err, client.ErrNoCredential) && !client.IsStatus(err, http.StatusUnauthorized) {
		return false
	}
	sess := sessionFrom(r.Context())
	sess.Clear()
	sess.SetValue(nextPageKey, r.URL.RequestURI())
	redirectWithNotice(w, r, "/login", session.NoticeError, "Your session has expired. Please sign in again.")
	return true
}

// failPage answers a failed API call on a page that cannot be shown without
// its data.
func (s *Server) failPage(w http.ResponseWriter, r *http.Request, op string, err error) {
	if s.sessionLost(w, r, err) {
		return
	}
	switch {
	case client.IsStatus(err, http.StatusNotFound):
		s.render(w, r, NewPage("error.html", "Not found").Status(http.StatusNotFound).
			FieldError("", "This transaction does not exist."))
	case client.IsStatus(err, http.StatusForbidden):
		s.render(w, r, NewPage("error.html", "Forbidden").Status(http.StatusForbidden).
			FieldError("", "You do not have access to this transaction."))
	default:
		s.logClientError(r, op, err)
		s.render(w, r, NewPage("error.html", "Something went wrong").Status(http.StatusBadGateway).
			FieldError("", userMessage(err)))
	}
}

func (s *Server) logClientError(r *http.Request, op string, err error) {
	var te *client.TransportError
	errorType := log.ErrorTypeInternal
	if errors.As(err, &te) {
		errorType = log.ErrorTypeNetwork
	}
	log.FromContext(r.Context()).ErrorContext(r.Context(), "Transactions API call failed",
		log.FieldOperation, op,
		log.FieldPath, r.URL.Path,
		log.FieldError, err,
		"error_type", errorType)
}

// userMessage turns a client error into something safe to show.
func userMessage(err error) string {
	var te *client.TransportError
	var se *client.StatusError
	switch {
	case errors.As(err, &te):
		return "Could not reach the server. Please try again."
	case errors.Is(err, client.ErrNotAcknowledged):
		return "The server did not confirm the operation."
	case errors.As(err, &se) && se.Code == http.StatusUnprocessableEntity && se.Message != "":
		return "Invalid transaction: " + se.Message
	case errors.Is(err, context.DeadlineExceeded):
		return "The server took too long to answer."
	default:
		return "Something went wrong. Please try again."
	}
}
