package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

const (
	messageUpdated = "Transaction updated successfully"
	messageDeleted = "Transaction deleted successfully"
)

type messageResponse struct {
	Message string `json:"message"`
}

type insertedResponse struct {
	InsertedID string `json:"insertedId"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		writeMessage(w, http.StatusBadRequest, "email query parameter is required")
		return
	}

	records, err := s.svc.List(r.Context(), caller, email)
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}
	if records == nil {
		records = []core.Transaction{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var tx core.Transaction
	if err := decodeBody(w, r, &tx); err != nil {
		writeBodyError(w, err)
		return
	}
	tx.ID = ""

	created, err := s.svc.Create(r.Context(), callerFrom(r.Context()), tx)
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	s.appMetrics.created.Add(1)
	writeJSON(w, http.StatusOK, insertedResponse{InsertedID: created.ID})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	detail, err := s.svc.Get(r.Context(), callerFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// handleUpdate applies a partial body: fields absent from the payload keep
// their stored values.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())
	id := r.PathValue("id")

	current, err := s.svc.Get(r.Context(), caller, id)
	if err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	update := current.Transaction.Update()
	if err := decodeBody(w, r, &update); err != nil {
		writeBodyError(w, err)
		return
	}

	if _, err := s.svc.Update(r.Context(), caller, id, update); err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	s.appMetrics.updated.Add(1)
	writeJSON(w, http.StatusOK, messageResponse{Message: messageUpdated})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Delete(r.Context(), callerFrom(r.Context()), r.PathValue("id")); err != nil {
		s.writeError(w, r, log.OpDelete, err)
		return
	}
	s.appMetrics.deleted.Add(1)
	writeJSON(w, http.StatusOK, messageResponse{Message: messageDeleted})
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := s.svc.Overview(r.Context(), callerFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]any{}

	if err := s.svc.Ready(ctx); err != nil {
		checks["repository"] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["repository"] = "ok"
	}
	checks["token_cache"] = map[string]any{
		"entries": s.verifier.Cache().Size(),
		"status":  "ok",
	}
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics writes counters in a Prometheus-like text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()

	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", traceMetrics.TotalRequests)

	fmt.Fprintf(w, "# HELP http_requests_failed_total Requests answered with a 5xx status\n")
	fmt.Fprintf(w, "# TYPE http_requests_failed_total counter\n")
	fmt.Fprintf(w, "http_requests_failed_total %d\n\n", traceMetrics.FailedRequests)

	fmt.Fprintf(w, "# HELP transactions_mutations_total Successful transaction mutations\n")
	fmt.Fprintf(w, "# TYPE transactions_mutations_total counter\n")
	fmt.Fprintf(w, "transactions_mutations_total{op=\"created\"} %d\n", s.appMetrics.created.Load())
	fmt.Fprintf(w, "transactions_mutations_total{op=\"updated\"} %d\n", s.appMetrics.updated.Load())
	fmt.Fprintf(w, "transactions_mutations_total{op=\"deleted\"} %d\n\n", s.appMetrics.deleted.Load())

	fmt.Fprintf(w, "# HELP token_cache_entries Verified tokens currently cached\n")
	fmt.Fprintf(w, "# TYPE token_cache_entries gauge\n")
	fmt.Fprintf(w, "token_cache_entries %d\n\n", s.verifier.Cache().Size())

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

// writeError maps service errors onto status codes. Only unexpected failures
// are logged at error level.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case services.IsValidation(err):
		writeMessage(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, services.ErrForbidden):
		log.FromContext(r.Context()).WarnContext(r.Context(), "Cross-owner access refused",
			log.FieldOperation, op,
			log.FieldPath, r.URL.Path)
		writeMessage(w, http.StatusForbidden, "Forbidden")
	case errors.Is(err, services.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "Transaction not found")
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Transaction request failed",
			log.FieldOperation, op,
			log.FieldPath, r.URL.Path,
			log.FieldError, err,
			"error_type", log.ErrorTypeInternal)
		writeMessage(w, http.StatusInternalServerError, "Internal server error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// writeBodyError answers 422 for a well-formed body carrying an invalid
// field and 400 for anything that is not JSON.
func writeBodyError(w http.ResponseWriter, err error) {
	if services.IsValidation(err) {
		writeMessage(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeMessage(w, http.StatusBadRequest, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageResponse{Message: message})
}
