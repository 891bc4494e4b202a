package http

import (
	"context"
	"net/http"
	"strconv"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/report"
	"fintrack/internal/task"
)

type reportsView struct {
	Report report.Report
	Type   string
	Month  string
}

// composeReport fetches the user's records inside a request-bound scope and
// composes the chart view. A fetch that outlives the request is discarded.
func (s *Server) composeReport(r *http.Request, q ReportQuery) (report.Report, error) {
	user, cred := credential(r)
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	scope := task.NewScope(ctx)
	defer scope.Close()

	var out report.Report
	task.Go(scope, func(ctx context.Context) ([]core.Transaction, error) {
		return s.client.List(ctx, user.Email, cred)
	}, func(records []core.Transaction, err error) {
		if err == nil {
			out = report.Compose(records, report.Options{Type: q.Type, Month: q.Month})
		}
	})
	if err := scope.Wait(); err != nil {
		return report.Report{}, err
	}
	return out, nil
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	q := ParseReportQuery(r.URL.Query())
	rep, err := s.composeReport(r, q)
	if err != nil {
		s.failPage(w, r, log.OpReport, err)
		return
	}

	month := ""
	if q.Month != 0 {
		month = strconv.Itoa(int(q.Month))
	}
	s.render(w, r, NewPage("reports.html", "Reports").With(reportsView{
		Report: rep,
		Type:   q.Type.String(),
		Month:  month,
	}))
}

// handleReportData serves the chart JSON used by the reports page script.
func (s *Server) handleReportData(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if !sess.State().Authenticated() || !s.refreshIfNeeded(r.Context(), sess) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized access"})
		return
	}

	rep, err := s.composeReport(r, ParseReportQuery(r.URL.Query()))
	if err != nil {
		s.logClientError(r, log.OpReport, err)
		writeJSON(w, statusFor(err), map[string]string{"message": userMessage(err)})
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
