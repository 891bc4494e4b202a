package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"

	"fintrack/internal/core"
	"fintrack/internal/identity"
	"fintrack/internal/log"
	"fintrack/internal/session"
)

const layoutTemplate = "layout.html"

// pageData is what every page template receives.
type pageData struct {
	Title         string
	User          identity.User
	SignedIn      bool
	GoogleEnabled bool
	Notices       []session.Notice
	Form          map[string]string
	Errors        map[string]string
	Data          any
}

// PageBuilder assembles the data and status of one rendered page.
type PageBuilder struct {
	name       string
	statusCode int
	data       pageData
}

// NewPage starts a 200 response rendering the named page template.
func NewPage(name, title string) *PageBuilder {
	return &PageBuilder{
		name:       name,
		statusCode: http.StatusOK,
		data: pageData{
			Title:  title,
			Form:   map[string]string{},
			Errors: map[string]string{},
		},
	}
}

func (b *PageBuilder) Status(code int) *PageBuilder {
	b.statusCode = code
	return b
}

// With sets the page-specific payload.
func (b *PageBuilder) With(data any) *PageBuilder {
	b.data.Data = data
	return b
}

// Form pre-fills form fields, usually with the submitted values.
func (b *PageBuilder) Form(values map[string]string) *PageBuilder {
	for k, v := range values {
		b.data.Form[k] = v
	}
	return b
}

// FieldError attaches an inline error to a form field. The empty field name
// is the form-level error.
func (b *PageBuilder) FieldError(field, message string) *PageBuilder {
	b.data.Errors[field] = message
	return b
}

func (b *PageBuilder) HasErrors() bool {
	return len(b.data.Errors) > 0
}

// render executes the page into a buffer first so that a template failure
// never produces a half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, b *PageBuilder) {
	if sess := sessionFrom(r.Context()); sess != nil {
		st := sess.State()
		b.data.SignedIn = st.Authenticated()
		b.data.User = st.User
		b.data.Notices = sess.PopNotices()
	}
	b.data.GoogleEnabled = s.google != nil

	tmpl, ok := s.pages[b.name]
	if !ok {
		s.logger.ErrorContext(r.Context(), "Unknown page template",
			"template", b.name,
			"error_type", log.ErrorTypeConfiguration)
		http.Error(w, "page not found", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, layoutTemplate, b.data); err != nil {
		s.appMetrics.pageErrors.Add(1)
		s.logger.ErrorContext(r.Context(), "Template execution failed",
			log.FieldOperation, log.OpRender,
			"template", b.name,
			log.FieldError, err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_, _ = buf.WriteTo(w)
}

// redirectWithNotice queues a one-time message and redirects with 303.
func redirectWithNotice(w http.ResponseWriter, r *http.Request, to, kind, message string) {
	if sess := sessionFrom(r.Context()); sess != nil && message != "" {
		sess.AddNotice(kind, message)
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// parsePages builds one template set per page: the shared layout plus the
// page's own blocks.
func parsePages(fsys fs.FS) (map[string]*template.Template, error) {
	files, err := fs.Glob(fsys, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	pages := make(map[string]*template.Template, len(files))
	for _, file := range files {
		name := path.Base(file)
		if name == layoutTemplate {
			continue
		}
		t, err := template.New(name).Funcs(templateFuncs).ParseFS(fsys, "templates/"+layoutTemplate, file)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		pages[name] = t
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no page templates found")
	}
	return pages, nil
}

var templateFuncs = template.FuncMap{
	"amount":      formatAmount,
	"signed":      signedAmount,
	"date":        formatDate,
	"typeClass":   typeClass,
	"initials":    initials,
	"categories":  func() []string { return suggestedCategories },
	"months":      monthOptions,
	"isSelected":  func(a, b string) bool { return a == b },
	"truncate":    truncate,
	"typeLabel":   func(t core.Type) string { return t.Label() },
	"noticeClass": noticeClass,
}
