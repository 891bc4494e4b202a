package http

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/identity"
	"fintrack/internal/report"
)

// TransactionForm is the raw content of the add/update form.
type TransactionForm struct {
	Type        string
	Category    string
	Amount      string
	Description string
	Date        string
}

// ParseTransactionForm reads the form fields, sanitised.
func ParseTransactionForm(form url.Values) TransactionForm {
	return TransactionForm{
		Type:        sanitizeInput(form.Get("type")),
		Category:    sanitizeInput(form.Get("category")),
		Amount:      sanitizeInput(form.Get("amount")),
		Description: sanitizeInput(form.Get("description")),
		Date:        sanitizeInput(form.Get("date")),
	}
}

// Values returns the fields keyed by input name, for re-rendering.
func (f TransactionForm) Values() map[string]string {
	return map[string]string{
		"type":        f.Type,
		"category":    f.Category,
		"amount":      f.Amount,
		"description": f.Description,
		"date":        f.Date,
	}
}

// FormFromTransaction pre-fills the form with a stored record.
func FormFromTransaction(tx core.Transaction) TransactionForm {
	amount := ""
	if !tx.Amount.IsNaN() {
		amount = tx.Amount.String()
	}
	return TransactionForm{
		Type:        tx.Type.String(),
		Category:    tx.Category,
		Amount:      amount,
		Description: tx.Description,
		Date:        tx.Date.String(),
	}
}

// NewTransactionForm is the empty form: an expense dated today.
func NewTransactionForm(now time.Time) TransactionForm {
	return TransactionForm{
		Type: core.TypeExpense.String(),
		Date: now.Format(core.DateLayout),
	}
}

// Update validates every field and returns the per-field errors, keyed by
// input name.
func (f TransactionForm) Update() (core.TransactionUpdate, map[string]string) {
	errs := map[string]string{}
	var u core.TransactionUpdate

	t, err := core.ParseType(f.Type)
	if err != nil {
		errs["type"] = "Choose income or expense"
	}
	u.Type = t

	u.Category = f.Category
	if u.Category == "" {
		errs["category"] = "Category is required"
	}

	a, err := core.ParseAmount(f.Amount)
	if err != nil {
		errs["amount"] = "Enter a non-negative number"
	}
	u.Amount = a

	d, err := core.ParseDate(f.Date)
	if err != nil {
		errs["date"] = "Enter a valid date"
	}
	u.Date = d

	u.Description = f.Description
	if len(u.Description) > core.MaxDescriptionLength {
		errs["description"] = core.ErrDescriptionTooLong.Error()
	}

	if len(errs) > 0 {
		return u, errs
	}
	if err := u.Validate(); err != nil {
		errs[""] = err.Error()
		return u, errs
	}
	return u, nil
}

// Transaction builds a new record from the form. Owner fields are filled in
// by the server.
func (f TransactionForm) Transaction() (core.Transaction, map[string]string) {
	u, errs := f.Update()
	return core.Transaction{}.Apply(u), errs
}

// ReportQuery holds the report filters from the query string.
type ReportQuery struct {
	Type  core.Type
	Month time.Month
}

// ParseReportQuery reads type and month. Unknown values fall back to
// expenses across all months.
func ParseReportQuery(q url.Values) ReportQuery {
	rq := ReportQuery{Type: core.TypeExpense}
	if t, err := core.ParseType(q.Get("type")); err == nil {
		rq.Type = t
	}
	if m, err := report.ParseMonth(q.Get("month")); err == nil {
		rq.Month = m
	}
	return rq
}

// ParseSort reads the sort key, defaulting to date.
func ParseSort(q url.Values) report.SortKey {
	key, err := report.ParseSortKey(q.Get("sort"))
	if err != nil {
		return report.SortByDate
	}
	return key
}

// CredentialsForm is the login/register form.
type CredentialsForm struct {
	Name     string
	Email    string
	Password string
	PhotoURL string
}

func ParseCredentialsForm(form url.Values) CredentialsForm {
	return CredentialsForm{
		Name:     sanitizeInput(form.Get("name")),
		Email:    sanitizeInput(form.Get("email")),
		Password: form.Get("password"),
		PhotoURL: sanitizeInput(form.Get("photoURL")),
	}
}

// Errors runs the credential checks and maps them onto form fields.
func (f CredentialsForm) Errors() map[string]string {
	errs := map[string]string{}
	err := identity.ValidateCredentials(f.Email, f.Password)
	if errors.Is(err, identity.ErrInvalidEmail) {
		errs["email"] = "Please enter a valid email address"
	}
	if errors.Is(err, identity.ErrWeakPassword) {
		errs["password"] = "Password must have an uppercase letter, a lowercase letter and at least 6 characters"
	}
	if f.PhotoURL != "" && !validPhotoURL(f.PhotoURL) {
		errs["photoURL"] = "Photo URL must be an http or https address"
	}
	return errs
}

// Values omits the password so it is never echoed back.
func (f CredentialsForm) Values() map[string]string {
	return map[string]string{
		"name":     f.Name,
		"email":    f.Email,
		"photoURL": f.PhotoURL,
	}
}

func validPhotoURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// parseForm parses a bounded urlencoded body.
func parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	return r.ParseForm()
}
