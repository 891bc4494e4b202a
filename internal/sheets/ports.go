package sheets

import (
	"context"
	"strconv"
	"time"

	"fintrack/internal/core"
)

// JournalRow is one exported transaction event.
type JournalRow struct {
	Date          core.Date
	Op            string
	TransactionID string
	Type          core.Type
	Category      string
	Amount        core.Amount
	Description   string
	OwnerEmail    string
	RecordedAt    time.Time
}

// Header is the column layout of a journal sheet.
var Header = []string{"Date", "Op", "ID", "Type", "Category", "Amount", "Description", "Owner", "Recorded At"}

// Values renders the row in Header order.
func (r JournalRow) Values() []any {
	amount := any("")
	if !r.Amount.IsNaN() {
		amount, _ = strconv.ParseFloat(r.Amount.String(), 64)
	}
	return []any{
		r.Date.String(),
		r.Op,
		r.TransactionID,
		r.Type.String(),
		r.Category,
		amount,
		r.Description,
		r.OwnerEmail,
		r.RecordedAt.UTC().Format(time.RFC3339),
	}
}

// Ports for outbound adapters.
type (
	// JournalWriter appends rows to the journal, one sheet per year of the
	// transaction date.
	JournalWriter interface {
		AppendRows(ctx context.Context, rows []JournalRow) error
	}
)
