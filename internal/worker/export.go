package worker

import (
	"context"

	"fintrack/internal/amqp"
	"fintrack/internal/log"
	"fintrack/internal/sheets"
)

// Exporter turns transaction events into journal rows.
type Exporter struct {
	batcher *Batcher
	logger  *log.Logger
}

func NewExporter(batcher *Batcher, logger *log.Logger) *Exporter {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Exporter{batcher: batcher, logger: logger.WithComponent(log.ComponentWorker)}
}

// HandleEvent exports one event. An error means the row was not written and
// the event should be delivered again.
func (e *Exporter) HandleEvent(ctx context.Context, ev *amqp.TransactionEvent) error {
	tx := ev.Transaction
	e.logger.InfoContext(ctx, "Exporting transaction event",
		"event_id", ev.EventID,
		"op", string(ev.Op),
		log.FieldTransactionID, tx.ID,
		log.FieldType, tx.Type.String(),
		log.FieldCategory, tx.Category)

	return e.batcher.Add(ctx, RowFromEvent(ev))
}

// RowFromEvent maps an event onto the journal column layout.
func RowFromEvent(ev *amqp.TransactionEvent) sheets.JournalRow {
	tx := ev.Transaction
	return sheets.JournalRow{
		Date:          tx.Date,
		Op:            string(ev.Op),
		TransactionID: tx.ID,
		Type:          tx.Type,
		Category:      tx.Category,
		Amount:        tx.Amount,
		Description:   tx.Description,
		OwnerEmail:    tx.OwnerEmail,
		RecordedAt:    ev.Timestamp,
	}
}
