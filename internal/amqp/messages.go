package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
)

// EventOp names the mutation an event reports.
type EventOp string

const (
	OpCreated EventOp = "created"
	OpUpdated EventOp = "updated"
	OpDeleted EventOp = "deleted"
)

func (o EventOp) Valid() bool {
	return o == OpCreated || o == OpUpdated || o == OpDeleted
}

// TransactionEvent is published after every successful mutation. It carries
// the full record (the state before deletion for deletes) so consumers never
// read the database.
type TransactionEvent struct {
	EventID     string           `json:"event_id"`
	Op          EventOp          `json:"op"`
	Transaction core.Transaction `json:"transaction"`
	Timestamp   time.Time        `json:"timestamp"`
}

func NewTransactionEvent(op EventOp, tx core.Transaction) *TransactionEvent {
	return &TransactionEvent{
		EventID:     uuid.NewString(),
		Op:          op,
		Transaction: tx,
		Timestamp:   time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionEventFromJSON decodes and checks an event body.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var msg TransactionEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if !msg.Op.Valid() {
		return nil, fmt.Errorf("unknown event op %q", msg.Op)
	}
	if msg.Transaction.ID == "" {
		return nil, errors.New("event without transaction id")
	}
	return &msg, nil
}
