package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// DateLayout is the wire and storage layout of a transaction date.
const DateLayout = "2006-01-02"

// MaxDescriptionLength bounds the free-text description of a transaction.
const MaxDescriptionLength = 500

// Type is the kind of a transaction. The zero value is TypeUnknown and marks
// input that could not be mapped to a known kind.
type Type int

const (
	TypeUnknown Type = iota
	TypeIncome
	TypeExpense
)

type (
	// Date is a civil calendar date without a time-of-day component.
	Date struct {
		time.Time
	}

	// Amount is a non-negative decimal value. Values that were not numeric on
	// the wire decode to NaN and propagate through sums.
	Amount float64

	// Transaction is a single owned money movement.
	Transaction struct {
		ID          string `json:"_id,omitempty"`
		Type        Type   `json:"type"`
		Category    string `json:"category"`
		Amount      Amount `json:"amount"`
		Description string `json:"description"`
		Date        Date   `json:"date"`
		OwnerEmail  string `json:"email"`
		OwnerName   string `json:"name"`
	}

	// TransactionUpdate carries the mutable fields of a transaction. The owner
	// is never part of an update.
	TransactionUpdate struct {
		Type        Type   `json:"type"`
		Category    string `json:"category"`
		Amount      Amount `json:"amount"`
		Description string `json:"description"`
		Date        Date   `json:"date"`
	}
)

var (
	ErrInvalidType        = errors.New("invalid transaction type")
	ErrEmptyCategory      = errors.New("empty category")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidDate        = errors.New("invalid date")
	ErrDescriptionTooLong = fmt.Errorf("description too long (max %d characters)", MaxDescriptionLength)
)

// ParseType maps user or wire input to a Type. Matching is case-insensitive
// and accepts the legacy "expanse" spelling for expenses.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "income":
		return TypeIncome, nil
	case "expense", "expanse":
		return TypeExpense, nil
	default:
		return TypeUnknown, fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
}

func (t Type) String() string {
	switch t {
	case TypeIncome:
		return "income"
	case TypeExpense:
		return "expense"
	default:
		return "unknown"
	}
}

// Label is the capitalised display name.
func (t Type) Label() string {
	switch t {
	case TypeIncome:
		return "Income"
	case TypeExpense:
		return "Expense"
	default:
		return "Unknown"
	}
}

func (t Type) Valid() bool {
	return t == TypeIncome || t == TypeExpense
}

func (t Type) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON never fails on an unrecognised string: the record is kept as
// TypeUnknown so that one bad row does not hide the others.
func (t *Type) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*t = TypeUnknown
		return nil
	}
	parsed, _ := ParseType(s)
	*t = parsed
	return nil
}

// NewDate creates a Date from year, month, day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts "2006-01-02" or an RFC 3339 timestamp, whose calendar
// date (in its own offset) is kept.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return Date{Time: t}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return NewDate(t.Year(), t.Month(), t.Day()), nil
	}
	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes a missing, null or unreadable date to the zero Date
// instead of failing, like Type. Validate rejects it on input.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		*d = Date{}
		return nil
	}
	*d = parsed
	return nil
}

func (t Transaction) Validate() error {
	return t.Update().Validate()
}

// Update extracts the mutable fields of t.
func (t Transaction) Update() TransactionUpdate {
	return TransactionUpdate{
		Type:        t.Type,
		Category:    t.Category,
		Amount:      t.Amount,
		Description: t.Description,
		Date:        t.Date,
	}
}

// Apply returns t with the fields of u; identity and owner are unchanged.
func (t Transaction) Apply(u TransactionUpdate) Transaction {
	t.Type = u.Type
	t.Category = u.Category
	t.Amount = u.Amount
	t.Description = u.Description
	t.Date = u.Date
	return t
}

func (u TransactionUpdate) Validate() error {
	if !u.Type.Valid() {
		return ErrInvalidType
	}
	if strings.TrimSpace(u.Category) == "" {
		return ErrEmptyCategory
	}
	if err := u.Amount.Validate(); err != nil {
		return err
	}
	if err := u.Date.Validate(); err != nil {
		return err
	}
	if len(u.Description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}

// Month returns the calendar month of the transaction date, or 0 when the
// record has no date. Undated records belong to no month.
func (t Transaction) Month() time.Month {
	if t.Date.IsZero() {
		return 0
	}
	return t.Date.Month()
}

// IsNaN reports whether the amount came from non-numeric input.
func (a Amount) IsNaN() bool {
	return math.IsNaN(float64(a))
}

func (a Amount) Validate() error {
	f := float64(a)
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return ErrInvalidAmount
	}
	return nil
}
