package report

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"fintrack/internal/core"
)

// SortKey selects the field transactions are ordered by.
type SortKey int

const (
	SortByDate SortKey = iota
	SortByAmount
)

func (k SortKey) String() string {
	if k == SortByAmount {
		return "amount"
	}
	return "date"
}

// ParseSortKey accepts "date" and "amount". An empty string means date.
func ParseSortKey(s string) (SortKey, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "date":
		return SortByDate, nil
	case "amount":
		return SortByAmount, nil
	default:
		return SortByDate, fmt.Errorf("unknown sort key %q", s)
	}
}

// ParseMonth parses a 1-based month number. Empty input means no month.
func ParseMonth(s string) (time.Month, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 12 {
		return 0, fmt.Errorf("invalid month %q", s)
	}
	return time.Month(n), nil
}

// FilterByType keeps the records of type t, preserving order.
func FilterByType(records []core.Transaction, t core.Type) []core.Transaction {
	out := make([]core.Transaction, 0, len(records))
	for _, r := range records {
		if r.Type == t {
			out = append(out, r)
		}
	}
	return out
}

// FilterByMonth keeps the records dated in month m, preserving order. A zero
// month means no filter and returns records itself.
func FilterByMonth(records []core.Transaction, m time.Month) []core.Transaction {
	if m == 0 {
		return records
	}
	out := make([]core.Transaction, 0, len(records))
	for _, r := range records {
		if r.Month() == m {
			out = append(out, r)
		}
	}
	return out
}

// SortTransactions returns a new slice ordered descending by key. The sort is
// stable and NaN amounts are placed after every number.
func SortTransactions(records []core.Transaction, key SortKey) []core.Transaction {
	out := slices.Clone(records)
	switch key {
	case SortByAmount:
		slices.SortStableFunc(out, func(a, b core.Transaction) int {
			an, bn := a.Amount.IsNaN(), b.Amount.IsNaN()
			switch {
			case an && bn:
				return 0
			case an:
				return 1
			case bn:
				return -1
			}
			return cmp.Compare(b.Amount, a.Amount)
		})
	default:
		slices.SortStableFunc(out, func(a, b core.Transaction) int {
			return b.Date.Compare(a.Date.Time)
		})
	}
	return out
}
