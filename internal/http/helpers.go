package http

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"fintrack/internal/core"
	"fintrack/internal/session"
)

var suggestedCategories = []string{"salary", "food", "home", "transport", "shopping", "other"}

// formatAmount renders two decimals; non-numeric amounts show as n/a.
func formatAmount(a core.Amount) string {
	if a.IsNaN() {
		return "n/a"
	}
	return a.String()
}

// signedAmount prefixes income with + and expenses with -.
func signedAmount(tx core.Transaction) string {
	sign := "-"
	if tx.Type == core.TypeIncome {
		sign = "+"
	}
	return sign + formatAmount(tx.Amount)
}

func formatDate(d core.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.Format("Jan 2, 2006")
}

func typeClass(t core.Type) string {
	switch t {
	case core.TypeIncome:
		return "income"
	case core.TypeExpense:
		return "expense"
	default:
		return "unknown"
	}
}

func noticeClass(kind string) string {
	if kind == session.NoticeError {
		return "notice notice-error"
	}
	return "notice notice-success"
}

// initials is the avatar fallback when the user has no photo.
func initials(name string) string {
	var out []rune
	for _, field := range strings.Fields(name) {
		r := []rune(field)
		out = append(out, unicode.ToUpper(r[0]))
		if len(out) == 2 {
			break
		}
	}
	if len(out) == 0 {
		return "?"
	}
	return string(out)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

type monthOption struct {
	Value string
	Label string
}

func monthOptions() []monthOption {
	opts := make([]monthOption, 0, 12)
	for m := time.January; m <= time.December; m++ {
		opts = append(opts, monthOption{Value: strconv.Itoa(int(m)), Label: m.String()})
	}
	return opts
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
