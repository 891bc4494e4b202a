// Package report turns raw transactions into the totals and chart series
// shown on the reports screen.
package report

import (
	"time"

	"fintrack/internal/core"
)

// MonthlyTotals returns exactly twelve entries, January through December.
// Records are grouped by calendar month only: the same month of different
// years lands in the same bucket.
func MonthlyTotals(records []core.Transaction) []core.MonthTotal {
	totals := make([]core.MonthTotal, 12)
	for i := range totals {
		m := time.Month(i + 1)
		totals[i] = core.MonthTotal{Month: m, Label: m.String()[:3]}
	}
	for _, r := range records {
		m := r.Month()
		if m < time.January || m > time.December {
			continue
		}
		switch r.Type {
		case core.TypeIncome:
			totals[m-1].Income += r.Amount
		case core.TypeExpense:
			totals[m-1].Expense += r.Amount
		}
	}
	return totals
}

// CategoryTotals sums amounts per exact category string, in first-seen order.
// Type is ignored; callers filter beforehand.
func CategoryTotals(records []core.Transaction) []core.CategoryTotal {
	index := make(map[string]int)
	var totals []core.CategoryTotal
	for _, r := range records {
		i, ok := index[r.Category]
		if !ok {
			i = len(totals)
			index[r.Category] = i
			totals = append(totals, core.CategoryTotal{Name: r.Category})
		}
		totals[i].Total += r.Amount
	}
	return totals
}

// CategoryTotal sums the amounts of records whose category equals name.
func CategoryTotal(records []core.Transaction, name string) core.Amount {
	var total core.Amount
	for _, r := range records {
		if r.Category == name {
			total += r.Amount
		}
	}
	return total
}

// Totals computes the owner overview: income, expense and their difference.
func Totals(records []core.Transaction) core.Overview {
	var o core.Overview
	for _, r := range records {
		switch r.Type {
		case core.TypeIncome:
			o.TotalIncome += r.Amount
		case core.TypeExpense:
			o.TotalExpense += r.Amount
		}
	}
	o.TotalBalance = o.TotalIncome - o.TotalExpense
	return o
}
