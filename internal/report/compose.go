package report

import (
	"time"

	"fintrack/internal/core"
)

// Chart colors.
const (
	IncomeColor  = "#06B6D4"
	ExpenseColor = "#9333EA"

	PieInnerRadius = 70
	PieOuterRadius = 110
)

var (
	IncomeSlices  = []string{"#06B6D4", "#16A34A", "#F59E0B", "#3B82F6", "#10B981"}
	ExpenseSlices = []string{"#9333EA", "#EF4444", "#F97316", "#EAB308", "#8B5CF6"}
)

// Options are the user-selected report filters. A zero Month means all months.
type Options struct {
	Type  core.Type
	Month time.Month
}

// Slice is one pie segment.
type Slice struct {
	Name  string      `json:"name"`
	Value core.Amount `json:"value"`
	Color string      `json:"color"`
}

// Report is the chart-ready view of a set of transactions.
type Report struct {
	Empty       bool              `json:"empty"`
	Title       string            `json:"title,omitempty"`
	Type        string            `json:"type,omitempty"`
	Month       int               `json:"month,omitempty"`
	BaseColor   string            `json:"baseColor,omitempty"`
	InnerRadius int               `json:"innerRadius,omitempty"`
	OuterRadius int               `json:"outerRadius,omitempty"`
	Categories  []Slice           `json:"categories,omitempty"`
	Monthly     []core.MonthTotal `json:"monthly,omitempty"`
	BarColors   map[string]string `json:"barColors,omitempty"`
}

// Compose builds the pie (category totals of the selected type and month)
// and the bar series (income and expense per month, restricted to the
// selected month when one is set). Without records it returns the empty
// state and builds no series.
func Compose(records []core.Transaction, opts Options) Report {
	if len(records) == 0 {
		return Report{Empty: true}
	}

	t := opts.Type
	if !t.Valid() {
		t = core.TypeExpense
	}

	palette, base := ExpenseSlices, ExpenseColor
	if t == core.TypeIncome {
		palette, base = IncomeSlices, IncomeColor
	}

	filtered := FilterByMonth(FilterByType(records, t), opts.Month)
	totals := CategoryTotals(filtered)
	slices := make([]Slice, len(totals))
	for i, c := range totals {
		slices[i] = Slice{Name: c.Name, Value: c.Total, Color: palette[i%len(palette)]}
	}

	monthly := MonthlyTotals(records)
	if opts.Month >= time.January && opts.Month <= time.December {
		monthly = monthly[opts.Month-1 : opts.Month]
	}

	return Report{
		Title:       t.Label() + " by Category",
		Type:        t.String(),
		Month:       int(opts.Month),
		BaseColor:   base,
		InnerRadius: PieInnerRadius,
		OuterRadius: PieOuterRadius,
		Categories:  slices,
		Monthly:     monthly,
		BarColors: map[string]string{
			"income":  IncomeColor,
			"expense": ExpenseColor,
		},
	}
}
