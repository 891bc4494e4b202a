package main

import (
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"

	"fintrack/internal/cli"
	"fintrack/internal/core"
	"fintrack/internal/report"
)

const barWidth = 30

func amountText(a core.Amount) string {
	if a.IsNaN() {
		return "n/a"
	}
	return a.String()
}

func signedText(tx core.Transaction) string {
	if tx.Type == core.TypeIncome {
		return cli.IncomeStyle.Render("+" + amountText(tx.Amount))
	}
	return cli.ExpenseStyle.Render("-" + amountText(tx.Amount))
}

func writeTransactions(w io.Writer, records []core.Transaction) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, cli.SubtleStyle.Render("No transactions yet. Use 'fintrack add' to record one."))
		return err
	}

	fmt.Fprintln(w, cli.FormatTitle("My Transactions"))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
		cli.BoldStyle.Render("DATE"),
		cli.BoldStyle.Render("CATEGORY"),
		cli.BoldStyle.Render("AMOUNT"),
		cli.BoldStyle.Render("DESCRIPTION"),
		cli.BoldStyle.Render("ID"))
	for _, tx := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			tx.Date.String(),
			tx.Category,
			signedText(tx),
			oneLine(tx.Description, 40),
			cli.SubtleStyle.Render(tx.ID))
	}
	return tw.Flush()
}

func writeDetail(w io.Writer, d core.Detail) error {
	tx := d.Transaction
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n", cli.BoldStyle.Render(tx.Category), signedText(tx))
	fmt.Fprintf(&b, "Type         %s\n", tx.Type.Label())
	fmt.Fprintf(&b, "Date         %s\n", tx.Date.String())
	if tx.Description != "" {
		fmt.Fprintf(&b, "Description  %s\n", tx.Description)
	}
	fmt.Fprintf(&b, "In %-9s %s\n", tx.Category, amountText(d.CategoryTotal))
	fmt.Fprintf(&b, "%s", cli.SubtleStyle.Render(tx.ID))
	_, err := fmt.Fprintln(w, cli.BoxStyle.Render(b.String()))
	return err
}

func writeOverview(w io.Writer, o core.Overview) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Income\t%s\n", cli.IncomeStyle.Render(amountText(o.TotalIncome)))
	fmt.Fprintf(tw, "Expenses\t%s\n", cli.ExpenseStyle.Render(amountText(o.TotalExpense)))
	fmt.Fprintf(tw, "Balance\t%s\n", cli.BoldStyle.Render(amountText(o.TotalBalance)))
	return tw.Flush()
}

// writeReport draws the category breakdown as horizontal bars scaled to the
// largest slice, followed by the monthly table.
func writeReport(w io.Writer, r report.Report) error {
	if r.Empty {
		_, err := fmt.Fprintln(w, cli.SubtleStyle.Render("No transactions to report yet."))
		return err
	}

	fmt.Fprintln(w, cli.FormatTitle(r.Title))
	if len(r.Categories) == 0 {
		fmt.Fprintln(w, cli.SubtleStyle.Render("Nothing in this selection."))
	}
	largest := 0.0
	for _, s := range r.Categories {
		if v := float64(s.Value); !math.IsNaN(v) && v > largest {
			largest = v
		}
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, s := range r.Categories {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Name, cli.Swatch(s.Color, barLength(float64(s.Value), largest)), amountText(s.Value))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, cli.FormatTitle("By month"))
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%s\t%s\n",
		cli.BoldStyle.Render("MONTH"),
		cli.IncomeStyle.Render("INCOME"),
		cli.ExpenseStyle.Render("EXPENSES"))
	for _, m := range r.Monthly {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", m.Label, amountText(m.Income), amountText(m.Expense))
	}
	return tw.Flush()
}

func barLength(v, largest float64) int {
	if largest <= 0 || math.IsNaN(v) || v <= 0 {
		return 0
	}
	n := int(math.Round(v / largest * barWidth))
	if n == 0 {
		n = 1
	}
	return n
}

func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
