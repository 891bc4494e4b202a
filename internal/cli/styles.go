package cli

import (
	"github.com/charmbracelet/lipgloss"

	"fintrack/internal/report"
)

var (
	IncomeColor  = lipgloss.Color(report.IncomeColor)
	ExpenseColor = lipgloss.Color(report.ExpenseColor)
	ErrorColor   = lipgloss.Color("#EF4444")
	SubtleColor  = lipgloss.Color("#6B7280")

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ExpenseColor).
			MarginBottom(1)

	SuccessStyle = lipgloss.NewStyle().Foreground(IncomeColor)
	ErrorStyle   = lipgloss.NewStyle().Foreground(ErrorColor)
	SubtleStyle  = lipgloss.NewStyle().Foreground(SubtleColor)
	BoldStyle    = lipgloss.NewStyle().Bold(true)
	IncomeStyle  = lipgloss.NewStyle().Foreground(IncomeColor)
	ExpenseStyle = lipgloss.NewStyle().Foreground(ExpenseColor)

	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderBottom(true).
				BorderForeground(SubtleColor)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(SubtleColor).
			Padding(0, 2)
)

// FormatTitle renders a section heading.
func FormatTitle(s string) string {
	return TitleStyle.Render(s)
}

func FormatSuccess(s string) string {
	return SuccessStyle.Render("✓ " + s)
}

func FormatError(s string) string {
	return ErrorStyle.Render("✗ " + s)
}

// Swatch renders a colored block, used as a chart legend marker or bar.
func Swatch(color string, width int) string {
	if width < 1 {
		return ""
	}
	block := make([]rune, width)
	for i := range block {
		block[i] = '█'
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(string(block))
}
