package main

import (
	"github.com/spf13/cobra"

	"fintrack/internal/core"
	"fintrack/internal/report"
)

func reportCmd(a *app) *cobra.Command {
	var typeFlag, monthFlag string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Category and monthly breakdown",
		Long: `Show the category totals of one transaction type and the income and
expense totals per calendar month. Months of different years are grouped
together.`,
		Example: `  fintrack report
  fintrack report --type income --month 3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := core.ParseType(typeFlag)
			if err != nil {
				return err
			}
			month, err := report.ParseMonth(monthFlag)
			if err != nil {
				return err
			}

			user, err := a.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			records, err := a.client.List(cmd.Context(), user.Email, user.IDToken)
			if err != nil {
				return a.explain(err)
			}
			return writeReport(a.out, report.Compose(records, report.Options{Type: t, Month: month}))
		},
	}
	cmd.Flags().StringVarP(&typeFlag, "type", "t", "expense", "income or expense")
	cmd.Flags().StringVarP(&monthFlag, "month", "m", "", "month number 1-12 (default all)")
	return cmd
}

func overviewCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "overview",
		Short: "Total income, expenses and balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := a.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			o, err := a.client.Overview(cmd.Context(), user.IDToken)
			if err != nil {
				return a.explain(err)
			}
			return writeOverview(a.out, o)
		},
	}
}
