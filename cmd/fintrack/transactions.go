package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"fintrack/internal/cli"
	"fintrack/internal/client"
	"fintrack/internal/core"
	"fintrack/internal/report"
)

func listCmd(a *app) *cobra.Command {
	var sortBy string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List your transactions",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := report.ParseSortKey(sortBy)
			if err != nil {
				return err
			}
			u, err := a.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			records, err := a.client.List(cmd.Context(), u.Email, u.IDToken)
			if err != nil {
				return a.explain(err)
			}
			return writeTransactions(a.out, report.SortTransactions(records, key))
		},
	}
	cmd.Flags().StringVar(&sortBy, "sort", "date", "sort by date or amount (newest/largest first)")
	return cmd
}

// transactionFlags are shared by add and update.
type transactionFlags struct {
	txType      string
	category    string
	amount      string
	date        string
	description string
}

func (f *transactionFlags) register(fs *pflag.FlagSet, defaultType, defaultDate string) {
	fs.StringVar(&f.txType, "type", defaultType, "income or expense")
	fs.StringVarP(&f.category, "category", "c", "", "category name")
	fs.StringVarP(&f.amount, "amount", "a", "", "non-negative amount, e.g. 12.50")
	fs.StringVarP(&f.date, "date", "d", defaultDate, "date as YYYY-MM-DD")
	fs.StringVar(&f.description, "description", "", "free text")
}

func (f *transactionFlags) anyChanged(fs *pflag.FlagSet) bool {
	for _, name := range []string{"type", "category", "amount", "date", "description"} {
		if fs.Changed(name) {
			return true
		}
	}
	return false
}

// overlay applies the flags the user actually set onto base.
func (f *transactionFlags) overlay(fs *pflag.FlagSet, base core.TransactionUpdate) (core.TransactionUpdate, error) {
	var errs []string
	if fs.Changed("type") {
		t, err := core.ParseType(f.txType)
		if err != nil {
			errs = append(errs, err.Error())
		}
		base.Type = t
	}
	if fs.Changed("category") {
		base.Category = strings.TrimSpace(f.category)
	}
	if fs.Changed("amount") {
		amount, err := core.ParseAmount(f.amount)
		if err != nil {
			errs = append(errs, err.Error())
		}
		base.Amount = amount
	}
	if fs.Changed("date") {
		d, err := core.ParseDate(f.date)
		if err != nil {
			errs = append(errs, err.Error())
		}
		base.Date = d
	}
	if fs.Changed("description") {
		base.Description = strings.TrimSpace(f.description)
	}

	if len(errs) > 0 {
		return base, fmt.Errorf("invalid transaction: %s", strings.Join(errs, "; "))
	}
	if err := base.Validate(); err != nil {
		return base, fmt.Errorf("invalid transaction: %w", err)
	}
	return base, nil
}

func addCmd(a *app) *cobra.Command {
	var f transactionFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a transaction",
		Example: `  fintrack add --type expense -c food -a 12.50 --description lunch
  fintrack add --type income -c salary -a 2400 -d 2024-03-31`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fs := cmd.Flags()
			// Unset flags keep their defaults: an expense dated today.
			base := core.TransactionUpdate{Type: core.TypeExpense}
			if d, err := core.ParseDate(f.date); err == nil {
				base.Date = d
			}
			u, err := f.overlay(fs, base)
			if err != nil {
				return err
			}

			user, err := a.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			id, err := a.client.Create(cmd.Context(), core.Transaction{}.Apply(u), user.IDToken)
			if err != nil {
				return a.explain(err)
			}
			fmt.Fprintln(a.out, cli.FormatSuccess("Transaction added "+cli.SubtleStyle.Render(id)))
			return nil
		},
	}
	f.register(cmd.Flags(), "expense", a.now().Format(core.DateLayout))
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func updateCmd(a *app) *cobra.Command {
	var f transactionFlags
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a transaction",
		Long:  "Only the flags given are changed; the other fields keep their stored values.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := cmd.Flags()
			if !f.anyChanged(fs) {
				return fmt.Errorf("nothing to update: pass at least one of --type, --category, --amount, --date, --description")
			}
			user, err := a.signedIn(cmd.Context())
			if err != nil {
				return err
			}

			current, err := a.client.Get(cmd.Context(), args[0], user.IDToken)
			if err != nil {
				return a.explain(err)
			}
			u, err := f.overlay(fs, current.Transaction.Update())
			if err != nil {
				return err
			}
			if err := a.client.Update(cmd.Context(), args[0], u, user.IDToken); err != nil {
				return a.explain(err)
			}
			fmt.Fprintln(a.out, cli.FormatSuccess(client.MessageUpdated))
			return nil
		},
	}
	f.register(cmd.Flags(), "", "")
	return cmd
}

func deleteCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a transaction",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.signedIn(cmd.Context())
			if err != nil {
				return err
			}

			if !yes {
				detail, err := a.client.Get(cmd.Context(), args[0], user.IDToken)
				if err != nil {
					return a.explain(err)
				}
				if err := writeDetail(a.out, detail); err != nil {
					return err
				}
				answer, err := a.prompt("Delete this transaction? [y/N] ")
				if err != nil {
					return err
				}
				if answer = strings.ToLower(answer); answer != "y" && answer != "yes" {
					fmt.Fprintln(a.out, cli.SubtleStyle.Render("Cancelled"))
					return nil
				}
			}

			if err := a.client.Delete(cmd.Context(), args[0], user.IDToken); err != nil {
				return a.explain(err)
			}
			fmt.Fprintln(a.out, cli.FormatSuccess(client.MessageDeleted))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func showCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a transaction and its category total",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			detail, err := a.client.Get(cmd.Context(), args[0], user.IDToken)
			if err != nil {
				return a.explain(err)
			}
			return writeDetail(a.out, detail)
		},
	}
}
