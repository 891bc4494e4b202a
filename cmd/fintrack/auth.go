package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"fintrack/internal/cli"
	"fintrack/internal/client"
	"fintrack/internal/identity"
)

func loginCmd(a *app) *cobra.Command {
	var email, password, name string
	var signup bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store credentials",
		Long: `Sign in with email and password. The ID and refresh tokens are stored in
the credentials file and renewed automatically before they expire.

Use --signup to create the account first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if email == "" {
				if email, err = a.prompt("Email: "); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = a.prompt("Password: "); err != nil {
					return err
				}
			}

			var user identity.User
			if signup {
				user, err = a.client.SignUp(cmd.Context(), email, password, name)
			} else {
				user, err = a.client.SignIn(cmd.Context(), email, password)
			}
			if client.IsStatus(err, http.StatusUnauthorized) {
				return identity.ErrInvalidCredentials
			}
			if err != nil {
				return a.explain(err)
			}
			if err := a.store.Save(user, a.apiURL); err != nil {
				return err
			}

			fmt.Fprintln(a.out, cli.FormatSuccess(fmt.Sprintf("Signed in as %s <%s>", user.Name(), user.Email)))
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when omitted)")
	cmd.Flags().BoolVar(&signup, "signup", false, "create the account before signing in")
	cmd.Flags().StringVar(&name, "name", "", "display name for --signup")
	return cmd
}

func logoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget stored credentials",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := a.store.Delete(); err != nil {
				return err
			}
			fmt.Fprintln(a.out, cli.FormatSuccess("Signed out"))
			return nil
		},
	}
}

func whoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, err := a.signedIn(cmd.Context())
			if errors.Is(err, cli.ErrNotLoggedIn) {
				fmt.Fprintln(a.out, cli.SubtleStyle.Render("Not logged in"))
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(a.out, cli.BoldStyle.Render(u.Name()))
			fmt.Fprintln(a.out, u.Email)
			fmt.Fprintln(a.out, cli.SubtleStyle.Render(fmt.Sprintf("API %s, token valid until %s",
				a.apiURL, u.ExpiresAt.Local().Format("2006-01-02 15:04"))))
			return nil
		},
	}
}
