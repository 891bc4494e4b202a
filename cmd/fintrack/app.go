package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"fintrack/internal/cli"
	"fintrack/internal/client"
	"fintrack/internal/identity"
	"fintrack/internal/log"
	"fintrack/internal/session"
)

const (
	defaultAPIURL = "http://localhost:8082"
	refreshMargin = 30 * time.Second
)

var version = "dev"

// app carries what every command needs. Tests build it around an
// httptest API and a temporary credentials file.
type app struct {
	in     *bufio.Reader
	out    io.Writer
	v      *viper.Viper
	now    func() time.Time
	logger *log.Logger

	store  *cli.CredentialStore
	apiURL string
	client *client.Client
}

func newApp(in io.Reader, out io.Writer) *app {
	return &app{
		in:  bufio.NewReader(in),
		out: out,
		v:   viper.New(),
		now: time.Now,
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "fintrack",
		Short:         "Track income and expenses from the terminal",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (default: $HOME/.config/fintrack/config.yaml)")
	flags.String("api", "", "transactions API base URL (default "+defaultAPIURL+")")
	flags.String("credentials", "", "credentials file (default: $HOME/.config/fintrack/credentials.json)")
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")
	_ = a.v.BindPFlag("api_url", flags.Lookup("api"))
	_ = a.v.BindPFlag("credentials", flags.Lookup("credentials"))
	_ = a.v.BindPFlag("log_level", flags.Lookup("log-level"))

	root.AddCommand(
		loginCmd(a),
		logoutCmd(a),
		whoamiCmd(a),
		listCmd(a),
		addCmd(a),
		updateCmd(a),
		deleteCmd(a),
		showCmd(a),
		reportCmd(a),
		overviewCmd(a),
	)
	return root
}

// init resolves configuration from flags, FINTRACK_* variables, .env and
// the optional config file, in decreasing priority.
func (a *app) init(cmd *cobra.Command) error {
	_ = godotenv.Load()

	a.v.SetEnvPrefix("FINTRACK")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	if file, _ := cmd.Flags().GetString("config"); file != "" {
		a.v.SetConfigFile(file)
	} else if home, err := os.UserHomeDir(); err == nil {
		a.v.AddConfigPath(filepath.Join(home, ".config", "fintrack"))
		a.v.SetConfigName("config")
		a.v.SetConfigType("yaml")
	}
	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	level, err := log.ParseLevel(a.v.GetString("log_level"))
	if err != nil {
		return err
	}
	a.logger = log.New(log.Config{
		Component: log.ComponentCLI,
		Handler:   log.NewHandler(os.Stderr, "text", level),
	})

	path := a.v.GetString("credentials")
	if path == "" {
		if path, err = cli.DefaultCredentialsPath(); err != nil {
			return err
		}
	}
	a.store = cli.NewCredentialStore(path)

	a.apiURL = a.v.GetString("api_url")
	if a.apiURL == "" {
		a.apiURL = os.Getenv("API_BASE_URL")
	}
	if a.apiURL == "" {
		// Fall back to the API the stored tokens came from.
		if _, stored, err := a.store.Load(); err == nil && stored != "" {
			a.apiURL = stored
		}
	}
	if a.apiURL == "" {
		a.apiURL = defaultAPIURL
	}
	a.apiURL = strings.TrimRight(a.apiURL, "/")
	a.client = client.New(a.apiURL, client.WithLogger(a.logger))
	return nil
}

// signedIn returns the stored user, refreshing its ID token first when it
// is about to expire. The session object tracks the refresh so a failed
// renewal leaves the user signed out.
func (a *app) signedIn(ctx context.Context) (identity.User, error) {
	u, _, err := a.store.Load()
	if err != nil {
		return identity.User{}, err
	}

	sess := session.New("cli")
	sess.Begin()
	sess.Resolve(&u)
	if !sess.NeedsRefresh(a.now(), refreshMargin) {
		return u, nil
	}

	a.logger.DebugContext(ctx, "Refreshing ID token", "expires_at", u.ExpiresAt)
	sess.Begin()
	renewed, err := a.client.Refresh(ctx, u.RefreshToken)
	if err != nil {
		sess.Clear()
		if errors.Is(err, client.ErrNoCredential) || client.IsStatus(err, http.StatusUnauthorized) {
			_ = a.store.Delete()
			return identity.User{}, fmt.Errorf("session expired: %w", cli.ErrNotLoggedIn)
		}
		return identity.User{}, fmt.Errorf("refresh credentials: %w", err)
	}
	sess.Resolve(&renewed)

	if err := a.store.Save(renewed, a.apiURL); err != nil {
		return identity.User{}, err
	}
	return renewed, nil
}

// explain rewrites API errors into something actionable at the terminal.
func (a *app) explain(err error) error {
	var te *client.TransportError
	switch {
	case err == nil:
		return nil
	case client.IsStatus(err, http.StatusUnauthorized):
		return fmt.Errorf("the API rejected your credentials; run 'fintrack login' again: %w", err)
	case client.IsStatus(err, http.StatusNotFound):
		return fmt.Errorf("transaction not found: %w", err)
	case client.IsStatus(err, http.StatusForbidden):
		return fmt.Errorf("that transaction belongs to someone else: %w", err)
	case errors.As(err, &te):
		return fmt.Errorf("could not reach %s: %w", a.apiURL, err)
	default:
		return err
	}
}

// prompt reads one line from the input after printing label.
func (a *app) prompt(label string) (string, error) {
	fmt.Fprint(a.out, label)
	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(strings.TrimSpace(label), ":"), err)
	}
	return strings.TrimSpace(line), nil
}
