package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ConfigFileEnv names the optional YAML/TOML/JSON config file. Environment
// variables always win over the file.
const ConfigFileEnv = "FINTRACK_CONFIG"

var (
	validBackends         = []string{"memory", "sqlite", "postgres"}
	validIdentityBackends = []string{"memory", "firebase"}
	validLogFormats       = []string{"text", "json"}
	validLogLevels        = []string{"debug", "info", "warn", "error"}
)

type Config struct {
	// HTTP servers
	Port       string
	APIPort    string
	APIBaseURL string

	// Storage
	DataBackend    string
	SQLiteDBPath   string
	PostgresURL    string
	MemorySeedFile string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Identity
	IdentityBackend         string
	FirebaseAPIKey          string
	GoogleOAuthClientID     string
	GoogleOAuthClientSecret string
	GoogleOAuthRedirectURL  string
	SessionTTL              time.Duration
	SecureCookies           bool

	// Google Sheets journal
	JournalBackend           string
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Logging
	LogLevel  string
	LogFormat string

	// Middleware
	RateLimitPerMinute int

	// Worker
	SyncBatchSize int
	SyncInterval  time.Duration
}

func defaults(v *viper.Viper) {
	v.SetDefault("PORT", "8081")
	v.SetDefault("API_PORT", "8082")
	v.SetDefault("API_BASE_URL", "http://localhost:8082")
	v.SetDefault("DATA_BACKEND", "memory")
	v.SetDefault("SQLITE_DB_PATH", "./data/fintrack.db")
	v.SetDefault("AMQP_EXCHANGE", "fintrack")
	v.SetDefault("AMQP_QUEUE", "transaction_events")
	v.SetDefault("IDENTITY_BACKEND", "memory")
	v.SetDefault("SESSION_TTL", "24h")
	v.SetDefault("SECURE_COOKIES", false)
	v.SetDefault("JOURNAL_BACKEND", "google")
	v.SetDefault("GOOGLE_SHEET_NAME", "Journal")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("RATE_LIMIT_PER_MINUTE", "60")
	v.SetDefault("SYNC_BATCH_SIZE", "10")
	v.SetDefault("SYNC_INTERVAL", "2s")
}

// Load reads defaults, the optional config file named by FINTRACK_CONFIG and
// the environment, in increasing priority.
func Load() (*Config, error) {
	v := viper.New()
	defaults(v)
	v.AutomaticEnv()

	if path := strings.TrimSpace(os.Getenv(ConfigFileEnv)); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		Port:       getString(v, "PORT"),
		APIPort:    getString(v, "API_PORT"),
		APIBaseURL: strings.TrimRight(getString(v, "API_BASE_URL"), "/"),

		DataBackend:    strings.ToLower(getString(v, "DATA_BACKEND")),
		SQLiteDBPath:   getString(v, "SQLITE_DB_PATH"),
		PostgresURL:    getString(v, "POSTGRES_URL"),
		MemorySeedFile: getString(v, "MEMORY_SEED_FILE"),

		AMQPURL:      getString(v, "AMQP_URL"),
		AMQPExchange: getString(v, "AMQP_EXCHANGE"),
		AMQPQueue:    getString(v, "AMQP_QUEUE"),

		IdentityBackend:         strings.ToLower(getString(v, "IDENTITY_BACKEND")),
		FirebaseAPIKey:          getString(v, "FIREBASE_API_KEY"),
		GoogleOAuthClientID:     getString(v, "GOOGLE_OAUTH_CLIENT_ID"),
		GoogleOAuthClientSecret: getString(v, "GOOGLE_OAUTH_CLIENT_SECRET"),
		GoogleOAuthRedirectURL:  getString(v, "GOOGLE_OAUTH_REDIRECT_URL"),
		SessionTTL:              getDuration(v, "SESSION_TTL", 24*time.Hour),
		SecureCookies:           v.GetBool("SECURE_COOKIES"),

		JournalBackend:           strings.ToLower(getString(v, "JOURNAL_BACKEND")),
		GoogleSpreadsheetID:      getString(v, "GOOGLE_SPREADSHEET_ID"),
		GoogleSheetName:          getString(v, "GOOGLE_SHEET_NAME"),
		GoogleServiceAccountJSON: getString(v, "GOOGLE_SERVICE_ACCOUNT_JSON"),
		GoogleServiceAccountFile: getString(v, "GOOGLE_SERVICE_ACCOUNT_FILE"),

		LogLevel:  strings.ToLower(getString(v, "LOG_LEVEL")),
		LogFormat: strings.ToLower(getString(v, "LOG_FORMAT")),

		RateLimitPerMinute: getInt(v, "RATE_LIMIT_PER_MINUTE", 60),

		SyncBatchSize: getInt(v, "SYNC_BATCH_SIZE", 10),
		SyncInterval:  getDuration(v, "SYNC_INTERVAL", 2*time.Second),
	}

	return cfg, nil
}

// GoogleSignInEnabled reports whether the OAuth client for Google sign-in is
// configured.
func (c *Config) GoogleSignInEnabled() bool {
	return c.GoogleOAuthClientID != "" && c.GoogleOAuthClientSecret != "" && c.GoogleOAuthRedirectURL != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	errors = append(errors, validatePort("port", c.Port)...)
	errors = append(errors, validatePort("API port", c.APIPort)...)

	if c.APIBaseURL != "" {
		if u, err := url.Parse(c.APIBaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid API base URL '%s': must be an absolute http(s) URL", c.APIBaseURL))
		}
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.DataBackend == "postgres" {
		if c.PostgresURL == "" {
			errors = append(errors, "POSTGRES_URL is required when using postgres backend")
		} else if u, err := url.Parse(c.PostgresURL); err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			errors = append(errors, "invalid POSTGRES_URL: must use the postgres:// or postgresql:// scheme")
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if !slices.Contains(validIdentityBackends, c.IdentityBackend) {
		errors = append(errors, fmt.Sprintf("invalid identity backend '%s': must be one of %v", c.IdentityBackend, validIdentityBackends))
	}
	if c.IdentityBackend == "firebase" && c.FirebaseAPIKey == "" {
		errors = append(errors, "FIREBASE_API_KEY is required when using firebase identity backend")
	}

	oauthSet := 0
	for _, s := range []string{c.GoogleOAuthClientID, c.GoogleOAuthClientSecret, c.GoogleOAuthRedirectURL} {
		if s != "" {
			oauthSet++
		}
	}
	if oauthSet != 0 && oauthSet != 3 {
		errors = append(errors, "Google sign-in needs GOOGLE_OAUTH_CLIENT_ID, GOOGLE_OAUTH_CLIENT_SECRET and GOOGLE_OAUTH_REDIRECT_URL together")
	}

	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}

	if !slices.Contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
	}
	if !slices.Contains(validLogFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of %v", c.LogFormat, validLogFormats))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	if c.SyncBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at least 1", c.SyncBatchSize))
	} else if c.SyncBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at most 1000", c.SyncBatchSize))
	}

	if c.SyncInterval < 100*time.Millisecond {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 100ms", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateWorker adds the requirements of the export worker to Validate.
func (c *Config) ValidateWorker() error {
	var errors []string
	if err := c.Validate(); err != nil {
		errors = append(errors, strings.TrimPrefix(err.Error(), "configuration validation failed:\n- "))
	}
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP_URL is required by the worker")
	}
	switch c.JournalBackend {
	case "memory":
		// Dry run: rows stay in the worker process.
	case "", "google":
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "GOOGLE_SPREADSHEET_ID is required by the worker")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for the worker")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid journal backend '%s': must be 'google' or 'memory'", c.JournalBackend))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func validatePort(name, value string) []string {
	port, err := strconv.Atoi(value)
	if err != nil {
		return []string{fmt.Sprintf("invalid %s '%s': must be a number", name, value)}
	}
	if port < 1 || port > 65535 {
		return []string{fmt.Sprintf("invalid %s %d: must be between 1 and 65535", name, port)}
	}
	return nil
}

func getString(v *viper.Viper, key string) string {
	return strings.TrimSpace(v.GetString(key))
}

// getInt falls back to defaultValue on unparsable input.
func getInt(v *viper.Viper, key string, defaultValue int) int {
	if i, err := strconv.Atoi(getString(v, key)); err == nil {
		return i
	}
	return defaultValue
}

func getDuration(v *viper.Viper, key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(getString(v, key)); err == nil {
		return d
	}
	return defaultValue
}
