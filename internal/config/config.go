// Package config collects the settings shared by every datamart command.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/vegasq/datamart/internal/auth"
)

// Log formats accepted by --log-format.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Config holds the process settings. Flags binds every field to a command
// line flag and an environment variable.
type Config struct {
	DataDir         string
	ListenAddr      string
	ShutdownTimeout time.Duration

	JWTSecret      string
	TokenTTL       time.Duration
	FirebaseAPIKey string
	IdentityURL    string
	VerifyIDToken  bool

	LogLevel  string
	LogFormat string
}

// Flags returns the flags populating c.
func (c *Config) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "data-dir",
			Usage:       "directory holding the parquet datasets",
			Value:       "data",
			Sources:     cli.EnvVars("DATA_DIR"),
			Destination: &c.DataDir,
		},
		&cli.StringFlag{
			Name:        "listen",
			Usage:       "address the HTTP API listens on",
			Value:       ":8000",
			Sources:     cli.EnvVars("LISTEN_ADDR"),
			Destination: &c.ListenAddr,
		},
		&cli.DurationFlag{
			Name:        "shutdown-timeout",
			Usage:       "time allowed for in-flight requests on shutdown",
			Value:       10 * time.Second,
			Sources:     cli.EnvVars("SHUTDOWN_TIMEOUT"),
			Destination: &c.ShutdownTimeout,
		},
		&cli.StringFlag{
			Name:        "jwt-secret",
			Usage:       "HMAC secret signing session tokens",
			Sources:     cli.EnvVars("JWT_SECRET"),
			Destination: &c.JWTSecret,
		},
		&cli.DurationFlag{
			Name:        "token-ttl",
			Usage:       "lifetime of issued session tokens",
			Value:       auth.DefaultTokenTTL,
			Sources:     cli.EnvVars("TOKEN_TTL"),
			Destination: &c.TokenTTL,
		},
		&cli.StringFlag{
			Name:        "firebase-api-key",
			Usage:       "web API key of the Firebase project",
			Sources:     cli.EnvVars("FIREBASE_API_KEY"),
			Destination: &c.FirebaseAPIKey,
		},
		&cli.StringFlag{
			Name:        "identity-url",
			Usage:       "base URL of the identity toolkit REST API",
			Value:       auth.DefaultIdentityURL,
			Sources:     cli.EnvVars("IDENTITY_URL"),
			Destination: &c.IdentityURL,
		},
		&cli.BoolFlag{
			Name:        "verify-id-token",
			Usage:       "re-check the provider ID token on every request",
			Value:       true,
			Sources:     cli.EnvVars("VERIFY_ID_TOKEN"),
			Destination: &c.VerifyIDToken,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "minimum log level (trace, debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("LOG_LEVEL"),
			Destination: &c.LogLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log output format (json, console)",
			Value:       FormatJSON,
			Sources:     cli.EnvVars("LOG_FORMAT"),
			Destination: &c.LogFormat,
		},
	}
}

// Validate checks the settings every command relies on.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.DataDir) == "" {
		errs = append(errs, errors.New("data-dir must not be empty"))
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		errs = append(errs, fmt.Errorf("log-level: %w", err))
	}
	switch c.LogFormat {
	case FormatJSON, FormatConsole:
	default:
		errs = append(errs, fmt.Errorf("log-format: unknown format %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// ValidateServe checks the additional settings the HTTP API needs.
func (c *Config) ValidateServe() error {
	errs := []error{c.Validate()}
	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen address must not be empty"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt-secret is required"))
	}
	if c.FirebaseAPIKey == "" {
		errs = append(errs, errors.New("firebase-api-key is required"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("token-ttl must be positive"))
	}
	return errors.Join(errs...)
}

// Logger builds the process logger writing to w, or to stderr when w is
// nil.
func (c *Config) Logger(w io.Writer) (zerolog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("log-level: %w", err)
	}
	if c.LogFormat == FormatConsole {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}
