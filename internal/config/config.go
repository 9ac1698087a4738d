// Package config loads the environment variables a pipeline run needs
// (spec.md §6 "Environment variables"), aborting with a clear diagnostic
// when a required one is blank.
//
// Grounded on tinoosan-ledger's cmd/main.go: the same "read from
// os.Getenv, trim, branch on blank" style used there for DATABASE_URL and
// LOG_LEVEL/LOG_FORMAT, generalized into a single loader.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Config holds every environment-sourced setting the pipeline needs.
type Config struct {
	// FeedCacheDatabaseURL is the DSN for the feed cache table (DATABASE_URL).
	FeedCacheDatabaseURL string
	// LedgerDatabaseURL is the DSN for the ledger-of-record's relational
	// database (FIREFLY_DATABASE_URL).
	LedgerDatabaseURL string
	// LedgerBasePath is the base URL of the ledger's write API
	// (FIREFLY_BASE_PATH).
	LedgerBasePath string
	// LedgerAPIKey is the bearer token for the ledger's write API
	// (FIREFLY_API_KEY).
	LedgerAPIKey string
	// AkahuAppToken and AkahuUserToken are the feed provider credentials
	// (AKAHU_APP_TOKEN, AKAHU_USER_TOKEN). They are required by Load but not
	// used by the pipeline, which has no feed provider client.
	AkahuAppToken  string
	AkahuUserToken string
	// LoadAkahuData reflects LOAD_AKAHU_DATA. When it is set the run only
	// logs that no feed provider client is wired; it does not refresh the
	// feed cache and replays the existing cache either way.
	LoadAkahuData bool
	// DryRun suppresses the exporter's remote writes (DRY_RUN).
	DryRun bool
	// LogLevel and LogFormat configure the process logger (LOG_LEVEL,
	// LOG_FORMAT; not named in spec.md §6 but carried ambiently, same as
	// the teacher's cmd/main.go).
	LogLevel  string
	LogFormat string
}

// requiredVars lists the env vars that must be non-blank.
var requiredVars = []string{
	"DATABASE_URL",
	"FIREFLY_DATABASE_URL",
	"FIREFLY_BASE_PATH",
	"FIREFLY_API_KEY",
	"AKAHU_APP_TOKEN",
	"AKAHU_USER_TOKEN",
}

// Load reads the environment into a Config, returning an error naming the
// first missing required variable.
func Load() (Config, error) {
	for _, name := range requiredVars {
		if strings.TrimSpace(os.Getenv(name)) == "" {
			return Config{}, fmt.Errorf("missing required environment variable %s", name)
		}
	}

	return Config{
		FeedCacheDatabaseURL: os.Getenv("DATABASE_URL"),
		LedgerDatabaseURL:    os.Getenv("FIREFLY_DATABASE_URL"),
		LedgerBasePath:       strings.TrimRight(os.Getenv("FIREFLY_BASE_PATH"), "/"),
		LedgerAPIKey:         os.Getenv("FIREFLY_API_KEY"),
		AkahuAppToken:        os.Getenv("AKAHU_APP_TOKEN"),
		AkahuUserToken:       os.Getenv("AKAHU_USER_TOKEN"),
		LoadAkahuData:        isTruthy(os.Getenv("LOAD_AKAHU_DATA")),
		DryRun:               isTruthy(os.Getenv("DRY_RUN")),
		LogLevel:             os.Getenv("LOG_LEVEL"),
		LogFormat:            os.Getenv("LOG_FORMAT"),
	}, nil
}

// isTruthy matches spec.md §6: only the string "true" (case-sensitive,
// surrounding whitespace ignored) is truthy.
func isTruthy(v string) bool {
	return strings.TrimSpace(v) == "true"
}

// Logger builds the process-wide logger from LogLevel/LogFormat, matching
// tinoosan-ledger's cmd/main.go buildLoggerFromEnv/parseLogLevel.
func (c Config) Logger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(c.LogLevel)}
	if strings.ToLower(strings.TrimSpace(c.LogFormat)) == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func parseLogLevel(s string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "err":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
