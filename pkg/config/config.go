// Package config loads txnwatch configuration from an optional .env file, an
// optional config.json and the process environment, in that order of precedence
// (environment wins).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	kJson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/ArionMiles/txnwatch/pkg/store/postgres"
	"github.com/ArionMiles/txnwatch/pkg/store/redis"
)

// Store backends selectable with TXNWATCH_STORE.
const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

var storeKinds = []string{StoreMemory, StoreFile, StoreRedis, StorePostgres, StoreSQLite}

// Default file locations.
const (
	DefaultConfigFile   = "config.json"
	DefaultEnvFile      = ".env"
	DefaultDataDir      = "data"
	ClientSecretFile    = "data/client_secret.json"
	DefaultTokenFile    = "data/token.json"
	DefaultHTTPAddr     = ":8080"
	DefaultGSheetsTitle = "txnwatch"
)

// Config holds the application configuration.
type Config struct {
	// LogLevel is one of DEBUG, INFO, WARN, ERROR.
	LogLevel string `koanf:"LOG_LEVEL"`
	// LogFormat is "text" or "json".
	LogFormat string `koanf:"LOG_FORMAT"`

	// Store selects the persistence backend.
	// Environment variable: TXNWATCH_STORE
	Store string `koanf:"TXNWATCH_STORE"`
	// DataDir holds the file store, the OAuth token and default sink files.
	DataDir    string `koanf:"TXNWATCH_DATA_DIR"`
	SQLitePath string `koanf:"SQLITE_PATH"`

	Postgres postgres.Config `koanf:",squash"`
	Redis    redis.Config    `koanf:",squash"`

	// SeedLabels preloads the built-in merchant categories on startup.
	// Without it every new merchant waits for a user decision.
	SeedLabels bool `koanf:"TXNWATCH_SEED_LABELS"`

	// HTTPAddr is the listen address of the API server. Empty disables it.
	HTTPAddr string `koanf:"HTTP_ADDR"`

	// Readers and Writers are comma separated plugin names.
	Readers string `koanf:"TXNWATCH_READERS"`
	Writers string `koanf:"TXNWATCH_WRITERS"`

	SecretsFile string `koanf:"TXNWATCH_CLIENT_SECRET"`
	TokenFile   string `koanf:"TXNWATCH_TOKEN_FILE"`

	GmailQuery    string        `koanf:"GMAIL_QUERY"`
	GmailInterval time.Duration `koanf:"GMAIL_INTERVAL"`

	MboxPath string `koanf:"MBOX_PATH"`
	CSVPath  string `koanf:"CSV_PATH"`
	JSONPath string `koanf:"JSON_PATH"`

	// GSheetsTitle is the title for a new Google Sheet (used when creating).
	GSheetsTitle string `koanf:"GSHEETS_TITLE"`
	// GSheetsID is the ID of an existing Google Sheet to use.
	GSheetsID string `koanf:"GSHEETS_ID"`
	// GSheetsName is the name of the sheet/tab within the spreadsheet.
	GSheetsName string `koanf:"GSHEETS_NAME"`
}

// Default returns the configuration used for keys that are not set anywhere.
func Default() Config {
	return Config{
		LogLevel:     "INFO",
		LogFormat:    "text",
		Store:        StoreFile,
		DataDir:      DefaultDataDir,
		HTTPAddr:     DefaultHTTPAddr,
		SecretsFile:  ClientSecretFile,
		TokenFile:    DefaultTokenFile,
		GSheetsTitle: DefaultGSheetsTitle,
	}
}

// Load reads envFile (if present) into the process environment, then layers
// configFile (if present) and the environment over Default(). Empty paths skip
// the corresponding source.
func Load(configFile, envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	k := koanf.New(".")

	if configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			if err := k.Load(file.Provider(configFile), kJson.Parser()); err != nil {
				return Config{}, fmt.Errorf("loading %s: %w", configFile, err)
			}
		}
	}

	if err := k.Load(env.Provider("", ".", nil), nil); err != nil {
		return Config{}, fmt.Errorf("loading config from environment: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		return Config{}, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that cannot be defaulted.
func (c Config) Validate() error {
	if !slices.Contains(storeKinds, c.Store) {
		return fmt.Errorf("TXNWATCH_STORE must be one of %s, got %q", strings.Join(storeKinds, ", "), c.Store)
	}
	if c.Store == StoreRedis && c.Redis.URL == "" {
		return errors.New("REDIS_URL is required for the redis store")
	}
	if c.Store == StorePostgres && c.Postgres.DSN == "" && c.Postgres.Host == "" {
		return errors.New("POSTGRES_DSN or POSTGRES_HOST is required for the postgres store")
	}
	return nil
}

// ReaderNames returns the configured reader plugins.
func (c Config) ReaderNames() []string { return splitList(c.Readers) }

// WriterNames returns the configured writer plugins.
func (c Config) WriterNames() []string { return splitList(c.Writers) }

// SQLiteFile returns SQLitePath, defaulting to txnwatch.db in DataDir.
func (c Config) SQLiteFile() string {
	if c.SQLitePath != "" {
		return c.SQLitePath
	}
	return filepath.Join(c.DataDir, "txnwatch.db")
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
