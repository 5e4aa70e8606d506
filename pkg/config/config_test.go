package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", "")
	require.NoError(t, err)

	assert.Equal(t, StoreFile, cfg.Store)
	assert.Equal(t, DefaultDataDir, cfg.DataDir)
	assert.Equal(t, DefaultHTTPAddr, cfg.HTTPAddr)
	assert.False(t, cfg.SeedLabels)
	assert.Equal(t, filepath.Join(DefaultDataDir, "txnwatch.db"), cfg.SQLiteFile())
}

func TestLoad_FileThenEnvironment(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(configFile, []byte(`{
		"TXNWATCH_STORE": "postgres",
		"POSTGRES_HOST": "db.internal",
		"POSTGRES_PORT": 5433,
		"GSHEETS_NAME": "Expenses",
		"TXNWATCH_WRITERS": "csv, sheets"
	}`), 0o600))

	t.Setenv("POSTGRES_PORT", "6543")
	t.Setenv("GMAIL_INTERVAL", "30s")
	t.Setenv("TXNWATCH_READERS", "gmail,mbox,")
	t.Setenv("TXNWATCH_SEED_LABELS", "true")

	cfg, err := Load(configFile, "")
	require.NoError(t, err)

	assert.Equal(t, StorePostgres, cfg.Store)
	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	assert.Equal(t, 6543, cfg.Postgres.Port)
	assert.Equal(t, "Expenses", cfg.GSheetsName)
	assert.Equal(t, 30*time.Second, cfg.GmailInterval)
	assert.Equal(t, []string{"gmail", "mbox"}, cfg.ReaderNames())
	assert.Equal(t, []string{"csv", "sheets"}, cfg.WriterNames())
	assert.True(t, cfg.SeedLabels)
}

func TestLoad_DotEnv(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("TXNWATCH_STORE=redis\nREDIS_URL=redis://localhost:6379/2\n"), 0o600))

	// register cleanup for the variables godotenv is about to set
	t.Setenv("TXNWATCH_STORE", "")
	t.Setenv("REDIS_URL", "")
	require.NoError(t, os.Unsetenv("TXNWATCH_STORE"))
	require.NoError(t, os.Unsetenv("REDIS_URL"))

	cfg, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, StoreRedis, cfg.Store)
	assert.Equal(t, "redis://localhost:6379/2", cfg.Redis.URL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "unknown store", mutate: func(c *Config) { c.Store = "mongo" }, wantErr: true},
		{name: "redis without url", mutate: func(c *Config) { c.Store = StoreRedis }, wantErr: true},
		{name: "postgres with dsn", mutate: func(c *Config) {
			c.Store = StorePostgres
			c.Postgres.DSN = "postgres://localhost/txnwatch"
		}},
		{name: "postgres without host", mutate: func(c *Config) { c.Store = StorePostgres }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
