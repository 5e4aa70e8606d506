package plugins

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	gmailapi "google.golang.org/api/gmail/v1"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/ArionMiles/txnwatch/pkg/api"
	"github.com/ArionMiles/txnwatch/pkg/metrics"
	gmailreader "github.com/ArionMiles/txnwatch/pkg/reader/gmail"
	mboxreader "github.com/ArionMiles/txnwatch/pkg/reader/mbox"
	csvwriter "github.com/ArionMiles/txnwatch/pkg/writer/csv"
	jsonwriter "github.com/ArionMiles/txnwatch/pkg/writer/json"
	pgwriter "github.com/ArionMiles/txnwatch/pkg/writer/postgres"
	sheetswriter "github.com/ArionMiles/txnwatch/pkg/writer/sheets"
)

// Default returns a registry holding every built-in plugin.
func Default() *Registry {
	r := NewRegistry()
	for _, p := range []ReaderPlugin{GmailPlugin{}, MboxPlugin{}} {
		if err := r.RegisterReader(p); err != nil {
			panic(err)
		}
	}
	for _, p := range []WriterPlugin{CSVPlugin{}, JSONPlugin{}, PostgresPlugin{}, SheetsPlugin{}} {
		if err := r.RegisterWriter(p); err != nil {
			panic(err)
		}
	}
	return r
}

// GmailPlugin reads bank alert e-mails from Gmail.
type GmailPlugin struct{}

func (GmailPlugin) Name() string { return "gmail" }

func (GmailPlugin) Description() string {
	return "Read bank alert e-mails from Gmail and mark them read once processed"
}

func (GmailPlugin) RequiredScopes() []string {
	return []string{gmailapi.GmailReadonlyScope, gmailapi.GmailModifyScope}
}

func (GmailPlugin) NewReader(env Env) (api.Reader, error) {
	if env.HTTPClient == nil {
		return nil, fmt.Errorf("gmail reader needs an OAuth client, run 'txnwatch setup' first")
	}
	return gmailreader.New(env.HTTPClient, gmailreader.Config{
		Query:    env.Config.GmailQuery,
		Interval: env.Config.GmailInterval,
	}, env.Logger)
}

// MboxPlugin replays a local mbox export once.
type MboxPlugin struct{}

func (MboxPlugin) Name() string { return "mbox" }

func (MboxPlugin) Description() string { return "Replay bank alert e-mails from an mbox file" }

func (MboxPlugin) RequiredScopes() []string { return nil }

func (MboxPlugin) NewReader(env Env) (api.Reader, error) {
	return mboxreader.New(mboxreader.Config{Path: env.Config.MboxPath}, env.Logger)
}

// CSVPlugin appends transaction rows to a CSV file.
type CSVPlugin struct{}

func (CSVPlugin) Name() string { return "csv" }

func (CSVPlugin) Description() string { return "Append transaction events to a CSV file" }

func (CSVPlugin) RequiredScopes() []string { return nil }

func (p CSVPlugin) NewWriter(env Env) (api.Writer, error) {
	path, err := outputPath(env.Config.CSVPath, env.Config.DataDir, "transactions.csv")
	if err != nil {
		return nil, err
	}
	return csvwriter.New(csvwriter.Config{
		FilePath: path,
		OnFlush:  flushRecorder(env.Metrics, p.Name()),
	}, env.Logger)
}

// JSONPlugin keeps transaction rows in a JSON array file.
type JSONPlugin struct{}

func (JSONPlugin) Name() string { return "json" }

func (JSONPlugin) Description() string { return "Write transaction events to a JSON file" }

func (JSONPlugin) RequiredScopes() []string { return nil }

func (p JSONPlugin) NewWriter(env Env) (api.Writer, error) {
	path, err := outputPath(env.Config.JSONPath, env.Config.DataDir, "transactions.json")
	if err != nil {
		return nil, err
	}
	return jsonwriter.New(jsonwriter.Config{
		FilePath: path,
		OnFlush:  flushRecorder(env.Metrics, p.Name()),
	}, env.Logger)
}

// PostgresPlugin records transaction events in a PostgreSQL table, using the
// same POSTGRES_* settings as the postgres store.
type PostgresPlugin struct{}

func (PostgresPlugin) Name() string { return "postgres" }

func (PostgresPlugin) Description() string {
	return "Record transaction events in the transaction_events table"
}

func (PostgresPlugin) RequiredScopes() []string { return nil }

func (p PostgresPlugin) NewWriter(env Env) (api.Writer, error) {
	pg := env.Config.Postgres
	if pg.DSN == "" && pg.Host == "" {
		return nil, errors.New("postgres writer needs POSTGRES_DSN or POSTGRES_HOST")
	}
	return pgwriter.New(context.Background(), pgwriter.Config{
		Postgres: pg,
		OnFlush:  flushRecorder(env.Metrics, p.Name()),
	}, env.Logger)
}

// SheetsPlugin appends transaction rows to a Google Sheet.
type SheetsPlugin struct{}

func (SheetsPlugin) Name() string { return "sheets" }

func (SheetsPlugin) Description() string { return "Append transaction events to a Google Sheet" }

func (SheetsPlugin) RequiredScopes() []string { return []string{sheetsapi.SpreadsheetsScope} }

func (p SheetsPlugin) NewWriter(env Env) (api.Writer, error) {
	if env.HTTPClient == nil {
		return nil, fmt.Errorf("sheets writer needs an OAuth client, run 'txnwatch setup' first")
	}
	if env.Config.GSheetsID == "" && env.Config.GSheetsTitle == "" {
		return nil, fmt.Errorf("either GSHEETS_ID or GSHEETS_TITLE is required")
	}
	return sheetswriter.New(env.HTTPClient, sheetswriter.Config{
		SheetTitle: env.Config.GSheetsTitle,
		SheetID:    env.Config.GSheetsID,
		SheetName:  env.Config.GSheetsName,
		OnFlush:    flushRecorder(env.Metrics, p.Name()),
	}, env.Logger)
}

// outputPath returns path, or name inside dataDir, making sure the parent
// directory exists.
func outputPath(path, dataDir, name string) (string, error) {
	if path == "" {
		path = filepath.Join(dataDir, name)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	return path, nil
}

func flushRecorder(m *metrics.Metrics, sink string) func(count int, err error) {
	if m == nil {
		return nil
	}
	return func(count int, err error) {
		status := "ok"
		if err != nil {
			status = "error"
		}
		m.SinkWrites.WithLabelValues(sink, status).Add(float64(count))
	}
}
