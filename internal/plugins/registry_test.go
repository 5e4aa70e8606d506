package plugins

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmailapi "google.golang.org/api/gmail/v1"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/ArionMiles/txnwatch/pkg/api"
	"github.com/ArionMiles/txnwatch/pkg/config"
	"github.com/ArionMiles/txnwatch/pkg/metrics"
)

func TestRegistry_Duplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterReader(MboxPlugin{}))
	assert.Error(t, r.RegisterReader(MboxPlugin{}))

	require.NoError(t, r.RegisterWriter(CSVPlugin{}))
	assert.Error(t, r.RegisterWriter(CSVPlugin{}))
}

func TestRegistry_NotFound(t *testing.T) {
	r := Default()

	_, err := r.GetReader("imap")
	assert.ErrorContains(t, err, "available: gmail, mbox")

	_, err = r.GetWriter("bigquery")
	assert.ErrorContains(t, err, "available: csv, json, postgres, sheets")
}

func TestRegistry_List(t *testing.T) {
	r := Default()

	var readers, writers []string
	for _, p := range r.ListReaders() {
		readers = append(readers, p.Name())
	}
	for _, p := range r.ListWriters() {
		writers = append(writers, p.Name())
	}
	assert.Equal(t, []string{"gmail", "mbox"}, readers)
	assert.Equal(t, []string{"csv", "json", "postgres", "sheets"}, writers)
}

func TestRegistry_Scopes(t *testing.T) {
	r := Default()

	scopes, err := r.Scopes([]string{"gmail", "mbox"}, []string{"sheets", "csv"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		gmailapi.GmailReadonlyScope,
		gmailapi.GmailModifyScope,
		sheetsapi.SpreadsheetsScope,
	}, scopes)
	assert.IsNonDecreasing(t, scopes)

	scopes, err = r.Scopes([]string{"mbox"}, []string{"csv", "json", "postgres"})
	require.NoError(t, err)
	assert.Empty(t, scopes)

	_, err = r.Scopes([]string{"pop3"}, nil)
	assert.Error(t, err)
}

func TestCreate_RequiresConfig(t *testing.T) {
	r := Default()
	env := Env{Config: config.Default()}

	_, err := r.CreateReader("gmail", env)
	assert.ErrorContains(t, err, "OAuth client")

	_, err = r.CreateReader("mbox", env)
	assert.ErrorContains(t, err, "mbox path is required")

	_, err = r.CreateWriter("sheets", env)
	assert.ErrorContains(t, err, "OAuth client")

	_, err = r.CreateWriter("postgres", env)
	assert.ErrorContains(t, err, "POSTGRES_DSN or POSTGRES_HOST")
}

func TestCSVPlugin_WritesIntoDataDir(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = filepath.Join(t.TempDir(), "nested")
	m := metrics.New(nil)

	w, err := Default().CreateWriter("csv", Env{Config: cfg, Metrics: m})
	require.NoError(t, err)

	in := make(chan *api.Envelope, 1)
	in <- api.NewEnvelope(api.TransactionDetected{
		Transaction: api.Transaction{Kind: api.KindDebit, Amount: "75.00", Merchant: "Chai Point", ObservedAt: time.Now()},
		Category:    api.Uncategorized,
	}, time.Now())
	close(in)
	require.NoError(t, w.Write(context.Background(), in))

	data, err := os.ReadFile(filepath.Join(cfg.DataDir, "transactions.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Chai Point")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SinkWrites.WithLabelValues("csv", "ok")))
}
