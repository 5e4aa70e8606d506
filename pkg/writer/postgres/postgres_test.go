package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/ArionMiles/txnwatch/pkg/api"
	storepg "github.com/ArionMiles/txnwatch/pkg/store/postgres"
)

func TestNew_ConnectionFailure(t *testing.T) {
	_, err := New(context.Background(), Config{
		Postgres: storepg.Config{Host: "nonexistent-host", ConnectTimeout: time.Second},
	}, nil)
	assert.Error(t, err)
}

func TestWriter_Container(t *testing.T) {
	if os.Getenv("TEST_CONTAINERS") == "" {
		t.Skip("TEST_CONTAINERS not set, skipping integration test")
	}

	ctx := context.Background()
	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("txnwatch"),
		tcpostgres.WithUsername("txnwatch"),
		tcpostgres.WithPassword("password"),
		tcpostgres.BasicWaitStrategies(),
	)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(ctr); err != nil {
			t.Logf("terminating container: %v", err)
		}
	})
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	pgCfg := storepg.Config{DSN: dsn}

	var flushed int
	w, err := New(ctx, Config{
		Postgres:  pgCfg,
		BatchSize: 10,
		OnFlush:   func(count int, _ error) { flushed += count },
	}, nil)
	require.NoError(t, err)

	observed := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	detected := api.NewEnvelope(api.TransactionDetected{
		Transaction: api.Transaction{Kind: api.KindDebit, Amount: "75.00", Merchant: "Chai Point", ObservedAt: observed},
		Category:    api.Uncategorized,
	}, observed)
	categorized := api.NewEnvelope(api.TransactionCategorized{LedgerEntry: api.LedgerEntry{
		ID:            "1705314600000",
		Transaction:   api.Transaction{Kind: api.KindDebit, Amount: "75.00", Merchant: "Chai Point", ObservedAt: observed},
		Category:      "Food",
		IsCategorized: true,
	}}, observed.Add(time.Minute))

	in := make(chan *api.Envelope, 3)
	in <- detected
	in <- categorized
	in <- detected
	close(in)
	require.NoError(t, w.Write(ctx, in))
	assert.Equal(t, 3, flushed)

	pool, err := storepg.Connect(ctx, pgCfg, nil)
	require.NoError(t, err)
	defer pool.Close()

	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM transaction_events`).Scan(&count))
	assert.Equal(t, 2, count)

	var category string
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT category FROM transaction_events WHERE event = $1`, string(categorized.Type)).Scan(&category))
	assert.Equal(t, "Food", category)
}
