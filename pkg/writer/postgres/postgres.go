// Package postgres implements a Writer that records transaction events in a
// PostgreSQL table.
package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ArionMiles/txnwatch/pkg/api"
	storepg "github.com/ArionMiles/txnwatch/pkg/store/postgres"
	"github.com/ArionMiles/txnwatch/pkg/writer"
	"github.com/ArionMiles/txnwatch/pkg/writer/buffered"
)

//go:embed 001_create_transaction_events.sql
var migrationSQL string

// flushTimeout bounds one batch insert.
const flushTimeout = 30 * time.Second

const insertRow = `
	INSERT INTO transaction_events (
		event_id, event, entry_id, kind, amount, bank, account,
		merchant, category, balance, observed_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (event_id) DO NOTHING`

// Config holds the PostgreSQL writer configuration.
type Config struct {
	// Postgres is the connection configuration, shared with the postgres store.
	Postgres storepg.Config
	// BatchSize is the number of rows to buffer before writing.
	BatchSize int
	// FlushInterval is the time between automatic flushes.
	FlushInterval time.Duration
	// OnFlush is passed through to the buffered writer.
	OnFlush func(count int, err error)
}

// Writer inserts transaction rows into the transaction_events table. Rows are
// keyed by event ID, so replaying a batch is harmless.
type Writer struct {
	pool     *pgxpool.Pool
	buffered *buffered.Writer
	logger   *slog.Logger
}

// New connects to PostgreSQL and creates the transaction_events table.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := storepg.Connect(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, err
	}
	if _, err := pool.Exec(ctx, migrationSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	w := &Writer{pool: pool, logger: logger}
	w.buffered = buffered.New(w.flushBatch, buffered.Config{
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
		OnFlush:       cfg.OnFlush,
	}, logger.With("component", "postgres_buffer"))

	logger.Info("postgres writer initialized")
	return w, nil
}

// Write consumes envelopes from the input channel and inserts transaction rows.
func (w *Writer) Write(ctx context.Context, in <-chan *api.Envelope) error {
	defer w.Close()
	return w.buffered.Write(ctx, in)
}

// flushBatch inserts rows in a single database transaction.
func (w *Writer) flushBatch(rows []writer.Row) error {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(insertRow,
			r.EventID, r.Event, r.ID, r.Kind, r.Amount, r.Institution, r.Account,
			r.Merchant, r.Category, r.Balance, r.ObservedAt,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("inserting rows: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	w.logger.Debug("wrote rows to postgres", "count", len(rows))
	return nil
}

// Close closes the database connection pool.
func (w *Writer) Close() {
	if w.pool != nil {
		w.pool.Close()
		w.logger.Info("closed PostgreSQL connection pool")
	}
}
