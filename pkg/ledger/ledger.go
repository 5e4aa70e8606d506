// Package ledger keeps the append-only record of non-income transactions.
//
// The whole ledger lives under one store key and is rewritten on every
// mutation. Mutations are serialised by the Ledger; callers that need a
// check-then-append to be atomic must hold their own lock around both.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ArionMiles/txnwatch/pkg/api"
	"github.com/ArionMiles/txnwatch/pkg/store"
)

// DedupWindow is the time within which two transactions with the same amount
// and merchant are considered the same bank event.
const DedupWindow = 10 * time.Second

// ErrNotFound is returned by Get for an unknown entry ID.
var ErrNotFound = errors.New("ledger entry not found")

// Ledger is a store-backed transaction ledger.
type Ledger struct {
	store  api.Store
	mu     sync.Mutex
	logger *slog.Logger
}

// New creates a ledger persisted in s.
func New(s api.Store, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{store: s, logger: logger}
}

// load reads all records. Unparseable content reads as an empty ledger.
func (l *Ledger) load(ctx context.Context) ([]record, error) {
	data, err := l.store.Get(ctx, store.KeyTransactions)
	if err != nil {
		return nil, fmt.Errorf("loading transactions: %w", err)
	}

	records, err := decode(data)
	if err != nil {
		l.logger.Warn("malformed transactions, treating as empty", "error", err)
		return nil, nil
	}
	return records, nil
}

func (l *Ledger) save(ctx context.Context, records []record) error {
	data, err := encode(records)
	if err != nil {
		return fmt.Errorf("encoding transactions: %w", err)
	}
	if err := l.store.Set(ctx, store.KeyTransactions, data); err != nil {
		return fmt.Errorf("saving transactions: %w", err)
	}
	return nil
}

// Entries returns every ledger entry in insertion order.
func (l *Ledger) Entries(ctx context.Context) ([]api.LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.load(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]api.LedgerEntry, len(records))
	for i, r := range records {
		entries[i] = r.entry()
	}
	return entries, nil
}

// Get returns the entry with the given ID.
func (l *Ledger) Get(ctx context.Context, id string) (*api.LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if r.ID == id {
			e := r.entry()
			return &e, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// IsDuplicate reports whether an entry with the same amount and merchant was
// observed less than DedupWindow before or after tx.
func (l *Ledger) IsDuplicate(ctx context.Context, tx api.Transaction) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.load(ctx)
	if err != nil {
		return false, err
	}

	for _, r := range records {
		if r.Amount != tx.Amount || r.Merchant != tx.Merchant {
			continue
		}
		if d := tx.ObservedAt.Sub(time.UnixMilli(r.Timestamp)).Abs(); d < DedupWindow {
			return true, nil
		}
	}
	return false, nil
}

// Append records tx under category. CREDIT transactions are never recorded;
// Append returns a nil entry for them.
func (l *Ledger) Append(ctx context.Context, tx api.Transaction, category string) (*api.LedgerEntry, error) {
	if tx.Kind == api.KindCredit {
		return nil, nil
	}
	if category == "" {
		category = api.Uncategorized
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.load(ctx)
	if err != nil {
		return nil, err
	}

	entry := api.LedgerEntry{
		ID:            EntryID(tx.ObservedAt),
		Transaction:   tx,
		Category:      category,
		IsCategorized: category != api.Uncategorized,
	}
	if err := l.save(ctx, append(records, toRecord(entry))); err != nil {
		return nil, err
	}

	l.logger.Debug("appended ledger entry", "id", entry.ID, "category", category, "count", len(records)+1)
	return &entry, nil
}

// AssignCategory sets the category of the entry with the given ID. It
// returns false when no such entry exists.
func (l *Ledger) AssignCategory(ctx context.Context, id, category string) (*api.LedgerEntry, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.load(ctx)
	if err != nil {
		return nil, false, err
	}

	for i := range records {
		if records[i].ID != id {
			continue
		}
		records[i].Category = category
		records[i].IsCategorized = true
		if err := l.save(ctx, records); err != nil {
			return nil, false, err
		}
		e := records[i].entry()
		return &e, true, nil
	}
	return nil, false, nil
}

// SpendInPeriod sums DEBIT amounts in category observed during the calendar
// month containing now, in now's location.
func (l *Ledger) SpendInPeriod(ctx context.Context, category string, now time.Time) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.load(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 1, 0)

	total := decimal.Zero
	for _, r := range records {
		if r.Category != category || api.Kind(r.Type) != api.KindDebit {
			continue
		}
		at := time.UnixMilli(r.Timestamp)
		if at.Before(start) || !at.Before(end) {
			continue
		}

		amount, err := decimal.NewFromString(r.Amount)
		if err != nil {
			l.logger.Warn("skipping entry with malformed amount", "id", r.ID, "amount", r.Amount)
			continue
		}
		total = total.Add(amount)
	}
	return total, nil
}
