// Package pipeline turns one inbound message into ledger state and events.
package pipeline

//go:generate mockgen -destination=mocks/mock_publisher.go -package=mocks github.com/ArionMiles/txnwatch/pkg/api Publisher
//go:generate mockgen -source=pipeline.go -destination=mocks/mock_pipeline.go -package=mocks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ArionMiles/txnwatch/pkg/api"
	"github.com/ArionMiles/txnwatch/pkg/extract"
	"github.com/ArionMiles/txnwatch/pkg/metrics"
)

// Outcome is how a single Ingest call ended.
type Outcome string

const (
	OutcomeNotTransaction   Outcome = "not_transaction"
	OutcomeExtractionFailed Outcome = "extraction_failed"
	OutcomeDuplicate        Outcome = "duplicate"
	OutcomeCategorized      Outcome = "categorized"
	OutcomePending          Outcome = "pending"
	OutcomeCredit           Outcome = "credit"
)

// Result describes what Ingest did with a message.
type Result struct {
	Outcome     Outcome
	Transaction *api.Transaction
	// Entry is nil unless the transaction was appended to the ledger.
	Entry *api.LedgerEntry
	Alert *api.CapAlert
}

// Ledger is the subset of *ledger.Ledger the pipeline drives.
type Ledger interface {
	IsDuplicate(ctx context.Context, tx api.Transaction) (bool, error)
	Append(ctx context.Context, tx api.Transaction, category string) (*api.LedgerEntry, error)
	AssignCategory(ctx context.Context, id, category string) (*api.LedgerEntry, bool, error)
}

// CategoryMemory is the subset of *labels.Memory the pipeline drives.
type CategoryMemory interface {
	Lookup(ctx context.Context, key string) (string, bool, error)
	Assign(ctx context.Context, key, category string) error
}

// CapChecker is satisfied by *caps.Evaluator.
type CapChecker interface {
	Check(ctx context.Context, category string, now time.Time) (*api.CapAlert, error)
}

// Deps are the collaborators of a Pipeline. Metrics and Now are optional.
type Deps struct {
	Ledger    Ledger
	Labels    CategoryMemory
	Caps      CapChecker
	Publisher api.Publisher
	Metrics   *metrics.Metrics
	Now       func() time.Time
}

// Pipeline runs messages through classification, extraction, dedup,
// categorization, persistence and cap evaluation.
type Pipeline struct {
	ledger    Ledger
	labels    CategoryMemory
	caps      CapChecker
	publisher api.Publisher
	metrics   *metrics.Metrics
	now       func() time.Time
	logger    *slog.Logger

	// mu makes dedup+append and assign atomic with respect to each other.
	mu sync.Mutex
}

// New creates a pipeline.
func New(deps Deps, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New(nil)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	return &Pipeline{
		ledger:    deps.Ledger,
		labels:    deps.Labels,
		caps:      deps.Caps,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		now:       deps.Now,
		logger:    logger.With("component", "pipeline"),
	}
}

// Ingest processes one message. Negative classification, extraction failure
// and duplicates are outcomes, not errors. Errors are only returned for store
// failures, in which case the message is dropped.
func (p *Pipeline) Ingest(ctx context.Context, msg api.Message) (Result, error) {
	start := time.Now()
	res, err := p.ingest(ctx, msg)
	p.metrics.IngestDuration.Observe(time.Since(start).Seconds())

	outcome := string(res.Outcome)
	if err != nil {
		outcome = "error"
	}
	p.metrics.Messages.WithLabelValues(sourceLabel(msg.Source), outcome).Inc()
	return res, err
}

func (p *Pipeline) ingest(ctx context.Context, msg api.Message) (Result, error) {
	logger := p.logger.With("sender", msg.Sender, "source", msg.Source)

	if !extract.IsTransaction(msg.Sender, msg.Body) {
		logger.Debug("not a transaction")
		return Result{Outcome: OutcomeNotTransaction}, nil
	}

	tx, err := extract.Extract(msg.Sender, msg.Body, msg.ObservedAt)
	if errors.Is(err, extract.ErrExtractionFailed) {
		logger.Info("extraction failed", "error", err)
		return Result{Outcome: OutcomeExtractionFailed}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("extracting transaction: %w", err)
	}
	res := Result{Transaction: tx}

	p.mu.Lock()
	defer p.mu.Unlock()

	dup, err := p.ledger.IsDuplicate(ctx, *tx)
	if err != nil {
		return res, fmt.Errorf("checking duplicate: %w", err)
	}
	if dup {
		logger.Info("duplicate transaction suppressed", "amount", tx.Amount, "merchant", tx.Merchant)
		res.Outcome = OutcomeDuplicate
		return res, nil
	}

	category, known, err := p.labels.Lookup(ctx, tx.MerchantKey)
	if err != nil {
		return res, fmt.Errorf("looking up category: %w", err)
	}

	if tx.Kind == api.KindCredit {
		if !known {
			category = api.Uncategorized
		}
		p.publisher.Publish(ctx, api.TransactionDetected{Transaction: *tx, Category: category})
		res.Outcome = OutcomeCredit
		return res, nil
	}

	if !known {
		category = api.Uncategorized
	}
	entry, err := p.ledger.Append(ctx, *tx, category)
	if err != nil {
		return res, fmt.Errorf("appending to ledger: %w", err)
	}
	res.Entry = entry

	p.publisher.Publish(ctx, api.TransactionDetected{Transaction: *tx, Category: category})

	if !known {
		p.publisher.Publish(ctx, api.CategorizationRequested{ID: entry.ID, Transaction: *tx})
		logger.Info("transaction pending categorization", "id", entry.ID, "merchant", tx.Merchant, "amount", tx.Amount)
		res.Outcome = OutcomePending
		return res, nil
	}

	logger.Info("transaction categorized", "id", entry.ID, "merchant", tx.Merchant, "category", category, "amount", tx.Amount)
	res.Outcome = OutcomeCategorized
	res.Alert = p.checkCap(ctx, category)
	return res, nil
}

// AssignCategory applies the user's category choice to a ledger entry and
// remembers it for the entry's merchant. It returns false when id is unknown.
func (p *Pipeline) AssignCategory(ctx context.Context, id, category string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok, err := p.ledger.AssignCategory(ctx, id, category)
	if err != nil {
		return false, fmt.Errorf("assigning category: %w", err)
	}
	if !ok {
		p.logger.Warn("category assigned to unknown entry", "id", id, "category", category)
		return false, nil
	}

	if err := p.labels.Assign(ctx, entry.MerchantKey, category); err != nil {
		return true, fmt.Errorf("remembering category: %w", err)
	}

	p.logger.Info("category assigned", "id", id, "merchant_key", entry.MerchantKey, "category", category)
	p.publisher.Publish(ctx, api.TransactionCategorized{LedgerEntry: *entry})
	p.checkCap(ctx, category)
	return true, nil
}

// checkCap evaluates category and publishes an alert when one is due.
// Evaluation failures are logged; the entry is already persisted.
func (p *Pipeline) checkCap(ctx context.Context, category string) *api.CapAlert {
	alert, err := p.caps.Check(ctx, category, p.now())
	if err != nil {
		p.logger.Error("cap evaluation failed", "category", category, "error", err)
		return nil
	}
	if alert == nil {
		return nil
	}
	p.publisher.Publish(ctx, *alert)
	return alert
}

func sourceLabel(source string) string {
	if source == "" {
		return "unknown"
	}
	return source
}
