package events

import (
	"context"
	"log/slog"

	"github.com/ArionMiles/txnwatch/pkg/api"
	"github.com/ArionMiles/txnwatch/pkg/caps"
)

// LogHandler logs each event. It stands in for a UI when running headless.
func LogHandler(logger *slog.Logger) Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(ctx context.Context, env *api.Envelope) {
		switch e := env.Event.(type) {
		case api.TransactionDetected:
			logger.InfoContext(ctx, "transaction detected",
				"kind", e.Kind,
				"amount", e.Amount,
				"merchant", e.Merchant,
				"institution", e.Institution,
				"category", e.Category,
			)
		case api.CategorizationRequested:
			logger.InfoContext(ctx, "categorization requested",
				"id", e.ID,
				"merchant", e.Merchant,
				"amount", e.Amount,
				"choices", api.DefaultCategories,
			)
		case api.CapAlert:
			logger.WarnContext(ctx, caps.Title(e), "message", caps.Message(e), "severity", e.Severity)
		case api.TransactionCategorized:
			logger.InfoContext(ctx, "transaction categorized", "id", e.ID, "merchant", e.Merchant, "category", e.Category)
		default:
			logger.DebugContext(ctx, "event", "type", env.Type)
		}
	}
}

// Forward sends each envelope to ch without blocking. Envelopes are dropped
// with a warning when ch is full.
func Forward(ch chan<- *api.Envelope, logger *slog.Logger) Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(_ context.Context, env *api.Envelope) {
		select {
		case ch <- env:
		default:
			logger.Warn("sink channel full, dropping event", "type", env.Type, "event_id", env.ID)
		}
	}
}
