package api

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies the kind of an egress event.
type EventType string

// Event types.
const (
	EventTransactionDetected     EventType = "transaction_detected"
	EventCategorizationRequested EventType = "categorization_requested"
	EventCapAlert                EventType = "cap_alert"
	EventTransactionCategorized  EventType = "transaction_categorized"
)

// Event is implemented by every egress event.
type Event interface {
	Type() EventType
}

// TransactionDetected is emitted for every accepted transaction.
// Category is Uncategorized while the merchant has no remembered category,
// for DEBIT and CREDIT records alike.
type TransactionDetected struct {
	Transaction
	Category string `json:"category"`
}

// Type implements Event.
func (TransactionDetected) Type() EventType { return EventTransactionDetected }

// CategorizationRequested asks an external collaborator to pick a category
// for the ledger entry ID. A response may never arrive.
type CategorizationRequested struct {
	ID string `json:"id"`
	Transaction
}

// Type implements Event.
func (CategorizationRequested) Type() EventType { return EventCategorizationRequested }

// Severity grades a cap alert.
type Severity string

// Alert severities. SeverityNone is never published.
const (
	SeverityNone     Severity = ""
	SeverityWarning  Severity = "Warning"
	SeverityExceeded Severity = "Exceeded"
)

// CapAlert reports that a category's monthly spend is approaching or past its cap.
type CapAlert struct {
	Category  string   `json:"category"`
	Spend     string   `json:"spend"`
	CapAmount string   `json:"cap_amount"`
	PctUsed   int      `json:"pct_used"`
	Severity  Severity `json:"severity"`
}

// Type implements Event.
func (CapAlert) Type() EventType { return EventCapAlert }

// TransactionCategorized is emitted after a category is assigned to a ledger entry.
type TransactionCategorized struct {
	LedgerEntry
}

// Type implements Event.
func (TransactionCategorized) Type() EventType { return EventTransactionCategorized }

// Envelope wraps an event with delivery metadata for sinks.
type Envelope struct {
	ID    string    `json:"id"`
	Type  EventType `json:"type"`
	At    time.Time `json:"at"`
	Event Event     `json:"event"`
}

// NewEnvelope wraps event with a fresh ID and timestamp.
func NewEnvelope(event Event, at time.Time) *Envelope {
	return &Envelope{
		ID:    uuid.NewString(),
		Type:  event.Type(),
		At:    at,
		Event: event,
	}
}
