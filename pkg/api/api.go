// Package api defines the core interfaces and data structures for txnwatch.
package api

import (
	"context"
	"time"
)

// Kind is the direction of money movement in a transaction.
type Kind string

// Transaction kinds.
const (
	KindDebit   Kind = "DEBIT"
	KindCredit  Kind = "CREDIT"
	KindUnknown Kind = "UNKNOWN"
)

// Sentinels used when a field could not be extracted.
const (
	UnknownMerchant = "Unknown"
	UnknownAccount  = "****"
	UnknownBalance  = "N/A"
)

// Uncategorized is the category of a ledger entry awaiting user input.
const Uncategorized = "Uncategorized"

// DefaultCategories is the category list offered to users when a merchant is
// seen for the first time. Dismissing the choice maps to "Others".
var DefaultCategories = []string{
	"Food",
	"Groceries",
	"Shopping",
	"Clothes",
	"Laundry",
	"Transport",
	"Entertainment",
	"Bills",
	"Health",
	"Others",
}

// Message is one inbound notification or SMS handed to the pipeline.
type Message struct {
	Sender     string    `json:"sender"`
	Body       string    `json:"body"`
	ObservedAt time.Time `json:"observed_at"`
	// Source names the ingestion channel (sms, notification, gmail, mbox, http).
	Source string `json:"source,omitempty"`
	// MessageID is the upstream message ID, acknowledged back to the reader once processed.
	MessageID string `json:"-"`
}

// Transaction is the structured record extracted from a message.
type Transaction struct {
	Kind          Kind      `json:"kind"`
	Amount        string    `json:"amount"`
	Institution   string    `json:"institution"`
	AccountSuffix string    `json:"account_suffix"`
	MerchantRaw   string    `json:"merchant_raw"`
	Merchant      string    `json:"merchant"`
	MerchantKey   string    `json:"merchant_key"`
	BalanceAfter  string    `json:"balance_after"`
	ObservedAt    time.Time `json:"observed_at"`
}

// LedgerEntry is a persisted transaction with its category.
type LedgerEntry struct {
	ID string `json:"id"`
	Transaction
	Category      string `json:"category"`
	IsCategorized bool   `json:"is_categorized"`
}

// CapKind selects how a CapConfig value is interpreted.
type CapKind string

// Cap kinds.
const (
	CapPercentage CapKind = "percentage"
	CapAbsolute   CapKind = "absolute"
)

// CapConfig is the monthly spending cap of one category.
type CapConfig struct {
	Kind  CapKind `json:"type"`
	Value float64 `json:"value"`
}

// UserProfile holds the user data needed to resolve percentage caps.
type UserProfile struct {
	Name          string  `json:"name,omitempty"`
	MonthlyIncome float64 `json:"monthly_income"`
}

// Store is a flat string key/value store. Values are rewritten in full.
type Store interface {
	// Get returns the value stored under key, or "" with a nil error when absent.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// Publisher delivers egress events to whoever is listening.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Reader reads messages from a source and sends them to the provided channel.
// Implementations should close the channel when done or on error.
// The ackChan receives message IDs once the pipeline has processed them.
type Reader interface {
	Read(ctx context.Context, out chan<- *Message, ackChan <-chan string) error
}

// Writer consumes published events from a channel and writes them to a destination.
type Writer interface {
	Write(ctx context.Context, in <-chan *Envelope) error
}
