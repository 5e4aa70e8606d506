// Package writer holds the row format shared by the egress sinks.
package writer

import (
	"strconv"
	"time"

	"github.com/ArionMiles/txnwatch/pkg/api"
)

// Row is one sink record for a transaction event.
type Row struct {
	EventID     string `csv:"event_id" json:"event_id"`
	Event       string `csv:"event" json:"event"`
	ID          string `csv:"id" json:"id"`
	Kind        string `csv:"type" json:"type"`
	Amount      string `csv:"amount" json:"amount"`
	Institution string `csv:"bank" json:"bank"`
	Account     string `csv:"account" json:"account"`
	Merchant    string `csv:"merchant" json:"merchant"`
	Category    string `csv:"category" json:"category"`
	Balance     string `csv:"balance" json:"balance"`
	ObservedAt  string `csv:"observed_at" json:"observed_at"`
}

// Headers are the column names in Values order.
var Headers = []any{"Event ID", "Event", "ID", "Type", "Amount", "Bank", "Account", "Merchant", "Category", "Balance", "Observed At"}

// RowFrom flattens transaction events. It reports false for every other event.
func RowFrom(env *api.Envelope) (Row, bool) {
	var (
		tx       api.Transaction
		category string
	)
	switch e := env.Event.(type) {
	case api.TransactionDetected:
		tx, category = e.Transaction, e.Category
	case api.TransactionCategorized:
		tx, category = e.Transaction, e.Category
	default:
		return Row{}, false
	}

	return Row{
		EventID:     env.ID,
		Event:       string(env.Type),
		ID:          strconv.FormatInt(tx.ObservedAt.UnixMilli(), 10),
		Kind:        string(tx.Kind),
		Amount:      tx.Amount,
		Institution: tx.Institution,
		Account:     tx.AccountSuffix,
		Merchant:    tx.Merchant,
		Category:    category,
		Balance:     tx.BalanceAfter,
		ObservedAt:  tx.ObservedAt.Format(time.DateTime),
	}, true
}

// Values returns the row as a spreadsheet row.
func (r Row) Values() []any {
	return []any{r.EventID, r.Event, r.ID, r.Kind, r.Amount, r.Institution, r.Account, r.Merchant, r.Category, r.Balance, r.ObservedAt}
}
