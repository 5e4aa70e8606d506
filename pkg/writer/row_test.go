package writer

import (
	"testing"
	"time"

	"github.com/ArionMiles/txnwatch/pkg/api"
)

func TestRowFrom(t *testing.T) {
	observed := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	tx := api.Transaction{
		Kind:          api.KindDebit,
		Amount:        "500.00",
		Institution:   "HDFC Bank",
		AccountSuffix: "1234",
		Merchant:      "Swiggy",
		BalanceAfter:  api.UnknownBalance,
		ObservedAt:    observed,
	}

	row, ok := RowFrom(api.NewEnvelope(api.TransactionDetected{Transaction: tx, Category: "Food"}, observed))
	if !ok {
		t.Fatal("expected a row for transaction_detected")
	}
	if row.ID != "1705314600000" {
		t.Errorf("id: got %q, want %q", row.ID, "1705314600000")
	}
	if row.Category != "Food" || row.Merchant != "Swiggy" || row.Event != "transaction_detected" {
		t.Errorf("unexpected row: %+v", row)
	}
	if row.ObservedAt != "2024-01-15 10:30:00" {
		t.Errorf("observed at: got %q", row.ObservedAt)
	}
	if got := len(row.Values()); got != len(Headers) {
		t.Errorf("values: got %d columns, want %d", got, len(Headers))
	}

	entry := api.LedgerEntry{ID: "1705314600000", Transaction: tx, Category: "Health", IsCategorized: true}
	row, ok = RowFrom(api.NewEnvelope(api.TransactionCategorized{LedgerEntry: entry}, observed))
	if !ok || row.Category != "Health" {
		t.Errorf("categorized: got %+v, %v", row, ok)
	}

	if _, ok := RowFrom(api.NewEnvelope(api.CapAlert{Category: "Food"}, observed)); ok {
		t.Error("cap alerts should not produce rows")
	}
}
