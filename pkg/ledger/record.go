package ledger

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/ArionMiles/txnwatch/pkg/api"
	"github.com/ArionMiles/txnwatch/pkg/extract"
)

// record is the persisted shape of a ledger entry.
type record struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	Amount        string `json:"amount"`
	Bank          string `json:"bank"`
	Account       string `json:"account"`
	Merchant      string `json:"merchant"`
	MerchantRaw   string `json:"merchantRaw,omitempty"`
	Balance       string `json:"balance"`
	Timestamp     int64  `json:"timestamp"`
	Category      string `json:"category"`
	IsCategorized bool   `json:"isCategorized"`
}

// EntryID derives a ledger ID from the observation time.
func EntryID(observedAt time.Time) string {
	return strconv.FormatInt(observedAt.UnixMilli(), 10)
}

func toRecord(e api.LedgerEntry) record {
	return record{
		ID:            e.ID,
		Type:          string(e.Kind),
		Amount:        e.Amount,
		Bank:          e.Institution,
		Account:       e.AccountSuffix,
		Merchant:      e.Merchant,
		MerchantRaw:   e.MerchantRaw,
		Balance:       e.BalanceAfter,
		Timestamp:     e.ObservedAt.UnixMilli(),
		Category:      e.Category,
		IsCategorized: e.IsCategorized,
	}
}

func (r record) entry() api.LedgerEntry {
	raw := r.MerchantRaw
	if raw == "" {
		raw = r.Merchant
	}
	category := r.Category
	if category == "" {
		category = api.Uncategorized
	}

	return api.LedgerEntry{
		ID: r.ID,
		Transaction: api.Transaction{
			Kind:          api.Kind(r.Type),
			Amount:        r.Amount,
			Institution:   r.Bank,
			AccountSuffix: r.Account,
			MerchantRaw:   raw,
			Merchant:      r.Merchant,
			MerchantKey:   extract.MerchantKey(r.Merchant),
			BalanceAfter:  r.Balance,
			ObservedAt:    time.UnixMilli(r.Timestamp),
		},
		Category:      category,
		IsCategorized: r.IsCategorized,
	}
}

func decode(data string) ([]record, error) {
	if data == "" {
		return nil, nil
	}
	var records []record
	if err := json.Unmarshal([]byte(data), &records); err != nil {
		return nil, err
	}
	return records, nil
}

func encode(records []record) (string, error) {
	if records == nil {
		records = []record{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
