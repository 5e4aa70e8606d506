// Package export writes the ledger out as CSV or XLSX.
package export

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/ArionMiles/txnwatch/pkg/api"
)

// Row is one exported ledger entry.
type Row struct {
	ID            string `csv:"id"`
	Type          string `csv:"type"`
	Amount        string `csv:"amount"`
	Bank          string `csv:"bank"`
	Account       string `csv:"account"`
	Merchant      string `csv:"merchant"`
	Category      string `csv:"category"`
	IsCategorized bool   `csv:"isCategorized"`
	Balance       string `csv:"balance"`
	Timestamp     string `csv:"timestamp"`
}

// Filter narrows the exported entries. Zero fields match everything.
type Filter struct {
	From     time.Time
	To       time.Time
	Category string
}

// Match reports whether e passes the filter. To is exclusive.
func (f Filter) Match(e api.LedgerEntry) bool {
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if !f.From.IsZero() && e.ObservedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !e.ObservedAt.Before(f.To) {
		return false
	}
	return true
}

// Rows converts the entries that match f, keeping ledger order.
func Rows(entries []api.LedgerEntry, f Filter) []Row {
	rows := make([]Row, 0, len(entries))
	for _, e := range entries {
		if !f.Match(e) {
			continue
		}
		rows = append(rows, Row{
			ID:            e.ID,
			Type:          string(e.Kind),
			Amount:        e.Amount,
			Bank:          e.Institution,
			Account:       e.AccountSuffix,
			Merchant:      e.Merchant,
			Category:      e.Category,
			IsCategorized: e.IsCategorized,
			Balance:       e.BalanceAfter,
			Timestamp:     e.ObservedAt.Format(time.RFC3339),
		})
	}
	return rows
}

// CSV writes the matching entries with a header row.
func CSV(w io.Writer, entries []api.LedgerEntry, f Filter) error {
	if err := gocsv.Marshal(Rows(entries, f), w); err != nil {
		return fmt.Errorf("writing csv: %w", err)
	}
	return nil
}

// MonthTotal is the DEBIT spend of one category in one month.
type MonthTotal struct {
	Month    string
	Category string
	Total    decimal.Decimal
}

// Summarize totals DEBIT spend per month and category, sorted by month then
// category. Entries with malformed amounts are skipped.
func Summarize(entries []api.LedgerEntry, f Filter) []MonthTotal {
	type key struct{ month, category string }
	totals := map[key]decimal.Decimal{}

	for _, e := range entries {
		if e.Kind != api.KindDebit || !f.Match(e) {
			continue
		}
		amount, err := decimal.NewFromString(e.Amount)
		if err != nil {
			continue
		}
		k := key{e.ObservedAt.Format("2006-01"), e.Category}
		totals[k] = totals[k].Add(amount)
	}

	out := make([]MonthTotal, 0, len(totals))
	for k, total := range totals {
		out = append(out, MonthTotal{Month: k.month, Category: k.category, Total: total})
	}
	slices.SortFunc(out, func(a, b MonthTotal) int {
		return cmp.Or(strings.Compare(a.Month, b.Month), strings.Compare(a.Category, b.Category))
	})
	return out
}

// Sheet names in the XLSX workbook.
const (
	LedgerSheet  = "Ledger"
	SummarySheet = "Summary"
)

var ledgerHeaders = []any{"ID", "Type", "Amount", "Bank", "Account", "Merchant", "Category", "Categorized", "Balance", "Timestamp"}

// XLSX writes a workbook with the matching entries on one sheet and monthly
// category totals on another.
func XLSX(w io.Writer, entries []api.LedgerEntry, f Filter) error {
	book := excelize.NewFile()
	defer book.Close()

	if err := book.SetSheetName("Sheet1", LedgerSheet); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}
	if _, err := book.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("creating summary sheet: %w", err)
	}

	bold, err := book.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating style: %w", err)
	}

	if err := book.SetSheetRow(LedgerSheet, "A1", &ledgerHeaders); err != nil {
		return fmt.Errorf("writing headers: %w", err)
	}
	if err := book.SetCellStyle(LedgerSheet, "A1", "J1", bold); err != nil {
		return fmt.Errorf("styling headers: %w", err)
	}

	for i, r := range Rows(entries, f) {
		amount, _ := decimal.NewFromString(r.Amount)
		row := []any{r.ID, r.Type, amount.InexactFloat64(), r.Bank, r.Account, r.Merchant, r.Category, r.IsCategorized, r.Balance, r.Timestamp}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := book.SetSheetRow(LedgerSheet, cell, &row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}

	summaryHeaders := []any{"Month", "Category", "Total"}
	if err := book.SetSheetRow(SummarySheet, "A1", &summaryHeaders); err != nil {
		return fmt.Errorf("writing summary headers: %w", err)
	}
	if err := book.SetCellStyle(SummarySheet, "A1", "C1", bold); err != nil {
		return fmt.Errorf("styling summary headers: %w", err)
	}
	for i, t := range Summarize(entries, f) {
		row := []any{t.Month, t.Category, t.Total.InexactFloat64()}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := book.SetSheetRow(SummarySheet, cell, &row); err != nil {
			return fmt.Errorf("writing summary row %d: %w", i+2, err)
		}
	}

	if err := book.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}
