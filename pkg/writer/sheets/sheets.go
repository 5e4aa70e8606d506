// Package sheets implements a Writer that appends transaction events to Google Sheets.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/ArionMiles/txnwatch/pkg/api"
	"github.com/ArionMiles/txnwatch/pkg/writer"
	"github.com/ArionMiles/txnwatch/pkg/writer/buffered"
)

// Default configuration values.
const (
	DefaultBatchSize     = 10
	DefaultFlushInterval = 30 * time.Second
	DefaultRetryDelay    = 60 * time.Second
	DefaultSheetName     = "Transactions"
)

// Writer writes transaction rows to a Google Sheet with buffered batching.
type Writer struct {
	client      *sheets.Service
	spreadsheet *sheets.Spreadsheet
	sheetName   string
	retryDelay  time.Duration
	logger      *slog.Logger
	buffered    *buffered.Writer
}

// Config holds configuration for the Sheets writer.
type Config struct {
	// SheetTitle is the title for a new spreadsheet (if SheetID is empty).
	SheetTitle string `json:"sheet_title"`
	// SheetID is the ID of an existing spreadsheet to use.
	SheetID string `json:"sheet_id"`
	// SheetName is the name of the sheet within the spreadsheet.
	SheetName string `json:"sheet_name"`
	// BatchSize is the number of rows to buffer before writing.
	BatchSize int `json:"batch_size"`
	// FlushInterval is the interval between automatic flushes.
	FlushInterval time.Duration `json:"flush_interval"`
	// RetryDelay is the wait before retrying a rate limited append.
	RetryDelay time.Duration `json:"retry_delay"`
	// OnFlush is passed through to the buffered writer.
	OnFlush func(count int, err error) `json:"-"`
}

// New creates a new Sheets writer, creating the spreadsheet when needed.
func New(httpClient *http.Client, cfg Config, logger *slog.Logger, opts ...option.ClientOption) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	client, err := sheets.NewService(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}

	if cfg.SheetName == "" {
		cfg.SheetName = DefaultSheetName
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}

	w := &Writer{
		client:     client,
		sheetName:  cfg.SheetName,
		retryDelay: cfg.RetryDelay,
		logger:     logger,
	}

	spreadsheet, err := w.initSpreadsheet(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing spreadsheet: %w", err)
	}
	w.spreadsheet = spreadsheet

	w.buffered = buffered.New(
		w.flushBatch,
		buffered.Config{
			BatchSize:     cfg.BatchSize,
			FlushInterval: cfg.FlushInterval,
			OnFlush:       cfg.OnFlush,
		},
		logger.With("component", "sheets_buffer"),
	)

	logger.Info("sheets writer initialized",
		"spreadsheet_id", spreadsheet.SpreadsheetId,
		"batch_size", cfg.BatchSize,
		"flush_interval", cfg.FlushInterval,
	)

	return w, nil
}

func (w *Writer) initSpreadsheet(ctx context.Context, cfg Config) (*sheets.Spreadsheet, error) {
	if cfg.SheetID != "" {
		spreadsheet, err := w.client.Spreadsheets.Get(cfg.SheetID).Context(ctx).Do()
		if err == nil {
			w.logger.Info("using existing spreadsheet", "title", spreadsheet.Properties.Title, "id", cfg.SheetID)
			return spreadsheet, nil
		}
		w.logger.Warn("failed to get spreadsheet, will create new one", "id", cfg.SheetID, "error", err)
	}

	spreadsheet, err := w.client.Spreadsheets.Create(&sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{Title: cfg.SheetTitle},
		Sheets: []*sheets.Sheet{
			{Properties: &sheets.SheetProperties{Title: cfg.SheetName}},
		},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("creating spreadsheet: %w", err)
	}

	w.logger.Info("created new spreadsheet", "title", cfg.SheetTitle, "id", spreadsheet.SpreadsheetId)

	if err := w.writeHeaders(ctx, spreadsheet.SpreadsheetId); err != nil {
		return nil, fmt.Errorf("writing headers: %w", err)
	}

	return spreadsheet, nil
}

func (w *Writer) writeHeaders(ctx context.Context, spreadsheetID string) error {
	headerRange := fmt.Sprintf("%s!A1:K1", w.sheetName)
	headerReq := sheets.ValueRange{Values: [][]any{writer.Headers}}

	_, err := w.client.Spreadsheets.Values.Update(spreadsheetID, headerRange, &headerReq).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("updating headers: %w", err)
	}

	w.logger.Info("wrote headers to spreadsheet")
	return nil
}

// Write consumes envelopes from the input channel and appends transaction rows.
func (w *Writer) Write(ctx context.Context, in <-chan *api.Envelope) error {
	w.logger.Info("sheets writer started")
	return w.buffered.Write(ctx, in)
}

// flushBatch writes a batch of rows in a single API call.
func (w *Writer) flushBatch(rows []writer.Row) error {
	if len(rows) == 0 {
		return nil
	}

	values := make([][]any, 0, len(rows))
	for _, r := range rows {
		values = append(values, r.Values())
	}

	writeRange := fmt.Sprintf("%s!A2:K2", w.sheetName)
	writeReq := sheets.ValueRange{Values: values}

	// Flushes also run on shutdown, after the caller's context is canceled.
	ctx := context.Background()

	err := retry.Do(
		func() error {
			_, err := w.client.Spreadsheets.Values.Append(w.spreadsheet.SpreadsheetId, writeRange, &writeReq).
				ValueInputOption("RAW").
				InsertDataOption("INSERT_ROWS").
				Context(ctx).
				Do()
			return err
		},
		retry.RetryIf(func(err error) bool {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
				w.logger.Warn("rate limited, will retry", "error", err)
				return true
			}
			return false
		}),
		retry.Attempts(3),
		retry.Delay(w.retryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("appending batch to sheet: %w", err)
	}

	w.logger.Info("wrote row batch",
		"count", len(rows),
		"first_merchant", rows[0].Merchant,
	)
	return nil
}

// SpreadsheetID returns the ID of the spreadsheet being written to.
func (w *Writer) SpreadsheetID() string {
	if w.spreadsheet == nil {
		return ""
	}
	return w.spreadsheet.SpreadsheetId
}

// BufferLen returns the current number of buffered rows.
func (w *Writer) BufferLen() int {
	if w.buffered == nil {
		return 0
	}
	return w.buffered.BufferLen()
}
