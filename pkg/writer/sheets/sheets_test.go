package sheets

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/ArionMiles/txnwatch/pkg/api"
)

type fakeSheets struct {
	mu          sync.Mutex
	created     int
	headers     int
	appends     int
	appendRows  int
	rateLimited int
}

func (f *fakeSheets) handler(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	switch {
	case r.Method == http.MethodPost && path == "/v4/spreadsheets":
		f.created++
		_ = json.NewEncoder(w).Encode(sheets.Spreadsheet{SpreadsheetId: "new-sheet"})
	case r.Method == http.MethodGet && path == "/v4/spreadsheets/existing":
		_ = json.NewEncoder(w).Encode(sheets.Spreadsheet{
			SpreadsheetId: "existing",
			Properties:    &sheets.SpreadsheetProperties{Title: "Expenses"},
		})
	case r.Method == http.MethodGet:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"code":404,"message":"not found"}}`)
	case r.Method == http.MethodPut:
		f.headers++
		_, _ = io.WriteString(w, `{}`)
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":append"):
		if f.rateLimited > 0 {
			f.rateLimited--
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = io.WriteString(w, `{"error":{"code":429,"message":"quota exceeded"}}`)
			return
		}
		var req sheets.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.appends++
		f.appendRows += len(req.Values)
		_, _ = io.WriteString(w, `{}`)
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func newWriter(t *testing.T, f *fakeSheets, cfg Config) *Writer {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(f.handler))
	t.Cleanup(srv.Close)

	cfg.RetryDelay = time.Millisecond
	cfg.FlushInterval = time.Hour
	w, err := New(srv.Client(), cfg, nil, option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)
	return w
}

func detected() *api.Envelope {
	return api.NewEnvelope(api.TransactionDetected{
		Transaction: api.Transaction{Kind: api.KindDebit, Amount: "500.00", Merchant: "Swiggy", ObservedAt: time.Now()},
		Category:    "Food",
	}, time.Now())
}

func TestNew_UsesExistingSpreadsheet(t *testing.T) {
	f := &fakeSheets{}
	w := newWriter(t, f, Config{SheetID: "existing"})

	assert.Equal(t, "existing", w.SpreadsheetID())
	assert.Zero(t, f.created)
	assert.Zero(t, f.headers)
}

func TestNew_CreatesSpreadsheetWithHeaders(t *testing.T) {
	f := &fakeSheets{}
	w := newWriter(t, f, Config{SheetID: "missing", SheetTitle: "txnwatch"})

	assert.Equal(t, "new-sheet", w.SpreadsheetID())
	assert.Equal(t, 1, f.created)
	assert.Equal(t, 1, f.headers)
}

func TestWrite_RetriesRateLimitedAppend(t *testing.T) {
	f := &fakeSheets{rateLimited: 1}
	w := newWriter(t, f, Config{SheetID: "existing", BatchSize: 10})

	in := make(chan *api.Envelope, 3)
	in <- detected()
	in <- detected()
	in <- api.NewEnvelope(api.CapAlert{}, time.Now())
	close(in)

	require.NoError(t, w.Write(context.Background(), in))

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, 1, f.appends)
	assert.Equal(t, 2, f.appendRows)
	assert.Zero(t, f.rateLimited)
}
