package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArionMiles/txnwatch/pkg/api"
	"github.com/ArionMiles/txnwatch/pkg/caps"
	"github.com/ArionMiles/txnwatch/pkg/events"
	"github.com/ArionMiles/txnwatch/pkg/labels"
	"github.com/ArionMiles/txnwatch/pkg/ledger"
	"github.com/ArionMiles/txnwatch/pkg/metrics"
	"github.com/ArionMiles/txnwatch/pkg/pipeline"
	"github.com/ArionMiles/txnwatch/pkg/store"
)

var now = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

type fixture struct {
	handler http.Handler
	labels  *labels.Memory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st := store.NewMemory()
	l := ledger.New(st, nil)
	m := labels.New(st, nil)
	s := caps.NewSettings(st, nil)
	e := caps.NewEvaluator(s, l, nil)
	met := metrics.New(nil)
	clock := func() time.Time { return now }

	p := pipeline.New(pipeline.Deps{
		Ledger:    l,
		Labels:    m,
		Caps:      e,
		Publisher: events.NewBus(nil),
		Metrics:   met,
		Now:       clock,
	}, nil)

	h := NewRouter(Config{
		Pipeline: p,
		Ledger:   l,
		Labels:   m,
		Settings: s,
		Caps:     e,
		Metrics:  met,
		Now:      clock,
	}, nil)

	return &fixture{handler: h, labels: m}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func ingestBody(body string) IngestRequest {
	at := now
	return IngestRequest{Sender: "VM-HDFCBK", Body: body, ObservedAt: &at}
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestIngestThenCategorize(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/ingest", ingestBody("Rs.75.00 debited from A/c XX1234 towards Chai Point."))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decode[IngestResponse](t, rec)
	assert.Equal(t, pipeline.OutcomePending, res.Outcome)
	require.NotNil(t, res.Entry)
	id := res.Entry.ID

	rec = f.do(t, http.MethodGet, "/api/v1/transactions?pending=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[TransactionsResponse](t, rec).Total)
	assert.Equal(t, ledger.EntryID(now), id)
	assert.Equal(t, api.Uncategorized, res.Entry.Category)

	rec = f.do(t, http.MethodPost, "/api/v1/transactions/"+id+"/category", CategoryRequest{Category: "Health"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	entry := decode[api.LedgerEntry](t, rec)
	assert.Equal(t, "Health", entry.Category)
	assert.True(t, entry.IsCategorized)

	rec = f.do(t, http.MethodGet, "/api/v1/transactions/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Chai Point", decode[api.LedgerEntry](t, rec).Merchant)

	rec = f.do(t, http.MethodGet, "/api/v1/transactions?category=Health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[TransactionsResponse](t, rec)
	assert.Equal(t, 1, list.Total)

	rec = f.do(t, http.MethodGet, "/api/v1/transactions?pending=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[TransactionsResponse](t, rec).Total)

	rec = f.do(t, http.MethodGet, "/api/v1/categories", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cats := decode[CategoriesResponse](t, rec)
	assert.Equal(t, api.DefaultCategories, cats.Categories)
	assert.Equal(t, "Health", cats.Merchants["chai point"])
}

func TestIngest_DefaultsSourceAndTime(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/ingest", IngestRequest{Body: "Your OTP is 123456"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pipeline.OutcomeNotTransaction, decode[IngestResponse](t, rec).Outcome)
}

func TestBadRequests(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"malformed json", http.MethodPost, "/api/v1/ingest", "{", http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/v1/ingest", `{"text":"hi"}`, http.StatusBadRequest},
		{"empty body", http.MethodPost, "/api/v1/ingest", IngestRequest{Sender: "VM-HDFCBK"}, http.StatusBadRequest},
		{"empty category", http.MethodPost, "/api/v1/transactions/1/category", CategoryRequest{Category: "  "}, http.StatusBadRequest},
		{"unknown transaction", http.MethodPost, "/api/v1/transactions/1/category", CategoryRequest{Category: "Food"}, http.StatusNotFound},
		{"missing transaction", http.MethodGet, "/api/v1/transactions/1", nil, http.StatusNotFound},
		{"bad date", http.MethodGet, "/api/v1/transactions?from=15-01-2024", nil, http.StatusBadRequest},
		{"invalid cap", http.MethodPut, "/api/v1/caps/Food", `{"type":"weekly","value":10}`, http.StatusBadRequest},
		{"negative income", http.MethodPut, "/api/v1/profile", `{"monthly_income":-1}`, http.StatusBadRequest},
		{"bad export format", http.MethodGet, "/api/v1/export?format=pdf", nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode[ErrorResponse](t, rec).Error)
		})
	}
}

func TestCaps(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.labels.Assign(ctx, "swiggy", "Food"))

	rec := f.do(t, http.MethodPut, "/api/v1/caps/Food", api.CapConfig{Kind: api.CapAbsolute, Value: 1000})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/v1/ingest", ingestBody("Rs.850.00 debited from A/c XX1234 towards Swiggy."))
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[IngestResponse](t, rec)
	assert.Equal(t, pipeline.OutcomeCategorized, res.Outcome)
	require.NotNil(t, res.Alert)
	assert.Equal(t, api.SeverityWarning, res.Alert.Severity)

	rec = f.do(t, http.MethodGet, "/api/v1/caps", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	statuses := decode[[]CapStatus](t, rec)
	require.Len(t, statuses, 1)
	assert.Equal(t, CapStatus{
		Category:  "Food",
		Kind:      api.CapAbsolute,
		Value:     1000,
		CapAmount: "1000.00",
		Spend:     "850.00",
		PctUsed:   85,
		Severity:  api.SeverityWarning,
	}, statuses[0])

	rec = f.do(t, http.MethodDelete, "/api/v1/caps/Food", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/caps", nil)
	assert.Empty(t, decode[[]CapStatus](t, rec))
}

func TestProfile(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/profile", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, api.UserProfile{}, decode[api.UserProfile](t, rec))

	want := api.UserProfile{Name: "Asha", MonthlyIncome: 85000}
	rec = f.do(t, http.MethodPut, "/api/v1/profile", want)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/profile", nil)
	assert.Equal(t, want, decode[api.UserProfile](t, rec))
}

func TestExport(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/v1/ingest", ingestBody("Rs.75.00 debited from A/c XX1234 towards Chai Point."))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "txnwatch.csv")
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "Chai Point")

	rec = f.do(t, http.MethodGet, "/api/v1/export?format=xlsx&to=2024-01-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodGet, "/health", nil)
	f.do(t, http.MethodGet, "/api/v1/transactions/42", nil)

	rec := f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `txnwatch_http_requests_total{method="GET",path="/health",status="200"} 1`)
	assert.Contains(t, body, `txnwatch_http_requests_total{method="GET",path="/api/v1/transactions/{id}",status="404"} 1`)
}
