package server

import (
	"bytes"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ArionMiles/txnwatch/pkg/api"
	"github.com/ArionMiles/txnwatch/pkg/export"
	"github.com/ArionMiles/txnwatch/pkg/labels"
	"github.com/ArionMiles/txnwatch/pkg/pipeline"
)

// SourceHTTP is the message source recorded for messages posted to /ingest.
const SourceHTTP = "http"

// IngestRequest is the body of POST /api/v1/ingest.
type IngestRequest struct {
	Sender string `json:"sender"`
	Body   string `json:"body"`
	// ObservedAt defaults to the time the request is received.
	ObservedAt *time.Time `json:"observed_at,omitempty"`
	Source     string     `json:"source,omitempty"`
}

// IngestResponse reports what the pipeline did with the message.
type IngestResponse struct {
	Outcome     pipeline.Outcome `json:"outcome"`
	Transaction *api.Transaction `json:"transaction,omitempty"`
	Entry       *api.LedgerEntry `json:"entry,omitempty"`
	Alert       *api.CapAlert    `json:"alert,omitempty"`
}

// TransactionsResponse is the body of GET /api/v1/transactions.
type TransactionsResponse struct {
	Transactions []api.LedgerEntry `json:"transactions"`
	Total        int               `json:"total"`
}

// CategoryRequest is the body of POST /api/v1/transactions/{id}/category.
type CategoryRequest struct {
	Category string `json:"category"`
}

// CategoriesResponse lists the selectable categories and the remembered merchants.
type CategoriesResponse struct {
	Categories []string      `json:"categories"`
	Merchants  labels.Labels `json:"merchants"`
}

// CapStatus is one configured cap with this month's spend against it.
type CapStatus struct {
	Category  string       `json:"category"`
	Kind      api.CapKind  `json:"type"`
	Value     float64      `json:"value"`
	CapAmount string       `json:"cap_amount"`
	Spend     string       `json:"spend"`
	PctUsed   int          `json:"pct_used"`
	Severity  api.Severity `json:"severity,omitempty"`
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) ingest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if strings.TrimSpace(req.Body) == "" {
		writeError(w, http.StatusBadRequest, "body is required", "")
		return
	}

	msg := api.Message{
		Sender:     req.Sender,
		Body:       req.Body,
		ObservedAt: h.Now(),
		Source:     req.Source,
	}
	if req.ObservedAt != nil {
		msg.ObservedAt = *req.ObservedAt
	}
	if msg.Source == "" {
		msg.Source = SourceHTTP
	}

	res, err := h.Pipeline.Ingest(r.Context(), msg)
	if err != nil {
		writeError(w, statusFor(err), "failed to ingest message", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, IngestResponse{
		Outcome:     res.Outcome,
		Transaction: res.Transaction,
		Entry:       res.Entry,
		Alert:       res.Alert,
	})
}

func (h *handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid filter", err.Error())
		return
	}

	entries, err := h.Ledger.Entries(r.Context())
	if err != nil {
		writeError(w, statusFor(err), "failed to list transactions", err.Error())
		return
	}

	pending := r.URL.Query().Get("pending") == "true"
	matched := make([]api.LedgerEntry, 0, len(entries))
	for _, e := range entries {
		if pending && e.IsCategorized {
			continue
		}
		if f.Match(e) {
			matched = append(matched, e)
		}
	}
	total := len(matched)

	// entries are in append order, so a limit keeps the most recent
	if limit := parseIntQuery(r, "limit", 0); limit > 0 && limit < total {
		matched = matched[total-limit:]
	}

	writeJSON(w, http.StatusOK, TransactionsResponse{Transactions: matched, Total: total})
}

func (h *handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	entry, err := h.Ledger.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), "failed to get transaction", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *handler) assignCategory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req CategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	category := strings.TrimSpace(req.Category)
	if category == "" {
		writeError(w, http.StatusBadRequest, "category is required", "")
		return
	}

	ok, err := h.Pipeline.AssignCategory(r.Context(), id, category)
	if err != nil {
		writeError(w, statusFor(err), "failed to assign category", err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "transaction not found", id)
		return
	}

	entry, err := h.Ledger.Get(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), "failed to get transaction", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *handler) categories(w http.ResponseWriter, r *http.Request) {
	merchants, err := h.Labels.All(r.Context())
	if err != nil {
		writeError(w, statusFor(err), "failed to load merchant labels", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, CategoriesResponse{
		Categories: api.DefaultCategories,
		Merchants:  merchants,
	})
}

func (h *handler) listCaps(w http.ResponseWriter, r *http.Request) {
	configured, err := h.Settings.Caps(r.Context())
	if err != nil {
		writeError(w, statusFor(err), "failed to load caps", err.Error())
		return
	}

	now := h.Now()
	out := make([]CapStatus, 0, len(configured))
	for category, cfg := range configured {
		status := CapStatus{Category: category, Kind: cfg.Kind, Value: cfg.Value}
		if h.Caps != nil {
			d, err := h.Caps.Decide(r.Context(), category, now)
			if err != nil {
				writeError(w, statusFor(err), "failed to evaluate cap", err.Error())
				return
			}
			status.CapAmount = d.CapAmount.StringFixed(2)
			status.Spend = d.Spend.StringFixed(2)
			status.PctUsed = d.PctUsed
			status.Severity = d.Severity
		}
		out = append(out, status)
	}
	slices.SortFunc(out, func(a, b CapStatus) int { return strings.Compare(a.Category, b.Category) })

	writeJSON(w, http.StatusOK, out)
}

func (h *handler) setCap(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")

	var cfg api.CapConfig
	if err := decodeJSON(r, &cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := h.Settings.SetCap(r.Context(), category, cfg); err != nil {
		writeError(w, statusFor(err), "failed to set cap", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *handler) removeCap(w http.ResponseWriter, r *http.Request) {
	if err := h.Settings.RemoveCap(r.Context(), chi.URLParam(r, "category")); err != nil {
		writeError(w, statusFor(err), "failed to remove cap", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) getProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.Settings.Profile(r.Context())
	if err != nil {
		writeError(w, statusFor(err), "failed to load profile", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handler) setProfile(w http.ResponseWriter, r *http.Request) {
	var p api.UserProfile
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if p.MonthlyIncome < 0 {
		writeError(w, http.StatusBadRequest, "monthly_income must not be negative", "")
		return
	}

	if err := h.Settings.SetProfile(r.Context(), p); err != nil {
		writeError(w, statusFor(err), "failed to save profile", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handler) export(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid filter", err.Error())
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "xlsx" {
		writeError(w, http.StatusBadRequest, "invalid format", "format must be csv or xlsx")
		return
	}

	entries, err := h.Ledger.Entries(r.Context())
	if err != nil {
		writeError(w, statusFor(err), "failed to load ledger", err.Error())
		return
	}

	var buf bytes.Buffer
	contentType := "text/csv"
	if format == "xlsx" {
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		err = export.XLSX(&buf, entries, f)
	} else {
		err = export.CSV(&buf, entries, f)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to export ledger", err.Error())
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="txnwatch.`+format+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
