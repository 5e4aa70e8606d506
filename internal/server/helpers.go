package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ArionMiles/txnwatch/pkg/caps"
	"github.com/ArionMiles/txnwatch/pkg/export"
	"github.com/ArionMiles/txnwatch/pkg/ledger"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, ErrorResponse{Error: message, Message: details})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, caps.ErrInvalidCap):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// filterFromQuery reads category, from and to (YYYY-MM-DD, to exclusive).
func filterFromQuery(r *http.Request) (export.Filter, error) {
	q := r.URL.Query()
	f := export.Filter{Category: q.Get("category")}

	for _, p := range []struct {
		key string
		dst *time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		raw := q.Get(p.key)
		if raw == "" {
			continue
		}
		t, err := time.ParseInLocation(time.DateOnly, raw, time.Local)
		if err != nil {
			return export.Filter{}, fmt.Errorf("%s: expected YYYY-MM-DD", p.key)
		}
		*p.dst = t
	}
	return f, nil
}

func parseIntQuery(r *http.Request, key string, defaultValue int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 0 {
		return defaultValue
	}
	return i
}
