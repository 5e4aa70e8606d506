package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/emersion/go-mbox"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArionMiles/txnwatch/internal/plugins"
	"github.com/ArionMiles/txnwatch/pkg/api"
	"github.com/ArionMiles/txnwatch/pkg/config"
	"github.com/ArionMiles/txnwatch/pkg/store"
	"github.com/ArionMiles/txnwatch/pkg/writer"
)

func alert(date, id, body string) string {
	return "From: HDFC Bank InstaAlerts <alerts@hdfcbank.net>\r\n" +
		"Date: " + date + "\r\n" +
		"Message-Id: <" + id + ">\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		body + "\r\n"
}

func writeMbox(t *testing.T, messages ...string) string {
	t.Helper()

	var buf bytes.Buffer
	w := mbox.NewWriter(&buf)
	for _, m := range messages {
		mw, err := w.CreateMessage("alerts@hdfcbank.net", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		_, err = mw.Write([]byte(m))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	path := filepath.Join(t.TempDir(), "alerts.mbox")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func TestRun_MboxToJSON(t *testing.T) {
	ctx := context.Background()

	cfg := config.Default()
	cfg.Store = config.StoreMemory
	cfg.DataDir = t.TempDir()
	cfg.HTTPAddr = ""
	cfg.Readers = "mbox"
	cfg.Writers = "json"
	cfg.MboxPath = writeMbox(t,
		alert("Mon, 15 Jan 2024 10:30:00 +0530", "a1@hdfcbank.net", "Rs.500.00 debited from A/c XX1234 towards Swiggy."),
		alert("Mon, 15 Jan 2024 11:00:00 +0530", "a2@hdfcbank.net", "Rs.75.00 debited from A/c XX1234 towards Chai Point."),
		alert("Mon, 15 Jan 2024 11:05:00 +0530", "a3@hdfcbank.net", "Your OTP for login is 493021."),
	)

	engine, err := NewEngine(ctx, store.NewMemory(), EngineOptions{SeedLabels: true}, nil)
	require.NoError(t, err)

	require.NoError(t, New(plugins.Default(), nil, nil).Run(ctx, cfg, engine))

	entries, err := engine.Ledger.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Food", entries[0].Category)
	assert.Equal(t, api.Uncategorized, entries[1].Category)

	data, err := os.ReadFile(filepath.Join(cfg.DataDir, "transactions.json"))
	require.NoError(t, err)
	var rows []writer.Row
	require.NoError(t, json.Unmarshal(data, &rows))
	assert.Len(t, rows, 2)

	m := engine.Metrics
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Messages.WithLabelValues("mbox", "categorized")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Messages.WithLabelValues("mbox", "pending")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Messages.WithLabelValues("mbox", "not_transaction")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SinkWrites.WithLabelValues("json", "ok")))
}

func TestRun_ConfigErrors(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, store.NewMemory(), EngineOptions{}, nil)
	require.NoError(t, err)
	runner := New(plugins.Default(), nil, nil)

	cfg := config.Default()
	cfg.HTTPAddr = ""
	assert.ErrorContains(t, runner.Run(ctx, cfg, engine), "nothing to run")

	cfg.Readers = "imap"
	assert.ErrorContains(t, runner.Run(ctx, cfg, engine), `reader plugin "imap" not found`)

	cfg.Readers = "mbox"
	cfg.MboxPath = writeMbox(t)
	cfg.Writers = "json,bigquery"
	cfg.DataDir = t.TempDir()
	assert.ErrorContains(t, runner.Run(ctx, cfg, engine), `writer plugin "bigquery" not found`)
}

func TestNewEngine_SeedLabels(t *testing.T) {
	tests := []struct {
		name   string
		seed   bool
		wantOK bool
	}{
		{"off", false, false},
		{"on", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			engine, err := NewEngine(ctx, store.NewMemory(), EngineOptions{SeedLabels: tt.seed}, nil)
			require.NoError(t, err)

			category, ok, err := engine.Labels.Lookup(ctx, "swiggy")
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, "Food", category)
			}
		})
	}
}

func TestNewEngine_UnseededMerchantIsPending(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, store.NewMemory(), EngineOptions{}, nil)
	require.NoError(t, err)

	var requested []api.CategorizationRequested
	engine.Bus.Subscribe(func(_ context.Context, env *api.Envelope) {
		if ev, ok := env.Event.(api.CategorizationRequested); ok {
			requested = append(requested, ev)
		}
	})

	res, err := engine.Pipeline.Ingest(ctx, api.Message{
		Source:     "test",
		Sender:     "VM-HDFCBK",
		Body:       "Rs.500.00 debited from A/c XX1234 towards Swiggy.",
		ObservedAt: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.NotNil(t, res.Entry)
	assert.Equal(t, api.Uncategorized, res.Entry.Category)
	require.Len(t, requested, 1)
	assert.Equal(t, "Swiggy", requested[0].Merchant)
}

func TestNewEngine_SeedKeepsUserChoice(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	engine, err := NewEngine(ctx, st, EngineOptions{SeedLabels: true}, nil)
	require.NoError(t, err)
	require.NoError(t, engine.Labels.Assign(ctx, "swiggy", "Treats"))

	engine, err = NewEngine(ctx, st, EngineOptions{SeedLabels: true}, nil)
	require.NoError(t, err)
	category, ok, err := engine.Labels.Lookup(ctx, "swiggy")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Treats", category)
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		kind    string
		wantErr bool
	}{
		{config.StoreMemory, false},
		{config.StoreFile, false},
		{config.StoreSQLite, false},
		{"mongo", true},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			cfg := config.Default()
			cfg.Store = tt.kind
			cfg.DataDir = t.TempDir()

			st, closeStore, err := OpenStore(ctx, cfg, nil)
			defer closeStore()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			require.NoError(t, st.Set(ctx, store.KeyUserProfile, `{"monthly_income":1}`))
			got, err := st.Get(ctx, store.KeyUserProfile)
			require.NoError(t, err)
			assert.Equal(t, `{"monthly_income":1}`, got)
		})
	}
}
