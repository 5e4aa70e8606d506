package caps

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArionMiles/txnwatch/pkg/api"
	"github.com/ArionMiles/txnwatch/pkg/store"
)

func TestEvaluate(t *testing.T) {
	absolute := &api.CapConfig{Kind: api.CapAbsolute, Value: 1000}
	percentage := &api.CapConfig{Kind: api.CapPercentage, Value: 10}
	profile := api.UserProfile{MonthlyIncome: 50000}

	tests := []struct {
		name     string
		cfg      *api.CapConfig
		profile  api.UserProfile
		spend    string
		severity api.Severity
		pct      int
	}{
		{"absolute warning", absolute, api.UserProfile{}, "850", api.SeverityWarning, 85},
		{"absolute exceeded", absolute, api.UserProfile{}, "1050", api.SeverityExceeded, 105},
		{"exactly at cap", absolute, api.UserProfile{}, "1000", api.SeverityExceeded, 100},
		{"exactly at warning", absolute, api.UserProfile{}, "800", api.SeverityWarning, 80},
		{"just below warning", absolute, api.UserProfile{}, "799.90", api.SeverityNone, 79},
		{"percentage of income", percentage, profile, "4000", api.SeverityWarning, 80},
		{"percentage exceeded", percentage, profile, "5000.01", api.SeverityExceeded, 100},
		{"percentage without income", percentage, api.UserProfile{}, "4000", api.SeverityNone, 0},
		{"zero cap", &api.CapConfig{Kind: api.CapAbsolute}, profile, "10", api.SeverityNone, 0},
		{"no cap", nil, profile, "10", api.SeverityNone, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Evaluate(tt.cfg, tt.profile, decimal.RequireFromString(tt.spend))
			assert.Equal(t, tt.severity, d.Severity)
			assert.Equal(t, tt.pct, d.PctUsed)
		})
	}
}

func TestMessage(t *testing.T) {
	warning := Evaluate(&api.CapConfig{Kind: api.CapAbsolute, Value: 1000}, api.UserProfile{}, decimal.NewFromInt(850)).Alert("Food")
	assert.Equal(t, "You've used 85% of your Food budget", Message(warning))
	assert.Equal(t, "Spending Alert: Food", Title(warning))
	assert.Equal(t, "850.00", warning.Spend)
	assert.Equal(t, "1000.00", warning.CapAmount)

	exceeded := Evaluate(&api.CapConfig{Kind: api.CapAbsolute, Value: 1000}, api.UserProfile{}, decimal.NewFromInt(1050)).Alert("Food")
	msg := Message(exceeded)
	assert.Contains(t, msg, "You've exceeded your cap by ")
	assert.Contains(t, msg, "₹")
	assert.Contains(t, msg, "50.00")
	assert.Equal(t, "Budget Exceeded: Food", Title(exceeded))
}

func TestSettings(t *testing.T) {
	ctx := context.Background()
	s := NewSettings(store.NewMemory(), nil)

	cfg, err := s.Cap(ctx, "Food")
	require.NoError(t, err)
	assert.Nil(t, cfg)

	require.NoError(t, s.SetCap(ctx, "Food", api.CapConfig{Kind: api.CapAbsolute, Value: 1000}))
	require.NoError(t, s.SetCap(ctx, "Bills", api.CapConfig{Kind: api.CapPercentage, Value: 15}))

	cfg, err = s.Cap(ctx, "Food")
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, api.CapConfig{Kind: api.CapAbsolute, Value: 1000}, *cfg)

	err = s.SetCap(ctx, "Food", api.CapConfig{Kind: "weekly", Value: 10})
	assert.ErrorIs(t, err, ErrInvalidCap)
	err = s.SetCap(ctx, "Food", api.CapConfig{Kind: api.CapAbsolute, Value: -1})
	assert.ErrorIs(t, err, ErrInvalidCap)

	require.NoError(t, s.RemoveCap(ctx, "Bills"))
	all, err := s.Caps(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, s.SetProfile(ctx, api.UserProfile{MonthlyIncome: 75000}))
	p, err := s.Profile(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 75000.0, p.MonthlyIncome, 0)
}

func TestSettings_PersistedFormat(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	require.NoError(t, st.Set(ctx, store.KeyCategoryCaps, `{"Food":{"type":"percentage","value":20}}`))
	require.NoError(t, st.Set(ctx, store.KeyUserProfile, `{"name":"Asha","monthly_income":40000}`))

	s := NewSettings(st, nil)
	cfg, err := s.Cap(ctx, "Food")
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, api.CapPercentage, cfg.Kind)

	p, err := s.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Asha", p.Name)
	assert.True(t, CapAmount(*cfg, p).Equal(decimal.NewFromInt(8000)))
}

func TestSettings_MalformedReadsEmpty(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	require.NoError(t, st.Set(ctx, store.KeyCategoryCaps, `not json`))
	require.NoError(t, st.Set(ctx, store.KeyUserProfile, `{"monthly_income":"lots"}`))

	s := NewSettings(st, nil)
	all, err := s.Caps(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	p, err := s.Profile(ctx)
	require.NoError(t, err)
	assert.Zero(t, p.MonthlyIncome)
}

type fixedSpend decimal.Decimal

func (f fixedSpend) SpendInPeriod(context.Context, string, time.Time) (decimal.Decimal, error) {
	return decimal.Decimal(f), nil
}

func TestEvaluator_Check(t *testing.T) {
	ctx := context.Background()
	settings := NewSettings(store.NewMemory(), nil)
	require.NoError(t, settings.SetCap(ctx, "Food", api.CapConfig{Kind: api.CapAbsolute, Value: 1000}))

	alert, err := NewEvaluator(settings, fixedSpend(decimal.NewFromInt(850)), nil).Check(ctx, "Food", time.Now())
	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Equal(t, api.SeverityWarning, alert.Severity)
	assert.Equal(t, 85, alert.PctUsed)

	alert, err = NewEvaluator(settings, fixedSpend(decimal.NewFromInt(100)), nil).Check(ctx, "Food", time.Now())
	require.NoError(t, err)
	assert.Nil(t, alert)

	alert, err = NewEvaluator(settings, fixedSpend(decimal.NewFromInt(5000)), nil).Check(ctx, "Travel", time.Now())
	require.NoError(t, err)
	assert.Nil(t, alert)
}
