// Package caps evaluates monthly category spend against configured caps.
package caps

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/ArionMiles/txnwatch/pkg/api"
)

// Thresholds, as a percentage of the cap.
var (
	warningPct  = decimal.NewFromInt(80)
	exceededPct = decimal.NewFromInt(100)
	hundred     = decimal.NewFromInt(100)
)

// Decision is the outcome of evaluating one category.
type Decision struct {
	Severity  api.Severity
	Spend     decimal.Decimal
	CapAmount decimal.Decimal
	// PctUsed is spend as a percentage of the cap, truncated.
	PctUsed int
}

// CapAmount resolves cfg into an absolute amount for the month.
func CapAmount(cfg api.CapConfig, profile api.UserProfile) decimal.Decimal {
	value := decimal.NewFromFloat(cfg.Value)
	if cfg.Kind == api.CapPercentage {
		return decimal.NewFromFloat(profile.MonthlyIncome).Mul(value).Div(hundred)
	}
	return value
}

// Evaluate grades spend against cfg. A nil cfg or a cap that resolves to zero
// or less yields SeverityNone.
func Evaluate(cfg *api.CapConfig, profile api.UserProfile, spend decimal.Decimal) Decision {
	d := Decision{Severity: api.SeverityNone, Spend: spend}
	if cfg == nil {
		return d
	}

	d.CapAmount = CapAmount(*cfg, profile)
	if !d.CapAmount.IsPositive() {
		return d
	}

	pct := spend.Div(d.CapAmount).Mul(hundred)
	d.PctUsed = int(pct.IntPart())

	switch {
	case pct.GreaterThanOrEqual(exceededPct):
		d.Severity = api.SeverityExceeded
	case pct.GreaterThanOrEqual(warningPct):
		d.Severity = api.SeverityWarning
	}
	return d
}

// Alert converts a decision into the published event.
func (d Decision) Alert(category string) api.CapAlert {
	return api.CapAlert{
		Category:  category,
		Spend:     d.Spend.StringFixed(2),
		CapAmount: d.CapAmount.StringFixed(2),
		PctUsed:   d.PctUsed,
		Severity:  d.Severity,
	}
}

// Title returns a short notification title for alert.
func Title(alert api.CapAlert) string {
	if alert.Severity == api.SeverityExceeded {
		return "Budget Exceeded: " + alert.Category
	}
	return "Spending Alert: " + alert.Category
}

// Message returns the user-facing notification text for alert.
func Message(alert api.CapAlert) string {
	if alert.Severity == api.SeverityExceeded {
		spend, _ := decimal.NewFromString(alert.Spend)
		capAmount, _ := decimal.NewFromString(alert.CapAmount)
		return "You've exceeded your cap by " + rupees(spend.Sub(capAmount))
	}
	return fmt.Sprintf("You've used %d%% of your %s budget", alert.PctUsed, alert.Category)
}

func rupees(d decimal.Decimal) string {
	paise := d.Mul(hundred).Round(0).IntPart()
	return money.New(paise, money.INR).Display()
}

// SpendSource reports spend per category for the month containing now.
type SpendSource interface {
	SpendInPeriod(ctx context.Context, category string, now time.Time) (decimal.Decimal, error)
}

// Evaluator loads caps and spend and decides whether to alert.
type Evaluator struct {
	settings *Settings
	spend    SpendSource
	logger   *slog.Logger
}

// NewEvaluator creates an evaluator reading caps from settings and spend from spend.
func NewEvaluator(settings *Settings, spend SpendSource, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{settings: settings, spend: spend, logger: logger}
}

// Check evaluates category for the month containing now. It returns nil when
// no alert is due.
func (e *Evaluator) Check(ctx context.Context, category string, now time.Time) (*api.CapAlert, error) {
	d, err := e.Decide(ctx, category, now)
	if err != nil || d.Severity == api.SeverityNone {
		return nil, err
	}

	alert := d.Alert(category)
	e.logger.Info("cap threshold reached",
		"category", category,
		"severity", alert.Severity,
		"pct_used", alert.PctUsed,
		"spend", alert.Spend,
		"cap", alert.CapAmount,
	)
	return &alert, nil
}

// Decide returns the full decision for category, including SeverityNone.
func (e *Evaluator) Decide(ctx context.Context, category string, now time.Time) (Decision, error) {
	cfg, err := e.settings.Cap(ctx, category)
	if err != nil {
		return Decision{}, err
	}
	profile, err := e.settings.Profile(ctx)
	if err != nil {
		return Decision{}, err
	}
	spend, err := e.spend.SpendInPeriod(ctx, category, now)
	if err != nil {
		return Decision{}, fmt.Errorf("computing spend for %s: %w", category, err)
	}
	return Evaluate(cfg, profile, spend), nil
}
