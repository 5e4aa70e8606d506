// Package server exposes the pipeline, ledger and cap settings over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ArionMiles/txnwatch/pkg/api"
	"github.com/ArionMiles/txnwatch/pkg/caps"
	"github.com/ArionMiles/txnwatch/pkg/labels"
	"github.com/ArionMiles/txnwatch/pkg/metrics"
	"github.com/ArionMiles/txnwatch/pkg/pipeline"
)

// Pipeline is satisfied by *pipeline.Pipeline.
type Pipeline interface {
	Ingest(ctx context.Context, msg api.Message) (pipeline.Result, error)
	AssignCategory(ctx context.Context, id, category string) (bool, error)
}

// Ledger is satisfied by *ledger.Ledger.
type Ledger interface {
	Entries(ctx context.Context) ([]api.LedgerEntry, error)
	Get(ctx context.Context, id string) (*api.LedgerEntry, error)
}

// Labels is satisfied by *labels.Memory.
type Labels interface {
	All(ctx context.Context) (labels.Labels, error)
}

// Settings is satisfied by *caps.Settings.
type Settings interface {
	Caps(ctx context.Context) (map[string]api.CapConfig, error)
	SetCap(ctx context.Context, category string, cfg api.CapConfig) error
	RemoveCap(ctx context.Context, category string) error
	Profile(ctx context.Context) (api.UserProfile, error)
	SetProfile(ctx context.Context, p api.UserProfile) error
}

// CapEvaluator is satisfied by *caps.Evaluator.
type CapEvaluator interface {
	Decide(ctx context.Context, category string, now time.Time) (caps.Decision, error)
}

// Config holds the dependencies of the HTTP API. Metrics and Now are optional.
type Config struct {
	Pipeline Pipeline
	Ledger   Ledger
	Labels   Labels
	Settings Settings
	Caps     CapEvaluator
	Metrics  *metrics.Metrics
	Now      func() time.Time
}

type handler struct {
	Config
	logger *slog.Logger
}

// NewRouter builds the HTTP routes.
func NewRouter(cfg Config, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	h := &handler{Config: cfg, logger: logger}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	if cfg.Metrics != nil {
		r.Use(instrument(cfg.Metrics))
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.Get("/health", h.health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/ingest", h.ingest)

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", h.listTransactions)
			r.Get("/{id}", h.getTransaction)
			r.Post("/{id}/category", h.assignCategory)
		})

		r.Get("/categories", h.categories)

		r.Route("/caps", func(r chi.Router) {
			r.Get("/", h.listCaps)
			r.Put("/{category}", h.setCap)
			r.Delete("/{category}", h.removeCap)
		})

		r.Get("/profile", h.getProfile)
		r.Put("/profile", h.setProfile)

		r.Get("/export", h.export)
	})

	return r
}

// Run serves handler on addr until ctx is canceled, then shuts down gracefully.
func Run(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", listener.Addr().String())
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	logger.Info("http server stopped")
	return nil
}
