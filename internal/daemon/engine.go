package daemon

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ArionMiles/txnwatch/pkg/api"
	"github.com/ArionMiles/txnwatch/pkg/caps"
	"github.com/ArionMiles/txnwatch/pkg/config"
	"github.com/ArionMiles/txnwatch/pkg/events"
	"github.com/ArionMiles/txnwatch/pkg/labels"
	"github.com/ArionMiles/txnwatch/pkg/ledger"
	"github.com/ArionMiles/txnwatch/pkg/metrics"
	"github.com/ArionMiles/txnwatch/pkg/pipeline"
	"github.com/ArionMiles/txnwatch/pkg/store"
	"github.com/ArionMiles/txnwatch/pkg/store/postgres"
	"github.com/ArionMiles/txnwatch/pkg/store/redis"
	"github.com/ArionMiles/txnwatch/pkg/store/sqlite"
)

// OpenStore connects the backend selected by cfg.Store. The returned close
// function releases its connections and is never nil.
func OpenStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (api.Store, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "store", "backend", cfg.Store)
	noop := func() {}

	switch cfg.Store {
	case config.StoreMemory:
		return store.NewMemory(), noop, nil

	case config.StoreFile:
		s, err := store.NewFile(cfg.DataDir, logger)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil

	case config.StoreSQLite:
		s, err := sqlite.Open(cfg.SQLiteFile(), logger)
		if err != nil {
			return nil, noop, fmt.Errorf("opening sqlite store: %w", err)
		}
		return s, closeLogged(s.Close, logger), nil

	case config.StoreRedis:
		s, err := redis.New(ctx, cfg.Redis, logger)
		if err != nil {
			return nil, noop, fmt.Errorf("connecting to redis: %w", err)
		}
		return s, closeLogged(s.Close, logger), nil

	case config.StorePostgres:
		s, err := postgres.New(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, noop, fmt.Errorf("connecting to postgres: %w", err)
		}
		return s, s.Close, nil

	default:
		return nil, noop, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

func closeLogged(closeFn func() error, logger *slog.Logger) func() {
	return func() {
		if err := closeFn(); err != nil {
			logger.Warn("closing store", "error", err)
		}
	}
}

// Engine is the pipeline with every collaborator it needs, built over one store.
type Engine struct {
	Store    api.Store
	Ledger   *ledger.Ledger
	Labels   *labels.Memory
	Settings *caps.Settings
	Caps     *caps.Evaluator
	Bus      *events.Bus
	Metrics  *metrics.Metrics
	Pipeline *pipeline.Pipeline
}

// EngineOptions tunes NewEngine.
type EngineOptions struct {
	// Metrics defaults to a fresh registry.
	Metrics *metrics.Metrics
	// SeedLabels adds the built-in merchant labels for keys the user has not
	// categorised yet.
	SeedLabels bool
}

// NewEngine wires the pipeline over st. Events are logged and counted;
// further subscribers can be added to Bus.
func NewEngine(ctx context.Context, st api.Store, opts EngineOptions, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New(nil)
	}

	e := &Engine{
		Store:    st,
		Ledger:   ledger.New(st, logger.With("component", "ledger")),
		Labels:   labels.New(st, logger.With("component", "labels")),
		Settings: caps.NewSettings(st, logger.With("component", "caps")),
		Bus:      events.NewBus(logger.With("component", "events")),
		Metrics:  m,
	}
	e.Caps = caps.NewEvaluator(e.Settings, e.Ledger, logger.With("component", "caps"))

	if opts.SeedLabels {
		seed, err := labels.DefaultSeed()
		if err != nil {
			return nil, err
		}
		added, err := e.Labels.Seed(ctx, seed)
		if err != nil {
			return nil, fmt.Errorf("seeding labels: %w", err)
		}
		if added > 0 {
			logger.Info("seeded merchant labels", "added", added)
		}
	}

	e.Bus.Subscribe(events.LogHandler(logger.With("component", "notifier")))
	e.Bus.Subscribe(m.ObserveEvent)

	e.Pipeline = pipeline.New(pipeline.Deps{
		Ledger:    e.Ledger,
		Labels:    e.Labels,
		Caps:      e.Caps,
		Publisher: e.Bus,
		Metrics:   m,
	}, logger)

	return e, nil
}
