// Package daemon runs the txnwatch pipeline between the configured ingestion
// sources, egress sinks and HTTP API.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/ArionMiles/txnwatch/internal/plugins"
	"github.com/ArionMiles/txnwatch/internal/server"
	"github.com/ArionMiles/txnwatch/pkg/api"
	"github.com/ArionMiles/txnwatch/pkg/config"
	"github.com/ArionMiles/txnwatch/pkg/events"
)

// channelSize bounds the message, acknowledgment and per-sink event buffers.
const channelSize = 100

// Runner manages the txnwatch daemon lifecycle.
type Runner struct {
	registry   *plugins.Registry
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a new daemon runner. httpClient may be nil when no configured
// plugin talks to Google APIs.
func New(registry *plugins.Registry, httpClient *http.Client, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		registry:   registry,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Run feeds every configured reader through the engine's pipeline and fans
// events out to every configured writer. It returns when ctx is canceled, or
// once all readers are exhausted if the HTTP API is disabled.
func (r *Runner) Run(ctx context.Context, cfg config.Config, engine *Engine) error {
	readerNames, writerNames := cfg.ReaderNames(), cfg.WriterNames()
	if len(readerNames) == 0 && cfg.HTTPAddr == "" {
		return errors.New("nothing to run: set TXNWATCH_READERS or HTTP_ADDR")
	}

	r.logger.Info("starting txnwatch daemon",
		"readers", readerNames,
		"writers", writerNames,
		"store", cfg.Store,
		"http_addr", cfg.HTTPAddr,
	)

	env := plugins.Env{
		HTTPClient: r.httpClient,
		Config:     cfg,
		Metrics:    engine.Metrics,
		Logger:     r.logger,
	}

	readers := make(map[string]api.Reader, len(readerNames))
	for _, name := range readerNames {
		reader, err := r.registry.CreateReader(name, env)
		if err != nil {
			return fmt.Errorf("creating reader %s: %w", name, err)
		}
		readers[name] = reader
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stopWriters, err := r.startWriters(ctx, writerNames, env, engine.Bus)
	if err != nil {
		return err
	}

	serverDone := make(chan error, 1)
	if cfg.HTTPAddr != "" {
		router := server.NewRouter(server.Config{
			Pipeline: engine.Pipeline,
			Ledger:   engine.Ledger,
			Labels:   engine.Labels,
			Settings: engine.Settings,
			Caps:     engine.Caps,
			Metrics:  engine.Metrics,
		}, r.logger.With("component", "http"))
		go func() {
			err := server.Run(ctx, cfg.HTTPAddr, router, r.logger)
			if err != nil {
				cancel()
			}
			serverDone <- err
		}()
	}

	var wg sync.WaitGroup
	for name, reader := range readers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.consume(ctx, name, reader, engine)
		}()
	}

	r.logger.Info("daemon started")
	wg.Wait()

	var runErr error
	if cfg.HTTPAddr != "" {
		if ctx.Err() == nil {
			r.logger.Info("readers finished, serving http until shutdown")
		}
		if err := <-serverDone; err != nil {
			r.logger.Error("http server error", "error", err)
			runErr = err
		}
	}

	// closing the sink channels lets writers drain before ctx is canceled
	stopWriters()
	cancel()

	r.logger.Info("daemon stopped")
	return runErr
}

// consume runs one reader until it closes its channel, ingesting every
// message and acknowledging it whatever the outcome.
func (r *Runner) consume(ctx context.Context, name string, reader api.Reader, engine *Engine) {
	logger := r.logger.With("reader", name)

	messages := make(chan *api.Message, channelSize)
	acks := make(chan string, channelSize)

	readerDone := make(chan error, 1)
	go func() {
		readerDone <- reader.Read(ctx, messages, acks)
	}()

	for msg := range messages {
		res, err := engine.Pipeline.Ingest(ctx, *msg)
		if err != nil {
			logger.Error("message dropped", "message_id", msg.MessageID, "error", err)
		} else {
			logger.Debug("message processed", "message_id", msg.MessageID, "outcome", res.Outcome)
		}

		if msg.MessageID == "" {
			continue
		}
		select {
		case acks <- msg.MessageID:
		default:
			logger.Warn("acknowledgment channel full", "message_id", msg.MessageID)
		}
	}

	if err := <-readerDone; err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("reader error", "error", err)
	}
	close(acks)
}

// startWriters subscribes one buffered channel per writer to the bus and runs
// the writers. The returned function detaches them, lets them drain and waits.
func (r *Runner) startWriters(ctx context.Context, names []string, env plugins.Env, bus *events.Bus) (func(), error) {
	type sink struct {
		name        string
		ch          chan *api.Envelope
		unsubscribe func()
		done        chan error
	}

	sinks := make([]sink, 0, len(names))
	stop := func() {
		for _, s := range sinks {
			s.unsubscribe()
			close(s.ch)
		}
		for _, s := range sinks {
			if err := <-s.done; err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Error("writer error", "writer", s.name, "error", err)
			}
		}
	}

	for _, name := range names {
		writer, err := r.registry.CreateWriter(name, env)
		if err != nil {
			stop()
			return nil, fmt.Errorf("creating writer %s: %w", name, err)
		}

		s := sink{
			name: name,
			ch:   make(chan *api.Envelope, channelSize),
			done: make(chan error, 1),
		}
		s.unsubscribe = bus.Subscribe(events.Forward(s.ch, r.logger.With("writer", name)))
		go func() {
			s.done <- writer.Write(ctx, s.ch)
		}()
		sinks = append(sinks, s)
	}

	return stop, nil
}
