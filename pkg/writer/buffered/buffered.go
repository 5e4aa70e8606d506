// Package buffered provides a buffered writer base for batch writes.
package buffered

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ArionMiles/txnwatch/pkg/api"
	"github.com/ArionMiles/txnwatch/pkg/writer"
)

// DefaultBatchSize is the default number of rows to buffer before flushing.
const DefaultBatchSize = 10

// DefaultFlushInterval is the default interval between automatic flushes.
const DefaultFlushInterval = 30 * time.Second

// Flusher is called when the buffer needs to be flushed.
type Flusher func(rows []writer.Row) error

// Config holds configuration for buffered writing.
type Config struct {
	// BatchSize is the number of rows to buffer before flushing.
	// Defaults to DefaultBatchSize.
	BatchSize int
	// FlushInterval is the interval between automatic flushes.
	// Defaults to DefaultFlushInterval.
	FlushInterval time.Duration
	// OnFlush, if set, is called after every flush attempt.
	OnFlush func(count int, err error)
}

// Writer buffers transaction rows and flushes them in batches.
type Writer struct {
	buffer  []writer.Row
	mu      sync.Mutex
	flusher Flusher
	config  Config
	logger  *slog.Logger
}

// New creates a new buffered writer with the given flusher function.
func New(flusher Flusher, cfg Config, logger *slog.Logger) *Writer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Writer{
		buffer:  make([]writer.Row, 0, cfg.BatchSize),
		flusher: flusher,
		config:  cfg,
		logger:  logger,
	}
}

// Write consumes envelopes from the input channel and buffers the transaction
// events among them for batch writes. Other events are ignored.
func (w *Writer) Write(ctx context.Context, in <-chan *api.Envelope) error {
	ticker := time.NewTicker(w.config.FlushInterval)
	defer ticker.Stop()

	w.logger.Info("buffered writer started",
		"batch_size", w.config.BatchSize,
		"flush_interval", w.config.FlushInterval,
	)

	for {
		select {
		case <-ctx.Done():
			return w.handleShutdown()
		case <-ticker.C:
			w.handleTimerFlush()
		case env, ok := <-in:
			if done, err := w.handleEnvelope(env, ok); done {
				return err
			}
		}
	}
}

func (w *Writer) handleShutdown() error {
	w.logger.Info("buffered writer stopping, flushing remaining buffer")
	if err := w.flush(); err != nil {
		w.logger.Error("failed to flush on shutdown", "error", err)
	}
	return context.Canceled
}

func (w *Writer) handleTimerFlush() {
	if err := w.flush(); err != nil {
		w.logger.Error("failed to flush on interval", "error", err)
	}
}

func (w *Writer) handleEnvelope(env *api.Envelope, ok bool) (bool, error) {
	if !ok {
		w.logger.Info("input channel closed, flushing remaining buffer")
		if err := w.flush(); err != nil {
			w.logger.Error("failed to flush on close", "error", err)
			return true, err
		}
		return true, nil
	}

	row, isRow := writer.RowFrom(env)
	if !isRow {
		return false, nil
	}

	w.mu.Lock()
	w.buffer = append(w.buffer, row)
	shouldFlush := len(w.buffer) >= w.config.BatchSize
	w.mu.Unlock()

	if shouldFlush {
		if err := w.flush(); err != nil {
			w.logger.Error("failed to flush on batch size", "error", err)
		}
	}
	return false, nil
}

// flush writes all buffered rows using the flusher function.
func (w *Writer) flush() error {
	w.mu.Lock()
	if len(w.buffer) == 0 {
		w.mu.Unlock()
		return nil
	}

	toFlush := make([]writer.Row, len(w.buffer))
	copy(toFlush, w.buffer)
	w.buffer = w.buffer[:0]
	w.mu.Unlock()

	w.logger.Debug("flushing buffer", "count", len(toFlush))

	err := w.flusher(toFlush)
	if w.config.OnFlush != nil {
		w.config.OnFlush(len(toFlush), err)
	}
	if err != nil {
		return err
	}

	w.logger.Info("flushed rows", "count", len(toFlush))
	return nil
}

// BufferLen returns the current number of buffered rows.
func (w *Writer) BufferLen() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.buffer)
}
