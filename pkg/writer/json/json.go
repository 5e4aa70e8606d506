// Package json implements a Writer that keeps transaction events in a JSON file.
package json

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ArionMiles/txnwatch/pkg/api"
	"github.com/ArionMiles/txnwatch/pkg/writer"
	"github.com/ArionMiles/txnwatch/pkg/writer/buffered"
)

// Writer writes transaction rows to a JSON file with buffered batching.
type Writer struct {
	filePath string
	rows     []writer.Row
	mu       sync.Mutex
	buffered *buffered.Writer
	logger   *slog.Logger
}

// Config holds configuration for the JSON writer.
type Config struct {
	// FilePath is the path to the JSON output file.
	FilePath string `json:"file_path"`
	// BatchSize is the number of rows to buffer before writing.
	BatchSize int `json:"batch_size"`
	// FlushInterval is the interval between automatic flushes.
	FlushInterval time.Duration `json:"flush_interval"`
	// OnFlush is passed through to the buffered writer.
	OnFlush func(count int, err error) `json:"-"`
}

// New creates a new JSON writer. Rows already in the file are kept.
func New(cfg Config, logger *slog.Logger) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	w := &Writer{
		filePath: cfg.FilePath,
		rows:     make([]writer.Row, 0),
		logger:   logger,
	}

	if err := w.loadExisting(); err != nil {
		logger.Warn("could not load existing rows", "error", err)
	}

	w.buffered = buffered.New(w.flushBatch, buffered.Config{
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
		OnFlush:       cfg.OnFlush,
	}, logger.With("component", "json_buffer"))

	logger.Info("json writer initialized", "file", cfg.FilePath, "existing_count", len(w.rows))
	return w, nil
}

func (w *Writer) loadExisting() error {
	data, err := os.ReadFile(w.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if len(data) == 0 {
		return nil
	}

	var rows []writer.Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return err
	}
	w.rows = rows
	return nil
}

// Write consumes envelopes from the input channel and writes transaction rows to JSON.
func (w *Writer) Write(ctx context.Context, in <-chan *api.Envelope) error {
	return w.buffered.Write(ctx, in)
}

// flushBatch appends rows and rewrites the whole file through a temp file.
func (w *Writer) flushBatch(rows []writer.Row) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.rows = append(w.rows, rows...)

	data, err := json.MarshalIndent(w.rows, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling json: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(w.filePath), ".txnwatch-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing json file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing json file: %w", err)
	}
	if err := os.Rename(tmp.Name(), w.filePath); err != nil {
		return fmt.Errorf("replacing json file: %w", err)
	}

	w.logger.Debug("wrote rows to json",
		"batch_count", len(rows),
		"total_count", len(w.rows),
	)
	return nil
}

// RowCount returns the total number of rows written.
func (w *Writer) RowCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.rows)
}
