// Package csv implements a Writer that appends transaction events to a CSV file.
package csv

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/ArionMiles/txnwatch/pkg/api"
	"github.com/ArionMiles/txnwatch/pkg/writer"
	"github.com/ArionMiles/txnwatch/pkg/writer/buffered"
)

// Writer writes transaction rows to a CSV file with buffered batching.
type Writer struct {
	filePath string
	file     *os.File
	mu       sync.Mutex
	buffered *buffered.Writer
	logger   *slog.Logger
}

// Config holds configuration for the CSV writer.
type Config struct {
	// FilePath is the path to the CSV output file.
	FilePath string `json:"file_path"`
	// BatchSize is the number of rows to buffer before writing.
	BatchSize int `json:"batch_size"`
	// FlushInterval is the interval between automatic flushes.
	FlushInterval time.Duration `json:"flush_interval"`
	// OnFlush is passed through to the buffered writer.
	OnFlush func(count int, err error) `json:"-"`
}

// New creates a new CSV writer. Headers are written when the file is empty.
func New(cfg Config, logger *slog.Logger) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening csv file: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		if closeErr := file.Close(); closeErr != nil {
			return nil, fmt.Errorf("stat csv file: %w (close error: %w)", err, closeErr)
		}
		return nil, fmt.Errorf("stat csv file: %w", err)
	}

	w := &Writer{
		filePath: cfg.FilePath,
		file:     file,
		logger:   logger,
	}

	if stat.Size() == 0 {
		if err := gocsv.Marshal([]writer.Row{}, file); err != nil {
			if closeErr := file.Close(); closeErr != nil {
				return nil, fmt.Errorf("writing headers: %w (close error: %w)", err, closeErr)
			}
			return nil, fmt.Errorf("writing headers: %w", err)
		}
	}

	w.buffered = buffered.New(w.flushBatch, buffered.Config{
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
		OnFlush:       cfg.OnFlush,
	}, logger.With("component", "csv_buffer"))

	logger.Info("csv writer initialized", "file", cfg.FilePath)
	return w, nil
}

// Write consumes envelopes from the input channel and writes transaction rows to CSV.
func (w *Writer) Write(ctx context.Context, in <-chan *api.Envelope) error {
	defer w.Close()
	return w.buffered.Write(ctx, in)
}

func (w *Writer) flushBatch(rows []writer.Row) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := gocsv.MarshalWithoutHeaders(rows, w.file); err != nil {
		return fmt.Errorf("writing csv rows: %w", err)
	}

	w.logger.Debug("wrote rows to csv", "count", len(rows))
	return nil
}

// Close closes the CSV file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.file.Close(); err != nil {
		return fmt.Errorf("closing csv file: %w", err)
	}

	w.logger.Info("csv writer closed", "file", w.filePath)
	return nil
}
