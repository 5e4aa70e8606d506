package buffered

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ArionMiles/txnwatch/pkg/api"
	"github.com/ArionMiles/txnwatch/pkg/writer"
)

type sink struct {
	mu      sync.Mutex
	batches [][]writer.Row
}

func (s *sink) flush(rows []writer.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, rows)
	return nil
}

func (s *sink) count() (batches, rows int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.batches {
		rows += len(b)
	}
	return len(s.batches), rows
}

func detected(merchant string) *api.Envelope {
	return api.NewEnvelope(api.TransactionDetected{
		Transaction: api.Transaction{Kind: api.KindDebit, Amount: "1.00", Merchant: merchant, ObservedAt: time.Now()},
		Category:    api.Uncategorized,
	}, time.Now())
}

func TestWrite_FlushesOnBatchSizeAndClose(t *testing.T) {
	s := &sink{}
	w := New(s.flush, Config{BatchSize: 2, FlushInterval: time.Hour}, nil)

	in := make(chan *api.Envelope, 10)
	in <- detected("a")
	in <- api.NewEnvelope(api.CapAlert{Category: "Food"}, time.Now())
	in <- detected("b")
	in <- detected("c")
	close(in)

	if err := w.Write(context.Background(), in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	batches, rows := s.count()
	if batches != 2 || rows != 3 {
		t.Errorf("got %d batches / %d rows, want 2 / 3", batches, rows)
	}
	if w.BufferLen() != 0 {
		t.Errorf("buffer not drained: %d", w.BufferLen())
	}
}

func TestWrite_FlushesOnShutdown(t *testing.T) {
	s := &sink{}
	var flushed int
	w := New(s.flush, Config{BatchSize: 100, FlushInterval: time.Hour, OnFlush: func(n int, _ error) { flushed += n }}, nil)

	in := make(chan *api.Envelope, 1)
	in <- detected("a")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Write(ctx, in) }()

	deadline := time.Now().Add(2 * time.Second)
	for w.BufferLen() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
	if _, rows := s.count(); rows != 1 {
		t.Errorf("got %d rows, want 1", rows)
	}
	if flushed != 1 {
		t.Errorf("OnFlush: got %d, want 1", flushed)
	}
}

func TestWrite_FlushErrorOnClose(t *testing.T) {
	boom := errors.New("disk full")
	w := New(func([]writer.Row) error { return boom }, Config{BatchSize: 10, FlushInterval: time.Hour}, nil)

	in := make(chan *api.Envelope, 1)
	in <- detected("a")
	close(in)

	if err := w.Write(context.Background(), in); !errors.Is(err, boom) {
		t.Errorf("got %v, want %v", err, boom)
	}
}
