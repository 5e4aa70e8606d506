// Package events fans published pipeline events out to subscribers.
package events

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/ArionMiles/txnwatch/pkg/api"
)

// Handler receives published envelopes. Handlers run synchronously on the
// publishing goroutine and must not block.
type Handler func(ctx context.Context, env *api.Envelope)

// Bus is an api.Publisher with any number of subscribers, including none.
type Bus struct {
	mu       sync.RWMutex
	handlers map[int]Handler
	next     int
	now      func() time.Time
	logger   *slog.Logger
}

// NewBus creates a bus with no subscribers.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		handlers: make(map[int]Handler),
		now:      time.Now,
		logger:   logger,
	}
}

// Subscribe registers h and returns a function that removes it.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	b.handlers[id] = h

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, id)
	}
}

// Publish wraps event in an envelope and hands it to every subscriber in
// subscription order. A panicking handler is logged and skipped.
func (b *Bus) Publish(ctx context.Context, event api.Event) {
	env := api.NewEnvelope(event, b.now())

	b.mu.RLock()
	ids := make([]int, 0, len(b.handlers))
	for id := range b.handlers {
		ids = append(ids, id)
	}
	handlers := make([]Handler, 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		handlers = append(handlers, b.handlers[id])
	}
	b.mu.RUnlock()

	b.logger.Debug("publishing event", "type", env.Type, "event_id", env.ID, "subscribers", len(handlers))
	for _, h := range handlers {
		b.deliver(ctx, h, env)
	}
}

func (b *Bus) deliver(ctx context.Context, h Handler, env *api.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked", "type", env.Type, "event_id", env.ID, "panic", r)
		}
	}()
	h(ctx, env)
}
