// Package labels remembers which category the user picked for each merchant.
package labels

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ArionMiles/txnwatch/pkg/api"
	"github.com/ArionMiles/txnwatch/pkg/store"
)

//go:embed labels.json
var seedInput []byte

// Labels maps merchant keys to categories.
type Labels map[string]string

// DefaultSeed returns the built-in merchant labels.
func DefaultSeed() (Labels, error) {
	var l Labels
	if err := json.Unmarshal(seedInput, &l); err != nil {
		return nil, fmt.Errorf("parsing labels: %w", err)
	}
	return l, nil
}

// Memory is the persisted merchant key to category map.
// Keys must already be normalized with extract.MerchantKey.
type Memory struct {
	store  api.Store
	mu     sync.Mutex
	logger *slog.Logger
}

// New creates a category memory persisted in s.
func New(s api.Store, logger *slog.Logger) *Memory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Memory{store: s, logger: logger}
}

func (m *Memory) load(ctx context.Context) (Labels, error) {
	data, err := m.store.Get(ctx, store.KeyMerchantCategories)
	if err != nil {
		return nil, fmt.Errorf("loading merchant categories: %w", err)
	}

	labels := Labels{}
	if data == "" {
		return labels, nil
	}
	if err := json.Unmarshal([]byte(data), &labels); err != nil || labels == nil {
		m.logger.Warn("malformed merchant categories, treating as empty", "error", err)
		return Labels{}, nil
	}
	return labels, nil
}

func (m *Memory) save(ctx context.Context, labels Labels) error {
	data, err := json.Marshal(labels)
	if err != nil {
		return fmt.Errorf("encoding merchant categories: %w", err)
	}
	if err := m.store.Set(ctx, store.KeyMerchantCategories, string(data)); err != nil {
		return fmt.Errorf("saving merchant categories: %w", err)
	}
	return nil
}

// Lookup returns the remembered category for key.
func (m *Memory) Lookup(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	labels, err := m.load(ctx)
	if err != nil {
		return "", false, err
	}
	category, ok := labels[key]
	return category, ok, nil
}

// Assign remembers category for key, replacing any previous value.
func (m *Memory) Assign(ctx context.Context, key, category string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	labels, err := m.load(ctx)
	if err != nil {
		return err
	}
	if labels[key] == category {
		return nil
	}
	labels[key] = category

	m.logger.Debug("remembered merchant category", "merchant_key", key, "category", category)
	return m.save(ctx, labels)
}

// All returns a copy of every remembered label.
func (m *Memory) All(ctx context.Context) (Labels, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load(ctx)
}

// Seed adds the given labels for keys that have no category yet.
// User choices are never overwritten. It returns the number of labels added.
func (m *Memory) Seed(ctx context.Context, seed Labels) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	labels, err := m.load(ctx)
	if err != nil {
		return 0, err
	}

	added := 0
	for key, category := range seed {
		if _, exists := labels[key]; exists {
			continue
		}
		labels[key] = category
		added++
	}
	if added == 0 {
		return 0, nil
	}

	m.logger.Info("seeded merchant categories", "added", added, "total", len(labels))
	return added, m.save(ctx, labels)
}
