// Package store provides key/value stores holding the persisted state of the
// pipeline. Each key holds one JSON document that is rewritten in full.
package store

import (
	"context"
	"sync"
)

// Persisted keys.
const (
	KeyTransactions       = "transactions"
	KeyMerchantCategories = "merchant_categories"
	KeyCategoryCaps       = "category_caps"
	KeyUserProfile        = "user_profile"
)

// Keys lists every key the pipeline reads or writes.
var Keys = []string{KeyTransactions, KeyMerchantCategories, KeyCategoryCaps, KeyUserProfile}

// Memory is an in-process store, used for tests and one-shot CLI runs.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

// Get returns the value for key, or "" if unset.
func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data[key], nil
}

// Set replaces the value for key.
func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}
