package caps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ArionMiles/txnwatch/pkg/api"
	"github.com/ArionMiles/txnwatch/pkg/store"
)

// ErrInvalidCap is returned by SetCap for an unknown kind or a negative value.
var ErrInvalidCap = errors.New("invalid cap")

// Settings reads and writes the category_caps and user_profile keys.
// Malformed values read as empty defaults.
type Settings struct {
	store  api.Store
	mu     sync.Mutex
	logger *slog.Logger
}

// NewSettings creates settings persisted in s.
func NewSettings(s api.Store, logger *slog.Logger) *Settings {
	if logger == nil {
		logger = slog.Default()
	}
	return &Settings{store: s, logger: logger}
}

// read decodes key into v. It reports false when the key is unset or malformed,
// in which case v must be treated as unset.
func (s *Settings) read(ctx context.Context, key string, v any) (bool, error) {
	data, err := s.store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("loading %s: %w", key, err)
	}
	if data == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		s.logger.Warn("malformed settings, treating as empty", "key", key, "error", err)
		return false, nil
	}
	return true, nil
}

func (s *Settings) write(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	if err := s.store.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("saving %s: %w", key, err)
	}
	return nil
}

// Caps returns every configured cap.
func (s *Settings) Caps(ctx context.Context) (map[string]api.CapConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.caps(ctx)
}

func (s *Settings) caps(ctx context.Context) (map[string]api.CapConfig, error) {
	var caps map[string]api.CapConfig
	ok, err := s.read(ctx, store.KeyCategoryCaps, &caps)
	if err != nil {
		return nil, err
	}
	if !ok || caps == nil {
		caps = map[string]api.CapConfig{}
	}
	return caps, nil
}

// Cap returns the cap for category, or nil if none is configured.
func (s *Settings) Cap(ctx context.Context, category string) (*api.CapConfig, error) {
	caps, err := s.Caps(ctx)
	if err != nil {
		return nil, err
	}
	cfg, ok := caps[category]
	if !ok {
		return nil, nil
	}
	return &cfg, nil
}

// SetCap stores the cap for category.
func (s *Settings) SetCap(ctx context.Context, category string, cfg api.CapConfig) error {
	if cfg.Kind != api.CapPercentage && cfg.Kind != api.CapAbsolute {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidCap, cfg.Kind)
	}
	if cfg.Value < 0 {
		return fmt.Errorf("%w: negative value %v", ErrInvalidCap, cfg.Value)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	caps, err := s.caps(ctx)
	if err != nil {
		return err
	}
	caps[category] = cfg
	return s.write(ctx, store.KeyCategoryCaps, caps)
}

// RemoveCap deletes the cap for category.
func (s *Settings) RemoveCap(ctx context.Context, category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	caps, err := s.caps(ctx)
	if err != nil {
		return err
	}
	if _, ok := caps[category]; !ok {
		return nil
	}
	delete(caps, category)
	return s.write(ctx, store.KeyCategoryCaps, caps)
}

// Profile returns the stored user profile.
func (s *Settings) Profile(ctx context.Context) (api.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var p api.UserProfile
	ok, err := s.read(ctx, store.KeyUserProfile, &p)
	if err != nil || !ok {
		return api.UserProfile{}, err
	}
	return p, nil
}

// SetProfile replaces the stored user profile.
func (s *Settings) SetProfile(ctx context.Context, p api.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(ctx, store.KeyUserProfile, p)
}
