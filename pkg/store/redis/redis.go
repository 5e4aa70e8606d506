// Package redis provides a Redis-backed key/value store.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "txnwatch:"

// Config holds the Redis connection configuration.
type Config struct {
	URL    string `koanf:"REDIS_URL"`
	Prefix string `koanf:"REDIS_PREFIX"`
	// ConnectTimeout bounds the total time spent retrying the initial ping.
	ConnectTimeout time.Duration `koanf:"REDIS_CONNECT_TIMEOUT"`
}

// Store keeps each key as a plain Redis string.
type Store struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// New connects to Redis and verifies the connection with a ping.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = cfg.ConnectTimeout
	ping := func() error {
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("redis not ready", "addr", opts.Addr, "error", err)
			return err
		}
		return nil
	}
	if err := backoff.Retry(ping, backoff.WithContext(b, ctx)); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	logger.Info("connected to Redis", "addr", opts.Addr, "db", opts.DB)
	return NewWithClient(client, cfg.Prefix, logger), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, prefix string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{client: client, prefix: prefix, logger: logger}
}

// Get returns the value for key, or "" if it does not exist.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting %s: %w", key, err)
	}
	return value, nil
}

// Set stores value under key without expiry.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	return nil
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}
