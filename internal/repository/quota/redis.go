package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"
)

// RedisConfig holds connection parameters for the Redis/Valkey quota store.
type RedisConfig struct {
	Addrs    []string
	Username string
	Password string
	DB       int
}

// RedisStore is a counter store backed by Redis or Valkey via rueidis.
// INCR is atomic server-side, so multiple service instances share one
// linearizable counter per key.
type RedisStore struct {
	client rueidis.Client
}

// NewRedisStore creates a Redis-backed quota store.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// Incr increments the counter at key and returns the new count.
// TTL is attached only when the key has no expiry yet (EXPIRE NX), so
// repeated increments within one window never push the deadline out.
func (s *RedisStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	incr := s.client.B().Incr().Key(key).Build()
	count, err := s.client.Do(ctx, incr).AsInt64()
	if err != nil {
		return 0, fmt.Errorf("quota INCR %s: %w", key, err)
	}

	expire := s.client.B().Expire().Key(key).Seconds(int64(ttl.Seconds())).Nx().Build()
	if err := s.client.Do(ctx, expire).Error(); err != nil {
		return 0, fmt.Errorf("quota EXPIRE %s: %w", key, err)
	}

	return count, nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	cmd := s.client.B().Ping().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// WaitForReady polls Ping until the store responds or timeout expires.
func (s *RedisStore) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for quota store: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

// Close shuts down the client.
func (s *RedisStore) Close() {
	s.client.Close()
}
