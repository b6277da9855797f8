// AngelaMos | 2026
// redis.go

package pending

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/member-portal/internal/config"
	"github.com/carterperez-dev/member-portal/internal/core"
)

const (
	keyPrefix   = "pending:"
	pingTimeout = 5 * time.Second
	scanBatch   = 100
)

// RedisStore holds each pending registration as one JSON value under
// pending:<email>, expiring after the retention window.
type RedisStore struct {
	client    *redis.Client
	retention time.Duration
}

// Dial connects to the Redis named by cfg and confirms it answers
// before the store is handed out.
func Dial(
	ctx context.Context,
	cfg config.RedisConfig,
	retention time.Duration,
) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.PoolTimeout = 30 * time.Second
	opts.ConnMaxIdleTime = 5 * time.Minute

	store := NewRedisStore(redis.NewClient(opts), retention)
	if err := store.Ping(ctx); err != nil {
		_ = store.Close() //nolint:errcheck // already failing
		return nil, err
	}
	return store, nil
}

// NewRedisStore keeps entries for retention. Expiry of the code itself
// is judged from OTPExpiresAt, so retention should outlive the OTP
// lifetime for a late attempt to report expiry instead of absence.
func NewRedisStore(client *redis.Client, retention time.Duration) *RedisStore {
	return &RedisStore{client: client, retention: retention}
}

func (s *RedisStore) Put(ctx context.Context, reg Registration) error {
	payload, err := json.Marshal(reg)
	if err != nil {
		return fmt.Errorf("encode pending registration: %w", err)
	}

	if err := s.client.Set(ctx, keyPrefix+reg.Email, payload, s.retention).Err(); err != nil {
		return fmt.Errorf("store pending registration: %w: %w", core.ErrStorage, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, email string) (*Registration, error) {
	payload, err := s.client.Get(ctx, keyPrefix+email).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("pending registration %s: %w", email, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load pending registration: %w: %w", core.ErrStorage, err)
	}

	var reg Registration
	if err := json.Unmarshal(payload, &reg); err != nil {
		return nil, fmt.Errorf("decode pending registration: %w: %w", core.ErrStorage, err)
	}
	return &reg, nil
}

func (s *RedisStore) Delete(ctx context.Context, email string) error {
	if err := s.client.Del(ctx, keyPrefix+email).Err(); err != nil {
		return fmt.Errorf("delete pending registration: %w: %w", core.ErrStorage, err)
	}
	return nil
}

// Ping backs the /readyz redis check.
func (s *RedisStore) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := s.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("ping pending store: %w: %w", core.ErrStorage, err)
	}
	return nil
}

// Stats counts live pending keys with SCAN, so it never blocks the
// server the way KEYS would.
func (s *RedisStore) Stats(ctx context.Context) (*Stats, error) {
	var n int64
	iter := s.client.Scan(ctx, 0, keyPrefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("count pending registrations: %w: %w", core.ErrStorage, err)
	}

	pool := s.client.PoolStats()
	return &Stats{
		Pending: n,
		Pool: &PoolStats{
			Hits:       pool.Hits,
			Misses:     pool.Misses,
			Timeouts:   pool.Timeouts,
			TotalConns: pool.TotalConns,
			IdleConns:  pool.IdleConns,
		},
	}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
