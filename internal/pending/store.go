// AngelaMos | 2026
// store.go

package pending

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/carterperez-dev/member-portal/internal/core"
)

// Registration is a user sign-up waiting for its email code. It lives
// only in the ephemeral store and becomes a durable User on verify.
type Registration struct {
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"password_hash"`
	OTP          string    `json:"otp"`
	OTPExpiresAt time.Time `json:"otp_expires_at"`
}

// Store is keyed by email. Put replaces any earlier entry for the same
// email as one write, so concurrent sign-ups resolve last write wins.
// Get returns core.ErrNotFound for a missing key.
type Store interface {
	Put(ctx context.Context, reg Registration) error
	Get(ctx context.Context, email string) (*Registration, error)
	Delete(ctx context.Context, email string) error
}

// Stats reports how many sign-ups are waiting for a code. Pool is set
// only for the Redis store.
type Stats struct {
	Pending int64      `json:"pending"`
	Pool    *PoolStats `json:"pool,omitempty"`
}

type PoolStats struct {
	Hits       uint32 `json:"hits"`
	Misses     uint32 `json:"misses"`
	Timeouts   uint32 `json:"timeouts"`
	TotalConns uint32 `json:"total_conns"`
	IdleConns  uint32 `json:"idle_conns"`
}

type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Registration
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string]Registration{}}
}

func (s *MemoryStore) Put(ctx context.Context, reg Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[reg.Email] = reg
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, email string) (*Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, ok := s.entries[email]
	if !ok {
		return nil, fmt.Errorf("pending registration %s: %w", email, core.ErrNotFound)
	}
	return &reg, nil
}

func (s *MemoryStore) Delete(ctx context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, email)
	return nil
}

func (s *MemoryStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &Stats{Pending: int64(len(s.entries))}, nil
}

var (
	_ Store = (*RedisStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
