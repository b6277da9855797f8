// AngelaMos | 2026
// memory.go

package identity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/carterperez-dev/member-portal/internal/core"
)

// MemoryRepository keeps identities in process. Every call, and every
// InTx block as a whole, is serialized, so the find-check-save sequences
// behave as they do under row locks.
type MemoryRepository struct {
	mu   sync.Mutex
	data map[Kind]map[string]*Identity
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		data: map[Kind]map[string]*Identity{
			KindUser:   {},
			KindMember: {},
		},
	}
}

func (m *MemoryRepository) InTx(
	ctx context.Context,
	fn func(tx Repository) error,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()
	if err := fn(&memoryTx{store: m}); err != nil {
		m.data = snapshot
		return err
	}
	return nil
}

func (m *MemoryRepository) FindByID(ctx context.Context, kind Kind, id string) (*Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findByID(kind, id)
}

func (m *MemoryRepository) FindAnyByID(ctx context.Context, id string) (*Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findAnyByID(id)
}

func (m *MemoryRepository) FindByEmail(ctx context.Context, kind Kind, email string) (*Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findWhere(kind, func(i *Identity) bool {
		return i.Email == NormalizeEmail(email)
	})
}

func (m *MemoryRepository) FindByInvitationToken(ctx context.Context, token string) (*Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findByInvitation(token)
}

func (m *MemoryRepository) FindByResetHash(ctx context.Context, kind Kind, hash string) (*Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findByResetHash(kind, hash)
}

func (m *MemoryRepository) Create(ctx context.Context, identity *Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.create(identity)
}

func (m *MemoryRepository) Save(ctx context.Context, identity *Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.save(identity)
}

func (m *MemoryRepository) Delete(ctx context.Context, identity *Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.delete(identity)
}

func (m *MemoryRepository) List(ctx context.Context, kind Kind, params ListParams) ([]Identity, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.list(kind, params)
}

func (m *MemoryRepository) findByID(kind Kind, id string) (*Identity, error) {
	bucket, ok := m.data[kind]
	if !ok {
		return nil, fmt.Errorf("find identity: unknown kind %q: %w", kind, core.ErrInvalidInput)
	}
	found, ok := bucket[id]
	if !ok {
		return nil, fmt.Errorf("find %s %s: %w", kind, id, core.ErrNotFound)
	}
	return found.Clone(), nil
}

func (m *MemoryRepository) findAnyByID(id string) (*Identity, error) {
	for _, kind := range []Kind{KindUser, KindMember} {
		if found, ok := m.data[kind][id]; ok {
			return found.Clone(), nil
		}
	}
	return nil, fmt.Errorf("find identity %s: %w", id, core.ErrNotFound)
}

func (m *MemoryRepository) findWhere(kind Kind, match func(*Identity) bool) (*Identity, error) {
	for _, candidate := range m.data[kind] {
		if match(candidate) {
			return candidate.Clone(), nil
		}
	}
	return nil, fmt.Errorf("find %s: %w", kind, core.ErrNotFound)
}

func (m *MemoryRepository) findByInvitation(token string) (*Identity, error) {
	if token == "" {
		return nil, fmt.Errorf("find by invitation: %w", core.ErrNotFound)
	}
	return m.findWhere(KindMember, func(i *Identity) bool {
		return i.InvitationToken != nil && *i.InvitationToken == token
	})
}

func (m *MemoryRepository) findByResetHash(kind Kind, hash string) (*Identity, error) {
	if hash == "" {
		return nil, fmt.Errorf("find by reset token: %w", core.ErrNotFound)
	}
	return m.findWhere(kind, func(i *Identity) bool {
		return i.Reset != nil && i.Reset.Hash == hash
	})
}

func (m *MemoryRepository) create(identity *Identity) error {
	if err := identity.Validate(); err != nil {
		return fmt.Errorf("create identity: %w", err)
	}

	bucket := m.data[identity.Kind]
	if _, exists := bucket[identity.ID]; exists {
		return fmt.Errorf("create %s: %w", identity.Kind, core.ErrDuplicateKey)
	}
	if err := m.checkUnique(identity); err != nil {
		return fmt.Errorf("create %s: %w", identity.Kind, err)
	}

	bucket[identity.ID] = identity.Clone()
	return nil
}

func (m *MemoryRepository) save(identity *Identity) error {
	if err := identity.Validate(); err != nil {
		return fmt.Errorf("save identity: %w", err)
	}

	bucket := m.data[identity.Kind]
	if _, exists := bucket[identity.ID]; !exists {
		return fmt.Errorf("save %s: %w", identity.Kind, core.ErrNotFound)
	}
	if err := m.checkUnique(identity); err != nil {
		return fmt.Errorf("save %s: %w", identity.Kind, err)
	}

	bucket[identity.ID] = identity.Clone()
	return nil
}

func (m *MemoryRepository) checkUnique(identity *Identity) error {
	for id, other := range m.data[identity.Kind] {
		if id == identity.ID {
			continue
		}
		if other.Email == identity.Email {
			return fmt.Errorf("email %s: %w", identity.Email, core.ErrDuplicateKey)
		}
		if identity.InvitationToken != nil && other.InvitationToken != nil &&
			*identity.InvitationToken == *other.InvitationToken {
			return fmt.Errorf("invitation token: %w", core.ErrDuplicateKey)
		}
	}
	return nil
}

func (m *MemoryRepository) delete(identity *Identity) error {
	bucket, ok := m.data[identity.Kind]
	if !ok {
		return fmt.Errorf("delete identity: unknown kind %q: %w", identity.Kind, core.ErrInvalidInput)
	}
	if _, exists := bucket[identity.ID]; !exists {
		return fmt.Errorf("delete %s: %w", identity.Kind, core.ErrNotFound)
	}
	delete(bucket, identity.ID)
	return nil
}

func (m *MemoryRepository) list(kind Kind, params ListParams) ([]Identity, int, error) {
	params.Normalize()

	bucket, ok := m.data[kind]
	if !ok {
		return nil, 0, fmt.Errorf("list identities: unknown kind %q: %w", kind, core.ErrInvalidInput)
	}

	search := strings.ToLower(params.Search)
	matched := make([]Identity, 0, len(bucket))
	for _, candidate := range bucket {
		if search != "" &&
			!strings.Contains(strings.ToLower(candidate.Email), search) &&
			!strings.Contains(strings.ToLower(candidate.Name), search) {
			continue
		}
		matched = append(matched, *candidate.Clone())
	}

	sort.Slice(matched, func(a, b int) bool {
		if matched[a].CreatedAt.Equal(matched[b].CreatedAt) {
			return matched[a].Email < matched[b].Email
		}
		return matched[a].CreatedAt.After(matched[b].CreatedAt)
	})

	total := len(matched)
	start := min(params.Offset(), total)
	end := min(start+params.PageSize, total)

	return matched[start:end], total, nil
}

func (m *MemoryRepository) snapshot() map[Kind]map[string]*Identity {
	out := make(map[Kind]map[string]*Identity, len(m.data))
	for kind, bucket := range m.data {
		copied := make(map[string]*Identity, len(bucket))
		for id, identity := range bucket {
			copied[id] = identity.Clone()
		}
		out[kind] = copied
	}
	return out
}

// memoryTx runs against the store while the caller already holds its lock.
type memoryTx struct {
	store *MemoryRepository
}

func (t *memoryTx) InTx(ctx context.Context, fn func(tx Repository) error) error {
	return fn(t)
}

func (t *memoryTx) FindByID(ctx context.Context, kind Kind, id string) (*Identity, error) {
	return t.store.findByID(kind, id)
}

func (t *memoryTx) FindAnyByID(ctx context.Context, id string) (*Identity, error) {
	return t.store.findAnyByID(id)
}

func (t *memoryTx) FindByEmail(ctx context.Context, kind Kind, email string) (*Identity, error) {
	return t.store.findWhere(kind, func(i *Identity) bool {
		return i.Email == NormalizeEmail(email)
	})
}

func (t *memoryTx) FindByInvitationToken(ctx context.Context, token string) (*Identity, error) {
	return t.store.findByInvitation(token)
}

func (t *memoryTx) FindByResetHash(ctx context.Context, kind Kind, hash string) (*Identity, error) {
	return t.store.findByResetHash(kind, hash)
}

func (t *memoryTx) Create(ctx context.Context, identity *Identity) error {
	return t.store.create(identity)
}

func (t *memoryTx) Save(ctx context.Context, identity *Identity) error {
	return t.store.save(identity)
}

func (t *memoryTx) Delete(ctx context.Context, identity *Identity) error {
	return t.store.delete(identity)
}

func (t *memoryTx) List(ctx context.Context, kind Kind, params ListParams) ([]Identity, int, error) {
	return t.store.list(kind, params)
}

func isNotFound(err error) bool {
	return errors.Is(err, core.ErrNotFound)
}

var (
	_ Repository = (*MemoryRepository)(nil)
	_ Repository = (*memoryTx)(nil)
)
