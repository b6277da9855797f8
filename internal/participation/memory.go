// AngelaMos | 2026
// memory.go

package participation

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/carterperez-dev/member-portal/internal/core"
)

// MemoryRepository serializes every call and every InTx block, which
// stands in for the event row lock.
type MemoryRepository struct {
	mu            sync.Mutex
	events        map[string]Event
	registrations map[string]Registration
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		events:        map[string]Event{},
		registrations: map[string]Registration{},
	}
}

func (m *MemoryRepository) InTx(
	ctx context.Context,
	fn func(tx Repository) error,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	events := maps.Clone(m.events)
	registrations := maps.Clone(m.registrations)

	if err := fn(&memoryTx{store: m}); err != nil {
		m.events = events
		m.registrations = registrations
		return err
	}
	return nil
}

func (m *MemoryRepository) CreateEvent(ctx context.Context, event *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createEvent(event)
}

func (m *MemoryRepository) FindEvent(ctx context.Context, id string) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findEvent(id)
}

func (m *MemoryRepository) ListEvents(ctx context.Context) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listEvents(), nil
}

func (m *MemoryRepository) FindRegistration(ctx context.Context, id string) (*Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findRegistration(id)
}

func (m *MemoryRepository) ListForRegistrant(
	ctx context.Context,
	eventID, registrantID string,
) ([]Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listWhere(func(r Registration) bool {
		return r.EventID == eventID && r.RegistrantID == registrantID
	}), nil
}

func (m *MemoryRepository) ListByRegistrant(
	ctx context.Context,
	registrantID string,
) ([]Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listWhere(func(r Registration) bool {
		return r.RegistrantID == registrantID
	}), nil
}

func (m *MemoryRepository) CreateRegistration(ctx context.Context, reg *Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createRegistration(reg)
}

func (m *MemoryRepository) DeleteRegistration(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteRegistration(id)
}

func (m *MemoryRepository) createEvent(event *Event) error {
	if _, ok := m.events[event.ID]; ok {
		return fmt.Errorf("create event %s: %w", event.ID, core.ErrDuplicateKey)
	}
	m.events[event.ID] = *event
	return nil
}

func (m *MemoryRepository) findEvent(id string) (*Event, error) {
	event, ok := m.events[id]
	if !ok {
		return nil, fmt.Errorf("find event %s: %w", id, core.ErrNotFound)
	}
	return &event, nil
}

func (m *MemoryRepository) listEvents() []Event {
	out := make([]Event, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e)
	}
	sort.Slice(out, func(a, b int) bool {
		if !out[a].Date.Equal(out[b].Date) {
			return out[a].Date.Before(out[b].Date)
		}
		return out[a].Title < out[b].Title
	})
	return out
}

func (m *MemoryRepository) findRegistration(id string) (*Registration, error) {
	reg, ok := m.registrations[id]
	if !ok {
		return nil, fmt.Errorf("find registration %s: %w", id, core.ErrNotFound)
	}
	reg.Performers = append(Performers(nil), reg.Performers...)
	return &reg, nil
}

func (m *MemoryRepository) listWhere(match func(Registration) bool) []Registration {
	out := []Registration{}
	for _, r := range m.registrations {
		if match(r) {
			r.Performers = append(Performers(nil), r.Performers...)
			out = append(out, r)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if !out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].CreatedAt.After(out[b].CreatedAt)
		}
		return out[a].ID < out[b].ID
	})
	return out
}

func (m *MemoryRepository) createRegistration(reg *Registration) error {
	if _, ok := m.events[reg.EventID]; !ok {
		return fmt.Errorf("create registration: event %s: %w", reg.EventID, core.ErrNotFound)
	}
	if _, ok := m.registrations[reg.ID]; ok {
		return fmt.Errorf("create registration %s: %w", reg.ID, core.ErrDuplicateKey)
	}
	stored := *reg
	stored.Performers = append(Performers(nil), reg.Performers...)
	m.registrations[reg.ID] = stored
	return nil
}

func (m *MemoryRepository) deleteRegistration(id string) error {
	if _, ok := m.registrations[id]; !ok {
		return fmt.Errorf("delete registration %s: %w", id, core.ErrNotFound)
	}
	delete(m.registrations, id)
	return nil
}

// memoryTx runs against the store while InTx holds its lock.
type memoryTx struct {
	store *MemoryRepository
}

func (t *memoryTx) InTx(ctx context.Context, fn func(tx Repository) error) error {
	return fn(t)
}

func (t *memoryTx) CreateEvent(ctx context.Context, event *Event) error {
	return t.store.createEvent(event)
}

func (t *memoryTx) FindEvent(ctx context.Context, id string) (*Event, error) {
	return t.store.findEvent(id)
}

func (t *memoryTx) ListEvents(ctx context.Context) ([]Event, error) {
	return t.store.listEvents(), nil
}

func (t *memoryTx) FindRegistration(ctx context.Context, id string) (*Registration, error) {
	return t.store.findRegistration(id)
}

func (t *memoryTx) ListForRegistrant(
	ctx context.Context,
	eventID, registrantID string,
) ([]Registration, error) {
	return t.store.listWhere(func(r Registration) bool {
		return r.EventID == eventID && r.RegistrantID == registrantID
	}), nil
}

func (t *memoryTx) ListByRegistrant(ctx context.Context, registrantID string) ([]Registration, error) {
	return t.store.listWhere(func(r Registration) bool {
		return r.RegistrantID == registrantID
	}), nil
}

func (t *memoryTx) CreateRegistration(ctx context.Context, reg *Registration) error {
	return t.store.createRegistration(reg)
}

func (t *memoryTx) DeleteRegistration(ctx context.Context, id string) error {
	return t.store.deleteRegistration(id)
}

var (
	_ Repository = (*MemoryRepository)(nil)
	_ Repository = (*memoryTx)(nil)
)
