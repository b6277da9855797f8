// AngelaMos | 2026
// repository.go

package participation

import (
	"context"
)

// Repository persists events and their registrations. Inside InTx,
// FindEvent and FindRegistration lock the row they return.
type Repository interface {
	CreateEvent(ctx context.Context, event *Event) error
	FindEvent(ctx context.Context, id string) (*Event, error)
	ListEvents(ctx context.Context) ([]Event, error)

	FindRegistration(ctx context.Context, id string) (*Registration, error)
	ListForRegistrant(ctx context.Context, eventID, registrantID string) ([]Registration, error)
	ListByRegistrant(ctx context.Context, registrantID string) ([]Registration, error)
	CreateRegistration(ctx context.Context, reg *Registration) error
	DeleteRegistration(ctx context.Context, id string) error

	InTx(ctx context.Context, fn func(tx Repository) error) error
}
