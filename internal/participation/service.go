// AngelaMos | 2026
// service.go

package participation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/member-portal/internal/core"
)

type Service struct {
	repo   Repository
	clock  core.Clock
	loc    *time.Location
	logger *slog.Logger
}

// NewService evaluates calendar days in loc.
func NewService(
	repo Repository,
	clock core.Clock,
	loc *time.Location,
	logger *slog.Logger,
) *Service {
	if clock == nil {
		clock = core.SystemClock()
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, clock: clock, loc: loc, logger: logger}
}

func (s *Service) CreateEvent(ctx context.Context, title string, date time.Time) (*Event, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, core.InvalidInput("event title is required")
	}

	y, m, d := date.Date()
	event := &Event{
		ID:        uuid.New().String(),
		Title:     title,
		Date:      time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		CreatedAt: s.clock.Now(),
	}

	if err := s.repo.CreateEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	return event, nil
}

func (s *Service) ListEvents(ctx context.Context) ([]Event, error) {
	events, err := s.repo.ListEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// Register enters a team for an event. The event row stays locked from
// the duplicate check through the insert.
func (s *Service) Register(
	ctx context.Context,
	eventID, registrantID string,
	performers []Performer,
) (*Registration, error) {
	if len(performers) == 0 {
		return nil, core.InvalidInput("at least one performer is required")
	}
	for _, p := range performers {
		if strings.TrimSpace(p.FirstName) == "" {
			return nil, core.InvalidInput("performer first name is required")
		}
	}

	candidate := &Registration{
		ID:           uuid.New().String(),
		EventID:      eventID,
		RegistrantID: registrantID,
		Performers:   trimPerformers(performers),
		CreatedAt:    s.clock.Now(),
	}

	err := s.repo.InTx(ctx, func(tx Repository) error {
		if _, err := tx.FindEvent(ctx, eventID); err != nil {
			return err
		}

		existing, err := tx.ListForRegistrant(ctx, eventID, registrantID)
		if err != nil {
			return err
		}
		if err := CheckDuplicate(existing, *candidate); err != nil {
			return err
		}

		return tx.CreateRegistration(ctx, candidate)
	})
	if err != nil {
		core.SetSpanError(ctx, "participation.register", err)
		return nil, fmt.Errorf("register for event %s: %w", eventID, err)
	}

	core.AddSpanEvent(ctx, "participation.registered",
		attribute.String("event.id", eventID),
		attribute.String("registration.id", candidate.ID),
	)

	return candidate, nil
}

// Cancel withdraws the caller's own registration while the event day
// has not yet begun.
func (s *Service) Cancel(ctx context.Context, registrationID, registrantID string) error {
	err := s.repo.InTx(ctx, func(tx Repository) error {
		reg, err := tx.FindRegistration(ctx, registrationID)
		if err != nil {
			return err
		}
		if reg.RegistrantID != registrantID {
			return fmt.Errorf("registration %s: %w", registrationID, core.ErrForbidden)
		}

		event, err := tx.FindEvent(ctx, reg.EventID)
		if err != nil {
			return err
		}
		if err := CheckCancellation(s.clock.Now(), event.Day(s.loc)); err != nil {
			return err
		}

		return tx.DeleteRegistration(ctx, registrationID)
	})
	if err != nil {
		if errors.Is(err, core.ErrCancellationClosed) {
			s.logger.InfoContext(ctx, "late cancellation refused",
				"registration_id", registrationID,
			)
		}
		core.SetSpanError(ctx, "participation.cancel", err)
		return fmt.Errorf("cancel registration: %w", err)
	}

	core.AddSpanEvent(ctx, "participation.cancelled",
		attribute.String("registration.id", registrationID),
	)
	return nil
}

func (s *Service) ListMine(ctx context.Context, registrantID string) ([]Registration, error) {
	regs, err := s.repo.ListByRegistrant(ctx, registrantID)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return regs, nil
}

func trimPerformers(in []Performer) Performers {
	out := make(Performers, 0, len(in))
	for _, p := range in {
		out = append(out, Performer{
			FirstName: strings.TrimSpace(p.FirstName),
			LastName:  strings.TrimSpace(p.LastName),
		})
	}
	return out
}
