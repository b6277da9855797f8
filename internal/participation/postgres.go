// AngelaMos | 2026
// postgres.go

package participation

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/member-portal/internal/core"
)

const (
	eventColumns        = `id, title, event_date, created_at`
	registrationColumns = `id, event_id, registrant_id, performers, created_at`
)

type postgresRepository struct {
	root *sqlx.DB
	db   core.DBTX
	lock bool
}

func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{root: db, db: db}
}

func (r *postgresRepository) InTx(
	ctx context.Context,
	fn func(tx Repository) error,
) error {
	if r.lock {
		return fn(r)
	}

	return core.InTx(ctx, r.root, func(tx *sqlx.Tx) error {
		return fn(&postgresRepository{root: r.root, db: tx, lock: true})
	})
}

func (r *postgresRepository) forUpdate() string {
	if r.lock {
		return " FOR UPDATE"
	}
	return ""
}

func (r *postgresRepository) CreateEvent(ctx context.Context, event *Event) error {
	query := `
		INSERT INTO events (id, title, event_date)
		VALUES ($1, $2, $3)
		RETURNING created_at`

	err := r.db.GetContext(ctx, &event.CreatedAt, query,
		event.ID, event.Title, event.Date.Format("2006-01-02"))
	if err != nil {
		return fmt.Errorf("create event: %w", core.StorageError(err))
	}
	return nil
}

func (r *postgresRepository) FindEvent(ctx context.Context, id string) (*Event, error) {
	query := "SELECT " + eventColumns + " FROM events WHERE id = $1" + r.forUpdate()

	var event Event
	if err := r.db.GetContext(ctx, &event, query, id); err != nil {
		return nil, fmt.Errorf("find event %s: %w", id, core.StorageError(err))
	}
	return &event, nil
}

func (r *postgresRepository) ListEvents(ctx context.Context) ([]Event, error) {
	query := "SELECT " + eventColumns + " FROM events ORDER BY event_date ASC, title ASC"

	events := []Event{}
	if err := r.db.SelectContext(ctx, &events, query); err != nil {
		return nil, fmt.Errorf("list events: %w", core.StorageError(err))
	}
	return events, nil
}

func (r *postgresRepository) FindRegistration(
	ctx context.Context,
	id string,
) (*Registration, error) {
	query := "SELECT " + registrationColumns +
		" FROM event_registrations WHERE id = $1" + r.forUpdate()

	var reg Registration
	if err := r.db.GetContext(ctx, &reg, query, id); err != nil {
		return nil, fmt.Errorf("find registration %s: %w", id, core.StorageError(err))
	}
	return &reg, nil
}

func (r *postgresRepository) ListForRegistrant(
	ctx context.Context,
	eventID, registrantID string,
) ([]Registration, error) {
	query := "SELECT " + registrationColumns + `
		FROM event_registrations
		WHERE event_id = $1 AND registrant_id = $2
		ORDER BY created_at ASC`

	regs := []Registration{}
	if err := r.db.SelectContext(ctx, &regs, query, eventID, registrantID); err != nil {
		return nil, fmt.Errorf("list registrations: %w", core.StorageError(err))
	}
	return regs, nil
}

func (r *postgresRepository) ListByRegistrant(
	ctx context.Context,
	registrantID string,
) ([]Registration, error) {
	query := "SELECT " + registrationColumns + `
		FROM event_registrations
		WHERE registrant_id = $1
		ORDER BY created_at DESC`

	regs := []Registration{}
	if err := r.db.SelectContext(ctx, &regs, query, registrantID); err != nil {
		return nil, fmt.Errorf("list registrations: %w", core.StorageError(err))
	}
	return regs, nil
}

func (r *postgresRepository) CreateRegistration(
	ctx context.Context,
	reg *Registration,
) error {
	query := `
		INSERT INTO event_registrations (id, event_id, registrant_id, performers)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	err := r.db.GetContext(ctx, &reg.CreatedAt, query,
		reg.ID, reg.EventID, reg.RegistrantID, reg.Performers)
	if err != nil {
		return fmt.Errorf("create registration: %w", core.StorageError(err))
	}
	return nil
}

func (r *postgresRepository) DeleteRegistration(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM event_registrations WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete registration: %w", core.StorageError(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete registration: %w", core.StorageError(err))
	}
	if rows == 0 {
		return fmt.Errorf("delete registration %s: %w", id, core.ErrNotFound)
	}
	return nil
}
