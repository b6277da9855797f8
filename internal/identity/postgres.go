// AngelaMos | 2026
// postgres.go

package identity

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/member-portal/internal/core"
)

type userRow struct {
	ID             string         `db:"id"`
	Email          string         `db:"email"`
	Name           string         `db:"name"`
	PasswordHash   sql.NullString `db:"password_hash"`
	EmailVerified  bool           `db:"email_verified"`
	IsBlocked      bool           `db:"is_blocked"`
	BlockedUntil   sql.NullTime   `db:"blocked_until"`
	BlockReason    sql.NullString `db:"block_reason"`
	ResetTokenHash sql.NullString `db:"reset_token_hash"`
	ResetExpiresAt sql.NullTime   `db:"reset_expires_at"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

type memberRow struct {
	ID              string         `db:"id"`
	Email           string         `db:"email"`
	Name            string         `db:"name"`
	Designation     string         `db:"designation"`
	Status          string         `db:"status"`
	PasswordHash    sql.NullString `db:"password_hash"`
	InvitationToken sql.NullString `db:"invitation_token"`
	InvitedAt       sql.NullTime   `db:"invited_at"`
	ImageID         sql.NullString `db:"image_id"`
	ImageURL        sql.NullString `db:"image_url"`
	IsBlocked       bool           `db:"is_blocked"`
	BlockedUntil    sql.NullTime   `db:"blocked_until"`
	BlockReason     sql.NullString `db:"block_reason"`
	ResetTokenHash  sql.NullString `db:"reset_token_hash"`
	ResetExpiresAt  sql.NullTime   `db:"reset_expires_at"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

const (
	userColumns = `id, email, name, password_hash, email_verified,
		is_blocked, blocked_until, block_reason,
		reset_token_hash, reset_expires_at, created_at, updated_at`
	memberColumns = `id, email, name, designation, status, password_hash,
		invitation_token, invited_at, image_id, image_url,
		is_blocked, blocked_until, block_reason,
		reset_token_hash, reset_expires_at, created_at, updated_at`
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

func (r *postgresRepository) FindByID(
	ctx context.Context,
	kind Kind,
	id string,
) (*Identity, error) {
	return r.findOne(ctx, kind, "id = $1", id)
}

func (r *postgresRepository) FindAnyByID(
	ctx context.Context,
	id string,
) (*Identity, error) {
	for _, kind := range []Kind{KindUser, KindMember} {
		found, err := r.FindByID(ctx, kind, id)
		if err == nil {
			return found, nil
		}
		if !isNotFound(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("find identity %s: %w", id, core.ErrNotFound)
}

func (r *postgresRepository) FindByEmail(
	ctx context.Context,
	kind Kind,
	email string,
) (*Identity, error) {
	return r.findOne(ctx, kind, "email = $1", NormalizeEmail(email))
}

func (r *postgresRepository) FindByInvitationToken(
	ctx context.Context,
	token string,
) (*Identity, error) {
	if token == "" {
		return nil, fmt.Errorf("find by invitation: %w", core.ErrNotFound)
	}
	return r.findOne(ctx, KindMember, "invitation_token = $1", token)
}

func (r *postgresRepository) FindByResetHash(
	ctx context.Context,
	kind Kind,
	hash string,
) (*Identity, error) {
	if hash == "" {
		return nil, fmt.Errorf("find by reset token: %w", core.ErrNotFound)
	}
	return r.findOne(ctx, kind, "reset_token_hash = $1", hash)
}

func (r *postgresRepository) findOne(
	ctx context.Context,
	kind Kind,
	where string,
	arg any,
) (*Identity, error) {
	switch kind {
	case KindUser:
		query := "SELECT " + userColumns + " FROM users WHERE " + where +
			r.forUpdate()
		var row userRow
		if err := r.db.GetContext(ctx, &row, query, arg); err != nil {
			return nil, fmt.Errorf("find user: %w", core.StorageError(err))
		}
		return row.toIdentity(), nil
	case KindMember:
		query := "SELECT " + memberColumns + " FROM members WHERE " + where +
			r.forUpdate()
		var row memberRow
		if err := r.db.GetContext(ctx, &row, query, arg); err != nil {
			return nil, fmt.Errorf("find member: %w", core.StorageError(err))
		}
		return row.toIdentity(), nil
	}
	return nil, fmt.Errorf("find identity: unknown kind %q: %w", kind, core.ErrInvalidInput)
}

func (r *postgresRepository) Create(ctx context.Context, identity *Identity) error {
	if err := identity.Validate(); err != nil {
		return fmt.Errorf("create identity: %w", err)
	}

	var query string
	var args []any

	switch identity.Kind {
	case KindUser:
		row := newUserRow(identity)
		query = `
			INSERT INTO users (
				id, email, name, password_hash, email_verified,
				is_blocked, blocked_until, block_reason,
				reset_token_hash, reset_expires_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING created_at, updated_at`
		args = []any{
			row.ID, row.Email, row.Name, row.PasswordHash, row.EmailVerified,
			row.IsBlocked, row.BlockedUntil, row.BlockReason,
			row.ResetTokenHash, row.ResetExpiresAt,
		}
	case KindMember:
		row := newMemberRow(identity)
		query = `
			INSERT INTO members (
				id, email, name, designation, status, password_hash,
				invitation_token, invited_at, image_id, image_url,
				is_blocked, blocked_until, block_reason,
				reset_token_hash, reset_expires_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			RETURNING created_at, updated_at`
		args = []any{
			row.ID, row.Email, row.Name, row.Designation, row.Status,
			row.PasswordHash, row.InvitationToken, row.InvitedAt,
			row.ImageID, row.ImageURL,
			row.IsBlocked, row.BlockedUntil, row.BlockReason,
			row.ResetTokenHash, row.ResetExpiresAt,
		}
	}

	var stamps struct {
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}
	if err := r.db.GetContext(ctx, &stamps, query, args...); err != nil {
		return fmt.Errorf("create %s: %w", identity.Kind, core.StorageError(err))
	}

	identity.CreatedAt = stamps.CreatedAt
	identity.UpdatedAt = stamps.UpdatedAt
	return nil
}

// Save writes the full record in one statement.
func (r *postgresRepository) Save(ctx context.Context, identity *Identity) error {
	if err := identity.Validate(); err != nil {
		return fmt.Errorf("save identity: %w", err)
	}

	var query string
	var args []any

	switch identity.Kind {
	case KindUser:
		row := newUserRow(identity)
		query = `
			UPDATE users
			SET email = $2, name = $3, password_hash = $4, email_verified = $5,
			    is_blocked = $6, blocked_until = $7, block_reason = $8,
			    reset_token_hash = $9, reset_expires_at = $10, updated_at = NOW()
			WHERE id = $1
			RETURNING updated_at`
		args = []any{
			row.ID, row.Email, row.Name, row.PasswordHash, row.EmailVerified,
			row.IsBlocked, row.BlockedUntil, row.BlockReason,
			row.ResetTokenHash, row.ResetExpiresAt,
		}
	case KindMember:
		row := newMemberRow(identity)
		query = `
			UPDATE members
			SET email = $2, name = $3, designation = $4, status = $5,
			    password_hash = $6, invitation_token = $7, invited_at = $8,
			    image_id = $9, image_url = $10,
			    is_blocked = $11, blocked_until = $12, block_reason = $13,
			    reset_token_hash = $14, reset_expires_at = $15, updated_at = NOW()
			WHERE id = $1
			RETURNING updated_at`
		args = []any{
			row.ID, row.Email, row.Name, row.Designation, row.Status,
			row.PasswordHash, row.InvitationToken, row.InvitedAt,
			row.ImageID, row.ImageURL,
			row.IsBlocked, row.BlockedUntil, row.BlockReason,
			row.ResetTokenHash, row.ResetExpiresAt,
		}
	}

	if err := r.db.GetContext(ctx, &identity.UpdatedAt, query, args...); err != nil {
		return fmt.Errorf("save %s: %w", identity.Kind, core.StorageError(err))
	}

	return nil
}

func (r *postgresRepository) Delete(ctx context.Context, identity *Identity) error {
	table, err := tableFor(identity.Kind)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = $1", identity.ID)
	if err != nil {
		return fmt.Errorf("delete %s: %w", identity.Kind, core.StorageError(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s: %w", identity.Kind, core.StorageError(err))
	}

	if rows == 0 {
		return fmt.Errorf("delete %s: %w", identity.Kind, core.ErrNotFound)
	}

	return nil
}

func (r *postgresRepository) List(
	ctx context.Context,
	kind Kind,
	params ListParams,
) ([]Identity, int, error) {
	params.Normalize()

	table, err := tableFor(kind)
	if err != nil {
		return nil, 0, err
	}

	where := "TRUE"
	var args []any
	if params.Search != "" {
		where = "(email ILIKE $1 OR name ILIKE $1)"
		args = append(args, "%"+escapeLike(params.Search)+"%")
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", table, where)
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", table, core.StorageError(err))
	}

	columns := userColumns
	if kind == KindMember {
		columns = memberColumns
	}
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		columns, table, where, len(args)+1, len(args)+2)
	args = append(args, params.PageSize, params.Offset())

	identities := make([]Identity, 0, params.PageSize)
	if kind == KindUser {
		var rows []userRow
		if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
			return nil, 0, fmt.Errorf("list users: %w", core.StorageError(err))
		}
		for i := range rows {
			identities = append(identities, *rows[i].toIdentity())
		}
	} else {
		var rows []memberRow
		if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
			return nil, 0, fmt.Errorf("list members: %w", core.StorageError(err))
		}
		for i := range rows {
			identities = append(identities, *rows[i].toIdentity())
		}
	}

	return identities, total, nil
}

func tableFor(kind Kind) (string, error) {
	switch kind {
	case KindUser:
		return "users", nil
	case KindMember:
		return "members", nil
	}
	return "", fmt.Errorf("unknown kind %q: %w", kind, core.ErrInvalidInput)
}

func newUserRow(i *Identity) userRow {
	row := userRow{
		ID:            i.ID,
		Email:         i.Email,
		Name:          i.Name,
		PasswordHash:  nullString(i.PasswordHash),
		EmailVerified: i.EmailVerified,
		IsBlocked:     i.Block.IsBlocked,
		BlockedUntil:  nullTime(i.Block.Until),
		BlockReason:   nullString(i.Block.Reason),
	}
	if i.Reset != nil {
		row.ResetTokenHash = sql.NullString{String: i.Reset.Hash, Valid: true}
		row.ResetExpiresAt = sql.NullTime{Time: i.Reset.ExpiresAt, Valid: true}
	}
	return row
}

func (row *userRow) toIdentity() *Identity {
	return &Identity{
		ID:            row.ID,
		Kind:          KindUser,
		Email:         row.Email,
		Name:          row.Name,
		PasswordHash:  stringPtr(row.PasswordHash),
		EmailVerified: row.EmailVerified,
		Block: Block{
			IsBlocked: row.IsBlocked,
			Until:     timePtr(row.BlockedUntil),
			Reason:    stringPtr(row.BlockReason),
		},
		Reset:     resetToken(row.ResetTokenHash, row.ResetExpiresAt),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func newMemberRow(i *Identity) memberRow {
	row := memberRow{
		ID:              i.ID,
		Email:           i.Email,
		Name:            i.Name,
		Designation:     i.Designation,
		Status:          string(i.Status),
		PasswordHash:    nullString(i.PasswordHash),
		InvitationToken: nullString(i.InvitationToken),
		InvitedAt:       nullTime(i.InvitedAt),
		ImageID:         nullString(i.ImageID),
		ImageURL:        nullString(i.ImageURL),
		IsBlocked:       i.Block.IsBlocked,
		BlockedUntil:    nullTime(i.Block.Until),
		BlockReason:     nullString(i.Block.Reason),
	}
	if i.Reset != nil {
		row.ResetTokenHash = sql.NullString{String: i.Reset.Hash, Valid: true}
		row.ResetExpiresAt = sql.NullTime{Time: i.Reset.ExpiresAt, Valid: true}
	}
	return row
}

func (row *memberRow) toIdentity() *Identity {
	return &Identity{
		ID:              row.ID,
		Kind:            KindMember,
		Email:           row.Email,
		Name:            row.Name,
		PasswordHash:    stringPtr(row.PasswordHash),
		Designation:     row.Designation,
		Status:          MemberStatus(row.Status),
		InvitationToken: stringPtr(row.InvitationToken),
		InvitedAt:       timePtr(row.InvitedAt),
		ImageID:         stringPtr(row.ImageID),
		ImageURL:        stringPtr(row.ImageURL),
		Block: Block{
			IsBlocked: row.IsBlocked,
			Until:     timePtr(row.BlockedUntil),
			Reason:    stringPtr(row.BlockReason),
		},
		Reset:     resetToken(row.ResetTokenHash, row.ResetExpiresAt),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func resetToken(hash sql.NullString, expiresAt sql.NullTime) *ResetToken {
	if !hash.Valid || !expiresAt.Valid {
		return nil
	}
	return &ResetToken{Hash: hash.String, ExpiresAt: expiresAt.Time}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
