// AngelaMos | 2026
// repository.go

package identity

import (
	"context"
	"strings"
)

// Repository is everything the lifecycle engine and the resolver need
// from persistence. Not found is core.ErrNotFound, a taken email is
// core.ErrDuplicateKey, anything else wraps core.ErrStorage.
type Repository interface {
	FindByID(ctx context.Context, kind Kind, id string) (*Identity, error)
	// FindAnyByID checks users first, then members.
	FindAnyByID(ctx context.Context, id string) (*Identity, error)
	FindByEmail(ctx context.Context, kind Kind, email string) (*Identity, error)
	FindByInvitationToken(ctx context.Context, token string) (*Identity, error)
	FindByResetHash(ctx context.Context, kind Kind, hash string) (*Identity, error)
	Create(ctx context.Context, identity *Identity) error
	Save(ctx context.Context, identity *Identity) error
	Delete(ctx context.Context, identity *Identity) error
	List(ctx context.Context, kind Kind, params ListParams) ([]Identity, int, error)

	// InTx runs fn against a repository whose reads lock the returned
	// rows until fn returns. An error from fn discards every write.
	InTx(ctx context.Context, fn func(tx Repository) error) error
}

type ListParams struct {
	Page     int
	PageSize int
	Search   string
}

func (p *ListParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
}

func (p *ListParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// NormalizeEmail trims surrounding space only. Emails are matched as
// stored, so case is preserved.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(email)
}
