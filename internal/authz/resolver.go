// AngelaMos | 2026
// resolver.go

package authz

import (
	"context"
	"fmt"
	"slices"

	"github.com/carterperez-dev/member-portal/internal/core"
	"github.com/carterperez-dev/member-portal/internal/identity"
	"github.com/carterperez-dev/member-portal/internal/token"
)

// Principal is the resolved caller of a protected request.
type Principal struct {
	ID    string
	Kind  identity.Kind
	Email string
	Role  string
}

type SessionVerifier interface {
	VerifySession(ctx context.Context, token string) (*token.Claims, error)
}

type IdentityFinder interface {
	FindAnyByID(ctx context.Context, id string) (*identity.Identity, error)
}

type Resolver struct {
	sessions SessionVerifier
	repo     IdentityFinder
	clock    core.Clock
}

func NewResolver(sessions SessionVerifier, repo IdentityFinder, clock core.Clock) *Resolver {
	if clock == nil {
		clock = core.SystemClock()
	}
	return &Resolver{sessions: sessions, repo: repo, clock: clock}
}

// Resolve verifies the session token, finds the identity among users
// and then members, and rejects it while a block is active. The role
// comes from the stored record, not the token.
func (r *Resolver) Resolve(ctx context.Context, tok string) (*Principal, error) {
	claims, err := r.sessions.VerifySession(ctx, tok)
	if err != nil {
		return nil, err
	}

	found, err := r.repo.FindAnyByID(ctx, claims.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("resolve identity: %w", err)
	}

	if err := found.BlockedError(r.clock.Now()); err != nil {
		return nil, err
	}

	return &Principal{
		ID:    found.ID,
		Kind:  found.Kind,
		Email: found.Email,
		Role:  found.Role(),
	}, nil
}

// Authorize allows role iff it is one of permitted.
func Authorize(role string, permitted ...string) error {
	if slices.Contains(permitted, role) {
		return nil
	}
	return &core.ForbiddenRoleError{Role: role}
}

// Roles that may run administrative operations.
var AdminRoles = []string{
	identity.RoleAdmin,
	identity.RolePresident,
	identity.RoleSecretary,
}
