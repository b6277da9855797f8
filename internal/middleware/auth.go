// AngelaMos | 2026
// auth.go

package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/carterperez-dev/member-portal/internal/authz"
	"github.com/carterperez-dev/member-portal/internal/core"
)

const PrincipalKey contextKey = "principal"

type PrincipalResolver interface {
	Resolve(ctx context.Context, token string) (*authz.Principal, error)
}

// Authenticator resolves the bearer session on every request and stores
// the principal in the context.
func Authenticator(resolver PrincipalResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r)

			if token == "" {
				core.JSONError(
					w,
					core.UnauthorizedError("missing authorization token"),
				)
				return
			}

			principal, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				handleAuthError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), PrincipalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole must run after Authenticator.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := GetPrincipal(r.Context())
			if principal == nil {
				core.JSONError(
					w,
					core.UnauthorizedError("authentication required"),
				)
				return
			}

			if err := authz.Authorize(principal.Role, roles...); err != nil {
				core.WriteError(w, err, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func RequireAdmin(next http.Handler) http.Handler {
	return RequireRole(authz.AdminRoles...)(next)
}

func ExtractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

func handleAuthError(w http.ResponseWriter, err error) {
	if errors.Is(err, core.ErrNotFound) {
		core.JSONError(w, core.UnauthorizedError("account no longer exists"))
		return
	}
	if appErr, ok := core.DomainError(err, http.StatusUnauthorized); ok {
		core.JSONError(w, appErr)
		return
	}
	core.InternalServerError(w, err)
}

func GetPrincipal(ctx context.Context) *authz.Principal {
	if p, ok := ctx.Value(PrincipalKey).(*authz.Principal); ok {
		return p
	}
	return nil
}

// WithPrincipal is used by handlers under test to skip token resolution.
func WithPrincipal(ctx context.Context, p *authz.Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}
