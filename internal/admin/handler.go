// AngelaMos | 2026
// handler.go

package admin

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/carterperez-dev/member-portal/internal/account"
	"github.com/carterperez-dev/member-portal/internal/core"
	"github.com/carterperez-dev/member-portal/internal/identity"
	"github.com/carterperez-dev/member-portal/internal/pending"
)

// AccountService is the slice of the lifecycle engine administrators
// drive.
type AccountService interface {
	InviteMember(ctx context.Context, req account.InviteMemberRequest) (*account.IdentityResponse, error)
	DeleteMember(ctx context.Context, id string) error
	Block(
		ctx context.Context,
		kind identity.Kind,
		id, reason string,
		duration time.Duration,
	) (*account.IdentityResponse, error)
	Unblock(ctx context.Context, kind identity.Kind, id string) (*account.IdentityResponse, error)
	List(ctx context.Context, kind identity.Kind, params identity.ListParams) (*account.ListResponse, error)
}

// PendingReporter is implemented by the pending-registration stores.
type PendingReporter interface {
	Stats(ctx context.Context) (*pending.Stats, error)
}

type Handler struct {
	accounts  AccountService
	validator *validator.Validate
	dbStats   func() sql.DBStats
	pending   PendingReporter
}

type HandlerConfig struct {
	Accounts AccountService
	DBStats  func() sql.DBStats
	Pending  PendingReporter
}

func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		accounts:  cfg.Accounts,
		validator: validator.New(validator.WithRequiredStructEnabled()),
		dbStats:   cfg.DBStats,
		pending:   cfg.Pending,
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/stats", h.GetStats)

		r.Post("/members/invite", h.InviteMember)
		r.Delete("/members/{id}", h.DeleteMember)

		r.Get("/{kind}", h.List)
		r.Post("/{kind}/{id}/block", h.Block)
		r.Post("/{kind}/{id}/unblock", h.Unblock)
	})
}

func (h *Handler) InviteMember(w http.ResponseWriter, r *http.Request) {
	var req account.InviteMemberRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.accounts.InviteMember(r.Context(), req)
	if err != nil {
		core.WriteError(w, err, http.StatusBadRequest)
		return
	}

	core.Created(w, resp)
}

func (h *Handler) DeleteMember(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	if err := h.accounts.DeleteMember(r.Context(), id); err != nil {
		core.WriteError(w, err, http.StatusBadRequest)
		return
	}

	core.NoContent(w)
}

func (h *Handler) Block(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	var req account.BlockRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.accounts.Block(
		r.Context(),
		kind,
		id,
		req.Reason,
		req.Duration(),
	)
	if err != nil {
		core.WriteError(w, err, http.StatusBadRequest)
		return
	}

	core.OK(w, resp)
}

func (h *Handler) Unblock(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	resp, err := h.accounts.Unblock(r.Context(), kind, id)
	if err != nil {
		core.WriteError(w, err, http.StatusBadRequest)
		return
	}

	core.OK(w, resp)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	params := identity.ListParams{
		Page:     atoiOr(q.Get("page"), 1),
		PageSize: atoiOr(q.Get("page_size"), 20),
		Search:   strings.TrimSpace(q.Get("search")),
	}

	resp, err := h.accounts.List(r.Context(), kind, params)
	if err != nil {
		core.WriteError(w, err, http.StatusBadRequest)
		return
	}

	core.OK(w, resp)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		core.BadRequest(w, "invalid request body")
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return false
	}
	return true
}

// kindParam accepts both the singular and plural path forms.
func kindParam(w http.ResponseWriter, r *http.Request) (identity.Kind, bool) {
	raw := strings.TrimSuffix(chi.URLParam(r, "kind"), "s")
	kind, err := identity.ParseKind(raw)
	if err != nil {
		core.NotFound(w, "route")
		return "", false
	}
	return kind, true
}

// idParam answers 404 for anything that cannot be a stored identity id.
func idParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		core.NotFound(w, "identity")
		return "", false
	}
	return id.String(), true
}

func atoiOr(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
