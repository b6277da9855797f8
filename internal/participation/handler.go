// AngelaMos | 2026
// handler.go

package participation

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/carterperez-dev/member-portal/internal/core"
	"github.com/carterperez-dev/member-portal/internal/middleware"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
	adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/events", func(r chi.Router) {
		r.Get("/", h.ListEvents)
		r.With(authenticator, adminOnly).Post("/", h.CreateEvent)
		r.With(authenticator).Post("/{eventID}/registrations", h.Register)
	})

	r.With(authenticator).Route("/registrations", func(r chi.Router) {
		r.Get("/", h.ListMine)
		r.Delete("/{id}", h.Cancel)
	})
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		core.BadRequest(w, "date must be YYYY-MM-DD")
		return
	}

	event, err := h.service.CreateEvent(r.Context(), req.Title, date)
	if err != nil {
		core.WriteError(w, err, http.StatusBadRequest)
		return
	}

	core.Created(w, ToEventResponse(event))
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.ListEvents(r.Context())
	if err != nil {
		core.WriteError(w, err, http.StatusBadRequest)
		return
	}

	out := make([]EventResponse, 0, len(events))
	for i := range events {
		out = append(out, ToEventResponse(&events[i]))
	}
	core.OK(w, out)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		core.Unauthorized(w, "")
		return
	}

	eventID := chi.URLParam(r, "eventID")
	if _, err := uuid.Parse(eventID); err != nil {
		core.NotFound(w, "event")
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	reg, err := h.service.Register(r.Context(), eventID, principal.ID, req.Performers)
	if err != nil {
		core.WriteError(w, err, http.StatusBadRequest)
		return
	}

	core.Created(w, ToRegistrationResponse(reg))
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		core.Unauthorized(w, "")
		return
	}

	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		core.NotFound(w, "registration")
		return
	}

	if err := h.service.Cancel(r.Context(), id, principal.ID); err != nil {
		core.WriteError(w, err, http.StatusBadRequest)
		return
	}

	core.NoContent(w)
}

func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		core.Unauthorized(w, "")
		return
	}

	regs, err := h.service.ListMine(r.Context(), principal.ID)
	if err != nil {
		core.WriteError(w, err, http.StatusBadRequest)
		return
	}

	out := make([]RegistrationResponse, 0, len(regs))
	for i := range regs {
		out = append(out, ToRegistrationResponse(&regs[i]))
	}
	core.OK(w, out)
}
