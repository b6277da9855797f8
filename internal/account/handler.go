// AngelaMos | 2026
// handler.go

package account

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/member-portal/internal/core"
	"github.com/carterperez-dev/member-portal/internal/identity"
	"github.com/carterperez-dev/member-portal/internal/middleware"
)

type Handler struct {
	service        *Service
	validator      *validator.Validate
	maxUploadBytes int64
}

func NewHandler(service *Service, maxUploadBytes int64) *Handler {
	return &Handler{
		service:        service,
		validator:      validator.New(validator.WithRequiredStructEnabled()),
		maxUploadBytes: maxUploadBytes,
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/register/resend", h.ResendOTP)
		r.Post("/verify", h.VerifyEmail)
		r.Post("/login", h.login(identity.KindUser))
		r.Post("/password/forgot", h.forgotPassword(identity.KindUser))
		r.Post("/password/reset", h.resetPassword(identity.KindUser))

		r.Group(func(r chi.Router) {
			r.Use(authenticator)
			r.Get("/me", h.GetMe)
			r.Post("/password/change", h.ChangePassword)
		})
	})

	r.Route("/members", func(r chi.Router) {
		r.Post("/login", h.login(identity.KindMember))
		r.Post("/complete-profile", h.CompleteProfile)
		r.Post("/password/forgot", h.forgotPassword(identity.KindMember))
		r.Post("/password/reset", h.resetPassword(identity.KindMember))
	})
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

// fail renders lifecycle errors. A bad link token is the caller's input,
// so it is a 400 here rather than a 401.
func fail(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrInvalidCredentials) {
		core.JSONError(w, core.UnauthorizedError("invalid email or password"))
		return
	}
	core.WriteError(w, err, http.StatusBadRequest)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.Register(r.Context(), req)
	if err != nil {
		fail(w, err)
		return
	}

	core.Accepted(w, resp)
}

func (h *Handler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req ResendRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.ResendOTP(r.Context(), req.Email)
	if err != nil {
		fail(w, err)
		return
	}

	core.Accepted(w, resp)
}

func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.VerifyEmail(r.Context(), req.Email, req.OTP)
	if err != nil {
		fail(w, err)
		return
	}

	core.Created(w, resp)
}

func (h *Handler) login(kind identity.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if !h.decode(w, r, &req) {
			return
		}

		resp, err := h.service.Login(r.Context(), kind, req)
		if err != nil {
			fail(w, err)
			return
		}

		core.OK(w, resp)
	}
}

func (h *Handler) forgotPassword(kind identity.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ForgotPasswordRequest
		if !h.decode(w, r, &req) {
			return
		}

		if err := h.service.ForgotPassword(r.Context(), kind, req.Email); err != nil {
			fail(w, err)
			return
		}

		core.Accepted(w, map[string]string{
			"message": "if the account exists, a reset link has been sent",
		})
	}
}

func (h *Handler) resetPassword(kind identity.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ResetPasswordRequest
		if !h.decode(w, r, &req) {
			return
		}

		resp, err := h.service.ResetPassword(r.Context(), kind, req)
		if err != nil {
			fail(w, err)
			return
		}

		core.OK(w, resp)
	}
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		core.Unauthorized(w, "")
		return
	}

	resp, err := h.service.Profile(r.Context(), principal.Kind, principal.ID)
	if err != nil {
		fail(w, err)
		return
	}

	core.OK(w, resp)
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		core.Unauthorized(w, "")
		return
	}

	var req ChangePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.service.ChangePassword(r.Context(), principal.Kind, principal.ID, req)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			core.BadRequest(w, "current password is incorrect")
			return
		}
		fail(w, err)
		return
	}

	core.NoContent(w)
}

// CompleteProfile takes a multipart form: token, password,
// confirm_password and an image file.
func (h *Handler) CompleteProfile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		core.BadRequest(w, "invalid multipart form")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			//nolint:errcheck // temp file cleanup
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	req := CompleteProfileRequest{
		Token:           r.FormValue("token"),
		Password:        r.FormValue("password"),
		ConfirmPassword: r.FormValue("confirm_password"),
	}

	file, _, err := r.FormFile("image")
	if err == nil {
		defer file.Close()
		req.Image, err = io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
		if err != nil {
			core.BadRequest(w, "could not read image")
			return
		}
		if int64(len(req.Image)) > h.maxUploadBytes {
			core.BadRequest(w, "image is too large")
			return
		}
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	resp, err := h.service.CompleteProfile(r.Context(), req)
	if err != nil {
		fail(w, err)
		return
	}

	core.OK(w, resp)
}
