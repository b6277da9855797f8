// AngelaMos | 2026
// handler_test.go

package account

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/member-portal/internal/authz"
	"github.com/carterperez-dev/member-portal/internal/identity"
	"github.com/carterperez-dev/member-portal/internal/middleware"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newRouter(h *harness) http.Handler {
	resolver := authz.NewResolver(h.issuer, h.repo, h.clock)
	r := chi.NewRouter()
	NewHandler(h.svc, 1<<20).RegisterRoutes(r, middleware.Authenticator(resolver))
	return r
}

func doJSON(
	t *testing.T,
	router http.Handler,
	method, path string,
	body any,
	bearer string,
) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestHandlerRegistrationFlow(t *testing.T) {
	h := newHarness(t)
	router := newRouter(h)

	rec, _ := doJSON(t, router, http.MethodPost, "/auth/register", map[string]string{
		"name":             "Ada",
		"email":            "a@x.com",
		"password":         "secret123",
		"confirm_password": "secret123",
	}, "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	reg, err := h.pending.Get(context.Background(), "a@x.com")
	require.NoError(t, err)

	rec, env := doJSON(t, router, http.MethodPost, "/auth/verify", map[string]string{
		"email": "a@x.com",
		"otp":   reg.OTP,
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	var auth AuthResponse
	require.NoError(t, json.Unmarshal(env.Data, &auth))
	require.NotNil(t, auth.Session)

	rec, env = doJSON(t, router, http.MethodGet, "/auth/me", nil, auth.Session.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	var me IdentityResponse
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, "a@x.com", me.Email)
	assert.Equal(t, identity.RoleUser, me.Role)

	rec, env = doJSON(t, router, http.MethodPost, "/auth/login", map[string]string{
		"email":    "a@x.com",
		"password": "wrong-password",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	rec, _ = doJSON(t, router, http.MethodPost, "/auth/password/change", map[string]string{
		"current_password": "secret123",
		"new_password":     "newsecret1",
	}, auth.Session.Token)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHandlerTokenErrorsAreBadRequest(t *testing.T) {
	h := newHarness(t)
	router := newRouter(h)

	rec, env := doJSON(t, router, http.MethodPost, "/auth/verify", map[string]string{
		"email": "nobody@x.com",
		"otp":   "123456",
	}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "TOKEN_INVALID", env.Error.Code)

	rec, env = doJSON(t, router, http.MethodPost, "/auth/password/reset", map[string]string{
		"token":            "deadbeef",
		"password":         "newsecret1",
		"confirm_password": "newsecret1",
	}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "TOKEN_INVALID", env.Error.Code)

	rec, _ = doJSON(t, router, http.MethodPost, "/auth/verify", map[string]string{
		"email": "a@x.com",
		"otp":   "12ab",
	}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerForgotPasswordAlwaysAccepted(t *testing.T) {
	h := newHarness(t)
	router := newRouter(h)

	rec, _ := doJSON(t, router, http.MethodPost, "/members/password/forgot", map[string]string{
		"email": "ghost@x.com",
	}, "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Empty(t, h.sender.Messages())
}

func TestHandlerCompleteProfileMultipart(t *testing.T) {
	h := newHarness(t)
	router := newRouter(h)
	member := h.invite(t, "b@x.com", identity.RoleMember)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("token", *member.InvitationToken))
	require.NoError(t, mw.WriteField("password", "secret123"))
	require.NoError(t, mw.WriteField("confirm_password", "secret123"))
	part, err := mw.CreateFormFile("image", "me.png")
	require.NoError(t, err)
	_, err = part.Write(pngImage)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/members/complete-profile", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	var auth AuthResponse
	require.NoError(t, json.Unmarshal(env.Data, &auth))
	assert.Equal(t, string(identity.StatusActive), auth.Identity.Status)

	rec, env = doJSON(t, router, http.MethodPost, "/members/login", map[string]string{
		"email":    "b@x.com",
		"password": "secret123",
	}, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandlerPendingMemberLogin(t *testing.T) {
	h := newHarness(t)
	router := newRouter(h)
	h.invite(t, "b@x.com", identity.RoleMember)

	rec, env := doJSON(t, router, http.MethodPost, "/members/login", map[string]string{
		"email":    "b@x.com",
		"password": "secret123",
	}, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "ACCOUNT_NOT_ACTIVE", env.Error.Code)
}

func TestHandlerOverlongPasswordIs400(t *testing.T) {
	h := newHarness(t)
	router := newRouter(h)

	for _, password := range []string{strings.Repeat("p", 100), strings.Repeat("é", 40)} {
		rec, env := doJSON(t, router, http.MethodPost, "/auth/register", map[string]string{
			"name":             "Ada",
			"email":            "a@x.com",
			"password":         password,
			"confirm_password": password,
		}, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
	}
}
