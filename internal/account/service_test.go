// AngelaMos | 2026
// service_test.go

package account

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/carterperez-dev/member-portal/internal/blob"
	"github.com/carterperez-dev/member-portal/internal/config"
	"github.com/carterperez-dev/member-portal/internal/core"
	"github.com/carterperez-dev/member-portal/internal/identity"
	"github.com/carterperez-dev/member-portal/internal/pending"
	"github.com/carterperez-dev/member-portal/internal/testutil"
	"github.com/carterperez-dev/member-portal/internal/token"
)

var pngImage = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01")

type harness struct {
	svc     *Service
	repo    *identity.MemoryRepository
	pending *pending.MemoryStore
	clock   *testutil.ManualClock
	sender  *testutil.RecordingSender
	blobs   *blob.MemoryStore
	issuer  *token.Issuer
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	clock := testutil.NewManualClock(testutil.Epoch)
	issuer, err := token.NewIssuer(token.Config{
		Secret:        "0123456789abcdef0123456789abcdef",
		Issuer:        "member-portal",
		Audience:      "member-portal-api",
		SessionTTL:    24 * time.Hour,
		OTPTTL:        600 * time.Second,
		InvitationTTL: 7 * 24 * time.Hour,
		ResetTTL:      15 * time.Minute,
	}, clock)
	require.NoError(t, err)

	creds, err := core.NewCredentialStore(bcrypt.MinCost)
	require.NoError(t, err)

	h := &harness{
		repo:    identity.NewMemoryRepository(),
		pending: pending.NewMemoryStore(),
		clock:   clock,
		sender:  &testutil.RecordingSender{},
		blobs:   blob.NewMemoryStore(),
		issuer:  issuer,
	}
	h.svc = NewService(Deps{
		Repo:        h.repo,
		Pending:     h.pending,
		Issuer:      issuer,
		Credentials: creds,
		Notifier:    h.sender,
		Blobs:       h.blobs,
		Links: config.LinksConfig{
			SiteName:       "Portal",
			InvitationURL:  "https://portal.test/members/complete-profile",
			UserResetURL:   "https://portal.test/reset-password",
			MemberResetURL: "https://portal.test/members/reset-password",
		},
		Clock:  clock,
		Logger: testutil.DiscardLogger(),
	})
	return h
}

var tokenInLink = regexp.MustCompile(`token=([0-9a-f]+)`)

func (h *harness) lastLinkToken(t *testing.T) string {
	t.Helper()
	msg, ok := h.sender.Last()
	require.True(t, ok)
	m := tokenInLink.FindStringSubmatch(msg.PlainBody)
	require.Len(t, m, 2, msg.PlainBody)
	return m[1]
}

func (h *harness) register(t *testing.T, email, password string) string {
	t.Helper()
	_, err := h.svc.Register(context.Background(), RegisterRequest{
		Name:            "Ada",
		Email:           email,
		Password:        password,
		ConfirmPassword: password,
	})
	require.NoError(t, err)

	reg, err := h.pending.Get(context.Background(), email)
	require.NoError(t, err)
	return reg.OTP
}

func (h *harness) verifiedUser(t *testing.T, email, password string) *AuthResponse {
	t.Helper()
	otp := h.register(t, email, password)
	resp, err := h.svc.VerifyEmail(context.Background(), email, otp)
	require.NoError(t, err)
	return resp
}

func (h *harness) invite(t *testing.T, email, designation string) *identity.Identity {
	t.Helper()
	resp, err := h.svc.InviteMember(context.Background(), InviteMemberRequest{
		Name:        "Bea",
		Email:       email,
		Designation: designation,
	})
	require.NoError(t, err)

	member, err := h.repo.FindByID(context.Background(), identity.KindMember, resp.ID)
	require.NoError(t, err)
	return member
}

func TestRegisterVerifyLogin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	resp, err := h.svc.Register(ctx, RegisterRequest{
		Name:            "Ada",
		Email:           "a@x.com",
		Password:        "secret123",
		ConfirmPassword: "secret123",
	})
	require.NoError(t, err)
	assert.Equal(t, testutil.Epoch.Add(600*time.Second), resp.ExpiresAt)

	reg, err := h.pending.Get(ctx, "a@x.com")
	require.NoError(t, err)
	msg, ok := h.sender.Last()
	require.True(t, ok)
	assert.Equal(t, "a@x.com", msg.To)
	assert.Contains(t, msg.PlainBody, reg.OTP)

	_, err = h.repo.FindByEmail(ctx, identity.KindUser, "a@x.com")
	require.True(t, errors.Is(err, core.ErrNotFound), "nothing durable before verify")

	h.clock.Advance(599 * time.Second)
	verified, err := h.svc.VerifyEmail(ctx, "a@x.com", reg.OTP)
	require.NoError(t, err)
	require.NotNil(t, verified.Identity.EmailVerified)
	assert.True(t, *verified.Identity.EmailVerified)
	assert.NotEmpty(t, verified.Session.Token)

	_, err = h.pending.Get(ctx, "a@x.com")
	require.True(t, errors.Is(err, core.ErrNotFound), "pending entry consumed")

	login, err := h.svc.Login(ctx, identity.KindUser, LoginRequest{
		Email:    "a@x.com",
		Password: "secret123",
	})
	require.NoError(t, err)
	assert.Equal(t, identity.RoleUser, login.Identity.Role)

	_, err = h.svc.Login(ctx, identity.KindUser, LoginRequest{
		Email:    "a@x.com",
		Password: "wrong-password",
	})
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerifyAfterOTPExpiry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	otp := h.register(t, "a@x.com", "secret123")
	h.clock.Advance(601 * time.Second)

	_, err := h.svc.VerifyEmail(ctx, "a@x.com", otp)
	require.True(t, errors.Is(err, core.ErrTokenExpired))

	_, err = h.pending.Get(ctx, "a@x.com")
	require.True(t, errors.Is(err, core.ErrNotFound), "expired entry dropped")

	_, err = h.repo.FindByEmail(ctx, identity.KindUser, "a@x.com")
	require.True(t, errors.Is(err, core.ErrNotFound))
}

func TestVerifyWrongOTPKeepsPending(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	otp := h.register(t, "a@x.com", "secret123")
	wrong := "000000"
	if otp == wrong {
		wrong = "111111"
	}

	_, err := h.svc.VerifyEmail(ctx, "a@x.com", wrong)
	require.True(t, errors.Is(err, core.ErrTokenInvalid))

	_, err = h.svc.VerifyEmail(ctx, "a@x.com", otp)
	require.NoError(t, err)

	_, err = h.svc.VerifyEmail(ctx, "nobody@x.com", otp)
	require.True(t, errors.Is(err, core.ErrTokenInvalid))
}

func TestResendReplacesCode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first := h.register(t, "a@x.com", "secret123")
	h.clock.Advance(5 * time.Minute)

	resp, err := h.svc.ResendOTP(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, h.clock.Now().Add(600*time.Second), resp.ExpiresAt)

	reg, err := h.pending.Get(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Len(t, h.sender.Messages(), 2)

	if reg.OTP != first {
		_, err = h.svc.VerifyEmail(ctx, "a@x.com", first)
		require.True(t, errors.Is(err, core.ErrTokenInvalid))
	}

	h.clock.Advance(8 * time.Minute)
	_, err = h.svc.VerifyEmail(ctx, "a@x.com", reg.OTP)
	require.NoError(t, err, "resend restarts the window")

	_, err = h.svc.ResendOTP(ctx, "a@x.com")
	require.True(t, errors.Is(err, core.ErrNotFound))
}

func TestRegisterRejectsTakenEmailAndMismatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.verifiedUser(t, "a@x.com", "secret123")

	_, err := h.svc.Register(ctx, RegisterRequest{
		Name: "Ada", Email: "a@x.com", Password: "secret123", ConfirmPassword: "secret123",
	})
	require.True(t, errors.Is(err, core.ErrDuplicateKey))

	_, err = h.svc.Register(ctx, RegisterRequest{
		Name: "Ada", Email: "b@x.com", Password: "secret123", ConfirmPassword: "secret124",
	})
	require.True(t, errors.Is(err, core.ErrInvalidInput))
}

func TestNotificationFailureKeepsMutation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.sender.Fail = true

	_, err := h.svc.Register(ctx, RegisterRequest{
		Name: "Ada", Email: "a@x.com", Password: "secret123", ConfirmPassword: "secret123",
	})
	require.True(t, errors.Is(err, core.ErrNotification))

	_, err = h.pending.Get(ctx, "a@x.com")
	require.NoError(t, err, "pending registration stays stored")

	_, err = h.svc.InviteMember(ctx, InviteMemberRequest{
		Name: "Bea", Email: "b@x.com", Designation: identity.RoleMember,
	})
	require.True(t, errors.Is(err, core.ErrNotification))

	_, err = h.repo.FindByEmail(ctx, identity.KindMember, "b@x.com")
	require.NoError(t, err, "invited member stays stored")
}

func TestInviteCompleteProfile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	member := h.invite(t, "b@x.com", identity.RoleSecretary)
	assert.Equal(t, identity.StatusPending, member.Status)
	require.NotNil(t, member.InvitationToken)
	assert.Nil(t, member.PasswordHash)
	t1 := *member.InvitationToken

	assert.Equal(t, t1, h.lastLinkToken(t))

	_, err := h.svc.Login(ctx, identity.KindMember, LoginRequest{
		Email: "b@x.com", Password: "secret123",
	})
	require.True(t, errors.Is(err, core.ErrAccountNotActive))

	req := CompleteProfileRequest{
		Token:           t1,
		Password:        "secret123",
		ConfirmPassword: "secret123",
		Image:           pngImage,
	}
	resp, err := h.svc.CompleteProfile(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, string(identity.StatusActive), resp.Identity.Status)
	assert.Equal(t, identity.RoleSecretary, resp.Identity.Role)

	stored, err := h.repo.FindByID(ctx, identity.KindMember, member.ID)
	require.NoError(t, err)
	assert.Equal(t, identity.StatusActive, stored.Status)
	assert.Nil(t, stored.InvitationToken)
	require.NotNil(t, stored.ImageID)
	assert.True(t, h.blobs.Has(*stored.ImageID))

	_, err = h.svc.CompleteProfile(ctx, req)
	require.True(t, errors.Is(err, core.ErrTokenInvalid))

	login, err := h.svc.Login(ctx, identity.KindMember, LoginRequest{
		Email: "b@x.com", Password: "secret123",
	})
	require.NoError(t, err)
	assert.Equal(t, identity.RoleSecretary, login.Identity.Role)
}

func TestCompleteProfileConcurrentOnlyOneWins(t *testing.T) {
	h := newHarness(t)
	member := h.invite(t, "b@x.com", identity.RoleMember)

	req := CompleteProfileRequest{
		Token:           *member.InvitationToken,
		Password:        "secret123",
		ConfirmPassword: "secret123",
		Image:           pngImage,
	}

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = h.svc.CompleteProfile(context.Background(), req)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, errors.Is(err, core.ErrTokenInvalid), "got %v", err)
	}
	assert.Equal(t, 1, ok)
}

func TestCompleteProfileRejectsBeforeStoring(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	member := h.invite(t, "b@x.com", identity.RoleMember)
	tok := *member.InvitationToken

	_, err := h.svc.CompleteProfile(ctx, CompleteProfileRequest{
		Token: tok, Password: "secret123", ConfirmPassword: "secret123",
		Image: []byte("not an image at all"),
	})
	require.True(t, errors.Is(err, core.ErrInvalidInput))

	_, err = h.svc.CompleteProfile(ctx, CompleteProfileRequest{
		Token: tok, Password: "secret123", ConfirmPassword: "other",
		Image: pngImage,
	})
	require.True(t, errors.Is(err, core.ErrInvalidInput))

	h.clock.Advance(7*24*time.Hour + time.Second)
	_, err = h.svc.CompleteProfile(ctx, CompleteProfileRequest{
		Token: tok, Password: "secret123", ConfirmPassword: "secret123",
		Image: pngImage,
	})
	require.True(t, errors.Is(err, core.ErrTokenExpired))

	stored, err := h.repo.FindByID(ctx, identity.KindMember, member.ID)
	require.NoError(t, err)
	assert.Equal(t, identity.StatusPending, stored.Status)
	assert.Nil(t, stored.PasswordHash)
	assert.Empty(t, h.blobs.Released())
}

func TestInviteRejectsDuplicateAndBadDesignation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.invite(t, "b@x.com", identity.RoleMember)

	_, err := h.svc.InviteMember(ctx, InviteMemberRequest{
		Name: "Bea", Email: "b@x.com", Designation: identity.RoleMember,
	})
	require.True(t, errors.Is(err, core.ErrDuplicateKey))

	_, err = h.svc.InviteMember(ctx, InviteMemberRequest{
		Name: "Bea", Email: "c@x.com", Designation: identity.RoleUser,
	})
	require.True(t, errors.Is(err, core.ErrInvalidInput))
}

func TestPasswordResetIsSingleUse(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.verifiedUser(t, "a@x.com", "secret123")

	require.NoError(t, h.svc.ForgotPassword(ctx, identity.KindUser, "a@x.com"))
	plain := h.lastLinkToken(t)

	stored, err := h.repo.FindByEmail(ctx, identity.KindUser, "a@x.com")
	require.NoError(t, err)
	require.NotNil(t, stored.Reset)
	assert.NotEqual(t, plain, stored.Reset.Hash, "only the hash is stored")

	req := ResetPasswordRequest{
		Token:           plain,
		Password:        "newsecret1",
		ConfirmPassword: "newsecret1",
	}
	resp, err := h.svc.ResetPassword(ctx, identity.KindUser, req)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Session.Token)

	_, err = h.svc.ResetPassword(ctx, identity.KindUser, req)
	require.True(t, errors.Is(err, core.ErrTokenInvalid))

	_, err = h.svc.Login(ctx, identity.KindUser, LoginRequest{
		Email: "a@x.com", Password: "newsecret1",
	})
	require.NoError(t, err)
}

func TestPasswordResetExpiresAndIsKindScoped(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.verifiedUser(t, "a@x.com", "secret123")

	require.NoError(t, h.svc.ForgotPassword(ctx, identity.KindUser, "a@x.com"))
	plain := h.lastLinkToken(t)
	req := ResetPasswordRequest{Token: plain, Password: "newsecret1", ConfirmPassword: "newsecret1"}

	_, err := h.svc.ResetPassword(ctx, identity.KindMember, req)
	require.True(t, errors.Is(err, core.ErrTokenInvalid))

	h.clock.Advance(15*time.Minute + time.Second)
	_, err = h.svc.ResetPassword(ctx, identity.KindUser, req)
	require.True(t, errors.Is(err, core.ErrTokenExpired))

	_, err = h.svc.Login(ctx, identity.KindUser, LoginRequest{
		Email: "a@x.com", Password: "secret123",
	})
	require.NoError(t, err, "old password still valid")
}

func TestConcurrentResetOnlyOneWins(t *testing.T) {
	h := newHarness(t)
	h.verifiedUser(t, "a@x.com", "secret123")
	require.NoError(t, h.svc.ForgotPassword(context.Background(), identity.KindUser, "a@x.com"))
	plain := h.lastLinkToken(t)

	var wg sync.WaitGroup
	errs := make([]error, 6)
	for i := range errs {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = h.svc.ResetPassword(context.Background(), identity.KindUser, ResetPasswordRequest{
				Token: plain, Password: "newsecret1", ConfirmPassword: "newsecret1",
			})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, errors.Is(err, core.ErrTokenInvalid))
	}
	assert.Equal(t, 1, ok)
}

func TestForgotPasswordIsSilentForUnknownAccounts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.invite(t, "b@x.com", identity.RoleMember)
	sent := len(h.sender.Messages())

	require.NoError(t, h.svc.ForgotPassword(ctx, identity.KindUser, "ghost@x.com"))
	require.NoError(t, h.svc.ForgotPassword(ctx, identity.KindMember, "b@x.com"))
	assert.Len(t, h.sender.Messages(), sent)
}

func TestMemberResetUsesMemberLink(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	member := h.invite(t, "b@x.com", identity.RoleMember)
	_, err := h.svc.CompleteProfile(ctx, CompleteProfileRequest{
		Token: *member.InvitationToken, Password: "secret123",
		ConfirmPassword: "secret123", Image: pngImage,
	})
	require.NoError(t, err)

	require.NoError(t, h.svc.ForgotPassword(ctx, identity.KindMember, "b@x.com"))
	msg, _ := h.sender.Last()
	assert.Contains(t, msg.PlainBody, "https://portal.test/members/reset-password?token=")
}

func TestBlockDerivedExpiry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := h.verifiedUser(t, "a@x.com", "secret123")
	creds := LoginRequest{Email: "a@x.com", Password: "secret123"}

	blocked, err := h.svc.Block(ctx, identity.KindUser, user.Identity.ID, "spam", time.Hour)
	require.NoError(t, err)
	assert.True(t, blocked.BlockedNow)

	_, err = h.svc.Login(ctx, identity.KindUser, creds)
	var blockErr *core.BlockedError
	require.True(t, errors.As(err, &blockErr))
	assert.Equal(t, "spam", blockErr.Reason)
	assert.Equal(t, testutil.Epoch.Add(time.Hour), blockErr.Until)

	h.clock.Advance(time.Hour)
	_, err = h.svc.Login(ctx, identity.KindUser, creds)
	require.NoError(t, err)

	profile, err := h.svc.Profile(ctx, identity.KindUser, user.Identity.ID)
	require.NoError(t, err)
	assert.True(t, profile.IsBlocked)
	assert.False(t, profile.BlockedNow)

	unblocked, err := h.svc.Unblock(ctx, identity.KindUser, user.Identity.ID)
	require.NoError(t, err)
	assert.False(t, unblocked.IsBlocked)
	assert.Nil(t, unblocked.BlockedUntil)
	assert.Nil(t, unblocked.BlockReason)
}

func TestBlockValidatesInput(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := h.verifiedUser(t, "a@x.com", "secret123")

	_, err := h.svc.Block(ctx, identity.KindUser, user.Identity.ID, " ", time.Hour)
	require.True(t, errors.Is(err, core.ErrInvalidInput))

	_, err = h.svc.Block(ctx, identity.KindUser, user.Identity.ID, "spam", 0)
	require.True(t, errors.Is(err, core.ErrInvalidInput))

	_, err = h.svc.Block(ctx, identity.KindMember, user.Identity.ID, "spam", time.Hour)
	require.True(t, errors.Is(err, core.ErrNotFound))
}

func TestDeleteMemberReleasesImageFirst(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	member := h.invite(t, "b@x.com", identity.RoleMember)
	_, err := h.svc.CompleteProfile(ctx, CompleteProfileRequest{
		Token: *member.InvitationToken, Password: "secret123",
		ConfirmPassword: "secret123", Image: pngImage,
	})
	require.NoError(t, err)

	stored, err := h.repo.FindByID(ctx, identity.KindMember, member.ID)
	require.NoError(t, err)

	h.blobs.FailRelease = true
	require.NoError(t, h.svc.DeleteMember(ctx, member.ID))
	assert.Equal(t, []string{*stored.ImageID}, h.blobs.Released())

	_, err = h.repo.FindByID(ctx, identity.KindMember, member.ID)
	require.True(t, errors.Is(err, core.ErrNotFound))

	require.True(t, errors.Is(h.svc.DeleteMember(ctx, member.ID), core.ErrNotFound))
}

func TestChangePassword(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := h.verifiedUser(t, "a@x.com", "secret123")

	err := h.svc.ChangePassword(ctx, identity.KindUser, user.Identity.ID, ChangePasswordRequest{
		CurrentPassword: "wrong", NewPassword: "newsecret1",
	})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	err = h.svc.ChangePassword(ctx, identity.KindUser, user.Identity.ID, ChangePasswordRequest{
		CurrentPassword: "secret123", NewPassword: "newsecret1",
	})
	require.NoError(t, err)

	_, err = h.svc.Login(ctx, identity.KindUser, LoginRequest{Email: "a@x.com", Password: "newsecret1"})
	require.NoError(t, err)
}

func TestListIdentities(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.verifiedUser(t, "a@x.com", "secret123")
	h.verifiedUser(t, "c@x.com", "secret123")
	h.invite(t, "b@x.com", identity.RoleMember)

	users, err := h.svc.List(ctx, identity.KindUser, identity.ListParams{})
	require.NoError(t, err)
	assert.Equal(t, 2, users.Total)
	assert.Equal(t, 1, users.Page)
	assert.Equal(t, 20, users.PageSize)

	members, err := h.svc.List(ctx, identity.KindMember, identity.ListParams{})
	require.NoError(t, err)
	require.Len(t, members.Items, 1)
	assert.Equal(t, string(identity.StatusPending), members.Items[0].Status)
}

func TestOverlongPasswordIsValidationFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tooLong := strings.Repeat("é", 40)
	require.Len(t, tooLong, 80)

	_, err := h.svc.Register(ctx, RegisterRequest{
		Name: "Ada", Email: "long@x.com", Password: tooLong, ConfirmPassword: tooLong,
	})
	require.True(t, errors.Is(err, core.ErrInvalidInput), "got %v", err)
	_, err = h.pending.Get(ctx, "long@x.com")
	require.True(t, errors.Is(err, core.ErrNotFound))

	user := h.verifiedUser(t, "a@x.com", strings.Repeat("é", 36))

	err = h.svc.ChangePassword(ctx, identity.KindUser, user.Identity.ID, ChangePasswordRequest{
		CurrentPassword: strings.Repeat("é", 36), NewPassword: tooLong,
	})
	require.True(t, errors.Is(err, core.ErrInvalidInput), "got %v", err)

	require.NoError(t, h.svc.ForgotPassword(ctx, identity.KindUser, "a@x.com"))
	_, err = h.svc.ResetPassword(ctx, identity.KindUser, ResetPasswordRequest{
		Token: h.lastLinkToken(t), Password: tooLong, ConfirmPassword: tooLong,
	})
	require.True(t, errors.Is(err, core.ErrInvalidInput), "got %v", err)

	member := h.invite(t, "b@x.com", identity.RoleMember)
	_, err = h.svc.CompleteProfile(ctx, CompleteProfileRequest{
		Token: *member.InvitationToken, Password: tooLong,
		ConfirmPassword: tooLong, Image: pngImage,
	})
	require.True(t, errors.Is(err, core.ErrInvalidInput), "got %v", err)
}

func TestForgotPasswordHidesDeliveryFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.verifiedUser(t, "a@x.com", "secret123")
	h.sender.Fail = true

	require.NoError(t, h.svc.ForgotPassword(ctx, identity.KindUser, "a@x.com"))
	require.NoError(t, h.svc.ForgotPassword(ctx, identity.KindUser, "ghost@x.com"))

	stored, err := h.repo.FindByEmail(ctx, identity.KindUser, "a@x.com")
	require.NoError(t, err)
	assert.NotNil(t, stored.Reset, "the reset stays issued")
}

func TestResetRefusedWhileBlocked(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := h.verifiedUser(t, "a@x.com", "secret123")

	require.NoError(t, h.svc.ForgotPassword(ctx, identity.KindUser, "a@x.com"))
	req := ResetPasswordRequest{
		Token: h.lastLinkToken(t), Password: "newsecret1", ConfirmPassword: "newsecret1",
	}

	_, err := h.svc.Block(ctx, identity.KindUser, user.Identity.ID, "spam", 10*time.Minute)
	require.NoError(t, err)

	_, err = h.svc.ResetPassword(ctx, identity.KindUser, req)
	var blockErr *core.BlockedError
	require.True(t, errors.As(err, &blockErr), "got %v", err)

	h.clock.Advance(10 * time.Minute)
	_, err = h.svc.ResetPassword(ctx, identity.KindUser, req)
	require.NoError(t, err, "the same token works once the block has lapsed")
}

func TestConcurrentVerifyOnlyOneWins(t *testing.T) {
	h := newHarness(t)
	otp := h.register(t, "a@x.com", "secret123")

	var wg sync.WaitGroup
	errs := make([]error, 6)
	for i := range errs {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = h.svc.VerifyEmail(context.Background(), "a@x.com", otp)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, errors.Is(err, core.ErrTokenInvalid), "got %v", err)
	}
	assert.Equal(t, 1, ok)
}
