// AngelaMos | 2026
// service.go

package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/member-portal/internal/blob"
	"github.com/carterperez-dev/member-portal/internal/config"
	"github.com/carterperez-dev/member-portal/internal/core"
	"github.com/carterperez-dev/member-portal/internal/identity"
	"github.com/carterperez-dev/member-portal/internal/notify"
	"github.com/carterperez-dev/member-portal/internal/pending"
	"github.com/carterperez-dev/member-portal/internal/token"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type Deps struct {
	Repo        identity.Repository
	Pending     pending.Store
	Issuer      *token.Issuer
	Credentials *core.CredentialStore
	Notifier    notify.Sender
	Blobs       blob.Store
	Links       config.LinksConfig
	Clock       core.Clock
	Logger      *slog.Logger
}

// Service runs the user and member lifecycles. Every transition that
// checks a token and then writes runs inside one repository transaction.
type Service struct {
	repo     identity.Repository
	pending  pending.Store
	issuer   *token.Issuer
	creds    *core.CredentialStore
	notifier notify.Sender
	blobs    blob.Store
	links    config.LinksConfig
	clock    core.Clock
	logger   *slog.Logger
}

func NewService(d Deps) *Service {
	if d.Clock == nil {
		d.Clock = core.SystemClock()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Service{
		repo:     d.Repo,
		pending:  d.Pending,
		issuer:   d.Issuer,
		creds:    d.Credentials,
		notifier: d.Notifier,
		blobs:    d.Blobs,
		links:    d.Links,
		clock:    d.Clock,
		logger:   d.Logger,
	}
}

func (s *Service) Register(
	ctx context.Context,
	req RegisterRequest,
) (*PendingResponse, error) {
	if req.Password != req.ConfirmPassword {
		return nil, core.InvalidInput("passwords do not match")
	}

	email := identity.NormalizeEmail(req.Email)

	_, err := s.repo.FindByEmail(ctx, identity.KindUser, email)
	switch {
	case err == nil:
		return nil, fmt.Errorf("register %s: %w", email, core.ErrDuplicateKey)
	case !errors.Is(err, core.ErrNotFound):
		return nil, fmt.Errorf("register: %w", err)
	}

	passwordHash, err := s.creds.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	reg := pending.Registration{
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: passwordHash,
	}

	return s.issueOTP(ctx, reg)
}

// ResendOTP replaces the code of an existing pending registration.
func (s *Service) ResendOTP(ctx context.Context, email string) (*PendingResponse, error) {
	email = identity.NormalizeEmail(email)

	reg, err := s.pending.Get(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("resend otp: %w", err)
	}

	return s.issueOTP(ctx, *reg)
}

func (s *Service) issueOTP(
	ctx context.Context,
	reg pending.Registration,
) (*PendingResponse, error) {
	code, expiresAt, err := s.issuer.NewOTP()
	if err != nil {
		return nil, err
	}
	reg.OTP = code
	reg.OTPExpiresAt = expiresAt

	if err := s.pending.Put(ctx, reg); err != nil {
		return nil, fmt.Errorf("store pending registration: %w", err)
	}

	msg, err := notify.BuildOTPEmail(reg.Email, notify.OTPEmail{
		SiteName:  s.links.SiteName,
		Name:      reg.Name,
		Code:      code,
		ExpiresIn: s.issuer.Config().OTPTTL,
	})
	if err != nil {
		return nil, err
	}
	if err := s.send(ctx, msg); err != nil {
		return nil, err
	}

	core.AddSpanEvent(ctx, "account.otp_issued")

	return &PendingResponse{Email: reg.Email, ExpiresAt: expiresAt}, nil
}

// VerifyEmail turns a pending registration into a verified User.
func (s *Service) VerifyEmail(
	ctx context.Context,
	email, otp string,
) (*AuthResponse, error) {
	email = identity.NormalizeEmail(email)

	reg, err := s.pending.Get(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("verify email: %w", core.ErrTokenInvalid)
	}
	if err != nil {
		return nil, fmt.Errorf("verify email: %w", err)
	}

	if err := s.issuer.CheckOTP(reg.OTP, otp, reg.OTPExpiresAt); err != nil {
		if errors.Is(err, core.ErrTokenExpired) {
			s.dropPending(ctx, email)
		}
		return nil, s.fail(ctx, "verify email", err)
	}

	now := s.clock.Now()
	user := &identity.Identity{
		ID:            uuid.New().String(),
		Kind:          identity.KindUser,
		Email:         reg.Email,
		Name:          reg.Name,
		PasswordHash:  &reg.PasswordHash,
		EmailVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		// Another verify of the same code created the user first.
		if errors.Is(err, core.ErrDuplicateKey) {
			err = core.ErrTokenInvalid
		}
		return nil, s.fail(ctx, "verify email", err)
	}

	s.dropPending(ctx, email)
	core.AddSpanEvent(ctx, "account.email_verified",
		attribute.String("identity.id", user.ID),
	)

	return s.authResponse(user)
}

func (s *Service) dropPending(ctx context.Context, email string) {
	if err := s.pending.Delete(ctx, email); err != nil {
		s.logger.WarnContext(ctx, "failed to drop pending registration",
			"error", err,
		)
	}
}

func (s *Service) Login(
	ctx context.Context,
	kind identity.Kind,
	req LoginRequest,
) (*AuthResponse, error) {
	found, err := s.repo.FindByEmail(ctx, kind, identity.NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			s.creds.VerifyTimingSafe(req.Password, nil)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("login: %w", err)
	}

	if kind == identity.KindMember && found.Status != identity.StatusActive {
		s.creds.VerifyTimingSafe(req.Password, nil)
		return nil, fmt.Errorf("login: %w", core.ErrAccountNotActive)
	}

	if !s.creds.VerifyTimingSafe(req.Password, found.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	if !found.CanLogin() {
		return nil, fmt.Errorf("login: %w", core.ErrAccountNotActive)
	}

	if err := found.BlockedError(s.clock.Now()); err != nil {
		return nil, err
	}

	core.AddSpanEvent(ctx, "account.login",
		attribute.String("identity.id", found.ID),
		attribute.String("identity.kind", string(kind)),
	)

	return s.authResponse(found)
}

// ForgotPassword is silent when no account can receive a reset link.
func (s *Service) ForgotPassword(
	ctx context.Context,
	kind identity.Kind,
	email string,
) error {
	email = identity.NormalizeEmail(email)

	plain, reset, err := s.issuer.NewReset()
	if err != nil {
		return err
	}

	var target *identity.Identity
	err = s.repo.InTx(ctx, func(tx identity.Repository) error {
		found, err := tx.FindByEmail(ctx, kind, email)
		if err != nil {
			return err
		}
		if !found.HasPassword() {
			return core.ErrNotFound
		}

		found.Reset = reset
		found.UpdatedAt = s.clock.Now()
		if err := tx.Save(ctx, found); err != nil {
			return err
		}
		target = found
		return nil
	})
	if errors.Is(err, core.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("forgot password: %w", err)
	}

	msg, err := notify.BuildResetEmail(target.Email, notify.ResetEmail{
		SiteName:  s.links.SiteName,
		Name:      target.Name,
		Link:      s.resetLink(kind, plain),
		ExpiresIn: s.issuer.Config().ResetTTL,
	})
	if err != nil {
		return err
	}
	// An undeliverable link answers like an unknown email; send has
	// already logged it.
	if err := s.send(ctx, msg); err != nil {
		return nil //nolint:nilerr // indistinguishable from an unknown email
	}

	core.AddSpanEvent(ctx, "account.reset_requested",
		attribute.String("identity.id", target.ID),
	)
	return nil
}

// ResetPassword consumes the reset token and the new password in one
// write, then signs the identity in.
func (s *Service) ResetPassword(
	ctx context.Context,
	kind identity.Kind,
	req ResetPasswordRequest,
) (*AuthResponse, error) {
	if req.Password != req.ConfirmPassword {
		return nil, core.InvalidInput("passwords do not match")
	}

	passwordHash, err := s.creds.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("reset password: %w", err)
	}

	var updated *identity.Identity
	err = s.repo.InTx(ctx, func(tx identity.Repository) error {
		found, err := tx.FindByResetHash(ctx, kind, core.HashToken(req.Token))
		if errors.Is(err, core.ErrNotFound) {
			return core.ErrTokenInvalid
		}
		if err != nil {
			return err
		}

		if err := s.issuer.CheckReset(found.Reset, req.Token); err != nil {
			return err
		}
		if err := found.BlockedError(s.clock.Now()); err != nil {
			return err
		}

		found.SetPassword(passwordHash)
		found.UpdatedAt = s.clock.Now()
		if err := tx.Save(ctx, found); err != nil {
			return err
		}
		updated = found
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, "reset password", err)
	}

	core.AddSpanEvent(ctx, "account.password_reset",
		attribute.String("identity.id", updated.ID),
	)

	return s.authResponse(updated)
}

func (s *Service) ChangePassword(
	ctx context.Context,
	kind identity.Kind,
	id string,
	req ChangePasswordRequest,
) error {
	newHash, err := s.creds.Hash(req.NewPassword)
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}

	err = s.repo.InTx(ctx, func(tx identity.Repository) error {
		found, err := tx.FindByID(ctx, kind, id)
		if err != nil {
			return err
		}
		if !s.creds.VerifyTimingSafe(req.CurrentPassword, found.PasswordHash) {
			return ErrInvalidCredentials
		}

		found.SetPassword(newHash)
		found.UpdatedAt = s.clock.Now()
		return tx.Save(ctx, found)
	})
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	return nil
}

func (s *Service) Profile(
	ctx context.Context,
	kind identity.Kind,
	id string,
) (*IdentityResponse, error) {
	found, err := s.repo.FindByID(ctx, kind, id)
	if err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	resp := ToIdentityResponse(found, s.clock.Now())
	return &resp, nil
}

// InviteMember creates a PENDING member holding a fresh invitation
// token and mails the completion link.
func (s *Service) InviteMember(
	ctx context.Context,
	req InviteMemberRequest,
) (*IdentityResponse, error) {
	if !identity.IsDesignation(req.Designation) {
		return nil, core.InvalidInput(
			fmt.Sprintf("invalid designation %q", req.Designation),
		)
	}

	invitation, err := s.issuer.NewInvitation()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	member := &identity.Identity{
		ID:              uuid.New().String(),
		Kind:            identity.KindMember,
		Email:           identity.NormalizeEmail(req.Email),
		Name:            strings.TrimSpace(req.Name),
		Designation:     req.Designation,
		Status:          identity.StatusPending,
		InvitationToken: &invitation,
		InvitedAt:       &now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Create(ctx, member); err != nil {
		return nil, fmt.Errorf("invite member: %w", err)
	}

	core.AddSpanEvent(ctx, "account.member_invited",
		attribute.String("identity.id", member.ID),
	)

	msg, err := notify.BuildInvitationEmail(member.Email, notify.InvitationEmail{
		SiteName:    s.links.SiteName,
		Name:        member.Name,
		Designation: member.Designation,
		Link:        withToken(s.links.InvitationURL, invitation),
		ExpiresIn:   s.issuer.Config().InvitationTTL,
	})
	if err != nil {
		return nil, err
	}
	if err := s.send(ctx, msg); err != nil {
		return nil, err
	}

	resp := ToIdentityResponse(member, now)
	return &resp, nil
}

// CompleteProfile activates an invited member. The token is checked
// before the image is stored and again under the row lock, so two
// concurrent completions cannot both succeed.
func (s *Service) CompleteProfile(
	ctx context.Context,
	req CompleteProfileRequest,
) (*AuthResponse, error) {
	if req.Password != req.ConfirmPassword {
		return nil, core.InvalidInput("passwords do not match")
	}
	if _, err := blob.ImageExtension(req.Image); err != nil {
		return nil, err
	}

	candidate, err := s.repo.FindByInvitationToken(ctx, req.Token)
	if errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("complete profile: %w", core.ErrTokenInvalid)
	}
	if err != nil {
		return nil, fmt.Errorf("complete profile: %w", err)
	}
	if err := s.issuer.CheckInvitation(
		candidate.InvitationToken,
		req.Token,
		candidate.InvitedAt,
	); err != nil {
		return nil, s.fail(ctx, "complete profile", err)
	}

	passwordHash, err := s.creds.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("complete profile: %w", err)
	}

	image, err := s.blobs.Upload(ctx, req.Image)
	if err != nil {
		return nil, fmt.Errorf("upload profile image: %w", err)
	}

	var activated *identity.Identity
	err = s.repo.InTx(ctx, func(tx identity.Repository) error {
		found, err := tx.FindByID(ctx, identity.KindMember, candidate.ID)
		if err != nil {
			return err
		}
		if err := s.issuer.CheckInvitation(
			found.InvitationToken,
			req.Token,
			found.InvitedAt,
		); err != nil {
			return err
		}

		found.Activate(passwordHash, image.ID, image.URL)
		found.UpdatedAt = s.clock.Now()
		if err := tx.Save(ctx, found); err != nil {
			return err
		}
		activated = found
		return nil
	})
	if err != nil {
		s.releaseImage(ctx, image.ID)
		return nil, s.fail(ctx, "complete profile", err)
	}

	core.AddSpanEvent(ctx, "account.member_activated",
		attribute.String("identity.id", activated.ID),
	)

	return s.authResponse(activated)
}

// DeleteMember releases the stored image before removing the record.
// A failed release is logged and does not stop the delete.
func (s *Service) DeleteMember(ctx context.Context, id string) error {
	member, err := s.repo.FindByID(ctx, identity.KindMember, id)
	if err != nil {
		return fmt.Errorf("delete member: %w", err)
	}

	if member.ImageID != nil && *member.ImageID != "" {
		s.releaseImage(ctx, *member.ImageID)
	}

	if err := s.repo.Delete(ctx, member); err != nil {
		return s.fail(ctx, "delete member", err)
	}

	core.AddSpanEvent(ctx, "account.member_deleted",
		attribute.String("identity.id", id),
	)
	return nil
}

func (s *Service) releaseImage(ctx context.Context, imageID string) {
	if err := s.blobs.Release(ctx, imageID); err != nil {
		s.logger.WarnContext(ctx, "failed to release profile image",
			"image_id", imageID,
			"error", err,
		)
	}
}

// Block denies access until now+duration. The stored flag is left in
// place after the deadline; only Unblock clears it.
func (s *Service) Block(
	ctx context.Context,
	kind identity.Kind,
	id string,
	reason string,
	duration time.Duration,
) (*IdentityResponse, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, core.InvalidInput("block reason is required")
	}
	if duration <= 0 {
		return nil, core.InvalidInput("block duration must be positive")
	}

	return s.mutate(ctx, kind, id, func(found *identity.Identity, now time.Time) {
		found.BlockFor(reason, now.Add(duration))
	})
}

func (s *Service) Unblock(
	ctx context.Context,
	kind identity.Kind,
	id string,
) (*IdentityResponse, error) {
	return s.mutate(ctx, kind, id, func(found *identity.Identity, _ time.Time) {
		found.Unblock()
	})
}

func (s *Service) mutate(
	ctx context.Context,
	kind identity.Kind,
	id string,
	apply func(found *identity.Identity, now time.Time),
) (*IdentityResponse, error) {
	var resp IdentityResponse
	err := s.repo.InTx(ctx, func(tx identity.Repository) error {
		found, err := tx.FindByID(ctx, kind, id)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		apply(found, now)
		found.UpdatedAt = now
		if err := tx.Save(ctx, found); err != nil {
			return err
		}
		resp = ToIdentityResponse(found, now)
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, fmt.Sprintf("update %s %s", kind, id), err)
	}
	return &resp, nil
}

func (s *Service) List(
	ctx context.Context,
	kind identity.Kind,
	params identity.ListParams,
) (*ListResponse, error) {
	params.Normalize()

	items, total, err := s.repo.List(ctx, kind, params)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}

	now := s.clock.Now()
	out := make([]IdentityResponse, 0, len(items))
	for i := range items {
		out = append(out, ToIdentityResponse(&items[i], now))
	}

	return &ListResponse{
		Items:    out,
		Total:    total,
		Page:     params.Page,
		PageSize: params.PageSize,
	}, nil
}

func (s *Service) authResponse(found *identity.Identity) (*AuthResponse, error) {
	session, err := s.issuer.IssueSession(found.ID, found.Kind, found.Role())
	if err != nil {
		return nil, err
	}
	return &AuthResponse{
		Identity: ToIdentityResponse(found, s.clock.Now()),
		Session:  session,
	}, nil
}

// send reports a delivery failure as core.ErrNotification. Whatever was
// written before the send stays written.
func (s *Service) send(ctx context.Context, msg notify.Message) error {
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "notification failed",
			"subject", msg.Subject,
			"error", err,
		)
		err = fmt.Errorf("%w: %w", core.ErrNotification, err)
		core.SetSpanError(ctx, "notify", err)
		return err
	}
	return nil
}

// fail records a refused or failed transition on the active span and
// wraps err for the caller.
func (s *Service) fail(ctx context.Context, transition string, err error) error {
	core.SetSpanError(ctx, transition, err)
	return fmt.Errorf("%s: %w", transition, err)
}

func (s *Service) resetLink(kind identity.Kind, plain string) string {
	if kind == identity.KindMember {
		return withToken(s.links.MemberResetURL, plain)
	}
	return withToken(s.links.UserResetURL, plain)
}

func withToken(base, tok string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + "?token=" + url.QueryEscape(tok)
	}
	q := u.Query()
	q.Set("token", tok)
	u.RawQuery = q.Encode()
	return u.String()
}
