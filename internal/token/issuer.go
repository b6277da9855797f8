// AngelaMos | 2026
// issuer.go

package token

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/carterperez-dev/member-portal/internal/config"
	"github.com/carterperez-dev/member-portal/internal/core"
	"github.com/carterperez-dev/member-portal/internal/identity"
)

const (
	OTPDigits       = 6
	InvitationBytes = 32
	ResetBytes      = 20

	sessionType = "session"
)

type Config struct {
	Secret        string
	Issuer        string
	Audience      string
	SessionTTL    time.Duration
	OTPTTL        time.Duration
	InvitationTTL time.Duration
	ResetTTL      time.Duration
}

func ConfigFrom(session config.SessionConfig, security config.SecurityConfig) Config {
	return Config{
		Secret:        session.Secret,
		Issuer:        session.Issuer,
		Audience:      session.Audience,
		SessionTTL:    session.Expire,
		OTPTTL:        security.OTPTTL,
		InvitationTTL: security.InvitationTTL,
		ResetTTL:      security.ResetTTL,
	}
}

// Issuer creates and validates the four token kinds against an injected
// clock.
type Issuer struct {
	cfg   Config
	key   []byte
	clock core.Clock
}

func NewIssuer(cfg Config, clock core.Clock) (*Issuer, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("token issuer: empty signing secret")
	}
	if cfg.SessionTTL <= 0 || cfg.OTPTTL <= 0 ||
		cfg.InvitationTTL <= 0 || cfg.ResetTTL <= 0 {
		return nil, fmt.Errorf("token issuer: lifetimes must be positive")
	}
	if clock == nil {
		clock = core.SystemClock()
	}

	return &Issuer{
		cfg:   cfg,
		key:   []byte(cfg.Secret),
		clock: clock,
	}, nil
}

type Session struct {
	Token     string    `json:"access_token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Claims struct {
	SubjectID string
	Kind      identity.Kind
	Role      string
	ExpiresAt time.Time
}

func (i *Issuer) IssueSession(
	subjectID string,
	kind identity.Kind,
	role string,
) (*Session, error) {
	// exp is carried in whole seconds; ExpiresAt must equal it.
	now := i.clock.Now().Truncate(time.Second)
	expiresAt := now.Add(i.cfg.SessionTTL).Truncate(time.Second)

	tok, err := jwt.NewBuilder().
		JwtID(uuid.New().String()).
		Issuer(i.cfg.Issuer).
		Audience([]string{i.cfg.Audience}).
		Subject(subjectID).
		IssuedAt(now).
		Expiration(expiresAt).
		NotBefore(now).
		Claim("kind", string(kind)).
		Claim("role", role).
		Claim("type", sessionType).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build session token: %w", err)
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256(), i.key))
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}

	return &Session{
		Token:     string(signed),
		TokenType: "Bearer",
		ExpiresAt: expiresAt,
	}, nil
}

func (i *Issuer) VerifySession(
	ctx context.Context,
	tokenString string,
) (*Claims, error) {
	tok, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKey(jwa.HS256(), i.key),
		jwt.WithValidate(true),
		jwt.WithIssuer(i.cfg.Issuer),
		jwt.WithAudience(i.cfg.Audience),
		jwt.WithClock(i.clock),
		jwt.WithAcceptableSkew(time.Second),
	)
	if err != nil {
		if isTokenExpiredError(err) {
			return nil, fmt.Errorf("verify session: %w", core.ErrTokenExpired)
		}
		return nil, fmt.Errorf("verify session: %w", core.ErrTokenInvalid)
	}

	var tokenType string
	if err := tok.Get("type", &tokenType); err != nil ||
		tokenType != sessionType {
		return nil, fmt.Errorf(
			"verify session: invalid token type: %w",
			core.ErrTokenInvalid,
		)
	}

	subject, ok := tok.Subject()
	if !ok || subject == "" {
		return nil, fmt.Errorf(
			"verify session: missing subject: %w",
			core.ErrTokenInvalid,
		)
	}

	var kindStr string
	if err := tok.Get("kind", &kindStr); err != nil {
		return nil, fmt.Errorf(
			"verify session: missing kind claim: %w",
			core.ErrTokenInvalid,
		)
	}
	kind, err := identity.ParseKind(kindStr)
	if err != nil {
		return nil, fmt.Errorf(
			"verify session: %s: %w",
			err.Error(),
			core.ErrTokenInvalid,
		)
	}

	var role string
	if err := tok.Get("role", &role); err != nil {
		return nil, fmt.Errorf(
			"verify session: missing role claim: %w",
			core.ErrTokenInvalid,
		)
	}

	// The library compares whole seconds; the deadline itself is checked
	// here the same way as every other token kind.
	expiresAt, ok := tok.Expiration()
	if !ok {
		return nil, fmt.Errorf(
			"verify session: missing exp: %w",
			core.ErrTokenInvalid,
		)
	}
	if i.expired(expiresAt) {
		return nil, fmt.Errorf("verify session: %w", core.ErrTokenExpired)
	}

	return &Claims{
		SubjectID: subject,
		Kind:      kind,
		Role:      role,
		ExpiresAt: expiresAt,
	}, nil
}

func isTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "exp") &&
		strings.Contains(errStr, "not satisfied")
}

// NewOTP returns a fresh numeric code and the instant it stops being
// accepted.
func (i *Issuer) NewOTP() (string, time.Time, error) {
	code, err := core.GenerateNumericCode(OTPDigits)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("new otp: %w", err)
	}
	return code, i.clock.Now().Add(i.cfg.OTPTTL), nil
}

func (i *Issuer) CheckOTP(stored, presented string, expiresAt time.Time) error {
	if i.expired(expiresAt) {
		return fmt.Errorf("check otp: %w", core.ErrTokenExpired)
	}
	if stored == "" || !core.ConstantTimeEqual(stored, presented) {
		return fmt.Errorf("check otp: %w", core.ErrTokenInvalid)
	}
	return nil
}

// NewInvitation returns a token that is stored as is on the member.
func (i *Issuer) NewInvitation() (string, error) {
	tok, err := core.GenerateHexToken(InvitationBytes)
	if err != nil {
		return "", fmt.Errorf("new invitation: %w", err)
	}
	return tok, nil
}

func (i *Issuer) CheckInvitation(
	stored *string,
	presented string,
	invitedAt *time.Time,
) error {
	if stored == nil || *stored == "" || presented == "" ||
		!core.ConstantTimeEqual(*stored, presented) {
		return fmt.Errorf("check invitation: %w", core.ErrTokenInvalid)
	}
	if invitedAt != nil && i.expired(invitedAt.Add(i.cfg.InvitationTTL)) {
		return fmt.Errorf("check invitation: %w", core.ErrTokenExpired)
	}
	return nil
}

// NewReset returns the plain token for the email and the hashed record
// to persist. The plain value is never stored.
func (i *Issuer) NewReset() (string, *identity.ResetToken, error) {
	plain, err := core.GenerateHexToken(ResetBytes)
	if err != nil {
		return "", nil, fmt.Errorf("new reset token: %w", err)
	}
	return plain, &identity.ResetToken{
		Hash:      core.HashToken(plain),
		ExpiresAt: i.clock.Now().Add(i.cfg.ResetTTL),
	}, nil
}

func (i *Issuer) CheckReset(stored *identity.ResetToken, presented string) error {
	if stored == nil || presented == "" ||
		!core.CompareTokenHash(presented, stored.Hash) {
		return fmt.Errorf("check reset token: %w", core.ErrTokenInvalid)
	}
	if i.expired(stored.ExpiresAt) {
		return fmt.Errorf("check reset token: %w", core.ErrTokenExpired)
	}
	return nil
}

// expired is strict: a token is still valid at its deadline.
func (i *Issuer) expired(deadline time.Time) bool {
	return i.clock.Now().After(deadline)
}

func (i *Issuer) Now() time.Time {
	return i.clock.Now()
}

func (i *Issuer) Config() Config {
	return i.cfg
}
