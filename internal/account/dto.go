// AngelaMos | 2026
// dto.go

package account

import (
	"time"

	"github.com/carterperez-dev/member-portal/internal/identity"
	"github.com/carterperez-dev/member-portal/internal/token"
)

type RegisterRequest struct {
	Name            string `json:"name"             validate:"required,min=1,max=100"`
	Email           string `json:"email"            validate:"required,email,max=255"`
	Password        string `json:"password"         validate:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

type ResendRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

type VerifyEmailRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
	OTP   string `json:"otp"   validate:"required,len=6,numeric"`
}

type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=72"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

type ResetPasswordRequest struct {
	Token           string `json:"token"            validate:"required,max=256"`
	Password        string `json:"password"         validate:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password"     validate:"required,min=8,max=72"`
}

type InviteMemberRequest struct {
	Name        string `json:"name"        validate:"required,min=1,max=100"`
	Email       string `json:"email"       validate:"required,email,max=255"`
	Designation string `json:"designation" validate:"required,oneof=Member Secretary President Admin"`
}

type CompleteProfileRequest struct {
	Token           string `validate:"required,max=256"`
	Password        string `validate:"required,min=8,max=72"`
	ConfirmPassword string `validate:"required,eqfield=Password"`
	Image           []byte `validate:"required"`
}

type BlockRequest struct {
	Reason        string `json:"reason"         validate:"required,min=1,max=500"`
	DurationHours int    `json:"duration_hours" validate:"required,min=1,max=87600"`
}

func (r BlockRequest) Duration() time.Duration {
	return time.Duration(r.DurationHours) * time.Hour
}

type PendingResponse struct {
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"otp_expires_at"`
}

type IdentityResponse struct {
	ID            string     `json:"id"`
	Kind          string     `json:"kind"`
	Email         string     `json:"email"`
	Name          string     `json:"name"`
	Role          string     `json:"role"`
	EmailVerified *bool      `json:"email_verified,omitempty"`
	Status        string     `json:"status,omitempty"`
	ImageURL      *string    `json:"image_url,omitempty"`
	IsBlocked     bool       `json:"is_blocked"`
	BlockedNow    bool       `json:"blocked_now"`
	BlockedUntil  *time.Time `json:"blocked_until,omitempty"`
	BlockReason   *string    `json:"block_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// ToIdentityResponse renders both the stored block flag and whether it
// currently denies access.
func ToIdentityResponse(i *identity.Identity, now time.Time) IdentityResponse {
	resp := IdentityResponse{
		ID:           i.ID,
		Kind:         string(i.Kind),
		Email:        i.Email,
		Name:         i.Name,
		Role:         i.Role(),
		IsBlocked:    i.Block.IsBlocked,
		BlockedNow:   i.Block.Active(now),
		BlockedUntil: i.Block.Until,
		BlockReason:  i.Block.Reason,
		CreatedAt:    i.CreatedAt,
	}

	switch i.Kind {
	case identity.KindUser:
		verified := i.EmailVerified
		resp.EmailVerified = &verified
	case identity.KindMember:
		resp.Status = string(i.Status)
		resp.ImageURL = i.ImageURL
	}

	return resp
}

type AuthResponse struct {
	Identity IdentityResponse `json:"identity"`
	Session  *token.Session   `json:"session"`
}

type ListResponse struct {
	Items    []IdentityResponse `json:"items"`
	Total    int                `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
}
