// AngelaMos | 2026
// entity.go

package identity

import (
	"fmt"
	"time"

	"github.com/carterperez-dev/member-portal/internal/core"
)

// Kind tags which of the two account variants an Identity is.
type Kind string

const (
	KindUser   Kind = "user"
	KindMember Kind = "member"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindUser, KindMember:
		return Kind(s), nil
	}
	return "", core.InvalidInput(fmt.Sprintf("unknown account kind %q", s))
}

const (
	RoleUser      = "User"
	RoleMember    = "Member"
	RoleSecretary = "Secretary"
	RolePresident = "President"
	RoleAdmin     = "Admin"
)

// MemberDesignations are the roles a Member may hold.
var MemberDesignations = []string{
	RoleMember,
	RoleSecretary,
	RolePresident,
	RoleAdmin,
}

func IsDesignation(role string) bool {
	for _, d := range MemberDesignations {
		if d == role {
			return true
		}
	}
	return false
}

type MemberStatus string

const (
	StatusPending MemberStatus = "PENDING"
	StatusActive  MemberStatus = "ACTIVE"
)

// Block is the stored blocking state. IsBlocked stays set after the
// deadline passes; only Active decides whether access is denied.
type Block struct {
	IsBlocked bool
	Until     *time.Time
	Reason    *string
}

// Active reports whether the block denies access at now. A block without
// a deadline never expires on its own.
func (b Block) Active(now time.Time) bool {
	if !b.IsBlocked {
		return false
	}
	if b.Until == nil {
		return true
	}
	return now.Before(*b.Until)
}

// ResetToken stores only the SHA-256 of the emailed token.
type ResetToken struct {
	Hash      string
	ExpiresAt time.Time
}

// Identity is either a User or a Member. Fields after the common block
// are only meaningful for the kind named in their comment.
type Identity struct {
	ID           string
	Kind         Kind
	Email        string
	Name         string
	PasswordHash *string
	Block        Block
	Reset        *ResetToken
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// user
	EmailVerified bool

	// member
	Designation     string
	Status          MemberStatus
	InvitationToken *string
	InvitedAt       *time.Time
	ImageID         *string
	ImageURL        *string
}

// Role is the single authorization value downstream policy checks see.
func (i *Identity) Role() string {
	if i.Kind == KindMember {
		return i.Designation
	}
	return RoleUser
}

func (i *Identity) HasPassword() bool {
	return i.PasswordHash != nil && *i.PasswordHash != ""
}

// CanLogin reports whether the lifecycle state allows authentication.
func (i *Identity) CanLogin() bool {
	switch i.Kind {
	case KindUser:
		return i.EmailVerified && i.HasPassword()
	case KindMember:
		return i.Status == StatusActive && i.HasPassword()
	}
	return false
}

// BlockedError returns the structured error for an active block, or nil.
func (i *Identity) BlockedError(now time.Time) error {
	if !i.Block.Active(now) {
		return nil
	}

	blocked := &core.BlockedError{}
	if i.Block.Reason != nil {
		blocked.Reason = *i.Block.Reason
	}
	if i.Block.Until != nil {
		blocked.Until = *i.Block.Until
	}
	return blocked
}

func (i *Identity) BlockFor(reason string, until time.Time) {
	i.Block = Block{
		IsBlocked: true,
		Until:     &until,
		Reason:    &reason,
	}
}

// Unblock is the explicit administrative path and clears every field.
func (i *Identity) Unblock() {
	i.Block = Block{}
}

// Activate completes member onboarding: password set, invitation gone.
func (i *Identity) Activate(passwordHash, imageID, imageURL string) {
	i.PasswordHash = &passwordHash
	i.InvitationToken = nil
	i.Status = StatusActive
	i.ImageID = &imageID
	i.ImageURL = &imageURL
}

// SetPassword replaces the credential and burns any reset token in the
// same mutation.
func (i *Identity) SetPassword(passwordHash string) {
	i.PasswordHash = &passwordHash
	i.Reset = nil
}

// Validate checks the structural invariants before a write.
func (i *Identity) Validate() error {
	if i.ID == "" || i.Email == "" {
		return core.InvalidInput("identity requires id and email")
	}

	switch i.Kind {
	case KindUser:
		if i.InvitationToken != nil || i.Status != "" {
			return core.InvalidInput("user cannot carry member lifecycle fields")
		}
	case KindMember:
		if !IsDesignation(i.Designation) {
			return core.InvalidInput(
				fmt.Sprintf("invalid designation %q", i.Designation),
			)
		}
		hasInvite := i.InvitationToken != nil && *i.InvitationToken != ""
		if hasInvite == i.HasPassword() {
			return core.InvalidInput(
				"member must hold exactly one of password or invitation",
			)
		}
		if hasInvite != (i.Status == StatusPending) {
			return core.InvalidInput(
				"member invitation must be present exactly while pending",
			)
		}
	default:
		return core.InvalidInput(fmt.Sprintf("unknown kind %q", i.Kind))
	}

	return nil
}

func (i *Identity) Clone() *Identity {
	c := *i
	c.PasswordHash = clonePtr(i.PasswordHash)
	c.InvitationToken = clonePtr(i.InvitationToken)
	c.InvitedAt = clonePtr(i.InvitedAt)
	c.ImageID = clonePtr(i.ImageID)
	c.ImageURL = clonePtr(i.ImageURL)
	c.Block.Until = clonePtr(i.Block.Until)
	c.Block.Reason = clonePtr(i.Block.Reason)
	if i.Reset != nil {
		r := *i.Reset
		c.Reset = &r
	}
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
