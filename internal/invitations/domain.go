package invitations

import (
	"errors"
	"time"
)

// InviteRole is the access an invitation grants inside a company.
type InviteRole string

const (
	InviteRoleMember       InviteRole = "member"
	InviteRoleCompanyAdmin InviteRole = "company_admin"
)

// Valid reports whether the invite role is a known value.
func (r InviteRole) Valid() bool {
	return r == InviteRoleMember || r == InviteRoleCompanyAdmin
}

// Invitation is a single-use, time-bounded offer of company membership.
// Terminal states are acceptance (accepted_at set, permanent) and
// expiry (derived from expires_at, never stored).
type Invitation struct {
	ID         int64
	CompanyID  int64
	Email      string
	Role       InviteRole
	Token      string
	CreatedBy  int64
	IssuedAt   time.Time
	ExpiresAt  time.Time
	AcceptedAt *time.Time
}

// Accepted reports whether the invitation has been consumed.
func (i *Invitation) Accepted() bool {
	return i.AcceptedAt != nil
}

// Expired reports whether the invitation is past its deadline.
func (i *Invitation) Expired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

// Status returns a display label for listings.
func (i *Invitation) Status(now time.Time) string {
	switch {
	case i.Accepted():
		return "accepted"
	case i.Expired(now):
		return "expired"
	default:
		return "pending"
	}
}

// Membership is the company membership granted by acceptance.
type Membership struct {
	CompanyID int64
	UserID    int64
	Role      InviteRole
	JoinedAt  time.Time
}

// Lifecycle faults, each mapping to a distinct redirect code so the
// sign-in surface can show a precise message.
var (
	ErrMissingToken     = errors.New("invitations: token missing")
	ErrInvalidToken     = errors.New("invitations: token invalid")
	ErrExpiredToken     = errors.New("invitations: token expired")
	ErrAlreadyAccepted  = errors.New("invitations: already accepted")
	ErrSeatLimitReached = errors.New("invitations: company seat limit reached")
)

// RedirectCode maps a lifecycle fault to its sign-in error code.
func RedirectCode(err error) string {
	switch {
	case errors.Is(err, ErrMissingToken):
		return "missing_token"
	case errors.Is(err, ErrExpiredToken):
		return "expired_token"
	case errors.Is(err, ErrAlreadyAccepted):
		return "already_accepted"
	default:
		return "invalid_token"
	}
}
