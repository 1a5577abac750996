package auth

import "time"

// User represents an account known to the identity store.
type User struct {
	ID           int64
	Email        string
	FullName     string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal is the authenticated actor resolved for a single request.
// It is produced only by Resolver.Resolve and carries no authorization
// data; roles are always loaded separately from the profile store.
type Principal struct {
	ID        int64
	Email     string
	SessionID string
	ExpiresAt time.Time
}

// Session is a server-side login session persisted in postgres.
type Session struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
	IP        string
	UA        string
}

// OneTimeTokenType classifies single-use verification tokens.
type OneTimeTokenType string

const (
	// TokenTypeRecovery is issued for password-reset flows.
	TokenTypeRecovery OneTimeTokenType = "recovery"
	// TokenTypeEmailChange is issued when confirming a new address.
	TokenTypeEmailChange OneTimeTokenType = "email_change"
)

// Valid reports whether the token type is one of the known kinds.
func (t OneTimeTokenType) Valid() bool {
	switch t {
	case TokenTypeRecovery, TokenTypeEmailChange:
		return true
	}
	return false
}
