package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/soliel-ai/soliel/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// SignUp creates a new account with the default student profile.
func (s *Service) SignUp(ctx context.Context, email, fullName, password string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, errors.New("auth: email required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return s.repo.CreateUser(ctx, email, fullName, string(hash))
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession revokes a session record.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.RevokeSession(ctx, id)
}

// ResetPassword stores a new password for the user, used at the end of
// the recovery flow.
func (s *Service) ResetPassword(ctx context.Context, userID int64, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.repo.UpdatePassword(ctx, userID, string(hash))
}

// VerifyOneTimeToken redeems a hashed single-use token and returns the
// user it belongs to. Unknown, expired and already-consumed tokens all
// come back as shared.ErrNotFound; callers surface a generic failure so
// the response does not reveal which check tripped.
func (s *Service) VerifyOneTimeToken(ctx context.Context, tokenType OneTimeTokenType, tokenHash string) (int64, error) {
	if tokenHash == "" || !tokenType.Valid() {
		return 0, shared.ErrNotFound
	}
	return s.repo.ConsumeOneTimeToken(ctx, tokenType, tokenHash)
}
