package users

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/soliel-ai/soliel/internal/authz"
	"github.com/soliel-ai/soliel/internal/shared"
)

// Service handles the super admin account administration.
type Service struct {
	logger   *slog.Logger
	repo     Repository
	profiles authz.ProfileRepository
	audit    *shared.AuditLogger
}

// NewService builds Service instance.
func NewService(logger *slog.Logger, repo Repository, profiles authz.ProfileRepository, audit *shared.AuditLogger) *Service {
	return &Service{logger: logger, repo: repo, profiles: profiles, audit: audit}
}

// Listing is one page of accounts with its pagination metadata.
type Listing struct {
	Accounts   []AccountWithRole
	Pagination shared.Pagination
}

// List returns one page of accounts.
func (s *Service) List(ctx context.Context, page int) (*Listing, error) {
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, err
	}
	p := shared.NewPagination(page, 25, int(total))
	accounts, err := s.repo.List(ctx, p)
	if err != nil {
		return nil, err
	}
	return &Listing{Accounts: accounts, Pagination: p}, nil
}

// RoleTallies returns account counts grouped by role.
func (s *Service) RoleTallies(ctx context.Context) ([]RoleTally, error) {
	return s.repo.CountByRole(ctx)
}

// ChangeRole mutates a user's profile role. This and invitation
// acceptance are the only places a role changes.
func (s *Service) ChangeRole(ctx context.Context, actorID, userID int64, rawRole string) error {
	role, err := authz.ParseRole(rawRole)
	if err != nil {
		return err
	}
	if err := s.profiles.UpdateRole(ctx, userID, role); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "user.role_changed", userID, map[string]any{"role": string(role)})
	return nil
}

// SetActive enables or disables an account. Disabled accounts fail
// session resolution on their next request.
func (s *Service) SetActive(ctx context.Context, actorID, userID int64, active bool) error {
	if err := s.repo.SetActive(ctx, userID, active); err != nil {
		return err
	}
	action := "user.deactivated"
	if active {
		action = "user.activated"
	}
	s.recordAudit(ctx, actorID, action, userID, nil)
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, userID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(userID, 10),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
