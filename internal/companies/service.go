package companies

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/soliel-ai/soliel/internal/shared"
)

// Service wraps company business rules.
type Service struct {
	repo   Repository
	audit  *shared.AuditLogger
	logger *slog.Logger
}

// NewService constructs a Service. audit may be nil.
func NewService(repo Repository, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, logger: logger}
}

// CompanyForAdmin returns the company the user administers.
func (s *Service) CompanyForAdmin(ctx context.Context, adminID int64) (*Company, error) {
	return s.repo.GetByAdmin(ctx, adminID)
}

// Company returns a company by ID.
func (s *Service) Company(ctx context.Context, id int64) (*Company, error) {
	return s.repo.GetByID(ctx, id)
}

// Members lists a company's members.
func (s *Service) Members(ctx context.Context, companyID int64) ([]Member, error) {
	return s.repo.ListMembers(ctx, companyID)
}

// All lists every company, for the super-admin page.
func (s *Service) All(ctx context.Context) ([]Company, error) {
	return s.repo.ListAll(ctx)
}

// Create registers a new company.
func (s *Service) Create(ctx context.Context, name, email, plan string, seatLimit int, actorID int64) (*Company, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("companies: name required")
	}
	if seatLimit <= 0 {
		seatLimit = 10
	}
	if plan == "" {
		plan = "basic"
	}
	company, err := s.repo.Create(ctx, name, email, plan, seatLimit, actorID)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "company.created", company.ID, map[string]any{"name": company.Name})
	return company, nil
}

// RemoveMember drops a membership and frees the seat.
func (s *Service) RemoveMember(ctx context.Context, companyID, userID, actorID int64) error {
	if err := s.repo.RemoveMember(ctx, companyID, userID); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "company.member_removed", companyID, map[string]any{"user_id": userID})
	return nil
}

// SeatAvailable reports whether the company can take another member.
// Implements invitations.SeatChecker.
func (s *Service) SeatAvailable(ctx context.Context, companyID int64) (bool, error) {
	company, err := s.repo.GetByID(ctx, companyID)
	if err != nil {
		return false, err
	}
	return company.SeatsLeft() > 0, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, companyID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "company",
		EntityID: strconv.FormatInt(companyID, 10),
		Meta:     meta,
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("audit "+action, slog.Any("error", err))
	}
}
