package invitations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/soliel-ai/soliel/internal/authz"
	"github.com/soliel-ai/soliel/internal/shared"
	"github.com/soliel-ai/soliel/jobs"
)

// TaskEnqueuer pushes background tasks, normally an *asynq.Client.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// SeatChecker reports whether a company can take another member.
type SeatChecker interface {
	SeatAvailable(ctx context.Context, companyID int64) (bool, error)
}

// AcceptanceRecorder counts accepted invitations, normally prometheus.
type AcceptanceRecorder interface {
	RecordInvitationAccepted()
	RecordInvitationIssued()
}

// ServiceConfig carries tunables for the invitation lifecycle.
type ServiceConfig struct {
	// TTL is how long an issued invitation stays valid.
	TTL time.Duration
	// Retention is how long expired unaccepted rows are kept before the
	// sweep deletes them.
	Retention time.Duration
	// BaseURL prefixes the acceptance link put into invitation emails.
	BaseURL string
}

// Service drives the invitation lifecycle: Issued, then exactly one of
// Accepted (terminal, stored) or Expired (terminal, derived).
type Service struct {
	repo     Repository
	seats    SeatChecker
	audit    *shared.AuditLogger
	enqueuer TaskEnqueuer
	logger   *slog.Logger
	metrics  AcceptanceRecorder
	cfg      ServiceConfig
	now      func() time.Time
}

// NewService constructs a Service. audit, enqueuer and metrics may be
// nil; seats may be nil when seat limits are not enforced.
func NewService(repo Repository, seats SeatChecker, audit *shared.AuditLogger, enqueuer TaskEnqueuer, logger *slog.Logger, metrics AcceptanceRecorder, cfg ServiceConfig) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = 7 * 24 * time.Hour
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 30 * 24 * time.Hour
	}
	return &Service{
		repo:     repo,
		seats:    seats,
		audit:    audit,
		enqueuer: enqueuer,
		logger:   logger,
		metrics:  metrics,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source, for tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Validate checks a token without side effects. Check order is fixed:
// presence, then lookup, then acceptance, then expiry. Acceptance wins
// over expiry so an old consumed link reports already_accepted, not
// expired. A missing token never touches the store.
func (s *Service) Validate(ctx context.Context, token string) (*Invitation, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}
	inv, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		// Lookup failures and absent rows are indistinguishable to the
		// caller; both deny with invalid_token.
		if !errors.Is(err, shared.ErrNotFound) && s.logger != nil {
			s.logger.Warn("invitation lookup", slog.Any("error", err))
		}
		return nil, ErrInvalidToken
	}
	return inv, s.checkState(inv)
}

func (s *Service) checkState(inv *Invitation) error {
	if inv.Accepted() {
		return ErrAlreadyAccepted
	}
	if inv.Expired(s.now()) {
		return ErrExpiredToken
	}
	return nil
}

// Accept consumes the token and grants membership in one transaction.
// The row is reloaded under lock immediately before mutation, so a
// token that expired or was consumed after an earlier Validate call is
// still refused. When two requests race, the conditional update lets
// exactly one through; the loser observes ErrAlreadyAccepted.
func (s *Service) Accept(ctx context.Context, token string, principalID int64) (*Membership, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}

	var membership *Membership
	var accepted *Invitation
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetByTokenForUpdate(ctx, token)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return ErrInvalidToken
			}
			return fmt.Errorf("reload invitation: %w", err)
		}
		if err := s.checkState(inv); err != nil {
			return err
		}
		now := s.now()
		ok, err := tx.ConsumeToken(ctx, token, now)
		if err != nil {
			return fmt.Errorf("consume token: %w", err)
		}
		if !ok {
			return ErrAlreadyAccepted
		}
		m, err := tx.UpsertMembership(ctx, inv.CompanyID, principalID, inv.Role, now)
		if err != nil {
			return fmt.Errorf("grant membership: %w", err)
		}
		if inv.Role == InviteRoleCompanyAdmin {
			if err := tx.PromoteProfile(ctx, principalID, authz.RoleCompanyAdmin); err != nil {
				return fmt.Errorf("promote profile: %w", err)
			}
		}
		if err := tx.IncrementActiveSeats(ctx, inv.CompanyID); err != nil {
			return fmt.Errorf("count seat: %w", err)
		}
		membership = m
		accepted = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordInvitationAccepted()
	}
	s.recordAudit(ctx, principalID, "invitation.accepted", accepted)
	return membership, nil
}

// IssueParams describe a new invitation.
type IssueParams struct {
	CompanyID int64
	Email     string
	Role      InviteRole
	ActorID   int64
}

// Issue creates an invitation with an unguessable single-use token and
// queues the invitation email.
func (s *Service) Issue(ctx context.Context, p IssueParams) (*Invitation, error) {
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	if p.Email == "" {
		return nil, errors.New("invitations: email required")
	}
	if !p.Role.Valid() {
		return nil, errors.New("invitations: invalid role")
	}
	if s.seats != nil {
		ok, err := s.seats.SeatAvailable(ctx, p.CompanyID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrSeatLimitReached
		}
	}

	now := s.now()
	inv, err := s.repo.Create(ctx, &Invitation{
		CompanyID: p.CompanyID,
		Email:     p.Email,
		Role:      p.Role,
		Token:     uuid.NewString(),
		CreatedBy: p.ActorID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.cfg.TTL),
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordInvitationIssued()
	}
	s.enqueueEmail(ctx, inv)
	s.recordAudit(ctx, p.ActorID, "invitation.issued", inv)
	return inv, nil
}

// SweepExpired deletes expired, unaccepted invitations past retention.
// Called from the worker cron, never from request paths.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.cfg.Retention)
	return s.repo.DeleteExpiredBefore(ctx, cutoff)
}

// AcceptanceLink builds the URL mailed to the invitee.
func (s *Service) AcceptanceLink(token string) string {
	return strings.TrimRight(s.cfg.BaseURL, "/") + "/accept-invitation?token=" + token
}

// ListByCompany exposes a company's invitations for the employees page.
func (s *Service) ListByCompany(ctx context.Context, companyID int64) ([]Invitation, error) {
	return s.repo.ListByCompany(ctx, companyID)
}

func (s *Service) enqueueEmail(ctx context.Context, inv *Invitation) {
	if s.enqueuer == nil {
		return
	}
	task, err := jobs.NewInvitationEmailTask(jobs.InvitationEmailPayload{
		To:        inv.Email,
		Link:      s.AcceptanceLink(inv.Token),
		Role:      string(inv.Role),
		ExpiresAt: inv.ExpiresAt,
	})
	if err == nil {
		_, err = s.enqueuer.EnqueueContext(ctx, task)
	}
	if err != nil && s.logger != nil {
		s.logger.Warn("enqueue invitation email", slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, inv *Invitation) {
	if s.audit == nil || inv == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "invitation",
		EntityID: strconv.FormatInt(inv.ID, 10),
		Meta: map[string]any{
			"company_id": inv.CompanyID,
			"email":      inv.Email,
			"role":       string(inv.Role),
		},
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("audit "+action, slog.Any("error", err))
	}
}
