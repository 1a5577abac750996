package invitations

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/soliel-ai/soliel/internal/authz"
	platformdb "github.com/soliel-ai/soliel/internal/platform/db"
	"github.com/soliel-ai/soliel/internal/shared"
)

// Repository defines persistence for invitations.
type Repository interface {
	GetByToken(ctx context.Context, token string) (*Invitation, error)
	Create(ctx context.Context, inv *Invitation) (*Invitation, error)
	ListByCompany(ctx context.Context, companyID int64) ([]Invitation, error)
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
}

// TxRepository exposes the operations that must share the acceptance
// transaction.
type TxRepository interface {
	GetByTokenForUpdate(ctx context.Context, token string) (*Invitation, error)
	// ConsumeToken sets accepted_at, conditioned on the row still being
	// unaccepted. Returns false when another request consumed it first.
	ConsumeToken(ctx context.Context, token string, now time.Time) (bool, error)
	UpsertMembership(ctx context.Context, companyID, userID int64, role InviteRole, now time.Time) (*Membership, error)
	PromoteProfile(ctx context.Context, userID int64, role authz.Role) error
	IncrementActiveSeats(ctx context.Context, companyID int64) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const invitationColumns = `id, company_id, email, role, token, created_by, issued_at, expires_at, accepted_at`

func scanInvitation(row pgx.Row) (*Invitation, error) {
	var inv Invitation
	var role string
	err := row.Scan(&inv.ID, &inv.CompanyID, &inv.Email, &role, &inv.Token,
		&inv.CreatedBy, &inv.IssuedAt, &inv.ExpiresAt, &inv.AcceptedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	inv.Role = InviteRole(role)
	return &inv, nil
}

// GetByToken fetches an invitation by its unique token.
func (r *PGRepository) GetByToken(ctx context.Context, token string) (*Invitation, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+invitationColumns+` FROM company_invitations WHERE token = $1`, token)
	return scanInvitation(row)
}

// Create inserts a new invitation.
func (r *PGRepository) Create(ctx context.Context, inv *Invitation) (*Invitation, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO company_invitations (company_id, email, role, token, created_by, issued_at, expires_at)
		 VALUES ($1, lower($2), $3, $4, $5, $6, $7)
		 RETURNING `+invitationColumns,
		inv.CompanyID, inv.Email, string(inv.Role), inv.Token, inv.CreatedBy, inv.IssuedAt, inv.ExpiresAt)
	return scanInvitation(row)
}

// ListByCompany returns a company's invitations, newest first.
func (r *PGRepository) ListByCompany(ctx context.Context, companyID int64) ([]Invitation, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+invitationColumns+` FROM company_invitations WHERE company_id = $1 ORDER BY issued_at DESC`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var invs []Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		invs = append(invs, *inv)
	}
	return invs, rows.Err()
}

// DeleteExpiredBefore garbage-collects expired, unaccepted rows older
// than the cutoff. Accepted rows are terminal and kept.
func (r *PGRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM company_invitations WHERE accepted_at IS NULL AND expires_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// WithTx runs fn inside a single transaction.
func (r *PGRepository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return platformdb.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTxRepository{tx: tx})
	})
}

type pgTxRepository struct {
	tx pgx.Tx
}

// GetByTokenForUpdate reloads the row under a row lock so the state
// checked is the state mutated.
func (r *pgTxRepository) GetByTokenForUpdate(ctx context.Context, token string) (*Invitation, error) {
	row := r.tx.QueryRow(ctx,
		`SELECT `+invitationColumns+` FROM company_invitations WHERE token = $1 FOR UPDATE`, token)
	return scanInvitation(row)
}

func (r *pgTxRepository) ConsumeToken(ctx context.Context, token string, now time.Time) (bool, error) {
	tag, err := r.tx.Exec(ctx,
		`UPDATE company_invitations SET accepted_at = $2 WHERE token = $1 AND accepted_at IS NULL`,
		token, now.UTC())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *pgTxRepository) UpsertMembership(ctx context.Context, companyID, userID int64, role InviteRole, now time.Time) (*Membership, error) {
	m := Membership{CompanyID: companyID, UserID: userID, Role: role}
	err := r.tx.QueryRow(ctx,
		`INSERT INTO company_members (company_id, user_id, role, joined_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (company_id, user_id) DO UPDATE SET role = EXCLUDED.role
		 RETURNING joined_at`,
		companyID, userID, string(role), now.UTC()).Scan(&m.JoinedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *pgTxRepository) PromoteProfile(ctx context.Context, userID int64, role authz.Role) error {
	_, err := r.tx.Exec(ctx,
		`UPDATE profiles SET role = $2, updated_at = now() WHERE user_id = $1`, userID, string(role))
	return err
}

func (r *pgTxRepository) IncrementActiveSeats(ctx context.Context, companyID int64) error {
	_, err := r.tx.Exec(ctx,
		`UPDATE companies SET active_seats = active_seats + 1 WHERE id = $1`, companyID)
	return err
}

var (
	_ Repository   = (*PGRepository)(nil)
	_ TxRepository = (*pgTxRepository)(nil)
)
