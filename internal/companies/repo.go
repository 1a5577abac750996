package companies

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/soliel-ai/soliel/internal/shared"
)

// ErrAlreadyExists indicates a duplicate company name or email.
var ErrAlreadyExists = errors.New("companies: already exists")

// Repository defines persistence operations for companies.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Company, error)
	GetByAdmin(ctx context.Context, adminID int64) (*Company, error)
	Create(ctx context.Context, name, email, plan string, seatLimit int, adminID int64) (*Company, error)
	ListAll(ctx context.Context) ([]Company, error)
	ListMembers(ctx context.Context, companyID int64) ([]Member, error)
	RemoveMember(ctx context.Context, companyID, userID int64) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const companyColumns = `id, name, email, plan, seat_limit, active_seats, admin_id, created_at`

func scanCompany(row pgx.Row) (*Company, error) {
	var c Company
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Plan, &c.SeatLimit, &c.ActiveSeats, &c.AdminID, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// GetByID fetches a company.
func (r *PGRepository) GetByID(ctx context.Context, id int64) (*Company, error) {
	return scanCompany(r.pool.QueryRow(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE id = $1`, id))
}

// GetByAdmin fetches the company administered by the given user.
func (r *PGRepository) GetByAdmin(ctx context.Context, adminID int64) (*Company, error) {
	return scanCompany(r.pool.QueryRow(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE admin_id = $1`, adminID))
}

// Create inserts a new company. Duplicate names or emails surface as
// ErrAlreadyExists.
func (r *PGRepository) Create(ctx context.Context, name, email, plan string, seatLimit int, adminID int64) (*Company, error) {
	company, err := scanCompany(r.pool.QueryRow(ctx,
		`INSERT INTO companies (name, email, plan, seat_limit, active_seats, admin_id)
		 VALUES ($1, lower($2), $3, $4, 0, $5)
		 RETURNING `+companyColumns,
		name, email, plan, seatLimit, adminID))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrAlreadyExists
		}
		return nil, err
	}
	return company, nil
}

// ListAll returns every company, for the super-admin page.
func (r *PGRepository) ListAll(ctx context.Context) ([]Company, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+companyColumns+` FROM companies ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// ListMembers returns a company's members with their account details.
func (r *PGRepository) ListMembers(ctx context.Context, companyID int64) ([]Member, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT m.company_id, m.user_id, u.full_name, u.email, m.role, m.joined_at
		 FROM company_members m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.company_id = $1
		 ORDER BY m.joined_at DESC`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var members []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.CompanyID, &m.UserID, &m.FullName, &m.Email, &m.Role, &m.JoinedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// RemoveMember deletes the membership and frees its seat in one
// transaction.
func (r *PGRepository) RemoveMember(ctx context.Context, companyID, userID int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	tag, err := tx.Exec(ctx,
		`DELETE FROM company_members WHERE company_id = $1 AND user_id = $2`, companyID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	if _, err := tx.Exec(ctx,
		`UPDATE companies SET active_seats = GREATEST(active_seats - 1, 0) WHERE id = $1`, companyID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

var _ Repository = (*PGRepository)(nil)
