package users

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/soliel-ai/soliel/internal/shared"
)

// Repository defines data access for the administration pages.
type Repository interface {
	List(ctx context.Context, p shared.Pagination) ([]AccountWithRole, error)
	Count(ctx context.Context) (int64, error)
	CountByRole(ctx context.Context) ([]RoleTally, error)
	SetActive(ctx context.Context, userID int64, active bool) error
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository builds PGRepository instance.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

var _ Repository = (*PGRepository)(nil)

func (r *PGRepository) List(ctx context.Context, p shared.Pagination) ([]AccountWithRole, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT u.id, u.email, u.full_name, p.role, u.is_active, u.created_at
		FROM users u
		JOIN profiles p ON p.user_id = u.id
		ORDER BY u.created_at DESC, u.id DESC
		LIMIT $1 OFFSET $2`, p.PerPage, p.Offset())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []AccountWithRole
	for rows.Next() {
		var a AccountWithRole
		if err := rows.Scan(&a.ID, &a.Email, &a.FullName, &a.Role, &a.IsActive, &a.CreatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *PGRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

func (r *PGRepository) CountByRole(ctx context.Context) ([]RoleTally, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT role, COUNT(*) FROM profiles GROUP BY role ORDER BY role`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tallies []RoleTally
	for rows.Next() {
		var t RoleTally
		if err := rows.Scan(&t.Role, &t.Count); err != nil {
			return nil, err
		}
		tallies = append(tallies, t)
	}
	return tallies, rows.Err()
}

func (r *PGRepository) SetActive(ctx context.Context, userID int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET is_active = $2 WHERE id = $1`, userID, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
