package authz

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/soliel-ai/soliel/internal/shared"
)

// ProfileRepository defines persistence for authorization profiles.
type ProfileRepository interface {
	GetProfile(ctx context.Context, userID int64) (*Profile, error)
	UpdateRole(ctx context.Context, userID int64, role Role) error
}

// PGProfileRepository implements ProfileRepository using PostgreSQL.
type PGProfileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository constructs a PostgreSQL repository.
func NewProfileRepository(pool *pgxpool.Pool) *PGProfileRepository {
	return &PGProfileRepository{pool: pool}
}

// GetProfile loads the single profile row for a user.
func (r *PGProfileRepository) GetProfile(ctx context.Context, userID int64) (*Profile, error) {
	var p Profile
	var rawRole string
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, role, created_at, updated_at FROM profiles WHERE user_id = $1`, userID).
		Scan(&p.UserID, &rawRole, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	role, err := ParseRole(rawRole)
	if err != nil {
		return nil, err
	}
	p.Role = role
	return &p, nil
}

// UpdateRole changes a user's role. Only administrative flows call this;
// the authorizer itself never writes.
func (r *PGProfileRepository) UpdateRole(ctx context.Context, userID int64, role Role) error {
	if !role.Valid() {
		return errors.New("authz: invalid role")
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE profiles SET role = $2, updated_at = now() WHERE user_id = $1`, userID, string(role))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ ProfileRepository = (*PGProfileRepository)(nil)
