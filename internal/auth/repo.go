package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/soliel-ai/soliel/internal/shared"
)

// Repository defines persistence operations for the identity store.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	GetUser(ctx context.Context, id int64) (*User, error)
	CreateUser(ctx context.Context, email, fullName, passwordHash string) (*User, error)
	CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error
	GetActiveSession(ctx context.Context, id string) (*Session, error)
	RevokeSession(ctx context.Context, id string) error
	ConsumeOneTimeToken(ctx context.Context, tokenType OneTimeTokenType, tokenHash string) (int64, error)
	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `id, email, full_name, password_hash, is_active, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// FindByEmail fetches a user by email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, strings.TrimSpace(email))
	return scanUser(row)
}

// GetUser fetches a user by ID.
func (r *PGRepository) GetUser(ctx context.Context, id int64) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// CreateUser inserts the user together with its student profile. The two
// writes share a transaction so a user can never exist without a profile.
func (r *PGRepository) CreateUser(ctx context.Context, email, fullName, passwordHash string) (*User, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx,
		`INSERT INTO users (email, full_name, password_hash, is_active)
		 VALUES (lower($1), $2, $3, TRUE)
		 RETURNING `+userColumns,
		strings.TrimSpace(email), strings.TrimSpace(fullName), passwordHash)
	user, err := scanUser(row)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO profiles (user_id, role) VALUES ($1, 'student')`, user.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return user, nil
}

// CreateSession persists a new login session for revocation and auditing.
func (r *PGRepository) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO auth_sessions (id, user_id, created_at, expires_at, ip, ua)
		 VALUES ($1, $2, now(), $3, NULLIF($4, ''), NULLIF($5, ''))`,
		id, userID, expiresAt.UTC(), ip, ua)
	return err
}

// GetActiveSession returns the session when it is neither revoked nor
// expired; shared.ErrNotFound otherwise.
func (r *PGRepository) GetActiveSession(ctx context.Context, id string) (*Session, error) {
	var s Session
	var ip, ua *string
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, created_at, expires_at, revoked_at, ip, ua
		 FROM auth_sessions
		 WHERE id = $1 AND revoked_at IS NULL AND expires_at > now()`, id).
		Scan(&s.ID, &s.UserID, &s.CreatedAt, &s.ExpiresAt, &s.RevokedAt, &ip, &ua)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	if ip != nil {
		s.IP = *ip
	}
	if ua != nil {
		s.UA = *ua
	}
	return &s, nil
}

// RevokeSession marks a session unusable. Revocation is idempotent.
func (r *PGRepository) RevokeSession(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE auth_sessions SET revoked_at = now() WHERE id = $1 AND revoked_at IS NULL`, id)
	return err
}

// ConsumeOneTimeToken redeems a single-use token and returns the owning
// user ID. The update is conditioned on the token being unconsumed and
// unexpired so two racing confirms cannot both succeed.
func (r *PGRepository) ConsumeOneTimeToken(ctx context.Context, tokenType OneTimeTokenType, tokenHash string) (int64, error) {
	var userID int64
	err := r.pool.QueryRow(ctx,
		`UPDATE one_time_tokens
		 SET consumed_at = now()
		 WHERE token_hash = $1 AND token_type = $2 AND consumed_at IS NULL AND expires_at > now()
		 RETURNING user_id`,
		tokenHash, string(tokenType)).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, shared.ErrNotFound
		}
		return 0, err
	}
	return userID, nil
}

// UpdatePassword replaces the stored password hash.
func (r *PGRepository) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, userID, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
