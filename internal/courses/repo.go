package courses

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/soliel-ai/soliel/internal/shared"
)

// Repository defines persistence operations for courses and
// enrollments.
type Repository interface {
	GetCourse(ctx context.Context, id int64) (*Course, error)
	ListPublished(ctx context.Context) ([]Course, error)
	ListByInstructor(ctx context.Context, instructorID int64) ([]Course, error)
	Enroll(ctx context.Context, userID, courseID int64, now time.Time) (bool, error)
	GetEnrollment(ctx context.Context, userID, courseID int64) (*Enrollment, error)
	UpdateProgress(ctx context.Context, userID, courseID int64, percent int, now time.Time) (*Enrollment, error)
	ListForStudent(ctx context.Context, userID int64) ([]EnrollmentWithCourse, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const courseColumns = `id, title, description, price_cents, currency, status, instructor_id, is_published, created_at, updated_at`

func scanCourse(row pgx.Row) (*Course, error) {
	var c Course
	var status string
	err := row.Scan(&c.ID, &c.Title, &c.Description, &c.PriceCents, &c.Currency,
		&status, &c.InstructorID, &c.IsPublished, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	c.Status = CourseStatus(status)
	return &c, nil
}

// GetCourse fetches one course.
func (r *PGRepository) GetCourse(ctx context.Context, id int64) (*Course, error) {
	return scanCourse(r.pool.QueryRow(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE id = $1`, id))
}

// ListPublished returns approved, published courses.
func (r *PGRepository) ListPublished(ctx context.Context) ([]Course, error) {
	return r.list(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE is_published AND status = 'approved' ORDER BY created_at DESC`)
}

// ListByInstructor returns an instructor's courses, all statuses.
func (r *PGRepository) ListByInstructor(ctx context.Context, instructorID int64) ([]Course, error) {
	return r.list(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE instructor_id = $1 ORDER BY created_at DESC`, instructorID)
}

func (r *PGRepository) list(ctx context.Context, query string, args ...any) ([]Course, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Enroll inserts an enrollment; re-enrolling is a no-op. Returns true
// when a new row was created.
func (r *PGRepository) Enroll(ctx context.Context, userID, courseID int64, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO enrollments (user_id, course_id, progress_percent, enrolled_at)
		 VALUES ($1, $2, 0, $3)
		 ON CONFLICT (user_id, course_id) DO NOTHING`,
		userID, courseID, now.UTC())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// GetEnrollment fetches one enrollment.
func (r *PGRepository) GetEnrollment(ctx context.Context, userID, courseID int64) (*Enrollment, error) {
	var e Enrollment
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, course_id, progress_percent, enrolled_at, completed_at
		 FROM enrollments WHERE user_id = $1 AND course_id = $2`, userID, courseID).
		Scan(&e.UserID, &e.CourseID, &e.ProgressPercent, &e.EnrolledAt, &e.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

// UpdateProgress stores the new percentage. Progress never moves
// backwards and completion is stamped exactly once, at 100.
func (r *PGRepository) UpdateProgress(ctx context.Context, userID, courseID int64, percent int, now time.Time) (*Enrollment, error) {
	var e Enrollment
	err := r.pool.QueryRow(ctx,
		`UPDATE enrollments
		 SET progress_percent = GREATEST(progress_percent, $3),
		     completed_at = CASE WHEN $3 >= 100 THEN COALESCE(completed_at, $4) ELSE completed_at END
		 WHERE user_id = $1 AND course_id = $2
		 RETURNING user_id, course_id, progress_percent, enrolled_at, completed_at`,
		userID, courseID, percent, now.UTC()).
		Scan(&e.UserID, &e.CourseID, &e.ProgressPercent, &e.EnrolledAt, &e.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

// ListForStudent joins enrollments with their courses.
func (r *PGRepository) ListForStudent(ctx context.Context, userID int64) ([]EnrollmentWithCourse, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT e.user_id, e.course_id, e.progress_percent, e.enrolled_at, e.completed_at,
		        c.id, c.title, c.description, c.price_cents, c.currency, c.status, c.instructor_id, c.is_published, c.created_at, c.updated_at
		 FROM enrollments e
		 JOIN courses c ON c.id = e.course_id
		 WHERE e.user_id = $1
		 ORDER BY e.enrolled_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []EnrollmentWithCourse
	for rows.Next() {
		var ec EnrollmentWithCourse
		var status string
		err := rows.Scan(&ec.UserID, &ec.CourseID, &ec.ProgressPercent, &ec.EnrolledAt, &ec.CompletedAt,
			&ec.Course.ID, &ec.Course.Title, &ec.Course.Description, &ec.Course.PriceCents, &ec.Course.Currency,
			&status, &ec.Course.InstructorID, &ec.Course.IsPublished, &ec.Course.CreatedAt, &ec.Course.UpdatedAt)
		if err != nil {
			return nil, err
		}
		ec.Course.Status = CourseStatus(status)
		out = append(out, ec)
	}
	return out, rows.Err()
}

var _ Repository = (*PGRepository)(nil)
