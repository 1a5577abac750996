package courses

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/soliel-ai/soliel/internal/shared"
)

// ErrNotEnrolled indicates progress was reported for a course the user
// never joined.
var ErrNotEnrolled = errors.New("courses: not enrolled")

// ErrNotCompleted indicates a certificate was requested before the
// course was finished.
var ErrNotCompleted = errors.New("courses: course not completed")

// Service wraps enrollment business rules.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// Published lists courses open for enrollment.
func (s *Service) Published(ctx context.Context) ([]Course, error) {
	return s.repo.ListPublished(ctx)
}

// Course returns one course.
func (s *Service) Course(ctx context.Context, id int64) (*Course, error) {
	return s.repo.GetCourse(ctx, id)
}

// Enroll joins a student to a published course. Enrolling twice is a
// no-op, not an error.
func (s *Service) Enroll(ctx context.Context, userID, courseID int64) error {
	course, err := s.repo.GetCourse(ctx, courseID)
	if err != nil {
		return err
	}
	if !course.IsPublished || course.Status != StatusApproved {
		return shared.ErrNotFound
	}
	_, err = s.repo.Enroll(ctx, userID, courseID, s.now())
	return err
}

// ReportProgress records the student's position in the course, clamped
// to 0..100. Reaching 100 stamps completion once; progress never moves
// backwards.
func (s *Service) ReportProgress(ctx context.Context, userID, courseID, percent int64) (*Enrollment, error) {
	p := int(percent)
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	enrollment, err := s.repo.UpdateProgress(ctx, userID, courseID, p, s.now())
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, ErrNotEnrolled
		}
		return nil, err
	}
	return enrollment, nil
}

// StudentDashboard lists the student's enrollments with course data.
func (s *Service) StudentDashboard(ctx context.Context, userID int64) ([]EnrollmentWithCourse, error) {
	return s.repo.ListForStudent(ctx, userID)
}

// InstructorDashboard lists the instructor's own courses.
func (s *Service) InstructorDashboard(ctx context.Context, instructorID int64) ([]Course, error) {
	return s.repo.ListByInstructor(ctx, instructorID)
}

// CompletedEnrollment returns the enrollment only when the course is
// finished, for certificate rendering.
func (s *Service) CompletedEnrollment(ctx context.Context, userID, courseID int64) (*EnrollmentWithCourse, error) {
	enrollment, err := s.repo.GetEnrollment(ctx, userID, courseID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, ErrNotEnrolled
		}
		return nil, err
	}
	if !enrollment.Completed() {
		return nil, ErrNotCompleted
	}
	course, err := s.repo.GetCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("load course: %w", err)
	}
	return &EnrollmentWithCourse{Enrollment: *enrollment, Course: *course}, nil
}
