package courses_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soliel-ai/soliel/internal/courses"
	"github.com/soliel-ai/soliel/internal/shared"
	_ "github.com/soliel-ai/soliel/testing"
)

type memCourses struct {
	courses     map[int64]*courses.Course
	enrollments map[string]*courses.Enrollment
}

func newMemCourses(cs ...courses.Course) *memCourses {
	m := &memCourses{
		courses:     make(map[int64]*courses.Course),
		enrollments: make(map[string]*courses.Enrollment),
	}
	for i := range cs {
		c := cs[i]
		m.courses[c.ID] = &c
	}
	return m
}

func enrollKey(userID, courseID int64) string {
	return fmt.Sprintf("%d:%d", userID, courseID)
}

func (m *memCourses) GetCourse(ctx context.Context, id int64) (*courses.Course, error) {
	c, ok := m.courses[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memCourses) ListPublished(ctx context.Context) ([]courses.Course, error) {
	var out []courses.Course
	for _, c := range m.courses {
		if c.IsPublished && c.Status == courses.StatusApproved {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memCourses) ListByInstructor(ctx context.Context, instructorID int64) ([]courses.Course, error) {
	var out []courses.Course
	for _, c := range m.courses {
		if c.InstructorID == instructorID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memCourses) Enroll(ctx context.Context, userID, courseID int64, now time.Time) (bool, error) {
	key := enrollKey(userID, courseID)
	if _, ok := m.enrollments[key]; ok {
		return false, nil
	}
	m.enrollments[key] = &courses.Enrollment{UserID: userID, CourseID: courseID, EnrolledAt: now}
	return true, nil
}

func (m *memCourses) GetEnrollment(ctx context.Context, userID, courseID int64) (*courses.Enrollment, error) {
	e, ok := m.enrollments[enrollKey(userID, courseID)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *memCourses) UpdateProgress(ctx context.Context, userID, courseID int64, percent int, now time.Time) (*courses.Enrollment, error) {
	e, ok := m.enrollments[enrollKey(userID, courseID)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	if percent > e.ProgressPercent {
		e.ProgressPercent = percent
	}
	if e.ProgressPercent >= 100 && e.CompletedAt == nil {
		at := now
		e.CompletedAt = &at
	}
	cp := *e
	return &cp, nil
}

func (m *memCourses) ListForStudent(ctx context.Context, userID int64) ([]courses.EnrollmentWithCourse, error) {
	var out []courses.EnrollmentWithCourse
	for _, e := range m.enrollments {
		if e.UserID != userID {
			continue
		}
		c := m.courses[e.CourseID]
		out = append(out, courses.EnrollmentWithCourse{Enrollment: *e, Course: *c})
	}
	return out, nil
}

var _ courses.Repository = (*memCourses)(nil)

func published(id int64) courses.Course {
	return courses.Course{
		ID:          id,
		Title:       "Intro to Distributed Systems",
		PriceCents:  4900,
		Currency:    "USD",
		Status:      courses.StatusApproved,
		IsPublished: true,
	}
}

func TestEnrollOnlyPublishedCourses(t *testing.T) {
	pending := courses.Course{ID: 2, Title: "Draft course", Status: courses.StatusPending}
	repo := newMemCourses(published(1), pending)
	svc := courses.NewService(repo)

	require.NoError(t, svc.Enroll(context.Background(), 42, 1))
	assert.Contains(t, repo.enrollments, enrollKey(42, 1))

	err := svc.Enroll(context.Background(), 42, 2)
	assert.ErrorIs(t, err, shared.ErrNotFound, "unapproved courses look absent to students")

	err = svc.Enroll(context.Background(), 42, 99)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestEnrollTwiceIsNoOp(t *testing.T) {
	repo := newMemCourses(published(1))
	svc := courses.NewService(repo)

	require.NoError(t, svc.Enroll(context.Background(), 42, 1))
	first := *repo.enrollments[enrollKey(42, 1)]

	require.NoError(t, svc.Enroll(context.Background(), 42, 1))
	assert.Equal(t, first, *repo.enrollments[enrollKey(42, 1)])
}

func TestReportProgressClampsAndCompletes(t *testing.T) {
	repo := newMemCourses(published(1))
	svc := courses.NewService(repo)
	require.NoError(t, svc.Enroll(context.Background(), 42, 1))

	e, err := svc.ReportProgress(context.Background(), 42, 1, -10)
	require.NoError(t, err)
	assert.Equal(t, 0, e.ProgressPercent)

	e, err = svc.ReportProgress(context.Background(), 42, 1, 60)
	require.NoError(t, err)
	assert.Equal(t, 60, e.ProgressPercent)
	assert.Nil(t, e.CompletedAt)

	// Progress never moves backwards.
	e, err = svc.ReportProgress(context.Background(), 42, 1, 30)
	require.NoError(t, err)
	assert.Equal(t, 60, e.ProgressPercent)

	e, err = svc.ReportProgress(context.Background(), 42, 1, 250)
	require.NoError(t, err)
	assert.Equal(t, 100, e.ProgressPercent)
	require.NotNil(t, e.CompletedAt)
	stamped := *e.CompletedAt

	// Completion is stamped once.
	e, err = svc.ReportProgress(context.Background(), 42, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, stamped, *e.CompletedAt)
}

func TestReportProgressRequiresEnrollment(t *testing.T) {
	svc := courses.NewService(newMemCourses(published(1)))

	_, err := svc.ReportProgress(context.Background(), 42, 1, 50)
	assert.ErrorIs(t, err, courses.ErrNotEnrolled)
}

func TestCompletedEnrollment(t *testing.T) {
	repo := newMemCourses(published(1))
	svc := courses.NewService(repo)

	_, err := svc.CompletedEnrollment(context.Background(), 42, 1)
	assert.ErrorIs(t, err, courses.ErrNotEnrolled)

	require.NoError(t, svc.Enroll(context.Background(), 42, 1))
	_, err = svc.CompletedEnrollment(context.Background(), 42, 1)
	assert.ErrorIs(t, err, courses.ErrNotCompleted)

	_, err = svc.ReportProgress(context.Background(), 42, 1, 100)
	require.NoError(t, err)

	ec, err := svc.CompletedEnrollment(context.Background(), 42, 1)
	require.NoError(t, err)
	assert.Equal(t, "Intro to Distributed Systems", ec.Course.Title)
	assert.True(t, ec.Completed())
}
