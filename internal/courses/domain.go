package courses

import "time"

// CourseStatus tracks a course through review.
type CourseStatus string

const (
	StatusDraft    CourseStatus = "draft"
	StatusPending  CourseStatus = "pending"
	StatusApproved CourseStatus = "approved"
	StatusRejected CourseStatus = "rejected"
	StatusArchived CourseStatus = "archived"
)

// Valid reports whether the status is a known value.
func (s CourseStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusApproved, StatusRejected, StatusArchived:
		return true
	}
	return false
}

// Course is a published or in-review learning unit.
type Course struct {
	ID           int64
	Title        string
	Description  string
	PriceCents   int64
	Currency     string
	Status       CourseStatus
	InstructorID int64
	IsPublished  bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Enrollment tracks a student's progress through a course.
type Enrollment struct {
	UserID          int64
	CourseID        int64
	ProgressPercent int
	EnrolledAt      time.Time
	CompletedAt     *time.Time
}

// Completed reports whether the student finished the course.
func (e *Enrollment) Completed() bool {
	return e.CompletedAt != nil
}

// EnrollmentWithCourse joins an enrollment with its course for
// dashboard listings.
type EnrollmentWithCourse struct {
	Enrollment
	Course Course
}
