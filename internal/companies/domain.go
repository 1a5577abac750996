package companies

import "time"

// Company is an organization buying seats for its members.
type Company struct {
	ID          int64
	Name        string
	Email       string
	Plan        string
	SeatLimit   int
	ActiveSeats int
	AdminID     int64
	CreatedAt   time.Time
}

// SeatsLeft returns how many invitations or members the plan allows.
func (c *Company) SeatsLeft() int {
	left := c.SeatLimit - c.ActiveSeats
	if left < 0 {
		return 0
	}
	return left
}

// Member is a user belonging to a company.
type Member struct {
	CompanyID int64
	UserID    int64
	FullName  string
	Email     string
	Role      string
	JoinedAt  time.Time
}
