package users

import "time"

// AccountWithRole joins a user account with its profile role for the
// administration listing.
type AccountWithRole struct {
	ID        int64
	Email     string
	FullName  string
	Role      string
	IsActive  bool
	CreatedAt time.Time
}

// RoleTally counts accounts per profile role.
type RoleTally struct {
	Role  string
	Count int64
}
