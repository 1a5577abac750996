package authz

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Role is the closed set of permission levels. Values are stored as
// text in the profiles table but never handled as free-form strings in
// code.
type Role string

const (
	RoleStudent      Role = "student"
	RoleInstructor   Role = "instructor"
	RoleCompanyAdmin Role = "company_admin"
	RoleSuperAdmin   Role = "super_admin"
)

// AllRoles lists the closed set in display order.
var AllRoles = []Role{RoleStudent, RoleInstructor, RoleCompanyAdmin, RoleSuperAdmin}

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleInstructor, RoleCompanyAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// ParseRole converts stored text into a Role, rejecting unknown values.
func ParseRole(s string) (Role, error) {
	role := Role(strings.TrimSpace(strings.ToLower(s)))
	if !role.Valid() {
		return "", fmt.Errorf("authz: unknown role %q", s)
	}
	return role, nil
}

// RoleSet is a route's capability requirement: the roles permitted in.
type RoleSet map[Role]struct{}

// NewRoleSet builds a RoleSet from the given roles. Invalid roles are
// dropped; an empty set denies everyone.
func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		if r.Valid() {
			set[r] = struct{}{}
		}
	}
	return set
}

// Contains reports whether the role is in the set.
func (s RoleSet) Contains(r Role) bool {
	_, ok := s[r]
	return ok
}

// String renders the set in stable order, for logs.
func (s RoleSet) String() string {
	names := make([]string, 0, len(s))
	for r := range s {
		names = append(names, string(r))
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

// Decision is the outcome of an authorization check.
type Decision int

const (
	// Deny is the zero value; every failure path falls back to it.
	Deny Decision = iota
	Allow
)

// Allowed reports whether the decision grants access.
func (d Decision) Allowed() bool {
	return d == Allow
}

// Profile is the authorization record for a principal. Exactly one row
// exists per user; the role changes only through administrative flows.
type Profile struct {
	UserID    int64
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}
