package authz

import (
	"context"
	"errors"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/soliel-ai/soliel/internal/auth"
	"github.com/soliel-ai/soliel/internal/shared"
)

// Authorizer decides whether a principal holds one of a route's
// required roles. It is read-only and fails closed: nil principals,
// missing profiles and store errors all deny.
type Authorizer struct {
	repo ProfileRepository
	sf   singleflight.Group
}

// NewAuthorizer constructs an Authorizer.
func NewAuthorizer(repo ProfileRepository) *Authorizer {
	return &Authorizer{repo: repo}
}

// Authorize evaluates the required role set against the principal's
// profile. The decision is Deny unless the profile loads cleanly and
// its role is a member of the set.
func (a *Authorizer) Authorize(ctx context.Context, principal *auth.Principal, required RoleSet) Decision {
	if principal == nil || len(required) == 0 {
		return Deny
	}
	role, err := a.RoleOf(ctx, principal.ID)
	if err != nil {
		return Deny
	}
	if required.Contains(role) {
		return Allow
	}
	return Deny
}

// RoleOf loads the authoritative role for a user. Concurrent lookups
// for the same user are collapsed into a single profile read; nothing
// is cached across requests.
func (a *Authorizer) RoleOf(ctx context.Context, userID int64) (Role, error) {
	v, err, _ := a.sf.Do(strconv.FormatInt(userID, 10), func() (any, error) {
		profile, err := a.repo.GetProfile(ctx, userID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil, shared.ErrForbidden
			}
			return nil, shared.ErrStoreUnavailable
		}
		return profile.Role, nil
	})
	if err != nil {
		return "", err
	}
	return v.(Role), nil
}

// HomePath returns the dashboard a user of the given role lands on.
func HomePath(role Role) string {
	switch role {
	case RoleInstructor:
		return "/instructor-dashboard"
	case RoleCompanyAdmin:
		return "/company-dashboard"
	case RoleSuperAdmin:
		return "/admin-dashboard"
	default:
		return "/student-dashboard"
	}
}
