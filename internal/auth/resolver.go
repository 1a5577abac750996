package auth

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/soliel-ai/soliel/internal/shared"
)

// Resolver turns request credentials into a Principal.
//
// The session cookie only names a server-side session; every call
// re-validates that session and its user against the identity store.
// A locally cached claim is never enough to mint a principal.
type Resolver struct {
	repo Repository
}

// NewResolver constructs a Resolver.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve returns the authenticated principal for the request, or
// (nil, nil) when the request is anonymous. Errors are only returned
// for store failures; callers must treat them as a denial.
func (rs *Resolver) Resolve(ctx context.Context, r *http.Request) (*Principal, error) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.User() == "" {
		return nil, nil
	}

	claimed, err := strconv.ParseInt(sess.User(), 10, 64)
	if err != nil {
		// Corrupt session value; treat as anonymous rather than erroring.
		return nil, nil
	}

	record, err := rs.repo.GetActiveSession(ctx, sess.ID)
	if err != nil {
		if err == shared.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve session: %w", shared.ErrStoreUnavailable)
	}
	if record.UserID != claimed {
		// The cookie session and the identity store disagree; fail closed.
		return nil, nil
	}

	user, err := rs.repo.GetUser(ctx, record.UserID)
	if err != nil {
		if err == shared.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve user: %w", shared.ErrStoreUnavailable)
	}
	if !user.IsActive {
		return nil, nil
	}

	return &Principal{
		ID:        user.ID,
		Email:     user.Email,
		SessionID: record.ID,
		ExpiresAt: record.ExpiresAt,
	}, nil
}
