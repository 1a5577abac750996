package auth_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soliel-ai/soliel/internal/auth"
	"github.com/soliel-ai/soliel/internal/shared"
)

// flakyRepo simulates an unreachable identity store.
type flakyRepo struct {
	stubRepo
	sessionErr error
	userErr    error
}

func (f *flakyRepo) GetActiveSession(ctx context.Context, id string) (*auth.Session, error) {
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	return f.stubRepo.GetActiveSession(ctx, id)
}

func (f *flakyRepo) GetUser(ctx context.Context, id int64) (*auth.User, error) {
	if f.userErr != nil {
		return nil, f.userErr
	}
	return f.stubRepo.GetUser(ctx, id)
}

func sessionRequest(t *testing.T, userValue string) (*http.Request, *shared.Session) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	manager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)

	req := httptest.NewRequest(http.MethodGet, "/student-dashboard", nil)
	sess, err := manager.Load(req.Context(), req)
	require.NoError(t, err)
	if userValue != "" {
		sess.SetUser(userValue)
	}
	return req.WithContext(shared.ContextWithSession(req.Context(), sess)), sess
}

func TestResolveAnonymous(t *testing.T) {
	resolver := auth.NewResolver(&stubRepo{})

	req, _ := sessionRequest(t, "")
	principal, err := resolver.Resolve(req.Context(), req)
	require.NoError(t, err)
	assert.Nil(t, principal)

	// No session in context at all.
	bare := httptest.NewRequest(http.MethodGet, "/", nil)
	principal, err = resolver.Resolve(bare.Context(), bare)
	require.NoError(t, err)
	assert.Nil(t, principal)
}

func TestResolveCorruptSessionValue(t *testing.T) {
	resolver := auth.NewResolver(&stubRepo{})

	req, _ := sessionRequest(t, "not-a-number")
	principal, err := resolver.Resolve(req.Context(), req)
	require.NoError(t, err)
	assert.Nil(t, principal)
}

func TestResolveUnknownSessionRow(t *testing.T) {
	resolver := auth.NewResolver(&stubRepo{})

	req, _ := sessionRequest(t, "7")
	principal, err := resolver.Resolve(req.Context(), req)
	require.NoError(t, err)
	assert.Nil(t, principal, "cookie without a matching session row is anonymous")
}

func TestResolveSessionUserMismatch(t *testing.T) {
	repo := &stubRepo{}
	req, sess := sessionRequest(t, "7")
	require.NoError(t, repo.CreateSession(context.Background(), sess.ID, 99, time.Now().Add(time.Hour), "", ""))

	resolver := auth.NewResolver(repo)
	principal, err := resolver.Resolve(req.Context(), req)
	require.NoError(t, err)
	assert.Nil(t, principal, "cookie claim and session row disagree")
}

func TestResolveInactiveUser(t *testing.T) {
	repo := &stubRepo{user: &auth.User{ID: 7, Email: "u@test.local", IsActive: false}}
	req, sess := sessionRequest(t, "7")
	require.NoError(t, repo.CreateSession(context.Background(), sess.ID, 7, time.Now().Add(time.Hour), "", ""))

	resolver := auth.NewResolver(repo)
	principal, err := resolver.Resolve(req.Context(), req)
	require.NoError(t, err)
	assert.Nil(t, principal, "deactivated accounts resolve as anonymous")
}

func TestResolveStoreFailure(t *testing.T) {
	repo := &flakyRepo{sessionErr: errors.New("connection refused")}
	req, _ := sessionRequest(t, "7")

	resolver := auth.NewResolver(repo)
	_, err := resolver.Resolve(req.Context(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrStoreUnavailable)
}

func TestResolveActiveUser(t *testing.T) {
	expires := time.Now().Add(time.Hour).Truncate(time.Second)
	repo := &stubRepo{user: &auth.User{ID: 7, Email: "u@test.local", IsActive: true}}
	req, sess := sessionRequest(t, "7")
	require.NoError(t, repo.CreateSession(context.Background(), sess.ID, 7, expires, "", ""))

	resolver := auth.NewResolver(repo)
	principal, err := resolver.Resolve(req.Context(), req)
	require.NoError(t, err)
	require.NotNil(t, principal)
	assert.Equal(t, int64(7), principal.ID)
	assert.Equal(t, "u@test.local", principal.Email)
	assert.Equal(t, sess.ID, principal.SessionID)
	assert.Equal(t, expires, principal.ExpiresAt)
}
