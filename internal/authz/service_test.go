package authz_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soliel-ai/soliel/internal/auth"
	"github.com/soliel-ai/soliel/internal/authz"
	"github.com/soliel-ai/soliel/internal/shared"
	_ "github.com/soliel-ai/soliel/testing"
)

type stubProfiles struct {
	profiles map[int64]authz.Role
	err      error
	reads    int64
	gate     chan struct{}
}

func (s *stubProfiles) GetProfile(ctx context.Context, userID int64) (*authz.Profile, error) {
	atomic.AddInt64(&s.reads, 1)
	if s.gate != nil {
		<-s.gate
	}
	if s.err != nil {
		return nil, s.err
	}
	role, ok := s.profiles[userID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &authz.Profile{UserID: userID, Role: role}, nil
}

func (s *stubProfiles) UpdateRole(ctx context.Context, userID int64, role authz.Role) error {
	if s.profiles == nil {
		s.profiles = make(map[int64]authz.Role)
	}
	s.profiles[userID] = role
	return nil
}

var _ authz.ProfileRepository = (*stubProfiles)(nil)

func TestAuthorizeFailsClosed(t *testing.T) {
	student := &auth.Principal{ID: 1, Email: "s@test.local"}
	dashboards := authz.NewRoleSet(authz.RoleStudent, authz.RoleSuperAdmin)

	cases := []struct {
		name      string
		repo      *stubProfiles
		principal *auth.Principal
		required  authz.RoleSet
		want      bool
	}{
		{
			name:      "nil principal denied",
			repo:      &stubProfiles{profiles: map[int64]authz.Role{1: authz.RoleStudent}},
			principal: nil,
			required:  dashboards,
			want:      false,
		},
		{
			name:      "missing profile denied",
			repo:      &stubProfiles{},
			principal: student,
			required:  dashboards,
			want:      false,
		},
		{
			name:      "store error denied",
			repo:      &stubProfiles{err: errors.New("connection refused")},
			principal: student,
			required:  dashboards,
			want:      false,
		},
		{
			name:      "role in set allowed",
			repo:      &stubProfiles{profiles: map[int64]authz.Role{1: authz.RoleStudent}},
			principal: student,
			required:  dashboards,
			want:      true,
		},
		{
			name:      "super admin override allowed",
			repo:      &stubProfiles{profiles: map[int64]authz.Role{1: authz.RoleSuperAdmin}},
			principal: student,
			required:  dashboards,
			want:      true,
		},
		{
			name:      "role outside set denied",
			repo:      &stubProfiles{profiles: map[int64]authz.Role{1: authz.RoleInstructor}},
			principal: student,
			required:  dashboards,
			want:      false,
		},
		{
			name:      "empty set denies everyone",
			repo:      &stubProfiles{profiles: map[int64]authz.Role{1: authz.RoleSuperAdmin}},
			principal: student,
			required:  authz.NewRoleSet(),
			want:      false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := authz.NewAuthorizer(tc.repo)
			got := a.Authorize(context.Background(), tc.principal, tc.required)
			assert.Equal(t, tc.want, got.Allowed())
		})
	}
}

func TestRoleOfErrors(t *testing.T) {
	a := authz.NewAuthorizer(&stubProfiles{})
	_, err := a.RoleOf(context.Background(), 1)
	assert.ErrorIs(t, err, shared.ErrForbidden)

	a = authz.NewAuthorizer(&stubProfiles{err: errors.New("connection refused")})
	_, err = a.RoleOf(context.Background(), 1)
	assert.ErrorIs(t, err, shared.ErrStoreUnavailable)
}

func TestRoleOfCollapsesConcurrentReads(t *testing.T) {
	repo := &stubProfiles{
		profiles: map[int64]authz.Role{1: authz.RoleStudent},
		gate:     make(chan struct{}),
	}
	a := authz.NewAuthorizer(repo)

	const callers = 8
	var wg sync.WaitGroup
	results := make(chan authz.Role, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			role, err := a.RoleOf(context.Background(), 1)
			if assert.NoError(t, err) {
				results <- role
			}
		}()
	}
	// Hold the first read open long enough for the other callers to
	// queue behind it, then release.
	for atomic.LoadInt64(&repo.reads) == 0 {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	close(repo.gate)
	wg.Wait()
	close(results)

	for role := range results {
		assert.Equal(t, authz.RoleStudent, role)
	}
	assert.Less(t, atomic.LoadInt64(&repo.reads), int64(callers), "concurrent lookups should collapse")
}

func TestHomePathByRole(t *testing.T) {
	assert.Equal(t, "/student-dashboard", authz.HomePath(authz.RoleStudent))
	assert.Equal(t, "/instructor-dashboard", authz.HomePath(authz.RoleInstructor))
	assert.Equal(t, "/company-dashboard", authz.HomePath(authz.RoleCompanyAdmin))
	assert.Equal(t, "/admin-dashboard", authz.HomePath(authz.RoleSuperAdmin))
	assert.Equal(t, "/student-dashboard", authz.HomePath(authz.Role("")))
}

func TestParseRole(t *testing.T) {
	role, err := authz.ParseRole("  Company_Admin ")
	require.NoError(t, err)
	assert.Equal(t, authz.RoleCompanyAdmin, role)

	_, err = authz.ParseRole("owner")
	assert.Error(t, err)
}
