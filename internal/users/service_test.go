package users_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soliel-ai/soliel/internal/authz"
	"github.com/soliel-ai/soliel/internal/shared"
	"github.com/soliel-ai/soliel/internal/users"
	_ "github.com/soliel-ai/soliel/testing"
)

type memAccounts struct {
	accounts []users.AccountWithRole
	active   map[int64]bool
}

func (m *memAccounts) List(ctx context.Context, p shared.Pagination) ([]users.AccountWithRole, error) {
	start := p.Offset()
	if start >= len(m.accounts) {
		return nil, nil
	}
	end := start + p.PerPage
	if end > len(m.accounts) {
		end = len(m.accounts)
	}
	return m.accounts[start:end], nil
}

func (m *memAccounts) Count(ctx context.Context) (int64, error) {
	return int64(len(m.accounts)), nil
}

func (m *memAccounts) CountByRole(ctx context.Context) ([]users.RoleTally, error) {
	tally := make(map[string]int64)
	for _, a := range m.accounts {
		tally[a.Role]++
	}
	out := make([]users.RoleTally, 0, len(tally))
	for role, n := range tally {
		out = append(out, users.RoleTally{Role: role, Count: n})
	}
	return out, nil
}

func (m *memAccounts) SetActive(ctx context.Context, userID int64, active bool) error {
	for _, a := range m.accounts {
		if a.ID == userID {
			if m.active == nil {
				m.active = make(map[int64]bool)
			}
			m.active[userID] = active
			return nil
		}
	}
	return shared.ErrNotFound
}

var _ users.Repository = (*memAccounts)(nil)

type memProfiles struct {
	roles map[int64]authz.Role
}

func (m *memProfiles) GetProfile(ctx context.Context, userID int64) (*authz.Profile, error) {
	role, ok := m.roles[userID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &authz.Profile{UserID: userID, Role: role}, nil
}

func (m *memProfiles) UpdateRole(ctx context.Context, userID int64, role authz.Role) error {
	if m.roles == nil {
		m.roles = make(map[int64]authz.Role)
	}
	m.roles[userID] = role
	return nil
}

var _ authz.ProfileRepository = (*memProfiles)(nil)

func newUsersService(repo users.Repository, profiles authz.ProfileRepository) *users.Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return users.NewService(logger, repo, profiles, nil)
}

func someAccounts(n int) []users.AccountWithRole {
	out := make([]users.AccountWithRole, n)
	for i := range out {
		out[i] = users.AccountWithRole{ID: int64(i + 1), Role: string(authz.RoleStudent), IsActive: true}
	}
	return out
}

func TestListPaginates(t *testing.T) {
	repo := &memAccounts{accounts: someAccounts(60)}
	svc := newUsersService(repo, &memProfiles{})

	listing, err := svc.List(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, listing.Accounts, 25)
	assert.Equal(t, 60, listing.Pagination.Total)
	assert.Equal(t, 3, listing.Pagination.TotalPages)

	listing, err = svc.List(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, listing.Accounts, 10)
	assert.Equal(t, int64(51), listing.Accounts[0].ID)
}

func TestChangeRoleValidatesInput(t *testing.T) {
	profiles := &memProfiles{}
	svc := newUsersService(&memAccounts{}, profiles)

	err := svc.ChangeRole(context.Background(), 1, 42, "owner")
	assert.Error(t, err)
	assert.Empty(t, profiles.roles)

	require.NoError(t, svc.ChangeRole(context.Background(), 1, 42, "instructor"))
	assert.Equal(t, authz.RoleInstructor, profiles.roles[42])
}

func TestSetActive(t *testing.T) {
	repo := &memAccounts{accounts: someAccounts(1)}
	svc := newUsersService(repo, &memProfiles{})

	require.NoError(t, svc.SetActive(context.Background(), 1, 1, false))
	assert.False(t, repo.active[1])

	err := svc.SetActive(context.Background(), 1, 99, false)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
