package companies_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soliel-ai/soliel/internal/companies"
	"github.com/soliel-ai/soliel/internal/shared"
	_ "github.com/soliel-ai/soliel/testing"
)

type memCompanies struct {
	companies map[int64]*companies.Company
	members   map[int64][]companies.Member
	nextID    int64
}

func newMemCompanies(cs ...companies.Company) *memCompanies {
	m := &memCompanies{
		companies: make(map[int64]*companies.Company),
		members:   make(map[int64][]companies.Member),
	}
	for i := range cs {
		c := cs[i]
		m.companies[c.ID] = &c
		if c.ID > m.nextID {
			m.nextID = c.ID
		}
	}
	return m
}

func (m *memCompanies) GetByID(ctx context.Context, id int64) (*companies.Company, error) {
	c, ok := m.companies[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memCompanies) GetByAdmin(ctx context.Context, adminID int64) (*companies.Company, error) {
	for _, c := range m.companies {
		if c.AdminID == adminID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *memCompanies) Create(ctx context.Context, name, email, plan string, seatLimit int, adminID int64) (*companies.Company, error) {
	for _, c := range m.companies {
		if c.Name == name || c.Email == email {
			return nil, companies.ErrAlreadyExists
		}
	}
	m.nextID++
	c := &companies.Company{ID: m.nextID, Name: name, Email: email, Plan: plan, SeatLimit: seatLimit, AdminID: adminID}
	m.companies[c.ID] = c
	cp := *c
	return &cp, nil
}

func (m *memCompanies) ListAll(ctx context.Context) ([]companies.Company, error) {
	var out []companies.Company
	for _, c := range m.companies {
		out = append(out, *c)
	}
	return out, nil
}

func (m *memCompanies) ListMembers(ctx context.Context, companyID int64) ([]companies.Member, error) {
	return m.members[companyID], nil
}

func (m *memCompanies) RemoveMember(ctx context.Context, companyID, userID int64) error {
	kept := m.members[companyID][:0]
	found := false
	for _, member := range m.members[companyID] {
		if member.UserID == userID {
			found = true
			continue
		}
		kept = append(kept, member)
	}
	if !found {
		return shared.ErrNotFound
	}
	m.members[companyID] = kept
	m.companies[companyID].ActiveSeats--
	return nil
}

var _ companies.Repository = (*memCompanies)(nil)

func TestSeatsLeftNeverNegative(t *testing.T) {
	c := companies.Company{SeatLimit: 5, ActiveSeats: 7}
	assert.Equal(t, 0, c.SeatsLeft())

	c = companies.Company{SeatLimit: 5, ActiveSeats: 3}
	assert.Equal(t, 2, c.SeatsLeft())
}

func TestSeatAvailable(t *testing.T) {
	repo := newMemCompanies(
		companies.Company{ID: 1, Name: "Open", SeatLimit: 5, ActiveSeats: 4},
		companies.Company{ID: 2, Name: "Full", SeatLimit: 5, ActiveSeats: 5},
	)
	svc := companies.NewService(repo, nil, nil)

	ok, err := svc.SeatAvailable(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.SeatAvailable(context.Background(), 2)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.SeatAvailable(context.Background(), 99)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCreateAppliesDefaults(t *testing.T) {
	repo := newMemCompanies()
	svc := companies.NewService(repo, nil, nil)

	c, err := svc.Create(context.Background(), "  Acme Learning ", "billing@acme.test", "", 0, 1)
	require.NoError(t, err)
	assert.Equal(t, "Acme Learning", c.Name)
	assert.Equal(t, "basic", c.Plan)
	assert.Equal(t, 10, c.SeatLimit)

	_, err = svc.Create(context.Background(), "", "x@acme.test", "basic", 5, 1)
	assert.Error(t, err)

	_, err = svc.Create(context.Background(), "Acme Learning", "other@acme.test", "basic", 5, 1)
	assert.ErrorIs(t, err, companies.ErrAlreadyExists)
}

func TestRemoveMemberFreesSeat(t *testing.T) {
	repo := newMemCompanies(companies.Company{ID: 1, Name: "Acme", SeatLimit: 5, ActiveSeats: 2})
	repo.members[1] = []companies.Member{
		{CompanyID: 1, UserID: 10, Email: "a@acme.test"},
		{CompanyID: 1, UserID: 11, Email: "b@acme.test"},
	}
	svc := companies.NewService(repo, nil, nil)

	require.NoError(t, svc.RemoveMember(context.Background(), 1, 10, 1))
	members, err := svc.Members(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, int64(11), members[0].UserID)

	err = svc.RemoveMember(context.Background(), 1, 10, 1)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
