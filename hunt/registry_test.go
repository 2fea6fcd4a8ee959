package hunt

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(p *MockPlatform) *Registry {
	return NewRegistry(p, testGuild, []string{testRole}, fastRetry, testLogger())
}

func TestRegistry_LoadFiltersAndFlags(t *testing.T) {
	members := testMembers(3)
	members = append(members,
		Candidate{ID: "X1", Username: "outsider", RoleIDs: []string{"everyone"}},
		Candidate{ID: "X2", Username: "mod", DisplayName: "Moderator", RoleIDs: []string{"other", testRole}},
	)
	p := NewMockPlatform(members, []string{testRole}, testLeak)
	reg := newTestRegistry(p)

	pool, err := reg.Load(context.Background())
	require.NoError(t, err)

	ids := make([]string, len(pool))
	for i, c := range pool {
		ids[i] = c.ID
		assert.True(t, c.OriginallyPrivileged)
	}
	assert.Equal(t, []string{"U1", "U2", "U3", "X2"}, ids)
	assert.Equal(t, "Moderator", pool[3].Name())
	assert.Empty(t, reg.Revoked())
}

func TestRegistry_LoadError(t *testing.T) {
	p := newTestPlatform(2, "")
	p.MembersErr = errors.New("boom")

	_, err := newTestRegistry(p).Load(context.Background())
	var ee *EnumerationError
	require.ErrorAs(t, err, &ee)
	assert.Contains(t, err.Error(), "boom")
}

func TestRegistry_RestoreAllIsIdempotent(t *testing.T) {
	p := newTestPlatform(4, "")
	reg := newTestRegistry(p)
	pool, err := reg.Load(context.Background())
	require.NoError(t, err)

	tg := NewToggler(reg, p, testGuild, fastRetry, testLogger())
	tg.BeginRound(1)
	require.NoError(t, tg.Revoke(context.Background(), pool[2:]))
	assert.Equal(t, []string{"U3", "U4"}, reg.Revoked())
	assert.True(t, reg.IsRevoked("U3"))
	assert.False(t, p.HasRole("U3", testRole))

	require.NoError(t, reg.RestoreAll(context.Background()))
	calls := len(p.Mutations())
	assert.Equal(t, 4, calls)
	assert.Empty(t, p.Drifted())
	assert.Empty(t, reg.Revoked())

	require.NoError(t, reg.RestoreAll(context.Background()))
	assert.Len(t, p.Mutations(), calls)
}

func TestRegistry_RestoreAllContinuesPastFailures(t *testing.T) {
	p := newTestPlatform(3, "")
	reg := newTestRegistry(p)
	pool, err := reg.Load(context.Background())
	require.NoError(t, err)

	tg := NewToggler(reg, p, testGuild, fastRetry, testLogger())
	require.NoError(t, tg.Revoke(context.Background(), pool))

	p.AddErr = func(userID, roleID string) error {
		if userID == "U1" {
			return errors.New("forbidden")
		}
		return nil
	}
	err = reg.RestoreAll(context.Background())
	var ae *AccessMutationError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "U1", ae.UserID)
	assert.Equal(t, []string{"U1"}, reg.Revoked())
	assert.True(t, p.HasRole("U2", testRole))
	assert.True(t, p.HasRole("U3", testRole))

	p.AddErr = nil
	require.NoError(t, reg.RestoreAll(context.Background()))
	assert.Empty(t, p.Drifted())
}
