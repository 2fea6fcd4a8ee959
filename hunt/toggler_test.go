package hunt

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToggler_RevokeGrant(t *testing.T) {
	p := newTestPlatform(2, "")
	reg := newTestRegistry(p)
	pool, err := reg.Load(context.Background())
	require.NoError(t, err)
	tg := NewToggler(reg, p, testGuild, fastRetry, testLogger())

	require.NoError(t, tg.Revoke(context.Background(), pool))
	// A second revoke is a no-op.
	require.NoError(t, tg.Revoke(context.Background(), pool))
	assert.Len(t, p.Mutations(), 2)

	require.NoError(t, tg.Grant(context.Background(), pool[:1]))
	assert.True(t, p.HasRole("U1", testRole))
	assert.False(t, p.HasRole("U2", testRole))
	// Roles outside the gating set are never touched.
	for _, m := range p.Mutations() {
		assert.Equal(t, testRole, m.RoleID)
	}
}

func TestToggler_RollbackRoundOnlyUndoesCurrentRound(t *testing.T) {
	p := newTestPlatform(4, "")
	reg := newTestRegistry(p)
	pool, err := reg.Load(context.Background())
	require.NoError(t, err)
	tg := NewToggler(reg, p, testGuild, fastRetry, testLogger())

	tg.BeginRound(1)
	require.NoError(t, tg.Revoke(context.Background(), pool[:1]))
	tg.BeginRound(2)
	require.NoError(t, tg.Revoke(context.Background(), pool[2:]))

	require.NoError(t, tg.RollbackRound(context.Background()))
	assert.Equal(t, []string{"U1"}, reg.Revoked())
	assert.True(t, p.HasRole("U3", testRole))
	assert.True(t, p.HasRole("U4", testRole))
}

func TestToggler_RevokeFailureKeepsJournal(t *testing.T) {
	p := newTestPlatform(3, "")
	reg := newTestRegistry(p)
	pool, err := reg.Load(context.Background())
	require.NoError(t, err)
	tg := NewToggler(reg, p, testGuild, fastRetry, testLogger())

	p.RemoveErr = func(userID, roleID string) error {
		if userID == "U3" {
			return Transient(errors.New("503"))
		}
		return nil
	}
	tg.BeginRound(4)
	err = tg.Revoke(context.Background(), pool)

	var ae *AccessMutationError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, 4, ae.Round)
	assert.Equal(t, "revoke", ae.Op)
	assert.True(t, IsTransient(err))
	assert.Equal(t, []string{"U1", "U2"}, reg.Revoked())

	require.NoError(t, tg.RollbackRound(context.Background()))
	assert.Empty(t, p.Drifted())
}

func TestToggler_CancelStopsBetweenMembers(t *testing.T) {
	p := newTestPlatform(6, "")
	reg := newTestRegistry(p)
	pool, err := reg.Load(context.Background())
	require.NoError(t, err)
	tg := NewToggler(reg, p, testGuild, fastRetry, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.RemoveErr = func(userID, roleID string) error {
		if userID == "U2" {
			cancel()
		}
		return nil
	}

	tg.BeginRound(1)
	err = tg.Revoke(ctx, pool)
	require.ErrorIs(t, err, ErrStopped)
	// The call in flight when ctx was cancelled still completed.
	assert.Equal(t, []string{"U1", "U2"}, reg.Revoked())
	assert.Len(t, p.Mutations(), 2)

	require.ErrorIs(t, tg.Grant(ctx, pool), ErrStopped)
	assert.Len(t, p.Mutations(), 2)

	// Rollback ignores cancellation.
	require.NoError(t, tg.RollbackRound(ctx))
	assert.Empty(t, reg.Revoked())
	assert.Empty(t, p.Drifted())
}
