package services

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flashbots/leakhunt/hunt"
)

func sampleRecord(id string, started time.Time) *SessionRecord {
	return &SessionRecord{
		ID:      id,
		GuildID: "g1",
		Phase:   hunt.PhaseFound,
		Rounds: []hunt.RoundRecord{
			{Step: 1, TotalEstimate: 1, CandidateNames: []string{"alice"}, Direction: hunt.DirectionSecondHalf, Verdict: hunt.VerdictAbsent, Remaining: 1, Tag: "t1", At: started},
			{Step: 2, TotalEstimate: 1, CandidateNames: []string{"bob"}, Verdict: hunt.VerdictPresent, Remaining: 1, Confirmation: true, Tag: "t2", At: started},
		},
		Result:    &hunt.LeakerResult{Candidate: hunt.Candidate{ID: "2", Username: "bob", OriginallyPrivileged: true}, Confirmed: true},
		StartedAt: started,
		EndedAt:   started.Add(time.Minute),
	}
}

func exerciseStore(t *testing.T, store HistoryStore) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := store.GetSession(ctx, "missing")
	require.ErrorIs(t, err, ErrSessionNotFound)

	for i := 0; i < 3; i++ {
		rec := sampleRecord("s"+strconv.Itoa(i), base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, store.SaveSession(ctx, rec))
	}

	failed := &SessionRecord{ID: "s1", GuildID: "g1", Phase: hunt.PhaseFailed, Rounds: []hunt.RoundRecord{},
		Error: "round 1: observe leak channel: gone", ErrorRound: 1, StartedAt: base.Add(time.Hour), EndedAt: base.Add(2 * time.Hour)}
	require.NoError(t, store.SaveSession(ctx, failed))

	got, err := store.GetSession(ctx, "s0")
	require.NoError(t, err)
	require.Equal(t, hunt.PhaseFound, got.Phase)
	require.Len(t, got.Rounds, 2)
	require.Equal(t, hunt.VerdictPresent, got.Rounds[1].Verdict)
	require.True(t, got.Rounds[1].Confirmation)
	require.NotNil(t, got.Result)
	require.Equal(t, "bob", got.Result.Candidate.Username)
	require.True(t, got.StartedAt.Equal(base))

	got, err = store.GetSession(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, hunt.PhaseFailed, got.Phase)
	require.Nil(t, got.Result)
	require.Equal(t, 1, got.ErrorRound)

	all, err := store.ListSessions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "s2", all[0].ID)
	require.Equal(t, "s0", all[2].ID)

	two, err := store.ListSessions(ctx, 2)
	require.NoError(t, err)
	require.Len(t, two, 2)
}

func TestInMemoryStore(t *testing.T) {
	exerciseStore(t, NewInMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	store, err := NewSQLiteStore(t.TempDir() + "/history.db")
	require.NoError(t, err)
	defer store.Close()
	exerciseStore(t, store)
}

func TestPostgresStore(t *testing.T) {
	host := os.Getenv("LEAKHUNT_TEST_POSTGRES_HOST")
	if host == "" {
		t.Skip("LEAKHUNT_TEST_POSTGRES_HOST not set")
	}
	store, err := NewPostgresStore(&PostgresConfig{
		Host:     host,
		Port:     5432,
		User:     "postgres",
		Password: os.Getenv("LEAKHUNT_TEST_POSTGRES_PASSWORD"),
		Database: "postgres",
	})
	require.NoError(t, err)
	defer store.Close()

	_, err = store.db.Exec("DELETE FROM hunt_sessions")
	require.NoError(t, err)
	exerciseStore(t, store)
}

func TestRebind(t *testing.T) {
	h := &sqlHistory{dollar: true}
	require.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", h.rebind("SELECT a FROM t WHERE x = ? AND y = ?"))
	h.dollar = false
	require.Equal(t, "x = ?", h.rebind("x = ?"))
}
