package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flashbots/leakhunt/hunt"
	"github.com/flashbots/leakhunt/services"
)

func simSession(p *hunt.MockPlatform) hunt.SessionConfig {
	return hunt.SessionConfig{
		Platform:       p,
		GuildID:        simGuild,
		RoleIDs:        []string{simRole},
		LeakChannelID:  simLeak,
		ProbeChannelID: simChannel,
		ProbeTemplate:  "canary {nonce}",
		ObserveTimeout: time.Second,
	}
}

func TestHuntOnce_JSONOutput(t *testing.T) {
	p := newSimPlatform(4, 1, 0)
	store := services.NewInMemoryStore()
	var buf bytes.Buffer

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	err := huntOnce(context.Background(), log, simSession(p), store, printer{w: &buf, json: true})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.GreaterOrEqual(t, len(lines), 2)
	for _, l := range lines[:len(lines)-1] {
		require.True(t, strings.HasPrefix(l, "PROGRESS:"), l)
	}

	last := lines[len(lines)-1]
	require.True(t, strings.HasPrefix(last, "RESULT:"), last)
	var res hunt.LeakerResult
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(last, "RESULT:")), &res))
	require.Equal(t, "100001", res.Candidate.ID)
	require.True(t, res.Confirmed)
	require.Empty(t, p.Drifted())

	recs, err := store.ListSessions(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, hunt.PhaseFound, recs[0].Phase)
}

func TestHuntOnce_Text(t *testing.T) {
	p := newSimPlatform(2, 2, 0)
	var buf bytes.Buffer

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	err := huntOnce(context.Background(), log, simSession(p), services.NewInMemoryStore(), printer{w: &buf})
	require.NoError(t, err)
	require.Contains(t, buf.String(), "Leaker: Member 2")
	require.Contains(t, buf.String(), "[confirmed]")
}

func TestHuntOnce_Stopped(t *testing.T) {
	p := newSimPlatform(4, 0, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := services.NewInMemoryStore()
	err := huntOnce(ctx, log, simSession(p), store, printer{w: io.Discard})
	require.NoError(t, err)
	require.Empty(t, p.Drifted())

	recs, err := store.ListSessions(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.True(t, recs[0].Stopped)
}

func TestPrinter_NoLeaker(t *testing.T) {
	var buf bytes.Buffer
	printer{w: &buf, json: true}.result(nil)
	require.Equal(t, "RESULT:null\n", buf.String())

	buf.Reset()
	printer{w: &buf}.result(nil)
	require.Contains(t, buf.String(), "No leaker found")
}

func TestListNames(t *testing.T) {
	require.Equal(t, "a, b", listNames([]string{"a", "b"}))

	names := make([]string, 10)
	for i := range names {
		names[i] = "x"
	}
	require.True(t, strings.HasSuffix(listNames(names), "and 2 more"))
}

func TestNewSimPlatform(t *testing.T) {
	p := newSimPlatform(3, 0, 0)
	require.Empty(t, p.LeakerID)
	require.True(t, p.HasRole("100003", simRole))

	p = newSimPlatform(3, 3, time.Millisecond)
	require.Equal(t, "100003", p.LeakerID)
}
