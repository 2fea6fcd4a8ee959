package services

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flashbots/leakhunt/hunt"
)

func testMembers(n int) []hunt.Candidate {
	out := make([]hunt.Candidate, n)
	for i := range out {
		out[i] = hunt.Candidate{ID: fmt.Sprintf("U%d", i+1), Username: fmt.Sprintf("user%d", i+1), RoleIDs: []string{"gate"}}
	}
	return out
}

type testEnv struct {
	svc      *HuntService
	platform *hunt.MockPlatform
	store    *InMemoryStore
	router   chi.Router
	ready    bool
}

func setupHuntService(t *testing.T, members int, leaker string, timeout time.Duration) *testEnv {
	t.Helper()

	p := hunt.NewMockPlatform(testMembers(members), []string{"gate"}, "leak")
	p.LeakerID = leaker
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	env := &testEnv{platform: p, store: NewInMemoryStore(), ready: true}
	env.svc = NewHuntService(context.Background(), &HuntServiceConfig{
		Platform: p,
		Defaults: hunt.SessionConfig{
			GuildID:        "guild",
			RoleIDs:        []string{"gate"},
			LeakChannelID:  "leak",
			ProbeChannelID: "probe",
			ProbeTemplate:  "canary {nonce}",
			ObserveTimeout: timeout,
		},
		Controller: hunt.NewController(&hunt.ControllerConfig{
			Log:   log,
			Retry: hunt.RetryPolicy{Attempts: 2, BaseDelay: time.Millisecond},
		}),
		Store: env.store,
		Log:   log,
	})
	env.svc.SetReadiness(func() bool { return env.ready })

	env.router = chi.NewRouter()
	env.svc.RegisterRoutes(env.router)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestHuntService_StartAndFinish(t *testing.T) {
	env := setupHuntService(t, 4, "U2", time.Second)

	rec := env.do(t, http.MethodPost, "/api/session", nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var started StartSessionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&started))
	require.NotEmpty(t, started.SessionID)

	env.svc.Wait()

	rec = env.do(t, http.MethodGet, "/api/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var st SessionStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&st))
	assert.Equal(t, hunt.PhaseFound, st.Phase)
	require.NotNil(t, st.Result)
	assert.Equal(t, "U2", st.Result.Candidate.ID)
	assert.True(t, st.Result.Confirmed)
	assert.Equal(t, started.SessionID, st.SessionID)

	rec = env.do(t, http.MethodGet, "/api/sessions/"+started.SessionID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var saved SessionRecord
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&saved))
	assert.Equal(t, hunt.PhaseFound, saved.Phase)
	assert.Equal(t, "guild", saved.GuildID)
	assert.Len(t, saved.Rounds, 3)

	rec = env.do(t, http.MethodGet, "/api/sessions?limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []SessionRecord
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Len(t, list, 1)

	assert.Empty(t, env.platform.Drifted())
}

func TestHuntService_Conflict(t *testing.T) {
	env := setupHuntService(t, 8, "", 5*time.Second)

	rec := env.do(t, http.MethodPost, "/api/session", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/session", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/session/stop", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var st SessionStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&st))
	assert.Equal(t, hunt.PhaseIdle, st.Phase)

	env.svc.Wait()
	assert.Empty(t, env.platform.Drifted())

	saved, err := env.store.ListSessions(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.True(t, saved[0].Stopped)
	assert.Equal(t, hunt.PhaseIdle, saved[0].Phase)
}

func TestHuntService_BadRequests(t *testing.T) {
	env := setupHuntService(t, 2, "", time.Second)

	rec := env.do(t, http.MethodPost, "/api/session", StartSessionRequest{TimeoutSeconds: 500})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "observe timeout")

	req := httptest.NewRequest(http.MethodPost, "/api/session", strings.NewReader("{"))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	rec = env.do(t, http.MethodGet, "/api/sessions/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/sessions?limit=x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env.ready = false
	rec = env.do(t, http.MethodPost, "/api/session", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, env.svc.ctrl.Running())
}

func TestHuntService_StopWhenIdle(t *testing.T) {
	env := setupHuntService(t, 2, "", time.Second)
	rec := env.do(t, http.MethodPost, "/api/session/stop", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHuntService_RequestOverridesDefaults(t *testing.T) {
	env := setupHuntService(t, 2, "", time.Second)
	cfg := env.svc.sessionConfig(StartSessionRequest{
		GuildID:        "other",
		RoleIDs:        []string{"r2"},
		WebhookURL:     "https://example.invalid/hook",
		TimeoutSeconds: 30,
	})
	assert.Equal(t, "other", cfg.GuildID)
	assert.Equal(t, []string{"r2"}, cfg.RoleIDs)
	assert.Equal(t, "leak", cfg.LeakChannelID)
	assert.Equal(t, "https://example.invalid/hook", cfg.WebhookURL)
	assert.Equal(t, 30*time.Second, cfg.ObserveTimeout)
	assert.Equal(t, env.platform, cfg.Platform)
}

func TestHuntService_SSE(t *testing.T) {
	env := setupHuntService(t, 2, "U1", time.Second)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)
	next := func() (string, string) {
		var kind, data string
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				kind = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			case line == "" && kind != "":
				return kind, data
			}
		}
		return "", ""
	}

	kind, _ := next()
	require.Equal(t, "status", kind)

	startResp, err := http.Post(srv.URL+"/api/session", "application/json", nil)
	require.NoError(t, err)
	startResp.Body.Close()
	require.Equal(t, http.StatusAccepted, startResp.StatusCode)

	var kinds []string
	for {
		kind, data := next()
		require.NotEmpty(t, kind, "stream ended early")
		kinds = append(kinds, kind)
		if kind == string(hunt.EventResult) {
			var ev hunt.Event
			require.NoError(t, json.Unmarshal([]byte(data), &ev))
			require.NotNil(t, ev.Result)
			assert.Equal(t, "U1", ev.Result.Candidate.ID)
			break
		}
	}
	assert.Contains(t, kinds, string(hunt.EventProgress))
	env.svc.Wait()
}

func TestHuntService_RecordsFinalSnapshotOfEvent(t *testing.T) {
	env := setupHuntService(t, 2, "", time.Second)

	// The controller is idle here, as it would be once a newer session
	// replaced its status; the record must come from the event.
	final := hunt.Status{
		SessionID: "finished-1",
		Phase:     hunt.PhaseFound,
		History:   []hunt.RoundRecord{{Step: 1, Verdict: hunt.VerdictPresent}},
		Result:    &hunt.LeakerResult{Candidate: hunt.Candidate{ID: "U1"}, Confirmed: true},
		StartedAt: time.Now().Add(-time.Minute),
		EndedAt:   time.Now(),
	}
	events := make(chan hunt.Event, 2)
	events <- hunt.Event{Kind: hunt.EventProgress, SessionID: "finished-1", Progress: &hunt.Progress{Step: 1}}
	events <- hunt.Event{Kind: hunt.EventResult, SessionID: "finished-1", Result: final.Result, Status: &final}
	close(events)

	env.svc.pump("guild", events)

	rec, err := env.store.GetSession(context.Background(), "finished-1")
	require.NoError(t, err)
	assert.Equal(t, hunt.PhaseFound, rec.Phase)
	assert.Len(t, rec.Rounds, 1)
	require.NotNil(t, rec.Result)
	assert.Equal(t, "U1", rec.Result.Candidate.ID)
}
