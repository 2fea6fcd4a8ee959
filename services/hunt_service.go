package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/flashbots/leakhunt/hunt"
)

// StartSessionRequest starts a hunt. Empty fields fall back to the service
// defaults.
type StartSessionRequest struct {
	GuildID        string   `json:"guild_id"`
	RoleIDs        []string `json:"role_ids"`
	LeakChannelID  string   `json:"leak_channel_id"`
	ProbeChannelID string   `json:"probe_channel_id"`
	WebhookURL     string   `json:"webhook_url"`
	ProbeTemplate  string   `json:"probe_template"`
	TimeoutSeconds int      `json:"timeout_seconds"`
}

// StartSessionResponse is returned with 202 Accepted.
type StartSessionResponse struct {
	SessionID string `json:"session_id"`
}

// SessionStatus is the body of GET /api/session.
type SessionStatus = hunt.Status

// HuntServiceConfig configures a HuntService.
type HuntServiceConfig struct {
	Platform hunt.Platform

	// Defaults fills fields a start request leaves empty.
	Defaults hunt.SessionConfig

	Controller *hunt.Controller
	Store      HistoryStore
	Log        *slog.Logger
}

// HuntService exposes the controller over HTTP and records every finished
// session in the history store.
type HuntService struct {
	platform hunt.Platform
	defaults hunt.SessionConfig
	ctrl     *hunt.Controller
	store    HistoryStore
	log      *slog.Logger
	events   *broadcaster

	ready func() bool

	// ctx outlives requests; sessions are bound to it.
	ctx context.Context

	wg sync.WaitGroup
}

// NewHuntService creates the service. Sessions it starts are cancelled when
// ctx is.
func NewHuntService(ctx context.Context, cfg *HuntServiceConfig) *HuntService {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	store := cfg.Store
	if store == nil {
		store = NewInMemoryStore()
	}
	ctrl := cfg.Controller
	if ctrl == nil {
		ctrl = hunt.NewController(&hunt.ControllerConfig{Log: log})
	}
	return &HuntService{
		platform: cfg.Platform,
		defaults: cfg.Defaults,
		ctrl:     ctrl,
		store:    store,
		log:      log,
		events:   newBroadcaster(),
		ready:    func() bool { return true },
		ctx:      ctx,
	}
}

// SetReadiness makes new sessions depend on ready, typically
// BaseServer.Ready.
func (s *HuntService) SetReadiness(ready func() bool) {
	s.ready = ready
}

// RegisterRoutes registers all HTTP routes.
func (s *HuntService) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/session", s.handleStart)
		r.Post("/session/stop", s.handleStop)
		r.Get("/session", s.handleStatus)
		r.Get("/events", s.handleSSE)
		r.Get("/sessions", s.handleListSessions)
		r.Get("/sessions/{id}", s.handleGetSession)
	})
}

// Start launches a session and pumps its events to subscribers and the store.
func (s *HuntService) Start(req StartSessionRequest) (string, error) {
	cfg := s.sessionConfig(req)
	id, events, err := s.ctrl.Start(s.ctx, cfg)
	if err != nil {
		return "", err
	}

	s.log.Info("Hunt session started", "session", id, "guild", cfg.GuildID)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.pump(cfg.GuildID, events)
	}()
	return id, nil
}

func (s *HuntService) pump(guildID string, events <-chan hunt.Event) {
	for ev := range events {
		s.events.broadcast(ev)
		if !ev.Terminal() {
			continue
		}

		st := s.ctrl.Status()
		if ev.Status != nil {
			st = *ev.Status
		}
		rec := NewSessionRecord(guildID, st, ev.Kind == hunt.EventStopped)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := s.store.SaveSession(ctx, rec); err != nil {
			s.log.Error("Failed to save session", "session", rec.ID, "err", err)
		}
		cancel()
	}
}

// Wait blocks until the events of every started session were handled.
func (s *HuntService) Wait() {
	s.wg.Wait()
}

// Stop stops the running session, if any, and waits for its rollback.
func (s *HuntService) Stop() {
	s.ctrl.Stop()
}

func (s *HuntService) sessionConfig(req StartSessionRequest) hunt.SessionConfig {
	cfg := s.defaults
	cfg.Platform = s.platform
	if req.GuildID != "" {
		cfg.GuildID = req.GuildID
	}
	if len(req.RoleIDs) > 0 {
		cfg.RoleIDs = req.RoleIDs
	}
	if req.LeakChannelID != "" {
		cfg.LeakChannelID = req.LeakChannelID
	}
	if req.ProbeChannelID != "" {
		cfg.ProbeChannelID = req.ProbeChannelID
	}
	if req.WebhookURL != "" {
		cfg.WebhookURL = req.WebhookURL
	}
	if req.ProbeTemplate != "" {
		cfg.ProbeTemplate = req.ProbeTemplate
	}
	if req.TimeoutSeconds != 0 {
		cfg.ObserveTimeout = hunt.TimeoutFromSeconds(req.TimeoutSeconds)
	}
	return cfg
}

func (s *HuntService) handleStart(w http.ResponseWriter, r *http.Request) {
	if !s.ready() {
		http.Error(w, "server is draining", http.StatusServiceUnavailable)
		return
	}

	var req StartSessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
			return
		}
	}

	id, err := s.Start(req)
	switch {
	case errors.Is(err, hunt.ErrSessionActive):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case errors.Is(err, hunt.ErrInvalidConfig):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, StartSessionResponse{SessionID: id})
}

func (s *HuntService) handleStop(w http.ResponseWriter, r *http.Request) {
	s.ctrl.Stop()
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *HuntService) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *HuntService) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	eventCh := s.events.subscribe()
	defer s.events.unsubscribe(eventCh)

	// Send the current status immediately so late subscribers can render.
	if data, err := json.Marshal(s.ctrl.Status()); err == nil {
		fmt.Fprintf(w, "event: status\ndata: %s\n\n", data)
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.ctx.Done():
			return
		case ev := <-eventCh:
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data)
			flusher.Flush()
		}
	}
}

func (s *HuntService) handleListSessions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	recs, err := s.store.ListSessions(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if recs == nil {
		recs = []*SessionRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *HuntService) handleGetSession(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.GetSession(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, ErrSessionNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
