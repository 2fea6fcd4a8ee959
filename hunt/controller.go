package hunt

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
)

// eventBuffer bounds the Start stream. Progress is dropped when the consumer
// falls behind; the terminal event always has a slot.
const eventBuffer = 64

// ControllerConfig configures a Controller.
type ControllerConfig struct {
	// Log defaults to slog.Default().
	Log *slog.Logger

	// Retry applies to every role mutation. Zero value means DefaultRetryPolicy.
	Retry RetryPolicy
}

// Status is a read-only snapshot of the current or last session.
type Status struct {
	SessionID     string        `json:"session_id,omitempty"`
	Phase         Phase         `json:"phase"`
	Step          int           `json:"step"`
	TotalEstimate int           `json:"total_estimate"`
	Remaining     int           `json:"remaining"`
	History       []RoundRecord `json:"history"`
	Result        *LeakerResult `json:"result,omitempty"`
	Error         string        `json:"error,omitempty"`
	ErrorRound    int           `json:"error_round,omitempty"`
	StartedAt     time.Time     `json:"started_at,omitzero"`
	EndedAt       time.Time     `json:"ended_at,omitzero"`
}

// Controller drives hunt sessions for one platform connection. At most one
// session runs at a time; a second start is rejected with ErrSessionActive.
type Controller struct {
	log   *slog.Logger
	retry RetryPolicy

	running atomic.Bool

	mu     sync.RWMutex
	status Status
	cancel context.CancelFunc
	done   chan struct{}
}

// NewController creates an idle controller.
func NewController(cfg *ControllerConfig) *Controller {
	c := &Controller{
		log:    slog.Default(),
		retry:  DefaultRetryPolicy,
		status: Status{Phase: PhaseIdle},
	}
	if cfg != nil {
		if cfg.Log != nil {
			c.log = cfg.Log
		}
		if cfg.Retry.Attempts > 0 {
			c.retry = cfg.Retry
		}
	}
	return c
}

type sessionHandle struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func (c *Controller) claim(ctx context.Context, cfg *SessionConfig) (*sessionHandle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !c.running.CompareAndSwap(false, true) {
		return nil, ErrSessionActive
	}

	sctx, cancel := context.WithCancel(ctx)
	h := &sessionHandle{
		id:     uuid.NewString(),
		ctx:    sctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	c.mu.Lock()
	c.cancel = cancel
	c.done = h.done
	c.status = Status{SessionID: h.id, Phase: PhaseRunning, StartedAt: time.Now()}
	c.mu.Unlock()

	return h, nil
}

// execute runs the session and returns the final status, captured before the
// guard is released so that a new session cannot replace it.
func (c *Controller) execute(h *sessionHandle, cfg SessionConfig, progress ProgressFunc) (*LeakerResult, Status, error) {
	defer func() {
		h.cancel()
		c.running.Store(false)
		close(h.done)
	}()

	s := newSession(c, h.id, cfg, progress)
	res, err := s.run(h.ctx)
	c.finish(res, err)
	return res, c.Status(), err
}

// Run executes a whole session on the calling goroutine. It returns the
// result (nil when nobody was found), ErrStopped after Stop or cancellation of
// ctx, or the fatal error that ended the session. Access state has been
// restored whenever Run returns.
func (c *Controller) Run(ctx context.Context, cfg SessionConfig, progress ProgressFunc) (*LeakerResult, error) {
	h, err := c.claim(ctx, &cfg)
	if err != nil {
		return nil, err
	}
	res, _, err := c.execute(h, cfg, progress)
	return res, err
}

// Start launches a session in the background and returns its id and event
// stream. The session is bound to ctx, not to the caller's request.
func (c *Controller) Start(ctx context.Context, cfg SessionConfig) (string, <-chan Event, error) {
	h, err := c.claim(ctx, &cfg)
	if err != nil {
		return "", nil, err
	}

	events := make(chan Event, eventBuffer)
	go func() {
		defer close(events)
		res, st, err := c.execute(h, cfg, func(p Progress) {
			if len(events) >= cap(events)-1 {
				c.log.Warn("Dropping progress event, consumer is behind", "session", h.id, "step", p.Step)
				return
			}
			events <- Event{Kind: EventProgress, SessionID: h.id, Progress: &p}
		})
		ev := terminalEvent(h.id, res, err)
		ev.Status = &st
		events <- ev
	}()

	return h.id, events, nil
}

// Stop cancels the running session and blocks until its rollback finished.
// It is safe to call in any phase.
func (c *Controller) Stop() {
	c.mu.RLock()
	cancel, done := c.cancel, c.done
	c.mu.RUnlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether a session is active.
func (c *Controller) Running() bool {
	return c.running.Load()
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status.Phase
}

// History returns a copy of the round history of the current or last session.
func (c *Controller) History() []RoundRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.status.History)
}

// Status returns a snapshot of the current or last session.
func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st := c.status
	st.History = slices.Clone(c.status.History)
	return st
}

func (c *Controller) update(p Progress) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status.Step = p.Step
	c.status.TotalEstimate = p.TotalEstimate
	c.status.Remaining = p.Remaining
}

func (c *Controller) record(rec RoundRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status.History = append(c.status.History, rec)
}

func (c *Controller) finish(res *LeakerResult, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.status.EndedAt = time.Now()
	switch {
	case err == nil && res != nil:
		c.status.Phase = PhaseFound
		c.status.Result = res
	case err == nil:
		c.status.Phase = PhaseNotFound
	case errors.Is(err, ErrStopped):
		c.status.Phase = PhaseIdle
	default:
		c.status.Phase = PhaseFailed
		c.status.Error = err.Error()
		c.status.ErrorRound, _ = ErrorRound(err)
	}

	c.log.Info("Hunt session finished",
		"session", c.status.SessionID,
		"phase", c.status.Phase,
		"rounds", len(c.status.History),
		"err", err)
}
