package hunt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// roundOutcome is what one probe/observe cycle produced.
type roundOutcome struct {
	verdict Verdict
	tag     string
	cause   error
}

// session owns all mutable state of one hunt. It lives on a single goroutine.
type session struct {
	id       string
	cfg      SessionConfig
	log      *slog.Logger
	ctrl     *Controller
	progress ProgressFunc

	reg      *Registry
	toggler  *Toggler
	probe    *ProbeService
	sub      Subscription
	observer *Observer
	total    int
}

func newSession(c *Controller, id string, cfg SessionConfig, progress ProgressFunc) *session {
	log := c.log.With("session", id, "guild", cfg.GuildID)
	reg := NewRegistry(cfg.Platform, cfg.GuildID, cfg.RoleIDs, c.retry, log)
	return &session{
		id:       id,
		cfg:      cfg,
		log:      log,
		ctrl:     c,
		progress: progress,
		reg:      reg,
		toggler:  NewToggler(reg, cfg.Platform, cfg.GuildID, c.retry, log),
		probe:    NewProbeService(cfg.Platform, &cfg, c.retry),
	}
}

func (s *session) emit(p Progress) {
	s.ctrl.update(p)
	if s.progress != nil {
		s.progress(p)
	}
}

func (s *session) record(rec RoundRecord) {
	rec.At = time.Now()
	s.ctrl.record(rec)
}

func (s *session) run(ctx context.Context) (res *LeakerResult, err error) {
	s.log.Info("Starting hunt", "roles", s.cfg.RoleIDs, "leak_channel", s.cfg.LeakChannelID)
	s.emit(Progress{Message: "loading candidates"})

	pool, err := s.reg.Load(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrStopped
		}
		return nil, err
	}
	s.total = EstimateRounds(len(pool))
	s.emit(Progress{
		TotalEstimate:  s.total,
		Remaining:      len(pool),
		Message:        fmt.Sprintf("found %d candidates", len(pool)),
		CandidateNames: candidateNames(pool),
	})
	if len(pool) == 0 {
		return nil, nil
	}

	mctx := context.WithoutCancel(ctx)
	defer func() {
		rerr := s.reg.RestoreAll(mctx)
		if rerr == nil {
			return
		}
		s.log.Error("Access restore incomplete", "err", rerr)
		res = nil
		if err == nil || errors.Is(err, ErrStopped) {
			err = fmt.Errorf("restore access: %w", rerr)
		} else {
			err = errors.Join(err, rerr)
		}
	}()

	if err := s.subscribe(ctx, 0); err != nil {
		if ctx.Err() != nil {
			return nil, ErrStopped
		}
		return nil, err
	}
	defer func() {
		if s.sub != nil {
			s.sub.Close()
		}
	}()

	step := 0
	for len(pool) > 1 {
		if ctx.Err() != nil {
			return nil, ErrStopped
		}
		step++

		first, second := Split(pool)
		out, err := s.bisect(ctx, step, first, second)
		if err != nil {
			return nil, err
		}

		dir := DirectionSecondHalf
		pool = second
		if out.verdict == VerdictPresent {
			dir = DirectionFirstHalf
			pool = first
		}

		s.log.Info("Round complete",
			"step", step, "verdict", out.verdict, "direction", dir, "remaining", len(pool))
		s.record(RoundRecord{
			Step:           step,
			TotalEstimate:  s.total,
			CandidateNames: candidateNames(first),
			Direction:      dir,
			Verdict:        out.verdict,
			Remaining:      len(pool),
			Tag:            out.tag,
		})
		s.emit(Progress{
			Step:           step,
			TotalEstimate:  s.total,
			Remaining:      len(pool),
			Message:        fmt.Sprintf("leaker is in the %s (%d left)", dir, len(pool)),
			CandidateNames: candidateNames(pool),
			Direction:      dir,
		})
	}

	return s.confirm(ctx, step+1, pool[0])
}

// bisect runs one round, retrying it once if observation was inconclusive.
func (s *session) bisect(ctx context.Context, step int, first, second []Candidate) (roundOutcome, error) {
	var out roundOutcome
	for attempt := 1; attempt <= 2; attempt++ {
		if attempt > 1 && !s.observer.Healthy() {
			if err := s.subscribe(ctx, step); err != nil {
				return out, err
			}
		}

		var err error
		out, err = s.probeRound(ctx, step, first, second)
		if err != nil {
			return out, err
		}
		if out.verdict != VerdictInconclusive {
			return out, nil
		}

		s.log.Warn("Observation inconclusive", "step", step, "attempt", attempt, "err", out.cause)
		s.emit(Progress{
			Step:          step,
			TotalEstimate: s.total,
			Remaining:     len(first) + len(second),
			Message:       "observation inconclusive, access restored",
		})
	}
	return out, &ObservationError{Round: step, Err: out.cause}
}

// probeRound revokes second, probes, observes and restores second again. On
// every error path the round's toggles are rolled back before returning.
func (s *session) probeRound(ctx context.Context, step int, first, second []Candidate) (roundOutcome, error) {
	mctx := context.WithoutCancel(ctx)
	size := len(first) + len(second)

	s.toggler.BeginRound(step)
	s.emit(Progress{
		Step:           step,
		TotalEstimate:  s.total,
		Remaining:      size,
		Message:        fmt.Sprintf("revoking access for %d of %d candidates", len(second), size),
		CandidateNames: candidateNames(first),
	})
	if err := s.toggler.Revoke(ctx, second); err != nil {
		return roundOutcome{}, s.abortRound(mctx, err)
	}

	out, err := s.probeAndObserve(ctx, step, size)
	if err != nil {
		return out, s.abortRound(mctx, err)
	}
	if err := s.toggler.RollbackRound(mctx); err != nil {
		return out, err
	}
	return out, nil
}

func (s *session) abortRound(ctx context.Context, cause error) error {
	if err := s.toggler.RollbackRound(ctx); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

// probeAndObserve waits for access changes to settle, sends a fresh canary and
// waits for it on the leak channel.
func (s *session) probeAndObserve(ctx context.Context, step, remaining int) (roundOutcome, error) {
	if err := s.settle(ctx); err != nil {
		return roundOutcome{}, err
	}

	tag := s.probe.NextTag()
	receipt, err := s.probe.Send(context.WithoutCancel(ctx), step, tag)
	if err != nil {
		return roundOutcome{tag: tag}, err
	}
	s.emit(Progress{
		Step:          step,
		TotalEstimate: s.total,
		Remaining:     remaining,
		Message:       fmt.Sprintf("probe sent via %s, watching leak channel for %s", receipt.Via, s.cfg.ObserveTimeout),
	})

	verdict, cause := s.observer.Await(ctx, tag, s.cfg.ObserveTimeout)
	if ctx.Err() != nil {
		return roundOutcome{tag: tag}, ErrStopped
	}
	return roundOutcome{verdict: verdict, tag: tag, cause: cause}, nil
}

func (s *session) settle(ctx context.Context) error {
	if s.cfg.SettleDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(s.cfg.SettleDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ErrStopped
	case <-timer.C:
		return nil
	}
}

// subscribe replaces the leak channel subscription.
func (s *session) subscribe(ctx context.Context, step int) error {
	if s.sub != nil {
		s.sub.Close()
		s.sub = nil
	}
	sub, err := s.cfg.Platform.Watch(ctx, s.cfg.LeakChannelID)
	if err != nil {
		return &ObservationError{Round: step, Err: err}
	}
	s.sub = sub
	s.observer = NewObserver(sub)
	return nil
}
