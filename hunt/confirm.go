package hunt

import (
	"context"
	"fmt"
)

// confirm isolates suspect as the only privileged candidate and probes once
// more. Present confirms; absent or inconclusive leaves the verdict
// unconfirmed. All access is restored before returning.
func (s *session) confirm(ctx context.Context, step int, suspect Candidate) (*LeakerResult, error) {
	mctx := context.WithoutCancel(ctx)
	names := []string{suspect.Name()}

	s.toggler.BeginRound(step)
	s.emit(Progress{
		Step:           step,
		TotalEstimate:  s.total,
		Remaining:      1,
		Message:        fmt.Sprintf("confirming %s", suspect.Name()),
		CandidateNames: names,
	})

	var others []Candidate
	for _, c := range s.reg.Candidates() {
		if c.ID != suspect.ID && c.OriginallyPrivileged && !s.reg.IsRevoked(c.ID) {
			others = append(others, c)
		}
	}
	if err := s.toggler.Revoke(ctx, others); err != nil {
		return nil, s.abortRound(mctx, err)
	}
	if err := s.toggler.Grant(ctx, []Candidate{suspect}); err != nil {
		return nil, s.abortRound(mctx, err)
	}

	out, err := s.probeAndObserve(ctx, step, 1)
	if err != nil {
		return nil, s.abortRound(mctx, err)
	}
	if out.verdict == VerdictInconclusive {
		s.log.Warn("Confirmation observation inconclusive", "err", out.cause)
	}

	confirmed := out.verdict == VerdictPresent
	s.record(RoundRecord{
		Step:           step,
		TotalEstimate:  s.total,
		CandidateNames: names,
		Verdict:        out.verdict,
		Remaining:      1,
		Confirmation:   true,
		Tag:            out.tag,
	})

	if err := s.reg.RestoreAll(mctx); err != nil {
		return nil, err
	}

	msg := fmt.Sprintf("%s confirmed as the leak source", suspect.Name())
	if !confirmed {
		msg = fmt.Sprintf("%s isolated but the canary did not surface", suspect.Name())
	}
	s.log.Info("Confirmation finished", "user", suspect.ID, "confirmed", confirmed)
	s.emit(Progress{
		Step:           step,
		TotalEstimate:  s.total,
		Remaining:      1,
		Message:        msg,
		CandidateNames: names,
	})

	return &LeakerResult{Candidate: suspect, Confirmed: confirmed}, nil
}
