package hunt

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrSessionActive = errors.New("a hunt session is already running")
	ErrStopped       = errors.New("hunt session stopped")
	ErrInvalidConfig = errors.New("invalid session config")
)

// EnumerationError means the candidate pool could not be loaded. Nothing has
// been mutated when it is returned.
type EnumerationError struct {
	Err error
}

func (e *EnumerationError) Error() string {
	return fmt.Sprintf("enumerate members: %v", e.Err)
}

func (e *EnumerationError) Unwrap() error { return e.Err }

// AccessMutationError is a role grant or revoke that failed after retries.
type AccessMutationError struct {
	Round  int
	Op     string
	UserID string
	RoleID string
	Err    error
}

func (e *AccessMutationError) Error() string {
	return fmt.Sprintf("round %d: %s role %s for %s: %v", e.Round, e.Op, e.RoleID, e.UserID, e.Err)
}

func (e *AccessMutationError) Unwrap() error { return e.Err }

// ProbeSendError is a canary that could not be delivered.
type ProbeSendError struct {
	Round int
	Err   error
}

func (e *ProbeSendError) Error() string {
	return fmt.Sprintf("round %d: send probe: %v", e.Round, e.Err)
}

func (e *ProbeSendError) Unwrap() error { return e.Err }

// ObservationError is returned when the leak channel could not be watched,
// either at subscription time or twice in the same round.
type ObservationError struct {
	Round int
	Err   error
}

func (e *ObservationError) Error() string {
	return fmt.Sprintf("round %d: observe leak channel: %v", e.Round, e.Err)
}

func (e *ObservationError) Unwrap() error { return e.Err }

// ErrorRound extracts the round a session error occurred in.
func ErrorRound(err error) (int, bool) {
	var (
		am *AccessMutationError
		ps *ProbeSendError
		ob *ObservationError
		en *EnumerationError
	)
	switch {
	case errors.As(err, &am):
		return am.Round, true
	case errors.As(err, &ps):
		return ps.Round, true
	case errors.As(err, &ob):
		return ob.Round, true
	case errors.As(err, &en):
		return 0, true
	}
	return 0, false
}

type transientError struct {
	err        error
	retryAfter time.Duration
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient marks err as retryable. Platforms use it for rate limits and
// connection resets.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// TransientAfter marks err as retryable no sooner than d.
func TransientAfter(err error, d time.Duration) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err, retryAfter: d}
}

// IsTransient reports whether err was marked retryable.
func IsTransient(err error) bool {
	var t *transientError
	return errors.As(err, &t)
}

func retryAfter(err error) time.Duration {
	var t *transientError
	if errors.As(err, &t) {
		return t.retryAfter
	}
	return 0
}
