package hunt

import (
	"errors"
)

// Progress is a round-level notification for the presentation layer.
type Progress struct {
	Step           int       `json:"step"`
	TotalEstimate  int       `json:"total"`
	Remaining      int       `json:"remaining"`
	Message        string    `json:"message"`
	CandidateNames []string  `json:"names,omitempty"`
	Direction      Direction `json:"direction,omitempty"`
}

// ProgressFunc receives progress synchronously from the session goroutine.
// It must not block for long and must not call Controller.Stop.
type ProgressFunc func(Progress)

type EventKind string

const (
	EventProgress EventKind = "progress"
	EventResult   EventKind = "result"
	EventError    EventKind = "error"
	EventStopped  EventKind = "stopped"
)

// Event is an element of the stream returned by Controller.Start. The stream
// ends with exactly one EventResult, EventError or EventStopped.
type Event struct {
	Kind      EventKind     `json:"kind"`
	SessionID string        `json:"session_id"`
	Progress  *Progress     `json:"progress,omitempty"`
	Result    *LeakerResult `json:"result,omitempty"`
	Error     string        `json:"error,omitempty"`
	Round     int           `json:"round,omitempty"`

	Err error `json:"-"`

	// Status is the final snapshot of the session, set on terminal events.
	Status *Status `json:"-"`
}

// Terminal reports whether e closes the stream.
func (e Event) Terminal() bool {
	return e.Kind != EventProgress
}

func terminalEvent(sessionID string, res *LeakerResult, err error) Event {
	switch {
	case err == nil:
		return Event{Kind: EventResult, SessionID: sessionID, Result: res}
	case errors.Is(err, ErrStopped):
		return Event{Kind: EventStopped, SessionID: sessionID, Err: err}
	}
	round, _ := ErrorRound(err)
	return Event{Kind: EventError, SessionID: sessionID, Error: err.Error(), Round: round, Err: err}
}
