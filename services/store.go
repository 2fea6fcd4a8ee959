package services

import (
	"context"
	"errors"
	"time"

	"github.com/flashbots/leakhunt/hunt"
)

// ErrSessionNotFound is returned by stores for unknown session ids.
var ErrSessionNotFound = errors.New("session not found")

// SessionRecord is the persisted summary of one finished hunt.
type SessionRecord struct {
	ID         string             `json:"id"`
	GuildID    string             `json:"guild_id"`
	Phase      hunt.Phase         `json:"phase"`
	Stopped    bool               `json:"stopped,omitempty"`
	Rounds     []hunt.RoundRecord `json:"rounds"`
	Result     *hunt.LeakerResult `json:"result,omitempty"`
	Error      string             `json:"error,omitempty"`
	ErrorRound int                `json:"error_round,omitempty"`
	StartedAt  time.Time          `json:"started_at"`
	EndedAt    time.Time          `json:"ended_at"`
}

// NewSessionRecord snapshots a finished controller status.
func NewSessionRecord(guildID string, st hunt.Status, stopped bool) *SessionRecord {
	rounds := st.History
	if rounds == nil {
		rounds = []hunt.RoundRecord{}
	}
	return &SessionRecord{
		ID:         st.SessionID,
		GuildID:    guildID,
		Phase:      st.Phase,
		Stopped:    stopped,
		Rounds:     rounds,
		Result:     st.Result,
		Error:      st.Error,
		ErrorRound: st.ErrorRound,
		StartedAt:  st.StartedAt,
		EndedAt:    st.EndedAt,
	}
}

// HistoryStore persists finished sessions.
type HistoryStore interface {
	SaveSession(ctx context.Context, rec *SessionRecord) error
	GetSession(ctx context.Context, id string) (*SessionRecord, error)
	// ListSessions returns the newest sessions first. limit <= 0 means all.
	ListSessions(ctx context.Context, limit int) ([]*SessionRecord, error)
	Close() error
}
