package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/flashbots/leakhunt/hunt"
)

// sqlHistory holds the queries shared by the PostgreSQL and SQLite stores.
// Rounds and result are stored as JSON text. Queries are written with "?"
// placeholders and rebound to $n for PostgreSQL.
type sqlHistory struct {
	db     *sql.DB
	dollar bool
}

func (h *sqlHistory) rebind(query string) string {
	if !h.dollar {
		return query
	}
	var (
		b strings.Builder
		n int
	)
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const upsertSession = `
INSERT INTO hunt_sessions
	(id, guild_id, phase, stopped, rounds, result, error, error_round, started_at, ended_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
	guild_id = EXCLUDED.guild_id,
	phase = EXCLUDED.phase,
	stopped = EXCLUDED.stopped,
	rounds = EXCLUDED.rounds,
	result = EXCLUDED.result,
	error = EXCLUDED.error,
	error_round = EXCLUDED.error_round,
	started_at = EXCLUDED.started_at,
	ended_at = EXCLUDED.ended_at
`

const selectSessions = `
SELECT id, guild_id, phase, stopped, rounds, result, error, error_round, started_at, ended_at
FROM hunt_sessions
`

func (h *sqlHistory) SaveSession(ctx context.Context, rec *SessionRecord) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rounds, err := json.Marshal(rec.Rounds)
	if err != nil {
		return fmt.Errorf("encoding rounds: %w", err)
	}
	var result sql.NullString
	if rec.Result != nil {
		b, err := json.Marshal(rec.Result)
		if err != nil {
			return fmt.Errorf("encoding result: %w", err)
		}
		result = sql.NullString{String: string(b), Valid: true}
	}

	_, err = h.db.ExecContext(ctx, h.rebind(upsertSession),
		rec.ID,
		rec.GuildID,
		string(rec.Phase),
		rec.Stopped,
		string(rounds),
		result,
		rec.Error,
		rec.ErrorRound,
		rec.StartedAt.UTC(),
		rec.EndedAt.UTC(),
	)
	return err
}

func (h *sqlHistory) GetSession(ctx context.Context, id string) (*SessionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rec, err := scanSession(h.db.QueryRowContext(ctx, h.rebind(selectSessions+" WHERE id = ?"), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	return rec, err
}

func (h *sqlHistory) ListSessions(ctx context.Context, limit int) ([]*SessionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	query := selectSessions + " ORDER BY started_at DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, h.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*SessionRecord, error) {
	var (
		rec    SessionRecord
		phase  string
		rounds string
		result sql.NullString
	)
	err := row.Scan(&rec.ID, &rec.GuildID, &phase, &rec.Stopped, &rounds, &result,
		&rec.Error, &rec.ErrorRound, &rec.StartedAt, &rec.EndedAt)
	if err != nil {
		return nil, err
	}
	rec.Phase = hunt.Phase(phase)

	if err := json.Unmarshal([]byte(rounds), &rec.Rounds); err != nil {
		return nil, fmt.Errorf("decoding rounds of %s: %w", rec.ID, err)
	}
	if result.Valid {
		rec.Result = new(hunt.LeakerResult)
		if err := json.Unmarshal([]byte(result.String), rec.Result); err != nil {
			return nil, fmt.Errorf("decoding result of %s: %w", rec.ID, err)
		}
	}
	return &rec, nil
}

func (h *sqlHistory) Close() error {
	return h.db.Close()
}
