package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements HistoryStore on a local SQLite file.
type SQLiteStore struct {
	sqlHistory
}

// NewSQLiteStore opens or creates the database at path and ensures the schema.
// ":memory:" gives a private in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One writer at a time; also keeps ":memory:" on a single connection.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	for _, p := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	} {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", p, err)
		}
	}

	schema := `
CREATE TABLE IF NOT EXISTS hunt_sessions (
  id          TEXT PRIMARY KEY,
  guild_id    TEXT NOT NULL,
  phase       TEXT NOT NULL,
  stopped     BOOLEAN NOT NULL DEFAULT 0,
  rounds      TEXT NOT NULL,
  result      TEXT,
  error       TEXT NOT NULL DEFAULT '',
  error_round INTEGER NOT NULL DEFAULT 0,
  started_at  DATETIME NOT NULL,
  ended_at    DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_hunt_sessions_started ON hunt_sessions(started_at);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteStore{sqlHistory{db: db}}, nil
}
