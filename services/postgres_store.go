package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore implements HistoryStore with PostgreSQL persistence.
type PostgresStore struct {
	sqlHistory
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"`
	Database string `mapstructure:"database" yaml:"database"`
	SSLMode  string `mapstructure:"sslmode" yaml:"sslmode"`
}

// ConnectionString returns the PostgreSQL connection string.
func (c *PostgresConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslMode)
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(config *PostgresConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", config.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	store := &PostgresStore{sqlHistory{db: db, dollar: true}}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS hunt_sessions (
		id VARCHAR(64) PRIMARY KEY,
		guild_id VARCHAR(32) NOT NULL,
		phase VARCHAR(16) NOT NULL,
		stopped BOOLEAN NOT NULL DEFAULT FALSE,
		rounds TEXT NOT NULL,
		result TEXT,
		error TEXT NOT NULL DEFAULT '',
		error_round INTEGER NOT NULL DEFAULT 0,
		started_at TIMESTAMP WITH TIME ZONE NOT NULL,
		ended_at TIMESTAMP WITH TIME ZONE NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_hunt_sessions_started ON hunt_sessions(started_at);
	`

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(ctx, schema)
	return err
}
