// Package common provides shared helpers for the leakhunt commands.
//
// It turns a loaded config.AppConfig into the runtime pieces every command
// needs:
//
//   - a structured logger
//   - the session history store selected by store.driver
//   - a connected Discord platform
package common

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/flashbots/leakhunt/config"
	"github.com/flashbots/leakhunt/discord"
	"github.com/flashbots/leakhunt/services"
)

// NewLogger creates a slog logger writing to stderr at the given level.
func NewLogger(level string, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if json {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// ParseLevel maps debug, info, warn and error to slog levels. Unknown values
// mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// NewHistoryStore opens the store selected by cfg.Driver.
func NewHistoryStore(cfg config.StoreConfig) (services.HistoryStore, error) {
	switch cfg.Driver {
	case "", "memory":
		return services.NewInMemoryStore(), nil
	case "sqlite":
		return services.NewSQLiteStore(cfg.SQLitePath)
	case "postgres":
		return services.NewPostgresStore(&cfg.Postgres)
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

// NewPlatform creates a Discord client from cfg and opens its gateway.
func NewPlatform(ctx context.Context, cfg *config.AppConfig, log *slog.Logger) (*discord.Client, error) {
	client, err := discord.New(cfg.DiscordClientConfig(log))
	if err != nil {
		return nil, err
	}
	if err := client.Open(ctx); err != nil {
		return nil, err
	}
	return client, nil
}
