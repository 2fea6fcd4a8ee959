package common

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flashbots/leakhunt/config"
	"github.com/flashbots/leakhunt/services"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	require.Equal(t, slog.LevelError, ParseLevel("error"))
	require.Equal(t, slog.LevelInfo, ParseLevel("chatty"))
}

func TestNewHistoryStore(t *testing.T) {
	st, err := NewHistoryStore(config.StoreConfig{Driver: "memory"})
	require.NoError(t, err)
	require.IsType(t, &services.InMemoryStore{}, st)
	require.NoError(t, st.Close())

	st, err = NewHistoryStore(config.StoreConfig{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "h.db")})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	_, err = NewHistoryStore(config.StoreConfig{Driver: "mongo"})
	require.Error(t, err)
}
