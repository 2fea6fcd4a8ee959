package hunt

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTag(t *testing.T) {
	assert.Equal(t, "leak test [abc] please ignore", RenderTag("leak test [{nonce}] please ignore", "abc"))
	assert.Equal(t, "canary abc", RenderTag("canary", "abc"))
}

func TestProbeService_TagsAreUnique(t *testing.T) {
	cfg := testConfig(newTestPlatform(0, ""))
	ps := NewProbeService(cfg.Platform, &cfg, fastRetry)

	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		tag := ps.NextTag()
		require.False(t, seen[tag], tag)
		require.True(t, strings.HasPrefix(tag, "canary "))
		seen[tag] = true
	}
}

func TestProbeService_SendPaths(t *testing.T) {
	p := newTestPlatform(0, "")
	cfg := testConfig(p)

	receipt, err := NewProbeService(p, &cfg, fastRetry).Send(context.Background(), 1, "t1")
	require.NoError(t, err)
	assert.Equal(t, "account", receipt.Via)
	assert.Equal(t, "t1", receipt.Tag)

	cfg.WebhookURL = "https://example.invalid/hook"
	receipt, err = NewProbeService(p, &cfg, fastRetry).Send(context.Background(), 1, "t2")
	require.NoError(t, err)
	assert.Equal(t, "webhook", receipt.Via)
	assert.Equal(t, []string{"t1", "t2"}, p.Posts())
}

func TestProbeService_SendError(t *testing.T) {
	p := newTestPlatform(0, "")
	p.PostErr = func(string) error { return errors.New("no access") }
	cfg := testConfig(p)

	_, err := NewProbeService(p, &cfg, fastRetry).Send(context.Background(), 3, "t")
	var pe *ProbeSendError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 3, pe.Round)
	round, ok := ErrorRound(err)
	assert.True(t, ok)
	assert.Equal(t, 3, round)
}

func TestProbeService_RetriesTransientWebhookFailure(t *testing.T) {
	p := newTestPlatform(0, "")
	calls := 0
	p.PostErr = func(string) error {
		calls++
		if calls == 1 {
			return TransientAfter(errors.New("webhook returned 429"), time.Millisecond)
		}
		return nil
	}
	cfg := testConfig(p)
	cfg.WebhookURL = "https://example.invalid/hook"

	receipt, err := NewProbeService(p, &cfg, fastRetry).Send(context.Background(), 2, "t")
	require.NoError(t, err)
	assert.Equal(t, "webhook", receipt.Via)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []string{"t"}, p.Posts())
}

func TestProbeService_GivesUpAfterRetries(t *testing.T) {
	p := newTestPlatform(0, "")
	calls := 0
	p.PostErr = func(string) error {
		calls++
		return Transient(errors.New("bad gateway"))
	}
	cfg := testConfig(p)

	_, err := NewProbeService(p, &cfg, fastRetry).Send(context.Background(), 1, "t")
	var pe *ProbeSendError
	require.ErrorAs(t, err, &pe)
	assert.True(t, IsTransient(err))
	assert.Equal(t, fastRetry.Attempts, calls)
	assert.Empty(t, p.Posts())
}
