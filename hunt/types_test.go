package hunt

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionConfig_Validate(t *testing.T) {
	p := newTestPlatform(0, "")

	cfg := testConfig(p)
	cfg.ObserveTimeout = 0
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultObserveTimeout, cfg.ObserveTimeout)

	bad := []func(*SessionConfig){
		func(c *SessionConfig) { c.Platform = nil },
		func(c *SessionConfig) { c.GuildID = "" },
		func(c *SessionConfig) { c.RoleIDs = nil },
		func(c *SessionConfig) { c.LeakChannelID = "" },
		func(c *SessionConfig) { c.ProbeChannelID = "" },
		func(c *SessionConfig) { c.ProbeTemplate = "" },
		func(c *SessionConfig) { c.ObserveTimeout = 121 * time.Second },
		func(c *SessionConfig) { c.SettleDelay = -time.Second },
		func(c *SessionConfig) { c.WebhookURL = "ftp://nope" },
		func(c *SessionConfig) { c.ProxyURL = "gopher://127.0.0.1:7897" },
	}
	for i, mutate := range bad {
		c := testConfig(p)
		mutate(&c)
		assert.ErrorIs(t, c.Validate(), ErrInvalidConfig, "case %d", i)
	}
}

func TestValidateProxyURL(t *testing.T) {
	for _, ok := range []string{"http://127.0.0.1:7897", "socks5://127.0.0.1:7897", "socks5h://proxy:1080"} {
		assert.NoError(t, ValidateProxyURL(ok), ok)
	}
	for _, bad := range []string{"127.0.0.1:7897", "socks5://", "ws://x"} {
		assert.Error(t, ValidateProxyURL(bad), bad)
	}
}

func TestRoundRecordJSON(t *testing.T) {
	rec := RoundRecord{Step: 2, TotalEstimate: 3, CandidateNames: []string{"a"}, Direction: DirectionFirstHalf, Verdict: VerdictPresent}
	b, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"verdict":"present"`)
	assert.Contains(t, string(b), `"direction":"first-half"`)

	var back RoundRecord
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, VerdictPresent, back.Verdict)
}

func TestTimeoutFromSeconds(t *testing.T) {
	assert.Equal(t, 10*time.Second, TimeoutFromSeconds(10))
}
