package hunt

import (
	"fmt"
	"net/url"
	"time"
)

// Candidate is a guild member under suspicion.
type Candidate struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	DisplayName string   `json:"display_name"`
	AvatarURL   string   `json:"avatar"`
	RoleIDs     []string `json:"roles"`

	// OriginallyPrivileged is captured when the registry loads and is the
	// state every candidate is restored to.
	OriginallyPrivileged bool `json:"originally_privileged"`
}

// Name returns the name shown in progress reports.
func (c Candidate) Name() string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	if c.Username != "" {
		return c.Username
	}
	return c.ID
}

func candidateNames(cs []Candidate) []string {
	names := make([]string, len(cs))
	for i, c := range cs {
		names[i] = c.Name()
	}
	return names
}

// Phase is the lifecycle state of a hunt session.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseRunning  Phase = "running"
	PhaseFound    Phase = "found"
	PhaseNotFound Phase = "not_found"
	PhaseFailed   Phase = "failed"
)

// Direction records which half a bisection round kept.
type Direction string

const (
	DirectionNone       Direction = ""
	DirectionFirstHalf  Direction = "first-half"
	DirectionSecondHalf Direction = "second-half"
)

// Verdict is the outcome of one observation window.
type Verdict int

const (
	VerdictAbsent Verdict = iota
	VerdictPresent
	VerdictInconclusive
)

func (v Verdict) String() string {
	switch v {
	case VerdictAbsent:
		return "absent"
	case VerdictPresent:
		return "present"
	case VerdictInconclusive:
		return "inconclusive"
	}
	return fmt.Sprintf("verdict(%d)", int(v))
}

func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *Verdict) UnmarshalText(b []byte) error {
	switch string(b) {
	case "absent":
		*v = VerdictAbsent
	case "present":
		*v = VerdictPresent
	case "inconclusive":
		*v = VerdictInconclusive
	default:
		return fmt.Errorf("unknown verdict %q", b)
	}
	return nil
}

// RoundRecord is an immutable entry of the session history.
type RoundRecord struct {
	Step          int `json:"step"`
	TotalEstimate int `json:"total_estimate"`

	// CandidateNames lists the members that held access while the probe was out.
	CandidateNames []string  `json:"candidate_names"`
	Direction      Direction `json:"direction,omitempty"`
	Verdict        Verdict   `json:"verdict"`
	Remaining      int       `json:"remaining"`
	Confirmation   bool      `json:"confirmation,omitempty"`
	Tag            string    `json:"tag"`
	At             time.Time `json:"at"`
}

// LeakerResult is produced by the confirmation stage.
type LeakerResult struct {
	Candidate Candidate `json:"candidate"`
	Confirmed bool      `json:"confirmed"`
}

const (
	MinObserveTimeout = time.Second
	MaxObserveTimeout = 120 * time.Second

	DefaultObserveTimeout = 10 * time.Second
	DefaultSettleDelay    = time.Second
)

// observeTimeoutFloor is lowered by tests so that absent verdicts do not cost
// a full second each.
var observeTimeoutFloor = MinObserveTimeout

// SessionConfig is fixed for the lifetime of one session.
type SessionConfig struct {
	// Platform is the authenticated connection used for every call.
	Platform Platform `json:"-"`

	GuildID        string   `json:"guild_id"`
	RoleIDs        []string `json:"role_ids"`
	LeakChannelID  string   `json:"leak_channel_id"`
	ProbeChannelID string   `json:"probe_channel_id"`

	// WebhookURL, when set, is used instead of posting as the account.
	WebhookURL string `json:"webhook_url,omitempty"`

	// ProbeTemplate is the canary text; "{nonce}" is replaced by the per-round
	// nonce, otherwise the nonce is appended.
	ProbeTemplate  string        `json:"probe_template"`
	ObserveTimeout time.Duration `json:"observe_timeout"`
	SettleDelay    time.Duration `json:"settle_delay"`

	// ProxyURL is informational here; the platform is expected to have been
	// dialed through it already.
	ProxyURL string `json:"proxy_url,omitempty"`
}

// TimeoutFromSeconds converts a user supplied timeout in seconds.
func TimeoutFromSeconds(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}

// Validate checks the config and fills defaults for zero durations.
func (c *SessionConfig) Validate() error {
	if c.Platform == nil {
		return fmt.Errorf("%w: no platform connection", ErrInvalidConfig)
	}
	if c.GuildID == "" {
		return fmt.Errorf("%w: guild id is required", ErrInvalidConfig)
	}
	if len(c.RoleIDs) == 0 {
		return fmt.Errorf("%w: at least one role id is required", ErrInvalidConfig)
	}
	if c.LeakChannelID == "" {
		return fmt.Errorf("%w: leak channel id is required", ErrInvalidConfig)
	}
	if c.ProbeChannelID == "" && c.WebhookURL == "" {
		return fmt.Errorf("%w: either a probe channel id or a webhook url is required", ErrInvalidConfig)
	}
	if c.ProbeTemplate == "" {
		return fmt.Errorf("%w: probe template is empty", ErrInvalidConfig)
	}
	if c.ObserveTimeout == 0 {
		c.ObserveTimeout = DefaultObserveTimeout
	}
	if c.ObserveTimeout < observeTimeoutFloor || c.ObserveTimeout > MaxObserveTimeout {
		return fmt.Errorf("%w: observe timeout %s outside [%s, %s]",
			ErrInvalidConfig, c.ObserveTimeout, MinObserveTimeout, MaxObserveTimeout)
	}
	if c.SettleDelay < 0 {
		return fmt.Errorf("%w: negative settle delay", ErrInvalidConfig)
	}
	if c.WebhookURL != "" {
		u, err := url.Parse(c.WebhookURL)
		if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
			return fmt.Errorf("%w: malformed webhook url", ErrInvalidConfig)
		}
	}
	if c.ProxyURL != "" {
		if err := ValidateProxyURL(c.ProxyURL); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}

// ValidateProxyURL accepts http, https and socks5 proxy endpoints.
func ValidateProxyURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("proxy url: %w", err)
	}
	switch u.Scheme {
	case "http", "https", "socks5", "socks5h":
	default:
		return fmt.Errorf("proxy url: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("proxy url: missing host")
	}
	return nil
}
