package hunt

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
)

// NoncePlaceholder is substituted in probe templates.
const NoncePlaceholder = "{nonce}"

// ProbeReceipt describes a delivered canary.
type ProbeReceipt struct {
	Tag    string    `json:"tag"`
	Via    string    `json:"via"`
	SentAt time.Time `json:"sent_at"`
}

// ProbeService posts canaries either as the account or through a webhook.
type ProbeService struct {
	poster     MessagePoster
	channelID  string
	webhookURL string
	template   string
	retry      RetryPolicy

	seq atomic.Uint64
	now func() time.Time
}

// NewProbeService creates a probe service for the session's send path.
// Transient delivery failures are retried with retry.
func NewProbeService(poster MessagePoster, cfg *SessionConfig, retry RetryPolicy) *ProbeService {
	return &ProbeService{
		poster:     poster,
		channelID:  cfg.ProbeChannelID,
		webhookURL: cfg.WebhookURL,
		template:   cfg.ProbeTemplate,
		retry:      retry,
		now:        time.Now,
	}
}

// NextTag renders the template with a nonce nobody else can have produced:
// a per-service sequence number, the current time and a random suffix.
func (p *ProbeService) NextTag() string {
	seq := p.seq.Add(1)
	nonce := fmt.Sprintf("%s-%d-%s",
		strconv.FormatInt(p.now().UnixMilli(), 36), seq, uuid.NewString()[:8])
	return RenderTag(p.template, nonce)
}

// RenderTag places nonce into template.
func RenderTag(template, nonce string) string {
	if strings.Contains(template, NoncePlaceholder) {
		return strings.ReplaceAll(template, NoncePlaceholder, nonce)
	}
	return template + " " + nonce
}

// Send delivers a message containing tag. The receipt time is taken before
// the first attempt.
func (p *ProbeService) Send(ctx context.Context, round int, tag string) (*ProbeReceipt, error) {
	receipt := &ProbeReceipt{Tag: tag, SentAt: p.now()}

	post := func(ctx context.Context) error {
		return p.poster.PostMessage(ctx, p.channelID, tag)
	}
	receipt.Via = "account"
	if p.webhookURL != "" {
		receipt.Via = "webhook"
		post = func(ctx context.Context) error {
			return p.poster.PostWebhook(ctx, p.webhookURL, tag)
		}
	}

	if err := p.retry.Do(ctx, post); err != nil {
		return nil, &ProbeSendError{Round: round, Err: err}
	}
	return receipt, nil
}
