package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/flashbots/leakhunt/hunt"
)

type webhookPayload struct {
	Content  string `json:"content"`
	Username string `json:"username,omitempty"`
}

// postWebhook executes an incoming webhook. A 429 carries its Retry-After as
// the retry hint.
func postWebhook(ctx context.Context, client *http.Client, webhookURL, username, content string) error {
	body, err := json.Marshal(webhookPayload{Content: content, Username: username})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return hunt.Transient(fmt.Errorf("webhook request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err = fmt.Errorf("webhook returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return hunt.TransientAfter(err, retryAfterHeader(resp.Header))
	case retryableStatus(resp.StatusCode):
		return hunt.Transient(err)
	}
	return err
}

func retryAfterHeader(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}
