package discord

import (
	"errors"
	"io"
	"net"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"github.com/flashbots/leakhunt/hunt"
)

// classify marks rate limits, server errors and network failures as
// transient. Everything else (auth, permissions, unknown ids) is fatal.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var rl *discordgo.RateLimitError
	if errors.As(err, &rl) && rl.RateLimit != nil && rl.TooManyRequests != nil {
		return hunt.TransientAfter(err, rl.RetryAfter)
	}

	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil {
		if retryableStatus(rest.Response.StatusCode) {
			return hunt.Transient(err)
		}
		return err
	}

	var nerr net.Error
	if errors.As(err, &nerr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return hunt.Transient(err)
	}
	return err
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
