package hunt

import (
	"context"
	"errors"
	"strings"
	"time"
)

var errStreamClosed = errors.New("leak channel stream closed")

// Observer waits for a canary tag on the leak channel.
type Observer struct {
	sub Subscription
}

// NewObserver wraps an open subscription. The caller owns the subscription.
func NewObserver(sub Subscription) *Observer {
	return &Observer{sub: sub}
}

// Healthy reports whether the underlying stream is still delivering.
func (o *Observer) Healthy() bool {
	select {
	case <-o.sub.Done():
		return false
	default:
		return true
	}
}

// Await resolves to VerdictPresent as soon as a message containing tag shows
// up, VerdictAbsent when timeout elapses first, and VerdictInconclusive with
// the cause when the stream fails. A cancelled ctx returns immediately with
// VerdictInconclusive and ctx.Err().
func (o *Observer) Await(ctx context.Context, tag string, timeout time.Duration) (Verdict, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return VerdictInconclusive, ctx.Err()
		case <-o.sub.Done():
			err := o.sub.Err()
			if err == nil {
				err = errStreamClosed
			}
			return VerdictInconclusive, err
		case msg, ok := <-o.sub.Messages():
			if !ok {
				return VerdictInconclusive, errStreamClosed
			}
			if strings.Contains(msg.Text(), tag) {
				return VerdictPresent, nil
			}
		case <-timer.C:
			return VerdictAbsent, nil
		}
	}
}
