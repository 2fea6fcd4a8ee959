package hunt

import (
	"context"
	"time"
)

// RetryPolicy bounds how transient platform failures are retried.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultRetryPolicy tries a call up to three times with 500ms, 1s backoff.
var DefaultRetryPolicy = RetryPolicy{
	Attempts:  3,
	BaseDelay: 500 * time.Millisecond,
	MaxDelay:  4 * time.Second,
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := p.BaseDelay << (attempt - 1)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Do runs op until it succeeds, returns a non-transient error, or the attempts
// are used up. A rate limit hint from the platform stretches the wait.
func (p RetryPolicy) Do(ctx context.Context, op func(context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if !IsTransient(err) || attempt == attempts {
			return err
		}

		wait := p.backoff(attempt)
		if hint := retryAfter(err); hint > wait {
			wait = hint
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}
