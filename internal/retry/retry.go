// Package retry wraps remote calls in a capped, fixed-interval retry loop.
package retry

import (
	"context"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

// Policy configures Do.
type Policy struct {
	// Attempts is the total number of calls, including the first one.
	// Values below 1 mean a single attempt.
	Attempts int

	// Interval is the fixed pause between attempts.
	Interval time.Duration

	// Retryable reports whether an error is transient. A nil Retryable
	// never retries.
	Retryable func(error) bool

	// OnRetry, when set, is called before each pause with the number of the
	// attempt that just failed.
	OnRetry func(attempt int, err error)
}

// Do calls fn until it succeeds, fails with a non-retryable error, or the
// attempt cap is reached. The last error is returned unwrapped.
// Cancelling ctx stops the loop with ctx.Err().
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	// NewConstant panics on non-positive intervals.
	interval := p.Interval
	if interval <= 0 {
		interval = time.Nanosecond
	}

	backoff := goretry.WithMaxRetries(uint64(attempts-1), goretry.NewConstant(interval))

	attempt := 0
	return goretry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if p.Retryable == nil || !p.Retryable(err) {
			return err
		}
		if p.OnRetry != nil && attempt < attempts {
			p.OnRetry(attempt, err)
		}
		return goretry.RetryableError(err)
	})
}
