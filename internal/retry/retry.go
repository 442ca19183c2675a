// Package retry implements the retry-with-backoff wrapper used by every
// network operation in rcc.
//
// Unlike a streaming backoff loop, provisioning steps need exact
// semantics: run the operation at most MaxAttempts times, report each
// retry, and surface "gave up" as a distinct error kind so callers can
// decide whether to roll back.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Backoff selects the delay progression between attempts.
type Backoff int

const (
	// Exponential sleeps BaseDelay * 2^attempt before the next try
	// (attempt is 0-indexed over failed attempts).
	Exponential Backoff = iota

	// Linear sleeps a constant BaseDelay before every retry.
	Linear
)

// Policy configures one retried operation. Policies are immutable and
// passed by value per call site.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Backoff     Backoff
}

// OnRetry is invoked after every failed attempt except the last, with
// the 1-based attempt number that just failed and its error.
type OnRetry func(attempt int, err error)

// ExhaustedError signals that all attempts failed. It wraps the last
// underlying error, which stays reachable via errors.Is/As.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("operation failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Exhausted reports whether err is (or wraps) an ExhaustedError.
func Exhausted(err error) bool {
	var ee *ExhaustedError
	return errors.As(err, &ee)
}

// sleep is swapped out in tests to keep them fast and deterministic.
var sleep = sleepCtx

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do runs op under the policy. It returns nil on the first success,
// ctx.Err() if the context is cancelled between attempts, and an
// *ExhaustedError wrapping the last failure otherwise. A policy with
// MaxAttempts < 1 is treated as a single attempt.
func Do(ctx context.Context, p Policy, op func() error, onRetry OnRetry) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var last error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		last = op()
		if last == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}
		if onRetry != nil {
			onRetry(attempt+1, last)
		}
		if err := sleep(ctx, p.delay(attempt)); err != nil {
			return err
		}
	}
	return &ExhaustedError{Attempts: attempts, Last: last}
}

func (p Policy) delay(attempt int) time.Duration {
	if p.Backoff == Linear {
		return p.BaseDelay
	}
	return p.BaseDelay * (1 << uint(attempt))
}
