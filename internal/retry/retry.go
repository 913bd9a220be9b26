// Package retry applies an explicit exponential-backoff policy to outbound
// calls. The policy is a plain value handed to each pipeline component, so
// retry behavior is a visible collaborator rather than hidden wrapping, and
// the retryable-error predicate (faults.IsRetryable) is testable on its own.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/amolrairikar/spotify-listening-history-app/internal/faults"
	"github.com/amolrairikar/spotify-listening-history-app/internal/logging"
)

const (
	// DefaultMaxAttempts bounds the total number of tries, first call included.
	DefaultMaxAttempts = 5

	// DefaultBaseDelay is the initial backoff delay; it doubles each attempt.
	DefaultBaseDelay = 500 * time.Millisecond
)

// Policy describes how a transient-failure-prone operation is retried.
type Policy struct {
	MaxAttempts uint64
	BaseDelay   time.Duration
}

// DefaultPolicy returns the standard pipeline policy: 5 attempts total with
// a doubling delay starting at 500ms.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts, BaseDelay: DefaultBaseDelay}
}

// Do runs fn under the policy. Transient faults are retried with exponential
// backoff until the attempt budget is exhausted, then the final error is
// returned unchanged. Any other error propagates on the first attempt.
func (p Policy) Do(ctx context.Context, op string, fn func() error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = DefaultMaxAttempts
	}
	baseDelay := p.BaseDelay
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = baseDelay
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0

	attempt := 0
	wrapped := func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if !faults.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, delay time.Duration) {
		logging.Warn().
			Str("operation", op).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Err(err).
			Msg("Retrying after transient failure")
	}

	b := backoff.WithContext(backoff.WithMaxRetries(exp, maxAttempts-1), ctx)
	if err := backoff.RetryNotify(wrapped, b, notify); err != nil {
		logging.Error().
			Str("operation", op).
			Int("attempts", attempt).
			Err(err).
			Msg("Giving up")
		return err
	}

	if attempt > 1 {
		logging.Info().
			Str("operation", op).
			Int("attempts", attempt).
			Msg("Succeeded after retry")
	}
	return nil
}
