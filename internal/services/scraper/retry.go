package scraper

import (
	"context"
	"math/rand"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/common"
)

// RetryPolicy retries transient page-level failures with exponential
// backoff and jitter. Invalid and drift errors are never retried; a page
// that keeps failing is skipped, not the whole run.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	logger      arbor.ILogger
}

// NewRetryPolicy builds the policy used for listing-page fetches.
func NewRetryPolicy(attempts int, logger arbor.ILogger) *RetryPolicy {
	if attempts < 1 {
		attempts = 1
	}
	return &RetryPolicy{
		MaxAttempts: attempts,
		BaseDelay:   time.Second,
		MaxDelay:    15 * time.Second,
		logger:      logger,
	}
}

// Do runs fn up to MaxAttempts times, sleeping between attempts. Only
// KindTransient failures retry.
func (p *RetryPolicy) Do(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if common.KindOf(lastErr) != common.KindTransient {
			return lastErr
		}
		if attempt == p.MaxAttempts {
			break
		}

		delay := p.backoff(attempt)
		p.logger.Warn().
			Err(lastErr).
			Str("op", op).
			Int("attempt", attempt).
			Dur("retry_in", delay).
			Msg("Transient failure, retrying")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return common.E(common.KindCancelled, op, ctx.Err())
		}
	}
	return lastErr
}

// backoff doubles the base delay per attempt and adds up to 25% jitter.
func (p *RetryPolicy) backoff(attempt int) time.Duration {
	delay := p.BaseDelay << (attempt - 1)
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(delay) / 4))
	return delay + jitter
}
