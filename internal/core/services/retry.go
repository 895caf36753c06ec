package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
	"github.com/ihssane2002/chatbot-entreprise/internal/logger"
)

// RetryPolicy retries transient failures of remote collaborators with
// exponential backoff: Backoff, 2*Backoff, 4*Backoff, ...
type RetryPolicy struct {
	// Attempts is the total number of calls, including the first one.
	Attempts int

	// Backoff is the delay after the first failure.
	Backoff time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy returns three attempts starting at one second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Backoff: time.Second}
}

// Do runs fn until it succeeds, fails permanently, or the attempts run out.
// Exhaustion is reported as domain.ErrServiceUnavailable wrapping the last error.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !transient(lastErr) {
			return fmt.Errorf("%s: %w", op, lastErr)
		}
		if i == attempts-1 {
			break
		}
		delay := p.Backoff << i
		logger.Warn("%s failed (attempt %d/%d), retrying in %s: %v", op, i+1, attempts, delay, lastErr)
		if err := sleep(ctx, delay); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrServiceUnavailable, lastErr)
}

// transient reports whether an error is worth retrying.
func transient(err error) bool {
	switch {
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrDimensionMismatch),
		errors.Is(err, domain.ErrServiceUnavailable):
		return false
	default:
		return true
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
