package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go"
)

// RetryPolicy bounds a call by attempt count, a fixed inter-attempt delay and
// a total wall-clock budget; whichever limit is hit first ends the sequence.
type RetryPolicy struct {
	Attempts   uint
	Delay      time.Duration
	MaxElapsed time.Duration
}

// RetryError is returned once a call gives up. It matches ErrRetryExhausted
// and unwraps to the error of the last attempt.
type RetryError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("backend: %s: gave up after %d attempt(s): %v", e.Op, e.Attempts, e.Err)
}

func (e *RetryError) Unwrap() error { return e.Err }

// Is reports ErrRetryExhausted as a match.
func (e *RetryError) Is(target error) bool { return target == ErrRetryExhausted }

// Do runs fn until it succeeds or the policy is exhausted. Errors wrapping
// ErrProtocol end the sequence immediately. fn receives a context bounded by
// MaxElapsed.
func (p RetryPolicy) Do(ctx context.Context, op string, logger *slog.Logger, fn func(ctx context.Context) error) error {
	if p.MaxElapsed > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.MaxElapsed)
		defer cancel()
	}
	attempts := p.Attempts
	if attempts == 0 {
		attempts = 1
	}

	var (
		lastErr error
		n       int
	)
	err := retry.Do(
		func() error {
			n++
			err := fn(ctx)
			if err == nil {
				return nil
			}
			lastErr = err
			if errors.Is(err, ErrProtocol) {
				return retry.Unrecoverable(err)
			}
			return err
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(p.Delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(attempt uint, err error) {
			logger.Debug("backend call failed", "op", op, "attempt", attempt+1, "error", err)
		}),
	)
	if err == nil {
		return nil
	}
	if lastErr == nil {
		lastErr = err
	}
	return &RetryError{Op: op, Attempts: n, Err: lastErr}
}
