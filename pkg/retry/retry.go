// Package retry provides a generic retry-with-backoff helper shared by every
// outbound verification strategy and the client recovery orchestrator.
package retry

import (
	"context"
	"math"
	"time"

	"github.com/brandlinkhq/payment-service/pkg/errors"
)

const (
	DefaultMaxAttempts    = 3
	DefaultBaseDelay      = 2 * time.Second
	DefaultMultiplier     = 1.5
	DefaultAttemptTimeout = 30 * time.Second
)

// Config controls retry behaviour.
type Config struct {
	// MaxAttempts is the number of tries per operation, including the first.
	MaxAttempts int
	// BaseDelay is the delay before the second attempt.
	BaseDelay time.Duration
	// Multiplier grows the delay after each failed attempt.
	Multiplier float64
	// AttemptTimeout bounds a single attempt. An attempt that outlives it
	// is abandoned (left to finish silently) and counted as a retryable
	// failure.
	AttemptTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.Multiplier <= 1 {
		c.Multiplier = DefaultMultiplier
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = DefaultAttemptTimeout
	}
	return c
}

// Delay returns the backoff delay after the given zero-based attempt.
func (c Config) Delay(attempt int) time.Duration {
	cfg := c.withDefaults()
	return time.Duration(float64(cfg.BaseDelay) * math.Pow(cfg.Multiplier, float64(attempt)))
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks an error as definitive so Do stops retrying immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

type attemptResult[T any] struct {
	value T
	err   error
}

// Do runs fn up to cfg.MaxAttempts times, racing each attempt against
// cfg.AttemptTimeout and sleeping an exponentially growing delay between
// attempts. A timed-out attempt keeps running in its goroutine; its result
// is discarded. Errors wrapped with Permanent are returned without further
// attempts.
func Do[T any](ctx context.Context, cfg Config, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = cfg.withDefaults()

	var zero T
	var lastErr error

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(cfg.Delay(attempt - 1)):
			case <-ctx.Done():
				return zero, errors.NewAppError(errors.ErrTimeout, "retry aborted", ctx.Err())
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, cfg.AttemptTimeout)
		resultCh := make(chan attemptResult[T], 1)

		go func() {
			value, err := fn(attemptCtx)
			resultCh <- attemptResult[T]{value: value, err: err}
		}()

		select {
		case result := <-resultCh:
			cancel()
			if result.err == nil {
				return result.value, nil
			}
			if IsPermanent(result.err) {
				return zero, errors.Unwrap(result.err)
			}
			lastErr = result.err
		case <-attemptCtx.Done():
			cancel()
			if ctx.Err() != nil {
				return zero, errors.NewAppError(errors.ErrTimeout, "retry aborted", ctx.Err())
			}
			lastErr = errors.NewAppError(errors.ErrTimeout, "attempt timed out", attemptCtx.Err())
		}
	}

	return zero, errors.Wrap(lastErr, "all attempts exhausted")
}
