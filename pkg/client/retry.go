package client

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/Sternrassler/storefront-cdn/pkg/logging"
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// Attempts is the maximum number of executions (including the first).
	Attempts int

	// BaseDelay is the wait after the first failure. The wait after
	// failure i (0-indexed) is BaseDelay * 2^i.
	BaseDelay time.Duration
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts:  3,
		BaseDelay: 1 * time.Second,
	}
}

// Permanent marks err as not worth retrying. WithRetry returns the
// wrapped error as soon as it sees it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// schedule builds the exponential backoff policy for cfg.
func (cfg RetryConfig) schedule(ctx context.Context) backoff.BackOffContext {
	attempts := cfg.Attempts
	if attempts < 1 {
		attempts = 1
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = cfg.BaseDelay
	exp.RandomizationFactor = 0
	exp.Multiplier = 2
	exp.MaxInterval = time.Duration(math.MaxInt64)
	exp.MaxElapsedTime = 0

	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(attempts-1)), ctx)
}

// WithRetry executes op up to cfg.Attempts times with exponential backoff.
// Success on any attempt returns immediately. When every attempt fails,
// the last error is returned as-is. The wait between attempts is
// interrupted by ctx cancellation.
func WithRetry(ctx context.Context, cfg RetryConfig, op func(ctx context.Context) error) error {
	logger := logging.NewLogger(logging.ComponentRetry)
	attempt := 0
	stopped := false
	err := backoff.RetryNotify(func() error {
		attempt++
		err := op(ctx)
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			stopped = true
		}
		return err
	}, cfg.schedule(ctx), func(err error, wait time.Duration) {
		cdnRetriesTotal.Inc()
		cdnRetryBackoffSeconds.Observe(wait.Seconds())
		logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("Retrying after backoff")
	})

	if err == nil {
		if attempt > 1 {
			logger.Info().
				Int("attempt", attempt).
				Msg("Operation succeeded after retry")
		}
		return nil
	}

	if !stopped && ctx.Err() == nil {
		cdnRetryExhaustedTotal.Inc()
		logger.Warn().
			Err(err).
			Int("attempts", attempt).
			Msg("Retry attempts exhausted")
	}

	return err
}
