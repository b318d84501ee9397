package processor

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/bstardust/takeout-geotag/internal/logger"
	"github.com/bstardust/takeout-geotag/pkg/s3client"
)

// RetryConfig defines retry behavior for operations that might fail transiently
type RetryConfig struct {
	// MaxRetries is the maximum number of retries before giving up
	MaxRetries int

	// InitialBackoff is the duration to wait before the first retry
	InitialBackoff time.Duration

	// MaxBackoff is the maximum duration to wait between retries
	MaxBackoff time.Duration

	// BackoffFactor is the factor by which to increase backoff after each retry
	BackoffFactor float64

	// Retryable decides whether an error is worth another attempt
	Retryable func(error) bool
}

// DefaultRetryConfig returns a default retry configuration for S3 uploads
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     5,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     1 * time.Minute,
		BackoffFactor:  2.0,
		Retryable:      s3client.IsRetryable,
	}
}

// IsRetryable determines if an error should be retried
func (rc RetryConfig) IsRetryable(err error) bool {
	if err == nil || rc.Retryable == nil {
		return false
	}
	return rc.Retryable(err)
}

// RetryWithBackoff retries the given operation with exponential backoff
func RetryWithBackoff(ctx context.Context, operation string, fn func() error, config RetryConfig) error {
	var err error
	var attempt int

	for attempt = 0; attempt <= config.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return fmt.Errorf("%s canceled: %w", operation, ctx.Err())
		}

		if attempt > 0 {
			logger.Debug("Retry attempt %d/%d for %s", attempt, config.MaxRetries, operation)
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				logger.Info("Successfully completed %s after %d retries", operation, attempt)
			}
			return nil
		}

		if !config.IsRetryable(err) {
			return err
		}

		// Last attempt failed
		if attempt == config.MaxRetries {
			break
		}

		backoff := getBackoffDuration(attempt, config)
		logger.Debug("Backing off for %v before retrying %s: %v", backoff, operation, err)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return fmt.Errorf("%s canceled during retry: %w", operation, ctx.Err())
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operation, attempt+1, err)
}

// getBackoffDuration calculates the backoff duration for a retry attempt
func getBackoffDuration(attempt int, config RetryConfig) time.Duration {
	backoff := float64(config.InitialBackoff) * math.Pow(config.BackoffFactor, float64(attempt))

	// Add jitter (±20% randomness)
	jitter := (rand.Float64() * 0.4) - 0.2
	backoff = backoff * (1 + jitter)

	if backoff > float64(config.MaxBackoff) {
		backoff = float64(config.MaxBackoff)
	}

	return time.Duration(backoff)
}
