package utils

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryOptions contains configuration for retry behavior.
type RetryOptions struct {
	MaxElapsedTime  time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxRetries      uint64
}

// GetAuditRetryOptions returns retry options for audit channel sends.
// Audit delivery is best-effort, so the window is kept short.
func GetAuditRetryOptions() RetryOptions {
	return RetryOptions{
		MaxElapsedTime:  15 * time.Second,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		MaxRetries:      3,
	}
}

// WithRetry executes the given operation with exponential backoff using provided options.
func WithRetry(ctx context.Context, operation func() error, opts RetryOptions) error {
	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(opts.MaxElapsedTime),
		backoff.WithInitialInterval(opts.InitialInterval),
		backoff.WithMaxInterval(opts.MaxInterval),
	), opts.MaxRetries)

	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}
