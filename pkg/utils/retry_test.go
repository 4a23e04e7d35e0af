package utils_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/venlyx/sentinel/pkg/utils"
)

var (
	errTemporary = errors.New("temporary error")
)

func TestWithRetry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		operation     func() error
		expectedCalls int
		expectedErr   error
	}{
		{
			name: "succeeds first try",
			operation: func() error {
				return nil
			},
			expectedCalls: 1,
			expectedErr:   nil,
		},
		{
			name: "succeeds after retries",
			operation: func() func() error {
				count := 0
				return func() error {
					count++
					if count < 3 {
						return errTemporary
					}
					return nil
				}
			}(),
			expectedCalls: 3,
			expectedErr:   nil,
		},
		{
			name: "fails all retries",
			operation: func() error {
				return errTemporary
			},
			expectedCalls: 4, // Initial + 3 retries
			expectedErr:   errTemporary,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := t.Context()
			calls := 0
			wrappedOp := func() error {
				calls++
				return tt.operation()
			}

			opts := utils.RetryOptions{
				MaxElapsedTime:  100 * time.Millisecond,
				InitialInterval: 10 * time.Millisecond,
				MaxInterval:     20 * time.Millisecond,
				MaxRetries:      3,
			}

			err := utils.WithRetry(ctx, wrappedOp, opts)

			if tt.expectedErr != nil {
				require.Error(t, err)
				require.ErrorIs(t, err, tt.expectedErr)
			} else {
				require.NoError(t, err)
			}

			assert.Equal(t, tt.expectedCalls, calls)
		})
	}
}

func TestWithRetryContext(t *testing.T) {
	t.Parallel()

	t.Run("respects context cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(t.Context())
		calls := 0

		operation := func() error {
			calls++
			return errTemporary
		}

		opts := utils.RetryOptions{
			MaxElapsedTime:  1 * time.Second,
			InitialInterval: 100 * time.Millisecond,
			MaxInterval:     200 * time.Millisecond,
			MaxRetries:      5,
		}

		// Cancel context after small delay
		go func() {
			time.Sleep(50 * time.Millisecond)
			cancel()
		}()

		err := utils.WithRetry(ctx, operation, opts)

		require.Error(t, err)
		require.ErrorIs(t, err, context.Canceled)
		assert.Less(t, calls, 5) // Should not have completed all retries
	})
}
