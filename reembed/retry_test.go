package reembed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/ragline/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failing returns an operation that fails n times with err, then succeeds.
func failing(n int, err error) (func() error, *int) {
	attempts := 0
	return func() error {
		attempts++
		if attempts <= n {
			return err
		}
		return nil
	}, &attempts
}

func TestRetryWithBackoff(t *testing.T) {
	transient := errors.New("throttled")
	tests := []struct {
		name         string
		failures     int
		err          error
		maxAttempts  int
		wantErr      error
		wantAttempts int
	}{
		{name: "first try", failures: 0, maxAttempts: 3, wantAttempts: 1},
		{name: "eventual success", failures: 2, err: transient, maxAttempts: 5, wantAttempts: 3},
		{name: "attempts exhausted", failures: 10, err: transient, maxAttempts: 3, wantErr: transient, wantAttempts: 3},
		{name: "validation not retried", failures: 10, err: core.Validation("op", transient), maxAttempts: 5, wantErr: core.ErrValidation, wantAttempts: 1},
		{name: "partial failure not retried", failures: 10, err: core.Partial("op", map[string]error{"a": transient}, 1), maxAttempts: 5, wantErr: core.ErrPartialFailure, wantAttempts: 1},
		{name: "transient retried", failures: 1, err: core.Transient("op", transient), maxAttempts: 2, wantAttempts: 2},
		{name: "zero attempts", failures: 10, err: transient, maxAttempts: 0, wantErr: ErrInvalidMaxAttempts, wantAttempts: 0},
		{name: "negative attempts", failures: 10, err: transient, maxAttempts: -1, wantErr: ErrInvalidMaxAttempts, wantAttempts: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, attempts := failing(tt.failures, tt.err)
			err := RetryWithBackoff(context.Background(), op, tt.maxAttempts, time.Millisecond)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantAttempts, *attempts)
		})
	}
}

func TestRetryWithBackoff_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	operation := func() error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return errors.New("error")
	}

	err := RetryWithBackoff(ctx, operation, 10, 10*time.Millisecond)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, attempts)
}

func TestRetryWithBackoff_ContextTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	attempts := 0
	operation := func() error {
		attempts++
		time.Sleep(30 * time.Millisecond)
		return errors.New("error")
	}

	err := RetryWithBackoff(ctx, operation, 10, 10*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.LessOrEqual(t, attempts, 3)
}

func TestRetryWithBackoff_ExponentialBackoff(t *testing.T) {
	var delays []time.Duration
	last := time.Now()
	attempts := 0
	operation := func() error {
		attempts++
		if attempts > 1 {
			delays = append(delays, time.Since(last))
		}
		last = time.Now()
		if attempts < 4 {
			return errors.New("error")
		}
		return nil
	}

	require.NoError(t, RetryWithBackoff(context.Background(), operation, 5, 10*time.Millisecond))
	require.Len(t, delays, 3)
	assert.GreaterOrEqual(t, delays[0], 10*time.Millisecond)
	assert.GreaterOrEqual(t, delays[1], 20*time.Millisecond)
	assert.GreaterOrEqual(t, delays[2], 40*time.Millisecond)
}
