package sheetsql

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleep(context.Context, time.Duration) error { return nil }

func TestRetryPolicy_Do(t *testing.T) {
	t.Parallel()

	busy := &fs.PathError{Op: "open", Path: "book.xlsx", Err: fs.ErrPermission}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		t.Parallel()

		var retried []int
		calls := 0
		policy := RetryPolicy{
			MaxAttempts: 5,
			Delay:       time.Second,
			Sleep:       noSleep,
			OnRetry:     func(attempt int, _ error) { retried = append(retried, attempt) },
		}
		err := policy.Do(context.Background(), func(context.Context) error {
			calls++
			if calls < 3 {
				return busy
			}
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.Equal(t, []int{1, 2}, retried)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		t.Parallel()

		var delays []time.Duration
		calls := 0
		policy := RetryPolicy{
			MaxAttempts: 4,
			Delay:       750 * time.Millisecond,
			Sleep: func(_ context.Context, d time.Duration) error {
				delays = append(delays, d)
				return nil
			},
		}
		err := policy.Do(context.Background(), func(context.Context) error {
			calls++
			return busy
		})

		require.ErrorIs(t, err, fs.ErrPermission)
		assert.Equal(t, 4, calls)
		assert.Equal(t, []time.Duration{750 * time.Millisecond, 750 * time.Millisecond, 750 * time.Millisecond}, delays)
	})

	t.Run("non-retryable error returns at once", func(t *testing.T) {
		t.Parallel()

		calls := 0
		policy := RetryPolicy{MaxAttempts: 8, Sleep: noSleep}
		err := policy.Do(context.Background(), func(context.Context) error {
			calls++
			return fs.ErrNotExist
		})

		require.ErrorIs(t, err, fs.ErrNotExist)
		assert.Equal(t, 1, calls)
	})

	t.Run("zero attempts still runs once", func(t *testing.T) {
		t.Parallel()

		calls := 0
		err := RetryPolicy{}.Do(context.Background(), func(context.Context) error {
			calls++
			return busy
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("cancelled while waiting", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := RetryPolicy{MaxAttempts: 3, Delay: time.Hour}.Do(ctx, func(context.Context) error {
			return busy
		})
		require.ErrorIs(t, err, context.Canceled)
		assert.ErrorIs(t, err, fs.ErrPermission)
	})
}

func TestDefaultRetryPolicy(t *testing.T) {
	t.Parallel()

	p := DefaultRetryPolicy()
	assert.Equal(t, 8, p.MaxAttempts)
	assert.Equal(t, 750*time.Millisecond, p.Delay)
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "permission", err: fmt.Errorf("open: %w", fs.ErrPermission), want: true},
		{name: "ebusy", err: &fs.PathError{Op: "open", Path: "x", Err: syscall.EBUSY}, want: true},
		{name: "sharing violation", err: errors.New("The process cannot access the file because it is being used by another process."), want: true},
		{name: "not found", err: fs.ErrNotExist, want: false},
		{name: "parse error", err: errors.New("zip: not a valid zip file"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}
