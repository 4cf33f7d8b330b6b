package errors

import (
	"context"
	"fmt"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassification(t *testing.T) {
	t.Parallel()

	assert.False(t, IsTransient(nil))
	assert.True(t, IsTransient(NewTransientError(fmt.Errorf("flap"), "")))
	assert.False(t, IsTransient(NewPermanentError(fmt.Errorf("nope"), "")))
	assert.False(t, IsTransient(NewConfigError("bad manifest", nil)))
	assert.False(t, IsTransient(fmt.Errorf("some application error")))

	// Wrapped markers still classify.
	wrapped := fmt.Errorf("fetch: %w", NewTransientError(fmt.Errorf("reset"), ""))
	assert.True(t, IsTransient(wrapped))
}

func TestClassificationNetworkAndSyscall(t *testing.T) {
	t.Parallel()

	assert.True(t, IsTransient(&net.OpError{Op: "dial", Err: fmt.Errorf("refused")}))
	assert.True(t, IsTransient(syscall.ECONNREFUSED))
	assert.True(t, IsTransient(fmt.Errorf("dial tcp: connection refused")))
	assert.False(t, IsTransient(syscall.ENOENT))
}

func TestTypedHelpers(t *testing.T) {
	t.Parallel()

	assert.True(t, IsNotFound(NewSkillNotFound("ghost")))
	assert.True(t, IsNotFound(NewTriggerNotFound("do laundry")))
	assert.False(t, IsNotFound(fmt.Errorf("other")))

	infErr := NewInferenceError("retail_helper", "inference", fmt.Errorf("boom"))
	assert.True(t, IsInference(infErr))
	assert.Contains(t, infErr.Error(), "retail_helper")
	assert.Contains(t, infErr.Error(), "boom")

	assert.Equal(t, ErrorTypeTransient, GetErrorType(NewTransientError(fmt.Errorf("x"), "")))
	assert.Equal(t, ErrorTypePermanent, GetErrorType(fmt.Errorf("x")))
}

func fastRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	t.Parallel()

	attempts := 0
	err := Retry(context.Background(), fastRetryConfig(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return NewTransientError(fmt.Errorf("flap %d", attempts), "")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryStopsOnNonTransient(t *testing.T) {
	t.Parallel()

	attempts := 0
	err := Retry(context.Background(), fastRetryConfig(), func(ctx context.Context) error {
		attempts++
		return NewConfigError("broken key", nil)
	})
	require.Error(t, err)
	assert.True(t, IsConfig(err))
	assert.Equal(t, 1, attempts)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	t.Parallel()

	attempts := 0
	err := Retry(context.Background(), fastRetryConfig(), func(ctx context.Context) error {
		attempts++
		return NewTransientError(fmt.Errorf("always down"), "")
	})
	require.Error(t, err)
	assert.Equal(t, 4, attempts, "initial attempt plus MaxAttempts retries")
	assert.Contains(t, err.Error(), "max retries exceeded")
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := Retry(ctx, fastRetryConfig(), func(ctx context.Context) error {
		attempts++
		return NewTransientError(fmt.Errorf("flap"), "")
	})
	require.Error(t, err)
	assert.Zero(t, attempts)
}

func TestRetryWithResult(t *testing.T) {
	t.Parallel()

	attempts := 0
	value, err := RetryWithResult(context.Background(), fastRetryConfig(), func(ctx context.Context) (int, error) {
		attempts++
		if attempts < 2 {
			return 0, NewTransientError(fmt.Errorf("flap"), "")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, value)
}

func TestCalculateBackoffBounds(t *testing.T) {
	t.Parallel()

	config := RetryConfig{BaseDelay: 10 * time.Millisecond, MaxDelay: 40 * time.Millisecond, JitterFactor: 0.25}
	for attempt := 0; attempt < 8; attempt++ {
		delay := calculateBackoff(attempt, config)
		assert.GreaterOrEqual(t, delay, time.Duration(0))
		assert.LessOrEqual(t, delay, 50*time.Millisecond, "jitter stays within +25%% of the cap")
	}
}
