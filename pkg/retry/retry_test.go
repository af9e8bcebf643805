package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "tokfetch/pkg/errors"
)

func fastConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		Backoff:     &ExponentialBackoff{BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, Multiplier: 2},
		RetryIf:     DefaultRetryIf,
		Context:     context.Background(),
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		return nil
	}, fastConfig())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesTransientErrors(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		if calls < 3 {
			return errs.New(errs.KindNetwork, "timeout")
		}
		return nil
	}, fastConfig())
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	var delays []time.Duration
	cfg := fastConfig()
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		delays = append(delays, delay)
	}

	err := Do(func() error {
		calls++
		return errs.New(errs.KindRateLimit, "slow down")
	}, cfg)

	require.Error(t, err)
	assert.Equal(t, 3, calls, "exactly MaxAttempts invocations")
	assert.Contains(t, err.Error(), "max retry attempts")

	// Exponential backoff without jitter: waits strictly increase.
	require.Len(t, delays, 3)
	assert.Greater(t, delays[1], delays[0])
	assert.Greater(t, delays[2], delays[1])
}

func TestDoStopsOnTerminalError(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		return errs.New(errs.KindNotFound, "gone")
	}, fastConfig())

	require.Error(t, err)
	assert.Equal(t, 1, calls, "terminal errors do not consume retries")
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastConfig()
	cfg.Context = ctx
	cfg.Backoff = &ConstantBackoff{Delay: time.Minute}

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- Do(func() error {
			calls++
			return errs.New(errs.KindNetwork, "timeout")
		}, cfg)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	case <-time.After(time.Second):
		t.Fatal("retry did not observe cancellation")
	}
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	v, err := DoWithResult(func() (string, error) {
		calls++
		if calls == 1 {
			return "", errs.New(errs.KindServer, "502")
		}
		return "ok", nil
	}, fastConfig())

	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 2, calls)
}

func TestExponentialBackoffCap(t *testing.T) {
	eb := &ExponentialBackoff{BaseDelay: time.Second, MaxDelay: 3 * time.Second, Multiplier: 2}
	assert.Equal(t, time.Second, eb.NextDelay(1))
	assert.Equal(t, 2*time.Second, eb.NextDelay(2))
	assert.Equal(t, 3*time.Second, eb.NextDelay(3), "capped at MaxDelay")
	assert.Equal(t, time.Duration(0), eb.NextDelay(0))
}

func TestWaitCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, Wait(ctx, 0))
	assert.Error(t, Wait(ctx, time.Millisecond))
	assert.NoError(t, Wait(context.Background(), 0))
}
