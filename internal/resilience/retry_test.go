package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Laisky/llm-gateway/internal/apierror"
)

func fastCfg() RetryConfig {
	return RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Timeout: time.Second}
}

func TestDoSucceedsOnFirstAttempt(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), fastCfg(), func(ctx context.Context) (any, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", result)
	require.Equal(t, 1, calls)
}

func TestDoRetriesRetryableKindsUpToMaxAttempts(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastCfg(), func(ctx context.Context) (any, error) {
		calls++
		return nil, apierror.New(apierror.KindNetwork, "dial failed", errors.New("refused"))
	})
	require.Error(t, err)
	require.Equal(t, 3, calls)
}

func TestDoNeverRetriesNonRetryableKind(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastCfg(), func(ctx context.Context) (any, error) {
		calls++
		return nil, apierror.New(apierror.KindValidation, "bad request", nil)
	})
	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), fastCfg(), func(ctx context.Context) (any, error) {
		calls++
		if calls < 2 {
			return nil, apierror.New(apierror.KindTimeout, "timed out", errors.New("deadline"))
		}
		return "recovered", nil
	})
	require.NoError(t, err)
	require.Equal(t, "recovered", result)
}

func TestDoCancellationDuringBackoffAbortsImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Do(ctx, RetryConfig{MaxAttempts: 5, BaseDelay: 200 * time.Millisecond, MaxDelay: time.Second, Timeout: 10 * time.Second},
		func(ctx context.Context) (any, error) {
			calls++
			if calls == 1 {
				// cancel while Do sleeps out the first (>= 200ms) backoff
				time.AfterFunc(20*time.Millisecond, cancel)
			}
			return nil, apierror.New(apierror.KindNetwork, "dial failed", errors.New("refused"))
		})
	require.Error(t, err)
	var f *apierror.Failure
	require.ErrorAs(t, err, &f)
	require.Equal(t, apierror.KindCanceled, f.Kind)
	require.Equal(t, 1, calls)
}

func TestBackoffDelayHonorsRetryAfterHint(t *testing.T) {
	f := apierror.New(apierror.KindRateLimit, "rate limited", nil)
	f.RetryAfter = "2s"
	policy := NewExponentialPolicy(DefaultRetryConfig())()
	d := backoffDelay(policy, f)
	require.Equal(t, 2*time.Second, d)
}

func TestBackoffDelayGrowsExponentiallyAndCapsAtMaxDelay(t *testing.T) {
	cfg := RetryConfig{BaseDelay: 500 * time.Millisecond, MaxDelay: 2 * time.Second}
	f := apierror.New(apierror.KindNetwork, "x", nil)
	policy := NewExponentialPolicy(cfg)()

	d1 := backoffDelay(policy, f)
	require.GreaterOrEqual(t, d1, cfg.BaseDelay)
	require.Less(t, d1, cfg.BaseDelay*2)

	var d5 time.Duration
	for i := 0; i < 5; i++ {
		d5 = backoffDelay(policy, f)
	}
	require.LessOrEqual(t, d5, cfg.MaxDelay+cfg.MaxDelay/4)
}
