package resilience

import (
	"context"
	"math/rand"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/Laisky/llm-gateway/internal/apierror"
	"github.com/Laisky/llm-gateway/internal/metrics"
)

// RetryConfig mirrors spec §4.6's retry strategy defaults.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Timeout     time.Duration
}

// DefaultRetryConfig returns the spec's documented defaults (maxAttempts=3, timeout equal to
// the caller's per-backend request timeout — callers should override Timeout accordingly).
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond, MaxDelay: 10 * time.Second, Timeout: 120 * time.Second}
}

// Do runs op up to cfg.MaxAttempts times, retrying only when the returned error classifies as
// retryable (spec: Timeout, Network, Upstream5xx, RateLimit). Backoff between attempts doubles
// from cfg.BaseDelay up to cfg.MaxDelay (backoff.v5's ExponentialBackOff, built by
// NewExponentialPolicy) and is scaled by (1 + jitter), jitter uniform in [0, 0.25). A 429
// honoring a server Retry-After hint uses that instead of the computed delay. The whole sequence is bounded by cfg.Timeout; a context cancellation aborts
// immediately between attempts (and during a backoff sleep) with a Canceled classification,
// never retried.
func Do(ctx context.Context, cfg RetryConfig, op func(ctx context.Context) (any, error)) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	policy := NewExponentialPolicy(cfg)()

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, apierror.New(apierror.KindCanceled, "request canceled before attempt", err)
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, apierror.New(apierror.KindCanceled, "request canceled", ctx.Err())
		}

		f, ok := err.(*apierror.Failure)
		if !ok || !f.Kind.Retryable() {
			return nil, err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		metrics.RetriesTotal.WithLabelValues(string(f.Kind)).Inc()
		delay := backoffDelay(policy, f)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, apierror.New(apierror.KindCanceled, "canceled during backoff", ctx.Err())
		case <-timer.C:
		}
	}
	return nil, lastErr
}

// backoffDelay returns the next delay, honoring a server retry-after hint for rate-limited
// responses when present, or else pulling the next interval from policy (spec §4.6).
func backoffDelay(policy backoff.BackOff, f *apierror.Failure) time.Duration {
	if f.Kind == apierror.KindRateLimit && f.RetryAfter != "" {
		if d, err := time.ParseDuration(f.RetryAfter); err == nil && d > 0 {
			return d
		}
		if secs, err := parseSeconds(f.RetryAfter); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}

	d := policy.NextBackOff()
	return d + time.Duration(rand.Float64()*0.25*float64(d))
}

func parseSeconds(s string) (int, error) {
	return strconv.Atoi(s)
}

// NewExponentialPolicy builds the backoff.v5 policy Do uses between retry attempts.
func NewExponentialPolicy(cfg RetryConfig) func() backoff.BackOff {
	return func() backoff.BackOff {
		return backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(cfg.BaseDelay),
			backoff.WithMaxInterval(cfg.MaxDelay),
			backoff.WithMultiplier(2),
			backoff.WithRandomizationFactor(0), // jitter is added by backoffDelay
		)
	}
}
