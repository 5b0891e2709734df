package remote

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy bounds how a failed provider call is repeated.
type RetryPolicy struct {
	MaxAttempts  int           // total attempts including the first
	InitialDelay time.Duration // delay before the second attempt
	MaxDelay     time.Duration // cap on exponential growth
	Multiplier   float64       // growth per attempt
}

// GitHubRetryPolicy returns the policy used for GitHub calls.
func GitHubRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialDelay: time.Second, MaxDelay: 60 * time.Second, Multiplier: 2}
}

// GitLabRetryPolicy returns the policy used for GitLab REST calls.
func GitLabRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, InitialDelay: time.Second, MaxDelay: 60 * time.Second, Multiplier: 2}
}

// withRetry runs fn until it succeeds, returns a final error, or attempts run out.
// A rate-limit hint longer than the computed backoff replaces it.
func withRetry[T any](ctx context.Context, policy RetryPolicy, log *zap.Logger, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := max(1, policy.MaxAttempts)
	backoff := policy.InitialDelay

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		out, err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				log.Debug("Call succeeded after retry", zap.String("op", op), zap.Int("attempt", attempt))
			}
			return out, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return zero, err
		}
		if attempt == attempts {
			break
		}

		wait := backoff
		if hint, ok := RetryAfter(err); ok && hint > wait {
			wait = hint
		}
		log.Warn("Retrying provider call",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Duration("wait", wait),
			zap.Error(err))

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("%s canceled during backoff: %w", op, ctx.Err())
		}

		backoff = min(time.Duration(float64(backoff)*policy.Multiplier), policy.MaxDelay)
	}

	return zero, fmt.Errorf("%s failed after %d attempts: %w", op, attempts, lastErr)
}
