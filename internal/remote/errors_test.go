package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/huangsam/gitpulse/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"auth", &AuthenticationError{Provider: schema.GitHubProvider}, false},
		{"not found", &NotFoundError{Provider: schema.GitHubProvider}, false},
		{"rate limit", &RateLimitError{Provider: schema.GitHubProvider}, true},
		{"pagination", &PaginationError{Provider: schema.GitLabProvider, Err: errors.New("bad cursor")}, true},
		{"server error", &APIError{Status: 503, Transient: true}, true},
		{"client error", &APIError{Status: 422}, false},
		{"wrapped rate limit", fmt.Errorf("listing: %w", &RateLimitError{}), true},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	h := http.Header{}
	h.Set("X-RateLimit-Remaining", "0")
	h.Set("Retry-After", "7")

	var rl *RateLimitError
	require.ErrorAs(t, classifyStatus(schema.GitHubProvider, http.StatusForbidden, h, "x", "limited"), &rl)
	assert.Equal(t, 7*time.Second, rl.RetryAfter)

	var api *APIError
	require.ErrorAs(t, classifyStatus(schema.GitHubProvider, http.StatusForbidden, http.Header{}, "x", "denied"), &api)
	assert.False(t, api.Transient)

	var nf *NotFoundError
	require.ErrorAs(t, classifyStatus(schema.GitLabProvider, http.StatusNotFound, nil, "acme/api", ""), &nf)
	assert.Equal(t, "acme/api", nf.Resource)

	require.ErrorAs(t, classifyStatus(schema.GitLabProvider, http.StatusServiceUnavailable, nil, "", "down"), &api)
	assert.True(t, api.Transient)
}

func TestParseRetryAfterFromResetEpoch(t *testing.T) {
	h := http.Header{}
	h.Set("RateLimit-Reset", strconv.FormatInt(time.Now().Add(30*time.Second).Unix(), 10))
	d := parseRetryAfter(h)
	assert.Greater(t, d, 20*time.Second)
	assert.LessOrEqual(t, d, 30*time.Second)

	assert.Zero(t, parseRetryAfter(nil))
	assert.Zero(t, parseRetryAfter(http.Header{"Retry-After": []string{"soon"}}))
}

func TestWithRetry(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		out, err := withRetry(context.Background(), fastPolicy(), zap.NewNop(), "op", func(context.Context) (int, error) {
			calls++
			if calls < 3 {
				return 0, &APIError{Status: 502, Transient: true}
			}
			return 42, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 42, out)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		_, err := withRetry(context.Background(), fastPolicy(), zap.NewNop(), "op", func(context.Context) (int, error) {
			calls++
			return 0, &RateLimitError{}
		})
		var rl *RateLimitError
		require.ErrorAs(t, err, &rl)
		assert.Contains(t, err.Error(), "after 3 attempts")
		assert.Equal(t, 3, calls)
	})

	t.Run("final errors are not retried", func(t *testing.T) {
		calls := 0
		_, err := withRetry(context.Background(), fastPolicy(), zap.NewNop(), "op", func(context.Context) (int, error) {
			calls++
			return 0, &NotFoundError{}
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("cancellation stops backoff", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		policy := RetryPolicy{MaxAttempts: 5, InitialDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 2}
		_, err := withRetry(ctx, policy, zap.NewNop(), "op", func(context.Context) (int, error) {
			cancel()
			return 0, &APIError{Transient: true}
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
