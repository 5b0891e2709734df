// Package ratelimit coordinates backoff across workers that share one provider quota.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config holds gate settings.
type Config struct {
	Initial           time.Duration // delay applied by the first penalty (default: 1s)
	Max               time.Duration // cap on exponential growth (default: 60s)
	Factor            float64       // growth per consecutive penalty (default: 2.0)
	RequestsPerSecond float64       // steady pacing, 0 disables it
}

// DefaultConfig returns the default gate configuration.
func DefaultConfig() Config {
	return Config{
		Initial: time.Second,
		Max:     60 * time.Second,
		Factor:  2.0,
	}
}

// Gate is a shared backoff gate. Workers call Wait before a request, Penalize when
// the provider reports a rate limit and Reset after a successful request.
// Penalties never shrink the delay until Reset is called.
type Gate struct {
	mu       sync.Mutex
	cfg      Config
	delay    time.Duration
	penalty  bool
	limiter  *rate.Limiter
	sleepFor func(ctx context.Context, d time.Duration) error
}

// NewGate creates a gate. Zero fields of cfg fall back to DefaultConfig.
func NewGate(cfg Config) *Gate {
	def := DefaultConfig()
	if cfg.Initial <= 0 {
		cfg.Initial = def.Initial
	}
	if cfg.Max <= 0 {
		cfg.Max = def.Max
	}
	if cfg.Max < cfg.Initial {
		cfg.Max = cfg.Initial
	}
	if cfg.Factor < 1 {
		cfg.Factor = def.Factor
	}
	g := &Gate{cfg: cfg, delay: cfg.Initial, sleepFor: sleep}
	if cfg.RequestsPerSecond > 0 {
		burst := max(1, int(cfg.RequestsPerSecond))
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return g
}

// Wait blocks until the caller may issue its next request. Without an outstanding
// penalty it only applies the steady pacing, so the first call returns immediately.
func (g *Gate) Wait(ctx context.Context) error {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	g.mu.Lock()
	d, pending := g.delay, g.penalty
	g.mu.Unlock()

	if !pending {
		return ctx.Err()
	}
	return g.sleepFor(ctx, d)
}

// Penalize extends the delay after a rate-limit response and returns the delay the
// next Wait will apply. retryAfter is the provider hint, zero when absent.
func (g *Gate) Penalize(retryAfter time.Duration) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	next := g.delay
	if g.penalty {
		grown := min(time.Duration(float64(g.delay)*g.cfg.Factor), g.cfg.Max)
		next = max(next, grown)
	}
	next = max(next, retryAfter)

	g.delay = next
	g.penalty = true
	return next
}

// Reset restores the initial delay after a successful request.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.delay = g.cfg.Initial
	g.penalty = false
}

// Delay returns the delay the next penalized Wait would apply.
func (g *Gate) Delay() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.delay
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
