// Package ratelimit paces outgoing API calls with a token bucket so bulk
// exports stay inside the Slides and Drive per-user quotas.
package ratelimit

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"
)

// Config holds gate configuration.
type Config struct {
	// RequestsPerSecond is the sustained rate (tokens added per second).
	RequestsPerSecond float64
	// BurstSize is the maximum number of tokens (burst capacity).
	BurstSize int
	// Logger for pacing events.
	Logger *slog.Logger
}

// DefaultConfig returns defaults sized well under the Slides API read quota.
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 5.0,
		BurstSize:         10,
		Logger:            slog.Default(),
	}
}

// Gate is a token-bucket pacer shared by every remote call of a run. Wait
// blocks until a token is available or the context is cancelled.
type Gate struct {
	logger *slog.Logger

	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64
	lastRefill time.Time
}

// New creates a gate with the given configuration. The bucket starts full.
func New(cfg Config) *Gate {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5.0
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = 10
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Gate{
		logger:     cfg.Logger,
		tokens:     float64(cfg.BurstSize),
		maxTokens:  float64(cfg.BurstSize),
		refillRate: cfg.RequestsPerSecond,
		lastRefill: time.Now(),
	}
}

// take consumes a token if one is available, otherwise reports how long
// until the next one.
func (g *Gate) take() (ok bool, retryAfter time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(g.lastRefill)
	g.tokens = math.Min(g.maxTokens, g.tokens+g.refillRate*elapsed.Seconds())
	g.lastRefill = now

	if g.tokens >= 1 {
		g.tokens--
		return true, 0
	}
	needed := 1 - g.tokens
	return false, time.Duration(needed/g.refillRate*float64(time.Second)) + time.Millisecond
}

// Allow consumes a token without blocking and reports whether one was
// available.
func (g *Gate) Allow() bool {
	ok, _ := g.take()
	return ok
}

// Wait blocks until a token is consumed or ctx is done.
func (g *Gate) Wait(ctx context.Context) error {
	for {
		ok, retryAfter := g.take()
		if ok {
			return nil
		}
		g.logger.Debug("pacing remote call",
			slog.Duration("retry_after", retryAfter),
		)

		timer := time.NewTimer(retryAfter)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Remaining returns the number of whole tokens currently available.
func (g *Gate) Remaining() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(g.lastRefill)
	g.tokens = math.Min(g.maxTokens, g.tokens+g.refillRate*elapsed.Seconds())
	g.lastRefill = now
	return int(g.tokens)
}

// Limit returns the burst capacity.
func (g *Gate) Limit() int {
	return int(g.maxTokens)
}

// Rate returns the sustained refill rate in tokens per second.
func (g *Gate) Rate() float64 {
	return g.refillRate
}
