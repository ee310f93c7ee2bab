// Package retry wraps remote Drive and Slides calls with exponential backoff
// and jitter for transient failures.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"
)

// ErrAttemptsExhausted is returned when every retry attempt has failed.
var ErrAttemptsExhausted = errors.New("retry attempts exhausted")

// Config holds retry configuration.
type Config struct {
	// MaxRetries is the number of retries after the first attempt (default: 4).
	MaxRetries int
	// InitialDelay before the first retry (default: 1s).
	InitialDelay time.Duration
	// MaxDelay caps the backoff (default: 16s).
	MaxDelay time.Duration
	// Multiplier grows the delay between attempts (default: 2.0).
	Multiplier float64
	// JitterFactor randomizes each delay within ±factor (default: 0.2).
	JitterFactor float64
	// Logger for retry events.
	Logger *slog.Logger
}

// DefaultConfig returns the default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxRetries:   4,
		InitialDelay: time.Second,
		MaxDelay:     16 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.2,
		Logger:       slog.Default(),
	}
}

// Retryer retries operations that report an HTTP status with each failure.
type Retryer struct {
	cfg Config
}

// New creates a Retryer, filling unset configuration with defaults.
func New(cfg Config) *Retryer {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 4
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 16 * time.Second
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2.0
	}
	if cfg.JitterFactor <= 0 || cfg.JitterFactor > 1 {
		cfg.JitterFactor = 0.2
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Retryer{cfg: cfg}
}

// Retryable reports whether an HTTP status indicates a transient condition.
func Retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Delay returns the backoff before the given 1-based retry attempt,
// exponential with jitter and capped at MaxDelay.
func (r *Retryer) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	delay := float64(r.cfg.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= r.cfg.Multiplier
	}
	if delay > float64(r.cfg.MaxDelay) {
		delay = float64(r.cfg.MaxDelay)
	}

	jitterRange := delay * r.cfg.JitterFactor
	delay += rand.Float64()*2*jitterRange - jitterRange
	if delay < float64(time.Millisecond) {
		delay = float64(time.Millisecond)
	}
	return time.Duration(delay)
}

// MaxRetries returns the configured retry count.
func (r *Retryer) MaxRetries() int { return r.cfg.MaxRetries }

// Do runs op until it succeeds, fails non-retryably, runs out of attempts,
// or ctx is done. op reports the HTTP status of its failure; zero means the
// failure carried no status and is not retried.
func Do[T any](ctx context.Context, r *Retryer, op func(ctx context.Context) (T, int, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, status, err := op(ctx)
		if err == nil {
			if attempt > 0 {
				r.cfg.Logger.Info("remote call succeeded after retry",
					slog.Int("attempts", attempt+1),
				)
			}
			return result, nil
		}
		lastErr = err

		if !Retryable(status) {
			return zero, err
		}
		if attempt >= r.cfg.MaxRetries {
			break
		}

		delay := r.Delay(attempt + 1)
		r.cfg.Logger.Warn("retrying remote call",
			slog.Int("attempt", attempt+1),
			slog.Int("status", status),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	return zero, fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, r.cfg.MaxRetries+1, lastErr)
}
