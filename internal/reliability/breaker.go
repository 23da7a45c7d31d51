// Package reliability implements the kernel's failure-handling primitives:
// circuit breaking, backoff, budget tracking, health checks, confidence
// calibration, and intervention-signal watching.
package reliability

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/sunwell-ai/sunwell/internal/kernelerr"
	"github.com/sunwell-ai/sunwell/internal/metrics"
)

// BreakerConfig tunes a Breaker's trip thresholds, mirroring the tunables
// gobreaker.Settings exposes.
type BreakerConfig struct {
	Name             string
	FailureThreshold uint32        // consecutive failures before tripping to OPEN
	OpenTimeout      time.Duration // time spent OPEN before probing HALF_OPEN
	HalfOpenMaxCalls uint32        // calls allowed through while HALF_OPEN
}

// Breaker wraps gobreaker.CircuitBreaker with the kernel's error taxonomy
// and metrics, per CLOSED/OPEN/HALF_OPEN semantics.
type Breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker
}

// NewBreaker builds a Breaker from cfg.
func NewBreaker(cfg BreakerConfig) *Breaker {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenMaxCalls,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	}
	return &Breaker{name: cfg.Name, cb: gobreaker.NewCircuitBreaker(settings)}
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// State reports the breaker's current state using the standard
// CLOSED/OPEN/HALF_OPEN circuit-breaker vocabulary.
func (b *Breaker) State() string {
	switch b.cb.State() {
	case gobreaker.StateClosed:
		return "CLOSED"
	case gobreaker.StateHalfOpen:
		return "HALF_OPEN"
	case gobreaker.StateOpen:
		return "OPEN"
	default:
		return "UNKNOWN"
	}
}

// Call runs fn through the breaker, translating a trip into a structured,
// recoverable error so callers can fall back without inspecting gobreaker
// internals directly.
func (b *Breaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, fn(ctx)
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return kernelerr.New(kernelerr.ModelProviderUnavail, "circuit breaker open for "+b.name, err).
			WithHints("wait for the breaker's open timeout to elapse", "use a fallback path if one is configured")
	}
	return err
}
