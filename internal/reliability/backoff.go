package reliability

import (
	"math"
	"math/rand"
	"time"
)

// Backoff computes exponential delays with jitter for retry policies whose
// RecoveryAction is kernelerr.ActionRetryBackoff.
type Backoff struct {
	Base    time.Duration
	Max     time.Duration
	Factor  float64
	Jitter  float64 // fraction of the computed delay to randomize, e.g. 0.2
	rand    *rand.Rand
}

// NewBackoff builds a Backoff with sane defaults for kernel retries: 500ms
// base, 30s ceiling, factor 2, 20% jitter.
func NewBackoff() *Backoff {
	return &Backoff{
		Base:   500 * time.Millisecond,
		Max:    30 * time.Second,
		Factor: 2,
		Jitter: 0.2,
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Delay returns the delay to wait before retry attempt (1-indexed).
func (b *Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	raw := float64(b.Base) * math.Pow(b.Factor, float64(attempt-1))
	if raw > float64(b.Max) {
		raw = float64(b.Max)
	}
	if b.Jitter > 0 {
		spread := raw * b.Jitter
		raw += (b.rand.Float64()*2 - 1) * spread
	}
	if raw < 0 {
		raw = 0
	}
	return time.Duration(raw)
}
