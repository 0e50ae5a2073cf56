package exchange

import (
	"math/rand"
	"time"
)

// Backoff computes reconnect delays growing by Factor from Min up to Max with
// optional +/- Jitter fraction.
type Backoff struct {
	Min    time.Duration
	Max    time.Duration
	Factor float64
	Jitter float64
}

// DefaultBackoff mirrors the reconnect curve used for exchange websockets.
func DefaultBackoff() Backoff {
	return Backoff{Min: time.Second, Max: 30 * time.Second, Factor: 1.8, Jitter: 0.2}
}

// Next returns the delay before the given 1-based attempt.
func (b Backoff) Next(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	lo, hi, factor := b.Min, b.Max, b.Factor
	if lo <= 0 {
		lo = 100 * time.Millisecond
	}
	if hi < lo {
		hi = lo
	}
	if factor <= 1 {
		factor = 2
	}

	wait := lo
	for i := 1; i < attempt; i++ {
		next := time.Duration(float64(wait) * factor)
		if next >= hi {
			wait = hi
			break
		}
		wait = next
	}
	if b.Jitter <= 0 {
		return wait
	}
	jitter := b.Jitter
	if jitter > 1 {
		jitter = 1
	}
	delta := float64(wait) * jitter
	return wait - time.Duration(delta) + time.Duration(rand.Float64()*2*delta)
}
