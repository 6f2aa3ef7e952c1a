package util

import (
	"math/rand"
	"time"
)

// Backoff produces exponentially growing wait intervals with jitter.
// It is not safe for concurrent use; each retry loop owns its own instance.
type Backoff struct {
	base   time.Duration
	max    time.Duration
	factor float64
	jitter float64

	current time.Duration
}

// NewBackoff returns a Backoff starting at base, multiplying by factor on
// each Next() up to max, with +/- jitter (fraction of the interval) applied.
func NewBackoff(base, max time.Duration, factor, jitter float64) *Backoff {
	return &Backoff{
		base:    base,
		max:     max,
		factor:  factor,
		jitter:  jitter,
		current: base,
	}
}

// Next returns the wait interval to use now and advances the sequence.
func (b *Backoff) Next() time.Duration {
	d := b.current

	next := time.Duration(float64(b.current) * b.factor)
	if next > b.max {
		next = b.max
	}
	b.current = next

	if b.jitter > 0 {
		// spread in [-jitter, +jitter] around d
		delta := (rand.Float64()*2 - 1) * b.jitter * float64(d)
		d += time.Duration(delta)
	}
	if d < 0 {
		d = 0
	}
	return d
}

// Reset returns the sequence to its base interval.
func (b *Backoff) Reset() {
	b.current = b.base
}
