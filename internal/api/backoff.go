package api

import (
	"math"
	"time"
)

// Backoff describes the exponential wait between retries.
type Backoff struct {
	Start  time.Duration
	Factor float64
	Count  int
}

// DefaultBackoff starts at half a second and doubles for up to ten retries.
func DefaultBackoff() Backoff {
	return Backoff{Start: 500 * time.Millisecond, Factor: 2, Count: 10}
}

// NewBackoff builds a [Backoff] from config values, keeping defaults for unset fields.
func NewBackoff(startSeconds, factor float64, count int) Backoff {
	b := DefaultBackoff()
	if startSeconds > 0 {
		b.Start = time.Duration(startSeconds * float64(time.Second))
	}
	if factor >= 1 {
		b.Factor = factor
	}
	if count >= 0 {
		b.Count = count
	}
	return b
}

// Delay returns the wait before retry number n, counting from zero.
func (b Backoff) Delay(n int) time.Duration {
	return time.Duration(float64(b.Start) * math.Pow(b.Factor, float64(n)))
}

// Timeout is the total budget: the sum of every delay up to and including Count.
// A Retry-After longer than this is treated as fatal.
func (b Backoff) Timeout() time.Duration {
	var total time.Duration
	for i := 0; i <= b.Count; i++ {
		total += b.Delay(i)
	}
	return total
}
