package engine

import "time"

// Backoff computes the wait between failed attempts: 2^attempt units.
// There is no jitter and no upper bound.
type Backoff struct {
	Unit time.Duration
}

func NewBackoff(unit time.Duration) Backoff {
	if unit <= 0 {
		unit = time.Second
	}
	return Backoff{Unit: unit}
}

// Delay returns the wait after the given (1-based) failed attempt.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return b.Unit * time.Duration(uint64(1)<<uint(attempt))
}
