package completion

import (
	"math"
	"time"
)

const (
	defaultInitialDelay = 1 * time.Second
	defaultMaxDelay     = 10 * time.Second
	maxRetryAfter       = 60 * time.Second
)

// Backoff computes retry delays with exponential growth and a ceiling
type Backoff struct {
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
}

// NewBackoff creates a backoff starting at initial and capped at max, doubling per attempt
func NewBackoff(initial, max time.Duration) *Backoff {
	if initial <= 0 {
		initial = defaultInitialDelay
	}
	if max <= 0 {
		max = defaultMaxDelay
	}
	if max < initial {
		max = initial
	}
	return &Backoff{
		initialDelay: initial,
		maxDelay:     max,
		multiplier:   2.0,
	}
}

// Initial returns the smallest delay the backoff ever produces
func (b *Backoff) Initial() time.Duration {
	return b.initialDelay
}

// Delay returns the wait before retry number attempt (0-indexed)
func (b *Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	delay := float64(b.initialDelay) * math.Pow(b.multiplier, float64(attempt))
	if delay > float64(b.maxDelay) {
		delay = float64(b.maxDelay)
	}
	return time.Duration(delay)
}

// RateLimitDelay honors a server-indicated Retry-After, never going below the
// initial delay nor above a minute. Without a hint it falls back to Delay.
func (b *Backoff) RateLimitDelay(attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter <= 0 {
		return b.Delay(attempt)
	}
	if retryAfter < b.initialDelay {
		return b.initialDelay
	}
	if retryAfter > maxRetryAfter {
		return maxRetryAfter
	}
	return retryAfter
}
