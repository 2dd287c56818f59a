package utils

import (
	"math"
	"math/rand/v2"
	"time"
)

// BackoffStrategy yields the delay before a retry attempt. Attempt numbers
// start at 0.
type BackoffStrategy interface {
	NextDelay(attempt int) time.Duration
}

// ConstantBackoff waits the same delay before every attempt.
type ConstantBackoff struct {
	Delay time.Duration
}

// NewConstantBackoff creates a constant backoff strategy.
func NewConstantBackoff(delay time.Duration) *ConstantBackoff {
	return &ConstantBackoff{Delay: delay}
}

// NextDelay returns the constant delay.
func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	return cb.Delay
}

// ExponentialBackoff grows the delay geometrically from BaseDelay and caps
// it at MaxDelay. A non-zero Jitter fraction spreads delays uniformly within
// [delay*(1-Jitter), delay*(1+Jitter)] so retries from jobs that finished
// together do not arrive in lockstep.
type ExponentialBackoff struct {
	BaseDelay  time.Duration
	Multiplier float64
	MaxDelay   time.Duration
	Jitter     float64
}

// NewExponentialBackoff creates an exponential backoff strategy without
// jitter. A multiplier <= 0 defaults to 2.
func NewExponentialBackoff(baseDelay, maxDelay time.Duration, multiplier float64) *ExponentialBackoff {
	if multiplier <= 0 {
		multiplier = 2.0
	}
	return &ExponentialBackoff{
		BaseDelay:  baseDelay,
		Multiplier: multiplier,
		MaxDelay:   maxDelay,
	}
}

// NextDelay returns the delay for the given attempt.
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	delay := float64(eb.BaseDelay) * math.Pow(eb.Multiplier, float64(attempt))
	if delay > float64(eb.MaxDelay) {
		delay = float64(eb.MaxDelay)
	}
	if eb.Jitter > 0 {
		delay *= 1 + eb.Jitter*(2*rand.Float64()-1)
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}
