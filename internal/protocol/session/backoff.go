package session

import (
	"math"
	"math/rand"
	"time"
)

// Delay returns the pause before retry attempt N (1-based). rng may be nil;
// jitter then uses a fixed factor of 0.5.
func (c BackoffConfig) Delay(attempt int, rng *rand.Rand) time.Duration {
	if c.InitialDelay <= 0 {
		return 0
	}
	if attempt <= 1 {
		return c.InitialDelay
	}
	mult := c.Multiplier
	if mult < 1.0 {
		mult = 1.0
	}
	delay := float64(c.InitialDelay) * math.Pow(mult, float64(attempt-1))
	if c.MaxDelay > 0 && delay > float64(c.MaxDelay) {
		delay = float64(c.MaxDelay)
	}
	if c.Jitter {
		f := 0.5
		if rng != nil {
			f = 0.5 + rng.Float64()
		}
		delay *= f
	}
	return time.Duration(delay)
}
