package session

import (
	"math"
	"math/rand"
	"time"
)

// NextDelay returns the reconnect delay for attempt N (1-based). A nil
// rng pins jitter to the low end of its range.
func (cfg BackoffConfig) NextDelay(attempt int, rng *rand.Rand) time.Duration {
	if cfg.InitialDelay <= 0 {
		return 0
	}
	mult := cfg.Multiplier
	if mult < 1.0 {
		mult = 1.0
	}
	delay := float64(cfg.InitialDelay)
	if attempt > 1 {
		delay = delay * math.Pow(mult, float64(attempt-1))
	}
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	if cfg.Jitter && attempt > 1 {
		f := 0.5
		if rng != nil {
			f = 0.5 + rng.Float64()
		}
		delay = delay * f
	}
	return time.Duration(delay)
}
