package queue

import (
	"math/rand"
	"time"
)

// backoffDelay computes the exponential retry delay for the given attempt
// number (1-based), with ±20% jitter so retries spread out, capped at max.
func backoffDelay(attempt int, base, max time.Duration, rng *rand.Rand) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			delay = max
			break
		}
	}
	if delay > max {
		delay = max
	}

	jitter := 0.8 + 0.4*rng.Float64()
	return time.Duration(float64(delay) * jitter)
}
