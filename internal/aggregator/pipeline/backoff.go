package pipeline

import (
	"math/rand"
	"time"
)

// backoffDelay returns the exponential backoff delay for the given retry
// (0-based), capped at max, with up to 25% random jitter so racing workers
// do not retry in lockstep.
func backoffDelay(base, max time.Duration, retry int) time.Duration {
	delay := base
	for i := 0; i < retry; i++ {
		delay *= 2
		if delay >= max {
			delay = max
			break
		}
	}
	if delay > max {
		delay = max
	}
	jitter := time.Duration(rand.Int63n(int64(delay)/4 + 1))
	return delay + jitter
}
