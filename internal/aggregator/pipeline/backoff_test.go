package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelayDoublesAndCaps(t *testing.T) {
	base := time.Second
	max := 10 * time.Second

	for retry, want := range []time.Duration{
		time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		10 * time.Second,
		10 * time.Second,
	} {
		delay := backoffDelay(base, max, retry)
		assert.GreaterOrEqual(t, delay, want, "retry %d", retry)
		// Jitter adds at most 25%.
		assert.LessOrEqual(t, delay, want+want/4, "retry %d", retry)
	}
}

func TestBackoffDelayNeverExceedsMaxPlusJitter(t *testing.T) {
	max := 30 * time.Second
	for i := 0; i < 100; i++ {
		delay := backoffDelay(time.Second, max, 20)
		assert.LessOrEqual(t, delay, max+max/4)
	}
}
