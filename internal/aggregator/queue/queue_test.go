package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"golang-news-aggregator/internal/aggregator/apperrors"
	"golang-news-aggregator/internal/aggregator/config"
	"golang-news-aggregator/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func alwaysClaim(context.Context, uint) error { return nil }

func mustDequeue(t *testing.T, q *Queue, claim ClaimFunc) Item {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	item, err := q.Dequeue(ctx, claim)
	require.NoError(t, err)
	return item
}

func TestDequeueRespectsTierOrder(t *testing.T) {
	q := New(config.Queue{LowTierAdmissionEvery: 100})

	q.Enqueue(Item{ArticleID: 1, FeedID: 1, Tier: entity.PriorityLow})
	q.Enqueue(Item{ArticleID: 2, FeedID: 2, Tier: entity.PriorityMedium})
	q.Enqueue(Item{ArticleID: 3, FeedID: 3, Tier: entity.PriorityHigh})

	assert.Equal(t, uint(3), mustDequeue(t, q, alwaysClaim).ArticleID)
	assert.Equal(t, uint(2), mustDequeue(t, q, alwaysClaim).ArticleID)
	assert.Equal(t, uint(1), mustDequeue(t, q, alwaysClaim).ArticleID)
}

func TestDequeueRoundRobinsFeedsWithinTier(t *testing.T) {
	q := New(config.Queue{LowTierAdmissionEvery: 100})

	// Feed 1 floods the tier; feed 2 has a single item.
	q.Enqueue(Item{ArticleID: 10, FeedID: 1, Tier: entity.PriorityHigh})
	q.Enqueue(Item{ArticleID: 11, FeedID: 1, Tier: entity.PriorityHigh})
	q.Enqueue(Item{ArticleID: 12, FeedID: 1, Tier: entity.PriorityHigh})
	q.Enqueue(Item{ArticleID: 20, FeedID: 2, Tier: entity.PriorityHigh})

	got := []uint{
		mustDequeue(t, q, alwaysClaim).ArticleID,
		mustDequeue(t, q, alwaysClaim).ArticleID,
		mustDequeue(t, q, alwaysClaim).ArticleID,
		mustDequeue(t, q, alwaysClaim).ArticleID,
	}
	// Feed 2's item is served before feed 1 drains, and per-feed FIFO holds.
	assert.Equal(t, []uint{10, 20, 11, 12}, got)
}

func TestLowTierForcedAdmission(t *testing.T) {
	q := New(config.Queue{LowTierAdmissionEvery: 3})

	for i := uint(1); i <= 6; i++ {
		q.Enqueue(Item{ArticleID: i, FeedID: 1, Tier: entity.PriorityHigh})
	}
	q.Enqueue(Item{ArticleID: 100, FeedID: 2, Tier: entity.PriorityLow})

	var got []uint
	for i := 0; i < 7; i++ {
		got = append(got, mustDequeue(t, q, alwaysClaim).ArticleID)
	}
	assert.Contains(t, got[:3], uint(100), "low tier item must be admitted within the forced-admission interval")
}

func TestEnqueueSuppressesDuplicates(t *testing.T) {
	q := New(config.Queue{LowTierAdmissionEvery: 100})

	q.Enqueue(Item{ArticleID: 1, FeedID: 1, Tier: entity.PriorityMedium})
	q.Enqueue(Item{ArticleID: 1, FeedID: 1, Tier: entity.PriorityMedium})

	assert.Equal(t, 1, q.Len(entity.PriorityMedium))
	mustDequeue(t, q, alwaysClaim)
	assert.Equal(t, 0, q.Len(entity.PriorityMedium))

	// After draining, the same article may be queued again.
	q.Enqueue(Item{ArticleID: 1, FeedID: 1, Tier: entity.PriorityMedium})
	assert.Equal(t, 1, q.Len(entity.PriorityMedium))
}

func TestDequeueSkipsLostClaimRaces(t *testing.T) {
	q := New(config.Queue{LowTierAdmissionEvery: 100})

	q.Enqueue(Item{ArticleID: 1, FeedID: 1, Tier: entity.PriorityHigh})
	q.Enqueue(Item{ArticleID: 2, FeedID: 1, Tier: entity.PriorityHigh})

	claim := func(_ context.Context, articleID uint) error {
		if articleID == 1 {
			return apperrors.ErrClaimConflict
		}
		return nil
	}
	item := mustDequeue(t, q, claim)
	assert.Equal(t, uint(2), item.ArticleID)
}

func TestDequeueBlocksUntilEnqueue(t *testing.T) {
	q := New(config.Queue{LowTierAdmissionEvery: 100})

	done := make(chan Item, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		item, err := q.Dequeue(ctx, alwaysClaim)
		if err == nil {
			done <- item
		}
	}()

	time.Sleep(50 * time.Millisecond)
	q.Enqueue(Item{ArticleID: 7, FeedID: 1, Tier: entity.PriorityMedium})

	select {
	case item := <-done:
		assert.Equal(t, uint(7), item.ArticleID)
	case <-time.After(2 * time.Second):
		t.Fatal("dequeue did not wake up on enqueue")
	}
}

func TestDequeueReturnsOnCancel(t *testing.T) {
	q := New(config.Queue{LowTierAdmissionEvery: 100})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := q.Dequeue(ctx, alwaysClaim)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConcurrentDequeueNoDoubleDelivery(t *testing.T) {
	q := New(config.Queue{LowTierAdmissionEvery: 100})

	const n = 200
	for i := uint(1); i <= n; i++ {
		q.Enqueue(Item{ArticleID: i, FeedID: i % 5, Tier: entity.PriorityMedium})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var mu sync.Mutex
	seen := make(map[uint]int)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				item, err := q.Dequeue(ctx, alwaysClaim)
				if err != nil {
					return
				}
				mu.Lock()
				seen[item.ArticleID]++
				if len(seen) == n {
					cancel()
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, n)
	for id, count := range seen {
		assert.Equal(t, 1, count, "article %d delivered more than once", id)
	}
}

func TestBurstEnqueueWakesAllParkedWorkers(t *testing.T) {
	q := New(config.Queue{LowTierAdmissionEvery: 100})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	got := make(chan uint, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			item, err := q.Dequeue(ctx, alwaysClaim)
			if err == nil {
				got <- item.ArticleID
			}
		}()
	}

	// Park both workers on the empty queue, then land two enqueues
	// back-to-back so their wakeups coalesce in the notify buffer.
	time.Sleep(50 * time.Millisecond)
	q.Enqueue(Item{ArticleID: 1, FeedID: 1, Tier: entity.PriorityHigh})
	q.Enqueue(Item{ArticleID: 2, FeedID: 1, Tier: entity.PriorityHigh})

	wg.Wait()
	close(got)

	seen := map[uint]bool{}
	for id := range got {
		seen[id] = true
	}
	assert.Equal(t, map[uint]bool{1: true, 2: true}, seen)
}
