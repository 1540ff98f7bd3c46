package queue

import (
	"context"
	"errors"
	"sync"

	"golang-news-aggregator/internal/aggregator/apperrors"
	"golang-news-aggregator/internal/aggregator/config"
	"golang-news-aggregator/internal/entity"
	"golang-news-aggregator/pkg/metrics"
)

// Item is one unit of queued work: an article reference with its feed and
// priority tier.
type Item struct {
	ArticleID uint
	FeedID    uint
	Tier      entity.FeedPriority
}

// ClaimFunc atomically transitions an article from pending to processing.
// It returns apperrors.ErrClaimConflict when another worker won the race.
type ClaimFunc func(ctx context.Context, articleID uint) error

// tierQueue keeps FIFO order per feed and round-robins across feeds so one
// high-volume feed cannot monopolize its tier.
type tierQueue struct {
	feedOrder []uint
	perFeed   map[uint][]Item
	next      int
}

func newTierQueue() *tierQueue {
	return &tierQueue{perFeed: make(map[uint][]Item)}
}

func (t *tierQueue) push(item Item) {
	if _, ok := t.perFeed[item.FeedID]; !ok {
		t.feedOrder = append(t.feedOrder, item.FeedID)
	}
	t.perFeed[item.FeedID] = append(t.perFeed[item.FeedID], item)
}

func (t *tierQueue) pop() (Item, bool) {
	for range t.feedOrder {
		if t.next >= len(t.feedOrder) {
			t.next = 0
		}
		feedID := t.feedOrder[t.next]
		items := t.perFeed[feedID]
		if len(items) == 0 {
			// Feed drained; drop it from the rotation.
			t.feedOrder = append(t.feedOrder[:t.next], t.feedOrder[t.next+1:]...)
			delete(t.perFeed, feedID)
			continue
		}
		item := items[0]
		if len(items) == 1 {
			t.feedOrder = append(t.feedOrder[:t.next], t.feedOrder[t.next+1:]...)
			delete(t.perFeed, feedID)
		} else {
			t.perFeed[feedID] = items[1:]
			t.next++
		}
		return item, true
	}
	return Item{}, false
}

func (t *tierQueue) len() int {
	n := 0
	for _, items := range t.perFeed {
		n += len(items)
	}
	return n
}

// Queue is the in-process work queue: strict priority across the high,
// medium, and low tiers, with a periodic forced admission of the low tier so
// backfill work cannot starve under sustained high-priority load.
type Queue struct {
	mu       sync.Mutex
	tiers    map[entity.FeedPriority]*tierQueue
	queued   map[uint]struct{}
	dequeues int
	lowEvery int
	notify   chan struct{}
}

// New creates an empty queue.
func New(cfg config.Queue) *Queue {
	return &Queue{
		tiers: map[entity.FeedPriority]*tierQueue{
			entity.PriorityHigh:   newTierQueue(),
			entity.PriorityMedium: newTierQueue(),
			entity.PriorityLow:    newTierQueue(),
		},
		queued:   make(map[uint]struct{}),
		lowEvery: cfg.LowTierAdmissionEvery,
		notify:   make(chan struct{}, 1),
	}
}

// Enqueue adds an article reference. An article already queued is not added
// twice; re-enqueue after a content update is a no-op until a worker drains
// the first entry.
func (q *Queue) Enqueue(item Item) {
	if item.Tier == "" {
		item.Tier = entity.PriorityMedium
	}

	q.mu.Lock()
	if _, dup := q.queued[item.ArticleID]; dup {
		q.mu.Unlock()
		return
	}
	q.queued[item.ArticleID] = struct{}{}
	q.tiers[item.Tier].push(item)
	q.updateDepthLocked()
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Dequeue blocks until an eligible article is removed from the queue AND
// claimed through claim. A lost claim race discards the stale entry and
// moves on, so the pending->processing transition is atomic with removal as
// far as callers can observe.
func (q *Queue) Dequeue(ctx context.Context, claim ClaimFunc) (Item, error) {
	for {
		item, ok := q.tryPop()
		if !ok {
			select {
			case <-ctx.Done():
				return Item{}, ctx.Err()
			case <-q.notify:
				continue
			}
		}

		err := claim(ctx, item.ArticleID)
		switch {
		case err == nil:
			return item, nil
		case errors.Is(err, apperrors.ErrClaimConflict):
			// Someone else processed or claimed it; not an error.
			continue
		default:
			return Item{}, err
		}
	}
}

// Len returns the number of queued items in the given tier.
func (q *Queue) Len(tier entity.FeedPriority) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.tiers[tier].len()
}

func (q *Queue) tryPop() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.dequeues++

	order := []entity.FeedPriority{entity.PriorityHigh, entity.PriorityMedium, entity.PriorityLow}
	if q.lowEvery > 0 && q.dequeues%q.lowEvery == 0 && q.tiers[entity.PriorityLow].len() > 0 {
		order = []entity.FeedPriority{entity.PriorityLow, entity.PriorityHigh, entity.PriorityMedium}
	}

	for _, tier := range order {
		if item, ok := q.tiers[tier].pop(); ok {
			delete(q.queued, item.ArticleID)
			q.updateDepthLocked()
			// The notify buffer holds one signal, so back-to-back enqueues
			// can coalesce while several workers are parked. Re-signal when
			// work remains so a parked worker picks it up.
			if len(q.queued) > 0 {
				select {
				case q.notify <- struct{}{}:
				default:
				}
			}
			return item, true
		}
	}
	return Item{}, false
}

func (q *Queue) updateDepthLocked() {
	if metrics.QueueDepth == nil {
		return
	}
	for tier, tq := range q.tiers {
		metrics.QueueDepth.WithLabelValues(string(tier)).Set(float64(tq.len()))
	}
}
