package service

import (
	"context"
	"sync"
	"time"

	"golang-news-aggregator/internal/aggregator/config"
	"golang-news-aggregator/internal/aggregator/pipeline"
	"golang-news-aggregator/internal/aggregator/queue"
	"golang-news-aggregator/internal/aggregator/repository"
	"golang-news-aggregator/internal/entity"
	"golang-news-aggregator/pkg/logger"
	"golang-news-aggregator/pkg/utils"
)

// counterCheckInterval paces the tag usage counter audit. Drift is rare and
// the recompute scans article_tags, so this stays coarse.
const counterCheckInterval = 10 * time.Minute

// WorkerService runs the processing workers, the stale-claim reaper, and the
// tag counter audit.
type WorkerService interface {
	Start(ctx context.Context)
	Stop()
}

// NewWorkerService creates the worker service.
func NewWorkerService(
	cfg *config.Config,
	log *logger.Logger,
	workQueue *queue.Queue,
	articleRepo repository.ArticleRepository,
	feedRepo repository.FeedRepository,
	tagRepo repository.TagRepository,
	coordinator *pipeline.Coordinator,
) WorkerService {
	return &workerService{
		cfg:         cfg,
		logger:      log,
		workQueue:   workQueue,
		articleRepo: articleRepo,
		feedRepo:    feedRepo,
		tagRepo:     tagRepo,
		coordinator: coordinator,
	}
}

type workerService struct {
	cfg         *config.Config
	logger      *logger.Logger
	workQueue   *queue.Queue
	articleRepo repository.ArticleRepository
	feedRepo    repository.FeedRepository
	tagRepo     repository.TagRepository
	coordinator *pipeline.Coordinator

	wg sync.WaitGroup
}

// Start launches the worker pool and background tickers. It returns
// immediately; Stop waits for in-flight articles to finish.
func (s *workerService) Start(ctx context.Context) {
	s.logger.Info("Starting workers", logger.IntField("workers", s.cfg.Pipeline.Workers))

	// The in-memory queue is empty after a restart; reload whatever pending
	// work the database still holds before the workers begin pulling.
	s.backfillPending(ctx)

	for i := 0; i < s.cfg.Pipeline.Workers; i++ {
		s.wg.Add(1)
		utils.GoSafe(func() {
			defer s.wg.Done()
			s.runWorker(ctx)
		})
	}

	s.wg.Add(1)
	utils.GoSafe(func() {
		defer s.wg.Done()
		s.runReaper(ctx)
	})

	s.wg.Add(1)
	utils.GoSafe(func() {
		defer s.wg.Done()
		s.runCounterAudit(ctx)
	})
}

// Stop blocks until all workers and tickers have returned. Callers cancel
// the Start context first.
func (s *workerService) Stop() {
	s.wg.Wait()
	s.logger.Info("Workers stopped")
}

func (s *workerService) runWorker(ctx context.Context) {
	for utils.ShouldContinue(ctx, s.logger) {
		item, err := s.workQueue.Dequeue(ctx, s.articleRepo.ClaimForProcessing)
		if err != nil {
			// Dequeue only fails on context cancellation.
			return
		}
		s.coordinator.Process(ctx, item)
	}
}

// runReaper returns articles stuck in processing to pending and puts them
// back on the queue under their feed's tier. Each tick also sweeps unclaimed
// pending articles back onto the queue: the coordinator releases claims on
// wall-clock expiry and shutdown without re-enqueueing, so the sweep is what
// gets those articles another run.
func (s *workerService) runReaper(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Pipeline.ReaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reapStaleClaims(ctx)
			s.backfillPending(ctx)
		}
	}
}

// backfillPending re-enqueues pending articles that are not on the queue:
// claims released by the coordinator and rows left over from a restart. The
// queue suppresses duplicates, so enqueueing an already-queued article is a
// no-op.
func (s *workerService) backfillPending(ctx context.Context) {
	pending, err := s.articleRepo.FindUnclaimedPending(ctx)
	if err != nil {
		s.logger.Error("Failed to load unclaimed pending articles", logger.ErrorField(err))
		return
	}
	if len(pending) == 0 {
		return
	}

	tiers := s.feedTiers(ctx, pending)
	for _, article := range pending {
		tier, ok := tiers[article.FeedID]
		if !ok {
			tier = entity.PriorityLow
		}
		s.workQueue.Enqueue(queue.Item{
			ArticleID: article.ID,
			FeedID:    article.FeedID,
			Tier:      tier,
		})
	}
}

func (s *workerService) reapStaleClaims(ctx context.Context) {
	cutoff := time.Now().Add(-s.cfg.Pipeline.ClaimExpiry)
	released, err := s.articleRepo.ReleaseStaleClaims(ctx, cutoff)
	if err != nil {
		s.logger.Error("Failed to release stale claims", logger.ErrorField(err))
		return
	}
	if len(released) == 0 {
		return
	}
	s.logger.Warn("Released stale claims", logger.IntField("count", len(released)))

	tiers := s.feedTiers(ctx, released)
	for _, article := range released {
		tier, ok := tiers[article.FeedID]
		if !ok {
			tier = entity.PriorityLow
		}
		s.workQueue.Enqueue(queue.Item{
			ArticleID: article.ID,
			FeedID:    article.FeedID,
			Tier:      tier,
		})
	}
}

func (s *workerService) feedTiers(ctx context.Context, articles []entity.Article) map[uint]entity.FeedPriority {
	seen := make(map[uint]struct{}, len(articles))
	ids := make([]uint, 0, len(articles))
	for _, a := range articles {
		if _, ok := seen[a.FeedID]; ok {
			continue
		}
		seen[a.FeedID] = struct{}{}
		ids = append(ids, a.FeedID)
	}

	tiers := make(map[uint]entity.FeedPriority, len(ids))
	feeds, err := s.feedRepo.FindByIDs(ctx, ids)
	if err != nil {
		s.logger.Error("Failed to load feeds for requeue", logger.ErrorField(err))
		return tiers
	}
	for _, f := range feeds {
		tiers[f.ID] = f.Priority
	}
	return tiers
}

// runCounterAudit periodically recomputes tag usage counters and repairs
// drift, logging each mismatch.
func (s *workerService) runCounterAudit(ctx context.Context) {
	ticker := time.NewTicker(counterCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			drifts, err := s.tagRepo.VerifyUsageCounts(ctx)
			if err != nil {
				s.logger.Error("Tag counter audit failed", logger.ErrorField(err))
				continue
			}
			for _, d := range drifts {
				s.logger.Error("Tag usage counter drift repaired",
					logger.Field("tag_id", d.TagID),
					logger.IntField("stored", int(d.Stored)),
					logger.IntField("computed", int(d.Computed)),
				)
			}
		}
	}
}
