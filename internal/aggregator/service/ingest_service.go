package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang-news-aggregator/internal/aggregator/apperrors"
	"golang-news-aggregator/internal/aggregator/config"
	"golang-news-aggregator/internal/aggregator/dedup"
	"golang-news-aggregator/internal/aggregator/dto"
	"golang-news-aggregator/internal/aggregator/identity"
	"golang-news-aggregator/internal/aggregator/queue"
	"golang-news-aggregator/internal/aggregator/repository"
	"golang-news-aggregator/internal/entity"
	"golang-news-aggregator/pkg/common"
	"golang-news-aggregator/pkg/logger"
	"golang-news-aggregator/pkg/metrics"
	"golang-news-aggregator/pkg/telegram"
	"golang-news-aggregator/pkg/utils"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

// IngestService turns raw fetched items into deduplicated pending articles
// and reports cycle outcomes.
type IngestService interface {
	// RunCycle fetches the given feeds (all due active feeds when nil) and
	// returns the aggregate report. This is the only operation an external
	// scheduler needs.
	RunCycle(ctx context.Context, feedIDs []uint) (*dto.CycleReport, error)
	// ProcessFetchTask consumes one feed fetch task from the stream.
	ProcessFetchTask(ctx context.Context)
	// ProcessFetchRetries reclaims fetch tasks whose consumer went away.
	ProcessFetchRetries(ctx context.Context)
}

// NewIngestService creates the ingest service.
func NewIngestService(
	cfg *config.Config,
	log *logger.Logger,
	redisClient *redis.Client,
	feedRepo repository.FeedRepository,
	articleRepo repository.ArticleRepository,
	fetchLogRepo repository.FetchLogRepository,
	feedReader repository.FeedReaderRepository,
	engine *dedup.Engine,
	workQueue *queue.Queue,
	notifier telegram.Notifier,
) IngestService {
	return &ingestService{
		cfg:          cfg,
		logger:       log,
		redisClient:  redisClient,
		feedRepo:     feedRepo,
		articleRepo:  articleRepo,
		fetchLogRepo: fetchLogRepo,
		feedReader:   feedReader,
		engine:       engine,
		workQueue:    workQueue,
		notifier:     notifier,
		cronParser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

type ingestService struct {
	cfg          *config.Config
	logger       *logger.Logger
	redisClient  *redis.Client
	feedRepo     repository.FeedRepository
	articleRepo  repository.ArticleRepository
	fetchLogRepo repository.FetchLogRepository
	feedReader   repository.FeedReaderRepository
	engine       *dedup.Engine
	workQueue    *queue.Queue
	notifier     telegram.Notifier
	cronParser   cron.Parser
}

// RunCycle fetches, deduplicates, and enqueues in one pass, then persists
// the report as a fetch log.
func (s *ingestService) RunCycle(ctx context.Context, feedIDs []uint) (*dto.CycleReport, error) {
	report := &dto.CycleReport{StartedAt: time.Now()}

	feeds, err := s.selectFeeds(ctx, feedIDs, report.StartedAt)
	if err != nil {
		return nil, err
	}

	for i := range feeds {
		if !utils.ShouldContinue(ctx, s.logger) {
			break
		}
		s.ingestFeed(ctx, &feeds[i], report)
	}

	if counts, err := s.articleRepo.CountByStatus(ctx); err != nil {
		s.logger.Error("Failed to snapshot article status counts", logger.ErrorField(err))
	} else {
		report.ArticlesCompleted = counts[string(entity.StatusCompleted)]
		report.ArticlesFailed = counts[string(entity.StatusFailed)]
	}

	report.FinishedAt = time.Now()
	if err := s.fetchLogRepo.CreateFromReport(ctx, report); err != nil {
		s.logger.Error("Failed to persist cycle report", logger.ErrorField(err))
	}

	s.logger.Info("Run cycle finished",
		logger.IntField("feeds_fetched", report.FeedsFetched),
		logger.IntField("items_fetched", report.ItemsFetched),
		logger.IntField("new", report.New),
		logger.IntField("updated", report.Updated),
		logger.IntField("unchanged", report.Unchanged),
		logger.IntField("duplicates", report.Duplicates),
		logger.IntField("feeds_failed", report.FeedsFailed),
	)
	return report, nil
}

// selectFeeds resolves the cycle's feed set: explicit IDs fetch
// unconditionally, otherwise only active feeds whose interval or cron
// schedule is due.
func (s *ingestService) selectFeeds(ctx context.Context, feedIDs []uint, now time.Time) ([]entity.Feed, error) {
	if len(feedIDs) > 0 {
		feeds, err := s.feedRepo.FindByIDs(ctx, feedIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to load feeds: %w", err)
		}
		return feeds, nil
	}

	active, err := s.feedRepo.FindActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active feeds: %w", err)
	}

	due := make([]entity.Feed, 0, len(active))
	for _, feed := range active {
		if feed.IsDue(now, s.cronNext) {
			due = append(due, feed)
		}
	}
	return due, nil
}

func (s *ingestService) cronNext(expr string, after time.Time) (time.Time, bool) {
	schedule, err := s.cronParser.Parse(expr)
	if err != nil {
		s.logger.Error("Invalid cron expression", logger.StringField("expr", expr), logger.ErrorField(err))
		return time.Time{}, false
	}
	return schedule.Next(after), true
}

func (s *ingestService) ingestFeed(ctx context.Context, feed *entity.Feed, report *dto.CycleReport) {
	items, err := s.feedReader.Fetch(ctx, feed)
	if err != nil {
		s.recordFetchFailure(ctx, feed, err, report)
		return
	}
	if metrics.FeedFetchesTotal != nil {
		metrics.FeedFetchesTotal.WithLabelValues("success").Inc()
	}

	report.FeedsFetched++
	report.ItemsFetched += len(items)

	for _, item := range items {
		if !utils.ShouldContinue(ctx, s.logger) {
			return
		}

		id, err := identity.Derive(item)
		if err != nil {
			if errors.Is(err, apperrors.ErrMalformedItem) {
				report.Malformed++
				s.logger.Warn("Dropping malformed item",
					logger.StringField("feed", feed.URL),
					logger.StringField("title", item.Title),
				)
				continue
			}
			report.Errors = append(report.Errors, err.Error())
			continue
		}

		class, article, err := s.engine.Apply(ctx, feed, item, id)
		if err != nil {
			report.Errors = append(report.Errors, err.Error())
			s.logger.Error("Deduplication failed", logger.ErrorField(err), logger.StringField("guid", id.Key))
			continue
		}
		if metrics.ArticlesIngestedTotal != nil {
			metrics.ArticlesIngestedTotal.WithLabelValues(string(class)).Inc()
		}

		switch class {
		case dedup.ClassNew:
			report.New++
		case dedup.ClassUpdated:
			report.Updated++
		case dedup.ClassUnchanged:
			report.Unchanged++
			continue
		case dedup.ClassDuplicate:
			report.Duplicates++
			continue
		}

		s.workQueue.Enqueue(queue.Item{
			ArticleID: article.ID,
			FeedID:    feed.ID,
			Tier:      feed.Priority,
		})
	}

	if err := s.feedRepo.RecordFetchSuccess(ctx, feed.ID, time.Now()); err != nil {
		s.logger.Error("Failed to record fetch success", logger.ErrorField(err), logger.Field("feed_id", feed.ID))
	}
}

func (s *ingestService) recordFetchFailure(ctx context.Context, feed *entity.Feed, fetchErr error, report *dto.CycleReport) {
	if metrics.FeedFetchesTotal != nil {
		metrics.FeedFetchesTotal.WithLabelValues("failure").Inc()
	}
	report.FeedsFailed++
	report.Errors = append(report.Errors, fetchErr.Error())
	s.logger.Error("Feed fetch failed", logger.ErrorField(fetchErr), logger.StringField("feed", feed.URL))

	deactivated, err := s.feedRepo.RecordFetchFailure(ctx, feed.ID, fetchErr.Error(), s.cfg.Feeds.DeactivateAfterErrors)
	if err != nil {
		s.logger.Error("Failed to record fetch failure", logger.ErrorField(err), logger.Field("feed_id", feed.ID))
		return
	}
	if deactivated {
		report.FeedsDeactivated++
		s.logger.Warn("Feed deactivated after consecutive errors",
			logger.Field("feed_id", feed.ID),
			logger.StringField("feed", feed.URL),
			logger.IntField("threshold", s.cfg.Feeds.DeactivateAfterErrors),
		)
		if s.notifier != nil {
			msg := telegram.FormatFeedDeactivatedMessage(time.Now(), feed.Name, feed.URL, s.cfg.Feeds.DeactivateAfterErrors)
			if err := s.notifier.SendMessage(msg); err != nil {
				s.logger.Error("Failed to send deactivation alert", logger.ErrorField(err))
			}
		}
	}
}

// ProcessFetchTask reads one fetch task from the stream and ingests that
// feed. Malformed messages are acknowledged so they cannot wedge the stream.
func (s *ingestService) ProcessFetchTask(ctx context.Context) {
	streams, err := s.redisClient.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    common.RedisStreamGroup,
		Consumer: common.RedisStreamConsumer,
		Streams:  []string{common.RedisStreamFeedFetch, ">"},
		Count:    1,
		Block:    2 * time.Second, // short block to allow graceful shutdown
	}).Result()
	if err != nil {
		if err == context.Canceled || err == redis.Nil {
			return
		}
		s.logger.Error("Failed to read from stream", logger.ErrorField(err))
		return
	}

	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return
	}
	message := streams[0].Messages[0]

	task, ok := s.decodeTask(message)
	if !ok {
		s.ackAndDelete(ctx, message.ID)
		return
	}

	if err := s.ingestOne(ctx, task.FeedID); err != nil {
		s.logger.Error("Failed to process fetch task", logger.ErrorField(err), logger.Field("feed_id", task.FeedID))
		return
	}
	s.ackAndDelete(ctx, message.ID)
}

// ProcessFetchRetries reclaims fetch tasks whose original consumer stopped
// acknowledging, dropping tasks past the retry budget.
func (s *ingestService) ProcessFetchRetries(ctx context.Context) {
	msgs, _, err := s.redisClient.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   common.RedisStreamFeedFetch,
		Group:    common.RedisStreamGroup,
		Consumer: common.RedisStreamConsumer + "-retry",
		MinIdle:  s.cfg.Scheduler.FetchMaxIdleDuration,
		Start:    "0",
		Count:    1,
	}).Result()
	if err != nil {
		if err == context.Canceled || err == redis.Nil {
			return
		}
		s.logger.Error("Failed to claim fetch task on retry", logger.ErrorField(err))
		return
	}
	if len(msgs) == 0 {
		return
	}

	msg := msgs[0]
	pendingInfo, err := s.redisClient.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: common.RedisStreamFeedFetch,
		Group:  common.RedisStreamGroup,
		Start:  msg.ID,
		End:    msg.ID,
		Count:  1,
	}).Result()
	if err != nil {
		s.logger.Error("Failed to get pending info", logger.ErrorField(err))
		return
	}
	if len(pendingInfo) > 0 && pendingInfo[0].RetryCount >= int64(s.cfg.Scheduler.FetchMaxRetry) {
		s.logger.Error("Fetch task retry count exceeded, dropping",
			logger.StringField("message_id", msg.ID),
			logger.IntField("retry_count", int(pendingInfo[0].RetryCount)),
		)
		s.ackAndDelete(ctx, msg.ID)
		return
	}

	task, ok := s.decodeTask(msg)
	if !ok {
		s.ackAndDelete(ctx, msg.ID)
		return
	}
	if err := s.ingestOne(ctx, task.FeedID); err != nil {
		s.logger.Error("Failed to process fetch task on retry", logger.ErrorField(err), logger.Field("feed_id", task.FeedID))
		return
	}
	s.ackAndDelete(ctx, msg.ID)
}

// ingestOne fetches a single feed and folds its stats into a throwaway
// report; stream-driven fetches are reported per cycle by the scheduler.
func (s *ingestService) ingestOne(ctx context.Context, feedID uint) error {
	feed, err := s.feedRepo.FindByID(ctx, feedID)
	if err != nil {
		return fmt.Errorf("failed to load feed %d: %w", feedID, err)
	}
	report := &dto.CycleReport{StartedAt: time.Now()}
	s.ingestFeed(ctx, feed, report)
	return nil
}

func (s *ingestService) decodeTask(msg redis.XMessage) (dto.FeedFetchTask, bool) {
	var task dto.FeedFetchTask
	payload, ok := msg.Values["payload"].(string)
	if !ok {
		s.logger.Error("field 'payload' not found or not a string in stream message", logger.Field("message_id", msg.ID))
		return task, false
	}
	if err := json.Unmarshal([]byte(payload), &task); err != nil {
		s.logger.Error("Failed to unmarshal fetch task", logger.ErrorField(err), logger.Field("message_id", msg.ID))
		return task, false
	}
	return task, true
}

func (s *ingestService) ackAndDelete(ctx context.Context, messageID string) {
	if err := s.redisClient.XAck(ctx, common.RedisStreamFeedFetch, common.RedisStreamGroup, messageID).Err(); err != nil {
		s.logger.Error("Failed to acknowledge fetch task", logger.ErrorField(err), logger.Field("message_id", messageID))
		return
	}
	if err := s.redisClient.XDel(ctx, common.RedisStreamFeedFetch, messageID).Err(); err != nil {
		s.logger.Error("Failed to delete fetch task", logger.ErrorField(err), logger.Field("message_id", messageID))
	}
}
