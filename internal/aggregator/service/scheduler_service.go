package service

import (
	"context"
	"encoding/json"
	"time"

	"golang-news-aggregator/internal/aggregator/config"
	"golang-news-aggregator/internal/aggregator/dto"
	"golang-news-aggregator/internal/aggregator/repository"
	"golang-news-aggregator/internal/entity"
	"golang-news-aggregator/pkg/common"
	"golang-news-aggregator/pkg/logger"
	"golang-news-aggregator/pkg/utils"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

// SchedulerService publishes fetch tasks for due feeds onto the stream.
type SchedulerService interface {
	// Start blocks, polling for due feeds until the context is canceled.
	Start(ctx context.Context)
}

// NewSchedulerService creates the scheduler service.
func NewSchedulerService(
	cfg *config.Config,
	log *logger.Logger,
	redisClient *redis.Client,
	feedRepo repository.FeedRepository,
) SchedulerService {
	return &schedulerService{
		cfg:         cfg,
		logger:      log,
		redisClient: redisClient,
		feedRepo:    feedRepo,
		cronParser:  cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

type schedulerService struct {
	cfg         *config.Config
	logger      *logger.Logger
	redisClient *redis.Client
	feedRepo    repository.FeedRepository
	cronParser  cron.Parser
}

// Start polls at the configured interval and publishes one fetch task per
// due feed. Publishing is at-least-once; the consumer group keeps a task
// from being fetched by two consumers at the same time.
func (s *schedulerService) Start(ctx context.Context) {
	s.logger.Info("Scheduler started",
		logger.DurationField("polling_interval", s.cfg.Scheduler.PollingInterval))

	ticker := time.NewTicker(s.cfg.Scheduler.PollingInterval)
	defer ticker.Stop()

	s.publishDueFeeds(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped")
			return
		case <-ticker.C:
			s.publishDueFeeds(ctx)
		}
	}
}

func (s *schedulerService) publishDueFeeds(ctx context.Context) {
	feeds, err := s.feedRepo.FindActive(ctx)
	if err != nil {
		s.logger.Error("Failed to load active feeds", logger.ErrorField(err))
		return
	}

	now := time.Now()
	published := 0
	for i := range feeds {
		if !utils.ShouldContinue(ctx, s.logger) {
			return
		}
		if !feeds[i].IsDue(now, s.cronNext) {
			continue
		}
		if err := s.publishTask(ctx, &feeds[i]); err != nil {
			s.logger.Error("Failed to publish fetch task",
				logger.ErrorField(err), logger.Field("feed_id", feeds[i].ID))
			continue
		}
		published++
	}
	if published > 0 {
		s.logger.Info("Published fetch tasks", logger.IntField("count", published))
	}
}

func (s *schedulerService) publishTask(ctx context.Context, feed *entity.Feed) error {
	task := dto.FeedFetchTask{
		FeedID:     feed.ID,
		EnqueuedAt: time.Now(),
	}
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return s.redisClient.XAdd(ctx, &redis.XAddArgs{
		Stream: common.RedisStreamFeedFetch,
		MaxLen: s.cfg.Redis.StreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"payload": string(payload)},
	}).Err()
}

func (s *schedulerService) cronNext(expr string, after time.Time) (time.Time, bool) {
	schedule, err := s.cronParser.Parse(expr)
	if err != nil {
		s.logger.Error("Invalid cron expression", logger.StringField("expr", expr), logger.ErrorField(err))
		return time.Time{}, false
	}
	return schedule.Next(after), true
}
