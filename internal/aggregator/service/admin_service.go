package service

import (
	"context"
	"fmt"

	"golang-news-aggregator/internal/aggregator/dto"
	"golang-news-aggregator/internal/aggregator/queue"
	"golang-news-aggregator/internal/aggregator/repository"
	"golang-news-aggregator/internal/entity"
	"golang-news-aggregator/pkg/logger"
)

// AdminService backs the operator HTTP API.
type AdminService interface {
	GetStats(ctx context.Context) (*dto.StatsReport, error)
	// RequeueArticle returns a failed article to pending and puts it back on
	// the work queue. Attempt history is kept.
	RequeueArticle(ctx context.Context, articleID uint) error
	ListFeeds(ctx context.Context) ([]entity.Feed, error)
	CreateFeed(ctx context.Context, feed *entity.Feed) error
	ReactivateFeed(ctx context.Context, feedID uint) error
	RecentFetchLogs(ctx context.Context, limit int) ([]entity.FetchLog, error)
}

// NewAdminService creates the admin service.
func NewAdminService(
	log *logger.Logger,
	feedRepo repository.FeedRepository,
	articleRepo repository.ArticleRepository,
	tagRepo repository.TagRepository,
	fetchLogRepo repository.FetchLogRepository,
	workQueue *queue.Queue,
) AdminService {
	return &adminService{
		logger:       log,
		feedRepo:     feedRepo,
		articleRepo:  articleRepo,
		tagRepo:      tagRepo,
		fetchLogRepo: fetchLogRepo,
		workQueue:    workQueue,
	}
}

type adminService struct {
	logger       *logger.Logger
	feedRepo     repository.FeedRepository
	articleRepo  repository.ArticleRepository
	tagRepo      repository.TagRepository
	fetchLogRepo repository.FetchLogRepository
	workQueue    *queue.Queue
}

const topTagsLimit = 20

func (s *adminService) GetStats(ctx context.Context) (*dto.StatsReport, error) {
	byStatus, err := s.articleRepo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count articles: %w", err)
	}
	topTags, err := s.tagRepo.TopTags(ctx, topTagsLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load top tags: %w", err)
	}
	active, inactive, err := s.feedRepo.CountByActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count feeds: %w", err)
	}
	return &dto.StatsReport{
		ArticlesByStatus: byStatus,
		TopTags:          topTags,
		ActiveFeeds:      active,
		InactiveFeeds:    inactive,
	}, nil
}

func (s *adminService) RequeueArticle(ctx context.Context, articleID uint) error {
	if err := s.articleRepo.RequeueFailed(ctx, articleID); err != nil {
		return err
	}

	article, err := s.articleRepo.FindByID(ctx, articleID)
	if err != nil {
		return err
	}
	tier := entity.PriorityLow
	if feed, err := s.feedRepo.FindByID(ctx, article.FeedID); err == nil {
		tier = feed.Priority
	}
	s.workQueue.Enqueue(queue.Item{
		ArticleID: article.ID,
		FeedID:    article.FeedID,
		Tier:      tier,
	})
	s.logger.Info("Article requeued", logger.Field("article_id", articleID))
	return nil
}

func (s *adminService) ListFeeds(ctx context.Context) ([]entity.Feed, error) {
	return s.feedRepo.FindAll(ctx)
}

func (s *adminService) CreateFeed(ctx context.Context, feed *entity.Feed) error {
	return s.feedRepo.Create(ctx, feed)
}

func (s *adminService) ReactivateFeed(ctx context.Context, feedID uint) error {
	return s.feedRepo.Reactivate(ctx, feedID)
}

func (s *adminService) RecentFetchLogs(ctx context.Context, limit int) ([]entity.FetchLog, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.fetchLogRepo.FindRecent(ctx, limit)
}
