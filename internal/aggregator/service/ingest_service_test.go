package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"golang-news-aggregator/internal/aggregator/apperrors"
	"golang-news-aggregator/internal/aggregator/config"
	"golang-news-aggregator/internal/aggregator/dedup"
	"golang-news-aggregator/internal/aggregator/dto"
	"golang-news-aggregator/internal/aggregator/queue"
	"golang-news-aggregator/internal/entity"
	"golang-news-aggregator/pkg/logger"
	"golang-news-aggregator/pkg/telegram"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFeedRepo struct {
	mu          sync.Mutex
	feeds       map[uint]*entity.Feed
	successes   []uint
	failures    []uint
	deactivated map[uint]bool
	threshold   int
}

func newFakeFeedRepo(feeds ...*entity.Feed) *fakeFeedRepo {
	r := &fakeFeedRepo{feeds: make(map[uint]*entity.Feed), deactivated: make(map[uint]bool)}
	for _, f := range feeds {
		r.feeds[f.ID] = f
	}
	return r
}

func (r *fakeFeedRepo) Create(_ context.Context, feed *entity.Feed) error {
	r.feeds[feed.ID] = feed
	return nil
}

func (r *fakeFeedRepo) FindByID(_ context.Context, id uint) (*entity.Feed, error) {
	f := r.feeds[id]
	clone := *f
	return &clone, nil
}

func (r *fakeFeedRepo) FindByIDs(_ context.Context, ids []uint) ([]entity.Feed, error) {
	var out []entity.Feed
	for _, id := range ids {
		if f, ok := r.feeds[id]; ok {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (r *fakeFeedRepo) FindAll(context.Context) ([]entity.Feed, error) {
	var out []entity.Feed
	for _, f := range r.feeds {
		out = append(out, *f)
	}
	return out, nil
}

func (r *fakeFeedRepo) FindActive(context.Context) ([]entity.Feed, error) {
	var out []entity.Feed
	for _, f := range r.feeds {
		if f.Active {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (r *fakeFeedRepo) Update(context.Context, *entity.Feed) error { return nil }
func (r *fakeFeedRepo) Delete(context.Context, uint) error         { return nil }

func (r *fakeFeedRepo) RecordFetchSuccess(_ context.Context, id uint, fetchedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.successes = append(r.successes, id)
	f := r.feeds[id]
	f.LastFetchedAt = &fetchedAt
	f.ConsecutiveErrors = 0
	return nil
}

func (r *fakeFeedRepo) RecordFetchFailure(_ context.Context, id uint, errMsg string, threshold int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, id)
	f := r.feeds[id]
	f.ConsecutiveErrors++
	f.LastError = errMsg
	if f.ConsecutiveErrors >= threshold && f.Active {
		f.Active = false
		r.deactivated[id] = true
		return true, nil
	}
	return false, nil
}

func (r *fakeFeedRepo) Reactivate(_ context.Context, id uint) error {
	f := r.feeds[id]
	f.Active = true
	f.ConsecutiveErrors = 0
	return nil
}

func (r *fakeFeedRepo) CountByActive(context.Context) (int64, int64, error) { return 0, 0, nil }

type fakeFetchLogRepo struct {
	mu      sync.Mutex
	reports []*dto.CycleReport
}

func (r *fakeFetchLogRepo) CreateFromReport(_ context.Context, report *dto.CycleReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
	return nil
}

func (r *fakeFetchLogRepo) FindRecent(context.Context, int) ([]entity.FetchLog, error) {
	return nil, nil
}

type fakeFeedReader struct {
	items map[uint][]dto.RawItem
	errs  map[uint]error
}

func (r *fakeFeedReader) Fetch(_ context.Context, feed *entity.Feed) ([]dto.RawItem, error) {
	if err, ok := r.errs[feed.ID]; ok {
		return nil, err
	}
	return r.items[feed.ID], nil
}

// engineStore is a minimal in-memory dedup.ArticleStore.
type engineStore struct {
	byGUID map[string]*entity.Article
	nextID uint
}

func newEngineStore() *engineStore {
	return &engineStore{byGUID: make(map[string]*entity.Article)}
}

func (s *engineStore) FindByGUID(_ context.Context, guid string) (*entity.Article, error) {
	a, ok := s.byGUID[guid]
	if !ok {
		return nil, dedup.ErrNotFound
	}
	clone := *a
	return &clone, nil
}

func (s *engineStore) Create(_ context.Context, article *entity.Article) error {
	if _, exists := s.byGUID[article.GUID]; exists {
		return dedup.ErrGUIDConflict
	}
	s.nextID++
	article.ID = s.nextID
	clone := *article
	s.byGUID[article.GUID] = &clone
	return nil
}

func (s *engineStore) UpdateContent(_ context.Context, article *entity.Article) error {
	clone := *article
	s.byGUID[article.GUID] = &clone
	return nil
}

func (s *engineStore) AddSecondarySource(context.Context, uint, string) error { return nil }

func newTestIngest(feedRepo *fakeFeedRepo, reader *fakeFeedReader) (IngestService, *queue.Queue, *fakeFetchLogRepo, *fakeArticleRepo) {
	cfg := &config.Config{}
	cfg.Feeds.DeactivateAfterErrors = 2
	cfg.Dedup.TitleSimilarityThreshold = 0.85
	cfg.Dedup.DuplicateWindow = 48 * time.Hour
	cfg.Queue.LowTierAdmissionEvery = 10

	log := logger.NewNop()
	engine := dedup.NewEngine(newEngineStore(), log, cfg.Dedup)
	workQueue := queue.New(cfg.Queue)
	fetchLogRepo := &fakeFetchLogRepo{}
	articleRepo := &fakeArticleRepo{}

	svc := NewIngestService(cfg, log, nil, feedRepo, articleRepo, fetchLogRepo, reader, engine, workQueue, telegram.NopNotifier{})
	return svc, workQueue, fetchLogRepo, articleRepo
}

func timePtr(t time.Time) *time.Time { return &t }

func TestRunCycleFetchesDueFeedsOnly(t *testing.T) {
	now := time.Now()
	due := &entity.Feed{ID: 1, URL: "https://a.example.com/rss", Active: true,
		FetchIntervalSeconds: 3600, LastFetchedAt: timePtr(now.Add(-2 * time.Hour)),
		Priority: entity.PriorityHigh}
	notDue := &entity.Feed{ID: 2, URL: "https://b.example.com/rss", Active: true,
		FetchIntervalSeconds: 3600, LastFetchedAt: timePtr(now.Add(-30 * time.Minute)),
		Priority: entity.PriorityLow}

	feedRepo := newFakeFeedRepo(due, notDue)
	reader := &fakeFeedReader{items: map[uint][]dto.RawItem{
		1: {{GUID: "g-1", Title: "One", URL: "https://a.example.com/1", Content: "body"}},
		2: {{GUID: "g-2", Title: "Two", URL: "https://b.example.com/2", Content: "body"}},
	}}
	svc, workQueue, _, _ := newTestIngest(feedRepo, reader)

	report, err := svc.RunCycle(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, report.FeedsFetched)
	assert.Equal(t, 1, report.New)
	assert.Equal(t, []uint{1}, feedRepo.successes)
	assert.Equal(t, 1, workQueue.Len(entity.PriorityHigh))
	assert.Equal(t, 0, workQueue.Len(entity.PriorityLow))
}

func TestRunCycleExplicitFeedsBypassSchedule(t *testing.T) {
	now := time.Now()
	notDue := &entity.Feed{ID: 2, URL: "https://b.example.com/rss", Active: true,
		FetchIntervalSeconds: 3600, LastFetchedAt: timePtr(now.Add(-30 * time.Minute)),
		Priority: entity.PriorityMedium}

	feedRepo := newFakeFeedRepo(notDue)
	reader := &fakeFeedReader{items: map[uint][]dto.RawItem{
		2: {{GUID: "g-2", Title: "Two", URL: "https://b.example.com/2", Content: "body"}},
	}}
	svc, _, _, _ := newTestIngest(feedRepo, reader)

	report, err := svc.RunCycle(context.Background(), []uint{2})
	require.NoError(t, err)
	assert.Equal(t, 1, report.FeedsFetched)
	assert.Equal(t, 1, report.New)
}

func TestRunCycleCountsClassifications(t *testing.T) {
	feed := &entity.Feed{ID: 1, URL: "https://a.example.com/rss", Active: true,
		FetchIntervalSeconds: 3600, Priority: entity.PriorityMedium}
	feedRepo := newFakeFeedRepo(feed)
	reader := &fakeFeedReader{items: map[uint][]dto.RawItem{
		1: {
			{GUID: "g-1", Title: "One", URL: "https://a.example.com/1", Content: "body"},
			{GUID: "g-1", Title: "One", URL: "https://a.example.com/1", Content: "body"},
			{GUID: "g-1", Title: "One Edited", URL: "https://a.example.com/1", Content: "new body"},
			{Title: "no identity at all"},
		},
	}}
	svc, _, fetchLogRepo, _ := newTestIngest(feedRepo, reader)

	report, err := svc.RunCycle(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 4, report.ItemsFetched)
	assert.Equal(t, 1, report.New)
	assert.Equal(t, 1, report.Unchanged)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 1, report.Malformed)
	require.Len(t, fetchLogRepo.reports, 1)
}

func TestRunCycleDeactivatesFailingFeed(t *testing.T) {
	feed := &entity.Feed{ID: 1, URL: "https://a.example.com/rss", Active: true,
		FetchIntervalSeconds: 3600, ConsecutiveErrors: 1, Priority: entity.PriorityMedium}
	feedRepo := newFakeFeedRepo(feed)
	reader := &fakeFeedReader{errs: map[uint]error{
		1: &apperrors.FetchError{Kind: apperrors.KindTransient, FeedURL: feed.URL},
	}}
	svc, _, _, _ := newTestIngest(feedRepo, reader)

	report, err := svc.RunCycle(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, report.FeedsFailed)
	assert.Equal(t, 1, report.FeedsDeactivated)
	assert.True(t, feedRepo.deactivated[1])
	assert.False(t, feedRepo.feeds[1].Active)
}

func TestRunCycleSnapshotsArticleOutcomes(t *testing.T) {
	feed := &entity.Feed{ID: 1, URL: "https://a.example.com/rss", Active: true,
		FetchIntervalSeconds: 3600, Priority: entity.PriorityMedium}
	feedRepo := newFakeFeedRepo(feed)
	reader := &fakeFeedReader{items: map[uint][]dto.RawItem{
		1: {{GUID: "g-1", Title: "One", URL: "https://a.example.com/1", Content: "body"}},
	}}
	svc, _, fetchLogRepo, articleRepo := newTestIngest(feedRepo, reader)
	articleRepo.counts = map[string]int64{
		string(entity.StatusCompleted): 5,
		string(entity.StatusFailed):    2,
		string(entity.StatusPending):   3,
	}

	report, err := svc.RunCycle(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, int64(5), report.ArticlesCompleted)
	assert.Equal(t, int64(2), report.ArticlesFailed)
	require.Len(t, fetchLogRepo.reports, 1)
	assert.Equal(t, int64(5), fetchLogRepo.reports[0].ArticlesCompleted)
	assert.Equal(t, int64(2), fetchLogRepo.reports[0].ArticlesFailed)
}
