package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"golang-news-aggregator/internal/aggregator/apperrors"
	"golang-news-aggregator/internal/aggregator/config"
	"golang-news-aggregator/internal/aggregator/dto"
	"golang-news-aggregator/internal/aggregator/queue"
	"golang-news-aggregator/internal/aggregator/tags"
	"golang-news-aggregator/internal/entity"
	"golang-news-aggregator/pkg/logger"
	"golang-news-aggregator/pkg/telegram"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeArticleRepo struct {
	mu        sync.Mutex
	articles  map[uint]*entity.Article
	completed []uint
	failed    map[uint]string
	released  []uint
	attempts  int
}

func newFakeArticleRepo(articles ...*entity.Article) *fakeArticleRepo {
	r := &fakeArticleRepo{
		articles: make(map[uint]*entity.Article),
		failed:   make(map[uint]string),
	}
	for _, a := range articles {
		r.articles[a.ID] = a
	}
	return r
}

func (r *fakeArticleRepo) FindByID(_ context.Context, id uint) (*entity.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.articles[id]
	if !ok {
		return nil, errors.New("not found")
	}
	clone := *a
	return &clone, nil
}

func (r *fakeArticleRepo) ClaimForProcessing(_ context.Context, id uint) error { return nil }

func (r *fakeArticleRepo) ReleaseClaim(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.released = append(r.released, id)
	return nil
}

func (r *fakeArticleRepo) ReleaseStaleClaims(context.Context, time.Time) ([]entity.Article, error) {
	return nil, nil
}

func (r *fakeArticleRepo) IncrementAttempt(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts++
	return nil
}

func (r *fakeArticleRepo) UpdateRawContent(_ context.Context, id uint, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.articles[id]; ok {
		a.RawContent = content
	}
	return nil
}

func (r *fakeArticleRepo) MarkCompleted(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, id)
	return nil
}

func (r *fakeArticleRepo) MarkFailed(_ context.Context, id uint, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed[id] = reason
	return nil
}

func (r *fakeArticleRepo) RequeueFailed(context.Context, uint) error { return nil }

func (r *fakeArticleRepo) FindUnclaimedPending(context.Context) ([]entity.Article, error) {
	return nil, nil
}

func (r *fakeArticleRepo) CountByStatus(context.Context) (map[string]int64, error) {
	return nil, nil
}

func (r *fakeArticleRepo) FindByGUID(context.Context, string) (*entity.Article, error) {
	return nil, errors.New("not implemented")
}
func (r *fakeArticleRepo) Create(context.Context, *entity.Article) error        { return nil }
func (r *fakeArticleRepo) UpdateContent(context.Context, *entity.Article) error { return nil }
func (r *fakeArticleRepo) AddSecondarySource(context.Context, uint, string) error {
	return nil
}

type fakeSummaryRepo struct {
	mu        sync.Mutex
	summaries map[uint]*entity.Summary
}

func newFakeSummaryRepo() *fakeSummaryRepo {
	return &fakeSummaryRepo{summaries: make(map[uint]*entity.Summary)}
}

func (r *fakeSummaryRepo) Upsert(_ context.Context, s *entity.Summary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries[s.ArticleID] = s
	return nil
}

func (r *fakeSummaryRepo) FindByArticleID(_ context.Context, articleID uint) (*entity.Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.summaries[articleID]
	if !ok {
		return nil, errors.New("not found")
	}
	return s, nil
}

func (r *fakeSummaryRepo) DeleteByArticleID(_ context.Context, articleID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.summaries, articleID)
	return nil
}

type fakeTagRepo struct {
	mu       sync.Mutex
	taxonomy []entity.Tag
	replaced map[uint][]tags.Resolved
}

func newFakeTagRepo(taxonomy ...entity.Tag) *fakeTagRepo {
	return &fakeTagRepo{taxonomy: taxonomy, replaced: make(map[uint][]tags.Resolved)}
}

func (r *fakeTagRepo) FindAll(context.Context) ([]entity.Tag, error) { return r.taxonomy, nil }
func (r *fakeTagRepo) Create(context.Context, *entity.Tag) error     { return nil }

func (r *fakeTagRepo) ReplaceArticleTags(_ context.Context, articleID uint, resolved []tags.Resolved, _ entity.AssignmentSource) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replaced[articleID] = resolved
	return nil
}

func (r *fakeTagRepo) VerifyUsageCounts(context.Context) ([]apperrors.CounterDriftError, error) {
	return nil, nil
}

func (r *fakeTagRepo) TopTags(context.Context, int) ([]dto.TagCount, error) { return nil, nil }

type fakeContentRepo struct {
	text string
	err  error
}

func (r *fakeContentRepo) Extract(context.Context, string) (string, error) {
	return r.text, r.err
}

type fakeAIRepo struct {
	mu            sync.Mutex
	summarizeErrs []error
	tagErrs       []error
	summaryCalls  int
	tagCalls      int
	rawTags       []dto.RawTag
}

func (r *fakeAIRepo) Summarize(_ context.Context, article *entity.Article, mode entity.SummaryMode) (*dto.SummaryResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaryCalls++
	if len(r.summarizeErrs) > 0 {
		err := r.summarizeErrs[0]
		r.summarizeErrs = r.summarizeErrs[1:]
		return nil, err
	}
	return &dto.SummaryResult{Text: "summary of " + article.Title, WordCount: 3, ModelID: "test-model"}, nil
}

func (r *fakeAIRepo) Tag(context.Context, *entity.Article, string) ([]dto.RawTag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tagCalls++
	if len(r.tagErrs) > 0 {
		err := r.tagErrs[0]
		r.tagErrs = r.tagErrs[1:]
		return nil, err
	}
	return r.rawTags, nil
}

func testPipelineConfig() config.Pipeline {
	return config.Pipeline{
		Workers:              1,
		MaxAttempts:          3,
		SummarizeTimeout:     time.Second,
		TagTimeout:           time.Second,
		ArticleTimeout:       5 * time.Second,
		RetryBackoffBase:     time.Millisecond,
		RetryBackoffMax:      4 * time.Millisecond,
		MaxConcurrentSummary: 2,
		MaxConcurrentTagging: 2,
		SummaryMode:          "brief",
	}
}

func testArticle() *entity.Article {
	return &entity.Article{
		ID:           1,
		FeedID:       1,
		GUID:         "g-1",
		Title:        "A Story",
		URL:          "https://example.com/a",
		RawContent:   "full body text",
		Status:       entity.StatusProcessing,
		AttemptCount: 1,
	}
}

func newTestCoordinator(articleRepo *fakeArticleRepo, summaryRepo *fakeSummaryRepo, tagRepo *fakeTagRepo, contentRepo *fakeContentRepo, aiRepo *fakeAIRepo) *Coordinator {
	return NewCoordinator(
		testPipelineConfig(),
		logger.NewNop(),
		articleRepo,
		summaryRepo,
		tagRepo,
		contentRepo,
		aiRepo,
		tags.NewResolver(config.Tags{MinConfidence: 0.3, MaxPerArticle: 10}),
		telegram.NopNotifier{},
	)
}

func TestProcessHappyPath(t *testing.T) {
	articleRepo := newFakeArticleRepo(testArticle())
	summaryRepo := newFakeSummaryRepo()
	tagRepo := newFakeTagRepo(entity.Tag{ID: 1, Name: "technology"})
	aiRepo := &fakeAIRepo{rawTags: []dto.RawTag{{Label: "technology", Confidence: 0.9}}}

	c := newTestCoordinator(articleRepo, summaryRepo, tagRepo, &fakeContentRepo{}, aiRepo)
	c.Process(context.Background(), queue.Item{ArticleID: 1, FeedID: 1})

	assert.Equal(t, []uint{1}, articleRepo.completed)
	require.Contains(t, summaryRepo.summaries, uint(1))
	assert.Equal(t, "summary of A Story", summaryRepo.summaries[1].Text)
	require.Contains(t, tagRepo.replaced, uint(1))
	assert.Len(t, tagRepo.replaced[1], 1)
}

func TestProcessExtractsMissingContent(t *testing.T) {
	article := testArticle()
	article.RawContent = "   "
	articleRepo := newFakeArticleRepo(article)
	contentRepo := &fakeContentRepo{text: "extracted page text"}
	aiRepo := &fakeAIRepo{}

	c := newTestCoordinator(articleRepo, newFakeSummaryRepo(), newFakeTagRepo(), contentRepo, aiRepo)
	c.Process(context.Background(), queue.Item{ArticleID: 1, FeedID: 1})

	assert.Equal(t, []uint{1}, articleRepo.completed)
	assert.Equal(t, "extracted page text", articleRepo.articles[1].RawContent)
}

func TestProcessEmptyContentIsPersistentFailure(t *testing.T) {
	article := testArticle()
	article.RawContent = ""
	articleRepo := newFakeArticleRepo(article)
	contentRepo := &fakeContentRepo{text: "  \n "}

	c := newTestCoordinator(articleRepo, newFakeSummaryRepo(), newFakeTagRepo(), contentRepo, &fakeAIRepo{})
	c.Process(context.Background(), queue.Item{ArticleID: 1, FeedID: 1})

	assert.Empty(t, articleRepo.completed)
	assert.Contains(t, articleRepo.failed[1], "content empty")
}

func TestProcessRetriesTransientSummarizeFailure(t *testing.T) {
	articleRepo := newFakeArticleRepo(testArticle())
	aiRepo := &fakeAIRepo{
		summarizeErrs: []error{
			apperrors.NewTransient("summarize", "rate limited", nil),
			apperrors.NewTransient("summarize", "rate limited", nil),
		},
	}

	c := newTestCoordinator(articleRepo, newFakeSummaryRepo(), newFakeTagRepo(), &fakeContentRepo{}, aiRepo)
	c.Process(context.Background(), queue.Item{ArticleID: 1, FeedID: 1})

	assert.Equal(t, []uint{1}, articleRepo.completed)
	assert.Equal(t, 3, aiRepo.summaryCalls)
	assert.Equal(t, 2, articleRepo.attempts)
}

func TestProcessPersistentSummarizeFailureFailsArticle(t *testing.T) {
	articleRepo := newFakeArticleRepo(testArticle())
	aiRepo := &fakeAIRepo{
		summarizeErrs: []error{
			apperrors.NewPersistent("summarize", "content rejected by model", nil),
		},
	}

	c := newTestCoordinator(articleRepo, newFakeSummaryRepo(), newFakeTagRepo(), &fakeContentRepo{}, aiRepo)
	c.Process(context.Background(), queue.Item{ArticleID: 1, FeedID: 1})

	assert.Empty(t, articleRepo.completed)
	assert.Contains(t, articleRepo.failed[1], "content rejected")
	assert.Equal(t, 1, aiRepo.summaryCalls, "persistent failures must not be retried")
}

func TestProcessExhaustedRetriesFailArticle(t *testing.T) {
	article := testArticle()
	article.AttemptCount = 3 // ceiling already reached by earlier runs
	articleRepo := newFakeArticleRepo(article)
	aiRepo := &fakeAIRepo{
		summarizeErrs: []error{apperrors.NewTransient("summarize", "rate limited", nil)},
	}

	c := newTestCoordinator(articleRepo, newFakeSummaryRepo(), newFakeTagRepo(), &fakeContentRepo{}, aiRepo)
	c.Process(context.Background(), queue.Item{ArticleID: 1, FeedID: 1})

	assert.Empty(t, articleRepo.completed)
	assert.Contains(t, articleRepo.failed[1], "retries exhausted")
}

func TestProcessTerminalTaggingFailureCompletesWithZeroTags(t *testing.T) {
	articleRepo := newFakeArticleRepo(testArticle())
	summaryRepo := newFakeSummaryRepo()
	tagRepo := newFakeTagRepo(entity.Tag{ID: 1, Name: "technology"})
	aiRepo := &fakeAIRepo{
		tagErrs: []error{apperrors.NewPersistent("tag", "malformed model output", nil)},
	}

	c := newTestCoordinator(articleRepo, summaryRepo, tagRepo, &fakeContentRepo{}, aiRepo)
	c.Process(context.Background(), queue.Item{ArticleID: 1, FeedID: 1})

	// The summary survives and the article still completes.
	assert.Equal(t, []uint{1}, articleRepo.completed)
	assert.Contains(t, summaryRepo.summaries, uint(1))
	assert.NotContains(t, tagRepo.replaced, uint(1))
	assert.Empty(t, articleRepo.failed)
}

func TestProcessCancellationReleasesClaim(t *testing.T) {
	articleRepo := newFakeArticleRepo(testArticle())
	ctx, cancel := context.WithCancel(context.Background())
	aiRepo := &fakeAIRepo{
		summarizeErrs: []error{apperrors.NewTransient("summarize", "rate limited", nil)},
	}
	cancel() // canceled before the retry sleep

	c := newTestCoordinator(articleRepo, newFakeSummaryRepo(), newFakeTagRepo(), &fakeContentRepo{}, aiRepo)
	c.Process(ctx, queue.Item{ArticleID: 1, FeedID: 1})

	assert.Empty(t, articleRepo.completed)
	assert.Empty(t, articleRepo.failed)
	assert.Contains(t, articleRepo.released, uint(1))
}
