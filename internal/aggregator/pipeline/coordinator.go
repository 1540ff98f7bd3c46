package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang-news-aggregator/internal/aggregator/apperrors"
	"golang-news-aggregator/internal/aggregator/config"
	"golang-news-aggregator/internal/aggregator/dto"
	"golang-news-aggregator/internal/aggregator/identity"
	"golang-news-aggregator/internal/aggregator/queue"
	"golang-news-aggregator/internal/aggregator/repository"
	"golang-news-aggregator/internal/aggregator/tags"
	"golang-news-aggregator/internal/entity"
	"golang-news-aggregator/pkg/logger"
	"golang-news-aggregator/pkg/metrics"
	"golang-news-aggregator/pkg/telegram"
)

// Coordinator drives one claimed article through persist-content ->
// summarize -> tag -> finalize, applying the retry policy and the state
// machine transitions.
type Coordinator struct {
	cfg         config.Pipeline
	logger      *logger.Logger
	articleRepo repository.ArticleRepository
	summaryRepo repository.SummaryRepository
	tagRepo     repository.TagRepository
	contentRepo repository.ContentRepository
	aiRepo      repository.AIRepository
	resolver    *tags.Resolver
	notifier    telegram.Notifier

	summarySem chan struct{}
	taggingSem chan struct{}
}

// NewCoordinator creates a pipeline coordinator. The semaphores bound
// concurrent calls per downstream service class across all workers.
func NewCoordinator(
	cfg config.Pipeline,
	log *logger.Logger,
	articleRepo repository.ArticleRepository,
	summaryRepo repository.SummaryRepository,
	tagRepo repository.TagRepository,
	contentRepo repository.ContentRepository,
	aiRepo repository.AIRepository,
	resolver *tags.Resolver,
	notifier telegram.Notifier,
) *Coordinator {
	return &Coordinator{
		cfg:         cfg,
		logger:      log,
		articleRepo: articleRepo,
		summaryRepo: summaryRepo,
		tagRepo:     tagRepo,
		contentRepo: contentRepo,
		aiRepo:      aiRepo,
		resolver:    resolver,
		notifier:    notifier,
		summarySem:  make(chan struct{}, cfg.MaxConcurrentSummary),
		taggingSem:  make(chan struct{}, cfg.MaxConcurrentTagging),
	}
}

// Process runs the pipeline for one already-claimed article. The article is
// in processing state on entry; on return it is completed, failed, or back
// to pending (cancellation / wall-clock expiry).
func (c *Coordinator) Process(ctx context.Context, item queue.Item) {
	article, err := c.articleRepo.FindByID(ctx, item.ArticleID)
	if err != nil {
		c.logger.Error("Failed to load claimed article", logger.ErrorField(err), logger.Field("article_id", item.ArticleID))
		c.release(item.ArticleID)
		return
	}

	// Coordinator-level wall clock so one slow article cannot hold its
	// queue slot indefinitely.
	wallCtx, cancel := context.WithTimeout(ctx, c.cfg.ArticleTimeout)
	defer cancel()

	if err := c.ensureContent(wallCtx, article); err != nil {
		c.finishWithError(ctx, article, err)
		return
	}

	summary, err := c.summarize(wallCtx, article)
	if err != nil {
		c.finishWithError(ctx, article, err)
		return
	}

	if err := c.summaryRepo.Upsert(wallCtx, summary); err != nil {
		c.logger.Error("Failed to persist summary", logger.ErrorField(err), logger.Field("article_id", article.ID))
		c.release(article.ID)
		return
	}

	// Tagging is best-effort enrichment: a terminal tagging failure still
	// completes the article with zero tags. Only cancellation aborts.
	if err := c.tag(wallCtx, article, summary.Text); err != nil {
		if wallCtx.Err() != nil {
			// Shutdown or wall-clock expiry, not a tagging verdict. The
			// committed summary stays; the article goes back to pending.
			c.release(article.ID)
			return
		}
		c.logger.Warn("Tagging failed, completing article with zero tags",
			logger.ErrorField(err), logger.Field("article_id", article.ID))
	}

	if err := c.articleRepo.MarkCompleted(context.Background(), article.ID); err != nil {
		c.logger.Error("Failed to mark article completed", logger.ErrorField(err), logger.Field("article_id", article.ID))
		return
	}
	if metrics.ArticlesProcessedTotal != nil {
		metrics.ArticlesProcessedTotal.WithLabelValues(string(entity.StatusCompleted)).Inc()
	}
	c.logger.Info("Article processing completed", logger.Field("article_id", article.ID))
}

// ensureContent fetches the full page text when the feed entry body is
// missing. Content still empty after normalization is a persistent failure.
func (c *Coordinator) ensureContent(ctx context.Context, article *entity.Article) error {
	if identity.CollapseWhitespace(article.RawContent) == "" {
		text, err := c.contentRepo.Extract(ctx, article.URL)
		if err != nil {
			return apperrors.NewTransient("fetch-store", "failed to extract article content", err)
		}
		article.RawContent = text
		if err := c.articleRepo.UpdateRawContent(ctx, article.ID, text); err != nil {
			return apperrors.NewTransient("fetch-store", "failed to persist article content", err)
		}
	}
	if identity.CollapseWhitespace(article.RawContent) == "" {
		return apperrors.NewPersistent("fetch-store", "content empty after normalization", nil)
	}
	return nil
}

func (c *Coordinator) summarize(ctx context.Context, article *entity.Article) (*entity.Summary, error) {
	mode := entity.SummaryMode(c.cfg.SummaryMode)

	result, err := retryStage(ctx, c, article, "summarize", func(callCtx context.Context) (*dto.SummaryResult, error) {
		select {
		case c.summarySem <- struct{}{}:
		case <-callCtx.Done():
			return nil, callCtx.Err()
		}
		defer func() { <-c.summarySem }()

		stageCtx, cancel := context.WithTimeout(callCtx, c.cfg.SummarizeTimeout)
		defer cancel()

		started := time.Now()
		res, err := c.aiRepo.Summarize(stageCtx, article, mode)
		observeDownstream("summarize", started, err)
		return res, wrapTimeout("summarize", stageCtx, err)
	})
	if err != nil {
		return nil, err
	}

	return &entity.Summary{
		ArticleID:   article.ID,
		Text:        result.Text,
		Mode:        mode,
		BulletTexts: result.BulletTexts,
		WordCount:   result.WordCount,
		ModelID:     result.ModelID,
		LatencyMs:   result.LatencyMs,
		CreatedAt:   time.Now(),
	}, nil
}

func (c *Coordinator) tag(ctx context.Context, article *entity.Article, summaryText string) error {
	rawTags, err := retryStage(ctx, c, article, "tag", func(callCtx context.Context) ([]dto.RawTag, error) {
		select {
		case c.taggingSem <- struct{}{}:
		case <-callCtx.Done():
			return nil, callCtx.Err()
		}
		defer func() { <-c.taggingSem }()

		stageCtx, cancel := context.WithTimeout(callCtx, c.cfg.TagTimeout)
		defer cancel()

		started := time.Now()
		res, err := c.aiRepo.Tag(stageCtx, article, summaryText)
		observeDownstream("tag", started, err)
		return res, wrapTimeout("tag", stageCtx, err)
	})
	if err != nil {
		return err
	}

	all, err := c.tagRepo.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load taxonomy: %w", err)
	}
	resolved := c.resolver.Resolve(rawTags, tags.NewTaxonomy(all))

	if err := c.tagRepo.ReplaceArticleTags(ctx, article.ID, resolved, entity.AssignmentAuto); err != nil {
		return fmt.Errorf("failed to persist tag associations: %w", err)
	}
	return nil
}

// retryStage applies the transient retry policy: exponential backoff with
// jitter up to the per-article attempt ceiling. Persistent errors and
// cancellation pass straight through.
func retryStage[T any](ctx context.Context, c *Coordinator, article *entity.Article, stage string, call func(context.Context) (T, error)) (T, error) {
	var zero T
	retry := 0
	for {
		result, err := call(ctx)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if apperrors.IsPersistent(err) {
			return zero, err
		}

		if article.AttemptCount >= c.cfg.MaxAttempts {
			return zero, apperrors.NewPersistent(stage,
				fmt.Sprintf("retries exhausted after %d attempts", article.AttemptCount), err)
		}
		article.AttemptCount++
		if updErr := c.articleRepo.IncrementAttempt(ctx, article.ID); updErr != nil {
			c.logger.Error("Failed to count attempt", logger.ErrorField(updErr), logger.Field("article_id", article.ID))
		}

		delay := backoffDelay(c.cfg.RetryBackoffBase, c.cfg.RetryBackoffMax, retry)
		c.logger.Warn("Transient stage failure, backing off",
			logger.StringField("stage", stage),
			logger.Field("article_id", article.ID),
			logger.IntField("attempt", article.AttemptCount),
			logger.DurationField("delay", delay),
			logger.ErrorField(err),
		)
		retry++

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
}

// finishWithError maps a stage error to the right terminal transition:
// cancellation releases the claim, anything else marks the article failed
// with a queryable reason.
func (c *Coordinator) finishWithError(parent context.Context, article *entity.Article, err error) {
	if errors.Is(err, context.Canceled) || (errors.Is(err, context.DeadlineExceeded) && parent.Err() != nil) {
		c.release(article.ID)
		return
	}
	if errors.Is(err, context.DeadlineExceeded) {
		// Article wall clock expired: the attempt is already counted, the
		// article goes back to pending for another run.
		c.logger.Warn("Article wall clock expired", logger.Field("article_id", article.ID))
		c.release(article.ID)
		return
	}

	reason := err.Error()
	if markErr := c.articleRepo.MarkFailed(context.Background(), article.ID, reason); markErr != nil {
		c.logger.Error("Failed to mark article failed", logger.ErrorField(markErr), logger.Field("article_id", article.ID))
		return
	}
	if metrics.ArticlesProcessedTotal != nil {
		metrics.ArticlesProcessedTotal.WithLabelValues(string(entity.StatusFailed)).Inc()
	}
	c.logger.Error("Article processing failed",
		logger.Field("article_id", article.ID),
		logger.StringField("reason", reason),
	)

	if c.notifier != nil {
		msg := telegram.FormatArticleFailedMessage(time.Now(), article.ID, article.Title, reason)
		if sendErr := c.notifier.SendMessage(msg); sendErr != nil {
			c.logger.Error("Failed to send failure alert", logger.ErrorField(sendErr))
		}
	}
}

// release reverts the claim with a fresh context; the triggering context is
// usually already dead.
func (c *Coordinator) release(articleID uint) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.articleRepo.ReleaseClaim(ctx, articleID); err != nil {
		c.logger.Error("Failed to release article claim", logger.ErrorField(err), logger.Field("article_id", articleID))
	}
}

// wrapTimeout converts a per-call deadline into a transient processing
// error, per the retry policy.
func wrapTimeout(stage string, stageCtx context.Context, err error) error {
	if err != nil && errors.Is(stageCtx.Err(), context.DeadlineExceeded) {
		return apperrors.NewTransient(stage, "downstream call timed out", err)
	}
	return err
}

func observeDownstream(service string, started time.Time, err error) {
	if metrics.DownstreamCallDuration == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	metrics.DownstreamCallDuration.WithLabelValues(service, outcome).Observe(time.Since(started).Seconds())
}
