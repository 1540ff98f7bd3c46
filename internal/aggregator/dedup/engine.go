package dedup

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"golang-news-aggregator/internal/aggregator/config"
	"golang-news-aggregator/internal/aggregator/dto"
	"golang-news-aggregator/internal/aggregator/identity"
	"golang-news-aggregator/internal/entity"
	"golang-news-aggregator/pkg/logger"

	"github.com/patrickmn/go-cache"
)

// Classification is the dedup verdict for one incoming item.
type Classification string

const (
	ClassNew       Classification = "new"
	ClassUnchanged Classification = "unchanged"
	ClassUpdated   Classification = "updated"
	ClassDuplicate Classification = "duplicate"
)

// ErrNotFound is returned by ArticleStore implementations when no article
// matches the identity key.
var ErrNotFound = errors.New("article not found")

// ErrGUIDConflict is returned by ArticleStore.Create when the identity key
// already exists. The engine resolves it to Updated semantics.
var ErrGUIDConflict = errors.New("article guid already exists")

// ArticleStore is the persistence surface the engine needs.
type ArticleStore interface {
	FindByGUID(ctx context.Context, guid string) (*entity.Article, error)
	Create(ctx context.Context, article *entity.Article) error
	// UpdateContent replaces content, hash and published fields in place,
	// resets status to pending, and invalidates the existing summary. Tag
	// associations are preserved until retagging completes.
	UpdateContent(ctx context.Context, article *entity.Article) error
	AddSecondarySource(ctx context.Context, articleID uint, source string) error
}

// recentTitle is the cache entry used for cross-source duplicate detection.
type recentTitle struct {
	articleID   uint
	tokens      []string
	publishedAt time.Time
}

// Engine classifies incoming items as new, unchanged, updated, or a
// cross-source duplicate, and applies the corresponding write.
type Engine struct {
	store        ArticleStore
	logger       *logger.Logger
	threshold    float64
	window       time.Duration
	recentTitles *cache.Cache
}

// NewEngine creates a deduplication engine. The recent-title window cache
// drives the best-effort cross-source check; entries expire after the
// configured duplicate window.
func NewEngine(store ArticleStore, log *logger.Logger, cfg config.Dedup) *Engine {
	return &Engine{
		store:        store,
		logger:       log,
		threshold:    cfg.TitleSimilarityThreshold,
		window:       cfg.DuplicateWindow,
		recentTitles: cache.New(cfg.DuplicateWindow, cfg.DuplicateWindow/2),
	}
}

// Apply classifies item against the stored corpus and persists the effect.
// The returned article is nil for Unchanged and Duplicate classifications.
func (e *Engine) Apply(ctx context.Context, feed *entity.Feed, item dto.RawItem, id identity.Identity) (Classification, *entity.Article, error) {
	existing, err := e.store.FindByGUID(ctx, id.Key)
	switch {
	case err == nil:
		return e.applyExisting(ctx, existing, item, id)
	case errors.Is(err, ErrNotFound):
		// fall through to duplicate check + insert
	default:
		return "", nil, fmt.Errorf("failed to look up article by guid: %w", err)
	}

	if dupID, ok := e.findCrossSourceDuplicate(item); ok {
		if err := e.store.AddSecondarySource(ctx, dupID, feed.URL); err != nil {
			return "", nil, fmt.Errorf("failed to record secondary source: %w", err)
		}
		e.logger.Info("Cross-source duplicate linked",
			logger.Field("article_id", dupID),
			logger.StringField("title", item.Title),
			logger.StringField("secondary_feed", feed.URL),
		)
		return ClassDuplicate, nil, nil
	}

	article := &entity.Article{
		FeedID:      feed.ID,
		GUID:        id.Key,
		Title:       item.Title,
		URL:         item.URL,
		RawContent:  item.Content,
		ContentHash: id.Fingerprint,
		Author:      item.Author,
		PublishedAt: item.PublishedAt,
		FetchedAt:   time.Now(),
		Status:      entity.StatusPending,
	}

	if err := e.store.Create(ctx, article); err != nil {
		if errors.Is(err, ErrGUIDConflict) {
			// Two fetch cycles raced on the same GUID; the loser applies
			// Updated semantics instead of failing.
			existing, err := e.store.FindByGUID(ctx, id.Key)
			if err != nil {
				return "", nil, fmt.Errorf("failed to re-read article after guid conflict: %w", err)
			}
			return e.applyExisting(ctx, existing, item, id)
		}
		return "", nil, fmt.Errorf("failed to insert article: %w", err)
	}

	e.rememberTitle(article.ID, item)
	return ClassNew, article, nil
}

func (e *Engine) applyExisting(ctx context.Context, existing *entity.Article, item dto.RawItem, id identity.Identity) (Classification, *entity.Article, error) {
	if existing.ContentHash == id.Fingerprint {
		return ClassUnchanged, nil, nil
	}

	existing.Title = item.Title
	existing.RawContent = item.Content
	existing.ContentHash = id.Fingerprint
	existing.PublishedAt = item.PublishedAt
	existing.FetchedAt = time.Now()
	existing.Status = entity.StatusPending
	existing.FailureReason = ""

	if err := e.store.UpdateContent(ctx, existing); err != nil {
		return "", nil, fmt.Errorf("failed to update article content: %w", err)
	}
	return ClassUpdated, existing, nil
}

// findCrossSourceDuplicate checks the recent-title window for an article
// whose normalized title is similar above the threshold and whose published
// time falls within the duplicate window. Best effort: a miss is acceptable,
// a wrong merge must be rare.
func (e *Engine) findCrossSourceDuplicate(item dto.RawItem) (uint, bool) {
	if item.PublishedAt == nil {
		return 0, false
	}
	tokens := NormalizeTitle(item.Title)
	if len(tokens) < minTitleTokens {
		return 0, false
	}

	for _, cached := range e.recentTitles.Items() {
		rt, ok := cached.Object.(recentTitle)
		if !ok {
			continue
		}
		delta := item.PublishedAt.Sub(rt.publishedAt)
		if delta < 0 {
			delta = -delta
		}
		if delta > e.window {
			continue
		}
		if TitleSimilarity(tokens, rt.tokens) >= e.threshold {
			return rt.articleID, true
		}
	}
	return 0, false
}

func (e *Engine) rememberTitle(articleID uint, item dto.RawItem) {
	if item.PublishedAt == nil {
		return
	}
	tokens := NormalizeTitle(item.Title)
	if len(tokens) < minTitleTokens {
		return
	}
	// Keyed by article ID: URLs are not guaranteed present or unique across
	// sources, and one entry per inserted article is exactly the window we
	// want.
	e.recentTitles.SetDefault(strconv.FormatUint(uint64(articleID), 10), recentTitle{
		articleID:   articleID,
		tokens:      tokens,
		publishedAt: *item.PublishedAt,
	})
}
