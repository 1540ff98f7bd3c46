package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang-news-aggregator/internal/aggregator/apperrors"
	"golang-news-aggregator/internal/aggregator/dedup"
	"golang-news-aggregator/internal/entity"

	"gorm.io/gorm"
)

// ArticleRepository defines the interface for article data operations. It
// also satisfies dedup.ArticleStore.
type ArticleRepository interface {
	dedup.ArticleStore
	FindByID(ctx context.Context, id uint) (*entity.Article, error)
	// ClaimForProcessing atomically transitions pending -> processing and
	// counts the attempt. Returns apperrors.ErrClaimConflict when the
	// article is not pending anymore.
	ClaimForProcessing(ctx context.Context, id uint) error
	// ReleaseClaim reverts processing -> pending for a worker that gave up
	// before any downstream write committed (e.g. shutdown).
	ReleaseClaim(ctx context.Context, id uint) error
	// ReleaseStaleClaims reverts processing -> pending for claims older than
	// the cutoff and returns the affected articles for re-enqueueing.
	ReleaseStaleClaims(ctx context.Context, cutoff time.Time) ([]entity.Article, error)
	// FindUnclaimedPending returns pending articles without an active claim.
	// Backfill uses it to put released or restart-orphaned articles back on
	// the queue.
	FindUnclaimedPending(ctx context.Context) ([]entity.Article, error)
	IncrementAttempt(ctx context.Context, id uint) error
	// UpdateRawContent stores the extracted page text without touching the
	// processing state.
	UpdateRawContent(ctx context.Context, id uint, content string) error
	MarkCompleted(ctx context.Context, id uint) error
	MarkFailed(ctx context.Context, id uint, reason string) error
	// RequeueFailed is the manual failed -> pending transition; the attempt
	// counter is deliberately not reset.
	RequeueFailed(ctx context.Context, id uint) error
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// NewArticleRepository creates a new GORM-based article repository.
func NewArticleRepository(db *gorm.DB) ArticleRepository {
	return &articleRepository{db: db}
}

type articleRepository struct {
	db *gorm.DB
}

// FindByID retrieves an article with its summary preloaded.
func (r *articleRepository) FindByID(ctx context.Context, id uint) (*entity.Article, error) {
	var article entity.Article
	if err := r.db.WithContext(ctx).Preload("Summary").First(&article, id).Error; err != nil {
		return nil, err
	}
	return &article, nil
}

// FindByGUID retrieves an article by its identity key.
func (r *articleRepository) FindByGUID(ctx context.Context, guid string) (*entity.Article, error) {
	var article entity.Article
	if err := r.db.WithContext(ctx).Where("guid = ?", guid).First(&article).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, dedup.ErrNotFound
		}
		return nil, err
	}
	return &article, nil
}

// Create inserts a new article, mapping a GUID uniqueness violation to
// dedup.ErrGUIDConflict so the engine can resolve the race to Updated
// semantics.
func (r *articleRepository) Create(ctx context.Context, article *entity.Article) error {
	if err := r.db.WithContext(ctx).Create(article).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dedup.ErrGUIDConflict
		}
		return err
	}
	return nil
}

// UpdateContent applies Updated semantics in one transaction: content, hash
// and published fields change in place, status resets to pending, and the
// stale summary is removed. Tag associations stay until retagging replaces
// them.
func (r *articleRepository) UpdateContent(ctx context.Context, article *entity.Article) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&entity.Article{}).Where("id = ?", article.ID).
			Updates(map[string]interface{}{
				"title":          article.Title,
				"raw_content":    article.RawContent,
				"content_hash":   article.ContentHash,
				"published_at":   article.PublishedAt,
				"fetched_at":     article.FetchedAt,
				"status":         entity.StatusPending,
				"failure_reason": "",
				"claimed_at":     nil,
			}).Error
		if err != nil {
			return err
		}
		return tx.Where("article_id = ?", article.ID).Delete(&entity.Summary{}).Error
	})
}

// AddSecondarySource appends a feed URL to an article's secondary sources,
// skipping values already present.
func (r *articleRepository) AddSecondarySource(ctx context.Context, articleID uint, source string) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE articles
		SET secondary_sources = array_append(COALESCE(secondary_sources, '{}'), ?),
		    updated_at = NOW()
		WHERE id = ? AND NOT (? = ANY(COALESCE(secondary_sources, '{}')))`,
		source, articleID, source).Error
}

// ClaimForProcessing is the compare-and-set claim: exactly one worker wins.
func (r *articleRepository) ClaimForProcessing(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Model(&entity.Article{}).
		Where("id = ? AND status = ?", id, entity.StatusPending).
		Updates(map[string]interface{}{
			"status":        entity.StatusProcessing,
			"claimed_at":    time.Now(),
			"attempt_count": gorm.Expr("attempt_count + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrClaimConflict
	}
	return nil
}

// ReleaseClaim reverts an owned claim back to pending.
func (r *articleRepository) ReleaseClaim(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&entity.Article{}).
		Where("id = ? AND status = ?", id, entity.StatusProcessing).
		Updates(map[string]interface{}{
			"status":     entity.StatusPending,
			"claimed_at": nil,
		}).Error
}

// ReleaseStaleClaims reverts expired claims to pending. The attempt was
// already counted at claim time, so the crashed run stays visible in the
// counter.
func (r *articleRepository) ReleaseStaleClaims(ctx context.Context, cutoff time.Time) ([]entity.Article, error) {
	var stale []entity.Article
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("status = ? AND claimed_at < ?", entity.StatusProcessing, cutoff).
			Find(&stale).Error; err != nil {
			return err
		}
		if len(stale) == 0 {
			return nil
		}
		ids := make([]uint, 0, len(stale))
		for _, a := range stale {
			ids = append(ids, a.ID)
		}
		return tx.Model(&entity.Article{}).Where("id IN ?", ids).
			Updates(map[string]interface{}{
				"status":     entity.StatusPending,
				"claimed_at": nil,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return stale, nil
}

// FindUnclaimedPending lists pending articles whose claim is gone. Released
// and restart-orphaned articles show up here until a worker claims them.
func (r *articleRepository) FindUnclaimedPending(ctx context.Context) ([]entity.Article, error) {
	var pending []entity.Article
	err := r.db.WithContext(ctx).
		Where("status = ? AND claimed_at IS NULL", entity.StatusPending).
		Order("id").
		Find(&pending).Error
	if err != nil {
		return nil, err
	}
	return pending, nil
}

// IncrementAttempt counts an in-run retry against the attempt ceiling.
func (r *articleRepository) IncrementAttempt(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&entity.Article{}).Where("id = ?", id).
		Update("attempt_count", gorm.Expr("attempt_count + 1")).Error
}

// UpdateRawContent stores extracted page text.
func (r *articleRepository) UpdateRawContent(ctx context.Context, id uint, content string) error {
	return r.db.WithContext(ctx).Model(&entity.Article{}).Where("id = ?", id).
		Update("raw_content", content).Error
}

// MarkCompleted finishes processing successfully.
func (r *articleRepository) MarkCompleted(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&entity.Article{}).
		Where("id = ? AND status = ?", id, entity.StatusProcessing).
		Updates(map[string]interface{}{
			"status":         entity.StatusCompleted,
			"failure_reason": "",
			"claimed_at":     nil,
		}).Error
}

// MarkFailed terminates processing with a queryable reason.
func (r *articleRepository) MarkFailed(ctx context.Context, id uint, reason string) error {
	return r.db.WithContext(ctx).Model(&entity.Article{}).
		Where("id = ? AND status = ?", id, entity.StatusProcessing).
		Updates(map[string]interface{}{
			"status":         entity.StatusFailed,
			"failure_reason": reason,
			"claimed_at":     nil,
		}).Error
}

// RequeueFailed moves a failed article back to pending for another run.
func (r *articleRepository) RequeueFailed(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Model(&entity.Article{}).
		Where("id = ? AND status = ?", id, entity.StatusFailed).
		Updates(map[string]interface{}{
			"status":         entity.StatusPending,
			"failure_reason": "",
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("article %d is not in failed state", id)
	}
	return nil
}

// CountByStatus returns article counts grouped by processing status.
func (r *articleRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&entity.Article{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}
