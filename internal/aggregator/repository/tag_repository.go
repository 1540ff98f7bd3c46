package repository

import (
	"context"
	"fmt"

	"golang-news-aggregator/internal/aggregator/apperrors"
	"golang-news-aggregator/internal/aggregator/dto"
	"golang-news-aggregator/internal/aggregator/tags"
	"golang-news-aggregator/internal/entity"

	"gorm.io/gorm"
)

// TagRepository defines the interface for tag and association data
// operations.
type TagRepository interface {
	FindAll(ctx context.Context) ([]entity.Tag, error)
	// Create inserts a taxonomy entry, rejecting a parent edge that would
	// create a cycle.
	Create(ctx context.Context, tag *entity.Tag) error
	// ReplaceArticleTags swaps an article's associations for the resolved
	// set in one transaction, keeping every touched usage counter in sync
	// with an atomic increment or decrement.
	ReplaceArticleTags(ctx context.Context, articleID uint, resolved []tags.Resolved, source entity.AssignmentSource) error
	// VerifyUsageCounts recomputes live association counts, corrects any
	// stored counter that drifted (e.g. across a crash boundary), and
	// returns the detected drifts.
	VerifyUsageCounts(ctx context.Context) ([]apperrors.CounterDriftError, error)
	TopTags(ctx context.Context, limit int) ([]dto.TagCount, error)
}

// NewTagRepository creates a new GORM-based tag repository.
func NewTagRepository(db *gorm.DB) TagRepository {
	return &tagRepository{db: db}
}

type tagRepository struct {
	db *gorm.DB
}

// FindAll retrieves the whole taxonomy.
func (r *tagRepository) FindAll(ctx context.Context) ([]entity.Tag, error) {
	var all []entity.Tag
	if err := r.db.WithContext(ctx).Order("id").Find(&all).Error; err != nil {
		return nil, err
	}
	return all, nil
}

// Create validates the parent edge against the current taxonomy before
// inserting. The schema allows arbitrary self-reference; acyclicity is
// enforced here.
func (r *tagRepository) Create(ctx context.Context, tag *entity.Tag) error {
	if tag.ParentID != nil {
		all, err := r.FindAll(ctx)
		if err != nil {
			return err
		}
		taxonomy := tags.NewTaxonomy(all)
		if taxonomy.WouldCreateCycle(tag.ID, *tag.ParentID) {
			return fmt.Errorf("parent edge %d -> %d would create a cycle in the tag hierarchy", tag.ID, *tag.ParentID)
		}
	}
	return r.db.WithContext(ctx).Create(tag).Error
}

// ReplaceArticleTags implements the full-regeneration policy for content
// updates: old rows go (decrementing their counters), resolved rows come in
// (incrementing theirs), all inside one transaction.
func (r *tagRepository) ReplaceArticleTags(ctx context.Context, articleID uint, resolved []tags.Resolved, source entity.AssignmentSource) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var old []entity.ArticleTag
		if err := tx.Where("article_id = ?", articleID).Find(&old).Error; err != nil {
			return err
		}

		if len(old) > 0 {
			if err := tx.Where("article_id = ?", articleID).Delete(&entity.ArticleTag{}).Error; err != nil {
				return err
			}
			for _, at := range old {
				err := tx.Model(&entity.Tag{}).Where("id = ?", at.TagID).
					Update("usage_count", gorm.Expr("GREATEST(usage_count - 1, 0)")).Error
				if err != nil {
					return err
				}
			}
		}

		for _, res := range resolved {
			assoc := entity.ArticleTag{
				ArticleID:  articleID,
				TagID:      res.TagID,
				Confidence: res.Confidence,
				Source:     source,
			}
			if err := tx.Create(&assoc).Error; err != nil {
				return err
			}
			err := tx.Model(&entity.Tag{}).Where("id = ?", res.TagID).
				Update("usage_count", gorm.Expr("usage_count + 1")).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// VerifyUsageCounts never trusts the stored counters blindly: it recomputes
// from article_tags and fixes what drifted.
func (r *tagRepository) VerifyUsageCounts(ctx context.Context) ([]apperrors.CounterDriftError, error) {
	type row struct {
		ID       uint
		Stored   int64
		Computed int64
	}
	var rows []row
	err := r.db.WithContext(ctx).Raw(`
		SELECT t.id, t.usage_count AS stored, COUNT(at.tag_id) AS computed
		FROM tags t
		LEFT JOIN article_tags at ON at.tag_id = t.id
		GROUP BY t.id, t.usage_count
		HAVING t.usage_count <> COUNT(at.tag_id)`).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	drifts := make([]apperrors.CounterDriftError, 0, len(rows))
	for _, drifted := range rows {
		err := r.db.WithContext(ctx).Model(&entity.Tag{}).
			Where("id = ?", drifted.ID).
			Update("usage_count", drifted.Computed).Error
		if err != nil {
			return drifts, err
		}
		drifts = append(drifts, apperrors.CounterDriftError{
			TagID:    drifted.ID,
			Stored:   drifted.Stored,
			Computed: drifted.Computed,
		})
	}
	return drifts, nil
}

// TopTags returns the most used tags for the stats endpoint.
func (r *tagRepository) TopTags(ctx context.Context, limit int) ([]dto.TagCount, error) {
	var top []dto.TagCount
	err := r.db.WithContext(ctx).Model(&entity.Tag{}).
		Select("name, usage_count").
		Where("usage_count > 0").
		Order("usage_count DESC, name").
		Limit(limit).
		Scan(&top).Error
	if err != nil {
		return nil, err
	}
	return top, nil
}
