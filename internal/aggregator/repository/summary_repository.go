package repository

import (
	"context"

	"golang-news-aggregator/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SummaryRepository defines the interface for summary data operations.
type SummaryRepository interface {
	// Upsert creates the article's summary or replaces it after a content
	// change. The article_id uniqueness constraint keeps this 1:1.
	Upsert(ctx context.Context, summary *entity.Summary) error
	FindByArticleID(ctx context.Context, articleID uint) (*entity.Summary, error)
	DeleteByArticleID(ctx context.Context, articleID uint) error
}

// NewSummaryRepository creates a new GORM-based summary repository.
func NewSummaryRepository(db *gorm.DB) SummaryRepository {
	return &summaryRepository{db: db}
}

type summaryRepository struct {
	db *gorm.DB
}

// Upsert writes the summary, replacing any prior one for the article.
func (r *summaryRepository) Upsert(ctx context.Context, summary *entity.Summary) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "article_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"text", "mode", "bullet_texts", "word_count", "model_id", "latency_ms", "created_at",
		}),
	}).Create(summary).Error
}

// FindByArticleID retrieves the summary for an article.
func (r *summaryRepository) FindByArticleID(ctx context.Context, articleID uint) (*entity.Summary, error) {
	var summary entity.Summary
	if err := r.db.WithContext(ctx).Where("article_id = ?", articleID).First(&summary).Error; err != nil {
		return nil, err
	}
	return &summary, nil
}

// DeleteByArticleID removes the summary for an article.
func (r *summaryRepository) DeleteByArticleID(ctx context.Context, articleID uint) error {
	return r.db.WithContext(ctx).Where("article_id = ?", articleID).Delete(&entity.Summary{}).Error
}
