package repository

import (
	"context"
	"time"

	"golang-news-aggregator/internal/entity"

	"gorm.io/gorm"
)

// FeedRepository defines the interface for feed data operations.
type FeedRepository interface {
	Create(ctx context.Context, feed *entity.Feed) error
	FindByID(ctx context.Context, id uint) (*entity.Feed, error)
	FindByIDs(ctx context.Context, ids []uint) ([]entity.Feed, error)
	FindAll(ctx context.Context) ([]entity.Feed, error)
	FindActive(ctx context.Context) ([]entity.Feed, error)
	Update(ctx context.Context, feed *entity.Feed) error
	Delete(ctx context.Context, id uint) error
	// RecordFetchSuccess resets the consecutive error counter and advances
	// the last-fetch time.
	RecordFetchSuccess(ctx context.Context, id uint, fetchedAt time.Time) error
	// RecordFetchFailure increments the error counter, records the error,
	// and deactivates the feed once the counter crosses threshold. Returns
	// whether this call deactivated the feed.
	RecordFetchFailure(ctx context.Context, id uint, errMsg string, threshold int) (bool, error)
	// Reactivate re-enables a deactivated feed and clears its error count.
	// This is a manual operation.
	Reactivate(ctx context.Context, id uint) error
	CountByActive(ctx context.Context) (active int64, inactive int64, err error)
}

// NewFeedRepository creates a new GORM-based feed repository.
func NewFeedRepository(db *gorm.DB) FeedRepository {
	return &feedRepository{db: db}
}

type feedRepository struct {
	db *gorm.DB
}

// Create creates a new feed.
func (r *feedRepository) Create(ctx context.Context, feed *entity.Feed) error {
	return r.db.WithContext(ctx).Create(feed).Error
}

// FindByID retrieves a feed by its ID.
func (r *feedRepository) FindByID(ctx context.Context, id uint) (*entity.Feed, error) {
	var feed entity.Feed
	if err := r.db.WithContext(ctx).First(&feed, id).Error; err != nil {
		return nil, err
	}
	return &feed, nil
}

// FindByIDs retrieves the feeds with the given IDs.
func (r *feedRepository) FindByIDs(ctx context.Context, ids []uint) ([]entity.Feed, error) {
	var feeds []entity.Feed
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&feeds).Error; err != nil {
		return nil, err
	}
	return feeds, nil
}

// FindAll retrieves all feeds.
func (r *feedRepository) FindAll(ctx context.Context) ([]entity.Feed, error) {
	var feeds []entity.Feed
	if err := r.db.WithContext(ctx).Order("id").Find(&feeds).Error; err != nil {
		return nil, err
	}
	return feeds, nil
}

// FindActive retrieves all active feeds.
func (r *feedRepository) FindActive(ctx context.Context) ([]entity.Feed, error) {
	var feeds []entity.Feed
	if err := r.db.WithContext(ctx).Where("active = ?", true).Order("id").Find(&feeds).Error; err != nil {
		return nil, err
	}
	return feeds, nil
}

// Update saves a feed.
func (r *feedRepository) Update(ctx context.Context, feed *entity.Feed) error {
	return r.db.WithContext(ctx).Save(feed).Error
}

// Delete removes a feed; owned articles cascade.
func (r *feedRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&entity.Feed{}, id).Error
}

// RecordFetchSuccess resets error tracking after a successful fetch.
func (r *feedRepository) RecordFetchSuccess(ctx context.Context, id uint, fetchedAt time.Time) error {
	return r.db.WithContext(ctx).Model(&entity.Feed{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_fetched_at":    fetchedAt,
			"consecutive_errors": 0,
			"last_error":         "",
		}).Error
}

// RecordFetchFailure increments the error counter atomically; crossing the
// threshold deactivates the feed in the same statement so two racing cycles
// cannot both report the deactivation.
func (r *feedRepository) RecordFetchFailure(ctx context.Context, id uint, errMsg string, threshold int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE feeds
		SET consecutive_errors = consecutive_errors + 1,
		    last_error = ?,
		    active = CASE WHEN consecutive_errors + 1 >= ? THEN false ELSE active END,
		    updated_at = NOW()
		WHERE id = ?`, errMsg, threshold, id)
	if res.Error != nil {
		return false, res.Error
	}

	var feed entity.Feed
	if err := r.db.WithContext(ctx).Select("id", "active", "consecutive_errors").First(&feed, id).Error; err != nil {
		return false, err
	}
	return !feed.Active && feed.ConsecutiveErrors == threshold, nil
}

// Reactivate clears error state and re-enables the feed.
func (r *feedRepository) Reactivate(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&entity.Feed{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"active":             true,
			"consecutive_errors": 0,
			"last_error":         "",
		}).Error
}

// CountByActive returns counts of active and inactive feeds.
func (r *feedRepository) CountByActive(ctx context.Context) (int64, int64, error) {
	var active, inactive int64
	if err := r.db.WithContext(ctx).Model(&entity.Feed{}).Where("active = ?", true).Count(&active).Error; err != nil {
		return 0, 0, err
	}
	if err := r.db.WithContext(ctx).Model(&entity.Feed{}).Where("active = ?", false).Count(&inactive).Error; err != nil {
		return 0, 0, err
	}
	return active, inactive, nil
}
