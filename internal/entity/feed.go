package entity

import (
	"time"
)

// FeedPriority is the queue tier articles from a feed are enqueued with.
type FeedPriority string

const (
	PriorityHigh   FeedPriority = "high"
	PriorityMedium FeedPriority = "medium"
	PriorityLow    FeedPriority = "low"
)

// Feed represents a monitored RSS/Atom source.
type Feed struct {
	ID                   uint         `gorm:"primaryKey" json:"id"`
	URL                  string       `gorm:"unique;not null" json:"url"`
	Name                 string       `gorm:"not null" json:"name"`
	Category             string       `json:"category"`
	FetchIntervalSeconds int          `gorm:"not null;default:3600" json:"fetch_interval_seconds"`
	CronExpression       string       `json:"cron_expression"`
	Priority             FeedPriority `gorm:"type:varchar(10);not null;default:medium" json:"priority"`
	LastFetchedAt        *time.Time   `json:"last_fetched_at,omitempty"`
	ConsecutiveErrors    int          `gorm:"not null;default:0" json:"consecutive_errors"`
	LastError            string       `json:"last_error,omitempty"`
	Active               bool         `gorm:"not null;default:true" json:"active"`
	CreatedAt            time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time    `gorm:"autoUpdateTime" json:"updated_at"`

	Articles []Article `gorm:"foreignKey:FeedID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for the Feed model.
func (Feed) TableName() string {
	return "feeds"
}

// IsDue reports whether the feed should be fetched at now. A cron expression
// takes precedence over the fixed interval when set; the schedule callback
// lets the caller supply cron parsing without an entity-level dependency.
func (f *Feed) IsDue(now time.Time, nextFromCron func(expr string, after time.Time) (time.Time, bool)) bool {
	if !f.Active {
		return false
	}
	if f.LastFetchedAt == nil {
		return true
	}
	if f.CronExpression != "" && nextFromCron != nil {
		if next, ok := nextFromCron(f.CronExpression, *f.LastFetchedAt); ok {
			return !next.After(now)
		}
	}
	return !f.LastFetchedAt.Add(time.Duration(f.FetchIntervalSeconds) * time.Second).After(now)
}
