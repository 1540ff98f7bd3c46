package entity

import (
	"time"

	"github.com/lib/pq"
)

// ArticleStatus is the processing lifecycle state of an article.
type ArticleStatus string

const (
	StatusPending    ArticleStatus = "pending"
	StatusProcessing ArticleStatus = "processing"
	StatusCompleted  ArticleStatus = "completed"
	StatusFailed     ArticleStatus = "failed"
)

// Article represents one logical story. The GUID is unique across the whole
// corpus; content changes update the row in place and never create a second
// one for the same GUID.
type Article struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	FeedID           uint           `gorm:"not null;index" json:"feed_id"`
	GUID             string         `gorm:"unique;not null" json:"guid"`
	Title            string         `gorm:"not null" json:"title"`
	URL              string         `gorm:"not null" json:"url"`
	RawContent       string         `json:"raw_content"`
	ContentHash      string         `gorm:"not null" json:"content_hash"`
	Author           string         `json:"author"`
	PublishedAt      *time.Time     `json:"published_at,omitempty"`
	FetchedAt        time.Time      `gorm:"not null" json:"fetched_at"`
	Status           ArticleStatus  `gorm:"type:varchar(16);not null;default:pending;index" json:"status"`
	AttemptCount     int            `gorm:"not null;default:0" json:"attempt_count"`
	FailureReason    string         `json:"failure_reason,omitempty"`
	ClaimedAt        *time.Time     `json:"claimed_at,omitempty"`
	SecondarySources pq.StringArray `gorm:"type:text[]" json:"secondary_sources,omitempty"`
	CreatedAt        time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"autoUpdateTime" json:"updated_at"`

	Summary     *Summary     `gorm:"foreignKey:ArticleID;constraint:OnDelete:CASCADE" json:"summary,omitempty"`
	ArticleTags []ArticleTag `gorm:"foreignKey:ArticleID;constraint:OnDelete:CASCADE" json:"article_tags,omitempty"`
}

// TableName specifies the table name for the Article model.
func (Article) TableName() string {
	return "articles"
}
