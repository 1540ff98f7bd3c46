package entity

import (
	"time"

	"github.com/lib/pq"
)

// SummaryMode selects the requested summary shape.
type SummaryMode string

const (
	SummaryModeBrief    SummaryMode = "brief"
	SummaryModeDetailed SummaryMode = "detailed"
	SummaryModeBullet   SummaryMode = "bullet"
)

// Summary is the AI-generated summary of an article, at most one per
// article. It is replaced when the article's content hash changes.
type Summary struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	ArticleID   uint           `gorm:"unique;not null" json:"article_id"`
	Text        string         `gorm:"type:text;not null" json:"text"`
	Mode        SummaryMode    `gorm:"type:varchar(10);not null" json:"mode"`
	BulletTexts pq.StringArray `gorm:"type:text[]" json:"bullet_texts,omitempty"`
	WordCount   int            `gorm:"not null" json:"word_count"`
	ModelID     string         `gorm:"not null" json:"model_id"`
	LatencyMs   int64          `json:"latency_ms"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for the Summary model.
func (Summary) TableName() string {
	return "summaries"
}
