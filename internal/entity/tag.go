package entity

import (
	"time"
)

// TagCategory classifies a taxonomy entry.
type TagCategory string

const (
	TagCategoryTopic     TagCategory = "topic"
	TagCategoryEntity    TagCategory = "entity"
	TagCategorySentiment TagCategory = "sentiment"
	TagCategoryIndustry  TagCategory = "industry"
)

// AssignmentSource records how an article-tag association was produced.
type AssignmentSource string

const (
	AssignmentAuto   AssignmentSource = "auto"
	AssignmentManual AssignmentSource = "manual"
	AssignmentHybrid AssignmentSource = "hybrid"
)

// Tag is a canonical taxonomy entry. The parent reference forms a forest;
// acyclicity is enforced by the tag resolver at write time, not by the
// schema. UsageCount is derived and must always equal the number of live
// ArticleTag rows referencing the tag.
type Tag struct {
	ID         uint        `gorm:"primaryKey" json:"id"`
	Name       string      `gorm:"unique;not null" json:"name"`
	Category   TagCategory `gorm:"type:varchar(16);not null" json:"category"`
	ParentID   *uint       `gorm:"index" json:"parent_id,omitempty"`
	UsageCount int64       `gorm:"not null;default:0" json:"usage_count"`
	CreatedAt  time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for the Tag model.
func (Tag) TableName() string {
	return "tags"
}

// ArticleTag is the many-to-many association between articles and tags with
// a resolver-derived confidence score.
type ArticleTag struct {
	ArticleID  uint             `gorm:"primaryKey" json:"article_id"`
	TagID      uint             `gorm:"primaryKey" json:"tag_id"`
	Confidence float64          `gorm:"not null" json:"confidence"`
	Source     AssignmentSource `gorm:"type:varchar(10);not null;default:auto" json:"source"`
	CreatedAt  time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for the ArticleTag model.
func (ArticleTag) TableName() string {
	return "article_tags"
}
