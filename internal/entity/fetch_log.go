package entity

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// FetchLog persists the report of one run cycle so downstream consumers can
// query cycle outcomes instead of scraping logs.
type FetchLog struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Stats      datatypes.JSON `gorm:"type:jsonb" json:"stats"`
	Errors     pq.StringArray `gorm:"type:text[]" json:"errors,omitempty"`
	StartedAt  time.Time      `gorm:"not null" json:"started_at"`
	FinishedAt time.Time      `gorm:"not null" json:"finished_at"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for the FetchLog model.
func (FetchLog) TableName() string {
	return "fetch_logs"
}
