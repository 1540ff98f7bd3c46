package dto

import "time"

// CycleReport aggregates the outcome of one run cycle. It is returned to the
// caller and persisted as a fetch log row.
type CycleReport struct {
	FeedsFetched     int       `json:"feeds_fetched"`
	FeedsFailed      int       `json:"feeds_failed"`
	FeedsDeactivated int       `json:"feeds_deactivated"`
	ItemsFetched     int       `json:"items_fetched"`
	New              int       `json:"new"`
	Updated          int       `json:"updated"`
	Unchanged        int       `json:"unchanged"`
	Duplicates       int       `json:"duplicates"`
	Malformed        int       `json:"malformed"`
	Errors           []string  `json:"errors,omitempty"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`

	// Processing is asynchronous, so per-cycle completion is not knowable at
	// report time. These are point-in-time corpus counts taken when the
	// cycle finishes.
	ArticlesCompleted int64 `json:"articles_completed"`
	ArticlesFailed    int64 `json:"articles_failed"`
}

// FeedFetchTask is the stream payload carrying one due feed from the cycle
// scheduler to the consumer.
type FeedFetchTask struct {
	FeedID     uint      `json:"feed_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// StatsReport is the read-model returned by the stats endpoint.
type StatsReport struct {
	ArticlesByStatus map[string]int64 `json:"articles_by_status"`
	TopTags          []TagCount       `json:"top_tags"`
	ActiveFeeds      int64            `json:"active_feeds"`
	InactiveFeeds    int64            `json:"inactive_feeds"`
}

// TagCount pairs a tag name with its usage count.
type TagCount struct {
	Name       string `json:"name"`
	UsageCount int64  `json:"usage_count"`
}
