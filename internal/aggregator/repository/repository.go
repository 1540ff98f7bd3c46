package repository

import (
	"context"

	"golang-news-aggregator/internal/aggregator/dto"
	"golang-news-aggregator/internal/entity"
)

// FeedReaderRepository fetches raw items from an RSS/Atom source. Failures
// are reported as *apperrors.FetchError with a transient or persistent kind.
type FeedReaderRepository interface {
	Fetch(ctx context.Context, feed *entity.Feed) ([]dto.RawItem, error)
}

// ContentRepository retrieves and extracts the readable body of an article
// page when the feed entry itself carries too little content.
type ContentRepository interface {
	Extract(ctx context.Context, url string) (string, error)
}

// AIRepository is the summarization and tagging collaborator. Both calls
// return *apperrors.ProcessingError on failure so the coordinator can apply
// its retry policy.
type AIRepository interface {
	Summarize(ctx context.Context, article *entity.Article, mode entity.SummaryMode) (*dto.SummaryResult, error)
	Tag(ctx context.Context, article *entity.Article, summaryText string) ([]dto.RawTag, error)
}
