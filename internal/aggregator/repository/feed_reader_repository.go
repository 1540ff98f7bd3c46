package repository

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang-news-aggregator/internal/aggregator/apperrors"
	"golang-news-aggregator/internal/aggregator/dto"
	"golang-news-aggregator/internal/entity"
	"golang-news-aggregator/pkg/utils"

	"github.com/mmcdole/gofeed"
)

// NewFeedReaderRepository creates a gofeed-backed feed reader.
func NewFeedReaderRepository() FeedReaderRepository {
	return &feedReaderRepository{parser: gofeed.NewParser()}
}

type feedReaderRepository struct {
	parser *gofeed.Parser
}

// Fetch parses the feed URL and maps its items to raw items. Items already
// older than the feed's last fetch are returned anyway; deduplication, not
// fetch position, decides what is new.
func (r *feedReaderRepository) Fetch(ctx context.Context, feed *entity.Feed) ([]dto.RawItem, error) {
	parsed, err := r.parser.ParseURLWithContext(feed.URL, ctx)
	if err != nil {
		return nil, classifyFetchError(feed.URL, err)
	}

	items := make([]dto.RawItem, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		content := item.Content
		if content == "" {
			content = item.Description
		}

		var published *time.Time
		if item.PublishedParsed != nil {
			published = item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			published = item.UpdatedParsed
		}

		author := ""
		if item.Author != nil {
			author = item.Author.Name
		}

		items = append(items, dto.RawItem{
			GUID:        item.GUID,
			Title:       utils.CleanToValidUTF8(item.Title),
			URL:         item.Link,
			Content:     utils.CleanToValidUTF8(content),
			Author:      author,
			PublishedAt: published,
		})
	}
	return items, nil
}

// classifyFetchError separates retry-eligible fetch failures from ones that
// count toward feed deactivation. Rate limiting is transient; a permanently
// missing or unparseable feed is persistent.
func classifyFetchError(feedURL string, err error) error {
	kind := apperrors.KindTransient
	retryAfter := time.Duration(0)

	var httpErr gofeed.HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == http.StatusTooManyRequests:
			retryAfter = time.Minute
		case httpErr.StatusCode >= 400 && httpErr.StatusCode < 500:
			kind = apperrors.KindPersistent
		}
	}
	if errors.Is(err, gofeed.ErrFeedTypeNotDetected) {
		kind = apperrors.KindPersistent
	}

	return &apperrors.FetchError{
		Kind:       kind,
		FeedURL:    feedURL,
		RetryAfter: retryAfter,
		Err:        err,
	}
}
