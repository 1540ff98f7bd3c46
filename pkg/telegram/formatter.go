package telegram

import (
	"fmt"
	"time"
)

// FormatFeedDeactivatedMessage builds the alert sent when a feed crosses its
// consecutive-error threshold and is deactivated.
func FormatFeedDeactivatedMessage(now time.Time, feedName, feedURL string, errorCount int) string {
	return fmt.Sprintf("*Feed deactivated*\n%s\nFeed: %s\nURL: %s\nConsecutive errors: %d\nReactivate via the feeds API once the source is healthy.",
		now.Format("2006-01-02 15:04:05"), feedName, feedURL, errorCount)
}

// FormatArticleFailedMessage builds the alert sent when an article exhausts
// its processing attempts.
func FormatArticleFailedMessage(now time.Time, articleID uint, title, reason string) string {
	return fmt.Sprintf("*Article processing failed*\n%s\nArticle: %d\nTitle: %s\nReason: %s",
		now.Format("2006-01-02 15:04:05"), articleID, title, reason)
}
