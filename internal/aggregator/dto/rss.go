package dto

import "time"

// RawItem is one entry as returned by the feed reader, before identity
// derivation and deduplication.
type RawItem struct {
	GUID        string     `json:"guid"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Content     string     `json:"content"`
	Author      string     `json:"author"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}
