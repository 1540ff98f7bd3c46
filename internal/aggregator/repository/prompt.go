package repository

import (
	"fmt"
	"strings"

	"golang-news-aggregator/internal/entity"
)

// BuildSummarizePrompt asks the model for a summary in the requested mode,
// returned as strict JSON so the pipeline can consume it structurally.
func BuildSummarizePrompt(article *entity.Article, mode entity.SummaryMode) string {
	var instruction string
	switch mode {
	case entity.SummaryModeDetailed:
		instruction = "Write a detailed summary of 4-6 sentences covering the key facts, actors, and implications."
	case entity.SummaryModeBullet:
		instruction = "Write 3-6 short bullet points, each one self-contained fact. Put them in the bullet_texts array and join them with newlines in summary."
	default:
		instruction = "Write a brief summary of 1-2 sentences capturing the core of the story."
	}

	published := "unknown"
	if article.PublishedAt != nil {
		published = article.PublishedAt.Format("2006-01-02")
	}

	return fmt.Sprintf(`You are a news summarization service.
%s

Respond with ONLY a JSON object in this exact format, no markdown fences, no commentary:
{"summary": "...", "bullet_texts": ["..."]}

If the article text is empty, garbled, or is not an article, respond with:
{"error": "rejected"}

Title: %s
Published: %s
Article text:
%s`, instruction, article.Title, published, article.RawContent)
}

// BuildTagPrompt asks the model for (label, confidence) pairs restricted to
// the canonical taxonomy. Unknown labels are dropped by the resolver anyway;
// listing the taxonomy keeps the model close to it.
func BuildTagPrompt(article *entity.Article, summaryText string, taxonomyNames []string) string {
	return fmt.Sprintf(`You are a news topic tagging service.
Assign tags from this canonical list only: %s

Respond with ONLY a JSON object in this exact format, no markdown fences, no commentary:
{"tags": [{"label": "...", "confidence": 0.0}]}

Confidence is your certainty in [0,1] that the tag applies. Tag only what the
article is actually about. If nothing applies, return {"tags": []}.

Title: %s
Summary: %s
Article text:
%s`, strings.Join(taxonomyNames, ", "), article.Title, summaryText, article.RawContent)
}
