package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.applyDefaults()

	assert.Equal(t, 8, cfg.Pipeline.Workers)
	assert.Equal(t, 3, cfg.Pipeline.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.Pipeline.SummarizeTimeout)
	assert.Equal(t, 30*time.Second, cfg.Pipeline.TagTimeout)
	assert.Equal(t, 60*time.Second, cfg.Pipeline.ArticleTimeout)
	assert.Equal(t, "brief", cfg.Pipeline.SummaryMode)
	assert.Equal(t, 10, cfg.Queue.LowTierAdmissionEvery)
	assert.Equal(t, 0.85, cfg.Dedup.TitleSimilarityThreshold)
	assert.Equal(t, 48*time.Hour, cfg.Dedup.DuplicateWindow)
	assert.Equal(t, 0.3, cfg.Tags.MinConfidence)
	assert.Equal(t, 10, cfg.Tags.MaxPerArticle)
	assert.Equal(t, 5, cfg.Feeds.DeactivateAfterErrors)
	assert.Equal(t, 15, cfg.Gemini.MaxRequestPerMinute)
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := Config{}
	cfg.Pipeline.Workers = 2
	cfg.Dedup.TitleSimilarityThreshold = 0.9
	cfg.applyDefaults()

	assert.Equal(t, 2, cfg.Pipeline.Workers)
	assert.Equal(t, 0.9, cfg.Dedup.TitleSimilarityThreshold)
}
