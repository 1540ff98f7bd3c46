package config

import (
	"time"

	"golang-news-aggregator/pkg/config"
)

// Scheduler holds the cycle scheduler configuration.
type Scheduler struct {
	PollingInterval      time.Duration `mapstructure:"polling_interval"`
	FetchTaskTimeout     time.Duration `mapstructure:"fetch_task_timeout"`
	FetchRetryInterval   time.Duration `mapstructure:"fetch_retry_interval"`
	FetchMaxIdleDuration time.Duration `mapstructure:"fetch_max_idle_duration"`
	FetchMaxRetry        int           `mapstructure:"fetch_max_retry"`
}

// Pipeline holds the coordinator and worker configuration.
type Pipeline struct {
	Workers              int           `mapstructure:"workers"`
	MaxAttempts          int           `mapstructure:"max_attempts"`
	SummarizeTimeout     time.Duration `mapstructure:"summarize_timeout"`
	TagTimeout           time.Duration `mapstructure:"tag_timeout"`
	ArticleTimeout       time.Duration `mapstructure:"article_timeout"`
	RetryBackoffBase     time.Duration `mapstructure:"retry_backoff_base"`
	RetryBackoffMax      time.Duration `mapstructure:"retry_backoff_max"`
	MaxConcurrentSummary int           `mapstructure:"max_concurrent_summary"`
	MaxConcurrentTagging int           `mapstructure:"max_concurrent_tagging"`
	SummaryMode          string        `mapstructure:"summary_mode"`
	ClaimExpiry          time.Duration `mapstructure:"claim_expiry"`
	ReaperInterval       time.Duration `mapstructure:"reaper_interval"`
}

// Queue holds the in-process work queue configuration.
type Queue struct {
	LowTierAdmissionEvery int `mapstructure:"low_tier_admission_every"`
}

// Dedup holds the deduplication engine configuration.
type Dedup struct {
	TitleSimilarityThreshold float64       `mapstructure:"title_similarity_threshold"`
	DuplicateWindow          time.Duration `mapstructure:"duplicate_window"`
}

// Tags holds the tag resolver configuration.
type Tags struct {
	MinConfidence float64 `mapstructure:"min_confidence"`
	MaxPerArticle int     `mapstructure:"max_per_article"`
}

// Feeds holds feed lifecycle configuration.
type Feeds struct {
	DeactivateAfterErrors int `mapstructure:"deactivate_after_errors"`
}

// Gemini holds the configuration for the Gemini API.
type Gemini struct {
	APIKey              string `mapstructure:"api_key"`
	Model               string `mapstructure:"model"`
	BaseURL             string `mapstructure:"base_url"`
	MaxRequestPerMinute int    `mapstructure:"max_request_per_minute"`
	MaxTokenPerMinute   int    `mapstructure:"max_token_per_minute"`
}

// Config holds the full configuration for the aggregator service.
type Config struct {
	App       config.App      `mapstructure:"app"`
	Logger    config.Logger   `mapstructure:"logger"`
	Database  config.Database `mapstructure:"database"`
	Redis     config.Redis    `mapstructure:"redis"`
	HTTP      config.HTTP     `mapstructure:"http"`
	Telegram  config.Telegram `mapstructure:"telegram"`
	Scheduler Scheduler       `mapstructure:"scheduler"`
	Pipeline  Pipeline        `mapstructure:"pipeline"`
	Queue     Queue           `mapstructure:"queue"`
	Dedup     Dedup           `mapstructure:"dedup"`
	Tags      Tags            `mapstructure:"tags"`
	Feeds     Feeds           `mapstructure:"feeds"`
	Gemini    Gemini          `mapstructure:"gemini"`
}

// Load loads the aggregator configuration from the given path and applies
// defaults for unset tunables.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := config.Load(path, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Scheduler.PollingInterval <= 0 {
		c.Scheduler.PollingInterval = time.Minute
	}
	if c.Scheduler.FetchTaskTimeout <= 0 {
		c.Scheduler.FetchTaskTimeout = 5 * time.Minute
	}
	if c.Scheduler.FetchRetryInterval <= 0 {
		c.Scheduler.FetchRetryInterval = time.Minute
	}
	if c.Scheduler.FetchMaxIdleDuration <= 0 {
		c.Scheduler.FetchMaxIdleDuration = 10 * time.Minute
	}
	if c.Scheduler.FetchMaxRetry <= 0 {
		c.Scheduler.FetchMaxRetry = 3
	}
	if c.Pipeline.Workers <= 0 {
		c.Pipeline.Workers = 8
	}
	if c.Pipeline.MaxAttempts <= 0 {
		c.Pipeline.MaxAttempts = 3
	}
	if c.Pipeline.SummarizeTimeout <= 0 {
		c.Pipeline.SummarizeTimeout = 30 * time.Second
	}
	if c.Pipeline.TagTimeout <= 0 {
		c.Pipeline.TagTimeout = 30 * time.Second
	}
	if c.Pipeline.ArticleTimeout <= 0 {
		c.Pipeline.ArticleTimeout = 60 * time.Second
	}
	if c.Pipeline.RetryBackoffBase <= 0 {
		c.Pipeline.RetryBackoffBase = time.Second
	}
	if c.Pipeline.RetryBackoffMax <= 0 {
		c.Pipeline.RetryBackoffMax = 30 * time.Second
	}
	if c.Pipeline.MaxConcurrentSummary <= 0 {
		c.Pipeline.MaxConcurrentSummary = 5
	}
	if c.Pipeline.MaxConcurrentTagging <= 0 {
		c.Pipeline.MaxConcurrentTagging = 10
	}
	if c.Pipeline.SummaryMode == "" {
		c.Pipeline.SummaryMode = "brief"
	}
	if c.Pipeline.ClaimExpiry <= 0 {
		c.Pipeline.ClaimExpiry = 2 * time.Minute
	}
	if c.Pipeline.ReaperInterval <= 0 {
		c.Pipeline.ReaperInterval = time.Minute
	}
	if c.Queue.LowTierAdmissionEvery <= 0 {
		c.Queue.LowTierAdmissionEvery = 10
	}
	if c.Dedup.TitleSimilarityThreshold <= 0 {
		c.Dedup.TitleSimilarityThreshold = 0.85
	}
	if c.Dedup.DuplicateWindow <= 0 {
		c.Dedup.DuplicateWindow = 48 * time.Hour
	}
	if c.Tags.MinConfidence <= 0 {
		c.Tags.MinConfidence = 0.3
	}
	if c.Tags.MaxPerArticle <= 0 {
		c.Tags.MaxPerArticle = 10
	}
	if c.Feeds.DeactivateAfterErrors <= 0 {
		c.Feeds.DeactivateAfterErrors = 5
	}
	if c.Gemini.BaseURL == "" {
		c.Gemini.BaseURL = "https://generativelanguage.googleapis.com/v1beta/models"
	}
	if c.Gemini.MaxRequestPerMinute <= 0 {
		c.Gemini.MaxRequestPerMinute = 15
	}
	if c.Gemini.MaxTokenPerMinute <= 0 {
		c.Gemini.MaxTokenPerMinute = 1000000
	}
}
