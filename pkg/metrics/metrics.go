package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ArticlesProcessedTotal counts pipeline outcomes, labelled completed|failed.
	ArticlesProcessedTotal *prometheus.CounterVec
	// ArticlesIngestedTotal counts dedup classifications, labelled new|updated|unchanged|duplicate.
	ArticlesIngestedTotal *prometheus.CounterVec
	// QueueDepth tracks pending work per priority tier.
	QueueDepth *prometheus.GaugeVec
	// DownstreamCallDuration measures summarize/tag call latency.
	DownstreamCallDuration *prometheus.HistogramVec
	// FeedFetchesTotal counts fetch attempts, labelled success|failure.
	FeedFetchesTotal *prometheus.CounterVec
)

// Init registers all collectors on the default registry.
func Init() {
	ArticlesProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "articles_processed_total",
			Help: "Total number of articles driven through the pipeline.",
		},
		[]string{"status"},
	)

	ArticlesIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "articles_ingested_total",
			Help: "Total number of fetched items by dedup classification.",
		},
		[]string{"classification"},
	)

	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "work_queue_depth",
			Help: "Current number of queued articles per priority tier.",
		},
		[]string{"tier"},
	)

	DownstreamCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "downstream_call_duration_seconds",
			Help:    "Duration of summarization and tagging calls.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"service", "outcome"},
	)

	FeedFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_fetches_total",
			Help: "Total number of feed fetch attempts.",
		},
		[]string{"status"},
	)
}
