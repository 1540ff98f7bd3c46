package common

const (
	// RedisStreamFeedFetch carries one fetch task per due feed from the
	// cycle scheduler to the stream consumer.
	RedisStreamFeedFetch = "feed.fetch"

	RedisStreamGroup    = "aggregator-group"
	RedisStreamConsumer = "aggregator-consumer"
)
