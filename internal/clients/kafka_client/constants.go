package kafka_client

import "time"

const (
	KAFKA_TOPIC_ANALYSES = "review-analyses" // finished analyses, keyed by analysis ID
)

const (
	MAX_RETRIES      = 3
	RETRY_DELAY      = 250 * time.Millisecond
	FLUSH_TIMEOUT_MS = 5000
)
