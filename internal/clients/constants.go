package clients

import "time"

const (
	MAX_RETRIES     = 5
	INITIAL_BACKOFF = 1 * time.Second
	MAX_BACKOFF     = 32 * time.Second
	USER_AGENT      = "reviewscope-client/1.0 (+https://github.com/spacesedan/reviewscope)"

	DEFAULT_CLIENT_TIMEOUT = 30 * time.Second

	VALKEY_RECENT_KEY  = "reviewscope:recent_analyses"
	VALKEY_RETRIES     = 3
	VALKEY_RETRY_DELAY = 250 * time.Millisecond
)
