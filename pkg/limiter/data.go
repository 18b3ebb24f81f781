package limiter

import "time"

// per-host pacing state
type hostTiming struct {
	lastFetchAt time.Time
	fetchCount  int
}

func (h hostTiming) LastFetchAt() time.Time {
	return h.lastFetchAt
}

func (h hostTiming) FetchCount() int {
	return h.fetchCount
}
