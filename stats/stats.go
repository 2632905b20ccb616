package stats

import (
	"sync/atomic"
	"time"
)

// Stats holds all server statistics with atomic counters
type Stats struct {
	StartTime time.Time

	// Request counters
	TotalRequests        atomic.Int64
	SearchRequests       atomic.Int64
	AutocompleteRequests atomic.Int64
	SuggestionRequests   atomic.Int64
	SongRequests         atomic.Int64
	HistoryRequests      atomic.Int64
	StatsRequests        atomic.Int64
	HealthRequests       atomic.Int64
	OtherRequests        atomic.Int64

	// Search pipeline outcomes
	CacheHits       atomic.Int64
	CacheMisses     atomic.Int64
	LocalSufficient atomic.Int64 // answered from the Record Store alone
	RemoteCalls     atomic.Int64
	RemoteFailures  atomic.Int64
	Fallbacks       atomic.Int64 // degraded to local after a remote failure
	Cancelled       atomic.Int64 // superseded or explicitly cancelled
	StoreErrors     atomic.Int64

	// Rate limiting
	RateLimitNormal   atomic.Int64 // Requests served under normal rate limit
	RateLimitCached   atomic.Int64 // Requests served under cache-only tier
	RateLimitExceeded atomic.Int64 // Requests rejected (429)

	// Response status codes
	Status2xx atomic.Int64
	Status4xx atomic.Int64
	Status5xx atomic.Int64

	// Response times in microseconds
	totalResponseTime   atomic.Int64
	responseCount       atomic.Int64
	minResponseTime     atomic.Int64
	maxResponseTime     atomic.Int64
	searchResponseTime  atomic.Int64
	searchResponseCount atomic.Int64
}

// New returns a zeroed Stats starting now.
func New() *Stats {
	s := &Stats{StartTime: time.Now()}
	s.minResponseTime.Store(int64(^uint64(0) >> 1))
	return s
}

var global = New()

// Get returns the process-wide stats instance
func Get() *Stats {
	return global
}

// RecordRequest buckets a request by route
func (s *Stats) RecordRequest(endpoint string) {
	s.TotalRequests.Add(1)
	switch endpoint {
	case "/search":
		s.SearchRequests.Add(1)
	case "/search/autocomplete":
		s.AutocompleteRequests.Add(1)
	case "/search/suggestions":
		s.SuggestionRequests.Add(1)
	case "/songs/{id}", "/songs/{id}/similar", "/songs/recent", "/genres/{genre}":
		s.SongRequests.Add(1)
	case "/history", "/history/{term}", "/trending":
		s.HistoryRequests.Add(1)
	case "/stats":
		s.StatsRequests.Add(1)
	case "/health":
		s.HealthRequests.Add(1)
	default:
		s.OtherRequests.Add(1)
	}
}

func (s *Stats) RecordCacheHit() { s.CacheHits.Add(1) }
func (s *Stats) RecordCacheMiss() { s.CacheMisses.Add(1) }
func (s *Stats) RecordLocalSufficient() { s.LocalSufficient.Add(1) }
func (s *Stats) RecordRemoteCall() { s.RemoteCalls.Add(1) }
func (s *Stats) RecordRemoteFailure() { s.RemoteFailures.Add(1) }
func (s *Stats) RecordFallback() { s.Fallbacks.Add(1) }
func (s *Stats) RecordCancelled() { s.Cancelled.Add(1) }
func (s *Stats) RecordStoreError() { s.StoreErrors.Add(1) }

// RecordRateLimit records rate limit tier usage
func (s *Stats) RecordRateLimit(tier string) {
	switch tier {
	case "normal":
		s.RateLimitNormal.Add(1)
	case "cached":
		s.RateLimitCached.Add(1)
	case "exceeded":
		s.RateLimitExceeded.Add(1)
	}
}

// RecordStatusCode records a response status code
func (s *Stats) RecordStatusCode(code int) {
	switch {
	case code >= 200 && code < 300:
		s.Status2xx.Add(1)
	case code >= 400 && code < 500:
		s.Status4xx.Add(1)
	case code >= 500:
		s.Status5xx.Add(1)
	}
}

// RecordResponseTime records a response time
func (s *Stats) RecordResponseTime(duration time.Duration, endpoint string) {
	us := duration.Microseconds()

	s.totalResponseTime.Add(us)
	s.responseCount.Add(1)

	for {
		current := s.minResponseTime.Load()
		if us >= current || s.minResponseTime.CompareAndSwap(current, us) {
			break
		}
	}
	for {
		current := s.maxResponseTime.Load()
		if us <= current || s.maxResponseTime.CompareAndSwap(current, us) {
			break
		}
	}

	if endpoint == "/search" {
		s.searchResponseTime.Add(us)
		s.searchResponseCount.Add(1)
	}
}

func (s *Stats) Uptime() time.Duration {
	return time.Since(s.StartTime)
}

// CacheHitRate returns the result cache hit rate as a percentage
func (s *Stats) CacheHitRate() float64 {
	hits := s.CacheHits.Load()
	total := hits + s.CacheMisses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}

func (s *Stats) AvgResponseTime() time.Duration {
	count := s.responseCount.Load()
	if count == 0 {
		return 0
	}
	return time.Duration(s.totalResponseTime.Load()/count) * time.Microsecond
}

func (s *Stats) MinResponseTime() time.Duration {
	min := s.minResponseTime.Load()
	if min == int64(^uint64(0)>>1) {
		return 0
	}
	return time.Duration(min) * time.Microsecond
}

func (s *Stats) MaxResponseTime() time.Duration {
	return time.Duration(s.maxResponseTime.Load()) * time.Microsecond
}

func (s *Stats) AvgSearchResponseTime() time.Duration {
	count := s.searchResponseCount.Load()
	if count == 0 {
		return 0
	}
	return time.Duration(s.searchResponseTime.Load()/count) * time.Microsecond
}

// Snapshot returns a point-in-time snapshot of all stats
func (s *Stats) Snapshot() map[string]interface{} {
	uptime := s.Uptime()

	return map[string]interface{}{
		"server": map[string]interface{}{
			"start_time":     s.StartTime.Format(time.RFC3339),
			"uptime":         uptime.String(),
			"uptime_seconds": int64(uptime.Seconds()),
		},
		"requests": map[string]interface{}{
			"total":        s.TotalRequests.Load(),
			"search":       s.SearchRequests.Load(),
			"autocomplete": s.AutocompleteRequests.Load(),
			"suggestions":  s.SuggestionRequests.Load(),
			"songs":        s.SongRequests.Load(),
			"history":      s.HistoryRequests.Load(),
			"stats":        s.StatsRequests.Load(),
			"health":       s.HealthRequests.Load(),
			"other":        s.OtherRequests.Load(),
		},
		"search": map[string]interface{}{
			"cache_hits":       s.CacheHits.Load(),
			"cache_misses":     s.CacheMisses.Load(),
			"cache_hit_rate":   s.CacheHitRate(),
			"local_sufficient": s.LocalSufficient.Load(),
			"remote_calls":     s.RemoteCalls.Load(),
			"remote_failures":  s.RemoteFailures.Load(),
			"fallbacks":        s.Fallbacks.Load(),
			"cancelled":        s.Cancelled.Load(),
			"store_errors":     s.StoreErrors.Load(),
		},
		"rate_limiting": map[string]interface{}{
			"normal_tier": s.RateLimitNormal.Load(),
			"cached_tier": s.RateLimitCached.Load(),
			"exceeded":    s.RateLimitExceeded.Load(),
		},
		"responses": map[string]interface{}{
			"2xx": s.Status2xx.Load(),
			"4xx": s.Status4xx.Load(),
			"5xx": s.Status5xx.Load(),
		},
		"response_times": map[string]interface{}{
			"avg":        s.AvgResponseTime().String(),
			"min":        s.MinResponseTime().String(),
			"max":        s.MaxResponseTime().String(),
			"avg_search": s.AvgSearchResponseTime().String(),
		},
	}
}
