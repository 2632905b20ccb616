package stats

import (
	"sync"
	"testing"
	"time"
)

func TestRecordRequest(t *testing.T) {
	s := New()
	for _, ep := range []string{"/search", "/search", "/search/autocomplete", "/songs/{id}", "/trending", "/nope"} {
		s.RecordRequest(ep)
	}

	tests := []struct {
		name string
		got  int64
		want int64
	}{
		{"total", s.TotalRequests.Load(), 6},
		{"search", s.SearchRequests.Load(), 2},
		{"autocomplete", s.AutocompleteRequests.Load(), 1},
		{"songs", s.SongRequests.Load(), 1},
		{"history", s.HistoryRequests.Load(), 1},
		{"other", s.OtherRequests.Load(), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, tt.got)
			}
		})
	}
}

func TestCacheHitRate(t *testing.T) {
	s := New()
	if s.CacheHitRate() != 0 {
		t.Error("Expected 0 hit rate with no lookups")
	}
	s.RecordCacheHit()
	s.RecordCacheHit()
	s.RecordCacheHit()
	s.RecordCacheMiss()
	if got := s.CacheHitRate(); got != 75 {
		t.Errorf("Expected 75%%, got %v", got)
	}
}

func TestResponseTimes(t *testing.T) {
	s := New()
	if s.MinResponseTime() != 0 {
		t.Error("Expected 0 min before any response")
	}

	s.RecordResponseTime(10*time.Millisecond, "/search")
	s.RecordResponseTime(30*time.Millisecond, "/health")

	if s.MinResponseTime() != 10*time.Millisecond {
		t.Errorf("Unexpected min %v", s.MinResponseTime())
	}
	if s.MaxResponseTime() != 30*time.Millisecond {
		t.Errorf("Unexpected max %v", s.MaxResponseTime())
	}
	if s.AvgResponseTime() != 20*time.Millisecond {
		t.Errorf("Unexpected avg %v", s.AvgResponseTime())
	}
	if s.AvgSearchResponseTime() != 10*time.Millisecond {
		t.Errorf("Unexpected search avg %v", s.AvgSearchResponseTime())
	}
}

func TestRecordStatusCodeAndRateLimit(t *testing.T) {
	s := New()
	for _, code := range []int{200, 204, 404, 429, 500, 302} {
		s.RecordStatusCode(code)
	}
	if s.Status2xx.Load() != 2 || s.Status4xx.Load() != 2 || s.Status5xx.Load() != 1 {
		t.Errorf("Unexpected status buckets %d/%d/%d", s.Status2xx.Load(), s.Status4xx.Load(), s.Status5xx.Load())
	}

	s.RecordRateLimit("normal")
	s.RecordRateLimit("cached")
	s.RecordRateLimit("exceeded")
	s.RecordRateLimit("bogus")
	if s.RateLimitNormal.Load() != 1 || s.RateLimitCached.Load() != 1 || s.RateLimitExceeded.Load() != 1 {
		t.Error("Unexpected rate limit counters")
	}
}

func TestSnapshotShape(t *testing.T) {
	s := New()
	s.RecordFallback()
	snap := s.Snapshot()

	for _, key := range []string{"server", "requests", "search", "rate_limiting", "responses", "response_times"} {
		if _, ok := snap[key]; !ok {
			t.Errorf("Snapshot missing %q", key)
		}
	}
	search := snap["search"].(map[string]interface{})
	if search["fallbacks"].(int64) != 1 {
		t.Errorf("Expected 1 fallback, got %v", search["fallbacks"])
	}
}

func TestConcurrentRecording(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.RecordRequest("/search")
			s.RecordResponseTime(time.Millisecond, "/search")
		}()
	}
	wg.Wait()

	if s.SearchRequests.Load() != 100 {
		t.Errorf("Expected 100 search requests, got %d", s.SearchRequests.Load())
	}
}
