package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

// TestNewIPRateLimiter tests the creation of a new IPRateLimiter.
func TestNewIPRateLimiter(t *testing.T) {
	rl := NewIPRateLimiter(1, 5, 10, 20)
	if rl == nil {
		t.Errorf("Expected IPRateLimiter to be created, got nil")
	}
	if rl.normalRate != 1 {
		t.Errorf("Expected normal rate limit to be 1, got %v", rl.normalRate)
	}
	if rl.normalBurst != 5 {
		t.Errorf("Expected normal burst limit to be 5, got %v", rl.normalBurst)
	}
	if rl.cachedRate != 10 {
		t.Errorf("Expected cached rate limit to be 10, got %v", rl.cachedRate)
	}
	if rl.cachedBurst != 20 {
		t.Errorf("Expected cached burst limit to be 20, got %v", rl.cachedBurst)
	}
}

// TestAddIP tests adding a new IP to the rate limiter.
func TestAddIP(t *testing.T) {
	rl := NewIPRateLimiter(1, 5, 10, 20)
	ip := "192.168.1.1"
	limiterPair := rl.AddIP(ip)
	if limiterPair == nil {
		t.Errorf("Expected limiter pair to be created for IP, got nil")
	}
	if limiterPair.Normal == nil {
		t.Errorf("Expected normal rate limiter to be created, got nil")
	}
	if limiterPair.Cached == nil {
		t.Errorf("Expected cached rate limiter to be created, got nil")
	}
	if _, exists := rl.ips[ip]; !exists {
		t.Errorf("Expected IP to be added to ips map, but it was not found")
	}
}

// TestGetLimiter tests retrieving the rate limiter for an IP.
func TestGetLimiter(t *testing.T) {
	rl := NewIPRateLimiter(1, 5, 10, 20)
	ip := "192.168.1.1"
	limiterPair := rl.GetLimiter(ip)
	if limiterPair == nil {
		t.Errorf("Expected limiter pair to be returned, got nil")
	}
	if limiterPair.Normal == nil {
		t.Errorf("Expected normal rate limiter to be returned, got nil")
	}
	if limiterPair.Cached == nil {
		t.Errorf("Expected cached rate limiter to be returned, got nil")
	}
	if _, exists := rl.ips[ip]; !exists {
		t.Errorf("Expected IP to be in ips map, but it was not found")
	}
}

// TestRateLimiting tests the actual rate limiting functionality.
func TestRateLimiting(t *testing.T) {
	rl := NewIPRateLimiter(rate.Limit(1), 1, rate.Limit(5), 5) // Normal: 1 req/s burst 1, Cached: 5 req/s burst 5
	ip := "192.168.1.1"
	limiterPair := rl.GetLimiter(ip)

	// Allow the first request on normal tier
	if !limiterPair.Normal.Allow() {
		t.Errorf("Expected first request to be allowed on normal tier")
	}

	// Second request should not be allowed on normal tier immediately
	if limiterPair.Normal.Allow() {
		t.Errorf("Expected second request to be denied on normal tier due to rate limiting")
	}

	// But cached tier should still allow requests (has burst of 5)
	if !limiterPair.Cached.Allow() {
		t.Errorf("Expected request to be allowed on cached tier")
	}

	// Wait for 1 second and then the normal tier request should be allowed again
	time.Sleep(1 * time.Second)
	if !limiterPair.Normal.Allow() {
		t.Errorf("Expected request to be allowed on normal tier after waiting")
	}
}

// TestTwoTierRateLimiting tests the two-tier rate limiting behavior.
func TestTwoTierRateLimiting(t *testing.T) {
	rl := NewIPRateLimiter(rate.Limit(1), 1, rate.Limit(2), 2)
	ip := "192.168.1.2"
	limiterPair := rl.GetLimiter(ip)

	// Normal tier: burst of 1
	if !limiterPair.Normal.Allow() {
		t.Errorf("Expected first normal request to be allowed")
	}

	// Normal tier exhausted, but cached tier should work
	if limiterPair.Normal.Allow() {
		t.Errorf("Expected second normal request to be denied")
	}

	// Cached tier should allow (burst of 2)
	if !limiterPair.Cached.Allow() {
		t.Errorf("Expected first cached request to be allowed")
	}
	if !limiterPair.Cached.Allow() {
		t.Errorf("Expected second cached request to be allowed")
	}

	// Both tiers exhausted
	if limiterPair.Normal.Allow() {
		t.Errorf("Expected normal tier to be exhausted")
	}
	if limiterPair.Cached.Allow() {
		t.Errorf("Expected cached tier to be exhausted")
	}
}

// TestLimiterPairTokens tests the token counting methods.
func TestLimiterPairTokens(t *testing.T) {
	rl := NewIPRateLimiter(rate.Limit(10), 10, rate.Limit(20), 20)
	ip := "192.168.1.3"
	limiterPair := rl.GetLimiter(ip)

	// Check initial tokens (should be at burst capacity)
	normalTokens := limiterPair.GetNormalTokens()
	cachedTokens := limiterPair.GetCachedTokens()

	if normalTokens != 10 {
		t.Errorf("Expected 10 normal tokens initially, got %d", normalTokens)
	}
	if cachedTokens != 20 {
		t.Errorf("Expected 20 cached tokens initially, got %d", cachedTokens)
	}

	// Consume a token
	limiterPair.Normal.Allow()
	normalTokens = limiterPair.GetNormalTokens()
	if normalTokens != 9 {
		t.Errorf("Expected 9 normal tokens after one request, got %d", normalTokens)
	}
}

// TestGetLimits tests the limit getter methods.
func TestGetLimits(t *testing.T) {
	rl := NewIPRateLimiter(rate.Limit(2), 5, rate.Limit(10), 20)

	normalLimit := rl.GetNormalLimit()
	cachedLimit := rl.GetCachedLimit()

	if normalLimit != 5 {
		t.Errorf("Expected normal limit to be 5, got %d", normalLimit)
	}
	if cachedLimit != 20 {
		t.Errorf("Expected cached limit to be 20, got %d", cachedLimit)
	}
}

func TestAddIPKeepsExistingPair(t *testing.T) {
	rl := NewIPRateLimiter(1, 5, 10, 20)
	first := rl.AddIP("10.0.0.1")
	second := rl.AddIP("10.0.0.1")
	if first != second {
		t.Error("Expected AddIP to return the existing limiter pair")
	}
}

func TestClientIPStripsPort(t *testing.T) {
	req := httptest.NewRequest("GET", "/search", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	if got := ClientIP(req); got != "203.0.113.7" {
		t.Errorf("ClientIP() = %q, want 203.0.113.7", got)
	}

	req.RemoteAddr = "no-port"
	if got := ClientIP(req); got != "no-port" {
		t.Errorf("ClientIP() = %q, want no-port", got)
	}
}

func TestRateLimitMiddlewareTiers(t *testing.T) {
	rl := NewIPRateLimiter(rate.Limit(0.001), 1, rate.Limit(0.001), 1)

	var gotCacheOnly []bool
	var gotType []string
	handler := RateLimitMiddleware(rl, "secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCacheOnly = append(gotCacheOnly, CacheOnly(r.Context()))
		gotType = append(gotType, RateLimitType(r.Context()))
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 3)
	headers := make([]string, 3)
	for i := range codes {
		req := httptest.NewRequest("GET", "/search?q=x", nil)
		req.RemoteAddr = "198.51.100.1:1000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes[i] = rec.Code
		headers[i] = rec.Header().Get("X-RateLimit-Type")
	}

	if codes[0] != http.StatusOK || headers[0] != "normal" {
		t.Errorf("request 1: code %d type %q, want 200 normal", codes[0], headers[0])
	}
	if codes[1] != http.StatusOK || headers[1] != "cached" {
		t.Errorf("request 2: code %d type %q, want 200 cached", codes[1], headers[1])
	}
	if codes[2] != http.StatusTooManyRequests || headers[2] != "exceeded" {
		t.Errorf("request 3: code %d type %q, want 429 exceeded", codes[2], headers[2])
	}

	if len(gotCacheOnly) != 2 || gotCacheOnly[0] || !gotCacheOnly[1] {
		t.Errorf("cache-only flags = %v, want [false true]", gotCacheOnly)
	}
	if len(gotType) != 2 || gotType[0] != "normal" || gotType[1] != "cached" {
		t.Errorf("rate limit types = %v", gotType)
	}
}

func TestRateLimitMiddlewareAPIKeyBypass(t *testing.T) {
	rl := NewIPRateLimiter(rate.Limit(0.001), 0, rate.Limit(0.001), 0)
	handler := RateLimitMiddleware(rl, "secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if RateLimitType(r.Context()) != "bypass" {
			t.Errorf("RateLimitType = %q, want bypass", RateLimitType(r.Context()))
		}
	}))

	req := httptest.NewRequest("GET", "/search", nil)
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected bypass to succeed, got %d", rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Bypass") != "true" {
		t.Error("Expected X-RateLimit-Bypass header")
	}
}
