package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"

	"music-search-api-go/logcolors"
	"music-search-api-go/stats"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type contextKey string

const (
	cacheOnlyModeKey contextKey = "cacheOnlyMode"
	rateLimitTypeKey contextKey = "rateLimitType"
)

// CacheOnly reports whether the request was admitted on the cached tier and
// must be answered without calling the remote provider.
func CacheOnly(ctx context.Context) bool {
	v, _ := ctx.Value(cacheOnlyModeKey).(bool)
	return v
}

// RateLimitType returns "normal", "cached" or "bypass", or "" when the
// request did not pass through RateLimitMiddleware.
func RateLimitType(ctx context.Context) string {
	v, _ := ctx.Value(rateLimitTypeKey).(string)
	return v
}

// LimiterPair holds both normal and cached tier limiters for an IP
type LimiterPair struct {
	Normal *rate.Limiter
	Cached *rate.Limiter
}

// GetNormalTokens returns the number of tokens available in the normal tier
func (lp *LimiterPair) GetNormalTokens() int {
	return int(math.Floor(lp.Normal.Tokens()))
}

// GetCachedTokens returns the number of tokens available in the cached tier
func (lp *LimiterPair) GetCachedTokens() int {
	return int(math.Floor(lp.Cached.Tokens()))
}

// IPRateLimiter manages two-tier rate limiting per client IP. Searches that
// exceed the normal tier may still be served from the cache and Record Store.
type IPRateLimiter struct {
	ips         map[string]*LimiterPair
	mu          sync.RWMutex
	normalRate  rate.Limit
	normalBurst int
	cachedRate  rate.Limit
	cachedBurst int
}

func (i *IPRateLimiter) GetNormalLimit() int {
	return i.normalBurst
}

func (i *IPRateLimiter) GetCachedLimit() int {
	return i.cachedBurst
}

func NewIPRateLimiter(normalRate rate.Limit, normalBurst int, cachedRate rate.Limit, cachedBurst int) *IPRateLimiter {
	return &IPRateLimiter{
		ips:         make(map[string]*LimiterPair),
		normalRate:  normalRate,
		normalBurst: normalBurst,
		cachedRate:  cachedRate,
		cachedBurst: cachedBurst,
	}
}

func (i *IPRateLimiter) AddIP(ip string) *LimiterPair {
	i.mu.Lock()
	defer i.mu.Unlock()

	if pair, ok := i.ips[ip]; ok {
		return pair
	}
	pair := &LimiterPair{
		Normal: rate.NewLimiter(i.normalRate, i.normalBurst),
		Cached: rate.NewLimiter(i.cachedRate, i.cachedBurst),
	}
	i.ips[ip] = pair
	return pair
}

func (i *IPRateLimiter) GetLimiter(ip string) *LimiterPair {
	i.mu.RLock()
	pair, exists := i.ips[ip]
	i.mu.RUnlock()

	if !exists {
		return i.AddIP(ip)
	}
	return pair
}

// ClientIP strips the port from RemoteAddr so one client maps to one limiter.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func setLimitHeaders(w http.ResponseWriter, limit, remaining int, tier string) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("X-RateLimit-Type", tier)
}

// RateLimitMiddleware admits requests on the normal tier first, then on the
// cached tier (flagging the request cache-only), and rejects with 429 once
// both are exhausted. A valid X-API-Key bypasses limiting.
func RateLimitMiddleware(limiter *IPRateLimiter, apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key := r.Header.Get("X-API-Key"); key != "" && apiKey != "" && key == apiKey {
				w.Header().Set("X-RateLimit-Bypass", "true")
				ctx := context.WithValue(r.Context(), rateLimitTypeKey, "bypass")
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			ip := ClientIP(r)
			limiters := limiter.GetLimiter(ip)

			if limiters.Normal.Allow() {
				stats.Get().RecordRateLimit("normal")
				setLimitHeaders(w, limiter.GetNormalLimit(), limiters.GetNormalTokens(), "normal")
				ctx := context.WithValue(r.Context(), rateLimitTypeKey, "normal")
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if limiters.Cached.Allow() {
				stats.Get().RecordRateLimit("cached")
				setLimitHeaders(w, limiter.GetCachedLimit(), limiters.GetCachedTokens(), "cached")
				log.Debugf("%s IP %s exceeded normal tier, using cached tier", logcolors.LogRateLimit, ip)
				ctx := context.WithValue(r.Context(), cacheOnlyModeKey, true)
				ctx = context.WithValue(ctx, rateLimitTypeKey, "cached")
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			stats.Get().RecordRateLimit("exceeded")
			log.Warnf("%s IP %s exceeded both rate limit tiers", logcolors.LogRateLimit, ip)
			setLimitHeaders(w, limiter.GetCachedLimit(), 0, "exceeded")
			w.Header().Set("Retry-After", "1")
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		})
	}
}
