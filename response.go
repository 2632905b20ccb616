package main

import (
	"encoding/json"
	"net/http"

	"music-search-api-go/middleware"
)

// APIResponse handles consistent header setting and JSON responses.
type APIResponse struct {
	w           http.ResponseWriter
	r           *http.Request
	cacheStatus string
}

// Respond creates a response helper from request context
func Respond(w http.ResponseWriter, r *http.Request) *APIResponse {
	return &APIResponse{w: w, r: r}
}

// SetCacheStatus sets the X-Cache-Status header value (HIT, MISS, FALLBACK or CANCELLED)
func (a *APIResponse) SetCacheStatus(status string) *APIResponse {
	a.cacheStatus = status
	return a
}

func (a *APIResponse) writeHeaders() {
	a.w.Header().Set("Content-Type", "application/json")

	if a.cacheStatus != "" {
		a.w.Header().Set("X-Cache-Status", a.cacheStatus)
	}
	if middleware.CacheOnly(a.r.Context()) {
		a.w.Header().Set("X-Search-Mode", "local-only")
	}
	if rateLimitType := middleware.RateLimitType(a.r.Context()); rateLimitType != "" {
		a.w.Header().Set("X-RateLimit-Type", rateLimitType)
	}
}

// JSON writes headers and encodes data as JSON (200 OK)
func (a *APIResponse) JSON(data interface{}) error {
	a.writeHeaders()
	return json.NewEncoder(a.w).Encode(data)
}

// Error writes headers, sets status code, and encodes an ErrorResponse
func (a *APIResponse) Error(statusCode int, message string) error {
	a.writeHeaders()
	a.w.WriteHeader(statusCode)
	return json.NewEncoder(a.w).Encode(ErrorResponse{Error: message})
}
