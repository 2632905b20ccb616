package main

import (
	"net/http"

	"music-search-api-go/middleware"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/time/rate"
)

// setupRoutes configures all HTTP routes for the API
func (a *App) setupRoutes(router *mux.Router) {
	// Search
	router.HandleFunc("/search", a.searchHandler).Methods(http.MethodGet)
	router.HandleFunc("/search/autocomplete", a.autocompleteHandler).Methods(http.MethodGet)
	router.HandleFunc("/search/suggestions", a.suggestionsHandler).Methods(http.MethodGet)
	router.HandleFunc("/search/filters", a.filterOptionsHandler).Methods(http.MethodGet)
	router.HandleFunc("/search/fuzzy", a.fuzzySearchHandler).Methods(http.MethodGet)
	router.HandleFunc("/search/cancel", a.cancelSearchHandler).Methods(http.MethodPost)

	// Songs
	router.HandleFunc("/songs/recent", a.recentlyAddedHandler).Methods(http.MethodGet)
	router.HandleFunc("/songs/{id:[0-9]+}", a.songHandler).Methods(http.MethodGet)
	router.HandleFunc("/songs/{id:[0-9]+}/similar", a.similarSongsHandler).Methods(http.MethodGet)
	router.HandleFunc("/genres/{genre}", a.genreHandler).Methods(http.MethodGet)

	// History and hot searches
	router.HandleFunc("/history", a.historyHandler).Methods(http.MethodGet)
	router.HandleFunc("/history", a.clearHistoryHandler).Methods(http.MethodDelete)
	router.HandleFunc("/history/{term}", a.removeHistoryTermHandler).Methods(http.MethodDelete)
	router.HandleFunc("/trending", a.trendingHandler).Methods(http.MethodGet)

	// Admin endpoints
	admin := router.NewRoute().Subrouter()
	admin.Use(middleware.RequireAPIKey(a.conf.Server.APIKey))
	admin.HandleFunc("/cache/clear", a.clearCacheHandler).Methods(http.MethodPost)
	admin.HandleFunc("/store/backup", a.backupStoreHandler).Methods(http.MethodPost)
	admin.HandleFunc("/store/clear", a.clearStoreHandler).Methods(http.MethodPost)
	admin.HandleFunc("/circuit-breaker/reset", a.resetCircuitBreakerHandler).Methods(http.MethodPost)

	// Health and stats endpoints
	router.HandleFunc("/health", a.healthHandler).Methods(http.MethodGet)
	router.HandleFunc("/stats", a.statsHandler).Methods(http.MethodGet)
	router.HandleFunc("/circuit-breaker", a.circuitBreakerHandler).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	router.HandleFunc("/", helpHandler).Methods(http.MethodGet)
}

// handler chains rate limiting, CORS and logging around the router.
func (a *App) handler() http.Handler {
	router := mux.NewRouter()
	router.Use(middleware.LoggingMiddleware)
	a.setupRoutes(router)

	c := cors.New(cors.Options{
		AllowedOrigins:   a.conf.AllowedOrigins(),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders:   []string{"Content-Type", "X-API-Key", "X-Request-ID", "X-Client-ID"},
		ExposedHeaders:   []string{"X-Cache-Status", "X-RateLimit-Type", "X-RateLimit-Remaining", "X-Request-ID"},
		AllowCredentials: true,
	})

	cfg := a.conf.Configuration
	limiter := middleware.NewIPRateLimiter(
		rate.Limit(cfg.RateLimitPerSecond), cfg.RateLimitBurstLimit,
		rate.Limit(cfg.CachedRateLimitPerSecond), cfg.CachedRateLimitBurstLimit,
	)

	return middleware.RateLimitMiddleware(limiter, a.conf.Server.APIKey)(c.Handler(router))
}
