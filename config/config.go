package config

import (
	"strings"
	"time"

	"music-search-api-go/logcolors"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

var conf = mustLoad()

type Config struct {
	Server struct {
		Port               string `envconfig:"PORT" default:"8080"`
		LogLevel           string `envconfig:"LOG_LEVEL" default:"info"`
		CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
		APIKey             string `envconfig:"API_KEY" default:""`
	}

	Configuration struct {
		RateLimitPerSecond        int `envconfig:"RATE_LIMIT_PER_SECOND" default:"2"`
		RateLimitBurstLimit       int `envconfig:"RATE_LIMIT_BURST_LIMIT" default:"5"`
		CachedRateLimitPerSecond  int `envconfig:"CACHED_RATE_LIMIT_PER_SECOND" default:"10"`
		CachedRateLimitBurstLimit int `envconfig:"CACHED_RATE_LIMIT_BURST_LIMIT" default:"20"`

		// Result cache
		SearchCacheTTLInSeconds int `envconfig:"SEARCH_CACHE_TTL_IN_SECONDS" default:"300"`
		SearchCacheMaxEntries   int `envconfig:"SEARCH_CACHE_MAX_ENTRIES" default:"50"`

		// Search behaviour
		MinQueryLength             int `envconfig:"MIN_QUERY_LENGTH" default:"1"`
		AutocompleteMinQueryLength int `envconfig:"AUTOCOMPLETE_MIN_QUERY_LENGTH" default:"2"`
		DefaultPageSize            int `envconfig:"DEFAULT_PAGE_SIZE" default:"20"`
		MaxPageSize                int `envconfig:"MAX_PAGE_SIZE" default:"100"`
		AutocompleteLimit          int `envconfig:"AUTOCOMPLETE_LIMIT" default:"8"`
		SuggestionLimit            int `envconfig:"SUGGESTION_LIMIT" default:"5"`
		RemoteMinFetch             int `envconfig:"REMOTE_MIN_FETCH" default:"50"`
		TrendingWindowInDays       int `envconfig:"TRENDING_WINDOW_DAYS" default:"7"`
		// client: each client supersedes only its own searches. global: one search system-wide.
		SupersessionScope string `envconfig:"SUPERSESSION_SCOPE" default:"client"`

		// iTunes Search API
		ITunesSearchURL         string `envconfig:"ITUNES_SEARCH_URL" default:"https://itunes.apple.com/search"`
		ITunesCountry           string `envconfig:"ITUNES_COUNTRY" default:""`
		RemoteRequestsPerMinute int    `envconfig:"REMOTE_REQUESTS_PER_MINUTE" default:"20"`
		RemoteTimeoutSeconds    int    `envconfig:"REMOTE_TIMEOUT_SECONDS" default:"0"` // 0 = no client timeout, only cancellation

		CircuitBreakerThreshold    int `envconfig:"CIRCUIT_BREAKER_THRESHOLD" default:"5"`
		CircuitBreakerCooldownSecs int `envconfig:"CIRCUIT_BREAKER_COOLDOWN_SECS" default:"60"`

		// Persistence
		StoreDriver     string `envconfig:"STORE_DRIVER" default:"bolt"` // bolt or sqlite
		StorePath       string `envconfig:"STORE_PATH" default:"./data/songs.db"`
		StoreBackupPath string `envconfig:"STORE_BACKUP_PATH" default:"./data/backups"`
		HistoryPath     string `envconfig:"HISTORY_PATH" default:"./data/history.db"`
		RedisAddress    string `envconfig:"REDIS_ADDRESS" default:""`
	}

	FeatureFlags struct {
		StoreCompression bool `envconfig:"FF_STORE_COMPRESSION" default:"false"`
	}
}

// load reads the configuration from the environment (and .env when present).
func load() (Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Debugf("%s No .env file loaded: %v", logcolors.LogConfig, err)
	}

	cfg := Config{}
	err = envconfig.Process("", &cfg)
	return cfg, err
}

func mustLoad() Config {
	c, err := load()
	if err != nil {
		log.WithError(err).Warnf("%s Unable to load configuration", logcolors.LogConfig)
	}

	return c
}

func Get() Config {
	return conf
}

// SearchCacheTTL returns the result cache TTL as a duration.
func (c Config) SearchCacheTTL() time.Duration {
	return time.Duration(c.Configuration.SearchCacheTTLInSeconds) * time.Second
}

// TrendingWindow returns the hot-search trending window.
func (c Config) TrendingWindow() time.Duration {
	return time.Duration(c.Configuration.TrendingWindowInDays) * 24 * time.Hour
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas, dropping blanks.
func (c Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.Server.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
