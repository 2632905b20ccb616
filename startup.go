package main

import (
	"context"
	"fmt"
	"time"

	"music-search-api-go/circuitbreaker"
	"music-search-api-go/config"
	"music-search-api-go/history"
	"music-search-api-go/itunes"
	"music-search-api-go/logcolors"
	"music-search-api-go/resultcache"
	"music-search-api-go/search"
	"music-search-api-go/stats"
	"music-search-api-go/store"

	log "github.com/sirupsen/logrus"
)

// App owns every long-lived collaborator from startup to shutdown.
type App struct {
	conf    config.Config
	store   store.Store
	tracker history.Tracker
	cache   *resultcache.Cache
	breaker *circuitbreaker.CircuitBreaker
	search  *search.Service
	stats   *stats.Stats
}

func openStore(conf config.Config) (store.Store, error) {
	c := conf.Configuration
	switch c.StoreDriver {
	case "", "bolt":
		return store.NewBoltStore(c.StorePath, c.StoreBackupPath, conf.FeatureFlags.StoreCompression)
	case "sqlite":
		return store.NewSQLiteStore(c.StorePath, c.StoreBackupPath)
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q (want bolt or sqlite)", c.StoreDriver)
	}
}

func openTracker(ctx context.Context, conf config.Config) (history.Tracker, error) {
	if addr := conf.Configuration.RedisAddress; addr != "" {
		return history.NewRedisTracker(ctx, addr, "music-search:")
	}
	return history.NewBoltTracker(conf.Configuration.HistoryPath)
}

// newApp opens storage and wires the search pipeline. Nothing is global
// except the process-wide stats counters.
func newApp(ctx context.Context, conf config.Config) (*App, error) {
	switch conf.Configuration.SupersessionScope {
	case "", "client", "global":
	default:
		return nil, fmt.Errorf("unknown SUPERSESSION_SCOPE %q (want client or global)", conf.Configuration.SupersessionScope)
	}

	st, err := openStore(conf)
	if err != nil {
		return nil, fmt.Errorf("failed to open record store: %w", err)
	}
	count, _ := st.Count()
	log.Infof("%s %s store ready with %d songs", logcolors.LogStoreInit, conf.Configuration.StoreDriver, count)

	tracker, err := openTracker(ctx, conf)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to open search history: %w", err)
	}

	c := conf.Configuration
	remote := itunes.NewClient(itunes.Options{
		BaseURL:           c.ITunesSearchURL,
		Country:           c.ITunesCountry,
		RequestsPerMinute: c.RemoteRequestsPerMinute,
		Timeout:           time.Duration(c.RemoteTimeoutSeconds) * time.Second,
	})
	breaker := circuitbreaker.New(circuitbreaker.Config{
		Name:      "iTunes",
		Threshold: c.CircuitBreakerThreshold,
		Cooldown:  time.Duration(c.CircuitBreakerCooldownSecs) * time.Second,
	})
	cache := resultcache.New(c.SearchCacheMaxEntries, conf.SearchCacheTTL())

	return assemble(conf, st, tracker, remote, breaker, cache), nil
}

// assemble builds the App from already-opened collaborators.
func assemble(conf config.Config, st store.Store, tracker history.Tracker, remote search.Remote, breaker *circuitbreaker.CircuitBreaker, cache *resultcache.Cache) *App {
	c := conf.Configuration
	s := stats.Get()

	deps := search.Deps{
		Store:   st,
		Remote:  remote,
		Cache:   cache,
		Stats:   s,
		History: tracker,
	}
	if breaker != nil {
		deps.Breaker = breaker
	}

	svc := search.New(deps, search.Config{
		MinQueryLength:             c.MinQueryLength,
		AutocompleteMinQueryLength: c.AutocompleteMinQueryLength,
		DefaultPageSize:            c.DefaultPageSize,
		MaxPageSize:                c.MaxPageSize,
		RemoteMinFetch:             c.RemoteMinFetch,
		AutocompleteLimit:          c.AutocompleteLimit,
		SuggestionLimit:            c.SuggestionLimit,
	})

	return &App{
		conf:    conf,
		store:   st,
		tracker: tracker,
		cache:   cache,
		breaker: breaker,
		search:  svc,
		stats:   s,
	}
}

func (a *App) Close() {
	a.search.CancelAll()
	if a.tracker != nil {
		if err := a.tracker.Close(); err != nil {
			log.Errorf("%s Failed to close history: %v", logcolors.LogHistory, err)
		}
	}
	if err := a.store.Close(); err != nil {
		log.Errorf("%s Failed to close store: %v", logcolors.LogStore, err)
	}
}
