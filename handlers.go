package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"music-search-api-go/circuitbreaker"
	"music-search-api-go/history"
	"music-search-api-go/logcolors"
	"music-search-api-go/middleware"
	"music-search-api-go/search"
	"music-search-api-go/song"
	"music-search-api-go/store"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

// maxPage bounds the page query parameter; deeper pages are never useful.
const maxPage = 10000

func intParam(q url.Values, name string, def int) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return v, nil
}

func boolParam(q url.Values, name string) (*bool, error) {
	raw := q.Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be true or false", name)
	}
	return &v, nil
}

func parseSearchOptions(q url.Values) (search.Options, error) {
	var opts search.Options
	var err error

	if opts.Page, err = intParam(q, "page", 1); err != nil {
		return opts, err
	}
	if opts.Page > maxPage {
		return opts, fmt.Errorf("page must be at most %d", maxPage)
	}
	if opts.PageSize, err = intParam(q, "pageSize", 0); err != nil {
		return opts, err
	}
	if opts.SortBy, err = song.ParseSortBy(q.Get("sort")); err != nil {
		return opts, err
	}

	f := song.Filters{
		Artist: q.Get("artist"),
		Album:  q.Get("album"),
		Genre:  q.Get("genre"),
	}
	if f.Year, err = intParam(q, "year", 0); err != nil {
		return opts, err
	}
	if f.YearFrom, err = intParam(q, "yearFrom", 0); err != nil {
		return opts, err
	}
	if f.YearTo, err = intParam(q, "yearTo", 0); err != nil {
		return opts, err
	}
	if f.Explicit, err = boolParam(q, "explicit"); err != nil {
		return opts, err
	}
	opts.Filters = f

	refresh, err := boolParam(q, "refresh")
	if err != nil {
		return opts, err
	}
	opts.ForceRefresh = refresh != nil && *refresh
	return opts, nil
}

func (a *App) searchHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	opts, err := parseSearchOptions(r.URL.Query())
	if err != nil {
		Respond(w, r).Error(http.StatusBadRequest, err.Error())
		return
	}
	opts.LocalOnly = middleware.CacheOnly(r.Context())
	opts.Client = a.searchClient(r)

	resp := a.search.SearchSongs(r.Context(), query, opts)
	if resp.Page == 1 && !resp.Cancelled {
		a.recordSearch(r, query)
	}

	Respond(w, r).SetCacheStatus(string(resp.Source)).JSON(resp)
}

// recordSearch adds a first-page search to the history. Failures are logged only.
func (a *App) recordSearch(r *http.Request, query string) {
	if a.tracker == nil || len(strings.TrimSpace(query)) < a.conf.Configuration.MinQueryLength {
		return
	}
	if err := a.tracker.Record(r.Context(), query); err != nil {
		log.Warnf("%s Failed to record %q: %v", logcolors.LogHistory, query, err)
	}
}

func (a *App) autocompleteHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	limit, err := intParam(r.URL.Query(), "limit", 0)
	if err != nil {
		Respond(w, r).Error(http.StatusBadRequest, err.Error())
		return
	}
	Respond(w, r).JSON(songsResponse(query, a.search.Autocomplete(r.Context(), query, limit)))
}

func (a *App) suggestionsHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	limit, err := intParam(r.URL.Query(), "limit", 0)
	if err != nil {
		Respond(w, r).Error(http.StatusBadRequest, err.Error())
		return
	}
	Respond(w, r).JSON(SuggestionsResponse{
		Query:       query,
		Suggestions: a.search.Suggestions(r.Context(), query, limit),
	})
}

func (a *App) filterOptionsHandler(w http.ResponseWriter, r *http.Request) {
	Respond(w, r).JSON(a.search.FilterOptions(r.URL.Query().Get("q")))
}

func (a *App) fuzzySearchHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	threshold := search.DefaultFuzzyThreshold
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 || v > 1 {
			Respond(w, r).Error(http.StatusBadRequest, "threshold must be a number in (0, 1]")
			return
		}
		threshold = v
	}

	results, err := a.search.FuzzySearch(query, threshold)
	if err != nil {
		log.Errorf("%s Fuzzy search failed: %v", logcolors.LogSearch, err)
		Respond(w, r).Error(http.StatusInternalServerError, "fuzzy search failed")
		return
	}
	Respond(w, r).JSON(songsResponse(query, results))
}

// searchClient identifies whose searches supersede each other. Browsers with
// several tabs behind one address can tell them apart with X-Client-ID.
// With the global scope every request shares one key.
func (a *App) searchClient(r *http.Request) string {
	if a.conf.Configuration.SupersessionScope == "global" {
		return ""
	}
	if id := strings.TrimSpace(r.Header.Get("X-Client-ID")); id != "" {
		return id
	}
	return middleware.ClientIP(r)
}

func (a *App) cancelSearchHandler(w http.ResponseWriter, r *http.Request) {
	a.search.CancelSearch(a.searchClient(r))
	Respond(w, r).JSON(MessageResponse{Message: "Search cancelled"})
}

func (a *App) clearCacheHandler(w http.ResponseWriter, r *http.Request) {
	a.search.ClearCache()
	log.Infof("%s Result cache cleared", logcolors.LogResultCacheClear)
	Respond(w, r).JSON(MessageResponse{Message: "Result cache cleared"})
}

func songID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

func (a *App) songHandler(w http.ResponseWriter, r *http.Request) {
	id, err := songID(r)
	if err != nil {
		Respond(w, r).Error(http.StatusBadRequest, "invalid song id")
		return
	}

	s, err := a.search.SongByID(id)
	if errors.Is(err, store.ErrNotFound) {
		Respond(w, r).Error(http.StatusNotFound, "song not found")
		return
	}
	if err != nil {
		log.Errorf("%s Failed to load song %d: %v", logcolors.LogStore, id, err)
		Respond(w, r).Error(http.StatusInternalServerError, "failed to load song")
		return
	}
	Respond(w, r).JSON(s)
}

func (a *App) similarSongsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := songID(r)
	if err != nil {
		Respond(w, r).Error(http.StatusBadRequest, "invalid song id")
		return
	}
	limit, err := intParam(r.URL.Query(), "limit", 5)
	if err != nil {
		Respond(w, r).Error(http.StatusBadRequest, err.Error())
		return
	}

	similar, err := a.search.SimilarSongs(r.Context(), id, limit)
	if errors.Is(err, store.ErrNotFound) {
		Respond(w, r).Error(http.StatusNotFound, "song not found")
		return
	}
	if err != nil {
		Respond(w, r).Error(http.StatusInternalServerError, "failed to load song")
		return
	}
	Respond(w, r).JSON(songsResponse("", similar))
}

func (a *App) genreHandler(w http.ResponseWriter, r *http.Request) {
	genre := mux.Vars(r)["genre"]
	songs, err := a.search.SongsByGenre(genre)
	if err != nil {
		log.Errorf("%s Failed to list genre %q: %v", logcolors.LogStore, genre, err)
		Respond(w, r).Error(http.StatusInternalServerError, "failed to list songs")
		return
	}
	Respond(w, r).JSON(songsResponse(genre, songs))
}

func (a *App) recentlyAddedHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query(), "limit", 20)
	if err != nil {
		Respond(w, r).Error(http.StatusBadRequest, err.Error())
		return
	}
	songs, err := a.search.RecentlyAdded(limit)
	if err != nil {
		log.Errorf("%s Failed to list recent songs: %v", logcolors.LogStore, err)
		Respond(w, r).Error(http.StatusInternalServerError, "failed to list songs")
		return
	}
	Respond(w, r).JSON(songsResponse("", songs))
}

func (a *App) historyHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query(), "limit", 20)
	if err != nil {
		Respond(w, r).Error(http.StatusBadRequest, err.Error())
		return
	}
	entries, err := a.tracker.Recent(r.Context(), limit)
	if err != nil {
		log.Errorf("%s Failed to read history: %v", logcolors.LogHistory, err)
		Respond(w, r).Error(http.StatusInternalServerError, "failed to read history")
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	Respond(w, r).JSON(HistoryResponse{Count: len(entries), History: entries})
}

func (a *App) clearHistoryHandler(w http.ResponseWriter, r *http.Request) {
	if err := a.tracker.Clear(r.Context()); err != nil {
		log.Errorf("%s Failed to clear history: %v", logcolors.LogHistory, err)
		Respond(w, r).Error(http.StatusInternalServerError, "failed to clear history")
		return
	}
	Respond(w, r).JSON(MessageResponse{Message: "Search history cleared"})
}

func (a *App) removeHistoryTermHandler(w http.ResponseWriter, r *http.Request) {
	term := mux.Vars(r)["term"]
	if err := a.tracker.Remove(r.Context(), term); err != nil {
		log.Errorf("%s Failed to remove %q: %v", logcolors.LogHistory, term, err)
		Respond(w, r).Error(http.StatusInternalServerError, "failed to remove history entry")
		return
	}
	Respond(w, r).JSON(MessageResponse{Message: "Removed from search history"})
}

func (a *App) trendingHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query(), "limit", 10)
	if err != nil {
		Respond(w, r).Error(http.StatusBadRequest, err.Error())
		return
	}
	days, err := intParam(r.URL.Query(), "days", a.conf.Configuration.TrendingWindowInDays)
	if err != nil {
		Respond(w, r).Error(http.StatusBadRequest, err.Error())
		return
	}

	trending, err := a.tracker.Trending(r.Context(), limit, time.Duration(days)*24*time.Hour)
	if err != nil {
		log.Errorf("%s Failed to read trending searches: %v", logcolors.LogHistory, err)
		Respond(w, r).Error(http.StatusInternalServerError, "failed to read trending searches")
		return
	}
	top, err := a.tracker.Top(r.Context(), limit)
	if err != nil {
		log.Errorf("%s Failed to read top searches: %v", logcolors.LogHistory, err)
		Respond(w, r).Error(http.StatusInternalServerError, "failed to read top searches")
		return
	}
	if trending == nil {
		trending = []history.HotSearch{}
	}
	if top == nil {
		top = []history.HotSearch{}
	}
	Respond(w, r).JSON(TrendingResponse{WindowDays: days, Trending: trending, Top: top})
}

func (a *App) backupStoreHandler(w http.ResponseWriter, r *http.Request) {
	m, ok := a.store.(store.Maintainer)
	if !ok {
		Respond(w, r).Error(http.StatusNotImplemented, "store does not support backups")
		return
	}
	backupPath, err := m.Backup()
	if err != nil {
		log.Errorf("%s Failed to create backup: %v", logcolors.LogStoreBackup, err)
		Respond(w, r).Error(http.StatusInternalServerError, fmt.Sprintf("Failed to create backup: %v", err))
		return
	}
	log.Infof("%s Backup created at %s", logcolors.LogStoreBackup, backupPath)
	Respond(w, r).JSON(MessageResponse{Message: "Backup created successfully", BackupPath: backupPath})
}

func (a *App) clearStoreHandler(w http.ResponseWriter, r *http.Request) {
	m, ok := a.store.(store.Maintainer)
	if !ok {
		Respond(w, r).Error(http.StatusNotImplemented, "store does not support backups")
		return
	}
	backupPath, err := m.BackupAndClear()
	if err != nil {
		log.Errorf("%s Failed to backup and clear store: %v", logcolors.LogStoreClear, err)
		Respond(w, r).Error(http.StatusInternalServerError, fmt.Sprintf("Failed to backup and clear store: %v", err))
		return
	}
	// cached pages may reference cleared songs
	a.search.ClearCache()
	log.Infof("%s Store cleared, backup at %s", logcolors.LogStoreClear, backupPath)
	Respond(w, r).JSON(MessageResponse{Message: "Store cleared successfully", BackupPath: backupPath})
}

func (a *App) breakerStatus() CircuitBreakerStatus {
	if a.breaker == nil {
		return CircuitBreakerStatus{State: circuitbreaker.StateClosed.String(), TimeUntilRetry: "0s"}
	}
	state, failures, _ := a.breaker.Stats()
	return CircuitBreakerStatus{
		Name:           a.breaker.Name(),
		State:          state.String(),
		Failures:       failures,
		Threshold:      a.breaker.Threshold(),
		TimeUntilRetry: a.breaker.TimeUntilRetry().String(),
	}
}

func (a *App) circuitBreakerHandler(w http.ResponseWriter, r *http.Request) {
	Respond(w, r).JSON(a.breakerStatus())
}

func (a *App) resetCircuitBreakerHandler(w http.ResponseWriter, r *http.Request) {
	if a.breaker != nil {
		a.breaker.Reset()
	}
	Respond(w, r).JSON(MessageResponse{Message: "Circuit breaker reset to CLOSED state"})
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":          "ok",
		"circuit_breaker": a.breakerStatus().State,
		"store_driver":    a.conf.Configuration.StoreDriver,
	}

	count, err := a.store.Count()
	if err != nil {
		log.Errorf("%s Health check could not read store: %v", logcolors.LogStore, err)
		Respond(w, r).Error(http.StatusServiceUnavailable, "store unavailable")
		return
	}
	health["songs"] = count

	if a.breaker != nil && a.breaker.State() == circuitbreaker.StateOpen {
		health["status"] = "degraded"
		health["circuit_breaker_retry_in"] = a.breaker.TimeUntilRetry().String()
	}

	Respond(w, r).JSON(health)
}

func (a *App) statsHandler(w http.ResponseWriter, r *http.Request) {
	snapshot := a.stats.Snapshot()
	snapshot["result_cache"] = a.cache.Stats()
	snapshot["circuit_breaker"] = a.breakerStatus()
	if count, err := a.store.Count(); err == nil {
		snapshot["store"] = map[string]interface{}{
			"driver": a.conf.Configuration.StoreDriver,
			"songs":  count,
		}
	}
	Respond(w, r).JSON(snapshot)
}

func helpHandler(w http.ResponseWriter, r *http.Request) {
	Respond(w, r).JSON(map[string]interface{}{
		"help": "Use /search?q=<term> to search songs. Optional: page, pageSize, sort (relevance|popularity|newest|oldest|title|artist), artist, album, genre, year, yearFrom, yearTo, explicit, refresh.",
		"endpoints": []string{
			"/search", "/search/autocomplete", "/search/suggestions", "/search/filters", "/search/fuzzy",
			"/songs/{id}", "/songs/{id}/similar", "/songs/recent", "/genres/{genre}",
			"/history", "/trending", "/health", "/stats", "/metrics", "/circuit-breaker",
		},
	})
}
