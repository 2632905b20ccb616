package search

import (
	"context"
	"errors"
	"math"
	"strings"

	"music-search-api-go/lexical"
	"music-search-api-go/logcolors"
	"music-search-api-go/resultcache"
	"music-search-api-go/song"
	"music-search-api-go/store"

	log "github.com/sirupsen/logrus"
)

// Source says how a Response was produced.
type Source string

const (
	SourceHit       Source = "HIT"
	SourceMiss      Source = "MISS"
	SourceFallback  Source = "FALLBACK"
	SourceCancelled Source = "CANCELLED"
)

// Options describe one paginated search. Zero values take defaults.
type Options struct {
	Page         int
	PageSize     int
	SortBy       song.SortBy
	Filters      song.Filters
	ForceRefresh bool
	// LocalOnly answers from the cache and Record Store without calling the provider.
	LocalOnly bool
	// Client scopes supersession: a search only cancels earlier searches
	// with the same Client. It is not part of the cache key.
	Client string
}

type Response struct {
	Results    []song.Song `json:"results"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"pageSize"`
	HasMore    bool        `json:"hasMore"`
	TotalPages int         `json:"totalPages"`
	FromCache  bool        `json:"fromCache,omitempty"`
	Cancelled  bool        `json:"cancelled,omitempty"`
	Source     Source      `json:"-"`
}

func emptyResponse() Response {
	return Response{Results: []song.Song{}, Page: 1}
}

func cancelledResponse() Response {
	r := emptyResponse()
	r.Cancelled = true
	r.Source = SourceCancelled
	return r
}

func (s *Service) validate(query string, min int) error {
	if len(strings.TrimSpace(query)) < min {
		return ErrQueryTooShort
	}
	return nil
}

func (s *Service) normalizeOptions(opts Options) Options {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PageSize < 1 {
		opts.PageSize = s.cfg.DefaultPageSize
	}
	if opts.PageSize > s.cfg.MaxPageSize {
		opts.PageSize = s.cfg.MaxPageSize
	}
	// page*pageSize must stay representable
	if maxPage := max(1, math.MaxInt32/opts.PageSize); opts.Page > maxPage {
		opts.Page = maxPage
	}
	if opts.SortBy == "" {
		opts.SortBy = song.SortRelevance
	}
	return opts
}

// SearchSongs runs a paginated search. It never fails: provider and storage
// faults degrade to local or empty results, flagged on the Response.
func (s *Service) SearchSongs(ctx context.Context, query string, opts Options) Response {
	if err := s.validate(query, s.cfg.MinQueryLength); err != nil {
		log.Debugf("%s %q: %v", logcolors.LogSearch, query, err)
		return emptyResponse()
	}
	query = strings.TrimSpace(query)
	opts = s.normalizeOptions(opts)

	ctx, id, release := s.begin(ctx, opts.Client)
	defer release()

	key := resultcache.SearchKey(query, opts.Page, opts.PageSize, opts.SortBy, opts.Filters)
	if !opts.ForceRefresh {
		if cached, ok := resultcache.Lookup[Response](s.cache, key); ok {
			s.stats.RecordCacheHit()
			outcomesTotal.WithLabelValues("cache_hit").Inc()
			cached.Source = SourceHit
			return cached
		}
	}
	s.stats.RecordCacheMiss()

	local, err := s.store.SearchScored(query)
	if err != nil {
		s.recordStoreError("search", err)
		local = nil
	}
	if s.superseded(ctx, opts.Client, id) {
		return s.cancelled(query)
	}

	var merged []song.Song
	if opts.LocalOnly || s.remote == nil || len(local) >= opts.Page*opts.PageSize {
		s.stats.RecordLocalSufficient()
		outcomesTotal.WithLabelValues("local").Inc()
		merged = local
	} else {
		limit := max(s.cfg.RemoteMinFetch, opts.PageSize*2)
		remote, err := s.callRemote(ctx, query, limit)
		if s.superseded(ctx, opts.Client, id) {
			return s.cancelled(query)
		}
		if err != nil {
			log.Warnf("%s Remote search for %q failed, using local results: %v", logcolors.LogFallback, query, err)
			return s.fallback(ctx, id, query, opts)
		}

		if len(remote) > 0 {
			if err := s.store.PutMany(remote); err != nil {
				s.recordStoreError("write-through", err)
			}
			if s.superseded(ctx, opts.Client, id) {
				return s.cancelled(query)
			}
		}
		merged = song.Dedupe(local, remote)
		outcomesTotal.WithLabelValues("remote").Inc()
		log.Debugf("%s %q: %d local + %d remote -> %d", logcolors.LogMerge, query, len(local), len(remote), len(merged))
	}

	resp := paginate(sortSongs(opts.Filters.Apply(merged), opts.SortBy), opts.Page, opts.PageSize)
	resp.Source = SourceMiss
	if s.superseded(ctx, opts.Client, id) {
		return s.cancelled(query)
	}
	s.cache.Set(key, resp)

	log.Infof("%s %q page %d: %d of %d results", logcolors.LogSearch, query, opts.Page, len(resp.Results), resp.Total)
	return resp
}

// fallback answers from a plain local substring match after a provider failure.
// The result is flagged FromCache and is not cached.
func (s *Service) fallback(ctx context.Context, id uint64, query string, opts Options) Response {
	s.stats.RecordFallback()
	outcomesTotal.WithLabelValues("fallback").Inc()

	local, err := s.store.Search(query)
	if err != nil {
		s.recordStoreError("fallback search", err)
		local = nil
	}
	if s.superseded(ctx, opts.Client, id) {
		return s.cancelled(query)
	}
	scoreLocal(local, query)

	resp := paginate(sortSongs(opts.Filters.Apply(local), opts.SortBy), opts.Page, opts.PageSize)
	resp.FromCache = true
	resp.Source = SourceFallback
	if s.superseded(ctx, opts.Client, id) {
		return s.cancelled(query)
	}
	return resp
}

func (s *Service) cancelled(query string) Response {
	s.stats.RecordCancelled()
	outcomesTotal.WithLabelValues("cancelled").Inc()
	log.Debugf("%s Search for %q superseded", logcolors.LogCancelled, query)
	return cancelledResponse()
}

func (s *Service) recordStoreError(op string, err error) {
	s.stats.RecordStoreError()
	var se *store.StorageError
	if errors.As(err, &se) {
		log.Errorf("%s %s failed, continuing without stored songs: %v", logcolors.LogStore, op, err)
		return
	}
	log.Errorf("%s %s failed: %v", logcolors.LogStore, op, err)
}

// SearchSongsSimple returns the first 50 results for query.
func (s *Service) SearchSongsSimple(ctx context.Context, query string) []song.Song {
	return s.SearchSongs(ctx, query, Options{PageSize: 50}).Results
}

func scoreLocal(songs []song.Song, query string) {
	for i := range songs {
		songs[i].RelevanceScore = lexical.ScoreSong(songs[i], query, lexical.LocalWeights)
	}
}
