package search

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"music-search-api-go/logcolors"
	"music-search-api-go/resultcache"
	"music-search-api-go/song"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// suggestionHistoryDepth is how many recent history terms feed suggestions.
const suggestionHistoryDepth = 10

// sharedRemoteTimeout bounds a coalesced autocomplete lookup.
const sharedRemoteTimeout = 15 * time.Second

var errRemoteAbandoned = errors.New("remote lookup abandoned")

// Autocomplete returns up to limit quick matches for query. Identical
// concurrent lookups share one provider call; autocomplete never supersedes
// a running SearchSongs call.
func (s *Service) Autocomplete(ctx context.Context, query string, limit int) []song.Song {
	if err := s.validate(query, s.cfg.AutocompleteMinQueryLength); err != nil {
		return []song.Song{}
	}
	query = strings.TrimSpace(query)
	if limit <= 0 {
		limit = s.cfg.AutocompleteLimit
	}

	key := resultcache.AutocompleteKey(query, limit)
	if cached, ok := resultcache.Lookup[[]song.Song](s.cache, key); ok {
		s.stats.RecordCacheHit()
		return cached
	}
	s.stats.RecordCacheMiss()

	local, err := s.store.Search(query)
	if err != nil {
		s.recordStoreError("autocomplete search", err)
		local = nil
	}
	scoreLocal(local, query)

	if len(local) >= limit || s.remote == nil {
		results := truncate(sortSongs(local, song.SortRelevance), limit)
		s.cache.Set(key, results)
		return results
	}

	ch := s.group.DoChan(key, func() (any, error) {
		return s.sharedRemote(ctx, query, limit)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return []song.Song{}
	case res = <-ch:
	}
	if ctx.Err() != nil {
		return []song.Song{}
	}
	if res.Err != nil {
		log.Warnf("%s Autocomplete for %q falling back to local results: %v", logcolors.LogFallback, query, res.Err)
		s.stats.RecordFallback()
		return truncate(sortSongs(local, song.SortRelevance), limit)
	}

	remote, _ := res.Val.([]song.Song)
	results := truncate(sortSongs(remote, song.SortRelevance), limit)
	s.cache.Set(key, results)
	log.Debugf("%s %q: %d results", logcolors.LogAutocomplete, query, len(results))
	return results
}

// sharedRemote is the provider lookup shared by identical autocomplete calls.
// It outlives any single caller, so it runs detached from ctx with its own
// deadline. A lookup that ends by deadline returns errRemoteAbandoned and is
// never cached.
func (s *Service) sharedRemote(ctx context.Context, query string, limit int) ([]song.Song, error) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedRemoteTimeout)
	defer cancel()

	remote, err := s.callRemote(callCtx, query, limit)
	if err != nil {
		return nil, err
	}
	if callCtx.Err() != nil {
		return nil, errRemoteAbandoned
	}
	if len(remote) > 0 {
		if err := s.store.PutMany(remote); err != nil {
			s.recordStoreError("write-through", err)
		}
	}
	return remote, nil
}

// Suggestions returns up to limit distinct strings starting with query, drawn
// from stored titles, artists and albums, then from recent search terms.
func (s *Service) Suggestions(ctx context.Context, query string, limit int) []string {
	if err := s.validate(query, 1); err != nil {
		return []string{}
	}
	query = strings.TrimSpace(query)
	if limit <= 0 {
		limit = s.cfg.SuggestionLimit
	}

	key := resultcache.SuggestionsKey(query, limit)
	if cached, ok := resultcache.Lookup[[]string](s.cache, key); ok {
		s.stats.RecordCacheHit()
		return cached
	}
	s.stats.RecordCacheMiss()

	values, err := s.store.PrefixValues(query, 0)
	if err != nil {
		s.recordStoreError("prefix lookup", err)
		values = nil
	}

	lowerQuery := strings.ToLower(query)
	seen := make(map[string]struct{}, len(values))
	suggestions := make([]string, 0, limit)
	add := func(v string) {
		k := strings.ToLower(v)
		if _, dup := seen[k]; dup {
			return
		}
		seen[k] = struct{}{}
		suggestions = append(suggestions, v)
	}
	for _, v := range values {
		add(v)
	}

	if s.history != nil {
		recent, err := s.history.Recent(ctx, suggestionHistoryDepth)
		if err != nil {
			log.Warnf("%s Could not read search history: %v", logcolors.LogSuggestions, err)
		}
		for _, e := range recent {
			if strings.HasPrefix(strings.ToLower(e.Term), lowerQuery) {
				add(e.Term)
			}
		}
	}

	suggestions = truncate(suggestions, limit)
	s.cache.Set(key, suggestions)
	return suggestions
}

// FilterOptions lists the facets present in the stored songs matching query.
// Names are sorted by count descending; years newest first.
func (s *Service) FilterOptions(query string) song.FilterOptions {
	opts := song.FilterOptions{
		Artists: []song.Facet{},
		Albums:  []song.Facet{},
		Genres:  []song.Facet{},
		Years:   []song.YearFacet{},
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return opts
	}

	key := resultcache.FilterOptionsKey(query)
	if cached, ok := resultcache.Lookup[song.FilterOptions](s.cache, key); ok {
		return cached
	}

	songs, err := s.store.Search(query)
	if err != nil {
		s.recordStoreError("filter options", err)
		return opts
	}

	artists := map[string]int{}
	albums := map[string]int{}
	genres := map[string]int{}
	years := map[int]int{}
	for _, sg := range songs {
		if sg.Artist != "" {
			artists[sg.Artist]++
		}
		if sg.Album != "" {
			albums[sg.Album]++
		}
		if sg.Genre != "" {
			genres[sg.Genre]++
		}
		if sg.Year != 0 {
			years[sg.Year]++
		}
	}

	opts.Artists = facets(artists)
	opts.Albums = facets(albums)
	opts.Genres = facets(genres)
	for y, n := range years {
		opts.Years = append(opts.Years, song.YearFacet{Year: y, Count: n})
	}
	sort.Slice(opts.Years, func(i, j int) bool { return opts.Years[i].Year > opts.Years[j].Year })

	s.cache.Set(key, opts)
	return opts
}

func facets(counts map[string]int) []song.Facet {
	out := make([]song.Facet, 0, len(counts))
	for name, n := range counts {
		out = append(out, song.Facet{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
