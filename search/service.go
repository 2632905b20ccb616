// Package search is the orchestrator that answers song searches. It checks the
// result cache, then the local Record Store, and only calls the remote
// provider when the store cannot fill the requested page. Remote hits are
// written through to the store, merged with local hits by ID, then filtered,
// sorted and paginated.
//
// Each client holds at most one live SearchSongs call. Starting a new search
// cancels that client's previous one, and a cancelled search never merges or
// writes to the cache. The empty client key is an ordinary client.
package search

import (
	"context"
	"errors"
	"sync"

	"music-search-api-go/history"
	"music-search-api-go/resultcache"
	"music-search-api-go/song"
	"music-search-api-go/stats"
	"music-search-api-go/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"
)

// ErrQueryTooShort marks a query below the minimum length. Callers get an
// empty result rather than this error.
var ErrQueryTooShort = errors.New("query too short")

// Remote is the provider queried when the local store is insufficient.
// A cancelled ctx must yield an empty result and a nil error.
type Remote interface {
	Search(ctx context.Context, query string, limit int) ([]song.Song, error)
}

// Breaker guards Remote. circuitbreaker.CircuitBreaker satisfies it.
type Breaker interface {
	Execute(ctx context.Context, fn func(context.Context) error) error
}

// History supplies recent search terms for suggestions.
type History interface {
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
}

var outcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "music_search_outcomes_total",
	Help: "Search calls by how they were answered.",
}, []string{"outcome"})

// Config holds the orchestrator's tunables. Zero fields take defaults.
type Config struct {
	MinQueryLength             int
	AutocompleteMinQueryLength int
	DefaultPageSize            int
	MaxPageSize                int
	RemoteMinFetch             int
	AutocompleteLimit          int
	SuggestionLimit            int
}

func (c Config) withDefaults() Config {
	if c.MinQueryLength <= 0 {
		c.MinQueryLength = 1
	}
	if c.AutocompleteMinQueryLength <= 0 {
		c.AutocompleteMinQueryLength = 2
	}
	if c.DefaultPageSize <= 0 {
		c.DefaultPageSize = 20
	}
	if c.MaxPageSize <= 0 {
		c.MaxPageSize = 100
	}
	if c.RemoteMinFetch <= 0 {
		c.RemoteMinFetch = 50
	}
	if c.AutocompleteLimit <= 0 {
		c.AutocompleteLimit = 8
	}
	if c.SuggestionLimit <= 0 {
		c.SuggestionLimit = 5
	}
	return c
}

// Deps are the collaborators owned by the application root. Store and Cache
// are required; the rest are optional.
type Deps struct {
	Store   store.Store
	Remote  Remote
	Breaker Breaker
	Cache   *resultcache.Cache
	Stats   *stats.Stats
	History History
}

type Service struct {
	store   store.Store
	remote  Remote
	breaker Breaker
	cache   *resultcache.Cache
	stats   *stats.Stats
	history History
	cfg     Config

	group singleflight.Group

	mu       sync.Mutex
	seq      uint64
	inflight map[string]flight
}

// flight is the supersession token of one client's active search.
type flight struct {
	id     uint64
	cancel context.CancelFunc
}

func New(deps Deps, cfg Config) *Service {
	if deps.Stats == nil {
		deps.Stats = stats.New()
	}
	if deps.Cache == nil {
		deps.Cache = resultcache.New(0, 0)
	}
	return &Service{
		store:    deps.Store,
		remote:   deps.Remote,
		breaker:  deps.Breaker,
		cache:    deps.Cache,
		stats:    deps.Stats,
		history:  deps.History,
		cfg:      cfg.withDefaults(),
		inflight: make(map[string]flight),
	}
}

// begin supersedes client's active search and returns the token for a new
// one. The returned release func must be called when the search finishes.
func (s *Service) begin(parent context.Context, client string) (context.Context, uint64, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f, ok := s.inflight[client]; ok {
		f.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	s.seq++
	id := s.seq
	s.inflight[client] = flight{id: id, cancel: cancel}

	release := func() {
		s.mu.Lock()
		if f, ok := s.inflight[client]; ok && f.id == id {
			delete(s.inflight, client)
		}
		s.mu.Unlock()
		cancel()
	}
	return ctx, id, release
}

// superseded reports whether the search holding token id has been cancelled
// or replaced by a newer one from the same client.
func (s *Service) superseded(ctx context.Context, client string, id uint64) bool {
	if ctx.Err() != nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.inflight[client]
	return !ok || f.id != id
}

// CancelSearch aborts client's in-flight search, if any.
func (s *Service) CancelSearch(client string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.inflight[client]; ok {
		f.cancel()
		delete(s.inflight, client)
	}
}

// CancelAll aborts every in-flight search. Used on shutdown.
func (s *Service) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for client, f := range s.inflight {
		f.cancel()
		delete(s.inflight, client)
	}
}

func (s *Service) ClearCache() {
	s.cache.Clear()
}

// callRemote runs one provider query through the breaker when one is set.
func (s *Service) callRemote(ctx context.Context, query string, limit int) ([]song.Song, error) {
	s.stats.RecordRemoteCall()

	var results []song.Song
	fn := func(ctx context.Context) error {
		var err error
		results, err = s.remote.Search(ctx, query, limit)
		return err
	}

	var err error
	if s.breaker != nil {
		err = s.breaker.Execute(ctx, fn)
	} else {
		err = fn(ctx)
	}
	if err != nil && ctx.Err() == nil {
		s.stats.RecordRemoteFailure()
	}
	return results, err
}
