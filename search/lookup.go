package search

import (
	"context"
	"strings"

	"music-search-api-go/logcolors"
	"music-search-api-go/song"

	log "github.com/sirupsen/logrus"
)

// DefaultFuzzyThreshold is used when FuzzySearch gets a threshold outside (0, 1].
const DefaultFuzzyThreshold = 0.6

// SongByID returns store.ErrNotFound for unknown IDs.
func (s *Service) SongByID(id int64) (song.Song, error) {
	return s.store.Get(id)
}

// SimilarSongs searches the provider for other songs by the same artist.
// A provider failure yields an empty list.
func (s *Service) SimilarSongs(ctx context.Context, id int64, limit int) ([]song.Song, error) {
	if limit <= 0 {
		limit = 5
	}
	base, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if s.remote == nil || base.Artist == "" {
		return []song.Song{}, nil
	}

	results, err := s.callRemote(ctx, base.Artist, limit+2)
	if err != nil {
		log.Warnf("%s Similar songs for %d unavailable: %v", logcolors.LogRemote, id, err)
		return []song.Song{}, nil
	}

	similar := make([]song.Song, 0, limit)
	for _, r := range results {
		if r.ID == id {
			continue
		}
		similar = append(similar, r)
		if len(similar) == limit {
			break
		}
	}
	return similar, nil
}

// SongsByGenre returns stored songs whose genre equals genre, ignoring case.
func (s *Service) SongsByGenre(genre string) ([]song.Song, error) {
	all, err := s.store.GetAll()
	if err != nil {
		return nil, err
	}
	out := []song.Song{}
	for _, sg := range all {
		if sg.Genre != "" && strings.EqualFold(sg.Genre, genre) {
			out = append(out, sg)
		}
	}
	return out, nil
}

func (s *Service) RecentlyAdded(limit int) ([]song.Song, error) {
	return s.store.RecentlyAdded(limit)
}

// FuzzySearch returns stored songs whose title or artist is at least
// threshold similar to query, best lexical match first.
func (s *Service) FuzzySearch(query string, threshold float64) ([]song.Song, error) {
	if err := s.validate(query, s.cfg.MinQueryLength); err != nil {
		return []song.Song{}, nil
	}
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultFuzzyThreshold
	}
	results, err := s.store.FuzzySearch(strings.TrimSpace(query), threshold)
	if err != nil {
		return nil, err
	}
	scoreLocal(results, query)
	return sortSongs(results, song.SortRelevance), nil
}
