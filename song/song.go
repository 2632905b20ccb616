// Package song holds the canonical song record shared by every search component,
// along with the query-side value types (filters, sort modes, facets).
package song

import (
	"strings"
	"time"
)

// Song is the canonical record stored locally and returned by every search path.
// ID uniquely determines a record; re-inserting the same ID overwrites it.
type Song struct {
	ID              int64   `json:"id"`
	Title           string  `json:"title"`
	Artist          string  `json:"artist"`
	Album           string  `json:"album"`
	Genre           string  `json:"genre,omitempty"`
	Year            int     `json:"year,omitempty"`
	DurationSeconds float64 `json:"duration"`

	URL        string `json:"url,omitempty"`
	PreviewURL string `json:"previewUrl,omitempty"`
	Cover      string `json:"cover,omitempty"`
	CoverSmall string `json:"coverSmall,omitempty"`
	CoverLarge string `json:"coverLarge,omitempty"`

	ArtistID    int64     `json:"artistId,omitempty"`
	AlbumID     int64     `json:"albumId,omitempty"`
	TrackNumber int       `json:"trackNumber,omitempty"`
	Explicit    bool      `json:"explicit"`
	Country     string    `json:"country,omitempty"`
	ReleaseDate time.Time `json:"releaseDate,omitempty"`

	// Recomputed per query; persisted values are not meaningful.
	RelevanceScore int   `json:"relevanceScore"`
	PlayCount      int64 `json:"playCount"`

	AddedAt time.Time `json:"addedAt,omitempty"`
}

// Fields returns the lowercased text fields used for matching.
func (s Song) Fields() MatchFields {
	return MatchFields{
		Title:  strings.ToLower(s.Title),
		Artist: strings.ToLower(s.Artist),
		Album:  strings.ToLower(s.Album),
		Genre:  strings.ToLower(s.Genre),
	}
}

// MatchFields is the lowercased projection of a Song consumed by the lexical scorer.
type MatchFields struct {
	Title  string
	Artist string
	Album  string
	Genre  string
}

// ContainsFold reports whether query (case-insensitive) is a substring of title, artist or album.
func (s Song) ContainsFold(query string) bool {
	q := strings.ToLower(query)
	f := s.Fields()
	return strings.Contains(f.Title, q) || strings.Contains(f.Artist, q) || strings.Contains(f.Album, q)
}

// Dedupe keeps the first record seen for each ID, preserving order.
func Dedupe(groups ...[]Song) []Song {
	seen := make(map[int64]struct{})
	var out []Song
	for _, group := range groups {
		for _, s := range group {
			if _, ok := seen[s.ID]; ok {
				continue
			}
			seen[s.ID] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
