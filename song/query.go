package song

import (
	"fmt"
	"strings"
)

// SortBy selects the ordering applied to a result set.
type SortBy string

const (
	SortRelevance  SortBy = "relevance"
	SortPopularity SortBy = "popularity"
	SortNewest     SortBy = "newest"
	SortOldest     SortBy = "oldest"
	SortTitle      SortBy = "title"
	SortArtist     SortBy = "artist"
)

// ParseSortBy maps a request value to a SortBy. An empty value means relevance.
func ParseSortBy(raw string) (SortBy, error) {
	switch s := SortBy(strings.ToLower(strings.TrimSpace(raw))); s {
	case "":
		return SortRelevance, nil
	case SortRelevance, SortPopularity, SortNewest, SortOldest, SortTitle, SortArtist:
		return s, nil
	default:
		return "", fmt.Errorf("unknown sort mode %q", raw)
	}
}

// Filters narrows a result set. Zero values mean "no constraint"; all set
// predicates are AND-combined.
type Filters struct {
	Artist   string `json:"artist,omitempty"`
	Album    string `json:"album,omitempty"`
	Genre    string `json:"genre,omitempty"`
	Year     int    `json:"year,omitempty"`
	YearFrom int    `json:"yearFrom,omitempty"`
	YearTo   int    `json:"yearTo,omitempty"`
	// Explicit set to false excludes explicit songs. Nil or true allows them.
	Explicit *bool `json:"explicit,omitempty"`
}

// IsZero reports whether no filter is set.
func (f Filters) IsZero() bool {
	return f == Filters{}
}

// Match reports whether s satisfies every set predicate.
// Artist, album and genre are case-insensitive substring matches.
func (f Filters) Match(s Song) bool {
	if f.Artist != "" && !strings.Contains(strings.ToLower(s.Artist), strings.ToLower(f.Artist)) {
		return false
	}
	if f.Album != "" && !strings.Contains(strings.ToLower(s.Album), strings.ToLower(f.Album)) {
		return false
	}
	if f.Genre != "" && !strings.Contains(strings.ToLower(s.Genre), strings.ToLower(f.Genre)) {
		return false
	}
	if f.Year != 0 && s.Year != f.Year {
		return false
	}
	if f.YearFrom != 0 && s.Year < f.YearFrom {
		return false
	}
	if f.YearTo != 0 && s.Year > f.YearTo {
		return false
	}
	if f.Explicit != nil && !*f.Explicit && s.Explicit {
		return false
	}
	return true
}

// Apply returns the songs that match f, preserving order.
func (f Filters) Apply(songs []Song) []Song {
	if f.IsZero() {
		return songs
	}
	out := make([]Song, 0, len(songs))
	for _, s := range songs {
		if f.Match(s) {
			out = append(out, s)
		}
	}
	return out
}

// Facet is a count-annotated distinct value.
type Facet struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// YearFacet is a count-annotated distinct release year.
type YearFacet struct {
	Year  int `json:"year"`
	Count int `json:"count"`
}

// FilterOptions lists the facets available for narrowing a query's results.
type FilterOptions struct {
	Artists []Facet     `json:"artists"`
	Albums  []Facet     `json:"albums"`
	Genres  []Facet     `json:"genres"`
	Years   []YearFacet `json:"years"`
}
