// Package lexical scores songs against a query and measures approximate
// string similarity. Everything here is pure.
package lexical

import (
	"strings"

	"music-search-api-go/song"
)

// Weights is one consistent set of match weights. Within each field the
// categories are exclusive: exact beats prefix beats substring.
type Weights struct {
	TitleExact     int
	TitlePrefix    int
	TitleContains  int
	ArtistExact    int
	ArtistPrefix   int
	ArtistContains int
	AlbumContains  int
	GenreContains  int
}

// LocalWeights rank records already held in the Record Store.
var LocalWeights = Weights{
	TitleExact:     100,
	TitlePrefix:    50,
	TitleContains:  30,
	ArtistExact:    80,
	ArtistPrefix:   40,
	ArtistContains: 25,
	AlbumContains:  15,
	GenreContains:  10,
}

// RemoteWeights rank freshly fetched provider results.
var RemoteWeights = Weights{
	TitleExact:     100,
	TitlePrefix:    50,
	TitleContains:  30,
	ArtistExact:    80,
	ArtistPrefix:   40,
	ArtistContains: 20,
	AlbumContains:  10,
	GenreContains:  10,
}

// Tokenize lowercases query and splits it on whitespace.
func Tokenize(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// Score sums the weighted matches of every token against every field.
// A token may contribute to several fields at once.
func Score(f song.MatchFields, tokens []string, w Weights) int {
	score := 0
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		score += fieldScore(f.Title, tok, w.TitleExact, w.TitlePrefix, w.TitleContains)
		score += fieldScore(f.Artist, tok, w.ArtistExact, w.ArtistPrefix, w.ArtistContains)
		if strings.Contains(f.Album, tok) {
			score += w.AlbumContains
		}
		if strings.Contains(f.Genre, tok) {
			score += w.GenreContains
		}
	}
	return score
}

func fieldScore(field, tok string, exact, prefix, contains int) int {
	switch {
	case field == tok:
		return exact
	case strings.HasPrefix(field, tok):
		return prefix
	case strings.Contains(field, tok):
		return contains
	}
	return 0
}

// ScoreSong is a convenience wrapper that tokenizes query and scores s.
func ScoreSong(s song.Song, query string, w Weights) int {
	return Score(s.Fields(), Tokenize(query), w)
}
