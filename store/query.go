package store

import (
	"sort"
	"strings"

	"music-search-api-go/lexical"
	"music-search-api-go/song"
)

func matchSubstring(all []song.Song, query string) []song.Song {
	var out []song.Song
	for _, s := range all {
		if s.ContainsFold(query) {
			out = append(out, s)
		}
	}
	return out
}

func matchScored(all []song.Song, query string) []song.Song {
	tokens := lexical.Tokenize(query)
	var out []song.Song
	for _, s := range all {
		score := lexical.Score(s.Fields(), tokens, lexical.LocalWeights)
		if score > 0 {
			s.RelevanceScore = score
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RelevanceScore > out[j].RelevanceScore
	})
	return out
}

func matchFuzzy(all []song.Song, query string, threshold float64) []song.Song {
	var out []song.Song
	for _, s := range all {
		if lexical.Similarity(s.Title, query) >= threshold || lexical.Similarity(s.Artist, query) >= threshold {
			out = append(out, s)
		}
	}
	return out
}

// collectPrefix appends distinct values to out until limit is reached.
func collectPrefix(out []string, seen map[string]struct{}, values []string, limit int) []string {
	for _, v := range values {
		if limit > 0 && len(out) >= limit {
			break
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

func sortByID(songs []song.Song) {
	sort.Slice(songs, func(i, j int) bool { return songs[i].ID < songs[j].ID })
}

func sortByAddedDesc(songs []song.Song) {
	sort.SliceStable(songs, func(i, j int) bool {
		if !songs[i].AddedAt.Equal(songs[j].AddedAt) {
			return songs[i].AddedAt.After(songs[j].AddedAt)
		}
		return songs[i].ID > songs[j].ID
	})
}
