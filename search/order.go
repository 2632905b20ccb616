package search

import (
	"sort"

	"music-search-api-go/song"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// sortSongs returns a sorted copy. Ties keep their input order.
func sortSongs(songs []song.Song, by song.SortBy) []song.Song {
	out := make([]song.Song, len(songs))
	copy(out, songs)

	var less func(a, b song.Song) bool
	switch by {
	case song.SortPopularity:
		less = func(a, b song.Song) bool { return a.PlayCount > b.PlayCount }
	case song.SortNewest:
		less = func(a, b song.Song) bool { return releaseMillis(a) > releaseMillis(b) }
	case song.SortOldest:
		less = func(a, b song.Song) bool { return releaseMillis(a) < releaseMillis(b) }
	case song.SortTitle, song.SortArtist:
		// Collators are not safe for concurrent use.
		col := collate.New(language.English)
		field := func(s song.Song) string { return s.Title }
		if by == song.SortArtist {
			field = func(s song.Song) string { return s.Artist }
		}
		less = func(a, b song.Song) bool { return col.CompareString(field(a), field(b)) < 0 }
	default:
		less = func(a, b song.Song) bool {
			if a.RelevanceScore != b.RelevanceScore {
				return a.RelevanceScore > b.RelevanceScore
			}
			return a.PlayCount > b.PlayCount
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// releaseMillis treats a missing release date as the epoch.
func releaseMillis(s song.Song) int64 {
	if s.ReleaseDate.IsZero() {
		return 0
	}
	return s.ReleaseDate.UnixMilli()
}

func paginate(songs []song.Song, page, pageSize int) Response {
	total := len(songs)
	start := min((page-1)*pageSize, total)
	end := min(start+pageSize, total)

	results := make([]song.Song, end-start)
	copy(results, songs[start:end])

	return Response{
		Results:    results,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		HasMore:    (page-1)*pageSize+pageSize < total,
		TotalPages: (total + pageSize - 1) / pageSize,
	}
}
