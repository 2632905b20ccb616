package itunes

import (
	"strings"
	"time"

	"music-search-api-go/lexical"
	"music-search-api-go/song"
)

const (
	artworkSize    = "100x100"
	coverSize      = "600x600"
	coverSmallSize = "300x300"
	coverLargeSize = "1000x1000"
	explicitMarker = "explicit"
)

// Normalize maps a provider track to the canonical Song. Missing optional
// fields stay empty instead of failing the record.
func Normalize(t Track) song.Song {
	album := t.CollectionName
	if album == "" {
		album = t.TrackName
	}

	s := song.Song{
		ID:              t.TrackID,
		Title:           t.TrackName,
		Artist:          t.ArtistName,
		Album:           album,
		Genre:           t.PrimaryGenreName,
		DurationSeconds: float64(t.TrackTimeMillis) / 1000,
		URL:             t.PreviewURL,
		PreviewURL:      t.PreviewURL,
		ArtistID:        t.ArtistID,
		AlbumID:         t.CollectionID,
		TrackNumber:     t.TrackNumber,
		Explicit:        t.TrackExplicitness == explicitMarker,
		Country:         t.Country,
	}

	if artwork := t.ArtworkURL100; artwork != "" {
		s.Cover = strings.Replace(artwork, artworkSize, coverSize, 1)
		s.CoverSmall = strings.Replace(artwork, artworkSize, coverSmallSize, 1)
		s.CoverLarge = strings.Replace(artwork, artworkSize, coverLargeSize, 1)
	} else if t.ArtworkURL60 != "" {
		s.Cover, s.CoverSmall, s.CoverLarge = t.ArtworkURL60, t.ArtworkURL60, t.ArtworkURL60
	}

	if t.ReleaseDate != "" {
		if released, err := time.Parse(time.RFC3339, t.ReleaseDate); err == nil {
			s.ReleaseDate = released.UTC()
			s.Year = released.Year()
		}
	}

	return s
}

// NormalizeAll normalizes tracks and scores each against query with the
// remote weights. Tracks without an ID are dropped since ID is the merge key.
func NormalizeAll(tracks []Track, query string) []song.Song {
	tokens := lexical.Tokenize(query)
	songs := make([]song.Song, 0, len(tracks))
	for _, t := range tracks {
		if t.TrackID == 0 {
			continue
		}
		s := Normalize(t)
		s.RelevanceScore = lexical.Score(s.Fields(), tokens, lexical.RemoteWeights)
		songs = append(songs, s)
	}
	return songs
}
