package main

import (
	"music-search-api-go/history"
	"music-search-api-go/song"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message    string `json:"message"`
	BackupPath string `json:"backup_path,omitempty"`
}

type SongsResponse struct {
	Query string      `json:"query,omitempty"`
	Count int         `json:"count"`
	Songs []song.Song `json:"songs"`
}

type SuggestionsResponse struct {
	Query       string   `json:"query"`
	Suggestions []string `json:"suggestions"`
}

type HistoryResponse struct {
	Count   int             `json:"count"`
	History []history.Entry `json:"history"`
}

type TrendingResponse struct {
	WindowDays int                 `json:"window_days"`
	Trending   []history.HotSearch `json:"trending"`
	Top        []history.HotSearch `json:"top"`
}

// CircuitBreakerStatus is the /circuit-breaker payload
type CircuitBreakerStatus struct {
	Name           string `json:"name"`
	State          string `json:"state"`
	Failures       int    `json:"failures"`
	Threshold      int    `json:"threshold"`
	TimeUntilRetry string `json:"time_until_retry"`
}

func songsResponse(query string, songs []song.Song) SongsResponse {
	if songs == nil {
		songs = []song.Song{}
	}
	return SongsResponse{Query: query, Count: len(songs), Songs: songs}
}
