// Package history records search terms: a recent-searches list unique by
// term, and hot-search counters used for the trending view.
package history

import (
	"context"
	"sort"
	"strings"
	"time"
)

// Entry is one remembered search term.
type Entry struct {
	Term      string    `json:"term"`
	Timestamp time.Time `json:"timestamp"`
}

// HotSearch counts how often a normalised term was searched.
type HotSearch struct {
	Term         string    `json:"term"`
	DisplayTerm  string    `json:"displayTerm"`
	Count        int64     `json:"count"`
	LastSearched time.Time `json:"lastSearched"`
}

// Tracker is implemented by the bbolt and Redis backends.
type Tracker interface {
	// Record stores term in the history (refreshing its timestamp if present)
	// and bumps its hot-search counter. Blank terms are ignored.
	Record(ctx context.Context, term string) error
	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Remove(ctx context.Context, term string) error
	// Clear empties the history list; hot-search counters are kept.
	Clear(ctx context.Context) error
	// Top returns the most searched terms.
	Top(ctx context.Context, limit int) ([]HotSearch, error)
	// Trending is Top restricted to terms searched within window.
	Trending(ctx context.Context, limit int, window time.Duration) ([]HotSearch, error)
	Close() error
}

// DefaultTrendingWindow matches the 7-day window used for trending searches.
const DefaultTrendingWindow = 7 * 24 * time.Hour

var now = time.Now

func hotKey(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}

func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
}

func sortHot(hot []HotSearch) {
	sort.SliceStable(hot, func(i, j int) bool {
		if hot[i].Count != hot[j].Count {
			return hot[i].Count > hot[j].Count
		}
		return hot[i].Term < hot[j].Term
	})
}

func filterSince(hot []HotSearch, cutoff time.Time) []HotSearch {
	out := hot[:0:0]
	for _, h := range hot {
		if !h.LastSearched.Before(cutoff) {
			out = append(out, h)
		}
	}
	return out
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
