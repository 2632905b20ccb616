package resultcache

import (
	"encoding/json"
	"fmt"
	"strings"

	"music-search-api-go/song"
)

func normalize(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// SearchKey is the signature of one paginated search.
func SearchKey(query string, page, pageSize int, sortBy song.SortBy, filters song.Filters) string {
	// struct field order makes the encoding deterministic
	f, _ := json.Marshal(filters)
	return fmt.Sprintf("search:%s:%d:%d:%s:%s", normalize(query), page, pageSize, sortBy, f)
}

func AutocompleteKey(query string, limit int) string {
	return fmt.Sprintf("autocomplete:%s:%d", normalize(query), limit)
}

func SuggestionsKey(query string, limit int) string {
	return fmt.Sprintf("suggestions:%s:%d", normalize(query), limit)
}

func FilterOptionsKey(query string) string {
	return "filters:" + normalize(query)
}
