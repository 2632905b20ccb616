package lexical

import (
	"strings"

	"github.com/xrash/smetrics"
)

// containsSimilarity is returned when the longer string contains the shorter,
// identical strings included.
const containsSimilarity = 0.9

// Similarity returns a normalised edit-distance similarity in [0,1].
// Comparison is case-insensitive and measured in bytes. Either input empty yields 0.
func Similarity(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a == "" || b == "" {
		return 0
	}

	longer, shorter := a, b
	if len(b) > len(a) {
		longer, shorter = b, a
	}
	if strings.Contains(longer, shorter) {
		return containsSimilarity
	}

	dist := smetrics.WagnerFischer(longer, shorter, 1, 1, 1)
	return float64(len(longer)-dist) / float64(len(longer))
}
