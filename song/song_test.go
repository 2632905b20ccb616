package song

import "testing"

func boolPtr(b bool) *bool { return &b }

func TestFiltersMatch(t *testing.T) {
	s := Song{
		ID:       1,
		Title:    "Sunset Dreams",
		Artist:   "The Waves",
		Album:    "Summer Nights",
		Genre:    "Indie Pop",
		Year:     2019,
		Explicit: true,
	}

	tests := []struct {
		name    string
		filters Filters
		want    bool
	}{
		{"no filters", Filters{}, true},
		{"artist substring", Filters{Artist: "wave"}, true},
		{"artist mismatch", Filters{Artist: "tides"}, false},
		{"album case-insensitive", Filters{Album: "SUMMER"}, true},
		{"genre substring", Filters{Genre: "pop"}, true},
		{"exact year", Filters{Year: 2019}, true},
		{"wrong year", Filters{Year: 2018}, false},
		{"inside range", Filters{YearFrom: 2010, YearTo: 2020}, true},
		{"before range", Filters{YearFrom: 2020}, false},
		{"after range", Filters{YearTo: 2018}, false},
		{"explicit allowed", Filters{Explicit: boolPtr(true)}, true},
		{"explicit excluded", Filters{Explicit: boolPtr(false)}, false},
		{"all predicates AND", Filters{Artist: "waves", Genre: "rock"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filters.Match(s); got != tt.want {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFiltersApplyPreservesOrder(t *testing.T) {
	songs := []Song{
		{ID: 3, Genre: "Rock"},
		{ID: 1, Genre: "Pop"},
		{ID: 2, Genre: "Rock"},
	}

	got := Filters{Genre: "rock"}.Apply(songs)
	if len(got) != 2 || got[0].ID != 3 || got[1].ID != 2 {
		t.Errorf("Apply() = %+v, want IDs [3 2]", got)
	}
}

func TestDedupeFirstSeenWins(t *testing.T) {
	local := []Song{{ID: 1, Title: "local"}, {ID: 2, Title: "local"}}
	remote := []Song{{ID: 2, Title: "remote"}, {ID: 3, Title: "remote"}, {ID: 3, Title: "dup"}}

	got := Dedupe(local, remote)
	if len(got) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(got))
	}
	if got[1].ID != 2 || got[1].Title != "local" {
		t.Errorf("Expected local record to win for ID 2, got %+v", got[1])
	}
	if got[2].Title != "remote" {
		t.Errorf("Expected first remote record to win for ID 3, got %+v", got[2])
	}
}

func TestParseSortBy(t *testing.T) {
	tests := []struct {
		raw     string
		want    SortBy
		wantErr bool
	}{
		{"", SortRelevance, false},
		{"popularity", SortPopularity, false},
		{" Newest ", SortNewest, false},
		{"artist", SortArtist, false},
		{"shuffle", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseSortBy(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSortBy(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseSortBy(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestContainsFold(t *testing.T) {
	s := Song{Title: "Blue Monday", Artist: "New Order", Album: "Substance", Genre: "Synth"}

	if !s.ContainsFold("MONDAY") {
		t.Error("Expected title match")
	}
	if !s.ContainsFold("order") {
		t.Error("Expected artist match")
	}
	if s.ContainsFold("synth") {
		t.Error("Genre must not take part in substring search")
	}
}
