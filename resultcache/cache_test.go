package resultcache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"music-search-api-go/song"
)

func TestSetAndGet(t *testing.T) {
	c := New(10, time.Minute)
	c.Set("a", 1)

	v, ok := c.Get("a")
	if !ok || v.(int) != 1 {
		t.Errorf("Get() = %v, %v; want 1, true", v, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("Expected miss for unknown key")
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.HitRate != 0.5 {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

func TestTTLExpiry(t *testing.T) {
	ttl := 200 * time.Millisecond
	c := New(10, ttl)
	c.Set("k", "v")

	time.Sleep(ttl / 4)
	if v, ok := c.Get("k"); !ok || v != "v" {
		t.Fatalf("Expected entry before TTL, got %v, %v", v, ok)
	}

	time.Sleep(ttl)
	if _, ok := c.Get("k"); ok {
		t.Error("Expected entry to be absent after TTL")
	}
	for _, k := range c.Keys() {
		if k == "k" {
			t.Error("Expected expired entry to be removed")
		}
	}
}

func TestCapacityEvictsOldestInserted(t *testing.T) {
	c := New(50, time.Minute)
	for i := 0; i < 50; i++ {
		c.Set(fmt.Sprintf("key-%d", i), i)
	}

	// reading the oldest entry must not protect it from eviction
	if _, ok := c.Get("key-0"); !ok {
		t.Fatal("Expected key-0 before eviction")
	}

	c.Set("key-50", 50)

	if c.Len() != 50 {
		t.Errorf("Expected size 50, got %d", c.Len())
	}
	if _, ok := c.Get("key-0"); ok {
		t.Error("Expected oldest-inserted key-0 to be evicted")
	}
	for i := 1; i <= 50; i++ {
		if _, ok := c.Get(fmt.Sprintf("key-%d", i)); !ok {
			t.Errorf("Expected key-%d to survive", i)
		}
	}
}

func TestSizeNeverExceedsCapacity(t *testing.T) {
	c := New(5, time.Minute)
	for i := 0; i < 100; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
		if c.Len() > 5 {
			t.Fatalf("Cache grew to %d", c.Len())
		}
	}
}

func TestClear(t *testing.T) {
	c := New(5, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Clear()

	if c.Len() != 0 {
		t.Errorf("Expected empty cache, got %d", c.Len())
	}
}

func TestLookupTyped(t *testing.T) {
	c := New(5, time.Minute)
	c.Set("songs", []song.Song{{ID: 1}})
	c.Set("words", []string{"a"})

	songs, ok := Lookup[[]song.Song](c, "songs")
	if !ok || len(songs) != 1 {
		t.Errorf("Lookup() = %v, %v", songs, ok)
	}
	if _, ok := Lookup[[]song.Song](c, "words"); ok {
		t.Error("Expected type mismatch to be a miss")
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New(20, time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				key := fmt.Sprintf("k%d", (i*j)%30)
				c.Set(key, j)
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()

	if c.Len() > 20 {
		t.Errorf("Cache exceeded capacity: %d", c.Len())
	}
}

func TestKeys(t *testing.T) {
	explicitOff := false

	tests := []struct {
		name string
		a, b string
		same bool
	}{
		{
			"query case and whitespace normalised",
			SearchKey("Test ", 1, 20, song.SortRelevance, song.Filters{}),
			SearchKey("test", 1, 20, song.SortRelevance, song.Filters{}),
			true,
		},
		{
			"page differs",
			SearchKey("test", 1, 20, song.SortRelevance, song.Filters{}),
			SearchKey("test", 2, 20, song.SortRelevance, song.Filters{}),
			false,
		},
		{
			"sort differs",
			SearchKey("test", 1, 20, song.SortRelevance, song.Filters{}),
			SearchKey("test", 1, 20, song.SortTitle, song.Filters{}),
			false,
		},
		{
			"filters differ",
			SearchKey("test", 1, 20, song.SortRelevance, song.Filters{}),
			SearchKey("test", 1, 20, song.SortRelevance, song.Filters{Explicit: &explicitOff}),
			false,
		},
		{
			"autocomplete vs suggestions",
			AutocompleteKey("test", 5),
			SuggestionsKey("test", 5),
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if (tt.a == tt.b) != tt.same {
				t.Errorf("keys %q and %q: same=%v, want %v", tt.a, tt.b, tt.a == tt.b, tt.same)
			}
		})
	}
}
