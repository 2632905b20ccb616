package history

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"music-search-api-go/logcolors"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

var (
	historyBucket = []byte("search_history")
	hotBucket     = []byte("hot_searches")
)

// BoltTracker keeps history in a dedicated bbolt file.
type BoltTracker struct {
	db     *bolt.DB
	dbPath string
}

func NewBoltTracker(dbPath string) (*BoltTracker, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{historyBucket, hotBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history buckets: %w", err)
	}

	log.Infof("%s History store initialized at %s", logcolors.LogHistory, dbPath)
	return &BoltTracker{db: db, dbPath: dbPath}, nil
}

func (bt *BoltTracker) Record(_ context.Context, term string) error {
	display := strings.TrimSpace(term)
	if display == "" {
		return nil
	}
	ts := now()

	return bt.db.Update(func(tx *bolt.Tx) error {
		stamp := make([]byte, 8)
		binary.BigEndian.PutUint64(stamp, uint64(ts.UnixNano()))
		if err := tx.Bucket(historyBucket).Put([]byte(display), stamp); err != nil {
			return err
		}

		hot := tx.Bucket(hotBucket)
		key := []byte(hotKey(display))
		entry := HotSearch{Term: hotKey(display)}
		if existing := hot.Get(key); existing != nil {
			if err := json.Unmarshal(existing, &entry); err != nil {
				return err
			}
		}
		entry.DisplayTerm = display
		entry.Count++
		entry.LastSearched = ts

		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		return hot.Put(key, data)
	})
}

func (bt *BoltTracker) Recent(_ context.Context, limit int) ([]Entry, error) {
	var entries []Entry
	err := bt.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(historyBucket).ForEach(func(k, v []byte) error {
			if len(v) != 8 {
				return nil
			}
			entries = append(entries, Entry{
				Term:      string(k),
				Timestamp: time.Unix(0, int64(binary.BigEndian.Uint64(v))),
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sortEntries(entries)
	return truncate(entries, limit), nil
}

func (bt *BoltTracker) Remove(_ context.Context, term string) error {
	return bt.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(historyBucket).Delete([]byte(strings.TrimSpace(term)))
	})
}

func (bt *BoltTracker) Clear(_ context.Context) error {
	return bt.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(historyBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(historyBucket)
		return err
	})
}

func (bt *BoltTracker) allHot() ([]HotSearch, error) {
	var hot []HotSearch
	err := bt.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(hotBucket).ForEach(func(_, v []byte) error {
			var h HotSearch
			if err := json.Unmarshal(v, &h); err != nil {
				log.Warnf("%s Skipping corrupt hot-search entry: %v", logcolors.LogHistory, err)
				return nil
			}
			hot = append(hot, h)
			return nil
		})
	})
	return hot, err
}

func (bt *BoltTracker) Top(_ context.Context, limit int) ([]HotSearch, error) {
	hot, err := bt.allHot()
	if err != nil {
		return nil, err
	}
	sortHot(hot)
	return truncate(hot, limit), nil
}

func (bt *BoltTracker) Trending(_ context.Context, limit int, window time.Duration) ([]HotSearch, error) {
	if window <= 0 {
		window = DefaultTrendingWindow
	}
	hot, err := bt.allHot()
	if err != nil {
		return nil, err
	}
	hot = filterSince(hot, now().Add(-window))
	sortHot(hot)
	return truncate(hot, limit), nil
}

func (bt *BoltTracker) Close() error {
	return bt.db.Close()
}
