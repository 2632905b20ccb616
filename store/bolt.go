package store

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"music-search-api-go/logcolors"
	"music-search-api-go/song"
	"music-search-api-go/utils"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

var (
	songsBucket  = []byte("songs")
	titleIndex   = []byte("idx_title")
	artistIndex  = []byte("idx_artist")
	albumIndex   = []byte("idx_album")
	addedAtIndex = []byte("idx_added_at")
	metaBucket   = []byte("meta")
	schemaKey    = []byte("schema_version")
	errNoBucket  = errors.New("bucket not found")
	dataBuckets  = [][]byte{songsBucket, titleIndex, artistIndex, albumIndex, addedAtIndex}
	textIndexes  = [][]byte{titleIndex, artistIndex, albumIndex}
)

// boltMigrations are applied in order; entry i upgrades schema version i to i+1.
// Migrations only ever add buckets or backfill them.
var boltMigrations = []func(tx *bolt.Tx) error{
	// v1: songs plus the text indexes
	func(tx *bolt.Tx) error {
		for _, name := range [][]byte{songsBucket, titleIndex, artistIndex, albumIndex} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	},
	// v2: addedAt index, backfilled from existing songs
	func(tx *bolt.Tx) error {
		idx, err := tx.CreateBucketIfNotExists(addedAtIndex)
		if err != nil {
			return err
		}
		return tx.Bucket(songsBucket).ForEach(func(k, v []byte) error {
			s, err := decodeSong(v)
			if err != nil {
				return nil
			}
			return idx.Put(addedAtKey(s), nil)
		})
	},
}

// BoltStore keeps songs in a bbolt file and mirrors them in memory for reads.
type BoltStore struct {
	mu                 sync.RWMutex
	writeMu            sync.Mutex // orders disk writes with their memCache updates
	db                 *bolt.DB
	memCache           sync.Map // int64 -> song.Song
	dbPath             string
	backupPath         string
	compressionEnabled bool
	closed             bool
}

// NewBoltStore opens (or creates) the store at dbPath, runs pending migrations
// and preloads every song into memory.
func NewBoltStore(dbPath string, backupPath string, compressionEnabled bool) (*BoltStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	if backupPath != "" {
		if err := os.MkdirAll(backupPath, 0755); err != nil {
			return nil, fmt.Errorf("failed to create backup directory: %w", err)
		}
	}

	if info, err := os.Stat(dbPath); err == nil {
		log.Infof("%s Found existing database file at: %s (size: %d bytes)", logcolors.LogStoreInit, dbPath, info.Size())
	} else {
		log.Infof("%s Creating new database file at: %s", logcolors.LogStoreInit, dbPath)
	}

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}

	if err := migrateBolt(db); err != nil {
		db.Close()
		return nil, &StorageError{Op: "migrate", Err: err}
	}

	bs := &BoltStore{
		db:                 db,
		dbPath:             dbPath,
		backupPath:         backupPath,
		compressionEnabled: compressionEnabled,
	}

	if err := bs.loadToMemory(); err != nil {
		log.Warnf("%s Failed to preload songs to memory: %v", logcolors.LogStore, err)
	}

	log.Infof("%s Bolt store initialized at %s (compression: %v)", logcolors.LogStore, dbPath, compressionEnabled)
	return bs, nil
}

func migrateBolt(db *bolt.DB) error {
	return db.Update(func(tx *bolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists(metaBucket)
		if err != nil {
			return err
		}
		var version uint64
		if v := meta.Get(schemaKey); len(v) == 8 {
			version = binary.BigEndian.Uint64(v)
		}
		for i := int(version); i < len(boltMigrations); i++ {
			if err := boltMigrations[i](tx); err != nil {
				return fmt.Errorf("migration to v%d: %w", i+1, err)
			}
			log.Infof("%s Applied schema migration v%d", logcolors.LogStoreMigrate, i+1)
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(len(boltMigrations)))
		return meta.Put(schemaKey, buf)
	})
}

// SchemaVersion returns the schema version recorded in the meta bucket.
func (bs *BoltStore) SchemaVersion() (int, error) {
	bs.mu.RLock()
	defer bs.mu.RUnlock()

	var version int
	err := bs.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(metaBucket)
		if meta == nil {
			return errNoBucket
		}
		if v := meta.Get(schemaKey); len(v) == 8 {
			version = int(binary.BigEndian.Uint64(v))
		}
		return nil
	})
	return version, storageErr("schemaVersion", err)
}

func (bs *BoltStore) loadToMemory() error {
	count := 0
	err := bs.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(songsBucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			s, err := decodeSong(v)
			if err != nil {
				log.Warnf("%s Failed to decode song %d: %v", logcolors.LogStore, idFromKey(k), err)
				return nil
			}
			bs.memCache.Store(s.ID, s)
			count++
			return nil
		})
	})
	if err != nil {
		return err
	}

	log.Infof("%s Loaded %d songs from disk to memory", logcolors.LogStore, count)
	return nil
}

func (bs *BoltStore) Put(s song.Song) error {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	return bs.put(s)
}

func (bs *BoltStore) put(s song.Song) error {
	s.AddedAt = now()
	s.RelevanceScore = 0

	data, err := bs.encode(s)
	if err != nil {
		return &StorageError{Op: "put", Err: err}
	}

	bs.writeMu.Lock()
	defer bs.writeMu.Unlock()

	err = bs.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(songsBucket)
		if b == nil {
			return errNoBucket
		}
		key := idKey(s.ID)
		if old := b.Get(key); old != nil {
			if prev, err := decodeSong(old); err == nil {
				if err := deleteIndexes(tx, prev); err != nil {
					return err
				}
			}
		}
		if err := b.Put(key, data); err != nil {
			return err
		}
		return putIndexes(tx, s)
	})
	if err != nil {
		return &StorageError{Op: "put", Err: err}
	}

	bs.memCache.Store(s.ID, s)
	return nil
}

func (bs *BoltStore) PutMany(songs []song.Song) error {
	bs.mu.RLock()
	defer bs.mu.RUnlock()

	var errs []error
	for _, s := range songs {
		if err := bs.put(s); err != nil {
			errs = append(errs, fmt.Errorf("song %d: %w", s.ID, err))
		}
	}
	return errors.Join(errs...)
}

func (bs *BoltStore) Get(id int64) (song.Song, error) {
	if err := bs.checkOpen("get"); err != nil {
		return song.Song{}, err
	}
	if v, ok := bs.memCache.Load(id); ok {
		return v.(song.Song), nil
	}

	bs.mu.RLock()
	defer bs.mu.RUnlock()
	bs.writeMu.Lock()
	defer bs.writeMu.Unlock()

	var s song.Song
	found := false
	err := bs.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(songsBucket)
		if b == nil {
			return errNoBucket
		}
		data := b.Get(idKey(id))
		if data == nil {
			return nil
		}
		var err error
		s, err = decodeSong(data)
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return song.Song{}, &StorageError{Op: "get", Err: err}
	}
	if !found {
		return song.Song{}, ErrNotFound
	}

	bs.memCache.Store(id, s)
	return s, nil
}

func (bs *BoltStore) GetAll() ([]song.Song, error) {
	if err := bs.checkOpen("getAll"); err != nil {
		return nil, err
	}

	var songs []song.Song
	bs.memCache.Range(func(_, v any) bool {
		songs = append(songs, v.(song.Song))
		return true
	})
	sortByID(songs)
	return songs, nil
}

func (bs *BoltStore) Search(query string) ([]song.Song, error) {
	all, err := bs.GetAll()
	if err != nil {
		return nil, err
	}
	return matchSubstring(all, query), nil
}

func (bs *BoltStore) SearchScored(query string) ([]song.Song, error) {
	all, err := bs.GetAll()
	if err != nil {
		return nil, err
	}
	return matchScored(all, query), nil
}

func (bs *BoltStore) FuzzySearch(query string, threshold float64) ([]song.Song, error) {
	all, err := bs.GetAll()
	if err != nil {
		return nil, err
	}
	return matchFuzzy(all, query, threshold), nil
}

// PrefixValues seeks each text index to prefix and walks forward while keys match.
func (bs *BoltStore) PrefixValues(prefix string, limit int) ([]string, error) {
	bs.mu.RLock()
	defer bs.mu.RUnlock()

	p := []byte(strings.ToLower(prefix))
	var out []string
	seen := make(map[string]struct{})

	err := bs.db.View(func(tx *bolt.Tx) error {
		for _, name := range textIndexes {
			idx := tx.Bucket(name)
			if idx == nil {
				return errNoBucket
			}
			var values []string
			c := idx.Cursor()
			for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
				values = append(values, string(v))
			}
			out = collectPrefix(out, seen, values, limit)
		}
		return nil
	})
	if err != nil {
		return nil, &StorageError{Op: "prefixValues", Err: err}
	}
	return out, nil
}

// RecentlyAdded walks the addedAt index backwards.
func (bs *BoltStore) RecentlyAdded(limit int) ([]song.Song, error) {
	bs.mu.RLock()
	defer bs.mu.RUnlock()

	var ids []int64
	err := bs.db.View(func(tx *bolt.Tx) error {
		idx := tx.Bucket(addedAtIndex)
		if idx == nil {
			return errNoBucket
		}
		c := idx.Cursor()
		for k, _ := c.Last(); k != nil && (limit <= 0 || len(ids) < limit); k, _ = c.Prev() {
			if len(k) == 16 {
				ids = append(ids, idFromKey(k[8:]))
			}
		}
		return nil
	})
	if err != nil {
		return nil, &StorageError{Op: "recentlyAdded", Err: err}
	}

	songs := make([]song.Song, 0, len(ids))
	for _, id := range ids {
		if v, ok := bs.memCache.Load(id); ok {
			songs = append(songs, v.(song.Song))
		}
	}
	return songs, nil
}

func (bs *BoltStore) Delete(id int64) error {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	bs.writeMu.Lock()
	defer bs.writeMu.Unlock()

	err := bs.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(songsBucket)
		if b == nil {
			return errNoBucket
		}
		key := idKey(id)
		if old := b.Get(key); old != nil {
			if prev, err := decodeSong(old); err == nil {
				if err := deleteIndexes(tx, prev); err != nil {
					return err
				}
			}
		}
		return b.Delete(key)
	})
	if err != nil {
		return &StorageError{Op: "delete", Err: err}
	}
	bs.memCache.Delete(id)
	return nil
}

// Clear drops every song and index entry; the schema version is kept.
func (bs *BoltStore) Clear() error {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	return bs.clear()
}

func (bs *BoltStore) clear() error {
	bs.writeMu.Lock()
	defer bs.writeMu.Unlock()

	err := bs.db.Update(func(tx *bolt.Tx) error {
		for _, name := range dataBuckets {
			if err := tx.DeleteBucket(name); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &StorageError{Op: "clear", Err: err}
	}

	bs.memCache.Range(func(k, _ any) bool {
		bs.memCache.Delete(k)
		return true
	})
	return nil
}

func (bs *BoltStore) Count() (int, error) {
	if err := bs.checkOpen("count"); err != nil {
		return 0, err
	}
	n := 0
	bs.memCache.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n, nil
}

// Backup copies the database file into the backup directory and returns its path.
func (bs *BoltStore) Backup() (string, error) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	return bs.backup()
}

func (bs *BoltStore) backup() (string, error) {
	if bs.backupPath == "" {
		return "", fmt.Errorf("no backup directory configured")
	}
	backupFilePath := filepath.Join(bs.backupPath, backupFileName(".db"))
	log.Infof("%s Creating backup at: %s", logcolors.LogStoreBackup, backupFilePath)

	// bbolt can stream a consistent snapshot from a read transaction
	err := bs.db.View(func(tx *bolt.Tx) error {
		return copyTx(tx, backupFilePath)
	})
	if err != nil {
		return "", &StorageError{Op: "backup", Err: err}
	}

	log.Infof("%s Backup created successfully: %s", logcolors.LogStoreBackup, backupFilePath)
	return backupFilePath, nil
}

// BackupAndClear creates a backup and then clears the store.
func (bs *BoltStore) BackupAndClear() (string, error) {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	backupPath, err := bs.backup()
	if err != nil {
		return "", fmt.Errorf("failed to create backup: %w", err)
	}
	if err := bs.clear(); err != nil {
		return backupPath, fmt.Errorf("backup created but failed to clear store: %w", err)
	}

	log.Infof("%s Store cleared successfully (backup: %s)", logcolors.LogStoreClear, backupPath)
	return backupPath, nil
}

func (bs *BoltStore) Close() error {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	if bs.db == nil || bs.closed {
		return nil
	}
	bs.closed = true
	return bs.db.Close()
}

func (bs *BoltStore) checkOpen(op string) error {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	if bs.db == nil || bs.closed {
		return &StorageError{Op: op, Err: bolt.ErrDatabaseNotOpen}
	}
	return nil
}

func (bs *BoltStore) encode(s song.Song) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	if bs.compressionEnabled {
		return utils.CompressBytes(data)
	}
	return data, nil
}

// decodeSong accepts both plain and compressed payloads so toggling
// FF_STORE_COMPRESSION never strands existing records.
func decodeSong(data []byte) (song.Song, error) {
	raw, err := utils.MaybeDecompress(data)
	if err != nil {
		return song.Song{}, err
	}
	var s song.Song
	err = json.Unmarshal(raw, &s)
	return s, err
}

func idKey(id int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}

func idFromKey(k []byte) int64 {
	if len(k) < 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(k[len(k)-8:]))
}

// textIndexKey is lower(value) + 0x00 + id, so a cursor seek on a lowercase
// prefix visits every record whose value starts with it.
func textIndexKey(value string, id int64) []byte {
	k := append([]byte(strings.ToLower(value)), 0)
	return append(k, idKey(id)...)
}

func addedAtKey(s song.Song) []byte {
	k := make([]byte, 8, 16)
	var ts uint64
	if !s.AddedAt.IsZero() {
		ts = uint64(s.AddedAt.UnixNano())
	}
	binary.BigEndian.PutUint64(k, ts)
	return append(k, idKey(s.ID)...)
}

type indexedValue struct {
	bucket []byte
	value  string
}

func indexedValues(s song.Song) []indexedValue {
	return []indexedValue{
		{titleIndex, s.Title},
		{artistIndex, s.Artist},
		{albumIndex, s.Album},
	}
}

func putIndexes(tx *bolt.Tx, s song.Song) error {
	for _, iv := range indexedValues(s) {
		if iv.value == "" {
			continue
		}
		idx := tx.Bucket(iv.bucket)
		if idx == nil {
			return errNoBucket
		}
		if err := idx.Put(textIndexKey(iv.value, s.ID), []byte(iv.value)); err != nil {
			return err
		}
	}
	idx := tx.Bucket(addedAtIndex)
	if idx == nil {
		return errNoBucket
	}
	return idx.Put(addedAtKey(s), nil)
}

func deleteIndexes(tx *bolt.Tx, s song.Song) error {
	for _, iv := range indexedValues(s) {
		idx := tx.Bucket(iv.bucket)
		if idx == nil {
			return errNoBucket
		}
		if err := idx.Delete(textIndexKey(iv.value, s.ID)); err != nil {
			return err
		}
	}
	idx := tx.Bucket(addedAtIndex)
	if idx == nil {
		return errNoBucket
	}
	return idx.Delete(addedAtKey(s))
}

func copyTx(tx *bolt.Tx, dst string) error {
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := tx.WriteTo(f); err != nil {
		return err
	}
	return f.Sync()
}
