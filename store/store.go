// Package store is the Record Store: a persistent keyed collection of songs
// with secondary lookup paths by title, artist, album and insertion time.
//
// Two backends implement Store. BoltStore keeps songs in a bbolt file with an
// in-memory mirror; SQLiteStore keeps them in a SQLite table. Neither retries
// on I/O failure: every such failure surfaces as a *StorageError and the
// caller decides what to fall back to.
package store

import (
	"errors"
	"fmt"
	"time"

	"music-search-api-go/song"
)

// ErrNotFound is returned by Get when no record has the requested ID.
var ErrNotFound = errors.New("song not found")

// StorageError wraps an I/O failure of the underlying storage medium.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// Store is the Record Store contract shared by every backend.
type Store interface {
	// Put upserts s by ID and stamps AddedAt. Re-putting the same ID overwrites.
	Put(s song.Song) error
	// PutMany upserts each record independently; one failure does not abort the rest.
	// The returned error joins every per-record failure.
	PutMany(songs []song.Song) error
	Get(id int64) (song.Song, error)
	// GetAll returns every record ordered by ID.
	GetAll() ([]song.Song, error)
	// Search is a case-insensitive substring match over title, artist and album.
	Search(query string) ([]song.Song, error)
	// SearchScored returns records with a positive local score, best first.
	SearchScored(query string) ([]song.Song, error)
	// FuzzySearch returns records whose title or artist similarity to query is at least threshold.
	FuzzySearch(query string, threshold float64) ([]song.Song, error)
	// PrefixValues returns distinct title, artist and album values starting with prefix.
	PrefixValues(prefix string, limit int) ([]string, error)
	// RecentlyAdded returns up to limit records, newest AddedAt first.
	RecentlyAdded(limit int) ([]song.Song, error)
	Delete(id int64) error
	Clear() error
	Count() (int, error)
	Close() error
}

// Maintainer is implemented by stores that can snapshot themselves to disk.
type Maintainer interface {
	Backup() (string, error)
	BackupAndClear() (string, error)
}

// now is the clock used to stamp AddedAt.
var now = time.Now

func backupFileName(ext string) string {
	return fmt.Sprintf("songs_backup_%s%s", now().Format("2006-01-02_15-04-05.000000000"), ext)
}
