package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"music-search-api-go/logcolors"
	"music-search-api-go/song"

	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// sqliteMigrations are applied in order; entry i upgrades schema version i to i+1.
var sqliteMigrations = []string{
	// v1: songs with the lookup indexes
	`
	CREATE TABLE IF NOT EXISTS songs (
		id INTEGER PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		title_lower TEXT NOT NULL DEFAULT '',
		artist TEXT NOT NULL DEFAULT '',
		artist_lower TEXT NOT NULL DEFAULT '',
		album TEXT NOT NULL DEFAULT '',
		album_lower TEXT NOT NULL DEFAULT '',
		genre TEXT NOT NULL DEFAULT '',
		year INTEGER NOT NULL DEFAULT 0,
		duration REAL NOT NULL DEFAULT 0,
		url TEXT NOT NULL DEFAULT '',
		preview_url TEXT NOT NULL DEFAULT '',
		cover TEXT NOT NULL DEFAULT '',
		cover_small TEXT NOT NULL DEFAULT '',
		cover_large TEXT NOT NULL DEFAULT '',
		artist_id INTEGER NOT NULL DEFAULT 0,
		album_id INTEGER NOT NULL DEFAULT 0,
		track_number INTEGER NOT NULL DEFAULT 0,
		explicit INTEGER NOT NULL DEFAULT 0,
		country TEXT NOT NULL DEFAULT '',
		release_date DATETIME,
		play_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_songs_title ON songs(title_lower);
	CREATE INDEX IF NOT EXISTS idx_songs_artist ON songs(artist_lower);
	CREATE INDEX IF NOT EXISTS idx_songs_album ON songs(album_lower);
	`,
	// v2: addedAt column and index
	`
	ALTER TABLE songs ADD COLUMN added_at DATETIME;
	CREATE INDEX IF NOT EXISTS idx_songs_added_at ON songs(added_at DESC);
	`,
}

const songColumns = `id, title, artist, album, genre, year, duration, url, preview_url,
	cover, cover_small, cover_large, artist_id, album_id, track_number, explicit,
	country, release_date, play_count, added_at`

// SQLiteStore keeps songs in a SQLite database through the pure-Go modernc driver.
type SQLiteStore struct {
	db         *sql.DB
	dbPath     string
	backupPath string
}

// NewSQLiteStore opens the database at dbPath (":memory:" is accepted) and migrates it.
func NewSQLiteStore(dbPath string, backupPath string) (*SQLiteStore, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		connStr = "file::memory:?cache=shared"
	} else if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	if backupPath != "" {
		if err := os.MkdirAll(backupPath, 0755); err != nil {
			return nil, fmt.Errorf("failed to create backup directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}
	// One writer keeps SQLITE_BUSY away and lets :memory: share a single database.
	db.SetMaxOpenConns(1)

	ss := &SQLiteStore{db: db, dbPath: dbPath, backupPath: backupPath}
	if err := ss.migrate(); err != nil {
		db.Close()
		return nil, &StorageError{Op: "migrate", Err: err}
	}

	log.Infof("%s SQLite store initialized at %s", logcolors.LogStore, dbPath)
	return ss, nil
}

func (ss *SQLiteStore) migrate() error {
	if _, err := ss.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return err
	}

	var version int
	err := ss.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := ss.db.Exec(`INSERT INTO schema_version (version) VALUES (0)`); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	for i := version; i < len(sqliteMigrations); i++ {
		tx, err := ss.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(sqliteMigrations[i]); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration to v%d: %w", i+1, err)
		}
		if _, err := tx.Exec(`UPDATE schema_version SET version = ?`, i+1); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		log.Infof("%s Applied schema migration v%d", logcolors.LogStoreMigrate, i+1)
	}
	return nil
}

// SchemaVersion returns the applied migration count.
func (ss *SQLiteStore) SchemaVersion() (int, error) {
	var version int
	err := ss.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	return version, storageErr("schemaVersion", err)
}

func (ss *SQLiteStore) Put(s song.Song) error {
	return storageErr("put", ss.upsert(ss.db, s))
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func (ss *SQLiteStore) upsert(db execer, s song.Song) error {
	var release any
	if !s.ReleaseDate.IsZero() {
		release = s.ReleaseDate.UTC()
	}
	_, err := db.Exec(`
		INSERT INTO songs (`+songColumns+`, title_lower, artist_lower, album_lower)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			artist = excluded.artist,
			album = excluded.album,
			genre = excluded.genre,
			year = excluded.year,
			duration = excluded.duration,
			url = excluded.url,
			preview_url = excluded.preview_url,
			cover = excluded.cover,
			cover_small = excluded.cover_small,
			cover_large = excluded.cover_large,
			artist_id = excluded.artist_id,
			album_id = excluded.album_id,
			track_number = excluded.track_number,
			explicit = excluded.explicit,
			country = excluded.country,
			release_date = excluded.release_date,
			play_count = excluded.play_count,
			added_at = excluded.added_at,
			title_lower = excluded.title_lower,
			artist_lower = excluded.artist_lower,
			album_lower = excluded.album_lower
	`,
		s.ID, s.Title, s.Artist, s.Album, s.Genre, s.Year, s.DurationSeconds, s.URL, s.PreviewURL,
		s.Cover, s.CoverSmall, s.CoverLarge, s.ArtistID, s.AlbumID, s.TrackNumber, s.Explicit,
		s.Country, release, s.PlayCount, now().UTC(),
		strings.ToLower(s.Title), strings.ToLower(s.Artist), strings.ToLower(s.Album),
	)
	return err
}

// PutMany runs every upsert in one transaction under a savepoint each, so a
// failing record is rolled back alone.
func (ss *SQLiteStore) PutMany(songs []song.Song) error {
	tx, err := ss.db.Begin()
	if err != nil {
		return &StorageError{Op: "putMany", Err: err}
	}
	defer tx.Rollback()

	var errs []error
	for _, s := range songs {
		if _, err := tx.Exec(`SAVEPOINT song`); err != nil {
			return &StorageError{Op: "putMany", Err: err}
		}
		if err := ss.upsert(tx, s); err != nil {
			errs = append(errs, fmt.Errorf("song %d: %w", s.ID, &StorageError{Op: "put", Err: err}))
			if _, err := tx.Exec(`ROLLBACK TO song`); err != nil {
				return &StorageError{Op: "putMany", Err: err}
			}
		}
		if _, err := tx.Exec(`RELEASE song`); err != nil {
			return &StorageError{Op: "putMany", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &StorageError{Op: "putMany", Err: err}
	}
	return errors.Join(errs...)
}

func (ss *SQLiteStore) Get(id int64) (song.Song, error) {
	row := ss.db.QueryRow(`SELECT `+songColumns+` FROM songs WHERE id = ?`, id)
	s, err := scanSong(row)
	if errors.Is(err, sql.ErrNoRows) {
		return song.Song{}, ErrNotFound
	}
	if err != nil {
		return song.Song{}, &StorageError{Op: "get", Err: err}
	}
	return s, nil
}

func (ss *SQLiteStore) GetAll() ([]song.Song, error) {
	songs, err := ss.query(`SELECT ` + songColumns + ` FROM songs ORDER BY id`)
	return songs, storageErr("getAll", err)
}

// Search pushes the substring match down to SQL over the lowercased columns.
func (ss *SQLiteStore) Search(query string) ([]song.Song, error) {
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	songs, err := ss.query(`
		SELECT `+songColumns+` FROM songs
		WHERE title_lower LIKE ? ESCAPE '\' OR artist_lower LIKE ? ESCAPE '\' OR album_lower LIKE ? ESCAPE '\'
		ORDER BY id`, pattern, pattern, pattern)
	return songs, storageErr("search", err)
}

func (ss *SQLiteStore) SearchScored(query string) ([]song.Song, error) {
	all, err := ss.GetAll()
	if err != nil {
		return nil, err
	}
	return matchScored(all, query), nil
}

func (ss *SQLiteStore) FuzzySearch(query string, threshold float64) ([]song.Song, error) {
	all, err := ss.GetAll()
	if err != nil {
		return nil, err
	}
	return matchFuzzy(all, query, threshold), nil
}

func (ss *SQLiteStore) PrefixValues(prefix string, limit int) ([]string, error) {
	pattern := escapeLike(strings.ToLower(prefix)) + "%"
	var out []string
	seen := make(map[string]struct{})

	for _, col := range [][2]string{{"title", "title_lower"}, {"artist", "artist_lower"}, {"album", "album_lower"}} {
		rows, err := ss.db.Query(`SELECT DISTINCT `+col[0]+` FROM songs WHERE `+col[1]+` LIKE ? ESCAPE '\' AND `+col[0]+` != '' ORDER BY `+col[1], pattern)
		if err != nil {
			return nil, &StorageError{Op: "prefixValues", Err: err}
		}
		var values []string
		for rows.Next() {
			var v string
			if err := rows.Scan(&v); err != nil {
				rows.Close()
				return nil, &StorageError{Op: "prefixValues", Err: err}
			}
			values = append(values, v)
		}
		rows.Close()
		out = collectPrefix(out, seen, values, limit)
	}
	return out, nil
}

func (ss *SQLiteStore) RecentlyAdded(limit int) ([]song.Song, error) {
	if limit <= 0 {
		limit = -1
	}
	songs, err := ss.query(`SELECT `+songColumns+` FROM songs ORDER BY added_at DESC, id DESC LIMIT ?`, limit)
	return songs, storageErr("recentlyAdded", err)
}

func (ss *SQLiteStore) Delete(id int64) error {
	_, err := ss.db.Exec(`DELETE FROM songs WHERE id = ?`, id)
	return storageErr("delete", err)
}

func (ss *SQLiteStore) Clear() error {
	_, err := ss.db.Exec(`DELETE FROM songs`)
	return storageErr("clear", err)
}

func (ss *SQLiteStore) Count() (int, error) {
	var n int
	err := ss.db.QueryRow(`SELECT COUNT(*) FROM songs`).Scan(&n)
	return n, storageErr("count", err)
}

// Backup writes a consistent copy of the database with VACUUM INTO.
func (ss *SQLiteStore) Backup() (string, error) {
	if ss.backupPath == "" {
		return "", fmt.Errorf("no backup directory configured")
	}
	dst := filepath.Join(ss.backupPath, backupFileName(".sqlite"))
	log.Infof("%s Creating backup at: %s", logcolors.LogStoreBackup, dst)
	if _, err := ss.db.Exec(`VACUUM INTO ?`, dst); err != nil {
		return "", &StorageError{Op: "backup", Err: err}
	}
	return dst, nil
}

func (ss *SQLiteStore) BackupAndClear() (string, error) {
	backupPath, err := ss.Backup()
	if err != nil {
		return "", fmt.Errorf("failed to create backup: %w", err)
	}
	if err := ss.Clear(); err != nil {
		return backupPath, fmt.Errorf("backup created but failed to clear store: %w", err)
	}
	log.Infof("%s Store cleared successfully (backup: %s)", logcolors.LogStoreClear, backupPath)
	return backupPath, nil
}

func (ss *SQLiteStore) Close() error {
	return ss.db.Close()
}

func (ss *SQLiteStore) query(q string, args ...any) ([]song.Song, error) {
	rows, err := ss.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var songs []song.Song
	for rows.Next() {
		s, err := scanSong(rows)
		if err != nil {
			return nil, err
		}
		songs = append(songs, s)
	}
	return songs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSong(row scanner) (song.Song, error) {
	var (
		s       song.Song
		release sql.NullTime
		addedAt sql.NullTime
	)
	err := row.Scan(
		&s.ID, &s.Title, &s.Artist, &s.Album, &s.Genre, &s.Year, &s.DurationSeconds, &s.URL, &s.PreviewURL,
		&s.Cover, &s.CoverSmall, &s.CoverLarge, &s.ArtistID, &s.AlbumID, &s.TrackNumber, &s.Explicit,
		&s.Country, &release, &s.PlayCount, &addedAt,
	)
	if err != nil {
		return song.Song{}, err
	}
	if release.Valid {
		s.ReleaseDate = release.Time.In(time.UTC)
	}
	if addedAt.Valid {
		s.AddedAt = addedAt.Time
	}
	return s, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
