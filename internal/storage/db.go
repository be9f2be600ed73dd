package storage

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"pimphoto/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS image_cache (
  url TEXT PRIMARY KEY,
  body BLOB NOT NULL,
  fetchedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  tag TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

// CachedImage returns the cached body for url when it is younger than maxAge.
// A stale or absent entry returns nil.
func (d *DB) CachedImage(url string, maxAge time.Duration) ([]byte, error) {
	row := d.conn.QueryRow(`SELECT body, fetchedAt FROM image_cache WHERE url = ?`, url)

	var body []byte
	var fetchedAt string
	if err := row.Scan(&body, &fetchedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	at, err := time.Parse(time.RFC3339, fetchedAt)
	if err != nil {
		// CURRENT_TIMESTAMP default, in case the row predates PutImage.
		at, err = time.Parse("2006-01-02 15:04:05", fetchedAt)
		if err != nil {
			return nil, nil
		}
	}
	if time.Since(at) > maxAge {
		return nil, nil
	}
	return body, nil
}

func (d *DB) PutImage(url string, body []byte) error {
	_, err := d.conn.Exec(`
INSERT INTO image_cache (url, body, fetchedAt) VALUES (?, ?, ?)
ON CONFLICT(url) DO UPDATE SET body=excluded.body, fetchedAt=excluded.fetchedAt
`, url, body, time.Now().UTC().Format(time.RFC3339))
	return err
}

// PruneCache drops cache entries older than maxAge and returns how many were
// removed.
func (d *DB) PruneCache(maxAge time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-maxAge).Format(time.RFC3339)
	res, err := d.conn.Exec(`DELETE FROM image_cache WHERE fetchedAt < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (d *DB) InsertRun(traceID, tag string, counts internal.RunCounts) error {
	blob, err := json.Marshal(counts)
	if err != nil {
		return err
	}
	_, err = d.conn.Exec(`INSERT INTO runs (traceId, tag, countsJson) VALUES (?, ?, ?)`, traceID, tag, string(blob))
	return err
}
