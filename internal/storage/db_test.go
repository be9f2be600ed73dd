package storage

import (
	"path/filepath"
	"testing"
	"time"

	"pimphoto/internal"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestImageCacheRoundTrip(t *testing.T) {
	db := openTestDB(t)

	url := "https://assets.test/a.jpg"
	if err := db.PutImage(url, []byte("jpegdata")); err != nil {
		t.Fatal(err)
	}

	body, err := db.CachedImage(url, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "jpegdata" {
		t.Fatalf("body=%q", body)
	}

	stale, err := db.CachedImage(url, -time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if stale != nil {
		t.Fatal("entry past the freshness window must not be served")
	}

	missing, err := db.CachedImage("https://assets.test/other.jpg", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Fatal("unknown url must return nil")
	}
}

func TestPruneCache(t *testing.T) {
	db := openTestDB(t)

	if err := db.PutImage("https://assets.test/a.jpg", []byte("x")); err != nil {
		t.Fatal(err)
	}
	removed, err := db.PruneCache(-time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Fatalf("removed=%d want 1", removed)
	}

	body, err := db.CachedImage("https://assets.test/a.jpg", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		t.Fatal("pruned entry still served")
	}
}

func TestInsertRun(t *testing.T) {
	db := openTestDB(t)
	counts := internal.RunCounts{Products: 3, Candidates: 6, Accepted: 2, Duplicates: 1, Missing: 4}
	if err := db.InsertRun("abc123", "nl", counts); err != nil {
		t.Fatal(err)
	}
}
