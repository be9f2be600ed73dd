package fetch

import (
	"context"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"pimphoto/internal/config"
	"pimphoto/internal/storage"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func testConfig() config.Config {
	cfg, _ := config.Load()
	cfg.MedipimRateLimitRPS = 1000
	cfg.FetchConcurrency = 4
	return cfg
}

func TestFetchAllFailuresAreNil(t *testing.T) {
	f := New(testConfig(), nil)
	f.httpClient = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			switch r.URL.Path {
			case "/ok.jpg":
				return &http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader("jpegdata")), Header: make(http.Header)}, nil
			case "/empty.jpg":
				return &http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader("")), Header: make(http.Header)}, nil
			default:
				return &http.Response{StatusCode: 500, Body: io.NopCloser(strings.NewReader("boom")), Header: make(http.Header)}, nil
			}
		}),
	}

	urls := []string{"https://assets.test/ok.jpg", "https://assets.test/empty.jpg", "https://assets.test/broken.jpg"}
	results := f.FetchAll(context.Background(), urls, nil)

	if string(results["https://assets.test/ok.jpg"]) != "jpegdata" {
		t.Fatalf("ok body missing: %v", results)
	}
	if results["https://assets.test/empty.jpg"] != nil {
		t.Fatal("empty body should map to nil")
	}
	if results["https://assets.test/broken.jpg"] != nil {
		t.Fatal("500 should map to nil")
	}
}

func TestFetchAllUsesCache(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	var hits int64
	f := New(testConfig(), db)
	f.httpClient = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			atomic.AddInt64(&hits, 1)
			return &http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader("jpegdata")), Header: make(http.Header)}, nil
		}),
	}

	url := "https://assets.test/cached.jpg"
	first := f.FetchAll(context.Background(), []string{url}, nil)
	second := f.FetchAll(context.Background(), []string{url}, nil)

	if string(first[url]) != "jpegdata" || string(second[url]) != "jpegdata" {
		t.Fatalf("unexpected bodies: %v %v", first, second)
	}
	if atomic.LoadInt64(&hits) != 1 {
		t.Fatalf("expected single network hit, got %d", hits)
	}
}

func TestFetchAllCanceledContext(t *testing.T) {
	var hits int64
	f := New(testConfig(), nil)
	f.httpClient = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			atomic.AddInt64(&hits, 1)
			return &http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader("x")), Header: make(http.Header)}, nil
		}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	urls := []string{"https://a.test/1", "https://a.test/2", "https://a.test/3"}
	results := f.FetchAll(ctx, urls, nil)

	if atomic.LoadInt64(&hits) != 0 {
		t.Fatalf("transport hits=%d want 0 after cancel", hits)
	}
	for _, url := range urls {
		if results[url] != nil {
			t.Fatalf("canceled fetch should map %s to nil", url)
		}
	}
}

func TestFetchAllReportsProgress(t *testing.T) {
	f := New(testConfig(), nil)
	f.httpClient = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return &http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader("x")), Header: make(http.Header)}, nil
		}),
	}

	var calls int64
	urls := []string{"https://a.test/1", "https://a.test/2", "https://a.test/3"}
	f.FetchAll(context.Background(), urls, func(done, total int) {
		atomic.AddInt64(&calls, 1)
		if total != len(urls) {
			t.Errorf("total=%d want %d", total, len(urls))
		}
	})
	if atomic.LoadInt64(&calls) != int64(len(urls)) {
		t.Fatalf("progress calls=%d want %d", calls, len(urls))
	}
}
