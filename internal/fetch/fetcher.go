package fetch

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"pimphoto/internal/config"
	"pimphoto/internal/storage"
)

// Fetcher downloads image bodies with a bounded worker pool. A failed URL
// maps to nil; fetch failures are never errors, the pipeline records them
// per candidate. When a storage DB is supplied, bodies are served from a
// time-bounded cache so repeated runs against the same export skip the
// network.
type Fetcher struct {
	httpClient  *http.Client
	limiter     *RateLimiter
	db          *storage.DB
	concurrency int
	cacheTTL    time.Duration
}

func New(cfg config.Config, db *storage.DB) *Fetcher {
	concurrency := cfg.FetchConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Fetcher{
		httpClient:  &http.Client{Timeout: time.Duration(cfg.FetchTimeoutMs) * time.Millisecond},
		limiter:     NewRateLimiter(cfg.MedipimRateLimitRPS),
		db:          db,
		concurrency: concurrency,
		cacheTTL:    time.Duration(cfg.CacheTTLHours) * time.Hour,
	}
}

// FetchAll retrieves all urls and returns a body (or nil) per url. progress,
// when non-nil, is called after each completed url.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string, progress func(done, total int)) map[string][]byte {
	results := make(map[string][]byte, len(urls))
	if len(urls) == 0 {
		return results
	}

	jobs := make(chan string)
	var mu sync.Mutex
	var wg sync.WaitGroup
	done := 0

	workers := f.concurrency
	if workers > len(urls) {
		workers = len(urls)
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for url := range jobs {
				body := f.fetchOne(ctx, url)
				mu.Lock()
				results[url] = body
				done++
				n := done
				mu.Unlock()
				if progress != nil {
					progress(n, len(urls))
				}
			}
		}()
	}

	for _, url := range urls {
		select {
		case <-ctx.Done():
		case jobs <- url:
		}
	}
	close(jobs)
	wg.Wait()

	return results
}

func (f *Fetcher) fetchOne(ctx context.Context, url string) []byte {
	if ctx.Err() != nil {
		return nil
	}

	if f.db != nil {
		if body, err := f.db.CachedImage(url, f.cacheTTL); err == nil && len(body) > 0 {
			return body
		}
	}

	f.limiter.WaitTurn()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("Accept", "image/*")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil || len(body) == 0 {
		return nil
	}

	if f.db != nil {
		_ = f.db.PutImage(url, body)
	}
	return body
}
