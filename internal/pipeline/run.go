package pipeline

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"pimphoto/internal"
	"pimphoto/internal/config"
	"pimphoto/internal/fetch"
	"pimphoto/internal/storage"
)

// Runner drives one consolidation pass over an export workbook. All dedup
// and cache state is owned by the run, so concurrent runs (one per locale)
// stay independent.
type Runner struct {
	cfg       config.Config
	fetcher   *fetch.Fetcher
	db        *storage.DB
	typeRanks map[string]int
	progress  internal.Progress
}

// NewRunner wires a runner. db may be nil; run records are then skipped.
func NewRunner(cfg config.Config, fetcher *fetch.Fetcher, db *storage.DB) *Runner {
	return &Runner{cfg: cfg, fetcher: fetcher, db: db, typeRanks: DefaultTypeRanks()}
}

// SetTypeRanks overrides the ranking policy table.
func (r *Runner) SetTypeRanks(table map[string]int) {
	r.typeRanks = table
}

// SetProgress installs a progress callback. UI concerns stay caller-side.
func (r *Runner) SetProgress(p internal.Progress) {
	r.progress = p
}

type RunResult struct {
	Archive []byte
	Missing []internal.MissingEntry
	Counts  internal.RunCounts
}

// Run executes the full pipeline on workbook bytes. Only a workbook schema
// problem fails the run; every per-candidate failure is recorded as a
// MissingEntry and the run continues.
func (r *Runner) Run(ctx context.Context, workbook []byte, tag string) (*RunResult, error) {
	result := &RunResult{}

	r.report(internal.StageExtracting, 0, 0)
	products, photos, err := Extract(workbook)
	if err != nil {
		r.report(internal.StageFailed, 0, 0)
		return nil, err
	}
	codeByID := make(map[string]string, len(products))
	for _, p := range products {
		codeByID[p.InternalID] = p.CanonicalCode
	}

	r.report(internal.StageRanking, 0, len(photos))
	ranked := Rank(photos, r.typeRanks)

	// Products whose rows all lacked a URL (or had none at all) get a
	// "No photo" entry instead of vanishing from the output.
	hasCandidate := map[string]struct{}{}
	for _, c := range ranked {
		hasCandidate[c.ProductInternalID] = struct{}{}
	}
	for _, p := range products {
		if _, ok := hasCandidate[p.InternalID]; !ok {
			result.Missing = append(result.Missing, internal.MissingEntry{
				ProductInternalID: p.InternalID,
				CanonicalCode:     p.CanonicalCode,
				Reason:            internal.ReasonNoPhoto,
				Tag:               tag,
			})
		}
	}

	// Orphan photo rows are reported, never fetched.
	candidates := make([]internal.RankedCandidate, 0, len(ranked))
	for _, c := range ranked {
		if _, ok := codeByID[c.ProductInternalID]; !ok {
			result.Missing = append(result.Missing, internal.MissingEntry{
				ProductInternalID: c.ProductInternalID,
				SourceURL:         c.SourceURL,
				Reason:            internal.ReasonNoCanonicalCode,
				Tag:               tag,
			})
			continue
		}
		candidates = append(candidates, c)
	}

	urls := uniqueURLs(candidates)
	r.report(internal.StageFetching, 0, len(urls))
	bodies := r.fetcher.FetchAll(ctx, urls, func(done, total int) {
		r.report(internal.StageFetching, done, total)
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, body := range bodies {
		if body != nil {
			result.Counts.Fetched++
		}
	}

	r.report(internal.StageNormalizing, 0, len(urls))
	processed := r.normalizeAll(ctx, urls, bodies)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Fetch and normalize complete out of order; dedup decisions replay the
	// buffered results in ranked order so the highest-ranked image of a
	// duplicate cluster always wins.
	r.report(internal.StageDeduplicating, 0, len(candidates))
	deduper := NewDeduper(r.cfg.DedupMaxDist)
	sets := make([]*internal.ProductPhotoSet, 0)
	setByCode := map[string]*internal.ProductPhotoSet{}

	for i, c := range candidates {
		code := codeByID[c.ProductInternalID]
		body := bodies[c.SourceURL]
		img := processed[c.SourceURL]

		switch {
		case body == nil:
			result.Missing = append(result.Missing, internal.MissingEntry{
				ProductInternalID: c.ProductInternalID,
				CanonicalCode:     code,
				SourceURL:         c.SourceURL,
				Reason:            internal.ReasonDownloadFailed,
				Tag:               tag,
			})
		case img == nil:
			result.Missing = append(result.Missing, internal.MissingEntry{
				ProductInternalID: c.ProductInternalID,
				CanonicalCode:     code,
				SourceURL:         c.SourceURL,
				Reason:            internal.ReasonProcessingFailed,
				Tag:               tag,
			})
		case !deduper.Accept(code, img):
			result.Counts.Duplicates++
		default:
			set, ok := setByCode[code]
			if !ok {
				set = &internal.ProductPhotoSet{CanonicalCode: code}
				setByCode[code] = set
				sets = append(sets, set)
			}
			set.Images = append(set.Images, internal.AcceptedImage{
				CanonicalCode: code,
				Counter:       deduper.AcceptedCount(code),
				JPEGBytes:     img.JPEGBytes,
			})
			result.Counts.Accepted++
		}
		r.report(internal.StageDeduplicating, i+1, len(candidates))
	}

	r.report(internal.StageArchiving, 0, 0)
	archive, err := BuildArchive(sets, r.cfg.FilenamePrefix, tag)
	if err != nil {
		r.report(internal.StageFailed, 0, 0)
		return nil, err
	}
	result.Archive = archive

	result.Counts.Products = len(products)
	result.Counts.Candidates = len(ranked)
	result.Counts.Missing = len(result.Missing)

	if r.db != nil {
		_ = r.db.InsertRun(traceID(), tag, result.Counts)
	}
	r.report(internal.StageDone, 0, 0)

	return result, nil
}

func (r *Runner) normalizeAll(ctx context.Context, urls []string, bodies map[string][]byte) map[string]*internal.ProcessedImage {
	out := make(map[string]*internal.ProcessedImage, len(urls))

	jobs := make(chan string)
	var mu sync.Mutex
	var wg sync.WaitGroup

	workers := r.cfg.FetchConcurrency
	if workers <= 0 {
		workers = 1
	}
	if workers > len(urls) {
		workers = len(urls)
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for url := range jobs {
				img, err := NormalizeImage(bodies[url], r.cfg.CanvasSize, r.cfg.JPEGQuality)
				if err != nil {
					img = nil
				}
				mu.Lock()
				out[url] = img
				mu.Unlock()
			}
		}()
	}

	for _, url := range urls {
		if bodies[url] == nil {
			continue
		}
		select {
		case <-ctx.Done():
		case jobs <- url:
		}
	}
	close(jobs)
	wg.Wait()

	return out
}

func uniqueURLs(candidates []internal.RankedCandidate) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := seen[c.SourceURL]; ok {
			continue
		}
		seen[c.SourceURL] = struct{}{}
		out = append(out, c.SourceURL)
	}
	return out
}

func (r *Runner) report(stage internal.Stage, done, total int) {
	if r.progress != nil {
		r.progress(stage, done, total)
	}
}

func traceID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("run-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}
