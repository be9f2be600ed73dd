package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"pimphoto/internal"
	"pimphoto/internal/config"
	"pimphoto/internal/fetch"
	"pimphoto/internal/pipeline"
	"pimphoto/internal/platform"
	"pimphoto/internal/skulist"
	"pimphoto/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	switch cmd {
	case "run":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		workbook := fs.String("workbook", "", "export workbook (.xlsx)")
		tag := fs.String("tag", "nl", "locale/run tag used in output names")
		out := fs.String("out", "", "output zip path")
		report := fs.String("report", "", "missing-images report path (appended)")
		noCache := fs.Bool("no-cache", false, "skip the download cache")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*workbook) == "" {
			must(fmt.Errorf("--workbook is required"))
		}

		blob, err := os.ReadFile(*workbook)
		must(err)

		var db *storage.DB
		if !*noCache {
			db, err = storage.Open(cfg.CacheDBPath)
			must(err)
			defer db.Close()
		}

		runner := pipeline.NewRunner(cfg, fetch.New(cfg, db), db)
		runner.SetProgress(printProgress())

		result, err := runner.Run(context.Background(), blob, *tag)
		must(err)

		zipPath := *out
		if zipPath == "" {
			zipPath = filepath.Join(cfg.OutputDir, fmt.Sprintf("photos-%s-%s.zip", *tag, time.Now().Format("20060102_150405")))
		}
		must(os.MkdirAll(filepath.Dir(zipPath), 0o755))
		must(os.WriteFile(zipPath, result.Archive, 0o644))

		reportPath := *report
		if reportPath == "" {
			reportPath = filepath.Join(cfg.OutputDir, "missing-report.xlsx")
		}
		if len(result.Missing) > 0 {
			must(pipeline.WriteMissingReport(reportPath, result.Missing))
		}

		c := result.Counts
		fmt.Printf("run done tag=%s products=%d candidates=%d fetched=%d accepted=%d duplicates=%d missing=%d\n",
			*tag, c.Products, c.Candidates, c.Fetched, c.Accepted, c.Duplicates, c.Missing)
		fmt.Printf("archive: %s\n", zipPath)
		if len(result.Missing) > 0 {
			fmt.Printf("missing report: %s\n", reportPath)
		}
	case "skus:parse":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "identifier list file (.txt, .xlsx, .pdf)")
		text := fs.String("text", "", "raw identifier text")
		_ = fs.Parse(os.Args[2:])

		var codes []string
		switch {
		case strings.TrimSpace(*input) != "":
			codes, err = skulist.ParseFile(*input)
			must(err)
		case strings.TrimSpace(*text) != "":
			codes = skulist.ParseText(*text)
		default:
			must(fmt.Errorf("--input or --text is required"))
		}
		fmt.Println(strings.Join(codes, " "))
	case "lookup:image":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		refcode := fs.String("refcode", "", "product refcode (CNK)")
		save := fs.String("save", "", "save the image to this path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*refcode) == "" {
			must(fmt.Errorf("--refcode is required"))
		}

		ctx := context.Background()
		client := platform.NewClient(cfg)
		detailURL, err := client.SearchProduct(ctx, *refcode)
		must(err)
		if detailURL == "" {
			must(fmt.Errorf("no product found for refcode %s", *refcode))
		}
		imageURL, err := client.ImageURL(ctx, detailURL)
		must(err)
		if imageURL == "" {
			must(fmt.Errorf("no image found for refcode %s", *refcode))
		}
		fmt.Printf("image url: %s\n", imageURL)

		if strings.TrimSpace(*save) != "" {
			body, err := client.DownloadImage(ctx, imageURL)
			must(err)
			must(os.MkdirAll(filepath.Dir(*save), 0o755))
			must(os.WriteFile(*save, body, 0o644))
			fmt.Printf("saved: %s\n", *save)
		}
	case "cache:prune":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		hours := fs.Int("hours", cfg.CacheTTLHours, "max cache entry age in hours")
		_ = fs.Parse(os.Args[2:])

		db, err := storage.Open(cfg.CacheDBPath)
		must(err)
		defer db.Close()
		removed, err := db.PruneCache(time.Duration(*hours) * time.Hour)
		must(err)
		fmt.Printf("cache prune done removed=%d\n", removed)
	default:
		usage()
		os.Exit(1)
	}
}

func printProgress() internal.Progress {
	var mu sync.Mutex
	var lastStage internal.Stage
	return func(stage internal.Stage, done, total int) {
		mu.Lock()
		defer mu.Unlock()
		if stage != lastStage {
			lastStage = stage
			if total > 0 {
				fmt.Printf("%s (%d items)\n", stage, total)
				return
			}
			fmt.Printf("%s\n", stage)
		}
	}
}

func usage() {
	fmt.Println("usage: pimphoto <command>")
	fmt.Println("commands:")
	fmt.Println("  run --workbook=export.xlsx --tag=nl [--out=photos.zip] [--report=missing.xlsx] [--no-cache]")
	fmt.Println("  skus:parse --input=skus.xlsx | --text=\"4811337, 4811352\"")
	fmt.Println("  lookup:image --refcode=4811337 [--save=./photo.jpg]")
	fmt.Println("  cache:prune [--hours=24]")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
