package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	CacheDBPath string
	OutputDir   string

	MedipimBaseURL      string
	MedipimEmail        string
	MedipimPassword     string
	MedipimTimeoutMs    int
	MedipimRateLimitRPS int

	FetchConcurrency int
	FetchTimeoutMs   int
	CacheTTLHours    int

	CanvasSize     int
	JPEGQuality    int
	DedupMaxDist   int
	FilenamePrefix string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		CacheDBPath: getEnv("CACHE_DB_PATH", filepath.Join(cwd, "data", "cache.db")),
		OutputDir:   getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		MedipimBaseURL:      getEnv("MEDIPIM_BASE_URL", "https://platform.medipim.be/en/"),
		MedipimEmail:        getEnv("MEDIPIM_EMAIL", ""),
		MedipimPassword:     getEnv("MEDIPIM_PASSWORD", ""),
		MedipimTimeoutMs:    getEnvInt("MEDIPIM_TIMEOUT_MS", 30000),
		MedipimRateLimitRPS: getEnvInt("MEDIPIM_RATE_LIMIT_RPS", 5),

		FetchConcurrency: getEnvInt("FETCH_CONCURRENCY", 16),
		FetchTimeoutMs:   getEnvInt("FETCH_TIMEOUT_MS", 15000),
		CacheTTLHours:    getEnvInt("CACHE_TTL_HOURS", 24),

		CanvasSize:     getEnvInt("CANVAS_SIZE", 1000),
		JPEGQuality:    getEnvInt("JPEG_QUALITY", 90),
		DedupMaxDist:   getEnvInt("DEDUP_MAX_DISTANCE", 3),
		FilenamePrefix: getEnv("FILENAME_PREFIX", ""),
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
