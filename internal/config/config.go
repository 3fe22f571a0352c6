package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	// FHIRBaseURL is the clinical API serving Observation searches.
	FHIRBaseURL string

	// Outbound HTTP.
	HTTPTimeout    time.Duration // per attempt
	FetchTimeout   time.Duration // whole fetch, retries included
	FHIRMaxRetries int

	// Cache freshness and retention.
	CacheStaleAfter time.Duration
	CacheErrorRetry time.Duration
	CacheMaxEntries int           // 0 = unlimited
	CacheRetention  time.Duration // 0 = unlimited

	// RevalidateInterval controls how often cached patients are refetched (0 = never).
	RevalidateInterval time.Duration

	// AwaitTimeout bounds requests that wait for a fetch to settle.
	AwaitTimeout time.Duration

	DateLayout string

	Port string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.FHIRBaseURL = os.Getenv("FHIR_BASE_URL")
	if cfg.FHIRBaseURL == "" {
		return nil, fmt.Errorf("FHIR_BASE_URL is required")
	}

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"HTTP_TIMEOUT", "10s", &cfg.HTTPTimeout},
		{"FETCH_TIMEOUT", "30s", &cfg.FetchTimeout},
		{"CACHE_STALE_AFTER", "30s", &cfg.CacheStaleAfter},
		{"CACHE_ERROR_RETRY", "5s", &cfg.CacheErrorRetry},
		{"CACHE_RETENTION", "1h", &cfg.CacheRetention},
		{"REVALIDATE_INTERVAL", "5m", &cfg.RevalidateInterval},
		{"AWAIT_TIMEOUT", "10s", &cfg.AwaitTimeout},
	}
	for _, d := range durations {
		v, err := getenvDuration(d.key, d.def)
		if err != nil {
			return nil, err
		}
		*d.dst = v
	}

	cfg.FHIRMaxRetries = getenvInt("FHIR_MAX_RETRIES", 3)
	cfg.CacheMaxEntries = getenvInt("CACHE_MAX_ENTRIES", 1000)
	cfg.DateLayout = getenvDefault("DATE_LAYOUT", "1/2/2006")
	cfg.Port = getenvDefault("PORT", "8080")

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return d, nil
}
