package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var ErrCatalogNotConfigured = errors.New("catalog api not configured")

type Config struct {
	DBPath    string
	OutputDir string

	CatalogAPIBaseURL   string
	CatalogAPIToken     string
	CatalogTimeoutMs    int
	CatalogRetryCount   int
	CatalogRateLimitRPS int
	CatalogLanguage     string
	CatalogCountry      string

	ScrapeTimeoutMs      int
	ScrapeRetryCount     int
	ScrapeEnabledSources []string
	ScrapeWeights        map[string]float64

	ResolveTimeoutMs   int
	ResolveMaxParallel int

	CacheRedisAddr     string
	CacheRedisPassword string
	CacheRedisDB       int
	CacheTTL           time.Duration

	HTTPAddr  string
	LogLevel  string
	LogFormat string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	weights, err := parseWeights(getEnv("SCRAPE_WEIGHTS", ""))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:    getEnv("DB_PATH", filepath.Join(cwd, "data", "partsbot.db")),
		OutputDir: getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		CatalogAPIBaseURL:   getEnv("CATALOG_API_BASE_URL", ""),
		CatalogAPIToken:     getEnv("CATALOG_API_TOKEN", ""),
		CatalogTimeoutMs:    getEnvInt("CATALOG_TIMEOUT_MS", 10000),
		CatalogRetryCount:   getEnvInt("CATALOG_RETRY_COUNT", 2),
		CatalogRateLimitRPS: getEnvInt("CATALOG_RATE_LIMIT_RPS", 5),
		CatalogLanguage:     getEnv("CATALOG_LANGUAGE", "de"),
		CatalogCountry:      getEnv("CATALOG_COUNTRY", "DE"),

		ScrapeTimeoutMs:      getEnvInt("SCRAPE_TIMEOUT_MS", 8000),
		ScrapeRetryCount:     getEnvInt("SCRAPE_RETRY_COUNT", 1),
		ScrapeEnabledSources: getEnvList("SCRAPE_ENABLED_SOURCES"),
		ScrapeWeights:        weights,

		ResolveTimeoutMs:   getEnvInt("RESOLVE_TIMEOUT_MS", 25000),
		ResolveMaxParallel: getEnvInt("RESOLVE_MAX_PARALLEL", 8),

		CacheRedisAddr:     getEnv("CACHE_REDIS_ADDR", ""),
		CacheRedisPassword: getEnv("CACHE_REDIS_PASSWORD", ""),
		CacheRedisDB:       getEnvInt("CACHE_REDIS_DB", 0),
		CacheTTL:           time.Duration(getEnvInt("CACHE_TTL_MIN", 720)) * time.Minute,

		HTTPAddr:  getEnv("HTTP_ADDR", ":8080"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

// RequireCatalog fails when the structured catalog cannot be reached at all.
func (c Config) RequireCatalog() error {
	if err := c.Require("CATALOG_API_BASE_URL", c.CatalogAPIBaseURL); err != nil {
		return fmt.Errorf("%w: %v", ErrCatalogNotConfigured, err)
	}
	if err := c.Require("CATALOG_API_TOKEN", c.CatalogAPIToken); err != nil {
		return fmt.Errorf("%w: %v", ErrCatalogNotConfigured, err)
	}
	return nil
}

func (c Config) ResolveTimeout() time.Duration {
	return time.Duration(c.ResolveTimeoutMs) * time.Millisecond
}

// SourceEnabled reports whether a scraping source should run; an empty list enables all.
func (c Config) SourceEnabled(name string) bool {
	if len(c.ScrapeEnabledSources) == 0 {
		return true
	}
	for _, s := range c.ScrapeEnabledSources {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}

// Weight returns the configured confidence for a scraping source, or fallback.
func (c Config) Weight(name string, fallback float64) float64 {
	if w, ok := c.ScrapeWeights[strings.ToLower(name)]; ok {
		return w
	}
	return fallback
}

func parseWeights(raw string) (map[string]float64, error) {
	out := map[string]float64{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid SCRAPE_WEIGHTS entry %q", pair)
		}
		w, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid SCRAPE_WEIGHTS entry %q: %w", pair, err)
		}
		if w < 0 {
			w = 0
		}
		if w > 1 {
			w = 1
		}
		out[strings.ToLower(strings.TrimSpace(name))] = w
	}
	return out, nil
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

func getEnvList(key string) []string {
	value := getEnv(key, "")
	if strings.TrimSpace(value) == "" {
		return nil
	}
	out := []string{}
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
