package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"astrohub/internal/upstream"
)

// Config holds all application configuration
type Config struct {
	Port        string
	Environment string
	RedisURL    string // optional cache mirror, empty disables it

	// Upstream credentials. Missing keys are per-request failures, never startup-fatal.
	NASAAPIKey       string
	CompletionAPIKey string
	PixabayAPIKey    string

	// Upstream endpoints
	APODURL           string
	NEOFeedURL        string
	WeatherBaseURL    string
	PixabayURL        string
	CompletionBaseURL string

	// Completion caller
	CompletionModels      []string
	MaxAttempts           int // per model
	GenerationAttempts    int // regenerations after a validation failure
	InitialBackoff        time.Duration
	MaxBackoff            time.Duration
	CompletionRatePerSec  float64
	CompletionBurst       int
	CompletionTimeout     time.Duration
	GenerationTimeout     time.Duration
	EnrichmentTimeout     time.Duration
	ChatTimeout           time.Duration
	ImageTimeout          time.Duration
	FeedTimeout           time.Duration
	ScrapeTimeout         time.Duration
	PixabayRatePerSec     float64
	ImageEnrichConcurrent int

	// Cache and jobs
	CacheTTL           time.Duration
	CacheSweepInterval time.Duration
	CacheWarmupCron    string // empty disables warmup

	// HTTP surface
	AllowedOrigins   string
	RateLimitPerMin  int
	ChatRateLimitMin int

	DatasetsFile      string // optional override of the embedded generation spec table
	ArticleSourceURLs []string
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		RedisURL:    getEnv("REDIS_URL", ""),

		NASAAPIKey:       getEnvAny("", "NASA_API_KEY", "VITE_NASA_API_KEY"),
		CompletionAPIKey: getEnvAny("", "GROQ_API_KEY", "VITE_GROQ_API_KEY"),
		PixabayAPIKey:    getEnvAny("", "PIXABAY_API_KEY", "VITE_PIXABAY_API_KEY"),

		APODURL:           getEnv("APOD_URL", upstream.DefaultAPODURL),
		NEOFeedURL:        getEnv("NEO_FEED_URL", upstream.DefaultNEOFeedURL),
		WeatherBaseURL:    getEnvAny("", "WEATHER_BASE_URL", "VITE_WEATHER_BASE_URL"),
		PixabayURL:        getEnv("PIXABAY_URL", upstream.DefaultPixabayURL),
		CompletionBaseURL: getEnv("COMPLETION_BASE_URL", upstream.DefaultCompletionBaseURL),

		CompletionModels:      getListEnv("COMPLETION_MODELS", []string{"llama-3.1-8b-instant", "llama-3.3-70b-versatile", "gemma2-9b-it"}),
		MaxAttempts:           getIntEnv("COMPLETION_MAX_ATTEMPTS", 3),
		GenerationAttempts:    getIntEnv("GENERATION_ATTEMPTS", 2),
		InitialBackoff:        getDurationEnv("COMPLETION_INITIAL_BACKOFF", time.Second),
		MaxBackoff:            getDurationEnv("COMPLETION_MAX_BACKOFF", 10*time.Second),
		CompletionRatePerSec:  getFloatEnv("COMPLETION_RATE_PER_SEC", 0.5),
		CompletionBurst:       getIntEnv("COMPLETION_BURST", 2),
		CompletionTimeout:     getDurationEnv("COMPLETION_TIMEOUT", 30*time.Second),
		GenerationTimeout:     getDurationEnv("GENERATION_TIMEOUT", 90*time.Second),
		EnrichmentTimeout:     getDurationEnv("ENRICHMENT_TIMEOUT", 2*time.Minute),
		ChatTimeout:           getDurationEnv("CHAT_TIMEOUT", 60*time.Second),
		ImageTimeout:          getDurationEnv("IMAGE_TIMEOUT", 10*time.Second),
		FeedTimeout:           getDurationEnv("FEED_TIMEOUT", 15*time.Second),
		ScrapeTimeout:         getDurationEnv("SCRAPE_TIMEOUT", 20*time.Second),
		PixabayRatePerSec:     getFloatEnv("PIXABAY_RATE_PER_SEC", 1.5),
		ImageEnrichConcurrent: getIntEnv("IMAGE_ENRICH_CONCURRENCY", 4),

		CacheTTL:           getDurationEnv("CACHE_TTL", time.Hour),
		CacheSweepInterval: getDurationEnv("CACHE_SWEEP_INTERVAL", 10*time.Minute),
		CacheWarmupCron:    getEnv("CACHE_WARMUP_CRON", "0 */6 * * *"),

		AllowedOrigins:   getEnv("ALLOWED_ORIGINS", "*"),
		RateLimitPerMin:  getIntEnv("RATE_LIMIT_PER_MINUTE", 120),
		ChatRateLimitMin: getIntEnv("CHAT_RATE_LIMIT_PER_MINUTE", 20),

		DatasetsFile:      getEnv("DATASETS_FILE", ""),
		ArticleSourceURLs: getListEnv("ARTICLE_SOURCE_URLS", nil),
	}
}

// Validate reports configuration that would make the service misbehave.
// Missing credentials are deliberately not checked here.
func (c *Config) Validate() error {
	if len(c.CompletionModels) == 0 {
		return fmt.Errorf("COMPLETION_MODELS must name at least one model")
	}
	if c.MaxAttempts < 1 || c.GenerationAttempts < 1 {
		return fmt.Errorf("COMPLETION_MAX_ATTEMPTS and GENERATION_ATTEMPTS must be at least 1")
	}
	if c.InitialBackoff <= 0 || c.MaxBackoff < c.InitialBackoff {
		return fmt.Errorf("invalid backoff: initial %s, max %s", c.InitialBackoff, c.MaxBackoff)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}
	if c.CacheWarmupCron != "" {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		if _, err := parser.Parse(c.CacheWarmupCron); err != nil {
			return fmt.Errorf("invalid CACHE_WARMUP_CRON %q: %w", c.CacheWarmupCron, err)
		}
	}
	return nil
}

// IsProduction reports whether the service runs in production mode
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAny returns the first non-empty variable among keys
func getEnvAny(defaultValue string, keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
