package config

import (
	"flag"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Sources  SourcesConfig
	Cache    CacheConfig
	Fetch    FetchConfig
	Pipeline PipelineConfig
	Logging  LoggingConfig
}

// SourcesConfig locates the source-list file
type SourcesConfig struct {
	Path string
}

// CacheConfig holds icon cache configuration
type CacheConfig struct {
	Backend   string // "disk" or "redis"
	Dir       string
	RedisAddr string
	Retention time.Duration
}

// FetchConfig bounds network access
type FetchConfig struct {
	Timeout      time.Duration
	MaxItems     int
	UserAgent    string
	RateLimitDur time.Duration
}

// PipelineConfig holds aggregation parameters
type PipelineConfig struct {
	RecencyWindowHours float64
	SortOrder          string // "newest" or "oldest"
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string
}

// Load parses flags and environment variables to build configuration
func Load() *Config {
	sourcesPath := flag.String("sources", "sources.json", "Path to the JSON source list")
	cacheBackend := flag.String("cache-backend", "disk", "Icon cache backend: disk or redis")
	cacheDir := flag.String("cache-dir", defaultCacheDir(), "Directory for the disk icon cache")
	redisAddr := flag.String("redis-addr", "localhost:6379", "Redis server address")
	retention := flag.Duration("icon-retention", 30*24*time.Hour, "Age after which swept icons are discarded")
	timeout := flag.Duration("fetch-timeout", 20*time.Second, "Per-request network timeout")
	maxItems := flag.Int("max-items", 50, "Maximum items taken from a single source")
	userAgent := flag.String("user-agent", "Mozilla/5.0 (compatible; NewsTicker/1.0)", "User-Agent for outbound requests")
	rateLimitDur := flag.Duration("rate-limit", time.Second, "Minimum delay between requests to same host")
	windowHours := flag.Float64("window-hours", 24, "Recency window in hours; 0 disables filtering")
	sortOrder := flag.String("sort", "newest", "Sort order: newest or oldest first")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")

	flag.Parse()

	applyEnvOverrides(sourcesPath, cacheBackend, cacheDir, redisAddr, retention, timeout, maxItems, userAgent, rateLimitDur, windowHours, sortOrder, logLevel)

	return &Config{
		Sources: SourcesConfig{
			Path: *sourcesPath,
		},
		Cache: CacheConfig{
			Backend:   *cacheBackend,
			Dir:       *cacheDir,
			RedisAddr: *redisAddr,
			Retention: *retention,
		},
		Fetch: FetchConfig{
			Timeout:      *timeout,
			MaxItems:     *maxItems,
			UserAgent:    *userAgent,
			RateLimitDur: *rateLimitDur,
		},
		Pipeline: PipelineConfig{
			RecencyWindowHours: *windowHours,
			SortOrder:          *sortOrder,
		},
		Logging: LoggingConfig{
			Level: *logLevel,
		},
	}
}

func applyEnvOverrides(sourcesPath, cacheBackend, cacheDir, redisAddr *string, retention, timeout *time.Duration, maxItems *int, userAgent *string, rateLimitDur *time.Duration, windowHours *float64, sortOrder, logLevel *string) {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setDuration := func(dst *time.Duration, key string) {
		if v := os.Getenv(key); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}

	setString(sourcesPath, "NEWSTICKER_SOURCES")
	setString(cacheBackend, "NEWSTICKER_CACHE_BACKEND")
	setString(cacheDir, "NEWSTICKER_CACHE_DIR")
	setString(redisAddr, "NEWSTICKER_REDIS_ADDR")
	setDuration(retention, "NEWSTICKER_ICON_RETENTION")
	setDuration(timeout, "NEWSTICKER_FETCH_TIMEOUT")
	setDuration(rateLimitDur, "NEWSTICKER_RATE_LIMIT")
	setString(userAgent, "NEWSTICKER_USER_AGENT")
	setString(sortOrder, "NEWSTICKER_SORT")
	setString(logLevel, "NEWSTICKER_LOG_LEVEL")

	if v := os.Getenv("NEWSTICKER_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*maxItems = n
		}
	}
	if v := os.Getenv("NEWSTICKER_WINDOW_HOURS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			*windowHours = f
		}
	}
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return dir + "/newsticker/icons"
	}
	return ".newsticker-icons"
}
