// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Database settings.
	DatabaseURL string // Postgres URL for the schema registry and audit log.

	// Warehouse settings.
	WarehouseURL string // Postgres-protocol URL of the analytics warehouse; DatabaseURL when empty.

	// Columnar lake settings.
	ColumnarRoot string // Directory holding <dataset>/<object>.parquet files.

	// Resolver cache settings.
	CacheTTL        time.Duration
	CacheMaxEntries int

	// Clip pipeline settings.
	VideoRoot       string // Root of the raw game video tree.
	ClipOutputRoot  string // Root for cut clip files.
	ClipIndexPath   string // SQLite file for the clip index.
	Season          string
	ClipPreSeconds  float64
	ClipPostSeconds float64
	MaxClipDuration float64
	CutWorkers      int
	EnableHLS       bool
	FFmpegPath      string
	FFprobePath     string

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	// Operational settings.
	LogLevel string
}

// Default returns the configuration defaults. Fields without a default
// (DatabaseURL, WarehouseURL, OTELEndpoint) are zero.
func Default() Config {
	return Config{
		ColumnarRoot:    "./lake",
		CacheTTL:        5 * time.Minute,
		CacheMaxEntries: 10000,
		VideoRoot:       "./video",
		ClipOutputRoot:  "./clips",
		ClipIndexPath:   "./clips/index.db",
		Season:          "2025-2026",
		ClipPreSeconds:  3,
		ClipPostSeconds: 5,
		MaxClipDuration: 120,
		CutWorkers:      3,
		FFmpegPath:      "ffmpeg",
		FFprobePath:     "ffprobe",
		ServiceName:     "rinkside",
		LogLevel:        "info",
	}
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	def := Default()
	cfg := Config{
		DatabaseURL:     envStr("RINKSIDE_DATABASE_URL", def.DatabaseURL),
		WarehouseURL:    envStr("RINKSIDE_WAREHOUSE_URL", def.WarehouseURL),
		ColumnarRoot:    envStr("RINKSIDE_COLUMNAR_ROOT", def.ColumnarRoot),
		CacheTTL:        envDuration("RINKSIDE_CACHE_TTL", def.CacheTTL),
		CacheMaxEntries: envInt("RINKSIDE_CACHE_MAX_ENTRIES", def.CacheMaxEntries),
		VideoRoot:       envStr("RINKSIDE_VIDEO_ROOT", def.VideoRoot),
		ClipOutputRoot:  envStr("RINKSIDE_CLIP_OUTPUT_ROOT", def.ClipOutputRoot),
		ClipIndexPath:   envStr("RINKSIDE_CLIP_INDEX_PATH", def.ClipIndexPath),
		Season:          envStr("RINKSIDE_SEASON", def.Season),
		ClipPreSeconds:  envFloat("RINKSIDE_CLIP_PRE_SECONDS", def.ClipPreSeconds),
		ClipPostSeconds: envFloat("RINKSIDE_CLIP_POST_SECONDS", def.ClipPostSeconds),
		MaxClipDuration: envFloat("RINKSIDE_MAX_CLIP_DURATION", def.MaxClipDuration),
		CutWorkers:      envInt("RINKSIDE_CUT_WORKERS", def.CutWorkers),
		EnableHLS:       envBool("RINKSIDE_ENABLE_HLS", false),
		FFmpegPath:      envStr("RINKSIDE_FFMPEG_PATH", def.FFmpegPath),
		FFprobePath:     envStr("RINKSIDE_FFPROBE_PATH", def.FFprobePath),
		OTELEndpoint:    envStr("OTEL_EXPORTER_OTLP_ENDPOINT", def.OTELEndpoint),
		OTELInsecure:    envBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		ServiceName:     envStr("OTEL_SERVICE_NAME", def.ServiceName),
		LogLevel:        envStr("RINKSIDE_LOG_LEVEL", def.LogLevel),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Normalized fills zero fields with the defaults. Programmatic configs pass
// through here so a partially filled struct behaves like the env loader.
// DatabaseURL, WarehouseURL, OTELEndpoint, and EnableHLS stay as given.
func (c Config) Normalized() Config {
	def := Default()
	if c.ColumnarRoot == "" {
		c.ColumnarRoot = def.ColumnarRoot
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = def.CacheTTL
	}
	if c.CacheMaxEntries <= 0 {
		c.CacheMaxEntries = def.CacheMaxEntries
	}
	if c.VideoRoot == "" {
		c.VideoRoot = def.VideoRoot
	}
	if c.ClipOutputRoot == "" {
		c.ClipOutputRoot = def.ClipOutputRoot
	}
	if c.ClipIndexPath == "" {
		c.ClipIndexPath = def.ClipIndexPath
	}
	if c.Season == "" {
		c.Season = def.Season
	}
	if c.ClipPreSeconds <= 0 {
		c.ClipPreSeconds = def.ClipPreSeconds
	}
	if c.ClipPostSeconds <= 0 {
		c.ClipPostSeconds = def.ClipPostSeconds
	}
	if c.MaxClipDuration <= 0 {
		c.MaxClipDuration = def.MaxClipDuration
	}
	if c.CutWorkers <= 0 {
		c.CutWorkers = def.CutWorkers
	}
	if c.FFmpegPath == "" {
		c.FFmpegPath = def.FFmpegPath
	}
	if c.FFprobePath == "" {
		c.FFprobePath = def.FFprobePath
	}
	if c.ServiceName == "" {
		c.ServiceName = def.ServiceName
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	return c
}

// Validate checks that required configuration is present.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("config: RINKSIDE_DATABASE_URL is required")
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("config: RINKSIDE_CACHE_TTL must not be negative")
	}
	if c.MaxClipDuration <= 0 {
		return fmt.Errorf("config: RINKSIDE_MAX_CLIP_DURATION must be positive")
	}
	if c.CutWorkers <= 0 {
		return fmt.Errorf("config: RINKSIDE_CUT_WORKERS must be positive")
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
