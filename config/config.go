package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig
	Browser BrowserConfig
	Fetch   FetchConfig
	Quality QualityConfig
	Batch   BatchConfig
	LLM     LLMConfig
	Feed    FeedConfig
	Webhook WebhookConfig
	Log     LogConfig
}

// ServerConfig controls the HTTP service mode.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the browser session pool.
type BrowserConfig struct {
	// Enabled toggles dynamic fetching entirely. When false, the arbiter
	// runs static-only and accepts the least-bad static result.
	Enabled bool // default: true

	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// PoolCapacity is the fixed number of browser sessions. Sessions are
	// expensive; this should stay at or below batch concurrency.
	PoolCapacity int // default: 3

	// AcquireTimeout bounds how long a worker waits for a free session.
	AcquireTimeout time.Duration // default: 30s

	// Stealth injects anti-bot-detection JS before navigation.
	Stealth bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// Bin overrides the Chromium binary path.
	Bin string

	// Proxy is the proxy URL for browser traffic.
	Proxy string

	// InitialWait is the settle delay after navigation before the first
	// extraction.
	InitialWait time.Duration // default: 5s

	// ScrollAttempts is the maximum number of scroll-and-wait cycles.
	ScrollAttempts int // default: 3

	// ScrollWait is the delay after each scroll before re-extraction.
	ScrollWait time.Duration // default: 2s
}

// FetchConfig controls the static fetcher.
type FetchConfig struct {
	// StaticTimeout is the deadline for one static fetch attempt.
	StaticTimeout time.Duration // default: 30s

	// RequestDelay is the politeness delay between successive fetches
	// within a run.
	RequestDelay time.Duration // default: 0 (disabled)
}

// QualityConfig controls content scoring and arbitration thresholds.
type QualityConfig struct {
	// StaticThreshold is the "good enough" score at or above which the
	// static result is accepted and dynamic fetching is skipped.
	StaticThreshold float64 // default: 0.35

	// MinContentLength is the extracted-text length below which a score
	// clamps to zero.
	MinContentLength int // default: 200

	// TextWeight, RatioWeight and BlockWeight are the composite weights.
	TextWeight  float64 // default: 0.5
	RatioWeight float64 // default: 0.3
	BlockWeight float64 // default: 0.2
}

// BatchConfig controls the batch runner.
type BatchConfig struct {
	// Concurrency is the bounded worker count for the batch.
	Concurrency int // default: 8

	// Timeout is the global batch deadline. Zero means no batch deadline.
	Timeout time.Duration // default: 0

	// MaxArticlesPerSource caps articles taken from one source.
	MaxArticlesPerSource int // default: 1000

	// OutputFile is the generated RSS feed path.
	OutputFile string // default: "articles.rss"
}

// LLMConfig controls article enrichment.
type LLMConfig struct {
	Enabled     bool   // default: false
	BaseURL     string // default: "https://openrouter.ai/api/v1"
	APIKey      string
	Model       string  // default: "openai/gpt-4.1-mini"
	Temperature float64 // default: 0.3
}

// FeedConfig controls the generated RSS feed metadata.
type FeedConfig struct {
	Title       string // default: "AI Security Digest"
	Description string
	Link        string
}

// WebhookConfig controls the optional run-completion webhook.
type WebhookConfig struct {
	URL    string
	Secret string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("AISFEED_HOST", "0.0.0.0"),
			Port: envIntOr("AISFEED_PORT", 8080),
			Mode: envOr("AISFEED_MODE", "release"),
		},
		Browser: BrowserConfig{
			Enabled:        envBoolOr("AISFEED_BROWSER_ENABLED", true),
			Headless:       envBoolOr("AISFEED_BROWSER_HEADLESS", true),
			PoolCapacity:   envIntOr("AISFEED_BROWSER_POOL_CAPACITY", 3),
			AcquireTimeout: envDurationOr("AISFEED_BROWSER_ACQUIRE_TIMEOUT", 30*time.Second),
			Stealth:        envBoolOr("AISFEED_BROWSER_STEALTH", true),
			NoSandbox:      envBoolOr("AISFEED_BROWSER_NO_SANDBOX", false),
			Bin:            os.Getenv("AISFEED_BROWSER_BIN"),
			Proxy:          os.Getenv("AISFEED_BROWSER_PROXY"),
			InitialWait:    envDurationOr("AISFEED_DYNAMIC_INITIAL_WAIT", 5*time.Second),
			ScrollAttempts: envIntOr("AISFEED_DYNAMIC_SCROLL_ATTEMPTS", 3),
			ScrollWait:     envDurationOr("AISFEED_DYNAMIC_SCROLL_WAIT", 2*time.Second),
		},
		Fetch: FetchConfig{
			StaticTimeout: envDurationOr("AISFEED_STATIC_FETCH_TIMEOUT", 30*time.Second),
			RequestDelay:  envDurationOr("AISFEED_REQUEST_DELAY", 0),
		},
		Quality: QualityConfig{
			StaticThreshold:  envFloatOr("AISFEED_STATIC_QUALITY_THRESHOLD", 0.35),
			MinContentLength: envIntOr("AISFEED_MIN_CONTENT_LENGTH", 200),
			TextWeight:       envFloatOr("AISFEED_QUALITY_TEXT_WEIGHT", 0.5),
			RatioWeight:      envFloatOr("AISFEED_QUALITY_RATIO_WEIGHT", 0.3),
			BlockWeight:      envFloatOr("AISFEED_QUALITY_BLOCK_WEIGHT", 0.2),
		},
		Batch: BatchConfig{
			Concurrency:          envIntOr("AISFEED_BATCH_CONCURRENCY", 8),
			Timeout:              envDurationOr("AISFEED_BATCH_TIMEOUT", 0),
			MaxArticlesPerSource: envIntOr("AISFEED_MAX_ARTICLES_PER_SOURCE", 1000),
			OutputFile:           envOr("AISFEED_OUTPUT_FILE", "articles.rss"),
		},
		LLM: LLMConfig{
			Enabled:     envBoolOr("AISFEED_LLM_ENABLED", false),
			BaseURL:     envOr("AISFEED_LLM_BASE_URL", "https://openrouter.ai/api/v1"),
			APIKey:      os.Getenv("AISFEED_LLM_API_KEY"),
			Model:       envOr("AISFEED_LLM_MODEL", "openai/gpt-4.1-mini"),
			Temperature: envFloatOr("AISFEED_LLM_TEMPERATURE", 0.3),
		},
		Feed: FeedConfig{
			Title:       envOr("AISFEED_FEED_TITLE", "AI Security Digest"),
			Description: envOr("AISFEED_FEED_DESCRIPTION", "Curated AI security insights and articles from various sources"),
			Link:        envOr("AISFEED_FEED_LINK", "https://example.com/feed"),
		},
		Webhook: WebhookConfig{
			URL:    os.Getenv("AISFEED_WEBHOOK_URL"),
			Secret: os.Getenv("AISFEED_WEBHOOK_SECRET"),
		},
		Log: LogConfig{
			Level:  envOr("AISFEED_LOG_LEVEL", "info"),
			Format: envOr("AISFEED_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		// Bare integers are accepted as seconds for compatibility with the
		// older env format.
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return time.Duration(i) * time.Second
		}
	}
	return fallback
}
