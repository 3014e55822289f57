/*
Package config provides configuration management for the dynamic cleaner backend.

This package separates configuration concerns from the cleanup pipeline and
provides a centralized way to manage server settings, remote API endpoints,
pacing/retry schedules, and the operator-adjustable settings file.
*/
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	ServerPort string
	LogLevel   string
	// Rate limiting for the control API
	RateLimitRequestsPerMinute float64
	RateLimitBurst             int
	ClientCleanupInterval      time.Duration
	// Remote API configuration
	BiliConfig BiliConfig
	// Pacing and retry schedules for the cleanup pipeline
	PipelineConfig PipelineConfig
	// File paths
	SettingsFile    string
	CredentialsFile string
	QueueDBFile     string
}

// BiliConfig holds remote API endpoint and client settings
type BiliConfig struct {
	// APIBaseURL serves the feed, delete and unfollow endpoints
	APIBaseURL string `json:"api_base_url"`
	// LotteryBaseURL serves the giveaway status endpoint
	LotteryBaseURL string `json:"lottery_base_url"`
	UserAgent      string `json:"user_agent"`
	// SubjectUserID is the numeric id of the account whose feed is swept
	SubjectUserID string `json:"subject_user_id"`
	// Per-call timeouts
	FeedTimeout     time.Duration `json:"feed_timeout"`
	LotteryTimeout  time.Duration `json:"lottery_timeout"`
	DeleteTimeout   time.Duration `json:"delete_timeout"`
	UnfollowTimeout time.Duration `json:"unfollow_timeout"`
	// Token bucket applied before every remote call
	RequestsPerSecond float64 `json:"requests_per_second"`
	RequestBurst      int     `json:"request_burst"`
}

// PipelineConfig holds the pacing, retry and backoff schedules of the
// traversal/decision/execution pipeline. All delays are injectable so tests
// can run with near-zero values.
type PipelineConfig struct {
	// Batch execution
	BatchSize       int           `json:"batch_size"`
	InterBatchDelay time.Duration `json:"inter_batch_delay"`
	InterPageDelay  time.Duration `json:"inter_page_delay"`
	// Page-level rate-limit handling: retry the same page fetch
	PageMaxRetries int           `json:"page_max_retries"`
	PageRetryDelay time.Duration `json:"page_retry_delay"`
	// Lottery lookup backoff: base delay multiplied by the attempt number
	LotteryRetryBase time.Duration `json:"lottery_retry_base"`
	// Forward-date resolution: fixed bound, fixed backoff
	ForwardDateRetries int           `json:"forward_date_retries"`
	ForwardDateDelay   time.Duration `json:"forward_date_delay"`
	// Deletion retry schedule
	DeleteMaxAttempts    int           `json:"delete_max_attempts"`
	DeleteRateLimitDelay time.Duration `json:"delete_rate_limit_delay"`
	DeleteErrorDelay     time.Duration `json:"delete_error_delay"`
	// Unfollow sweep pacing
	UnfollowDelay time.Duration `json:"unfollow_delay"`
	// Pause/stop cooperative check interval
	PausePollInterval time.Duration `json:"pause_poll_interval"`
	// Auto-pause after this many completed pages (when enabled in settings)
	AutoPauseEvery int `json:"auto_pause_every"`
	// Resolved lottery outcomes are cached for this long
	LotteryCacheTTL time.Duration `json:"lottery_cache_ttl"`
	// Journal capacity (oldest events dropped beyond this)
	JournalCapacity int `json:"journal_capacity"`
}

// NewConfig creates a new configuration instance from the environment
func NewConfig() *Config {
	return &Config{
		ServerPort: getEnv("SERVER_PORT", "8080"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		// Control API rate limiting defaults (60 requests per minute, burst of 10)
		RateLimitRequestsPerMinute: getEnvFloat("RATE_LIMIT_RPM", 60.0),
		RateLimitBurst:             getEnvInt("RATE_LIMIT_BURST", 10),
		ClientCleanupInterval:      getEnvDuration("CLIENT_CLEANUP_INTERVAL", 1*time.Minute),
		BiliConfig: BiliConfig{
			APIBaseURL:        getEnv("BILI_API_BASE_URL", "https://api.bilibili.com"),
			LotteryBaseURL:    getEnv("BILI_LOTTERY_BASE_URL", "https://api.vc.bilibili.com"),
			UserAgent:         getEnv("BILI_USER_AGENT", "Mozilla/5.0 (X11; Linux x86_64) DynamicCleaner/1.0"),
			SubjectUserID:     getEnv("BILI_SUBJECT_UID", ""),
			FeedTimeout:       getEnvDuration("BILI_FEED_TIMEOUT", 10*time.Second),
			LotteryTimeout:    getEnvDuration("BILI_LOTTERY_TIMEOUT", 8*time.Second),
			DeleteTimeout:     getEnvDuration("BILI_DELETE_TIMEOUT", 10*time.Second),
			UnfollowTimeout:   getEnvDuration("BILI_UNFOLLOW_TIMEOUT", 10*time.Second),
			RequestsPerSecond: getEnvFloat("BILI_REQUESTS_PER_SECOND", 2.0),
			RequestBurst:      getEnvInt("BILI_REQUEST_BURST", 1),
		},
		PipelineConfig: PipelineConfig{
			BatchSize:            getEnvInt("BATCH_SIZE", 5),
			InterBatchDelay:      getEnvDuration("INTER_BATCH_DELAY", 1*time.Second),
			InterPageDelay:       getEnvDuration("INTER_PAGE_DELAY", 3*time.Second),
			PageMaxRetries:       getEnvInt("PAGE_MAX_RETRIES", 2),
			PageRetryDelay:       getEnvDuration("PAGE_RETRY_DELAY", 5*time.Second),
			LotteryRetryBase:     getEnvDuration("LOTTERY_RETRY_BASE", 5*time.Second),
			ForwardDateRetries:   getEnvInt("FORWARD_DATE_RETRIES", 3),
			ForwardDateDelay:     getEnvDuration("FORWARD_DATE_DELAY", 5*time.Second),
			DeleteMaxAttempts:    getEnvInt("DELETE_MAX_ATTEMPTS", 3),
			DeleteRateLimitDelay: getEnvDuration("DELETE_RATE_LIMIT_DELAY", 5*time.Second),
			DeleteErrorDelay:     getEnvDuration("DELETE_ERROR_DELAY", 2*time.Second),
			UnfollowDelay:        getEnvDuration("UNFOLLOW_DELAY", 3*time.Second),
			PausePollInterval:    getEnvDuration("PAUSE_POLL_INTERVAL", 1*time.Second),
			AutoPauseEvery:       getEnvInt("AUTO_PAUSE_EVERY", 10),
			LotteryCacheTTL:      getEnvDuration("LOTTERY_CACHE_TTL", 30*time.Minute),
			JournalCapacity:      getEnvInt("JOURNAL_CAPACITY", 1000),
		},
		SettingsFile:    getEnv("SETTINGS_FILE", "cleaner-settings.yaml"),
		CredentialsFile: getEnv("CREDENTIALS_FILE", "cleaner-credentials.yaml"),
		QueueDBFile:     getEnv("QUEUE_DB_FILE", "cleaner-queue.db"),
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.BiliConfig.SubjectUserID == "" {
		return fmt.Errorf("BILI_SUBJECT_UID environment variable is required")
	}
	if c.PipelineConfig.BatchSize <= 0 {
		return fmt.Errorf("BATCH_SIZE must be positive, got %d", c.PipelineConfig.BatchSize)
	}
	if c.PipelineConfig.DeleteMaxAttempts <= 0 {
		return fmt.Errorf("DELETE_MAX_ATTEMPTS must be positive, got %d", c.PipelineConfig.DeleteMaxAttempts)
	}
	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as an integer with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets an environment variable as a float with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvBool gets an environment variable as a boolean with a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration gets an environment variable as a duration with a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvSlice gets an environment variable as a comma-separated slice
func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
