package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port  string
	Debug bool

	// Audience configuration
	Audiences        []string // forum identifiers, e.g. "golang", "stackoverflow:go", "hackernews"
	AnalysisSchedule string   // "daily", "weekly" or "off"
	PostLimit        int
	SortMode         string
	FetchTimeout     time.Duration
	MaxConcurrent    int

	// Analysis tuning
	MinPostCount     int
	TopN             int
	PerThemeExamples int
	BodyPrefix       int
	KeepPunctuation  bool
	ExtraStopwords   []string
	ThemeRulesFile   string

	// Rate limits for the analysis endpoints (requests per minute per client)
	AnalyzeRateLimit int
	ForumRateLimit   int

	// Storage configuration
	StorageBackend   string // "azure", "sqlite" or "none"
	StorageAccount   string
	StorageContainer string
	SQLitePath       string

	// Notification configuration
	TeamsWebhookURL   string
	NotificationEmail string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string

	// API credentials
	RedditClientID     string
	RedditClientSecret string
	RedditUserAgent    string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:  getEnv("PORT", "8080"),
		Debug: getBoolEnv("DEBUG", false),

		Audiences:        getSliceEnv("AUDIENCES", nil),
		AnalysisSchedule: getEnv("ANALYSIS_SCHEDULE", "daily"),
		PostLimit:        getIntEnv("POST_LIMIT", 100),
		SortMode:         getEnv("SORT_MODE", "hot"),
		FetchTimeout:     getDurationEnv("FETCH_TIMEOUT", 30*time.Second),
		MaxConcurrent:    getIntEnv("MAX_CONCURRENT_FETCHES", 0),

		MinPostCount:     getIntEnv("MIN_POST_COUNT", 2),
		TopN:             getIntEnv("TOP_N", 20),
		PerThemeExamples: getIntEnv("PER_THEME_EXAMPLES", 5),
		BodyPrefix:       getIntEnv("BODY_PREFIX", 500),
		KeepPunctuation:  getBoolEnv("KEEP_PUNCTUATION", false),
		ExtraStopwords:   getSliceEnv("EXTRA_STOPWORDS", nil),
		ThemeRulesFile:   getEnv("THEME_RULES_FILE", ""),

		AnalyzeRateLimit: getIntEnv("ANALYZE_RATE_LIMIT", 10),
		ForumRateLimit:   getIntEnv("FORUM_RATE_LIMIT", 5),

		StorageBackend:   getEnv("STORAGE_BACKEND", "sqlite"),
		StorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer: getEnv("AZURE_STORAGE_CONTAINER", "reports"),
		SQLitePath:       getEnv("SQLITE_PATH", "audience-insights.db"),

		TeamsWebhookURL:   getEnv("TEAMS_WEBHOOK_URL", ""),
		NotificationEmail: getEnv("NOTIFICATION_EMAIL", ""),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getIntEnv("SMTP_PORT", 587),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),

		RedditClientID:     getEnv("REDDIT_CLIENT_ID", ""),
		RedditClientSecret: getEnv("REDDIT_CLIENT_SECRET", ""),
		RedditUserAgent:    getEnv("REDDIT_USER_AGENT", "audience-insights/1.0"),
	}

	// Validate required configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.AnalysisSchedule {
	case "daily", "weekly", "off":
	default:
		return fmt.Errorf("ANALYSIS_SCHEDULE must be 'daily', 'weekly' or 'off'")
	}

	if c.AnalysisSchedule != "off" && len(c.Audiences) == 0 {
		return fmt.Errorf("AUDIENCES is required when ANALYSIS_SCHEDULE is enabled")
	}

	if c.PostLimit <= 0 {
		return fmt.Errorf("POST_LIMIT must be positive")
	}

	if c.MinPostCount < 1 || c.TopN < 1 || c.PerThemeExamples < 1 {
		return fmt.Errorf("MIN_POST_COUNT, TOP_N and PER_THEME_EXAMPLES must be at least 1")
	}

	switch c.StorageBackend {
	case "azure":
		if c.StorageAccount == "" {
			return fmt.Errorf("AZURE_STORAGE_ACCOUNT is required when STORAGE_BACKEND is 'azure'")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required when STORAGE_BACKEND is 'sqlite'")
		}
	case "none":
	default:
		return fmt.Errorf("STORAGE_BACKEND must be 'azure', 'sqlite' or 'none'")
	}

	if c.NotificationEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when NOTIFICATION_EMAIL is set")
		}
	}

	return nil
}

// NotificationsEnabled reports whether any digest channel is configured
func (c *Config) NotificationsEnabled() bool {
	return c.TeamsWebhookURL != "" || c.NotificationEmail != ""
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return defaultValue
}
