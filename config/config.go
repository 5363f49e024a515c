package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds tracker configuration.
type Config struct {
	// Fetching
	FetchTimeout       time.Duration
	FetchRetries       int
	RetryBackoff       time.Duration
	RetryBackoffFactor float64
	RetryBackoffMax    time.Duration
	RespectRobotsTxt   bool
	UserAgent          string
	RequestDelay       time.Duration

	// Scrape previews
	PreviewCacheSize int
	PreviewCacheTTL  time.Duration

	// Site registry
	RegistryFile string

	// Persistence
	DatabaseDSN string

	// HTTP API
	APIAddr       string
	AdminUser     string
	AdminPassword string
	JWTSecret     string

	// Scheduling
	CronSchedule       string
	SchedulerAutostart bool

	// Notifications
	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
	NotifyEmail  string

	Verbose bool
}

// DefaultConfig returns local-development defaults. Credentials and the
// database DSN are meant to be overridden through the environment in
// any real deployment.
func DefaultConfig() *Config {
	return &Config{
		FetchTimeout:       10 * time.Second,
		FetchRetries:       3,
		RetryBackoff:       200 * time.Millisecond,
		RetryBackoffFactor: 2,
		RetryBackoffMax:    2 * time.Second,
		RespectRobotsTxt:   false,
		UserAgent:          "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		RequestDelay:       time.Second,
		PreviewCacheSize:   128,
		PreviewCacheTTL:    5 * time.Minute,
		RegistryFile:       "",
		DatabaseDSN:        "host=localhost user=postgres password=postgres dbname=pricetracker port=5432 sslmode=disable",
		APIAddr:            ":8080",
		AdminUser:          "admin",
		AdminPassword:      "admin",
		JWTSecret:          "local-dev-secret",
		CronSchedule:       "",
		SchedulerAutostart: true,
		Verbose:            false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive")
	}
	if c.FetchRetries < 1 {
		return fmt.Errorf("fetch retries must be at least 1")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffFactor < 1 {
		return fmt.Errorf("retry backoff factor must be at least 1")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.RequestDelay < 0 {
		return fmt.Errorf("request delay cannot be negative")
	}
	if c.PreviewCacheSize <= 0 {
		return fmt.Errorf("preview cache size must be positive")
	}
	if c.PreviewCacheTTL <= 0 {
		return fmt.Errorf("preview cache ttl must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.DatabaseDSN == "" {
		return fmt.Errorf("database DSN cannot be empty")
	}
	if c.APIAddr == "" {
		return fmt.Errorf("api listen address cannot be empty")
	}
	if c.AdminUser == "" {
		return fmt.Errorf("admin user cannot be empty")
	}
	if c.AdminPassword == "" {
		return fmt.Errorf("admin password cannot be empty")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt secret cannot be empty")
	}

	return nil
}

// EnvString returns the named environment variable and whether it is
// set to a non-empty value.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// EnvInt parses an integer environment variable.
func EnvInt(key string) (int, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// EnvBool parses a boolean environment variable.
func EnvBool(key string) (bool, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return false, false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// EnvDuration parses a duration environment variable such as "90s".
func EnvDuration(key string) (time.Duration, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}
