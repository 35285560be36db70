package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Ledger service
	LedgerBaseURL string
	LedgerToken   string
	LedgerTimeout time.Duration

	// View API server
	Port               string
	CORSOrigins        []string
	Env                string
	RateLimitPerMinute int
	RateLimitBurst     int

	// Dashboard
	RecentLimit int

	// Exports
	ExportDir string
	S3        S3Config
}

// S3Config holds AWS S3 configuration for archiving downloaded exports
type S3Config struct {
	Region          string
	Bucket          string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string // Optional: for MinIO/LocalStack local dev
}

// Enabled reports whether exports should be archived to S3 instead of the local directory
func (s S3Config) Enabled() bool {
	return s.Bucket != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	timeout, err := getDuration("LEDGER_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	recent, err := getInt("RECENT_LIMIT", 5)
	if err != nil {
		return nil, err
	}
	rpm, err := getInt("RATE_LIMIT_PER_MINUTE", 300)
	if err != nil {
		return nil, err
	}
	burst, err := getInt("RATE_LIMIT_BURST", 30)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		LedgerBaseURL:      strings.TrimSuffix(getEnv("LEDGER_BASE_URL", "http://localhost:8080/api/v1.0"), "/"),
		LedgerToken:        getEnv("LEDGER_TOKEN", ""),
		LedgerTimeout:      timeout,
		Port:               getEnv("PORT", "3001"),
		CORSOrigins:        strings.Split(getEnv("CORS_ORIGINS", "http://localhost:5173"), ","),
		Env:                getEnv("ENV", "development"),
		RateLimitPerMinute: rpm,
		RateLimitBurst:     burst,
		RecentLimit:        recent,
		ExportDir:          getEnv("EXPORT_DIR", "exports"),
		S3: S3Config{
			Region:          getEnv("S3_REGION", "us-east-1"),
			Bucket:          getEnv("S3_BUCKET", ""),
			Prefix:          getEnv("S3_PREFIX", "exports/"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Endpoint:        getEnv("S3_ENDPOINT", ""), // Empty = use AWS, set for MinIO/LocalStack
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.LedgerBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("LEDGER_BASE_URL must be an absolute URL, got %q", c.LedgerBaseURL)
	}
	if c.LedgerTimeout <= 0 {
		return fmt.Errorf("LEDGER_TIMEOUT must be positive")
	}
	if c.RecentLimit <= 0 {
		return fmt.Errorf("RECENT_LIMIT must be positive")
	}
	if c.RateLimitPerMinute <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE and RATE_LIMIT_BURST must be positive")
	}
	if !c.S3.Enabled() && c.ExportDir == "" {
		return fmt.Errorf("EXPORT_DIR is required when S3_BUCKET is not set")
	}
	return nil
}

// IsProduction reports whether ENV is production
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return v, nil
}
