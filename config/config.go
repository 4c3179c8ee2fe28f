// Package config loads the service configuration from environment variables
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Environment names a deployment environment
type Environment string

const (
	EnvDevelopment Environment = "dev"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
)

// Config holds all application configuration
type Config struct {
	Port             string
	Address          string
	Env              Environment
	LogLevel         string
	LogDir           string
	LogRetentionDays int   // Days to keep log files
	MaxLogFileSize   int64 // Maximum log file size in bytes
	MaxRequestBody   int64 // Maximum request body size in bytes
	MaxHeaderSize    int64 // Maximum header size in bytes

	DataDir         string
	CatalogFile     string        // JSON catalog; empty uses the built-in datasets
	RefreshAt       []string      // HH:MM times of the daily refreshes
	DownloadTimeout time.Duration // Timeout of a single dataset download
	ExtraISO3       []string      // Codes accepted as countries besides ISO 3166-1
}

// Load loads and validates configuration from environment variables
func Load() (*Config, error) {
	timeout, err := time.ParseDuration(getEnvWithDefault("DOWNLOAD_TIMEOUT", "2m"))
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: invalid DOWNLOAD_TIMEOUT: %w", err)
	}

	cfg := &Config{
		Port:             getEnvWithDefault("PORT", "8000"),
		Address:          getEnvWithDefault("ADDRESS", "127.0.0.1"),
		Env:              Environment(strings.ToLower(getEnvWithDefault("ENV", "dev"))),
		LogLevel:         strings.ToLower(getEnvWithDefault("LOG_LEVEL", "info")),
		LogDir:           getEnvWithDefault("LOG_DIR", "logs"),
		LogRetentionDays: getIntEnvWithDefault("LOG_RETENTION_DAYS", 14),
		MaxLogFileSize:   getInt64EnvWithDefault("MAX_LOG_FILE_SIZE", 52428800), // 50MB
		MaxRequestBody:   getInt64EnvWithDefault("MAX_REQUEST_BODY", 1048576),   // 1MB
		MaxHeaderSize:    getInt64EnvWithDefault("MAX_HEADER_SIZE", 1048576),    // 1MB
		DataDir:          getEnvWithDefault("DATA_DIR", "data"),
		CatalogFile:      os.Getenv("CATALOG_FILE"),
		RefreshAt:        splitList(getEnvWithDefault("REFRESH_AT", "06:00;18:00"), ";"),
		DownloadTimeout:  timeout,
		ExtraISO3:        splitList(strings.ToUpper(getEnvWithDefault("EXTRA_ISO3", "XKX")), ","),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// RefreshSchedule returns RefreshAt in the gocron At() format
func (c *Config) RefreshSchedule() string {
	return strings.Join(c.RefreshAt, ";")
}

// validateConfig validates all configuration values
func validateConfig(cfg *Config) error {
	if err := validatePort(cfg.Port); err != nil {
		return fmt.Errorf("invalid PORT: %w", err)
	}

	if err := validateAddress(cfg.Address); err != nil {
		return fmt.Errorf("invalid ADDRESS: %w", err)
	}

	if err := validateEnv(cfg.Env); err != nil {
		return fmt.Errorf("invalid ENV: %w", err)
	}

	if err := validateLogLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	if err := validateSizeLimit(cfg.MaxRequestBody, "MAX_REQUEST_BODY"); err != nil {
		return fmt.Errorf("invalid MAX_REQUEST_BODY: %w", err)
	}

	if err := validateSizeLimit(cfg.MaxHeaderSize, "MAX_HEADER_SIZE"); err != nil {
		return fmt.Errorf("invalid MAX_HEADER_SIZE: %w", err)
	}

	if err := validateLogRetentionDays(cfg.LogRetentionDays); err != nil {
		return fmt.Errorf("invalid LOG_RETENTION_DAYS: %w", err)
	}

	if err := validateMaxLogFileSize(cfg.MaxLogFileSize); err != nil {
		return fmt.Errorf("invalid MAX_LOG_FILE_SIZE: %w", err)
	}

	if err := validateDir(cfg.DataDir); err != nil {
		return fmt.Errorf("invalid DATA_DIR: %w", err)
	}

	if err := validateRefreshAt(cfg.RefreshAt); err != nil {
		return fmt.Errorf("invalid REFRESH_AT: %w", err)
	}

	if cfg.DownloadTimeout < time.Second || cfg.DownloadTimeout > 30*time.Minute {
		return fmt.Errorf("invalid DOWNLOAD_TIMEOUT: must be between 1s and 30m, got: %s", cfg.DownloadTimeout)
	}

	for _, code := range cfg.ExtraISO3 {
		if len(code) != 3 || strings.Trim(code, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") != "" {
			return fmt.Errorf("invalid EXTRA_ISO3: %q is not three letters", code)
		}
	}

	return nil
}

// validatePort validates the PORT environment variable
func validatePort(port string) error {
	if port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("PORT must be a valid number: %w", err)
	}

	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	if portNum < 1024 {
		return fmt.Errorf("PORT %d is privileged (less than 1024), use ports 1024-65535", portNum)
	}

	return nil
}

// validateAddress validates the ADDRESS environment variable
func validateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("ADDRESS cannot be empty")
	}

	if address == "localhost" {
		return nil
	}

	ip := net.ParseIP(address)
	if ip == nil {
		return fmt.Errorf("ADDRESS must be a valid IP address or 'localhost', got: %s", address)
	}

	if !ip.IsLoopback() && !ip.IsPrivate() && !ip.IsUnspecified() {
		return fmt.Errorf("ADDRESS %s is a public IP, consider using private network ranges for security", address)
	}

	return nil
}

// validateEnv validates the ENV environment variable
func validateEnv(env Environment) error {
	switch env {
	case EnvDevelopment, EnvStaging, EnvProduction, EnvTest:
		return nil
	case "":
		return fmt.Errorf("ENV cannot be empty")
	}
	return fmt.Errorf("ENV must be one of: dev, staging, prod, test, got: %s", env)
}

// validateLogLevel validates the LOG_LEVEL environment variable
func validateLogLevel(logLevel string) error {
	switch logLevel {
	case "debug", "info", "warn", "error":
		return nil
	case "":
		return fmt.Errorf("LOG_LEVEL cannot be empty")
	}
	return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error, got: %s", logLevel)
}

// validateSizeLimit validates size limit configuration values
func validateSizeLimit(size int64, configName string) error {
	if size <= 0 {
		return fmt.Errorf("%s must be positive, got: %d", configName, size)
	}

	if size > 100*1024*1024 {
		return fmt.Errorf("%s is too large (max 100MB), got: %d bytes", configName, size)
	}

	return nil
}

// validateLogRetentionDays validates the LOG_RETENTION_DAYS environment variable
func validateLogRetentionDays(days int) error {
	if days <= 0 {
		return fmt.Errorf("LOG_RETENTION_DAYS must be positive, got: %d", days)
	}

	if days > 365 {
		return fmt.Errorf("LOG_RETENTION_DAYS is too large (max 365 days), got: %d", days)
	}

	return nil
}

// validateMaxLogFileSize validates the MAX_LOG_FILE_SIZE environment variable
func validateMaxLogFileSize(size int64) error {
	if size < 1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too small (min 1MB), got: %d bytes", size)
	}

	if size > 1024*1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too large (max 1GB), got: %d bytes", size)
	}

	return nil
}

// validateDir rejects empty directories and parent references
func validateDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("directory cannot be empty")
	}
	for _, part := range strings.Split(filepath.ToSlash(dir), "/") {
		if part == ".." {
			return fmt.Errorf("directory must not contain '..', got: %s", dir)
		}
	}
	return nil
}

// validateRefreshAt checks every entry is a HH:MM time of day
func validateRefreshAt(times []string) error {
	if len(times) == 0 {
		return fmt.Errorf("at least one refresh time is required")
	}
	for _, t := range times {
		if _, err := time.Parse("15:04", t); err != nil {
			return fmt.Errorf("%q is not a HH:MM time", t)
		}
	}
	return nil
}

// getEnvWithDefault gets an environment variable with a default value
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnvWithDefault gets an environment variable as int with a default value
func getIntEnvWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getInt64EnvWithDefault gets an environment variable as int64 with a default value
func getInt64EnvWithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func splitList(value, sep string) []string {
	var out []string
	for _, part := range strings.Split(value, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// GetEnvVars returns a list of all expected environment variables
func GetEnvVars() []string {
	return []string{
		"PORT",
		"ADDRESS",
		"ENV",
		"LOG_LEVEL",
		"LOG_DIR",
		"LOG_RETENTION_DAYS",
		"MAX_LOG_FILE_SIZE",
		"MAX_REQUEST_BODY",
		"MAX_HEADER_SIZE",
		"DATA_DIR",
		"CATALOG_FILE",
		"REFRESH_AT",
		"DOWNLOAD_TIMEOUT",
		"EXTRA_ISO3",
	}
}
