// Package config has the configuration file for the app
package config

import (
	"fmt"
	"net"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/giygas/medfinder-api/search"
)

// Environment is the deployment stage the server runs in
type Environment string

const (
	EnvDevelopment Environment = "dev"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
)

// ParseEnvironment accepts the short names and their long forms
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dev", "development":
		return EnvDevelopment, nil
	case "staging":
		return EnvStaging, nil
	case "prod", "production":
		return EnvProduction, nil
	case "test":
		return EnvTest, nil
	}
	return EnvDevelopment, fmt.Errorf("ENV must be one of: [dev staging prod test], got: %s", s)
}

func (e Environment) String() string {
	return string(e)
}

// Config holds all application configuration
type Config struct {
	Port              string
	Address           string
	Env               Environment
	LogLevel          string
	LogDir            string
	LogRetentionWeeks int   // Number of weeks to keep log files
	MaxLogFileSize    int64 // Maximum log file size in bytes
	MaxRequestBody    int64 // Maximum request body size in bytes
	MaxHeaderSize     int64 // Maximum header size in bytes

	CatalogPath           string
	CatalogReloadInterval time.Duration // 0 disables reloads
	IndexWorkers          int

	CacheTTL        time.Duration
	CacheMaxEntries int64 // 0 disables the result cache

	FuzzyAutoApplyThreshold float64
	FuzzySuggestThreshold   float64
	FuzzyAlgorithm          string

	AllowedOrigins []string
}

// Load loads and validates configuration from environment variables
func Load() (*Config, error) {
	env, err := ParseEnvironment(getEnvWithDefault("ENV", "dev"))
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: invalid ENV: %w", err)
	}

	defaults := search.DefaultSettings()

	cfg := &Config{
		Port:              getEnvWithDefault("PORT", "8000"),
		Address:           getEnvWithDefault("ADDRESS", "127.0.0.1"),
		Env:               env,
		LogLevel:          getEnvWithDefault("LOG_LEVEL", "info"),
		LogDir:            getEnvWithDefault("LOG_DIR", "logs"),
		LogRetentionWeeks: getIntEnvWithDefault("LOG_RETENTION_WEEKS", 4),         // 4 weeks default
		MaxLogFileSize:    getInt64EnvWithDefault("MAX_LOG_FILE_SIZE", 104857600), // 100MB default
		MaxRequestBody:    getInt64EnvWithDefault("MAX_REQUEST_BODY", 1048576),    // 1MB default
		MaxHeaderSize:     getInt64EnvWithDefault("MAX_HEADER_SIZE", 1048576),     // 1MB default

		CatalogPath:           getEnvWithDefault("CATALOG_PATH", "data/products.json"),
		CatalogReloadInterval: getDurationEnvWithDefault("CATALOG_RELOAD_INTERVAL", 15*time.Minute),
		IndexWorkers:          getIntEnvWithDefault("INDEX_WORKERS", runtime.GOMAXPROCS(0)),

		CacheTTL:        getDurationEnvWithDefault("CACHE_TTL", defaults.CacheTTL),
		CacheMaxEntries: getInt64EnvWithDefault("CACHE_MAX_ENTRIES", defaults.CacheMaxEntries),

		FuzzyAutoApplyThreshold: getFloatEnvWithDefault("FUZZY_AUTO_APPLY_THRESHOLD", defaults.AutoApplyThreshold),
		FuzzySuggestThreshold:   getFloatEnvWithDefault("FUZZY_SUGGEST_THRESHOLD", defaults.SuggestThreshold),
		FuzzyAlgorithm:          getEnvWithDefault("FUZZY_ALGORITHM", defaults.Algorithm),

		AllowedOrigins: getListEnvWithDefault("ALLOWED_ORIGINS", []string{"*"}),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// SearchSettings returns the engine settings carried by the configuration
func (c *Config) SearchSettings() search.Settings {
	return search.Settings{
		AutoApplyThreshold: c.FuzzyAutoApplyThreshold,
		SuggestThreshold:   c.FuzzySuggestThreshold,
		Algorithm:          c.FuzzyAlgorithm,
		CacheTTL:           c.CacheTTL,
		CacheMaxEntries:    c.CacheMaxEntries,
	}
}

// validateConfig validates all configuration values
func validateConfig(cfg *Config) error {
	if err := validatePort(cfg.Port); err != nil {
		return fmt.Errorf("invalid PORT: %w", err)
	}

	if err := validateAddress(cfg.Address); err != nil {
		return fmt.Errorf("invalid ADDRESS: %w", err)
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

	if err := validateLogRetentionWeeks(cfg.LogRetentionWeeks); err != nil {
		return fmt.Errorf("invalid LOG_RETENTION_WEEKS: %w", err)
	}

	if err := validateMaxLogFileSize(cfg.MaxLogFileSize); err != nil {
		return fmt.Errorf("invalid MAX_LOG_FILE_SIZE: %w", err)
	}

	if strings.TrimSpace(cfg.CatalogPath) == "" {
		return fmt.Errorf("invalid CATALOG_PATH: cannot be empty")
	}

	if err := validateReloadInterval(cfg.CatalogReloadInterval); err != nil {
		return fmt.Errorf("invalid CATALOG_RELOAD_INTERVAL: %w", err)
	}

	if cfg.IndexWorkers < 1 || cfg.IndexWorkers > 256 {
		return fmt.Errorf("invalid INDEX_WORKERS: must be between 1 and 256, got: %d", cfg.IndexWorkers)
	}

	if cfg.CacheMaxEntries < 0 {
		return fmt.Errorf("invalid CACHE_MAX_ENTRIES: must not be negative, got: %d", cfg.CacheMaxEntries)
	}

	if cfg.CacheMaxEntries > 0 && cfg.CacheTTL <= 0 {
		return fmt.Errorf("invalid CACHE_TTL: must be positive when the cache is enabled, got: %s", cfg.CacheTTL)
	}

	if err := validateThresholds(cfg.FuzzySuggestThreshold, cfg.FuzzyAutoApplyThreshold); err != nil {
		return err
	}

	if _, err := search.ParseAlgorithm(cfg.FuzzyAlgorithm); err != nil {
		return fmt.Errorf("invalid FUZZY_ALGORITHM: %w", err)
	}

	if len(cfg.AllowedOrigins) == 0 {
		return fmt.Errorf("invalid ALLOWED_ORIGINS: at least one origin is required")
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

	// Check for privileged ports
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

	if address == "127.0.0.1" || address == "::1" || address == "localhost" || address == "0.0.0.0" {
		return nil
	}

	ip := net.ParseIP(address)
	if ip == nil {
		return fmt.Errorf("ADDRESS must be a valid IP address or 'localhost', got: %s", address)
	}

	if !ip.IsLoopback() && !ip.IsPrivate() {
		return fmt.Errorf("ADDRESS %s is a public IP, consider using private network ranges for security", address)
	}

	return nil
}

// validateLogLevel validates the LOG_LEVEL environment variable
func validateLogLevel(logLevel string) error {
	if logLevel == "" {
		return fmt.Errorf("LOG_LEVEL cannot be empty")
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	logLevel = strings.ToLower(logLevel)

	for _, level := range validLevels {
		if logLevel == level {
			return nil
		}
	}

	return fmt.Errorf("LOG_LEVEL must be one of: %v, got: %s", validLevels, logLevel)
}

// validateSizeLimit validates size limit configuration values
func validateSizeLimit(size int64, configName string) error {
	if size <= 0 {
		return fmt.Errorf("%s must be positive, got: %d", configName, size)
	}

	if size > 100*1024*1024 { // 100MB
		return fmt.Errorf("%s is too large (max 100MB), got: %d bytes", configName, size)
	}

	return nil
}

// validateLogRetentionWeeks validates the LOG_RETENTION_WEEKS environment variable
func validateLogRetentionWeeks(weeks int) error {
	if weeks <= 0 {
		return fmt.Errorf("LOG_RETENTION_WEEKS must be positive, got: %d", weeks)
	}

	if weeks > 52 { // 1 year maximum
		return fmt.Errorf("LOG_RETENTION_WEEKS is too large (max 52 weeks), got: %d", weeks)
	}

	return nil
}

// validateMaxLogFileSize validates the MAX_LOG_FILE_SIZE environment variable
func validateMaxLogFileSize(size int64) error {
	if size <= 0 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE must be positive, got: %d", size)
	}

	// Minimum 1MB, maximum 1GB
	if size < 1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too small (min 1MB), got: %d bytes", size)
	}

	if size > 1024*1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too large (max 1GB), got: %d bytes", size)
	}

	return nil
}

// validateReloadInterval allows 0 (disabled) or anything from one minute up
func validateReloadInterval(interval time.Duration) error {
	if interval < 0 {
		return fmt.Errorf("must not be negative, got: %s", interval)
	}
	if interval > 0 && interval < time.Minute {
		return fmt.Errorf("must be at least 1m or 0 to disable, got: %s", interval)
	}
	return nil
}

// validateThresholds checks 0 < suggest <= auto-apply <= 1
func validateThresholds(suggest, autoApply float64) error {
	if suggest <= 0 || suggest > 1 {
		return fmt.Errorf("invalid FUZZY_SUGGEST_THRESHOLD: must be in (0, 1], got: %v", suggest)
	}
	if autoApply < suggest || autoApply > 1 {
		return fmt.Errorf("invalid FUZZY_AUTO_APPLY_THRESHOLD: must be in [%v, 1], got: %v", suggest, autoApply)
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

func getFloatEnvWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getDurationEnvWithDefault reads Go durations ("15m", "1h") or plain seconds
func getDurationEnvWithDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

// getListEnvWithDefault splits a comma separated variable
func getListEnvWithDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// GetEnvVars returns a list of all expected environment variables
func GetEnvVars() []string {
	return []string{
		"PORT",
		"ADDRESS",
		"ENV",
		"LOG_LEVEL",
		"LOG_DIR",
		"LOG_RETENTION_WEEKS",
		"MAX_LOG_FILE_SIZE",
		"MAX_REQUEST_BODY",
		"MAX_HEADER_SIZE",
		"CATALOG_PATH",
		"CATALOG_RELOAD_INTERVAL",
		"INDEX_WORKERS",
		"CACHE_TTL",
		"CACHE_MAX_ENTRIES",
		"FUZZY_AUTO_APPLY_THRESHOLD",
		"FUZZY_SUGGEST_THRESHOLD",
		"FUZZY_ALGORITHM",
		"ALLOWED_ORIGINS",
	}
}
