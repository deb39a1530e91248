package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"clinic-bff/pkg/logger"
)

// EnvPrefix namespaces environment overrides, e.g. CLINIC_BACKEND_BASE_URL.
const EnvPrefix = "CLINIC"

// ErrMissingBackendURL is returned when backend_base_url is not configured.
var ErrMissingBackendURL = errors.New("backend_base_url is required")

// Config holds all configuration values for the application
type Config struct {
	BackendBaseURL         string   `mapstructure:"backend_base_url"`
	BackendServiceToken    string   `mapstructure:"backend_service_token"` // Used when the browser sends no Authorization
	ServerPort             int      `mapstructure:"server_port"`
	ShutdownDrainSeconds   int      `mapstructure:"shutdown_drain_seconds"`
	ShutdownTimeoutSeconds int      `mapstructure:"shutdown_timeout_seconds"`
	AllowedOrigins         []string `mapstructure:"allowed_origins"`     // CORS allowed origins
	MaxRequestSizeMB       int      `mapstructure:"max_request_size_mb"` // Request body size limit in MB

	FetchMaxRetries      int  `mapstructure:"fetch_max_retries"`
	FetchInitialDelayMs  int  `mapstructure:"fetch_initial_delay_ms"`
	FetchTimeoutSeconds  int  `mapstructure:"fetch_timeout_seconds"` // Per attempt
	UpstreamCacheEnabled bool `mapstructure:"upstream_cache_enabled"`

	AdminPasskey         string `mapstructure:"admin_passkey"`
	LockoutMaxAttempts   int    `mapstructure:"lockout_max_attempts"`
	LockoutWindowSeconds int    `mapstructure:"lockout_window_seconds"`
	RedisAddr            string `mapstructure:"redis_addr"` // Empty = in-process lockout store
	RedisPassword        string `mapstructure:"redis_password"`
	RedisDB              int    `mapstructure:"redis_db"`

	UploadMaxSizeMB    int      `mapstructure:"upload_max_size_mb"`
	UploadAllowedTypes []string `mapstructure:"upload_allowed_types"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"` // "console" or "json"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend_base_url", "")
	v.SetDefault("backend_service_token", "")
	v.SetDefault("server_port", 8080)
	v.SetDefault("shutdown_drain_seconds", 2)
	v.SetDefault("shutdown_timeout_seconds", 10)
	v.SetDefault("allowed_origins", []string{"*"}) // Default wildcard for development
	v.SetDefault("max_request_size_mb", 10)
	v.SetDefault("fetch_max_retries", 5)
	v.SetDefault("fetch_initial_delay_ms", 2000)
	v.SetDefault("fetch_timeout_seconds", 15)
	v.SetDefault("upstream_cache_enabled", false)
	v.SetDefault("admin_passkey", "")
	v.SetDefault("lockout_max_attempts", 5)
	v.SetDefault("lockout_window_seconds", 900)
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("upload_max_size_mb", 5)
	v.SetDefault("upload_allowed_types", []string{"image/jpeg", "image/png", "application/pdf"})
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configuration from config.toml in . or ./config, with CLINIC_*
// environment overrides. A missing file is tolerated when the environment
// supplies the required keys.
func Load() (*Config, error) {
	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		logger.Warn("config.toml not found, using defaults and %s_* environment", EnvPrefix)
	}
	return build(v)
}

// LoadFile reads configuration from an explicit file path.
func LoadFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return build(v)
}

func build(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := config.validate(); err != nil {
		return nil, err
	}

	source := v.ConfigFileUsed()
	if source == "" {
		source = "environment"
	}
	logger.Info("Configuration loaded successfully from %s", source)
	logger.Info("  backend_base_url: %s", config.BackendBaseURL)
	logger.Info("  server_port: %d", config.ServerPort)
	logger.Info("  shutdown_drain_seconds: %d", config.ShutdownDrainSeconds)
	logger.Info("  shutdown_timeout_seconds: %d", config.ShutdownTimeoutSeconds)
	logger.Info("  allowed_origins: %v", config.AllowedOrigins)
	logger.Info("  max_request_size_mb: %d", config.MaxRequestSizeMB)
	logger.Info("  fetch: max_retries=%d initial_delay_ms=%d timeout_seconds=%d cache=%v",
		config.FetchMaxRetries, config.FetchInitialDelayMs, config.FetchTimeoutSeconds, config.UpstreamCacheEnabled)
	logger.Info("  lockout: max_attempts=%d window_seconds=%d store=%s",
		config.LockoutMaxAttempts, config.LockoutWindowSeconds, config.lockoutStoreName())
	logger.Info("  upload: max_size_mb=%d allowed_types=%v", config.UploadMaxSizeMB, config.UploadAllowedTypes)

	return &config, nil
}

// validate rejects unusable settings and normalises soft ones with a warning.
func (c *Config) validate() error {
	c.BackendBaseURL = strings.TrimSpace(c.BackendBaseURL)
	if c.BackendBaseURL == "" {
		return ErrMissingBackendURL
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("server_port %d out of range", c.ServerPort)
	}

	if c.BackendServiceToken == "" {
		logger.Warn("backend_service_token is empty - calls without a browser token are sent unauthenticated")
	}
	if c.AdminPasskey == "" {
		logger.Warn("admin_passkey is empty - POST /api/admin/passkey will answer 503")
	}
	if c.FetchMaxRetries < 1 {
		logger.Warn("fetch_max_retries < 1 (%d), defaulting to 1", c.FetchMaxRetries)
		c.FetchMaxRetries = 1
	}
	if c.FetchInitialDelayMs < 0 {
		logger.Warn("fetch_initial_delay_ms < 0 (%d), defaulting to 0", c.FetchInitialDelayMs)
		c.FetchInitialDelayMs = 0
	}
	if c.FetchTimeoutSeconds <= 0 {
		logger.Warn("fetch_timeout_seconds <= 0 (%d), defaulting to 15", c.FetchTimeoutSeconds)
		c.FetchTimeoutSeconds = 15
	}
	if c.MaxRequestSizeMB <= 0 {
		logger.Warn("max_request_size_mb <= 0 (%d), defaulting to 10", c.MaxRequestSizeMB)
		c.MaxRequestSizeMB = 10
	}
	if c.UploadMaxSizeMB <= 0 {
		logger.Warn("upload_max_size_mb <= 0 (%d), defaulting to 5", c.UploadMaxSizeMB)
		c.UploadMaxSizeMB = 5
	}
	if c.UploadMaxSizeMB >= c.MaxRequestSizeMB {
		logger.Warn("upload_max_size_mb (%d) >= max_request_size_mb (%d) - large uploads will be cut by the body limit",
			c.UploadMaxSizeMB, c.MaxRequestSizeMB)
	}
	if c.LockoutMaxAttempts <= 0 {
		logger.Warn("lockout_max_attempts <= 0 (%d), defaulting to 5", c.LockoutMaxAttempts)
		c.LockoutMaxAttempts = 5
	}
	if c.LockoutWindowSeconds <= 0 {
		logger.Warn("lockout_window_seconds <= 0 (%d), defaulting to 900", c.LockoutWindowSeconds)
		c.LockoutWindowSeconds = 900
	}

	switch c.LogFormat {
	case "console", "json":
	default:
		logger.Warn("unknown log_format=%q, defaulting to 'console'", c.LogFormat)
		c.LogFormat = "console"
	}
	return nil
}

func (c *Config) lockoutStoreName() string {
	if c.RedisAddr != "" {
		return "redis " + c.RedisAddr
	}
	return "memory"
}

// FetchInitialDelay returns the first backoff delay.
func (c *Config) FetchInitialDelay() time.Duration {
	return time.Duration(c.FetchInitialDelayMs) * time.Millisecond
}

// FetchTimeout returns the per-attempt HTTP timeout.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// LockoutWindow returns how long passkey failures are remembered.
func (c *Config) LockoutWindow() time.Duration {
	return time.Duration(c.LockoutWindowSeconds) * time.Second
}

// UploadMaxBytes returns the upload file size limit.
func (c *Config) UploadMaxBytes() int64 {
	return int64(c.UploadMaxSizeMB) << 20
}
