// Package config provides application configuration with multi-source
// priority.
//
// Configuration sources (highest to lowest priority):
//  1. CLI flags (bound by the cmd package)
//  2. Environment variables
//  3. Config file (~/.cozemcp/config.yaml, or ./config.yaml)
//  4. Default values
//
// Security: the API token is masked in MarshalJSON/String so a logged config
// never leaks credentials.
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic error checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidBaseURL indicates the API base URL does not parse.
	ErrInvalidBaseURL = errors.New("invalid base URL")

	// ErrInvalidTimeout indicates a non-positive request timeout.
	ErrInvalidTimeout = errors.New("invalid timeout")

	// ErrInvalidPollSettings indicates out-of-range completion poll tuning.
	ErrInvalidPollSettings = errors.New("invalid poll settings")

	// ErrInvalidRate indicates a negative requests-per-second limit.
	ErrInvalidRate = errors.New("invalid rate limit")

	// ErrInvalidLogLevel indicates an unrecognized log level name.
	ErrInvalidLogLevel = errors.New("invalid log level")
)

// Config stores application configuration.
// SECURITY: Token is masked in MarshalJSON(); when adding new sensitive
// fields, update that method.
type Config struct {
	// Coze API access
	Token   string `mapstructure:"api_token" json:"api_token"` // SENSITIVE: masked in MarshalJSON
	BaseURL string `mapstructure:"base_url" json:"base_url"`
	SpaceID string `mapstructure:"space_id" json:"space_id"` // default workspace for listing tools

	// HTTP and completion polling behavior
	TimeoutSeconds      int `mapstructure:"timeout_seconds" json:"timeout_seconds"`
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds" json:"poll_interval_seconds"`
	PollMaxAttempts     int `mapstructure:"poll_max_attempts" json:"poll_max_attempts"`

	// Optional client-side pacing and GET response caching (0 disables)
	RequestsPerSecond float64 `mapstructure:"requests_per_second" json:"requests_per_second"`
	CacheTTLSeconds   int     `mapstructure:"cache_ttl_seconds" json:"cache_ttl_seconds"`

	// Logging
	LogLevel string `mapstructure:"log_level" json:"log_level"`
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`
}

// Load loads configuration with the documented priority. The cmd package
// binds CLI flags into the same viper instance before calling Load, which is
// what places flags above environment variables.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".cozemcp"))
	}
	v.AddConfigPath(".") // Also support current directory

	setDefaults(v)
	bindEnvVariables(v)

	// Read configuration file (if exists)
	if err := v.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// CRITICAL: Validate immediately (fail-fast)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("base_url", "https://api.coze.cn")
	v.SetDefault("space_id", "")
	v.SetDefault("timeout_seconds", 30)
	v.SetDefault("poll_interval_seconds", 2)
	v.SetDefault("poll_max_attempts", 30)
	v.SetDefault("requests_per_second", 0.0)
	v.SetDefault("cache_ttl_seconds", 0)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
}

// bindEnvVariables binds environment variables explicitly. COZE_API_TOKEN
// takes precedence over the legacy COZE_API_KEY alias.
func bindEnvVariables(v *viper.Viper) {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail)
	mustBind := func(key string, envVars ...string) {
		if err := v.BindEnv(append([]string{key}, envVars...)...); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q: %v", key, err))
		}
	}

	mustBind("api_token", "COZE_API_TOKEN", "COZE_API_KEY")
	mustBind("base_url", "COZE_API_BASE_URL")
	mustBind("space_id", "COZE_DEFAULT_SPACE_ID")
	mustBind("log_level", "COZE_LOG_LEVEL")
	mustBind("log_json", "COZE_LOG_JSON")
}

// Validate applies fail-fast range checks. A missing token is allowed here;
// the server rejects tool calls that need it with a clear error instead of
// refusing to start.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidBaseURL, c.BaseURL)
	}
	if c.TimeoutSeconds <= 0 {
		return fmt.Errorf("%w: timeout_seconds must be positive, got %d", ErrInvalidTimeout, c.TimeoutSeconds)
	}
	if c.PollIntervalSeconds <= 0 || c.PollMaxAttempts <= 0 {
		return fmt.Errorf("%w: interval %ds, attempts %d", ErrInvalidPollSettings, c.PollIntervalSeconds, c.PollMaxAttempts)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidRate, c.RequestsPerSecond)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel resolves the configured log level name.
func (c *Config) SlogLevel() (slog.Level, error) {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.LogLevel)
	}
}

// maskedValue is the placeholder for masked sensitive data.
// Using ████████ (full-width blocks U+2588) to avoid substring matching
// Previous attempts:
// - "****" failed: tokens with "*" leaked
// - "[REDACTED]" failed: tokens with "A", "D", "E", etc. leaked
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Shows first 2 and last 2 characters, masks the rest.
// SECURITY: For secrets <=8 chars, fully masks to prevent substring attacks.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	// Fully mask short secrets to prevent substring matching attacks
	if len(s) <= 8 {
		return maskedValue
	}
	// For longer secrets, show first/last 2 chars for debug utility
	// Example: "pat_0123456789abcdef" → "pa<████████>ef"
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.Token = maskSecret(a.Token)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
