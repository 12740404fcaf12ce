package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SHOWCASE_"

// Config holds application configuration.
type Config struct {
	// DataDir holds sketches.json, folders.json, gallery.json and history.db.
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// LegacyArtifact is a generated sketches module to seed from when the data
	// directory has neither sketches.json nor a usable snapshot. Relative paths
	// resolve against DataDir.
	LegacyArtifact string `json:"legacy_artifact" yaml:"legacy_artifact"`

	// Addr is the HTTP listen address.
	Addr string `json:"addr" yaml:"addr"`

	// Environment selects the log format: "production" (JSON) or "development" (console).
	Environment string `json:"environment" yaml:"environment"`

	LogLevel string `json:"log_level" yaml:"log_level"`

	// AdminUser and AdminPassword guard the mutation endpoints.
	// An empty password disables the admin API entirely.
	AdminUser     string `json:"admin_user" yaml:"admin_user"`
	AdminPassword string `json:"admin_password" yaml:"admin_password"`

	// RateLimitRPS and RateLimitBurst size the token bucket in front of admin routes.
	RateLimitRPS   float64 `json:"rate_limit_rps" yaml:"rate_limit_rps"`
	RateLimitBurst int     `json:"rate_limit_burst" yaml:"rate_limit_burst"`

	// LockoutAttempts failed logins within LockoutWindowSeconds lock a client out.
	LockoutAttempts      int `json:"lockout_attempts" yaml:"lockout_attempts"`
	LockoutWindowSeconds int `json:"lockout_window_seconds" yaml:"lockout_window_seconds"`

	// MaxBodyBytes caps request bodies.
	MaxBodyBytes int64 `json:"max_body_bytes" yaml:"max_body_bytes"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		DataDir:              "data",
		Addr:                 ":8080",
		Environment:          "production",
		LogLevel:             "info",
		AdminUser:            "admin",
		RateLimitRPS:         5,
		RateLimitBurst:       10,
		LockoutAttempts:      5,
		LockoutWindowSeconds: 900,
		MaxBodyBytes:         1 << 20,
	}
}

// LegacyArtifactPath returns LegacyArtifact resolved against DataDir,
// or "" when none is configured.
func (c *Config) LegacyArtifactPath() string {
	if c.LegacyArtifact == "" || filepath.IsAbs(c.LegacyArtifact) {
		return c.LegacyArtifact
	}
	return filepath.Join(c.DataDir, c.LegacyArtifact)
}

// LockoutWindow returns the lockout window as a duration.
func (c *Config) LockoutWindow() time.Duration {
	return time.Duration(c.LockoutWindowSeconds) * time.Second
}

// Load loads configuration from dir/config.yaml (or config.yml, or
// config.json, first found wins) over the defaults.
// Returns default config if no file exists.
func Load(dir string) (*Config, error) {
	for _, name := range []string{"config.yaml", "config.yml", "config.json"} {
		cfg, found, err := loadFileRaw(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		if found {
			return Merge(DefaultConfig(), cfg), nil
		}
	}
	return DefaultConfig(), nil
}

// Resolve loads the file configuration from dir, then applies dir/.env and
// SHOWCASE_* environment variables. Variables already set in the process
// environment win over .env entries.
func Resolve(dir string) (*Config, error) {
	cfg, err := Load(dir)
	if err != nil {
		return nil, err
	}
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns found=false if the file doesn't exist.
func loadFileRaw(configPath string) (*Config, bool, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}

	cfg := &Config{}
	if strings.HasSuffix(configPath, ".json") {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to parse %s: %w", filepath.Base(configPath), err)
	}
	return cfg, true, nil
}

// Merge combines base and overlay configs. Overlay values win when non-zero.
func Merge(base, overlay *Config) *Config {
	result := *base

	if overlay.DataDir != "" {
		result.DataDir = overlay.DataDir
	}
	if overlay.LegacyArtifact != "" {
		result.LegacyArtifact = overlay.LegacyArtifact
	}
	if overlay.Addr != "" {
		result.Addr = overlay.Addr
	}
	if overlay.Environment != "" {
		result.Environment = overlay.Environment
	}
	if overlay.LogLevel != "" {
		result.LogLevel = overlay.LogLevel
	}
	if overlay.AdminUser != "" {
		result.AdminUser = overlay.AdminUser
	}
	if overlay.AdminPassword != "" {
		result.AdminPassword = overlay.AdminPassword
	}
	if overlay.RateLimitRPS != 0 {
		result.RateLimitRPS = overlay.RateLimitRPS
	}
	if overlay.RateLimitBurst != 0 {
		result.RateLimitBurst = overlay.RateLimitBurst
	}
	if overlay.LockoutAttempts != 0 {
		result.LockoutAttempts = overlay.LockoutAttempts
	}
	if overlay.LockoutWindowSeconds != 0 {
		result.LockoutWindowSeconds = overlay.LockoutWindowSeconds
	}
	if overlay.MaxBodyBytes != 0 {
		result.MaxBodyBytes = overlay.MaxBodyBytes
	}

	return &result
}

// ApplyEnv overrides cfg from SHOWCASE_* variables found through lookup.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	str("DATA_DIR", &cfg.DataDir)
	str("LEGACY_ARTIFACT", &cfg.LegacyArtifact)
	str("ADDR", &cfg.Addr)
	str("ENV", &cfg.Environment)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("ADMIN_USER", &cfg.AdminUser)
	str("ADMIN_PASSWORD", &cfg.AdminPassword)

	ints := []struct {
		key string
		dst *int
	}{
		{"RATE_LIMIT_BURST", &cfg.RateLimitBurst},
		{"LOCKOUT_ATTEMPTS", &cfg.LockoutAttempts},
		{"LOCKOUT_WINDOW_SECONDS", &cfg.LockoutWindowSeconds},
	}
	for _, it := range ints {
		v, ok := lookup(EnvPrefix + it.key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("%s%s must be a positive integer, got %q", EnvPrefix, it.key, v)
		}
		*it.dst = n
	}

	if v, ok := lookup(EnvPrefix + "RATE_LIMIT_RPS"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return fmt.Errorf("%sRATE_LIMIT_RPS must be a positive number, got %q", EnvPrefix, v)
		}
		cfg.RateLimitRPS = f
	}
	if v, ok := lookup(EnvPrefix + "MAX_BODY_BYTES"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return fmt.Errorf("%sMAX_BODY_BYTES must be a positive integer, got %q", EnvPrefix, v)
		}
		cfg.MaxBodyBytes = n
	}

	return nil
}
