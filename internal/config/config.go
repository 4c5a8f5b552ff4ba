// Package config provides application configuration management.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Configuration bounds.
const (
	maxStartURLs      = 16
	maxWaitTimeout    = 2 * time.Minute
	minWaitTimeout    = 100 * time.Millisecond
	minAPIKeyLength   = 16
	defaultPort       = 8192
	defaultMetricPort = 9192
)

// Ad timeout policies.
const (
	AdPolicyProceed = "proceed"
	AdPolicyFail    = "fail"
)

// Preference backends.
const (
	PrefsBackendSQLite = "sqlite"
	PrefsBackendRedis  = "redis"
	PrefsBackendMemory = "memory"
)

// Config holds all application configuration.
// Configuration is loaded from environment variables (and an optional .env file) at startup.
type Config struct {
	// Control API
	Host string
	Port int

	// Browser settings
	Headless      bool
	BrowserPath   string
	UserDataDir   string
	StartURLs     []string
	EmulateMobile bool
	UserAgent     string

	// Wait bounds
	ElementTimeout  time.Duration
	AdTimeout       time.Duration
	AdTimeoutPolicy string
	SubmenuTimeout  time.Duration
	HeaderTimeout   time.Duration

	// Redirect behavior
	RedirectPermissive bool
	MobileHost         string
	DesktopParam       string // key=value appended to force the desktop layout

	// Preference storage
	PrefsBackend string
	PrefsPath    string
	RedisURL     string

	// Selectors settings
	SelectorsPath      string
	SelectorsHotReload bool

	// Logging
	LogLevel string
	LogJSON  bool

	// Metrics
	PrometheusEnabled bool
	PrometheusPort    int

	// API Key Authentication
	APIKeyEnabled bool
	APIKey        string

	// DataDir holds the instance lock and the default sqlite preference file.
	DataDir string
}

// Load loads configuration from environment variables.
// A .env file in the working directory is read first; real environment
// variables always win over values from the file.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg("Failed to read .env file, using process environment only")
	}

	return &Config{
		Host: getEnvString("HOST", "127.0.0.1"),
		Port: getEnvInt("PORT", defaultPort),

		Headless:      getEnvBool("HEADLESS", false),
		BrowserPath:   getEnvString("BROWSER_PATH", ""),
		UserDataDir:   getEnvString("USER_DATA_DIR", ""),
		StartURLs:     getEnvStringSlice("START_URLS", []string{"https://www.youtube.com/"}),
		EmulateMobile: getEnvBool("EMULATE_MOBILE", false),
		UserAgent:     getEnvString("USER_AGENT", ""),

		ElementTimeout:  getEnvDuration("ELEMENT_TIMEOUT", 10*time.Second),
		AdTimeout:       getEnvDuration("AD_TIMEOUT", 30*time.Second),
		AdTimeoutPolicy: getEnvString("AD_TIMEOUT_POLICY", AdPolicyProceed),
		SubmenuTimeout:  getEnvDuration("SUBMENU_TIMEOUT", 2*time.Second),
		HeaderTimeout:   getEnvDuration("HEADER_TIMEOUT", 10*time.Second),

		RedirectPermissive: getEnvBool("REDIRECT_PERMISSIVE", false),
		MobileHost:         getEnvString("MOBILE_HOST", "m.youtube.com"),
		DesktopParam:       getEnvString("DESKTOP_PARAM", "app=desktop"),

		PrefsBackend: getEnvString("PREFS_BACKEND", PrefsBackendSQLite),
		PrefsPath:    getEnvString("PREFS_PATH", ""),
		RedisURL:     getEnvString("REDIS_URL", ""),

		SelectorsPath:      getEnvString("SELECTORS_PATH", ""),
		SelectorsHotReload: getEnvBool("SELECTORS_HOT_RELOAD", false),

		LogLevel: getEnvString("LOG_LEVEL", "info"),
		LogJSON:  getEnvBool("LOG_JSON", false),

		PrometheusEnabled: getEnvBool("PROMETHEUS_ENABLED", false),
		PrometheusPort:    getEnvInt("PROMETHEUS_PORT", defaultMetricPort),

		APIKeyEnabled: getEnvBool("API_KEY_ENABLED", false),
		APIKey:        getEnvString("API_KEY", ""),

		DataDir: getEnvString("DATA_DIR", defaultDataDir()),
	}
}

// DesktopParamPair splits DesktopParam into its query key and value.
func (c *Config) DesktopParamPair() (key, value string) {
	key, value, _ = strings.Cut(c.DesktopParam, "=")
	return key, value
}

// PrefsFile returns the sqlite file used by the sqlite preference backend.
func (c *Config) PrefsFile() string {
	if c.PrefsPath != "" {
		return c.PrefsPath
	}
	return filepath.Join(c.DataDir, "prefs.db")
}

// LockFile returns the single-instance lock path.
func (c *Config) LockFile() string {
	return filepath.Join(c.DataDir, "ytorigin.lock")
}

// FailOnAdTimeout reports whether an ad that never clears aborts the attempt.
func (c *Config) FailOnAdTimeout() bool {
	return c.AdTimeoutPolicy == AdPolicyFail
}

// EnsureDirectories creates DataDir if needed.
func (c *Config) EnsureDirectories() error {
	return os.MkdirAll(c.DataDir, 0o755)
}

// Validate checks configuration values and logs warnings for invalid values.
// Invalid values are corrected to sensible defaults.
func (c *Config) Validate() {
	if c.Port < 0 || c.Port > 65535 {
		log.Warn().Int("port", c.Port).Int("default", defaultPort).Msg("Invalid port, using default")
		c.Port = defaultPort
	}
	if c.PrometheusEnabled && (c.PrometheusPort <= 0 || c.PrometheusPort > 65535) {
		log.Warn().Int("port", c.PrometheusPort).Msg("Invalid metrics port, using default")
		c.PrometheusPort = defaultMetricPort
	}
	if c.PrometheusEnabled && c.PrometheusPort == c.Port {
		log.Error().Int("port", c.Port).Msg("PROMETHEUS_PORT conflicts with PORT, disabling metrics server")
		c.PrometheusEnabled = false
	}

	// BrowserPath validation - prevent path traversal
	if c.BrowserPath != "" && strings.Contains(c.BrowserPath, "..") {
		log.Error().
			Str("path", c.BrowserPath).
			Msg("BrowserPath contains path traversal sequence (..), ignoring")
		c.BrowserPath = ""
	}

	if len(c.StartURLs) == 0 {
		log.Warn().Msg("START_URLS is empty, using the site home page")
		c.StartURLs = []string{"https://www.youtube.com/"}
	} else if len(c.StartURLs) > maxStartURLs {
		log.Warn().
			Int("count", len(c.StartURLs)).
			Int("max", maxStartURLs).
			Msg("Too many start URLs, truncating")
		c.StartURLs = c.StartURLs[:maxStartURLs]
	}

	c.ElementTimeout = clampWait("ELEMENT_TIMEOUT", c.ElementTimeout, 10*time.Second)
	c.AdTimeout = clampWait("AD_TIMEOUT", c.AdTimeout, 30*time.Second)
	c.SubmenuTimeout = clampWait("SUBMENU_TIMEOUT", c.SubmenuTimeout, 2*time.Second)
	c.HeaderTimeout = clampWait("HEADER_TIMEOUT", c.HeaderTimeout, 10*time.Second)

	c.AdTimeoutPolicy = strings.ToLower(strings.TrimSpace(c.AdTimeoutPolicy))
	if c.AdTimeoutPolicy != AdPolicyProceed && c.AdTimeoutPolicy != AdPolicyFail {
		log.Warn().Str("policy", c.AdTimeoutPolicy).Msg("Invalid AD_TIMEOUT_POLICY, using 'proceed'")
		c.AdTimeoutPolicy = AdPolicyProceed
	}

	c.MobileHost = strings.ToLower(strings.TrimSpace(c.MobileHost))
	if c.MobileHost == "" {
		log.Warn().Msg("MOBILE_HOST is empty, using m.youtube.com")
		c.MobileHost = "m.youtube.com"
	}
	if key, value := c.DesktopParamPair(); key == "" || value == "" {
		log.Warn().Str("param", c.DesktopParam).Msg("DESKTOP_PARAM must look like key=value, using app=desktop")
		c.DesktopParam = "app=desktop"
	}

	c.PrefsBackend = strings.ToLower(strings.TrimSpace(c.PrefsBackend))
	switch c.PrefsBackend {
	case PrefsBackendSQLite, PrefsBackendMemory:
	case PrefsBackendRedis:
		if c.RedisURL == "" {
			log.Error().Msg("PREFS_BACKEND is redis but REDIS_URL is empty, falling back to sqlite")
			c.PrefsBackend = PrefsBackendSQLite
		}
	default:
		log.Warn().Str("backend", c.PrefsBackend).Msg("Invalid PREFS_BACKEND, using 'sqlite'")
		c.PrefsBackend = PrefsBackendSQLite
	}
	if c.PrefsBackend == PrefsBackendMemory {
		log.Info().Msg("Memory preference backend selected - redirect preference resets every start")
	}

	if c.SelectorsPath != "" && strings.Contains(c.SelectorsPath, "..") {
		log.Error().
			Str("path", c.SelectorsPath).
			Msg("SelectorsPath contains path traversal sequence (..), ignoring")
		c.SelectorsPath = ""
	}
	if c.SelectorsHotReload && c.SelectorsPath == "" {
		log.Warn().Msg("SELECTORS_HOT_RELOAD enabled but SELECTORS_PATH not set - hot-reload disabled")
		c.SelectorsHotReload = false
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true,
	}
	c.LogLevel = strings.ToLower(c.LogLevel)
	if !validLogLevels[c.LogLevel] {
		log.Warn().Str("level", c.LogLevel).Msg("Invalid log level, using 'info'")
		c.LogLevel = "info"
	}

	if c.APIKeyEnabled {
		switch {
		case c.APIKey == "":
			log.Error().Msg("API_KEY_ENABLED is true but API_KEY is empty - authentication will always fail")
		case len(c.APIKey) < minAPIKeyLength:
			log.Error().
				Int("length", len(c.APIKey)).
				Int("min_required", minAPIKeyLength).
				Msg("API_KEY is too short for secure authentication - consider using a longer key")
		}
	}
	if c.Host != "127.0.0.1" && c.Host != "localhost" && !c.APIKeyEnabled {
		log.Warn().Str("host", c.Host).Msg("Control API bound to a non-loopback address without an API key")
	}
}

func clampWait(key string, d, fallback time.Duration) time.Duration {
	if d < minWaitTimeout {
		log.Warn().Str("key", key).Dur("value", d).Dur("default", fallback).Msg("Wait timeout too short, using default")
		return fallback
	}
	if d > maxWaitTimeout {
		log.Warn().Str("key", key).Dur("value", d).Dur("max", maxWaitTimeout).Msg("Wait timeout too long, capping to maximum")
		return maxWaitTimeout
	}
	return d
}

func defaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return ".ytorigin"
	}
	return filepath.Join(dir, "ytorigin")
}

// Helper functions for environment variable parsing

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		intValue, err := strconv.ParseInt(value, 10, 32)
		if err == nil {
			return int(intValue)
		}
		log.Warn().
			Str("key", key).
			Str("value", value).
			Err(err).
			Int("default", defaultValue).
			Msg("Invalid integer in environment variable, using default")
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		boolValue, err := strconv.ParseBool(value)
		if err == nil {
			return boolValue
		}
		log.Warn().
			Str("key", key).
			Str("value", value).
			Err(err).
			Bool("default", defaultValue).
			Msg("Invalid boolean in environment variable, using default")
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err == nil {
			if duration > 0 {
				return duration
			}
			log.Warn().
				Str("key", key).
				Str("value", value).
				Dur("default", defaultValue).
				Msg("Duration must be positive, using default")
			return defaultValue
		}
		log.Warn().
			Str("key", key).
			Str("value", value).
			Err(err).
			Dur("default", defaultValue).
			Msg("Invalid duration in environment variable, using default")
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
