package config

import (
	"path/filepath"
	"testing"
	"time"
)

var configEnvVars = []string{
	"HOST", "PORT", "HEADLESS", "BROWSER_PATH", "USER_DATA_DIR", "START_URLS",
	"EMULATE_MOBILE", "USER_AGENT",
	"ELEMENT_TIMEOUT", "AD_TIMEOUT", "AD_TIMEOUT_POLICY", "SUBMENU_TIMEOUT", "HEADER_TIMEOUT",
	"REDIRECT_PERMISSIVE", "MOBILE_HOST", "DESKTOP_PARAM",
	"PREFS_BACKEND", "PREFS_PATH", "REDIS_URL",
	"SELECTORS_PATH", "SELECTORS_HOT_RELOAD",
	"LOG_LEVEL", "LOG_JSON", "PROMETHEUS_ENABLED", "PROMETHEUS_PORT",
	"API_KEY_ENABLED", "API_KEY", "DATA_DIR",
}

func clearEnv(t *testing.T) {
	t.Helper()
	// t.Setenv restores the previous value at test end; an empty value means unset for getEnv*.
	for _, env := range configEnvVars {
		t.Setenv(env, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	if cfg.Host != "127.0.0.1" {
		t.Errorf("Expected default host '127.0.0.1', got %q", cfg.Host)
	}
	if cfg.Port != defaultPort {
		t.Errorf("Expected default port %d, got %d", defaultPort, cfg.Port)
	}
	if cfg.Headless {
		t.Error("Expected Headless to be false by default")
	}
	if len(cfg.StartURLs) != 1 || cfg.StartURLs[0] != "https://www.youtube.com/" {
		t.Errorf("Unexpected default StartURLs %v", cfg.StartURLs)
	}
	if cfg.ElementTimeout != 10*time.Second {
		t.Errorf("Expected element timeout 10s, got %v", cfg.ElementTimeout)
	}
	if cfg.AdTimeoutPolicy != AdPolicyProceed {
		t.Errorf("Expected ad policy %q, got %q", AdPolicyProceed, cfg.AdTimeoutPolicy)
	}
	if cfg.FailOnAdTimeout() {
		t.Error("Expected FailOnAdTimeout() to be false by default")
	}
	if cfg.MobileHost != "m.youtube.com" {
		t.Errorf("Expected mobile host m.youtube.com, got %q", cfg.MobileHost)
	}
	if key, value := cfg.DesktopParamPair(); key != "app" || value != "desktop" {
		t.Errorf("DesktopParamPair() = %q, %q, want app, desktop", key, value)
	}
	if cfg.PrefsBackend != PrefsBackendSQLite {
		t.Errorf("Expected sqlite backend, got %q", cfg.PrefsBackend)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected log level info, got %q", cfg.LogLevel)
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("HEADLESS", "true")
	t.Setenv("START_URLS", "https://m.youtube.com/, https://www.youtube.com/watch?v=abc")
	t.Setenv("ELEMENT_TIMEOUT", "3s")
	t.Setenv("AD_TIMEOUT_POLICY", "fail")
	t.Setenv("PREFS_BACKEND", "memory")
	t.Setenv("DATA_DIR", "/tmp/ytorigin-test")

	cfg := Load()
	cfg.Validate()

	if cfg.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Port)
	}
	if !cfg.Headless {
		t.Error("Headless = false, want true")
	}
	if len(cfg.StartURLs) != 2 || cfg.StartURLs[0] != "https://m.youtube.com/" {
		t.Errorf("StartURLs = %v", cfg.StartURLs)
	}
	if cfg.ElementTimeout != 3*time.Second {
		t.Errorf("ElementTimeout = %v, want 3s", cfg.ElementTimeout)
	}
	if !cfg.FailOnAdTimeout() {
		t.Error("FailOnAdTimeout() = false, want true")
	}
	if cfg.PrefsBackend != PrefsBackendMemory {
		t.Errorf("PrefsBackend = %q, want memory", cfg.PrefsBackend)
	}
	if got, want := cfg.PrefsFile(), filepath.Join("/tmp/ytorigin-test", "prefs.db"); got != want {
		t.Errorf("PrefsFile() = %q, want %q", got, want)
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "not-a-number")
	t.Setenv("HEADLESS", "maybe")
	t.Setenv("ELEMENT_TIMEOUT", "-5s")

	cfg := Load()

	if cfg.Port != defaultPort {
		t.Errorf("Port = %d, want default %d", cfg.Port, defaultPort)
	}
	if cfg.Headless {
		t.Error("Headless should fall back to false")
	}
	if cfg.ElementTimeout != 10*time.Second {
		t.Errorf("ElementTimeout = %v, want 10s", cfg.ElementTimeout)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		check  func(*testing.T, *Config)
	}{
		{
			name:   "port out of range",
			mutate: func(c *Config) { c.Port = 70000 },
			check: func(t *testing.T, c *Config) {
				if c.Port != defaultPort {
					t.Errorf("Port = %d, want %d", c.Port, defaultPort)
				}
			},
		},
		{
			name:   "wait timeout capped",
			mutate: func(c *Config) { c.AdTimeout = time.Hour },
			check: func(t *testing.T, c *Config) {
				if c.AdTimeout != maxWaitTimeout {
					t.Errorf("AdTimeout = %v, want %v", c.AdTimeout, maxWaitTimeout)
				}
			},
		},
		{
			name:   "wait timeout too short",
			mutate: func(c *Config) { c.SubmenuTimeout = time.Millisecond },
			check: func(t *testing.T, c *Config) {
				if c.SubmenuTimeout != 2*time.Second {
					t.Errorf("SubmenuTimeout = %v, want 2s", c.SubmenuTimeout)
				}
			},
		},
		{
			name:   "unknown ad policy",
			mutate: func(c *Config) { c.AdTimeoutPolicy = "ignore" },
			check: func(t *testing.T, c *Config) {
				if c.AdTimeoutPolicy != AdPolicyProceed {
					t.Errorf("AdTimeoutPolicy = %q, want proceed", c.AdTimeoutPolicy)
				}
			},
		},
		{
			name:   "redis without url",
			mutate: func(c *Config) { c.PrefsBackend = "REDIS" },
			check: func(t *testing.T, c *Config) {
				if c.PrefsBackend != PrefsBackendSQLite {
					t.Errorf("PrefsBackend = %q, want sqlite", c.PrefsBackend)
				}
			},
		},
		{
			name:   "malformed desktop param",
			mutate: func(c *Config) { c.DesktopParam = "desktop" },
			check: func(t *testing.T, c *Config) {
				if c.DesktopParam != "app=desktop" {
					t.Errorf("DesktopParam = %q, want app=desktop", c.DesktopParam)
				}
			},
		},
		{
			name:   "hot reload without path",
			mutate: func(c *Config) { c.SelectorsHotReload = true },
			check: func(t *testing.T, c *Config) {
				if c.SelectorsHotReload {
					t.Error("SelectorsHotReload should be disabled without a path")
				}
			},
		},
		{
			name:   "metrics port conflict",
			mutate: func(c *Config) { c.PrometheusEnabled = true; c.PrometheusPort = c.Port },
			check: func(t *testing.T, c *Config) {
				if c.PrometheusEnabled {
					t.Error("PrometheusEnabled should be disabled on port conflict")
				}
			},
		},
		{
			name:   "bad log level",
			mutate: func(c *Config) { c.LogLevel = "LOUD" },
			check: func(t *testing.T, c *Config) {
				if c.LogLevel != "info" {
					t.Errorf("LogLevel = %q, want info", c.LogLevel)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			cfg := Load()
			tt.mutate(cfg)
			cfg.Validate()
			tt.check(t, cfg)
		})
	}
}
