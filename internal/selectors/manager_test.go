package selectors

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestNewManager_EmbeddedOnly(t *testing.T) {
	m, err := NewManager("", false)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer m.Close()

	if m.Get() != Get() {
		t.Error("Expected embedded selectors without an external file")
	}
}

func TestNewManager_ExternalFile(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "selectors.yaml")

	content := `
audio_track_labels:
  - "Tonspur"
original_labels:
  - "Original"
  - "Originalton"
`
	if err := os.WriteFile(tmpFile, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}

	m, err := NewManager(tmpFile, false)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer m.Close()

	sel := m.Get()
	if len(sel.AudioTrackLabels) != 1 || sel.AudioTrackLabels[0] != "Tonspur" {
		t.Errorf("AudioTrackLabels = %v, want [Tonspur]", sel.AudioTrackLabels)
	}
	if len(sel.OriginalLabels) != 2 {
		t.Errorf("OriginalLabels = %v, want 2 entries", sel.OriginalLabels)
	}

	// Embedded fields fill in what the file leaves out
	if sel.SettingsButton != Get().SettingsButton {
		t.Errorf("SettingsButton = %q, want embedded value", sel.SettingsButton)
	}
	if !sel.MatchesMobileUserAgent("Mozilla/5.0 (iPhone)") {
		t.Error("Merged selectors should keep a compiled mobile user agent pattern")
	}
}

func TestManager_Reload(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "selectors.yaml")
	if err := os.WriteFile(tmpFile, []byte("video: \"video.first\"\n"), 0644); err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}

	m, err := NewManager(tmpFile, false)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer m.Close()

	if got := m.Get().Video; got != "video.first" {
		t.Fatalf("Video = %q, want video.first", got)
	}

	if err := os.WriteFile(tmpFile, []byte("video: \"video.second\"\n"), 0644); err != nil {
		t.Fatalf("Failed to update temp file: %v", err)
	}
	if err := m.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if got := m.Get().Video; got != "video.second" {
		t.Errorf("Video after reload = %q, want video.second", got)
	}

	stats := m.Stats()
	if stats.ReloadCount != 2 {
		t.Errorf("ReloadCount = %d, want 2", stats.ReloadCount)
	}
}

func TestManager_Reload_WarnsOnNavigationEventChange(t *testing.T) {
	var buf bytes.Buffer
	orig := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = orig }()

	tmpFile := filepath.Join(t.TempDir(), "selectors.yaml")
	write := func(content string) {
		t.Helper()
		if err := os.WriteFile(tmpFile, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write selectors file: %v", err)
		}
	}
	const warning = "navigation_events changed"

	write("navigation_events:\n  - \"yt-navigate-finish\"\n")
	m, err := NewManager(tmpFile, false)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer m.Close()
	if strings.Contains(buf.String(), warning) {
		t.Error("initial load should not warn about navigation events")
	}

	write("navigation_events:\n  - \"yt-page-data-updated\"\n")
	if err := m.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if got := strings.Count(buf.String(), warning); got != 1 {
		t.Errorf("warnings after change = %d, want 1", got)
	}

	if err := m.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if got := strings.Count(buf.String(), warning); got != 1 {
		t.Errorf("warnings after unchanged reload = %d, want 1", got)
	}
}

func TestManager_Reload_InvalidYAML(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "selectors.yaml")
	if err := os.WriteFile(tmpFile, []byte("video: \"video.ok\"\n"), 0644); err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}

	m, err := NewManager(tmpFile, false)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer m.Close()

	if err := os.WriteFile(tmpFile, []byte("video: [unterminated\n"), 0644); err != nil {
		t.Fatalf("Failed to update temp file: %v", err)
	}
	if err := m.Reload(); err == nil {
		t.Fatal("Reload() should fail on invalid YAML")
	}

	// Previous selectors stay in effect
	if got := m.Get().Video; got != "video.ok" {
		t.Errorf("Video = %q, want video.ok", got)
	}
	if m.Stats().LastErrorStr == "" {
		t.Error("Expected LastErrorStr to be populated")
	}
}

func TestManager_Reload_BadUserAgentPattern(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "selectors.yaml")
	if err := os.WriteFile(tmpFile, []byte("mobile_user_agent: \"(unclosed\"\n"), 0644); err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}

	m, err := NewManager(tmpFile, false)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer m.Close()

	if m.Get() != Get() {
		t.Error("Expected embedded selectors when the override pattern does not compile")
	}
}

func TestManager_Reload_NoExternalPath(t *testing.T) {
	m := Static()
	defer m.Close()

	if err := m.Reload(); err == nil {
		t.Error("Reload() should fail without an external path")
	}
}

func TestManager_HotReload(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping hot-reload test in short mode")
	}

	tmpFile := filepath.Join(t.TempDir(), "selectors.yaml")
	if err := os.WriteFile(tmpFile, []byte("original_labels:\n  - \"before\"\n"), 0644); err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}

	m, err := NewManager(tmpFile, true)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer m.Close()

	if err := os.WriteFile(tmpFile, []byte("original_labels:\n  - \"after\"\n"), 0644); err != nil {
		t.Fatalf("Failed to update temp file: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if labels := m.Get().OriginalLabels; len(labels) == 1 && labels[0] == "after" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Errorf("OriginalLabels = %v after hot-reload, want [after]", m.Get().OriginalLabels)
}

func TestSelectors_Validate(t *testing.T) {
	if err := (&Selectors{}).Validate(); err == nil {
		t.Error("Validate() on empty selectors should fail")
	}
	if err := (&Selectors{OriginalLabels: []string{"original"}}).Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestManager_Close(t *testing.T) {
	m := Static()
	if err := m.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := m.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
