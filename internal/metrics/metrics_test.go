package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T) string {
	t.Helper()
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	return w.Body.String()
}

func TestHandler(t *testing.T) {
	if Handler() == nil {
		t.Fatal("Handler() returned nil")
	}

	UpdateTabMetrics(2)

	body := scrape(t)
	if !strings.Contains(body, "ytorigin_active_tabs 2") {
		t.Error("Expected active_tabs to be 2")
	}
}

func TestSetBuildInfo(t *testing.T) {
	SetBuildInfo("1.0.0", "go1.24")

	body := scrape(t)
	if !strings.Contains(body, "ytorigin_build_info") {
		t.Error("Expected ytorigin_build_info metric")
	}
	if !strings.Contains(body, `version="1.0.0"`) {
		t.Error("Expected version label in build_info")
	}
	if !strings.Contains(body, `go_version="go1.24"`) {
		t.Error("Expected go_version label in build_info")
	}
}

func TestRecorders(t *testing.T) {
	RecordNavigation("navigate")
	RecordNavigation("urlchange")
	RecordOutcome("original_selected", 1500*time.Millisecond)
	RecordRedirect()
	RecordWaitTimeout("element")
	RecordToggle(true)
	RecordToggle(false)

	body := scrape(t)
	for _, want := range []string{
		`ytorigin_navigation_events_total{source="navigate"}`,
		`ytorigin_navigation_events_total{source="urlchange"}`,
		`ytorigin_normalize_outcomes_total{outcome="original_selected"}`,
		"ytorigin_normalize_duration_seconds",
		"ytorigin_redirects_total",
		`ytorigin_wait_timeouts_total{kind="element"}`,
		`ytorigin_toggle_changes_total{enabled="true"}`,
		`ytorigin_toggle_changes_total{enabled="false"}`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected %s in metrics output", want)
		}
	}
}

func TestStartMemoryCollector(t *testing.T) {
	stopCh := make(chan struct{})

	go StartMemoryCollector(50*time.Millisecond, stopCh)
	time.Sleep(150 * time.Millisecond)
	close(stopCh)

	body := scrape(t)
	if !strings.Contains(body, "ytorigin_memory_usage_bytes") {
		t.Error("Expected ytorigin_memory_usage_bytes metric")
	}
	if !strings.Contains(body, "ytorigin_goroutines") {
		t.Error("Expected ytorigin_goroutines metric")
	}
}
