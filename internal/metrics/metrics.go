// Package metrics provides Prometheus metrics for monitoring ytorigin.
package metrics

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// NavigationEvents counts processing triggers by source.
	NavigationEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ytorigin_navigation_events_total",
			Help: "Total processing triggers by source",
		},
		[]string{"source"},
	)

	// NormalizeOutcomes counts audio track normalizer results.
	NormalizeOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ytorigin_normalize_outcomes_total",
			Help: "Total audio track normalizer attempts by outcome",
		},
		[]string{"outcome"},
	)

	// NormalizeDuration tracks how long a full processing run takes.
	NormalizeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ytorigin_normalize_duration_seconds",
			Help:    "Duration of the wait and click sequence in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		},
	)

	// Redirects counts desktop redirects initiated.
	Redirects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ytorigin_redirects_total",
			Help: "Total mobile to desktop redirects initiated",
		},
	)

	// WaitTimeouts counts bounded waits that ran out of time.
	WaitTimeouts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ytorigin_wait_timeouts_total",
			Help: "Total wait timeouts by kind",
		},
		[]string{"kind"},
	)

	// ToggleChanges counts redirect preference changes by new value.
	ToggleChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ytorigin_toggle_changes_total",
			Help: "Total redirect preference changes by new value",
		},
		[]string{"enabled"},
	)

	// ActiveTabs shows the number of watched tabs.
	ActiveTabs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ytorigin_active_tabs",
			Help: "Number of watched tabs",
		},
	)

	// MemoryUsageBytes shows current memory usage.
	MemoryUsageBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ytorigin_memory_usage_bytes",
			Help: "Current memory usage in bytes (alloc)",
		},
	)

	// GoroutineCount shows current goroutine count.
	GoroutineCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ytorigin_goroutines",
			Help: "Current number of goroutines",
		},
	)

	// BuildInfo provides build information as labels.
	BuildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ytorigin_build_info",
			Help: "Build information",
		},
		[]string{"version", "go_version"},
	)
)

func init() {
	prometheus.MustRegister(
		NavigationEvents,
		NormalizeOutcomes,
		NormalizeDuration,
		Redirects,
		WaitTimeouts,
		ToggleChanges,
		ActiveTabs,
		MemoryUsageBytes,
		GoroutineCount,
		BuildInfo,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetBuildInfo sets the build info metric.
func SetBuildInfo(version, goVersion string) {
	BuildInfo.WithLabelValues(version, goVersion).Set(1)
}

// StartMemoryCollector periodically updates memory metrics until stopCh closes.
func StartMemoryCollector(interval time.Duration, stopCh <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			updateMemoryMetrics()
		case <-stopCh:
			return
		}
	}
}

func updateMemoryMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	MemoryUsageBytes.Set(float64(m.Alloc))
	GoroutineCount.Set(float64(runtime.NumGoroutine()))
}

// RecordNavigation records a processing trigger.
func RecordNavigation(source string) {
	NavigationEvents.WithLabelValues(source).Inc()
}

// RecordOutcome records a normalizer result and the time the run took.
func RecordOutcome(outcome string, duration time.Duration) {
	NormalizeOutcomes.WithLabelValues(outcome).Inc()
	NormalizeDuration.Observe(duration.Seconds())
}

// RecordRedirect records a desktop redirect.
func RecordRedirect() {
	Redirects.Inc()
}

// RecordWaitTimeout records a wait that ran out of time.
func RecordWaitTimeout(kind string) {
	WaitTimeouts.WithLabelValues(kind).Inc()
}

// RecordToggle records a redirect preference change.
func RecordToggle(enabled bool) {
	label := "false"
	if enabled {
		label = "true"
	}
	ToggleChanges.WithLabelValues(label).Inc()
}

// UpdateTabMetrics updates the watched tab gauge.
func UpdateTabMetrics(count int) {
	ActiveTabs.Set(float64(count))
}
