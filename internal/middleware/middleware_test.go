package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Rorqualx/ytorigin/internal/config"
	"github.com/Rorqualx/ytorigin/internal/types"
)

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if called != nil {
			*called = true
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestRecoveryMiddleware(t *testing.T) {
	panicHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	})

	req := httptest.NewRequest("GET", "/v1/tabs", nil)
	w := httptest.NewRecorder()

	Recovery(panicHandler).ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
	if w.Header().Get("Content-Type") != "application/json" {
		t.Error("Expected Content-Type application/json")
	}

	var resp types.Response
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if resp.Status != types.StatusError {
		t.Errorf("Expected status %q, got %q", types.StatusError, resp.Status)
	}
}

func TestRecoveryMiddlewareNoPanic(t *testing.T) {
	req := httptest.NewRequest("GET", "/v1/tabs", nil)
	w := httptest.NewRecorder()

	Recovery(okHandler(nil)).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}

func TestLoggingMiddlewareCapturesStatusCode(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	req := httptest.NewRequest("GET", "/missing", nil)
	w := httptest.NewRecorder()

	Logging(inner).ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestMaskIP(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{"192.168.1.57:4312", "192.168.1.0/24"},
		{"127.0.0.1:8080", "127.0.0.1"},
		{"[2001:db8:85a3::8a2e:370:7334]:443", "2001:db8:85a3::/48"},
		{"not-an-ip", "[redacted]"},
	}

	for _, tt := range tests {
		if got := maskIP(tt.addr); got != tt.want {
			t.Errorf("maskIP(%q) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}

func TestChainMiddleware(t *testing.T) {
	var order []string
	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	handler := Chain(mark("a"), mark("b"), mark("c"))(okHandler(nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Errorf("Expected order [a b c], got %v", order)
	}
}

func TestDeadlineSetsContextDeadline(t *testing.T) {
	var deadline time.Time
	var ok bool
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline, ok = r.Context().Deadline()
	})

	start := time.Now()
	Deadline(5*time.Second)(inner).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	if !ok {
		t.Fatal("Expected request context to carry a deadline")
	}
	if deadline.Before(start.Add(4*time.Second)) || deadline.After(start.Add(6*time.Second)) {
		t.Errorf("Deadline %v not about 5s after %v", deadline, start)
	}
}

func TestAPIKeyMiddleware(t *testing.T) {
	const key = "test-secret-key-12345"

	tests := []struct {
		name       string
		enabled    bool
		configKey  string
		path       string
		header     string
		query      string
		wantCalled bool
		wantStatus int
	}{
		{name: "disabled", enabled: false, configKey: key, path: "/v1/tabs", wantCalled: true, wantStatus: http.StatusOK},
		{name: "valid header", enabled: true, configKey: key, path: "/v1/tabs", header: key, wantCalled: true, wantStatus: http.StatusOK},
		{name: "invalid header", enabled: true, configKey: key, path: "/v1/tabs", header: "wrong-key-1234567", wantStatus: http.StatusUnauthorized},
		{name: "missing key", enabled: true, configKey: key, path: "/v1/tabs", wantStatus: http.StatusUnauthorized},
		{name: "query parameter ignored", enabled: true, configKey: key, path: "/v1/tabs", query: "?api_key=" + key, wantStatus: http.StatusUnauthorized},
		{name: "health bypass", enabled: true, configKey: key, path: "/health", wantCalled: true, wantStatus: http.StatusOK},
		{name: "empty configured key rejects", enabled: true, configKey: "", path: "/v1/tabs", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{APIKeyEnabled: tt.enabled, APIKey: tt.configKey}
			called := false

			req := httptest.NewRequest("GET", tt.path+tt.query, nil)
			if tt.header != "" {
				req.Header.Set(APIKeyHeader, tt.header)
			}
			w := httptest.NewRecorder()

			APIKey(cfg)(okHandler(&called)).ServeHTTP(w, req)

			if called != tt.wantCalled {
				t.Errorf("Expected called=%v, got %v", tt.wantCalled, called)
			}
			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
		})
	}
}
