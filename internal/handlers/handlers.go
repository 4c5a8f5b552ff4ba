// Package handlers provides the HTTP control API for a running ytorigin daemon.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Rorqualx/ytorigin/internal/metrics"
	"github.com/Rorqualx/ytorigin/internal/types"
	"github.com/Rorqualx/ytorigin/pkg/version"
)

// maxBodySize limits request bodies; the only body is a one-field JSON object.
const maxBodySize = 4 << 10

// Preference is the redirect preference as the API sees it.
type Preference interface {
	Key() string
	Enabled(ctx context.Context) (bool, error)
	Set(ctx context.Context, enabled bool) error
}

// Tabs is the set of watched tabs.
type Tabs interface {
	Statuses() []types.TabStatus
	// Recheck clears the processed flag of tab id and re-runs it.
	// It returns types.ErrTabNotFound for unknown ids.
	Recheck(id string) error
	// SetRedirect shows a stored preference change on every tab.
	SetRedirect(enabled bool)
}

// HealthChecker reports whether the browser is still responding.
type HealthChecker interface {
	Healthy(ctx context.Context) bool
}

// Handler serves the control API.
type Handler struct {
	pref   Preference
	tabs   Tabs
	health HealthChecker
}

// New creates a new Handler. health may be nil, in which case the daemon is
// always reported healthy.
func New(pref Preference, tabs Tabs, health HealthChecker) *Handler {
	return &Handler{pref: pref, tabs: tabs, health: health}
}

// HandleHealth handles GET /health.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	if !h.allowMethod(w, r, http.MethodGet, startTime) {
		return
	}

	if h.health != nil && !h.health.Healthy(r.Context()) {
		h.writeErrorWithStatus(w, http.StatusServiceUnavailable, "Browser is not responding", startTime)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, types.Response{
		Status:    types.StatusOK,
		Message:   "ytorigin is ready",
		StartTime: startTime.UnixMilli(),
		EndTime:   time.Now().UnixMilli(),
		Version:   version.Full(),
	})
}

// HandleRedirectPreference handles GET and PUT /v1/preferences/redirect.
func (h *Handler) HandleRedirectPreference(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	switch r.Method {
	case http.MethodGet:
		h.getRedirect(w, r, startTime)
	case http.MethodPut:
		h.putRedirect(w, r, startTime)
	default:
		w.Header().Set("Allow", "GET, PUT")
		h.writeErrorWithStatus(w, http.StatusMethodNotAllowed, "Method not allowed", startTime)
	}
}

func (h *Handler) getRedirect(w http.ResponseWriter, r *http.Request, startTime time.Time) {
	enabled, err := h.pref.Enabled(r.Context())
	// An unparsable stored value still yields the default, which is what the tabs use.
	if err != nil && !errors.Is(err, types.ErrInvalidPrefValue) {
		log.Error().Err(err).Str("key", h.pref.Key()).Msg("Failed to read preference")
		h.writeErrorWithStatus(w, http.StatusInternalServerError, "Failed to read preference", startTime)
		return
	}
	h.writePreference(w, enabled, "Preference retrieved", startTime)
}

func (h *Handler) putRedirect(w http.ResponseWriter, r *http.Request, startTime time.Time) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	defer r.Body.Close()

	buf := getBuffer()
	defer putBuffer(buf)

	if _, err := io.Copy(buf, r.Body); err != nil {
		log.Warn().Err(err).Msg("Failed to read request body")
		h.writeErrorWithStatus(w, http.StatusBadRequest, "Failed to read request", startTime)
		return
	}

	var update types.PreferenceUpdate
	if err := json.Unmarshal(buf.Bytes(), &update); err != nil {
		h.writeErrorWithStatus(w, http.StatusBadRequest, "Invalid JSON request", startTime)
		return
	}
	if update.Enabled == nil {
		h.writeErrorWithStatus(w, http.StatusBadRequest, "enabled is required", startTime)
		return
	}

	if err := h.pref.Set(r.Context(), *update.Enabled); err != nil {
		log.Error().Err(err).Str("key", h.pref.Key()).Msg("Failed to store preference")
		h.writeErrorWithStatus(w, http.StatusInternalServerError, "Failed to store preference", startTime)
		return
	}
	metrics.RecordToggle(*update.Enabled)
	h.tabs.SetRedirect(*update.Enabled)

	log.Info().
		Bool("enabled", *update.Enabled).
		Msg("Redirect preference changed through API")

	h.writePreference(w, *update.Enabled, "Preference updated", startTime)
}

// HandleTabs handles GET /v1/tabs.
func (h *Handler) HandleTabs(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	if !h.allowMethod(w, r, http.MethodGet, startTime) {
		return
	}

	tabs := h.tabs.Statuses()
	if tabs == nil {
		tabs = []types.TabStatus{}
	}
	h.writeJSONResponse(w, http.StatusOK, types.Response{
		Status:    types.StatusOK,
		Message:   "Tab list retrieved",
		StartTime: startTime.UnixMilli(),
		EndTime:   time.Now().UnixMilli(),
		Version:   version.Full(),
		Tabs:      tabs,
	})
}

// HandleRecheck handles POST /v1/tabs/{id}/recheck.
func (h *Handler) HandleRecheck(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	if !h.allowMethod(w, r, http.MethodPost, startTime) {
		return
	}

	id := r.PathValue("id")
	if err := h.tabs.Recheck(id); err != nil {
		if errors.Is(err, types.ErrTabNotFound) {
			h.writeErrorWithStatus(w, http.StatusNotFound, "Tab not found: "+id, startTime)
			return
		}
		h.writeErrorWithStatus(w, http.StatusConflict, err.Error(), startTime)
		return
	}

	log.Info().Str("tab_id", id).Msg("Recheck requested through API")
	h.writeJSONResponse(w, http.StatusAccepted, types.Response{
		Status:    types.StatusOK,
		Message:   "Recheck queued",
		StartTime: startTime.UnixMilli(),
		EndTime:   time.Now().UnixMilli(),
		Version:   version.Full(),
	})
}

// HandleNotFound handles requests to unknown paths.
func (h *Handler) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	h.writeErrorWithStatus(w, http.StatusNotFound, "Not found", time.Now())
}

func (h *Handler) writePreference(w http.ResponseWriter, enabled bool, message string, startTime time.Time) {
	h.writeJSONResponse(w, http.StatusOK, types.Response{
		Status:     types.StatusOK,
		Message:    message,
		StartTime:  startTime.UnixMilli(),
		EndTime:    time.Now().UnixMilli(),
		Version:    version.Full(),
		Preference: &types.Preference{Key: h.pref.Key(), Enabled: enabled},
	})
}

// writeErrorWithStatus writes an error response with a specific HTTP status code.
func (h *Handler) writeErrorWithStatus(w http.ResponseWriter, statusCode int, message string, startTime time.Time) {
	h.writeJSONResponse(w, statusCode, types.Response{
		Status:    types.StatusError,
		Message:   message,
		StartTime: startTime.UnixMilli(),
		EndTime:   time.Now().UnixMilli(),
		Version:   version.Full(),
	})
}

// writeJSONResponse buffers JSON before writing so encoding errors are caught
// before headers are sent.
func (h *Handler) writeJSONResponse(w http.ResponseWriter, statusCode int, resp interface{}) {
	buf := getBuffer()
	defer putBuffer(buf)

	if err := json.NewEncoder(buf).Encode(resp); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"status":"error","message":"internal encoding error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(buf.Bytes())
}
