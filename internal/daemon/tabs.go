package daemon

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Rorqualx/ytorigin/internal/metrics"
	"github.com/Rorqualx/ytorigin/internal/types"
	"github.com/Rorqualx/ytorigin/internal/watcher"
)

// errTabBusy is returned when a tab's control queue is full.
var errTabBusy = errors.New("tab is busy, try again")

// Registry tracks the running watchers for the control API.
// It keeps insertion order so tab listings are stable.
type Registry struct {
	mu    sync.RWMutex
	tabs  map[string]*watcher.Watcher
	order []string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tabs: make(map[string]*watcher.Watcher)}
}

// Add registers w.
func (r *Registry) Add(w *watcher.Watcher) {
	r.mu.Lock()
	if _, exists := r.tabs[w.ID()]; !exists {
		r.order = append(r.order, w.ID())
	}
	r.tabs[w.ID()] = w
	count := len(r.tabs)
	r.mu.Unlock()

	metrics.UpdateTabMetrics(count)
}

// Remove unregisters the watcher with id. Unknown ids are ignored.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	if _, exists := r.tabs[id]; !exists {
		r.mu.Unlock()
		return
	}
	delete(r.tabs, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	count := len(r.tabs)
	r.mu.Unlock()

	metrics.UpdateTabMetrics(count)
}

// Get returns the watcher with id.
func (r *Registry) Get(id string) (*watcher.Watcher, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.tabs[id]
	return w, ok
}

// Len returns the number of registered tabs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tabs)
}

// Statuses returns a snapshot of every tab in registration order.
func (r *Registry) Statuses() []types.TabStatus {
	r.mu.RLock()
	watchers := make([]*watcher.Watcher, 0, len(r.order))
	for _, id := range r.order {
		watchers = append(watchers, r.tabs[id])
	}
	r.mu.RUnlock()

	statuses := make([]types.TabStatus, 0, len(watchers))
	for _, w := range watchers {
		statuses = append(statuses, w.Status())
	}
	return statuses
}

// Recheck queues a recheck on tab id.
func (r *Registry) Recheck(id string) error {
	w, ok := r.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrTabNotFound, id)
	}
	if !w.Recheck() {
		return errTabBusy
	}
	return nil
}

// SetRedirect forwards a preference change to every tab.
func (r *Registry) SetRedirect(enabled bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.order {
		if !r.tabs[id].SetRedirect(enabled) {
			log.Warn().
				Str("tab_id", id).
				Bool("enabled", enabled).
				Msg("Tab control queue full, preference change not applied to page")
		}
	}
}
