package watcher

import (
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/Rorqualx/ytorigin/internal/types"
)

// State is the per-tab session: the current video and whether it has been
// processed. A new video identifier clears the processed flag, so at most one
// identifier is ever marked processed.
type State struct {
	mu          sync.Mutex
	href        string
	videoID     string
	processed   bool
	runs        int64
	failures    int64
	lastOutcome string
	lastError   string
}

// Observe records the page URL without touching the processed flag.
func (s *State) Observe(href string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.href = href
}

// Begin claims id for processing. It returns false when id is already
// processed; otherwise it marks id processed and returns true.
func (s *State) Begin(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != s.videoID {
		s.videoID = id
		s.processed = false
	}
	if s.processed {
		return false
	}
	s.processed = true
	s.runs++
	return true
}

// Finish records a completed attempt for id.
func (s *State) Finish(id, outcome string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != s.videoID {
		return
	}
	s.lastOutcome = outcome
	s.lastError = ""
}

// Fail records a failed attempt and clears the processed flag so the next
// trigger for the same video retries.
func (s *State) Fail(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures++
	if err != nil {
		s.lastError = err.Error()
	}
	if id == s.videoID {
		s.processed = false
	}
}

// Reset clears the processed flag for the current video.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed = false
}

// Clear forgets the current video entirely, as a page unload does.
func (s *State) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videoID = ""
	s.processed = false
}

// Processed reports whether id is the current video and already processed.
func (s *State) Processed(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processed && id == s.videoID
}

// Snapshot returns the state as an API status for tab id.
func (s *State) Snapshot(tabID string) types.TabStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return types.TabStatus{
		ID:          tabID,
		URL:         s.href,
		VideoID:     s.videoID,
		Processed:   s.processed,
		Runs:        s.runs,
		Failures:    s.failures,
		LastOutcome: s.lastOutcome,
		LastError:   s.lastError,
	}
}

var (
	videoIDPattern    = regexp.MustCompile(`^[A-Za-z0-9_-]{6,}$`)
	videoPathPrefixes = []string{"/shorts/", "/embed/", "/live/"}
)

// VideoID extracts the video identifier from a watch, shorts, embed or live
// URL. It returns "" for pages that are not video pages.
func VideoID(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if u.Path == "/watch" {
		if id := u.Query().Get("v"); videoIDPattern.MatchString(id) {
			return id
		}
		return ""
	}
	for _, prefix := range videoPathPrefixes {
		if rest, ok := strings.CutPrefix(u.Path, prefix); ok {
			id, _, _ := strings.Cut(rest, "/")
			if videoIDPattern.MatchString(id) {
				return id
			}
		}
	}
	return ""
}
