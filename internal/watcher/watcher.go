// Package watcher re-runs the audio track automation for every video a tab views.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Rorqualx/ytorigin/internal/audiotrack"
	"github.com/Rorqualx/ytorigin/internal/dom"
	"github.com/Rorqualx/ytorigin/internal/logging"
	"github.com/Rorqualx/ytorigin/internal/metrics"
	"github.com/Rorqualx/ytorigin/internal/selectors"
	"github.com/Rorqualx/ytorigin/internal/types"
	"github.com/Rorqualx/ytorigin/internal/wait"
)

// Trigger sources, used as metric labels.
const (
	TriggerLoad      = "load"
	TriggerNavigate  = "navigate"
	TriggerURLChange = "urlchange"
	TriggerRecheck   = "recheck"
)

// Control events queued from outside the page.
const (
	eventRecheck       dom.EventKind = "recheck"
	eventApplyRedirect dom.EventKind = "apply-redirect"
)

// Page is a document that also forwards page events.
type Page interface {
	dom.Document
	dom.EventSource
}

// RedirectChecker redirects mobile loads to the desktop layout.
type RedirectChecker interface {
	Check(ctx context.Context, doc dom.Document) (bool, error)
}

// Switch manages the in-page redirect switch. Set stores a change made on
// the page; Apply shows a change that was stored elsewhere.
type Switch interface {
	Ensure(ctx context.Context, doc dom.Document) (bool, error)
	Set(ctx context.Context, doc dom.Document, enabled bool) (bool, error)
	Apply(ctx context.Context, doc dom.Document, enabled bool) (bool, error)
}

// Normalizer performs the settings menu click sequence.
type Normalizer interface {
	Normalize(ctx context.Context, doc dom.Document) (audiotrack.Outcome, error)
}

// Options holds the collaborators and bounds of a Watcher.
type Options struct {
	Selectors      selectors.Source
	Redirect       RedirectChecker
	Switch         Switch
	Normalizer     Normalizer
	ElementTimeout time.Duration
	AdTimeout      time.Duration
	AdPolicy       wait.TimeoutPolicy
	// StartURL, when set, is loaded by Run; the page's load event then
	// drives the first pass. Without it Run processes the current page.
	StartURL string
}

// Watcher owns one tab. All page work happens on the goroutine running Run.
type Watcher struct {
	id      string
	page    Page
	opts    Options
	state   *State
	control chan dom.Event
}

// New creates a Watcher for page with a fresh tab identifier.
func New(page Page, opts Options) *Watcher {
	return &Watcher{
		id:      uuid.NewString(),
		page:    page,
		opts:    opts,
		state:   &State{},
		control: make(chan dom.Event, 4),
	}
}

// ID returns the tab identifier.
func (w *Watcher) ID() string {
	return w.id
}

// State returns the session state.
func (w *Watcher) State() *State {
	return w.state
}

// Status returns a snapshot for the control API.
func (w *Watcher) Status() types.TabStatus {
	return w.state.Snapshot(w.id)
}

// Recheck clears the processed flag and queues a new run.
func (w *Watcher) Recheck() bool {
	return w.enqueue(dom.Event{Kind: eventRecheck})
}

// SetRedirect shows an already stored preference change on the page.
func (w *Watcher) SetRedirect(enabled bool) bool {
	return w.enqueue(dom.Event{Kind: eventApplyRedirect, Enabled: enabled})
}

func (w *Watcher) enqueue(ev dom.Event) bool {
	select {
	case w.control <- ev:
		return true
	default:
		return false
	}
}

// Run processes the page once, then once per trigger until ctx is done or the
// page goes away.
func (w *Watcher) Run(ctx context.Context) error {
	ctx = logging.WithComponent(logging.WithTabID(ctx, w.id), "watcher")
	logger := logging.FromContext(ctx)
	logger.Info().Msg("Watching tab")

	if w.opts.StartURL != "" {
		if err := w.page.Navigate(ctx, w.opts.StartURL); err != nil {
			return fmt.Errorf("open start url: %w", err)
		}
	} else {
		w.process(ctx, TriggerLoad)
	}

	events := w.page.Events()
	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("Watcher stopped")
			return nil
		case ev, ok := <-events:
			if !ok {
				return types.ErrPageClosed
			}
			w.handle(ctx, ev)
		case ev := <-w.control:
			w.handle(ctx, ev)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, ev dom.Event) {
	logger := logging.FromContext(ctx)
	switch ev.Kind {
	case dom.EventLoad:
		// A full load starts a new page session.
		w.state.Clear()
		w.process(ctx, TriggerLoad)
	case dom.EventNavigate:
		logger.Debug().Str("event", ev.Name).Str("url", ev.Href).Msg("Site navigation finished")
		w.process(ctx, TriggerNavigate)
	case dom.EventURLChange:
		logger.Debug().Str("url", ev.Href).Msg("URL changed")
		w.process(ctx, TriggerURLChange)
	case dom.EventToggle:
		if _, err := w.opts.Switch.Set(ctx, w.page, ev.Enabled); err != nil {
			logger.Error().Err(err).Msg("Failed to apply redirect switch")
		}
	case eventApplyRedirect:
		if _, err := w.opts.Switch.Apply(ctx, w.page, ev.Enabled); err != nil {
			logger.Error().Err(err).Msg("Failed to show redirect preference")
		}
	case eventRecheck:
		w.state.Reset()
		w.process(ctx, TriggerRecheck)
	default:
		logger.Debug().Str("kind", string(ev.Kind)).Msg("Ignoring unknown page event")
	}
}

// process runs redirect check, switch insertion, and the normalizer for the
// current video. Errors and panics are logged and clear the processed flag.
func (w *Watcher) process(ctx context.Context, trigger string) {
	metrics.RecordNavigation(trigger)
	logger := logging.FromContext(ctx)

	var videoID string
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			logger.Error().Err(err).Str("trigger", trigger).Msg("Recovered from panic while processing page")
			w.state.Fail(videoID, err)
			metrics.RecordOutcome(string(audiotrack.OutcomeFailed), 0)
		}
	}()

	redirected, err := w.opts.Redirect.Check(ctx, w.page)
	if err != nil {
		logger.Warn().Err(err).Msg("Redirect check failed")
	}
	if redirected {
		return
	}

	if _, err := w.opts.Switch.Ensure(ctx, w.page); err != nil {
		logger.Warn().Err(err).Msg("Redirect switch not inserted")
	}

	env, err := w.page.Environment(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to read page location")
		return
	}
	w.state.Observe(env.Href)

	videoID = VideoID(env.Href)
	if videoID == "" {
		// Leaving the video ends its session; coming back must run again.
		w.state.Clear()
		logger.Debug().Str("url", env.Href).Msg("Not a video page")
		return
	}
	if !w.state.Begin(videoID) {
		logger.Debug().Str("video_id", videoID).Msg("Video already processed")
		return
	}

	vlog := logger.With().Str("video_id", videoID).Str("trigger", trigger).Logger()
	ctx = logging.WithContext(ctx, vlog)

	start := time.Now()
	outcome, err := w.normalize(ctx)
	metrics.RecordOutcome(string(outcome), time.Since(start))
	if err != nil {
		w.state.Fail(videoID, err)
		if errors.Is(err, types.ErrElementTimeout) || errors.Is(err, types.ErrAdTimeout) {
			vlog.Warn().Err(err).Msg("Audio track check timed out, will retry on next navigation")
		} else {
			vlog.Error().Err(err).Msg("Audio track check failed")
		}
		return
	}
	w.state.Finish(videoID, string(outcome))
	vlog.Debug().Str("outcome", string(outcome)).Dur("took", time.Since(start)).Msg("Audio track check finished")
}

func (w *Watcher) normalize(ctx context.Context) (audiotrack.Outcome, error) {
	sel := w.opts.Selectors.Get()

	if _, err := wait.Element(ctx, w.page, sel.Video, w.opts.ElementTimeout); err != nil {
		return audiotrack.OutcomeFailed, fmt.Errorf("video element: %w", err)
	}
	if sel.PlayerReady != "" {
		if _, err := wait.Element(ctx, w.page, sel.PlayerReady, w.opts.ElementTimeout); err != nil {
			return audiotrack.OutcomeFailed, fmt.Errorf("player: %w", err)
		}
	}
	if err := wait.AdClear(ctx, w.page, sel, w.opts.AdTimeout, w.opts.AdPolicy); err != nil {
		return audiotrack.OutcomeFailed, fmt.Errorf("advertisement: %w", err)
	}
	return w.opts.Normalizer.Normalize(ctx, w.page)
}
