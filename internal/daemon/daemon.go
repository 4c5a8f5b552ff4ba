// Package daemon wires the browser, the preference store and one watcher per
// start URL into a long-running process with a control API.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Rorqualx/ytorigin/internal/audiotrack"
	"github.com/Rorqualx/ytorigin/internal/browser"
	"github.com/Rorqualx/ytorigin/internal/config"
	"github.com/Rorqualx/ytorigin/internal/handlers"
	"github.com/Rorqualx/ytorigin/internal/metrics"
	"github.com/Rorqualx/ytorigin/internal/prefs"
	"github.com/Rorqualx/ytorigin/internal/redirect"
	"github.com/Rorqualx/ytorigin/internal/security"
	"github.com/Rorqualx/ytorigin/internal/selectors"
	"github.com/Rorqualx/ytorigin/internal/toggle"
	"github.com/Rorqualx/ytorigin/internal/types"
	"github.com/Rorqualx/ytorigin/internal/wait"
	"github.com/Rorqualx/ytorigin/internal/watcher"
	"github.com/Rorqualx/ytorigin/pkg/version"
)

// ErrNoStartURLs is returned when no START_URLS entry survives validation.
var ErrNoStartURLs = errors.New("no valid start URLs")

const shutdownTimeout = 10 * time.Second

// Daemon is one running ytorigin instance.
type Daemon struct {
	cfg  *config.Config
	tabs *Registry
}

// New creates a Daemon for cfg. cfg must already be validated.
func New(cfg *config.Config) *Daemon {
	return &Daemon{cfg: cfg, tabs: NewRegistry()}
}

// Tabs returns the registry of running watchers.
func (d *Daemon) Tabs() *Registry {
	return d.tabs
}

// Run starts everything and blocks until ctx is cancelled, a server fails, or
// every tab has been closed.
func (d *Daemon) Run(ctx context.Context) error {
	startURLs := validStartURLs(d.cfg.StartURLs)
	if len(startURLs) == 0 {
		return ErrNoStartURLs
	}

	lock, err := AcquireLock(d.cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			log.Warn().Err(err).Msg("Failed to release instance lock")
		}
	}()

	sel, err := selectors.NewManager(d.cfg.SelectorsPath, d.cfg.SelectorsHotReload)
	if err != nil {
		return fmt.Errorf("load selectors: %w", err)
	}
	defer sel.Close()

	store, err := prefs.Open(ctx, d.cfg)
	if err != nil {
		return fmt.Errorf("open preference store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("Preference store close error")
		}
	}()
	pref := prefs.Redirect(store)

	log.Info().Msg("Launching browser...")
	b, err := browser.Launch(ctx, d.cfg)
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}
	defer func() {
		if err := b.Close(); err != nil {
			log.Error().Err(err).Msg("Browser close error")
		}
	}()

	decider := redirect.New(sel, pref, redirect.Options{
		MobileHost:   d.cfg.MobileHost,
		DesktopParam: d.cfg.DesktopParam,
		Permissive:   d.cfg.RedirectPermissive,
	})
	opts := watcher.Options{
		Selectors:      sel,
		Redirect:       decider,
		Switch:         toggle.New(sel, pref, decider, d.cfg.HeaderTimeout),
		Normalizer:     audiotrack.New(sel, d.cfg.ElementTimeout, d.cfg.SubmenuTimeout),
		ElementTimeout: d.cfg.ElementTimeout,
		AdTimeout:      d.cfg.AdTimeout,
		AdPolicy:       wait.PolicyFor(d.cfg.FailOnAdTimeout()),
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	tabs, tabsCtx := errgroup.WithContext(gctx)
	for _, startURL := range startURLs {
		page, err := b.OpenPage(gctx, sel.Get().NavigationEvents)
		if err != nil {
			cancel()
			_ = tabs.Wait()
			return fmt.Errorf("open tab for %s: %w", startURL, err)
		}

		tabOpts := opts
		tabOpts.StartURL = startURL
		w := watcher.New(page, tabOpts)
		d.tabs.Add(w)

		log.Info().Str("tab_id", w.ID()).Str("url", startURL).Msg("Opened tab")

		tabs.Go(func() error {
			defer d.tabs.Remove(w.ID())
			err := w.Run(tabsCtx)
			if errors.Is(err, types.ErrPageClosed) {
				log.Warn().Str("tab_id", w.ID()).Msg("Tab was closed")
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		err := tabs.Wait()
		if err == nil && ctx.Err() == nil {
			log.Info().Msg("All tabs closed, shutting down")
			cancel()
		}
		return err
	})

	api := &http.Server{
		Addr:         net.JoinHostPort(d.cfg.Host, strconv.Itoa(d.cfg.Port)),
		Handler:      handlers.New(pref, d.tabs, b).Router(d.cfg),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 20 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	d.serve(g, gctx, api, "Control API")

	if d.cfg.PrometheusEnabled {
		metrics.SetBuildInfo(version.Full(), version.GoVersion())

		stopCh := make(chan struct{})
		go metrics.StartMemoryCollector(10*time.Second, stopCh)
		defer close(stopCh)

		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", metrics.Handler())
		d.serve(g, gctx, &http.Server{
			Addr:         fmt.Sprintf(":%d", d.cfg.PrometheusPort),
			Handler:      metricsMux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}, "Prometheus metrics")
	}

	log.Info().
		Str("address", api.Addr).
		Int("tabs", d.tabs.Len()).
		Str("prefs_backend", store.Backend()).
		Bool("metrics_enabled", d.cfg.PrometheusEnabled).
		Msg("ytorigin is running")

	err = g.Wait()
	log.Info().Msg("Shutdown complete")
	return err
}

// serve runs srv under g and shuts it down when ctx is done.
func (d *Daemon) serve(g *errgroup.Group, ctx context.Context, srv *http.Server, name string) {
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msgf("%s server started", name)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s server: %w", name, err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msgf("%s server shutdown error", name)
		}
		return nil
	})
}

// validStartURLs drops entries a tab cannot be opened on.
func validStartURLs(raw []string) []string {
	valid := make([]string, 0, len(raw))
	for _, entry := range raw {
		u, err := security.ValidateStartURL(entry)
		if err != nil {
			log.Warn().Err(err).Str("url", security.RedactURL(entry)).Msg("Skipping start URL")
			continue
		}
		if !security.IsYouTubeHost(u.Hostname()) {
			log.Warn().Str("host", u.Hostname()).Msg("Start URL is not a YouTube page, the watcher will idle there")
		}
		valid = append(valid, u.String())
	}
	return valid
}
