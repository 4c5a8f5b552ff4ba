// Package browser drives Chromium over CDP and exposes its tabs as dom.Documents.
package browser

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/devices"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Rorqualx/ytorigin/internal/config"
	"github.com/Rorqualx/ytorigin/internal/types"
)

// Browser owns one Chromium process and the tabs opened in it.
//
// Lock ordering: mu guards pages only. Never hold mu while talking to the browser.
type Browser struct {
	cfg    *config.Config
	rod    *rod.Browser
	mu     sync.Mutex
	pages  []*Page
	closed atomic.Bool
}

// Launch starts Chromium with the configured flags and connects to it.
// A cancelled ctx aborts before launch; the process then lives until Close.
func Launch(ctx context.Context, cfg *config.Config) (*Browser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	log.Info().
		Bool("headless", cfg.Headless).
		Str("browser_path", cfg.BrowserPath).
		Str("user_data_dir", cfg.UserDataDir).
		Msg("Launching browser")

	url, err := createLauncher(cfg).Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	rb := rod.New().ControlURL(url)
	if err := rb.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	log.Debug().Str("url", url).Msg("Browser connected")
	return &Browser{cfg: cfg, rod: rb}, nil
}

// createLauncher creates a configured Rod launcher.
// The browser is the one the user watches videos in, so audio, extensions and
// the profile directory are left alone.
func createLauncher(cfg *config.Config) *launcher.Launcher {
	l := launcher.New()

	if cfg.BrowserPath != "" {
		l = l.Bin(cfg.BrowserPath)
	}

	// Rod enables headless by default.
	if cfg.Headless {
		l = l.Set("headless", "new")
	} else {
		l = l.Headless(false)
	}

	if cfg.UserDataDir != "" {
		l = l.UserDataDir(cfg.UserDataDir)
	}

	// Prevents navigator.webdriver = true, which the site uses to degrade the player.
	l = l.Set("disable-blink-features", "AutomationControlled")
	l = l.Delete("enable-automation")

	l = l.Set("no-first-run").
		Set("no-default-browser-check").
		Set("disable-infobars").
		Set("disable-search-engine-choice-screen")

	l = l.Set("disable-features", "Translate,TranslateUI").
		Set("autoplay-policy", "no-user-gesture-required")

	if !cfg.EmulateMobile {
		l = l.Set("window-size", "1280,800")
	}

	if isARM() {
		l = l.Set("disable-gpu-compositing")
		log.Debug().Msg("ARM detected: using software compositing")
	}

	return l
}

// OpenPage creates a stealth tab with the bridge installed. The tab stays on
// about:blank; navigating it is up to the caller so the first load is observed.
func (b *Browser) OpenPage(ctx context.Context, navigationEvents []string) (*Page, error) {
	if b.closed.Load() {
		return nil, types.ErrPageClosed
	}

	rp, err := stealth.Page(b.rod)
	if err != nil {
		return nil, fmt.Errorf("open stealth page: %w", err)
	}
	// rp itself stays unbound: the bridge cleanups and Close must still
	// reach the tab after ctx is cancelled.
	setup := rp.Context(ctx)

	if b.cfg.EmulateMobile {
		if err := setup.Emulate(devices.IPhoneX); err != nil {
			log.Warn().Err(err).Msg("Failed to emulate mobile device")
		}
	}
	if b.cfg.UserAgent != "" {
		if err := SetUserAgent(setup, b.cfg.UserAgent); err != nil {
			log.Warn().Err(err).Msg("Failed to set user agent")
		}
	}

	page, err := newPage(rp, navigationEvents)
	if err != nil {
		_ = rp.Close()
		return nil, err
	}

	b.mu.Lock()
	b.pages = append(b.pages, page)
	b.mu.Unlock()

	return page, nil
}

// SetUserAgent sets a custom user agent on the page.
func SetUserAgent(page *rod.Page, userAgent string) error {
	return proto.NetworkSetUserAgentOverride{
		UserAgent: userAgent,
	}.Call(page)
}

// Healthy reports whether the browser still answers CDP calls.
func (b *Browser) Healthy(ctx context.Context) bool {
	if b.closed.Load() {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := b.rod.Context(ctx).Version(); err != nil {
		log.Debug().Err(err).Msg("Browser health check failed")
		return false
	}
	return true
}

// Close closes every tab and then the browser. Safe to call multiple times.
func (b *Browser) Close() error {
	if b.closed.Swap(true) {
		return nil
	}

	b.mu.Lock()
	pages := b.pages
	b.pages = nil
	b.mu.Unlock()

	eg := new(errgroup.Group)
	eg.SetLimit(4)
	for _, page := range pages {
		page := page
		eg.Go(func() error {
			if err := page.Close(); err != nil {
				log.Debug().Err(err).Msg("Error closing tab during shutdown")
			}
			return nil
		})
	}
	_ = eg.Wait()

	if !closeWithTimeout(b.rod, 10*time.Second) {
		return fmt.Errorf("browser did not close within timeout")
	}
	log.Info().Msg("Browser closed")
	return nil
}

// closeWithTimeout closes the browser, giving up after timeout.
func closeWithTimeout(rb *rod.Browser, timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := rb.Close(); err != nil {
			log.Warn().Err(err).Msg("Error closing browser")
		}
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		log.Warn().Dur("timeout", timeout).Msg("Browser close timed out")
		return false
	}
}

// isARM returns true if running on ARM architecture.
func isARM() bool {
	arch := runtime.GOARCH
	return arch == "arm" || arch == "arm64"
}
