// Package redirect decides when a mobile page load should be forced onto the
// desktop layout.
package redirect

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Rorqualx/ytorigin/internal/dom"
	"github.com/Rorqualx/ytorigin/internal/logging"
	"github.com/Rorqualx/ytorigin/internal/metrics"
	"github.com/Rorqualx/ytorigin/internal/selectors"
)

// PreferenceReader yields the stored redirect preference.
type PreferenceReader interface {
	Enabled(ctx context.Context) (bool, error)
}

// Options configures a Decider.
type Options struct {
	MobileHost   string // host that always counts as mobile, e.g. m.youtube.com
	DesktopParam string // key=value query parameter that forces desktop
	// Permissive also treats mobile user agents and touch devices as mobile.
	Permissive bool
}

// Decider inspects a page and redirects it to the desktop layout when needed.
type Decider struct {
	selectors  selectors.Source
	pref       PreferenceReader
	mobileHost string
	paramKey   string
	paramValue string
	permissive bool
}

// New creates a Decider.
func New(src selectors.Source, pref PreferenceReader, opts Options) *Decider {
	key, value, _ := strings.Cut(opts.DesktopParam, "=")
	return &Decider{
		selectors:  src,
		pref:       pref,
		mobileHost: strings.ToLower(opts.MobileHost),
		paramKey:   key,
		paramValue: value,
		permissive: opts.Permissive,
	}
}

// IsMobile reports whether env describes a mobile page load.
func (d *Decider) IsMobile(env dom.Environment) bool {
	if d.mobileHost != "" && strings.EqualFold(env.Hostname, d.mobileHost) {
		return true
	}
	sel := d.selectors.Get()
	if env.HasRootClass(sel.MobileRootClass) {
		return true
	}
	if d.permissive {
		return sel.MatchesMobileUserAgent(env.UserAgent) || env.MaxTouchPoints > 0
	}
	return false
}

// HasDesktopParam reports whether href already carries the desktop parameter.
func (d *Decider) HasDesktopParam(href string) bool {
	u, err := url.Parse(href)
	if err != nil {
		return false
	}
	for _, v := range u.Query()[d.paramKey] {
		if v == d.paramValue {
			return true
		}
	}
	return false
}

// Decide returns the desktop URL for env when a redirect is due.
// It has no side effects.
func (d *Decider) Decide(env dom.Environment, enabled bool) (target string, ok bool) {
	if !enabled || !d.IsMobile(env) || d.HasDesktopParam(env.Href) {
		return "", false
	}
	u, err := url.Parse(env.Href)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}
	param := url.QueryEscape(d.paramKey) + "=" + url.QueryEscape(d.paramValue)
	if u.RawQuery != "" {
		u.RawQuery += "&" + param
	} else {
		u.RawQuery = param
	}
	return u.String(), true
}

// Check redirects doc to the desktop layout when it is a mobile load, the
// preference is enabled, and the desktop parameter is missing. A true result
// means navigation is in flight and the caller must stop working on doc.
func (d *Decider) Check(ctx context.Context, doc dom.Document) (bool, error) {
	env, err := doc.Environment(ctx)
	if err != nil {
		return false, fmt.Errorf("read page environment: %w", err)
	}
	if !d.IsMobile(env) {
		return false, nil
	}

	logger := logging.FromContext(ctx)
	enabled, err := d.pref.Enabled(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to read redirect preference, using default")
		enabled = true
	}

	target, ok := d.Decide(env, enabled)
	if !ok {
		return false, nil
	}

	logger.Info().
		Str("from", env.Href).
		Str("to", target).
		Msg("Redirecting mobile page to desktop layout")

	if err := doc.Navigate(ctx, target); err != nil {
		return false, fmt.Errorf("navigate to desktop layout: %w", err)
	}
	metrics.RecordRedirect()
	return true, nil
}
