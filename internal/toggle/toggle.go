// Package toggle manages the in-page switch for the redirect preference.
package toggle

import (
	"context"
	"fmt"
	"time"

	"github.com/Rorqualx/ytorigin/internal/assets"
	"github.com/Rorqualx/ytorigin/internal/dom"
	"github.com/Rorqualx/ytorigin/internal/logging"
	"github.com/Rorqualx/ytorigin/internal/metrics"
	"github.com/Rorqualx/ytorigin/internal/selectors"
	"github.com/Rorqualx/ytorigin/internal/wait"
)

// MarkerID is the id of the injected switch container.
const MarkerID = "ytorigin-redirect-toggle"

// InputAttr marks the checkbox whose change events the page script forwards.
// The switch template carries it literally.
const InputAttr = "data-ytorigin-toggle"

// Preference is the stored redirect switch.
type Preference interface {
	Enabled(ctx context.Context) (bool, error)
	Set(ctx context.Context, enabled bool) error
}

// Detector answers the two page questions the switch depends on.
type Detector interface {
	IsMobile(env dom.Environment) bool
	HasDesktopParam(href string) bool
}

// Controller inserts the switch and applies its changes.
type Controller struct {
	selectors     selectors.Source
	pref          Preference
	detector      Detector
	headerTimeout time.Duration
}

// New creates a Controller.
func New(src selectors.Source, pref Preference, detector Detector, headerTimeout time.Duration) *Controller {
	return &Controller{
		selectors:     src,
		pref:          pref,
		detector:      detector,
		headerTimeout: headerTimeout,
	}
}

// Ensure inserts the switch into the mobile header unless it is already there.
// It reports whether a new switch was inserted.
func (c *Controller) Ensure(ctx context.Context, doc dom.Document) (bool, error) {
	env, err := doc.Environment(ctx)
	if err != nil {
		return false, fmt.Errorf("read page environment: %w", err)
	}
	if !c.detector.IsMobile(env) {
		return false, nil
	}

	sel := c.selectors.Get()
	header, err := wait.Element(ctx, doc, sel.HeaderContainer, c.headerTimeout)
	if err != nil {
		return false, fmt.Errorf("header container: %w", err)
	}

	existing, err := doc.Query(ctx, "#"+MarkerID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	enabled, err := c.pref.Enabled(ctx)
	if err != nil {
		logging.FromContext(ctx).Warn().Err(err).Msg("Failed to read redirect preference, showing default")
	}

	target, pos, err := insertionPoint(ctx, header, sel)
	if err != nil {
		return false, err
	}
	markup, err := Markup(enabled)
	if err != nil {
		return false, fmt.Errorf("render switch: %w", err)
	}
	if err := doc.InsertHTML(ctx, target, pos, markup); err != nil {
		return false, fmt.Errorf("insert switch: %w", err)
	}

	logging.FromContext(ctx).Debug().Bool("enabled", enabled).Str("position", string(pos)).Msg("Redirect switch inserted")
	return true, nil
}

// insertionPoint picks the first available of: after the search box, inside
// the end container, or at the end of the header itself.
func insertionPoint(ctx context.Context, header dom.Element, sel *selectors.Selectors) (dom.Element, dom.Position, error) {
	if sel.SearchBox != "" {
		search, err := header.Query(ctx, sel.SearchBox)
		if err != nil {
			return nil, "", err
		}
		if search != nil {
			return search, dom.AfterEnd, nil
		}
	}
	if sel.EndContainer != "" {
		end, err := header.Query(ctx, sel.EndContainer)
		if err != nil {
			return nil, "", err
		}
		if end != nil {
			return end, dom.BeforeEnd, nil
		}
	}
	return header, dom.BeforeEnd, nil
}

// Set persists a change made with the in-page switch and applies it.
// It reports whether a reload was issued.
func (c *Controller) Set(ctx context.Context, doc dom.Document, enabled bool) (bool, error) {
	if err := c.pref.Set(ctx, enabled); err != nil {
		return false, fmt.Errorf("save redirect preference: %w", err)
	}
	metrics.RecordToggle(enabled)
	logging.FromContext(ctx).Info().Bool("enabled", enabled).Msg("Redirect preference changed")

	return c.Apply(ctx, doc, enabled)
}

// Apply brings the page in line with a preference that is already stored:
// the switch, when present, shows enabled, and turning the redirect on
// reloads the page so the redirect check runs again, unless the desktop
// layout is already forced. It reports whether a reload was issued.
func (c *Controller) Apply(ctx context.Context, doc dom.Document, enabled bool) (bool, error) {
	if doc == nil {
		return false, nil
	}
	logger := logging.FromContext(ctx)

	input, err := doc.Query(ctx, "#"+MarkerID+" input["+InputAttr+"]")
	if err != nil {
		return false, fmt.Errorf("find switch: %w", err)
	}
	if input != nil {
		if err := input.SetChecked(ctx, enabled); err != nil {
			return false, fmt.Errorf("sync switch: %w", err)
		}
	}

	if !enabled {
		return false, nil
	}
	env, err := doc.Environment(ctx)
	if err != nil {
		return false, fmt.Errorf("read page environment: %w", err)
	}
	if c.detector.HasDesktopParam(env.Href) {
		return false, nil
	}
	if err := doc.Reload(ctx); err != nil {
		return false, fmt.Errorf("reload page: %w", err)
	}
	logger.Debug().Str("url", env.Href).Msg("Page reloaded to apply redirect")
	return true, nil
}

// Markup renders the switch in the given state.
func Markup(enabled bool) (string, error) {
	return assets.RenderToggle(assets.ToggleData{
		ID:      MarkerID,
		Label:   "Desktop",
		Title:   "Redirect mobile pages to the desktop site",
		Enabled: enabled,
	})
}
