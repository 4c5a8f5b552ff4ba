// Package audiotrack resets the player's audio track to the original language.
package audiotrack

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Rorqualx/ytorigin/internal/dom"
	"github.com/Rorqualx/ytorigin/internal/logging"
	"github.com/Rorqualx/ytorigin/internal/selectors"
	"github.com/Rorqualx/ytorigin/internal/types"
	"github.com/Rorqualx/ytorigin/internal/wait"
)

// Outcome describes how a normalizer attempt ended.
type Outcome string

// Normalizer outcomes.
const (
	OutcomeOriginalSelected Outcome = "original_selected"
	OutcomeNoAudioMenu      Outcome = "no_audio_menu"
	OutcomeNoOriginal       Outcome = "no_original"
	OutcomeFailed           Outcome = "failed"
)

// Normalizer drives the settings menu click sequence.
type Normalizer struct {
	selectors      selectors.Source
	elementTimeout time.Duration
	submenuTimeout time.Duration
}

// New creates a Normalizer. elementTimeout bounds the waits for the settings
// button and menu; submenuTimeout bounds the wait for the "original" entry.
func New(src selectors.Source, elementTimeout, submenuTimeout time.Duration) *Normalizer {
	return &Normalizer{
		selectors:      src,
		elementTimeout: elementTimeout,
		submenuTimeout: submenuTimeout,
	}
}

// Normalize opens the settings menu, selects the original audio track when one
// is offered, and closes the menu again. A missing audio track entry or a
// missing original entry is not an error; a wait timeout is.
func (n *Normalizer) Normalize(ctx context.Context, doc dom.Document) (outcome Outcome, err error) {
	sel := n.selectors.Get()
	logger := logging.FromContext(ctx)

	button, err := wait.Element(ctx, doc, sel.SettingsButton, n.elementTimeout)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("settings button: %w", err)
	}
	if err := button.Click(ctx); err != nil {
		return OutcomeFailed, fmt.Errorf("open settings: %w", err)
	}

	menu, err := wait.Element(ctx, doc, sel.SettingsMenu, n.elementTimeout)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("settings menu: %w", err)
	}

	// The menu is open from here on; every exit closes it.
	defer func() {
		if cerr := button.Click(ctx); cerr != nil {
			logger.Warn().Err(cerr).Msg("Failed to close settings menu")
			if err == nil {
				outcome, err = OutcomeFailed, fmt.Errorf("close settings: %w", cerr)
			}
		}
	}()

	items, err := menu.QueryAll(ctx, sel.MenuItem)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("list menu items: %w", err)
	}
	audioItem, err := dom.FindByText(ctx, items, sel.AudioTrackLabels)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("read menu items: %w", err)
	}
	if audioItem == nil {
		logger.Warn().Strs("labels", sel.AudioTrackLabels).Msg("Audio track menu not found")
		return OutcomeNoAudioMenu, nil
	}
	if err := audioItem.Click(ctx); err != nil {
		return OutcomeFailed, fmt.Errorf("open audio track submenu: %w", err)
	}

	original, err := n.findOriginal(ctx, menu, sel)
	if errors.Is(err, types.ErrElementTimeout) {
		logger.Warn().Strs("labels", sel.OriginalLabels).Msg("Original audio track not found")
		return OutcomeNoOriginal, nil
	}
	if err != nil {
		return OutcomeFailed, err
	}
	if err := original.Click(ctx); err != nil {
		return OutcomeFailed, fmt.Errorf("select original track: %w", err)
	}

	logger.Info().Msg("Original audio track selected")
	return OutcomeOriginalSelected, nil
}

// findOriginal waits for the submenu to render an "original" entry. Entries
// that still carry an audio track label belong to the parent menu, whose
// summary text can itself read "original".
func (n *Normalizer) findOriginal(ctx context.Context, menu dom.Element, sel *selectors.Selectors) (dom.Element, error) {
	var found dom.Element
	err := wait.Until(ctx, menu, wait.Options{
		Observe:    dom.SubtreeChanges,
		Timeout:    n.submenuTimeout,
		Policy:     wait.PolicyFail,
		TimeoutErr: types.NewElementTimeoutError(sel.MenuItem, n.submenuTimeout),
	}, func(ctx context.Context) (bool, error) {
		items, err := menu.QueryAll(ctx, sel.MenuItem)
		if err != nil {
			return false, err
		}
		for _, item := range items {
			text, err := item.Text(ctx)
			if err != nil {
				return false, err
			}
			if dom.ContainsFold(text, sel.OriginalLabels) && !dom.ContainsFold(text, sel.AudioTrackLabels) {
				found = item
				return true, nil
			}
		}
		return false, nil
	})
	return found, err
}
