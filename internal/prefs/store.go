// Package prefs persists the redirect preference.
//
// A Store is a small string key-value store. Three backends exist: sqlite
// (the default, one file under DATA_DIR), redis (shared between machines),
// and memory (nothing survives a restart).
package prefs

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Rorqualx/ytorigin/internal/config"
	"github.com/Rorqualx/ytorigin/internal/security"
	"github.com/Rorqualx/ytorigin/internal/types"
)

// RedirectKey is the fixed key of the redirect preference.
const RedirectKey = "redirectToDesktop"

// Store is a persistent string key-value store.
type Store interface {
	// Get returns the stored value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// Backend names the implementation for logs and errors.
	Backend() string
	Close() error
}

// Open creates the Store selected by cfg.PrefsBackend.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.PrefsBackend {
	case config.PrefsBackendSQLite:
		if err := cfg.EnsureDirectories(); err != nil {
			return nil, fmt.Errorf("ensure directories: %w", err)
		}
		return OpenSQLite(ctx, cfg.PrefsFile())
	case config.PrefsBackendRedis:
		log.Info().Str("url", security.RedactURL(cfg.RedisURL)).Msg("Opening redis preference store")
		return OpenRedis(ctx, cfg.RedisURL)
	case config.PrefsBackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownBackend, cfg.PrefsBackend)
	}
}

// Preference is a boolean stored under a fixed key with a default.
type Preference struct {
	store Store
	key   string
	def   bool
}

// NewPreference wraps key in store with default def.
func NewPreference(store Store, key string, def bool) *Preference {
	return &Preference{store: store, key: key, def: def}
}

// Redirect returns the redirect preference, which defaults to enabled.
func Redirect(store Store) *Preference {
	return NewPreference(store, RedirectKey, true)
}

// Key returns the storage key.
func (p *Preference) Key() string {
	return p.key
}

// Enabled returns the stored value, or the default when the key is absent.
// An unparsable stored value also yields the default along with an error.
func (p *Preference) Enabled(ctx context.Context) (bool, error) {
	raw, ok, err := p.store.Get(ctx, p.key)
	if err != nil {
		return p.def, err
	}
	if !ok {
		return p.def, nil
	}
	value, err := ParseBool(raw)
	if err != nil {
		log.Warn().
			Str("key", p.key).
			Str("value", raw).
			Str("backend", p.store.Backend()).
			Msg("Stored preference is not a boolean, using default")
		return p.def, err
	}
	return value, nil
}

// Set stores enabled.
func (p *Preference) Set(ctx context.Context, enabled bool) error {
	return p.store.Set(ctx, p.key, strconv.FormatBool(enabled))
}

// ParseBool accepts the spellings a user might type on the command line.
func ParseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "on", "yes", "y", "enable", "enabled":
		return true, nil
	case "0", "f", "false", "off", "no", "n", "disable", "disabled":
		return false, nil
	}
	return false, fmt.Errorf("%w: %q", types.ErrInvalidPrefValue, raw)
}
