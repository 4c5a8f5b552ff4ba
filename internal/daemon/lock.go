package daemon

import (
	"fmt"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog/log"

	"github.com/Rorqualx/ytorigin/internal/config"
	"github.com/Rorqualx/ytorigin/internal/types"
)

// Lock is the single-instance lock on DATA_DIR. Two daemons driving the same
// profile would fight over the browser and the sqlite file.
type Lock struct {
	fl *flock.Flock
}

// AcquireLock takes the lock without blocking. It returns
// types.ErrAlreadyRunning when another process holds it.
func AcquireLock(cfg *config.Config) (*Lock, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	fl := flock.New(cfg.LockFile())
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", cfg.LockFile(), err)
	}
	if !locked {
		return nil, types.ErrAlreadyRunning
	}

	log.Debug().Str("path", cfg.LockFile()).Msg("Acquired instance lock")
	return &Lock{fl: fl}, nil
}

// Release drops the lock. Safe to call more than once.
func (l *Lock) Release() error {
	return l.fl.Unlock()
}
