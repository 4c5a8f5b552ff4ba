// Package wait implements bounded waits over a live page.
//
// Every wait follows the same shape: evaluate a condition, and if it does not
// hold yet, subscribe to mutations under a root and re-evaluate after each
// batch until the condition holds, the timeout fires, or the context ends.
// The subscription is always closed before Until returns.
package wait

import (
	"context"
	"errors"
	"time"

	"github.com/Rorqualx/ytorigin/internal/dom"
	"github.com/Rorqualx/ytorigin/internal/logging"
	"github.com/Rorqualx/ytorigin/internal/metrics"
	"github.com/Rorqualx/ytorigin/internal/selectors"
	"github.com/Rorqualx/ytorigin/internal/types"
)

// TimeoutPolicy decides what a wait does when its deadline passes.
type TimeoutPolicy int

const (
	// PolicyFail returns the timeout error.
	PolicyFail TimeoutPolicy = iota
	// PolicyProceed logs a warning and reports success.
	PolicyProceed
)

// String returns the policy name used in logs.
func (p TimeoutPolicy) String() string {
	if p == PolicyProceed {
		return "proceed"
	}
	return "fail"
}

// PolicyFor maps the AD_TIMEOUT_POLICY switch onto a TimeoutPolicy.
func PolicyFor(failOnTimeout bool) TimeoutPolicy {
	if failOnTimeout {
		return PolicyFail
	}
	return PolicyProceed
}

// Condition is re-evaluated after every mutation batch.
type Condition func(ctx context.Context) (bool, error)

// Options configures Until.
type Options struct {
	Observe dom.ObserveOptions
	Timeout time.Duration
	Policy  TimeoutPolicy
	// TimeoutErr is returned under PolicyFail once Timeout elapses.
	TimeoutErr error
}

// Until blocks until cond holds, the timeout elapses, or ctx is done.
// A condition that already holds returns without subscribing.
func Until(ctx context.Context, root dom.Root, opts Options, cond Condition) error {
	ok, err := cond(ctx)
	if err != nil || ok {
		return err
	}

	// Start the clock before subscribing so setup time counts against the deadline.
	timer := time.NewTimer(opts.Timeout)
	defer timer.Stop()

	sub, err := root.Observe(ctx, opts.Observe)
	if err != nil {
		return err
	}
	defer sub.Close()

	// The condition may have become true while the observer was installed.
	if ok, err := cond(ctx); err != nil || ok {
		return err
	}

	for {
		select {
		case <-sub.C():
			ok, err := cond(ctx)
			if err != nil || ok {
				return err
			}
		case <-timer.C:
			return timedOut(ctx, opts)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func timedOut(ctx context.Context, opts Options) error {
	if opts.Policy == PolicyProceed {
		logging.FromContext(ctx).Warn().
			Err(opts.TimeoutErr).
			Dur("timeout", opts.Timeout).
			Msg("Wait timed out, proceeding anyway")
		return nil
	}
	return opts.TimeoutErr
}

// Element returns the first element under root matching selector, waiting up
// to timeout for it to appear.
func Element(ctx context.Context, root dom.Root, selector string, timeout time.Duration) (dom.Element, error) {
	var found dom.Element
	err := Until(ctx, root, Options{
		Observe:    dom.SubtreeChanges,
		Timeout:    timeout,
		Policy:     PolicyFail,
		TimeoutErr: types.NewElementTimeoutError(selector, timeout),
	}, func(ctx context.Context) (bool, error) {
		el, err := root.Query(ctx, selector)
		if err != nil {
			return false, err
		}
		found = el
		return el != nil, nil
	})
	if err != nil {
		var waitErr *types.WaitError
		if errors.As(err, &waitErr) {
			metrics.RecordWaitTimeout(types.WaitKindElement)
		}
		return nil, err
	}
	return found, nil
}

// AdClear waits for the advertisement indicator to disappear from the player.
// It returns immediately when no ad is showing.
func AdClear(ctx context.Context, doc dom.Root, sel *selectors.Selectors, timeout time.Duration, policy TimeoutPolicy) error {
	player, err := doc.Query(ctx, sel.AdShowing)
	if err != nil || player == nil {
		return err
	}

	logging.FromContext(ctx).Debug().
		Dur("timeout", timeout).
		Str("policy", policy.String()).
		Msg("Advertisement showing, waiting for it to end")

	timeoutErr := types.NewAdTimeoutError(sel.AdShowing, timeout)
	err = Until(ctx, player, Options{
		Observe:    dom.ClassChanges,
		Timeout:    timeout,
		Policy:     PolicyFail,
		TimeoutErr: timeoutErr,
	}, func(ctx context.Context) (bool, error) {
		showing, err := player.HasClass(ctx, sel.AdClass)
		return !showing, err
	})
	if err != timeoutErr {
		return err
	}

	metrics.RecordWaitTimeout(types.WaitKindAd)
	return timedOut(ctx, Options{Timeout: timeout, Policy: policy, TimeoutErr: timeoutErr})
}
