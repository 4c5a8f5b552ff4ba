package wait

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Rorqualx/ytorigin/internal/dom/domtest"
	"github.com/Rorqualx/ytorigin/internal/selectors"
	"github.com/Rorqualx/ytorigin/internal/types"
)

const watchURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

const playerPage = `<html><body>
<div id="movie_player" class="html5-video-player">
  <video></video>
</div>
</body></html>`

const adPage = `<html><body>
<div id="movie_player" class="html5-video-player ad-showing">
  <video></video>
</div>
</body></html>`

func TestElementPresentImmediately(t *testing.T) {
	doc := domtest.New(watchURL, playerPage)

	el, err := Element(context.Background(), doc, "video", time.Second)
	if err != nil {
		t.Fatalf("Element() error = %v", err)
	}
	if el == nil {
		t.Fatal("Element() = nil, want video element")
	}
	if doc.ObserveCalls() != 0 {
		t.Errorf("ObserveCalls() = %d, want 0 for an element already present", doc.ObserveCalls())
	}
}

func TestElementAppearsLater(t *testing.T) {
	doc := domtest.New(watchURL, `<html><body><div id="content"></div></body></html>`)

	go func() {
		time.Sleep(30 * time.Millisecond)
		if err := doc.Append("#content", `<div class="ytp-settings-button"></div>`); err != nil {
			t.Errorf("Append() error = %v", err)
		}
	}()

	el, err := Element(context.Background(), doc, ".ytp-settings-button", 2*time.Second)
	if err != nil {
		t.Fatalf("Element() error = %v", err)
	}
	if el == nil {
		t.Fatal("Element() = nil, want settings button")
	}
	if n := doc.ActiveObservers(); n != 0 {
		t.Errorf("ActiveObservers() = %d after resolve, want 0", n)
	}
}

func TestElementIgnoresUnrelatedMutations(t *testing.T) {
	doc := domtest.New(watchURL, `<html><body><div id="content"></div></body></html>`)

	go func() {
		for i := 0; i < 3; i++ {
			time.Sleep(10 * time.Millisecond)
			_ = doc.Append("#content", `<span>noise</span>`)
		}
	}()

	_, err := Element(context.Background(), doc, "video", 150*time.Millisecond)
	if !errors.Is(err, types.ErrElementTimeout) {
		t.Fatalf("Element() error = %v, want ErrElementTimeout", err)
	}
}

func TestElementTimeout(t *testing.T) {
	doc := domtest.New(watchURL, playerPage)
	timeout := 120 * time.Millisecond

	start := time.Now()
	el, err := Element(context.Background(), doc, ".never-there", timeout)
	elapsed := time.Since(start)

	if el != nil {
		t.Errorf("Element() = %v, want nil", el)
	}
	if !errors.Is(err, types.ErrElementTimeout) {
		t.Fatalf("Element() error = %v, want ErrElementTimeout", err)
	}
	var waitErr *types.WaitError
	if !errors.As(err, &waitErr) {
		t.Fatalf("Element() error type = %T, want *types.WaitError", err)
	}
	if waitErr.Selector != ".never-there" || waitErr.Timeout != timeout {
		t.Errorf("WaitError = %+v", waitErr)
	}
	if elapsed < timeout {
		t.Errorf("Element() rejected after %v, before the %v deadline", elapsed, timeout)
	}
	if n := doc.ActiveObservers(); n != 0 {
		t.Errorf("ActiveObservers() = %d after reject, want 0", n)
	}

	// Mutations after the rejection must not revive the observer.
	if err := doc.Append("body", `<div class="never-there"></div>`); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if n := doc.ActiveObservers(); n != 0 {
		t.Errorf("ActiveObservers() = %d after late mutation, want 0", n)
	}
}

func TestElementContextCancelled(t *testing.T) {
	doc := domtest.New(watchURL, playerPage)
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := Element(ctx, doc, ".never-there", 5*time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Element() error = %v, want context.Canceled", err)
	}
	if n := doc.ActiveObservers(); n != 0 {
		t.Errorf("ActiveObservers() = %d after cancel, want 0", n)
	}
}

func TestElementScopedToRoot(t *testing.T) {
	doc := domtest.New(watchURL, `<html><body>
<div class="ytp-popup ytp-settings-menu"><div class="ytp-menuitem">Quality</div></div>
<div class="ytp-menuitem">Outside</div>
</body></html>`)

	menu, err := Element(context.Background(), doc, ".ytp-settings-menu", time.Second)
	if err != nil {
		t.Fatalf("Element(menu) error = %v", err)
	}
	item, err := Element(context.Background(), menu, ".ytp-menuitem", time.Second)
	if err != nil {
		t.Fatalf("Element(item) error = %v", err)
	}
	text, _ := item.Text(context.Background())
	if text != "Quality" {
		t.Errorf("scoped item text = %q, want Quality", text)
	}
}

func TestAdClearNoAdResolvesImmediately(t *testing.T) {
	doc := domtest.New(watchURL, playerPage)

	start := time.Now()
	err := AdClear(context.Background(), doc, selectors.Get(), time.Second, PolicyFail)
	if err != nil {
		t.Fatalf("AdClear() error = %v", err)
	}
	if doc.ObserveCalls() != 0 {
		t.Errorf("ObserveCalls() = %d, want 0 without an ad", doc.ObserveCalls())
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("AdClear() took %v without an ad", elapsed)
	}
}

func TestAdClearWaitsForAdToEnd(t *testing.T) {
	doc := domtest.New(watchURL, adPage)

	go func() {
		time.Sleep(30 * time.Millisecond)
		doc.SetClass(".html5-video-player", "ad-showing", false)
	}()

	err := AdClear(context.Background(), doc, selectors.Get(), 2*time.Second, PolicyFail)
	if err != nil {
		t.Fatalf("AdClear() error = %v", err)
	}
	if doc.ObserveCalls() != 1 {
		t.Errorf("ObserveCalls() = %d, want 1", doc.ObserveCalls())
	}
	if n := doc.ActiveObservers(); n != 0 {
		t.Errorf("ActiveObservers() = %d, want 0", n)
	}
}

func TestAdClearTimeoutPolicy(t *testing.T) {
	tests := []struct {
		name    string
		policy  TimeoutPolicy
		wantErr error
	}{
		{name: "fail rejects", policy: PolicyFail, wantErr: types.ErrAdTimeout},
		{name: "proceed resolves", policy: PolicyProceed, wantErr: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := domtest.New(watchURL, adPage)

			err := AdClear(context.Background(), doc, selectors.Get(), 80*time.Millisecond, tt.policy)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("AdClear() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && err != nil {
				t.Errorf("AdClear() error = %v, want nil", err)
			}
			if n := doc.ActiveObservers(); n != 0 {
				t.Errorf("ActiveObservers() = %d, want 0", n)
			}
		})
	}
}

func TestPolicyFor(t *testing.T) {
	if got := PolicyFor(true); got != PolicyFail {
		t.Errorf("PolicyFor(true) = %v, want fail", got)
	}
	if got := PolicyFor(false); got != PolicyProceed {
		t.Errorf("PolicyFor(false) = %v, want proceed", got)
	}
}
