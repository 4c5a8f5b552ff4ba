package toggle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Rorqualx/ytorigin/internal/dom/domtest"
	"github.com/Rorqualx/ytorigin/internal/metrics"
	"github.com/Rorqualx/ytorigin/internal/prefs"
	"github.com/Rorqualx/ytorigin/internal/redirect"
	"github.com/Rorqualx/ytorigin/internal/selectors"
	"github.com/Rorqualx/ytorigin/internal/types"
)

const mobileURL = "https://m.youtube.com/watch?v=abc"

func newController(t *testing.T, stored *bool) (*Controller, *prefs.Preference) {
	t.Helper()
	pref := prefs.Redirect(prefs.NewMemoryStore())
	if stored != nil {
		if err := pref.Set(context.Background(), *stored); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
	}
	detector := redirect.New(selectors.Static(), pref, redirect.Options{
		MobileHost:   "m.youtube.com",
		DesktopParam: "app=desktop",
	})
	return New(selectors.Static(), pref, detector, 200*time.Millisecond), pref
}

func boolPtr(b bool) *bool { return &b }

func TestEnsureInsertionPoint(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		want   string
	}{
		{
			name: "after search box",
			markup: `<html><body><header class="mobile-topbar-header">
<div class="mobile-topbar-header-content"><ytm-search-box></ytm-search-box><button>menu</button></div>
</header></body></html>`,
			want: "ytm-search-box + #" + MarkerID,
		},
		{
			name: "inside end container",
			markup: `<html><body><header class="mobile-topbar-header">
<div class="mobile-topbar-header-content"><button>menu</button></div>
</header></body></html>`,
			want: ".mobile-topbar-header-content > #" + MarkerID + ":last-child",
		},
		{
			name:   "appended to header",
			markup: `<html><body><header class="mobile-topbar-header"><span>logo</span></header></body></html>`,
			want:   "header.mobile-topbar-header > #" + MarkerID + ":last-child",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := domtest.New(mobileURL, tt.markup)
			c, _ := newController(t, nil)

			inserted, err := c.Ensure(context.Background(), doc)
			if err != nil {
				t.Fatalf("Ensure() error = %v", err)
			}
			if !inserted {
				t.Fatal("Ensure() = false, want true")
			}
			if !doc.Has(tt.want) {
				t.Errorf("switch not found at %q", tt.want)
			}
			if doc.Count("#"+MarkerID) != 1 {
				t.Errorf("switch count = %d, want 1", doc.Count("#"+MarkerID))
			}
		})
	}
}

func TestEnsureNoDuplicate(t *testing.T) {
	doc := domtest.New(mobileURL, `<html><body><header class="mobile-topbar-header"></header></body></html>`)
	c, _ := newController(t, nil)

	for i, want := range []bool{true, false, false} {
		inserted, err := c.Ensure(context.Background(), doc)
		if err != nil {
			t.Fatalf("Ensure() #%d error = %v", i, err)
		}
		if inserted != want {
			t.Errorf("Ensure() #%d = %v, want %v", i, inserted, want)
		}
	}
	if n := doc.Count("#" + MarkerID); n != 1 {
		t.Errorf("switch count = %d, want 1", n)
	}
}

func TestEnsureReflectsPreference(t *testing.T) {
	tests := []struct {
		name        string
		stored      *bool
		wantChecked bool
	}{
		{name: "default", stored: nil, wantChecked: true},
		{name: "enabled", stored: boolPtr(true), wantChecked: true},
		{name: "disabled", stored: boolPtr(false), wantChecked: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := domtest.New(mobileURL, `<html><body><header class="mobile-topbar-header"></header></body></html>`)
			c, _ := newController(t, tt.stored)

			if _, err := c.Ensure(context.Background(), doc); err != nil {
				t.Fatalf("Ensure() error = %v", err)
			}
			if got := doc.Has("#" + MarkerID + " input[checked]"); got != tt.wantChecked {
				t.Errorf("checked = %v, want %v", got, tt.wantChecked)
			}
		})
	}
}

func TestEnsureSkipsDesktop(t *testing.T) {
	doc := domtest.New("https://www.youtube.com/watch?v=abc",
		`<html><body><div id="masthead-container"></div></body></html>`)
	c, _ := newController(t, nil)

	inserted, err := c.Ensure(context.Background(), doc)
	if err != nil || inserted {
		t.Fatalf("Ensure() = %v, %v, want false, nil", inserted, err)
	}
	if doc.Has("#" + MarkerID) {
		t.Error("switch inserted on a desktop page")
	}
	if doc.ObserveCalls() != 0 {
		t.Error("desktop page should not wait for the header")
	}
}

func TestEnsureHeaderTimeout(t *testing.T) {
	doc := domtest.New(mobileURL, `<html><body></body></html>`)
	c, _ := newController(t, nil)

	_, err := c.Ensure(context.Background(), doc)
	if !errors.Is(err, types.ErrElementTimeout) {
		t.Errorf("Ensure() error = %v, want ErrElementTimeout", err)
	}
}

func TestSet(t *testing.T) {
	tests := []struct {
		name        string
		href        string
		enabled     bool
		wantReloads int
	}{
		{name: "enable while desktop forced", href: mobileURL + "&app=desktop", enabled: true, wantReloads: 0},
		{name: "enable without desktop param", href: mobileURL, enabled: true, wantReloads: 1},
		{name: "disable", href: mobileURL, enabled: false, wantReloads: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := domtest.New(tt.href, `<html><body></body></html>`)
			c, pref := newController(t, boolPtr(!tt.enabled))

			reloaded, err := c.Set(context.Background(), doc, tt.enabled)
			if err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			if reloaded != (tt.wantReloads > 0) {
				t.Errorf("Set() = %v, want %v", reloaded, tt.wantReloads > 0)
			}
			if got := doc.Reloads(); got != tt.wantReloads {
				t.Errorf("Reloads() = %d, want %d", got, tt.wantReloads)
			}
			if stored, _ := pref.Enabled(context.Background()); stored != tt.enabled {
				t.Errorf("stored preference = %v, want %v", stored, tt.enabled)
			}
		})
	}
}

func TestSetWithoutPage(t *testing.T) {
	c, pref := newController(t, boolPtr(false))

	reloaded, err := c.Set(context.Background(), nil, true)
	if err != nil || reloaded {
		t.Fatalf("Set(nil doc) = %v, %v, want false, nil", reloaded, err)
	}
	if stored, _ := pref.Enabled(context.Background()); !stored {
		t.Error("preference not persisted")
	}
}

func TestApplySyncsSwitchWithoutSaving(t *testing.T) {
	ctx := context.Background()
	doc := domtest.New(mobileURL+"&app=desktop", `<html><body><header class="mobile-topbar-header"></header></body></html>`)
	c, pref := newController(t, boolPtr(true))

	if _, err := c.Ensure(ctx, doc); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	checked := "#" + MarkerID + " input[checked]"
	if !doc.Has(checked) {
		t.Fatal("switch should start checked")
	}

	recorded := func() float64 {
		return testutil.ToFloat64(metrics.ToggleChanges.WithLabelValues("true")) +
			testutil.ToFloat64(metrics.ToggleChanges.WithLabelValues("false"))
	}
	before := recorded()

	// Stored elsewhere, then broadcast to the page.
	if err := pref.Set(ctx, false); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	reloaded, err := c.Apply(ctx, doc, false)
	if err != nil || reloaded {
		t.Fatalf("Apply(false) = %v, %v, want false, nil", reloaded, err)
	}
	if doc.Has(checked) {
		t.Error("switch still checked after Apply(false)")
	}

	if _, err := c.Apply(ctx, doc, true); err != nil {
		t.Fatalf("Apply(true) error = %v", err)
	}
	if !doc.Has(checked) {
		t.Error("switch not checked after Apply(true)")
	}
	if doc.Reloads() != 0 {
		t.Errorf("Reloads() = %d, want 0 with the desktop layout forced", doc.Reloads())
	}
	if stored, _ := pref.Enabled(ctx); stored {
		t.Error("Apply wrote the preference")
	}
	if got := recorded() - before; got != 0 {
		t.Errorf("Apply recorded %v toggle changes, want 0", got)
	}
}

func TestMarkupCarriesInputAttr(t *testing.T) {
	for _, enabled := range []bool{true, false} {
		markup, err := Markup(enabled)
		if err != nil {
			t.Fatalf("Markup(%v) error = %v", enabled, err)
		}
		doc := domtest.New("https://m.youtube.com/", "<html><body>"+markup+"</body></html>")
		if !doc.Has("#" + MarkerID + " input[" + InputAttr + "]") {
			t.Errorf("Markup(%v) = %q, missing input with %s", enabled, markup, InputAttr)
		}
	}
}
