// Package dom defines the narrow view of a live page that the automation needs.
//
// The production implementation drives a Chromium tab over CDP (internal/browser);
// internal/dom/domtest provides an in-memory document for tests. Every call
// takes a context because each one is a round trip to the page.
package dom

import (
	"context"
	"strings"
)

// Root is anything that can be searched and observed: the document or an element.
type Root interface {
	// Query returns the first match or nil when nothing matches.
	Query(ctx context.Context, selector string) (Element, error)
	// QueryAll returns every match in document order.
	QueryAll(ctx context.Context, selector string) ([]Element, error)
	// Observe installs a mutation observer scoped to this root. The caller
	// must Close the subscription.
	Observe(ctx context.Context, opts ObserveOptions) (Subscription, error)
}

// Element is a live node in the page.
type Element interface {
	Root
	// Text returns the element's textContent.
	Text(ctx context.Context) (string, error)
	// HasClass reports whether the class list contains name.
	HasClass(ctx context.Context, name string) (bool, error)
	// Click dispatches a synthetic click, like HTMLElement.click().
	Click(ctx context.Context) error
	// SetChecked sets the checked state of an input without firing change.
	SetChecked(ctx context.Context, checked bool) error
}

// Document is the page as a whole.
type Document interface {
	Root
	// Environment captures what the redirect decision needs in one round trip.
	Environment(ctx context.Context) (Environment, error)
	// Navigate assigns location.href.
	Navigate(ctx context.Context, rawURL string) error
	// Reload reloads the current page.
	Reload(ctx context.Context) error
	// InsertHTML parses markup and places it relative to target.
	InsertHTML(ctx context.Context, target Element, pos Position, markup string) error
}

// ObserveOptions mirrors MutationObserverInit.
type ObserveOptions struct {
	ChildList       bool
	Subtree         bool
	Attributes      bool
	AttributeFilter []string
}

// SubtreeChanges is the option set used when waiting for elements to appear.
var SubtreeChanges = ObserveOptions{ChildList: true, Subtree: true}

// ClassChanges is the option set used when waiting for a class to change.
var ClassChanges = ObserveOptions{Attributes: true, AttributeFilter: []string{"class"}}

// Subscription delivers a coalesced signal for each batch of mutations.
type Subscription interface {
	C() <-chan struct{}
	Close() error
}

// Position selects where InsertHTML places new nodes.
type Position string

// Insert positions, named after insertAdjacentHTML.
const (
	AfterEnd  Position = "afterend"
	BeforeEnd Position = "beforeend"
)

// Environment is a snapshot of the location and device signals of a page.
type Environment struct {
	Href           string
	Hostname       string
	UserAgent      string
	MaxTouchPoints int
	RootClasses    []string
}

// HasRootClass reports whether the document element carries class name.
func (e Environment) HasRootClass(name string) bool {
	if name == "" {
		return false
	}
	for _, c := range e.RootClasses {
		if c == name {
			return true
		}
	}
	return false
}

// EventKind classifies page events forwarded to Go.
type EventKind string

// Page event kinds.
const (
	EventLoad      EventKind = "load"
	EventNavigate  EventKind = "navigate"
	EventURLChange EventKind = "urlchange"
	EventToggle    EventKind = "toggle"
)

// Event is one notification from the injected page script.
type Event struct {
	Kind    EventKind
	Href    string
	Name    string // custom event name for EventNavigate
	Enabled bool   // switch state for EventToggle
}

// EventSource is implemented by documents that forward page events.
type EventSource interface {
	Events() <-chan Event
}

// ContainsFold reports whether text contains any label, ignoring case.
func ContainsFold(text string, labels []string) bool {
	lower := strings.ToLower(text)
	for _, label := range labels {
		if label != "" && strings.Contains(lower, strings.ToLower(label)) {
			return true
		}
	}
	return false
}

// FindByText returns the first element whose text contains one of labels.
func FindByText(ctx context.Context, elems []Element, labels []string) (Element, error) {
	for _, el := range elems {
		text, err := el.Text(ctx)
		if err != nil {
			return nil, err
		}
		if ContainsFold(text, labels) {
			return el, nil
		}
	}
	return nil, nil
}
