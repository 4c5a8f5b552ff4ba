// Package domtest provides an in-memory dom.Document for tests.
//
// Documents are built from HTML fixtures. Selectors are matched with cascadia,
// mutations made through the helpers notify observers the same way a browser
// MutationObserver would, and click handlers let a test script how the page
// reacts to the automation.
package domtest

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/Rorqualx/ytorigin/internal/dom"
)

// ClickFunc runs after an element matching its selector (or a descendant) is clicked.
type ClickFunc func(d *Document)

type clickHandler struct {
	match cascadia.Selector
	fn    ClickFunc
}

type observer struct {
	node *html.Node
	opts dom.ObserveOptions
	ch   chan struct{}
}

// Document is a mutable HTML document implementing dom.Document and dom.EventSource.
type Document struct {
	mu        sync.Mutex
	root      *html.Node
	env       dom.Environment
	observers map[int]*observer
	nextObsID int
	handlers  []clickHandler
	clicks    []string
	navs      []string
	reloads   int
	events    chan dom.Event
}

var (
	_ dom.Document    = (*Document)(nil)
	_ dom.EventSource = (*Document)(nil)
)

// New parses markup into a document served from href.
// It panics on malformed selectors or URLs since fixtures are static.
func New(href, markup string) *Document {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		panic(fmt.Sprintf("domtest: parse fixture: %v", err))
	}
	d := &Document{
		root:      root,
		observers: make(map[int]*observer),
		events:    make(chan dom.Event, 32),
	}
	d.setHref(href)
	return d
}

// SetUserAgent sets navigator.userAgent.
func (d *Document) SetUserAgent(ua string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.env.UserAgent = ua
}

// SetTouchPoints sets navigator.maxTouchPoints.
func (d *Document) SetTouchPoints(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.env.MaxTouchPoints = n
}

// SetURL changes location.href without recording a navigation, like history.pushState.
func (d *Document) SetURL(href string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setHref(href)
}

func (d *Document) setHref(href string) {
	u, err := url.Parse(href)
	if err != nil {
		panic(fmt.Sprintf("domtest: parse url %q: %v", href, err))
	}
	d.env.Href = href
	d.env.Hostname = u.Hostname()
}

// OnClick registers fn to run when an element matching selector is clicked.
func (d *Document) OnClick(selector string, fn ClickFunc) {
	match := mustCompile(selector)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = append(d.handlers, clickHandler{match: match, fn: fn})
}

// Append parses markup and appends it to the first element matching parent.
func (d *Document) Append(parent, markup string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	target := d.first(d.root, mustCompile(parent))
	if target == nil {
		return fmt.Errorf("domtest: no element matches %q", parent)
	}
	return d.insertLocked(target, dom.BeforeEnd, markup)
}

// Remove detaches every element matching selector and returns how many were removed.
func (d *Document) Remove(selector string) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	nodes := d.all(d.root, mustCompile(selector))
	for _, n := range nodes {
		if n.Parent == nil {
			continue
		}
		parent := n.Parent
		parent.RemoveChild(n)
		d.notifyLocked(parent, "")
	}
	return len(nodes)
}

// SetClass adds or removes class on every element matching selector.
func (d *Document) SetClass(selector, class string, present bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, n := range d.all(d.root, mustCompile(selector)) {
		classes := strings.Fields(attr(n, "class"))
		out := classes[:0]
		for _, c := range classes {
			if c != class {
				out = append(out, c)
			}
		}
		if present {
			out = append(out, class)
		}
		setAttr(n, "class", strings.Join(out, " "))
		d.notifyLocked(n, "class")
	}
}

// Emit queues a page event for the EventSource consumer.
func (d *Document) Emit(ev dom.Event) {
	d.events <- ev
}

// Events implements dom.EventSource.
func (d *Document) Events() <-chan dom.Event {
	return d.events
}

// Clicks returns a description of every element clicked so far.
func (d *Document) Clicks() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.clicks...)
}

// Navigations returns every URL passed to Navigate.
func (d *Document) Navigations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.navs...)
}

// Reloads returns how many times Reload was called.
func (d *Document) Reloads() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reloads
}

// ActiveObservers returns the number of subscriptions not yet closed.
func (d *Document) ActiveObservers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.observers)
}

// ObserveCalls returns how many subscriptions were ever created.
func (d *Document) ObserveCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.nextObsID
}

// Has reports whether any element matches selector.
func (d *Document) Has(selector string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.first(d.root, mustCompile(selector)) != nil
}

// Count returns how many elements match selector.
func (d *Document) Count(selector string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.all(d.root, mustCompile(selector)))
}

// Query implements dom.Root.
func (d *Document) Query(_ context.Context, selector string) (dom.Element, error) {
	return d.query(d.root, selector)
}

// QueryAll implements dom.Root.
func (d *Document) QueryAll(_ context.Context, selector string) ([]dom.Element, error) {
	return d.queryAll(d.root, selector)
}

// Observe implements dom.Root.
func (d *Document) Observe(_ context.Context, opts dom.ObserveOptions) (dom.Subscription, error) {
	return d.observe(d.root, opts), nil
}

// Environment implements dom.Document.
func (d *Document) Environment(_ context.Context) (dom.Environment, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	env := d.env
	if htmlEl := d.first(d.root, mustCompile("html")); htmlEl != nil {
		env.RootClasses = strings.Fields(attr(htmlEl, "class"))
	}
	return env, nil
}

// Navigate implements dom.Document.
func (d *Document) Navigate(_ context.Context, rawURL string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.navs = append(d.navs, rawURL)
	d.setHref(rawURL)
	return nil
}

// Reload implements dom.Document.
func (d *Document) Reload(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reloads++
	return nil
}

// InsertHTML implements dom.Document.
func (d *Document) InsertHTML(_ context.Context, target dom.Element, pos dom.Position, markup string) error {
	el, ok := target.(*element)
	if !ok || el.doc != d {
		return fmt.Errorf("domtest: element does not belong to this document")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.insertLocked(el.node, pos, markup)
}

func (d *Document) insertLocked(target *html.Node, pos dom.Position, markup string) error {
	nodes, err := html.ParseFragment(strings.NewReader(markup), &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
	})
	if err != nil {
		return fmt.Errorf("domtest: parse fragment: %w", err)
	}

	switch pos {
	case dom.BeforeEnd:
		for _, n := range nodes {
			target.AppendChild(n)
		}
		d.notifyLocked(target, "")
	case dom.AfterEnd:
		parent := target.Parent
		if parent == nil {
			return fmt.Errorf("domtest: afterend target has no parent")
		}
		next := target.NextSibling
		for _, n := range nodes {
			parent.InsertBefore(n, next)
		}
		d.notifyLocked(parent, "")
	default:
		return fmt.Errorf("domtest: unsupported position %q", pos)
	}
	return nil
}

func (d *Document) query(from *html.Node, selector string) (dom.Element, error) {
	match, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if n := d.first(from, match); n != nil {
		return &element{doc: d, node: n}, nil
	}
	return nil, nil
}

func (d *Document) queryAll(from *html.Node, selector string) ([]dom.Element, error) {
	match, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	nodes := d.all(from, match)
	out := make([]dom.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &element{doc: d, node: n})
	}
	return out, nil
}

func (d *Document) observe(node *html.Node, opts dom.ObserveOptions) dom.Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextObsID++
	id := d.nextObsID
	obs := &observer{node: node, opts: opts, ch: make(chan struct{}, 1)}
	d.observers[id] = obs
	return &subscription{doc: d, id: id, ch: obs.ch}
}

// notifyLocked signals observers interested in a mutation on target.
// attrName is empty for childList mutations.
func (d *Document) notifyLocked(target *html.Node, attrName string) {
	for _, obs := range d.observers {
		if !obs.wants(target, attrName) {
			continue
		}
		select {
		case obs.ch <- struct{}{}:
		default:
		}
	}
}

func (o *observer) wants(target *html.Node, attrName string) bool {
	inScope := target == o.node || (o.opts.Subtree && isAncestor(o.node, target))
	if !inScope {
		return false
	}
	if attrName == "" {
		return o.opts.ChildList
	}
	if !o.opts.Attributes {
		return false
	}
	if len(o.opts.AttributeFilter) == 0 {
		return true
	}
	for _, name := range o.opts.AttributeFilter {
		if name == attrName {
			return true
		}
	}
	return false
}

func (d *Document) click(n *html.Node) {
	d.mu.Lock()
	d.clicks = append(d.clicks, describe(n))
	var fns []ClickFunc
	for _, h := range d.handlers {
		for cur := n; cur != nil; cur = cur.Parent {
			if cur.Type == html.ElementNode && h.match.Match(cur) {
				fns = append(fns, h.fn)
				break
			}
		}
	}
	d.mu.Unlock()

	for _, fn := range fns {
		fn(d)
	}
}

func (d *Document) first(from *html.Node, match cascadia.Selector) *html.Node {
	var found *html.Node
	walk(from, func(n *html.Node) bool {
		if n != from && n.Type == html.ElementNode && match.Match(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

func (d *Document) all(from *html.Node, match cascadia.Selector) []*html.Node {
	var out []*html.Node
	walk(from, func(n *html.Node) bool {
		if n != from && n.Type == html.ElementNode && match.Match(n) {
			out = append(out, n)
		}
		return true
	})
	return out
}

type subscription struct {
	doc  *Document
	id   int
	ch   chan struct{}
	once sync.Once
}

func (s *subscription) C() <-chan struct{} { return s.ch }

func (s *subscription) Close() error {
	s.once.Do(func() {
		s.doc.mu.Lock()
		delete(s.doc.observers, s.id)
		s.doc.mu.Unlock()
	})
	return nil
}

type element struct {
	doc  *Document
	node *html.Node
}

func (e *element) Query(_ context.Context, selector string) (dom.Element, error) {
	return e.doc.query(e.node, selector)
}

func (e *element) QueryAll(_ context.Context, selector string) ([]dom.Element, error) {
	return e.doc.queryAll(e.node, selector)
}

func (e *element) Observe(_ context.Context, opts dom.ObserveOptions) (dom.Subscription, error) {
	return e.doc.observe(e.node, opts), nil
}

func (e *element) Text(_ context.Context) (string, error) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	var b strings.Builder
	walk(e.node, func(n *html.Node) bool {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		return true
	})
	return b.String(), nil
}

func (e *element) HasClass(_ context.Context, name string) (bool, error) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	for _, c := range strings.Fields(attr(e.node, "class")) {
		if c == name {
			return true, nil
		}
	}
	return false, nil
}

func (e *element) Click(_ context.Context) error {
	e.doc.click(e.node)
	return nil
}

func (e *element) SetChecked(_ context.Context, checked bool) error {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if checked {
		setAttr(e.node, "checked", "")
	} else {
		removeAttr(e.node, "checked")
	}
	e.doc.notifyLocked(e.node, "checked")
	return nil
}

func walk(n *html.Node, visit func(*html.Node) bool) bool {
	if !visit(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, visit) {
			return false
		}
	}
	return true
}

func isAncestor(ancestor, n *html.Node) bool {
	for cur := n.Parent; cur != nil; cur = cur.Parent {
		if cur == ancestor {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != key {
			out = append(out, a)
		}
	}
	n.Attr = out
}

func describe(n *html.Node) string {
	var b strings.Builder
	b.WriteString(n.Data)
	if id := attr(n, "id"); id != "" {
		b.WriteString("#" + id)
	}
	for _, c := range strings.Fields(attr(n, "class")) {
		b.WriteString("." + c)
	}
	return b.String()
}

func mustCompile(selector string) cascadia.Selector {
	match, err := cascadia.Compile(selector)
	if err != nil {
		panic(fmt.Sprintf("domtest: invalid selector %q: %v", selector, err))
	}
	return match
}
