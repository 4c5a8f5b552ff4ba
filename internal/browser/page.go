package browser

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"
	"github.com/ysmood/gson"

	"github.com/Rorqualx/ytorigin/internal/dom"
	"github.com/Rorqualx/ytorigin/internal/types"
)

const (
	// eventBuffer bounds queued page events per tab.
	eventBuffer = 64

	closeTimeout = 5 * time.Second
)

// Page is a rod page seen through the dom interfaces.
// Page events and observer notifications arrive through the exposed binding.
type Page struct {
	rod    *rod.Page
	events chan dom.Event

	mu        sync.Mutex
	observers map[string]chan struct{}
	closed    bool
	nextObsID atomic.Int64

	cleanups []func() error
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

var (
	_ dom.Document    = (*Page)(nil)
	_ dom.EventSource = (*Page)(nil)
)

// newPage installs the binding and the document-start bridge on p.
func newPage(p *rod.Page, navigationEvents []string) (*Page, error) {
	page := &Page{
		rod:       p,
		events:    make(chan dom.Event, eventBuffer),
		observers: make(map[string]chan struct{}),
	}

	stop, err := p.Expose(BindingName, page.onBinding)
	if err != nil {
		return nil, fmt.Errorf("expose binding: %w", err)
	}
	page.cleanups = append(page.cleanups, stop)

	remove, err := p.EvalOnNewDocument(renderBridge(navigationEvents))
	if err != nil {
		_ = stop()
		return nil, fmt.Errorf("install bridge script: %w", err)
	}
	page.cleanups = append(page.cleanups, remove)

	// Close the event stream when the tab goes away.
	listenerCtx, cancel := context.WithCancel(context.Background())
	page.cancel = cancel
	page.wg.Add(1)
	go func() {
		defer page.wg.Done()
		p.Context(listenerCtx).EachEvent(func(e *proto.TargetTargetDestroyed) bool {
			if e.TargetID != p.TargetID {
				return false
			}
			log.Debug().Str("target", string(e.TargetID)).Msg("Tab closed")
			page.markClosed()
			return true
		})()
	}()

	return page, nil
}

func (p *Page) onBinding(payload gson.JSON) (interface{}, error) {
	id, ev, isEvent, err := decodeMessage(payload)
	if err != nil {
		log.Debug().Err(err).Msg("Ignoring malformed page message")
		return nil, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, nil
	}

	if !isEvent {
		if ch, ok := p.observers[id]; ok {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
		return nil, nil
	}

	select {
	case p.events <- ev:
	default:
		log.Warn().Str("kind", string(ev.Kind)).Msg("Page event queue full, dropping event")
	}
	return nil, nil
}

func (p *Page) markClosed() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.events)
	p.observers = map[string]chan struct{}{}
}

// Events implements dom.EventSource.
func (p *Page) Events() <-chan dom.Event {
	return p.events
}

// Query implements dom.Root.
func (p *Page) Query(ctx context.Context, selector string) (dom.Element, error) {
	has, el, err := p.rod.Context(ctx).Has(selector)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	if !has {
		return nil, nil
	}
	return &element{page: p, rod: el}, nil
}

// QueryAll implements dom.Root.
func (p *Page) QueryAll(ctx context.Context, selector string) ([]dom.Element, error) {
	els, err := p.rod.Context(ctx).Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("query all %q: %w", selector, err)
	}
	return p.wrap(els), nil
}

// Observe implements dom.Root.
func (p *Page) Observe(ctx context.Context, opts dom.ObserveOptions) (dom.Subscription, error) {
	return p.observe(ctx, opts, func(id string) error {
		_, err := p.rod.Context(ctx).Eval(observeScript, id, observeArgs(opts), false)
		return err
	})
}

func (p *Page) observe(ctx context.Context, opts dom.ObserveOptions, install func(id string) error) (dom.Subscription, error) {
	id := "obs-" + strconv.FormatInt(p.nextObsID.Add(1), 10)
	ch := make(chan struct{}, 1)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, types.ErrPageClosed
	}
	p.observers[id] = ch
	p.mu.Unlock()

	if err := install(id); err != nil {
		p.forget(id)
		return nil, fmt.Errorf("install observer: %w", err)
	}
	return &subscription{page: p, id: id, ch: ch}, nil
}

func (p *Page) forget(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.observers, id)
}

// Environment implements dom.Document.
func (p *Page) Environment(ctx context.Context) (dom.Environment, error) {
	res, err := p.rod.Context(ctx).Eval(environmentScript)
	if err != nil {
		return dom.Environment{}, fmt.Errorf("read environment: %w", err)
	}
	v := res.Value
	env := dom.Environment{
		Href:           v.Get("href").Str(),
		Hostname:       v.Get("hostname").Str(),
		UserAgent:      v.Get("userAgent").Str(),
		MaxTouchPoints: v.Get("maxTouchPoints").Int(),
	}
	for _, c := range v.Get("rootClasses").Arr() {
		env.RootClasses = append(env.RootClasses, c.Str())
	}
	return env, nil
}

// Navigate implements dom.Document.
func (p *Page) Navigate(ctx context.Context, rawURL string) error {
	if err := p.rod.Context(ctx).Navigate(rawURL); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	return nil
}

// Reload implements dom.Document.
func (p *Page) Reload(ctx context.Context) error {
	if err := p.rod.Context(ctx).Reload(); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	return nil
}

// InsertHTML implements dom.Document.
func (p *Page) InsertHTML(ctx context.Context, target dom.Element, pos dom.Position, markup string) error {
	el, ok := target.(*element)
	if !ok {
		return fmt.Errorf("insert html: element from another document")
	}
	_, err := el.rod.Context(ctx).Eval(insertScript, string(pos), markup)
	return err
}

// Close detaches the bridge and closes the tab. It runs on its own deadline
// so it works during shutdown, after the context the tab was opened with is
// gone.
func (p *Page) Close() error {
	for _, cleanup := range p.cleanups {
		if err := cleanup(); err != nil {
			log.Debug().Err(err).Msg("Bridge cleanup failed")
		}
	}
	closeCtx, cancelClose := context.WithTimeout(context.Background(), closeTimeout)
	err := p.rod.Context(closeCtx).Close()
	cancelClose()

	p.cancel()
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Warn().Msg("Timeout waiting for tab listener to stop")
	}

	p.markClosed()
	return err
}

func (p *Page) wrap(els rod.Elements) []dom.Element {
	out := make([]dom.Element, 0, len(els))
	for _, el := range els {
		out = append(out, &element{page: p, rod: el})
	}
	return out
}

type subscription struct {
	page *Page
	id   string
	ch   chan struct{}
	once sync.Once
}

func (s *subscription) C() <-chan struct{} { return s.ch }

// Close disconnects the in-page observer. The page may already be gone, in
// which case the observer died with it.
func (s *subscription) Close() error {
	var err error
	s.once.Do(func() {
		s.page.forget(s.id)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, err = s.page.rod.Context(ctx).Eval(disconnectScript, s.id)
		if err != nil {
			log.Debug().Err(err).Str("observer", s.id).Msg("Observer disconnect failed")
		}
	})
	return err
}

type element struct {
	page *Page
	rod  *rod.Element
}

func (e *element) Query(ctx context.Context, selector string) (dom.Element, error) {
	has, el, err := e.rod.Context(ctx).Has(selector)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	if !has {
		return nil, nil
	}
	return &element{page: e.page, rod: el}, nil
}

func (e *element) QueryAll(ctx context.Context, selector string) ([]dom.Element, error) {
	els, err := e.rod.Context(ctx).Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("query all %q: %w", selector, err)
	}
	return e.page.wrap(els), nil
}

func (e *element) Observe(ctx context.Context, opts dom.ObserveOptions) (dom.Subscription, error) {
	return e.page.observe(ctx, opts, func(id string) error {
		_, err := e.rod.Context(ctx).Eval(observeScript, id, observeArgs(opts), true)
		return err
	})
}

func (e *element) Text(ctx context.Context) (string, error) {
	res, err := e.rod.Context(ctx).Eval(textScript)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (e *element) HasClass(ctx context.Context, name string) (bool, error) {
	res, err := e.rod.Context(ctx).Eval(hasClassScript, name)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

func (e *element) Click(ctx context.Context) error {
	_, err := e.rod.Context(ctx).Eval(clickScript)
	return err
}

func (e *element) SetChecked(ctx context.Context, checked bool) error {
	_, err := e.rod.Context(ctx).Eval(checkedScript, checked)
	return err
}
