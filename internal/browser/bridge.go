package browser

import (
	"fmt"

	"github.com/ysmood/gson"

	"github.com/Rorqualx/ytorigin/internal/dom"
	"github.com/Rorqualx/ytorigin/internal/toggle"
)

// BindingName is the page-global function that forwards messages to Go.
const BindingName = "__ytorigin"

// Message types sent through the binding.
const (
	msgMutation = "mutation"
	msgEvent    = "event"
)

// bridgeConfig is serialized into the document-start script.
type bridgeConfig struct {
	Binding    string   `json:"binding"`
	Events     []string `json:"events"`
	ToggleAttr string   `json:"toggleAttr"`
}

// bridgeScript runs at the start of every document. It forwards the site's
// navigation events, full-URL changes, the initial load, and switch changes.
const bridgeScript = `(() => {
  if (window.__ytoriginBridge) return;
  window.__ytoriginBridge = true;
  const cfg = %s;
  const send = (msg) => {
    try { window[cfg.binding](msg); } catch (e) { console.debug('[ytorigin] binding unavailable', e); }
  };
  window.__ytoriginObservers = window.__ytoriginObservers || new Map();

  for (const name of cfg.events) {
    window.addEventListener(name, () => send({type: 'event', kind: 'navigate', name, href: location.href}), true);
  }

  let lastHref = location.href;
  const checkURL = () => {
    if (location.href !== lastHref) {
      lastHref = location.href;
      send({type: 'event', kind: 'urlchange', href: lastHref});
    }
  };

  document.addEventListener('change', (e) => {
    const t = e.target;
    if (t && t.hasAttribute && t.hasAttribute(cfg.toggleAttr)) {
      send({type: 'event', kind: 'toggle', enabled: !!t.checked, href: location.href});
    }
  }, true);

  const start = () => {
    new MutationObserver(checkURL).observe(document, {childList: true, subtree: true});
    send({type: 'event', kind: 'load', href: location.href});
  };
  if (document.readyState === 'loading') {
    document.addEventListener('DOMContentLoaded', start, {once: true});
  } else {
    start();
  }
})()`

// observeScript installs a MutationObserver that reports through the binding.
// The target is the receiver element, or the document when useThis is false.
const observeScript = `function(id, opts, useThis) {
  const registry = (window.__ytoriginObservers = window.__ytoriginObservers || new Map());
  const target = useThis ? this : document;
  const obs = new MutationObserver(() => {
    try { window['` + BindingName + `']({type: 'mutation', id}); } catch (e) {}
  });
  obs.observe(target, opts);
  registry.set(id, obs);
}`

const disconnectScript = `(id) => {
  const registry = window.__ytoriginObservers;
  const obs = registry && registry.get(id);
  if (obs) {
    obs.disconnect();
    registry.delete(id);
  }
}`

const environmentScript = `() => ({
  href: location.href,
  hostname: location.hostname,
  userAgent: navigator.userAgent,
  maxTouchPoints: navigator.maxTouchPoints || 0,
  rootClasses: Array.from(document.documentElement ? document.documentElement.classList : []),
})`

const (
	textScript     = `() => this.textContent || ''`
	hasClassScript = `(name) => this.classList.contains(name)`
	clickScript    = `() => this.click()`
	checkedScript  = `(checked) => { this.checked = checked }`
	insertScript   = `(pos, markup) => this.insertAdjacentHTML(pos, markup)`
)

// renderBridge returns the document-start script for the given navigation events.
func renderBridge(events []string) string {
	cfg := gson.New(bridgeConfig{
		Binding:    BindingName,
		Events:     events,
		ToggleAttr: toggle.InputAttr,
	})
	return fmt.Sprintf(bridgeScript, cfg.JSON("", ""))
}

// observeArgs converts options into a MutationObserverInit object.
func observeArgs(opts dom.ObserveOptions) map[string]interface{} {
	init := map[string]interface{}{}
	if opts.ChildList {
		init["childList"] = true
	}
	if opts.Subtree {
		init["subtree"] = true
	}
	if opts.Attributes {
		init["attributes"] = true
	}
	if len(opts.AttributeFilter) > 0 {
		init["attributeFilter"] = opts.AttributeFilter
	}
	return init
}

// decodeMessage splits a binding payload into an observer id or a page event.
func decodeMessage(payload gson.JSON) (observerID string, ev dom.Event, isEvent bool, err error) {
	switch kind := payload.Get("type").Str(); kind {
	case msgMutation:
		id := payload.Get("id").Str()
		if id == "" {
			return "", dom.Event{}, false, fmt.Errorf("mutation message without id")
		}
		return id, dom.Event{}, false, nil
	case msgEvent:
		ev = dom.Event{
			Kind:    dom.EventKind(payload.Get("kind").Str()),
			Href:    payload.Get("href").Str(),
			Name:    payload.Get("name").Str(),
			Enabled: payload.Get("enabled").Bool(),
		}
		switch ev.Kind {
		case dom.EventLoad, dom.EventNavigate, dom.EventURLChange, dom.EventToggle:
			return "", ev, true, nil
		}
		return "", dom.Event{}, false, fmt.Errorf("unknown event kind %q", ev.Kind)
	default:
		return "", dom.Event{}, false, fmt.Errorf("unknown message type %q", kind)
	}
}
