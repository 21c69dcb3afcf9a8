//go:build js && wasm

// Package dom implements the browser contracts over the real DOM through
// syscall/js.
package dom

import (
	"sync"
	"syscall/js"

	"github.com/basecamp/storefront/internal/nav"
)

// stateKey is the property of history.state holding the entry identifier.
const stateKey = "storefrontStateId"

// Browser adapts window.history, window.location, requestAnimationFrame
// and a scroll container.
type Browser struct {
	window   js.Value
	selector string

	mu     sync.Mutex
	frames map[nav.FrameID]frame
	nextID nav.FrameID
}

type frame struct {
	handle js.Value
	fn     js.Func
}

var (
	_ nav.BrowserHistory = (*Browser)(nil)
	_ nav.Location       = (*Browser)(nil)
	_ nav.FrameScheduler = (*Browser)(nil)
)

// New creates a Browser. scrollSelector picks the scrollable container; an
// empty selector uses the document's scrolling element.
func New(scrollSelector string) *Browser {
	return &Browser{
		window:   js.Global(),
		selector: scrollSelector,
		frames:   make(map[nav.FrameID]frame),
	}
}

func (b *Browser) history() js.Value {
	return b.window.Get("history")
}

func state(id nav.StateID) js.Value {
	obj := js.Global().Get("Object").New()
	obj.Set(stateKey, string(id))
	return obj
}

func (b *Browser) PushState(id nav.StateID, url string) {
	b.history().Call("pushState", state(id), "", url)
}

func (b *Browser) ReplaceState(id nav.StateID, url string) {
	b.history().Call("replaceState", state(id), "", url)
}

func (b *Browser) StateID() (nav.StateID, bool) {
	return idOf(b.history().Get("state"))
}

func idOf(s js.Value) (nav.StateID, bool) {
	if s.IsNull() || s.IsUndefined() || s.Type() != js.TypeObject {
		return "", false
	}
	v := s.Get(stateKey)
	if v.Type() != js.TypeString || v.String() == "" {
		return "", false
	}
	return nav.StateID(v.String()), true
}

func (b *Browser) Location() string {
	loc := b.window.Get("location")
	return loc.Get("pathname").String() + loc.Get("search").String()
}

// OnPopState listens for the window's popstate event.
func (b *Browser) OnPopState(fn func(nav.PopStateEvent)) func() {
	listener := js.FuncOf(func(_ js.Value, args []js.Value) any {
		var ev nav.PopStateEvent
		if len(args) > 0 {
			ev.ID, ev.HasState = idOf(args[0].Get("state"))
		}
		fn(ev)
		return nil
	})
	b.window.Call("addEventListener", "popstate", listener)

	var once sync.Once
	return func() {
		once.Do(func() {
			b.window.Call("removeEventListener", "popstate", listener)
			listener.Release()
		})
	}
}

// Assign leaves the app for url.
func (b *Browser) Assign(url string) {
	b.window.Get("location").Call("assign", url)
}

func (b *Browser) RequestFrame(fn func()) nav.FrameID {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.mu.Unlock()

	var cb js.Func
	cb = js.FuncOf(func(js.Value, []js.Value) any {
		b.mu.Lock()
		_, live := b.frames[id]
		delete(b.frames, id)
		b.mu.Unlock()
		cb.Release()
		if live {
			fn()
		}
		return nil
	})
	handle := b.window.Call("requestAnimationFrame", cb)

	b.mu.Lock()
	b.frames[id] = frame{handle: handle, fn: cb}
	b.mu.Unlock()
	return id
}

func (b *Browser) CancelFrame(id nav.FrameID) {
	b.mu.Lock()
	f, ok := b.frames[id]
	delete(b.frames, id)
	b.mu.Unlock()
	if !ok {
		return
	}
	b.window.Call("cancelAnimationFrame", f.handle)
	f.fn.Release()
}

// Scrollable returns the scroll container lookup used for scroll
// restoration.
func (b *Browser) Scrollable() nav.ScrollableFunc {
	return func() nav.ScrollElement {
		doc := b.window.Get("document")
		var el js.Value
		if b.selector != "" {
			el = doc.Call("querySelector", b.selector)
		} else {
			el = doc.Get("scrollingElement")
		}
		if el.IsNull() || el.IsUndefined() {
			return nil
		}
		return element{el}
	}
}

type element struct {
	v js.Value
}

func (e element) ScrollTop() float64     { return e.v.Get("scrollTop").Float() }
func (e element) SetScrollTop(y float64) { e.v.Set("scrollTop", y) }
func (e element) ScrollHeight() float64  { return e.v.Get("scrollHeight").Float() }

// OffsetHeight is the visible height. clientHeight is used because the
// document's scrolling element reports its full height as offsetHeight.
func (e element) OffsetHeight() float64 { return e.v.Get("clientHeight").Float() }
