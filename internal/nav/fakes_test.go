package nav

import (
	"bytes"
	"log/slog"
	"slices"
	"sync"
)

type historyCall struct {
	op  string
	id  StateID
	url string
}

type fakeHistory struct {
	mu        sync.Mutex
	calls     []historyCall
	stateID   StateID
	hasState  bool
	location  string
	listeners []func(PopStateEvent)
	// onCall runs while a push/replace is being recorded.
	onCall func(historyCall)
}

func (f *fakeHistory) record(c historyCall) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.stateID, f.hasState, f.location = c.id, true, c.url
	hook := f.onCall
	f.mu.Unlock()
	if hook != nil {
		hook(c)
	}
}

func (f *fakeHistory) PushState(id StateID, url string)    { f.record(historyCall{"push", id, url}) }
func (f *fakeHistory) ReplaceState(id StateID, url string) { f.record(historyCall{"replace", id, url}) }

func (f *fakeHistory) StateID() (StateID, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stateID, f.hasState
}

func (f *fakeHistory) Location() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.location
}

func (f *fakeHistory) OnPopState(fn func(PopStateEvent)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, fn)
	return func() {}
}

// pop simulates the browser moving to an entry and firing popstate.
func (f *fakeHistory) pop(url string, id StateID, hasState bool) {
	f.mu.Lock()
	f.location, f.stateID, f.hasState = url, id, hasState
	listeners := slices.Clone(f.listeners)
	f.mu.Unlock()
	for _, fn := range listeners {
		fn(PopStateEvent{ID: id, HasState: hasState})
	}
}

type fakeFrames struct {
	mu        sync.Mutex
	next      FrameID
	queue     map[FrameID]func()
	order     []FrameID
	requested int
	cancelled int
}

func newFakeFrames() *fakeFrames {
	return &fakeFrames{queue: map[FrameID]func(){}}
}

func (f *fakeFrames) RequestFrame(fn func()) FrameID {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	f.requested++
	f.queue[f.next] = fn
	f.order = append(f.order, f.next)
	return f.next
}

func (f *fakeFrames) CancelFrame(id FrameID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.queue[id]; ok {
		f.cancelled++
		delete(f.queue, id)
	}
}

// tick runs the frames queued before the call and reports how many ran.
func (f *fakeFrames) tick() int {
	f.mu.Lock()
	order := f.order
	f.order = nil
	var fns []func()
	for _, id := range order {
		if fn, ok := f.queue[id]; ok {
			fns = append(fns, fn)
			delete(f.queue, id)
		}
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
	return len(fns)
}

func (f *fakeFrames) drain(limit int) int {
	ticks := 0
	for ticks < limit && f.tick() > 0 {
		ticks++
	}
	return ticks
}

type fakeElement struct {
	mu           sync.Mutex
	scrollTop    float64
	scrollHeight float64
	offsetHeight float64
	sets         []float64
}

func (e *fakeElement) ScrollTop() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scrollTop
}

func (e *fakeElement) SetScrollTop(y float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scrollTop = y
	e.sets = append(e.sets, y)
}

func (e *fakeElement) ScrollHeight() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scrollHeight
}

func (e *fakeElement) OffsetHeight() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.offsetHeight
}

type countingObserver struct {
	mu      sync.Mutex
	misses  map[string]int
	results map[string]int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{misses: map[string]int{}, results: map[string]int{}}
}

func (o *countingObserver) HistoryMiss(op string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.misses[op]++
}

func (o *countingObserver) ScrollRestore(result string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results[result]++
}

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}
