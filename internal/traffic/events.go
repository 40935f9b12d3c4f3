package traffic

import (
	"log/slog"
	"sync"

	"github.com/roach88/capstore/internal/capture"
)

type subscription[F any] struct {
	id uint64
	fn F
}

// events is the OnAdded/OnCleared listener registry embedded by both store
// variants. Listeners run on the notifying goroutine after the registry
// lock is released; a panicking listener is logged and skipped.
type events struct {
	mu      sync.Mutex
	nextID  uint64
	added   []subscription[func(capture.Record)]
	cleared []subscription[func()]
	logger  *slog.Logger
}

// OnAdded registers fn to run after each Add. Call the returned func to
// unsubscribe.
func (e *events) OnAdded(fn func(capture.Record)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	id := e.nextID
	e.added = append(e.added, subscription[func(capture.Record)]{id: id, fn: fn})
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.added = removeSubscription(e.added, id)
	}
}

// OnCleared registers fn to run after each clear. Call the returned func to
// unsubscribe.
func (e *events) OnCleared(fn func()) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	id := e.nextID
	e.cleared = append(e.cleared, subscription[func()]{id: id, fn: fn})
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.cleared = removeSubscription(e.cleared, id)
	}
}

func (e *events) fireAdded(r capture.Record) {
	e.mu.Lock()
	subs := append([]subscription[func(capture.Record)](nil), e.added...)
	e.mu.Unlock()

	for _, s := range subs {
		e.call("added", func() { s.fn(r.Clone()) })
	}
}

func (e *events) fireCleared() {
	e.mu.Lock()
	subs := append([]subscription[func()](nil), e.cleared...)
	e.mu.Unlock()

	for _, s := range subs {
		e.call("cleared", s.fn)
	}
}

func (e *events) call(event string, fn func()) {
	defer func() {
		if v := recover(); v != nil {
			e.log().Error("store listener panicked", "event", event, "panic", v)
		}
	}()
	fn()
}

func (e *events) log() *slog.Logger {
	if e.logger == nil {
		return slog.Default()
	}
	return e.logger
}

func removeSubscription[F any](subs []subscription[F], id uint64) []subscription[F] {
	for i, s := range subs {
		if s.id == id {
			return append(subs[:i:i], subs[i+1:]...)
		}
	}
	return subs
}
