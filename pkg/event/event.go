// Package event provides a small in-process event bus.
package event

import (
	"sync"

	"github.com/shashiranjanraj/catalogsync/pkg/logger"
)

// Handler is a function that receives an event payload.
type Handler func(payload interface{})

// Bus dispatches named events to registered handlers. The zero value is not
// usable; call New.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	wg       sync.WaitGroup
}

func New() *Bus {
	return &Bus{handlers: map[string][]Handler{}}
}

// Listen registers a handler for the given event name.
func (b *Bus) Listen(event string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[event] = append(b.handlers[event], handler)
}

// Fire dispatches an event synchronously to all registered listeners.
func (b *Bus) Fire(event string, payload interface{}) {
	for _, h := range b.snapshot(event) {
		b.call(event, h, payload)
	}
}

// FireAsync dispatches the event to all listeners concurrently and returns
// immediately. Wait blocks until those handlers finish.
func (b *Bus) FireAsync(event string, payload interface{}) {
	for _, h := range b.snapshot(event) {
		b.wg.Add(1)
		go func(h Handler) {
			defer b.wg.Done()
			b.call(event, h, payload)
		}(h)
	}
}

// Wait blocks until every handler started by FireAsync has returned.
func (b *Bus) Wait() { b.wg.Wait() }

// Flush removes all listeners.
func (b *Bus) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = map[string][]Handler{}
}

func (b *Bus) snapshot(event string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	hs := make([]Handler, len(b.handlers[event]))
	copy(hs, b.handlers[event])
	return hs
}

// call runs h and keeps a panicking listener from taking down the emitter.
func (b *Bus) call(event string, h Handler, payload interface{}) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("event: listener panicked", "event", event, "panic", rec)
		}
	}()
	h(payload)
}
