// Package sse streams catalog events to HTTP clients as Server-Sent Events.
//
// A Broker fans messages out to every connected stream. Bridge attaches a
// broker to the event bus so each sync outcome reaches subscribers:
//
//	broker := sse.NewBroker()
//	sse.Bridge(bus, broker, services.EventSynced, services.EventSyncFailed)
//	r.Get("/events/catalog", "sse.catalog", sse.Handler(broker))
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/shashiranjanraj/catalogsync/pkg/event"
)

const (
	defaultBuffer    = 16
	defaultHeartbeat = 25 * time.Second
)

// Message is one named event with a pre-encoded JSON payload.
type Message struct {
	Event string
	Data  []byte
}

// Stream represents an active SSE connection to one client.
type Stream struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

// New sets the event-stream headers and flushes them. It fails when no
// writer in the wrapper chain supports flushing, after the status line has
// already been sent.
func New(w http.ResponseWriter) (*Stream, error) {
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering
	w.WriteHeader(http.StatusOK)

	if err := rc.Flush(); err != nil {
		return nil, fmt.Errorf("sse: flush: %w", err)
	}
	return &Stream{w: w, rc: rc}, nil
}

// Send writes a named event.
func (s *Stream) Send(m Message) error {
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", m.Event, m.Data); err != nil {
		return err
	}
	return s.rc.Flush()
}

// Comment writes an SSE comment, used as a keepalive.
func (s *Stream) Comment(msg string) error {
	if _, err := fmt.Fprintf(s.w, ": %s\n\n", msg); err != nil {
		return err
	}
	return s.rc.Flush()
}

// Broker fans messages out to subscribers. A subscriber that cannot keep up
// loses messages instead of stalling the publisher.
type Broker struct {
	mu     sync.RWMutex
	subs   map[chan Message]struct{}
	buffer int
	closed bool
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[chan Message]struct{}), buffer: defaultBuffer}
}

// Subscribe returns a message channel and the func that releases it. The
// channel is closed on release or when the broker closes.
func (b *Broker) Subscribe() (<-chan Message, func()) {
	ch := make(chan Message, b.buffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
	}
}

// Close ends every stream. Later subscribers get a closed channel.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}

// Subscribers reports how many streams are attached.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish delivers m to every subscriber with room in its buffer and
// returns how many received it.
func (b *Broker) Publish(m Message) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	sent := 0
	for ch := range b.subs {
		select {
		case ch <- m:
			sent++
		default:
		}
	}
	return sent
}

// PublishJSON encodes payload and publishes it under event.
func (b *Broker) PublishJSON(event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("sse: marshal %s: %w", event, err)
	}
	b.Publish(Message{Event: event, Data: data})
	return nil
}

// Bridge forwards every payload fired for the named events to the broker.
func Bridge(bus *event.Bus, b *Broker, events ...string) {
	for _, name := range events {
		name := name
		bus.Listen(name, func(payload interface{}) {
			_ = b.PublishJSON(name, payload)
		})
	}
}

// Handler streams broker messages until the client goes away.
func Handler(b *Broker) http.HandlerFunc {
	return handler(b, defaultHeartbeat)
}

func handler(b *Broker, heartbeat time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stream, err := New(w)
		if err != nil {
			return
		}
		msgs, cancel := b.Subscribe()
		defer cancel()

		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case m, ok := <-msgs:
				if !ok || stream.Send(m) != nil {
					return
				}
			case <-ticker.C:
				if stream.Comment("ping") != nil {
					return
				}
			}
		}
	}
}
