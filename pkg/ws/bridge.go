package ws

import "github.com/shashiranjanraj/catalogsync/pkg/event"

// Bridge forwards every payload fired for the named events to the hub's
// subscribers.
func Bridge(bus *event.Bus, hub *Hub, events ...string) {
	for _, name := range events {
		name := name
		bus.Listen(name, func(payload interface{}) {
			if err := hub.BroadcastJSON(name, payload); err != nil {
				hub.log.Error("ws: encode event", "event", name, "error", err)
			}
		})
	}
}
