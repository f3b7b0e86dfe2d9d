package events

import (
	"github.com/kelindar/event"
)

// Bus fans camstream events out to in-process subscribers. Each subscriber
// is called on its own goroutine, so handlers never block a publisher.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{dispatcher: event.NewDispatcher()}
}

// Publish delivers ev to every subscriber of its concrete type.
// Values of types not declared in this package are ignored.
func (b *Bus) Publish(ev Event) {
	// The dispatcher routes on the static type parameter, so the dynamic
	// type has to be recovered before publishing.
	switch e := ev.(type) {
	case StreamAddedEvent:
		event.Publish(b.dispatcher, e)
	case StreamRemovedEvent:
		event.Publish(b.dispatcher, e)
	case StreamStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case SinkAttachedEvent:
		event.Publish(b.dispatcher, e)
	case SinkDetachedEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	case DeviceChangedEvent:
		event.Publish(b.dispatcher, e)
	}
}

// On calls fn for every published T until the returned func is called.
//
//	unsub := events.On(bus, func(e events.StreamStateChangedEvent) { ... })
//	defer unsub()
func On[T Event](b *Bus, fn func(T)) func() {
	return event.Subscribe(b.dispatcher, fn)
}
