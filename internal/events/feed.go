package events

import "sync/atomic"

// Feed merges several event types into one buffered channel, for consumers
// such as an SSE connection that handle everything in a single loop.
// A full buffer drops events rather than stalling the bus.
type Feed struct {
	ch      chan any
	unsubs  []func()
	dropped atomic.Uint64
}

// NewFeed creates a feed holding up to buffer undelivered events.
func NewFeed(buffer int) *Feed {
	return &Feed{ch: make(chan any, buffer)}
}

// Tap adds events of type T from bus to the feed. Taps are set up before
// the feed is read and are not safe to add concurrently.
func Tap[T Event](f *Feed, bus *Bus) {
	f.unsubs = append(f.unsubs, On(bus, func(e T) {
		select {
		case f.ch <- e:
		default:
			f.dropped.Add(1)
		}
	}))
}

// C returns the merged event channel.
func (f *Feed) C() <-chan any { return f.ch }

// Dropped reports how many events did not fit the buffer.
func (f *Feed) Dropped() uint64 { return f.dropped.Load() }

// Close removes every tap. The channel is left open.
func (f *Feed) Close() {
	for _, unsub := range f.unsubs {
		unsub()
	}
	f.unsubs = nil
}
