package events

import (
	"sync"
	"testing"
	"time"
)

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
	var zero T
	return zero
}

func none[T any](t *testing.T, ch <-chan T) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected event %+v", v)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestPublishRoutesByType(t *testing.T) {
	tests := []struct {
		name  string
		event Event
	}{
		{"stream added", StreamAddedEvent{StreamID: "s1", DevicePath: "/dev/video0"}},
		{"stream removed", StreamRemovedEvent{StreamID: "s1", DevicePath: "/dev/video0"}},
		{"state changed", StreamStateChangedEvent{StreamID: "s1", From: "running", To: "degraded", Category: "device"}},
		{"sink attached", SinkAttachedEvent{StreamID: "s1", Sink: "udp-5600"}},
		{"sink detached", SinkDetachedEvent{StreamID: "s1", Sink: "udp-5600"}},
		{"log entry", LogEntryEvent{Seq: 7, Module: "runner", Message: "bus error"}},
		{"device changed", DeviceChangedEvent{Action: "removed", DevicePath: "/dev/video0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := New()
			feed := NewFeed(len(tests))
			Tap[StreamAddedEvent](feed, bus)
			Tap[StreamRemovedEvent](feed, bus)
			Tap[StreamStateChangedEvent](feed, bus)
			Tap[SinkAttachedEvent](feed, bus)
			Tap[SinkDetachedEvent](feed, bus)
			Tap[LogEntryEvent](feed, bus)
			Tap[DeviceChangedEvent](feed, bus)
			defer feed.Close()

			bus.Publish(tt.event)

			got := receive(t, feed.C())
			// LogEntryEvent carries a map and is not comparable.
			if tt.event.Type() != TypeLogEntry && got != any(tt.event) {
				t.Errorf("got %+v, want %+v", got, tt.event)
			}
			if got.(Event).Type() != tt.event.Type() {
				t.Errorf("type = %d, want %d", got.(Event).Type(), tt.event.Type())
			}
			none(t, feed.C())
		})
	}
}

func TestOnAndUnsubscribe(t *testing.T) {
	bus := New()
	a := make(chan StreamStateChangedEvent, 1)
	b := make(chan StreamStateChangedEvent, 1)
	other := make(chan SinkAttachedEvent, 1)

	unsubA := On(bus, func(e StreamStateChangedEvent) { a <- e })
	unsubB := On(bus, func(e StreamStateChangedEvent) { b <- e })
	defer unsubB()
	unsubOther := On(bus, func(e SinkAttachedEvent) { other <- e })
	defer unsubOther()

	bus.Publish(StreamStateChangedEvent{StreamID: "s1", To: "running"})
	if e := receive(t, a); e.To != "running" {
		t.Errorf("a got %+v", e)
	}
	receive(t, b)
	none(t, other)

	unsubA()
	bus.Publish(StreamStateChangedEvent{StreamID: "s1", To: "stopped"})
	if e := receive(t, b); e.To != "stopped" {
		t.Errorf("b got %+v", e)
	}
	none(t, a)
}

func TestFeedDropsWhenFull(t *testing.T) {
	bus := New()
	feed := NewFeed(1)
	Tap[SinkDetachedEvent](feed, bus)

	bus.Publish(SinkDetachedEvent{StreamID: "s1", Sink: "udp"})
	first := receive(t, feed.C()).(SinkDetachedEvent)
	if first.Sink != "udp" {
		t.Errorf("Sink = %s, want udp", first.Sink)
	}

	// Nothing reads now, so only one of the next three fits.
	for _, name := range []string{"a", "b", "c"} {
		bus.Publish(SinkDetachedEvent{StreamID: "s1", Sink: name})
	}
	deadline := time.Now().Add(time.Second)
	for feed.Dropped() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := feed.Dropped(); got != 2 {
		t.Errorf("Dropped() = %d, want 2", got)
	}

	feed.Close()
	<-feed.C()
	bus.Publish(SinkDetachedEvent{StreamID: "s1", Sink: "late"})
	none(t, feed.C())
}

func TestConcurrentPublish(t *testing.T) {
	const publishers, perPublisher = 10, 100

	bus := New()
	received := make(chan struct{}, publishers*perPublisher)
	unsub := On(bus, func(StreamStateChangedEvent) { received <- struct{}{} })
	defer unsub()

	var wg sync.WaitGroup
	for range publishers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perPublisher {
				bus.Publish(StreamStateChangedEvent{StreamID: "s1", To: "running"})
			}
		}()
	}
	wg.Wait()

	for range publishers * perPublisher {
		receive(t, received)
	}
}
