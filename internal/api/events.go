package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/camstream/internal/events"
)

// registerSSERoutes registers the lifecycle event stream.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time stream lifecycle, sink and video device events",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"stream-added":         events.StreamAddedEvent{},
		"stream-removed":       events.StreamRemovedEvent{},
		"stream-state-changed": events.StreamStateChangedEvent{},
		"sink-attached":        events.SinkAttachedEvent{},
		"sink-detached":        events.SinkDetachedEvent{},
		"device-changed":       events.DeviceChangedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		feed := events.NewFeed(32)
		events.Tap[events.StreamAddedEvent](feed, s.eventBus)
		events.Tap[events.StreamRemovedEvent](feed, s.eventBus)
		events.Tap[events.StreamStateChangedEvent](feed, s.eventBus)
		events.Tap[events.SinkAttachedEvent](feed, s.eventBus)
		events.Tap[events.SinkDetachedEvent](feed, s.eventBus)
		events.Tap[events.DeviceChangedEvent](feed, s.eventBus)
		defer func() {
			feed.Close()
			if n := feed.Dropped(); n > 0 {
				s.logger.Debug("Event stream client fell behind", "dropped", n)
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-feed.C():
				if err := send.Data(ev); err != nil {
					return
				}
			}
		}
	})
}
