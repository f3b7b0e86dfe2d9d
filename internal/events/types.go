package events

// Event type constants for kelindar/event.
const (
	TypeStreamAdded uint32 = iota + 1
	TypeStreamRemoved
	TypeStreamStateChanged
	TypeSinkAttached
	TypeSinkDetached
	TypeLogEntry
	TypeDeviceChanged
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// StreamAddedEvent is published once a stream is built, started and registered.
type StreamAddedEvent struct {
	StreamID    string `json:"stream_id" example:"2f1c9a3e-5b7d-4e8a-9c61-0d3f4b2a7e15" doc:"Stream identifier"`
	Name        string `json:"name" example:"front" doc:"Stream name"`
	DevicePath  string `json:"device_path" example:"/dev/video0" doc:"Capture device"`
	Description string `json:"description" doc:"gst-launch description of the running graph"`
	Timestamp   string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StreamAddedEvent.
func (e StreamAddedEvent) Type() uint32 { return TypeStreamAdded }

// StreamRemovedEvent is published after a stream is stopped and unregistered.
type StreamRemovedEvent struct {
	StreamID   string `json:"stream_id" doc:"Stream identifier"`
	DevicePath string `json:"device_path" example:"/dev/video0" doc:"Released capture device"`
	Timestamp  string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StreamRemovedEvent.
func (e StreamRemovedEvent) Type() uint32 { return TypeStreamRemoved }

// StreamStateChangedEvent reports a runner transition.
type StreamStateChangedEvent struct {
	StreamID  string `json:"stream_id" doc:"Stream identifier"`
	From      string `json:"from" example:"running" doc:"Previous state"`
	To        string `json:"to" example:"degraded" doc:"New state"`
	Error     string `json:"error,omitempty" doc:"Failure behind the transition"`
	Category  string `json:"category,omitempty" example:"device" doc:"Error category: device, network, codec, unknown"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StreamStateChangedEvent.
func (e StreamStateChangedEvent) Type() uint32 { return TypeStreamStateChanged }

// SinkAttachedEvent is published when a consumer branch joins a stream's tee.
type SinkAttachedEvent struct {
	StreamID  string `json:"stream_id" doc:"Stream identifier"`
	Sink      string `json:"sink" example:"udp-5600" doc:"Sink name"`
	Timestamp string `json:"timestamp" doc:"Event timestamp"`
}

// Type returns the event type identifier for SinkAttachedEvent.
func (e SinkAttachedEvent) Type() uint32 { return TypeSinkAttached }

// SinkDetachedEvent is published when a consumer branch leaves a stream's tee.
type SinkDetachedEvent struct {
	StreamID  string `json:"stream_id" doc:"Stream identifier"`
	Sink      string `json:"sink" example:"udp-5600" doc:"Sink name"`
	Timestamp string `json:"timestamp" doc:"Event timestamp"`
}

// Type returns the event type identifier for SinkDetachedEvent.
func (e SinkDetachedEvent) Type() uint32 { return TypeSinkDetached }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2026-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"streams" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }

// DeviceChangedEvent reports a video node appearing or disappearing.
type DeviceChangedEvent struct {
	Action     string `json:"action" enum:"added,removed" doc:"What happened to the device"`
	DevicePath string `json:"device_path" example:"/dev/video0" doc:"Capture device"`
	Timestamp  string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DeviceChangedEvent.
func (e DeviceChangedEvent) Type() uint32 { return TypeDeviceChanged }
