package streams

import (
	"context"
	"sync"
	"time"

	"github.com/smazurov/camstream/internal/engine"
	"github.com/smazurov/camstream/internal/runner"
	"github.com/smazurov/camstream/internal/video"
)

// Builder constructs a parsed, unstarted graph for a stream.
type Builder interface {
	Construct(id string, desc video.StreamDescriptor) (engine.Graph, error)
}

// Store persists stream descriptors in order.
type Store interface {
	Load() ([]video.StreamDescriptor, error)
	Save(descs []video.StreamDescriptor) error
}

// Controller is the operation set a control surface (REST, MAVLink) drives.
type Controller interface {
	AddAndStart(ctx context.Context, desc video.StreamDescriptor) (string, error)
	Remove(ctx context.Context, id string) error
	Status(id string) (runner.State, error)
	List() []StreamInfo
}

// Stream is one registered stream. Only built and started streams are
// ever registered.
type Stream struct {
	ID         string
	Descriptor video.StreamDescriptor
	CreatedAt  time.Time

	seq    uint64
	runner *runner.Runner
	// opMu serializes Restart and Remove of this stream.
	opMu sync.Mutex
}

// StreamInfo is a read-only snapshot of a stream.
type StreamInfo struct {
	ID          string
	Descriptor  video.StreamDescriptor
	State       runner.State
	LastError   string
	Description string
	Sinks       []string
	CreatedAt   time.Time
}

// AutoRestart configures the manager's restart policy for degraded streams.
type AutoRestart struct {
	Enabled bool
	Backoff time.Duration
}
