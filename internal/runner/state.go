package runner

import (
	"errors"
	"fmt"
	"time"

	"github.com/smazurov/camstream/internal/engine"
)

// State is the lifecycle phase of a runner.
type State string

// Runner states. Stopped is terminal.
const (
	StateConstructed State = "constructed"
	StateRunning     State = "running"
	StateDegraded    State = "degraded"
	StateStopped     State = "stopped"
)

var (
	// ErrTimeout is returned when the engine does not finish a state change in time.
	ErrTimeout = errors.New("pipeline state change timed out")
	// ErrInvalidTransition is returned for operations illegal in the current state.
	ErrInvalidTransition = errors.New("invalid pipeline state transition")
)

// BusError is an error message posted on the pipeline bus.
type BusError struct {
	Message engine.Message
}

func (e *BusError) Error() string {
	return fmt.Sprintf("pipeline error [%s]: %s", e.Message.Category(), e.Message.Text)
}

// Transition describes one state change of a runner.
type Transition struct {
	StreamID string
	From     State
	To       State
	// Err is set for transitions caused by a failure.
	Err error
	// Category classifies Err: device, network, codec or unknown.
	Category string
	At       time.Time
}

// Notifier receives transitions. It is called from the runner's goroutines
// and must not block.
type Notifier func(Transition)

// ChannelNotifier returns a Notifier doing a non-blocking send on ch. When
// ch is full the transition is handed to onDrop instead.
func ChannelNotifier(ch chan<- Transition, onDrop func(Transition)) Notifier {
	return func(t Transition) {
		select {
		case ch <- t:
		default:
			if onDrop != nil {
				onDrop(t)
			}
		}
	}
}
