// Package engine abstracts the GStreamer runtime that turns a gst-launch
// description into a running media graph.
//
// Two adapters exist: engine/gst runs the graph in-process through go-gst,
// engine/launch supervises a gst-launch-1.0 subprocess. Stub validates
// descriptions without any media runtime and backs the unit tests.
package engine

import (
	"context"
	"errors"
)

// MessageType identifies a bus message relevant to stream health.
type MessageType int

// Bus message types.
const (
	MessageEOS MessageType = iota
	MessageError
	MessageWarning
)

func (t MessageType) String() string {
	switch t {
	case MessageEOS:
		return "eos"
	case MessageError:
		return "error"
	case MessageWarning:
		return "warning"
	default:
		return "unknown"
	}
}

// Message is a bus message forwarded to the graph owner.
type Message struct {
	Type  MessageType
	Text  string
	Debug string
}

// Category returns the error category of the message text.
func (m Message) Category() Category {
	return Classify(m.Text, m.Debug)
}

var (
	// ErrClosed is returned by operations on a released graph.
	ErrClosed = errors.New("graph closed")
	// ErrBranchUnsupported is returned by engines that cannot edit a live graph.
	ErrBranchUnsupported = errors.New("engine does not support dynamic branches")
	// ErrElementNotFound is returned when a named element is absent from the graph.
	ErrElementNotFound = errors.New("element not found")
	// ErrBranchExists is returned when attaching a branch under a taken name.
	ErrBranchExists = errors.New("branch already attached")
	// ErrBranchNotFound is returned when detaching an unknown branch.
	ErrBranchNotFound = errors.New("branch not attached")
)

// Engine parses descriptions into graphs.
type Engine interface {
	// Parse turns a description into a graph without starting it.
	Parse(description string) (Graph, error)
}

// Graph is one parsed media graph.
type Graph interface {
	// Description returns the text the graph was parsed from.
	Description() string
	// Play moves the graph to the playing state.
	Play(ctx context.Context) error
	// Close stops the graph and releases every resource it holds, including
	// the capture device. It is safe to call more than once.
	Close(ctx context.Context) error
	// Messages delivers EOS and error messages. It is closed after Close.
	Messages() <-chan Message
	// AttachBranch links a new branch described in gst-launch syntax to a
	// request pad of the named tee.
	AttachBranch(ctx context.Context, tee, name, description string) error
	// DetachBranch unlinks and releases a branch added by AttachBranch.
	DetachBranch(ctx context.Context, tee, name string) error
}
