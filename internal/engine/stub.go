package engine

import (
	"context"
	"fmt"
	"sync"
)

// DefaultFactories are the element factories the stream pipelines use.
var DefaultFactories = []string{
	"v4l2src", "h264parse", "videoconvert", "capsfilter",
	"rtph264pay", "rtpvrawpay", "rtpjpegpay", "tee",
	"queue", "udpsink", "fakesink",
}

// Stub is an Engine that validates description syntax and element
// factories without a media runtime. Graphs it returns are driven by the
// caller through StubGraph.
type Stub struct {
	mu        sync.Mutex
	factories map[string]bool
	graphs    []*StubGraph
	// ParseErr, when set, is returned by every Parse call.
	ParseErr error
}

// NewStub creates a Stub accepting DefaultFactories.
func NewStub() *Stub {
	s := &Stub{factories: make(map[string]bool)}
	for _, f := range DefaultFactories {
		s.factories[f] = true
	}
	return s
}

// Validate checks a description the way Parse does without recording a graph.
func (s *Stub) Validate(description string) error {
	elements, err := ParseChain(description)
	if err != nil {
		return err
	}
	for i, el := range elements {
		if !s.factories[el.Factory] {
			return &SyntaxError{Position: i, Reason: fmt.Sprintf("no element %q", el.Factory)}
		}
	}
	return nil
}

// Parse implements Engine.
func (s *Stub) Parse(description string) (Graph, error) {
	if s.ParseErr != nil {
		return nil, s.ParseErr
	}
	if err := s.Validate(description); err != nil {
		return nil, err
	}
	elements, _ := ParseChain(description)

	g := &StubGraph{
		description: description,
		elements:    elements,
		messages:    make(chan Message, 16),
		branches:    make(map[string]string),
	}
	s.mu.Lock()
	s.graphs = append(s.graphs, g)
	s.mu.Unlock()
	return g, nil
}

// Graphs returns every graph parsed so far, in order.
func (s *Stub) Graphs() []*StubGraph {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*StubGraph(nil), s.graphs...)
}

// Last returns the most recently parsed graph or nil.
func (s *Stub) Last() *StubGraph {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.graphs) == 0 {
		return nil
	}
	return s.graphs[len(s.graphs)-1]
}

// StubGraph is a Graph whose behavior is scripted by tests.
type StubGraph struct {
	description string
	elements    []Element
	messages    chan Message

	mu       sync.Mutex
	playing  bool
	closed   bool
	plays    int
	branches map[string]string

	// PlayErr is returned by Play when set.
	PlayErr error
	// BlockPlay makes Play wait for its context to end.
	BlockPlay bool
	// BlockClose makes Close wait for its context to end.
	BlockClose bool
}

// Description implements Graph.
func (g *StubGraph) Description() string { return g.description }

// Elements returns the parsed chain.
func (g *StubGraph) Elements() []Element { return g.elements }

// HasElement reports whether an element with the given name exists.
func (g *StubGraph) HasElement(name string) bool {
	for _, el := range g.elements {
		if el.Name() == name {
			return true
		}
	}
	return false
}

// Play implements Graph.
func (g *StubGraph) Play(ctx context.Context) error {
	if g.BlockPlay {
		<-ctx.Done()
		return ctx.Err()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrClosed
	}
	g.plays++
	if g.PlayErr != nil {
		return g.PlayErr
	}
	g.playing = true
	return nil
}

// Close implements Graph.
func (g *StubGraph) Close(ctx context.Context) error {
	if g.BlockClose {
		<-ctx.Done()
		return ctx.Err()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true
	g.playing = false
	close(g.messages)
	return nil
}

// Messages implements Graph.
func (g *StubGraph) Messages() <-chan Message { return g.messages }

// Emit pushes a bus message as if the pipeline had posted it.
func (g *StubGraph) Emit(m Message) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.messages <- m
}

// Playing reports whether Play succeeded and Close was not called.
func (g *StubGraph) Playing() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.playing
}

// Closed reports whether Close was called.
func (g *StubGraph) Closed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

// Plays returns how many times Play was called.
func (g *StubGraph) Plays() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.plays
}

// Branches returns a copy of the attached branches keyed by name.
func (g *StubGraph) Branches() map[string]string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]string, len(g.branches))
	for k, v := range g.branches {
		out[k] = v
	}
	return out
}

// AttachBranch implements Graph.
func (g *StubGraph) AttachBranch(_ context.Context, tee, name, description string) error {
	if _, err := ParseChain(description); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrClosed
	}
	if !g.hasTee(tee) {
		return fmt.Errorf("%w: %s", ErrElementNotFound, tee)
	}
	if _, ok := g.branches[name]; ok {
		return fmt.Errorf("%w: %s", ErrBranchExists, name)
	}
	g.branches[name] = description
	return nil
}

// DetachBranch implements Graph.
func (g *StubGraph) DetachBranch(_ context.Context, tee, name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrClosed
	}
	if !g.hasTee(tee) {
		return fmt.Errorf("%w: %s", ErrElementNotFound, tee)
	}
	if _, ok := g.branches[name]; !ok {
		return fmt.Errorf("%w: %s", ErrBranchNotFound, name)
	}
	delete(g.branches, name)
	return nil
}

func (g *StubGraph) hasTee(name string) bool {
	for _, el := range g.elements {
		if el.Factory == "tee" && el.Name() == name {
			return true
		}
	}
	return false
}
