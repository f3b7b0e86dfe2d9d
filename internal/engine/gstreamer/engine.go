// Package gstreamer runs stream graphs in-process on GStreamer through go-gst.
package gstreamer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/smazurov/camstream/internal/engine"
	"github.com/smazurov/camstream/internal/logging"
	"github.com/tinyzimmer/go-gst/gst"
)

const busPollInterval = 50 * time.Millisecond

var initOnce sync.Once

// Engine parses descriptions with gst_parse_launch.
type Engine struct{}

// New initializes GStreamer once per process and returns the engine.
func New() *Engine {
	initOnce.Do(func() { gst.Init(nil) })
	return &Engine{}
}

// Parse implements engine.Engine.
func (e *Engine) Parse(description string) (engine.Graph, error) {
	pipeline, err := gst.NewPipelineFromString(description)
	if err != nil {
		return nil, err
	}
	g := &graph{
		description: description,
		pipeline:    pipeline,
		messages:    make(chan engine.Message, 8),
		done:        make(chan struct{}),
		branches:    make(map[string]*branch),
	}
	g.wg.Add(1)
	go g.pollBus()
	return g, nil
}

type branch struct {
	bin     *gst.Bin
	teePad  *gst.Pad
	sinkPad *gst.Pad
}

type graph struct {
	description string
	pipeline    *gst.Pipeline
	messages    chan engine.Message
	done        chan struct{}
	wg          sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	branches map[string]*branch
}

func (g *graph) Description() string { return g.description }

func (g *graph) Messages() <-chan engine.Message { return g.messages }

// pollBus forwards EOS and error messages until the graph is closed.
func (g *graph) pollBus() {
	defer g.wg.Done()
	defer close(g.messages)

	bus := g.pipeline.GetPipelineBus()
	for {
		select {
		case <-g.done:
			return
		default:
		}

		msg := bus.TimedPop(busPollInterval)
		if msg == nil {
			continue
		}

		var out engine.Message
		switch msg.Type() {
		case gst.MessageEOS:
			out = engine.Message{Type: engine.MessageEOS, Text: "end of stream"}
		case gst.MessageError:
			gerr := msg.ParseError()
			out = engine.Message{Type: engine.MessageError, Text: gerr.Error(), Debug: gerr.DebugString()}
		case gst.MessageWarning:
			gerr := msg.ParseWarning()
			logging.GetLogger("engine").Warn("Pipeline warning", "warning", gerr.Error(), "debug", gerr.DebugString())
			continue
		default:
			continue
		}

		select {
		case g.messages <- out:
		case <-g.done:
			return
		}
	}
}

// Play implements engine.Graph. SetState is run aside so the caller's
// deadline applies even when the device blocks the state change.
func (g *graph) Play(ctx context.Context) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return engine.ErrClosed
	}
	g.mu.Unlock()

	errCh := make(chan error, 1)
	go func() { errCh <- g.pipeline.SetState(gst.StatePlaying) }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("set state PLAYING: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements engine.Graph.
func (g *graph) Close(ctx context.Context) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	g.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		err := g.pipeline.SetState(gst.StateNull)
		close(g.done)
		g.wg.Wait()
		errCh <- err
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("set state NULL: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AttachBranch implements engine.Graph.
func (g *graph) AttachBranch(_ context.Context, teeName, name, description string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return engine.ErrClosed
	}
	if _, ok := g.branches[name]; ok {
		return fmt.Errorf("%w: %s", engine.ErrBranchExists, name)
	}

	tee, err := g.pipeline.GetElementByName(teeName)
	if err != nil {
		return fmt.Errorf("%w: %s", engine.ErrElementNotFound, teeName)
	}

	bin, err := gst.NewBinFromString(description, true)
	if err != nil {
		return fmt.Errorf("parse branch %s: %w", name, err)
	}
	if err := g.pipeline.Add(bin.Element); err != nil {
		return fmt.Errorf("add branch %s: %w", name, err)
	}

	teePad := tee.GetRequestPad("src_%u")
	sinkPad := bin.GetStaticPad("sink")
	if teePad == nil || sinkPad == nil {
		_ = g.pipeline.Remove(bin.Element)
		return fmt.Errorf("branch %s: missing pad", name)
	}
	if ret := teePad.Link(sinkPad); ret != gst.PadLinkOK {
		tee.ReleaseRequestPad(teePad)
		_ = g.pipeline.Remove(bin.Element)
		return fmt.Errorf("branch %s: link failed: %v", name, ret)
	}
	bin.SyncStateWithParent()

	g.branches[name] = &branch{bin: bin, teePad: teePad, sinkPad: sinkPad}
	return nil
}

// DetachBranch implements engine.Graph.
func (g *graph) DetachBranch(_ context.Context, teeName, name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return engine.ErrClosed
	}
	b, ok := g.branches[name]
	if !ok {
		return fmt.Errorf("%w: %s", engine.ErrBranchNotFound, name)
	}
	tee, err := g.pipeline.GetElementByName(teeName)
	if err != nil {
		return fmt.Errorf("%w: %s", engine.ErrElementNotFound, teeName)
	}

	b.teePad.Unlink(b.sinkPad)
	tee.ReleaseRequestPad(b.teePad)
	if err := b.bin.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("stop branch %s: %w", name, err)
	}
	if err := g.pipeline.Remove(b.bin.Element); err != nil {
		return fmt.Errorf("remove branch %s: %w", name, err)
	}
	delete(g.branches, name)
	return nil
}
