// Package launch runs stream graphs as gst-launch-1.0 subprocesses.
//
// The description is passed to gst-launch-1.0 -e unchanged. A clean exit is
// reported as end of stream and any other exit as an error carrying the
// last error line the process printed. Live branch editing is not
// available in this mode.
package launch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/smazurov/camstream/internal/engine"
	"github.com/smazurov/camstream/internal/logging"
	"github.com/smazurov/camstream/internal/process"
)

// DefaultBinary is the launcher used when none is configured.
const DefaultBinary = "gst-launch-1.0"

// startupGrace is how long Play watches for an immediate failure.
const startupGrace = 300 * time.Millisecond

// Engine spawns one gst-launch process per graph.
type Engine struct {
	command []string
	opts    process.Options
}

// New creates an engine. binary may carry extra arguments, for example
// "gst-launch-1.0 -q".
func New(binary string, opts process.Options) (*Engine, error) {
	if strings.TrimSpace(binary) == "" {
		binary = DefaultBinary
	}
	command, err := process.ParseCommand(binary)
	if err != nil {
		return nil, fmt.Errorf("launch binary: %w", err)
	}
	return &Engine{command: command, opts: opts}, nil
}

// Parse implements engine.Engine. Only the syntax is checked here; unknown
// elements are reported by gst-launch when the graph is played.
func (e *Engine) Parse(description string) (engine.Graph, error) {
	if _, err := engine.ParseChain(description); err != nil {
		return nil, err
	}
	args := append(append([]string{}, e.command...), "-e")
	args = append(args, engine.Tokenize(description)...)

	return &graph{
		description: description,
		args:        args,
		opts:        e.opts,
		messages:    make(chan engine.Message, 1),
		watchDone:   make(chan struct{}),
	}, nil
}

type graph struct {
	description string
	args        []string
	opts        process.Options

	mu        sync.Mutex
	proc      *process.Process
	lastError lastErrorLine
	closing   bool
	closed    bool
	messages  chan engine.Message
	watchDone chan struct{}
}

func (g *graph) Description() string { return g.description }

func (g *graph) Messages() <-chan engine.Message { return g.messages }

// Play implements engine.Graph.
func (g *graph) Play(ctx context.Context) error {
	g.mu.Lock()
	if g.closed || g.closing {
		g.mu.Unlock()
		return engine.ErrClosed
	}
	if g.proc != nil {
		g.mu.Unlock()
		return nil
	}

	opts := g.opts
	opts.OutputLogger = logging.GetLogger("gstreamer")
	opts.LogParser = ParseLogLevel
	opts.OutputHandler = &g.lastError
	proc := process.New(g.args[0], g.args, logging.GetLogger("engine"), opts)
	if err := proc.Start(); err != nil {
		g.mu.Unlock()
		return fmt.Errorf("start %s: %w", g.args[0], err)
	}
	g.proc = proc
	g.mu.Unlock()

	timer := time.NewTimer(startupGrace)
	defer timer.Stop()
	select {
	case <-proc.Done():
		if code := proc.ExitCode(); code != 0 {
			go g.watch(proc)
			return fmt.Errorf("%s exited with code %d: %s", g.args[0], code, g.lastError.get())
		}
	case <-timer.C:
	case <-ctx.Done():
		go g.watch(proc)
		return ctx.Err()
	}

	go g.watch(proc)
	return nil
}

// watch turns the process exit into a bus message unless Close caused it.
func (g *graph) watch(proc *process.Process) {
	defer close(g.watchDone)
	<-proc.Done()

	g.mu.Lock()
	closing := g.closing
	g.mu.Unlock()
	if closing {
		return
	}

	msg := engine.Message{Type: engine.MessageEOS, Text: "end of stream"}
	if code := proc.ExitCode(); code != 0 {
		msg = engine.Message{
			Type:  engine.MessageError,
			Text:  g.lastError.get(),
			Debug: fmt.Sprintf("exit code %d", code),
		}
	}
	g.messages <- msg
}

// Close implements engine.Graph. When ctx ends before the process is gone
// the graph stays open and a later Close stops and waits again.
func (g *graph) Close(ctx context.Context) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closing = true
	proc := g.proc
	g.mu.Unlock()

	if proc != nil {
		proc.Stop(ctx)
		select {
		case <-g.watchDone:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.closed {
		g.closed = true
		close(g.messages)
	}
	return nil
}

// AttachBranch implements engine.Graph.
func (g *graph) AttachBranch(context.Context, string, string, string) error {
	return engine.ErrBranchUnsupported
}

// DetachBranch implements engine.Graph.
func (g *graph) DetachBranch(context.Context, string, string) error {
	return engine.ErrBranchUnsupported
}

// lastErrorLine remembers the most recent error line of the subprocess.
type lastErrorLine struct {
	mu   sync.Mutex
	line string
}

func (l *lastErrorLine) HandleLine(_, line string) {
	if level, msg := ParseLogLevel(line); level == "error" {
		l.mu.Lock()
		l.line = msg
		l.mu.Unlock()
	}
}

func (l *lastErrorLine) get() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.line == "" {
		return "pipeline exited"
	}
	return l.line
}
