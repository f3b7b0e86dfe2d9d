// Package runner owns one parsed graph and drives it through
// constructed, running, degraded and stopped.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/smazurov/camstream/internal/engine"
	"github.com/smazurov/camstream/internal/logging"
	"github.com/smazurov/camstream/internal/pipeline"
)

// DefaultTimeout bounds Start and Stop when Options.Timeout is zero.
const DefaultTimeout = 5 * time.Second

// Options configures a Runner.
type Options struct {
	Timeout time.Duration
	Notify  Notifier
}

// Runner owns one graph. Start, Stop and sink changes are serialized;
// State, LastError and IsRunning never wait on them.
type Runner struct {
	id      string
	graph   engine.Graph
	timeout time.Duration
	notify  Notifier
	logger  *slog.Logger

	opMu sync.Mutex

	mu          sync.RWMutex
	state       State
	lastErr     error
	released    bool
	sinks       map[string]string
	monitorDone chan struct{}
}

// New wraps a constructed graph.
func New(id string, graph engine.Graph, opts Options) *Runner {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Runner{
		id:      id,
		graph:   graph,
		timeout: timeout,
		notify:  opts.Notify,
		logger:  logging.GetLogger("runner").With("stream_id", id),
		state:   StateConstructed,
		sinks:   make(map[string]string),
	}
}

// ID returns the stream id the runner was created for.
func (r *Runner) ID() string { return r.id }

// Description returns the graph description.
func (r *Runner) Description() string { return r.graph.Description() }

// State returns the current state.
func (r *Runner) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// LastError returns the error behind the last failure transition, if any.
func (r *Runner) LastError() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastErr
}

// IsRunning reports whether the graph is playing and still held.
func (r *Runner) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state == StateRunning && !r.released
}

// Start plays the graph. Starting a running graph is a no-op; degraded and
// stopped runners cannot be started again. On failure the graph is
// released and the runner is stopped.
func (r *Runner) Start(ctx context.Context) error {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	switch s := r.State(); s {
	case StateRunning:
		return nil
	case StateConstructed:
	default:
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, s)
	}

	playCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.graph.Play(playCtx); err != nil {
		if playCtx.Err() != nil && ctx.Err() == nil {
			err = fmt.Errorf("%w after %s: %w", ErrTimeout, r.timeout, err)
		}
		r.logger.Error("Failed to start pipeline", "error", err)
		r.release()
		r.transition(StateStopped, err)
		return err
	}

	// Running is published before the monitor reads, so an early EOS is not lost.
	r.transition(StateRunning, nil)

	done := make(chan struct{})
	r.mu.Lock()
	r.monitorDone = done
	r.mu.Unlock()
	go r.monitor(done)

	r.logger.Info("Pipeline running")
	return nil
}

// Stop releases the graph. It is idempotent and legal from every state.
// When the graph cannot be released in time the runner keeps its state and
// Stop returns ErrTimeout; calling Stop again retries the release.
func (r *Runner) Stop(ctx context.Context) error {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	if r.State() == StateStopped {
		return nil
	}

	// A graph that failed to close may still hold its device, so the state
	// is left as is and a later Stop tries again.
	if err := r.releaseWithin(ctx); err != nil {
		r.logger.Error("Pipeline did not stop cleanly", "state", r.State(), "error", err)
		return err
	}
	r.transition(StateStopped, nil)

	r.mu.RLock()
	done := r.monitorDone
	r.mu.RUnlock()
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
		}
	}

	r.logger.Info("Pipeline stopped")
	return nil
}

// releaseWithin closes the graph bounded by the runner timeout.
func (r *Runner) releaseWithin(ctx context.Context) error {
	closeCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	err := r.graph.Close(closeCtx)
	if err == nil {
		r.mu.Lock()
		r.released = true
		r.mu.Unlock()
		return nil
	}
	if closeCtx.Err() != nil && ctx.Err() == nil {
		return fmt.Errorf("%w after %s: %w", ErrTimeout, r.timeout, err)
	}
	return err
}

// release closes the graph after a failed start.
func (r *Runner) release() {
	if err := r.releaseWithin(context.Background()); err != nil {
		r.logger.Warn("Failed to release pipeline", "error", err)
	}
}

// monitor turns bus messages into transitions until the graph is closed.
func (r *Runner) monitor(done chan struct{}) {
	defer close(done)
	for msg := range r.graph.Messages() {
		var err error
		switch msg.Type {
		case engine.MessageEOS:
			err = errors.New("end of stream")
		case engine.MessageError:
			err = &BusError{Message: msg}
		default:
			r.logger.Warn("Pipeline warning", "message", msg.Text)
			continue
		}

		if r.State() != StateRunning {
			r.logger.Debug("Ignoring bus message", "type", msg.Type.String(), "error", err)
			continue
		}
		r.logger.Error("Pipeline degraded", "type", msg.Type.String(), "error", err, "debug", msg.Debug)
		r.transitionFrom(StateRunning, StateDegraded, err)
	}
}

func (r *Runner) transition(to State, err error) {
	r.mu.Lock()
	from := r.state
	if from == to {
		r.mu.Unlock()
		return
	}
	r.state = to
	if err != nil {
		r.lastErr = err
	}
	r.mu.Unlock()
	r.emit(from, to, err)
}

// transitionFrom changes state only if the runner is still in from, so a
// concurrent Stop wins over a late bus message.
func (r *Runner) transitionFrom(from, to State, err error) {
	r.mu.Lock()
	if r.state != from {
		r.mu.Unlock()
		return
	}
	r.state = to
	r.lastErr = err
	r.mu.Unlock()
	r.emit(from, to, err)
}

func (r *Runner) emit(from, to State, err error) {
	if r.notify == nil {
		return
	}
	t := Transition{StreamID: r.id, From: from, To: to, Err: err, At: time.Now()}
	var busErr *BusError
	switch {
	case errors.As(err, &busErr):
		t.Category = busErr.Message.Category().String()
	case err != nil:
		t.Category = engine.Classify(err.Error(), "").String()
	}
	r.notify(t)
}

// AttachSink links a consumer branch to the stream's sink tee. Legal only
// while running.
func (r *Runner) AttachSink(ctx context.Context, name, description string) error {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	if s := r.State(); s != StateRunning {
		return fmt.Errorf("%w: attach sink while %s", ErrInvalidTransition, s)
	}

	opCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.graph.AttachBranch(opCtx, pipeline.SinkTeeName(r.id), name, description); err != nil {
		return err
	}

	r.mu.Lock()
	r.sinks[name] = description
	r.mu.Unlock()
	r.logger.Info("Sink attached", "sink", name)
	return nil
}

// DetachSink removes a branch added by AttachSink.
func (r *Runner) DetachSink(ctx context.Context, name string) error {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	if s := r.State(); s != StateRunning {
		return fmt.Errorf("%w: detach sink while %s", ErrInvalidTransition, s)
	}

	opCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.graph.DetachBranch(opCtx, pipeline.SinkTeeName(r.id), name); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.sinks, name)
	r.mu.Unlock()
	r.logger.Info("Sink detached", "sink", name)
	return nil
}

// Sinks returns the names of attached sinks, sorted.
func (r *Runner) Sinks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sinks))
	for name := range r.sinks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
