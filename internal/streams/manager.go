// Package streams holds the registry of running streams: the single place
// where streams are added, removed, restarted and queried.
package streams

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/smazurov/camstream/internal/events"
	"github.com/smazurov/camstream/internal/logging"
	"github.com/smazurov/camstream/internal/metrics"
	"github.com/smazurov/camstream/internal/runner"
	"github.com/smazurov/camstream/internal/video"
)

const defaultNotifyBuffer = 64

// Options configures a Manager.
type Options struct {
	Builder       Builder
	Registry      video.Registry
	EventBus      *events.Bus
	RunnerTimeout time.Duration
	NotifyBuffer  int
	AutoRestart   AutoRestart
	// NewID overrides uuid generation.
	NewID func() string
}

// Manager owns every running stream. Registry reads never wait on a
// starting or stopping pipeline.
type Manager struct {
	builder     Builder
	registry    video.Registry
	eventBus    *events.Bus
	timeout     time.Duration
	autoRestart AutoRestart
	newID       func() string
	logger      *slog.Logger

	mu      sync.RWMutex
	streams map[string]*Stream
	// devices maps a device path to the id holding it. A path is reserved
	// before its stream is built, so concurrent adds serialize on it.
	devices map[string]string
	issued  map[string]struct{}
	seq     uint64

	health   chan runner.Transition
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewManager creates a manager and starts its health goroutine.
func NewManager(opts Options) *Manager {
	buffer := opts.NotifyBuffer
	if buffer <= 0 {
		buffer = defaultNotifyBuffer
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	m := &Manager{
		builder:     opts.Builder,
		registry:    opts.Registry,
		eventBus:    opts.EventBus,
		timeout:     opts.RunnerTimeout,
		autoRestart: opts.AutoRestart,
		newID:       newID,
		logger:      logging.GetLogger("streams"),
		streams:     make(map[string]*Stream),
		devices:     make(map[string]string),
		issued:      make(map[string]struct{}),
		health:      make(chan runner.Transition, buffer),
		done:        make(chan struct{}),
	}

	m.wg.Add(1)
	go m.healthLoop()
	return m
}

// allocateID issues an id never handed out by this manager before.
func (m *Manager) allocateID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for {
		id := m.newID()
		if _, taken := m.issued[id]; !taken {
			m.issued[id] = struct{}{}
			return id
		}
	}
}

func (m *Manager) reserveDevice(path, id string) error {
	if path == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if owner, busy := m.devices[path]; busy {
		return NewStreamError(ErrCodeDeviceBusy, fmt.Sprintf("device %s is used by stream %s", path, owner), nil)
	}
	m.devices[path] = id
	return nil
}

func (m *Manager) releaseDevice(path, id string) {
	if path == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.devices[path] == id {
		delete(m.devices, path)
	}
}

func (m *Manager) newRunner(id string, desc video.StreamDescriptor) (*runner.Runner, error) {
	graph, err := m.builder.Construct(id, desc)
	if err != nil {
		return nil, err
	}
	return runner.New(id, graph, runner.Options{
		Timeout: m.timeout,
		Notify:  runner.ChannelNotifier(m.health, m.dropTransition),
	}), nil
}

// AddAndStart checks the source against the device registry, then builds and
// starts a stream and registers it under a fresh id. Nothing is registered
// when any step fails.
func (m *Manager) AddAndStart(ctx context.Context, desc video.StreamDescriptor) (string, error) {
	if err := m.Validate(ctx, desc); err != nil {
		m.logger.Error("Invalid video source", "name", desc.Name, "source", sourceDescription(desc))
		return "", err
	}
	return m.add(ctx, desc)
}

// add is AddAndStart for a descriptor whose source was already validated.
func (m *Manager) add(ctx context.Context, desc video.StreamDescriptor) (string, error) {
	id := m.allocateID()
	logger := m.logger.With("stream_id", id)
	device := desc.DevicePath()

	if err := m.reserveDevice(device, id); err != nil {
		logger.Warn("Device busy", "device", device)
		return "", err
	}

	r, err := m.newRunner(id, desc)
	if err != nil {
		m.releaseDevice(device, id)
		logger.Error("Failed to build pipeline", "source", sourceDescription(desc), "error", err)
		return "", fmt.Errorf("build stream: %w", err)
	}

	if err := r.Start(ctx); err != nil {
		m.releaseDevice(device, id)
		logger.Error("Failed to start pipeline", "source", sourceDescription(desc), "error", err)
		return "", fmt.Errorf("start stream: %w", err)
	}

	m.mu.Lock()
	m.seq++
	s := &Stream{
		ID:         id,
		Descriptor: desc,
		CreatedAt:  time.Now(),
		seq:        m.seq,
		runner:     r,
	}
	m.streams[id] = s
	count := len(m.streams)
	m.mu.Unlock()

	metrics.SetActiveStreams(count)
	logger.Info("Stream added", "name", desc.Name, "device", device)
	m.publish(events.StreamAddedEvent{
		StreamID:    id,
		Name:        desc.Name,
		DevicePath:  device,
		Description: r.Description(),
		Timestamp:   time.Now().Format(time.RFC3339),
	})
	return id, nil
}

func (m *Manager) get(id string) (*Stream, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.streams[id]
	if !ok {
		return nil, NewStreamError(ErrCodeStreamNotFound, fmt.Sprintf("stream %s", id), nil)
	}
	return s, nil
}

// Remove stops a stream and unregisters it.
func (m *Manager) Remove(ctx context.Context, id string) error {
	s, err := m.get(id)
	if err != nil {
		return err
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	// A concurrent Remove may have won while we waited.
	if _, err := m.get(id); err != nil {
		return err
	}

	m.mu.RLock()
	r := s.runner
	m.mu.RUnlock()

	// The entry and its device stay registered until the graph is released,
	// so a timed out Remove can be retried.
	if err := r.Stop(ctx); err != nil {
		return fmt.Errorf("stop stream %s: %w", id, err)
	}

	m.unregister(s)
	m.logger.Info("Stream removed", "stream_id", id, "device", s.Descriptor.DevicePath())
	return nil
}

// Restart rebuilds and restarts a stream under the same id. The device stays
// reserved throughout. If the old graph cannot be released the stream is
// left as it was; a stream whose new graph fails is unregistered.
func (m *Manager) Restart(ctx context.Context, id string) error {
	s, err := m.get(id)
	if err != nil {
		return err
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	if _, err := m.get(id); err != nil {
		return err
	}
	logger := m.logger.With("stream_id", id)

	m.mu.RLock()
	old := s.runner
	m.mu.RUnlock()
	if err := old.Stop(ctx); err != nil {
		return fmt.Errorf("restart stream %s: %w", id, err)
	}

	// The device may have been unplugged since the stream was added.
	err = m.Validate(ctx, s.Descriptor)
	var r *runner.Runner
	if err == nil {
		r, err = m.newRunner(id, s.Descriptor)
	}
	if err == nil {
		err = r.Start(ctx)
	}
	if err != nil {
		m.unregister(s)
		logger.Error("Restart failed, stream removed", "error", err)
		return fmt.Errorf("restart stream %s: %w", id, err)
	}

	m.mu.Lock()
	s.runner = r
	m.mu.Unlock()

	metrics.IncRestart(id)
	logger.Info("Stream restarted")
	return nil
}

func (m *Manager) unregister(s *Stream) {
	device := s.Descriptor.DevicePath()
	m.mu.Lock()
	delete(m.streams, s.ID)
	if device != "" && m.devices[device] == s.ID {
		delete(m.devices, device)
	}
	count := len(m.streams)
	m.mu.Unlock()

	metrics.SetActiveStreams(count)
	metrics.DeleteStreamMetrics(s.ID)
	m.publish(events.StreamRemovedEvent{
		StreamID:   s.ID,
		DevicePath: device,
		Timestamp:  time.Now().Format(time.RFC3339),
	})
}

// Status returns the state of a stream.
func (m *Manager) Status(id string) (runner.State, error) {
	s, err := m.get(id)
	if err != nil {
		return "", err
	}
	m.mu.RLock()
	r := s.runner
	m.mu.RUnlock()
	return r.State(), nil
}

// Get returns a snapshot of one stream.
func (m *Manager) Get(id string) (StreamInfo, error) {
	s, err := m.get(id)
	if err != nil {
		return StreamInfo{}, err
	}
	m.mu.RLock()
	r := s.runner
	m.mu.RUnlock()
	return snapshot(s, r), nil
}

// List returns snapshots of every stream in creation order.
func (m *Manager) List() []StreamInfo {
	m.mu.RLock()
	type entry struct {
		s *Stream
		r *runner.Runner
	}
	entries := make([]entry, 0, len(m.streams))
	for _, s := range m.streams {
		entries = append(entries, entry{s: s, r: s.runner})
	}
	m.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].s.seq < entries[j].s.seq })

	infos := make([]StreamInfo, 0, len(entries))
	for _, e := range entries {
		infos = append(infos, snapshot(e.s, e.r))
	}
	return infos
}

// Descriptors returns the registered descriptors in creation order.
func (m *Manager) Descriptors() []video.StreamDescriptor {
	infos := m.List()
	descs := make([]video.StreamDescriptor, 0, len(infos))
	for _, info := range infos {
		descs = append(descs, info.Descriptor)
	}
	return descs
}

func snapshot(s *Stream, r *runner.Runner) StreamInfo {
	info := StreamInfo{
		ID:          s.ID,
		Descriptor:  s.Descriptor,
		State:       r.State(),
		Description: r.Description(),
		Sinks:       r.Sinks(),
		CreatedAt:   s.CreatedAt,
	}
	if err := r.LastError(); err != nil {
		info.LastError = err.Error()
	}
	return info
}

// AttachSink adds a consumer branch to a running stream.
func (m *Manager) AttachSink(ctx context.Context, id, name, description string) error {
	s, err := m.get(id)
	if err != nil {
		return err
	}
	m.mu.RLock()
	r := s.runner
	m.mu.RUnlock()

	if err := r.AttachSink(ctx, name, description); err != nil {
		return err
	}
	m.publish(events.SinkAttachedEvent{StreamID: id, Sink: name, Timestamp: time.Now().Format(time.RFC3339)})
	return nil
}

// DetachSink removes a consumer branch from a running stream.
func (m *Manager) DetachSink(ctx context.Context, id, name string) error {
	s, err := m.get(id)
	if err != nil {
		return err
	}
	m.mu.RLock()
	r := s.runner
	m.mu.RUnlock()

	if err := r.DetachSink(ctx, name); err != nil {
		return err
	}
	m.publish(events.SinkDetachedEvent{StreamID: id, Sink: name, Timestamp: time.Now().Format(time.RFC3339)})
	return nil
}

// Shutdown stops every stream and the health goroutine.
func (m *Manager) Shutdown(ctx context.Context) error {
	var errs []error
	for _, info := range m.List() {
		if err := m.Remove(ctx, info.ID); err != nil && !errors.Is(err, ErrNotFound) {
			errs = append(errs, err)
		}
	}
	m.stopOnce.Do(func() { close(m.done) })
	m.wg.Wait()
	return errors.Join(errs...)
}

func (m *Manager) publish(ev events.Event) {
	if m.eventBus != nil {
		m.eventBus.Publish(ev)
	}
}

func sourceDescription(desc video.StreamDescriptor) string {
	if desc.Source == nil {
		return "no source"
	}
	return desc.Source.Description()
}
