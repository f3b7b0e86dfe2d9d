package led

import (
	"log/slog"
	"sync"

	"github.com/smazurov/camstream/internal/events"
	"github.com/smazurov/camstream/internal/runner"
	"github.com/smazurov/camstream/internal/streams"
)

// Lister reports the registered streams.
type Lister interface {
	List() []streams.StreamInfo
}

// Manager keeps the status LED in step with the stream registry:
// heartbeat with no streams, solid when every stream runs, blink otherwise.
type Manager struct {
	controller Controller
	streams    Lister
	eventBus   *events.Bus
	logger     *slog.Logger

	mu           sync.Mutex
	current      Pattern
	unsubscribes []func()
}

// NewManager creates a manager. Call Start to begin tracking.
func NewManager(controller Controller, lister Lister, bus *events.Bus, logger *slog.Logger) *Manager {
	return &Manager{
		controller: controller,
		streams:    lister,
		eventBus:   bus,
		logger:     logger,
	}
}

// Start sets the initial pattern and follows stream events.
func (m *Manager) Start() {
	m.mu.Lock()
	m.unsubscribes = []func(){
		events.On(m.eventBus, func(events.StreamAddedEvent) { m.update() }),
		events.On(m.eventBus, func(events.StreamRemovedEvent) { m.update() }),
		events.On(m.eventBus, func(events.StreamStateChangedEvent) { m.update() }),
	}
	m.mu.Unlock()

	m.update()
	m.logger.Info("Status LED manager started")
}

// Stop unsubscribes and turns the LED off.
func (m *Manager) Stop() {
	m.mu.Lock()
	unsubscribes := m.unsubscribes
	m.unsubscribes = nil
	m.mu.Unlock()

	// Handlers take mu, so unsubscribe without it.
	for _, unsub := range unsubscribes {
		unsub()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.apply(PatternOff)
}

// Pattern returns the pattern last applied.
func (m *Manager) Pattern() Pattern {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *Manager) update() {
	p := patternFor(m.streams.List())

	m.mu.Lock()
	defer m.mu.Unlock()
	if p != m.current {
		m.apply(p)
	}
}

// apply must be called with mu held.
func (m *Manager) apply(p Pattern) {
	if err := m.controller.Set(p); err != nil {
		m.logger.Warn("Failed to set status LED", "pattern", p, "error", err)
		return
	}
	m.logger.Debug("Status LED updated", "from", m.current, "to", p)
	m.current = p
}

func patternFor(infos []streams.StreamInfo) Pattern {
	if len(infos) == 0 {
		return PatternHeartbeat
	}
	for _, info := range infos {
		if info.State != runner.StateRunning {
			return PatternBlink
		}
	}
	return PatternSolid
}
