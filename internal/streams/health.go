package streams

import (
	"context"
	"time"

	"github.com/smazurov/camstream/internal/events"
	"github.com/smazurov/camstream/internal/metrics"
	"github.com/smazurov/camstream/internal/runner"
)

const defaultRestartBackoff = 2 * time.Second

// healthLoop is the single consumer of runner transitions.
func (m *Manager) healthLoop() {
	defer m.wg.Done()
	for {
		select {
		case <-m.done:
			return
		case t := <-m.health:
			m.handleTransition(t)
		}
	}
}

// dropTransition runs on the runner's goroutine when the health channel is full.
func (m *Manager) dropTransition(t runner.Transition) {
	metrics.IncNotificationsDropped()
	m.logger.Error("Health channel full, transition not delivered",
		"stream_id", t.StreamID, "from", t.From, "to", t.To, "error", t.Err)
}

func (m *Manager) handleTransition(t runner.Transition) {
	logger := m.logger.With("stream_id", t.StreamID)

	// A graph that never played belongs to a failed add or restart. The
	// caller already has the error and no stream was announced for it.
	if t.From == runner.StateConstructed && t.To == runner.StateStopped {
		logger.Debug("Pipeline never started", "error", t.Err)
		return
	}

	metrics.SetStreamState(t.StreamID, string(t.To))
	if t.Err != nil {
		metrics.IncStreamError(t.Category)
	}

	ev := events.StreamStateChangedEvent{
		StreamID:  t.StreamID,
		From:      string(t.From),
		To:        string(t.To),
		Category:  t.Category,
		Timestamp: t.At.Format(time.RFC3339),
	}
	if t.Err != nil {
		ev.Error = t.Err.Error()
	}
	m.publish(ev)

	m.mu.RLock()
	_, registered := m.streams[t.StreamID]
	m.mu.RUnlock()

	switch t.To {
	case runner.StateDegraded:
		logger.Warn("Stream degraded", "error", t.Err, "category", t.Category)
		if registered && m.autoRestart.Enabled {
			m.scheduleRestart(t.StreamID)
		}
	case runner.StateStopped:
		if !registered {
			metrics.DeleteStreamMetrics(t.StreamID)
		}
	default:
		logger.Debug("Stream state changed", "from", t.From, "to", t.To)
	}
}

// scheduleRestart restarts a degraded stream after the backoff, unless the
// manager shuts down or the stream recovered or went away meanwhile.
func (m *Manager) scheduleRestart(id string) {
	backoff := m.autoRestart.Backoff
	if backoff <= 0 {
		backoff = defaultRestartBackoff
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		timer := time.NewTimer(backoff)
		defer timer.Stop()
		select {
		case <-m.done:
			return
		case <-timer.C:
		}

		if state, err := m.Status(id); err != nil || state != runner.StateDegraded {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*m.runnerTimeout())
		defer cancel()
		if err := m.Restart(ctx, id); err != nil {
			m.logger.Error("Automatic restart failed", "stream_id", id, "error", err)
		}
	}()
}

func (m *Manager) runnerTimeout() time.Duration {
	if m.timeout > 0 {
		return m.timeout
	}
	return runner.DefaultTimeout
}
