// Package metrics provides Prometheus metrics for stream lifecycle and health.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// States tracked by the state gauge, in lifecycle order.
var States = []string{"constructed", "running", "degraded", "stopped"}

var (
	streamState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "camstream",
		Subsystem: "stream",
		Name:      "state",
		Help:      "1 for the current state of each stream, 0 otherwise",
	}, []string{"stream_id", "state"})

	streamTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camstream",
		Subsystem: "stream",
		Name:      "transitions_total",
		Help:      "State transitions by target state",
	}, []string{"to"})

	streamErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camstream",
		Subsystem: "stream",
		Name:      "errors_total",
		Help:      "Pipeline failures by error category",
	}, []string{"category"})

	streamsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "camstream",
		Subsystem: "streams",
		Name:      "active",
		Help:      "Streams held by the manager",
	})

	notificationsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "camstream",
		Subsystem: "health",
		Name:      "notifications_dropped_total",
		Help:      "Runner transitions that did not fit the health channel",
	})

	restarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camstream",
		Subsystem: "stream",
		Name:      "restarts_total",
		Help:      "Manager restarts of degraded streams",
	}, []string{"stream_id"})

	// Local cache for the status API.
	cache   = make(map[string]*StreamMetrics)
	cacheMu sync.RWMutex
)

// StreamMetrics holds the current values for one stream.
type StreamMetrics struct {
	State          string
	Transitions    int
	Restarts       int
	LastTransition time.Time
}

// SetStreamState records the current state of a stream.
func SetStreamState(streamID, state string) {
	for _, s := range States {
		v := 0.0
		if s == state {
			v = 1
		}
		streamState.WithLabelValues(streamID, s).Set(v)
	}
	streamTransitions.WithLabelValues(state).Inc()
	updateCache(streamID, func(m *StreamMetrics) {
		m.State = state
		m.Transitions++
		m.LastTransition = time.Now()
	})
}

// IncStreamError counts a pipeline failure.
func IncStreamError(category string) {
	streamErrors.WithLabelValues(category).Inc()
}

// IncRestart counts a manager restart of a stream.
func IncRestart(streamID string) {
	restarts.WithLabelValues(streamID).Inc()
	updateCache(streamID, func(m *StreamMetrics) { m.Restarts++ })
}

// IncNotificationsDropped counts a transition the health channel could not take.
func IncNotificationsDropped() {
	notificationsDropped.Inc()
}

// SetActiveStreams sets the number of registered streams.
func SetActiveStreams(n int) {
	streamsActive.Set(float64(n))
}

// DeleteStreamMetrics removes all per-stream series.
func DeleteStreamMetrics(streamID string) {
	for _, s := range States {
		streamState.DeleteLabelValues(streamID, s)
	}
	restarts.DeleteLabelValues(streamID)

	cacheMu.Lock()
	delete(cache, streamID)
	cacheMu.Unlock()
}

// GetStreamMetrics returns a copy of the current values for a stream.
func GetStreamMetrics(streamID string) *StreamMetrics {
	cacheMu.RLock()
	defer cacheMu.RUnlock()
	if m, ok := cache[streamID]; ok {
		dup := *m
		return &dup
	}
	return nil
}

func updateCache(streamID string, update func(*StreamMetrics)) {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	m, ok := cache[streamID]
	if !ok {
		m = &StreamMetrics{}
		cache[streamID] = m
	}
	update(m)
}
