package config

import (
	"context"
	"time"

	"github.com/smazurov/camstream/internal/logging"
	"github.com/smazurov/camstream/internal/streams/store"
	"github.com/smazurov/camstream/internal/video"
)

// StreamsReconciler applies a freshly loaded set of stream descriptors.
type StreamsReconciler interface {
	Reconcile(ctx context.Context, descs []video.StreamDescriptor) error
}

// WatchStreams reconciles r against the streams file whenever it changes.
// Each reconcile is bounded by timeout. The returned watcher is started.
func WatchStreams(
	path string,
	r StreamsReconciler,
	timeout time.Duration,
	opts ...WatcherOption[[]video.StreamDescriptor],
) (*Watcher[[]video.StreamDescriptor], error) {
	logger := logging.GetLogger("config")
	reconcile := func(descs []video.StreamDescriptor) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := r.Reconcile(ctx, descs); err != nil {
			logger.Error("Streams reload incomplete", "path", path, "error", err)
			return
		}
		logger.Info("Streams reloaded", "path", path, "streams", len(descs))
	}
	w := NewWatcher(path, store.Decode, reconcile, logger, opts...)

	if err := w.Start(); err != nil {
		return nil, err
	}
	return w, nil
}
