package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher re-reads one file after it settles on disk and hands the parsed
// value to a callback. Writes that leave the content unchanged are ignored,
// so saving what was just loaded does not trigger a reload.
//
// The parent directory is watched rather than the file itself so that
// editors and atomic renames, which replace the inode, keep working.
type Watcher[T any] struct {
	path     string
	parse    func([]byte) (T, error)
	onChange func(T)
	onError  func(error)
	debounce time.Duration
	logger   *slog.Logger

	fs       *fsnotify.Watcher
	last     []byte
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// WatcherOption configures a Watcher.
type WatcherOption[T any] func(*Watcher[T])

// WithDebounce sets how long the file must be quiet before it is reloaded.
func WithDebounce[T any](d time.Duration) WatcherOption[T] {
	return func(w *Watcher[T]) { w.debounce = d }
}

// WithErrorHandler is called when the file cannot be read or parsed.
func WithErrorHandler[T any](fn func(error)) WatcherOption[T] {
	return func(w *Watcher[T]) { w.onError = fn }
}

// NewWatcher creates a watcher for path. Nothing happens until Start.
func NewWatcher[T any](
	path string,
	parse func([]byte) (T, error),
	onChange func(T),
	logger *slog.Logger,
	opts ...WatcherOption[T],
) *Watcher[T] {
	w := &Watcher[T]{
		path:     filepath.Clean(path),
		parse:    parse,
		onChange: onChange,
		debounce: defaultDebounce,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start records the current content as the baseline and begins watching.
func (w *Watcher[T]) Start() error {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	if err := fs.Add(filepath.Dir(w.path)); err != nil {
		_ = fs.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.fs = fs

	// A missing file leaves the baseline empty; its creation is a change.
	if data, err := os.ReadFile(w.path); err == nil {
		w.last = data
	}

	go w.loop()
	w.logger.Info("Watching file", "path", w.path, "debounce", w.debounce)
	return nil
}

// Stop ends watching and waits for an in-flight reload to finish.
func (w *Watcher[T]) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stop)
		if w.fs == nil {
			close(w.done)
			return
		}
		err = w.fs.Close()
		<-w.done
	})
	return err
}

func (w *Watcher[T]) loop() {
	defer close(w.done)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-w.stop:
			return

		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			timer.Reset(w.debounce)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("File watcher error", "path", w.path, "error", err)

		case <-timer.C:
			w.reload()
		}
	}
}

func (w *Watcher[T]) reload() {
	data, err := os.ReadFile(w.path)
	if errors.Is(err, os.ErrNotExist) {
		// Mid-rename; the Create that follows schedules another reload.
		return
	}
	if err != nil {
		w.fail(fmt.Errorf("read %s: %w", w.path, err))
		return
	}
	if bytes.Equal(data, w.last) {
		w.logger.Debug("File unchanged, skipping reload", "path", w.path)
		return
	}

	v, err := w.parse(data)
	if err != nil {
		w.fail(err)
		return
	}
	w.last = data
	w.onChange(v)
}

func (w *Watcher[T]) fail(err error) {
	w.logger.Error("File reload failed", "path", w.path, "error", err)
	if w.onError != nil {
		w.onError(err)
	}
}
