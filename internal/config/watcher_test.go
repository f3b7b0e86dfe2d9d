package config

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type rate struct {
	FPS int `toml:"fps"`
}

func parseRate(data []byte) (rate, error) {
	var r rate
	if err := toml.Unmarshal(data, &r); err != nil {
		return rate{}, err
	}
	if r.FPS <= 0 {
		return rate{}, errors.New("fps must be positive")
	}
	return r, nil
}

type watchHarness struct {
	path    string
	changes chan rate
	errs    chan error
}

func newWatchHarness(t *testing.T, initial string) *watchHarness {
	t.Helper()
	h := &watchHarness{
		path:    filepath.Join(t.TempDir(), "rate.toml"),
		changes: make(chan rate, 8),
		errs:    make(chan error, 8),
	}
	if initial != "" {
		h.write(t, initial)
	}

	w := NewWatcher(h.path, parseRate, func(r rate) { h.changes <- r },
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithDebounce[rate](40*time.Millisecond),
		WithErrorHandler[rate](func(err error) { h.errs <- err }),
	)
	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = w.Stop() })
	time.Sleep(50 * time.Millisecond)
	return h
}

func (h *watchHarness) write(t *testing.T, content string) {
	t.Helper()
	if err := os.WriteFile(h.path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func (h *watchHarness) expect(t *testing.T, fps int) {
	t.Helper()
	select {
	case r := <-h.changes:
		if r.FPS != fps {
			t.Errorf("fps = %d, want %d", r.FPS, fps)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for fps %d", fps)
	}
}

func (h *watchHarness) expectQuiet(t *testing.T) {
	t.Helper()
	select {
	case r := <-h.changes:
		t.Fatalf("unexpected reload: %+v", r)
	case <-time.After(250 * time.Millisecond):
	}
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	h := newWatchHarness(t, "fps = 30\n")
	h.write(t, "fps = 15\n")
	h.expect(t, 15)
}

func TestWatcherFollowsAtomicRename(t *testing.T) {
	h := newWatchHarness(t, "fps = 30\n")

	tmp := h.path + ".tmp"
	if err := os.WriteFile(tmp, []byte("fps = 60\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, h.path); err != nil {
		t.Fatal(err)
	}
	h.expect(t, 60)
}

func TestWatcherPicksUpCreatedFile(t *testing.T) {
	h := newWatchHarness(t, "")
	h.write(t, "fps = 25\n")
	h.expect(t, 25)
}

func TestWatcherIgnores(t *testing.T) {
	tests := []struct {
		name  string
		apply func(t *testing.T, h *watchHarness)
	}{
		{"sibling file", func(t *testing.T, h *watchHarness) {
			if err := os.WriteFile(filepath.Join(filepath.Dir(h.path), "other.toml"), []byte("fps = 5\n"), 0o644); err != nil {
				t.Fatal(err)
			}
		}},
		{"unchanged content", func(t *testing.T, h *watchHarness) {
			h.write(t, "fps = 30\n")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newWatchHarness(t, "fps = 30\n")
			tt.apply(t, h)
			h.expectQuiet(t)
		})
	}
}

func TestWatcherReportsParseErrors(t *testing.T) {
	h := newWatchHarness(t, "fps = 30\n")

	h.write(t, "fps = 0\n")
	select {
	case err := <-h.errs:
		if err == nil {
			t.Fatal("nil error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for parse error")
	}
	h.expectQuiet(t)

	// A later valid write still reloads.
	h.write(t, "fps = 10\n")
	h.expect(t, 10)
}

func TestWatcherDebouncesBursts(t *testing.T) {
	h := newWatchHarness(t, "fps = 30\n")
	for fps := 1; fps <= 5; fps++ {
		h.write(t, "fps = "+string(rune('0'+fps))+"\n")
		time.Sleep(5 * time.Millisecond)
	}
	h.expect(t, 5)
	h.expectQuiet(t)
}

func TestWatcherStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rate.toml")
	changes := make(chan rate, 1)
	w := NewWatcher(path, parseRate, func(r rate) { changes <- r },
		slog.New(slog.NewTextHandler(io.Discard, nil)), WithDebounce[rate](20*time.Millisecond))
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}

	if err := os.WriteFile(path, []byte("fps = 30\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case r := <-changes:
		t.Fatalf("reload after Stop: %+v", r)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcherMissingDirectory(t *testing.T) {
	w := NewWatcher(filepath.Join(t.TempDir(), "nope", "rate.toml"), parseRate, func(rate) {},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := w.Start(); err == nil {
		_ = w.Stop()
		t.Fatal("expected error for a missing directory")
	}
	if err := w.Stop(); err != nil {
		t.Errorf("Stop() on unstarted watcher error = %v", err)
	}
}
