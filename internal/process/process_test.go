package process

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestProcess creates a Process with short timeouts for testing.
func newTestProcess(t *testing.T, command string, opts Options) *Process {
	t.Helper()
	args, err := ParseCommand(command)
	if err != nil {
		t.Fatalf("ParseCommand(%q) error = %v", command, err)
	}
	if opts.GracefulTimeout == 0 {
		opts.GracefulTimeout = 100 * time.Millisecond
	}
	if opts.KillTimeout == 0 {
		opts.KillTimeout = 100 * time.Millisecond
	}
	return New("test", args, testLogger(), opts)
}

// runAsync runs Run in a goroutine and returns the exit code channel.
func runAsync(ctx context.Context, p *Process) <-chan int {
	done := make(chan int, 1)
	go func() {
		done <- p.Run(ctx)
	}()
	return done
}

// waitForExit waits for exit code with timeout, fails test on timeout.
func waitForExit(t *testing.T, done <-chan int, timeout time.Duration) int {
	t.Helper()
	select {
	case exitCode := <-done:
		return exitCode
	case <-time.After(timeout):
		t.Fatal("timeout waiting for process to exit")
		return -1
	}
}

func TestGracefulShutdown(t *testing.T) {
	p := newTestProcess(t, `sh -c "trap 'exit 0' INT TERM; while :; do sleep 0.1; done"`,
		Options{GracefulTimeout: 500 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, p)
	time.Sleep(100 * time.Millisecond)
	cancel()

	if exitCode := waitForExit(t, done, time.Second); exitCode != 0 {
		t.Errorf("expected exit code 0, got %d", exitCode)
	}
	if p.State() != StateExited {
		t.Errorf("state = %s, want exited", p.State())
	}
}

func TestForceKillOnTimeout(t *testing.T) {
	p := newTestProcess(t, `sh -c "trap '' INT; sleep 10"`,
		Options{GracefulTimeout: 50 * time.Millisecond, KillTimeout: 200 * time.Millisecond})

	if err := p.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	if exitCode := p.Stop(context.Background()); exitCode != ExitKilled {
		t.Errorf("expected exit code %d, got %d", ExitKilled, exitCode)
	}
}

func TestStopHonorsDeadline(t *testing.T) {
	p := newTestProcess(t, `sh -c "trap '' INT; sleep 10"`,
		Options{GracefulTimeout: 10 * time.Second, KillTimeout: 200 * time.Millisecond})

	if err := p.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	p.Stop(ctx)
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Stop took %v despite deadline", elapsed)
	}
}

func TestStopAfterExit(t *testing.T) {
	p := newTestProcess(t, "true", Options{})
	if exitCode := p.Run(context.Background()); exitCode != 0 {
		t.Errorf("expected exit code 0, got %d", exitCode)
	}
	if exitCode := p.Stop(context.Background()); exitCode != 0 {
		t.Errorf("Stop after exit = %d, want 0", exitCode)
	}
}

func TestStopBeforeStart(t *testing.T) {
	p := newTestProcess(t, "sleep 10", Options{})
	if exitCode := p.Stop(context.Background()); exitCode != 0 {
		t.Errorf("Stop before start = %d, want 0", exitCode)
	}
	if p.State() != StateIdle {
		t.Errorf("state = %s, want idle", p.State())
	}
}

func TestProcessExitWithError(t *testing.T) {
	p := newTestProcess(t, "sh -c 'exit 42'", Options{})
	if exitCode := p.Run(context.Background()); exitCode != 42 {
		t.Errorf("expected exit code 42, got %d", exitCode)
	}
}

func TestRunWithNonExistentCommand(t *testing.T) {
	p := newTestProcess(t, "/nonexistent/command/that/does/not/exist", Options{})
	if exitCode := p.Run(context.Background()); exitCode != 1 {
		t.Errorf("expected exit code 1 for start error, got %d", exitCode)
	}
}

func TestStartTwice(t *testing.T) {
	p := newTestProcess(t, "true", Options{})
	if err := p.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := p.Start(); err == nil {
		t.Error("expected second Start to fail")
	}
	<-p.Done()
}

func TestEmptyCommand(t *testing.T) {
	p := New("test", nil, testLogger(), Options{})
	if err := p.Start(); err == nil {
		t.Error("expected empty command to fail")
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in      string
		want    []string
		wantErr bool
	}{
		{`echo hello\ world`, []string{"echo", "hello world"}, false},
		{`gst-launch-1.0 -q`, []string{"gst-launch-1.0", "-q"}, false},
		{`sh -c "exit 1"`, []string{"sh", "-c", "exit 1"}, false},
		{`sh -c "unterminated`, nil, true},
	}
	for _, tt := range tests {
		args, err := ParseCommand(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCommand(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if len(args) != len(tt.want) {
			t.Errorf("ParseCommand(%q) = %q, want %q", tt.in, args, tt.want)
			continue
		}
		for i := range args {
			if args[i] != tt.want[i] {
				t.Errorf("ParseCommand(%q)[%d] = %q, want %q", tt.in, i, args[i], tt.want[i])
			}
		}
	}
}

func TestOutputHandlerAndParser(t *testing.T) {
	handler := &testOutputHandler{}
	var parsed []string
	var mu sync.Mutex
	parser := func(line string) (string, string) {
		mu.Lock()
		parsed = append(parsed, line)
		mu.Unlock()
		return "debug", line
	}

	p := newTestProcess(t, `sh -c "echo line1; echo line2 1>&2"`,
		Options{OutputHandler: handler, LogParser: parser})
	if exitCode := p.Run(context.Background()); exitCode != 0 {
		t.Errorf("expected exit code 0, got %d", exitCode)
	}

	if got := handler.count(); got != 2 {
		t.Errorf("expected 2 lines, got %d", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(parsed) != 2 {
		t.Errorf("parser saw %d lines, want 2", len(parsed))
	}
}

type testOutputHandler struct {
	mu    sync.Mutex
	lines []string
}

func (h *testOutputHandler) HandleLine(_, line string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lines = append(h.lines, line)
}

func (h *testOutputHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.lines)
}
