package launch

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/smazurov/camstream/internal/engine"
	"github.com/smazurov/camstream/internal/process"
)

const testDescription = "v4l2src device=/dev/video0 ! tee name=sink-tee-a allow-not-linked=true"

// fakeLauncher writes a shell script standing in for gst-launch-1.0.
func fakeLauncher(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gst-launch-1.0")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("failed to write fake launcher: %v", err)
	}
	return path
}

func newTestEngine(t *testing.T, body string) *Engine {
	t.Helper()
	e, err := New(fakeLauncher(t, body), process.Options{
		GracefulTimeout: 500 * time.Millisecond,
		KillTimeout:     200 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return e
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		line      string
		wantLevel string
		wantMsg   string
	}{
		{
			line:      "ERROR: from element /GstPipeline:pipeline0/GstV4l2Src:v4l2src0: Cannot identify device '/dev/video9'.",
			wantLevel: "error",
			wantMsg:   "from element /GstPipeline:pipeline0/GstV4l2Src:v4l2src0: Cannot identify device '/dev/video9'.",
		},
		{
			line:      "WARNING: from element /GstPipeline:pipeline0/GstUDPSink:udpsink0: Could not send",
			wantLevel: "warning",
			wantMsg:   "from element /GstPipeline:pipeline0/GstUDPSink:udpsink0: Could not send",
		},
		{
			line:      "0:00:00.015 1234 0x55d0 WARN v4l2src gstv4l2src.c:692:gst_v4l2src_query: not negotiated",
			wantLevel: "warning",
			wantMsg:   "v4l2src gstv4l2src.c:692:gst_v4l2src_query: not negotiated",
		},
		{
			line:      "0:00:01.000 1234 0x55d0 DEBUG tee gsttee.c:1: pad added",
			wantLevel: "debug",
			wantMsg:   "tee gsttee.c:1: pad added",
		},
		{
			line:      "Setting pipeline to PLAYING ...",
			wantLevel: "info",
			wantMsg:   "Setting pipeline to PLAYING ...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.wantLevel+"/"+tt.line[:10], func(t *testing.T) {
			level, msg := ParseLogLevel(tt.line)
			if level != tt.wantLevel {
				t.Errorf("level = %q, want %q", level, tt.wantLevel)
			}
			if msg != tt.wantMsg {
				t.Errorf("msg = %q, want %q", msg, tt.wantMsg)
			}
		})
	}
}

func TestParseRejectsBadSyntax(t *testing.T) {
	e := newTestEngine(t, "exit 0")
	if _, err := e.Parse("v4l2src ! ! tee"); err == nil {
		t.Fatal("expected syntax error")
	}
}

func TestPlayImmediateFailure(t *testing.T) {
	e := newTestEngine(t, `echo "ERROR: from element /GstPipeline:pipeline0/GstV4l2Src:v4l2src0: Cannot identify device '/dev/video0'." >&2; exit 1`)
	g, err := e.Parse(testDescription)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	err = g.Play(context.Background())
	if err == nil {
		t.Fatal("expected Play to fail")
	}
	if !strings.Contains(err.Error(), "Cannot identify device") {
		t.Errorf("error %q does not carry the launcher message", err)
	}
	if err := g.Close(context.Background()); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestEndOfStreamMessage(t *testing.T) {
	e := newTestEngine(t, "sleep 0.5; exit 0")
	g, err := e.Parse(testDescription)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if err := g.Play(context.Background()); err != nil {
		t.Fatalf("Play() error = %v", err)
	}

	select {
	case m := <-g.Messages():
		if m.Type != engine.MessageEOS {
			t.Errorf("message type = %v, want eos", m.Type)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no message after process exit")
	}
	_ = g.Close(context.Background())
}

func TestCloseStopsProcessQuietly(t *testing.T) {
	e := newTestEngine(t, `trap 'exit 0' INT; while :; do sleep 0.1; done`)
	g, err := e.Parse(testDescription)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if err := g.Play(context.Background()); err != nil {
		t.Fatalf("Play() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := g.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if m, ok := <-g.Messages(); ok {
		t.Errorf("unexpected message after Close: %+v", m)
	}
	if err := g.Close(ctx); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestCloseRetryAfterDeadline(t *testing.T) {
	if _, err := exec.LookPath("setsid"); err != nil {
		t.Skip("setsid not available")
	}
	// The detached sleep survives the kill and holds stdout open, so the
	// first Close cannot see the process finish before its deadline.
	e := newTestEngine(t, `trap '' INT; setsid sleep 2 & while :; do sleep 0.1; done`)
	g, err := e.Parse(testDescription)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if err := g.Play(context.Background()); err != nil {
		t.Fatalf("Play() error = %v", err)
	}

	short, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if err := g.Close(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Close() error = %v, want deadline exceeded", err)
	}
	select {
	case m, ok := <-g.Messages():
		t.Fatalf("Messages() after failed Close = %+v, %v; want still open", m, ok)
	default:
	}

	ctx, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := g.Close(ctx); err != nil {
		t.Fatalf("retried Close() error = %v", err)
	}
	select {
	case m, ok := <-g.Messages():
		if ok {
			t.Errorf("unexpected message after Close: %+v", m)
		}
	case <-time.After(time.Second):
		t.Fatal("Messages() not closed after retried Close")
	}
	if err := g.Close(ctx); err != nil {
		t.Errorf("third Close() error = %v", err)
	}
	if err := g.Play(ctx); !errors.Is(err, engine.ErrClosed) {
		t.Errorf("Play() after Close error = %v, want ErrClosed", err)
	}
}

func TestBranchesUnsupported(t *testing.T) {
	e := newTestEngine(t, "exit 0")
	g, _ := e.Parse(testDescription)
	if err := g.AttachBranch(context.Background(), "sink-tee-a", "udp", "queue ! fakesink"); !errors.Is(err, engine.ErrBranchUnsupported) {
		t.Errorf("AttachBranch() error = %v", err)
	}
	if err := g.DetachBranch(context.Background(), "sink-tee-a", "udp"); !errors.Is(err, engine.ErrBranchUnsupported) {
		t.Errorf("DetachBranch() error = %v", err)
	}
}
