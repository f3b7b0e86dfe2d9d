package api

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/camstream/internal/engine"
	"github.com/smazurov/camstream/internal/logging"
	"github.com/smazurov/camstream/internal/pipeline"
	"github.com/smazurov/camstream/internal/runner"
	"github.com/smazurov/camstream/internal/sink"
	"github.com/smazurov/camstream/internal/streams"
	"github.com/smazurov/camstream/internal/video"
)

func TestSSEStreamEvents(t *testing.T) {
	env := newTestEnv(t, nil)
	ts := httptest.NewServer(env.server.GetMux())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// The response headers only arrive with the first event, so keep
	// producing events until the client sees one.
	done := make(chan struct{})
	defer close(done)
	go func() {
		for i := 0; ; i++ {
			select {
			case <-done:
				return
			case <-time.After(20 * time.Millisecond):
			}
			id, err := env.manager.AddAndStart(context.Background(), video.StreamDescriptor{
				Name:   fmt.Sprintf("s%d", i),
				Source: &video.Local{DevicePath: fmt.Sprintf("/dev/video%d", i)},
				Configuration: video.VideoCapture{
					Encode: video.EncodeH264, Width: 640, Height: 480,
					FrameInterval: video.FrameInterval{Numerator: 1, Denominator: 30},
				},
			})
			if err == nil {
				_ = env.manager.Remove(context.Background(), id)
			}
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events?auth="+basicAuth(testUser, testPass), nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("Content-Type = %q", ct)
	}

	seen := make(map[string]bool)
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if name, ok := strings.CutPrefix(line, "event: "); ok {
			seen[name] = true
		}
		if seen["stream-added"] && seen["stream-removed"] {
			return
		}
	}
	t.Fatalf("events seen = %v, scan error = %v", seen, scanner.Err())
}

type logList struct {
	Entries []struct {
		Message  string `json:"message"`
		StreamID string `json:"stream_id"`
	} `json:"entries"`
	Count int `json:"count"`
}

func TestListLogs(t *testing.T) {
	env := newTestEnv(t, nil)

	logger := logging.GetLogger("apitest")
	logger.Warn("first", "stream_id", "stream-a")
	logger.Warn("second", "stream_id", "stream-b")
	logger.Warn("third", "stream_id", "stream-a")

	rec := env.do(t, http.MethodGet, "/api/logs?stream_id=stream-a&limit=1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decode[logList](t, rec)
	if body.Count != 1 || body.Entries[0].Message != "third" || body.Entries[0].StreamID != "stream-a" {
		t.Errorf("entries = %+v", body.Entries)
	}
}

type logLevels struct {
	Levels map[string]string `json:"levels"`
}

func TestLogLevels(t *testing.T) {
	env := newTestEnv(t, nil)
	t.Cleanup(func() { _ = logging.SetModuleLevel("apitest-levels", "info") })

	rec := env.do(t, http.MethodPut, "/api/logs/levels/apitest-levels", map[string]any{"level": "debug"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decode[logLevels](t, rec)
	if body.Levels["apitest-levels"] != "debug" {
		t.Errorf("levels = %v", body.Levels)
	}

	rec = env.do(t, http.MethodPut, "/api/logs/levels/apitest-levels", map[string]any{"level": "loud"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid level status = %d, want 422", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/logs/levels", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get levels status = %d", rec.Code)
	}
}

func TestMapStreamError(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", streams.NewStreamError(streams.ErrCodeStreamNotFound, "stream x", nil), http.StatusNotFound},
		{"device busy", fmt.Errorf("add: %w", streams.ErrDeviceBusy), http.StatusConflict},
		{"invalid source", streams.NewStreamError(streams.ErrCodeInvalidSource, "gone", nil), http.StatusUnprocessableEntity},
		{"unsupported encode", fmt.Errorf("build stream: %w", pipeline.ErrUnsupported), http.StatusUnprocessableEntity},
		{"unsupported source", pipeline.ErrUnsupportedSource, http.StatusUnprocessableEntity},
		{"construction", &pipeline.ConstructionError{Description: "x", Err: errors.New("no element")}, http.StatusUnprocessableEntity},
		{"sink endpoint", sink.ErrInvalidEndpoint, http.StatusBadRequest},
		{"sink kind", sink.ErrUnsupportedKind, http.StatusBadRequest},
		{"branch exists", engine.ErrBranchExists, http.StatusConflict},
		{"invalid transition", runner.ErrInvalidTransition, http.StatusConflict},
		{"branch missing", engine.ErrBranchNotFound, http.StatusNotFound},
		{"branch unsupported", engine.ErrBranchUnsupported, http.StatusNotImplemented},
		{"timeout", fmt.Errorf("start stream: %w", runner.ErrTimeout), http.StatusGatewayTimeout},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var se huma.StatusError
			if !errors.As(env.server.mapStreamError(tt.err), &se) {
				t.Fatal("not a huma.StatusError")
			}
			if se.GetStatus() != tt.want {
				t.Errorf("status = %d, want %d", se.GetStatus(), tt.want)
			}
		})
	}
}
