package streams

import (
	"context"
	"errors"
	"testing"

	"github.com/smazurov/camstream/internal/video"
)

func TestLoadAndStartSkipsInvalidSources(t *testing.T) {
	reg := &fakeRegistry{
		invalid: map[string]bool{"/dev/video1": true},
		stale:   map[string]bool{"/dev/video3": true},
	}
	m, b := newTestManager(t, Options{Registry: reg})

	descs := []video.StreamDescriptor{
		descriptor("a", "/dev/video0"),
		descriptor("b", "/dev/video1"),
		descriptor("c", "/dev/video2"),
		descriptor("d", "/dev/video3"),
	}
	if err := m.LoadAndStart(context.Background(), descs); err != nil {
		t.Fatalf("LoadAndStart() error = %v", err)
	}

	list := m.List()
	if len(list) != 2 {
		t.Fatalf("List() len = %d, want 2", len(list))
	}
	if list[0].Descriptor.Name != "a" || list[1].Descriptor.Name != "c" {
		t.Errorf("order = %s, %s; want a, c", list[0].Descriptor.Name, list[1].Descriptor.Name)
	}
	// Invalid sources never reach the builder.
	if got := b.buildCount(); got != 2 {
		t.Errorf("builds = %d, want 2", got)
	}
	// Each source is refreshed once.
	if got := reg.refreshCount(); got != len(descs) {
		t.Errorf("refreshes = %d, want %d", got, len(descs))
	}
}

func TestLoadAndStartContinuesPastFailures(t *testing.T) {
	m, _ := newTestManager(t, Options{})

	descs := []video.StreamDescriptor{
		descriptor("a", "/dev/video0"),
		{Name: "redirect", Source: &video.Local{DevicePath: "/dev/video1"}, Configuration: video.RedirectCapture{}},
		descriptor("c", "/dev/video2"),
	}
	if err := m.LoadAndStart(context.Background(), descs); err == nil {
		t.Error("expected joined error for the redirect stream")
	}
	if got := len(m.List()); got != 2 {
		t.Errorf("List() len = %d, want 2", got)
	}
}

func TestReconcile(t *testing.T) {
	m, b := newTestManager(t, Options{})
	ctx := context.Background()

	initial := []video.StreamDescriptor{
		descriptor("keep", "/dev/video0"),
		descriptor("drop", "/dev/video1"),
		descriptor("change", "/dev/video2"),
	}
	if err := m.LoadAndStart(ctx, initial); err != nil {
		t.Fatalf("LoadAndStart() error = %v", err)
	}
	before := make(map[string]string)
	for _, info := range m.List() {
		before[info.Descriptor.Name] = info.ID
	}

	changed := descriptor("change", "/dev/video2")
	changed.Configuration = video.VideoCapture{
		Encode: video.EncodeMJPG, Width: 640, Height: 480,
		FrameInterval: video.FrameInterval{Numerator: 1, Denominator: 15},
	}
	next := []video.StreamDescriptor{
		descriptor("keep", "/dev/video0"),
		changed,
		descriptor("new", "/dev/video3"),
	}
	if err := m.Reconcile(ctx, next); err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	after := make(map[string]string)
	for _, info := range m.List() {
		after[info.Descriptor.Name] = info.ID
	}
	if len(after) != 3 {
		t.Fatalf("streams after reconcile = %v", after)
	}
	if after["keep"] != before["keep"] {
		t.Error("unchanged stream was restarted")
	}
	if _, ok := after["drop"]; ok {
		t.Error("removed stream still registered")
	}
	if after["change"] == before["change"] {
		t.Error("changed stream kept its old runner")
	}
	if _, ok := after["new"]; !ok {
		t.Error("new stream not started")
	}
	if !b.graph(before["drop"]).Closed() {
		t.Error("dropped stream graph not released")
	}
}

func TestValidate(t *testing.T) {
	reg := &fakeRegistry{
		invalid: map[string]bool{"/dev/video1": true},
		stale:   map[string]bool{"/dev/video2": true},
	}
	m, _ := newTestManager(t, Options{Registry: reg})
	ctx := context.Background()

	if err := m.Validate(ctx, descriptor("a", "/dev/video0")); err != nil {
		t.Errorf("Validate(video0) error = %v", err)
	}
	if err := m.Validate(ctx, descriptor("b", "/dev/video1")); !errors.Is(err, ErrInvalidSource) {
		t.Errorf("Validate(video1) error = %v, want ErrInvalidSource", err)
	}
	if err := m.Validate(ctx, descriptor("c", "/dev/video2")); !errors.Is(err, ErrInvalidSource) {
		t.Errorf("Validate(video2) error = %v, want ErrInvalidSource", err)
	}
	if err := m.Validate(ctx, video.StreamDescriptor{Name: "none"}); !errors.Is(err, ErrInvalidSource) {
		t.Errorf("Validate(no source) error = %v, want ErrInvalidSource", err)
	}
}
