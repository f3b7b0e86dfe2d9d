//go:build linux

package v4l2

import (
	"errors"
	"math"
	"path/filepath"
	"syscall"
	"testing"
)

func TestFormatFourCC(t *testing.T) {
	tests := []struct {
		name     string
		format   uint32
		expected string
	}{
		{name: "YUYV format", format: v4l2PixFmtYUYV, expected: "YUYV"},
		{name: "MJPEG format", format: v4l2PixFmtMJPEG, expected: "MJPG"},
		{name: "H264 format", format: v4l2PixFmtH264, expected: "H264"},
		{name: "null bytes", format: 0x00000000, expected: "\x00\x00\x00\x00"},
		{name: "mixed bytes", format: 0x01020304, expected: "\x04\x03\x02\x01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatFourCC(tt.format)
			if result != tt.expected {
				t.Errorf("FormatFourCC(0x%08X) = %q, want %q", tt.format, result, tt.expected)
			}
		})
	}
}

func TestFramerateFPS(t *testing.T) {
	tests := []struct {
		name        string
		framerate   Framerate
		expectedFPS float64
	}{
		{"30 fps (1/30)", Framerate{Numerator: 1, Denominator: 30}, 30.0},
		{"29.97 fps (1001/30000)", Framerate{Numerator: 1001, Denominator: 30000}, 30000.0 / 1001.0},
		{"zero numerator returns 0", Framerate{Numerator: 0, Denominator: 60}, 0.0},
		{"zero denominator", Framerate{Numerator: 1, Denominator: 0}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.framerate.FPS()
			if math.Abs(result-tt.expectedFPS) > 0.001 {
				t.Errorf("FPS() = %f, want %f", result, tt.expectedFPS)
			}
		})
	}
}

func TestDecodeCapability(t *testing.T) {
	raw := v4l2Capability{
		capabilities: v4l2CapVideoCapture | v4l2CapDeviceCaps,
		deviceCaps:   0x00000002,
	}
	copy(raw.driver[:], "uvcvideo")
	copy(raw.card[:], "HD Pro Webcam C920")
	copy(raw.busInfo[:], "usb-0000:00:14.0-1")

	c := decodeCapability(&raw)
	if c.Driver != "uvcvideo" || c.Card != "HD Pro Webcam C920" || c.BusInfo != "usb-0000:00:14.0-1" {
		t.Errorf("unexpected strings: %+v", c)
	}
	// device_caps wins when the driver sets V4L2_CAP_DEVICE_CAPS.
	if c.IsCapture() {
		t.Error("metadata-only node must not report capture")
	}

	raw.capabilities = v4l2CapVideoCapture
	if !decodeCapability(&raw).IsCapture() {
		t.Error("expected capture capability without device_caps")
	}
}

func TestStepwiseResolutions(t *testing.T) {
	s := &v4l2FrmsizeStepwise{minWidth: 640, maxWidth: 1920, minHeight: 480, maxHeight: 1080}
	got := stepwiseResolutions(s)

	if len(got) == 0 {
		t.Fatal("expected resolutions inside the range")
	}
	for _, r := range got {
		if r.Width < 640 || r.Width > 1920 || r.Height < 480 || r.Height > 1080 {
			t.Errorf("resolution %dx%d outside range", r.Width, r.Height)
		}
	}
	if got[len(got)-1] != (Resolution{1920, 1080}) {
		t.Errorf("last resolution = %+v, want 1920x1080", got[len(got)-1])
	}
}

func TestQueryCapabilityMissingDevice(t *testing.T) {
	_, err := QueryCapability(filepath.Join(t.TempDir(), "video99"))
	if err == nil {
		t.Fatal("expected error for missing device")
	}
	if !errors.Is(err, syscall.ENOENT) {
		t.Errorf("expected ENOENT, got %v", err)
	}
}

func TestFindDevicesWithoutSysfs(t *testing.T) {
	orig := sysfsRoot
	sysfsRoot = filepath.Join(t.TempDir(), "absent")
	defer func() { sysfsRoot = orig }()

	devices, err := FindDevices()
	if err != nil {
		t.Fatalf("FindDevices() error = %v", err)
	}
	if len(devices) != 0 {
		t.Errorf("expected no devices, got %d", len(devices))
	}
}
