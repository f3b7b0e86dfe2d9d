// Package video holds the declarative description of a stream: where frames
// come from (Source), how they are captured (CaptureConfiguration) and where
// the result is advertised (endpoints).
package video

import (
	"fmt"
	"strings"
)

// Encode is the pixel or bitstream format delivered by a capture device.
type Encode string

// Known encodes. Anything else arrives as an Unknown(fourcc) value.
const (
	EncodeH264 Encode = "H264"
	EncodeYUYV Encode = "YUYV"
	EncodeMJPG Encode = "MJPG"
)

// UnknownEncode wraps a fourcc the service has no pipeline for.
func UnknownEncode(fourcc string) Encode {
	return Encode("UNKNOWN(" + fourcc + ")")
}

// EncodeFromFourCC maps a V4L2 fourcc string to an Encode.
func EncodeFromFourCC(fourcc string) Encode {
	switch strings.TrimSpace(fourcc) {
	case "H264":
		return EncodeH264
	case "YUYV":
		return EncodeYUYV
	case "MJPG":
		return EncodeMJPG
	default:
		return UnknownEncode(strings.TrimSpace(fourcc))
	}
}

// FrameInterval is the time between frames as a fraction of a second.
// A 30 fps capture is {Numerator: 1, Denominator: 30}.
type FrameInterval struct {
	Numerator   uint32 `toml:"numerator" json:"numerator"`
	Denominator uint32 `toml:"denominator" json:"denominator"`
}

// Size is one resolution a device offers for a format, with its intervals.
type Size struct {
	Width     uint32          `json:"width"`
	Height    uint32          `json:"height"`
	Intervals []FrameInterval `json:"intervals,omitempty"`
}

// Format is one entry of a device capability set.
type Format struct {
	Encode Encode `json:"encode"`
	Sizes  []Size `json:"sizes,omitempty"`
}

// Source is a closed set of video source kinds. New kinds are added as new
// variants here and a matching case in the pipeline builder.
type Source interface {
	isSource()
	// Description is a human readable identification used in diagnostics.
	Description() string
}

// Local is a capture device attached to this host (V4L2).
type Local struct {
	Name         string   `toml:"name" json:"name"`
	DevicePath   string   `toml:"device_path" json:"device_path"`
	Capabilities []Format `toml:"-" json:"capabilities,omitempty"`
}

func (*Local) isSource() {}

// Description implements Source.
func (l *Local) Description() string {
	if l.Name == "" {
		return fmt.Sprintf("local device %s", l.DevicePath)
	}
	return fmt.Sprintf("local device %q (%s)", l.Name, l.DevicePath)
}

// Supports reports whether the last refreshed capability set lists the encode.
func (l *Local) Supports(encode Encode) bool {
	for _, f := range l.Capabilities {
		if f.Encode == encode {
			return true
		}
	}
	return false
}

// DevicePath returns the exclusive device a source occupies, or "" when the
// source kind does not own local hardware.
func DevicePath(src Source) string {
	if l, ok := src.(*Local); ok {
		return l.DevicePath
	}
	return ""
}

// CaptureConfiguration is a closed set of capture kinds.
type CaptureConfiguration interface {
	isCaptureConfiguration()
}

// VideoCapture requests raw or encoded video at a fixed size and rate.
type VideoCapture struct {
	Encode        Encode        `toml:"encode" json:"encode"`
	Width         uint32        `toml:"width" json:"width"`
	Height        uint32        `toml:"height" json:"height"`
	FrameInterval FrameInterval `toml:"frame_interval" json:"frame_interval"`
}

func (VideoCapture) isCaptureConfiguration() {}

// RedirectCapture forwards an existing stream without local capture.
// It is a valid configuration that no local pipeline can build.
type RedirectCapture struct{}

func (RedirectCapture) isCaptureConfiguration() {}

// StreamDescriptor pairs one source with one capture configuration.
// Endpoints are opaque to the pipeline core and carried through for clients.
type StreamDescriptor struct {
	Name          string
	Source        Source
	Configuration CaptureConfiguration
	Endpoints     []string
}

// DevicePath is a shortcut for DevicePath(d.Source).
func (d StreamDescriptor) DevicePath() string {
	return DevicePath(d.Source)
}
