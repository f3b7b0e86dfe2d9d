package engine

import "strings"

// Category classifies GStreamer error text for logs and metrics.
type Category int

// Error categories.
const (
	CategoryDevice Category = iota
	CategoryNetwork
	CategoryCodec
	CategoryUnknown
)

func (c Category) String() string {
	switch c {
	case CategoryDevice:
		return "device"
	case CategoryNetwork:
		return "network"
	case CategoryCodec:
		return "codec"
	default:
		return "unknown"
	}
}

var (
	deviceKeywords = []string{
		"v4l2", "/dev/video", "device", "busy", "permission denied",
		"no such file", "could not open", "resource",
	}
	codecKeywords = []string{
		"not negotiated", "negotiation", "caps", "codec", "format",
		"h264", "jpeg", "decode", "encode", "no element", "missing plugin",
	}
	networkKeywords = []string{
		"udp", "socket", "network", "connection", "unreachable",
		"address", "timeout", "host",
	}
)

// Classify inspects the message and debug strings of an engine error.
// Device keywords win over codec, codec over network.
func Classify(text, debug string) Category {
	combined := strings.ToLower(text + " " + debug)
	switch {
	case containsAny(combined, deviceKeywords):
		return CategoryDevice
	case containsAny(combined, codecKeywords):
		return CategoryCodec
	case containsAny(combined, networkKeywords):
		return CategoryNetwork
	default:
		return CategoryUnknown
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
