//go:build linux

// Package v4l2 probes Video4Linux2 capture devices without cgo.
//
// It answers two questions for the stream service: is this path a capture
// device, and which pixel formats, sizes and frame intervals does it offer.
//
//	c, err := v4l2.QueryCapability("/dev/video0")
//	if err == nil && c.IsCapture() {
//	    formats, _ := v4l2.GetFormats("/dev/video0")
//	    for _, f := range formats {
//	        sizes, _ := v4l2.GetResolutions("/dev/video0", f.PixelFormat)
//	        _ = sizes
//	    }
//	}
//
// The ioctl structures used here contain only fixed-width fields, so a single
// layout serves amd64, arm64 and 32-bit arm.
package v4l2
