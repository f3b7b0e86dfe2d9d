//go:build !linux

package video

import "errors"

var errUnsupportedPlatform = errors.New("V4L2 probing is not supported on this platform")

// ProbeDevice is only implemented on Linux.
func ProbeDevice(string) ([]Format, error) {
	return nil, errUnsupportedPlatform
}

// ListDevices is only implemented on Linux.
func ListDevices() ([]*Local, error) {
	return nil, errUnsupportedPlatform
}
