//go:build !linux

package video

import "context"

// WatchDevices is only implemented on Linux.
func WatchDevices(context.Context, *DeviceRegistry, func(DeviceChange)) error {
	return errUnsupportedPlatform
}
