//go:build linux

package v4l2

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"unsafe"
)

// sysfsRoot is a variable so tests can point enumeration at a fixture tree.
var sysfsRoot = "/sys/class/video4linux"

// QueryCapability opens the device and issues VIDIOC_QUERYCAP.
func QueryCapability(devicePath string) (Capability, error) {
	fd, err := open(devicePath)
	if err != nil {
		return Capability{}, fmt.Errorf("failed to open device: %w", err)
	}
	defer closeFd(fd)

	raw := v4l2Capability{}
	if err := ioctl(fd, vidiocQuerycap, unsafe.Pointer(&raw)); err != nil {
		return Capability{}, fmt.Errorf("VIDIOC_QUERYCAP on %s: %w", devicePath, err)
	}
	return decodeCapability(&raw), nil
}

func decodeCapability(raw *v4l2Capability) Capability {
	caps := raw.capabilities
	if caps&v4l2CapDeviceCaps != 0 {
		caps = raw.deviceCaps
	}
	return Capability{
		Driver:  cstr(raw.driver[:]),
		Card:    cstr(raw.card[:]),
		BusInfo: cstr(raw.busInfo[:]),
		Caps:    caps,
	}
}

// FindDevices lists the video capture devices known to sysfs, sorted by path.
func FindDevices() ([]DeviceInfo, error) {
	entries, err := os.ReadDir(sysfsRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return []DeviceInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read video4linux directory: %w", err)
	}

	devices := []DeviceInfo{}
	for _, entry := range entries {
		devicePath := "/dev/" + entry.Name()
		c, err := QueryCapability(devicePath)
		if err != nil {
			slog.With("component", "linuxav").Debug("skipping video device", "path", devicePath, "error", err)
			continue
		}
		if !c.IsCapture() {
			continue
		}
		devices = append(devices, DeviceInfo{
			DevicePath: devicePath,
			DeviceName: c.Card,
			Caps:       c.Caps,
		})
	}

	sort.Slice(devices, func(i, j int) bool { return devices[i].DevicePath < devices[j].DevicePath })
	return devices, nil
}

// cstr converts a null-terminated byte slice to a Go string.
func cstr(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
