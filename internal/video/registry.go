package video

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/smazurov/camstream/internal/logging"
)

// Registry validates sources against the hardware actually present.
type Registry interface {
	// Refresh re-probes the source, updates its capability set in place and
	// reports whether it is usable.
	Refresh(ctx context.Context, src Source) bool
	// IsValid reports the result of the last Refresh for the source.
	IsValid(src Source) bool
}

// ErrNotCaptureDevice is returned by a probe for nodes that cannot deliver video.
var ErrNotCaptureDevice = errors.New("not a video capture device")

// ProbeFunc returns the capability set of the device at path.
type ProbeFunc func(path string) ([]Format, error)

// DeviceRegistry is the V4L2-backed Registry.
type DeviceRegistry struct {
	probe ProbeFunc
	stat  func(string) (os.FileInfo, error)

	mu    sync.RWMutex
	valid map[string]bool
}

// NewDeviceRegistry creates a registry that probes devices through V4L2.
func NewDeviceRegistry() *DeviceRegistry {
	return NewDeviceRegistryWithProbe(ProbeDevice)
}

// NewDeviceRegistryWithProbe creates a registry using a custom probe.
func NewDeviceRegistryWithProbe(probe ProbeFunc) *DeviceRegistry {
	return &DeviceRegistry{
		probe: probe,
		stat:  os.Stat,
		valid: make(map[string]bool),
	}
}

// Refresh implements Registry.
func (r *DeviceRegistry) Refresh(ctx context.Context, src Source) bool {
	logger := logging.GetLogger("devices")

	local, ok := src.(*Local)
	if !ok {
		// Only local hardware is probed.
		return src != nil
	}
	if err := ctx.Err(); err != nil {
		return false
	}

	formats, err := r.probeLocal(local)
	r.mu.Lock()
	r.valid[local.DevicePath] = err == nil
	r.mu.Unlock()

	if err != nil {
		logger.Debug("Device probe failed", "device", local.DevicePath, "error", err)
		return false
	}

	local.Capabilities = formats
	logger.Debug("Device refreshed", "device", local.DevicePath, "formats", len(formats))
	return true
}

func (r *DeviceRegistry) probeLocal(local *Local) ([]Format, error) {
	if local.DevicePath == "" {
		return nil, errors.New("empty device path")
	}
	if _, err := r.stat(local.DevicePath); err != nil {
		return nil, err
	}
	formats, err := r.probe(local.DevicePath)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", local.DevicePath, err)
	}
	if len(formats) == 0 {
		return nil, fmt.Errorf("probe %s: no capture formats", local.DevicePath)
	}
	return formats, nil
}

// IsValid implements Registry. A device that disappeared since the last
// refresh is reported invalid.
func (r *DeviceRegistry) IsValid(src Source) bool {
	local, ok := src.(*Local)
	if !ok {
		return src != nil
	}

	r.mu.RLock()
	valid := r.valid[local.DevicePath]
	r.mu.RUnlock()
	if !valid {
		return false
	}
	_, err := r.stat(local.DevicePath)
	return err == nil
}

// Forget drops the cached result for path so IsValid reports false until
// the next successful Refresh.
func (r *DeviceRegistry) Forget(path string) {
	r.mu.Lock()
	delete(r.valid, path)
	r.mu.Unlock()
}
