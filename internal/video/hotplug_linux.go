//go:build linux

package video

import (
	"context"
	"errors"

	"github.com/smazurov/camstream/internal/logging"
	"github.com/smazurov/camstream/pkg/linuxav/hotplug"
)

// WatchDevices calls fn for every video node added or removed until ctx
// ends. Removed devices are marked invalid in r when r is not nil.
func WatchDevices(ctx context.Context, r *DeviceRegistry, fn func(DeviceChange)) error {
	mon, err := hotplug.NewMonitor(hotplug.SubsystemVideo4Linux)
	if err != nil {
		return err
	}
	defer mon.Close()

	logger := logging.GetLogger("devices")
	uevents := make(chan hotplug.Event, 16)
	errc := make(chan error, 1)
	go func() { errc <- mon.Run(ctx, uevents) }()

	for ev := range uevents {
		change, ok := deviceChange(ev)
		if !ok {
			continue
		}
		if change.Action == DeviceRemoved && r != nil {
			r.Forget(change.DevicePath)
		}
		logger.Info("Video device "+change.Action, "device", change.DevicePath)
		fn(change)
	}

	if err := <-errc; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func deviceChange(ev hotplug.Event) (DeviceChange, bool) {
	if ev.Node == "" {
		return DeviceChange{}, false
	}
	switch ev.Action {
	case hotplug.ActionAdd:
		return DeviceChange{Action: DeviceAdded, DevicePath: ev.Node}, true
	case hotplug.ActionRemove:
		return DeviceChange{Action: DeviceRemoved, DevicePath: ev.Node}, true
	default:
		return DeviceChange{}, false
	}
}
