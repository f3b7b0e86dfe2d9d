//go:build linux

// Package hotplug reads kernel device uevents from a netlink socket.
//
// Only the kernel broadcast group is joined, so no udev daemon is required
// and libudev-tagged messages are never seen.
package hotplug

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"slices"

	"golang.org/x/sys/unix"
)

// Actions reported for video nodes.
const (
	ActionAdd    = "add"
	ActionRemove = "remove"
	ActionChange = "change"
)

// SubsystemVideo4Linux is the subsystem of /dev/video* nodes.
const SubsystemVideo4Linux = "video4linux"

const (
	kernelGroup = 1
	recvBuffer  = 8192
	// pollInterval bounds how long Run takes to notice cancellation.
	pollInterval = 500
)

// Event is one kernel uevent.
type Event struct {
	Action    string
	KObj      string
	Subsystem string
	// Node is the /dev path, empty for events without DEVNAME.
	Node string
	Env  map[string]string
}

// Monitor delivers uevents for a fixed set of subsystems.
type Monitor struct {
	fd         int
	subsystems []string
}

// NewMonitor opens the uevent socket. With no subsystems every event passes.
func NewMonitor(subsystems ...string) (*Monitor, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, unix.NETLINK_KOBJECT_UEVENT)
	if err != nil {
		return nil, fmt.Errorf("open uevent socket: %w", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: kernelGroup}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind uevent socket: %w", err)
	}
	return &Monitor{fd: fd, subsystems: subsystems}, nil
}

// Close releases the socket. Call it after Run returns.
func (m *Monitor) Close() error {
	return unix.Close(m.fd)
}

func (m *Monitor) accepts(ev Event) bool {
	return len(m.subsystems) == 0 || slices.Contains(m.subsystems, ev.Subsystem)
}

// Run sends matching events to out until ctx ends, then closes out.
func (m *Monitor) Run(ctx context.Context, out chan<- Event) error {
	defer close(out)

	buf := make([]byte, recvBuffer)
	fds := []unix.PollFd{{Fd: int32(m.fd), Events: unix.POLLIN}}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := unix.Poll(fds, pollInterval)
		if errors.Is(err, unix.EINTR) || n == 0 {
			continue
		}
		if err != nil {
			return fmt.Errorf("poll uevent socket: %w", err)
		}

		size, _, err := unix.Recvfrom(m.fd, buf, 0)
		if errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN) {
			continue
		}
		if err != nil {
			return fmt.Errorf("read uevent: %w", err)
		}

		ev, ok := ParseUEvent(buf[:size])
		if !ok || !m.accepts(ev) {
			continue
		}

		select {
		case out <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// ParseUEvent decodes "ACTION@KOBJ\0KEY=VALUE\0...". It reports false for
// anything without an action.
func ParseUEvent(data []byte) (Event, bool) {
	fields := bytes.Split(data, []byte{0})

	action, kobj, found := bytes.Cut(fields[0], []byte("@"))
	if !found || len(action) == 0 {
		return Event{}, false
	}

	ev := Event{
		Action: string(action),
		KObj:   string(kobj),
		Env:    make(map[string]string, len(fields)-1),
	}
	for _, field := range fields[1:] {
		key, value, ok := bytes.Cut(field, []byte("="))
		if !ok || len(key) == 0 {
			continue
		}
		ev.Env[string(key)] = string(value)
	}

	ev.Subsystem = ev.Env["SUBSYSTEM"]
	if name := ev.Env["DEVNAME"]; name != "" {
		if path.IsAbs(name) {
			ev.Node = name
		} else {
			ev.Node = "/dev/" + name
		}
	}
	return ev, true
}
