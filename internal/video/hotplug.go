package video

// DeviceChange is a capture node appearing or disappearing.
type DeviceChange struct {
	Action     string
	DevicePath string
}

// Device change actions.
const (
	DeviceAdded   = "added"
	DeviceRemoved = "removed"
)
