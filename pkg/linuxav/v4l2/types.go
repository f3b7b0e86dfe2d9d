//go:build linux

package v4l2

// Capability is the decoded VIDIOC_QUERYCAP answer for a device.
type Capability struct {
	Driver  string
	Card    string
	BusInfo string
	// Caps holds the effective capability flags (device_caps when the driver
	// reports them, otherwise the physical device capabilities).
	Caps uint32
}

// IsCapture reports whether the device can deliver video frames.
func (c Capability) IsCapture() bool {
	return c.Caps&v4l2CapVideoCapture != 0
}

// DeviceInfo contains information about a V4L2 capture device.
type DeviceInfo struct {
	DevicePath string
	DeviceName string
	Caps       uint32
}

// FormatInfo contains information about a supported pixel format.
type FormatInfo struct {
	PixelFormat uint32
	FormatName  string
	Emulated    bool
}

// FourCC returns the four character code of the pixel format.
func (f FormatInfo) FourCC() string {
	return FormatFourCC(f.PixelFormat)
}

// Resolution represents a supported video resolution.
type Resolution struct {
	Width  uint32
	Height uint32
}

// Framerate is a frame interval as the driver reports it: seconds per frame.
type Framerate struct {
	Numerator   uint32
	Denominator uint32
}

// FPS returns the framerate as frames per second.
func (f Framerate) FPS() float64 {
	if f.Numerator == 0 {
		return 0
	}
	return float64(f.Denominator) / float64(f.Numerator)
}

// Capability flags.
const (
	v4l2CapVideoCapture = 0x00000001
	v4l2CapDeviceCaps   = 0x80000000
)

// Format flags.
const (
	v4l2FmtFlagEmulated = 0x0002
)

// Common pixel formats.
const (
	v4l2PixFmtYUYV  = 0x56595559 // 'YUYV'
	v4l2PixFmtMJPEG = 0x47504A4D // 'MJPG'
	v4l2PixFmtH264  = 0x34363248 // 'H264'
)

// Frame size types.
const (
	v4l2FrmsizeTypeDiscrete   = 1
	v4l2FrmsizeTypeContinuous = 2
	v4l2FrmsizeTypeStepwise   = 3
)

// Frame interval types.
const (
	v4l2FrmivalTypeDiscrete   = 1
	v4l2FrmivalTypeContinuous = 2
	v4l2FrmivalTypeStepwise   = 3
)

const v4l2BufTypeVideoCapture = 1
