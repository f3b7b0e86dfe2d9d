//go:build linux

package video

import (
	"github.com/smazurov/camstream/pkg/linuxav/v4l2"
)

// ProbeDevice queries a V4L2 node for its formats, sizes and frame intervals.
func ProbeDevice(path string) ([]Format, error) {
	c, err := v4l2.QueryCapability(path)
	if err != nil {
		return nil, err
	}
	if !c.IsCapture() {
		return nil, ErrNotCaptureDevice
	}

	infos, err := v4l2.GetFormats(path)
	if err != nil {
		return nil, err
	}

	formats := make([]Format, 0, len(infos))
	for _, info := range infos {
		resolutions, err := v4l2.GetResolutions(path, info.PixelFormat)
		if err != nil {
			return nil, err
		}
		f := Format{Encode: EncodeFromFourCC(info.FourCC())}
		for _, res := range resolutions {
			size := Size{Width: res.Width, Height: res.Height}
			rates, err := v4l2.GetFramerates(path, info.PixelFormat, res.Width, res.Height)
			if err == nil {
				for _, rate := range rates {
					size.Intervals = append(size.Intervals, FrameInterval{
						Numerator:   rate.Numerator,
						Denominator: rate.Denominator,
					})
				}
			}
			f.Sizes = append(f.Sizes, size)
		}
		formats = append(formats, f)
	}
	return formats, nil
}

// ListDevices returns the capture devices present on the host with their
// capability sets. A device that fails probing is listed without formats.
func ListDevices() ([]*Local, error) {
	infos, err := v4l2.FindDevices()
	if err != nil {
		return nil, err
	}
	devices := make([]*Local, 0, len(infos))
	for _, info := range infos {
		local := &Local{Name: info.DeviceName, DevicePath: info.DevicePath}
		if formats, err := ProbeDevice(info.DevicePath); err == nil {
			local.Capabilities = formats
		}
		devices = append(devices, local)
	}
	return devices, nil
}
