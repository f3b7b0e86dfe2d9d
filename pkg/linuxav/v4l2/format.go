//go:build linux

package v4l2

import (
	"errors"
	"fmt"
	"syscall"
	"unsafe"
)

// GetFormats returns all capture pixel formats for a device.
func GetFormats(devicePath string) ([]FormatInfo, error) {
	fd, err := open(devicePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open device: %w", err)
	}
	defer closeFd(fd)

	var formats []FormatInfo
	for i := uint32(0); ; i++ {
		desc := v4l2Fmtdesc{index: i, typ: v4l2BufTypeVideoCapture}
		if err := ioctl(fd, vidiocEnumFmt, unsafe.Pointer(&desc)); err != nil {
			if errors.Is(err, syscall.EINVAL) {
				break
			}
			return nil, fmt.Errorf("failed to enumerate format %d: %w", i, err)
		}
		formats = append(formats, FormatInfo{
			PixelFormat: desc.pixelformat,
			FormatName:  cstr(desc.description[:]),
			Emulated:    desc.flags&v4l2FmtFlagEmulated != 0,
		})
	}
	return formats, nil
}

// GetResolutions returns the frame sizes a device offers for a pixel format.
// Stepwise and continuous ranges are reduced to the common sizes they contain.
func GetResolutions(devicePath string, pixelFormat uint32) ([]Resolution, error) {
	fd, err := open(devicePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open device: %w", err)
	}
	defer closeFd(fd)

	var resolutions []Resolution
	for i := uint32(0); ; i++ {
		frmsize := v4l2Frmsizeenum{index: i, pixelFormat: pixelFormat}
		if err := ioctl(fd, vidiocEnumFramesizes, unsafe.Pointer(&frmsize)); err != nil {
			if errors.Is(err, syscall.EINVAL) {
				break
			}
			if errors.Is(err, syscall.ENOTTY) {
				return []Resolution{}, nil
			}
			return nil, fmt.Errorf("failed to enumerate frame size %d: %w", i, err)
		}

		switch frmsize.typ {
		case v4l2FrmsizeTypeDiscrete:
			d := frmsize.discrete()
			resolutions = append(resolutions, Resolution{Width: d.width, Height: d.height})
		case v4l2FrmsizeTypeContinuous, v4l2FrmsizeTypeStepwise:
			return append(resolutions, stepwiseResolutions(frmsize.stepwise())...), nil
		}
	}
	return resolutions, nil
}

// GetFramerates returns the frame intervals for a format and size.
func GetFramerates(devicePath string, pixelFormat uint32, width, height uint32) ([]Framerate, error) {
	fd, err := open(devicePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open device: %w", err)
	}
	defer closeFd(fd)

	var framerates []Framerate
	for i := uint32(0); ; i++ {
		frmival := v4l2Frmivalenum{index: i, pixelFormat: pixelFormat, width: width, height: height}
		if err := ioctl(fd, vidiocEnumFrameintervals, unsafe.Pointer(&frmival)); err != nil {
			if errors.Is(err, syscall.EINVAL) {
				break
			}
			if errors.Is(err, syscall.ENOTTY) {
				return []Framerate{}, nil
			}
			return nil, fmt.Errorf("failed to enumerate frame interval %d: %w", i, err)
		}

		switch frmival.typ {
		case v4l2FrmivalTypeDiscrete:
			d := frmival.discrete()
			framerates = append(framerates, Framerate{Numerator: d.numerator, Denominator: d.denominator})
		case v4l2FrmivalTypeContinuous, v4l2FrmivalTypeStepwise:
			return append(framerates, commonFramerates()...), nil
		}
	}
	return framerates, nil
}

var commonResolutions = []Resolution{
	{320, 240},
	{640, 480},
	{800, 600},
	{1024, 768},
	{1280, 720},
	{1280, 1024},
	{1920, 1080},
	{2560, 1440},
	{3840, 2160},
}

func stepwiseResolutions(s *v4l2FrmsizeStepwise) []Resolution {
	var out []Resolution
	for _, r := range commonResolutions {
		if r.Width >= s.minWidth && r.Width <= s.maxWidth &&
			r.Height >= s.minHeight && r.Height <= s.maxHeight {
			out = append(out, r)
		}
	}
	return out
}

func commonFramerates() []Framerate {
	return []Framerate{{1, 60}, {1, 30}, {1, 25}, {1, 15}, {1, 10}, {1, 5}}
}

// FormatFourCC converts a 4-byte pixel format to a human-readable string.
func FormatFourCC(format uint32) string {
	return string([]byte{
		byte(format),
		byte(format >> 8),
		byte(format >> 16),
		byte(format >> 24),
	})
}
