package led

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultRoot is where the kernel exposes LED class devices.
const DefaultRoot = "/sys/class/leds"

// sysfs drives an LED class device through its trigger and brightness files.
type sysfs struct {
	dir string
}

func newSysfs(root, name string) *sysfs {
	return &sysfs{dir: filepath.Join(root, name)}
}

func (s *sysfs) write(file, value string) error {
	if err := os.WriteFile(filepath.Join(s.dir, file), []byte(value), 0o644); err != nil {
		return fmt.Errorf("led %s: %w", file, err)
	}
	return nil
}

// Set implements Controller. Solid and off take manual control; blink and
// heartbeat hand the LED to a kernel trigger.
func (s *sysfs) Set(p Pattern) error {
	switch p {
	case PatternOff:
		if err := s.write("trigger", "none"); err != nil {
			return err
		}
		return s.write("brightness", "0")
	case PatternSolid:
		if err := s.write("trigger", "none"); err != nil {
			return err
		}
		return s.write("brightness", "1")
	case PatternBlink:
		return s.write("trigger", "timer")
	case PatternHeartbeat:
		return s.write("trigger", "heartbeat")
	default:
		return fmt.Errorf("unknown LED pattern %q", p)
	}
}
