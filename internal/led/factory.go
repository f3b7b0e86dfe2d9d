package led

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// DefaultModelPath holds the device tree board model.
const DefaultModelPath = "/proc/device-tree/model"

// boards maps a device tree model substring to its status LED.
var boards = []struct {
	model string
	led   string
}{
	{"NanoPC-T6", "sys_led"},
	{"Orange Pi", "green_led"},
	{"Raspberry Pi", "ACT"},
}

// Config selects the status LED. An empty Name means detect it from the
// board model.
type Config struct {
	Root      string
	ModelPath string
	Name      string
}

// New returns a sysfs controller for the board's status LED, or a no-op
// controller when none is known or present.
func New(cfg Config, logger *slog.Logger) Controller {
	if cfg.Root == "" {
		cfg.Root = DefaultRoot
	}
	if cfg.ModelPath == "" {
		cfg.ModelPath = DefaultModelPath
	}

	name := cfg.Name
	if name == "" {
		model := readModel(cfg.ModelPath)
		name = ledForModel(model)
		logger.Info("Detected board", "model", model, "led", name)
	}
	if name == "" {
		return noop{logger: logger}
	}
	if _, err := os.Stat(filepath.Join(cfg.Root, name)); err != nil {
		logger.Warn("Status LED not present", "led", name, "error", err)
		return noop{logger: logger}
	}
	return newSysfs(cfg.Root, name)
}

func readModel(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return "unknown"
	}
	return strings.TrimRight(string(data), "\x00\n")
}

func ledForModel(model string) string {
	for _, b := range boards {
		if strings.Contains(model, b.model) {
			return b.led
		}
	}
	return ""
}
