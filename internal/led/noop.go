package led

import "log/slog"

// noop stands in on boards without a known status LED.
type noop struct {
	logger *slog.Logger
}

func (n noop) Set(p Pattern) error {
	n.logger.Debug("No status LED", "pattern", p)
	return nil
}
