// Package led shows stream health on a board status LED.
package led

// Pattern is what the status LED displays.
type Pattern string

// Patterns understood by every Controller.
const (
	PatternOff       Pattern = "off"
	PatternSolid     Pattern = "solid"
	PatternBlink     Pattern = "blink"
	PatternHeartbeat Pattern = "heartbeat"
)

// Controller drives one status LED.
type Controller interface {
	Set(p Pattern) error
}
