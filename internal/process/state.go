package process

// State is the observable phase of a supervised process.
type State string

// Process states.
const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateExited  State = "exited"
)

// State reports the current phase.
func (p *Process) State() State {
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()
	if !started {
		return StateIdle
	}
	select {
	case <-p.done:
		return StateExited
	default:
		return StateRunning
	}
}
