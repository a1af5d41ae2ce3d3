package runner

// RunState classifies the workers of a flywheel.
type RunState int

const (
	// StateRunning counts workers that accept new operations.
	StateRunning RunState = iota
	// StateStopping counts workers asked to exit that are finishing an operation.
	StateStopping
	// StateStopped counts workers that have exited.
	StateStopped

	stateCount
)

func (s RunState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
