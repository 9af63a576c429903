package master

type State int32

const (
	StateIdle State = iota
	// StateRunning: the background pass has started and nothing has been drained yet.
	StateRunning
	// StateDraining: chunks are being handed to the presentation goroutine.
	StateDraining
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	default:
		return "idle"
	}
}
