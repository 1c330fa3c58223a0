package rtsp

// State is the position of a client in the session state machine.
type State int

const (
	StateIdle State = iota
	StateDescribed
	StateSetUp
	StatePlaying
	StatePaused
	StateTornDown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDescribed:
		return "described"
	case StateSetUp:
		return "setup"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateTornDown:
		return "torndown"
	}
	return "unknown"
}

func (s State) in(states ...State) bool {
	for _, state := range states {
		if s == state {
			return true
		}
	}
	return false
}
