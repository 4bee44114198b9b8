package models

// TransferState is the lifecycle position of a single transfer call.
type TransferState int

const (
	StateIdle TransferState = iota
	StateConnecting
	StateAuthenticating
	StateTransferring
	StateSucceeded
	StateFailed
	StateClosed
)

var transferStateNames = map[TransferState]string{
	StateIdle:           "Idle",
	StateConnecting:     "Connecting",
	StateAuthenticating: "Authenticating",
	StateTransferring:   "Transferring",
	StateSucceeded:      "Succeeded",
	StateFailed:         "Failed",
	StateClosed:         "Closed",
}

func (s TransferState) String() string {
	if name, ok := transferStateNames[s]; ok {
		return name
	}
	return "Unknown"
}

// transitions lists the forward edges of the state machine. Closed is
// reachable from every non-terminal state and has no outgoing edges.
var transitions = map[TransferState][]TransferState{
	StateIdle:           {StateConnecting},
	StateConnecting:     {StateAuthenticating},
	StateAuthenticating: {StateTransferring},
	StateTransferring:   {StateSucceeded, StateFailed},
}

// CanTransition reports whether moving from s to next is allowed.
func (s TransferState) CanTransition(next TransferState) bool {
	if s == StateClosed {
		return false
	}
	if next == StateClosed {
		return true
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal is true only for Closed.
func (s TransferState) IsTerminal() bool {
	return s == StateClosed
}
