package session

// State is the lifecycle state of a tracked study session.
type State int

const (
	StateActive State = iota
	StateIdleWarned
	StateAutoPaused
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateIdleWarned:
		return "idle_warned"
	case StateAutoPaused:
		return "auto_paused"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Event is an input that can move a session between states.
type Event int

const (
	// EventActivity is any recorded user interaction.
	EventActivity Event = iota
	// EventIdleWarning fires after IdleWarningTime without interaction.
	EventIdleWarning
	// EventAutoPause fires after the grace window following the idle warning.
	EventAutoPause
	// EventInactivityTimeout fires after InactivityTimeout of total inactivity.
	EventInactivityTimeout
	// EventMaxDuration fires when accrued time reaches MaxSessionDuration.
	EventMaxDuration
	// EventEnd is an explicit end requested by the user.
	EventEnd
)

func (e Event) String() string {
	switch e {
	case EventActivity:
		return "activity"
	case EventIdleWarning:
		return "idle_warning"
	case EventAutoPause:
		return "auto_pause"
	case EventInactivityTimeout:
		return "inactivity_timeout"
	case EventMaxDuration:
		return "max_duration"
	case EventEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Transition is the pure state-transition function for the idle monitor.
// Ended is terminal. Activity from IdleWarned or AutoPaused returns the
// session to Active; the idle warning can never be skipped because
// EventAutoPause only applies to IdleWarned.
func Transition(state State, event Event) State {
	if state == StateEnded {
		return StateEnded
	}

	switch event {
	case EventActivity:
		return StateActive
	case EventIdleWarning:
		if state == StateActive {
			return StateIdleWarned
		}
	case EventAutoPause:
		if state == StateIdleWarned {
			return StateAutoPaused
		}
	case EventInactivityTimeout, EventMaxDuration, EventEnd:
		return StateEnded
	}

	return state
}
