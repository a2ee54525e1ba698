package session

import "testing"

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		event    Event
		expected State
	}{
		{"active stays active on activity", StateActive, EventActivity, StateActive},
		{"active warns on idle warning", StateActive, EventIdleWarning, StateIdleWarned},
		{"active ignores auto pause", StateActive, EventAutoPause, StateActive},
		{"warned pauses on grace expiry", StateIdleWarned, EventAutoPause, StateAutoPaused},
		{"warned returns to active on activity", StateIdleWarned, EventActivity, StateActive},
		{"warned ignores repeat warning", StateIdleWarned, EventIdleWarning, StateIdleWarned},
		{"paused returns to active on activity", StateAutoPaused, EventActivity, StateActive},
		{"paused cannot be warned", StateAutoPaused, EventIdleWarning, StateAutoPaused},
		{"paused cannot pause again", StateAutoPaused, EventAutoPause, StateAutoPaused},
		{"active ends on explicit end", StateActive, EventEnd, StateEnded},
		{"warned ends on inactivity timeout", StateIdleWarned, EventInactivityTimeout, StateEnded},
		{"paused ends on max duration", StateAutoPaused, EventMaxDuration, StateEnded},
		{"ended is terminal for activity", StateEnded, EventActivity, StateEnded},
		{"ended is terminal for end", StateEnded, EventEnd, StateEnded},
		{"ended is terminal for warning", StateEnded, EventIdleWarning, StateEnded},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Transition(tc.state, tc.event); got != tc.expected {
				t.Errorf("Transition(%v, %v) = %v, expected %v", tc.state, tc.event, got, tc.expected)
			}
		})
	}
}

func TestAutoPauseNeverSkipsWarning(t *testing.T) {
	// EventAutoPause applied directly to Active must not reach AutoPaused.
	if got := Transition(StateActive, EventAutoPause); got == StateAutoPaused {
		t.Error("Active transitioned straight to AutoPaused without IdleWarned")
	}
}

func TestStateStrings(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateActive, "active"},
		{StateIdleWarned, "idle_warned"},
		{StateAutoPaused, "auto_paused"},
		{StateEnded, "ended"},
	}

	for _, tc := range tests {
		if got := tc.state.String(); got != tc.expected {
			t.Errorf("State(%d).String() = %q, expected %q", tc.state, got, tc.expected)
		}
	}
}
