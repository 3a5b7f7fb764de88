package turn

import "testing"

func TestLifecycle_InitialState(t *testing.T) {
	lc := NewLifecycle("turn-1")

	if lc.State() != StateListening {
		t.Errorf("expected StateListening, got %v", lc.State())
	}
	if lc.TurnID() != "turn-1" {
		t.Errorf("expected turn-1, got %v", lc.TurnID())
	}
	if lc.IsEnded() {
		t.Error("expected IsEnded to be false")
	}
	if lc.Reason() != ReasonNone {
		t.Errorf("expected no reason, got %q", lc.Reason())
	}
}

func TestLifecycle_PartialsWhileListening(t *testing.T) {
	lc := NewLifecycle("turn-1")

	for i := 0; i < 5; i++ {
		if err := lc.ObservePartial(); err != nil {
			t.Errorf("partial %d: unexpected error: %v", i, err)
		}
	}
	if lc.State() != StateListening {
		t.Errorf("expected StateListening after partials, got %v", lc.State())
	}
}

func TestLifecycle_FinalOnlyOnce(t *testing.T) {
	lc := NewLifecycle("turn-1")

	if err := lc.ObserveFinal(); err != nil {
		t.Errorf("first final: unexpected error: %v", err)
	}
	if lc.State() != StateFinalReceived {
		t.Errorf("expected StateFinalReceived, got %v", lc.State())
	}
	if err := lc.ObserveFinal(); err != ErrFinalAlreadyReceived {
		t.Errorf("second final: expected ErrFinalAlreadyReceived, got %v", err)
	}
	if err := lc.ObservePartial(); err != ErrPartialAfterFinal {
		t.Errorf("expected ErrPartialAfterFinal, got %v", err)
	}
}

func TestLifecycle_End(t *testing.T) {
	lc := NewLifecycle("turn-1")
	lc.ObserveFinal()

	if !lc.End(ReasonFinalResult) {
		t.Fatal("expected End to transition")
	}
	if lc.State() != StateEnded {
		t.Errorf("expected StateEnded, got %v", lc.State())
	}
	if lc.Reason() != ReasonFinalResult {
		t.Errorf("expected reason final_result, got %q", lc.Reason())
	}
	if lc.End(ReasonUserStop) {
		t.Error("expected second End to return false")
	}
	if lc.Reason() != ReasonFinalResult {
		t.Errorf("reason must not change after end, got %q", lc.Reason())
	}
}

func TestLifecycle_OperationsFailAfterEnd(t *testing.T) {
	lc := NewLifecycle("turn-1")
	lc.End(ReasonUserStop)

	if err := lc.ObservePartial(); err != ErrTurnEnded {
		t.Errorf("ObservePartial: expected ErrTurnEnded, got %v", err)
	}
	if err := lc.ObserveFinal(); err != ErrTurnEnded {
		t.Errorf("ObserveFinal: expected ErrTurnEnded, got %v", err)
	}
}

func TestLifecycle_FailMidTurn(t *testing.T) {
	lc := NewLifecycle("turn-1")
	for i := 0; i < 3; i++ {
		lc.ObservePartial()
	}

	if !lc.Fail() {
		t.Fatal("expected Fail to transition mid-turn")
	}
	if lc.State() != StateFailed {
		t.Errorf("expected StateFailed, got %v", lc.State())
	}
	if lc.Reason() != ReasonError {
		t.Errorf("expected reason error, got %q", lc.Reason())
	}
	if lc.Fail() {
		t.Error("expected second Fail to return false")
	}
	if lc.End(ReasonUserStop) {
		t.Error("expected End after Fail to return false")
	}
}

func TestLifecycle_Reset(t *testing.T) {
	lc := NewLifecycle("turn-1")
	lc.ObserveFinal()
	lc.End(ReasonFinalResult)

	lc.Reset("turn-2")

	if lc.TurnID() != "turn-2" {
		t.Errorf("expected turn-2, got %v", lc.TurnID())
	}
	if lc.State() != StateListening {
		t.Errorf("expected StateListening after reset, got %v", lc.State())
	}
	if lc.Reason() != ReasonNone {
		t.Errorf("expected reason cleared, got %q", lc.Reason())
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateListening, "LISTENING"},
		{StateFinalReceived, "FINAL_RECEIVED"},
		{StateEnded, "ENDED"},
		{StateFailed, "FAILED"},
		{State(99), "UNKNOWN(99)"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.expected {
			t.Errorf("State(%d).String() = %v, want %v", tt.state, got, tt.expected)
		}
	}
}

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		state      State
		isTerminal bool
	}{
		{StateListening, false},
		{StateFinalReceived, false},
		{StateEnded, true},
		{StateFailed, true},
	}

	for _, tt := range tests {
		if got := tt.state.IsTerminal(); got != tt.isTerminal {
			t.Errorf("State(%s).IsTerminal() = %v, want %v", tt.state, got, tt.isTerminal)
		}
	}
}
