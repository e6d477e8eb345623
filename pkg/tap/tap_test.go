package tap

import "testing"

func TestNextStateTable(t *testing.T) {
	type transition struct {
		start State
		tms   bool
		end   State
	}

	cases := []transition{
		{StateTestLogicReset, false, StateRunTestIdle},
		{StateTestLogicReset, true, StateTestLogicReset},
		{StateRunTestIdle, true, StateSelectDRScan},
		{StateSelectDRScan, false, StateCaptureDR},
		{StateShiftDR, true, StateExit1DR},
		{StateExit2DR, false, StateShiftDR},
		{StateSelectIRScan, true, StateTestLogicReset},
		{StateCaptureIR, false, StateShiftIR},
		{StatePauseIR, true, StateExit2IR},
		{StateExit2IR, true, StateUpdateIR},
	}

	for _, tc := range cases {
		got := NextState(tc.start, tc.tms)
		if got != tc.end {
			t.Fatalf("NextState(%s, %v) = %s, want %s", tc.start, tc.tms, got, tc.end)
		}
	}
}

func TestTrackerResynchronizes(t *testing.T) {
	tr := NewTracker()
	// Walk into the middle of a DR scan, then apply the five TMS=1 cycles
	// every controller honours as a reset.
	for _, tms := range []bool{false, true, false, false} {
		tr.Clock(tms)
	}
	if tr.State() != StateShiftDR {
		t.Fatalf("State() = %s, want %s", tr.State(), StateShiftDR)
	}
	for i := 0; i < 5; i++ {
		tr.Clock(true)
	}
	if tr.State() != StateTestLogicReset {
		t.Fatalf("State after 5x TMS=1 = %s, want %s", tr.State(), StateTestLogicReset)
	}
}

func TestStatePredicates(t *testing.T) {
	if !StateShiftDR.IsShift() || !StateShiftIR.IsShift() {
		t.Fatalf("shift states must report IsShift")
	}
	if StateCaptureDR.IsShift() {
		t.Fatalf("CaptureDR must not report IsShift")
	}
	if !StateShiftIR.IsIR() || StateShiftDR.IsIR() {
		t.Fatalf("IsIR misclassifies shift states")
	}
	if StateTestLogicReset.IsIR() {
		t.Fatalf("TestLogicReset is not an IR-column state")
	}
}
