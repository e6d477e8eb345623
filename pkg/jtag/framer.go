package jtag

import (
	"github.com/OpenTraceLab/OpenTraceADI/pkg/tap"
)

// Framer turns raw 4-wire JTAG samples into the events the chain decoder
// consumes: TAP state transitions and complete IR/DR bitstrings with per-bit
// sample positions.
//
// Bits accumulate across Pause-DR/IR excursions and are delivered when the
// scan commits in Update-DR/IR, the only exit from the shift column.
type Framer struct {
	chain   *ChainDecoder
	tracker *tap.Tracker

	prevTCK   bool
	announced bool
	tdi       BitString
	tdo       BitString
}

// NewFramer creates a framer feeding the given chain decoder.
func NewFramer(chain *ChainDecoder) *Framer {
	return &Framer{chain: chain, tracker: tap.NewTracker()}
}

// State reports the TAP controller state after the last sample.
func (f *Framer) State() tap.State {
	return f.tracker.State()
}

// Chain returns the chain decoder the framer feeds.
func (f *Framer) Chain() *ChainDecoder {
	return f.chain
}

// Sample consumes one capture sample of the four JTAG wires. Only rising TCK
// edges advance the TAP controller; TDI and TDO are captured on the rising
// edges spent in a shift state, which includes the final edge that leaves it.
func (f *Framer) Sample(sample uint64, tck, tms, tdi, tdo bool) {
	rising := tck && !f.prevTCK
	f.prevTCK = tck
	if !rising {
		return
	}

	// The tracker assumes Test-Logic-Reset at the start of the capture, and
	// a TMS-high run that merely stays there produces no transition. Report
	// the assumed state once so the chain decoder arms discovery.
	if !f.announced {
		f.announced = true
		f.chain.StateChange(sample, f.tracker.State())
	}

	prev := f.tracker.State()
	if prev.IsShift() {
		f.tdi.Append(tdi, sample)
		f.tdo.Append(tdo, sample)
	}

	next := f.tracker.Clock(tms)
	if next == prev {
		return
	}
	f.chain.StateChange(sample, next)

	switch next {
	case tap.StateUpdateDR:
		f.flush(RegDR)
	case tap.StateUpdateIR:
		f.flush(RegIR)
	}
}

func (f *Framer) flush(reg ScanRegister) {
	if f.tdi.Len() == 0 {
		return
	}
	f.chain.Data(reg, LineTDI, f.tdi)
	f.chain.Data(reg, LineTDO, f.tdo)
	f.tdi.Reset()
	f.tdo.Reset()
}
