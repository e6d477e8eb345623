package jtag

import (
	"testing"

	"github.com/OpenTraceLab/OpenTraceADI/pkg/adiv5"
	"github.com/OpenTraceLab/OpenTraceADI/pkg/tap"
)

// wire drives a framer with full TCK cycles, one falling then one rising
// edge per clock.
type wire struct {
	f      *Framer
	sample uint64
}

func (w *wire) clock(tms, tdi, tdo bool) {
	w.f.Sample(w.sample, false, tms, tdi, tdo)
	w.sample++
	w.f.Sample(w.sample, true, tms, tdi, tdo)
	w.sample++
}

func (w *wire) reset() {
	for i := 0; i < 5; i++ {
		w.clock(true, false, false)
	}
	w.clock(false, false, false) // RunTestIdle
}

// scan shifts a register: SelectDR(-IR), Capture, n shift bits, Update and
// back to RunTestIdle.
func (w *wire) scan(ir bool, tdi, tdo []bool) {
	w.clock(true, false, false)
	if ir {
		w.clock(true, false, false)
	}
	w.clock(false, false, false) // Capture
	w.clock(false, false, false) // enter Shift
	for i := range tdi {
		w.clock(i == len(tdi)-1, tdi[i], tdo[i])
	}
	w.clock(true, false, false) // Exit1 -> Update
	w.clock(false, false, false)
}

func wordBits(value uint64, n int) []bool {
	bits := make([]bool, n)
	for i := range bits {
		bits[i] = value&(1<<i) != 0
	}
	return bits
}

func ones(n int) []bool {
	bits := make([]bool, n)
	for i := range bits {
		bits[i] = true
	}
	return bits
}

func TestFramerTracksTAPState(t *testing.T) {
	f := NewFramer(NewChainDecoder(nil, nil))
	w := &wire{f: f}

	w.reset()
	if got := f.State(); got != tap.StateRunTestIdle {
		t.Fatalf("state after reset walk = %v, want RunTestIdle", got)
	}
	w.clock(true, false, false)
	w.clock(false, false, false)
	w.clock(false, false, false)
	if got := f.State(); got != tap.StateShiftDR {
		t.Fatalf("state = %v, want ShiftDR", got)
	}
}

func TestFramerEndToEnd(t *testing.T) {
	rec := &chainRecorder{}
	dec := NewChainDecoder(nil, rec)
	w := &wire{f: NewFramer(dec)}

	w.reset()

	// ID code scan-out: the DP's code followed by an all-ones chunk.
	var id []bool
	id = append(id, wordBits(0x4ba01477, 32)...)
	id = append(id, ones(32)...)
	w.scan(false, ones(64), id)

	devs := dec.Devices()
	if len(devs) != 1 {
		t.Fatalf("discovered %d devices, want 1", len(devs))
	}
	if devs[0].IDCode != 0x4ba01477 || devs[0].ADI == nil {
		t.Fatalf("device = %+v", devs[0])
	}

	// Load DPACC; the capture value is the mandatory xx01 pattern.
	w.scan(true, wordBits(0xa, 4), wordBits(0b0001, 4))
	if devs[0].Insn != 0xa {
		t.Fatalf("instruction = %#x, want DPACC", devs[0].Insn)
	}

	// Two CTRL/STAT read exchanges; the second resolves the first.
	req := dpaccRequest(true, 0x4, 0)
	w.scan(false, wordBits(req, 35), wordBits(dpaccResponse(2, 0), 35))
	w.scan(false, wordBits(req, 35), wordBits(dpaccResponse(2, 0x40), 35))

	if len(rec.transactions) != 1 {
		t.Fatalf("got %d transactions, want 1", len(rec.transactions))
	}
	got := rec.transactions[0]
	if got.Op != adiv5.OpDPRead || got.Reg != "CTRL/STAT" || got.Ack != adiv5.AckOK || got.Data != 0x40 {
		t.Fatalf("transaction = %v", got)
	}
}

func TestFramerAccumulatesAcrossPause(t *testing.T) {
	rec := &chainRecorder{}
	dec := NewChainDecoder(nil, rec)
	w := &wire{f: NewFramer(dec)}

	w.reset()

	// Scan the ID codes out in two bursts separated by a Pause-DR visit.
	code := wordBits(0x4ba01477, 32)
	w.clock(true, false, false)  // SelectDR
	w.clock(false, false, false) // Capture
	w.clock(false, false, false) // enter Shift
	for i := 0; i < 31; i++ {
		w.clock(false, true, code[i])
	}
	w.clock(true, true, code[31]) // Exit1
	w.clock(false, false, false)  // Pause
	w.clock(true, false, false)   // Exit2
	w.clock(false, false, false)  // back to Shift
	term := ones(32)
	for i := 0; i < 31; i++ {
		w.clock(false, true, term[i])
	}
	w.clock(true, true, term[31]) // Exit1
	w.clock(true, false, false)   // Update
	w.clock(false, false, false)

	if len(dec.Devices()) != 1 {
		t.Fatalf("paused scan discovered %d devices, want 1", len(dec.Devices()))
	}
}

func TestFramerResynchronizesThroughReset(t *testing.T) {
	dec := NewChainDecoder(nil, nil)
	w := &wire{f: NewFramer(dec)}

	w.reset()
	w.clock(true, false, false)  // SelectDR
	w.clock(false, false, false) // Capture
	w.clock(false, false, false) // enter Shift
	for i := 0; i < 10; i++ {
		w.clock(false, true, true)
	}
	// Bail out of the scan with a TMS-high run into reset. The truncated
	// scan still commits through Update on the way, carrying too few bits
	// to mean anything.
	for i := 0; i < 5; i++ {
		w.clock(true, false, false)
	}
	if got := w.f.State(); got != tap.StateTestLogicReset {
		t.Fatalf("state = %v, want TestLogicReset", got)
	}

	// A clean scan afterwards discovers the chain with no leftover bits.
	w.clock(false, false, false)
	var id []bool
	id = append(id, wordBits(0x4ba01477, 32)...)
	id = append(id, ones(32)...)
	w.scan(false, ones(64), id)
	if len(dec.Devices()) != 1 {
		t.Fatalf("discovered %d devices after abandoned scan, want 1", len(dec.Devices()))
	}
}
