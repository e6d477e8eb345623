package jtag

import (
	"fmt"

	"github.com/OpenTraceLab/OpenTraceADI/pkg/adiv5"
	"github.com/OpenTraceLab/OpenTraceADI/pkg/annot"
	"github.com/OpenTraceLab/OpenTraceADI/pkg/idcode"
	"github.com/OpenTraceLab/OpenTraceADI/pkg/tap"
)

// ScanRegister says which shift register a data event was captured from.
type ScanRegister uint8

const (
	RegDR ScanRegister = iota
	RegIR
)

// ScanLine says which pin a data event was captured on. The TDI event of a
// scan always arrives before its TDO event.
type ScanLine uint8

const (
	LineTDI ScanLine = iota
	LineTDO
)

type chainState uint8

const (
	chainInactive chainState = iota
	chainAwaitingReset
	chainAwaitingIDCodes
	chainCountingDevices
	chainAwaitingIR
	chainIdle
	chainAwaitingDR
	chainInError
)

// idCodeChunkBudget caps how many 32-bit ID code chunks one scan-out may
// yield before discovery gives up.
const idCodeChunkBudget = 32

// ChainDecoder reconstructs the scan-chain topology from captured JTAG
// traffic and splits steady-state IR and DR exchanges into per-device slices.
//
// It is driven by two kinds of event in sample order: TAP controller state
// transitions and shifted bitstrings. TEST-LOGIC-RESET clears everything and
// re-arms topology discovery; it is also the only way out of the error state.
type ChainDecoder struct {
	state   chainState
	devices []*Device
	nextDP  int

	// One scan's TDI bits, held until the matching TDO event arrives.
	buf      BitString
	bufReg   ScanRegister
	bufValid bool

	emit annot.Emitter
	sink adiv5.Sink
}

// NewChainDecoder creates a chain decoder emitting annotations and ADIv5
// transactions to the given consumers. Either may be nil to discard.
func NewChainDecoder(emit annot.Emitter, sink adiv5.Sink) *ChainDecoder {
	if emit == nil {
		emit = annot.Discard
	}
	if sink == nil {
		sink = adiv5.SinkFunc(func(uint64, uint64, adiv5.Transaction) {})
	}
	return &ChainDecoder{state: chainInactive, emit: emit, sink: sink}
}

// Devices returns the devices discovered since the last TEST-LOGIC-RESET in
// chain order.
func (d *ChainDecoder) Devices() []*Device { return d.devices }

// StateChange consumes a TAP controller transition. Only TEST-LOGIC-RESET is
// significant: it drops all known devices and awaits a fresh ID code
// scan-out.
func (d *ChainDecoder) StateChange(sample uint64, state tap.State) {
	if state != tap.StateTestLogicReset {
		return
	}
	d.devices = nil
	d.nextDP = 0
	d.bufValid = false
	d.state = chainAwaitingIDCodes
	d.emit.Annotate(annot.Annotation{
		Begin: sample, End: sample, Class: annot.ClassNote,
		Texts: []string{"TEST-LOGIC-RESET", "TLR"},
	})
}

// Data consumes one shifted bitstring. Each scan produces two events, TDI
// first, TDO second, covering the same clock cycles.
func (d *ChainDecoder) Data(reg ScanRegister, line ScanLine, bits BitString) {
	if bits.Len() == 0 {
		return
	}

	switch d.state {
	case chainInactive:
		// Traffic before the first reset: the chain contents are unknowable
		// until a TEST-LOGIC-RESET arrives.
		d.emit.Annotate(annot.Annotation{
			Begin: bits.Begin(), End: bits.End(), Class: annot.ClassNote,
			Texts: []string{"Scan before TEST-LOGIC-RESET ignored"},
		})
		d.state = chainAwaitingReset

	case chainAwaitingReset, chainInError:
		// Nothing to do until a reset resynchronizes us.

	case chainAwaitingIDCodes:
		if reg == RegDR && line == LineTDO {
			d.discoverDevices(bits)
		} else if reg == RegIR && line == LineTDO {
			// An IR scan destroys the ID codes captured by the reset.
			d.emit.Annotate(annot.Annotation{
				Begin: bits.Begin(), End: bits.End(), Class: annot.ClassNote,
				Texts: []string{"IR scan before ID code scan-out"},
			})
			d.state = chainAwaitingReset
		}

	case chainAwaitingIR:
		if reg == RegIR && line == LineTDI {
			d.bufferTDI(reg, bits)
		} else if reg == RegIR && line == LineTDO {
			d.discoverIRLengths(bits)
		}
		// DR scans are undecodable until IR lengths are known.

	case chainIdle:
		switch {
		case line == LineTDI:
			d.bufferTDI(reg, bits)
			if reg == RegDR {
				d.state = chainAwaitingDR
			}
		case reg == RegIR:
			d.steadyIR(bits)
		default:
			d.protocolError(bits, "DR scan-out without scan-in")
		}

	case chainAwaitingDR:
		switch {
		case reg == RegDR && line == LineTDO:
			d.state = chainIdle
			d.steadyDR(bits)
		case line == LineTDI:
			// The previous scan-in never completed; start over with this one.
			d.bufferTDI(reg, bits)
			if reg == RegIR {
				d.state = chainIdle
			}
		default:
			d.protocolError(bits, "IR scan-out while a DR scan was pending")
		}
	}
}

func (d *ChainDecoder) bufferTDI(reg ScanRegister, bits BitString) {
	d.bufReg = reg
	d.buf.Reset()
	d.buf.Bits = append(d.buf.Bits, bits.Bits...)
	d.buf.Pos = append(d.buf.Pos, bits.Pos...)
	d.bufValid = true
}

func (d *ChainDecoder) takeTDI(reg ScanRegister, length int) (BitString, bool) {
	if !d.bufValid || d.bufReg != reg || d.buf.Len() != length {
		return BitString{}, false
	}
	d.bufValid = false
	return d.buf, true
}

func (d *ChainDecoder) protocolError(bits BitString, msg string) {
	d.emit.Annotate(annot.Annotation{
		Begin: bits.Begin(), End: bits.End(), Class: annot.ClassError,
		Texts: []string{msg},
	})
	d.bufValid = false
	d.state = chainInError
}

// discoverDevices splits the first DR scan-out after a reset into 32-bit ID
// code chunks, one device each. An all-ones chunk is a device in BYPASS and
// terminates the scan.
func (d *ChainDecoder) discoverDevices(bits BitString) {
	d.state = chainCountingDevices

	for i := 0; i < idCodeChunkBudget; i++ {
		offset := i * 32
		if offset+32 > bits.Len() || bits.AllOnes(offset, 32) {
			break
		}
		raw := bits.Uint32(offset)
		desc := idcode.Identify(raw)
		dev := &Device{
			Index:     i,
			IDCode:    raw,
			Desc:      desc,
			DRPrescan: i,
			Quirk:     desc.Quirk,
		}
		if idcode.IsADIv5DP(raw) {
			dev.ADI = adiv5.NewTAPDecoder(i, d.nextDP, idcode.ADIv5DPVersion(raw), d.emit, d.sink)
			d.nextDP++
		}
		d.devices = append(d.devices, dev)

		chunk := bits.Slice(offset, 32)
		d.emit.Annotate(annot.Annotation{
			Begin: chunk.Begin(), End: chunk.End(), Class: annot.ClassItem,
			Texts: []string{
				fmt.Sprintf("TAP %d: IDCODE %08x %s %s", i, raw, desc.Mfr, desc.Description),
				fmt.Sprintf("TAP %d: %08x", i, raw),
			},
		})
	}

	if len(d.devices) == 0 {
		d.emit.Annotate(annot.Annotation{
			Begin: bits.Begin(), End: bits.End(), Class: annot.ClassNote,
			Texts: []string{"No ID codes in scan-out"},
		})
		d.state = chainAwaitingReset
		return
	}
	for _, dev := range d.devices {
		dev.DRPostscan = len(d.devices) - dev.Index - 1
	}
	d.state = chainAwaitingIR
}

// discoverIRLengths works out each device's IR length from the first IR
// scan-out after discovery. Devices with a quirk are validated against its
// fixed capture pattern; everything else follows the IEEE 1149.1 convention
// that the capture value is xx..x01, so the next 1 bit past a device's two
// mandatory bits starts the next device.
func (d *ChainDecoder) discoverIRLengths(tdo BitString) {
	n := tdo.Len()
	offset := 0

	for i, dev := range d.devices {
		dev.IRPrescan = offset

		if q := dev.Quirk; q != nil {
			if offset+q.Length > n {
				d.protocolError(tdo, fmt.Sprintf("TAP %d: IR scan-out too short", i))
				return
			}
			if uint32(tdo.Word(offset, q.Length)) != q.Value {
				d.protocolError(tdo, fmt.Sprintf("TAP %d: IR capture %0*b does not match expected %0*b",
					i, q.Length, tdo.Word(offset, q.Length), q.Length, q.Value))
				return
			}
			dev.IRLength = q.Length
		} else {
			if offset+2 > n {
				d.protocolError(tdo, fmt.Sprintf("TAP %d: IR scan-out too short", i))
				return
			}
			if !tdo.Bits[offset] {
				d.emit.Annotate(annot.Annotation{
					Begin: tdo.Pos[offset], End: tdo.Pos[offset], Class: annot.ClassNote,
					Texts: []string{fmt.Sprintf("TAP %d: IR capture bit 0 is not 1", i)},
				})
			}
			if i == len(d.devices)-1 {
				dev.IRLength = n - offset
			} else {
				length := 2
				for offset+length < n && !tdo.Bits[offset+length] {
					length++
				}
				dev.IRLength = length
			}
		}

		window := tdo.Slice(offset, dev.IRLength)
		d.emit.Annotate(annot.Annotation{
			Begin: window.Begin(), End: window.End(), Class: annot.ClassField,
			Texts: []string{fmt.Sprintf("TAP %d: IR[%d]", i, dev.IRLength)},
		})
		offset += dev.IRLength
	}

	for _, dev := range d.devices {
		dev.IRPostscan = offset - dev.IRPrescan - dev.IRLength
	}

	// The scan-in that paired with this scan-out carries the instructions
	// the host loaded.
	if tdi, ok := d.takeTDI(RegIR, n); ok {
		d.dispatchIR(tdi)
	}
	d.state = chainIdle
}

func (d *ChainDecoder) totalIRLength() int {
	total := 0
	for _, dev := range d.devices {
		total += dev.IRLength
	}
	return total
}

// steadyIR slices a post-discovery IR scan-out and updates each device's
// instruction from the buffered scan-in.
func (d *ChainDecoder) steadyIR(tdo BitString) {
	if tdo.Len() != d.totalIRLength() {
		d.protocolError(tdo, fmt.Sprintf("IR scan of %d bits, chain has %d", tdo.Len(), d.totalIRLength()))
		return
	}
	tdi, ok := d.takeTDI(RegIR, tdo.Len())
	if !ok {
		d.protocolError(tdo, "IR scan-out without matching scan-in")
		return
	}
	d.dispatchIR(tdi)
}

func (d *ChainDecoder) dispatchIR(tdi BitString) {
	for _, dev := range d.devices {
		window := tdi.Slice(dev.IRPrescan, dev.IRLength)
		dev.SetInstruction(window.Begin(), window.End(), uint32(window.Word(0, dev.IRLength)))
	}
}

// steadyDR slices a DR exchange per device and forwards each ADIv5 TAP's
// slice to its decoder. Devices report their own DR length where they can;
// at most one device per exchange may not know it, in which case the length
// is whatever the others leave over.
func (d *ChainDecoder) steadyDR(tdo BitString) {
	tdi, ok := d.takeTDI(RegDR, tdo.Len())
	if !ok {
		d.protocolError(tdo, "DR scan-in and scan-out lengths differ")
		return
	}

	lengths := make([]int, len(d.devices))
	unknown := -1
	sum := 0
	for i, dev := range d.devices {
		length, known := dev.DRLength()
		if !known {
			if unknown >= 0 {
				d.emit.Annotate(annot.Annotation{
					Begin: tdo.Begin(), End: tdo.End(), Class: annot.ClassNote,
					Texts: []string{"Indeterminate exchange: multiple devices with unknown DR length"},
				})
				return
			}
			unknown = i
			continue
		}
		lengths[i] = length
		sum += length
	}
	if unknown >= 0 {
		remainder := tdo.Len() - sum
		if remainder <= 0 {
			d.emit.Annotate(annot.Annotation{
				Begin: tdo.Begin(), End: tdo.End(), Class: annot.ClassNote,
				Texts: []string{"Indeterminate exchange: scan shorter than the known DR lengths"},
			})
			return
		}
		lengths[unknown] = remainder
	} else if sum != tdo.Len() {
		d.emit.Annotate(annot.Annotation{
			Begin: tdo.Begin(), End: tdo.End(), Class: annot.ClassNote,
			Texts: []string{fmt.Sprintf("DR scan of %d bits, devices account for %d", tdo.Len(), sum)},
		})
		return
	}

	offset := 0
	for i, dev := range d.devices {
		if dev.ADI != nil {
			window := tdo.Slice(offset, lengths[i])
			dev.ADI.Data(window.Begin(), window.End(),
				tdi.Word(offset, lengths[i]), tdo.Word(offset, lengths[i]))
		}
		offset += lengths[i]
	}
}
