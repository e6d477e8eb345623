// Package swd decodes the Serial Wire Debug protocol at the bit level: a
// stream of SWCLK edges with the SWDIO value sampled at each edge goes in,
// annotations and ADIv5 register transactions come out.
package swd

import (
	"fmt"

	"github.com/OpenTraceLab/OpenTraceADI/pkg/adiv5"
	"github.com/OpenTraceLab/OpenTraceADI/pkg/annot"
)

type state uint8

const (
	stateUnknown state = iota
	stateIdle
	stateReset
	stateRequest
	stateAckTurnaround
	stateAck
	stateDataTurnaround
	stateDataRead
	stateDataWrite
	stateParity
	stateSelectionAlert
	stateActivation
)

// Request byte layout, assembled LSB-first from the wire.
const (
	reqBitStart = 1 << 0
	reqBitAPnDP = 1 << 1
	reqBitRnW   = 1 << 2
	reqBitA2    = 1 << 3
	reqBitA3    = 1 << 4
	reqBitPar   = 1 << 5
	reqBitStop  = 1 << 6
	reqBitPark  = 1 << 7
)

// lineResetBits is how many consecutive data-high rising edges constitute a
// line reset.
const lineResetBits = 50

// jtagToSWD is the 16-bit switch sequence, LSB-first, that moves an SWJ-DP
// from JTAG to SWD operation.
const jtagToSWD = 0xe79e

// Selection alert constant for the multidrop/dormant-state handshake,
// 128 bits transmitted LSB-first.
const (
	alertPatternLow  = 0x86852d956209f392
	alertPatternHigh = 0x19bc0ea2e3ddafe9
)

// Activation codes following a selection alert and four low bits.
const (
	activationSWD  = 0x1a
	activationJTAG = 0x0a
)

// Config adjusts decoder start-up behaviour.
type Config struct {
	// StartInIdle assumes the bus is idle at the first sample instead of
	// requiring a line reset before decoding begins.
	StartInIdle bool
}

// Decoder is the SWD bit-level protocol state machine. Feed it every SWCLK
// edge in sample order via ClockEdge.
type Decoder struct {
	state       state
	startSample uint64
	reqBegin    uint64

	bits    int
	request uint8
	ack     uint8
	data    uint32
	par     uint8
	read    bool
	toAP    bool
	addr    uint16

	// sliding windows for the JTAG-to-SWD switch and selection alert
	history   uint16
	alertLow  uint64
	alertHigh uint64

	actCode uint8

	version int
	sel     adiv5.Select
	aps     map[int]adiv5.APKind

	emit annot.Emitter
	sink adiv5.Sink
}

// New creates an SWD decoder emitting annotations and transactions to the
// given consumers.
func New(cfg Config, emit annot.Emitter, sink adiv5.Sink) *Decoder {
	d := &Decoder{
		state: stateUnknown,
		// SWD-capable DPs implement DPv1 at least; refined by DPIDR reads.
		version: 1,
		aps:     make(map[int]adiv5.APKind),
		emit:    emit,
		sink:    sink,
	}
	if cfg.StartInIdle {
		d.state = stateIdle
	}
	return d
}

// ClockEdge consumes one SWCLK edge. rising reports the edge direction and
// dio the SWDIO level at that edge. Request bits shift on rising edges; ACK
// and read data shift on falling edges, matching SWD read timing.
func (d *Decoder) ClockEdge(sample uint64, rising bool, dio bool) {
	if rising {
		bit := uint16(0)
		if dio {
			bit = 1
		}
		d.history = d.history>>1 | bit<<15
		d.alertLow = d.alertLow>>1 | d.alertHigh<<63
		d.alertHigh = d.alertHigh>>1 | uint64(bit)<<63

		// The JTAG-to-SWD switch sequence spans two request lengths and can
		// straddle any phase boundary, so it is matched on a sliding window
		// rather than inside request handling.
		switch d.state {
		case stateUnknown, stateIdle, stateReset, stateRequest:
			if d.history == jtagToSWD {
				d.emit.Annotate(annot.Annotation{
					Begin: d.startSample, End: sample, Class: annot.ClassEnable,
					Texts: []string{"JTAG -> SWD", "J->S"},
				})
				d.startSample = sample
				d.bits = 0
				d.state = stateSelectionAlert
				return
			}
		}
	}

	switch d.state {
	case stateUnknown:
		// Waiting on a line reset: look for a rising edge with SWDIO high.
		if rising && dio {
			d.startSample = sample
			d.bits = 1
			d.state = stateReset
		}

	case stateIdle:
		if rising && dio {
			d.emit.Annotate(annot.Annotation{
				Begin: d.startSample, End: sample, Class: annot.ClassIdle,
				Texts: []string{"IDLE", "I"},
			})
			d.startSample = sample
			d.reqBegin = sample
			// The start bit enters at the top and right-shifts down to bit 0
			// as the remaining seven bits arrive.
			d.request = 0x80
			d.bits = 1
			d.state = stateRequest
		}

	case stateReset:
		// Line reset only cares about the line being kept high on rising
		// edges.
		if !rising {
			return
		}
		if dio {
			d.bits++
			return
		}
		if d.bits >= lineResetBits {
			d.emit.Annotate(annot.Annotation{
				Begin: d.startSample, End: sample, Class: annot.ClassReset,
				Texts: []string{"LINE RESET", "LN RST", "LR"},
			})
			d.startSample = sample
			d.state = stateIdle
		} else {
			d.state = stateUnknown
		}

	case stateRequest:
		if !rising {
			return
		}
		d.request >>= 1
		if dio {
			d.request |= 0x80
		}
		d.bits++
		if d.bits == 8 {
			d.handleRequest(sample)
		}

	case stateAckTurnaround:
		// The rising edge of the turnaround cycle; ACK bits follow on
		// falling edges.
		if rising {
			d.bits = 0
			d.ack = 0
			d.startSample = sample
			d.state = stateAck
		}

	case stateAck:
		if rising {
			return
		}
		d.ack >>= 1
		if dio {
			d.ack |= 4
		}
		d.bits++
		if d.bits == 3 {
			d.handleAck(sample)
		}

	case stateDataTurnaround:
		// One wasted cycle while the bus turns around for the write data.
		if rising {
			d.bits = 0
			d.data = 0
			d.par = 0
			d.startSample = sample
			d.state = stateDataWrite
		}

	case stateDataRead:
		if rising {
			return
		}
		d.dataBit(sample, dio)

	case stateDataWrite:
		if !rising {
			return
		}
		d.dataBit(sample, dio)

	case stateParity:
		// The parity bit arrives on the same edge polarity as the data.
		if rising != !d.read {
			return
		}
		d.handleParity(sample, dio)

	case stateSelectionAlert:
		if !rising {
			return
		}
		if d.alertLow == alertPatternLow && d.alertHigh == alertPatternHigh {
			d.emit.Annotate(annot.Annotation{
				Begin: d.startSample, End: sample, Class: annot.ClassEnable,
				Texts: []string{"SELECTION ALERT", "ALERT"},
			})
			d.startSample = sample
			d.bits = 0
			d.actCode = 0
			d.state = stateActivation
			return
		}
		// The dormant-state handshake is optional: hosts commonly follow the
		// switch sequence with another line reset and go straight to
		// requests. Keep counting high bits so that path resynchronizes.
		if dio {
			d.bits++
			return
		}
		if d.bits >= lineResetBits {
			d.emit.Annotate(annot.Annotation{
				Begin: d.startSample, End: sample, Class: annot.ClassReset,
				Texts: []string{"LINE RESET", "LN RST", "LR"},
			})
			d.startSample = sample
			d.state = stateIdle
		}
		d.bits = 0

	case stateActivation:
		if !rising {
			return
		}
		d.handleActivation(sample, dio)
	}
}

func (d *Decoder) handleRequest(sample uint64) {
	// A high stop bit means this was most likely part of a line reset.
	if d.request&reqBitStop != 0 {
		d.state = stateReset
		return
	}

	par := parity4(d.request >> 1 & 0xf)
	if (d.request&reqBitPar != 0) != (par == 1) {
		d.emit.Annotate(annot.Annotation{
			Begin: d.startSample, End: sample, Class: annot.ClassError,
			Texts: []string{"REQUEST PARITY ERROR", "REQ PARITY", "RP"},
		})
		d.state = stateUnknown
		return
	}

	d.toAP = d.request&reqBitAPnDP != 0
	d.read = d.request&reqBitRnW != 0
	d.addr = uint16(d.request>>3&3) << 2

	class := annot.ClassWrite
	if d.read {
		class = annot.ClassRead
	}
	d.emit.Annotate(annot.Annotation{
		Begin: d.startSample, End: sample, Class: class,
		Texts: []string{fmt.Sprintf("%x", d.request)},
	})
	d.state = stateAckTurnaround
}

// parity4 is the even parity of the low four bits.
func parity4(v uint8) uint8 {
	v ^= v >> 2
	v ^= v >> 1
	return v & 1
}

func (d *Decoder) handleAck(sample uint64) {
	var ack adiv5.Ack
	switch d.ack {
	case 0b001:
		ack = adiv5.AckOK
	case 0b010:
		ack = adiv5.AckWait
	case 0b100:
		ack = adiv5.AckFault
	case 0b111:
		ack = adiv5.AckNoResponse
	default:
		// Anything else is a protocol violation; resynchronize on the next
		// line reset.
		d.emit.Annotate(annot.Annotation{
			Begin: d.startSample, End: sample, Class: annot.ClassError,
			Texts: []string{fmt.Sprintf("INVALID ACK %03b", d.ack)},
		})
		d.state = stateUnknown
		return
	}

	d.emit.Annotate(annot.Annotation{
		Begin: d.startSample, End: sample, Class: annot.ClassAck,
		Texts: []string{ack.String()},
	})

	if ack != adiv5.AckOK {
		// No data phase follows; report the attempt and go straight back
		// to idle.
		d.emitTransaction(sample, ack, 0)
		d.startSample = sample
		d.state = stateIdle
		return
	}

	if d.read {
		// Read data follows immediately on falling edges; the target keeps
		// driving the line after the ACK.
		d.bits = 0
		d.data = 0
		d.par = 0
		d.startSample = sample
		d.state = stateDataRead
	} else {
		d.state = stateDataTurnaround
	}
}

func (d *Decoder) dataBit(sample uint64, dio bool) {
	if d.bits == 0 {
		d.startSample = sample
	}
	if dio {
		d.data |= 1 << d.bits
		d.par ^= 1
	}
	d.bits++
	if d.bits == 32 {
		d.state = stateParity
	}
}

func (d *Decoder) handleParity(sample uint64, dio bool) {
	d.emit.Annotate(annot.Annotation{
		Begin: d.startSample, End: sample, Class: annot.ClassData,
		Texts: []string{fmt.Sprintf("%08x", d.data)},
	})

	received := uint8(0)
	if dio {
		received = 1
	}
	if received != d.par {
		d.emit.Annotate(annot.Annotation{
			Begin: sample, End: sample, Class: annot.ClassError,
			Texts: []string{"PARITY ERROR", "PARITY", "PE"},
		})
	} else {
		d.emit.Annotate(annot.Annotation{
			Begin: sample, End: sample, Class: annot.ClassParity,
			Texts: []string{"PARITY OK", "PARITY", "P"},
		})
		d.emitTransaction(sample, adiv5.AckOK, d.data)
	}

	d.startSample = sample
	d.state = stateIdle
}

func (d *Decoder) handleActivation(sample uint64, dio bool) {
	d.bits++
	if d.bits <= 4 {
		// Four low bits separate the alert from the activation code.
		if dio {
			d.protocolError(sample)
		}
		return
	}
	d.actCode >>= 1
	if dio {
		d.actCode |= 0x80
	}
	if d.bits < 12 {
		return
	}

	switch d.actCode {
	case activationSWD:
		d.emit.Annotate(annot.Annotation{
			Begin: d.startSample, End: sample, Class: annot.ClassEnable,
			Texts: []string{"SWD ACTIVATION", "SWD"},
		})
		d.startSample = sample
		d.state = stateIdle
	case activationJTAG:
		// The wire now carries JTAG; nothing for us until the next line
		// reset brings SWD back.
		d.emit.Annotate(annot.Annotation{
			Begin: d.startSample, End: sample, Class: annot.ClassEnable,
			Texts: []string{"JTAG-SERIAL ACTIVATION", "JTAG"},
		})
		d.state = stateUnknown
	default:
		d.protocolError(sample)
	}
}

func (d *Decoder) protocolError(sample uint64) {
	d.emit.Annotate(annot.Annotation{
		Begin: d.startSample, End: sample, Class: annot.ClassError,
		Texts: []string{"PROTOCOL ERROR", "ERROR", "E"},
	})
	d.state = stateUnknown
}

// resolveReg names the register a request addresses, using the decoder's
// SELECT shadow and what it has learned about the APs so far.
func (d *Decoder) resolveReg() (string, uint16) {
	if d.toAP {
		kind := d.aps[d.sel.APSel]
		addr := uint16(d.sel.APBank)<<4 | d.addr
		return adiv5.DecodeAPReg(kind, d.read, addr), addr
	}

	// The SWD flavour of the DP register map: ABORT, RESEND and TARGETSEL
	// occupy slots the JTAG map reaches differently or not at all.
	switch {
	case !d.read && d.addr == 0:
		return "ABORT", 0
	case d.read && d.addr == 8:
		return "RESEND", 8
	case !d.read && d.addr == 12 && d.version >= 2:
		return "TARGETSEL", 12
	}
	reg := adiv5.DecodeDPReg(d.version, d.sel.DPBank, d.read, d.addr)
	return reg, uint16(d.sel.DPBank)<<4 | d.addr
}

func (d *Decoder) emitTransaction(sample uint64, ack adiv5.Ack, data uint32) {
	reg, addr := d.resolveReg()

	op := adiv5.OpDPWrite
	switch {
	case d.toAP && d.read:
		op = adiv5.OpAPRead
	case d.toAP:
		op = adiv5.OpAPWrite
	case d.read:
		op = adiv5.OpDPRead
	}

	if ack == adiv5.AckOK {
		d.learn(reg, data)
	}

	d.sink.Transaction(d.reqBegin, sample, adiv5.Transaction{
		Op:   op,
		DP:   0,
		Addr: addr,
		Reg:  reg,
		Ack:  ack,
		Data: data,
	})
}

// learn updates the decoder's protocol-state shadows from a successful
// transaction so later requests resolve against the right banks and kinds.
func (d *Decoder) learn(reg string, data uint32) {
	switch {
	case !d.toAP && !d.read && reg == "SELECT":
		d.sel.Set(data)
	case !d.toAP && d.read && reg == "DPIDR":
		d.version = int(data >> 12 & 0xf)
	case d.toAP && d.read && reg == "IDR":
		d.aps[d.sel.APSel] = adiv5.DecodeIDR(data).Kind
	}
}
