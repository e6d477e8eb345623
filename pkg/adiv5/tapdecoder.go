package adiv5

import (
	"fmt"

	"github.com/OpenTraceLab/OpenTraceADI/pkg/annot"
)

// tapState is what the current instruction register value means for DR scans.
type tapState uint8

const (
	tapIdle tapState = iota
	tapAbort
	tapDPAccess
	tapAPAccess
	tapInError
)

func (s tapState) target() string {
	switch s {
	case tapAbort:
		return "ABORT"
	case tapDPAccess:
		return "DP"
	case tapAPAccess:
		return "AP"
	}
	return "UNKNOWN"
}

// instruction table for the 4-bit ADIv5 JTAG-DP IR.
var instructions = map[uint8]struct {
	name  string
	state tapState
}{
	0x8: {"ABORT", tapAbort},
	0xa: {"DPACC", tapDPAccess},
	0xb: {"APACC", tapAPAccess},
	0xe: {"IDCODE", tapIdle},
	0xf: {"BYPASS", tapIdle},
}

// exchange is one 35-bit DPACC/APACC scan, split into its request fields on
// the way in and its ack/response fields on the way out.
type exchange struct {
	state    tapState
	read     bool
	addr     uint16 // 2-bit address selector scaled to a register offset
	request  uint32
	ack      Ack
	response uint32
	reg      string // resolved register name for the request
	regAddr  uint16 // bank-qualified register address
}

// TAPDecoder decodes the ADIv5 traffic of one JTAG-DP TAP. The chain decoder
// owns one per discovered ARM DP and feeds it instruction updates and DR
// exchange data.
//
// Transactions are lagged by one exchange: the ack and response bits of scan
// N belong to the request made in scan N-1. The pending slot is that pipeline
// register made explicit; the first exchange of a session resolves nothing.
type TAPDecoder struct {
	tapIndex int
	dpIndex  int
	version  int

	state    tapState
	insn     uint8
	insnRaw  uint32
	irLength int

	pending *exchange
	count   int

	sel Select
	aps map[int]APKind

	emit annot.Emitter
	sink Sink
}

// NewTAPDecoder creates a decoder for the TAP at tapIndex whose IDCODE
// carries the given DP protocol version. dpIndex numbers the DPs discovered
// on the chain.
func NewTAPDecoder(tapIndex, dpIndex, version int, emit annot.Emitter, sink Sink) *TAPDecoder {
	return &TAPDecoder{
		tapIndex: tapIndex,
		dpIndex:  dpIndex,
		version:  version,
		state:    tapIdle,
		insn:     0xe, // IDCODE after TEST-LOGIC-RESET
		aps:      make(map[int]APKind),
		emit:     emit,
		sink:     sink,
	}
}

// instruction returns the effective 4-bit instruction. 8-bit IRs only extend
// the 4-bit encodings with the high nibble all-ones, so anything else in the
// high nibble makes the value unrecognizable.
func (d *TAPDecoder) instruction() uint8 {
	if d.irLength == 8 && d.insnRaw&0xf0 != 0xf0 {
		return 0
	}
	return uint8(d.insnRaw & 0xf)
}

// DRLength reports the DR scan length implied by the current instruction.
// The second return is false when the instruction is unknown, in which case
// the chain decoder has to infer the length from its neighbours.
func (d *TAPDecoder) DRLength() (int, bool) {
	switch d.instruction() {
	case 0xf:
		return 1, true
	case 0xe:
		return 32, true
	case 0x8, 0xa, 0xb:
		return 35, true
	}
	return 0, false
}

// SetInstruction records a new IR value for this TAP, scanned in over the
// sample range [begin, end].
func (d *TAPDecoder) SetInstruction(begin, end uint64, value uint32, irLength int) {
	d.insnRaw = value
	d.irLength = irLength
	d.insn = d.instruction()

	entry, ok := instructions[d.insn]
	if !ok {
		entry.name = "UNKNOWN"
		entry.state = tapInError
	}
	d.state = entry.state
	d.emit.Annotate(annot.Annotation{
		Begin: begin, End: end, Class: annot.ClassCommand,
		Texts: []string{fmt.Sprintf("TAP %d: %s", d.tapIndex, entry.name), entry.name},
	})
}

// Data decodes one DR exchange for this TAP. dataIn is the host-driven TDI
// slice, dataOut the target-driven TDO slice, both LSB-first.
func (d *TAPDecoder) Data(begin, end uint64, dataIn, dataOut uint64) {
	// BYPASS and IDCODE scans carry no ADIv5 payload.
	if d.state == tapIdle || d.state == tapInError {
		return
	}

	drLength, _ := d.DRLength()
	hexLength := (drLength + 3) / 4
	insnName := instructions[d.insn].name
	d.emit.Annotate(annot.Annotation{
		Begin: begin, End: end, Class: annot.ClassItem,
		Texts: []string{
			fmt.Sprintf("%s Data - In: %0*x, Out: %0*x", insnName, hexLength, dataIn, hexLength, dataOut),
			fmt.Sprintf("%s Data", insnName),
			"Data",
		},
	})

	ex := &exchange{
		state:    d.state,
		read:     dataIn&1 == 1,
		addr:     uint16((dataIn>>1)&3) << 2,
		request:  uint32(dataIn >> 3),
		ack:      jtagAck(uint8(dataOut & 7)),
		response: uint32(dataOut >> 3),
	}

	target := ex.state.target()
	if ex.state == tapAPAccess {
		target = fmt.Sprintf("AP%d %s", d.sel.APSel, target)
	}
	access := "write"
	if ex.read {
		access = "read"
	}
	d.emit.Annotate(annot.Annotation{
		Begin: begin, End: end, Class: annot.ClassCommand,
		Texts: []string{fmt.Sprintf("TAP %d: DP%d %s %s", d.tapIndex, d.dpIndex, target, access)},
	})

	// ABORT is write-only with a fixed zero address and takes effect
	// immediately, outside the request/response lag.
	if ex.state == tapAbort {
		d.decodeAbort(begin, end, ex)
		return
	}

	d.resolveResponse(begin, end, ex)

	// Now decode the new request carried by this exchange.
	if ex.read {
		d.emit.Annotate(annot.Annotation{
			Begin: begin, End: begin, Class: annot.ClassRead,
			Texts: []string{"Read", "RD", "R"},
		})
	} else {
		d.emit.Annotate(annot.Annotation{
			Begin: begin, End: begin, Class: annot.ClassWrite,
			Texts: []string{"Write", "WR", "W"},
		})
		d.emit.Annotate(annot.Annotation{
			Begin: begin + 3, End: end, Class: annot.ClassRequest,
			Texts: []string{fmt.Sprintf("%08x", ex.request)},
		})
	}

	if ex.state == tapDPAccess {
		d.decodeDPAccess(begin, ex)
	} else {
		d.decodeAPAccess(begin, ex)
	}
}

// jtagAck maps the on-wire JTAG-DP ack encoding: 2 is OK, 1 is WAIT and
// everything else is a fault condition.
func jtagAck(raw uint8) Ack {
	switch raw {
	case 2:
		return AckOK
	case 1:
		return AckWait
	}
	return AckFault
}

func ackClass(ack Ack) annot.Class {
	switch ack {
	case AckOK:
		return annot.ClassAckOK
	case AckWait:
		return annot.ClassAckWait
	}
	return annot.ClassAckFault
}

func (d *TAPDecoder) decodeAbort(begin, end uint64, ex *exchange) {
	if ex.read || ex.addr != 0 {
		d.emit.Annotate(annot.Annotation{
			Begin: begin, End: end, Class: annot.ClassRequest,
			Texts: []string{"Invalid request"},
		})
		return
	}
	d.emit.Annotate(annot.Annotation{
		Begin: begin, End: begin, Class: annot.ClassWrite,
		Texts: []string{"Write", "WR", "W"},
	})
	d.emit.Annotate(annot.Annotation{
		Begin: begin + 1, End: begin + 2, Class: annot.ClassRegister,
		Texts: []string{"ABORT", "ABT"},
	})
	d.emit.Annotate(annot.Annotation{
		Begin: begin + 3, End: end, Class: annot.ClassRequest,
		Texts: []string{fmt.Sprintf("%08x", ex.request)},
	})
	d.sink.Transaction(begin, end, Transaction{
		Op:   OpDPWrite,
		DP:   d.dpIndex,
		Addr: 0,
		Reg:  "ABORT",
		Ack:  AckOK,
		Data: ex.request,
	})
}

// resolveResponse applies this exchange's ack and response bits to the
// pending transaction, emits it downstream, then installs this exchange as
// the new pending transaction.
func (d *TAPDecoder) resolveResponse(begin, end uint64, ex *exchange) {
	if d.pending != nil {
		d.emit.Annotate(annot.Annotation{
			Begin: begin, End: begin + 2, Class: ackClass(ex.ack),
			Texts: []string{ex.ack.String()},
		})
		if d.pending.read {
			d.emit.Annotate(annot.Annotation{
				Begin: begin + 3, End: end, Class: annot.ClassResult,
				Texts: []string{fmt.Sprintf("Read: %08x", ex.response), "Read", "R"},
			})
		}

		data := d.pending.request
		if d.pending.read {
			data = ex.response
		}
		// A successful AP IDR read reclassifies the AP for every later
		// register resolution.
		if ex.ack == AckOK && d.pending.state == tapAPAccess &&
			d.pending.read && d.pending.reg == "IDR" {
			d.aps[d.sel.APSel] = DecodeIDR(ex.response).Kind
		}

		op := OpDPRead
		switch {
		case d.pending.state == tapDPAccess && !d.pending.read:
			op = OpDPWrite
		case d.pending.state == tapAPAccess && d.pending.read:
			op = OpAPRead
		case d.pending.state == tapAPAccess && !d.pending.read:
			op = OpAPWrite
		}
		d.sink.Transaction(begin, end, Transaction{
			Op:   op,
			DP:   d.dpIndex,
			Addr: d.pending.regAddr,
			Reg:  d.pending.reg,
			Ack:  ex.ack,
			Data: data,
		})
		d.count++
	}
	d.pending = ex
}

func (d *TAPDecoder) decodeDPAccess(begin uint64, ex *exchange) {
	reg := DecodeDPReg(d.version, d.sel.DPBank, ex.read, ex.addr)
	d.emit.Annotate(annot.Annotation{
		Begin: begin + 1, End: begin + 2, Class: annot.ClassRegister,
		Texts: []string{reg},
	})
	// Writes to SELECT retarget every subsequent bank and AP resolution.
	if reg == "SELECT" && !ex.read {
		d.sel.Set(ex.request)
	}
	ex.reg = reg
	ex.regAddr = uint16(d.sel.DPBank)<<4 | ex.addr
}

func (d *TAPDecoder) decodeAPAccess(begin uint64, ex *exchange) {
	kind, ok := d.aps[d.sel.APSel]
	if !ok {
		// First sight of this AP: track it as unknown until an IDR read
		// tells us what it is.
		d.aps[d.sel.APSel] = APKindUnknown
		kind = APKindUnknown
	}
	addr := uint16(d.sel.APBank)<<4 | ex.addr
	reg := DecodeAPReg(kind, ex.read, addr)
	d.emit.Annotate(annot.Annotation{
		Begin: begin + 1, End: begin + 2, Class: annot.ClassRegister,
		Texts: []string{reg},
	})
	ex.reg = reg
	ex.regAddr = addr
}
