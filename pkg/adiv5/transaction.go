// Package adiv5 implements the ARM Debug Interface v5 logical layer: the
// register transaction model shared by the SWD and JTAG decode branches, the
// per-TAP JTAG decoder that extracts transactions from DPACC/APACC scans, and
// the register-model tracker that folds transactions into live DP/AP state.
package adiv5

import "fmt"

// Op identifies the four ADIv5 register access operations.
type Op uint8

const (
	OpDPRead Op = iota
	OpDPWrite
	OpAPRead
	OpAPWrite
)

func (o Op) String() string {
	switch o {
	case OpDPRead:
		return "DP_READ"
	case OpDPWrite:
		return "DP_WRITE"
	case OpAPRead:
		return "AP_READ"
	case OpAPWrite:
		return "AP_WRITE"
	}
	return fmt.Sprintf("Op(%d)", uint8(o))
}

// IsRead reports whether the operation reads the target register.
func (o Op) IsRead() bool { return o == OpDPRead || o == OpAPRead }

// IsAP reports whether the operation targets an Access Port.
func (o Op) IsAP() bool { return o == OpAPRead || o == OpAPWrite }

// Ack is the acknowledgement a target gave for one transaction.
type Ack uint8

const (
	AckOK Ack = iota
	AckWait
	AckFault
	AckNoResponse
)

func (a Ack) String() string {
	switch a {
	case AckOK:
		return "OK"
	case AckWait:
		return "WAIT"
	case AckFault:
		return "FAULT"
	case AckNoResponse:
		return "NO-RESPONSE"
	}
	return fmt.Sprintf("Ack(%d)", uint8(a))
}

// Transaction is one register access attempt as observed on the wire. It is
// immutable once built: the decoders construct it fully before handing it on.
type Transaction struct {
	Op   Op
	DP   int    // DP index the access went through
	Addr uint16 // bank-qualified register address
	Reg  string // resolved register name
	Ack  Ack
	Data uint32
}

func (t Transaction) String() string {
	return fmt.Sprintf("%s dp=%d addr=%#x %s %s %08x", t.Op, t.DP, t.Addr, t.Reg, t.Ack, t.Data)
}

// Sink consumes transactions in sample order, tagged with the sample range
// of the wire exchange that completed them.
type Sink interface {
	Transaction(begin, end uint64, t Transaction)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(begin, end uint64, t Transaction)

// Transaction calls f.
func (f SinkFunc) Transaction(begin, end uint64, t Transaction) { f(begin, end, t) }
