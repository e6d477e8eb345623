// Package annot carries the annotation records produced by the decoders.
//
// Every decode phase covers a contiguous run of samples in the original
// capture; an Annotation ties the decoded meaning of that phase back to the
// exact sample range it occupied so output can be aligned with the waveform.
package annot

// Class tags an annotation with the track it belongs on. The renderer decides
// how (and whether) to display each class; the decoders only classify.
type Class string

const (
	// SWD decoder classes.
	ClassIdle   Class = "idle"
	ClassReset  Class = "reset"
	ClassEnable Class = "enable"
	ClassRead   Class = "read"
	ClassWrite  Class = "write"
	ClassAck    Class = "ack"
	ClassData   Class = "data"
	ClassParity Class = "parity"
	ClassError  Class = "error"

	// JTAG / per-TAP ADIv5 decoder classes.
	ClassItem     Class = "item"
	ClassField    Class = "field"
	ClassCommand  Class = "command"
	ClassNote     Class = "note"
	ClassAckOK    Class = "ack-ok"
	ClassAckWait  Class = "ack-wait"
	ClassAckFault Class = "ack-fault"
	ClassRegister Class = "register"
	ClassRequest  Class = "request"
	ClassResult   Class = "result"

	// Register-model tracker classes.
	ClassTransactionEven Class = "transaction-even"
	ClassTransactionOdd  Class = "transaction-odd"
)

// Annotation is one decoded phase. Texts holds the preferred rendering first,
// followed by progressively shorter fallbacks for narrow displays.
type Annotation struct {
	Begin uint64
	End   uint64
	Class Class
	Texts []string
}

// Emitter receives annotations in sample order.
type Emitter interface {
	Annotate(a Annotation)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(a Annotation)

// Annotate calls f.
func (f EmitterFunc) Annotate(a Annotation) { f(a) }

// Discard is an Emitter that drops everything. Useful for callers that only
// want the transaction stream.
var Discard Emitter = EmitterFunc(func(Annotation) {})

// List is an Emitter that accumulates annotations in order.
type List struct {
	Records []Annotation
}

// Annotate appends the record.
func (l *List) Annotate(a Annotation) {
	l.Records = append(l.Records, a)
}
