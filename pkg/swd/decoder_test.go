package swd

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/OpenTraceLab/OpenTraceADI/pkg/adiv5"
	"github.com/OpenTraceLab/OpenTraceADI/pkg/annot"
)

type recordedTransaction struct {
	Begin, End uint64
	T          adiv5.Transaction
}

type txRecorder struct {
	transactions []recordedTransaction
}

func (r *txRecorder) Transaction(begin, end uint64, t adiv5.Transaction) {
	r.transactions = append(r.transactions, recordedTransaction{begin, end, t})
}

// harness drives the decoder one full SWCLK cycle at a time: the host drives
// SWDIO around the rising edge, the target around the falling edge.
type harness struct {
	dec    *Decoder
	sample uint64
	annots *annot.List
	sink   *txRecorder
}

func newHarness(cfg Config) *harness {
	h := &harness{annots: &annot.List{}, sink: &txRecorder{}}
	h.dec = New(cfg, h.annots, h.sink)
	return h
}

func (h *harness) cycle(hostBit, targetBit bool) {
	h.dec.ClockEdge(h.sample, true, hostBit)
	h.sample++
	h.dec.ClockEdge(h.sample, false, targetBit)
	h.sample++
}

// requestByte encodes an SWD request header.
func requestByte(toAP, read bool, addr uint16) uint8 {
	v := uint8(1) // start bit
	if toAP {
		v |= 1 << 1
	}
	if read {
		v |= 1 << 2
	}
	v |= uint8(addr>>2&3) << 3
	if parity4(v>>1&0xf) == 1 {
		v |= 1 << 5
	}
	v |= 1 << 7 // park bit
	return v
}

func (h *harness) request(toAP, read bool, addr uint16) {
	req := requestByte(toAP, read, addr)
	for i := 0; i < 8; i++ {
		h.cycle(req&(1<<i) != 0, false)
	}
}

func (h *harness) ackBits(ack uint8) {
	for i := 0; i < 3; i++ {
		h.cycle(false, ack&(1<<i) != 0)
	}
}

func (h *harness) readData(data uint32, parityBit bool) {
	for i := 0; i < 32; i++ {
		h.cycle(false, data&(1<<i) != 0)
	}
	h.cycle(false, parityBit)
}

func (h *harness) writeData(data uint32, parityBit bool) {
	h.cycle(false, false) // turnaround
	for i := 0; i < 32; i++ {
		h.cycle(data&(1<<i) != 0, false)
	}
	h.cycle(parityBit, false)
}

func dataParity(data uint32) bool {
	data ^= data >> 16
	data ^= data >> 8
	data ^= data >> 4
	data ^= data >> 2
	data ^= data >> 1
	return data&1 == 1
}

func (h *harness) lineReset() {
	for i := 0; i < 52; i++ {
		h.cycle(true, false)
	}
	h.cycle(false, false)
}

// jtagToSWDSwitch drives the 16-bit switch sequence, LSB first.
func (h *harness) jtagToSWDSwitch() {
	for i := 0; i < 16; i++ {
		h.cycle(jtagToSWD&(1<<i) != 0, false)
	}
}

// selectionAlert drives the 128-bit dormant-state alert, LSB first.
func (h *harness) selectionAlert() {
	for i := 0; i < 64; i++ {
		h.cycle(uint64(alertPatternLow)&(1<<i) != 0, false)
	}
	for i := 0; i < 64; i++ {
		h.cycle(uint64(alertPatternHigh)&(1<<i) != 0, false)
	}
}

func hasErrorText(l *annot.List, text string) bool {
	for _, a := range l.Records {
		if a.Class == annot.ClassError && a.Texts[0] == text {
			return true
		}
	}
	return false
}

const ackOK = 0b001

func TestRequestTripleDecode(t *testing.T) {
	cases := []struct {
		toAP bool
		read bool
		addr uint16
		op   adiv5.Op
	}{
		{false, true, 0x4, adiv5.OpDPRead},
		{false, false, 0x4, adiv5.OpDPWrite},
		{true, true, 0xc, adiv5.OpAPRead},
		{true, false, 0x0, adiv5.OpAPWrite},
	}

	for _, tc := range cases {
		h := newHarness(Config{StartInIdle: true})
		h.request(tc.toAP, tc.read, tc.addr)
		h.ackBits(ackOK)
		data := uint32(0x89abcdef)
		if tc.read {
			h.readData(data, dataParity(data))
		} else {
			h.writeData(data, dataParity(data))
		}

		if len(h.sink.transactions) != 1 {
			t.Fatalf("toAP=%v read=%v addr=%#x: got %d transactions, want 1",
				tc.toAP, tc.read, tc.addr, len(h.sink.transactions))
		}
		got := h.sink.transactions[0].T
		if got.Op != tc.op {
			t.Fatalf("Op = %v, want %v", got.Op, tc.op)
		}
		if got.Addr&0xf != tc.addr {
			t.Fatalf("Addr = %#x, want low nibble %#x", got.Addr, tc.addr)
		}
		if got.Ack != adiv5.AckOK || got.Data != data {
			t.Fatalf("transaction = %v", got)
		}
	}
}

func TestParityVerdicts(t *testing.T) {
	for _, data := range []uint32{0, 1, 0x40, 0xffffffff, 0x89abcdef, 0x80000000} {
		h := newHarness(Config{StartInIdle: true})
		h.request(false, true, 0x4)
		h.ackBits(ackOK)
		h.readData(data, dataParity(data))

		if len(h.sink.transactions) != 1 {
			t.Fatalf("data %08x: good parity rejected", data)
		}

		// Same data with the parity bit flipped must not produce a
		// transaction, only an error annotation.
		h2 := newHarness(Config{StartInIdle: true})
		h2.request(false, true, 0x4)
		h2.ackBits(ackOK)
		h2.readData(data, !dataParity(data))

		if len(h2.sink.transactions) != 0 {
			t.Fatalf("data %08x: bad parity produced a transaction", data)
		}
		found := false
		for _, a := range h2.annots.Records {
			if a.Class == annot.ClassError {
				found = true
			}
		}
		if !found {
			t.Fatalf("data %08x: no parity error annotation", data)
		}
	}
}

func TestLineResetEntersIdle(t *testing.T) {
	h := newHarness(Config{})
	h.lineReset()

	var reset bool
	for _, a := range h.annots.Records {
		if a.Class == annot.ClassReset {
			reset = true
		}
	}
	if !reset {
		t.Fatalf("no LINE RESET annotation after 52 high bits")
	}

	// Decoding works after the reset.
	h.request(false, true, 0x4)
	h.ackBits(ackOK)
	h.readData(0x40, dataParity(0x40))
	if len(h.sink.transactions) != 1 {
		t.Fatalf("no transaction decoded after line reset")
	}
}

func TestShortHighRunIsNotAReset(t *testing.T) {
	h := newHarness(Config{})
	for i := 0; i < 20; i++ {
		h.cycle(true, false)
	}
	h.cycle(false, false)

	for _, a := range h.annots.Records {
		if a.Class == annot.ClassReset {
			t.Fatalf("20 high bits annotated as line reset")
		}
	}
	// Nothing decodes until a real line reset arrives.
	h.request(false, true, 0x4)
	h.ackBits(ackOK)
	h.readData(0x40, dataParity(0x40))
	if len(h.sink.transactions) != 0 {
		t.Fatalf("decoder recovered without a line reset")
	}
}

func TestWaitShortCircuitsToIdle(t *testing.T) {
	h := newHarness(Config{StartInIdle: true})
	h.request(false, true, 0x4)
	h.ackBits(0b010) // WAIT

	if len(h.sink.transactions) != 1 {
		t.Fatalf("WAIT produced %d transactions, want 1", len(h.sink.transactions))
	}
	if got := h.sink.transactions[0].T.Ack; got != adiv5.AckWait {
		t.Fatalf("Ack = %v, want WAIT", got)
	}

	// No data phase followed: the very next request decodes normally.
	h.request(false, true, 0x4)
	h.ackBits(ackOK)
	h.readData(0x40, dataParity(0x40))
	if len(h.sink.transactions) != 2 {
		t.Fatalf("request after WAIT did not decode")
	}
	if got := h.sink.transactions[1].T; got.Ack != adiv5.AckOK || got.Data != 0x40 {
		t.Fatalf("transaction after WAIT = %v", got)
	}
}

func TestInvalidAckIsAProtocolViolation(t *testing.T) {
	h := newHarness(Config{StartInIdle: true})
	h.request(false, true, 0x4)
	h.ackBits(0b011)

	if len(h.sink.transactions) != 0 {
		t.Fatalf("invalid ack produced a transaction")
	}
	// Only a line reset recovers the decoder.
	h.request(false, true, 0x4)
	h.ackBits(ackOK)
	h.readData(0x40, dataParity(0x40))
	if len(h.sink.transactions) != 0 {
		t.Fatalf("decoder decoded without resynchronization")
	}
	h.lineReset()
	h.request(false, true, 0x4)
	h.ackBits(ackOK)
	h.readData(0x40, dataParity(0x40))
	if len(h.sink.transactions) != 1 {
		t.Fatalf("decoder did not recover after line reset")
	}
}

func TestCtrlStatReadEndToEnd(t *testing.T) {
	// Drive the bits of a DP CTRL/STAT read through the decoder into the
	// register model and check both the record and the model state.
	model := adiv5.NewModel(nil)
	emitted := &annot.List{}
	h := &harness{annots: emitted, sink: &txRecorder{}}
	tee := adiv5.SinkFunc(func(begin, end uint64, tr adiv5.Transaction) {
		h.sink.Transaction(begin, end, tr)
		model.Transaction(begin, end, tr)
	})
	h.dec = New(Config{StartInIdle: true}, emitted, tee)

	h.request(false, true, 0x4)
	h.ackBits(ackOK)
	h.readData(0x00000040, dataParity(0x40))

	want := adiv5.Transaction{
		Op: adiv5.OpDPRead, DP: 0, Addr: 4, Reg: "CTRL/STAT", Ack: adiv5.AckOK, Data: 0x40,
	}
	if len(h.sink.transactions) != 1 {
		t.Fatalf("got %d transactions, want 1", len(h.sink.transactions))
	}
	if diff := cmp.Diff(want, h.sink.transactions[0].T); diff != "" {
		t.Fatalf("transaction mismatch (-want +got):\n%s", diff)
	}
	if got := model.DP(0).CtrlStat; got != 0x40 {
		t.Fatalf("model CtrlStat = %08x, want 00000040", got)
	}
}

func TestAPClassificationEndToEnd(t *testing.T) {
	h := newHarness(Config{StartInIdle: true})

	// SELECT: AP 0, AP bank 0xf, where register 0xc is the IDR.
	h.request(false, false, 0x8)
	h.ackBits(ackOK)
	h.writeData(0x000000f0, dataParity(0x000000f0))

	// AP read of the IDR: class 8, type 1 makes it a MEM-AP.
	idr := uint32(0x24770011)
	h.request(true, true, 0xc)
	h.ackBits(ackOK)
	h.readData(idr, dataParity(idr))

	// With the AP now known to be a MEM-AP, bank 0xf register 0x8 resolves
	// to BASE (low).
	h.request(true, true, 0x8)
	h.ackBits(ackOK)
	h.readData(0xe00ff003, dataParity(0xe00ff003))

	if len(h.sink.transactions) != 3 {
		t.Fatalf("got %d transactions, want 3", len(h.sink.transactions))
	}
	if got := h.sink.transactions[1].T; got.Reg != "IDR" || got.Addr != 0xfc {
		t.Fatalf("IDR read = %v", got)
	}
	last := h.sink.transactions[2].T
	if last.Reg != "BASE (low)" || last.Addr != 0xf8 {
		t.Fatalf("post-IDR read = %v, want BASE (low) at f8", last)
	}
}

func TestSWDDPRegisterMap(t *testing.T) {
	// ABORT and RESEND live in slots the JTAG map reaches differently.
	h := newHarness(Config{StartInIdle: true})
	h.request(false, false, 0x0)
	h.ackBits(ackOK)
	h.writeData(0x1f, dataParity(0x1f))

	h.request(false, true, 0x8)
	h.ackBits(ackOK)
	h.readData(0, dataParity(0))

	if len(h.sink.transactions) != 2 {
		t.Fatalf("got %d transactions, want 2", len(h.sink.transactions))
	}
	if got := h.sink.transactions[0].T; got.Reg != "ABORT" || got.Op != adiv5.OpDPWrite {
		t.Fatalf("write of register 0 = %v, want ABORT", got)
	}
	if got := h.sink.transactions[1].T; got.Reg != "RESEND" {
		t.Fatalf("read of register 8 = %v, want RESEND", got)
	}
}

func TestJTAGToSWDSwitchAndActivation(t *testing.T) {
	h := newHarness(Config{StartInIdle: true})
	h.jtagToSWDSwitch()

	var switched bool
	for _, a := range h.annots.Records {
		if a.Class == annot.ClassEnable {
			switched = true
		}
	}
	if !switched {
		t.Fatalf("switch sequence not recognized")
	}

	h.selectionAlert()

	// Four low bits then the SW-DP activation code.
	for i := 0; i < 4; i++ {
		h.cycle(false, false)
	}
	for i := 0; i < 8; i++ {
		h.cycle(activationSWD&(1<<i) != 0, false)
	}

	// Decoding resumes.
	h.request(false, true, 0x4)
	h.ackBits(ackOK)
	h.readData(0x40, dataParity(0x40))
	if len(h.sink.transactions) != 1 {
		t.Fatalf("decoder did not resume after SWD activation")
	}
}

func TestJTAGActivationAbandonsDecode(t *testing.T) {
	h := newHarness(Config{StartInIdle: true})
	h.jtagToSWDSwitch()
	h.selectionAlert()
	for i := 0; i < 4; i++ {
		h.cycle(false, false)
	}
	for i := 0; i < 8; i++ {
		h.cycle(activationJTAG&(1<<i) != 0, false)
	}

	// The wire is JTAG now: nothing decodes until a line reset.
	h.request(false, true, 0x4)
	h.ackBits(ackOK)
	h.readData(0x40, dataParity(0x40))
	if len(h.sink.transactions) != 0 {
		t.Fatalf("decoder kept decoding after JTAG activation")
	}
	h.lineReset()
	h.request(false, true, 0x4)
	h.ackBits(ackOK)
	h.readData(0x40, dataParity(0x40))
	if len(h.sink.transactions) != 1 {
		t.Fatalf("decoder did not recover after line reset")
	}
}

func TestPlainSwitchSequenceResynchronizes(t *testing.T) {
	// The dormant-state handshake is optional: hosts commonly send line
	// reset, the switch sequence, another line reset, then go straight to
	// requests.
	h := newHarness(Config{})
	h.lineReset()
	h.jtagToSWDSwitch()
	h.lineReset()

	h.request(false, true, 0x4)
	h.ackBits(ackOK)
	h.readData(0x40, dataParity(0x40))

	if len(h.sink.transactions) != 1 {
		t.Fatalf("got %d transactions after switch and line reset, want 1",
			len(h.sink.transactions))
	}
	if got := h.sink.transactions[0].T; got.Reg != "CTRL/STAT" || got.Data != 0x40 {
		t.Fatalf("transaction = %v", got)
	}
}

func TestRequestHeaderParityError(t *testing.T) {
	h := newHarness(Config{StartInIdle: true})
	req := requestByte(false, true, 0x4) ^ 1<<5 // corrupt the header parity bit
	for i := 0; i < 8; i++ {
		h.cycle(req&(1<<i) != 0, false)
	}

	if !hasErrorText(h.annots, "REQUEST PARITY ERROR") {
		t.Fatalf("corrupted request header not annotated")
	}
	if len(h.sink.transactions) != 0 {
		t.Fatalf("corrupted request produced a transaction")
	}

	// Only a line reset recovers.
	h.request(false, true, 0x4)
	h.ackBits(ackOK)
	h.readData(0x40, dataParity(0x40))
	if len(h.sink.transactions) != 0 {
		t.Fatalf("decoder decoded without resynchronization")
	}
	h.lineReset()
	h.request(false, true, 0x4)
	h.ackBits(ackOK)
	h.readData(0x40, dataParity(0x40))
	if len(h.sink.transactions) != 1 {
		t.Fatalf("decoder did not recover after line reset")
	}
}

func TestActivationGapViolation(t *testing.T) {
	h := newHarness(Config{StartInIdle: true})
	h.jtagToSWDSwitch()
	h.selectionAlert()

	// A high bit inside the four-bit gap between alert and activation code.
	h.cycle(true, false)

	if !hasErrorText(h.annots, "PROTOCOL ERROR") {
		t.Fatalf("high bit in the activation gap not annotated")
	}
	h.request(false, true, 0x4)
	h.ackBits(ackOK)
	h.readData(0x40, dataParity(0x40))
	if len(h.sink.transactions) != 0 {
		t.Fatalf("decoder decoded without resynchronization")
	}
	h.lineReset()
	h.request(false, true, 0x4)
	h.ackBits(ackOK)
	h.readData(0x40, dataParity(0x40))
	if len(h.sink.transactions) != 1 {
		t.Fatalf("decoder did not recover after line reset")
	}
}

func TestUnknownActivationCode(t *testing.T) {
	h := newHarness(Config{StartInIdle: true})
	h.jtagToSWDSwitch()
	h.selectionAlert()
	for i := 0; i < 4; i++ {
		h.cycle(false, false)
	}
	// Neither the SW-DP nor the JTAG-Serial code.
	for i := 0; i < 8; i++ {
		h.cycle(0x2a&(1<<i) != 0, false)
	}

	if !hasErrorText(h.annots, "PROTOCOL ERROR") {
		t.Fatalf("unknown activation code not annotated")
	}
	h.request(false, true, 0x4)
	h.ackBits(ackOK)
	h.readData(0x40, dataParity(0x40))
	if len(h.sink.transactions) != 0 {
		t.Fatalf("decoder decoded without resynchronization")
	}
	h.lineReset()
	h.request(false, true, 0x4)
	h.ackBits(ackOK)
	h.readData(0x40, dataParity(0x40))
	if len(h.sink.transactions) != 1 {
		t.Fatalf("decoder did not recover after line reset")
	}
}
