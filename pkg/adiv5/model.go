package adiv5

import (
	"fmt"
	"sort"

	"github.com/OpenTraceLab/OpenTraceADI/pkg/annot"
)

// MemAP is the register shadow of a MEM-AP. TAR and BASE are 64-bit values
// assembled from two 32-bit half registers; a half-write replaces only its
// own half.
type MemAP struct {
	CSW  uint32
	TAR  uint64
	DRW  uint32
	BD   [4]uint32
	MBT  uint32
	T0TR uint32
	CFG1 uint32
	CFG  uint32
	BASE uint64
}

// JTAGAP is the register shadow of a JTAG-AP.
type JTAGAP struct {
	CSW    uint32
	PSEL   uint32
	PSTA   uint32
	BRFIFO [4]uint32
}

// AP is the live register shadow of one Access Port. The kind is fixed from
// the first IDR value observed and never revised; only the shadow matching
// the kind is meaningful.
type AP struct {
	Index int
	Kind  APKind
	Ident APIdent
	Mem   MemAP
	JTAG  JTAGAP
}

func (a *AP) apply(t Transaction) {
	switch a.Kind {
	case APKindMem:
		a.applyMem(t)
	case APKindJTAG:
		a.applyJTAG(t)
	}
}

func (a *AP) applyMem(t Transaction) {
	switch t.Reg {
	case "CSW":
		a.Mem.CSW = t.Data
	case "TAR (low)":
		a.Mem.TAR = a.Mem.TAR&0xffffffff_00000000 | uint64(t.Data)
	case "TAR (high)":
		a.Mem.TAR = a.Mem.TAR&0x00000000_ffffffff | uint64(t.Data)<<32
	case "DRW":
		a.Mem.DRW = t.Data
	case "BD0", "BD1", "BD2", "BD3":
		a.Mem.BD[(t.Addr>>2)&3] = t.Data
	case "MBT":
		a.Mem.MBT = t.Data
	case "T0TR":
		a.Mem.T0TR = t.Data
	case "CFG1":
		a.Mem.CFG1 = t.Data
	case "CFG":
		a.Mem.CFG = t.Data
	case "BASE (low)":
		a.Mem.BASE = a.Mem.BASE&0xffffffff_00000000 | uint64(t.Data)
	case "BASE (high)":
		a.Mem.BASE = a.Mem.BASE&0x00000000_ffffffff | uint64(t.Data)<<32
	}
}

func (a *AP) applyJTAG(t Transaction) {
	switch t.Reg {
	case "CSW":
		a.JTAG.CSW = t.Data
	case "PSEL":
		a.JTAG.PSEL = t.Data
	case "PSTA":
		a.JTAG.PSTA = t.Data
	case "BRFIFO0", "BRFIFO1", "BRFIFO2", "BRFIFO3":
		a.JTAG.BRFIFO[(t.Addr>>2)&3] = t.Data
	}
}

// DP is the live register shadow of one Debug Port, created lazily on the
// first transaction seen for its index and retained for the capture lifetime.
type DP struct {
	Index     int
	Abort     uint32
	CtrlStat  uint32
	Select    Select
	SelectRaw uint32
	RdBuff    uint32
	DPIDR     uint32
	DLCR      uint32
	TargetID  uint32
	DLPIDR    uint32
	EventStat uint32
	APs       map[int]*AP
}

func (dp *DP) apply(t Transaction) {
	if t.Op.IsAP() {
		dp.applyAP(t)
		return
	}
	switch t.Reg {
	case "ABORT":
		dp.Abort = t.Data
	case "CTRL/STAT":
		dp.CtrlStat = t.Data
	case "SELECT":
		dp.SelectRaw = t.Data
		dp.Select.Set(t.Data)
	case "RDBUFF":
		dp.RdBuff = t.Data
	case "DPIDR":
		dp.DPIDR = t.Data
	case "DLCR":
		dp.DLCR = t.Data
	case "TARGETID":
		dp.TargetID = t.Data
	case "DLPIDR":
		dp.DLPIDR = t.Data
	case "EVENTSTAT":
		dp.EventStat = t.Data
	}
}

func (dp *DP) applyAP(t Transaction) {
	ap, ok := dp.APs[dp.Select.APSel]
	if !ok {
		// APs materialize only on a successful IDR read; anything else
		// against an unknown AP is surfaced by the caller but not modelled.
		if t.Op != OpAPRead || t.Reg != "IDR" {
			return
		}
		ident := DecodeIDR(t.Data)
		ap = &AP{Index: dp.Select.APSel, Kind: ident.Kind, Ident: ident}
		dp.APs[dp.Select.APSel] = ap
		return
	}
	if t.Reg == "IDR" {
		ap.Ident = DecodeIDR(t.Data)
		return
	}
	ap.apply(t)
}

// Model folds the transaction stream from either decode branch into live
// DP/AP register state. It is a pure reducer: failed transactions are
// annotated for display but never mutate the model.
type Model struct {
	dps   map[int]*DP
	count int
	emit  annot.Emitter
}

// NewModel creates an empty register model.
func NewModel(emit annot.Emitter) *Model {
	if emit == nil {
		emit = annot.Discard
	}
	return &Model{
		dps:  make(map[int]*DP),
		emit: emit,
	}
}

// DP returns the record for a DP index, or nil when no transaction has been
// seen for it.
func (m *Model) DP(index int) *DP {
	return m.dps[index]
}

// DPs returns the known DP records ordered by index.
func (m *Model) DPs() []*DP {
	out := make([]*DP, 0, len(m.dps))
	for _, dp := range m.dps {
		out = append(out, dp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Transaction implements Sink. Every transaction is annotated on alternating
// display rows; only OK-acked ones reach the register shadows.
func (m *Model) Transaction(begin, end uint64, t Transaction) {
	class := annot.ClassTransactionEven
	if m.count&1 == 1 {
		class = annot.ClassTransactionOdd
	}
	m.count++

	targetName := fmt.Sprintf("DP%d", t.DP)
	if t.Op.IsAP() {
		targetName += " AP"
	}
	verb := "write"
	if t.Op.IsRead() {
		verb = "read"
	}
	m.emit.Annotate(annot.Annotation{
		Begin: begin, End: end, Class: class,
		Texts: []string{fmt.Sprintf("%s %s %d: %08x", targetName, verb, t.Addr, t.Data)},
	})

	if t.Ack != AckOK {
		return
	}

	dp, ok := m.dps[t.DP]
	if !ok {
		dp = &DP{Index: t.DP, APs: make(map[int]*AP)}
		m.dps[t.DP] = dp
	}
	dp.apply(t)
}
