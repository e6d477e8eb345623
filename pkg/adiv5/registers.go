package adiv5

import "fmt"

// Select shadows the DP SELECT register: which AP is routed, and which
// register banks are in effect for AP and DP accesses. It changes only on
// successful writes to SELECT and lives for the life of the DP.
type Select struct {
	APSel  int
	APBank int
	DPBank int
}

// Set decodes a write to SELECT into the shadow.
func (s *Select) Set(value uint32) {
	s.APSel = int(value >> 24)
	s.APBank = int((value >> 4) & 0xf)
	s.DPBank = int(value & 0xf)
}

// APKind classifies an Access Port by the class/type fields of its IDR.
type APKind uint8

const (
	APKindUnknown APKind = iota
	APKindJTAG
	APKindCOM
	APKindMem
)

func (k APKind) String() string {
	switch k {
	case APKindJTAG:
		return "JTAG-AP"
	case APKindCOM:
		return "COM-AP"
	case APKindMem:
		return "MEM-AP"
	}
	return "AP"
}

// APIdent is a decoded AP Identification Register.
type APIdent struct {
	Kind     APKind
	Designer uint16
	Revision uint8
	Variant  uint8
}

// DecodeIDR breaks an IDR value into the fields that matter for register
// decode. The class/type pairing determines the AP kind.
func DecodeIDR(value uint32) APIdent {
	apClass := (value >> 13) & 0xf
	apType := value & 0xf

	var kind APKind
	switch {
	case apType == 0x0 && apClass == 0x0:
		kind = APKindJTAG
	case apType == 0x0 && apClass == 0x1:
		kind = APKindCOM
	case apType >= 0x1 && apType <= 0x8 && apClass == 0x8:
		kind = APKindMem
	default:
		kind = APKindUnknown
	}

	return APIdent{
		Kind:     kind,
		Designer: uint16((value >> 17) & 0x7ff),
		Revision: uint8(value >> 28),
		Variant:  uint8((value >> 4) & 0xf),
	}
}

func (i APIdent) String() string {
	return fmt.Sprintf("%s designer %03x rev %d var %d", i.Kind, i.Designer, i.Revision, i.Variant)
}

// DPRegInvalid is returned by DecodeDPReg for addresses that resolve to no
// register under the DP's version and current bank. DP accesses to it are a
// hard decode fault; the caller decides how loudly to fail.
const DPRegInvalid = "INVALID"

// DecodeDPReg resolves a DP register address to its name. Resolution depends
// on the DP protocol version and the currently selected DP register bank:
// bank-independent aliases first, then the version-gated banked registers.
func DecodeDPReg(version, bank int, read bool, reg uint16) string {
	// DPv0 has bank 0 registers only, the bank value is ignored entirely.
	if version == 0 {
		bank = 0
	}

	// SELECT (write) and RDBUFF (read) appear on every bank.
	if !read && reg == 8 {
		return "SELECT"
	}
	if read && reg == 12 {
		return "RDBUFF"
	}

	if bank == 0 {
		if reg == 4 {
			return "CTRL/STAT"
		}
		// DPv0 additionally makes SELECT readable on bank 0.
		if version == 0 && read && reg == 8 {
			return "SELECT"
		}
	}

	if version >= 1 && read && reg == 0 {
		return "DPIDR"
	}
	if version >= 1 && bank == 1 && reg == 4 {
		return "DLCR"
	}

	if version >= 2 && read && reg == 4 {
		switch bank {
		case 2:
			return "TARGETID"
		case 3:
			return "DLPIDR"
		case 4:
			return "EVENTSTAT"
		}
	}

	return DPRegInvalid
}

// apRegRule is one row of a per-kind AP register table: an inclusive address
// window, an optional read-only restriction, and how to name the match.
type apRegRule struct {
	lo, hi   uint16
	readOnly bool
	name     func(addr uint16) string
}

func fixed(name string) func(uint16) string {
	return func(uint16) string { return name }
}

func banked(prefix string) func(uint16) string {
	return func(addr uint16) string {
		return fmt.Sprintf("%s%d", prefix, (addr>>2)&3)
	}
}

var memAPRegs = []apRegRule{
	{lo: 0x00, hi: 0x00, name: fixed("CSW")},
	{lo: 0x04, hi: 0x04, name: fixed("TAR (low)")},
	{lo: 0x08, hi: 0x08, name: fixed("TAR (high)")},
	{lo: 0x0c, hi: 0x0c, name: fixed("DRW")},
	{lo: 0x10, hi: 0x1c, name: banked("BD")},
	{lo: 0x20, hi: 0x20, name: fixed("MBT")},
	{lo: 0x30, hi: 0x30, name: fixed("T0TR")},
	{lo: 0xe0, hi: 0xe0, readOnly: true, name: fixed("CFG1")},
	{lo: 0xf0, hi: 0xf0, readOnly: true, name: fixed("BASE (high)")},
	{lo: 0xf4, hi: 0xf4, readOnly: true, name: fixed("CFG")},
	{lo: 0xf8, hi: 0xf8, readOnly: true, name: fixed("BASE (low)")},
}

var jtagAPRegs = []apRegRule{
	{lo: 0x00, hi: 0x00, name: fixed("CSW")},
	{lo: 0x04, hi: 0x04, name: fixed("PSEL")},
	{lo: 0x08, hi: 0x08, name: fixed("PSTA")},
	{lo: 0x10, hi: 0x1c, name: banked("BRFIFO")},
}

// DecodeAPReg resolves an AP register address for the given AP kind. A read
// of 0xFC is IDR on every kind of AP. Unmapped addresses come back as a soft
// "INVALID (xx)" placeholder rather than failing: unlike DP registers, the
// full AP register space is implementation defined.
func DecodeAPReg(kind APKind, read bool, addr uint16) string {
	var rules []apRegRule
	switch kind {
	case APKindMem:
		rules = memAPRegs
	case APKindJTAG:
		rules = jtagAPRegs
	default:
		// COM-APs are specified in a separate supplement we do not decode;
		// they get the same treatment as unknown APs.
	}

	for _, r := range rules {
		if addr < r.lo || addr > r.hi {
			continue
		}
		if r.readOnly && !read {
			continue
		}
		return r.name(addr)
	}

	if read && addr == 0xfc {
		return "IDR"
	}
	return fmt.Sprintf("INVALID (%02x)", addr)
}
