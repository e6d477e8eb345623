package jtag

import (
	"github.com/OpenTraceLab/OpenTraceADI/pkg/adiv5"
	"github.com/OpenTraceLab/OpenTraceADI/pkg/idcode"
)

// Device is one member of the scan chain, created when its ID code is read
// out during topology discovery and cleared on TEST-LOGIC-RESET.
type Device struct {
	Index  int
	IDCode uint32
	Desc   idcode.Description

	// Bit counts locating this device's DR and IR slices within a whole
	// chain exchange.
	DRPrescan  int
	DRPostscan int
	IRPrescan  int
	IRPostscan int
	IRLength   int

	// Quirk overrides IR auto-discovery with a fixed length and expected
	// capture pattern.
	Quirk *idcode.IRQuirk

	// Insn is the instruction currently loaded in this device's IR.
	Insn uint32

	// ADI is set for devices identified as ARM ADIv5 JTAG-DPs and decodes
	// their DPACC/APACC traffic.
	ADI *adiv5.TAPDecoder
}

// DRLength reports the device's current DR scan length. ADIv5 TAPs know it
// from their instruction; any other device is only predictable in BYPASS,
// where IEEE 1149.1 mandates an all-ones IR and a single-bit DR.
func (d *Device) DRLength() (int, bool) {
	if d.ADI != nil {
		return d.ADI.DRLength()
	}
	if d.IRLength > 0 && d.Insn == (uint32(1)<<d.IRLength)-1 {
		return 1, true
	}
	return 0, false
}

// SetInstruction records a new IR value scanned into this device.
func (d *Device) SetInstruction(begin, end uint64, value uint32) {
	d.Insn = value
	if d.ADI != nil {
		d.ADI.SetInstruction(begin, end, value, d.IRLength)
	}
}
