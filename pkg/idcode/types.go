package idcode

import "fmt"

// IDCode represents a parsed IEEE 1149.1 JTAG IDCODE
type IDCode struct {
	Raw              uint32 // full IDCODE
	Version          uint8  // [31:28]
	PartNumber       uint16 // [27:12]
	ManufacturerCode uint16 // [11:1] JEP106
	HasIDCode        bool   // bit 0 == 1
}

// Manufacturer represents a JEP106 manufacturer entry
type Manufacturer struct {
	Code         uint16 // JEP106 code
	Name         string // "NXP Semiconductors"
	Abbreviation string // "NXP"
	Country      string // optional
}

// String renders the IDCODE the way it is shown on annotation tracks:
// manufacturer abbreviation, part number and version.
func (id IDCode) String() string {
	m, _ := LookupManufacturer(id.ManufacturerCode)
	return fmt.Sprintf("%s part %04x rev %d", m.Abbreviation, id.PartNumber, id.Version)
}
