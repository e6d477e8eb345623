package idcode

// IRQuirk describes a device whose instruction register cannot be
// auto-discovered by the usual "bit 0 is 1, next 1 terminates" convention.
// The chain decoder validates the captured IR bits against Value instead.
type IRQuirk struct {
	Length int
	Value  uint32
}

// Description identifies a known scan-chain device matched by masked IDCODE.
type Description struct {
	IDCode      uint32
	Mask        uint32
	Mfr         string
	Description string
	Quirk       *IRQuirk
}

// ADIv5DPVersion extracts the JTAG-DP protocol version from an ARM ADIv5
// DP IDCODE. Only meaningful when IsADIv5DP reports true.
func ADIv5DPVersion(raw uint32) int {
	return int((raw >> 12) & 0xf)
}

// armADIv5Mask/armADIv5Value match the ARM JTAG-DP part family across all
// protocol versions (0x0ba0V477 with V the version nibble).
const (
	armADIv5Mask  = 0x0fff0fff
	armADIv5Value = 0x0ba00477
)

// IsADIv5DP reports whether the IDCODE belongs to an ARM ADIv5 JTAG-DP.
func IsADIv5DP(raw uint32) bool {
	return raw&armADIv5Mask == armADIv5Value
}

// knownDevices lists the devices the decoders have special knowledge of:
// the ARM debug ports that own an ADIv5 decoder, and parts with IR quirks.
var knownDevices = []Description{
	{
		IDCode:      0x0ba00477,
		Mask:        0x0fffffff,
		Mfr:         "ARM",
		Description: "ADIv5 JTAG-DPv0",
	},
	{
		IDCode:      0x0ba01477,
		Mask:        0x0fffffff,
		Mfr:         "ARM",
		Description: "ADIv5 JTAG-DPv1",
	},
	{
		IDCode:      0x0ba02477,
		Mask:        0x0fffffff,
		Mfr:         "ARM",
		Description: "ADIv5 JTAG-DPv2",
	},
	{
		IDCode:      0x03600093,
		Mask:        0x0fe00fff,
		Mfr:         "Xilinx",
		Description: "FPGA",
		Quirk:       &IRQuirk{Length: 6, Value: 0x11},
	},
}

// Identify matches a raw IDCODE against the known-device table. When nothing
// matches it falls back to the JEP106 manufacturer so every device still gets
// a readable description.
func Identify(raw uint32) Description {
	for _, d := range knownDevices {
		if raw&d.Mask == d.IDCode&d.Mask {
			return d
		}
	}
	id := ParseIDCode(raw)
	m, _ := LookupManufacturer(id.ManufacturerCode)
	return Description{
		IDCode:      raw,
		Mask:        0xffffffff,
		Mfr:         m.Abbreviation,
		Description: "Unknown device",
	}
}
