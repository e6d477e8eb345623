package idcode

// ParseIDCode splits a raw 32-bit device identification register into its
// IEEE 1149.1 fields. Bit 0 distinguishes a real IDCODE from a BYPASS
// capture, so callers should check HasIDCode before trusting the rest.
func ParseIDCode(raw uint32) IDCode {
	return IDCode{
		Raw:              raw,
		Version:          uint8(raw >> 28),
		PartNumber:       uint16(raw >> 12),
		ManufacturerCode: uint16(raw>>1) & 0x7ff,
		HasIDCode:        raw&1 == 1,
	}
}

// ContinuationCode is the number of JEP106 continuation bytes preceding the
// identity byte. ARM documentation quotes designers this way: 0x23b is
// continuation 4, identity 0x3b.
func (id IDCode) ContinuationCode() uint8 {
	return uint8(id.ManufacturerCode >> 7)
}

// IdentityCode is the 7-bit JEP106 identity byte without its parity bit.
func (id IDCode) IdentityCode() uint8 {
	return uint8(id.ManufacturerCode & 0x7f)
}
