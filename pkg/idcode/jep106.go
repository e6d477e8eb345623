package idcode

import "fmt"

// jep106 maps the full 11-bit manufacturer field of an IDCODE, continuation
// count included, to the designer it names. The list covers the vendors that
// show up on ARM debug chains; anything else falls through to a formatted
// placeholder.
var jep106 = map[uint16]Manufacturer{
	0x020: {Code: 0x020, Name: "STMicroelectronics", Abbreviation: "STM", Country: "FR"},
	0x025: {Code: 0x025, Name: "Analog Devices", Abbreviation: "ADI", Country: "US"},
	0x034: {Code: 0x034, Name: "Cypress", Abbreviation: "Cypress", Country: "US"},
	0x049: {Code: 0x049, Name: "Xilinx", Abbreviation: "Xilinx", Country: "US"},
	0x06e: {Code: 0x06e, Name: "Altera", Abbreviation: "Altera", Country: "US"},
	0x015: {Code: 0x015, Name: "NXP (Philips)", Abbreviation: "NXP", Country: "NL"},
	0x017: {Code: 0x017, Name: "Texas Instruments", Abbreviation: "TI", Country: "US"},
	0x01f: {Code: 0x01f, Name: "Atmel", Abbreviation: "Atmel", Country: "US"},
	0x041: {Code: 0x041, Name: "Infineon", Abbreviation: "Infineon", Country: "DE"},
	0x0bf: {Code: 0x0bf, Name: "Broadcom", Abbreviation: "Broadcom", Country: "US"},
	0x0e5: {Code: 0x0e5, Name: "GigaDevice", Abbreviation: "GD", Country: "CN"},
	0x11d: {Code: 0x11d, Name: "Lattice", Abbreviation: "Lattice", Country: "US"},
	0x12c: {Code: 0x12c, Name: "Espressif", Abbreviation: "Espressif", Country: "CN"},
	0x144: {Code: 0x144, Name: "Nordic Semiconductor", Abbreviation: "Nordic", Country: "NO"},
	0x23b: {Code: 0x23b, Name: "ARM", Abbreviation: "ARM", Country: "GB"},
	0x493: {Code: 0x493, Name: "Raspberry Pi", Abbreviation: "RPi", Country: "GB"},
	0x2ba: {Code: 0x2ba, Name: "Microchip", Abbreviation: "Microchip", Country: "US"},
}

// LookupManufacturer resolves the 11-bit IDCODE manufacturer field. The
// second return value is false when the designer is not in the table; the
// returned entry is still usable and carries the code in hex.
func LookupManufacturer(code uint16) (Manufacturer, bool) {
	if m, ok := jep106[code]; ok {
		return m, true
	}
	return Manufacturer{
		Code:         code,
		Name:         fmt.Sprintf("Unknown designer %#03x", code),
		Abbreviation: fmt.Sprintf("0x%03x", code),
	}, false
}
