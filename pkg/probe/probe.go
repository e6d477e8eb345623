// Package probe enumerates attached USB debug probes capable of producing
// the SWD and JTAG captures the decoders consume.
package probe

import (
	"context"
	"fmt"

	"github.com/google/gousb"
)

// Kind categorizes probe families.
type Kind string

const (
	KindCMSISDAP   Kind = "cmsis-dap"
	KindPicoprobe  Kind = "picoprobe"
	KindBlackMagic Kind = "black-magic"
	KindUnknown    Kind = "unknown"
)

// Info describes a detected probe.
type Info struct {
	Kind        Kind
	Description string
	VendorID    uint16
	ProductID   uint16
	Serial      string
}

// Label returns a user-friendly description for the probe.
func (i Info) Label() string {
	if i.Description != "" {
		return fmt.Sprintf("%s (%04X:%04X)", i.Description, i.VendorID, i.ProductID)
	}
	return fmt.Sprintf("Probe %04X:%04X", i.VendorID, i.ProductID)
}

// Discover enumerates connected USB devices matching known probe VID/PID
// pairs.
func Discover(ctx context.Context) ([]Info, error) {
	var results []Info
	usb := gousb.NewContext()
	defer usb.Close()

	_, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}

		if info, ok := classifyUSBDevice(desc); ok {
			results = append(results, info)
		}
		return false
	})
	if err != nil && err != gousb.ErrorAccess {
		return results, err
	}

	return results, nil
}

func classifyUSBDevice(desc *gousb.DeviceDesc) (Info, bool) {
	for _, known := range knownProbes {
		if uint16(desc.Vendor) == known.VendorID && uint16(desc.Product) == known.ProductID {
			return Info{
				Kind:        known.Kind,
				Description: known.Description,
				VendorID:    known.VendorID,
				ProductID:   known.ProductID,
			}, true
		}
	}
	return Info{}, false
}

type knownUSBDevice struct {
	VendorID    uint16
	ProductID   uint16
	Kind        Kind
	Description string
}

var knownProbes = []knownUSBDevice{
	{VendorID: 0x2e8a, ProductID: 0x000c, Kind: KindCMSISDAP, Description: "Raspberry Pi Debug Probe"},
	{VendorID: 0x0d28, ProductID: 0x0204, Kind: KindCMSISDAP, Description: "DAPLink CMSIS-DAP"},
	{VendorID: 0x1366, ProductID: 0x0101, Kind: KindCMSISDAP, Description: "SEGGER J-Link CMSIS-DAP"},
	{VendorID: 0x2e8a, ProductID: 0x000a, Kind: KindPicoprobe, Description: "PicoProbe"},
	{VendorID: 0x1d50, ProductID: 0x6018, Kind: KindBlackMagic, Description: "Black Magic Probe"},
}
