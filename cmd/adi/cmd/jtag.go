package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceADI/pkg/adiv5"
	"github.com/OpenTraceLab/OpenTraceADI/pkg/jtag"
	"github.com/OpenTraceLab/OpenTraceADI/pkg/vcd"
)

var (
	jtagTCKName string
	jtagTMSName string
	jtagTDIName string
	jtagTDOName string
	jtagDump    bool
)

var jtagCmd = &cobra.Command{
	Use:   "jtag <capture.vcd>",
	Short: "Decode a JTAG capture into ADIv5 register transactions",
	Long: `Decode a four-wire JTAG capture from a VCD file.

The decoder discovers the scan chain from the IDCODE scan after
Test-Logic-Reset, works out instruction register lengths, then follows
DPACC/APACC exchanges on any ARM debug ports it finds. Use the signal
name flags when the capture's wire names differ from the defaults.`,
	Args: cobra.ExactArgs(1),
	RunE: runJTAG,
}

func init() {
	rootCmd.AddCommand(jtagCmd)
	jtagCmd.Flags().StringVar(&jtagTCKName, "tck", "tck", "TCK signal name in the capture")
	jtagCmd.Flags().StringVar(&jtagTMSName, "tms", "tms", "TMS signal name in the capture")
	jtagCmd.Flags().StringVar(&jtagTDIName, "tdi", "tdi", "TDI signal name in the capture")
	jtagCmd.Flags().StringVar(&jtagTDOName, "tdo", "tdo", "TDO signal name in the capture")
	jtagCmd.Flags().BoolVar(&jtagDump, "dump", false, "dump the reconstructed DP/AP register state")
}

func runJTAG(cmd *cobra.Command, args []string) error {
	parser, err := vcd.NewParser()
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}
	doc, err := parser.ParseFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", args[0], err)
	}

	steps, err := doc.Extract(jtagTCKName, jtagTMSName, jtagTDIName, jtagTDOName)
	if err != nil {
		return err
	}
	if len(steps) == 0 {
		return fmt.Errorf("no value changes for the JTAG signals in %s", args[0])
	}

	emit := annotationPrinter()
	model := adiv5.NewModel(emit)
	framer := jtag.NewFramer(jtag.NewChainDecoder(emit, transactionPrinter(model)))

	for _, step := range steps {
		framer.Sample(step.Time, step.Values[0], step.Values[1], step.Values[2], step.Values[3])
	}

	if verbose {
		for _, dev := range framer.Chain().Devices() {
			fmt.Printf("TAP %d: %s\n", dev.Index, dev.Desc.Description)
		}
	}
	if jtagDump {
		dumpModel(model)
	}
	return nil
}
