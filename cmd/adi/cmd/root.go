package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "adi",
	Short: "ARM ADIv5 debug transport decoder",
	Long: `Decode captured SWD or JTAG wire traffic into ADIv5 Debug Port and
Access Port register transactions, and reconstruct the live DP/AP register
state they imply.

Examples:
  adi swd capture.vcd                     # Decode an SWD capture
  adi swd --clk clk --dio io capture.vcd  # Map non-default signal names
  adi jtag --dump capture.vcd             # Decode JTAG, dump the register model
  adi probes                              # List attached debug probes`,
	Version: "0.3.0",
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
