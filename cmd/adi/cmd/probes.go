package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceADI/pkg/probe"
)

var probesCmd = &cobra.Command{
	Use:   "probes",
	Short: "List attached debug probes",
	Long: `Scan the USB bus for known debug probes (CMSIS-DAP adapters,
Picoprobes, Black Magic Probes) and print what was found.`,
	RunE: runProbes,
}

func init() {
	rootCmd.AddCommand(probesCmd)
}

func runProbes(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	probes, err := probe.Discover(ctx)
	if err != nil {
		return fmt.Errorf("failed to scan for probes: %w", err)
	}

	if len(probes) == 0 {
		fmt.Println("No probes found.")
		return nil
	}

	fmt.Printf("Found %d probe(s):\n", len(probes))
	for _, p := range probes {
		fmt.Printf("  %s\n", p.Label())
	}
	return nil
}
