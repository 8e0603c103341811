package main

import (
	"fmt"

	"github.com/orbas1/radixgo/core"
	"github.com/spf13/cobra"
)

// sandboxCmd groups operator commands over one process-lifetime
// Sandbox registry. Since every invocation of this CLI is a fresh
// process, its one subcommand, start, only demonstrates the registry's
// lifecycle within a single command — a long-running engine process wires the
// same Sandbox into its own command/RPC surface instead.
func sandboxCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "sandbox", Short: "inspect per-package execution environments"}

	start := &cobra.Command{
		Use:   "start [package-hex]",
		Short: "register a package's sandbox and report its starting status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pkg, err := resolveNodeHex(args[0])
			if err != nil {
				return err
			}
			memPages, _ := cmd.Flags().GetUint32("mem-pages")
			costCap, _ := cmd.Flags().GetUint64("cost-cap")
			sb := core.NewSandbox(core.NewWasmHost(), core.NewNativeVM())
			if err := sb.Start(pkg, memPages, costCap); err != nil {
				return err
			}
			info, _ := sb.Status(pkg)
			fmt.Fprintf(cmd.OutOrStdout(), "started %s: active=%v mem_pages=%d cost_cap=%d\n", pkg, info.Active, info.MemoryLimit, info.CostUnitCap)
			return nil
		},
	}
	start.Flags().Uint32("mem-pages", core.MaxMemoryPages, "wasm linear memory page cap")
	start.Flags().Uint64("cost-cap", 0, "cost-unit cap, 0 for unbounded")
	cmd.AddCommand(start)

	return cmd
}
