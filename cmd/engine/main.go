package main

// cmd/engine is the operator-facing CLI for the deterministic execution
// runtime: running a manifest against a store, inspecting/driving
// per-package sandboxes, and replaying a protocol-update batch sequence
// with resumable checkpoints.

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{Use: "engine", Short: "deterministic smart-contract execution runtime"}
	rootCmd.AddCommand(execCmd())
	rootCmd.AddCommand(sandboxCmd())
	rootCmd.AddCommand(replayCmd())
	if err := rootCmd.Execute(); err != nil {
		logrus.WithError(err).Error("engine command failed")
		os.Exit(1)
	}
}
