package main

import (
	"fmt"
	"os"

	"github.com/orbas1/radixgo/core"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func execCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec [manifest.yaml]",
		Short: "run a YAML-authored manifest as one transaction and print the receipt",
		Args:  cobra.ExactArgs(1),
		RunE:  runExec,
	}
	addStoreFlags(cmd)
	cmd.Flags().Uint8("network", 1, "network id the transaction header must match")
	cmd.Flags().Uint64("epoch", 1, "current epoch")
	cmd.Flags().Uint64("system-loan", 10_000_000, "fee reserve system loan, in cost units")
	cmd.Flags().Uint64("execution-limit", 100_000_000, "fee reserve execution cost-unit limit")
	cmd.Flags().Uint32("tip-bps", 0, "validator tip, in basis points")
	cmd.Flags().Bool("keccak", false, "hash the substate tree with keccak256 instead of sha256")
	return cmd
}

func runExec(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}
	manifest, err := core.ParseManifestYAML(data, resolveNodeHex)
	if err != nil {
		return err
	}

	store, err := openStore(cmd)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	networkId, _ := cmd.Flags().GetUint8("network")
	epoch, _ := cmd.Flags().GetUint64("epoch")
	systemLoan, _ := cmd.Flags().GetUint64("system-loan")
	executionLimit, _ := cmd.Flags().GetUint64("execution-limit")
	tipBps, _ := cmd.Flags().GetUint32("tip-bps")
	useKeccak, _ := cmd.Flags().GetBool("keccak")

	engine := core.NewEngine(store, core.EngineConfig{
		NetworkId:  networkId,
		SystemLoan: systemLoan,
		Limits:     core.DefaultTransactionLimits(),
		UseKeccak:  useKeccak,
		Logger:     logrus.StandardLogger(),
	})

	hdr := core.TransactionHeader{
		NetworkId:     networkId,
		StartEpoch:    epoch,
		EndEpoch:      epoch + 1,
		CostUnitLimit: executionLimit,
		TipBasisPoints: tipBps,
	}
	receipt, err := engine.ExecuteManifest(manifest, hdr, epoch)
	if err != nil {
		return fmt.Errorf("execute manifest: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "outcome: %s\n", receipt.Outcome)
	fmt.Fprintf(cmd.OutOrStdout(), "trace id: %s\n", receipt.TraceID)
	fmt.Fprintf(cmd.OutOrStdout(), "state root: %x\n", receipt.StateRoot)
	fmt.Fprintf(cmd.OutOrStdout(), "execution cost units: %d\n", receipt.Fees.ExecutionCostUnitsConsumed)
	if receipt.ErrorMessage != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "error: %s\n", receipt.ErrorMessage)
	}
	return nil
}
