package main

import (
	"fmt"
	"os"

	"github.com/orbas1/radixgo/core"
	"github.com/spf13/cobra"
)

func replayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay [batches.yaml]",
		Short: "resume a protocol-update batch sequence against a store",
		Args:  cobra.ExactArgs(1),
		RunE:  runReplay,
	}
	addStoreFlags(cmd)
	cmd.Flags().String("protocol-version", "", "protocol version this batch sequence belongs to")
	cmd.MarkFlagRequired("protocol-version")
	return cmd
}

func runReplay(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read batch fixture: %w", err)
	}
	batches, err := core.ParseBatchFixtures(data, resolveNodeHex)
	if err != nil {
		return err
	}

	store, err := openStore(cmd)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	version, _ := cmd.Flags().GetString("protocol-version")
	gen := core.NewBatchGenerator(version, batches)
	if err := gen.Resume(core.NewTrack(store)); err != nil {
		return fmt.Errorf("resume: %w", err)
	}

	applied := 0
	for {
		batch, ok := gen.Next()
		if !ok {
			break
		}
		track := core.NewTrack(store)
		if err := gen.CommitBatch(track, batch); err != nil {
			return fmt.Errorf("batch %s/%d: %w", batch.Group, batch.Index, err)
		}
		if err := store.Commit(track.Diff()); err != nil {
			return fmt.Errorf("batch %s/%d: commit: %w", batch.Group, batch.Index, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "committed batch %s/%d\n", batch.Group, batch.Index)
		applied++
	}
	fmt.Fprintf(cmd.OutOrStdout(), "done: %d batch(es) applied, %d already complete\n", applied, len(batches)-applied)
	return nil
}
