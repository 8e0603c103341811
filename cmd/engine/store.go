package main

import (
	"encoding/hex"
	"fmt"

	"github.com/orbas1/radixgo/core"
	"github.com/spf13/cobra"
)

// openStore resolves the --store flag shared by exec and replay into a
// core.Store: "mem" (the default, nothing persists past
// process exit) or a filesystem path opened as a bbolt database.
func openStore(cmd *cobra.Command) (core.Store, error) {
	path, err := cmd.Flags().GetString("store")
	if err != nil {
		return nil, err
	}
	if path == "" || path == "mem" {
		return core.NewMemStore(), nil
	}
	return core.OpenBoltStore(path)
}

func addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().String("store", "mem", "substate store: \"mem\" or a bbolt file path")
}

// resolveNodeHex parses a NodeId given as raw hex (60 hex chars, the
// full 30-byte address including its leading entity-type byte) — the
// form fixture authors use when they don't yet have an address book to
// resolve mnemonic names against.
func resolveNodeHex(name string) (core.NodeId, error) {
	b, err := hex.DecodeString(name)
	if err != nil {
		return core.NodeId{}, fmt.Errorf("invalid node id hex %q: %w", name, err)
	}
	return core.NodeIdFromBytes(b)
}
