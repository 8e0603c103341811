package core

// bech32.go – address/hash formatting. This is pure display: it
// has no bearing on determinism or consensus, but every receipt and CLI
// command needs to print addresses and transaction hashes, so a thin
// bech32m wrapper is included rather than left to ad-hoc hex dumps.

import (
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
)

// HRP is a bech32 human-readable prefix. The runtime uses distinct
// prefixes per address/hash kind so a malformed or truncated value
// never decodes into the wrong domain.
type HRP string

const (
	HRPAccount          HRP = "account_rdx"
	HRPComponent        HRP = "component_rdx"
	HRPPackage          HRP = "package_rdx"
	HRPResource         HRP = "resource_rdx"
	HRPIntentHash       HRP = "txid_rdx"
	HRPSignedIntentHash HRP = "signedintent_rdx"
	HRPNotarizedTxHash  HRP = "notarizedtransaction_rdx"
)

// EncodeAddress bech32m-encodes a NodeId under the HRP matching its
// entity type.
func EncodeAddress(id NodeId) (string, error) {
	hrp, err := hrpForEntityType(id.EntityType())
	if err != nil {
		return "", err
	}
	return encodeM(string(hrp), id.Bytes())
}

// EncodeHash bech32m-encodes an arbitrary 32-byte hash (intent,
// signed-intent, or notarized-transaction hash) under the given HRP.
func EncodeHash(hrp HRP, hash [32]byte) (string, error) {
	return encodeM(string(hrp), hash[:])
}

func encodeM(hrp string, data []byte) (string, error) {
	converted, err := bech32.ConvertBits(data, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("bech32: convert bits: %w", err)
	}
	return bech32.EncodeM(hrp, converted)
}

// DecodeAddress reverses EncodeAddress, validating the HRP matches one
// of the known address prefixes and returning the underlying NodeId.
func DecodeAddress(s string) (NodeId, error) {
	hrp, data, err := bech32.DecodeNoLimit(s)
	if err != nil {
		return NodeId{}, fmt.Errorf("bech32: decode: %w", err)
	}
	if !knownAddressHRP(HRP(hrp)) {
		return NodeId{}, fmt.Errorf("bech32: unrecognized address prefix %q", hrp)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return NodeId{}, fmt.Errorf("bech32: convert bits: %w", err)
	}
	return NodeIdFromBytes(raw)
}

func hrpForEntityType(et EntityType) (HRP, error) {
	switch {
	case et == EntityTypeAccountComponent:
		return HRPAccount, nil
	case et == EntityTypePackage:
		return HRPPackage, nil
	case et == EntityTypeResource:
		return HRPResource, nil
	case et.IsGlobal():
		return HRPComponent, nil
	default:
		return "", fmt.Errorf("bech32: entity type %v is not a global address", et)
	}
}

func knownAddressHRP(h HRP) bool {
	switch h {
	case HRPAccount, HRPComponent, HRPPackage, HRPResource:
		return true
	default:
		return false
	}
}
