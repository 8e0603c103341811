package core

// manifest_yaml.go – YAML authoring for manifests, the same way
// protocol_update.go's ParseBatchFixtures lets protocol-update batches
// be authored as fixtures instead of built up instruction-by-instruction
// in Go. Used by the engine CLI's exec command.

import (
	"encoding/hex"
	"fmt"

	"gopkg.in/yaml.v3"
)

var instructionKindNames = map[string]InstructionKind{
	"take_from_worktop":          InstrTakeFromWorktop,
	"take_all_from_worktop":      InstrTakeAllFromWorktop,
	"return_to_worktop":          InstrReturnToWorktop,
	"assert_worktop_contains":    InstrAssertWorktopContains,
	"auth_zone_pop":              InstrAuthZonePop,
	"auth_zone_push":             InstrAuthZonePush,
	"auth_zone_clear":            InstrAuthZoneClear,
	"auth_zone_create_proof":     InstrAuthZoneCreateProofOfAmount,
	"clone_proof":                InstrCloneProof,
	"drop_proof":                 InstrDropProof,
	"call_function":              InstrCallFunction,
	"call_method":                InstrCallMethod,
	"call_direct_access_method":  InstrCallDirectAccessMethod,
	"mint_fungible":              InstrMintFungible,
	"burn_bucket":                InstrBurnBucket,
	"allocate_global_address":    InstrAllocateGlobalAddress,
	"yield_to_child":             InstrYieldToChild,
	"yield_to_parent":            InstrYieldToParent,
	"verify_parent":              InstrVerifyParent,
	"take_non_fungibles_from_worktop":   InstrTakeNonFungiblesFromWorktop,
	"assert_worktop_contains_any":       InstrAssertWorktopContainsAny,
	"assert_worktop_contains_exact":     InstrAssertWorktopContainsExact,
	"assert_worktop_contains_ids":       InstrAssertWorktopContainsNonFungibles,
	"assert_worktop_contains_exact_ids": InstrAssertWorktopContainsExactNonFungibles,
	"auth_zone_clear_signature_proofs":  InstrAuthZoneClearSignatureProofs,
	"mint_non_fungible":                 InstrMintNonFungible,
}

// yamlInstruction mirrors the on-disk shape of one manifest step. Only
// the fields relevant to Kind need be populated; unused fields are
// simply omitted from the fixture.
type yamlInstruction struct {
	Kind       string   `yaml:"kind"`
	Resource   string   `yaml:"resource"`
	Amount     string   `yaml:"amount"`
	BucketSlot string   `yaml:"bucket_slot"`
	ProofSlot  string   `yaml:"proof_slot"`
	NewSlot    string   `yaml:"new_slot"`
	Package    string   `yaml:"package"`
	Blueprint  string   `yaml:"blueprint"`
	Function   string   `yaml:"function"`
	Receiver   string   `yaml:"receiver"`
	ArgSlots   []string `yaml:"arg_slots"`

	// Ids carries non-fungible local ids in their textual forms
	// (`#1#`, `<name>`, `[hex]`, `{hex}`) for the take/assert/mint
	// non-fungible instruction family.
	Ids []string `yaml:"ids"`

	// SubintentIndex and PayloadHex back yield_to_child/verify_parent:
	// the former selects a manifest from the enclosing Subintents list,
	// the latter carries verify_parent's expected parent-intent-hash.
	SubintentIndex int    `yaml:"subintent_index"`
	PayloadHex     string `yaml:"payload_hex"`
}

type yamlManifest struct {
	Instructions []yamlInstruction `yaml:"instructions"`
	Subintents   []yamlManifest    `yaml:"subintents"`
}

// ParseManifestYAML decodes a YAML-authored manifest fixture into a
// Manifest, resolving every address-bearing field through resolveNode
// (test fixtures typically key off short mnemonic names rather than raw
// hex node ids).
func ParseManifestYAML(data []byte, resolveNode func(name string) (NodeId, error)) (*Manifest, error) {
	var raw yamlManifest
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("manifest_yaml: parse: %w", err)
	}

	resolve := func(name string) (NodeId, error) {
		if name == "" {
			return NodeId{}, nil
		}
		return resolveNode(name)
	}
	return buildManifest(raw, resolve)
}

func buildManifest(raw yamlManifest, resolve func(name string) (NodeId, error)) (*Manifest, error) {
	m := &Manifest{Instructions: make([]Instruction, 0, len(raw.Instructions))}
	for i, ri := range raw.Instructions {
		kind, ok := instructionKindNames[ri.Kind]
		if !ok {
			return nil, fmt.Errorf("manifest_yaml: instruction %d: unknown kind %q", i, ri.Kind)
		}
		instr := Instruction{
			Kind:           kind,
			BucketSlot:     ri.BucketSlot,
			ProofSlot:      ri.ProofSlot,
			NewSlot:        ri.NewSlot,
			Blueprint:      ri.Blueprint,
			Function:       ri.Function,
			ArgSlots:       ri.ArgSlots,
			SubintentIndex: ri.SubintentIndex,
		}
		var err error
		if instr.Resource, err = resolve(ri.Resource); err != nil {
			return nil, fmt.Errorf("manifest_yaml: instruction %d: resource: %w", i, err)
		}
		if instr.Package, err = resolve(ri.Package); err != nil {
			return nil, fmt.Errorf("manifest_yaml: instruction %d: package: %w", i, err)
		}
		if instr.Receiver, err = resolve(ri.Receiver); err != nil {
			return nil, fmt.Errorf("manifest_yaml: instruction %d: receiver: %w", i, err)
		}
		if ri.Amount != "" {
			if instr.Amount, err = DecimalFromString(ri.Amount); err != nil {
				return nil, fmt.Errorf("manifest_yaml: instruction %d: amount: %w", i, err)
			}
		} else {
			instr.Amount = DecimalZero()
		}
		if ri.PayloadHex != "" {
			if instr.Payload, err = hex.DecodeString(ri.PayloadHex); err != nil {
				return nil, fmt.Errorf("manifest_yaml: instruction %d: payload_hex: %w", i, err)
			}
		}
		for _, raw := range ri.Ids {
			id, err := ParseNonFungibleLocalId(raw)
			if err != nil {
				return nil, fmt.Errorf("manifest_yaml: instruction %d: %w", i, err)
			}
			instr.Ids = append(instr.Ids, id)
		}
		m.Instructions = append(m.Instructions, instr)
	}
	for i, rs := range raw.Subintents {
		sub, err := buildManifest(rs, resolve)
		if err != nil {
			return nil, fmt.Errorf("manifest_yaml: subintent %d: %w", i, err)
		}
		m.Subintents = append(m.Subintents, sub)
	}
	return m, nil
}
