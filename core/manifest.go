package core

// manifest.go – the transaction manifest: an ordered list of
// instructions the processor interprets one at a time against a shared
// worktop, auth zone, and set of named bucket/proof slots.

import "fmt"

// InstructionKind enumerates every manifest instruction the processor
// can interpret.
type InstructionKind uint8

const (
	InstrTakeFromWorktop InstructionKind = iota
	InstrTakeAllFromWorktop
	InstrReturnToWorktop
	InstrAssertWorktopContains
	InstrAuthZonePop
	InstrAuthZonePush
	InstrAuthZoneClear
	InstrAuthZoneCreateProofOfAmount
	InstrCloneProof
	InstrDropProof
	InstrCallFunction
	InstrCallMethod
	InstrCallDirectAccessMethod
	InstrMintFungible
	InstrBurnBucket
	InstrAllocateGlobalAddress
	InstrYieldToChild
	InstrYieldToParent
	InstrVerifyParent
	InstrTakeNonFungiblesFromWorktop
	InstrAssertWorktopContainsAny
	InstrAssertWorktopContainsExact
	InstrAssertWorktopContainsNonFungibles
	InstrAssertWorktopContainsExactNonFungibles
	InstrAuthZoneClearSignatureProofs
	InstrMintNonFungible
)

// Instruction is one manifest step. Only the fields relevant to Kind
// are populated; the processor switches on Kind to know which.
type Instruction struct {
	Kind InstructionKind

	Resource NodeId
	Amount   Decimal
	Ids      []NonFungibleLocalId

	BucketSlot string
	ProofSlot  string
	NewSlot    string

	Package    NodeId
	Blueprint  string
	Function   string
	Receiver   NodeId
	ArgSlots   []string // bucket/proof slots consumed as call arguments, in order
	Payload    []byte   // pre-encoded scalar arguments, if any

	SubintentIndex int // for yield-to-child / verify-parent
}

// Manifest is an ordered instruction list plus the blobs it references
// (the blob table lets large payloads be referenced by index rather
// than inlined repeatedly, mirroring how the original system separates
// instructions from attached blobs).
type Manifest struct {
	Instructions []Instruction
	Blobs        [][]byte

	// Subintents holds the manifests of composed child intents (v2),
	// indexed by Instruction.SubintentIndex from a yield_to_child or
	// verify_parent instruction in this manifest.
	Subintents []*Manifest
}

func (m *Manifest) String() string {
	return fmt.Sprintf("Manifest{%d instructions, %d blobs}", len(m.Instructions), len(m.Blobs))
}
