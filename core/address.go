package core

// address.go – node identity and entity addressing.
//
// Every addressable thing in the engine (resource, package, component,
// vault, key-value store, …) is named by a NodeId: a fixed-length opaque
// identifier whose first byte is the EntityType. The entity type implies
// globality (whether the node can be referenced from outside its owning
// frame once committed) and which module surfaces (metadata, royalty,
// role assignment, …) the store attaches to it.
//
// Build-graph: no imports from elsewhere in core. Every other file in
// this package may depend on this one.

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// NodeIdLength is the fixed width of a NodeId.
const NodeIdLength = 30

// EntityType is the first byte of a NodeId. It determines the address
// family (global vs. internal) and the module surfaces attached to the
// node at globalization time.
type EntityType uint8

const (
	EntityTypeResource EntityType = iota
	EntityTypePackage
	EntityTypeNormalComponent
	EntityTypeAccountComponent
	EntityTypeIdentityComponent
	EntityTypeValidatorComponent
	EntityTypeAccessControllerComponent
	EntityTypeFungibleVault
	EntityTypeNonFungibleVault
	EntityTypeKeyValueStore
	EntityTypeInternalGenericComponent
)

// IsGlobal reports whether nodes of this entity type are addressed
// globally (reachable by reference from any frame once committed) as
// opposed to being purely internal (reachable only while owned, or
// nested inside a globalized node's substates).
func (e EntityType) IsGlobal() bool {
	switch e {
	case EntityTypeResource, EntityTypePackage, EntityTypeNormalComponent,
		EntityTypeAccountComponent, EntityTypeIdentityComponent,
		EntityTypeValidatorComponent, EntityTypeAccessControllerComponent:
		return true
	default:
		return false
	}
}

func (e EntityType) String() string {
	switch e {
	case EntityTypeResource:
		return "Resource"
	case EntityTypePackage:
		return "Package"
	case EntityTypeNormalComponent:
		return "NormalComponent"
	case EntityTypeAccountComponent:
		return "AccountComponent"
	case EntityTypeIdentityComponent:
		return "IdentityComponent"
	case EntityTypeValidatorComponent:
		return "ValidatorComponent"
	case EntityTypeAccessControllerComponent:
		return "AccessControllerComponent"
	case EntityTypeFungibleVault:
		return "FungibleVault"
	case EntityTypeNonFungibleVault:
		return "NonFungibleVault"
	case EntityTypeKeyValueStore:
		return "KeyValueStore"
	case EntityTypeInternalGenericComponent:
		return "InternalGenericComponent"
	default:
		return fmt.Sprintf("EntityType(%d)", uint8(e))
	}
}

// NodeId is the 30-byte opaque identifier of any addressable entity.
type NodeId [NodeIdLength]byte

// NewNodeId builds a NodeId from an entity type and a random/derived tail.
// The tail must be exactly NodeIdLength-1 bytes.
func NewNodeId(et EntityType, tail []byte) (NodeId, error) {
	var id NodeId
	if len(tail) != NodeIdLength-1 {
		return id, fmt.Errorf("address: tail must be %d bytes, got %d", NodeIdLength-1, len(tail))
	}
	id[0] = byte(et)
	copy(id[1:], tail)
	return id, nil
}

// EntityType extracts the entity type from the NodeId's leading byte.
func (n NodeId) EntityType() EntityType { return EntityType(n[0]) }

// IsGlobal reports whether this node's entity type is globally addressed.
func (n NodeId) IsGlobal() bool { return n.EntityType().IsGlobal() }

func (n NodeId) Bytes() []byte { b := make([]byte, NodeIdLength); copy(b, n[:]); return b }

func (n NodeId) String() string {
	return fmt.Sprintf("%s_%s", n.EntityType(), hex.EncodeToString(n[1:]))
}

// NodeIdFromBytes parses a raw 30-byte slice into a NodeId.
func NodeIdFromBytes(b []byte) (NodeId, error) {
	var id NodeId
	if len(b) != NodeIdLength {
		return id, fmt.Errorf("address: expected %d bytes, got %d", NodeIdLength, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// Address is the 30-byte NodeId of a globalized entity; distinguished
// from NodeId only by convention (an Address is always IsGlobal()==true
// once validated). Kept as a distinct name because receipts, manifests
// and CLI tooling speak in terms of "addresses", not raw node ids.
type Address = NodeId

// ErrNotGlobal is returned when an operation that requires a globally
// addressed node is given an internal one.
var ErrNotGlobal = errors.New("address: node is not globally addressed")

// AsAddress validates that a NodeId is global and returns it unchanged.
func AsAddress(id NodeId) (Address, error) {
	if !id.IsGlobal() {
		return Address{}, ErrNotGlobal
	}
	return id, nil
}

// PartitionNum names a fixed-layout sub-region of a node's substate
// space. Reserved partitions (below) are attached uniformly regardless
// of blueprint; blueprint-specific partitions start at
// FirstBlueprintPartition.
type PartitionNum uint8

const (
	PartitionTypeInfo PartitionNum = iota
	PartitionRoleAssignment
	PartitionRoyaltyConfig
	PartitionMetadata
	PartitionSchema
	PartitionBlueprintCode
	PartitionTransactionTracker
	PartitionProtocolUpdateStatus
	FirstBlueprintPartition PartitionNum = 16
)

// SortKey is an arbitrary-length byte string used to order substates
// within a partition.
type SortKey []byte

// SubstateKey fully names one stored value: (NodeId, PartitionNum, SortKey).
type SubstateKey struct {
	NodeId    NodeId
	Partition PartitionNum
	SortKey   SortKey
}

func (k SubstateKey) String() string {
	return fmt.Sprintf("%s/%d/%s", k.NodeId, k.Partition, hex.EncodeToString(k.SortKey))
}
