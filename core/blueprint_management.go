package core

// blueprint_management.go – administrative lifecycle operations for
// published packages: ownership transfer, gated by the package's owner
// rule rather than a single owner address, and pause/resume, which
// perform no auth check of their own.

import (
	"fmt"
	"sync"
)

const (
	sortKeyOwner  = "owner"
	sortKeyPaused = "paused"
)

// PackageManager provides administrative operations over a
// PackageRegistry's published packages, backed by the kernel's track so
// every change is staged like any other substate write and rolls back
// with the rest of the transaction on failure.
type PackageManager struct {
	mu  sync.RWMutex
	reg *PackageRegistry
}

func NewPackageManager(reg *PackageRegistry) *PackageManager {
	return &PackageManager{reg: reg}
}

// TransferOwnership reassigns a package's owner rule, requiring the
// current owner rule to be satisfied by the invoking frame's auth zone.
func (m *PackageManager) TransferOwnership(k *Kernel, zone *AuthZone, addr NodeId, newOwner AccessRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reg.mu.Lock()
	pkg, ok := m.reg.byAddr[addr]
	m.reg.mu.Unlock()
	if !ok {
		return fmt.Errorf("blueprint_management: package %s not found", addr)
	}
	ok2, err := pkg.Owner.Satisfies(zone)
	if err != nil {
		return err
	}
	if !ok2 {
		return &ApplicationError{Frame: "PackageManager.TransferOwnership", Err: fmt.Errorf("authorization denied")}
	}
	m.reg.mu.Lock()
	pkg.Owner = newOwner
	m.reg.mu.Unlock()
	k.track.Write(SubstateKey{NodeId: addr, Partition: PartitionRoleAssignment, SortKey: SortKey(sortKeyOwner)}, encodeAccessRuleMarker(newOwner))
	return nil
}

// encodeAccessRuleMarker persists a minimal marker for the owner rule
// change; the rule's full structure lives in the in-memory registry for
// the lifetime of the process, and the store keeps only an audit trail
// of the change.
func encodeAccessRuleMarker(rule AccessRule) []byte {
	return []byte{byte(rule.Kind)}
}

// PausePackage records a paused flag for a package, readable through
// IsPaused. Neither the package registry's Invoke path nor the
// processor consults the flag, so a paused package remains invokable.
func (m *PackageManager) PausePackage(k *Kernel, addr NodeId) error {
	k.track.Write(SubstateKey{NodeId: addr, Partition: PartitionMetadata, SortKey: SortKey(sortKeyPaused)}, []byte{1})
	return nil
}

func (m *PackageManager) ResumePackage(k *Kernel, addr NodeId) error {
	k.track.Write(SubstateKey{NodeId: addr, Partition: PartitionMetadata, SortKey: SortKey(sortKeyPaused)}, []byte{0})
	return nil
}

func (m *PackageManager) IsPaused(k *Kernel, addr NodeId) (bool, error) {
	v, _, err := k.track.Read(SubstateKey{NodeId: addr, Partition: PartitionMetadata, SortKey: SortKey(sortKeyPaused)})
	if err != nil {
		return false, err
	}
	return len(v) == 1 && v[0] == 1, nil
}
