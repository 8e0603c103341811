package core

import "testing"

func newTestKernel(t *testing.T, seed byte) *Kernel {
	t.Helper()
	track := NewTrack(NewMemStore())
	fee := NewFeeReserve(10_000_000, 10_000_000, 0)
	modules := DefaultModuleChain(DefaultTransactionLimits(), nil)
	return NewKernel(track, fee, modules, NewNodeIdAllocator([32]byte{seed}))
}

func TestInvokeDeniesUnauthorizedActor(t *testing.T) {
	k := newTestKernel(t, 1)
	WithAuthorityCheck(k.modules, func(k *Kernel, actor Actor) (bool, error) {
		return actor.Blueprint == "Allowed", nil
	})

	if _, err := k.Invoke(Actor{Blueprint: "Forbidden"}, InvokeArgs{}, func(k *Kernel) ([]NodeId, map[NodeId]struct{}, []byte, error) {
		t.Fatalf("body should not run for a denied actor")
		return nil, nil, nil, nil
	}); err == nil {
		t.Fatalf("expected authorization error")
	}

	ran := false
	if _, err := k.Invoke(Actor{Blueprint: "Allowed"}, InvokeArgs{}, func(k *Kernel) ([]NodeId, map[NodeId]struct{}, []byte, error) {
		ran = true
		return nil, nil, nil, nil
	}); err != nil {
		t.Fatalf("Invoke for allowed actor: %v", err)
	}
	if !ran {
		t.Fatalf("allowed actor's body did not run")
	}
}

func TestInvokeRejectsUnownedArgument(t *testing.T) {
	k := newTestKernel(t, 2)
	foreignTail := make([]byte, NodeIdLength-1)
	foreignTail[0] = 0xFF
	foreign, _ := NewNodeId(EntityTypeInternalGenericComponent, foreignTail)

	_, err := k.Invoke(Actor{Blueprint: "X"}, InvokeArgs{Owned: []NodeId{foreign}}, func(k *Kernel) ([]NodeId, map[NodeId]struct{}, []byte, error) {
		return nil, nil, nil, nil
	})
	if err == nil {
		t.Fatalf("expected error: owned node not held by caller")
	}
}

func TestInvokeDetectsOrphanedNode(t *testing.T) {
	k := newTestKernel(t, 3)
	_, err := k.Invoke(Actor{Blueprint: "X"}, InvokeArgs{}, func(k *Kernel) ([]NodeId, map[NodeId]struct{}, []byte, error) {
		if _, err := k.CreateNode(EntityTypeInternalGenericComponent); err != nil {
			return nil, nil, nil, err
		}
		// created but neither globalized nor returned: must be flagged orphaned.
		return nil, nil, nil, nil
	})
	if err == nil {
		t.Fatalf("expected ErrNodeOrphaned")
	}
}

func TestInvokeAllowsGlobalizedNodeToSurviveWithoutReturn(t *testing.T) {
	k := newTestKernel(t, 4)
	_, err := k.Invoke(Actor{Blueprint: "X"}, InvokeArgs{}, func(k *Kernel) ([]NodeId, map[NodeId]struct{}, []byte, error) {
		id, err := k.CreateNode(EntityTypeNormalComponent)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := k.GlobalizeNode(id); err != nil {
			return nil, nil, nil, err
		}
		return nil, nil, nil, nil
	})
	if err != nil {
		t.Fatalf("globalized node should not be flagged orphaned: %v", err)
	}
}

func TestInvokeMaxCallDepthExceeded(t *testing.T) {
	k := newTestKernel(t, 5)
	var recurse func(depth int) error
	recurse = func(depth int) error {
		_, err := k.Invoke(Actor{Blueprint: "Recurse"}, InvokeArgs{}, func(k *Kernel) ([]NodeId, map[NodeId]struct{}, []byte, error) {
			return nil, nil, nil, recurse(depth + 1)
		})
		return err
	}
	err := recurse(0)
	if err == nil {
		t.Fatalf("expected max call depth exceeded error")
	}
}

func TestLockSubstateExclusiveMutableLock(t *testing.T) {
	k := newTestKernel(t, 6)
	resourceTail := make([]byte, NodeIdLength-1)
	id, _ := NewNodeId(EntityTypeResource, resourceTail)
	key := SubstateKey{NodeId: id, Partition: PartitionMetadata, SortKey: SortKey("k")}

	h1, err := k.LockSubstate(key, LockFlags{Mutable: true})
	if err != nil {
		t.Fatalf("first lock: %v", err)
	}
	if _, err := k.LockSubstate(key, LockFlags{}); err == nil {
		t.Fatalf("expected second lock on a mutably-locked substate to fail")
	}
	if err := k.UnlockSubstate(h1); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if _, err := k.LockSubstate(key, LockFlags{Mutable: true}); err != nil {
		t.Fatalf("lock after unlock: %v", err)
	}
}
