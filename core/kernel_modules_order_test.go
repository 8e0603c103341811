package core

import "testing"

func TestDefaultModuleChainOrder(t *testing.T) {
	chain := DefaultModuleChain(DefaultTransactionLimits(), nil)
	want := []string{"TransactionLimits", "Costing", "Auth", "NodeMove", "LoggerEvents"}
	if len(chain) != len(want) {
		t.Fatalf("chain length = %d, want %d", len(chain), len(want))
	}
	for i, m := range chain {
		if m.Name() != want[i] {
			t.Errorf("chain[%d].Name() = %q, want %q", i, m.Name(), want[i])
		}
	}
}

// TestCostingRunsBeforeAuthChargesAttempt pins the "costing before auth" ordering
// decision: a call that will be denied by auth must still be charged
// for the attempt, so Costing's OnInvokeEnter must run first in the
// chain and leave its charge applied even though Auth later aborts.
func TestCostingRunsBeforeAuthChargesAttempt(t *testing.T) {
	track := NewTrack(NewMemStore())
	fee := NewFeeReserve(1_000_000, 1_000_000, 0)
	chain := DefaultModuleChain(DefaultTransactionLimits(), nil)
	WithAuthorityCheck(chain, func(k *Kernel, actor Actor) (bool, error) { return false, nil })
	k := NewKernel(track, fee, chain, NewNodeIdAllocator([32]byte{1}))

	_, err := k.Invoke(Actor{Blueprint: "Denied"}, InvokeArgs{}, func(k *Kernel) ([]NodeId, map[NodeId]struct{}, []byte, error) {
		return nil, nil, nil, nil
	})
	if err == nil {
		t.Fatalf("expected auth denial error")
	}
	if fee.executionUsed == 0 {
		t.Fatalf("expected costing to have charged execution units before auth denied the call")
	}
}

func TestDefaultModuleChainAllowsCallByDefault(t *testing.T) {
	track := NewTrack(NewMemStore())
	fee := NewFeeReserve(1_000_000, 1_000_000, 0)
	chain := DefaultModuleChain(DefaultTransactionLimits(), nil)
	k := NewKernel(track, fee, chain, NewNodeIdAllocator([32]byte{2}))

	ran := false
	_, err := k.Invoke(Actor{Blueprint: "Allowed"}, InvokeArgs{}, func(k *Kernel) ([]NodeId, map[NodeId]struct{}, []byte, error) {
		ran = true
		return nil, nil, nil, nil
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !ran {
		t.Fatalf("invoke body did not run")
	}
}
