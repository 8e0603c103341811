package core

import "testing"

func testUpdates(n NodeId, p PartitionNum, entries map[string][]byte) *StateUpdates {
	su := NewStateUpdates()
	var ops []DeltaOp
	for k, v := range entries {
		ops = append(ops, DeltaOp{SortKey: SortKey(k), Value: v})
	}
	su.SetPartitionDelta(n, p, ops)
	return su
}

func TestHashTreeApplySameUpdatesTwiceIsDeterministic(t *testing.T) {
	node := testResourceAddr(t, 1)
	entries := map[string][]byte{"a": []byte("1"), "b": []byte("2")}

	t1 := NewHashTree(HashTreeConfig{})
	root1, _, err := t1.ApplyStateUpdates(testUpdates(node, PartitionMetadata, entries))
	if err != nil {
		t.Fatalf("ApplyStateUpdates: %v", err)
	}

	t2 := NewHashTree(HashTreeConfig{})
	root2, _, err := t2.ApplyStateUpdates(testUpdates(node, PartitionMetadata, entries))
	if err != nil {
		t.Fatalf("ApplyStateUpdates: %v", err)
	}

	if root1 != root2 {
		t.Errorf("identical updates from identical starting trees produced different roots: %x != %x", root1, root2)
	}
}

func TestHashTreeRootChangesWithContent(t *testing.T) {
	node := testResourceAddr(t, 1)
	tree := NewHashTree(HashTreeConfig{})
	root1, _, err := tree.ApplyStateUpdates(testUpdates(node, PartitionMetadata, map[string][]byte{"a": []byte("1")}))
	if err != nil {
		t.Fatalf("ApplyStateUpdates: %v", err)
	}
	root2, _, err := tree.ApplyStateUpdates(testUpdates(node, PartitionMetadata, map[string][]byte{"a": []byte("2")}))
	if err != nil {
		t.Fatalf("ApplyStateUpdates: %v", err)
	}
	if root1 == root2 {
		t.Errorf("changing a leaf's value did not change the root")
	}
}

func TestHashTreeResetRecordsStalePart(t *testing.T) {
	node := testResourceAddr(t, 1)
	tree := NewHashTree(HashTreeConfig{})
	if _, _, err := tree.ApplyStateUpdates(testUpdates(node, PartitionMetadata, map[string][]byte{"a": []byte("1")})); err != nil {
		t.Fatalf("first apply: %v", err)
	}

	su := NewStateUpdates()
	su.SetPartitionReset(node, PartitionMetadata, []DeltaOp{{SortKey: SortKey("b"), Value: []byte("2")}})
	_, stale, err := tree.ApplyStateUpdates(su)
	if err != nil {
		t.Fatalf("reset apply: %v", err)
	}
	if len(stale) != 1 || stale[0].NodeId != node || stale[0].Partition != PartitionMetadata {
		t.Fatalf("stale parts = %+v, want one entry for the reset partition", stale)
	}

	hash, _, found := tree.SubstateWitness(SubstateKey{NodeId: node, Partition: PartitionMetadata, SortKey: SortKey("a")})
	if found {
		t.Errorf("reset should have dropped the prior entry, found hash %x", hash)
	}
}

func TestHashTreeOddLevelPaddingStillConverges(t *testing.T) {
	node := testResourceAddr(t, 1)
	tree := NewHashTree(HashTreeConfig{})
	entries := map[string][]byte{"a": []byte("1"), "b": []byte("2"), "c": []byte("3")}
	if _, _, err := tree.ApplyStateUpdates(testUpdates(node, PartitionMetadata, entries)); err != nil {
		t.Fatalf("ApplyStateUpdates with an odd leaf count: %v", err)
	}
	if tree.Root() == ([32]byte{}) {
		t.Errorf("root should not be the zero value after a real update")
	}
}

func TestHashTreeKeccakConfigProducesDifferentRoot(t *testing.T) {
	node := testResourceAddr(t, 1)
	entries := map[string][]byte{"a": []byte("1")}

	sha := NewHashTree(HashTreeConfig{})
	shaRoot, _, _ := sha.ApplyStateUpdates(testUpdates(node, PartitionMetadata, entries))

	kec := NewHashTree(HashTreeConfig{UseKeccak: true})
	kecRoot, _, _ := kec.ApplyStateUpdates(testUpdates(node, PartitionMetadata, entries))

	if shaRoot == kecRoot {
		t.Errorf("sha256 and keccak256 configurations produced the same root")
	}
}

func TestHashTreeSubstateWitnessTracksVersion(t *testing.T) {
	node := testResourceAddr(t, 1)
	tree := NewHashTree(HashTreeConfig{})
	tree.ApplyStateUpdates(testUpdates(node, PartitionMetadata, map[string][]byte{"a": []byte("1")}))
	_, v1, _ := tree.SubstateWitness(SubstateKey{NodeId: node, Partition: PartitionMetadata, SortKey: SortKey("a")})
	tree.ApplyStateUpdates(testUpdates(node, PartitionMetadata, map[string][]byte{"a": []byte("2")}))
	_, v2, _ := tree.SubstateWitness(SubstateKey{NodeId: node, Partition: PartitionMetadata, SortKey: SortKey("a")})
	if v2 <= v1 {
		t.Errorf("version did not advance across updates: v1=%d v2=%d", v1, v2)
	}
}
