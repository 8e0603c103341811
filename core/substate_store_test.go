package core

import (
	"path/filepath"
	"testing"
)

func testKey(n NodeId, p PartitionNum, sortKey string) SubstateKey {
	return SubstateKey{NodeId: n, Partition: p, SortKey: SortKey(sortKey)}
}

func TestMemStoreDeltaCommitAndList(t *testing.T) {
	s := NewMemStore()
	node := testResourceAddr(t, 1)

	su := NewStateUpdates()
	su.SetPartitionDelta(node, PartitionMetadata, []DeltaOp{
		{SortKey: SortKey("a"), Value: []byte("1")},
		{SortKey: SortKey("b"), Value: []byte("2")},
	})
	if err := s.Commit(su); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	v, found, err := s.Get(testKey(node, PartitionMetadata, "a"))
	if err != nil || !found || string(v) != "1" {
		t.Fatalf("Get(a) = %q, %v, %v", v, found, err)
	}

	entries, err := s.ListEntries(node, PartitionMetadata)
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(entries) != 2 || entries[0].SortKey != SortKey("a") || entries[1].SortKey != SortKey("b") {
		t.Fatalf("ListEntries = %+v, want [a b] in order", entries)
	}
}

func TestMemStoreDeleteDelta(t *testing.T) {
	s := NewMemStore()
	node := testResourceAddr(t, 1)

	put := NewStateUpdates()
	put.SetPartitionDelta(node, PartitionMetadata, []DeltaOp{{SortKey: SortKey("a"), Value: []byte("1")}})
	s.Commit(put)

	del := NewStateUpdates()
	del.SetPartitionDelta(node, PartitionMetadata, []DeltaOp{{SortKey: SortKey("a"), Delete: true}})
	if err := s.Commit(del); err != nil {
		t.Fatalf("Commit delete: %v", err)
	}

	if _, found, _ := s.Get(testKey(node, PartitionMetadata, "a")); found {
		t.Errorf("key should be gone after a delete delta")
	}
}

func TestMemStoreResetDropsPriorEntries(t *testing.T) {
	s := NewMemStore()
	node := testResourceAddr(t, 1)

	put := NewStateUpdates()
	put.SetPartitionDelta(node, PartitionMetadata, []DeltaOp{{SortKey: SortKey("a"), Value: []byte("1")}})
	s.Commit(put)

	reset := NewStateUpdates()
	reset.SetPartitionReset(node, PartitionMetadata, []DeltaOp{{SortKey: SortKey("b"), Value: []byte("2")}})
	if err := s.Commit(reset); err != nil {
		t.Fatalf("Commit reset: %v", err)
	}

	if _, found, _ := s.Get(testKey(node, PartitionMetadata, "a")); found {
		t.Errorf("reset should have dropped the prior entry")
	}
	v, found, _ := s.Get(testKey(node, PartitionMetadata, "b"))
	if !found || string(v) != "2" {
		t.Errorf("reset entry missing: %q, %v", v, found)
	}
}

func TestTrackDiffRoundTripsThroughMemStoreCommit(t *testing.T) {
	store := NewMemStore()
	node := testResourceAddr(t, 1)
	track := NewTrack(store)

	track.Write(testKey(node, PartitionMetadata, "a"), []byte("1"))
	track.Write(testKey(node, PartitionMetadata, "b"), []byte("2"))
	track.Delete(testKey(node, PartitionMetadata, "b"))

	if err := store.Commit(track.Diff()); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	v, found, _ := store.Get(testKey(node, PartitionMetadata, "a"))
	if !found || string(v) != "1" {
		t.Fatalf("Get(a) = %q, %v", v, found)
	}
	if _, found, _ := store.Get(testKey(node, PartitionMetadata, "b")); found {
		t.Errorf("b was deleted before commit, should not be present")
	}
}

func TestTrackResetPartitionProducesResetUpdate(t *testing.T) {
	store := NewMemStore()
	node := testResourceAddr(t, 1)

	seed := NewTrack(store)
	seed.Write(testKey(node, PartitionMetadata, "a"), []byte("1"))
	store.Commit(seed.Diff())

	reset := NewTrack(store)
	reset.ResetPartition(node, PartitionMetadata, map[string][]byte{"b": []byte("2")})
	if err := store.Commit(reset.Diff()); err != nil {
		t.Fatalf("Commit reset: %v", err)
	}

	if _, found, _ := store.Get(testKey(node, PartitionMetadata, "a")); found {
		t.Errorf("ResetPartition should have dropped the prior entry")
	}
	v, found, _ := store.Get(testKey(node, PartitionMetadata, "b"))
	if !found || string(v) != "2" {
		t.Errorf("reset entry missing: %q, %v", v, found)
	}
}

func TestBoltStoreCommitAndListEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "substates.bolt")
	s, err := OpenBoltStore(path)
	if err != nil {
		t.Fatalf("OpenBoltStore: %v", err)
	}
	defer s.Close()

	node := testResourceAddr(t, 1)
	su := NewStateUpdates()
	su.SetPartitionDelta(node, PartitionMetadata, []DeltaOp{
		{SortKey: SortKey("a"), Value: []byte("1")},
		{SortKey: SortKey("b"), Value: []byte("2")},
	})
	if err := s.Commit(su); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	entries, err := s.ListEntries(node, PartitionMetadata)
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("ListEntries = %+v, want 2 entries", entries)
	}

	reset := NewStateUpdates()
	reset.SetPartitionReset(node, PartitionMetadata, []DeltaOp{{SortKey: SortKey("c"), Value: []byte("3")}})
	if err := s.Commit(reset); err != nil {
		t.Fatalf("Commit reset: %v", err)
	}
	if _, found, _ := s.Get(testKey(node, PartitionMetadata, "a")); found {
		t.Errorf("bolt reset should have dropped the prior entry")
	}
	v, found, _ := s.Get(testKey(node, PartitionMetadata, "c"))
	if !found || string(v) != "3" {
		t.Errorf("reset entry missing: %q, %v", v, found)
	}
}
