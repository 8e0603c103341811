package core

// track.go – the kernel's staged overlay of pending writes.
//
// The store is never touched mid-transaction; every read/write inside a
// frame goes through the Track, which overlays uncommitted writes on
// top of the committed Store and is diffed into a StateUpdates only at
// final commit. A child frame's writes propagate into the parent
// track's view on unlock; since the kernel is single-threaded and
// frames are strictly nested, a single shared Track instance threaded
// through the frame stack achieves that without any copying.

import (
	"sort"
	"sync"
)

type trackedPartition struct {
	reset   bool
	entries map[string][]byte // sort key -> value; absent + reset=false means "unknown, fall through to store"
	deleted map[string]bool
}

// Track is the per-transaction staged overlay.
type Track struct {
	mu    sync.Mutex
	store Store
	data  map[NodeId]map[PartitionNum]*trackedPartition
}

func NewTrack(store Store) *Track {
	return &Track{store: store, data: make(map[NodeId]map[PartitionNum]*trackedPartition)}
}

func (t *Track) partitionFor(n NodeId, p PartitionNum) *trackedPartition {
	byPart, ok := t.data[n]
	if !ok {
		byPart = make(map[PartitionNum]*trackedPartition)
		t.data[n] = byPart
	}
	tp, ok := byPart[p]
	if !ok {
		tp = &trackedPartition{entries: make(map[string][]byte), deleted: make(map[string]bool)}
		byPart[p] = tp
	}
	return tp
}

// Read returns the current value for a substate key, consulting staged
// writes first and falling back to the committed store.
func (t *Track) Read(key SubstateKey) ([]byte, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if byPart, ok := t.data[key.NodeId]; ok {
		if tp, ok := byPart[key.Partition]; ok {
			if v, ok := tp.entries[string(key.SortKey)]; ok {
				return v, true, nil
			}
			if tp.deleted[string(key.SortKey)] {
				return nil, false, nil
			}
			if tp.reset {
				return nil, false, nil
			}
		}
	}
	return t.store.Get(key)
}

// Write stages a value at a substate key.
func (t *Track) Write(key SubstateKey, value []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tp := t.partitionFor(key.NodeId, key.Partition)
	delete(tp.deleted, string(key.SortKey))
	tp.entries[string(key.SortKey)] = value
}

// Delete stages a deletion at a substate key.
func (t *Track) Delete(key SubstateKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tp := t.partitionFor(key.NodeId, key.Partition)
	delete(tp.entries, string(key.SortKey))
	tp.deleted[string(key.SortKey)] = true
}

// ResetPartition stages a full-partition reset: all prior entries
// (staged or committed) are dropped and replaced with the given map.
func (t *Track) ResetPartition(n NodeId, p PartitionNum, entries map[string][]byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tp := &trackedPartition{reset: true, entries: make(map[string][]byte, len(entries)), deleted: make(map[string]bool)}
	for k, v := range entries {
		tp.entries[k] = v
	}
	byPart, ok := t.data[n]
	if !ok {
		byPart = make(map[PartitionNum]*trackedPartition)
		t.data[n] = byPart
	}
	byPart[p] = tp
}

// ListEntries returns the merged (staged + committed) view of a
// partition, ordered by sort key, honoring resets and deletes.
func (t *Track) ListEntries(n NodeId, p PartitionNum) ([]SubstatePair, error) {
	t.mu.Lock()
	tp, staged := t.data[n][p]
	t.mu.Unlock()

	var base []SubstatePair
	var err error
	if !staged || !tp.reset {
		base, err = t.store.ListEntries(n, p)
		if err != nil {
			return nil, err
		}
	}
	if !staged {
		return base, nil
	}

	merged := make(map[string][]byte)
	for _, pair := range base {
		if !tp.deleted[string(pair.SortKey)] {
			merged[string(pair.SortKey)] = pair.Value
		}
	}
	for k, v := range tp.entries {
		merged[k] = v
	}
	out := make([]SubstatePair, 0, len(merged))
	for k, v := range merged {
		out = append(out, SubstatePair{SortKey: SortKey(k), Value: v})
	}
	sortPairs(out)
	return out, nil
}

// Diff produces the StateUpdates to hand to Store.Commit. Nodes come
// out in map iteration order, which is not defined; the hash tree sorts
// before hashing, so the root does not depend on it.
func (t *Track) Diff() *StateUpdates {
	t.mu.Lock()
	defer t.mu.Unlock()
	su := NewStateUpdates()
	for n, byPart := range t.data {
		for p, tp := range byPart {
			if tp.reset {
				entries := make([]DeltaOp, 0, len(tp.entries))
				for k, v := range tp.entries {
					entries = append(entries, DeltaOp{SortKey: SortKey(k), Value: v})
				}
				su.SetPartitionReset(n, p, entries)
				continue
			}
			var deltas []DeltaOp
			for k, v := range tp.entries {
				deltas = append(deltas, DeltaOp{SortKey: SortKey(k), Value: v})
			}
			for k := range tp.deleted {
				deltas = append(deltas, DeltaOp{SortKey: SortKey(k), Delete: true})
			}
			if len(deltas) > 0 {
				su.SetPartitionDelta(n, p, deltas)
			}
		}
	}
	return su
}

func sortPairs(pairs []SubstatePair) {
	sort.Slice(pairs, func(i, j int) bool { return string(pairs[i].SortKey) < string(pairs[j].SortKey) })
}
