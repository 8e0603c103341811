package core

// substate_store.go – the committed key/value backend.
//
// The store is never consulted mid-transaction for writes: the kernel
// stages everything in a Track (track.go) and diffs it into a
// StateUpdates at commit time, which is the only thing ever passed to
// Store.Commit. Two backends are provided: an in-memory MemStore for
// tests and short-lived replay, and a BoltStore for real persistence.

import (
	"fmt"
	"sort"
	"sync"

	bolt "go.etcd.io/bbolt"
	"github.com/sirupsen/logrus"
)

// PartitionUpdateKind distinguishes a per-sort-key delta from a full
// partition reset.
type PartitionUpdateKind uint8

const (
	UpdateDelta PartitionUpdateKind = iota
	UpdateReset
)

// DeltaOp is either Set(value) or Delete for one sort key.
type DeltaOp struct {
	SortKey SortKey
	Value   []byte // nil means Delete
	Delete  bool
}

// PartitionUpdate is either an ordered list of per-sort-key deltas, or a
// reset that drops everything previously stored and replaces it with
// NewEntries.
type PartitionUpdate struct {
	Kind       PartitionUpdateKind
	Deltas     []DeltaOp
	NewEntries []DeltaOp // used only when Kind == UpdateReset
}

// StateUpdates is an ordered map of node -> partition -> update, the
// sole argument to Store.Commit. The Nodes slice keeps nodes in the
// order they were added; the hash tree sorts node ids, partitions and
// sort keys itself, so its root does not depend on that order.
type StateUpdates struct {
	Nodes      []NodeId
	ByNode     map[NodeId]map[PartitionNum]PartitionUpdate
}

func NewStateUpdates() *StateUpdates {
	return &StateUpdates{ByNode: make(map[NodeId]map[PartitionNum]PartitionUpdate)}
}

func (su *StateUpdates) upsertNode(n NodeId) map[PartitionNum]PartitionUpdate {
	m, ok := su.ByNode[n]
	if !ok {
		m = make(map[PartitionNum]PartitionUpdate)
		su.ByNode[n] = m
		su.Nodes = append(su.Nodes, n)
	}
	return m
}

// SetPartitionDelta appends or replaces the delta update for one
// (node, partition).
func (su *StateUpdates) SetPartitionDelta(n NodeId, p PartitionNum, deltas []DeltaOp) {
	su.upsertNode(n)[p] = PartitionUpdate{Kind: UpdateDelta, Deltas: deltas}
}

// SetPartitionReset replaces the entire sub-tree for one (node, partition).
func (su *StateUpdates) SetPartitionReset(n NodeId, p PartitionNum, entries []DeltaOp) {
	su.upsertNode(n)[p] = PartitionUpdate{Kind: UpdateReset, NewEntries: entries}
}

// IsEmpty reports whether this update set touches no nodes at all —
// applying it must produce the same state root as a no-op.
func (su *StateUpdates) IsEmpty() bool { return len(su.Nodes) == 0 }

// Store is the substate store's contract: get, ordered iteration
// by partition, and atomic commit of a StateUpdates.
type Store interface {
	Get(key SubstateKey) ([]byte, bool, error)
	ListEntries(node NodeId, partition PartitionNum) ([]SubstatePair, error)
	Commit(updates *StateUpdates) error
	Close() error
}

// SubstatePair is one (sort key, value) pair returned by ListEntries,
// ordered by SortKey ascending.
type SubstatePair struct {
	SortKey SortKey
	Value   []byte
}

//---------------------------------------------------------------------
// In-memory implementation
//---------------------------------------------------------------------

type partitionMap map[string][]byte // hex(sort key) -> value

// MemStore is a process-local Store, used by tests and by short-lived
// replay tooling that doesn't need durability.
type MemStore struct {
	mu   sync.RWMutex
	data map[NodeId]map[PartitionNum]partitionMap
}

func NewMemStore() *MemStore {
	return &MemStore{data: make(map[NodeId]map[PartitionNum]partitionMap)}
}

func (s *MemStore) Get(key SubstateKey) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	part, ok := s.data[key.NodeId]
	if !ok {
		return nil, false, nil
	}
	pm, ok := part[key.Partition]
	if !ok {
		return nil, false, nil
	}
	v, ok := pm[string(key.SortKey)]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (s *MemStore) ListEntries(node NodeId, partition PartitionNum) ([]SubstatePair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	part, ok := s.data[node]
	if !ok {
		return nil, nil
	}
	pm, ok := part[partition]
	if !ok {
		return nil, nil
	}
	out := make([]SubstatePair, 0, len(pm))
	for k, v := range pm {
		out = append(out, SubstatePair{SortKey: SortKey(k), Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return string(out[i].SortKey) < string(out[j].SortKey) })
	return out, nil
}

func (s *MemStore) Commit(updates *StateUpdates) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range updates.Nodes {
		parts := updates.ByNode[n]
		if _, ok := s.data[n]; !ok {
			s.data[n] = make(map[PartitionNum]partitionMap)
		}
		for p, upd := range parts {
			switch upd.Kind {
			case UpdateReset:
				pm := make(partitionMap, len(upd.NewEntries))
				for _, e := range upd.NewEntries {
					if !e.Delete {
						pm[string(e.SortKey)] = e.Value
					}
				}
				s.data[n][p] = pm
			case UpdateDelta:
				pm, ok := s.data[n][p]
				if !ok {
					pm = make(partitionMap)
					s.data[n][p] = pm
				}
				for _, d := range upd.Deltas {
					if d.Delete {
						delete(pm, string(d.SortKey))
					} else {
						pm[string(d.SortKey)] = d.Value
					}
				}
			}
		}
	}
	return nil
}

func (s *MemStore) Close() error { return nil }

//---------------------------------------------------------------------
// bbolt-backed durable implementation
//---------------------------------------------------------------------

// BoltStore persists substates in a single bbolt database file, one
// top-level bucket per NodeId-partition pair. Opens or creates the
// file; an embedded KV engine keeps commit atomic without a separate
// write-ahead log.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens (creating if absent) a bbolt-backed store at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("substate_store: open bolt db: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func boltBucketName(n NodeId, p PartitionNum) []byte {
	return append(n.Bytes(), byte(p))
}

func (s *BoltStore) Get(key SubstateKey) ([]byte, bool, error) {
	var out []byte
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(boltBucketName(key.NodeId, key.Partition))
		if b == nil {
			return nil
		}
		v := b.Get(key.SortKey)
		if v == nil {
			return nil
		}
		out = append([]byte(nil), v...)
		found = true
		return nil
	})
	return out, found, err
}

func (s *BoltStore) ListEntries(node NodeId, partition PartitionNum) ([]SubstatePair, error) {
	var out []SubstatePair
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(boltBucketName(node, partition))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			out = append(out, SubstatePair{SortKey: append(SortKey(nil), k...), Value: append([]byte(nil), v...)})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return string(out[i].SortKey) < string(out[j].SortKey) })
	return out, nil
}

func (s *BoltStore) Commit(updates *StateUpdates) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, n := range updates.Nodes {
			for p, upd := range updates.ByNode[n] {
				name := boltBucketName(n, p)
				switch upd.Kind {
				case UpdateReset:
					if err := tx.DeleteBucket(name); err != nil && err != bolt.ErrBucketNotFound {
						return err
					}
					b, err := tx.CreateBucketIfNotExists(name)
					if err != nil {
						return err
					}
					for _, e := range upd.NewEntries {
						if !e.Delete {
							if err := b.Put(e.SortKey, e.Value); err != nil {
								return err
							}
						}
					}
				case UpdateDelta:
					b, err := tx.CreateBucketIfNotExists(name)
					if err != nil {
						return err
					}
					for _, d := range upd.Deltas {
						if d.Delete {
							if err := b.Delete(d.SortKey); err != nil {
								return err
							}
						} else if err := b.Put(d.SortKey, d.Value); err != nil {
							return err
						}
					}
				}
			}
		}
		logrus.WithField("nodes", len(updates.Nodes)).Debug("substate_store: committed state updates")
		return nil
	})
}

func (s *BoltStore) Close() error { return s.db.Close() }
