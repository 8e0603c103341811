package core

// hash_tree.go – the three-tier Jellyfish-Merkle-style hash tree.
//
// Tier 1 (entity) is keyed by NodeId; tier 2 (partition) is keyed by
// PartitionNum under each entity leaf; tier 3 (substate) is keyed by
// sort-key under each partition leaf. Each substate leaf stores the
// hash of its value payload and the version at which it was written.
// Partition/entity leaf hashes are the roots of their respective
// sub-trees; the overall state root is the entity tier's root at the
// current version.

import (
	"bytes"
	"crypto/sha256"
	"sort"

	"github.com/ethereum/go-ethereum/crypto"
)

// DigestFunc computes the tree's leaf/internal node digest.
type DigestFunc func([]byte) [32]byte

func sha256Digest(b []byte) [32]byte { return sha256.Sum256(b) }
func keccak256Digest(b []byte) [32]byte {
	var out [32]byte
	copy(out[:], crypto.Keccak256(b))
	return out
}

// HashTreeConfig selects the digest function; UseKeccak=true swaps in
// Keccak256 in place of the default SHA-256.
type HashTreeConfig struct {
	UseKeccak bool
}

func (c HashTreeConfig) digest() DigestFunc {
	if c.UseKeccak {
		return keccak256Digest
	}
	return sha256Digest
}

// StaleTreePart records a sub-tree version made obsolete by an update,
// so pruning can be driven explicitly rather than guessed at.
type StaleTreePart struct {
	NodeId    NodeId
	Partition PartitionNum
	Version   uint64
}

// substateLeaf is tier 3: one leaf per sort-key, storing the hash of
// its value payload and the version it was written at.
type substateLeaf struct {
	hash    [32]byte
	version uint64
}

type partitionTree struct {
	leaves  map[string]substateLeaf // sort key -> leaf
	version uint64
}

type entityTree struct {
	partitions map[PartitionNum]*partitionTree
	version    uint64
}

// HashTree is the versioned, three-tier state-commitment structure.
// A HashTree instance is owned by exactly one Engine and advances one
// version per ApplyStateUpdates call.
type HashTree struct {
	cfg     HashTreeConfig
	digest  DigestFunc
	version uint64
	entities map[NodeId]*entityTree
}

func NewHashTree(cfg HashTreeConfig) *HashTree {
	return &HashTree{cfg: cfg, digest: cfg.digest(), entities: make(map[NodeId]*entityTree)}
}

// Version returns the current committed version.
func (t *HashTree) Version() uint64 { return t.version }

// ApplyStateUpdates advances the tree by one version, applying every
// (node, partition) update in updates, and returns the new state root
// along with the list of sub-tree parts made stale by the update. A
// reset records the entire previous substate sub-tree as stale, then
// rebuilds on an empty tree; deltas apply leaf-by-leaf.
func (t *HashTree) ApplyStateUpdates(updates *StateUpdates) ([32]byte, []StaleTreePart, error) {
	t.version++
	var stale []StaleTreePart

	for _, n := range updates.Nodes {
		et, ok := t.entities[n]
		if !ok {
			et = &entityTree{partitions: make(map[PartitionNum]*partitionTree)}
			t.entities[n] = et
		}
		for p, upd := range updates.ByNode[n] {
			pt, ok := et.partitions[p]
			switch upd.Kind {
			case UpdateReset:
				if ok {
					stale = append(stale, StaleTreePart{NodeId: n, Partition: p, Version: pt.version})
				}
				pt = &partitionTree{leaves: make(map[string]substateLeaf), version: t.version}
				for _, e := range upd.NewEntries {
					if !e.Delete {
						pt.leaves[string(e.SortKey)] = substateLeaf{hash: t.digest(e.Value), version: t.version}
					}
				}
				et.partitions[p] = pt
			case UpdateDelta:
				if !ok {
					pt = &partitionTree{leaves: make(map[string]substateLeaf), version: t.version}
					et.partitions[p] = pt
				}
				for _, d := range upd.Deltas {
					if d.Delete {
						delete(pt.leaves, string(d.SortKey))
					} else {
						pt.leaves[string(d.SortKey)] = substateLeaf{hash: t.digest(d.Value), version: t.version}
					}
				}
				pt.version = t.version
			}
		}
		et.version = t.version
	}

	root := t.rootHash()
	return root, stale, nil
}

// partitionRoot computes tier-3's root: a pairwise hash-tree over the
// sorted sort-key leaves, using the same combine rule as
// merkle_tree_operations.go's BuildMerkleTree but generalized to an
// arbitrary digest function.
func (t *HashTree) partitionRoot(pt *partitionTree) [32]byte {
	if len(pt.leaves) == 0 {
		return t.digest(nil)
	}
	keys := make([]string, 0, len(pt.leaves))
	for k := range pt.leaves {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	level := make([][32]byte, len(keys))
	for i, k := range keys {
		level[i] = pt.leaves[k].hash
	}
	return t.combineLevel(level)
}

func (t *HashTree) entityRoot(et *entityTree) [32]byte {
	if len(et.partitions) == 0 {
		return t.digest(nil)
	}
	nums := make([]int, 0, len(et.partitions))
	for p := range et.partitions {
		nums = append(nums, int(p))
	}
	sort.Ints(nums)
	level := make([][32]byte, len(nums))
	for i, p := range nums {
		level[i] = t.partitionRoot(et.partitions[PartitionNum(p)])
	}
	return t.combineLevel(level)
}

// rootHash computes tier-1's root over all entities, sorted by NodeId
// for determinism.
func (t *HashTree) rootHash() [32]byte {
	if len(t.entities) == 0 {
		return t.digest(nil)
	}
	ids := make([]NodeId, 0, len(t.entities))
	for id := range t.entities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })
	level := make([][32]byte, len(ids))
	for i, id := range ids {
		level[i] = t.entityRoot(t.entities[id])
	}
	return t.combineLevel(level)
}

func (t *HashTree) combineLevel(level [][32]byte) [32]byte {
	if len(level) == 1 {
		return level[0]
	}
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([][32]byte, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			pair := append(append([]byte(nil), level[i][:]...), level[i+1][:]...)
			next[i/2] = t.digest(pair)
		}
		level = next
	}
	return level[0]
}

// SubstateWitness reports the stored hash and write-version for one
// substate leaf, used to answer witness/proof queries.
func (t *HashTree) SubstateWitness(key SubstateKey) (hash [32]byte, version uint64, found bool) {
	et, ok := t.entities[key.NodeId]
	if !ok {
		return hash, 0, false
	}
	pt, ok := et.partitions[key.Partition]
	if !ok {
		return hash, 0, false
	}
	leaf, ok := pt.leaves[string(key.SortKey)]
	if !ok {
		return hash, 0, false
	}
	return leaf.hash, leaf.version, true
}

// Root exposes the last-computed root hash without applying an update,
// e.g. for verifying a receipt's recorded root matches what the tree
// independently computes.
func (t *HashTree) Root() [32]byte { return t.rootHash() }
