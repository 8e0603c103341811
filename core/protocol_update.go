package core

// protocol_update.go – the protocol-update batch generator and its
// resumability bookkeeping. A batch generator
// emits an ordered list of protocol-update transactions; each batch is
// either a flash update (writes straight into the store, bypassing the
// kernel's Invoke entirely — the genesis-resource-definitions case) or a
// manifest the engine runs like any other transaction (a genesis
// component deployment). After each committed batch the engine writes a
// ProtocolUpdateStatusSummary substate so a restarted generator resumes
// from the recorded (version, batch_group, batch) position instead of
// starting over.

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// protocolUpdateStatusNode is the well-known node the status summary
// lives under, distinct from intentTrackerNode's tail so the two never
// collide within EntityTypeInternalGenericComponent's address space.
var protocolUpdateStatusNode = NodeId{byte(EntityTypeInternalGenericComponent), 1}

var protocolUpdateStatusKey = SortKey("status")

// ProtocolUpdateStatusSummary records how far a protocol update has
// progressed: a (version, batch_group, batch) cursor plus whether the
// last recorded batch finished committing.
type ProtocolUpdateStatusSummary struct {
	ProtocolVersion string
	BatchGroup      string
	Batch           int
	Completed       bool
}

func (s ProtocolUpdateStatusSummary) encode() ([]byte, error) {
	enc := NewEncoder(DomainScrypto)
	return enc.Encode(Value{Kind: KindTuple, Fields: []Value{
		{Kind: KindString, Str: s.ProtocolVersion},
		{Kind: KindString, Str: s.BatchGroup},
		{Kind: KindI64, Int: int64(s.Batch)},
		{Kind: KindBool, Bool: s.Completed},
	}})
}

func decodeProtocolUpdateStatusSummary(payload []byte) (ProtocolUpdateStatusSummary, error) {
	dec := NewDecoder(DomainScrypto)
	res, err := dec.Decode(payload)
	if err != nil {
		return ProtocolUpdateStatusSummary{}, err
	}
	if res.Value.Kind != KindTuple || len(res.Value.Fields) != 4 {
		return ProtocolUpdateStatusSummary{}, fmt.Errorf("protocol_update: malformed status summary payload")
	}
	f := res.Value.Fields
	return ProtocolUpdateStatusSummary{
		ProtocolVersion: f[0].Str,
		BatchGroup:      f[1].Str,
		Batch:           int(f[2].Int),
		Completed:       f[3].Bool,
	}, nil
}

// ReadProtocolUpdateStatus loads the current status summary, if any has
// ever been committed.
func ReadProtocolUpdateStatus(track *Track) (ProtocolUpdateStatusSummary, bool, error) {
	key := SubstateKey{NodeId: protocolUpdateStatusNode, Partition: PartitionProtocolUpdateStatus, SortKey: protocolUpdateStatusKey}
	raw, found, err := track.Read(key)
	if err != nil || !found {
		return ProtocolUpdateStatusSummary{}, found, err
	}
	s, err := decodeProtocolUpdateStatusSummary(raw)
	return s, true, err
}

// WriteProtocolUpdateStatus stages the new status summary; like any
// other substate write it only becomes durable when the surrounding
// transaction commits.
func WriteProtocolUpdateStatus(track *Track, s ProtocolUpdateStatusSummary) error {
	raw, err := s.encode()
	if err != nil {
		return err
	}
	key := SubstateKey{NodeId: protocolUpdateStatusNode, Partition: PartitionProtocolUpdateStatus, SortKey: protocolUpdateStatusKey}
	track.Write(key, raw)
	return nil
}

// FlashUpdate is a protocol-update step that writes directly to a single
// (node, partition), resetting its entire contents — the mechanism
// genesis resource/package definitions use, since nothing has been
// globalized yet for a manifest to reference.
type FlashUpdate struct {
	Node      NodeId
	Partition PartitionNum
	Entries   map[string][]byte
}

// Apply stages the flash as a partition reset on track.
func (f FlashUpdate) Apply(track *Track) {
	track.ResetPartition(f.Node, f.Partition, f.Entries)
}

// ProtocolUpdateBatch is one unit of resumable progress: either a set of
// flash updates, or a manifest for the engine to run like an ordinary
// transaction (a genesis component deployment). Exactly one of Flashes
// or Manifest is expected to be populated.
type ProtocolUpdateBatch struct {
	Group    string
	Index    int
	Flashes  []FlashUpdate
	Manifest *Manifest
}

// BatchGenerator walks an ordered list of batches, skipping everything
// already recorded as committed in a ProtocolUpdateStatusSummary so a
// restarted generator resumes rather than replays from the start.
type BatchGenerator struct {
	version string
	batches []ProtocolUpdateBatch
	cursor  int
}

// NewBatchGenerator builds a generator for one protocol version's
// ordered batch list.
func NewBatchGenerator(version string, batches []ProtocolUpdateBatch) *BatchGenerator {
	return &BatchGenerator{version: version, batches: batches}
}

// Resume consults the store's status summary and advances the cursor
// past every batch already marked Completed for this protocol version,
// so a second call to Next picks up exactly where a prior run left off.
func (g *BatchGenerator) Resume(track *Track) error {
	status, found, err := ReadProtocolUpdateStatus(track)
	if err != nil {
		return err
	}
	if !found || status.ProtocolVersion != g.version || !status.Completed {
		g.cursor = 0
		return nil
	}
	for i, b := range g.batches {
		if b.Group == status.BatchGroup && b.Index == status.Batch {
			g.cursor = i + 1
			return nil
		}
	}
	g.cursor = 0
	return nil
}

// Next returns the next pending batch, or ok=false once every batch has
// been committed.
func (g *BatchGenerator) Next() (ProtocolUpdateBatch, bool) {
	if g.cursor >= len(g.batches) {
		return ProtocolUpdateBatch{}, false
	}
	b := g.batches[g.cursor]
	return b, true
}

// CommitBatch applies a batch's flash updates (the manifest, if any, is
// expected to have already been run through a TxProcessor by the
// caller) and records the resumability checkpoint, then advances the
// cursor.
func (g *BatchGenerator) CommitBatch(track *Track, batch ProtocolUpdateBatch) error {
	for _, f := range batch.Flashes {
		f.Apply(track)
	}
	if err := WriteProtocolUpdateStatus(track, ProtocolUpdateStatusSummary{
		ProtocolVersion: g.version,
		BatchGroup:      batch.Group,
		Batch:           batch.Index,
		Completed:       true,
	}); err != nil {
		return err
	}
	g.cursor++
	return nil
}

// yamlFlashFixture/yamlBatchFixture mirror the on-disk YAML shape of
// the batch manifests the engine CLI's replay command reads.
type yamlFlashFixture struct {
	Node      string            `yaml:"node"`
	Partition uint8             `yaml:"partition"`
	Entries   map[string]string `yaml:"entries"`
}

type yamlBatchFixture struct {
	Group   string             `yaml:"group"`
	Index   int                `yaml:"index"`
	Flashes []yamlFlashFixture `yaml:"flashes"`
}

// ParseBatchFixtures decodes a YAML document listing ordered protocol-
// update batches into ProtocolUpdateBatch values, resolving each flash's
// node address via resolveNode.
func ParseBatchFixtures(data []byte, resolveNode func(name string) (NodeId, error)) ([]ProtocolUpdateBatch, error) {
	var raw []yamlBatchFixture
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("protocol_update: parse batch fixtures: %w", err)
	}
	batches := make([]ProtocolUpdateBatch, 0, len(raw))
	for _, rb := range raw {
		batch := ProtocolUpdateBatch{Group: rb.Group, Index: rb.Index}
		for _, rf := range rb.Flashes {
			node, err := resolveNode(rf.Node)
			if err != nil {
				return nil, fmt.Errorf("protocol_update: resolve node %q: %w", rf.Node, err)
			}
			entries := make(map[string][]byte, len(rf.Entries))
			for k, v := range rf.Entries {
				entries[k] = []byte(v)
			}
			batch.Flashes = append(batch.Flashes, FlashUpdate{Node: node, Partition: PartitionNum(rf.Partition), Entries: entries})
		}
		batches = append(batches, batch)
	}
	return batches, nil
}
