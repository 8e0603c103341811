package core

// intent_tracker.go – replay protection for transaction intents. Each
// committed transaction writes its intent hash into
// PartitionTransactionTracker, keyed by expiry epoch; a second
// transaction bearing the same intent hash within the expiry window is
// rejected before execution. Subintent hashes are written only on
// failure, so a partially-composed transaction can be retried.

import "fmt"

// IntentHash identifies one transaction intent.
type IntentHash [32]byte

// intentTrackerNode is the well-known node the tracker partition lives
// under; a real deployment would globalize this once at genesis.
var intentTrackerNode = NodeId{byte(EntityTypeInternalGenericComponent)}

// IntentTracker consults and updates PartitionTransactionTracker through
// a kernel's track, the same way any other native blueprint stages
// writes — replay protection is not a side channel, it is ordinary
// substate state that commits or rolls back with the rest of the
// transaction.
type IntentTracker struct{}

func NewIntentTracker() *IntentTracker { return &IntentTracker{} }

func (t *IntentTracker) sortKey(expiryEpoch uint64, hash IntentHash) SortKey {
	key := make([]byte, 8+len(hash))
	for i := 0; i < 8; i++ {
		key[i] = byte(expiryEpoch >> (56 - 8*i))
	}
	copy(key[8:], hash[:])
	return SortKey(key)
}

// CheckAndRecord rejects with ErrDuplicateIntentHash if hash was already
// committed with an expiry at or after currentEpoch; otherwise records
// it against expiryEpoch so later duplicates within the window are
// caught.
func (t *IntentTracker) CheckAndRecord(track *Track, hash IntentHash, currentEpoch, expiryEpoch uint64) error {
	if expiryEpoch < currentEpoch {
		return fmt.Errorf("intent_tracker: expiry epoch %d already elapsed (current %d)", expiryEpoch, currentEpoch)
	}
	for epoch := currentEpoch; epoch <= expiryEpoch; epoch++ {
		key := SubstateKey{NodeId: intentTrackerNode, Partition: PartitionTransactionTracker, SortKey: t.sortKey(epoch, hash)}
		if _, found, err := track.Read(key); err != nil {
			return err
		} else if found {
			return &ApplicationError{Frame: "IntentTracker", Err: ErrDuplicateIntentHash}
		}
	}
	key := SubstateKey{NodeId: intentTrackerNode, Partition: PartitionTransactionTracker, SortKey: t.sortKey(expiryEpoch, hash)}
	track.Write(key, []byte{1})
	return nil
}

// RecordSubintentFailure writes a subintent hash only on failure,
// allowing the same subintent to be retried in a later composed
// transaction as long as it never previously committed.
func (t *IntentTracker) RecordSubintentFailure(track *Track, hash IntentHash, expiryEpoch uint64) {
	key := SubstateKey{NodeId: intentTrackerNode, Partition: PartitionTransactionTracker, SortKey: t.sortKey(expiryEpoch, hash)}
	track.Write(key, []byte{0})
}
