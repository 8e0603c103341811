package core

// transaction.go – the prepared-transaction payload model. A user
// transaction arrives as a notarized structure: header + manifest (the
// intent), the intent signatures, and the notary signature over the
// signed intent. Each layer has its own canonical hash — intent hash,
// signed-intent hash, notarized-transaction hash — each
// bech32m-addressable under a dedicated HRP (bech32.go).
//
// Canonical encoding goes through the payload codec's transaction
// domain so the hashes are a pure function of the value model, not of
// Go struct layout.

import (
	"crypto/sha256"
	"errors"
	"fmt"
)

// TransactionHeader carries the admission parameters of one intent.
type TransactionHeader struct {
	NetworkId       uint8
	StartEpoch      uint64
	EndEpoch        uint64
	Nonce           uint32
	NotaryPublicKey []byte
	CostUnitLimit   uint64
	TipBasisPoints  uint32
}

// TransactionIntent is the signable unit: header plus manifest.
type TransactionIntent struct {
	Header   TransactionHeader
	Manifest *Manifest
}

// SignedIntent is an intent plus the signatures collected over its hash.
type SignedIntent struct {
	Intent           TransactionIntent
	IntentSignatures [][]byte
}

// NotarizedTransaction is the fully prepared form the engine executes.
type NotarizedTransaction struct {
	Signed          SignedIntent
	NotarySignature []byte
}

// SignedIntentHash and NotarizedTransactionHash parallel IntentHash
// (intent_tracker.go) for the outer two envelope layers.
type SignedIntentHash [32]byte
type NotarizedTransactionHash [32]byte

// Pre-execution validation failures; all classified as Rejection.
var (
	ErrNetworkMismatch        = errors.New("NetworkMismatch")
	ErrTransactionExpired     = errors.New("TransactionEpochExpired")
	ErrTransactionNotYetValid = errors.New("TransactionEpochNotYetValid")
	ErrEpochRangeEmpty        = errors.New("TransactionEpochRangeEmpty")
)

// Validate checks the header against the executing network and epoch.
// Any error here rejects the transaction before a kernel is built.
func (h TransactionHeader) Validate(networkId uint8, currentEpoch uint64) error {
	if h.NetworkId != networkId {
		return fmt.Errorf("%w: header %d, network %d", ErrNetworkMismatch, h.NetworkId, networkId)
	}
	if h.EndEpoch <= h.StartEpoch {
		return fmt.Errorf("%w: [%d, %d)", ErrEpochRangeEmpty, h.StartEpoch, h.EndEpoch)
	}
	if currentEpoch < h.StartEpoch {
		return fmt.Errorf("%w: current %d, valid from %d", ErrTransactionNotYetValid, currentEpoch, h.StartEpoch)
	}
	if currentEpoch >= h.EndEpoch {
		return fmt.Errorf("%w: current %d, valid until %d", ErrTransactionExpired, currentEpoch, h.EndEpoch)
	}
	return nil
}

//---------------------------------------------------------------------
// Canonical encoding
//---------------------------------------------------------------------

func (h TransactionHeader) value() Value {
	return Value{Kind: KindTuple, Fields: []Value{
		{Kind: KindI8, Int: int64(h.NetworkId)},
		{Kind: KindI64, Int: int64(h.StartEpoch)},
		{Kind: KindI64, Int: int64(h.EndEpoch)},
		{Kind: KindI32, Int: int64(h.Nonce)},
		{Kind: KindBytes, Bytes: h.NotaryPublicKey},
		{Kind: KindI64, Int: int64(h.CostUnitLimit)},
		{Kind: KindI32, Int: int64(h.TipBasisPoints)},
	}}
}

func instructionValue(instr Instruction) Value {
	amount := instr.Amount
	if amount.atto == nil {
		amount = DecimalZero()
	}
	argSlots := make([]Value, 0, len(instr.ArgSlots))
	for _, s := range instr.ArgSlots {
		argSlots = append(argSlots, Value{Kind: KindString, Str: s})
	}
	ids := make([]Value, 0, len(instr.Ids))
	for _, id := range instr.Ids {
		ids = append(ids, Value{Kind: CustomNonFungibleLocalId, NFLocalId: id})
	}
	return Value{Kind: KindTuple, Fields: []Value{
		{Kind: KindI8, Int: int64(instr.Kind)},
		{Kind: CustomReference, Reference: instr.Resource},
		{Kind: CustomDecimal, Decimal: amount},
		{Kind: KindString, Str: instr.BucketSlot},
		{Kind: KindString, Str: instr.ProofSlot},
		{Kind: KindString, Str: instr.NewSlot},
		{Kind: CustomReference, Reference: instr.Package},
		{Kind: KindString, Str: instr.Blueprint},
		{Kind: KindString, Str: instr.Function},
		{Kind: CustomReference, Reference: instr.Receiver},
		{Kind: KindArray, Fields: argSlots},
		{Kind: KindBytes, Bytes: instr.Payload},
		{Kind: KindArray, Fields: ids},
		{Kind: KindI64, Int: int64(instr.SubintentIndex)},
	}}
}

func manifestValue(m *Manifest) Value {
	if m == nil {
		return Value{Kind: KindTuple}
	}
	instrs := make([]Value, 0, len(m.Instructions))
	for _, instr := range m.Instructions {
		instrs = append(instrs, instructionValue(instr))
	}
	blobs := make([]Value, 0, len(m.Blobs))
	for _, b := range m.Blobs {
		blobs = append(blobs, Value{Kind: KindBytes, Bytes: b})
	}
	subs := make([]Value, 0, len(m.Subintents))
	for _, s := range m.Subintents {
		subs = append(subs, manifestValue(s))
	}
	return Value{Kind: KindTuple, Fields: []Value{
		{Kind: KindArray, Fields: instrs},
		{Kind: KindArray, Fields: blobs},
		{Kind: KindArray, Fields: subs},
	}}
}

func (t TransactionIntent) value() Value {
	return Value{Kind: KindTuple, Fields: []Value{t.Header.value(), manifestValue(t.Manifest)}}
}

// Encode produces the canonical transaction-domain payload of the intent.
func (t TransactionIntent) Encode() ([]byte, error) {
	return NewEncoder(DomainTransaction).Encode(t.value())
}

func (s SignedIntent) value() Value {
	sigs := make([]Value, 0, len(s.IntentSignatures))
	for _, sig := range s.IntentSignatures {
		sigs = append(sigs, Value{Kind: KindBytes, Bytes: sig})
	}
	return Value{Kind: KindTuple, Fields: []Value{s.Intent.value(), {Kind: KindArray, Fields: sigs}}}
}

// Encode produces the canonical payload of the signed intent.
func (s SignedIntent) Encode() ([]byte, error) {
	return NewEncoder(DomainTransaction).Encode(s.value())
}

// Encode produces the canonical payload of the notarized transaction.
func (n NotarizedTransaction) Encode() ([]byte, error) {
	v := Value{Kind: KindTuple, Fields: []Value{n.Signed.value(), {Kind: KindBytes, Bytes: n.NotarySignature}}}
	return NewEncoder(DomainTransaction).Encode(v)
}

//---------------------------------------------------------------------
// Hashes
//---------------------------------------------------------------------

// IntentHashOf computes hash(encoded intent), the replay-protection key
// the intent tracker nullifies at commit.
func IntentHashOf(t TransactionIntent) (IntentHash, error) {
	payload, err := t.Encode()
	if err != nil {
		return IntentHash{}, err
	}
	return sha256.Sum256(payload), nil
}

// SignedIntentHashOf computes hash(encoded signed intent).
func SignedIntentHashOf(s SignedIntent) (SignedIntentHash, error) {
	payload, err := s.Encode()
	if err != nil {
		return SignedIntentHash{}, err
	}
	return sha256.Sum256(payload), nil
}

// NotarizedTransactionHashOf computes hash(encoded notarized transaction).
func NotarizedTransactionHashOf(n NotarizedTransaction) (NotarizedTransactionHash, error) {
	payload, err := n.Encode()
	if err != nil {
		return NotarizedTransactionHash{}, err
	}
	return sha256.Sum256(payload), nil
}

// FormatIntentHash renders an intent hash in its bech32m form.
func FormatIntentHash(h IntentHash) (string, error) {
	return EncodeHash(HRPIntentHash, h)
}

// FormatSignedIntentHash renders a signed-intent hash in bech32m form.
func FormatSignedIntentHash(h SignedIntentHash) (string, error) {
	return EncodeHash(HRPSignedIntentHash, h)
}

// FormatNotarizedTransactionHash renders a notarized-transaction hash in
// bech32m form.
func FormatNotarizedTransactionHash(h NotarizedTransactionHash) (string, error) {
	return EncodeHash(HRPNotarizedTxHash, h)
}
