package core

// resource_proof.go – non-transferable evidence of resource holding.
// A Proof locks an amount or id set in one or more underlying
// Buckets/Vaults; cloning a proof shares the same locks via reference
// counting rather than re-locking, and dropping the last clone releases
// them. Composing several proofs of the same resource concatenates
// their locks into one aggregate proof and consumes the inputs.

import (
	"fmt"
)

// lockedResource is anything a Proof can hold a lock against.
type lockedResource interface {
	unlockAmount(amount Decimal)
	unlockIds(ids []NonFungibleLocalId)
}

// sharedLock is one underlying lock, refcounted across every Proof
// clone that still references it.
type sharedLock struct {
	source lockedResource
	amount Decimal
	ids    []NonFungibleLocalId
	refs   uint32
}

func (l *sharedLock) release() {
	l.refs--
	if l.refs > 0 {
		return
	}
	if len(l.ids) > 0 {
		l.source.unlockIds(l.ids)
	} else {
		l.source.unlockAmount(l.amount)
	}
}

// Proof is a heap-only node, like Bucket: never globalized, dropped
// explicitly or at frame teardown.
type Proof struct {
	Id       NodeId
	Resource NodeId
	Kind     ResourceKind
	Amount   Decimal
	Ids      []NonFungibleLocalId

	locks []*sharedLock

	// restricted marks a proof created under a constraint that forbids
	// moving it to a child frame (e.g. popped from the auth zone for a
	// barrier check) — attempting to pass it as an Invoke argument is
	// ErrCantMoveDownstream.
	restricted bool
}

// NewFungibleProofFromBucket locks amount in bucket and returns a new
// proof over it.
func NewFungibleProofFromBucket(id NodeId, bucket *Bucket, amount Decimal) (*Proof, error) {
	if bucket.Kind != ResourceFungible {
		return nil, &ApplicationError{Frame: "Proof", Err: fmt.Errorf("not a fungible bucket")}
	}
	if amount.IsZero() {
		return nil, &ApplicationError{Frame: "Proof", Err: ErrEmptyProofNotAllowed}
	}
	if err := bucket.lockAmount(amount); err != nil {
		return nil, &ApplicationError{Frame: "Proof", Err: err}
	}
	lock := &sharedLock{source: bucket, amount: amount, refs: 1}
	return &Proof{Id: id, Resource: bucket.Resource, Kind: ResourceFungible, Amount: amount, locks: []*sharedLock{lock}}, nil
}

// NewFungibleProofFromVault mirrors NewFungibleProofFromBucket for a
// vault-backed proof.
func NewFungibleProofFromVault(id NodeId, vault *Vault, amount Decimal) (*Proof, error) {
	if vault.Kind != ResourceFungible {
		return nil, &ApplicationError{Frame: "Proof", Err: fmt.Errorf("not a fungible vault")}
	}
	if amount.IsZero() {
		return nil, &ApplicationError{Frame: "Proof", Err: ErrEmptyProofNotAllowed}
	}
	if err := vault.lockAmount(amount); err != nil {
		return nil, &ApplicationError{Frame: "Proof", Err: err}
	}
	lock := &sharedLock{source: vault, amount: amount, refs: 1}
	return &Proof{Id: id, Resource: vault.Resource, Kind: ResourceFungible, Amount: amount, locks: []*sharedLock{lock}}, nil
}

// NewNonFungibleProofFromBucket locks a specific id set in bucket.
func NewNonFungibleProofFromBucket(id NodeId, bucket *Bucket, ids []NonFungibleLocalId) (*Proof, error) {
	if bucket.Kind != ResourceNonFungible {
		return nil, &ApplicationError{Frame: "Proof", Err: fmt.Errorf("not a non-fungible bucket")}
	}
	if len(ids) == 0 {
		return nil, &ApplicationError{Frame: "Proof", Err: ErrEmptyProofNotAllowed}
	}
	if err := bucket.lockIds(ids); err != nil {
		return nil, &ApplicationError{Frame: "Proof", Err: err}
	}
	lock := &sharedLock{source: bucket, ids: ids, refs: 1}
	return &Proof{Id: id, Resource: bucket.Resource, Kind: ResourceNonFungible, Ids: ids, locks: []*sharedLock{lock}}, nil
}

// Clone shares this proof's locks with a new proof node, incrementing
// each underlying lock's refcount rather than re-locking.
func (p *Proof) Clone(newId NodeId) *Proof {
	for _, l := range p.locks {
		l.refs++
	}
	return &Proof{
		Id: newId, Resource: p.Resource, Kind: p.Kind, Amount: p.Amount, Ids: p.Ids,
		locks: append([]*sharedLock(nil), p.locks...), restricted: p.restricted,
	}
}

// LockSubAmount draws exactly amount of evidence from this proof,
// greedily walking its underlying locks and sharing only as many of
// them (by refcount, like Clone) as are needed to cover amount — never
// the whole lock set when a smaller prefix already suffices. The
// underlying container's own locked balance is untouched: it is
// already locked by this proof, so a partial draw is a claim on that
// existing lock, not a second lock against liquid funds. This is what
// keeps a proof composed "of amount 4" out of a resident proof of 10
// honestly reporting Amount == 4 instead of the resident's full 10.
func (p *Proof) LockSubAmount(newId NodeId, amount Decimal) (*Proof, error) {
	if p.Kind != ResourceFungible {
		return nil, &ApplicationError{Frame: "Proof.LockSubAmount", Err: fmt.Errorf("not a fungible proof")}
	}
	if amount.IsZero() || amount.GreaterThan(p.Amount) {
		return nil, &ApplicationError{Frame: "Proof.LockSubAmount", Err: fmt.Errorf("sub-amount %s out of range of proof amount %s", amount, p.Amount)}
	}
	remaining := amount
	locks := make([]*sharedLock, 0, len(p.locks))
	for _, l := range p.locks {
		if remaining.IsZero() {
			break
		}
		l.refs++
		locks = append(locks, l)
		if l.amount.GreaterThan(remaining) {
			remaining = DecimalZero()
		} else {
			remaining = remaining.Sub(l.amount)
		}
	}
	return &Proof{Id: newId, Resource: p.Resource, Kind: ResourceFungible, Amount: amount, locks: locks}, nil
}

// Drop releases this proof's reference to every underlying lock,
// unlocking the source once no clone holds it any longer.
func (p *Proof) Drop() {
	for _, l := range p.locks {
		l.release()
	}
	p.locks = nil
}

// ComposeProofs aggregates several proofs of the same resource into one,
// concatenating their underlying locks. The input proofs are consumed
// (their locks slice is cleared) since ownership of the locks transfers
// to the composed proof.
func ComposeProofs(id NodeId, proofs []*Proof) (*Proof, error) {
	if len(proofs) == 0 {
		return nil, &ApplicationError{Frame: "Proof.Compose", Err: ErrEmptyProofNotAllowed}
	}
	resource := proofs[0].Resource
	kind := proofs[0].Kind
	for _, p := range proofs {
		if p.Resource != resource {
			return nil, &ApplicationError{Frame: "Proof.Compose", Err: ErrResourceAddressMismatch}
		}
	}
	composed := &Proof{Id: id, Resource: resource, Kind: kind, Amount: DecimalZero()}
	for _, p := range proofs {
		composed.Amount = composed.Amount.Add(p.Amount)
		composed.Ids = append(composed.Ids, p.Ids...)
		composed.locks = append(composed.locks, p.locks...)
		p.locks = nil
	}
	return composed, nil
}

// Restrict marks the proof as non-movable to a child frame.
func (p *Proof) Restrict() { p.restricted = true }

// CheckMoveable returns ErrCantMoveDownstream if the proof was
// restricted at creation time.
func (p *Proof) CheckMoveable() error {
	if p.restricted {
		return &ApplicationError{Frame: "Proof", Err: ErrCantMoveDownstream}
	}
	return nil
}
