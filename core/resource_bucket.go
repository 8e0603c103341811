package core

// resource_bucket.go – transient fungible/non-fungible holding
// container. A Bucket is a heap-only node: it is never globalized and must
// be fully drained (put into a vault, returned to the worktop, or burned)
// before the frame that owns it returns, or DropNode's on_drop hook
// rejects it.

import (
	"fmt"
)

// ResourceKind distinguishes fungible from non-fungible resources; fixed
// for the lifetime of a ResourceAddress.
type ResourceKind uint8

const (
	ResourceFungible ResourceKind = iota
	ResourceNonFungible
)

// lockedNFId pairs an id with the number of outstanding proof locks on
// it, since more than one proof may lock the same id simultaneously.
type lockedNFId struct {
	id    NonFungibleLocalId
	count uint32
}

// Bucket holds a transient, single-writer amount of one resource.
// Concurrency: buckets are heap nodes owned by exactly one frame at a
// time; the kernel's ownership transfer on
// Invoke is what makes "single writer" hold without a mutex here.
//
// Non-fungible id sets are keyed by NonFungibleLocalId.String() rather
// than the struct itself: NonFungibleLocalId carries a []byte field and
// is not comparable, so it cannot be a Go map key directly.
type Bucket struct {
	Id           NodeId
	Resource     NodeId
	Kind         ResourceKind
	Divisibility uint8

	liquidAmount Decimal
	lockedAmount Decimal

	liquidIds map[string]NonFungibleLocalId
	lockedIds map[string]lockedNFId
}

func NewFungibleBucket(id, resource NodeId, divisibility uint8, amount Decimal) *Bucket {
	return &Bucket{
		Id: id, Resource: resource, Kind: ResourceFungible, Divisibility: divisibility,
		liquidAmount: amount, lockedAmount: DecimalZero(),
	}
}

func NewNonFungibleBucket(id, resource NodeId, ids []NonFungibleLocalId) *Bucket {
	b := &Bucket{
		Id: id, Resource: resource, Kind: ResourceNonFungible,
		liquidIds: make(map[string]NonFungibleLocalId, len(ids)),
		lockedIds: make(map[string]lockedNFId),
	}
	for _, id := range ids {
		b.liquidIds[id.String()] = id
	}
	return b
}

// Amount returns the fungible liquid+locked total, or the count of
// non-fungible ids for a non-fungible bucket.
func (b *Bucket) Amount() Decimal {
	if b.Kind == ResourceFungible {
		return b.liquidAmount.Add(b.lockedAmount)
	}
	return DecimalFromInt64(int64(len(b.liquidIds) + len(b.lockedIds)))
}

// IsEmpty reports whether the bucket holds nothing at all, liquid or
// locked.
func (b *Bucket) IsEmpty() bool {
	if b.Kind == ResourceFungible {
		return b.liquidAmount.IsZero() && b.lockedAmount.IsZero()
	}
	return len(b.liquidIds) == 0 && len(b.lockedIds) == 0
}

// PutFungible merges another fungible bucket's liquid+locked holdings
// into this one; both must name the same resource.
func (b *Bucket) PutFungible(other *Bucket) error {
	if b.Kind != ResourceFungible || other.Kind != ResourceFungible {
		return &ApplicationError{Frame: "Bucket.Put", Err: fmt.Errorf("not a fungible bucket")}
	}
	if b.Resource != other.Resource {
		return &ApplicationError{Frame: "Bucket.Put", Err: ErrResourceAddressMismatch}
	}
	b.liquidAmount = b.liquidAmount.Add(other.liquidAmount)
	b.lockedAmount = b.lockedAmount.Add(other.lockedAmount)
	other.liquidAmount = DecimalZero()
	other.lockedAmount = DecimalZero()
	return nil
}

// TakeFungible removes amount from liquid holdings, truncating to the
// resource's divisibility (Open Question 1), and returns a new bucket
// holding exactly that amount.
func (b *Bucket) TakeFungible(id NodeId, amount Decimal) (*Bucket, error) {
	if b.Kind != ResourceFungible {
		return nil, &ApplicationError{Frame: "Bucket.Take", Err: fmt.Errorf("not a fungible bucket")}
	}
	amount = amount.RoundToDivisibility(b.Divisibility)
	if amount.GreaterThan(b.liquidAmount) {
		return nil, &ApplicationError{Frame: "Bucket.Take", Err: ErrInsufficientBalance}
	}
	b.liquidAmount = b.liquidAmount.Sub(amount)
	return NewFungibleBucket(id, b.Resource, b.Divisibility, amount), nil
}

// PutNonFungible merges another non-fungible bucket's liquid ids into
// this one.
func (b *Bucket) PutNonFungible(other *Bucket) error {
	if b.Kind != ResourceNonFungible || other.Kind != ResourceNonFungible {
		return &ApplicationError{Frame: "Bucket.Put", Err: fmt.Errorf("not a non-fungible bucket")}
	}
	if b.Resource != other.Resource {
		return &ApplicationError{Frame: "Bucket.Put", Err: ErrResourceAddressMismatch}
	}
	for key := range other.liquidIds {
		if _, dup := b.liquidIds[key]; dup {
			return &ApplicationError{Frame: "Bucket.Put", Err: ErrDuplicateSetEntry}
		}
	}
	for key, id := range other.liquidIds {
		b.liquidIds[key] = id
		delete(other.liquidIds, key)
	}
	return nil
}

// TakeNonFungibleByIds removes a specific set of ids from liquid holdings.
func (b *Bucket) TakeNonFungibleByIds(id NodeId, ids []NonFungibleLocalId) (*Bucket, error) {
	if b.Kind != ResourceNonFungible {
		return nil, &ApplicationError{Frame: "Bucket.Take", Err: fmt.Errorf("not a non-fungible bucket")}
	}
	for _, want := range ids {
		if _, ok := b.liquidIds[want.String()]; !ok {
			return nil, &ApplicationError{Frame: "Bucket.Take", Err: ErrInsufficientBalance}
		}
	}
	for _, want := range ids {
		delete(b.liquidIds, want.String())
	}
	return NewNonFungibleBucket(id, b.Resource, ids), nil
}

// lockAmount marks amount as locked (held by a proof); the liquid pool
// shrinks and the locked pool grows by the same amount, preserving
// locked+liquid==total.
func (b *Bucket) lockAmount(amount Decimal) error {
	if amount.GreaterThan(b.liquidAmount) {
		return ErrLockedExceedsLiquid
	}
	b.liquidAmount = b.liquidAmount.Sub(amount)
	b.lockedAmount = b.lockedAmount.Add(amount)
	return nil
}

func (b *Bucket) unlockAmount(amount Decimal) {
	b.lockedAmount = b.lockedAmount.Sub(amount)
	b.liquidAmount = b.liquidAmount.Add(amount)
}

func (b *Bucket) lockIds(ids []NonFungibleLocalId) error {
	for _, id := range ids {
		if _, ok := b.liquidIds[id.String()]; !ok {
			return ErrLockedExceedsLiquid
		}
	}
	for _, id := range ids {
		key := id.String()
		delete(b.liquidIds, key)
		l := b.lockedIds[key]
		l.id = id
		l.count++
		b.lockedIds[key] = l
	}
	return nil
}

func (b *Bucket) unlockIds(ids []NonFungibleLocalId) {
	for _, id := range ids {
		key := id.String()
		l, ok := b.lockedIds[key]
		if !ok {
			continue
		}
		l.count--
		if l.count == 0 {
			delete(b.lockedIds, key)
			b.liquidIds[key] = id
		} else {
			b.lockedIds[key] = l
		}
	}
}
