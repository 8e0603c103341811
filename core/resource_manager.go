package core

// resource_manager.go – the resource definition behind every bucket,
// vault and proof of a given resource address. A ResourceManager
// is a globalized node: its substates record total supply, divisibility
// (fungible) and the mint/burn authority, queried by the resource
// subsystem whenever a new bucket is created.

import (
	"fmt"
	"sync"
)

// FungibleResource is the globalized definition of a fungible resource.
type FungibleResource struct {
	Address      NodeId
	Divisibility uint8
	TotalSupply  Decimal
	MintBurnRule AccessRule
}

func NewFungibleResource(address NodeId, divisibility uint8, mintBurn AccessRule) *FungibleResource {
	return &FungibleResource{Address: address, Divisibility: divisibility, TotalSupply: DecimalZero(), MintBurnRule: mintBurn}
}

// Round applies round-half-to-even at the resource's divisibility.
// Nothing in the engine calls it: `take` truncates, and bucket and
// vault merges add amounts without rounding.
func (r *FungibleResource) Round(amount Decimal) Decimal {
	return amount.RoundHalfToEven(r.Divisibility)
}

// Mint creates new supply and returns a bucket holding it, failing if
// amount isn't aligned to the resource's divisibility.
func (r *FungibleResource) Mint(bucketId NodeId, amount Decimal) (*Bucket, error) {
	truncated := amount.RoundToDivisibility(r.Divisibility)
	if !truncated.Equal(amount) {
		return nil, &ApplicationError{Frame: "ResourceManager.Mint", Err: fmt.Errorf("amount not aligned to divisibility %d", r.Divisibility)}
	}
	r.TotalSupply = r.TotalSupply.Add(amount)
	return NewFungibleBucket(bucketId, r.Address, r.Divisibility, amount), nil
}

// Burn destroys a bucket's contents and reduces total supply.
func (r *FungibleResource) Burn(b *Bucket) error {
	if b.Resource != r.Address {
		return &ApplicationError{Frame: "ResourceManager.Burn", Err: ErrResourceAddressMismatch}
	}
	r.TotalSupply = r.TotalSupply.Sub(b.Amount())
	b.liquidAmount = DecimalZero()
	b.lockedAmount = DecimalZero()
	return nil
}

// NonFungibleResource is the globalized definition of a non-fungible
// resource: a registry of its currently minted ids. It holds no
// per-id data.
type NonFungibleResource struct {
	Address      NodeId
	MintBurnRule AccessRule
	minted       map[string]bool
}

func NewNonFungibleResource(address NodeId, mintBurn AccessRule) *NonFungibleResource {
	return &NonFungibleResource{Address: address, MintBurnRule: mintBurn, minted: make(map[string]bool)}
}

// Mint registers the given ids as minted and returns a bucket holding them.
func (r *NonFungibleResource) Mint(bucketId NodeId, ids []NonFungibleLocalId) (*Bucket, error) {
	for _, id := range ids {
		if r.minted[id.String()] {
			return nil, &ApplicationError{Frame: "ResourceManager.Mint", Err: ErrDuplicateSetEntry}
		}
	}
	for _, id := range ids {
		r.minted[id.String()] = true
	}
	return NewNonFungibleBucket(bucketId, r.Address, ids), nil
}

func (r *NonFungibleResource) Burn(b *Bucket) error {
	if b.Resource != r.Address {
		return &ApplicationError{Frame: "ResourceManager.Burn", Err: ErrResourceAddressMismatch}
	}
	for key := range b.liquidIds {
		delete(r.minted, key)
		delete(b.liquidIds, key)
	}
	return nil
}

// TotalMinted reports how many minted ids have not been burned since.
func (r *NonFungibleResource) TotalMinted() int { return len(r.minted) }

// FungibleResourceRegistry indexes published fungible resource managers
// by their global address, the way PackageRegistry indexes published
// packages (package_registry.go). The transaction processor's
// mint_fungible shortcut consults it to find the manager backing
// a resource address.
type FungibleResourceRegistry struct {
	mu     sync.RWMutex
	byAddr map[NodeId]*FungibleResource
}

func NewFungibleResourceRegistry() *FungibleResourceRegistry {
	return &FungibleResourceRegistry{byAddr: make(map[NodeId]*FungibleResource)}
}

// Register publishes a resource manager under its own address, the way
// PublishNativeBlueprint publishes a package.
func (r *FungibleResourceRegistry) Register(res *FungibleResource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byAddr[res.Address] = res
}

func (r *FungibleResourceRegistry) Lookup(addr NodeId) (*FungibleResource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.byAddr[addr]
	return res, ok
}

// NonFungibleResourceRegistry is the non-fungible counterpart, consulted
// by the processor's mint_non_fungible shortcut and by burn_bucket when
// the bucket holds ids rather than an amount.
type NonFungibleResourceRegistry struct {
	mu     sync.RWMutex
	byAddr map[NodeId]*NonFungibleResource
}

func NewNonFungibleResourceRegistry() *NonFungibleResourceRegistry {
	return &NonFungibleResourceRegistry{byAddr: make(map[NodeId]*NonFungibleResource)}
}

func (r *NonFungibleResourceRegistry) Register(res *NonFungibleResource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byAddr[res.Address] = res
}

func (r *NonFungibleResourceRegistry) Lookup(addr NodeId) (*NonFungibleResource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.byAddr[addr]
	return res, ok
}
