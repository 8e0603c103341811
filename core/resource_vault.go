package core

// resource_vault.go – persistent resource holding container.
// Unlike a Bucket, a Vault is a substate-backed node: its balance lives
// in the store, nested inside whatever globalized component owns it
// (an account, a component's internal field). Vaults are never passed
// between frames directly — only by reference to the owning component,
// which is why Vault never appears in an InvokeArgs owned/referenced
// set the way Bucket does.

import (
	"fmt"
)

// Vault is the persistent counterpart of Bucket. Field layout mirrors
// Bucket deliberately so Put/Take share the same arithmetic; a Vault
// additionally tracks whether it has been frozen by a recall/freeze
// role action.
type Vault struct {
	Id           NodeId
	Resource     NodeId
	Kind         ResourceKind
	Divisibility uint8

	liquidAmount Decimal
	lockedAmount Decimal

	liquidIds map[string]NonFungibleLocalId
	lockedIds map[string]lockedNFId

	frozen bool
}

func NewFungibleVault(id, resource NodeId, divisibility uint8) *Vault {
	return &Vault{Id: id, Resource: resource, Kind: ResourceFungible, Divisibility: divisibility, liquidAmount: DecimalZero(), lockedAmount: DecimalZero()}
}

func NewNonFungibleVault(id, resource NodeId) *Vault {
	return &Vault{
		Id: id, Resource: resource, Kind: ResourceNonFungible,
		liquidIds: make(map[string]NonFungibleLocalId),
		lockedIds: make(map[string]lockedNFId),
	}
}

func (v *Vault) Amount() Decimal {
	if v.Kind == ResourceFungible {
		return v.liquidAmount.Add(v.lockedAmount)
	}
	return DecimalFromInt64(int64(len(v.liquidIds) + len(v.lockedIds)))
}

// Freeze/Unfreeze implement the recall-role "freeze withdrawal" action;
// a frozen vault rejects Put/Take until unfrozen.
func (v *Vault) Freeze()   { v.frozen = true }
func (v *Vault) Unfreeze() { v.frozen = false }

func (v *Vault) requireUnfrozen() error {
	if v.frozen {
		return &ApplicationError{Frame: "Vault", Err: ErrVaultFrozen}
	}
	return nil
}

// PutFungible deposits a bucket's full fungible contents into the vault.
func (v *Vault) PutFungible(b *Bucket) error {
	if err := v.requireUnfrozen(); err != nil {
		return err
	}
	if v.Kind != ResourceFungible || b.Kind != ResourceFungible {
		return &ApplicationError{Frame: "Vault.Put", Err: fmt.Errorf("not a fungible resource")}
	}
	if v.Resource != b.Resource {
		return &ApplicationError{Frame: "Vault.Put", Err: ErrResourceAddressMismatch}
	}
	v.liquidAmount = v.liquidAmount.Add(b.liquidAmount)
	v.lockedAmount = v.lockedAmount.Add(b.lockedAmount)
	b.liquidAmount = DecimalZero()
	b.lockedAmount = DecimalZero()
	return nil
}

// TakeFungible withdraws amount into a newly minted bucket.
func (v *Vault) TakeFungible(bucketId NodeId, amount Decimal) (*Bucket, error) {
	if err := v.requireUnfrozen(); err != nil {
		return nil, err
	}
	if v.Kind != ResourceFungible {
		return nil, &ApplicationError{Frame: "Vault.Take", Err: fmt.Errorf("not a fungible resource")}
	}
	amount = amount.RoundToDivisibility(v.Divisibility)
	if amount.GreaterThan(v.liquidAmount) {
		return nil, &ApplicationError{Frame: "Vault.Take", Err: ErrInsufficientBalance}
	}
	v.liquidAmount = v.liquidAmount.Sub(amount)
	return NewFungibleBucket(bucketId, v.Resource, v.Divisibility, amount), nil
}

// PutNonFungible deposits a bucket's non-fungible ids into the vault.
func (v *Vault) PutNonFungible(b *Bucket) error {
	if err := v.requireUnfrozen(); err != nil {
		return err
	}
	if v.Kind != ResourceNonFungible || b.Kind != ResourceNonFungible {
		return &ApplicationError{Frame: "Vault.Put", Err: fmt.Errorf("not a non-fungible resource")}
	}
	if v.Resource != b.Resource {
		return &ApplicationError{Frame: "Vault.Put", Err: ErrResourceAddressMismatch}
	}
	for key := range b.liquidIds {
		if _, dup := v.liquidIds[key]; dup {
			return &ApplicationError{Frame: "Vault.Put", Err: ErrDuplicateSetEntry}
		}
	}
	for key, id := range b.liquidIds {
		v.liquidIds[key] = id
		delete(b.liquidIds, key)
	}
	return nil
}

// TakeNonFungibleByIds withdraws a specific id set into a new bucket.
func (v *Vault) TakeNonFungibleByIds(bucketId NodeId, ids []NonFungibleLocalId) (*Bucket, error) {
	if err := v.requireUnfrozen(); err != nil {
		return nil, err
	}
	if v.Kind != ResourceNonFungible {
		return nil, &ApplicationError{Frame: "Vault.Take", Err: fmt.Errorf("not a non-fungible resource")}
	}
	for _, want := range ids {
		if _, ok := v.liquidIds[want.String()]; !ok {
			return nil, &ApplicationError{Frame: "Vault.Take", Err: ErrInsufficientBalance}
		}
	}
	for _, want := range ids {
		delete(v.liquidIds, want.String())
	}
	return NewNonFungibleBucket(bucketId, v.Resource, ids), nil
}

// lockAmount/lockIds/unlock* mirror Bucket's, used when a vault-backed
// proof is created directly against a vault.
func (v *Vault) lockAmount(amount Decimal) error {
	if amount.GreaterThan(v.liquidAmount) {
		return ErrLockedExceedsLiquid
	}
	v.liquidAmount = v.liquidAmount.Sub(amount)
	v.lockedAmount = v.lockedAmount.Add(amount)
	return nil
}

func (v *Vault) unlockAmount(amount Decimal) {
	v.lockedAmount = v.lockedAmount.Sub(amount)
	v.liquidAmount = v.liquidAmount.Add(amount)
}

func (v *Vault) lockIds(ids []NonFungibleLocalId) error {
	for _, id := range ids {
		if _, ok := v.liquidIds[id.String()]; !ok {
			return ErrLockedExceedsLiquid
		}
	}
	for _, id := range ids {
		key := id.String()
		delete(v.liquidIds, key)
		l := v.lockedIds[key]
		l.id = id
		l.count++
		v.lockedIds[key] = l
	}
	return nil
}

func (v *Vault) unlockIds(ids []NonFungibleLocalId) {
	for _, id := range ids {
		key := id.String()
		l, ok := v.lockedIds[key]
		if !ok {
			continue
		}
		l.count--
		if l.count == 0 {
			delete(v.lockedIds, key)
			v.liquidIds[key] = id
		} else {
			v.lockedIds[key] = l
		}
	}
}
