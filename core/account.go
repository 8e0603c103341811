package core

// account.go – the native account blueprint.
// An account is a globalized component owning one vault per resource;
// its methods are the ones every end-to-end manifest needs: lock_fee,
// withdraw, deposit, balance. They dispatch through the NativeVM like
// any other blueprint call, so the kernel's module chain (limits,
// costing, auth, node-move, logging) sees them exactly as it would see
// a WASM method.

import (
	"fmt"
	"sync"
)

// AccountBlueprintName is the blueprint name accounts publish under.
const AccountBlueprintName = "Account"

// Account is one account component's in-memory state: a vault per
// resource address. Vault ids are allocated deterministically from the
// kernel's id allocator at first deposit.
type Account struct {
	Address NodeId
	vaults  map[NodeId]*Vault
}

func NewAccount(address NodeId) *Account {
	return &Account{Address: address, vaults: make(map[NodeId]*Vault)}
}

// Vault returns the account's vault for a resource, if one exists.
func (a *Account) Vault(resource NodeId) (*Vault, bool) {
	v, ok := a.vaults[resource]
	return v, ok
}

// AddVault attaches an existing vault to the account; used at genesis
// wiring when balances are seeded outside a transaction.
func (a *Account) AddVault(v *Vault) { a.vaults[v.Resource] = v }

// Balance reports the account's total holdings of a resource.
func (a *Account) Balance(resource NodeId) Decimal {
	if v, ok := a.vaults[resource]; ok {
		return v.Amount()
	}
	return DecimalZero()
}

// AccountRegistry indexes account components by their global address,
// the way PackageRegistry indexes packages.
type AccountRegistry struct {
	mu     sync.RWMutex
	byAddr map[NodeId]*Account
}

func NewAccountRegistry() *AccountRegistry {
	return &AccountRegistry{byAddr: make(map[NodeId]*Account)}
}

func (r *AccountRegistry) Register(a *Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byAddr[a.Address] = a
}

func (r *AccountRegistry) Lookup(addr NodeId) (*Account, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byAddr[addr]
	return a, ok
}

//---------------------------------------------------------------------
// Method argument encoding
//---------------------------------------------------------------------

// EncodeLockFeeArgs builds the scrypto-domain payload for
// Account.lock_fee: (amount, contingent).
func EncodeLockFeeArgs(amount Decimal, contingent bool) ([]byte, error) {
	return NewEncoder(DomainScrypto).Encode(Value{Kind: KindTuple, Fields: []Value{
		{Kind: CustomDecimal, Decimal: amount},
		{Kind: KindBool, Bool: contingent},
	}})
}

// EncodeWithdrawArgs builds the payload for Account.withdraw:
// (resource, amount).
func EncodeWithdrawArgs(resource NodeId, amount Decimal) ([]byte, error) {
	return NewEncoder(DomainScrypto).Encode(Value{Kind: KindTuple, Fields: []Value{
		{Kind: CustomReference, Reference: resource},
		{Kind: CustomDecimal, Decimal: amount},
	}})
}

// EncodeBalanceArgs builds the payload for Account.balance: (resource).
func EncodeBalanceArgs(resource NodeId) ([]byte, error) {
	return NewEncoder(DomainScrypto).Encode(Value{Kind: KindTuple, Fields: []Value{
		{Kind: CustomReference, Reference: resource},
	}})
}

func decodeAccountArgs(payload []byte) (Value, error) {
	res, err := NewDecoder(DomainScrypto).Decode(payload)
	if err != nil {
		return Value{}, &ApplicationError{Frame: AccountBlueprintName, Err: err}
	}
	if res.Value.Kind != KindTuple {
		return Value{}, &ApplicationError{Frame: AccountBlueprintName, Err: fmt.Errorf("expected tuple arguments")}
	}
	return res.Value, nil
}

//---------------------------------------------------------------------
// Native method registration
//---------------------------------------------------------------------

// RegisterAccountBlueprint publishes the account blueprint natively at
// pkgAddr and wires its methods against the given account registry and
// fee resource (the native fungible the reserve settles in).
func RegisterAccountBlueprint(native *NativeVM, pkgs *PackageRegistry, pkgAddr NodeId, accounts *AccountRegistry, feeResource NodeId) error {
	if _, err := pkgs.PublishNativeBlueprint(pkgAddr, AccountBlueprintName, AccessRule{Kind: RuleAllowAll}); err != nil {
		return err
	}

	receiverAccount := func(k *Kernel) (*Account, error) {
		actor := k.currentFrame().Actor
		if actor.Receiver == nil {
			return nil, &ApplicationError{Frame: AccountBlueprintName, Err: fmt.Errorf("method requires a receiver")}
		}
		acct, ok := accounts.Lookup(*actor.Receiver)
		if !ok {
			return nil, &ApplicationError{Frame: AccountBlueprintName, Err: fmt.Errorf("no account at %s", *actor.Receiver)}
		}
		return acct, nil
	}

	native.Register(pkgAddr, AccountBlueprintName, "lock_fee", func(k *Kernel, args DecodeResult) ([]byte, error) {
		acct, err := receiverAccount(k)
		if err != nil {
			return nil, err
		}
		tuple, err := decodeAccountArgs(args.Value.Bytes)
		if err != nil || len(tuple.Fields) != 2 {
			return nil, &ApplicationError{Frame: AccountBlueprintName, Err: fmt.Errorf("lock_fee wants (amount, contingent)")}
		}
		amount := tuple.Fields[0].Decimal
		contingent := tuple.Fields[1].Bool

		vault, ok := acct.Vault(feeResource)
		if !ok {
			return nil, &ApplicationError{Frame: AccountBlueprintName, Err: ErrInsufficientBalance}
		}
		payId, err := k.AllocateNodeId(EntityTypeInternalGenericComponent)
		if err != nil {
			return nil, err
		}
		payment, err := vault.TakeFungible(payId, amount)
		if err != nil {
			return nil, err
		}
		fee := k.FeeReserve()
		fee.LockFee(vault.Id, payment.Amount(), contingent)
		if !contingent && !fee.LoanRepaid() {
			fee.RepayLoan()
		}
		return nil, nil
	})

	native.Register(pkgAddr, AccountBlueprintName, "withdraw", func(k *Kernel, args DecodeResult) ([]byte, error) {
		acct, err := receiverAccount(k)
		if err != nil {
			return nil, err
		}
		tuple, err := decodeAccountArgs(args.Value.Bytes)
		if err != nil || len(tuple.Fields) != 2 {
			return nil, &ApplicationError{Frame: AccountBlueprintName, Err: fmt.Errorf("withdraw wants (resource, amount)")}
		}
		resource := tuple.Fields[0].Reference
		amount := tuple.Fields[1].Decimal

		vault, ok := acct.Vault(resource)
		if !ok {
			return nil, &ApplicationError{Frame: AccountBlueprintName, Err: ErrInsufficientBalance}
		}
		bucketId, err := k.CreateNode(EntityTypeInternalGenericComponent)
		if err != nil {
			return nil, err
		}
		bucket, err := vault.TakeFungible(bucketId, amount)
		if err != nil {
			return nil, err
		}
		k.StageBucketReturn(bucket)
		return nil, nil
	})

	native.Register(pkgAddr, AccountBlueprintName, "deposit", func(k *Kernel, args DecodeResult) ([]byte, error) {
		acct, err := receiverAccount(k)
		if err != nil {
			return nil, err
		}
		frame := k.currentFrame()
		ids := make([]NodeId, 0, len(frame.Owned))
		for id := range frame.Owned {
			ids = append(ids, id)
		}
		for _, id := range ids {
			bucket, ok := k.BucketByNode(id)
			if !ok {
				continue
			}
			vault, haveVault := acct.Vault(bucket.Resource)
			if !haveVault {
				if bucket.Kind == ResourceNonFungible {
					vaultId, err := k.AllocateNodeId(EntityTypeNonFungibleVault)
					if err != nil {
						return nil, err
					}
					vault = NewNonFungibleVault(vaultId, bucket.Resource)
				} else {
					vaultId, err := k.AllocateNodeId(EntityTypeFungibleVault)
					if err != nil {
						return nil, err
					}
					vault = NewFungibleVault(vaultId, bucket.Resource, bucket.Divisibility)
				}
				acct.AddVault(vault)
			}
			if bucket.Kind == ResourceNonFungible {
				err = vault.PutNonFungible(bucket)
			} else {
				err = vault.PutFungible(bucket)
			}
			if err != nil {
				return nil, err
			}
			if err := k.DropNode(id, nil); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})

	native.Register(pkgAddr, AccountBlueprintName, "balance", func(k *Kernel, args DecodeResult) ([]byte, error) {
		acct, err := receiverAccount(k)
		if err != nil {
			return nil, err
		}
		tuple, err := decodeAccountArgs(args.Value.Bytes)
		if err != nil || len(tuple.Fields) != 1 {
			return nil, &ApplicationError{Frame: AccountBlueprintName, Err: fmt.Errorf("balance wants (resource)")}
		}
		return NewEncoder(DomainScrypto).Encode(Value{Kind: CustomDecimal, Decimal: acct.Balance(tuple.Fields[0].Reference)})
	})

	return nil
}
