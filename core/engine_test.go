package core

import (
	"strings"
	"testing"
)

func testAddr(t *testing.T, et EntityType, tailByte byte) NodeId {
	t.Helper()
	tail := make([]byte, NodeIdLength-1)
	tail[0] = tailByte
	id, err := NewNodeId(et, tail)
	if err != nil {
		t.Fatalf("NewNodeId: %v", err)
	}
	return id
}

// newScenarioEngine wires an engine the way genesis would: a mem store,
// the account blueprint published natively, and the fee resource known.
func newScenarioEngine(t *testing.T) (*Engine, NodeId, NodeId) {
	t.Helper()
	xrd := testAddr(t, EntityTypeResource, 0x01)
	accountPkg := testAddr(t, EntityTypePackage, 0x02)
	e := NewEngine(NewMemStore(), EngineConfig{
		NetworkId:  1,
		SystemLoan: 10_000_000,
		Limits:     DefaultTransactionLimits(),
	})
	if err := RegisterAccountBlueprint(e.Native(), e.Packages(), accountPkg, e.Accounts(), xrd); err != nil {
		t.Fatalf("RegisterAccountBlueprint: %v", err)
	}
	return e, xrd, accountPkg
}

func seedAccount(t *testing.T, e *Engine, addrTail byte, resource NodeId, amount int64) *Account {
	t.Helper()
	acct := NewAccount(testAddr(t, EntityTypeAccountComponent, addrTail))
	vault := NewFungibleVault(testAddr(t, EntityTypeFungibleVault, addrTail), resource, 18)
	if amount > 0 {
		if err := vault.PutFungible(NewFungibleBucket(testAddr(t, EntityTypeInternalGenericComponent, addrTail), resource, 18, DecimalFromInt64(amount))); err != nil {
			t.Fatalf("seed vault: %v", err)
		}
	}
	acct.AddVault(vault)
	e.Accounts().Register(acct)
	return acct
}

func testHeader(nonce uint32) TransactionHeader {
	return TransactionHeader{
		NetworkId:     1,
		StartEpoch:    1,
		EndEpoch:      100,
		Nonce:         nonce,
		CostUnitLimit: 100_000_000,
	}
}

func mustPayload(t *testing.T, b []byte, err error) []byte {
	t.Helper()
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	return b
}

func transferManifest(t *testing.T, accountPkg, from, to, resource NodeId, fee, amount int64) *Manifest {
	t.Helper()
	return &Manifest{Instructions: []Instruction{
		{Kind: InstrCallMethod, Package: accountPkg, Blueprint: AccountBlueprintName, Function: "lock_fee",
			Receiver: from, Payload: mustPayload(t, EncodeLockFeeArgs(DecimalFromInt64(fee), false))},
		{Kind: InstrCallMethod, Package: accountPkg, Blueprint: AccountBlueprintName, Function: "withdraw",
			Receiver: from, Payload: mustPayload(t, EncodeWithdrawArgs(resource, DecimalFromInt64(amount)))},
		{Kind: InstrTakeAllFromWorktop, Resource: resource, NewSlot: "payment"},
		{Kind: InstrCallMethod, Package: accountPkg, Blueprint: AccountBlueprintName, Function: "deposit",
			Receiver: to, ArgSlots: []string{"payment"}},
	}}
}

// TestScenarioSimpleTransfer exercises the basic transfer flow: lock_fee(A, 100),
// withdraw(A, XRD, 1), deposit(B, worktop). The locked fee is consumed
// in full at settlement, so A ends at 1000 - 100 - 1.
func TestScenarioSimpleTransfer(t *testing.T) {
	e, xrd, accountPkg := newScenarioEngine(t)
	a := seedAccount(t, e, 0x0A, xrd, 1000)
	b := seedAccount(t, e, 0x0B, xrd, 0)

	receipt, err := e.ExecuteManifest(transferManifest(t, accountPkg, a.Address, b.Address, xrd, 100, 1), testHeader(1), 1)
	if err != nil {
		t.Fatalf("ExecuteManifest: %v", err)
	}
	if receipt.Outcome != OutcomeCommitSuccess {
		t.Fatalf("outcome = %s (%s), want CommitSuccess", receipt.Outcome, receipt.ErrorMessage)
	}
	if got, want := a.Balance(xrd), DecimalFromInt64(899); !got.Equal(want) {
		t.Errorf("A balance = %s, want %s", got, want)
	}
	if got, want := b.Balance(xrd), DecimalFromInt64(1); !got.Equal(want) {
		t.Errorf("B balance = %s, want %s", got, want)
	}
	if receipt.StateRoot == [32]byte{} {
		t.Errorf("commit success must carry a state root")
	}
	if !receipt.Fees.XRDBurned.Equal(DecimalFromInt64(100)) {
		t.Errorf("fee summary locked %s, want 100", receipt.Fees.XRDBurned)
	}
}

// TestScenarioDuplicateIntentReplay replays a committed intent: the same intent
// within its expiry window commits once, then rejects.
func TestScenarioDuplicateIntentReplay(t *testing.T) {
	e, xrd, accountPkg := newScenarioEngine(t)
	a := seedAccount(t, e, 0x0A, xrd, 1000)
	b := seedAccount(t, e, 0x0B, xrd, 0)

	m := transferManifest(t, accountPkg, a.Address, b.Address, xrd, 10, 1)
	first, err := e.ExecuteManifest(m, testHeader(1), 1)
	if err != nil {
		t.Fatalf("first ExecuteManifest: %v", err)
	}
	if first.Outcome != OutcomeCommitSuccess {
		t.Fatalf("first outcome = %s (%s)", first.Outcome, first.ErrorMessage)
	}

	second, err := e.ExecuteManifest(m, testHeader(1), 2)
	if err != nil {
		t.Fatalf("second ExecuteManifest: %v", err)
	}
	if second.Outcome != OutcomeRejection {
		t.Fatalf("second outcome = %s, want Rejection", second.Outcome)
	}
	if !strings.Contains(second.ErrorMessage, ErrDuplicateIntentHash.Error()) {
		t.Errorf("rejection message %q does not name the duplicate intent hash", second.ErrorMessage)
	}
	// a different nonce is a different intent and must still commit.
	third, err := e.ExecuteManifest(m, testHeader(2), 2)
	if err != nil {
		t.Fatalf("third ExecuteManifest: %v", err)
	}
	if third.Outcome != OutcomeCommitSuccess {
		t.Fatalf("third outcome = %s (%s)", third.Outcome, third.ErrorMessage)
	}
}

// TestScenarioOverWithdraw over-draws an account: the withdraw fails after
// the fee loan was repaid, so the outcome is a commit failure and the
// only balance change is the fee.
func TestScenarioOverWithdraw(t *testing.T) {
	e, xrd, accountPkg := newScenarioEngine(t)
	a := seedAccount(t, e, 0x0A, xrd, 10)
	b := seedAccount(t, e, 0x0B, xrd, 0)

	receipt, err := e.ExecuteManifest(transferManifest(t, accountPkg, a.Address, b.Address, xrd, 5, 11), testHeader(1), 1)
	if err != nil {
		t.Fatalf("ExecuteManifest: %v", err)
	}
	if receipt.Outcome != OutcomeCommitFailure {
		t.Fatalf("outcome = %s (%s), want CommitFailure", receipt.Outcome, receipt.ErrorMessage)
	}
	if !strings.Contains(receipt.ErrorMessage, ErrInsufficientBalance.Error()) {
		t.Errorf("error %q does not name InsufficientBalance", receipt.ErrorMessage)
	}
	if got, want := a.Balance(xrd), DecimalFromInt64(5); !got.Equal(want) {
		t.Errorf("A balance = %s, want %s (fee only)", got, want)
	}
	if !b.Balance(xrd).IsZero() {
		t.Errorf("B balance = %s, want 0", b.Balance(xrd))
	}
}

// TestScenarioRejectionBeforeLoanRepaid: the same failure before any
// fee lock is a rejection, not a commit failure.
func TestScenarioRejectionBeforeLoanRepaid(t *testing.T) {
	e, xrd, accountPkg := newScenarioEngine(t)
	a := seedAccount(t, e, 0x0A, xrd, 10)

	m := &Manifest{Instructions: []Instruction{
		{Kind: InstrCallMethod, Package: accountPkg, Blueprint: AccountBlueprintName, Function: "withdraw",
			Receiver: a.Address, Payload: mustPayload(t, EncodeWithdrawArgs(xrd, DecimalFromInt64(11)))},
	}}
	receipt, err := e.ExecuteManifest(m, testHeader(1), 1)
	if err != nil {
		t.Fatalf("ExecuteManifest: %v", err)
	}
	if receipt.Outcome != OutcomeRejection {
		t.Fatalf("outcome = %s, want Rejection", receipt.Outcome)
	}
}

// TestScenarioCallDepthLimit exercises the native recursion bound: a
// blueprint that recurses into itself succeeds at MaxCallDepth and
// fails one level beyond it with MaxCallDepthLimitReached.
func TestScenarioCallDepthLimit(t *testing.T) {
	e, xrd, accountPkg := newScenarioEngine(t)
	a := seedAccount(t, e, 0x0A, xrd, 1000)

	recursePkg := testAddr(t, EntityTypePackage, 0x03)
	if _, err := e.Packages().PublishNativeBlueprint(recursePkg, "Recurse", AccessRule{Kind: RuleAllowAll}); err != nil {
		t.Fatalf("PublishNativeBlueprint: %v", err)
	}
	var target int
	e.Native().Register(recursePkg, "Recurse", "down", func(k *Kernel, args DecodeResult) ([]byte, error) {
		if k.Depth() >= target {
			return nil, nil
		}
		actor := Actor{Package: recursePkg, Blueprint: "Recurse"}
		_, err := k.Invoke(actor, InvokeArgs{}, func(k *Kernel) ([]NodeId, map[NodeId]struct{}, []byte, error) {
			out, err := e.Packages().Invoke(k, recursePkg, "Recurse", "down", args)
			return nil, nil, out, err
		})
		return nil, err
	})

	manifest := func() *Manifest {
		return &Manifest{Instructions: []Instruction{
			{Kind: InstrCallMethod, Package: accountPkg, Blueprint: AccountBlueprintName, Function: "lock_fee",
				Receiver: a.Address, Payload: mustPayload(t, EncodeLockFeeArgs(DecimalFromInt64(10), false))},
			{Kind: InstrCallFunction, Package: recursePkg, Blueprint: "Recurse", Function: "down"},
		}}
	}

	target = MaxCallDepth
	ok, err := e.ExecuteManifest(manifest(), testHeader(1), 1)
	if err != nil {
		t.Fatalf("ExecuteManifest: %v", err)
	}
	if ok.Outcome != OutcomeCommitSuccess {
		t.Fatalf("depth %d outcome = %s (%s), want CommitSuccess", target, ok.Outcome, ok.ErrorMessage)
	}

	target = MaxCallDepth + 1
	over, err := e.ExecuteManifest(manifest(), testHeader(2), 1)
	if err != nil {
		t.Fatalf("ExecuteManifest: %v", err)
	}
	if over.Outcome != OutcomeCommitFailure {
		t.Fatalf("depth %d outcome = %s (%s), want CommitFailure", target, over.Outcome, over.ErrorMessage)
	}
	if !strings.Contains(over.ErrorMessage, ErrMaxCallDepthExceeded.Error()) {
		t.Errorf("error %q does not name the depth limit", over.ErrorMessage)
	}
}

// TestScenarioHashTreeDeterminism checks replay determinism: two engines seeded
// identically and fed the same transaction sequence agree on the state
// root at every step.
func TestScenarioHashTreeDeterminism(t *testing.T) {
	build := func() (*Engine, NodeId, NodeId, *Account, *Account) {
		e, xrd, accountPkg := newScenarioEngine(t)
		a := seedAccount(t, e, 0x0A, xrd, 1000)
		b := seedAccount(t, e, 0x0B, xrd, 0)
		return e, xrd, accountPkg, a, b
	}
	e1, xrd1, pkg1, a1, b1 := build()
	e2, xrd2, pkg2, a2, b2 := build()

	for nonce := uint32(1); nonce <= 5; nonce++ {
		r1, err := e1.ExecuteManifest(transferManifest(t, pkg1, a1.Address, b1.Address, xrd1, 10, int64(nonce)), testHeader(nonce), 1)
		if err != nil {
			t.Fatalf("engine 1 tx %d: %v", nonce, err)
		}
		r2, err := e2.ExecuteManifest(transferManifest(t, pkg2, a2.Address, b2.Address, xrd2, 10, int64(nonce)), testHeader(nonce), 1)
		if err != nil {
			t.Fatalf("engine 2 tx %d: %v", nonce, err)
		}
		if r1.Outcome != OutcomeCommitSuccess || r2.Outcome != OutcomeCommitSuccess {
			t.Fatalf("tx %d outcomes: %s / %s", nonce, r1.Outcome, r2.Outcome)
		}
		if r1.StateRoot != r2.StateRoot {
			t.Fatalf("tx %d state roots diverge: %x vs %x", nonce, r1.StateRoot, r2.StateRoot)
		}
		if e1.StateRoot() != e2.StateRoot() {
			t.Fatalf("tx %d tree roots diverge", nonce)
		}
	}
	if got, want := a1.Balance(xrd1), DecimalFromInt64(1000-5*10-(1+2+3+4+5)); !got.Equal(want) {
		t.Errorf("A balance = %s, want %s", got, want)
	}
}

// TestScenarioProofRestrictionBreach runs the restriction rule at the processor
// layer: a proof crosses one package boundary (restricting it), and the
// second downstream move fails with CantMoveDownstream.
func TestScenarioProofRestrictionBreach(t *testing.T) {
	k := newTestKernel(t, 40)
	native := NewNativeVM()
	sandbox := NewSandbox(nil, native)
	pkgs := NewPackageRegistry(sandbox)

	pkgOne := testAddr(t, EntityTypePackage, 0x31)
	pkgTwo := testAddr(t, EntityTypePackage, 0x32)
	for _, pkg := range []NodeId{pkgOne, pkgTwo} {
		if _, err := pkgs.PublishNativeBlueprint(pkg, "Gate", AccessRule{Kind: RuleAllowAll}); err != nil {
			t.Fatalf("PublishNativeBlueprint: %v", err)
		}
		native.Register(pkg, "Gate", "inspect", func(k *Kernel, args DecodeResult) ([]byte, error) { return nil, nil })
	}

	p := NewTxProcessor(k, pkgs, nil)
	resource := testResourceAddr(t, 1)
	bucket := NewFungibleBucket(p.nextHeapId(), resource, 18, DecimalFromInt64(10))
	proof, err := NewFungibleProofFromBucket(p.nextHeapId(), bucket, DecimalFromInt64(10))
	if err != nil {
		t.Fatalf("NewFungibleProofFromBucket: %v", err)
	}
	p.proofs["evidence"] = proof

	m := &Manifest{Instructions: []Instruction{
		{Kind: InstrCallMethod, Package: pkgOne, Blueprint: "Gate", Function: "inspect", ArgSlots: []string{"evidence"}},
		{Kind: InstrCallMethod, Package: pkgTwo, Blueprint: "Gate", Function: "inspect", ArgSlots: []string{"evidence"}},
	}}
	runErr := p.Run(m)
	if runErr == nil {
		t.Fatalf("second downstream move must fail")
	}
	if !strings.Contains(runErr.Error(), ErrCantMoveDownstream.Error()) {
		t.Errorf("error %q does not name CantMoveDownstream", runErr)
	}
}
