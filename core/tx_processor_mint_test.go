package core

import "testing"

// TestMintFungibleShortcut confirms mint_fungible mints through the
// published resource manager rather than erroring as an unsupported
// instruction, and that the resulting bucket lands in the requested
// slot holding exactly the minted amount.
func TestMintFungibleShortcut(t *testing.T) {
	p := newTestProcessor(t, 30)
	resource := testResourceAddr(t, 5)
	manager := NewFungibleResource(resource, 18, AccessRule{Kind: RuleAllowAll})
	p.Resources().Register(manager)

	m := &Manifest{Instructions: []Instruction{
		{Kind: InstrMintFungible, Resource: resource, Amount: DecimalFromInt64(100), NewSlot: "minted"},
		{Kind: InstrReturnToWorktop, BucketSlot: "minted"},
		{Kind: InstrAssertWorktopContains, Resource: resource, Amount: DecimalFromInt64(100)},
		{Kind: InstrTakeAllFromWorktop, Resource: resource, NewSlot: "drain"},
		{Kind: InstrBurnBucket, BucketSlot: "drain"},
	}}

	if err := p.Run(m); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !manager.TotalSupply.IsZero() {
		t.Errorf("total supply after mint+burn = %s, want 0", manager.TotalSupply)
	}
}

// TestMintFungibleRejectsUnpublishedResource confirms minting against
// an address with no registered manager fails instead of silently
// fabricating supply.
func TestMintFungibleRejectsUnpublishedResource(t *testing.T) {
	p := newTestProcessor(t, 31)
	resource := testResourceAddr(t, 6)

	m := &Manifest{Instructions: []Instruction{
		{Kind: InstrMintFungible, Resource: resource, Amount: DecimalFromInt64(1), NewSlot: "minted"},
	}}
	if err := p.Run(m); err == nil {
		t.Fatalf("expected error minting against an unpublished resource manager")
	}
}

// TestMintFungibleRejectsUnauthorized confirms the manager's mint/burn
// access rule is actually enforced.
func TestMintFungibleRejectsUnauthorized(t *testing.T) {
	p := newTestProcessor(t, 32)
	resource := testResourceAddr(t, 7)
	manager := NewFungibleResource(resource, 18, AccessRule{Kind: RuleDenyAll})
	p.Resources().Register(manager)

	m := &Manifest{Instructions: []Instruction{
		{Kind: InstrMintFungible, Resource: resource, Amount: DecimalFromInt64(1), NewSlot: "minted"},
	}}
	if err := p.Run(m); err == nil {
		t.Fatalf("expected authorization denied minting with a deny-all rule")
	}
}
