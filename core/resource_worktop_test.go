package core

import (
	"errors"
	"testing"
)

func testWorktopIds(t *testing.T) (*Worktop, func() NodeId) {
	t.Helper()
	var counter uint64
	nextId := func() NodeId {
		counter++
		tail := make([]byte, NodeIdLength-1)
		tail[0] = byte(counter)
		id, _ := NewNodeId(EntityTypeInternalGenericComponent, tail)
		return id
	}
	return NewWorktop(nextId), nextId
}

func TestWorktopAssertVariantsFungible(t *testing.T) {
	w, nextId := testWorktopIds(t)
	resource := testResourceAddr(t, 1)
	other := testResourceAddr(t, 2)

	if err := w.Put(NewFungibleBucket(nextId(), resource, 18, DecimalFromInt64(50))); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if err := w.AssertContainsAny(resource); err != nil {
		t.Errorf("AssertContainsAny: %v", err)
	}
	if err := w.AssertContainsAny(other); err == nil {
		t.Errorf("AssertContainsAny on absent resource should fail")
	}

	if err := w.AssertContainsExact(resource, DecimalFromInt64(50)); err != nil {
		t.Errorf("AssertContainsExact(50): %v", err)
	}
	if err := w.AssertContainsExact(resource, DecimalFromInt64(49)); err == nil {
		t.Errorf("AssertContainsExact(49) should fail: worktop holds more")
	}
	if err := w.AssertContainsExact(resource, DecimalFromInt64(51)); err == nil {
		t.Errorf("AssertContainsExact(51) should fail: worktop holds less")
	}
}

func TestWorktopAssertAndTakeNonFungibles(t *testing.T) {
	w, nextId := testWorktopIds(t)
	resource := testResourceAddr(t, 3)
	ids := []NonFungibleLocalId{
		{Kind: NFLocalIdInteger, Integer: 1},
		{Kind: NFLocalIdInteger, Integer: 2},
		{Kind: NFLocalIdString, Str: "alpha"},
	}
	if err := w.Put(NewNonFungibleBucket(nextId(), resource, ids)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if err := w.AssertContainsNonFungibles(resource, ids[:2]); err != nil {
		t.Errorf("AssertContainsNonFungibles subset: %v", err)
	}
	missing := NonFungibleLocalId{Kind: NFLocalIdInteger, Integer: 9}
	if err := w.AssertContainsNonFungibles(resource, []NonFungibleLocalId{missing}); err == nil {
		t.Errorf("AssertContainsNonFungibles with missing id should fail")
	}

	if err := w.AssertContainsExactNonFungibles(resource, ids); err != nil {
		t.Errorf("AssertContainsExactNonFungibles full set: %v", err)
	}
	if err := w.AssertContainsExactNonFungibles(resource, ids[:2]); err == nil {
		t.Errorf("AssertContainsExactNonFungibles proper subset should fail")
	}

	taken, err := w.TakeNonFungibleIds(resource, ids[:1])
	if err != nil {
		t.Fatalf("TakeNonFungibleIds: %v", err)
	}
	if !taken.Amount().Equal(DecimalFromInt64(1)) {
		t.Errorf("taken holds %s ids, want 1", taken.Amount())
	}
	if err := w.AssertContainsNonFungibles(resource, ids[:1]); err == nil {
		t.Errorf("taken id should no longer be resident")
	}
}

func TestProcessorMintNonFungibleAndBurn(t *testing.T) {
	p := newTestProcessor(t, 33)

	resource := testResourceAddr(t, 4)
	manager := NewNonFungibleResource(resource, AccessRule{Kind: RuleAllowAll})
	p.NonFungibleResources().Register(manager)

	ids := []NonFungibleLocalId{
		{Kind: NFLocalIdInteger, Integer: 7},
		{Kind: NFLocalIdInteger, Integer: 8},
	}
	m := &Manifest{Instructions: []Instruction{
		{Kind: InstrMintNonFungible, Resource: resource, Ids: ids, NewSlot: "minted"},
		{Kind: InstrBurnBucket, BucketSlot: "minted"},
	}}
	if err := p.Run(m); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if manager.TotalMinted() != 0 {
		t.Errorf("TotalMinted = %d after burn, want 0", manager.TotalMinted())
	}
}

func TestProcessorMintNonFungibleDeniedByRule(t *testing.T) {
	p := newTestProcessor(t, 34)

	resource := testResourceAddr(t, 5)
	p.NonFungibleResources().Register(NewNonFungibleResource(resource, AccessRule{Kind: RuleDenyAll}))

	m := &Manifest{Instructions: []Instruction{
		{Kind: InstrMintNonFungible, Resource: resource, Ids: []NonFungibleLocalId{{Kind: NFLocalIdInteger, Integer: 1}}, NewSlot: "minted"},
	}}
	err := p.Run(m)
	if err == nil {
		t.Fatalf("mint under a deny-all rule must fail")
	}
	var appErr *ApplicationError
	if !errors.As(err, &appErr) {
		t.Errorf("want ApplicationError, got %T (%v)", err, err)
	}
}

func TestClearSignatureProofsRemovesAuthority(t *testing.T) {
	resource := testResourceAddr(t, 6)
	bucket := NewFungibleBucket(testBucketId(t, 1), resource, 18, DecimalFromInt64(10))
	sig, err := NewFungibleProofFromBucket(testBucketId(t, 2), bucket, DecimalFromInt64(10))
	if err != nil {
		t.Fatalf("NewFungibleProofFromBucket: %v", err)
	}
	zone := NewRootAuthZone([]*Proof{sig})

	rule := AccessRule{Kind: RuleRequireResource, Resource: resource}
	if ok, _ := rule.Satisfies(zone); !ok {
		t.Fatalf("signature proof should satisfy the rule before clearing")
	}
	zone.ClearSignatureProofs()
	if ok, _ := rule.Satisfies(zone); ok {
		t.Errorf("rule still satisfied after ClearSignatureProofs")
	}
}
