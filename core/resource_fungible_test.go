package core

import "testing"

func testResourceAddr(t *testing.T, tailByte byte) NodeId {
	t.Helper()
	tail := make([]byte, NodeIdLength-1)
	tail[0] = tailByte
	id, err := NewNodeId(EntityTypeResource, tail)
	if err != nil {
		t.Fatalf("NewNodeId: %v", err)
	}
	return id
}

func testBucketId(t *testing.T, tailByte byte) NodeId {
	t.Helper()
	tail := make([]byte, NodeIdLength-1)
	tail[0] = tailByte
	id, err := NewNodeId(EntityTypeInternalGenericComponent, tail)
	if err != nil {
		t.Fatalf("NewNodeId: %v", err)
	}
	return id
}

func TestBucketTakeFungibleRoundsDownToDivisibility(t *testing.T) {
	resource := testResourceAddr(t, 1)
	amount, _ := DecimalFromString("10")
	b := NewFungibleBucket(testBucketId(t, 1), resource, 2, amount)

	take, _ := DecimalFromString("1.239")
	out, err := b.TakeFungible(testBucketId(t, 2), take)
	if err != nil {
		t.Fatalf("TakeFungible: %v", err)
	}
	want, _ := DecimalFromString("1.23")
	if !out.Amount().Equal(want) {
		t.Errorf("taken amount = %s, want %s", out.Amount(), want)
	}
	wantRemaining, _ := DecimalFromString("8.77")
	if !b.liquidAmount.Equal(wantRemaining) {
		t.Errorf("remaining liquid = %s, want %s", b.liquidAmount, wantRemaining)
	}
}

func TestBucketTakeFungibleInsufficientBalance(t *testing.T) {
	resource := testResourceAddr(t, 1)
	b := NewFungibleBucket(testBucketId(t, 1), resource, 18, DecimalFromInt64(5))
	_, err := b.TakeFungible(testBucketId(t, 2), DecimalFromInt64(10))
	if err == nil {
		t.Fatalf("expected insufficient balance error")
	}
}

func TestBucketPutFungibleMismatchedResourceRejected(t *testing.T) {
	a := NewFungibleBucket(testBucketId(t, 1), testResourceAddr(t, 1), 18, DecimalFromInt64(1))
	b := NewFungibleBucket(testBucketId(t, 2), testResourceAddr(t, 2), 18, DecimalFromInt64(1))
	if err := a.PutFungible(b); err == nil {
		t.Fatalf("expected resource address mismatch error")
	}
}

func TestWorktopTakeAndPutRoundTrip(t *testing.T) {
	resource := testResourceAddr(t, 1)
	var counter uint64
	nextId := func() NodeId {
		counter++
		tail := make([]byte, NodeIdLength-1)
		tail[0] = byte(counter)
		id, _ := NewNodeId(EntityTypeInternalGenericComponent, tail)
		return id
	}
	w := NewWorktop(nextId)

	bucket := NewFungibleBucket(nextId(), resource, 18, DecimalFromInt64(100))
	if err := w.Put(bucket); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if w.IsEmpty() {
		t.Fatalf("worktop should not be empty after Put")
	}

	taken, err := w.TakeAmount(resource, DecimalFromInt64(40))
	if err != nil {
		t.Fatalf("TakeAmount: %v", err)
	}
	if !taken.Amount().Equal(DecimalFromInt64(40)) {
		t.Errorf("taken = %s, want 40", taken.Amount())
	}

	if err := w.AssertContains(resource, DecimalFromInt64(60)); err != nil {
		t.Errorf("AssertContains(60): %v", err)
	}
	if err := w.AssertContains(resource, DecimalFromInt64(61)); err == nil {
		t.Errorf("AssertContains(61) should fail")
	}

	if err := w.Put(taken); err != nil {
		t.Fatalf("Put back: %v", err)
	}
	all, err := w.TakeAll(resource)
	if err != nil {
		t.Fatalf("TakeAll: %v", err)
	}
	if !all.Amount().Equal(DecimalFromInt64(100)) {
		t.Errorf("TakeAll = %s, want 100", all.Amount())
	}
	if !w.IsEmpty() {
		t.Fatalf("worktop should be empty after TakeAll")
	}
}

func TestWorktopTakeAmountInsufficientBalance(t *testing.T) {
	var counter uint64
	nextId := func() NodeId {
		counter++
		tail := make([]byte, NodeIdLength-1)
		tail[0] = byte(counter)
		id, _ := NewNodeId(EntityTypeInternalGenericComponent, tail)
		return id
	}
	w := NewWorktop(nextId)
	if _, err := w.TakeAmount(testResourceAddr(t, 9), DecimalFromInt64(1)); err == nil {
		t.Fatalf("expected insufficient balance error on empty worktop")
	}
}

func TestProofCloneSharesLocksAndDropReleases(t *testing.T) {
	resource := testResourceAddr(t, 1)
	bucket := NewFungibleBucket(testBucketId(t, 1), resource, 18, DecimalFromInt64(10))

	proof, err := NewFungibleProofFromBucket(testBucketId(t, 2), bucket, DecimalFromInt64(4))
	if err != nil {
		t.Fatalf("NewFungibleProofFromBucket: %v", err)
	}
	if !bucket.liquidAmount.Equal(DecimalFromInt64(6)) {
		t.Fatalf("liquid after lock = %s, want 6", bucket.liquidAmount)
	}

	clone := proof.Clone(testBucketId(t, 3))
	proof.Drop()
	if !bucket.liquidAmount.Equal(DecimalFromInt64(6)) {
		t.Fatalf("liquid after dropping original should be unchanged while clone holds the lock, got %s", bucket.liquidAmount)
	}

	clone.Drop()
	if !bucket.liquidAmount.Equal(DecimalFromInt64(10)) {
		t.Fatalf("liquid after dropping last clone = %s, want 10", bucket.liquidAmount)
	}
}

func TestNewFungibleProofZeroAmountRejected(t *testing.T) {
	bucket := NewFungibleBucket(testBucketId(t, 1), testResourceAddr(t, 1), 18, DecimalFromInt64(10))
	if _, err := NewFungibleProofFromBucket(testBucketId(t, 2), bucket, DecimalZero()); err == nil {
		t.Fatalf("expected empty proof rejection")
	}
}

func TestVaultFreezeRejectsTake(t *testing.T) {
	v := NewFungibleVault(testBucketId(t, 1), testResourceAddr(t, 1), 18)
	if err := v.PutFungible(NewFungibleBucket(testBucketId(t, 2), v.Resource, 18, DecimalFromInt64(5))); err != nil {
		t.Fatalf("PutFungible: %v", err)
	}
	v.Freeze()
	if _, err := v.TakeFungible(testBucketId(t, 3), DecimalFromInt64(1)); err == nil {
		t.Fatalf("expected frozen vault to reject Take")
	}
	v.Unfreeze()
	if _, err := v.TakeFungible(testBucketId(t, 3), DecimalFromInt64(1)); err != nil {
		t.Fatalf("unfrozen vault Take: %v", err)
	}
}
