package core

import "testing"

// TestCreateProofOfAmountDrawsExactAmount confirms CreateProofOfAmount
// composes exactly the requested amount from a larger resident proof,
// not the full amount of every proof it touched.
func TestCreateProofOfAmountDrawsExactAmount(t *testing.T) {
	resource := testResourceAddr(t, 1)
	bucket := NewFungibleBucket(testBucketId(t, 1), resource, 18, DecimalFromInt64(10))
	resident, err := NewFungibleProofFromBucket(testBucketId(t, 2), bucket, DecimalFromInt64(10))
	if err != nil {
		t.Fatalf("NewFungibleProofFromBucket: %v", err)
	}
	if !bucket.lockedAmount.Equal(DecimalFromInt64(10)) {
		t.Fatalf("bucket locked amount after creating resident proof = %s, want 10", bucket.lockedAmount)
	}

	zone := NewRootAuthZone([]*Proof{resident})
	proof, err := zone.CreateProofOfAmount(testBucketId(t, 3), resource, DecimalFromInt64(4))
	if err != nil {
		t.Fatalf("CreateProofOfAmount: %v", err)
	}
	if !proof.Amount.Equal(DecimalFromInt64(4)) {
		t.Fatalf("composed proof amount = %s, want 4 (not the resident proof's full 10)", proof.Amount)
	}
	// drawing a partial claim against an already-locked resident proof
	// must not touch the bucket's locked total: it's a claim on
	// evidence already locked, not a second lock against liquid funds.
	if got := bucket.lockedAmount; !got.Equal(DecimalFromInt64(10)) {
		t.Errorf("bucket locked amount after partial draw = %s, want unchanged 10", got)
	}

	// the resident proof is untouched: the zone still has it available
	// for a second, independent draw against the same evidence.
	second, err := zone.CreateProofOfAmount(testBucketId(t, 4), resource, DecimalFromInt64(6))
	if err != nil {
		t.Fatalf("CreateProofOfAmount (second draw): %v", err)
	}
	if !second.Amount.Equal(DecimalFromInt64(6)) {
		t.Fatalf("second composed proof amount = %s, want 6", second.Amount)
	}

	// dropping the two partial draws must not release the bucket's
	// lock early: the resident proof they were drawn from is still
	// alive and still claims the full 10.
	proof.Drop()
	second.Drop()
	if got := bucket.lockedAmount; !got.Equal(DecimalFromInt64(10)) {
		t.Errorf("bucket locked amount after dropping partial draws = %s, want still 10", got)
	}

	resident.Drop()
	if got := bucket.lockedAmount; !got.IsZero() {
		t.Errorf("bucket locked amount after dropping resident proof = %s, want 0", got)
	}
}

// TestCreateProofOfAmountInsufficientResidentProofs confirms the
// insufficient-evidence error still fires when no combination of
// visible proofs reaches the requested amount.
func TestCreateProofOfAmountInsufficientResidentProofs(t *testing.T) {
	resource := testResourceAddr(t, 1)
	bucket := NewFungibleBucket(testBucketId(t, 1), resource, 18, DecimalFromInt64(2))
	resident, err := NewFungibleProofFromBucket(testBucketId(t, 2), bucket, DecimalFromInt64(2))
	if err != nil {
		t.Fatalf("NewFungibleProofFromBucket: %v", err)
	}

	zone := NewRootAuthZone([]*Proof{resident})
	if _, err := zone.CreateProofOfAmount(testBucketId(t, 3), resource, DecimalFromInt64(5)); err == nil {
		t.Fatalf("expected insufficient base proofs error")
	}
}
