package core

// resource_worktop.go – the transaction-processor-scoped staging area
// for buckets in flight between instructions. Every
// transaction starts with an empty worktop and must end with one too:
// any resource left on the worktop at the final instruction is a
// WorktopNotEmptyAtEnd failure, forcing manifests to account for every
// unit they produce.

import (
	"fmt"
)

// Worktop holds zero or more buckets per resource, merging same-resource
// deposits automatically the way the manifest interpreter's "deposit
// batch" instructions expect.
type Worktop struct {
	buckets map[NodeId][]*Bucket
	nextId  func() NodeId
}

func NewWorktop(nextId func() NodeId) *Worktop {
	return &Worktop{buckets: make(map[NodeId][]*Bucket), nextId: nextId}
}

// Put places a bucket's contents on the worktop, merging into an
// existing same-resource bucket when one is present so TakeAll and
// balance queries see a single consolidated amount.
func (w *Worktop) Put(b *Bucket) error {
	existing := w.buckets[b.Resource]
	for _, e := range existing {
		if b.Kind == ResourceFungible {
			if err := e.PutFungible(b); err != nil {
				return err
			}
			return nil
		}
		if err := e.PutNonFungible(b); err != nil {
			return err
		}
		return nil
	}
	w.buckets[b.Resource] = append(w.buckets[b.Resource], b)
	return nil
}

// TakeAmount withdraws amount of a fungible resource from the worktop
// into a new bucket, drawing from (and possibly draining) the resident
// bucket(s) for that resource.
func (w *Worktop) TakeAmount(resource NodeId, amount Decimal) (*Bucket, error) {
	pool := w.buckets[resource]
	if len(pool) == 0 {
		return nil, &ApplicationError{Frame: "Worktop.Take", Err: ErrInsufficientBalance}
	}
	out, err := pool[0].TakeFungible(w.nextId(), amount)
	if err != nil {
		return nil, err
	}
	w.pruneEmpty(resource)
	return out, nil
}

// TakeNonFungibleIds withdraws a specific id set from the worktop.
func (w *Worktop) TakeNonFungibleIds(resource NodeId, ids []NonFungibleLocalId) (*Bucket, error) {
	pool := w.buckets[resource]
	if len(pool) == 0 {
		return nil, &ApplicationError{Frame: "Worktop.Take", Err: ErrInsufficientBalance}
	}
	out, err := pool[0].TakeNonFungibleByIds(w.nextId(), ids)
	if err != nil {
		return nil, err
	}
	w.pruneEmpty(resource)
	return out, nil
}

// TakeAll withdraws the entire resident amount of a resource, leaving
// none behind.
func (w *Worktop) TakeAll(resource NodeId) (*Bucket, error) {
	pool := w.buckets[resource]
	if len(pool) == 0 {
		return nil, &ApplicationError{Frame: "Worktop.Take", Err: ErrInsufficientBalance}
	}
	b := pool[0]
	delete(w.buckets, resource)
	return b, nil
}

// amountOf reports the consolidated resident amount of a resource.
func (w *Worktop) amountOf(resource NodeId) Decimal {
	total := DecimalZero()
	for _, b := range w.buckets[resource] {
		total = total.Add(b.Amount())
	}
	return total
}

// idsOf reports the resident non-fungible id set of a resource, keyed
// the same way Bucket keys its liquid ids.
func (w *Worktop) idsOf(resource NodeId) map[string]struct{} {
	out := make(map[string]struct{})
	for _, b := range w.buckets[resource] {
		for key := range b.liquidIds {
			out[key] = struct{}{}
		}
	}
	return out
}

// AssertContains checks the worktop holds at least amount of resource
// without withdrawing it.
func (w *Worktop) AssertContains(resource NodeId, amount Decimal) error {
	if w.amountOf(resource).LessThan(amount) {
		return &ApplicationError{Frame: "Worktop.Assert", Err: fmt.Errorf("worktop does not contain %s of %s", amount, resource)}
	}
	return nil
}

// AssertContainsAny checks the worktop holds a non-zero amount of the
// resource.
func (w *Worktop) AssertContainsAny(resource NodeId) error {
	if w.amountOf(resource).IsZero() {
		return &ApplicationError{Frame: "Worktop.Assert", Err: fmt.Errorf("worktop contains none of %s", resource)}
	}
	return nil
}

// AssertContainsExact checks the worktop holds exactly amount of the
// resource, no more and no less.
func (w *Worktop) AssertContainsExact(resource NodeId, amount Decimal) error {
	if !w.amountOf(resource).Equal(amount) {
		return &ApplicationError{Frame: "Worktop.Assert", Err: fmt.Errorf("worktop holds %s of %s, expected exactly %s", w.amountOf(resource), resource, amount)}
	}
	return nil
}

// AssertContainsNonFungibles checks every id in ids is resident on the
// worktop for the given resource; extra resident ids are permitted.
func (w *Worktop) AssertContainsNonFungibles(resource NodeId, ids []NonFungibleLocalId) error {
	resident := w.idsOf(resource)
	for _, id := range ids {
		if _, ok := resident[id.String()]; !ok {
			return &ApplicationError{Frame: "Worktop.Assert", Err: fmt.Errorf("worktop is missing %s of %s", id, resource)}
		}
	}
	return nil
}

// AssertContainsExactNonFungibles checks the resident id set equals ids
// exactly.
func (w *Worktop) AssertContainsExactNonFungibles(resource NodeId, ids []NonFungibleLocalId) error {
	resident := w.idsOf(resource)
	if len(resident) != len(ids) {
		return &ApplicationError{Frame: "Worktop.Assert", Err: fmt.Errorf("worktop holds %d ids of %s, expected exactly %d", len(resident), resource, len(ids))}
	}
	return w.AssertContainsNonFungibles(resource, ids)
}

func (w *Worktop) pruneEmpty(resource NodeId) {
	pool := w.buckets[resource]
	kept := pool[:0]
	for _, b := range pool {
		if !b.IsEmpty() {
			kept = append(kept, b)
		}
	}
	if len(kept) == 0 {
		delete(w.buckets, resource)
	} else {
		w.buckets[resource] = kept
	}
}

// IsEmpty reports whether any resource at all remains on the worktop.
func (w *Worktop) IsEmpty() bool {
	for _, pool := range w.buckets {
		for _, b := range pool {
			if !b.IsEmpty() {
				return false
			}
		}
	}
	return true
}

// Drain removes and returns every resident bucket. The processor's
// final worktop-empty check uses IsEmpty, not Drain.
func (w *Worktop) Drain() []*Bucket {
	var all []*Bucket
	for resource, pool := range w.buckets {
		all = append(all, pool...)
		delete(w.buckets, resource)
	}
	return all
}
