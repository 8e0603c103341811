package core

// tx_processor.go – the manifest interpreter. It owns the
// transaction-scoped worktop and root auth zone, runs each manifest
// instruction against them and the kernel, and enforces the
// worktop-empty-at-end rule before handing control back to the receipt
// assembler.

import (
	"bytes"
	"fmt"
)

// TxProcessor interprets one manifest within one kernel/transaction.
type TxProcessor struct {
	kernel  *Kernel
	pkgs    *PackageRegistry
	worktop *Worktop
	rootZone *AuthZone

	buckets map[string]*Bucket
	proofs  map[string]*Proof

	// resources and nfResources back the mint/burn shortcuts: the
	// resource manager a resource address mints through must be
	// published here before a manifest can mint against it.
	resources   *FungibleResourceRegistry
	nfResources *NonFungibleResourceRegistry

	heapCounter uint64

	manifest *Manifest

	// Subintent composition. parent is
	// nil for the root (top-level) processor. parentIntentHash is the
	// intent hash of the enclosing processor at the moment a child was
	// spawned, consulted by that child's verify_parent instruction.
	// yieldedBuckets/yieldedProofs collect the slots a yield_to_parent instruction
	// handed upward; the parent's yield_to_child step drains it back
	// into its own slots once the child manifest finishes.
	parent           *TxProcessor
	parentIntentHash IntentHash
	intentHash       IntentHash
	yieldedBuckets   map[string]*Bucket
	yieldedProofs    map[string]*Proof
}

func NewTxProcessor(k *Kernel, pkgs *PackageRegistry, signatureProofs []*Proof) *TxProcessor {
	p := &TxProcessor{
		kernel:      k,
		pkgs:        pkgs,
		buckets:     make(map[string]*Bucket),
		proofs:      make(map[string]*Proof),
		resources:   NewFungibleResourceRegistry(),
		nfResources: NewNonFungibleResourceRegistry(),
	}
	p.worktop = NewWorktop(p.nextHeapId)
	p.rootZone = NewRootAuthZone(signatureProofs)
	return p
}

// Resources returns the processor's fungible resource manager registry,
// so a caller can publish a manager before running a manifest that
// mints against its address.
func (p *TxProcessor) Resources() *FungibleResourceRegistry { return p.resources }

// NonFungibleResources is the non-fungible counterpart of Resources.
func (p *TxProcessor) NonFungibleResources() *NonFungibleResourceRegistry { return p.nfResources }

// UseResources swaps in externally owned resource registries, so
// manager state (total supply, minted id sets) survives across the
// transactions of an engine instead of dying with each processor.
func (p *TxProcessor) UseResources(f *FungibleResourceRegistry, nf *NonFungibleResourceRegistry) {
	if f != nil {
		p.resources = f
	}
	if nf != nil {
		p.nfResources = nf
	}
}

// SetIntentHash records the intent hash this processor executes under,
// so a subintent it yields control to can verify it against the one
// its own manifest expects (verify_parent).
func (p *TxProcessor) SetIntentHash(h IntentHash) { p.intentHash = h }

// nextHeapId allocates a synthetic NodeId for a processor-owned bucket
// or proof and registers it with the kernel as a real heap node owned
// by the current (root) frame. Registration is what lets these ids
// pass Invoke's owned/referenced transfer-set gate once a bucket or
// proof is later carried across a call boundary as an argument.
func (p *TxProcessor) nextHeapId() NodeId {
	p.heapCounter++
	var tail [NodeIdLength - 1]byte
	tail[0] = byte(p.heapCounter >> 56)
	tail[1] = byte(p.heapCounter >> 48)
	tail[len(tail)-1] = byte(p.heapCounter)
	id, _ := NewNodeId(EntityTypeInternalGenericComponent, tail[:])
	p.kernel.RegisterTransientNode(id)
	return id
}

// Run interprets every instruction in order, returning an error the
// moment any instruction fails.
func (p *TxProcessor) Run(m *Manifest) error {
	p.manifest = m
	for i, instr := range m.Instructions {
		if err := p.step(instr); err != nil {
			return fmt.Errorf("tx_processor: instruction %d (%v): %w", i, instr.Kind, err)
		}
	}
	if !p.worktop.IsEmpty() {
		return &ApplicationError{Frame: "TxProcessor", Err: ErrWorktopNotEmpty}
	}
	return nil
}

func (p *TxProcessor) step(instr Instruction) error {
	switch instr.Kind {
	case InstrTakeFromWorktop:
		b, err := p.worktop.TakeAmount(instr.Resource, instr.Amount)
		if err != nil {
			return err
		}
		p.buckets[instr.NewSlot] = b
		return nil

	case InstrTakeAllFromWorktop:
		b, err := p.worktop.TakeAll(instr.Resource)
		if err != nil {
			return err
		}
		p.buckets[instr.NewSlot] = b
		return nil

	case InstrReturnToWorktop:
		b, ok := p.buckets[instr.BucketSlot]
		if !ok {
			return fmt.Errorf("no bucket in slot %q", instr.BucketSlot)
		}
		delete(p.buckets, instr.BucketSlot)
		return p.worktop.Put(b)

	case InstrTakeNonFungiblesFromWorktop:
		b, err := p.worktop.TakeNonFungibleIds(instr.Resource, instr.Ids)
		if err != nil {
			return err
		}
		p.buckets[instr.NewSlot] = b
		return nil

	case InstrAssertWorktopContains:
		return p.worktop.AssertContains(instr.Resource, instr.Amount)

	case InstrAssertWorktopContainsAny:
		return p.worktop.AssertContainsAny(instr.Resource)

	case InstrAssertWorktopContainsExact:
		return p.worktop.AssertContainsExact(instr.Resource, instr.Amount)

	case InstrAssertWorktopContainsNonFungibles:
		return p.worktop.AssertContainsNonFungibles(instr.Resource, instr.Ids)

	case InstrAssertWorktopContainsExactNonFungibles:
		return p.worktop.AssertContainsExactNonFungibles(instr.Resource, instr.Ids)

	case InstrAuthZonePop:
		proof, err := p.rootZone.Pop()
		if err != nil {
			return err
		}
		p.proofs[instr.NewSlot] = proof
		return nil

	case InstrAuthZonePush:
		proof, ok := p.proofs[instr.ProofSlot]
		if !ok {
			return fmt.Errorf("no proof in slot %q", instr.ProofSlot)
		}
		delete(p.proofs, instr.ProofSlot)
		p.rootZone.Push(proof)
		return nil

	case InstrAuthZoneClear:
		p.rootZone.Clear()
		return nil

	case InstrAuthZoneClearSignatureProofs:
		p.rootZone.ClearSignatureProofs()
		return nil

	case InstrAuthZoneCreateProofOfAmount:
		proof, err := p.rootZone.CreateProofOfAmount(p.nextHeapId(), instr.Resource, instr.Amount)
		if err != nil {
			return err
		}
		p.proofs[instr.NewSlot] = proof
		return nil

	case InstrCloneProof:
		proof, ok := p.proofs[instr.ProofSlot]
		if !ok {
			return fmt.Errorf("no proof in slot %q", instr.ProofSlot)
		}
		p.proofs[instr.NewSlot] = proof.Clone(p.nextHeapId())
		return nil

	case InstrDropProof:
		proof, ok := p.proofs[instr.ProofSlot]
		if !ok {
			return fmt.Errorf("no proof in slot %q", instr.ProofSlot)
		}
		proof.Drop()
		delete(p.proofs, instr.ProofSlot)
		return nil

	case InstrCallFunction:
		return p.callPackage(instr, nil)

	case InstrCallMethod:
		return p.callPackage(instr, &instr.Receiver)

	case InstrCallDirectAccessMethod:
		return p.callPackage(instr, &instr.Receiver)

	case InstrMintFungible:
		return p.mintFungible(instr)

	case InstrMintNonFungible:
		return p.mintNonFungible(instr)

	case InstrBurnBucket:
		b, ok := p.buckets[instr.BucketSlot]
		if !ok {
			return fmt.Errorf("no bucket in slot %q", instr.BucketSlot)
		}
		delete(p.buckets, instr.BucketSlot)
		if b.Kind == ResourceNonFungible {
			if manager, found := p.nfResources.Lookup(b.Resource); found {
				if err := manager.Burn(b); err != nil {
					return err
				}
			}
		} else if manager, found := p.resources.Lookup(b.Resource); found {
			if err := manager.Burn(b); err != nil {
				return err
			}
		}
		return p.kernel.DropNode(b.Id, nil)

	case InstrAllocateGlobalAddress:
		_, err := p.kernel.CreateNode(instr.Receiver.EntityType())
		return err

	case InstrYieldToChild, InstrYieldToParent, InstrVerifyParent:
		return p.stepSubintent(instr)

	default:
		return fmt.Errorf("unknown instruction kind %d", instr.Kind)
	}
}

// callPackage routes a call_function/call_method/call_direct_access
// instruction through the kernel's Invoke, pulling named buckets/proofs
// out of the processor's slots as the owned/referenced transfer set.
func (p *TxProcessor) callPackage(instr Instruction, receiver *NodeId) error {
	owned := make([]NodeId, 0, len(instr.ArgSlots))
	referenced := make(map[NodeId]struct{})
	for _, slot := range instr.ArgSlots {
		if b, ok := p.buckets[slot]; ok {
			owned = append(owned, b.Id)
			p.kernel.BindBucket(b)
			delete(p.buckets, slot)
			continue
		}
		if pr, ok := p.proofs[slot]; ok {
			if err := pr.CheckMoveable(); err != nil {
				return err
			}
			// crossing into another package's frame is the barrier: once a
			// proof has gone downstream once, a second downstream move is
			// rejected by the CheckMoveable guard above. The
			// slot keeps the proof — references are borrowed, not consumed.
			pr.Restrict()
			referenced[pr.Id] = struct{}{}
			continue
		}
		return fmt.Errorf("call argument slot %q is empty", slot)
	}

	actor := Actor{Package: instr.Package, Blueprint: instr.Blueprint, Receiver: receiver}
	var returned []*Bucket
	_, err := p.kernel.Invoke(actor, InvokeArgs{Owned: owned, Referenced: referenced}, func(k *Kernel) ([]NodeId, map[NodeId]struct{}, []byte, error) {
		result, err := p.pkgs.Invoke(k, instr.Package, instr.Blueprint, instr.Function, DecodeResult{Value: Value{Kind: KindBytes, Bytes: instr.Payload}})
		if err != nil {
			return nil, nil, nil, err
		}
		returned = k.DrainReturnedBuckets()
		retOwned := make([]NodeId, 0, len(returned))
		for _, b := range returned {
			retOwned = append(retOwned, b.Id)
		}
		return retOwned, nil, result, nil
	})
	if err != nil {
		return err
	}
	// buckets the callee staged for return land on the worktop, the
	// holding area for buckets returned from invocations.
	for _, b := range returned {
		if err := p.worktop.Put(b); err != nil {
			return err
		}
	}
	return nil
}

// mintFungible implements the mint_fungible manifest shortcut:
// it resolves instr.Resource to its published manager, checks the
// manager's mint/burn authority against the current auth zone, then
// mints instr.Amount and binds the resulting bucket to instr.NewSlot.
// Unlike call_function/call_method, this never goes through Invoke:
// the processor is the sole instruction executor, and a resource
// manager has no blueprint frame of its own to call into.
func (p *TxProcessor) mintFungible(instr Instruction) error {
	manager, ok := p.resources.Lookup(instr.Resource)
	if !ok {
		return fmt.Errorf("tx_processor: no resource manager published for %s", instr.Resource)
	}
	ok2, err := manager.MintBurnRule.Satisfies(p.rootZone)
	if err != nil {
		return err
	}
	if !ok2 {
		return &ApplicationError{Frame: "TxProcessor.MintFungible", Err: fmt.Errorf("authorization denied")}
	}
	bucket, err := manager.Mint(p.nextHeapId(), instr.Amount)
	if err != nil {
		return err
	}
	p.buckets[instr.NewSlot] = bucket
	return nil
}

// mintNonFungible mirrors mintFungible for id-addressed resources: the
// manager's mint/burn authority gates it, and the freshly minted ids
// land in a new bucket bound to instr.NewSlot.
func (p *TxProcessor) mintNonFungible(instr Instruction) error {
	manager, ok := p.nfResources.Lookup(instr.Resource)
	if !ok {
		return fmt.Errorf("tx_processor: no resource manager published for %s", instr.Resource)
	}
	allowed, err := manager.MintBurnRule.Satisfies(p.rootZone)
	if err != nil {
		return err
	}
	if !allowed {
		return &ApplicationError{Frame: "TxProcessor.MintNonFungible", Err: fmt.Errorf("authorization denied")}
	}
	bucket, err := manager.Mint(p.nextHeapId(), instr.Ids)
	if err != nil {
		return err
	}
	p.buckets[instr.NewSlot] = bucket
	return nil
}

// stepSubintent dispatches the three v2 composed-transaction
// instructions. A subintent runs as a fully independent
// TxProcessor sharing only the kernel; buckets/proofs cross the
// yield boundary the same way they cross a call boundary — named
// slots move, nothing is implicitly visible on the other side.
func (p *TxProcessor) stepSubintent(instr Instruction) error {
	switch instr.Kind {
	case InstrYieldToChild:
		return p.yieldToChild(instr)
	case InstrYieldToParent:
		return p.yieldToParent(instr)
	case InstrVerifyParent:
		return p.verifyParent(instr)
	default:
		return fmt.Errorf("stepSubintent: unexpected kind %d", instr.Kind)
	}
}

func (p *TxProcessor) yieldToChild(instr Instruction) error {
	if p.manifest == nil || instr.SubintentIndex < 0 || instr.SubintentIndex >= len(p.manifest.Subintents) {
		return &ApplicationError{Frame: "TxProcessor", Err: ErrNoSubintent}
	}
	sub := p.manifest.Subintents[instr.SubintentIndex]
	if sub == nil {
		return &ApplicationError{Frame: "TxProcessor", Err: ErrNoSubintent}
	}

	child := NewTxProcessor(p.kernel, p.pkgs, nil)
	child.parent = p
	child.parentIntentHash = p.intentHash

	for _, slot := range instr.ArgSlots {
		if b, ok := p.buckets[slot]; ok {
			child.buckets[slot] = b
			delete(p.buckets, slot)
			continue
		}
		if pr, ok := p.proofs[slot]; ok {
			child.proofs[slot] = pr
			delete(p.proofs, slot)
			continue
		}
		return fmt.Errorf("yield_to_child: slot %q is empty", slot)
	}

	if err := child.Run(sub); err != nil {
		return fmt.Errorf("subintent %d: %w", instr.SubintentIndex, err)
	}

	for slot, b := range child.yieldedBuckets {
		p.buckets[slot] = b
	}
	for slot, pr := range child.yieldedProofs {
		p.proofs[slot] = pr
	}
	return nil
}

func (p *TxProcessor) yieldToParent(instr Instruction) error {
	if p.parent == nil {
		return &ApplicationError{Frame: "TxProcessor", Err: ErrYieldOutsideSubintent}
	}
	if p.yieldedBuckets == nil {
		p.yieldedBuckets = make(map[string]*Bucket)
	}
	if p.yieldedProofs == nil {
		p.yieldedProofs = make(map[string]*Proof)
	}
	for _, slot := range instr.ArgSlots {
		if b, ok := p.buckets[slot]; ok {
			p.yieldedBuckets[slot] = b
			delete(p.buckets, slot)
			continue
		}
		if pr, ok := p.proofs[slot]; ok {
			p.yieldedProofs[slot] = pr
			delete(p.proofs, slot)
			continue
		}
		return fmt.Errorf("yield_to_parent: slot %q is empty", slot)
	}
	return nil
}

// verifyParent checks that the enclosing processor's intent hash
// (captured at yield_to_child time) matches the hash the subintent's
// own manifest expects, carried pre-encoded in instr.Payload. This is
// what stops a subintent authored for one parent from being spliced
// into a different composed transaction.
func (p *TxProcessor) verifyParent(instr Instruction) error {
	if p.parent == nil {
		return &ApplicationError{Frame: "TxProcessor", Err: ErrYieldOutsideSubintent}
	}
	if len(instr.Payload) != len(p.parentIntentHash) || !bytes.Equal(instr.Payload, p.parentIntentHash[:]) {
		return &ApplicationError{Frame: "TxProcessor", Err: ErrVerifyParentFailed}
	}
	return nil
}
