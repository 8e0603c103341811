package core

// kernel.go – the call-frame machine.
//
// The kernel owns a stack of call frames, a heap of not-yet-globalized
// nodes, a single per-kernel substate lock table, and a fixed-order
// chain of modules that observe every invoke/drop/node-move. It is the
// sole owner of the engine's structural invariants: no duplication,
// locked never exceeds liquid (enforced by the resource subsystem), one
// writer per substate, a reference is visible only if owned/passed/
// globalized, and no dangling ownership at commit.

import (
	"fmt"
)

const MaxCallDepth = 32

// LockFlags describe how a substate was locked.
type LockFlags struct {
	Mutable    bool
	ForceWrite bool
}

// lockEntry is one open entry in the kernel's single, shared lock table.
type lockEntry struct {
	key   SubstateKey
	flags LockFlags
	frame int // index into Kernel.frames that holds this lock
}

// LockHandle identifies one open substate lock.
type LockHandle uint64

// Actor identifies who a frame executes on behalf of.
type Actor struct {
	Package      NodeId
	Blueprint    string
	Receiver     *NodeId // nil for function calls
	AuthorityRef *NodeId // proof of authority presented at invoke time, if any
}

// CallFrame is one element of the kernel's call stack.
type CallFrame struct {
	Depth      int
	Actor      Actor
	Owned      map[NodeId]*HeapNode
	References map[NodeId]struct{}
	Locks      map[LockHandle]struct{}
	AuthZoneID NodeId
}

// HeapNode is a node that has not yet been globalized: it lives in the
// kernel's heap, owned by exactly one frame at a time.
type HeapNode struct {
	Id         NodeId
	Substates  map[PartitionNum]map[string][]byte
	Globalized bool
}

func newHeapNode(id NodeId) *HeapNode {
	return &HeapNode{Id: id, Substates: make(map[PartitionNum]map[string][]byte)}
}

// Kernel is the per-transaction frame machine.
type Kernel struct {
	frames     []*CallFrame
	heap       map[NodeId]*HeapNode
	locks      map[LockHandle]*lockEntry
	nextLock   LockHandle
	track      *Track
	modules    []KernelModule
	fee        *FeeReserve
	idAlloc    *NodeIdAllocator
	events     []Event
	logs       []LogEntry

	// transientBuckets maps a bucket's heap-node id to its live Go
	// object, so a native blueprint receiving the node as an owned call
	// argument can reach the actual Bucket behind it. returnedBuckets
	// collects buckets a callee staged for return; the invoking
	// processor drains them onto the worktop.
	transientBuckets map[NodeId]*Bucket
	returnedBuckets  []*Bucket
}

// Event is emitted by a blueprint during execution.
type Event struct {
	Emitter NodeId
	Name    string
	Payload []byte
}

// LogEntry is a plain diagnostic log line emitted during execution.
type LogEntry struct {
	Level   string
	Message string
}

// NewKernel constructs a kernel for one transaction, rooted with an
// empty root frame (actor is the transaction processor itself).
func NewKernel(track *Track, fee *FeeReserve, modules []KernelModule, idAlloc *NodeIdAllocator) *Kernel {
	k := &Kernel{
		heap:             make(map[NodeId]*HeapNode),
		locks:            make(map[LockHandle]*lockEntry),
		track:            track,
		modules:          modules,
		fee:              fee,
		idAlloc:          idAlloc,
		transientBuckets: make(map[NodeId]*Bucket),
	}
	root := &CallFrame{
		Owned:      make(map[NodeId]*HeapNode),
		References: make(map[NodeId]struct{}),
		Locks:      make(map[LockHandle]struct{}),
	}
	k.frames = append(k.frames, root)
	return k
}

func (k *Kernel) currentFrame() *CallFrame { return k.frames[len(k.frames)-1] }

// Depth returns the current call-stack depth (root frame is depth 0).
func (k *Kernel) Depth() int { return len(k.frames) - 1 }

//---------------------------------------------------------------------
// Node lifecycle
//---------------------------------------------------------------------

// CreateNode allocates a node in the heap, owned by the current frame.
func (k *Kernel) CreateNode(et EntityType) (NodeId, error) {
	if err := k.runModules(func(m KernelModule) error { return m.OnSyscall(k, SyscallNodeCreate) }); err != nil {
		return NodeId{}, err
	}
	id, err := k.idAlloc.Allocate(et)
	if err != nil {
		return NodeId{}, newKernelError("CreateNode", err)
	}
	node := newHeapNode(id)
	k.heap[id] = node
	k.currentFrame().Owned[id] = node
	return id, nil
}

// RegisterTransientNode adopts an id minted outside the kernel's own
// allocator — the transaction processor's bucket/proof ids — as a real
// heap node owned by the current frame. Their content lives in the
// processor's Bucket/Proof Go objects, not in kernel substates; this
// only gives them the ownership bookkeeping Invoke's transfer-set gate
// (owned/referenced visibility) checks against, so a bucket or
// proof can cross a call boundary the same way any other owned/
// referenced node does. A no-op if id is already tracked.
func (k *Kernel) RegisterTransientNode(id NodeId) {
	if _, exists := k.heap[id]; exists {
		return
	}
	node := newHeapNode(id)
	k.heap[id] = node
	k.currentFrame().Owned[id] = node
}

// DropNode invokes the blueprint's on_drop hook (supplied by the
// caller, since the kernel does not know blueprint policy) and removes
// the node from the heap if it succeeds.
func (k *Kernel) DropNode(id NodeId, onDrop func(*HeapNode) error) error {
	frame := k.currentFrame()
	node, ok := frame.Owned[id]
	if !ok {
		return newKernelError("DropNode", fmt.Errorf("node %s not owned by current frame", id))
	}
	if err := k.runModules(func(m KernelModule) error { return m.OnDropNode(k, id) }); err != nil {
		return err
	}
	if onDrop != nil {
		if err := onDrop(node); err != nil {
			return &ApplicationError{Frame: frame.Actor.Blueprint, Err: err}
		}
	}
	delete(frame.Owned, id)
	delete(k.heap, id)
	delete(k.transientBuckets, id)
	return nil
}

// AllocateNodeId hands out a fresh deterministic node id without
// creating a heap node for it. Used for entities whose state lives
// outside the kernel heap, like vaults nested inside account state.
func (k *Kernel) AllocateNodeId(et EntityType) (NodeId, error) {
	id, err := k.idAlloc.Allocate(et)
	if err != nil {
		return NodeId{}, newKernelError("AllocateNodeId", err)
	}
	return id, nil
}

// BindBucket associates a bucket's live object with its heap-node id so
// a callee frame that receives the node as an owned argument can reach
// the Bucket itself via BucketByNode.
func (k *Kernel) BindBucket(b *Bucket) { k.transientBuckets[b.Id] = b }

// BucketByNode resolves a heap-node id back to its bound Bucket object.
func (k *Kernel) BucketByNode(id NodeId) (*Bucket, bool) {
	b, ok := k.transientBuckets[id]
	return b, ok
}

// StageBucketReturn marks a bucket created by the current (callee)
// frame for return to the invoker. The bucket's node must be owned by
// the current frame; the invoking processor drains staged buckets onto
// the worktop after Invoke returns.
func (k *Kernel) StageBucketReturn(b *Bucket) {
	k.transientBuckets[b.Id] = b
	k.returnedBuckets = append(k.returnedBuckets, b)
}

// DrainReturnedBuckets removes and returns every staged return bucket.
func (k *Kernel) DrainReturnedBuckets() []*Bucket {
	out := k.returnedBuckets
	k.returnedBuckets = nil
	return out
}

// GlobalizeNode flags a globally addressable node as Globalized and
// removes it from the current frame's owned set; the node stays in the
// heap, and from then on it is visible to any frame.
func (k *Kernel) GlobalizeNode(id NodeId) error {
	frame := k.currentFrame()
	node, ok := frame.Owned[id]
	if !ok {
		return newKernelError("GlobalizeNode", fmt.Errorf("node %s not owned by current frame", id))
	}
	if !id.IsGlobal() {
		return newKernelError("GlobalizeNode", fmt.Errorf("entity type %s is not globally addressable", id.EntityType()))
	}
	node.Globalized = true
	delete(frame.Owned, id)
	return nil
}

//---------------------------------------------------------------------
// Visibility
//---------------------------------------------------------------------

// isVisible reports whether the current frame may access node id: owned,
// referenced, globalized in the heap, or of a globally addressable
// entity type. A globally addressable node is visible to every frame;
// the frame does not need to hold a reference to it.
func (k *Kernel) isVisible(id NodeId) bool {
	frame := k.currentFrame()
	if _, ok := frame.Owned[id]; ok {
		return true
	}
	if _, ok := frame.References[id]; ok {
		return true
	}
	if node, ok := k.heap[id]; ok && node.Globalized {
		return true
	}
	return id.IsGlobal()
}

//---------------------------------------------------------------------
// Substate locks
//---------------------------------------------------------------------

// LockSubstate opens a lock handle on a substate. Read-only locks may
// coexist; a mutable lock is exclusive.
func (k *Kernel) LockSubstate(key SubstateKey, flags LockFlags) (LockHandle, error) {
	if !k.isVisible(key.NodeId) {
		return 0, newKernelError("LockSubstate", ErrNodeNotVisible)
	}
	if err := k.runModules(func(m KernelModule) error { return m.OnSyscall(k, SyscallSubstateLock) }); err != nil {
		return 0, err
	}
	for _, existing := range k.locks {
		if existing.key == key && (existing.flags.Mutable || flags.Mutable) {
			return 0, newKernelError("LockSubstate", ErrSubstateLocked)
		}
	}
	k.nextLock++
	h := k.nextLock
	k.locks[h] = &lockEntry{key: key, flags: flags, frame: len(k.frames) - 1}
	k.currentFrame().Locks[h] = struct{}{}
	return h, nil
}

// ReadSubstate reads the current (staged-or-committed) value via an
// open lock handle.
func (k *Kernel) ReadSubstate(h LockHandle) ([]byte, error) {
	entry, ok := k.locks[h]
	if !ok {
		return nil, newKernelError("ReadSubstate", ErrNoSuchLock)
	}
	v, _, err := k.track.Read(entry.key)
	return v, err
}

// WriteSubstate stages a write via an open mutable lock handle.
func (k *Kernel) WriteSubstate(h LockHandle, value []byte) error {
	entry, ok := k.locks[h]
	if !ok {
		return newKernelError("WriteSubstate", ErrNoSuchLock)
	}
	if !entry.flags.Mutable && !entry.flags.ForceWrite {
		return newKernelError("WriteSubstate", fmt.Errorf("lock %d is read-only", h))
	}
	k.track.Write(entry.key, value)
	return nil
}

// UnlockSubstate closes a lock handle. Writes made under it are already
// visible in the track; closing simply frees the slot so a subsequent
// mutable lock can be taken. Write propagation to the parent frame
// falls out naturally since the track is shared, not copied, across
// the frame stack — see track.go.
func (k *Kernel) UnlockSubstate(h LockHandle) error {
	entry, ok := k.locks[h]
	if !ok {
		return newKernelError("UnlockSubstate", ErrNoSuchLock)
	}
	if err := k.runModules(func(m KernelModule) error { return m.OnSyscall(k, SyscallSubstateUnlock) }); err != nil {
		return err
	}
	delete(k.locks, h)
	if entry.frame < len(k.frames) {
		delete(k.frames[entry.frame].Locks, h)
	}
	return nil
}

//---------------------------------------------------------------------
// Invocation
//---------------------------------------------------------------------

// InvokeArgs is the argument payload passed to Invoke; Owned/Referenced
// are the codec's side-outputs from decoding it.
type InvokeArgs struct {
	Payload    []byte
	Owned      []NodeId
	Referenced map[NodeId]struct{}
}

// InvokeFn is the body of an invocation: native code or the WASM host's
// dispatcher, running with the new frame already pushed.
type InvokeFn func(k *Kernel) (returnOwned []NodeId, returnReferenced map[NodeId]struct{}, returnPayload []byte, err error)

// Invoke pushes a new call frame for actor, transfers args.Owned out of
// the parent frame and args.Referenced in as read-only references,
// performs the module pre-flight checks, runs body, and tears the frame
// down, computing the transfer-back set from the body's return values.
func (k *Kernel) Invoke(actor Actor, args InvokeArgs, body InvokeFn) ([]byte, error) {
	if len(k.frames) > MaxCallDepth {
		return nil, newKernelError("Invoke", ErrMaxCallDepthExceeded)
	}
	parent := k.currentFrame()

	for _, id := range args.Owned {
		if _, ok := parent.Owned[id]; !ok {
			return nil, newKernelError("Invoke", fmt.Errorf("owned node %s not held by caller", id))
		}
	}
	for id := range args.Referenced {
		if !k.isVisible(id) {
			return nil, newKernelError("Invoke", ErrNodeNotVisible)
		}
	}

	child := &CallFrame{
		Depth:      parent.Depth + 1,
		Actor:      actor,
		Owned:      make(map[NodeId]*HeapNode),
		References: make(map[NodeId]struct{}),
		Locks:      make(map[LockHandle]struct{}),
	}
	for _, id := range args.Owned {
		child.Owned[id] = parent.Owned[id]
		delete(parent.Owned, id)
	}
	for id := range args.Referenced {
		child.References[id] = struct{}{}
	}

	k.frames = append(k.frames, child)

	if err := k.runModules(func(m KernelModule) error { return m.OnInvokeEnter(k, actor, args) }); err != nil {
		k.teardownFrame()
		return nil, err
	}

	retOwned, retRef, retPayload, err := body(k)

	if err != nil {
		k.teardownFrame()
		return nil, err
	}

	if err := k.checkNoOrphans(child, retOwned); err != nil {
		k.teardownFrame()
		return nil, err
	}

	for _, id := range retOwned {
		parent.Owned[id] = child.Owned[id]
	}
	for id := range retRef {
		parent.References[id] = struct{}{}
	}

	if err := k.runModules(func(m KernelModule) error { return m.OnInvokeExit(k, actor, retPayload) }); err != nil {
		k.teardownFrame()
		return nil, err
	}

	k.teardownFrame()
	return retPayload, nil
}

// checkNoOrphans verifies every node the child frame still owns at
// return time is either in the return set or globalized — otherwise
// NodeOrphaned. Nesting into another node's substates is not
// detected: a node stored that way but still owned by the frame is
// reported as orphaned.
func (k *Kernel) checkNoOrphans(frame *CallFrame, returned []NodeId) error {
	returning := make(map[NodeId]struct{}, len(returned))
	for _, id := range returned {
		returning[id] = struct{}{}
	}
	for id, node := range frame.Owned {
		if _, ok := returning[id]; ok {
			continue
		}
		if node.Globalized {
			continue
		}
		return newKernelError("Invoke", fmt.Errorf("%w: %s", ErrNodeOrphaned, id))
	}
	return nil
}

func (k *Kernel) teardownFrame() {
	frame := k.currentFrame()
	for h := range frame.Locks {
		delete(k.locks, h)
	}
	k.frames = k.frames[:len(k.frames)-1]
}

//---------------------------------------------------------------------
// Events / logs
//---------------------------------------------------------------------

// EmitEvent appends an event attributed to the current frame's actor,
// in emission order.
func (k *Kernel) EmitEvent(name string, payload []byte) error {
	if err := k.runModules(func(m KernelModule) error { return m.OnSyscall(k, SyscallEmitEvent) }); err != nil {
		return err
	}
	k.events = append(k.events, Event{Emitter: k.actorNodeId(), Name: name, Payload: payload})
	return nil
}

func (k *Kernel) actorNodeId() NodeId {
	a := k.currentFrame().Actor
	if a.Receiver != nil {
		return *a.Receiver
	}
	return a.Package
}

// Log appends a diagnostic log line, in emission order.
func (k *Kernel) Log(level, message string) error {
	if err := k.runModules(func(m KernelModule) error { return m.OnSyscall(k, SyscallLog) }); err != nil {
		return err
	}
	k.logs = append(k.logs, LogEntry{Level: level, Message: message})
	return nil
}

func (k *Kernel) Events() []Event   { return k.events }
func (k *Kernel) Logs() []LogEntry  { return k.logs }
func (k *Kernel) FeeReserve() *FeeReserve { return k.fee }
func (k *Kernel) Track() *Track     { return k.track }

func (k *Kernel) runModules(fn func(KernelModule) error) error {
	for _, m := range k.modules {
		if err := fn(m); err != nil {
			return err
		}
	}
	return nil
}
