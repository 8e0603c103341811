package core

// wasm_host.go – the WASM sandbox. Guest bytecode runs inside a
// wasmer-go instance whose only way to touch kernel state is the fixed
// set of host imports registered below; every host call except
// host_return prices itself against the kernel's Syscall cost table
// before doing anything else, so a metered-out guest traps mid-call
// rather than after.

import (
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/wasmerio/wasmer-go/wasmer"
	"golang.org/x/time/rate"
)

const (
	// WasmPageSize matches the WebAssembly spec's fixed linear-memory
	// page granularity.
	WasmPageSize = 64 * 1024
	// MaxMemoryPages bounds a guest instance's linear memory.
	MaxMemoryPages = 1024 // 64 MiB
)

// CodeHash identifies compiled WASM bytecode for caching purposes.
type CodeHash [32]byte

func HashWasmCode(code []byte) CodeHash { return sha256.Sum256(code) }

// moduleCacheEntry holds a compiled module keyed by code hash, reused
// across invocations of the same package to avoid recompiling on every
// call.
type moduleCacheEntry struct {
	engine *wasmer.Engine
	store  *wasmer.Store
	module *wasmer.Module
}

// WasmHost owns the module cache and the per-package instantiation
// limiter, and exposes a single entry point the kernel's Invoke body
// calls into for WASM-backed blueprints.
type WasmHost struct {
	mu      sync.Mutex
	cache   map[CodeHash]*moduleCacheEntry
	engine  *wasmer.Engine
	limiter *InstantiationLimiter
}

func NewWasmHost() *WasmHost {
	return &WasmHost{
		cache:   make(map[CodeHash]*moduleCacheEntry),
		engine:  wasmer.NewEngine(),
		limiter: NewInstantiationLimiter(50, 10),
	}
}

// InstantiationLimiter rate-limits how often a given code hash may be
// recompiled/instantiated, bounding a pathological hot-loop manifest
// from pegging the host on repeated cold instantiation.
type InstantiationLimiter struct {
	mu       sync.Mutex
	limiters map[CodeHash]*rate.Limiter
	rps      rate.Limit
	burst    int
}

func NewInstantiationLimiter(rps float64, burst int) *InstantiationLimiter {
	return &InstantiationLimiter{limiters: make(map[CodeHash]*rate.Limiter), rps: rate.Limit(rps), burst: burst}
}

// Allow reports whether code may be instantiated right now, lazily
// creating a limiter bucket per code hash.
func (l *InstantiationLimiter) Allow(code CodeHash) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[code]
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
		l.limiters[code] = lim
	}
	return lim.Allow()
}

func (h *WasmHost) compiled(code []byte) (*moduleCacheEntry, error) {
	hash := HashWasmCode(code)
	h.mu.Lock()
	defer h.mu.Unlock()
	if e, ok := h.cache[hash]; ok {
		return e, nil
	}
	store := wasmer.NewStore(h.engine)
	mod, err := wasmer.NewModule(store, code)
	if err != nil {
		return nil, newKernelError("WasmHost.compile", fmt.Errorf("invalid wasm module: %w", err))
	}
	entry := &moduleCacheEntry{engine: h.engine, store: store, module: mod}
	h.cache[hash] = entry
	return entry, nil
}

// hostCtx is the state threaded through every host import closure for
// one instantiation.
type hostCtx struct {
	mem    *wasmer.Memory
	kernel *Kernel
	args   []byte
	ret    []byte
	err    error
}

// Run instantiates code (from cache when possible), runs its guest
// entrypoint with args on the linear memory, and returns whatever the
// guest wrote back via host_return before exiting.
func (h *WasmHost) Run(k *Kernel, code []byte, entrypoint string, args []byte) ([]byte, error) {
	hash := HashWasmCode(code)
	if !h.limiter.Allow(hash) {
		return nil, newKernelError("WasmHost.Run", fmt.Errorf("instantiation rate limit exceeded for code %x", hash[:8]))
	}
	entry, err := h.compiled(code)
	if err != nil {
		return nil, err
	}

	hctx := &hostCtx{kernel: k, args: args}
	imports := h.registerHost(entry.store, hctx)

	instance, err := wasmer.NewInstance(entry.module, imports)
	if err != nil {
		return nil, newKernelError("WasmHost.Run", fmt.Errorf("instantiate: %w", err))
	}

	mem, err := instance.Exports.GetMemory("memory")
	if err != nil {
		return nil, newKernelError("WasmHost.Run", fmt.Errorf("wasm memory export missing"))
	}
	if mem.Size() > MaxMemoryPages {
		return nil, newKernelError("WasmHost.Run", fmt.Errorf("guest memory exceeds page cap %d", MaxMemoryPages))
	}
	hctx.mem = mem

	entryFn, err := instance.Exports.GetFunction(entrypoint)
	if err != nil {
		return nil, newKernelError("WasmHost.Run", fmt.Errorf("entrypoint %q not exported", entrypoint))
	}
	if _, err := entryFn(); err != nil {
		return nil, &ApplicationError{Frame: entrypoint, Err: err}
	}
	if hctx.err != nil {
		return nil, hctx.err
	}
	// a guest that grows memory past the cap without ever calling back
	// into a host import (e.g. one final grow right before returning)
	// would otherwise slip past the mid-call checks in registerHost.
	if mem.Size() > MaxMemoryPages {
		return nil, newKernelError("WasmHost.Run", fmt.Errorf("guest memory exceeds page cap %d", MaxMemoryPages))
	}
	return hctx.ret, nil
}

func (h *hostCtx) read(ptr, ln int32) []byte {
	data := h.mem.Data()
	out := make([]byte, ln)
	copy(out, data[ptr:ptr+ln])
	return out
}

func (h *hostCtx) write(ptr int32, data []byte) { copy(h.mem.Data()[ptr:], data) }

// registerHost builds the "env" import namespace: every function but
// host_return consumes its syscall cost from the kernel's fee reserve before
// touching kernel state, so exhaustion traps precisely at the call that
// ran the reserve dry.
func (h *WasmHost) registerHost(store *wasmer.Store, hc *hostCtx) *wasmer.ImportObject {
	imports := wasmer.NewImportObject()
	i32 := wasmer.ValueKind(wasmer.I32)

	charge := func(s Syscall) error {
		// re-checked on every host call boundary, not just once after
		// instantiation: a guest can grow its own linear memory (the
		// `memory.grow` instruction) at any point between host calls,
		// and the host only regains control at the next import call or
		// at the entrypoint's return.
		if hc.mem != nil && hc.mem.Size() > MaxMemoryPages {
			return newKernelError(s.String(), fmt.Errorf("guest memory exceeds page cap %d", MaxMemoryPages))
		}
		if err := hc.kernel.fee.ConsumeExecution(SyscallCost(s), ReasonExecution); err != nil {
			return &CostingError{Reason: s.String(), Err: err}
		}
		return nil
	}

	hostConsumeTick := wasmer.NewFunction(store,
		wasmer.NewFunctionType(wasmer.NewValueTypes(), wasmer.NewValueTypes(i32)),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := charge(SyscallConsumeWasmTick); err != nil {
				hc.err = err
				return []wasmer.Value{wasmer.NewI32(-1)}, nil
			}
			return []wasmer.Value{wasmer.NewI32(0)}, nil
		})

	hostFieldRead := wasmer.NewFunction(store,
		wasmer.NewFunctionType(wasmer.NewValueTypes(i32, i32, i32), wasmer.NewValueTypes(i32)),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := charge(SyscallFieldRead); err != nil {
				hc.err = err
				return []wasmer.Value{wasmer.NewI32(-1)}, nil
			}
			kPtr, kLen, dPtr := args[0].I32(), args[1].I32(), args[2].I32()
			key := hc.read(kPtr, kLen)
			v, _, err := hc.kernel.track.Read(keyFromBytes(key))
			if err != nil {
				hc.err = newKernelError("host_field_read", err)
				return []wasmer.Value{wasmer.NewI32(-1)}, nil
			}
			hc.write(dPtr, v)
			return []wasmer.Value{wasmer.NewI32(int32(len(v)))}, nil
		})

	hostFieldWrite := wasmer.NewFunction(store,
		wasmer.NewFunctionType(wasmer.NewValueTypes(i32, i32, i32, i32), wasmer.NewValueTypes(i32)),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := charge(SyscallFieldWrite); err != nil {
				hc.err = err
				return []wasmer.Value{wasmer.NewI32(-1)}, nil
			}
			kPtr, kLen, vPtr, vLen := args[0].I32(), args[1].I32(), args[2].I32(), args[3].I32()
			key := hc.read(kPtr, kLen)
			val := hc.read(vPtr, vLen)
			hc.kernel.track.Write(keyFromBytes(key), val)
			return []wasmer.Value{wasmer.NewI32(0)}, nil
		})

	hostEmitEvent := wasmer.NewFunction(store,
		wasmer.NewFunctionType(wasmer.NewValueTypes(i32, i32, i32, i32), wasmer.NewValueTypes(i32)),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := charge(SyscallEmitEvent); err != nil {
				hc.err = err
				return []wasmer.Value{wasmer.NewI32(-1)}, nil
			}
			namePtr, nameLen, dataPtr, dataLen := args[0].I32(), args[1].I32(), args[2].I32(), args[3].I32()
			name := string(hc.read(namePtr, nameLen))
			payload := hc.read(dataPtr, dataLen)
			if err := hc.kernel.EmitEvent(name, payload); err != nil {
				hc.err = err
				return []wasmer.Value{wasmer.NewI32(-1)}, nil
			}
			return []wasmer.Value{wasmer.NewI32(0)}, nil
		})

	hostLog := wasmer.NewFunction(store,
		wasmer.NewFunctionType(wasmer.NewValueTypes(i32, i32), wasmer.NewValueTypes()),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := charge(SyscallLog); err != nil {
				hc.err = err
				return []wasmer.Value{}, nil
			}
			p, l := args[0].I32(), args[1].I32()
			msg := string(hc.read(p, l))
			if err := hc.kernel.Log("info", msg); err != nil {
				hc.err = err
			}
			return []wasmer.Value{}, nil
		})

	hostReturn := wasmer.NewFunction(store,
		wasmer.NewFunctionType(wasmer.NewValueTypes(i32, i32), wasmer.NewValueTypes()),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if hc.mem != nil && hc.mem.Size() > MaxMemoryPages {
				hc.err = newKernelError("host_return", fmt.Errorf("guest memory exceeds page cap %d", MaxMemoryPages))
				return []wasmer.Value{}, nil
			}
			p, l := args[0].I32(), args[1].I32()
			hc.ret = hc.read(p, l)
			return []wasmer.Value{}, nil
		})

	imports.Register("env", map[string]wasmer.IntoExtern{
		"host_consume_tick": hostConsumeTick,
		"host_field_read":   hostFieldRead,
		"host_field_write":  hostFieldWrite,
		"host_emit_event":   hostEmitEvent,
		"host_log":          hostLog,
		"host_return":       hostReturn,
	})
	return imports
}

// keyFromBytes decodes the wire form a guest uses to address a single
// field substate: 30-byte node id, 1-byte partition, remainder sort key.
func keyFromBytes(b []byte) SubstateKey {
	if len(b) < NodeIdLength+1 {
		return SubstateKey{}
	}
	id, _ := NodeIdFromBytes(b[:NodeIdLength])
	partition := PartitionNum(b[NodeIdLength])
	sortKey := append(SortKey(nil), b[NodeIdLength+1:]...)
	return SubstateKey{NodeId: id, Partition: partition, SortKey: sortKey}
}
