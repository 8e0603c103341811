// SPDX-License-Identifier: BUSL-1.1
//
// Engine core - canonical cost-unit schedule
// -------------------------------------------
// This file contains the cost-unit pricing table for every host
// syscall the WASM sandbox and native VM expose. The
// numbers reflect the relative CPU/memory/storage cost of each
// operation and are chosen to be DoS-resistant; they are
// consensus-critical the moment any transaction grazes a limit: two
// engines that differ by one cost unit on one operation diverge on the
// first transaction that exhausts its budget.
//
// IMPORTANT
//   - The table MUST contain an entry for every Syscall recognised by
//     the host; nothing enforces this at compile time.
//   - Unpriced syscalls fall back to DefaultCostUnits, logged once.
//   - All reads are concurrency-safe (read-only map, built at init).
package core

import (
	"log"
	"sync"
)

// DefaultCostUnits is charged for any syscall that has slipped through
// the cracks. Deliberately punitive so a missing table entry is noticed
// long before it matters.
const DefaultCostUnits uint64 = 100_000

// Syscall enumerates the fixed set of host functions the WASM host and
// native VM expose to guest/native code.
type Syscall uint16

const (
	SyscallNodeCreate Syscall = iota
	SyscallNodeDrop
	SyscallSubstateLock
	SyscallSubstateRead
	SyscallSubstateWrite
	SyscallSubstateUnlock
	SyscallInvokeMethod
	SyscallInvokeFunction
	SyscallActorQuery
	SyscallBlueprintCall
	SyscallBech32Encode
	SyscallLog
	SyscallEmitEvent
	SyscallPanic
	SyscallKVStoreOpen
	SyscallKVStoreClose
	SyscallKVStoreRead
	SyscallKVStoreWrite
	SyscallFieldRead
	SyscallFieldWrite
	SyscallAuthZonePop
	SyscallAuthZonePush
	SyscallAuthZoneClear
	SyscallAuthZoneCreateProof
	SyscallConsumeWasmTick
)

func (s Syscall) String() string {
	names := [...]string{
		"NodeCreate", "NodeDrop", "SubstateLock", "SubstateRead", "SubstateWrite",
		"SubstateUnlock", "InvokeMethod", "InvokeFunction", "ActorQuery", "BlueprintCall",
		"Bech32Encode", "Log", "EmitEvent", "Panic", "KVStoreOpen", "KVStoreClose",
		"KVStoreRead", "KVStoreWrite", "FieldRead", "FieldWrite", "AuthZonePop",
		"AuthZonePush", "AuthZoneClear", "AuthZoneCreateProof", "ConsumeWasmTick",
	}
	if int(s) < len(names) {
		return names[s]
	}
	return "UnknownSyscall"
}

// costTable maps every syscall to its base cost-unit price. Dynamic
// portions (per-byte storage fees, per-element iteration costs) are
// layered on via FeeReserve.ConsumeMultiplied by the caller.
var costTable = map[Syscall]uint64{
	SyscallNodeCreate:          5000,
	SyscallNodeDrop:            1500,
	SyscallSubstateLock:        500,
	SyscallSubstateRead:        300,
	SyscallSubstateWrite:       1000,
	SyscallSubstateUnlock:      100,
	SyscallInvokeMethod:        10000,
	SyscallInvokeFunction:      8000,
	SyscallActorQuery:          200,
	SyscallBlueprintCall:       8000,
	SyscallBech32Encode:        150,
	SyscallLog:                 500,
	SyscallEmitEvent:           700,
	SyscallPanic:               0,
	SyscallKVStoreOpen:         1000,
	SyscallKVStoreClose:        100,
	SyscallKVStoreRead:         300,
	SyscallKVStoreWrite:        1200,
	SyscallFieldRead:           300,
	SyscallFieldWrite:          1000,
	SyscallAuthZonePop:         300,
	SyscallAuthZonePush:        300,
	SyscallAuthZoneClear:       200,
	SyscallAuthZoneCreateProof: 2000,
	SyscallConsumeWasmTick:     1,
}

var (
	loggedMissingMu sync.Mutex
	loggedMissing   = make(map[Syscall]bool)
)

// SyscallCost returns the base cost-unit price for a single syscall
// invocation. Safe for concurrent use by every frame in the call stack
// (reads never block; the miss-logging path is mutex-guarded).
func SyscallCost(s Syscall) uint64 {
	if cost, ok := costTable[s]; ok {
		return cost
	}
	loggedMissingMu.Lock()
	if !loggedMissing[s] {
		loggedMissing[s] = true
		log.Printf("gas_table: missing cost for syscall %s - charging default", s)
	}
	loggedMissingMu.Unlock()
	return DefaultCostUnits
}
