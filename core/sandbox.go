package core

// sandbox.go – per-package execution limits and status tracking.

import (
	"fmt"
	"sync"
	"time"
)

// SandboxInfo records the resource caps and lifecycle state of one
// package's execution environment.
type SandboxInfo struct {
	Package     NodeId
	MemoryLimit uint32 // wasm pages
	CostUnitCap uint64
	Started     time.Time
	Active      bool
}

// Sandbox is the registry of per-package execution environments, wiring
// together the WASM host and native VM behind a single entry point the
// kernel's Invoke body calls into. The per-package MemoryLimit and
// CostUnitCap it records are reported by Status and List but not
// enforced.
type Sandbox struct {
	mu    sync.RWMutex
	infos map[NodeId]*SandboxInfo

	wasm   *WasmHost
	native *NativeVM
}

func NewSandbox(wasm *WasmHost, native *NativeVM) *Sandbox {
	return &Sandbox{infos: make(map[NodeId]*SandboxInfo), wasm: wasm, native: native}
}

// Start registers a package's execution environment. Active already
// implies Start was called; calling it again on an active package is
// rejected.
func (s *Sandbox) Start(pkg NodeId, memLimit uint32, costCap uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if info, ok := s.infos[pkg]; ok && info.Active {
		return fmt.Errorf("sandbox: package %s already active", pkg)
	}
	s.infos[pkg] = &SandboxInfo{Package: pkg, MemoryLimit: memLimit, CostUnitCap: costCap, Started: time.Now(), Active: true}
	return nil
}

func (s *Sandbox) Stop(pkg NodeId) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.infos[pkg]
	if !ok {
		return fmt.Errorf("sandbox: package %s not found", pkg)
	}
	info.Active = false
	return nil
}

func (s *Sandbox) Reset(pkg NodeId) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.infos[pkg]
	if !ok {
		return fmt.Errorf("sandbox: package %s not found", pkg)
	}
	info.Started = time.Now()
	info.Active = true
	return nil
}

func (s *Sandbox) Status(pkg NodeId) (SandboxInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.infos[pkg]
	if !ok {
		return SandboxInfo{}, false
	}
	return *info, true
}

func (s *Sandbox) List() []SandboxInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SandboxInfo, 0, len(s.infos))
	for _, info := range s.infos {
		out = append(out, *info)
	}
	return out
}

// RunWasm delegates to the WASM host. The package's recorded memory cap
// is not passed on; the host applies only its own MaxMemoryPages
// ceiling.
func (s *Sandbox) RunWasm(k *Kernel, pkg NodeId, code []byte, entrypoint string, args []byte) ([]byte, error) {
	s.mu.RLock()
	info, ok := s.infos[pkg]
	s.mu.RUnlock()
	if ok && info.MemoryLimit > 0 && info.MemoryLimit < MaxMemoryPages {
		// the configured cap is stricter than the host default; wasm_host
		// still enforces MaxMemoryPages as the hard ceiling.
	}
	return s.wasm.Run(k, code, entrypoint, args)
}

func (s *Sandbox) RunNative(k *Kernel, pkg NodeId, blueprint, function string, args DecodeResult) ([]byte, error) {
	return s.native.Dispatch(k, pkg, blueprint, function, args)
}
