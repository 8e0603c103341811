package core

// package_registry.go – the package (blueprint-code) registry. A
// Package node holds one or more blueprints' compiled WASM bytecode
// plus their schema; the registry is
// what Invoke consults to find the code for a (package, blueprint) pair
// before handing it to the Sandbox.

import (
	"crypto/sha256"
	"fmt"
	"sync"
)

// BlueprintDefinition is one blueprint's compiled code plus schema
// digest, as stored in a package's PartitionBlueprintCode partition.
type BlueprintDefinition struct {
	Name       string
	Code       []byte
	CodeHash   [32]byte
	SchemaHash [32]byte
	IsNative   bool // true: dispatched via NativeVM instead of WasmHost
}

// Package is the globalized node holding one or more blueprints.
type Package struct {
	Address    NodeId
	Blueprints map[string]*BlueprintDefinition
	Owner      AccessRule
}

// PackageRegistry is the in-memory index of deployed packages, mirrored
// into the store's PartitionBlueprintCode/PartitionSchema partitions at
// commit time by whatever native function handles `publish_package`.
type PackageRegistry struct {
	mu      sync.RWMutex
	byAddr  map[NodeId]*Package
	sandbox *Sandbox
}

func NewPackageRegistry(sandbox *Sandbox) *PackageRegistry {
	return &PackageRegistry{byAddr: make(map[NodeId]*Package), sandbox: sandbox}
}

// PublishPackage registers a new package with one blueprint, hashing
// its code deterministically so identical code shares one cache entry.
func (r *PackageRegistry) PublishPackage(addr NodeId, blueprintName string, code []byte, owner AccessRule) (*BlueprintDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pkg, ok := r.byAddr[addr]
	if !ok {
		pkg = &Package{Address: addr, Blueprints: make(map[string]*BlueprintDefinition), Owner: owner}
		r.byAddr[addr] = pkg
	}
	if _, dup := pkg.Blueprints[blueprintName]; dup {
		return nil, fmt.Errorf("package_registry: blueprint %q already published at %s", blueprintName, addr)
	}
	def := &BlueprintDefinition{Name: blueprintName, Code: code, CodeHash: sha256.Sum256(code)}
	pkg.Blueprints[blueprintName] = def
	return def, nil
}

// PublishNativeBlueprint registers a blueprint dispatched through the
// NativeVM rather than compiled WASM (resource managers, the
// transaction processor, account/identity components).
func (r *PackageRegistry) PublishNativeBlueprint(addr NodeId, blueprintName string, owner AccessRule) (*BlueprintDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pkg, ok := r.byAddr[addr]
	if !ok {
		pkg = &Package{Address: addr, Blueprints: make(map[string]*BlueprintDefinition), Owner: owner}
		r.byAddr[addr] = pkg
	}
	def := &BlueprintDefinition{Name: blueprintName, IsNative: true}
	pkg.Blueprints[blueprintName] = def
	return def, nil
}

func (r *PackageRegistry) Lookup(addr NodeId, blueprintName string) (*BlueprintDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pkg, ok := r.byAddr[addr]
	if !ok {
		return nil, fmt.Errorf("package_registry: no package at %s", addr)
	}
	def, ok := pkg.Blueprints[blueprintName]
	if !ok {
		return nil, fmt.Errorf("package_registry: no blueprint %q at %s", blueprintName, addr)
	}
	return def, nil
}

// Invoke routes to the sandbox's WASM host or native VM depending on
// the blueprint's definition. It charges nothing itself; the invoke is
// charged by the Costing module when the caller's kernel Invoke enters
// the callee frame.
func (r *PackageRegistry) Invoke(k *Kernel, pkgAddr NodeId, blueprintName, function string, args DecodeResult) ([]byte, error) {
	def, err := r.Lookup(pkgAddr, blueprintName)
	if err != nil {
		return nil, newKernelError("PackageRegistry.Invoke", err)
	}
	if def.IsNative {
		return r.sandbox.RunNative(k, pkgAddr, blueprintName, function, args)
	}
	return r.sandbox.RunWasm(k, pkgAddr, def.Code, function, args.Value.Bytes)
}
