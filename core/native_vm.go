package core

// native_vm.go – the native (non-WASM) dispatch table. Several
// blueprints (resource managers, the transaction processor itself,
// account/identity components) are implemented in Go rather than WASM
// for performance and because they need privileged kernel access the
// sandbox never grants; they still go through the same Invoke/Costing
// path as a WASM call, just with NativeFn instead of WasmHost.Run.

import "fmt"

// NativeFn is one native blueprint entrypoint. Implementations read
// their arguments from args (already decoded by the caller) and return
// an encoded result payload.
type NativeFn func(k *Kernel, args DecodeResult) ([]byte, error)

// nativeKey identifies one dispatchable native function.
type nativeKey struct {
	Package   NodeId
	Blueprint string
	Function  string
}

// NativeVM is the fixed registry of native blueprint functions, wired
// into the kernel the same way WasmHost is: Invoke's body closure looks
// up and calls into it.
type NativeVM struct {
	fns map[nativeKey]NativeFn
}

func NewNativeVM() *NativeVM {
	return &NativeVM{fns: make(map[nativeKey]NativeFn)}
}

// Register adds a native function to the dispatch table. Called once
// per blueprint at engine wiring time, never per-transaction.
func (vm *NativeVM) Register(pkg NodeId, blueprint, function string, fn NativeFn) {
	vm.fns[nativeKey{pkg, blueprint, function}] = fn
}

// Dispatch calls the registered function, or fails if no such function
// is registered. It charges nothing itself; the invoke is charged by the
// Costing module when the kernel's Invoke enters the callee frame.
func (vm *NativeVM) Dispatch(k *Kernel, pkg NodeId, blueprint, function string, args DecodeResult) ([]byte, error) {
	fn, ok := vm.fns[nativeKey{pkg, blueprint, function}]
	if !ok {
		return nil, newKernelError("NativeVM.Dispatch", fmt.Errorf("no native function %s::%s::%s", pkg, blueprint, function))
	}
	return fn(k, args)
}
