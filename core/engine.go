package core

// engine.go – transaction execution, end to end: a prepared transaction
// is validated, checked against the intent tracker, run through a fresh
// kernel/processor pair, and its receipt committed to the store and
// hash tree. The engine owns everything shared across the transactions
// of a batch (store, hash tree, WASM engine, registries); each
// transaction gets its own kernel, track, fee reserve and frame stack.

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// EngineConfig carries the per-deployment parameters shared by every
// transaction the engine executes.
type EngineConfig struct {
	NetworkId  uint8
	SystemLoan uint64
	Limits     TransactionLimitsConfig
	UseKeccak  bool
	Logger     *logrus.Logger
}

// Engine executes prepared transactions against one store.
type Engine struct {
	cfg   EngineConfig
	log   *logrus.Logger
	store Store
	tree  *HashTree

	wasm    *WasmHost
	native  *NativeVM
	sandbox *Sandbox
	pkgs    *PackageRegistry

	resources   *FungibleResourceRegistry
	nfResources *NonFungibleResourceRegistry
	accounts    *AccountRegistry
	tracker     *IntentTracker
}

func NewEngine(store Store, cfg EngineConfig) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Limits == (TransactionLimitsConfig{}) {
		cfg.Limits = DefaultTransactionLimits()
	}
	wasm := NewWasmHost()
	native := NewNativeVM()
	sandbox := NewSandbox(wasm, native)
	return &Engine{
		cfg:         cfg,
		log:         cfg.Logger,
		store:       store,
		tree:        NewHashTree(HashTreeConfig{UseKeccak: cfg.UseKeccak}),
		wasm:        wasm,
		native:      native,
		sandbox:     sandbox,
		pkgs:        NewPackageRegistry(sandbox),
		resources:   NewFungibleResourceRegistry(),
		nfResources: NewNonFungibleResourceRegistry(),
		accounts:    NewAccountRegistry(),
		tracker:     NewIntentTracker(),
	}
}

// Wiring accessors, used at genesis/bootstrap time to publish packages,
// resources and accounts before the first transaction runs.
func (e *Engine) Native() *NativeVM                            { return e.native }
func (e *Engine) Packages() *PackageRegistry                   { return e.pkgs }
func (e *Engine) Resources() *FungibleResourceRegistry         { return e.resources }
func (e *Engine) NonFungibleResources() *NonFungibleResourceRegistry { return e.nfResources }
func (e *Engine) Accounts() *AccountRegistry                   { return e.accounts }
func (e *Engine) Tree() *HashTree                              { return e.tree }
func (e *Engine) Store() Store                                 { return e.store }

// StateRoot reports the current hash-tree root.
func (e *Engine) StateRoot() [32]byte { return e.tree.Root() }

// ExecuteNotarized validates, executes and commits one prepared user
// transaction. The returned receipt classifies the outcome; err is
// reserved for host-level faults (a broken store), never for
// transaction-level failure.
func (e *Engine) ExecuteNotarized(tx *NotarizedTransaction, currentEpoch uint64) (*Receipt, error) {
	hdr := tx.Signed.Intent.Header
	if err := hdr.Validate(e.cfg.NetworkId, currentEpoch); err != nil {
		return e.reject(err), nil
	}
	intentHash, err := IntentHashOf(tx.Signed.Intent)
	if err != nil {
		return e.reject(err), nil
	}
	return e.execute(tx.Signed.Intent.Manifest, hdr, intentHash, currentEpoch)
}

// ExecuteManifest runs a bare manifest under the given header, for
// tests and the CLI's exec command where no signatures exist yet. The
// intent hash is computed the same way as for a notarized transaction,
// so replay protection and id allocation stay consistent.
func (e *Engine) ExecuteManifest(m *Manifest, hdr TransactionHeader, currentEpoch uint64) (*Receipt, error) {
	if err := hdr.Validate(e.cfg.NetworkId, currentEpoch); err != nil {
		return e.reject(err), nil
	}
	intentHash, err := IntentHashOf(TransactionIntent{Header: hdr, Manifest: m})
	if err != nil {
		return e.reject(err), nil
	}
	return e.execute(m, hdr, intentHash, currentEpoch)
}

func (e *Engine) execute(m *Manifest, hdr TransactionHeader, intentHash IntentHash, currentEpoch uint64) (*Receipt, error) {
	track := NewTrack(e.store)
	if err := e.tracker.CheckAndRecord(track, intentHash, currentEpoch, hdr.EndEpoch); err != nil {
		return e.reject(err), nil
	}

	fee := NewFeeReserve(e.cfg.SystemLoan, hdr.CostUnitLimit, hdr.TipBasisPoints)
	modules := DefaultModuleChain(e.cfg.Limits, e.log)
	idAlloc := NewNodeIdAllocator(intentHash)
	kernel := NewKernel(track, fee, modules, idAlloc)

	proc := NewTxProcessor(kernel, e.pkgs, nil)
	proc.UseResources(e.resources, e.nfResources)
	proc.SetIntentHash(intentHash)

	runErr, panicMsg := e.runManifest(proc, m)

	receipt, err := AssembleReceipt(kernel, e.tree, runErr, panicMsg)
	if err != nil {
		return nil, fmt.Errorf("engine: assemble receipt: %w", err)
	}
	ObserveReceiptOutcome(receipt.Outcome)
	ObserveFeeReserve(receipt.Fees)

	switch receipt.Outcome {
	case OutcomeCommitSuccess:
		if err := receipt.Commit(e.store); err != nil {
			return nil, fmt.Errorf("engine: commit: %w", err)
		}
	case OutcomeCommitFailure:
		// A commit failure keeps fee payment and the intent nullifier,
		// nothing else. The main track dies with the kernel; the
		// nullifier is re-staged alone and committed.
		if err := e.commitNullifier(intentHash, currentEpoch, hdr.EndEpoch); err != nil {
			return nil, fmt.Errorf("engine: commit nullifier: %w", err)
		}
	}
	return receipt, nil
}

// runManifest isolates the panic boundary: a panic in native code is a
// host-level Abort, never a commit.
func (e *Engine) runManifest(proc *TxProcessor, m *Manifest) (runErr error, panicMsg string) {
	defer func() {
		if r := recover(); r != nil {
			panicMsg = fmt.Sprintf("%v", r)
			e.log.WithField("panic", panicMsg).Error("engine: manifest execution panicked")
		}
	}()
	runErr = proc.Run(m)
	return runErr, ""
}

func (e *Engine) commitNullifier(intentHash IntentHash, currentEpoch, expiryEpoch uint64) error {
	track := NewTrack(e.store)
	if err := e.tracker.CheckAndRecord(track, intentHash, currentEpoch, expiryEpoch); err != nil {
		return err
	}
	updates := track.Diff()
	if updates.IsEmpty() {
		return nil
	}
	if err := e.store.Commit(updates); err != nil {
		return err
	}
	_, _, err := e.tree.ApplyStateUpdates(updates)
	return err
}

func (e *Engine) reject(cause error) *Receipt {
	r := &Receipt{Outcome: OutcomeRejection, ErrorMessage: cause.Error()}
	ObserveReceiptOutcome(r.Outcome)
	return r
}
