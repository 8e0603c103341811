package core

// errors.go – the engine's error taxonomy.
//
// Four outcome kinds exist at the receipt boundary (Rejection, Abort,
// CommitFailure, CommitSuccess). Everything raised inside the kernel,
// the resource subsystem or the WASM host is one of KernelError,
// ApplicationError or CostingError; the transaction processor and the
// receipt assembler classify those into the outcome kinds using the
// fee-loan-repaid flag.

import (
	"errors"
	"fmt"
)

// KernelError is an invariant violation: visibility, locking, ownership
// or call-depth rules were broken. It always aborts the transaction
// immediately; staged writes made so far are discarded. Kernel errors
// are never caught by manifest control flow.
type KernelError struct {
	Op  string
	Err error
}

func (e *KernelError) Error() string { return fmt.Sprintf("kernel: %s: %v", e.Op, e.Err) }
func (e *KernelError) Unwrap() error { return e.Err }

func newKernelError(op string, err error) *KernelError { return &KernelError{Op: op, Err: err} }

// ApplicationError originates from a blueprint (native or WASM). It
// propagates up the frame stack like a normal Go error; the processor
// treats it as a commit failure if the fee loan has been repaid, or a
// rejection otherwise.
type ApplicationError struct {
	Frame string
	Err   error
}

func (e *ApplicationError) Error() string { return fmt.Sprintf("application: %s: %v", e.Frame, e.Err) }
func (e *ApplicationError) Unwrap() error { return e.Err }

// CostingError signals fee-reserve exhaustion. Classified the same way
// as ApplicationError with respect to loan repayment.
type CostingError struct {
	Reason string
	Err    error
}

func (e *CostingError) Error() string { return fmt.Sprintf("costing: %s: %v", e.Reason, e.Err) }
func (e *CostingError) Unwrap() error { return e.Err }

// Sentinel invariant-violation causes, wrapped by KernelError.
var (
	ErrMaxCallDepthExceeded = errors.New("MaxCallDepthLimitReached")
	ErrSubstateLocked       = errors.New("SubstateLocked")
	ErrNodeOrphaned         = errors.New("NodeOrphaned")
	ErrNodeNotVisible       = errors.New("NodeNotVisible")
	ErrOwnedNodeLocked      = errors.New("OwnedNodeLocked")
	ErrNoSuchLock           = errors.New("NoSuchLockHandle")
	ErrDropNonEmpty         = errors.New("DropNonEmptyNode")
	ErrDuplicateSetEntry    = errors.New("DuplicateSetEntry")
	ErrMaxDepthExceeded     = errors.New("MaxDepthExceeded")
	ErrCannotCommitNonSuccess = errors.New("CannotCommitNonSuccessReceipt")
)

// Sentinel application-level causes from the resource subsystem, wrapped
// by ApplicationError.
var (
	ErrInsufficientBalance    = errors.New("InsufficientBalance")
	ErrResourceAddressMismatch = errors.New("ResourceAddressMismatch")
	ErrInsufficientBaseProofs = errors.New("InsufficientBaseProofs")
	ErrEmptyProofNotAllowed   = errors.New("EmptyProofNotAllowed")
	ErrCantMoveDownstream     = errors.New("CantMoveDownstream")
	ErrWorktopNotEmpty        = errors.New("WorktopNotEmptyAtEnd")
	ErrVaultFrozen            = errors.New("VaultOperationFrozen")
	ErrLockedExceedsLiquid    = errors.New("LockedExceedsLiquid")
	ErrDuplicateIntentHash    = errors.New("DuplicateIntentHash")
	ErrVerifyParentFailed     = errors.New("VerifyParentFailed")
	ErrNoSubintent            = errors.New("NoSuchSubintent")
	ErrYieldOutsideSubintent  = errors.New("YieldToParentOutsideSubintent")
)

// FeeReserveError is returned by FeeReserve methods. The LoanRepaid field
// records whether the loan had already been repaid at the moment of
// failure, which is exactly the signal the processor needs to classify
// the outcome as rejection vs. commit failure.
type FeeReserveError struct {
	Reason     string
	LoanRepaid bool
}

func (e *FeeReserveError) Error() string {
	return fmt.Sprintf("fee reserve: %s (loan_repaid=%v)", e.Reason, e.LoanRepaid)
}

// AbortError is a host-level fatal condition: a panic recovered at the
// kernel boundary, or a native-VM trap encountered only in preview.
// Abort outcomes are never persisted.
type AbortError struct {
	Reason string
}

func (e *AbortError) Error() string { return fmt.Sprintf("abort: %s", e.Reason) }
