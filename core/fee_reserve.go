package core

// fee_reserve.go – the pre-paid cost-unit budget a transaction spends
// during execution. Exhaustion before the system loan is repaid rejects
// the transaction; exhaustion after is a commit failure, and
// FeeReserveError.LoanRepaid carries that signal to the receipt
// assembler.

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// CostUnitReason labels what consumed cost units, for receipts/metrics.
type CostUnitReason string

const (
	ReasonExecution   CostUnitReason = "execution"
	ReasonFinalization CostUnitReason = "finalization"
	ReasonStorage     CostUnitReason = "storage"
	ReasonRoyalty     CostUnitReason = "royalty"
)

// FeeSummary is the fee breakdown attached to every receipt.
type FeeSummary struct {
	ExecutionCostUnitsConsumed   uint64
	FinalizationCostUnitsConsumed uint64
	StorageCostUnitsConsumed     uint64
	RoyaltyCostUnitsConsumed     uint64
	TipPaid                      uint64
	XRDBurned                    Decimal
	XRDToProposer                Decimal
}

// LockedPayment records one lock_fee call.
type LockedPayment struct {
	VaultId    NodeId
	Amount     Decimal
	Contingent bool
}

// FeeReserve tracks the four pre-execution budgets for a single
// transaction. It is a shared resource within that transaction: every
// call frame charges against the same instance.
type FeeReserve struct {
	mu sync.Mutex

	TraceID uuid.UUID

	systemLoan      uint64
	loanRepaid      bool
	executionLimit  uint64
	executionUsed   uint64
	finalizationUsed uint64
	storageUsed     uint64

	tipBasisPoints uint32

	lockedPayments []LockedPayment
	totalLocked    Decimal
}

// NewFeeReserve constructs a reserve with the given system loan (in
// cost units, repaid by the first successful lock_fee) and execution
// cost-unit limit supplied by the transaction header.
func NewFeeReserve(systemLoan, executionLimit uint64, tipBasisPoints uint32) *FeeReserve {
	return &FeeReserve{
		TraceID:        uuid.New(),
		systemLoan:     systemLoan,
		executionLimit: executionLimit,
		tipBasisPoints: tipBasisPoints,
		totalLocked:    DecimalZero(),
	}
}

// LoanRepaid reports whether the up-front system loan has been repaid.
func (f *FeeReserve) LoanRepaid() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loanRepaid
}

func (f *FeeReserve) budgetFor(reason CostUnitReason) *uint64 {
	switch reason {
	case ReasonFinalization:
		return &f.finalizationUsed
	case ReasonStorage:
		return &f.storageUsed
	default:
		return &f.executionUsed
	}
}

// available computes how much headroom remains: the system loan
// until repaid, the locked/execution limit afterward.
func (f *FeeReserve) available() uint64 {
	if !f.loanRepaid {
		return f.systemLoan - f.executionUsed - f.finalizationUsed - f.storageUsed
	}
	used := f.executionUsed + f.finalizationUsed + f.storageUsed
	if used > f.executionLimit {
		return 0
	}
	return f.executionLimit - used
}

// ConsumeExecution charges `units` cost units against the named
// budget. Fails with FeeReserveError on exhaustion.
func (f *FeeReserve) ConsumeExecution(units uint64, reason CostUnitReason) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.consumeLocked(units, reason)
}

func (f *FeeReserve) consumeLocked(units uint64, reason CostUnitReason) error {
	if units > f.available() {
		return &FeeReserveError{
			Reason:     fmt.Sprintf("insufficient balance: need %d, have %d (%s)", units, f.available(), reason),
			LoanRepaid: f.loanRepaid,
		}
	}
	*f.budgetFor(reason) += units
	return nil
}

// ConsumeMultiplied performs a saturating multiply of perUnit*count and
// then consumes the result, the way per-byte storage or per-element
// iteration costs are charged.
func (f *FeeReserve) ConsumeMultiplied(perUnit, count uint64, reason CostUnitReason) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := saturatingMul(perUnit, count)
	return f.consumeLocked(total, reason)
}

func saturatingMul(a, b uint64) uint64 {
	if a == 0 || b == 0 {
		return 0
	}
	result := a * b
	if result/a != b {
		return ^uint64(0)
	}
	return result
}

// LockFee registers XRD drawn from a vault against this reserve. A
// contingent lock is refunded on rejection.
func (f *FeeReserve) LockFee(vaultId NodeId, payment Decimal, contingent bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lockedPayments = append(f.lockedPayments, LockedPayment{VaultId: vaultId, Amount: payment, Contingent: contingent})
	if !contingent {
		f.totalLocked = f.totalLocked.Add(payment)
	}
}

// RepayLoan marks the system loan as repaid. Must be called exactly
// once, at the first successful (non-contingent) fee lock.
func (f *FeeReserve) RepayLoan() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loanRepaid = true
}

// Settle computes the final FeeSummary, applying the tip (a proportion
// of execution+finalization, expressed in basis points). The returned
// error is always nil: Settle does not compare the locked payments
// against what was consumed.
func (f *FeeReserve) Settle() (FeeSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	base := f.executionUsed + f.finalizationUsed
	tip := (base * uint64(f.tipBasisPoints)) / 10_000
	summary := FeeSummary{
		ExecutionCostUnitsConsumed:    f.executionUsed,
		FinalizationCostUnitsConsumed: f.finalizationUsed,
		StorageCostUnitsConsumed:      f.storageUsed,
		TipPaid:                       tip,
		XRDBurned:                     f.totalLocked,
	}
	return summary, nil
}

// ContingentRefunds returns the locked payments that should be refunded
// because the transaction was rejected.
func (f *FeeReserve) ContingentRefunds() []LockedPayment {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []LockedPayment
	for _, p := range f.lockedPayments {
		if p.Contingent {
			out = append(out, p)
		}
	}
	return out
}
