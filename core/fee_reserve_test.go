package core

import "testing"

func TestFeeReserveConsumeExecutionWithinLoan(t *testing.T) {
	f := NewFeeReserve(1000, 10000, 0)
	if err := f.ConsumeExecution(500, ReasonExecution); err != nil {
		t.Fatalf("ConsumeExecution within loan: %v", err)
	}
	if f.LoanRepaid() {
		t.Fatalf("loan should not be repaid yet")
	}
}

func TestFeeReserveExhaustionBeforeLoanRepaidIsNotRepaid(t *testing.T) {
	f := NewFeeReserve(100, 10000, 0)
	if err := f.ConsumeExecution(100, ReasonExecution); err != nil {
		t.Fatalf("spend exactly the loan: %v", err)
	}
	err := f.ConsumeExecution(1, ReasonExecution)
	if err == nil {
		t.Fatalf("expected exhaustion error")
	}
	fre, ok := err.(*FeeReserveError)
	if !ok {
		t.Fatalf("error type = %T, want *FeeReserveError", err)
	}
	if fre.LoanRepaid {
		t.Errorf("LoanRepaid should be false: rejection, not commit failure")
	}
}

func TestFeeReserveExhaustionAfterLoanRepaidIsCommitFailure(t *testing.T) {
	f := NewFeeReserve(100, 150, 0)
	if err := f.ConsumeExecution(100, ReasonExecution); err != nil {
		t.Fatalf("spend loan: %v", err)
	}
	f.RepayLoan()
	if err := f.ConsumeExecution(50, ReasonExecution); err != nil {
		t.Fatalf("spend up to limit: %v", err)
	}
	err := f.ConsumeExecution(1, ReasonExecution)
	if err == nil {
		t.Fatalf("expected exhaustion past the execution limit")
	}
	fre, ok := err.(*FeeReserveError)
	if !ok {
		t.Fatalf("error type = %T, want *FeeReserveError", err)
	}
	if !fre.LoanRepaid {
		t.Errorf("LoanRepaid should be true: commit failure, not rejection")
	}
}

func TestFeeReserveConsumeMultipliedSaturatesOnOverflow(t *testing.T) {
	// max*2 saturates to max, one unit above the loan; a wrapping multiply
	// would instead yield max-1 and fit exactly.
	f := NewFeeReserve(^uint64(0)-1, ^uint64(0), 0)
	err := f.ConsumeMultiplied(^uint64(0), 2, ReasonExecution)
	if err == nil {
		t.Fatalf("expected saturated charge to exceed a loan of max-1")
	}
}

func TestFeeReserveSettleComputesTip(t *testing.T) {
	f := NewFeeReserve(100_000, 100_000, 500) // 5% tip
	if err := f.ConsumeExecution(1000, ReasonExecution); err != nil {
		t.Fatalf("ConsumeExecution: %v", err)
	}
	if err := f.ConsumeExecution(1000, ReasonFinalization); err != nil {
		t.Fatalf("ConsumeExecution(finalization): %v", err)
	}
	summary, err := f.Settle()
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if summary.TipPaid != 100 {
		t.Errorf("TipPaid = %d, want 100 (5%% of 2000)", summary.TipPaid)
	}
}

func TestFeeReserveContingentRefunds(t *testing.T) {
	f := NewFeeReserve(100, 100, 0)
	var vault NodeId
	vault[0] = byte(EntityTypeFungibleVault)
	f.LockFee(vault, DecimalFromInt64(10), true)
	f.LockFee(vault, DecimalFromInt64(5), false)
	refunds := f.ContingentRefunds()
	if len(refunds) != 1 || !refunds[0].Amount.Equal(DecimalFromInt64(10)) {
		t.Fatalf("ContingentRefunds = %+v, want one entry of 10", refunds)
	}
}
