package core

// receipt.go – the receipt assembler. Classifies a transaction's
// outcome into one of Rejection, Abort, CommitFailure, CommitSuccess
// and bundles the fee summary, events, logs and (on success) the state
// updates and new state root.

import (
	"github.com/google/uuid"
)

// OutcomeKind is the top-level classification of a transaction's result.
type OutcomeKind uint8

const (
	// OutcomeCommitSuccess: the manifest ran to completion; state updates
	// are committed to the store and reflected in the new state root.
	OutcomeCommitSuccess OutcomeKind = iota
	// OutcomeCommitFailure: the manifest failed after the fee loan was
	// repaid. Fee payments are kept (not refunded); no other state
	// updates are committed.
	OutcomeCommitFailure
	// OutcomeRejection: the manifest failed before the fee loan was
	// repaid. Nothing is committed, including fee payments.
	OutcomeRejection
	// OutcomeAbort: a host-level fatal condition. Never persisted.
	OutcomeAbort
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeCommitSuccess:
		return "CommitSuccess"
	case OutcomeCommitFailure:
		return "CommitFailure"
	case OutcomeRejection:
		return "Rejection"
	case OutcomeAbort:
		return "Abort"
	default:
		return "Unknown"
	}
}

// Receipt is the full record of executing one transaction.
type Receipt struct {
	TraceID uuid.UUID
	Outcome OutcomeKind

	Fees   FeeSummary
	Events []Event
	Logs   []LogEntry

	// StateUpdates and StateRoot are only populated on CommitSuccess.
	StateUpdates *StateUpdates
	StateRoot    [32]byte

	// ErrorMessage carries the failing instruction's error for
	// CommitFailure/Rejection/Abort outcomes; empty on success.
	ErrorMessage string
}

// AssembleReceipt classifies a finished run against a kernel into a
// receipt; it does not run the manifest itself. runErr is the error returned by the
// processor's Run (nil on success); panicRecovered is set when the
// caller recovered a panic from the invocation (always an Abort).
func AssembleReceipt(k *Kernel, tree *HashTree, runErr error, panicRecovered string) (*Receipt, error) {
	r := &Receipt{
		TraceID: k.fee.TraceID,
		Events:  k.Events(),
		Logs:    k.Logs(),
	}

	if panicRecovered != "" {
		r.Outcome = OutcomeAbort
		r.ErrorMessage = panicRecovered
		return r, nil
	}

	if runErr != nil {
		if k.fee.LoanRepaid() {
			r.Outcome = OutcomeCommitFailure
		} else {
			r.Outcome = OutcomeRejection
		}
		r.ErrorMessage = runErr.Error()
		summary, err := k.fee.Settle()
		if err != nil {
			return nil, err
		}
		r.Fees = summary
		if r.Outcome == OutcomeRejection {
			// nothing committed at all, including locked fees.
			r.Fees = FeeSummary{}
		}
		return r, nil
	}

	summary, err := k.fee.Settle()
	if err != nil {
		return nil, err
	}
	r.Fees = summary
	r.Outcome = OutcomeCommitSuccess

	updates := k.track.Diff()
	r.StateUpdates = updates

	if !updates.IsEmpty() {
		root, _, err := tree.ApplyStateUpdates(updates)
		if err != nil {
			return nil, err
		}
		r.StateRoot = root
	} else {
		r.StateRoot = tree.Root()
	}

	return r, nil
}

// Commit persists a CommitSuccess receipt's state updates to the
// backing store. Callers must not call this for any other outcome kind.
func (r *Receipt) Commit(store Store) error {
	if r.Outcome != OutcomeCommitSuccess {
		return newKernelError("Receipt.Commit", ErrCannotCommitNonSuccess)
	}
	if r.StateUpdates == nil || r.StateUpdates.IsEmpty() {
		return nil
	}
	return store.Commit(r.StateUpdates)
}
