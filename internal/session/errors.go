package session

import (
	"errors"

	"slidebounty.ai/internal/eligibility"
	"slidebounty.ai/internal/ledger"
	"slidebounty.ai/internal/protocol"
)

var (
	// ErrAlreadyInProgress means the same flow is still awaiting the ledger.
	ErrAlreadyInProgress = errors.New("session: already in progress, please wait")
	ErrPuzzleNotSolved   = errors.New("session: puzzle is not solved")
	ErrGameFinished      = errors.New("session: game already finished")
	ErrAllClaimed        = errors.New("session: all rewards already claimed")
	ErrZeroAmount        = errors.New("session: amount must be positive")
)

// ReadFailure reports that the ledger could not be read. Cached progress is
// unchanged and the caller may retry.
type ReadFailure struct {
	Err error
}

func (e *ReadFailure) Error() string { return "read progress: " + e.Err.Error() }
func (e *ReadFailure) Unwrap() error { return e.Err }

// StaleRefresh reports a mutation that confirmed on the ledger whose
// follow-up progress read failed. The flow's result is valid; its snapshot is
// the last one read before the mutation.
type StaleRefresh struct {
	Op     string
	TxHash string
	Err    *ReadFailure
}

func (e *StaleRefresh) Error() string {
	return e.Op + " confirmed (tx " + e.TxHash + "), " + e.Err.Error()
}
func (e *StaleRefresh) Unwrap() error { return e.Err }

// WriteFailure reports a mutation that was refused or failed on confirmation.
type WriteFailure struct {
	Op     string
	TxHash string
	Err    error
}

func (e *WriteFailure) Error() string { return "submit " + e.Op + ": " + e.Err.Error() }
func (e *WriteFailure) Unwrap() error { return e.Err }

// Reason is the ledger's revert reason, if it gave one.
func (e *WriteFailure) Reason() string {
	var we *ledger.WriteError
	if errors.As(e.Err, &we) {
		return we.Reason
	}
	return ""
}

// UserMessage renders the failure for a player.
func (e *WriteFailure) UserMessage() string {
	switch {
	case e.Reason() == ledger.ReasonInsufficientBalance:
		return "contract has insufficient balance; it may need to be funded, or you may not be eligible to claim yet"
	case errors.Is(e.Err, ledger.ErrWrongNetwork):
		return "wrong network; connect to the configured chain and try again"
	case e.Reason() != "":
		return e.Reason()
	}
	return "transaction failed; check the connection and try again"
}

// ClaimRejected is a pre-flight refusal. No mutation was sent.
type ClaimRejected struct {
	Decision eligibility.Decision
}

func (e *ClaimRejected) Error() string { return "claim rejected: " + e.Decision.Message() }

// Code maps a flow error to its wire error code.
func Code(err error) string {
	if err == nil {
		return ""
	}
	var (
		cr *ClaimRejected
		wf *WriteFailure
		sr *StaleRefresh
	)
	switch {
	case errors.As(err, &sr):
		return ""
	case errors.Is(err, ErrAlreadyInProgress):
		return protocol.ErrBusy
	case errors.As(err, &cr):
		return cr.Decision.Reason.Code()
	case errors.Is(err, ledger.ErrWrongNetwork):
		return protocol.ErrWrongNetwork
	case errors.As(err, &wf):
		if r := wf.Reason(); r != "" {
			return ledger.ReasonCode(r)
		}
		return protocol.ErrInternal
	case errors.Is(err, ErrGameFinished):
		return protocol.ErrGameFinished
	case errors.Is(err, ErrAllClaimed):
		return protocol.ErrNotEligible
	case errors.Is(err, ErrPuzzleNotSolved), errors.Is(err, ErrZeroAmount):
		return protocol.ErrBadRequest
	}
	return protocol.ErrInternal
}

// Message renders any flow error for a player.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var (
		cr *ClaimRejected
		wf *WriteFailure
		rf *ReadFailure
		sr *StaleRefresh
	)
	switch {
	case errors.As(err, &sr):
		return "recorded on the ledger, but progress could not be refreshed; run status to retry"
	case errors.As(err, &cr):
		return cr.Decision.Message()
	case errors.As(err, &wf):
		return wf.UserMessage()
	case errors.As(err, &rf):
		return "could not read progress from the ledger; try again"
	}
	return err.Error()
}
