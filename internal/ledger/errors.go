package ledger

import (
	"errors"
	"fmt"
	"strings"

	"slidebounty.ai/internal/protocol"
)

// Revert reasons produced by the bounty contract.
const (
	ReasonInsufficientBalance = "Insufficient balance"
	ReasonNotLastUser         = "Not last user"
	ReasonCooldown            = "Cooldown active"
	ReasonNoReward            = "No reward available"
	ReasonGameFinished        = "Game already finished"
	ReasonNotOwner            = "Not owner"
	ReasonZeroValue           = "Zero value"
)

var (
	ErrWrongNetwork = errors.New("ledger: wrong network")
	ErrNoSigner     = errors.New("ledger: no signer configured")
	ErrClosed       = errors.New("ledger: client closed")
	ErrBusy         = errors.New("ledger: gateway busy")
)

// ReadError reports a failed or timed-out view call.
type ReadError struct {
	Query string
	Err   error
}

func (e *ReadError) Error() string { return fmt.Sprintf("ledger read %s: %v", e.Query, e.Err) }
func (e *ReadError) Unwrap() error { return e.Err }

// WriteError reports a mutation that was refused at submission or failed on
// confirmation. Reason carries the contract's revert string when known.
type WriteError struct {
	Op     string
	TxHash string
	Reason string
	Err    error
}

func (e *WriteError) Error() string {
	var b strings.Builder
	b.WriteString("ledger write ")
	b.WriteString(e.Op)
	if e.TxHash != "" {
		b.WriteString(" tx=")
		b.WriteString(e.TxHash)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *WriteError) Unwrap() error { return e.Err }

func Reverted(op, txHash, reason string) *WriteError {
	return &WriteError{Op: op, TxHash: txHash, Reason: reason}
}

// WrapRead tags err with the query it came from unless it already is a
// ReadError.
func WrapRead(query string, err error) error {
	if err == nil {
		return nil
	}
	var re *ReadError
	if errors.As(err, &re) {
		return err
	}
	return &ReadError{Query: query, Err: err}
}

// WrapWrite is WrapRead's counterpart for mutations.
func WrapWrite(op string, err error) error {
	if err == nil {
		return nil
	}
	var we *WriteError
	if errors.As(err, &we) {
		return err
	}
	return &WriteError{Op: op, Err: err}
}

// ReasonCode maps a revert reason to its wire error code.
func ReasonCode(reason string) string {
	switch reason {
	case "":
		return ""
	case ReasonInsufficientBalance:
		return protocol.ErrNoFunds
	case ReasonNotLastUser:
		return protocol.ErrNotLastUser
	case ReasonCooldown:
		return protocol.ErrCooldown
	case ReasonNoReward:
		return protocol.ErrNotEligible
	case ReasonGameFinished:
		return protocol.ErrGameFinished
	case ReasonNotOwner:
		return protocol.ErrNoPermission
	case ReasonZeroValue:
		return protocol.ErrBadRequest
	}
	return protocol.ErrInternal
}

// ReasonForCode is ReasonCode's inverse for the reasons that have a
// dedicated code.
func ReasonForCode(code string) string {
	switch code {
	case protocol.ErrNoFunds:
		return ReasonInsufficientBalance
	case protocol.ErrNotLastUser:
		return ReasonNotLastUser
	case protocol.ErrCooldown:
		return ReasonCooldown
	case protocol.ErrNotEligible:
		return ReasonNoReward
	case protocol.ErrGameFinished:
		return ReasonGameFinished
	case protocol.ErrNoPermission:
		return ReasonNotOwner
	}
	return ""
}
