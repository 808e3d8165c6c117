package guardians

import (
	"errors"
	"fmt"

	"holderguard/engine/library"
	"holderguard/state/attestation"
	"holderguard/state/quorum"
)

var (
	ErrInvalidInput               = errors.New("invalid input")
	ErrHolderNotFound             = errors.New("holder not found")
	ErrGuardianNotFound           = errors.New("guardian not found")
	ErrGuardianAlreadyExists      = errors.New("guardian already exists")
	ErrLastLoginGuardian          = errors.New("holder must keep at least one login guardian")
	ErrInconsistentGuardianUpdate = errors.New("update may only change the verifier")
	ErrQuorumNotSatisfied         = errors.New("quorum not satisfied")
	ErrAttestationInvalid         = errors.New("attestation invalid")
	ErrPolicyEvaluation           = errors.New("policy evaluation failed")
)

// OperationError is returned by every registry operation that fails.
type OperationError struct {
	Op       attestation.Operation
	HolderID library.HolderID
	Err      error
}

func (e *OperationError) Error() string {
	if len(e.HolderID) > 0 {
		return fmt.Sprintf("%s %s: %s", e.Op, e.HolderID, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

func fail(op attestation.Operation, holder library.HolderID, kind error, format string, args ...interface{}) error {
	err := kind
	if len(format) > 0 {
		err = fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
	}
	return &OperationError{Op: op, HolderID: holder, Err: err}
}

// QuorumError carries the tally of a rejected request. It is also an
// ErrAttestationInvalid when none of the considered approvals verified.
type QuorumError struct {
	Tally quorum.Tally
}

func (e *QuorumError) Error() string {
	if e.Tally.AllInvalid() {
		return fmt.Sprintf("%s: no approval verified, %s", ErrQuorumNotSatisfied, e.Tally)
	}
	return fmt.Sprintf("%s: %s", ErrQuorumNotSatisfied, e.Tally)
}

func (e *QuorumError) Is(target error) bool {
	return target == ErrQuorumNotSatisfied || (target == ErrAttestationInvalid && e.Tally.AllInvalid())
}
