package attestation

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/exp/slices"
	"holderguard/engine/library"
)

// DefaultValidity is used when a Verifier has no validity window configured.
const DefaultValidity = time.Hour

var (
	ErrLegacyDocument   = errors.New("legacy verification document not accepted")
	ErrIdentityMismatch = errors.New("document identity does not match approval")
	ErrSignature        = errors.New("signature does not recover the document's verifier")
	ErrUnknownVerifier  = errors.New("verifier is not registered for this address")
	ErrOperation        = errors.New("document signed for another operation")
	ErrChain            = errors.New("document signed for another chain")
	ErrDetails          = errors.New("operation details hash mismatch")
	ErrExpired          = errors.New("document outside its validity window")
	ErrReplayed         = errors.New("document has already been consumed")
)

// Directory resolves a verifier ID to the addresses it signs with.
type Directory interface {
	Addresses(verifierID library.Sha256) ([]string, bool)
}

// ConsumedChecker reports documents already used by a committed request.
type ConsumedChecker interface {
	Consumed(documentHash library.Sha256) bool
}

// Verifier checks approvals for the chain the engine runs on.
type Verifier struct {
	Directory Directory
	// Consumed may be nil, then duplicate documents are not detected.
	Consumed     ConsumedChecker
	ChainID      library.ChainID
	HomeChainID  library.ChainID
	Validity     time.Duration
	AcceptLegacy bool
}

// Check carries the request specific expectations for one approval.
type Check struct {
	Operation    Operation
	Now          time.Time
	CheckDetails bool
	DetailsHash  library.Sha256
	// Accelerated requests replay an operation from the home chain.
	Accelerated bool
}

// Verify reports whether a is a valid attestation for c. It never fails
// loudly: callers count the approvals that pass.
func (v *Verifier) Verify(a Approval, c Check) bool {
	if _, err := v.Inspect(a, c); err != nil {
		library.LogCLI(fmt.Sprintf("approval from %s rejected for %s: %s", a.Key(), c.Operation, err.Error()), 3)
		return false
	}
	return true
}

// Inspect runs every check on a and returns the parsed document or the first
// failure.
func (v *Verifier) Inspect(a Approval, c Check) (Document, error) {
	raw := a.Verification.VerificationDoc
	d, err := ParseDocument(raw)
	if err != nil {
		return d, err
	}
	if d.Format != Qualified && (!v.AcceptLegacy || c.Operation.RequiresReplayProtection()) {
		return d, fmt.Errorf("%w: %s for %s", ErrLegacyDocument, d.Format, c.Operation)
	}
	if d.IdentityType != a.Type || d.IdentifierHash != a.IdentifierHash {
		return d, ErrIdentityMismatch
	}
	signer, err := Recover(raw, a.Verification.Signature)
	if err != nil {
		return d, fmt.Errorf("%w: %s", ErrSignature, err.Error())
	}
	if signer != d.VerifierAddress {
		return d, ErrSignature
	}
	if v.Directory == nil {
		return d, ErrUnknownVerifier
	}
	addresses, ok := v.Directory.Addresses(a.Verification.VerifierID)
	if !ok || !slices.Contains(addresses, signer) {
		return d, ErrUnknownVerifier
	}
	if d.Format == Qualified {
		if d.Operation != c.Operation {
			return d, fmt.Errorf("%w: signed %s, requested %s", ErrOperation, d.Operation, c.Operation)
		}
		if !v.chainAccepted(d.ChainID, c.Accelerated) {
			return d, fmt.Errorf("%w: %d", ErrChain, d.ChainID)
		}
	}
	if c.CheckDetails && (len(d.DetailsHash) == 0 || d.DetailsHash != c.DetailsHash) {
		return d, ErrDetails
	}
	if !v.withinWindow(d.Timestamp, c.Now) {
		return d, ErrExpired
	}
	if v.Consumed != nil && v.Consumed.Consumed(a.DocumentHash()) {
		return d, ErrReplayed
	}
	return d, nil
}

func (v *Verifier) chainAccepted(chain library.ChainID, accelerated bool) bool {
	if chain == v.ChainID {
		return true
	}
	return accelerated && chain == v.HomeChainID
}

func (v *Verifier) withinWindow(timestamp int64, now time.Time) bool {
	validity := v.Validity
	if validity <= 0 {
		validity = DefaultValidity
	}
	age := now.Sub(time.Unix(timestamp, 0))
	return age <= validity && age >= -validity
}
