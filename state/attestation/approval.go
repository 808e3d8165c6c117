package attestation

import (
	"holderguard/engine/library"
	"holderguard/state/identity"
)

// VerificationInfo is what a verifier hands back after checking control of an
// identity: the signed document and the signature over its hash.
type VerificationInfo struct {
	VerifierID      library.Sha256 `json:"verifier_id"`
	Signature       string         `json:"signature"`
	VerificationDoc string         `json:"verification_doc"`
}

// Approval is a guardian's consent to one request. It is never persisted.
type Approval struct {
	Type           identity.Type    `json:"type"`
	IdentifierHash library.Sha256   `json:"identifier_hash"`
	Verification   VerificationInfo `json:"verification"`
}

// Key is the identity key of the guardian that gave the approval.
func (a Approval) Key() identity.Key {
	return identity.Key{
		Type:           a.Type,
		IdentifierHash: a.IdentifierHash,
		VerifierID:     a.Verification.VerifierID,
	}
}

// DocumentHash identifies the verification document for replay detection.
func (a Approval) DocumentHash() library.Sha256 {
	return library.Sha256Sum(a.Verification.VerificationDoc)
}
