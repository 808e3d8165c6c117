package attestation

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"holderguard/engine/library"
	"holderguard/state/identity"
)

// SignatureLength is the size of a compact recoverable signature.
const SignatureLength = 65

// Sign produces the hex encoded compact signature over the hash of raw.
func Sign(raw string, key *btcec.PrivateKey) (string, error) {
	sig, err := ecdsa.SignCompact(key, library.Sha256Bytes([]byte(raw)), false)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sig), nil
}

// Recover returns the address of the key that produced signature over raw.
func Recover(raw, signature string) (string, error) {
	sig, err := hex.DecodeString(signature)
	if err != nil {
		return "", fmt.Errorf("signature is not hex: %w", err)
	}
	if len(sig) != SignatureLength {
		return "", fmt.Errorf("signature is %d bytes, want %d", len(sig), SignatureLength)
	}
	pub, _, err := ecdsa.RecoverCompact(sig, library.Sha256Bytes([]byte(raw)))
	if err != nil {
		return "", err
	}
	return library.AddressFromPubKey(pub), nil
}

// Attest is the verifier side of the protocol: it fills in the verifier
// address, signs the document and wraps it into an Approval.
func Attest(d Document, verifierID library.Sha256, key *btcec.PrivateKey) (Approval, error) {
	d.VerifierAddress = library.AddressFromPubKey(key.PubKey())
	raw := d.String()
	sig, err := Sign(raw, key)
	if err != nil {
		return Approval{}, err
	}
	return Approval{
		Type:           d.IdentityType,
		IdentifierHash: d.IdentifierHash,
		Verification: VerificationInfo{
			VerifierID:      verifierID,
			Signature:       sig,
			VerificationDoc: raw,
		},
	}, nil
}

// NewDocument returns a qualified document for one identity and operation.
func NewDocument(t identity.Type, identifierHash library.Sha256, timestamp int64, salt string, op Operation, chain library.ChainID) Document {
	return Document{
		Format:         Qualified,
		IdentityType:   t,
		IdentifierHash: identifierHash,
		Timestamp:      timestamp,
		Salt:           salt,
		Operation:      op,
		ChainID:        chain,
	}
}
