package guardians

import (
	"encoding/hex"
	"strconv"

	"holderguard/engine/library"
	"holderguard/state/attestation"
	"holderguard/state/identity"
	"holderguard/state/strategy"
)

// Operation details are what a verifier signs when a holder checks them.
// Each helper returns the hash a document must carry for that request.

func keyParts(k identity.Key) []string {
	return []string{strconv.Itoa(int(k.Type)), k.IdentifierHash, k.VerifierID}
}

// GuardianDetails covers AddGuardian, RemoveGuardian and both login
// operations.
func GuardianDetails(holder library.HolderID, k identity.Key) library.Sha256 {
	return attestation.DetailsHash(append([]string{holder}, keyParts(k)...)...)
}

func UpdateDetails(holder library.HolderID, previous, next identity.Key) library.Sha256 {
	parts := append([]string{holder}, keyParts(previous)...)
	return attestation.DetailsHash(append(parts, next.VerifierID)...)
}

func RecoveryDetails(holder library.HolderID, manager library.Account) library.Sha256 {
	return attestation.DetailsHash(holder, manager)
}

// PolicyDetails hashes the encoded policy, or "default" when p is nil.
func PolicyDetails(holder library.HolderID, p *strategy.Node) (library.Sha256, error) {
	if p == nil {
		return attestation.DetailsHash(holder, "default"), nil
	}
	b, err := strategy.Marshal(*p)
	if err != nil {
		return "", err
	}
	return attestation.DetailsHash(holder, hex.EncodeToString(b)), nil
}
