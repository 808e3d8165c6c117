package library

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// addressVersion is the base58check version byte of verifier addresses.
const addressVersion byte = 0

func Sha256Sum(data interface{}) Sha256 {
	var b []byte
	switch d := data.(type) {
	case string:
		b = []byte(d)
	case []byte:
		b = d
	default:
		LogCLI("attempted to hash non-string or non-[]byte", 1)
	}
	h := sha256.Sum256(b)
	return fmt.Sprintf("%x", h[:])
}

// Sha256Bytes returns the raw digest, used as the message signed by verifiers.
func Sha256Bytes(b []byte) []byte {
	h := sha256.Sum256(b)
	return h[:]
}

// IsSha256 reports whether s is a lowercase hex encoded 32 byte digest.
func IsSha256(s string) bool {
	if len(s) != 64 {
		return false
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return false
	}
	return hex.EncodeToString(b) == s
}

// AddressFromPubKey derives the base58check address of a verifier key from
// the double sha256 of its uncompressed serialization.
func AddressFromPubKey(pub *btcec.PublicKey) string {
	return base58.CheckEncode(chainhash.DoubleHashB(pub.SerializeUncompressed()), addressVersion)
}

// IsValidAddress checks the base58 checksum, version and payload length.
func IsValidAddress(address string) bool {
	payload, version, err := base58.CheckDecode(address)
	if err != nil {
		return false
	}
	return version == addressVersion && len(payload) == chainhash.HashSize
}

// IsAccount reports whether a is a hex encoded x-only nostr pubkey.
func IsAccount(a Account) bool {
	return IsSha256(a)
}
