package identity

import (
	"fmt"
	"strconv"

	"holderguard/engine/library"
)

// Type is the kind of identity a guardian attests to. The ordinal is part of
// the verification document format and must never be renumbered.
type Type int32

const (
	Email Type = iota
	Phone
	Google
	Apple
	Telegram
	Facebook
	Twitter
	ZkLogin
)

var typeNames = map[Type]string{
	Email:    "email",
	Phone:    "phone",
	Google:   "google",
	Apple:    "apple",
	Telegram: "telegram",
	Facebook: "facebook",
	Twitter:  "twitter",
	ZkLogin:  "zklogin",
}

func (t Type) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return "type(" + strconv.Itoa(int(t)) + ")"
}

func (t Type) Valid() bool {
	_, ok := typeNames[t]
	return ok
}

// ParseType accepts either the name or the ordinal of a Type.
func ParseType(s string) (Type, error) {
	for t, n := range typeNames {
		if n == s {
			return t, nil
		}
	}
	i, err := strconv.ParseInt(s, 10, 32)
	if err != nil || !Type(i).Valid() {
		return 0, fmt.Errorf("unknown identity type %q", s)
	}
	return Type(i), nil
}

// Key is the identity of a guardian. Two guardians are the same entry iff
// their keys are equal.
type Key struct {
	Type           Type           `json:"type"`
	IdentifierHash library.Sha256 `json:"identifier_hash"`
	VerifierID     library.Sha256 `json:"verifier_id"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s@%s", k.Type, short(k.IdentifierHash), short(k.VerifierID))
}

// Validate checks that every field of the key is present and well formed.
func (k Key) Validate() error {
	if !k.Type.Valid() {
		return fmt.Errorf("invalid identity type %d", k.Type)
	}
	if !library.IsSha256(k.IdentifierHash) {
		return fmt.Errorf("invalid identifier hash %q", k.IdentifierHash)
	}
	if !library.IsSha256(k.VerifierID) {
		return fmt.Errorf("invalid verifier id %q", k.VerifierID)
	}
	return nil
}

// SameIdentity reports whether a and b refer to the same identity value,
// possibly vouched for by different verifiers.
func SameIdentity(a, b Key) bool {
	return a.Type == b.Type && a.IdentifierHash == b.IdentifierHash
}

func short(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
