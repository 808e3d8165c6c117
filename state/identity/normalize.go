package identity

import (
	"strings"
	"unicode"

	"holderguard/engine/library"
)

// Normalize returns the canonical form of an identity value. Emails are
// lowercased, phone numbers keep only a leading + and digits, everything else
// is trimmed.
func Normalize(t Type, value string) string {
	value = strings.TrimSpace(value)
	switch t {
	case Email:
		return strings.ToLower(value)
	case Phone:
		var b strings.Builder
		for i, r := range value {
			if unicode.IsDigit(r) || (r == '+' && i == 0) {
				b.WriteRune(r)
			}
		}
		return b.String()
	default:
		return value
	}
}

// HashIdentifier is the identifier hash stored on guardians. The plaintext is
// never kept.
func HashIdentifier(t Type, value string) library.Sha256 {
	return library.Sha256Sum(Normalize(t, value))
}
