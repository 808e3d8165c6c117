package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"holderguard/engine/library"
)

func TestHashIdentifierNormalizes(t *testing.T) {
	assert.Equal(t, HashIdentifier(Email, "alice@example.com"), HashIdentifier(Email, "  Alice@Example.COM "))
	assert.Equal(t, HashIdentifier(Phone, "+1 (555) 010-9999"), HashIdentifier(Phone, "+15550109999"))
	assert.NotEqual(t, HashIdentifier(Google, "Sub"), HashIdentifier(Google, "sub"))
}

func TestParseType(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Type
	}{
		{"email", Email},
		{"1", Phone},
		{"zklogin", ZkLogin},
	} {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseType(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
	_, err := ParseType("carrier-pigeon")
	assert.Error(t, err)
	_, err = ParseType("99")
	assert.Error(t, err)
}

func TestKeyValidate(t *testing.T) {
	k := Key{Type: Email, IdentifierHash: library.Sha256Sum("a"), VerifierID: library.Sha256Sum("v")}
	assert.NoError(t, k.Validate())

	bad := k
	bad.VerifierID = ""
	assert.Error(t, bad.Validate())

	bad = k
	bad.Type = 42
	assert.Error(t, bad.Validate())

	other := k
	other.VerifierID = library.Sha256Sum("w")
	assert.True(t, SameIdentity(k, other))
	assert.NotEqual(t, k, other)
}
