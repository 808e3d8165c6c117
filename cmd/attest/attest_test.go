package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"holderguard/engine/library"
	"holderguard/state/guardians"
	"holderguard/state/identity"
)

func TestDetailsHash(t *testing.T) {
	holder := library.Sha256Sum("holder")
	verifier := library.Sha256Sum("verifier")
	next := library.Sha256Sum("next")
	k := identity.Key{Type: identity.Email, IdentifierHash: identity.HashIdentifier(identity.Email, "alice@example.com"), VerifierID: verifier}
	policy, err := guardians.PolicyDetails(holder, nil)
	require.NoError(t, err)

	for name, tc := range map[string]struct {
		details Details
		want    library.Sha256
	}{
		"guardian": {
			Details{Holder: holder, Type: "email", Identifier: "alice@example.com", VerifierID: verifier},
			guardians.GuardianDetails(holder, k),
		},
		"update": {
			Details{Holder: holder, Type: "email", Identifier: "alice@example.com", VerifierID: verifier, NextVerifierID: next},
			guardians.UpdateDetails(holder, k, identity.Key{Type: k.Type, IdentifierHash: k.IdentifierHash, VerifierID: next}),
		},
		"recovery": {
			Details{Holder: holder, Manager: library.Sha256Sum("manager")},
			guardians.RecoveryDetails(holder, library.Sha256Sum("manager")),
		},
		"policy": {
			Details{Holder: holder, PolicyFile: "-"},
			policy,
		},
	} {
		t.Run(name, func(t *testing.T) {
			got, err := tc.details.hash()
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err = (&Details{Holder: "nope"}).hash()
	assert.Error(t, err)
	_, err = (&Details{Holder: holder, Type: "email"}).hash()
	assert.Error(t, err, "target guardian needs a verifier")
}
