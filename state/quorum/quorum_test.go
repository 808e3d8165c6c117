package quorum

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"holderguard/engine/library"
	"holderguard/state/attestation"
	"holderguard/state/identity"
	"holderguard/state/strategy"
)

const chain library.ChainID = 9992731

type directory map[library.Sha256][]string

func (d directory) Addresses(id library.Sha256) ([]string, bool) {
	a, ok := d[id]
	return a, ok
}

var (
	now        = time.Unix(1700000000, 0)
	verifierID = library.Sha256Sum("verifier")
)

func setup(t *testing.T) (*Evaluator, *btcec.PrivateKey) {
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	v := &attestation.Verifier{
		Directory: directory{verifierID: {library.AddressFromPubKey(key.PubKey())}},
		ChainID:   chain,
		Validity:  time.Hour,
	}
	return NewEvaluator(v), key
}

func guardian(n int) identity.Key {
	return identity.Key{
		Type:           identity.Email,
		IdentifierHash: identity.HashIdentifier(identity.Email, fmt.Sprintf("g%d@example.com", n)),
		VerifierID:     verifierID,
	}
}

func approve(t *testing.T, key *btcec.PrivateKey, k identity.Key, op attestation.Operation) attestation.Approval {
	d := attestation.NewDocument(k.Type, k.IdentifierHash, now.Unix(), fmt.Sprintf("salt-%s", k.IdentifierHash[:6]), op, chain)
	a, err := attestation.Attest(d, k.VerifierID, key)
	require.NoError(t, err)
	return a
}

func TestAuthorizeDefaultPolicy(t *testing.T) {
	e, key := setup(t)
	guardians := []identity.Key{guardian(1), guardian(2), guardian(3), guardian(4)}
	req := Request{Operation: attestation.AddGuardian, Guardians: guardians, RequireExistingApprover: true, Now: now}

	tally, err := e.Authorize(req, []attestation.Approval{approve(t, key, guardians[0], attestation.AddGuardian)})
	require.NoError(t, err)
	assert.False(t, tally.Passed)
	assert.Equal(t, int64(4), tally.GuardianCount)

	tally, err = e.Authorize(req, []attestation.Approval{
		approve(t, key, guardians[0], attestation.AddGuardian),
		approve(t, key, guardians[2], attestation.AddGuardian),
	})
	require.NoError(t, err)
	assert.True(t, tally.Passed)
	assert.Equal(t, int64(2), tally.Approved)
	assert.Len(t, tally.Documents, 2)
}

func TestAuthorizeDeduplicatesAndExcludes(t *testing.T) {
	e, key := setup(t)
	guardians := []identity.Key{guardian(1), guardian(2)}
	policy := strategy.Threshold(2)
	a1 := approve(t, key, guardians[0], attestation.RemoveGuardian)
	a2 := approve(t, key, guardians[1], attestation.RemoveGuardian)

	tally, err := e.Authorize(Request{
		Operation: attestation.RemoveGuardian, Guardians: guardians, Policy: &policy,
		RequireExistingApprover: true, Now: now,
	}, []attestation.Approval{a1, a1, a1})
	require.NoError(t, err)
	assert.Equal(t, 1, tally.Considered)
	assert.Equal(t, int64(1), tally.Approved)
	assert.False(t, tally.Passed)

	// the guardian being removed can not approve its own removal
	tally, err = e.Authorize(Request{
		Operation: attestation.RemoveGuardian, Guardians: guardians, Excluded: []identity.Key{guardians[1]},
		Policy: &policy, RequireExistingApprover: true, Now: now,
	}, []attestation.Approval{a2})
	require.NoError(t, err)
	assert.Equal(t, int64(1), tally.GuardianCount)
	assert.Equal(t, 0, tally.Considered)
	assert.False(t, tally.Passed)
	assert.False(t, tally.AllInvalid())
}

func TestAuthorizeFirstOccurrenceWins(t *testing.T) {
	e, key := setup(t)
	g := guardian(1)
	bad := approve(t, key, g, attestation.AddGuardian)
	bad.Verification.Signature = "00"
	good := approve(t, key, g, attestation.AddGuardian)

	tally, err := e.Authorize(Request{Operation: attestation.AddGuardian, Guardians: []identity.Key{g}, RequireExistingApprover: true, Now: now},
		[]attestation.Approval{bad, good})
	require.NoError(t, err)
	assert.False(t, tally.Passed)
	assert.True(t, tally.AllInvalid())
}

func TestAuthorizeUnknownApprovers(t *testing.T) {
	e, key := setup(t)
	outsider := approve(t, key, guardian(9), attestation.SocialRecovery)
	req := Request{Operation: attestation.SocialRecovery, Guardians: []identity.Key{guardian(1)}, RequireExistingApprover: true, Now: now}

	tally, err := e.Authorize(req, []attestation.Approval{outsider})
	require.NoError(t, err)
	assert.Equal(t, 0, tally.Considered)
	assert.False(t, tally.Passed)

	req.RequireExistingApprover = false
	tally, err = e.Authorize(req, []attestation.Approval{outsider})
	require.NoError(t, err)
	assert.Equal(t, 1, tally.Considered)
	assert.True(t, tally.Passed)
}

func TestAuthorizeWrongOperation(t *testing.T) {
	e, key := setup(t)
	g := guardian(1)
	tally, err := e.Authorize(Request{Operation: attestation.RemoveGuardian, Guardians: []identity.Key{g, guardian(2)}, RequireExistingApprover: true, Now: now},
		[]attestation.Approval{approve(t, key, g, attestation.AddGuardian)})
	require.NoError(t, err)
	assert.False(t, tally.Passed)
	assert.True(t, tally.AllInvalid())
}

func TestAuthorizeZeroApprovalsNeverPass(t *testing.T) {
	e, _ := setup(t)
	always := strategy.Compare(strategy.Equal, strategy.Lit(1), strategy.Lit(1))
	tally, err := e.Authorize(Request{Operation: attestation.SetPolicy, Policy: &always, Now: now}, nil)
	require.NoError(t, err)
	assert.False(t, tally.Passed)
}

func TestAuthorizePolicyError(t *testing.T) {
	e, key := setup(t)
	g := guardian(1)
	broken := strategy.Compare(strategy.Equal, strategy.Var("quorumSize"), strategy.Lit(1))
	_, err := e.Authorize(Request{Operation: attestation.AddGuardian, Guardians: []identity.Key{g}, Policy: &broken, RequireExistingApprover: true, Now: now},
		[]attestation.Approval{approve(t, key, g, attestation.AddGuardian)})
	assert.True(t, errors.Is(err, strategy.ErrEvaluation))
}
