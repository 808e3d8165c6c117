package attestation

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"holderguard/engine/library"
	"holderguard/state/identity"
)

const chain library.ChainID = 9992731

type directory map[library.Sha256][]string

func (d directory) Addresses(id library.Sha256) ([]string, bool) {
	a, ok := d[id]
	return a, ok
}

type consumed map[library.Sha256]bool

func (c consumed) Consumed(h library.Sha256) bool {
	return c[h]
}

type fixture struct {
	key        *btcec.PrivateKey
	verifierID library.Sha256
	verifier   *Verifier
	now        time.Time
	hash       library.Sha256
}

func newFixture(t *testing.T) *fixture {
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	f := &fixture{
		key:        key,
		verifierID: library.Sha256Sum("verifier-1"),
		now:        time.Unix(1700000000, 0),
		hash:       identity.HashIdentifier(identity.Email, "alice@example.com"),
	}
	f.verifier = &Verifier{
		Directory: directory{f.verifierID: {library.AddressFromPubKey(key.PubKey())}},
		ChainID:   chain,
		Validity:  time.Hour,
	}
	return f
}

func (f *fixture) approval(t *testing.T, op Operation, mutate func(*Document)) Approval {
	d := NewDocument(identity.Email, f.hash, f.now.Unix()-60, "salt-1", op, chain)
	if mutate != nil {
		mutate(&d)
	}
	a, err := Attest(d, f.verifierID, f.key)
	require.NoError(t, err)
	return a
}

func (f *fixture) check(op Operation) Check {
	return Check{Operation: op, Now: f.now}
}

func TestVerifyAcceptsQualifiedDocument(t *testing.T) {
	f := newFixture(t)
	a := f.approval(t, AddGuardian, nil)
	d, err := f.verifier.Inspect(a, f.check(AddGuardian))
	require.NoError(t, err)
	assert.Equal(t, Qualified, d.Format)
	assert.Equal(t, "salt-1", d.Salt)
	assert.True(t, f.verifier.Verify(a, f.check(AddGuardian)))
}

func TestVerifyRejections(t *testing.T) {
	f := newFixture(t)
	other, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	for name, tc := range map[string]struct {
		approval func() Approval
		check    Check
		want     error
	}{
		"operation": {
			approval: func() Approval { return f.approval(t, AddGuardian, nil) },
			check:    f.check(RemoveGuardian),
			want:     ErrOperation,
		},
		"chain": {
			approval: func() Approval { return f.approval(t, AddGuardian, func(d *Document) { d.ChainID = 1 }) },
			check:    f.check(AddGuardian),
			want:     ErrChain,
		},
		"expired": {
			approval: func() Approval {
				return f.approval(t, AddGuardian, func(d *Document) { d.Timestamp = f.now.Add(-61 * time.Minute).Unix() })
			},
			check: f.check(AddGuardian),
			want:  ErrExpired,
		},
		"future": {
			approval: func() Approval {
				return f.approval(t, AddGuardian, func(d *Document) { d.Timestamp = f.now.Add(2 * time.Hour).Unix() })
			},
			check: f.check(AddGuardian),
			want:  ErrExpired,
		},
		"tampered": {
			approval: func() Approval {
				a := f.approval(t, AddGuardian, nil)
				a.Verification.VerificationDoc = strings.Replace(a.Verification.VerificationDoc, "salt-1", "salt-2", 1)
				return a
			},
			check: f.check(AddGuardian),
			want:  ErrSignature,
		},
		"unregistered key": {
			approval: func() Approval {
				a, err := Attest(NewDocument(identity.Email, f.hash, f.now.Unix(), "s", AddGuardian, chain), f.verifierID, other)
				require.NoError(t, err)
				return a
			},
			check: f.check(AddGuardian),
			want:  ErrUnknownVerifier,
		},
		"unknown verifier id": {
			approval: func() Approval {
				a := f.approval(t, AddGuardian, nil)
				a.Verification.VerifierID = library.Sha256Sum("nobody")
				return a
			},
			check: f.check(AddGuardian),
			want:  ErrUnknownVerifier,
		},
		"identity": {
			approval: func() Approval {
				a := f.approval(t, AddGuardian, nil)
				a.IdentifierHash = library.Sha256Sum("bob")
				return a
			},
			check: f.check(AddGuardian),
			want:  ErrIdentityMismatch,
		},
		"bad signature": {
			approval: func() Approval {
				a := f.approval(t, AddGuardian, nil)
				a.Verification.Signature = "00ff"
				return a
			},
			check: f.check(AddGuardian),
			want:  ErrSignature,
		},
		"malformed": {
			approval: func() Approval {
				a := f.approval(t, AddGuardian, nil)
				a.Verification.VerificationDoc = "0,nope"
				return a
			},
			check: f.check(AddGuardian),
			want:  ErrMalformedDocument,
		},
	} {
		t.Run(name, func(t *testing.T) {
			a := tc.approval()
			_, err := f.verifier.Inspect(a, tc.check)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
			assert.False(t, f.verifier.Verify(a, tc.check))
		})
	}
}

func TestAcceleratedRequestsAcceptHomeChain(t *testing.T) {
	f := newFixture(t)
	f.verifier.HomeChainID = 9992722
	a := f.approval(t, SocialRecovery, func(d *Document) { d.ChainID = 9992722 })
	c := f.check(SocialRecovery)
	assert.False(t, f.verifier.Verify(a, c))
	c.Accelerated = true
	assert.True(t, f.verifier.Verify(a, c))
}

func TestOperationDetails(t *testing.T) {
	f := newFixture(t)
	details := DetailsHash("0", f.hash, f.verifierID)
	withDetails := f.approval(t, AddGuardian, func(d *Document) { d.DetailsHash = details })
	without := f.approval(t, AddGuardian, nil)

	c := f.check(AddGuardian)
	c.CheckDetails = true
	c.DetailsHash = details
	assert.True(t, f.verifier.Verify(withDetails, c))
	_, err := f.verifier.Inspect(without, c)
	assert.True(t, errors.Is(err, ErrDetails))

	c.DetailsHash = DetailsHash("something", "else")
	assert.False(t, f.verifier.Verify(withDetails, c))

	// ignored while the holder does not check details
	assert.True(t, f.verifier.Verify(withDetails, f.check(AddGuardian)))
}

func TestLegacyDocuments(t *testing.T) {
	f := newFixture(t)
	legacy := func(format Format) Approval {
		return f.approval(t, Unknown, func(d *Document) { d.Format = format })
	}
	for _, format := range []Format{LegacyWithoutSalt, LegacyWithoutOperation} {
		t.Run(format.String(), func(t *testing.T) {
			a := legacy(format)
			_, err := f.verifier.Inspect(a, f.check(CreateHolder))
			assert.True(t, errors.Is(err, ErrLegacyDocument))

			f.verifier.AcceptLegacy = true
			defer func() { f.verifier.AcceptLegacy = false }()
			assert.True(t, f.verifier.Verify(a, f.check(CreateHolder)))
			assert.True(t, f.verifier.Verify(a, f.check(SocialRecovery)))
			_, err = f.verifier.Inspect(a, f.check(AddGuardian))
			assert.True(t, errors.Is(err, ErrLegacyDocument), "guardian mutations need the qualified form")
		})
	}
}

func TestConsumedDocumentsAreRejected(t *testing.T) {
	f := newFixture(t)
	a := f.approval(t, AddGuardian, nil)
	seen := consumed{}
	f.verifier.Consumed = seen
	assert.True(t, f.verifier.Verify(a, f.check(AddGuardian)))
	seen[a.DocumentHash()] = true
	_, err := f.verifier.Inspect(a, f.check(AddGuardian))
	assert.True(t, errors.Is(err, ErrReplayed))
}

func TestParseDocumentRoundTrip(t *testing.T) {
	f := newFixture(t)
	addr := library.AddressFromPubKey(f.key.PubKey())
	for _, raw := range []string{
		"0," + f.hash + ",1700000000," + addr,
		"1," + f.hash + ",1700000000," + addr + ",abc",
		"2," + f.hash + ",1700000000," + addr + ",abc,3,9992731",
		"2," + f.hash + ",1700000000," + addr + ",abc,4,-7," + library.Sha256Sum("x"),
	} {
		d, err := ParseDocument(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, raw, d.String())
		assert.Equal(t, raw, d.Raw)
	}
}

func TestParseDocumentRejects(t *testing.T) {
	f := newFixture(t)
	addr := library.AddressFromPubKey(f.key.PubKey())
	for name, raw := range map[string]string{
		"fields":    "0," + f.hash + ",1",
		"type":      "77," + f.hash + ",1700000000," + addr,
		"hash":      "0,XYZ,1700000000," + addr,
		"timestamp": "0," + f.hash + ",yesterday," + addr,
		"address":   "0," + f.hash + ",1700000000,1111",
		"salt":      "0," + f.hash + ",1700000000," + addr + ",",
		"operation": "0," + f.hash + ",1700000000," + addr + ",s,99,1",
		"chain":     "0," + f.hash + ",1700000000," + addr + ",s,3,main",
		"details":   "0," + f.hash + ",1700000000," + addr + ",s,3,1,zz",
		"too many":  "0," + f.hash + ",1700000000," + addr + ",s,3,1," + f.hash + ",x",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseDocument(raw)
			assert.True(t, errors.Is(err, ErrMalformedDocument), "got %v", err)
		})
	}
}

func TestRecover(t *testing.T) {
	f := newFixture(t)
	sig, err := Sign("hello", f.key)
	require.NoError(t, err)
	addr, err := Recover("hello", sig)
	require.NoError(t, err)
	assert.Equal(t, library.AddressFromPubKey(f.key.PubKey()), addr)

	addr, err = Recover("hello!", sig)
	if err == nil {
		assert.NotEqual(t, library.AddressFromPubKey(f.key.PubKey()), addr)
	}
	_, err = Recover("hello", "zz")
	assert.Error(t, err)
}

func TestParseOperation(t *testing.T) {
	for o := CreateHolder; o <= SetPolicy; o++ {
		byName, err := ParseOperation(o.String())
		require.NoError(t, err)
		assert.Equal(t, o, byName)
	}
	op, err := ParseOperation("4")
	require.NoError(t, err)
	assert.Equal(t, RemoveGuardian, op)
	_, err = ParseOperation("Transfer")
	assert.Error(t, err)
	_, err = ParseOperation("0")
	assert.Error(t, err)
}
