package eventconductor

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"holderguard/engine/actors"
	"holderguard/engine/library"
	"holderguard/state/attestation"
	"holderguard/state/guardians"
	"holderguard/state/identity"
	"holderguard/state/replay"
	"holderguard/state/verifiers"
)

const chain library.ChainID = 9992731

var verifierID = library.Sha256Sum("mail-verifier")

type fixture struct {
	t         *testing.T
	key       *btcec.PrivateKey
	conductor *Conductor
	now       time.Time
	salt      int
}

func newFixture(t *testing.T) *fixture {
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	dir := verifiers.NewDirectory()
	require.NoError(t, dir.Upsert(verifiers.Verifier{ID: verifierID, Name: "mail", Addresses: []string{library.AddressFromPubKey(key.PubKey())}}))
	store := replay.NewStore()
	registry := guardians.NewRegistry(&attestation.Verifier{Directory: dir, ChainID: chain, Validity: time.Hour}, store)
	f := &fixture{t: t, key: key, now: time.Unix(1700000000, 0), conductor: New(registry, store, dir)}
	registry.SetClock(func() time.Time { return f.now })
	return f
}

func email(name string) identity.Key {
	return identity.Key{Type: identity.Email, IdentifierHash: identity.HashIdentifier(identity.Email, name+"@example.com"), VerifierID: verifierID}
}

func (f *fixture) sign(k identity.Key, op attestation.Operation) attestation.Approval {
	f.salt++
	d := attestation.NewDocument(k.Type, k.IdentifierHash, f.now.Unix(), fmt.Sprintf("salt-%d", f.salt), op, chain)
	a, err := attestation.Attest(d, k.VerifierID, f.key)
	require.NoError(f.t, err)
	return a
}

func (f *fixture) event(kind int, holder library.HolderID, req interface{}, sk string) nostr.Event {
	e, err := actors.RequestEvent(kind, holder, req, sk)
	require.NoError(f.t, err)
	return e
}

func TestHandleEvents(t *testing.T) {
	f := newFixture(t)
	owner, stranger := nostr.GeneratePrivateKey(), nostr.GeneratePrivateKey()
	ownerPub, err := nostr.GetPublicKey(owner)
	require.NoError(t, err)
	strangerPub, err := nostr.GetPublicKey(stranger)
	require.NoError(t, err)
	alice, bob := email("alice"), email("bob")

	create := f.event(actors.KindCreateHolder, "", guardians.CreateHolderRequest{Guardian: f.sign(alice, attestation.CreateHolder)}, owner)
	h, err := f.conductor.HandleEvent(create)
	require.NoError(t, err)
	assert.Equal(t, []library.Account{ownerPub}, h.Managers)

	_, err = f.conductor.HandleEvent(create)
	assert.Error(t, err, "events are handled once")

	add := guardians.AddGuardianRequest{Guardian: f.sign(bob, attestation.AddGuardian), Approvals: []attestation.Approval{f.sign(alice, attestation.AddGuardian)}}
	_, err = f.conductor.HandleEvent(f.event(actors.KindAddGuardian, h.ID, add, stranger))
	assert.True(t, errors.Is(err, ErrNotManager), "got %v", err)

	_, err = f.conductor.HandleEvent(f.event(actors.KindAddGuardian, library.Sha256Sum("other"), guardians.AddGuardianRequest{HolderID: h.ID}, owner))
	assert.True(t, errors.Is(err, ErrInvalidEvent))

	h, err = f.conductor.HandleEvent(f.event(actors.KindAddGuardian, h.ID, add, owner))
	require.NoError(t, err)
	assert.Equal(t, []identity.Key{alice, bob}, h.Keys())

	recovery := guardians.SocialRecoveryRequest{
		IdentifierHash: alice.IdentifierHash,
		VerifierID:     alice.VerifierID,
		NewManager:     strangerPub,
		Approvals:      []attestation.Approval{f.sign(alice, attestation.SocialRecovery), f.sign(bob, attestation.SocialRecovery)},
	}
	h, err = f.conductor.HandleEvent(f.event(actors.KindSocialRecovery, "", recovery, stranger))
	require.NoError(t, err)
	assert.Equal(t, []library.Account{ownerPub, strangerPub}, h.Managers)

	state := f.conductor.State()
	assert.Len(t, state.Holders, 1)
	assert.Len(t, state.Verifiers, 1)
	assert.NotEmpty(t, state.Replay)
}

func TestRejectsBadEvents(t *testing.T) {
	f := newFixture(t)
	sk := nostr.GeneratePrivateKey()

	tampered := f.event(actors.KindCreateHolder, "", guardians.CreateHolderRequest{}, sk)
	tampered.Content = `{"manager":"someone else"}`
	_, err := f.conductor.HandleEvent(tampered)
	assert.True(t, errors.Is(err, ErrInvalidEvent))

	_, err = f.conductor.HandleEvent(f.event(1, "", "hello", sk))
	assert.True(t, errors.Is(err, ErrUnknownKind))

	garbage, err := actors.RequestEvent(actors.KindRemoveGuardian, "", "not an object", sk)
	require.NoError(t, err)
	_, err = f.conductor.HandleEvent(garbage)
	assert.True(t, errors.Is(err, ErrInvalidEvent))

	_, err = f.conductor.HandleEvent(f.event(actors.KindRemoveGuardian, "", guardians.RemoveGuardianRequest{HolderID: library.Sha256Sum("missing"), Guardian: email("alice")}, sk))
	assert.True(t, errors.Is(err, guardians.ErrHolderNotFound))
}

func TestRejectsForgedIDs(t *testing.T) {
	f := newFixture(t)
	create := f.event(actors.KindCreateHolder, "", guardians.CreateHolderRequest{Guardian: f.sign(email("alice"), attestation.CreateHolder)}, nostr.GeneratePrivateKey())
	_, err := f.conductor.HandleEvent(create)
	require.NoError(t, err)

	resent := create
	resent.ID = library.Sha256Sum("another id")
	_, err = f.conductor.HandleEvent(resent)
	assert.True(t, errors.Is(err, ErrInvalidEvent), "got %v", err)
	assert.Len(t, f.conductor.State().Holders, 1)
}

func TestHandledEventsSurviveRestart(t *testing.T) {
	f := newFixture(t)
	sk := nostr.GeneratePrivateKey()
	create := f.event(actors.KindCreateHolder, "", guardians.CreateHolderRequest{Guardian: f.sign(email("alice"), attestation.CreateHolder)}, sk)
	_, err := f.conductor.HandleEvent(create)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.conductor.Save(&buf))
	restarted := newFixture(t)
	require.NoError(t, restarted.conductor.Restore(&buf))
	_, err = restarted.conductor.HandleEvent(create)
	assert.Error(t, err)
	assert.Empty(t, restarted.conductor.State().Holders)
}

func TestCheckOperationDetailsOption(t *testing.T) {
	f := newFixture(t)
	f.conductor.CheckOperationDetails = true
	create := guardians.CreateHolderRequest{Guardian: f.sign(email("carol"), attestation.CreateHolder)}
	h, err := f.conductor.HandleEvent(f.event(actors.KindCreateHolder, "", create, nostr.GeneratePrivateKey()))
	require.NoError(t, err)
	assert.True(t, h.CheckOperationDetails)
}
