package guardians

import (
	"fmt"
	"time"

	"github.com/sasha-s/go-deadlock"
	"golang.org/x/exp/slices"
	"holderguard/engine/library"
	"holderguard/state/attestation"
	"holderguard/state/identity"
	"holderguard/state/quorum"
	"holderguard/state/replay"
	"holderguard/state/strategy"
)

// Registry owns every holder and the login index. Operations are applied one
// at a time and either commit completely or leave no trace.
type Registry struct {
	holders map[library.HolderID]Holder
	// login maps identifierHash -> verifierID -> holder for login guardians
	login    map[library.Sha256]map[library.Sha256]library.HolderID
	verifier *attestation.Verifier
	quorum   *quorum.Evaluator
	replay   *replay.Store
	clock    func() time.Time
	mutex    *deadlock.Mutex
}

// NewRegistry wires the verifier to the replay store so that documents used
// by a committed request can not authorize another one.
func NewRegistry(v *attestation.Verifier, consumed *replay.Store) *Registry {
	if consumed == nil {
		consumed = replay.NewStore()
	}
	v.Consumed = consumed
	return &Registry{
		holders:  make(map[library.HolderID]Holder),
		login:    make(map[library.Sha256]map[library.Sha256]library.HolderID),
		verifier: v,
		quorum:   quorum.NewEvaluator(v),
		replay:   consumed,
		clock:    time.Now,
		mutex:    &deadlock.Mutex{},
	}
}

func (r *Registry) SetClock(clock func() time.Time) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.clock = clock
}

func (r *Registry) Get(id library.HolderID) (Holder, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	h, ok := r.holders[id]
	return h.clone(), ok
}

// Lookup resolves a holder through one of its login guardians.
func (r *Registry) Lookup(identifierHash, verifierID library.Sha256) (Holder, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	id, ok := r.loginOwner(identifierHash, verifierID)
	if !ok {
		return Holder{}, false
	}
	return r.holders[id].clone(), true
}

func (r *Registry) GetMap() Mapped {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	m := make(Mapped, len(r.holders))
	for id, h := range r.holders {
		m[id] = h.clone()
	}
	return m
}

// Prune drops consumed documents that are too old to pass the validity
// window again.
func (r *Registry) Prune() int {
	r.mutex.Lock()
	validity := r.verifier.Validity
	if validity <= 0 {
		validity = attestation.DefaultValidity
	}
	cutoff := r.clock().Add(-2 * validity)
	r.mutex.Unlock()
	return r.replay.Prune(cutoff)
}

func (r *Registry) CreateHolder(req CreateHolderRequest) (Holder, error) {
	op := attestation.CreateHolder
	key := req.Guardian.Key()
	if err := key.Validate(); err != nil {
		return Holder{}, fail(op, "", ErrInvalidInput, "%s", err.Error())
	}
	if !library.IsAccount(req.Manager) {
		return Holder{}, fail(op, "", ErrInvalidInput, "invalid manager %q", req.Manager)
	}
	if req.Policy != nil {
		if err := strategy.CheckPolicy(*req.Policy, MaxGuardians); err != nil {
			return Holder{}, fail(op, "", ErrPolicyEvaluation, "%s", err.Error())
		}
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	now := r.clock()
	d, err := r.verifier.Inspect(req.Guardian, attestation.Check{Operation: op, Now: now})
	if err != nil {
		return Holder{}, fail(op, "", ErrAttestationInvalid, "%s", err.Error())
	}
	if owner, ok := r.loginOwner(key.IdentifierHash, key.VerifierID); ok {
		return Holder{}, fail(op, "", ErrGuardianAlreadyExists, "%s is the login guardian of %s", key, owner)
	}
	id := req.Guardian.DocumentHash()
	if _, exists := r.holders[id]; exists {
		return Holder{}, fail(op, id, ErrInvalidInput, "holder already exists")
	}
	h := Holder{
		ID: id,
		Guardians: []Guardian{{
			Type:            key.Type,
			IdentifierHash:  key.IdentifierHash,
			VerifierID:      key.VerifierID,
			Salt:            d.Salt,
			IsLoginGuardian: true,
			ZkCommitment:    req.ZkCommitment,
		}},
		CheckOperationDetails: req.CheckOperationDetails,
		Managers:              []library.Account{req.Manager},
		CreatedAt:             now.Unix(),
	}
	if req.Policy != nil {
		p := *req.Policy
		h.Policy = &p
	}
	r.commit(op, nil, h, []library.Sha256{id})
	return h.clone(), nil
}

// AddGuardian appends a guardian after it proved control of its identity and
// the current guardians approved. Adding an existing guardian is a no-op.
func (r *Registry) AddGuardian(req AddGuardianRequest) (Holder, error) {
	op := attestation.AddGuardian
	key := req.Guardian.Key()
	if err := key.Validate(); err != nil {
		return Holder{}, fail(op, req.HolderID, ErrInvalidInput, "%s", err.Error())
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	h, ok := r.holders[req.HolderID]
	if !ok {
		return Holder{}, fail(op, req.HolderID, ErrHolderNotFound, "")
	}
	if h.indexOf(key) >= 0 {
		library.LogCLI(fmt.Sprintf("%s: %s is already a guardian of %s", op, key, h.ID), 4)
		return h.clone(), nil
	}
	if len(h.Guardians) >= MaxGuardians {
		return Holder{}, fail(op, h.ID, ErrInvalidInput, "holder has %d guardians", len(h.Guardians))
	}
	now := r.clock()
	details := GuardianDetails(h.ID, key)
	d, err := r.verifier.Inspect(req.Guardian, attestation.Check{
		Operation:    op,
		Now:          now,
		CheckDetails: h.CheckOperationDetails,
		DetailsHash:  details,
	})
	if err != nil {
		return Holder{}, fail(op, h.ID, ErrAttestationInvalid, "new guardian %s: %s", key, err.Error())
	}
	t, err := r.authorize(op, h, []identity.Key{key}, details, false, req.Approvals, now)
	if err != nil {
		return Holder{}, err
	}
	next := h.clone()
	next.Guardians = append(next.Guardians, Guardian{
		Type:           key.Type,
		IdentifierHash: key.IdentifierHash,
		VerifierID:     key.VerifierID,
		Salt:           d.Salt,
		ZkCommitment:   req.ZkCommitment,
	})
	r.commit(op, &h, next, append(t.Documents, req.Guardian.DocumentHash()))
	return next.clone(), nil
}

func (r *Registry) RemoveGuardian(req RemoveGuardianRequest) (Holder, error) {
	op := attestation.RemoveGuardian
	if err := req.Guardian.Validate(); err != nil {
		return Holder{}, fail(op, req.HolderID, ErrInvalidInput, "%s", err.Error())
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	h, ok := r.holders[req.HolderID]
	if !ok {
		return Holder{}, fail(op, req.HolderID, ErrHolderNotFound, "")
	}
	i := h.indexOf(req.Guardian)
	if i < 0 {
		return Holder{}, fail(op, h.ID, ErrGuardianNotFound, "%s", req.Guardian.String())
	}
	if h.Guardians[i].IsLoginGuardian && h.loginGuardians() == 1 {
		library.LogCLI(fmt.Sprintf("%s: refusing to remove the last login guardian of %s", op, h.ID), 2)
		return Holder{}, fail(op, h.ID, ErrLastLoginGuardian, "unset login for %s first", req.Guardian)
	}
	now := r.clock()
	t, err := r.authorize(op, h, []identity.Key{req.Guardian}, GuardianDetails(h.ID, req.Guardian), false, req.Approvals, now)
	if err != nil {
		return Holder{}, err
	}
	next := h.clone()
	next.Guardians = slices.Delete(next.Guardians, i, i+1)
	r.commit(op, &h, next, t.Documents)
	return next.clone(), nil
}

// UpdateGuardian moves a guardian to another verifier, keeping its position
// and login status.
func (r *Registry) UpdateGuardian(req UpdateGuardianRequest) (Holder, error) {
	op := attestation.UpdateGuardian
	for _, k := range []identity.Key{req.Previous, req.Next} {
		if err := k.Validate(); err != nil {
			return Holder{}, fail(op, req.HolderID, ErrInvalidInput, "%s", err.Error())
		}
	}
	if !identity.SameIdentity(req.Previous, req.Next) {
		return Holder{}, fail(op, req.HolderID, ErrInconsistentGuardianUpdate, "%s -> %s", req.Previous, req.Next)
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	h, ok := r.holders[req.HolderID]
	if !ok {
		return Holder{}, fail(op, req.HolderID, ErrHolderNotFound, "")
	}
	i := h.indexOf(req.Previous)
	if i < 0 {
		return Holder{}, fail(op, h.ID, ErrGuardianNotFound, "%s", req.Previous.String())
	}
	if h.indexOf(req.Next) >= 0 {
		return Holder{}, fail(op, h.ID, ErrGuardianAlreadyExists, "%s", req.Next.String())
	}
	if h.Guardians[i].IsLoginGuardian {
		if owner, ok := r.loginOwner(req.Next.IdentifierHash, req.Next.VerifierID); ok && owner != h.ID {
			return Holder{}, fail(op, h.ID, ErrGuardianAlreadyExists, "%s is the login guardian of %s", req.Next, owner)
		}
	}
	now := r.clock()
	t, err := r.authorize(op, h, []identity.Key{req.Previous}, UpdateDetails(h.ID, req.Previous, req.Next), false, req.Approvals, now)
	if err != nil {
		return Holder{}, err
	}
	next := h.clone()
	next.Guardians[i].VerifierID = req.Next.VerifierID
	r.commit(op, &h, next, t.Documents)
	return next.clone(), nil
}

// SetGuardianForLogin makes an existing guardian a login guardian. A login
// identity owned by another holder is never taken over, the request fails
// with ErrGuardianAlreadyExists.
func (r *Registry) SetGuardianForLogin(req LoginGuardianRequest) (Holder, error) {
	op := attestation.SetLoginGuardian
	if err := req.Guardian.Validate(); err != nil {
		return Holder{}, fail(op, req.HolderID, ErrInvalidInput, "%s", err.Error())
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	h, ok := r.holders[req.HolderID]
	if !ok {
		return Holder{}, fail(op, req.HolderID, ErrHolderNotFound, "")
	}
	i := h.indexOf(req.Guardian)
	if i < 0 {
		return Holder{}, fail(op, h.ID, ErrGuardianNotFound, "%s", req.Guardian.String())
	}
	if h.Guardians[i].IsLoginGuardian {
		return h.clone(), nil
	}
	if owner, ok := r.loginOwner(req.Guardian.IdentifierHash, req.Guardian.VerifierID); ok && owner != h.ID {
		return Holder{}, fail(op, h.ID, ErrGuardianAlreadyExists, "%s is the login guardian of %s", req.Guardian, owner)
	}
	now := r.clock()
	t, err := r.authorize(op, h, []identity.Key{req.Guardian}, GuardianDetails(h.ID, req.Guardian), false, req.Approvals, now)
	if err != nil {
		return Holder{}, err
	}
	next := h.clone()
	next.Guardians[i].IsLoginGuardian = true
	r.commit(op, &h, next, t.Documents)
	return next.clone(), nil
}

// UnsetGuardianForLogin clears login status. A holder always keeps at least
// one login guardian.
func (r *Registry) UnsetGuardianForLogin(req LoginGuardianRequest) (Holder, error) {
	op := attestation.UnsetLoginGuardian
	if err := req.Guardian.Validate(); err != nil {
		return Holder{}, fail(op, req.HolderID, ErrInvalidInput, "%s", err.Error())
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	h, ok := r.holders[req.HolderID]
	if !ok {
		return Holder{}, fail(op, req.HolderID, ErrHolderNotFound, "")
	}
	i := h.indexOf(req.Guardian)
	if i < 0 || !h.Guardians[i].IsLoginGuardian {
		return h.clone(), nil
	}
	if h.loginGuardians() == 1 {
		library.LogCLI(fmt.Sprintf("%s: refusing to unset the last login guardian of %s", op, h.ID), 2)
		return Holder{}, fail(op, h.ID, ErrLastLoginGuardian, "%s", req.Guardian.String())
	}
	now := r.clock()
	t, err := r.authorize(op, h, []identity.Key{req.Guardian}, GuardianDetails(h.ID, req.Guardian), false, req.Approvals, now)
	if err != nil {
		return Holder{}, err
	}
	next := h.clone()
	next.Guardians[i].IsLoginGuardian = false
	r.commit(op, &h, next, t.Documents)
	return next.clone(), nil
}

// SocialRecovery attaches a new manager to the holder found through a login
// guardian. The guardian list is left untouched.
func (r *Registry) SocialRecovery(req SocialRecoveryRequest) (Holder, error) {
	op := attestation.SocialRecovery
	if !library.IsSha256(req.IdentifierHash) || !library.IsSha256(req.VerifierID) {
		return Holder{}, fail(op, "", ErrInvalidInput, "invalid login guardian")
	}
	if !library.IsAccount(req.NewManager) {
		return Holder{}, fail(op, "", ErrInvalidInput, "invalid manager %q", req.NewManager)
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	id, ok := r.loginOwner(req.IdentifierHash, req.VerifierID)
	if !ok {
		return Holder{}, fail(op, "", ErrHolderNotFound, "no holder for login guardian %s", req.IdentifierHash)
	}
	h := r.holders[id]
	if h.IsManager(req.NewManager) {
		return h.clone(), nil
	}
	now := r.clock()
	t, err := r.authorize(op, h, nil, RecoveryDetails(h.ID, req.NewManager), req.Accelerated, req.Approvals, now)
	if err != nil {
		return Holder{}, err
	}
	next := h.clone()
	next.Managers = append(next.Managers, req.NewManager)
	r.commit(op, &h, next, t.Documents)
	return next.clone(), nil
}

// SetPolicy replaces the holder's policy, approved under the current one.
func (r *Registry) SetPolicy(req SetPolicyRequest) (Holder, error) {
	op := attestation.SetPolicy
	if req.Policy != nil {
		if err := strategy.CheckPolicy(*req.Policy, MaxGuardians); err != nil {
			return Holder{}, fail(op, req.HolderID, ErrPolicyEvaluation, "%s", err.Error())
		}
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	h, ok := r.holders[req.HolderID]
	if !ok {
		return Holder{}, fail(op, req.HolderID, ErrHolderNotFound, "")
	}
	details, err := PolicyDetails(h.ID, req.Policy)
	if err != nil {
		return Holder{}, fail(op, h.ID, ErrPolicyEvaluation, "%s", err.Error())
	}
	now := r.clock()
	t, err := r.authorize(op, h, nil, details, false, req.Approvals, now)
	if err != nil {
		return Holder{}, err
	}
	next := h.clone()
	next.Policy = nil
	if req.Policy != nil {
		p := *req.Policy
		next.Policy = &p
	}
	r.commit(op, &h, next, t.Documents)
	return next.clone(), nil
}

func (r *Registry) authorize(op attestation.Operation, h Holder, excluded []identity.Key, details library.Sha256, accelerated bool, approvals []attestation.Approval, now time.Time) (quorum.Tally, error) {
	if len(approvals) == 0 {
		return quorum.Tally{}, fail(op, h.ID, ErrInvalidInput, "no approvals")
	}
	t, err := r.quorum.Authorize(quorum.Request{
		Operation:               op,
		Guardians:               h.Keys(),
		Excluded:                excluded,
		Policy:                  h.Policy,
		CheckDetails:            h.CheckOperationDetails,
		DetailsHash:             details,
		Accelerated:             accelerated,
		RequireExistingApprover: true,
		Now:                     now,
	}, approvals)
	if err != nil {
		return t, fail(op, h.ID, ErrPolicyEvaluation, "%s", err.Error())
	}
	if !t.Passed {
		return t, &OperationError{Op: op, HolderID: h.ID, Err: &QuorumError{Tally: t}}
	}
	return t, nil
}

// commit swaps in the new holder state, moves login index entries and
// consumes the documents that authorized the change. Callers hold the mutex.
func (r *Registry) commit(op attestation.Operation, before *Holder, after Holder, documents []library.Sha256) {
	if before != nil {
		for _, g := range before.Guardians {
			if g.IsLoginGuardian {
				r.unindex(g, before.ID)
			}
		}
	}
	for _, g := range after.Guardians {
		if g.IsLoginGuardian {
			r.index(g, after.ID)
		}
	}
	r.holders[after.ID] = after
	r.replay.Consume(documents, op.String(), after.ID, r.clock())
	library.LogCLI(fmt.Sprintf("%s committed for holder %s: %d guardians, %d login", op, after.ID, len(after.Guardians), after.loginGuardians()), 4)
}

func (r *Registry) loginOwner(identifierHash, verifierID library.Sha256) (library.HolderID, bool) {
	id, ok := r.login[identifierHash][verifierID]
	return id, ok
}

func (r *Registry) index(g Guardian, id library.HolderID) {
	if _, ok := r.login[g.IdentifierHash]; !ok {
		r.login[g.IdentifierHash] = make(map[library.Sha256]library.HolderID)
	}
	r.login[g.IdentifierHash][g.VerifierID] = id
}

func (r *Registry) unindex(g Guardian, id library.HolderID) {
	if owner, ok := r.loginOwner(g.IdentifierHash, g.VerifierID); !ok || owner != id {
		return
	}
	delete(r.login[g.IdentifierHash], g.VerifierID)
	if len(r.login[g.IdentifierHash]) == 0 {
		delete(r.login, g.IdentifierHash)
	}
}
