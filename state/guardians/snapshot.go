package guardians

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"holderguard/engine/library"
	"holderguard/state/identity"
	"holderguard/state/strategy"
)

type snapshot struct {
	Holders []Holder `json:"holders"`
}

// Save writes every holder as JSON, ordered by holder ID. The login index is
// derived state and is rebuilt by Restore.
func (r *Registry) Save(w io.Writer) error {
	r.mutex.Lock()
	s := snapshot{Holders: make([]Holder, 0, len(r.holders))}
	for _, h := range r.holders {
		s.Holders = append(s.Holders, h.clone())
	}
	r.mutex.Unlock()
	sort.Slice(s.Holders, func(i, j int) bool { return s.Holders[i].ID < s.Holders[j].ID })
	return json.NewEncoder(w).Encode(s)
}

// Restore replaces the registry content with a snapshot written by Save. The
// registry is left unchanged if the snapshot breaks an invariant.
func (r *Registry) Restore(rd io.Reader) error {
	var s snapshot
	if err := json.NewDecoder(rd).Decode(&s); err != nil && err != io.EOF {
		return fmt.Errorf("restoring guardian registry: %w", err)
	}
	holders := make(map[library.HolderID]Holder, len(s.Holders))
	login := make(map[library.Sha256]map[library.Sha256]library.HolderID)
	for _, h := range s.Holders {
		if err := h.validate(); err != nil {
			return fmt.Errorf("restoring holder %s: %w", h.ID, err)
		}
		if _, ok := holders[h.ID]; ok {
			return fmt.Errorf("restoring holder %s: duplicate holder", h.ID)
		}
		for _, g := range h.Guardians {
			if !g.IsLoginGuardian {
				continue
			}
			if owner, ok := login[g.IdentifierHash][g.VerifierID]; ok {
				return fmt.Errorf("restoring holder %s: %w: %s is the login guardian of %s", h.ID, ErrGuardianAlreadyExists, g.Key(), owner)
			}
			if _, ok := login[g.IdentifierHash]; !ok {
				login[g.IdentifierHash] = make(map[library.Sha256]library.HolderID)
			}
			login[g.IdentifierHash][g.VerifierID] = h.ID
		}
		holders[h.ID] = h
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.holders = holders
	r.login = login
	library.LogCLI(fmt.Sprintf("restored %d holders", len(holders)), 4)
	return nil
}

// validate checks the invariants every stored holder satisfies.
func (h Holder) validate() error {
	if !library.IsSha256(h.ID) {
		return fmt.Errorf("%w: invalid holder id", ErrInvalidInput)
	}
	seen := make(map[identity.Key]bool)
	for _, g := range h.Guardians {
		k := g.Key()
		if err := k.Validate(); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
		}
		if seen[k] {
			return fmt.Errorf("%w: %s", ErrGuardianAlreadyExists, k)
		}
		seen[k] = true
	}
	if len(h.Guardians) > 0 && h.loginGuardians() == 0 {
		return ErrLastLoginGuardian
	}
	if h.Policy != nil {
		if err := strategy.CheckPolicy(*h.Policy, MaxGuardians); err != nil {
			return fmt.Errorf("%w: %s", ErrPolicyEvaluation, err.Error())
		}
	}
	return nil
}
