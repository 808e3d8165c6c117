package guardians

import (
	"golang.org/x/exp/slices"
	"holderguard/engine/library"
	"holderguard/state/attestation"
	"holderguard/state/identity"
	"holderguard/state/strategy"
)

// MaxGuardians bounds the guardian list of a single holder.
const MaxGuardians = 64

type Guardian struct {
	Type            identity.Type  `json:"type"`
	IdentifierHash  library.Sha256 `json:"identifier_hash"`
	VerifierID      library.Sha256 `json:"verifier_id"`
	Salt            string         `json:"salt"`
	IsLoginGuardian bool           `json:"is_login_guardian"`
	// ZkCommitment is the circuit friendly hash used by zero knowledge
	// login proofs. It plays no part in guardian equality.
	ZkCommitment string `json:"zk_commitment,omitempty"`
}

func (g Guardian) Key() identity.Key {
	return identity.Key{Type: g.Type, IdentifierHash: g.IdentifierHash, VerifierID: g.VerifierID}
}

type Holder struct {
	ID        library.HolderID `json:"id"`
	Guardians []Guardian       `json:"guardians"`
	// Policy is nil while the holder uses the default policy.
	Policy                *strategy.Node    `json:"policy,omitempty"`
	CheckOperationDetails bool              `json:"check_operation_details"`
	Managers              []library.Account `json:"managers"`
	CreatedAt             int64             `json:"created_at"`
}

func (h Holder) clone() Holder {
	c := h
	c.Guardians = slices.Clone(h.Guardians)
	c.Managers = slices.Clone(h.Managers)
	if h.Policy != nil {
		p := *h.Policy
		c.Policy = &p
	}
	return c
}

// Keys returns the identity keys of the guardians in list order.
func (h Holder) Keys() []identity.Key {
	keys := make([]identity.Key, len(h.Guardians))
	for i, g := range h.Guardians {
		keys[i] = g.Key()
	}
	return keys
}

func (h Holder) indexOf(k identity.Key) int {
	for i, g := range h.Guardians {
		if g.Key() == k {
			return i
		}
	}
	return -1
}

func (h Holder) Guardian(k identity.Key) (Guardian, bool) {
	if i := h.indexOf(k); i >= 0 {
		return h.Guardians[i], true
	}
	return Guardian{}, false
}

func (h Holder) loginGuardians() int {
	var n int
	for _, g := range h.Guardians {
		if g.IsLoginGuardian {
			n++
		}
	}
	return n
}

func (h Holder) IsManager(a library.Account) bool {
	return slices.Contains(h.Managers, a)
}

type CreateHolderRequest struct {
	// Guardian is the first guardian's own attestation for CreateHolder.
	Guardian              attestation.Approval `json:"guardian"`
	ZkCommitment          string               `json:"zk_commitment,omitempty"`
	Manager               library.Account      `json:"manager"`
	Policy                *strategy.Node       `json:"policy,omitempty"`
	CheckOperationDetails bool                 `json:"check_operation_details"`
}

type AddGuardianRequest struct {
	HolderID library.HolderID `json:"holder_id"`
	// Guardian proves control of the identity being added.
	Guardian     attestation.Approval   `json:"guardian"`
	ZkCommitment string                 `json:"zk_commitment,omitempty"`
	Approvals    []attestation.Approval `json:"approvals"`
}

type RemoveGuardianRequest struct {
	HolderID  library.HolderID       `json:"holder_id"`
	Guardian  identity.Key           `json:"guardian"`
	Approvals []attestation.Approval `json:"approvals"`
}

type UpdateGuardianRequest struct {
	HolderID  library.HolderID       `json:"holder_id"`
	Previous  identity.Key           `json:"previous"`
	Next      identity.Key           `json:"next"`
	Approvals []attestation.Approval `json:"approvals"`
}

// LoginGuardianRequest is used to both set and unset login status.
type LoginGuardianRequest struct {
	HolderID  library.HolderID       `json:"holder_id"`
	Guardian  identity.Key           `json:"guardian"`
	Approvals []attestation.Approval `json:"approvals"`
}

type SocialRecoveryRequest struct {
	IdentifierHash library.Sha256         `json:"identifier_hash"`
	VerifierID     library.Sha256         `json:"verifier_id"`
	NewManager     library.Account        `json:"new_manager"`
	Accelerated    bool                   `json:"accelerated"`
	Approvals      []attestation.Approval `json:"approvals"`
}

type SetPolicyRequest struct {
	HolderID library.HolderID `json:"holder_id"`
	// Policy nil restores the default policy.
	Policy    *strategy.Node         `json:"policy,omitempty"`
	Approvals []attestation.Approval `json:"approvals"`
}

type Mapped map[library.HolderID]Holder
