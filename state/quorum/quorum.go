package quorum

import (
	"fmt"
	"time"

	"holderguard/engine/library"
	"holderguard/state/attestation"
	"holderguard/state/identity"
	"holderguard/state/strategy"
)

// Request describes one mutating request that needs guardian approval.
type Request struct {
	Operation attestation.Operation
	// Guardians is the holder's current guardian set.
	Guardians []identity.Key
	// Excluded keys never count as approvers and are not part of the
	// guardian count, e.g. the guardian being removed.
	Excluded []identity.Key
	// Policy is the holder's configured policy, nil for the default.
	Policy                  *strategy.Node
	CheckDetails            bool
	DetailsHash             library.Sha256
	Accelerated             bool
	RequireExistingApprover bool
	Now                     time.Time
}

// Tally is the outcome of counting the approvals of one request.
type Tally struct {
	Submitted int
	// Considered approvals survived deduplication, exclusion and the
	// existing guardian check.
	Considered    int
	Approved      int64
	GuardianCount int64
	Passed        bool
	// Documents are the hashes of the verification documents that counted.
	// They are consumed when the request commits.
	Documents []library.Sha256
}

// AllInvalid reports whether approvals were considered but none verified.
func (t Tally) AllInvalid() bool {
	return t.Considered > 0 && t.Approved == 0
}

func (t Tally) String() string {
	return fmt.Sprintf("%d of %d guardians approved (%d submitted, %d considered)", t.Approved, t.GuardianCount, t.Submitted, t.Considered)
}

// Evaluator counts verified approvals and asks the policy whether they are
// enough.
type Evaluator struct {
	verifier *attestation.Verifier
}

func NewEvaluator(v *attestation.Verifier) *Evaluator {
	return &Evaluator{verifier: v}
}

// Authorize tallies approvals for req. The returned error is only ever a
// policy evaluation failure; an unsatisfied quorum is reported through
// Tally.Passed.
func (e *Evaluator) Authorize(req Request, approvals []attestation.Approval) (Tally, error) {
	t := Tally{Submitted: len(approvals)}
	excluded := keySet(req.Excluded)
	existing := keySet(req.Guardians)
	for k := range existing {
		if !excluded[k] {
			t.GuardianCount++
		}
	}

	check := attestation.Check{
		Operation:    req.Operation,
		Now:          req.Now,
		CheckDetails: req.CheckDetails,
		DetailsHash:  req.DetailsHash,
		Accelerated:  req.Accelerated,
	}
	seen := make(map[identity.Key]bool)
	for _, a := range approvals {
		k := a.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		if excluded[k] {
			library.LogCLI(fmt.Sprintf("%s: ignoring approval from excluded guardian %s", req.Operation, k), 3)
			continue
		}
		if req.RequireExistingApprover && !existing[k] {
			library.LogCLI(fmt.Sprintf("%s: ignoring approval from %s, not a guardian", req.Operation, k), 3)
			continue
		}
		t.Considered++
		if e.verifier.Verify(a, check) {
			t.Approved++
			t.Documents = append(t.Documents, a.DocumentHash())
		}
	}

	if t.Approved == 0 {
		library.LogCLI(fmt.Sprintf("%s: quorum failed, %s", req.Operation, t), 4)
		return t, nil
	}
	ok, err := strategy.Satisfied(req.Policy, t.GuardianCount, t.Approved)
	if err != nil {
		return t, err
	}
	t.Passed = ok
	library.LogCLI(fmt.Sprintf("%s: quorum passed=%v, %s", req.Operation, ok, t), 4)
	return t, nil
}

func keySet(keys []identity.Key) map[identity.Key]bool {
	m := make(map[identity.Key]bool, len(keys))
	for _, k := range keys {
		m[k] = true
	}
	return m
}
