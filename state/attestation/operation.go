package attestation

import (
	"fmt"
	"strconv"
)

// Operation is the tag a verifier signs into a document to scope it to one
// kind of request. Ordinals are part of the document format.
type Operation int32

const (
	Unknown Operation = iota
	CreateHolder
	SocialRecovery
	AddGuardian
	RemoveGuardian
	UpdateGuardian
	SetLoginGuardian
	UnsetLoginGuardian
	SetPolicy
)

var operationNames = map[Operation]string{
	CreateHolder:       "CreateHolder",
	SocialRecovery:     "SocialRecovery",
	AddGuardian:        "AddGuardian",
	RemoveGuardian:     "RemoveGuardian",
	UpdateGuardian:     "UpdateGuardian",
	SetLoginGuardian:   "SetLoginGuardian",
	UnsetLoginGuardian: "UnsetLoginGuardian",
	SetPolicy:          "SetPolicy",
}

func (o Operation) String() string {
	if n, ok := operationNames[o]; ok {
		return n
	}
	return "Operation(" + strconv.Itoa(int(o)) + ")"
}

func (o Operation) Valid() bool {
	_, ok := operationNames[o]
	return ok
}

// RequiresReplayProtection is true for operations that only accept the fully
// qualified document format.
func (o Operation) RequiresReplayProtection() bool {
	switch o {
	case CreateHolder, SocialRecovery:
		return false
	}
	return true
}

// ParseOperation accepts either the name or the ordinal of an Operation.
func ParseOperation(s string) (Operation, error) {
	for o, n := range operationNames {
		if n == s {
			return o, nil
		}
	}
	i, err := strconv.ParseInt(s, 10, 32)
	if err != nil || !Operation(i).Valid() {
		return Unknown, fmt.Errorf("unknown operation %q", s)
	}
	return Operation(i), nil
}
