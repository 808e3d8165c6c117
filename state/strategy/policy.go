package strategy

import (
	"fmt"
	"strconv"
)

// Variables bound by the quorum evaluator.
const (
	GuardianCount         = "guardianCount"
	GuardianApprovedCount = "guardianApprovedCount"
)

// DefaultRatio is the share of guardians, in ten thousandths, that must
// approve once a holder has more than DefaultUnanimityLimit guardians.
const (
	DefaultRatio          = 6000
	DefaultUnanimityLimit = 3
)

// Default returns the policy of holders that have not configured one:
// unanimity up to three guardians, otherwise at least
// RatioByTenThousand(guardianCount, 6000) approvals.
func Default() Node {
	return NewIfElse(
		Compare(NotLargerThan, Var(GuardianCount), Lit(DefaultUnanimityLimit)),
		Compare(NotLessThan, Var(GuardianApprovedCount), Var(GuardianCount)),
		Compare(NotLessThan, Var(GuardianApprovedCount), Sub(Ratio(Var(GuardianCount), Lit(DefaultRatio)))),
	)
}

// Threshold returns a policy that passes once n guardians have approved.
func Threshold(n int64) Node {
	return Compare(NotLessThan, Var(GuardianApprovedCount), Lit(n))
}

// Satisfied evaluates policy, or Default when policy is nil, for the given
// counts.
func Satisfied(policy *Node, guardianCount, approvedCount int64) (bool, error) {
	p := Default()
	if policy != nil {
		p = *policy
	}
	return EvaluateBool(p, Variables{
		GuardianCount:         guardianCount,
		GuardianApprovedCount: approvedCount,
	})
}

// CheckPolicy makes sure p is a usable quorum policy. It must be well formed,
// type check to a boolean using only the quorum variables, and evaluate for
// every guardianCount up to maxGuardians and every approval count up to it.
func CheckPolicy(p Node, maxGuardians int64) error {
	if err := p.Validate(); err != nil {
		return err
	}
	isBool, err := typeOf(p)
	if err != nil {
		return err
	}
	if !isBool {
		return fmt.Errorf("%w: policy %s does not yield a boolean", ErrEvaluation, p.Kind)
	}
	for count := int64(0); count <= maxGuardians; count++ {
		for approved := int64(0); approved <= count; approved++ {
			if _, err := Satisfied(&p, count, approved); err != nil {
				return fmt.Errorf("guardianCount=%d guardianApprovedCount=%d: %w", count, approved, err)
			}
		}
	}
	return nil
}

// typeOf reports whether n yields a boolean, checking every operand position
// without evaluating.
func typeOf(n Node) (bool, error) {
	switch n.Kind {
	case And, Or, Not:
		for _, o := range n.Operands {
			if err := expect(n.Kind, o, true); err != nil {
				return false, err
			}
		}
		return true, nil
	case IfElse:
		if err := expect(n.Kind, n.Operands[0], true); err != nil {
			return false, err
		}
		then, err := operandType(n.Operands[1])
		if err != nil {
			return false, err
		}
		otherwise, err := operandType(n.Operands[2])
		if err != nil {
			return false, err
		}
		if then != otherwise {
			return false, fmt.Errorf("%w: IfElse branches yield different types", ErrEvaluation)
		}
		return then, nil
	case LessThan, NotLessThan, LargerThan, NotLargerThan, Equal, NotEqual, RatioByTenThousand:
		for _, o := range n.Operands {
			if err := expect(n.Kind, o, false); err != nil {
				return false, err
			}
		}
		return n.Kind != RatioByTenThousand, nil
	}
	return false, fmt.Errorf("%w: unknown kind %d", ErrEvaluation, n.Kind)
}

func expect(k Kind, o Operand, wantBool bool) error {
	isBool, err := operandType(o)
	if err != nil {
		return err
	}
	if isBool != wantBool {
		return fmt.Errorf("%w: %s given operand %s of the wrong type", ErrEvaluation, k, o)
	}
	return nil
}

func operandType(o Operand) (bool, error) {
	switch o.Type {
	case LiteralOperand:
		return false, nil
	case VariableOperand:
		if o.Variable == GuardianCount || o.Variable == GuardianApprovedCount {
			return false, nil
		}
		if _, err := strconv.ParseInt(o.Variable, 10, 64); err != nil {
			return false, fmt.Errorf("%w: unknown variable %q", ErrEvaluation, o.Variable)
		}
		return false, nil
	case NestedOperand:
		return typeOf(*o.Nested)
	}
	return false, fmt.Errorf("%w: unknown operand type %d", ErrEvaluation, o.Type)
}
