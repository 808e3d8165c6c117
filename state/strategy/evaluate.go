package strategy

import (
	"fmt"
	"math/big"
	"strconv"
)

// Variables binds variable names to values for one evaluation.
type Variables map[string]int64

// Value is the result of evaluating a Node: either an integer or a boolean.
type Value struct {
	isBool bool
	b      bool
	i      int64
}

func Bool(b bool) Value {
	return Value{isBool: true, b: b}
}

func Int(i int64) Value {
	return Value{i: i}
}

func (v Value) IsBool() bool {
	return v.isBool
}

func (v Value) AsBool() (bool, error) {
	if !v.isBool {
		return false, fmt.Errorf("%w: expected a boolean, got %d", ErrEvaluation, v.i)
	}
	return v.b, nil
}

func (v Value) AsInt() (int64, error) {
	if v.isBool {
		return 0, fmt.Errorf("%w: expected an integer, got %t", ErrEvaluation, v.b)
	}
	return v.i, nil
}

func (v Value) String() string {
	if v.isBool {
		return strconv.FormatBool(v.b)
	}
	return strconv.FormatInt(v.i, 10)
}

// Evaluate interprets n against vars. Both sides of And and Or are always
// evaluated, IfElse evaluates its condition and exactly one branch.
func Evaluate(n Node, vars Variables) (Value, error) {
	if err := n.Validate(); err != nil {
		return Value{}, fmt.Errorf("%w: %s", ErrEvaluation, err.Error())
	}
	return evaluate(n, vars)
}

// EvaluateBool evaluates n and requires a boolean result.
func EvaluateBool(n Node, vars Variables) (bool, error) {
	v, err := Evaluate(n, vars)
	if err != nil {
		return false, err
	}
	return v.AsBool()
}

func evaluate(n Node, vars Variables) (Value, error) {
	switch n.Kind {
	case And, Or:
		a, err := boolOperand(n.Operands[0], vars)
		if err != nil {
			return Value{}, err
		}
		b, err := boolOperand(n.Operands[1], vars)
		if err != nil {
			return Value{}, err
		}
		if n.Kind == And {
			return Bool(a && b), nil
		}
		return Bool(a || b), nil
	case Not:
		a, err := boolOperand(n.Operands[0], vars)
		if err != nil {
			return Value{}, err
		}
		return Bool(!a), nil
	case IfElse:
		c, err := boolOperand(n.Operands[0], vars)
		if err != nil {
			return Value{}, err
		}
		if c {
			return operand(n.Operands[1], vars)
		}
		return operand(n.Operands[2], vars)
	case LessThan, NotLessThan, LargerThan, NotLargerThan, Equal, NotEqual:
		a, err := intOperand(n.Operands[0], vars)
		if err != nil {
			return Value{}, err
		}
		b, err := intOperand(n.Operands[1], vars)
		if err != nil {
			return Value{}, err
		}
		return Bool(compare(n.Kind, a, b)), nil
	case RatioByTenThousand:
		a, err := intOperand(n.Operands[0], vars)
		if err != nil {
			return Value{}, err
		}
		b, err := intOperand(n.Operands[1], vars)
		if err != nil {
			return Value{}, err
		}
		return ratio(a, b)
	}
	return Value{}, fmt.Errorf("%w: unknown kind %d", ErrEvaluation, n.Kind)
}

func compare(k Kind, a, b int64) bool {
	switch k {
	case LessThan:
		return a < b
	case NotLessThan:
		return a >= b
	case LargerThan:
		return a > b
	case NotLargerThan:
		return a <= b
	case Equal:
		return a == b
	default:
		return a != b
	}
}

var tenThousand = big.NewInt(10000)

// ratio computes one*two/10000 truncated toward zero, without overflowing
// the intermediate product.
func ratio(one, two int64) (Value, error) {
	p := new(big.Int).Mul(big.NewInt(one), big.NewInt(two))
	p.Quo(p, tenThousand)
	if !p.IsInt64() {
		return Value{}, fmt.Errorf("%w: ratio of %d and %d overflows", ErrEvaluation, one, two)
	}
	return Int(p.Int64()), nil
}

func operand(o Operand, vars Variables) (Value, error) {
	switch o.Type {
	case LiteralOperand:
		return Int(o.Literal), nil
	case VariableOperand:
		if v, ok := vars[o.Variable]; ok {
			return Int(v), nil
		}
		// an unbound name that reads as an integer is a literal
		i, err := strconv.ParseInt(o.Variable, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: unresolved variable %q", ErrEvaluation, o.Variable)
		}
		return Int(i), nil
	case NestedOperand:
		return evaluate(*o.Nested, vars)
	}
	return Value{}, fmt.Errorf("%w: unknown operand type %d", ErrEvaluation, o.Type)
}

func boolOperand(o Operand, vars Variables) (bool, error) {
	v, err := operand(o, vars)
	if err != nil {
		return false, err
	}
	return v.AsBool()
}

func intOperand(o Operand, vars Variables) (int64, error) {
	v, err := operand(o, vars)
	if err != nil {
		return 0, err
	}
	return v.AsInt()
}
