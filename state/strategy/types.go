package strategy

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrEvaluation is wrapped by every failure to evaluate a tree.
	ErrEvaluation = errors.New("strategy: evaluation failed")
	// ErrDecode is wrapped by every failure to decode or validate a tree.
	ErrDecode = errors.New("strategy: malformed tree")
)

// MaxDepth bounds nesting so that a stored policy can not blow the stack.
const MaxDepth = 32

// Kind selects the operator of a Node. The values are part of the binary
// encoding.
type Kind uint8

const (
	And Kind = iota + 1
	Or
	Not
	IfElse
	LessThan
	NotLessThan
	LargerThan
	NotLargerThan
	Equal
	NotEqual
	RatioByTenThousand
)

var kindNames = map[Kind]string{
	And:                "And",
	Or:                 "Or",
	Not:                "Not",
	IfElse:             "IfElse",
	LessThan:           "LessThan",
	NotLessThan:        "NotLessThan",
	LargerThan:         "LargerThan",
	NotLargerThan:      "NotLargerThan",
	Equal:              "Equal",
	NotEqual:           "NotEqual",
	RatioByTenThousand: "RatioByTenThousand",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

func (k Kind) arity() int {
	switch k {
	case Not:
		return 1
	case IfElse:
		return 3
	case And, Or, LessThan, NotLessThan, LargerThan, NotLargerThan, Equal, NotEqual, RatioByTenThousand:
		return 2
	}
	return -1
}

func (k Kind) MarshalText() ([]byte, error) {
	n, ok := kindNames[k]
	if !ok {
		return nil, fmt.Errorf("%w: unknown kind %d", ErrDecode, k)
	}
	return []byte(n), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	for kind, n := range kindNames {
		if n == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("%w: unknown kind %q", ErrDecode, b)
}

// OperandType tags the variant held by an Operand.
type OperandType uint8

const (
	LiteralOperand OperandType = iota + 1
	VariableOperand
	NestedOperand
)

// Operand is one of a literal, a named variable, or a nested Node.
type Operand struct {
	Type     OperandType `json:"type"`
	Literal  int64       `json:"literal,omitempty"`
	Variable string      `json:"variable,omitempty"`
	Nested   *Node       `json:"nested,omitempty"`
}

// Node is an operator applied to an ordered list of operands.
type Node struct {
	Kind     Kind      `json:"kind"`
	Operands []Operand `json:"operands"`
}

// Lit is an integer literal operand.
func Lit(v int64) Operand {
	return Operand{Type: LiteralOperand, Literal: v}
}

// Var names a variable bound at evaluation time.
func Var(name string) Operand {
	return Operand{Type: VariableOperand, Variable: name}
}

// Sub nests n as an operand.
func Sub(n Node) Operand {
	return Operand{Type: NestedOperand, Nested: &n}
}

// NewAnd is true when both a and b are.
func NewAnd(a, b Node) Node {
	return Node{Kind: And, Operands: []Operand{Sub(a), Sub(b)}}
}

// NewOr is true when either a or b is.
func NewOr(a, b Node) Node {
	return Node{Kind: Or, Operands: []Operand{Sub(a), Sub(b)}}
}

// NewNot negates a.
func NewNot(a Node) Node {
	return Node{Kind: Not, Operands: []Operand{Sub(a)}}
}

// NewIfElse yields then when condition holds, otherwise the last branch.
func NewIfElse(condition, then, otherwise Node) Node {
	return Node{Kind: IfElse, Operands: []Operand{Sub(condition), Sub(then), Sub(otherwise)}}
}

// Compare builds a binary comparison (or the ratio calculation) of a and b.
func Compare(kind Kind, a, b Operand) Node {
	return Node{Kind: kind, Operands: []Operand{a, b}}
}

// Ratio yields a*b/10000, truncated toward zero.
func Ratio(a, b Operand) Node {
	return Compare(RatioByTenThousand, a, b)
}

// Validate checks arity, operand tags and depth without evaluating.
func (n Node) Validate() error {
	return n.validate(1)
}

func (n Node) validate(depth int) error {
	if depth > MaxDepth {
		return fmt.Errorf("%w: nesting deeper than %d", ErrDecode, MaxDepth)
	}
	want := n.Kind.arity()
	if want < 0 {
		return fmt.Errorf("%w: unknown kind %d", ErrDecode, n.Kind)
	}
	if len(n.Operands) != want {
		return fmt.Errorf("%w: %s takes %d operands, got %d", ErrDecode, n.Kind, want, len(n.Operands))
	}
	for i, o := range n.Operands {
		switch o.Type {
		case LiteralOperand:
		case VariableOperand:
			if o.Variable == "" {
				return fmt.Errorf("%w: %s operand %d has an empty variable name", ErrDecode, n.Kind, i)
			}
		case NestedOperand:
			if o.Nested == nil {
				return fmt.Errorf("%w: %s operand %d is an empty nested node", ErrDecode, n.Kind, i)
			}
			if err := o.Nested.validate(depth + 1); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: %s operand %d has unknown type %d", ErrDecode, n.Kind, i, o.Type)
		}
	}
	return nil
}

func (o Operand) String() string {
	switch o.Type {
	case LiteralOperand:
		return strconv.FormatInt(o.Literal, 10)
	case VariableOperand:
		return "$" + o.Variable
	case NestedOperand:
		if o.Nested != nil {
			return o.Nested.String()
		}
	}
	return "?"
}

func (n Node) String() string {
	parts := make([]string, len(n.Operands))
	for i, o := range n.Operands {
		parts[i] = o.String()
	}
	return n.Kind.String() + "(" + strings.Join(parts, ", ") + ")"
}
