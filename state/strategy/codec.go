package strategy

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

// formatVersion prefixes every encoded tree.
const formatVersion byte = 1

// maxEncodedSize bounds the input accepted by Unmarshal.
const maxEncodedSize = 64 * 1024

// Marshal encodes n in the tagged binary form:
//
//	tree    = version node
//	node    = kind count(uvarint) operand*
//	operand = type length(uvarint) payload
//
// Literal payloads are zigzag varints, variable payloads are the UTF-8 name
// and nested payloads are an encoded node.
func Marshal(n Node) ([]byte, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	var b bytes.Buffer
	b.WriteByte(formatVersion)
	encodeNode(&b, n)
	return b.Bytes(), nil
}

func encodeNode(b *bytes.Buffer, n Node) {
	b.WriteByte(byte(n.Kind))
	writeUvarint(b, uint64(len(n.Operands)))
	for _, o := range n.Operands {
		b.WriteByte(byte(o.Type))
		var payload []byte
		switch o.Type {
		case LiteralOperand:
			payload = varint(o.Literal)
		case VariableOperand:
			payload = []byte(o.Variable)
		case NestedOperand:
			var nested bytes.Buffer
			encodeNode(&nested, *o.Nested)
			payload = nested.Bytes()
		}
		writeUvarint(b, uint64(len(payload)))
		b.Write(payload)
	}
}

func writeUvarint(b *bytes.Buffer, v uint64) {
	var buf [binary.MaxVarintLen64]byte
	b.Write(buf[:binary.PutUvarint(buf[:], v)])
}

func varint(v int64) []byte {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutVarint(buf[:], v)
	return append([]byte(nil), buf[:n]...)
}

// Unmarshal decodes a tree produced by Marshal. Trailing bytes, unknown tags
// and trees that fail Validate are rejected.
func Unmarshal(data []byte) (Node, error) {
	if len(data) == 0 {
		return Node{}, fmt.Errorf("%w: empty input", ErrDecode)
	}
	if len(data) > maxEncodedSize {
		return Node{}, fmt.Errorf("%w: %d bytes exceeds %d", ErrDecode, len(data), maxEncodedSize)
	}
	if data[0] != formatVersion {
		return Node{}, fmt.Errorf("%w: unsupported version %d", ErrDecode, data[0])
	}
	n, rest, err := decodeNode(data[1:], 1)
	if err != nil {
		return Node{}, err
	}
	if len(rest) != 0 {
		return Node{}, fmt.Errorf("%w: %d trailing bytes", ErrDecode, len(rest))
	}
	if err = n.Validate(); err != nil {
		return Node{}, err
	}
	return n, nil
}

func decodeNode(data []byte, depth int) (Node, []byte, error) {
	if depth > MaxDepth {
		return Node{}, nil, fmt.Errorf("%w: nesting deeper than %d", ErrDecode, MaxDepth)
	}
	if len(data) < 1 {
		return Node{}, nil, fmt.Errorf("%w: truncated node", ErrDecode)
	}
	n := Node{Kind: Kind(data[0])}
	if n.Kind.arity() < 0 {
		return Node{}, nil, fmt.Errorf("%w: unknown kind %d", ErrDecode, data[0])
	}
	count, read := binary.Uvarint(data[1:])
	if read <= 0 {
		return Node{}, nil, fmt.Errorf("%w: bad operand count", ErrDecode)
	}
	if count != uint64(n.Kind.arity()) {
		return Node{}, nil, fmt.Errorf("%w: %s takes %d operands, got %d", ErrDecode, n.Kind, n.Kind.arity(), count)
	}
	data = data[1+read:]
	n.Operands = make([]Operand, 0, count)
	for i := uint64(0); i < count; i++ {
		if len(data) < 1 {
			return Node{}, nil, fmt.Errorf("%w: truncated operand", ErrDecode)
		}
		typ := OperandType(data[0])
		length, read := binary.Uvarint(data[1:])
		if read <= 0 || length > uint64(len(data)-1-read) {
			return Node{}, nil, fmt.Errorf("%w: bad operand length", ErrDecode)
		}
		payload := data[1+read : 1+read+int(length)]
		data = data[1+read+int(length):]
		var o Operand
		switch typ {
		case LiteralOperand:
			v, read := binary.Varint(payload)
			if read <= 0 || read != len(payload) {
				return Node{}, nil, fmt.Errorf("%w: bad literal", ErrDecode)
			}
			o = Lit(v)
		case VariableOperand:
			if len(payload) == 0 || !utf8.Valid(payload) {
				return Node{}, nil, fmt.Errorf("%w: bad variable name", ErrDecode)
			}
			o = Var(string(payload))
		case NestedOperand:
			nested, rest, err := decodeNode(payload, depth+1)
			if err != nil {
				return Node{}, nil, err
			}
			if len(rest) != 0 {
				return Node{}, nil, fmt.Errorf("%w: nested node has %d trailing bytes", ErrDecode, len(rest))
			}
			o = Sub(nested)
		default:
			return Node{}, nil, fmt.Errorf("%w: unknown operand type %d", ErrDecode, typ)
		}
		n.Operands = append(n.Operands, o)
	}
	return n, data, nil
}
