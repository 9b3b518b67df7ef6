// Package expr implements the restricted formula evaluator used by ETL
// derived-field transformations. The grammar is deliberately tiny:
// arithmetic operators, parentheses, numeric literals, and field references.
// There are no function calls, no strings, and no side effects, so a formula
// can never execute arbitrary code.
package expr

import (
	"fmt"
	"math"
	"strconv"
)

// Node is an evaluatable expression node.
type Node interface {
	// Eval computes the node's value against a row of field values.
	Eval(row map[string]any) (float64, error)
}

// NumberNode is a numeric literal.
type NumberNode struct {
	Value float64
}

// Eval returns the literal value.
func (n *NumberNode) Eval(map[string]any) (float64, error) {
	return n.Value, nil
}

// FieldNode references a row field by name.
type FieldNode struct {
	Name string
}

// Eval resolves the field from the row and coerces it to a number.
func (n *FieldNode) Eval(row map[string]any) (float64, error) {
	v, ok := row[n.Name]
	if !ok {
		return 0, fmt.Errorf("unknown field %q", n.Name)
	}
	return toNumber(v)
}

// UnaryNode negates its operand.
type UnaryNode struct {
	Operand Node
}

// Eval returns the negated operand value.
func (n *UnaryNode) Eval(row map[string]any) (float64, error) {
	v, err := n.Operand.Eval(row)
	if err != nil {
		return 0, err
	}
	return -v, nil
}

// BinaryNode applies an arithmetic operator to two operands.
type BinaryNode struct {
	Op    TokenType
	Left  Node
	Right Node
}

// Eval computes the operator over both operand values.
func (n *BinaryNode) Eval(row map[string]any) (float64, error) {
	l, err := n.Left.Eval(row)
	if err != nil {
		return 0, err
	}
	r, err := n.Right.Eval(row)
	if err != nil {
		return 0, err
	}

	switch n.Op {
	case TOKEN_PLUS:
		return l + r, nil
	case TOKEN_MINUS:
		return l - r, nil
	case TOKEN_STAR:
		return l * r, nil
	case TOKEN_SLASH:
		if r == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return l / r, nil
	case TOKEN_PERCENT:
		if r == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return math.Mod(l, r), nil
	default:
		return 0, fmt.Errorf("unsupported operator")
	}
}

// toNumber coerces a field value to float64.
func toNumber(v any) (float64, error) {
	switch n := v.(type) {
	case nil:
		return 0, fmt.Errorf("field value is null")
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("field value %q is not numeric", n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("field value of type %T is not numeric", v)
	}
}
