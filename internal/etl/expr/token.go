package expr

import "fmt"

// TokenType represents the type of a lexical token.
type TokenType int

// Token types. The evaluator accepts arithmetic and field references only:
// no calls, no strings, no side effects.
const (
	TOKEN_EOF TokenType = iota
	TOKEN_ILLEGAL

	TOKEN_IDENT  // field reference
	TOKEN_NUMBER // 123, 45.67

	TOKEN_PLUS    // +
	TOKEN_MINUS   // -
	TOKEN_STAR    // *
	TOKEN_SLASH   // /
	TOKEN_PERCENT // %
	TOKEN_LPAREN  // (
	TOKEN_RPAREN  // )
)

// Token is one lexical token of a formula.
type Token struct {
	Type    TokenType
	Literal string
	Offset  int
}

func (t Token) String() string {
	return fmt.Sprintf("%q@%d", t.Literal, t.Offset)
}
