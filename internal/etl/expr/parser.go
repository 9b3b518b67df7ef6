package expr

import "fmt"

// Operator binding powers for the Pratt parser.
const (
	precLowest  = 0
	precSum     = 1 // + -
	precProduct = 2 // * / %
)

var precedences = map[TokenType]int{
	TOKEN_PLUS:    precSum,
	TOKEN_MINUS:   precSum,
	TOKEN_STAR:    precProduct,
	TOKEN_SLASH:   precProduct,
	TOKEN_PERCENT: precProduct,
}

// Parser builds an expression tree from formula text.
type Parser struct {
	lexer *Lexer
	cur   Token
	peek  Token
}

// Parse parses a formula into an evaluatable node.
func Parse(input string) (Node, error) {
	p := &Parser{lexer: NewLexer(input)}
	p.next()
	p.next()

	node, err := p.parseExpr(precLowest)
	if err != nil {
		return nil, err
	}
	if p.cur.Type != TOKEN_EOF {
		return nil, fmt.Errorf("unexpected token %s after expression", p.cur)
	}
	return node, nil
}

func (p *Parser) next() {
	p.cur = p.peek
	p.peek = p.lexer.NextToken()
}

func (p *Parser) parseExpr(minPrec int) (Node, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for {
		prec, isOp := precedences[p.cur.Type]
		if !isOp || prec <= minPrec {
			return left, nil
		}

		op := p.cur.Type
		p.next()
		right, err := p.parseExpr(prec)
		if err != nil {
			return nil, err
		}
		left = &BinaryNode{Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parsePrimary() (Node, error) {
	switch p.cur.Type {
	case TOKEN_NUMBER:
		val, err := parseNumber(p.cur.Literal)
		if err != nil {
			return nil, err
		}
		p.next()
		return &NumberNode{Value: val}, nil

	case TOKEN_IDENT:
		node := &FieldNode{Name: p.cur.Literal}
		p.next()
		return node, nil

	case TOKEN_MINUS:
		// Unary minus binds tighter than any operator, so -a*b is (-a)*b.
		p.next()
		operand, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return &UnaryNode{Operand: operand}, nil

	case TOKEN_LPAREN:
		p.next()
		inner, err := p.parseExpr(precLowest)
		if err != nil {
			return nil, err
		}
		if p.cur.Type != TOKEN_RPAREN {
			return nil, fmt.Errorf("expected ) at offset %d", p.cur.Offset)
		}
		p.next()
		return inner, nil

	case TOKEN_ILLEGAL:
		return nil, fmt.Errorf("illegal character %s", p.cur)

	default:
		return nil, fmt.Errorf("unexpected token %s", p.cur)
	}
}

func parseNumber(lit string) (float64, error) {
	var val float64
	if _, err := fmt.Sscanf(lit, "%g", &val); err != nil {
		return 0, fmt.Errorf("invalid number %q", lit)
	}
	return val, nil
}
