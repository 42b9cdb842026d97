package query

import (
	"strings"

	"github.com/roach88/emberdb/internal/dberr"
)

// Query is a parsed, unbound predicate.
type Query struct {
	Source string
	Expr   Expr

	// Params is one past the highest $n referenced (0 when none).
	Params int
}

// Parse parses a predicate. An empty or blank source matches everything.
//
// Grammar (lowest precedence first):
//
//	or         = and { ("||" | "OR") and }
//	and        = unary { ("&&" | "AND") unary }
//	unary      = ("!" | "NOT") unary | primary
//	primary    = "(" or ")" | "TRUEPREDICATE" | "FALSEPREDICATE" | comparison
//	comparison = operand op ["[c]"] operand
//	operand    = identifier | number | string | $n | true | false | null | nil
func Parse(src string) (*Query, error) {
	q := &Query{Source: src}
	if strings.TrimSpace(src) == "" {
		q.Expr = Const(true)
		return q, nil
	}

	p := &parser{lex: lexer{src: src}, src: src, maxParam: -1}
	if err := p.advance(); err != nil {
		return nil, err
	}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, syntaxError(src, p.tok.pos, "unexpected %q", p.tok.text)
	}
	q.Expr = expr
	q.Params = p.maxParam + 1
	return q, nil
}

type parser struct {
	lex      lexer
	src      string
	tok      token
	maxParam int
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokOr {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = Or{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokAnd {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = And{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Expr, error) {
	if p.tok.kind == tokNot {
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Not{Inner: inner}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expr, error) {
	switch p.tok.kind {
	case tokLParen:
		open := p.tok.pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.tok.kind != tokRParen {
			return nil, syntaxError(p.src, open, "unbalanced '('")
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return inner, nil
	case tokTruePred, tokFalsePred:
		c := Const(p.tok.kind == tokTruePred)
		if err := p.advance(); err != nil {
			return nil, err
		}
		return c, nil
	case tokEOF:
		return nil, syntaxError(p.src, p.tok.pos, "unexpected end of predicate")
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (Expr, error) {
	pos := p.tok.pos
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokOp {
		if p.tok.kind == tokEOF {
			return nil, syntaxError(p.src, p.tok.pos, "expected comparison operator after %q", p.src[pos:p.tok.pos])
		}
		return nil, syntaxError(p.src, p.tok.pos, "expected comparison operator, got %q", p.tok.text)
	}
	op := Op(p.tok.text)
	if err := p.advance(); err != nil {
		return nil, err
	}
	caseInsensitive := false
	if p.tok.kind == tokCase {
		caseInsensitive = true
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return Comparison{Left: left, Op: op, Right: right, CaseInsensitive: caseInsensitive, Pos: pos}, nil
}

func (p *parser) parseOperand() (Operand, error) {
	tok := p.tok
	var out Operand
	switch tok.kind {
	case tokIdent:
		out = Property{Name: tok.text, Pos: tok.pos}
	case tokNumber:
		out = Literal{Value: tok.num, Pos: tok.pos}
	case tokString:
		out = Literal{Value: tok.str, Pos: tok.pos}
	case tokTrue, tokFalse:
		out = Literal{Value: tok.kind == tokTrue, Pos: tok.pos}
	case tokNull:
		out = Literal{Value: nil, Pos: tok.pos}
	case tokParam:
		if tok.param > p.maxParam {
			p.maxParam = tok.param
		}
		out = Param{Index: tok.param, Pos: tok.pos}
	case tokEOF:
		return nil, syntaxError(p.src, tok.pos, "unexpected end of predicate")
	default:
		return nil, syntaxError(p.src, tok.pos, "expected property, literal or argument, got %q", tok.text)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return out, nil
}

// errParam builds the error for a $n with no bound argument.
func errParam(index, provided int) *dberr.Error {
	return dberr.New(dberr.KindQueryParameter,
		"request for argument at index %d but only %d arguments are provided", index, provided)
}
