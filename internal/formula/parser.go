package formula

import (
	"strconv"

	"github.com/haml-lang/hamlc/internal/diagnostic"
)

// parser consumes a token stream and builds a Formula tree.
// Expression parsing is a Pratt parser / precedence climbing.
type parser struct {
	tokens []Token
	pos    int
}

// Parse parses source text into a Formula. Errors identify the column and
// the offending token.
func Parse(src string) (Formula, error) {
	p := &parser{tokens: newLexer(src).tokenize()}
	f, err := p.parsePrecedence(precLowest + 1)
	if err != nil {
		return nil, err
	}
	if tok := p.current(); tok.Type != EOF {
		return nil, p.errorAt(tok, "unexpected token %s", tokenDisplay(tok))
	}
	return collapseChains(f), nil
}

// MustParse parses src and panics on error. For fixed formulas in tests and
// compiler-internal rewrites.
func MustParse(src string) Formula {
	f, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return f
}

func (p *parser) current() Token {
	return p.tokens[p.pos]
}

func (p *parser) advance() Token {
	tok := p.tokens[p.pos]
	if tok.Type != EOF {
		p.pos++
	}
	return tok
}

func (p *parser) check(t TokenType) bool {
	return p.current().Type == t
}

func (p *parser) errorAt(tok Token, format string, args ...any) error {
	prefix := "column " + strconv.Itoa(tok.Column) + ": "
	return diagnostic.Errorf(diagnostic.Parse, prefix+format, args...)
}

// tokenDisplay names a token for error messages.
func tokenDisplay(tok Token) string {
	if tok.Type == EOF {
		return "end of input"
	}
	return strconv.Quote(tok.Literal)
}

var tokenBinOps = map[TokenType]BinOp{
	PLUS:  Add,
	MINUS: Sub,
	STAR:  Mul,
	SLASH: Div,
	CARET: Pow,
	EQ:    Eq,
	NEQ:   Ne,
	LT:    Lt,
	LE:    Le,
	GT:    Gt,
	GE:    Ge,
	AND:   LAnd,
	OR:    LOr,
}

func tokenPrecedence(t TokenType) int {
	op, ok := tokenBinOps[t]
	if !ok {
		return precLowest
	}
	return binOpPrecedence(op)
}

func (p *parser) parsePrecedence(minPrec int) (Formula, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for {
		prec := tokenPrecedence(p.current().Type)
		if prec < minPrec {
			break
		}

		op := p.advance()

		// Right-associative for power
		nextPrec := prec + 1
		if op.Type == CARET {
			nextPrec = prec
		}

		right, err := p.parsePrecedence(nextPrec)
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: tokenBinOps[op.Type], X: left, Y: right}
	}

	return left, nil
}

func (p *parser) parseUnary() (Formula, error) {
	if p.check(MINUS) {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: Neg, X: operand}, nil
	}
	if p.check(NOT) {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: Not, X: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Formula, error) {
	tok := p.current()

	switch tok.Type {
	case NUMBER:
		p.advance()
		v, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			return nil, p.errorAt(tok, "malformed number %q", tok.Literal)
		}
		return RealLit(v), nil

	case TRUE:
		p.advance()
		return BoolLit(true), nil

	case FALSE:
		p.advance()
		return BoolLit(false), nil

	case IDENT:
		p.advance()
		if p.check(LPAREN) {
			return p.parseCall(tok)
		}
		return &Var{Name: tok.Literal}, nil

	case LPAREN:
		p.advance()
		inner, err := p.parsePrecedence(precLowest + 1)
		if err != nil {
			return nil, err
		}
		if !p.check(RPAREN) {
			return nil, p.errorAt(p.current(), "expected ')'")
		}
		p.advance()
		return inner, nil

	default:
		return nil, p.errorAt(tok, "unexpected token %s", tokenDisplay(tok))
	}
}

func (p *parser) parseCall(name Token) (Formula, error) {
	p.advance() // consume '('

	var args []Formula
	if !p.check(RPAREN) {
		for {
			arg, err := p.parsePrecedence(precLowest + 1)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if !p.check(COMMA) {
				break
			}
			p.advance()
		}
	}
	if !p.check(RPAREN) {
		return nil, p.errorAt(p.current(), "expected ')' in call to %s", name.Literal)
	}
	p.advance()

	if IsBuiltin(name.Literal) {
		return &BuiltinCall{Name: name.Literal, Args: args}, nil
	}
	return &Call{Name: name.Literal, Args: args}, nil
}

// collapseChains folds left-nested chains of the same boolean operator with
// three or more operands into a single Nary node.
func collapseChains(f Formula) Formula {
	switch n := f.(type) {
	case *Lit, *Var:
		return f
	case *Unary:
		return &Unary{Op: n.Op, X: collapseChains(n.X)}
	case *Binary:
		x := collapseChains(n.X)
		y := collapseChains(n.Y)
		if n.Op == LAnd || n.Op == LOr {
			operands := chainOperands(n.Op, x, y)
			if len(operands) >= 3 {
				return &Nary{Op: n.Op, Xs: operands}
			}
		}
		return &Binary{Op: n.Op, X: x, Y: y}
	case *Nary:
		xs := make([]Formula, len(n.Xs))
		for i, x := range n.Xs {
			xs[i] = collapseChains(x)
		}
		return &Nary{Op: n.Op, Xs: xs}
	case *Call:
		return &Call{Name: n.Name, Args: collapseArgs(n.Args)}
	case *BuiltinCall:
		return &BuiltinCall{Name: n.Name, Args: collapseArgs(n.Args)}
	default:
		return f
	}
}

func collapseArgs(args []Formula) []Formula {
	out := make([]Formula, len(args))
	for i, a := range args {
		out[i] = collapseChains(a)
	}
	return out
}

// chainOperands flattens already-collapsed children under op into one list.
func chainOperands(op BinOp, x, y Formula) []Formula {
	var out []Formula
	switch l := x.(type) {
	case *Binary:
		if l.Op == op {
			out = append(out, chainOperands(op, l.X, l.Y)...)
		} else {
			out = append(out, x)
		}
	case *Nary:
		if l.Op == op {
			out = append(out, l.Xs...)
		} else {
			out = append(out, x)
		}
	default:
		out = append(out, x)
	}
	return append(out, y)
}
