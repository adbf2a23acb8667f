package tools

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Sentinel errors so callers can distinguish the two user-visible failure
// modes without string matching.
var (
	ErrDivisionByZero = errors.New("division by zero")
	ErrBadExpression  = errors.New("malformed expression")
)

// Calculator evaluates plain arithmetic: + - * /, parentheses, unary minus
// and decimal numbers. Nothing else parses, so there is no way for an
// expression to execute anything beyond arithmetic.
type Calculator struct{}

func NewCalculator() *Calculator { return &Calculator{} }

// Evaluate parses and computes expr.
func (c *Calculator) Evaluate(ctx context.Context, expr string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p := &exprParser{input: strings.TrimSpace(expr)}
	if p.input == "" {
		return 0, fmt.Errorf("%w: empty expression", ErrBadExpression)
	}
	v, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpaces()
	if p.pos < len(p.input) {
		return 0, fmt.Errorf("%w: unexpected %q at position %d", ErrBadExpression, p.input[p.pos:], p.pos)
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, fmt.Errorf("%w: result out of range", ErrBadExpression)
	}
	return v, nil
}

// exprParser is a recursive-descent parser over the grammar:
//
//	expr   = term { ("+" | "-") term }
//	term   = factor { ("*" | "/") factor }
//	factor = number | "(" expr ")" | "-" factor
type exprParser struct {
	input string
	pos   int
}

func (p *exprParser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		op, ok := p.peekOp("+-")
		if !ok {
			return left, nil
		}
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return 0, err
		}
		if op == '+' {
			left += right
		} else {
			left -= right
		}
	}
}

func (p *exprParser) parseTerm() (float64, error) {
	left, err := p.parseFactor()
	if err != nil {
		return 0, err
	}
	for {
		op, ok := p.peekOp("*/")
		if !ok {
			return left, nil
		}
		p.pos++
		right, err := p.parseFactor()
		if err != nil {
			return 0, err
		}
		if op == '*' {
			left *= right
		} else {
			if right == 0 {
				return 0, ErrDivisionByZero
			}
			left /= right
		}
	}
}

func (p *exprParser) parseFactor() (float64, error) {
	p.skipSpaces()
	if p.pos >= len(p.input) {
		return 0, fmt.Errorf("%w: unexpected end of expression", ErrBadExpression)
	}
	switch ch := p.input[p.pos]; {
	case ch == '(':
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		p.skipSpaces()
		if p.pos >= len(p.input) || p.input[p.pos] != ')' {
			return 0, fmt.Errorf("%w: missing closing parenthesis", ErrBadExpression)
		}
		p.pos++
		return v, nil
	case ch == '-':
		p.pos++
		v, err := p.parseFactor()
		if err != nil {
			return 0, err
		}
		return -v, nil
	case unicode.IsDigit(rune(ch)) || ch == '.':
		return p.parseNumber()
	default:
		return 0, fmt.Errorf("%w: unexpected character %q at position %d", ErrBadExpression, ch, p.pos)
	}
}

func (p *exprParser) parseNumber() (float64, error) {
	start := p.pos
	seenDot := false
	for p.pos < len(p.input) {
		ch := p.input[p.pos]
		if ch == '.' {
			if seenDot {
				return 0, fmt.Errorf("%w: malformed number at position %d", ErrBadExpression, start)
			}
			seenDot = true
			p.pos++
			continue
		}
		if !unicode.IsDigit(rune(ch)) {
			break
		}
		p.pos++
	}
	v, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad number %q", ErrBadExpression, p.input[start:p.pos])
	}
	return v, nil
}

// peekOp returns the next non-space character when it is one of ops.
func (p *exprParser) peekOp(ops string) (byte, bool) {
	p.skipSpaces()
	if p.pos >= len(p.input) {
		return 0, false
	}
	ch := p.input[p.pos]
	if strings.IndexByte(ops, ch) < 0 {
		return 0, false
	}
	return ch, true
}

func (p *exprParser) skipSpaces() {
	for p.pos < len(p.input) && p.input[p.pos] == ' ' {
		p.pos++
	}
}
