// Package calc evaluates arithmetic expressions typed at the calc prompt.
// Only numbers, parentheses, unary signs and the operators + - * / // % **
// are accepted; names are rejected. Integers are arbitrary precision and
// stay integers unless an operator produces a float, as in Python.
package calc

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/viant/parsly"
)

// maxResultBits bounds integer products and powers so an expression cannot
// exhaust memory or stall the shell
const maxResultBits = 1 << 20

// Value is an integer or a float result
type Value struct {
	i       *big.Int
	f       float64
	isFloat bool
}

// Int creates an integer value
func Int(n int64) Value {
	return Value{i: big.NewInt(n)}
}

// Float creates a float value
func Float(f float64) Value {
	return Value{f: f, isFloat: true}
}

// IsFloat reports whether v is a float
func (v Value) IsFloat() bool {
	return v.isFloat
}

// Float64 returns v as a float
func (v Value) Float64() float64 {
	if v.isFloat {
		return v.f
	}
	f, _ := new(big.Float).SetInt(v.i).Float64()
	return f
}

// String formats v the way Python prints numbers: integers as is, floats
// in shortest form with a trailing ".0" when integral.
func (v Value) String() string {
	if !v.isFloat {
		return v.i.String()
	}
	return formatFloat(v.f)
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}

	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}

	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

type lexeme struct {
	code int
	text string
	pos  int
}

// Evaluate parses and evaluates expr
func Evaluate(expr string) (Value, error) {
	lexemes, err := tokenize(expr)
	if err != nil {
		return Value{}, err
	}
	if len(lexemes) == 0 {
		return Value{}, fmt.Errorf("empty expression")
	}

	p := &parser{lexemes: lexemes}
	v, err := p.expression()
	if err != nil {
		return Value{}, err
	}

	if !p.done() {
		return Value{}, fmt.Errorf("invalid syntax at position %d", p.peek().pos+1)
	}

	return v, nil
}

func tokenize(expr string) ([]lexeme, error) {
	cursor := parsly.NewCursor("", []byte(expr), 0)

	var lexemes []lexeme
	for {
		cursor.MatchOne(whitespaceToken)
		if cursor.Pos >= cursor.InputSize {
			return lexemes, nil
		}

		pos := cursor.Pos
		matched := cursor.MatchAny(expressionTokens...)
		switch matched.Code {
		case numberCode, powerCode, multiplyCode, floorDivideCode, divideCode,
			moduloCode, plusCode, minusCode, openParenCode, closeParenCode:
			lexemes = append(lexemes, lexeme{code: matched.Code, text: matched.Text(cursor), pos: pos})
		case identifierCode:
			return nil, fmt.Errorf("name '%s' is not defined", matched.Text(cursor))
		default:
			return nil, fmt.Errorf("invalid character '%c' at position %d", cursor.Input[pos], pos+1)
		}
	}
}

// parser is a recursive-descent evaluator with Python precedence:
// + - below * / // % below unary signs below **, which is right associative
// and binds tighter than a unary sign on its left.
type parser struct {
	lexemes []lexeme
	pos     int
}

func (p *parser) done() bool {
	return p.pos >= len(p.lexemes)
}

func (p *parser) peek() lexeme {
	if p.done() {
		return lexeme{}
	}
	return p.lexemes[p.pos]
}

func (p *parser) accept(codes ...int) (lexeme, bool) {
	if p.done() {
		return lexeme{}, false
	}
	next := p.lexemes[p.pos]
	for _, code := range codes {
		if next.code == code {
			p.pos++
			return next, true
		}
	}
	return lexeme{}, false
}

func (p *parser) expression() (Value, error) {
	left, err := p.term()
	if err != nil {
		return Value{}, err
	}

	for {
		op, ok := p.accept(plusCode, minusCode)
		if !ok {
			return left, nil
		}
		right, err := p.term()
		if err != nil {
			return Value{}, err
		}
		if op.code == plusCode {
			left = add(left, right)
		} else {
			left = subtract(left, right)
		}
	}
}

func (p *parser) term() (Value, error) {
	left, err := p.unary()
	if err != nil {
		return Value{}, err
	}

	for {
		op, ok := p.accept(multiplyCode, divideCode, floorDivideCode, moduloCode)
		if !ok {
			return left, nil
		}
		right, err := p.unary()
		if err != nil {
			return Value{}, err
		}

		switch op.code {
		case multiplyCode:
			left, err = multiply(left, right)
		case divideCode:
			left, err = divide(left, right)
		case floorDivideCode:
			left, err = floorDivide(left, right)
		case moduloCode:
			left, err = modulo(left, right)
		}
		if err != nil {
			return Value{}, err
		}
	}
}

func (p *parser) unary() (Value, error) {
	if op, ok := p.accept(plusCode, minusCode); ok {
		v, err := p.unary()
		if err != nil {
			return Value{}, err
		}
		if op.code == minusCode {
			return negate(v), nil
		}
		return v, nil
	}
	return p.power()
}

func (p *parser) power() (Value, error) {
	base, err := p.atom()
	if err != nil {
		return Value{}, err
	}

	if _, ok := p.accept(powerCode); !ok {
		return base, nil
	}

	exponent, err := p.unary()
	if err != nil {
		return Value{}, err
	}
	return pow(base, exponent)
}

func (p *parser) atom() (Value, error) {
	if p.done() {
		return Value{}, fmt.Errorf("unexpected end of expression")
	}

	if num, ok := p.accept(numberCode); ok {
		return parseNumber(num.text)
	}

	if _, ok := p.accept(openParenCode); ok {
		v, err := p.expression()
		if err != nil {
			return Value{}, err
		}
		if _, ok := p.accept(closeParenCode); !ok {
			if p.done() {
				return Value{}, fmt.Errorf("'(' was never closed")
			}
			return Value{}, fmt.Errorf("invalid syntax at position %d", p.peek().pos+1)
		}
		return v, nil
	}

	next := p.peek()
	return Value{}, fmt.Errorf("invalid syntax at position %d: unexpected '%s'", next.pos+1, next.text)
}

func parseNumber(text string) (Value, error) {
	if strings.ContainsAny(text, ".eE") {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Value{}, fmt.Errorf("invalid number '%s'", text)
		}
		return Float(f), nil
	}

	i, ok := new(big.Int).SetString(text, 10)
	if !ok {
		return Value{}, fmt.Errorf("invalid number '%s'", text)
	}
	return Value{i: i}, nil
}
