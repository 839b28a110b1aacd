package calc

import (
	"github.com/viant/parsly"
	"github.com/viant/parsly/matcher"
)

// Token codes start at 1 so a failed match is never mistaken for one
const (
	whitespaceCode = iota + 1
	numberCode
	identifierCode
	powerCode
	multiplyCode
	floorDivideCode
	divideCode
	moduloCode
	plusCode
	minusCode
	openParenCode
	closeParenCode
)

var (
	whitespaceToken  = parsly.NewToken(whitespaceCode, "Whitespace", matcher.NewWhiteSpace())
	numberToken      = parsly.NewToken(numberCode, "Number", &numberMatcher{})
	identifierToken  = parsly.NewToken(identifierCode, "Identifier", &identifierMatcher{})
	powerToken       = parsly.NewToken(powerCode, "**", &literalMatcher{text: "**"})
	multiplyToken    = parsly.NewToken(multiplyCode, "*", matcher.NewByte('*'))
	floorDivideToken = parsly.NewToken(floorDivideCode, "//", &literalMatcher{text: "//"})
	divideToken      = parsly.NewToken(divideCode, "/", matcher.NewByte('/'))
	moduloToken      = parsly.NewToken(moduloCode, "%", matcher.NewByte('%'))
	plusToken        = parsly.NewToken(plusCode, "+", matcher.NewByte('+'))
	minusToken       = parsly.NewToken(minusCode, "-", matcher.NewByte('-'))
	openParenToken   = parsly.NewToken(openParenCode, "(", matcher.NewByte('('))
	closeParenToken  = parsly.NewToken(closeParenCode, ")", matcher.NewByte(')'))
)

// expressionTokens is ordered so two-character operators win over their
// one-character prefixes
var expressionTokens = []*parsly.Token{
	numberToken,
	identifierToken,
	powerToken,
	multiplyToken,
	floorDivideToken,
	divideToken,
	moduloToken,
	plusToken,
	minusToken,
	openParenToken,
	closeParenToken,
}

// literalMatcher matches a fixed multi-byte operator
type literalMatcher struct {
	text string
}

func (m *literalMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos

	if pos+len(m.text) > cursor.InputSize {
		return 0
	}

	if string(input[pos:pos+len(m.text)]) != m.text {
		return 0
	}

	return len(m.text)
}

// numberMatcher matches 12, 1.5, .5, 5., 1e3 and 2.5E-2
type numberMatcher struct{}

func (m *numberMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize

	i := pos
	digits := 0
	for i < size && isDigit(input[i]) {
		i++
		digits++
	}

	if i < size && input[i] == '.' {
		i++
		for i < size && isDigit(input[i]) {
			i++
			digits++
		}
	}

	if digits == 0 {
		return 0
	}

	// Exponent is only consumed when complete
	if i < size && (input[i] == 'e' || input[i] == 'E') {
		j := i + 1
		if j < size && (input[j] == '+' || input[j] == '-') {
			j++
		}
		expDigits := 0
		for j < size && isDigit(input[j]) {
			j++
			expDigits++
		}
		if expDigits > 0 {
			i = j
		}
	}

	return i - pos
}

// identifierMatcher matches names so they can be rejected with a clear message
type identifierMatcher struct{}

func (m *identifierMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize

	if pos >= size {
		return 0
	}

	if !isLetter(input[pos]) && input[pos] != '_' {
		return 0
	}

	matched := 1
	for i := pos + 1; i < size; i++ {
		if isLetter(input[i]) || isDigit(input[i]) || input[i] == '_' {
			matched++
			continue
		}
		break
	}

	return matched
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
