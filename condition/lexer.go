package condition

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenType int

const (
	tokenEOF tokenType = iota
	tokenIdent
	tokenNumber
	tokenString
	tokenPath
	tokenLparen
	tokenRparen
	tokenAnd
	tokenOr
	tokenNot
	tokenEq
	tokenNeq
	tokenLt
	tokenLte
	tokenGt
	tokenGte
)

type token struct {
	typ tokenType
	val string
	pos int
}

type lexer struct {
	input string
	pos   int
}

func newLexer(input string) *lexer {
	return &lexer{input: input}
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.input) && unicode.IsSpace(rune(l.input[l.pos])) {
		l.pos++
	}
	if l.pos >= len(l.input) {
		return token{typ: tokenEOF, pos: l.pos}, nil
	}
	start := l.pos
	c := l.input[l.pos]
	switch {
	case c == '(':
		l.pos++
		return token{typ: tokenLparen, val: "(", pos: start}, nil
	case c == ')':
		l.pos++
		return token{typ: tokenRparen, val: ")", pos: start}, nil
	case c == '&':
		if l.peekAt(1) != '&' {
			return token{}, fmt.Errorf("unexpected '&' at %d", start)
		}
		l.pos += 2
		return token{typ: tokenAnd, val: "&&", pos: start}, nil
	case c == '|':
		if l.peekAt(1) != '|' {
			return token{}, fmt.Errorf("unexpected '|' at %d", start)
		}
		l.pos += 2
		return token{typ: tokenOr, val: "||", pos: start}, nil
	case c == '!':
		if l.peekAt(1) == '=' {
			l.pos += 2
			return token{typ: tokenNeq, val: "!=", pos: start}, nil
		}
		l.pos++
		return token{typ: tokenNot, val: "!", pos: start}, nil
	case c == '=':
		if l.peekAt(1) != '=' {
			return token{}, fmt.Errorf("unexpected '=' at %d", start)
		}
		l.pos += 2
		return token{typ: tokenEq, val: "==", pos: start}, nil
	case c == '<':
		if l.peekAt(1) == '=' {
			l.pos += 2
			return token{typ: tokenLte, val: "<=", pos: start}, nil
		}
		l.pos++
		return token{typ: tokenLt, val: "<", pos: start}, nil
	case c == '>':
		if l.peekAt(1) == '=' {
			l.pos += 2
			return token{typ: tokenGte, val: ">=", pos: start}, nil
		}
		l.pos++
		return token{typ: tokenGt, val: ">", pos: start}, nil
	case c == '\'' || c == '"':
		return l.lexString(c)
	case c == '$':
		return l.lexPath()
	case unicode.IsDigit(rune(c)):
		return l.lexNumber()
	case isIdentStart(c):
		return l.lexIdent()
	}
	return token{}, fmt.Errorf("unexpected character %q at %d", c, start)
}

func (l *lexer) peekAt(offset int) byte {
	if l.pos+offset >= len(l.input) {
		return 0
	}
	return l.input[l.pos+offset]
}

func (l *lexer) lexString(quote byte) (token, error) {
	start := l.pos
	l.pos++
	for l.pos < len(l.input) && l.input[l.pos] != quote {
		l.pos++
	}
	if l.pos >= len(l.input) {
		return token{}, fmt.Errorf("unterminated string at %d", start)
	}
	val := l.input[start+1 : l.pos]
	l.pos++
	return token{typ: tokenString, val: val, pos: start}, nil
}

// a path reference starts with '$' and runs over jsonpath characters; the
// path itself is handed to the jsonpath library unparsed
func (l *lexer) lexPath() (token, error) {
	start := l.pos
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		if unicode.IsSpace(rune(c)) || c == ')' || c == '&' || c == '|' || c == '=' || c == '!' || c == '<' || c == '>' {
			break
		}
		l.pos++
	}
	return token{typ: tokenPath, val: l.input[start:l.pos], pos: start}, nil
}

func (l *lexer) lexNumber() (token, error) {
	start := l.pos
	seenDot := false
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		if c == '.' && !seenDot {
			seenDot = true
			l.pos++
			continue
		}
		if !unicode.IsDigit(rune(c)) {
			break
		}
		l.pos++
	}
	return token{typ: tokenNumber, val: l.input[start:l.pos], pos: start}, nil
}

func (l *lexer) lexIdent() (token, error) {
	start := l.pos
	for l.pos < len(l.input) && isIdentPart(l.input[l.pos]) {
		l.pos++
	}
	val := l.input[start:l.pos]
	switch strings.ToLower(val) {
	case "and":
		return token{typ: tokenAnd, val: val, pos: start}, nil
	case "or":
		return token{typ: tokenOr, val: val, pos: start}, nil
	case "not":
		return token{typ: tokenNot, val: val, pos: start}, nil
	}
	return token{typ: tokenIdent, val: val, pos: start}, nil
}

func isIdentStart(c byte) bool {
	return unicode.IsLetter(rune(c)) || c == '_'
}

func isIdentPart(c byte) bool {
	return unicode.IsLetter(rune(c)) || unicode.IsDigit(rune(c)) || c == '_' || c == '-' || c == '.'
}
