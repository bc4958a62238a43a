package schema

import (
	"strconv"

	"go.corvid.dev/x690/xerr"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokLBrace
	tokRBrace
	tokLBracket
	tokRBracket
	tokComma
	tokAssign // ::=
)

type token struct {
	kind tokenKind
	text string
	num  int
	line int
}

// lexer is a hand-rolled, rune-at-a-time token scanner for the small ASN.1
// module subset this package accepts, in the style of a small recursive-
// descent grammar's token scanner (accumulate characters into a buffer,
// branch on the first rune, no generated tables).
type lexer struct {
	src  []byte
	pos  int
	line int
}

func newLexer(src string) *lexer {
	return &lexer{src: []byte(src), line: 1}
}

func (l *lexer) peekByte() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *lexer) skipSpaceAndComments() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '\n':
			l.line++
			l.pos++
		case c == ' ' || c == '\t' || c == '\r':
			l.pos++
		case c == '-' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '-':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		default:
			return
		}
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentCont(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9') || c == '-'
}

func (l *lexer) next() (token, error) {
	l.skipSpaceAndComments()
	line := l.line
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, line: line}, nil
	}
	c := l.src[l.pos]
	switch c {
	case '{':
		l.pos++
		return token{kind: tokLBrace, line: line}, nil
	case '}':
		l.pos++
		return token{kind: tokRBrace, line: line}, nil
	case '[':
		l.pos++
		return token{kind: tokLBracket, line: line}, nil
	case ']':
		l.pos++
		return token{kind: tokRBracket, line: line}, nil
	case ',':
		l.pos++
		return token{kind: tokComma, line: line}, nil
	case ':':
		if l.pos+2 < len(l.src) && l.src[l.pos+1] == ':' && l.src[l.pos+2] == '=' {
			l.pos += 3
			return token{kind: tokAssign, line: line}, nil
		}
		return token{}, xerr.New(xerr.InvalidValue, "schema: unexpected ':' at line %d", line)
	}
	if c >= '0' && c <= '9' {
		start := l.pos
		for l.pos < len(l.src) && l.src[l.pos] >= '0' && l.src[l.pos] <= '9' {
			l.pos++
		}
		n, err := strconv.Atoi(string(l.src[start:l.pos]))
		if err != nil {
			return token{}, xerr.Wrap(xerr.InvalidValue, err, "schema: number")
		}
		return token{kind: tokNumber, num: n, line: line}, nil
	}
	if isIdentStart(c) {
		start := l.pos
		for l.pos < len(l.src) && isIdentCont(l.src[l.pos]) {
			l.pos++
		}
		return token{kind: tokIdent, text: string(l.src[start:l.pos]), line: line}, nil
	}
	return token{}, xerr.New(xerr.InvalidValue, "schema: unexpected character %q at line %d", c, line)
}
