package query

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/roach88/emberdb/internal/dberr"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokParam
	tokOp     // comparison operator, including the word operators
	tokAnd    // && AND
	tokOr     // || OR
	tokNot    // ! NOT
	tokLParen // (
	tokRParen // )
	tokCase   // [c]
	tokTrue   // true
	tokFalse  // false
	tokNull   // null nil
	tokTruePred
	tokFalsePred
)

type token struct {
	kind tokenKind
	text string
	pos  int

	// Decoded payloads.
	num   any // int64 or float64
	str   string
	param int
}

type lexer struct {
	src string
	pos int
}

func syntaxError(src string, pos int, format string, args ...any) *dberr.Error {
	e := dberr.New(dberr.KindQuerySyntax, format, args...)
	e.Message += " at offset " + strconv.Itoa(pos) + " in '" + src + "'"
	return e
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) {
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		if !unicode.IsSpace(r) {
			break
		}
		l.pos += size
	}
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, pos: l.pos}, nil
	}

	start := l.pos
	c := l.src[l.pos]
	rest := l.src[l.pos:]

	switch {
	case c == '(':
		l.pos++
		return token{kind: tokLParen, text: "(", pos: start}, nil
	case c == ')':
		l.pos++
		return token{kind: tokRParen, text: ")", pos: start}, nil
	case strings.HasPrefix(rest, "&&"):
		l.pos += 2
		return token{kind: tokAnd, text: "&&", pos: start}, nil
	case strings.HasPrefix(rest, "||"):
		l.pos += 2
		return token{kind: tokOr, text: "||", pos: start}, nil
	case strings.HasPrefix(rest, "=="), strings.HasPrefix(rest, "!="),
		strings.HasPrefix(rest, "<="), strings.HasPrefix(rest, ">="):
		l.pos += 2
		return token{kind: tokOp, text: rest[:2], pos: start}, nil
	case strings.HasPrefix(rest, "<>"):
		l.pos += 2
		return token{kind: tokOp, text: "!=", pos: start}, nil
	case c == '=':
		l.pos++
		return token{kind: tokOp, text: "==", pos: start}, nil
	case c == '<' || c == '>':
		l.pos++
		return token{kind: tokOp, text: string(c), pos: start}, nil
	case c == '!':
		l.pos++
		return token{kind: tokNot, text: "!", pos: start}, nil
	case len(rest) >= 3 && rest[0] == '[' && (rest[1] == 'c' || rest[1] == 'C') && rest[2] == ']':
		l.pos += 3
		return token{kind: tokCase, text: rest[:3], pos: start}, nil
	case c == '$':
		return l.lexParam()
	case c == '\'' || c == '"':
		return l.lexString(c)
	case isDigit(c) || ((c == '-' || c == '+' || c == '.') && len(rest) > 1 && (isDigit(rest[1]) || rest[1] == '.')):
		return l.lexNumber()
	case c == '_' || isLetter(c):
		return l.lexWord()
	}
	return token{}, syntaxError(l.src, start, "unexpected character %q", rune(c))
}

func (l *lexer) lexParam() (token, error) {
	start := l.pos
	l.pos++
	digits := l.pos
	for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
		l.pos++
	}
	if l.pos == digits {
		return token{}, syntaxError(l.src, start, "expected argument index after '$'")
	}
	n, err := strconv.Atoi(l.src[digits:l.pos])
	if err != nil {
		return token{}, syntaxError(l.src, start, "invalid argument index")
	}
	return token{kind: tokParam, text: l.src[start:l.pos], pos: start, param: n}, nil
}

func (l *lexer) lexString(quote byte) (token, error) {
	start := l.pos
	l.pos++
	var sb strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch c {
		case quote:
			l.pos++
			return token{kind: tokString, text: l.src[start:l.pos], pos: start, str: sb.String()}, nil
		case '\\':
			if l.pos+1 >= len(l.src) {
				return token{}, syntaxError(l.src, l.pos, "unterminated escape")
			}
			esc := l.src[l.pos+1]
			switch esc {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '\\', '\'', '"':
				sb.WriteByte(esc)
			default:
				return token{}, syntaxError(l.src, l.pos, "unknown escape \\%c", esc)
			}
			l.pos += 2
		default:
			sb.WriteByte(c)
			l.pos++
		}
	}
	return token{}, syntaxError(l.src, start, "unterminated string")
}

func (l *lexer) lexNumber() (token, error) {
	start := l.pos
	if c := l.src[l.pos]; c == '-' || c == '+' {
		l.pos++
	}
	isFloat := false
scan:
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case isDigit(c):
		case c == '.' || c == 'e' || c == 'E':
			isFloat = true
		case (c == '-' || c == '+') && (l.src[l.pos-1] == 'e' || l.src[l.pos-1] == 'E'):
		default:
			break scan
		}
		l.pos++
	}
	text := l.src[start:l.pos]
	if !isFloat {
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			return token{kind: tokNumber, text: text, pos: start, num: n}, nil
		}
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return token{}, syntaxError(l.src, start, "invalid number %q", text)
	}
	return token{kind: tokNumber, text: text, pos: start, num: f}, nil
}

func (l *lexer) lexWord() (token, error) {
	start := l.pos
	for l.pos < len(l.src) && (l.src[l.pos] == '_' || isLetter(l.src[l.pos]) || isDigit(l.src[l.pos])) {
		l.pos++
	}
	word := l.src[start:l.pos]
	tok := token{text: word, pos: start}
	switch strings.ToUpper(word) {
	case "AND":
		tok.kind = tokAnd
	case "OR":
		tok.kind = tokOr
	case "NOT":
		tok.kind = tokNot
	case "BEGINSWITH", "ENDSWITH", "CONTAINS":
		tok.kind = tokOp
		tok.text = strings.ToUpper(word)
	case "TRUE":
		tok.kind = tokTrue
	case "FALSE":
		tok.kind = tokFalse
	case "NULL", "NIL":
		tok.kind = tokNull
	case "TRUEPREDICATE":
		tok.kind = tokTruePred
	case "FALSEPREDICATE":
		tok.kind = tokFalsePred
	default:
		tok.kind = tokIdent
	}
	return tok, nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
