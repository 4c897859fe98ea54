package memory

import (
	"strings"
	"unicode"

	"github.com/tordrt/foodstats/internal/plan"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokSymbol
)

func (k tokenKind) String() string {
	switch k {
	case tokIdent:
		return "identifier"
	case tokNumber:
		return "number"
	case tokString:
		return "string"
	case tokSymbol:
		return "symbol"
	default:
		return "end of input"
	}
}

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) describe() string {
	if t.kind == tokEOF {
		return "end of input"
	}
	return t.kind.String() + " " + quoteToken(t.text)
}

func quoteToken(s string) string {
	return "'" + s + "'"
}

// lex splits a pipeline expression into tokens. Positions are byte
// offsets into src.
func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case isIdentStart(c):
			start := i
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: src[start:i], pos: start})

		case isDigit(c) || (c == '-' && i+1 < len(src) && isDigit(src[i+1])):
			start := i
			i++
			dot := false
			for i < len(src) && (isDigit(src[i]) || (src[i] == '.' && !dot)) {
				if src[i] == '.' {
					dot = true
				}
				i++
			}
			toks = append(toks, token{kind: tokNumber, text: src[start:i], pos: start})

		case c == '\'':
			start := i
			var b strings.Builder
			i++
			closed := false
			for i < len(src) {
				if src[i] == '\'' {
					if i+1 < len(src) && src[i+1] == '\'' {
						b.WriteByte('\'')
						i += 2
						continue
					}
					i++
					closed = true
					break
				}
				b.WriteByte(src[i])
				i++
			}
			if !closed {
				return nil, plan.Syntaxf(start, "unterminated string")
			}
			toks = append(toks, token{kind: tokString, text: b.String(), pos: start})

		case c == '!' || c == '<' || c == '>':
			start := i
			i++
			if i < len(src) && src[i] == '=' {
				i++
			} else if c == '!' {
				return nil, plan.Syntaxf(start, "unexpected character '!'")
			}
			toks = append(toks, token{kind: tokSymbol, text: src[start:i], pos: start})

		case strings.IndexByte("|,()=", c) >= 0:
			toks = append(toks, token{kind: tokSymbol, text: string(c), pos: i})
			i++

		default:
			return nil, plan.Syntaxf(i, "unexpected character %q", rune(c))
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(src)}), nil
}

func isIdentStart(c byte) bool {
	return c == '_' || c < unicode.MaxASCII && unicode.IsLetter(rune(c))
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '.'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
