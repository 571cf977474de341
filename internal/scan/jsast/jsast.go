// Package jsast lexes JavaScript source and collects its string literals.
package jsast

import (
	"bytes"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/js"

	"github.com/tavgar/endpointfinder/internal/syntax"
)

// Literal is a decoded string literal and the byte offset of its opening
// quote.
type Literal struct {
	Value  string
	Offset int
}

// Literals returns the string literals and substitution-free template
// literals of data in source order.
func Literals(data []byte) []Literal {
	l := js.NewLexer(parse.NewInputBytes(data))
	var out []Literal
	offset := 0
	for {
		tt, lit := l.Next()
		if tt == js.ErrorToken {
			break
		}
		at := locate(data, offset, lit)
		offset = at + len(lit)

		switch tt {
		case js.StringToken, js.TemplateToken:
			if v, ok := syntax.Unquote(string(lit)); ok {
				out = append(out, Literal{Value: v, Offset: at})
			}
		}
	}
	return out
}

// locate finds lit at or after offset. Lexemes are contiguous, so it is
// normally found right at offset.
func locate(data []byte, offset int, lit []byte) int {
	if offset > len(data) {
		return len(data)
	}
	if bytes.HasPrefix(data[offset:], lit) {
		return offset
	}
	if i := bytes.Index(data[offset:], lit); i >= 0 {
		return offset + i
	}
	return offset
}
