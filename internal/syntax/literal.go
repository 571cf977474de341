package syntax

import (
	"strconv"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
)

// StringValue decodes a string literal node.
func StringValue(n *sitter.Node, src []byte) string {
	raw := Text(n, src)
	if len(raw) >= 2 {
		raw = raw[1 : len(raw)-1]
	}
	return Unescape(raw)
}

// Unquote decodes a quoted JavaScript string or template literal without
// substitutions. ok is false when s is not quoted.
func Unquote(s string) (string, bool) {
	if len(s) < 2 {
		return "", false
	}
	q := s[0]
	if (q != '"' && q != '\'' && q != '`') || s[len(s)-1] != q {
		return "", false
	}
	return Unescape(s[1 : len(s)-1]), true
}

// Unescape resolves JavaScript escape sequences in the body of a string.
// Malformed escapes are kept verbatim.
func Unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch e := s[i]; e {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case '0':
			if i+1 < len(s) && s[i+1] >= '0' && s[i+1] <= '9' {
				b.WriteByte('\\')
				b.WriteByte(e)
				continue
			}
			b.WriteByte(0)
		case '\n':
		case '\r':
			if i+1 < len(s) && s[i+1] == '\n' {
				i++
			}
		case 'x':
			if r, ok := hexRune(s, i+1, 2); ok {
				b.WriteRune(r)
				i += 2
				continue
			}
			b.WriteString(`\x`)
		case 'u':
			if i+1 < len(s) && s[i+1] == '{' {
				end := strings.IndexByte(s[i+1:], '}')
				if end > 1 {
					if r, err := strconv.ParseUint(s[i+2:i+1+end], 16, 32); err == nil && utf8.ValidRune(rune(r)) {
						b.WriteRune(rune(r))
						i += end + 1
						continue
					}
				}
			} else if r, ok := hexRune(s, i+1, 4); ok {
				i += 4
				if utf16High(r) && i+2 < len(s) && s[i+1] == '\\' && s[i+2] == 'u' {
					if lo, ok := hexRune(s, i+3, 4); ok && utf16Low(lo) {
						b.WriteRune((r-0xD800)<<10 + (lo - 0xDC00) + 0x10000)
						i += 6
						continue
					}
				}
				b.WriteRune(r)
				continue
			}
			b.WriteString(`\u`)
		default:
			b.WriteByte(e)
		}
	}
	return b.String()
}

func hexRune(s string, at, n int) (rune, bool) {
	if at+n > len(s) {
		return 0, false
	}
	v, err := strconv.ParseUint(s[at:at+n], 16, 32)
	if err != nil {
		return 0, false
	}
	return rune(v), true
}

func utf16High(r rune) bool { return r >= 0xD800 && r < 0xDC00 }
func utf16Low(r rune) bool  { return r >= 0xDC00 && r < 0xE000 }

// NumberValue parses a numeric literal. ok is false for forms it cannot
// represent as a float64, such as BigInt literals.
func NumberValue(text string) (float64, bool) {
	text = strings.ReplaceAll(text, "_", "")
	if strings.HasSuffix(text, "n") {
		return 0, false
	}
	if len(text) > 1 && text[0] == '0' {
		switch text[1] {
		case 'x', 'X', 'o', 'O', 'b', 'B':
			v, err := strconv.ParseUint(text, 0, 64)
			if err != nil {
				return 0, false
			}
			return float64(v), true
		}
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
