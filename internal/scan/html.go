package scan

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// maskHTML blanks everything in doc except the bodies of JavaScript script
// elements. Newlines survive so offsets, lines and columns still refer to
// doc. Each script is terminated with ';' so consecutive scripts read as
// separate statements of one program.
func maskHTML(doc []byte) []byte {
	masked := make([]byte, len(doc))
	for i, c := range doc {
		if c == '\n' {
			masked[i] = '\n'
		} else {
			masked[i] = ' '
		}
	}

	z := html.NewTokenizer(bytes.NewReader(doc))
	offset := 0
	inScript := false
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		n := len(z.Raw())
		switch tt {
		case html.StartTagToken:
			name, hasAttr := z.TagName()
			inScript = string(name) == "script" && executable(z, hasAttr)
		case html.TextToken:
			if inScript && offset+n <= len(doc) {
				copy(masked[offset:offset+n], doc[offset:offset+n])
			}
		case html.EndTagToken:
			if inScript && offset < len(doc) {
				masked[offset] = ';'
			}
			inScript = false
		default:
			inScript = false
		}
		offset += n
	}
	return masked
}

// executable reports whether the script tag being tokenized holds
// JavaScript, judging by its type attribute.
func executable(z *html.Tokenizer, hasAttr bool) bool {
	for hasAttr {
		var key, val []byte
		key, val, hasAttr = z.TagAttr()
		if string(key) != "type" {
			continue
		}
		t := strings.ToLower(strings.TrimSpace(string(val)))
		return t == "" || t == "module" || strings.Contains(t, "javascript") || strings.Contains(t, "ecmascript")
	}
	return true
}

// scriptSources returns the src attributes of the script elements of doc in
// document order.
func scriptSources(doc []byte) []string {
	z := html.NewTokenizer(bytes.NewReader(doc))
	var out []string
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return out
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		name, hasAttr := z.TagName()
		if string(name) != "script" {
			continue
		}
		for hasAttr {
			var key, val []byte
			key, val, hasAttr = z.TagAttr()
			if string(key) == "src" && len(val) > 0 {
				out = append(out, strings.TrimSpace(string(val)))
			}
		}
	}
}
