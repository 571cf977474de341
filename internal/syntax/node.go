package syntax

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/tavgar/endpointfinder/internal/symbolic"
)

// Location is a 1-based line and column.
type Location struct {
	Line   int
	Column int
}

func (l Location) String() string { return fmt.Sprintf("%d:%d", l.Line, l.Column) }

// Text returns the source text covered by n.
func Text(n *sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	return n.Content(src)
}

// SpanOf returns the byte range of n.
func SpanOf(n *sitter.Node) symbolic.Span {
	if n == nil {
		return symbolic.Span{}
	}
	return symbolic.Span{Start: int(n.StartByte()), End: int(n.EndByte())}
}

// LocationOf returns where n starts.
func LocationOf(n *sitter.Node) Location {
	p := n.StartPoint()
	return Location{Line: int(p.Row) + 1, Column: int(p.Column) + 1}
}

// LocationAt converts a byte offset into a line and column.
func LocationAt(src []byte, offset int) Location {
	if offset > len(src) {
		offset = len(src)
	}
	loc := Location{Line: 1, Column: 1}
	for _, c := range src[:offset] {
		if c == '\n' {
			loc.Line++
			loc.Column = 1
			continue
		}
		loc.Column++
	}
	return loc
}

// Children returns the named children of n, skipping comments.
func Children(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	count := int(n.NamedChildCount())
	out := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		c := n.NamedChild(i)
		if c == nil || c.Type() == "comment" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// FirstChild returns the first named, non-comment child of n.
func FirstChild(n *sitter.Node) *sitter.Node {
	if c := Children(n); len(c) > 0 {
		return c[0]
	}
	return nil
}

// Field returns the child stored under name, or nil.
func Field(n *sitter.Node, name string) *sitter.Node {
	if n == nil {
		return nil
	}
	return n.ChildByFieldName(name)
}

// Require returns the child stored under name and panics with a
// *MalformedNodeError when the grammar guaranteed it but it is absent.
// Callers recover the panic at the analysis boundary.
func Require(n *sitter.Node, name string) *sitter.Node {
	c := Field(n, name)
	if c == nil {
		panic(&MalformedNodeError{Kind: n.Type(), Field: name, Offset: int(n.StartByte())})
	}
	return c
}

// Same reports whether a and b denote the same node.
func Same(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

// Unwrap strips parentheses around an expression.
func Unwrap(n *sitter.Node) *sitter.Node {
	for n != nil && n.Type() == "parenthesized_expression" {
		inner := Children(n)
		if len(inner) == 0 {
			return n
		}
		n = inner[len(inner)-1]
		if len(inner) > 1 {
			return n
		}
	}
	return n
}

// IsFunction reports whether n introduces a function scope.
func IsFunction(n *sitter.Node) bool {
	if n == nil {
		return false
	}
	switch n.Type() {
	case "function_declaration", "generator_function_declaration",
		"function", "function_expression", "generator_function",
		"arrow_function", "method_definition":
		return true
	}
	return false
}

// IsDeclaration reports whether n is a named function declaration statement.
func IsDeclaration(n *sitter.Node) bool {
	if n == nil {
		return false
	}
	t := n.Type()
	return t == "function_declaration" || t == "generator_function_declaration"
}

// Parameter is a formal parameter. Name is empty for destructuring patterns,
// which still occupy an index.
type Parameter struct {
	Name  string
	Index int
	Node  *sitter.Node
}

// Parameters lists the formal parameters of a function node.
func Parameters(fn *sitter.Node, src []byte) []Parameter {
	if p := Field(fn, "parameter"); p != nil {
		return []Parameter{{Name: parameterName(p, src), Index: 0, Node: p}}
	}
	list := Field(fn, "parameters")
	if list == nil {
		return nil
	}
	var out []Parameter
	for i, p := range Children(list) {
		out = append(out, Parameter{Name: parameterName(p, src), Index: i, Node: p})
	}
	return out
}

func parameterName(p *sitter.Node, src []byte) string {
	switch p.Type() {
	case "identifier", "shorthand_property_identifier_pattern":
		return Text(p, src)
	case "assignment_pattern":
		return parameterName(Require(p, "left"), src)
	case "rest_pattern", "rest_parameter":
		if c := FirstChild(p); c != nil {
			return parameterName(c, src)
		}
	}
	return ""
}

// FunctionName returns the declared name of a function node, if any.
func FunctionName(fn *sitter.Node, src []byte) string {
	if n := Field(fn, "name"); n != nil && n.Type() == "identifier" {
		return Text(n, src)
	}
	return ""
}
