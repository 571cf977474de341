package syntax

import (
	"context"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, code string) *Tree {
	t.Helper()
	tree, err := Parse(context.Background(), []byte(code))
	require.NoError(t, err)
	t.Cleanup(tree.Close)
	return tree
}

func find(n *sitter.Node, kind string) *sitter.Node {
	if n.Type() == kind {
		return n
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if found := find(n.NamedChild(i), kind); found != nil {
			return found
		}
	}
	return nil
}

func TestParseProgram(t *testing.T) {
	tree := parse(t, "var a = '/x';\n// note\nf(a);")
	root := tree.Root()
	assert.Equal(t, "program", root.Type())
	assert.False(t, tree.HasError())

	stmts := Children(root)
	require.Len(t, stmts, 2, "comments are skipped")
	assert.Equal(t, "variable_declaration", stmts[0].Type())
	assert.Equal(t, "expression_statement", stmts[1].Type())
	assert.Equal(t, Location{Line: 3, Column: 1}, LocationOf(stmts[1]))
}

func TestParseRecoversFromSyntaxErrors(t *testing.T) {
	tree := parse(t, "var = ;")
	assert.True(t, tree.HasError())
}

func TestStringValue(t *testing.T) {
	tree := parse(t, `x = "/a\"bA\x42";`)
	str := find(tree.Root(), "string")
	require.NotNil(t, str)
	assert.Equal(t, `/a"bAB`, StringValue(str, tree.Source()))
}

func TestUnescape(t *testing.T) {
	cases := map[string]string{
		`plain`:          "plain",
		`a\nb`:           "a\nb",
		`\'q\'`:          "'q'",
		`\u{1F600}`:      "\U0001F600",
		`\uD83D\uDE00`:   "\U0001F600",
		`\x2F`:           "/",
		`\xZZ`:           `\xZZ`,
		"line\\\ncont":   "linecont",
		`\0`:             "\x00",
		`trailing\`:      `trailing\`,
		`\/api\/v1`:      "/api/v1",
	}
	for in, want := range cases {
		assert.Equal(t, want, Unescape(in), in)
	}
}

func TestUnquote(t *testing.T) {
	s, ok := Unquote(`'/a'`)
	assert.True(t, ok)
	assert.Equal(t, "/a", s)

	s, ok = Unquote("`/b`")
	assert.True(t, ok)
	assert.Equal(t, "/b", s)

	_, ok = Unquote(`"/c'`)
	assert.False(t, ok)
}

func TestNumberValue(t *testing.T) {
	cases := map[string]float64{
		"42":    42,
		"1.5":   1.5,
		"0x1F":  31,
		"0b101": 5,
		"0o17":  15,
		"1_000": 1000,
		"1e3":   1000,
	}
	for in, want := range cases {
		got, ok := NumberValue(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := NumberValue("10n")
	assert.False(t, ok)
}

func TestParameters(t *testing.T) {
	tree := parse(t, "function f(a, b = 1, {c}, ...rest) {}")
	fn := find(tree.Root(), "function_declaration")
	require.NotNil(t, fn)
	assert.Equal(t, "f", FunctionName(fn, tree.Source()))

	var names []string
	for _, p := range Parameters(fn, tree.Source()) {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"a", "b", "", "rest"}, names)
}

func TestArrowParameter(t *testing.T) {
	tree := parse(t, "var g = x => x;")
	fn := find(tree.Root(), "arrow_function")
	require.NotNil(t, fn)
	params := Parameters(fn, tree.Source())
	require.Len(t, params, 1)
	assert.Equal(t, "x", params[0].Name)
	assert.True(t, IsFunction(fn))
	assert.False(t, IsDeclaration(fn))
}

func TestRequirePanicsWithMalformedNodeError(t *testing.T) {
	tree := parse(t, "f();")
	call := find(tree.Root(), "call_expression")
	require.NotNil(t, call)

	defer func() {
		r := recover()
		err, ok := r.(*MalformedNodeError)
		require.True(t, ok, "expected *MalformedNodeError, got %v", r)
		assert.Equal(t, "call_expression", err.Kind)
		assert.Equal(t, "nonexistent", err.Field)
	}()
	Require(call, "nonexistent")
}

func TestUnwrapAndLocation(t *testing.T) {
	tree := parse(t, "x = ((y));")
	paren := find(tree.Root(), "parenthesized_expression")
	require.NotNil(t, paren)
	inner := Unwrap(paren)
	assert.Equal(t, "identifier", inner.Type())
	assert.Equal(t, "y", Text(inner, tree.Source()))

	assert.Equal(t, Location{Line: 2, Column: 3}, LocationAt([]byte("ab\ncd"), 4))
}
