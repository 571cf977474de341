package symbolic

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEqualIgnoresSpans(t *testing.T) {
	a := &Concatenation{
		Span:  Span{Start: 0, End: 10},
		Left:  &Constant{Span: Span{0, 3}, Value: "/a"},
		Right: &Reference{Span: Span{6, 10}, Name: "G#b"},
	}
	b := &Concatenation{
		Left:  &Constant{Value: "/a"},
		Right: &Reference{Name: "G#b"},
	}
	assert.True(t, Equal(a, b))
	assert.False(t, Equal(a, &Concatenation{Left: b.Left, Right: &Reference{Name: "G#c"}}))
}

func TestEqualAcrossVariants(t *testing.T) {
	cases := []struct {
		name string
		a, b Value
		want bool
	}{
		{"constant kinds differ", &Constant{Value: "1"}, &Constant{Value: 1.0}, false},
		{"reference vs constant", &Reference{Name: "G#a"}, &Constant{Value: "G#a"}, false},
		{"members", &MemberExpression{Parts: []Value{&Reference{Name: "G#o"}, &Constant{Value: "x"}}},
			&MemberExpression{Parts: []Value{&Reference{Name: "G#o"}, &Constant{Value: "x"}}}, true},
		{"member length", &MemberExpression{Parts: []Value{&Reference{Name: "G#o"}}},
			&MemberExpression{Parts: []Value{&Reference{Name: "G#o"}, &Constant{Value: "x"}}}, false},
		{"arrays", &ArrayStructure{Values: []Value{&Constant{Value: "a"}}}, &ArrayStructure{Values: []Value{&Constant{Value: "a"}}}, true},
		{"function argument index", &FunctionArgument{Function: "G#f", Name: "a", Index: 0},
			&FunctionArgument{Function: "G#f", Name: "a", Index: 1}, false},
		{"global calls", &GlobalFunctionCall{Name: "XMLHttpRequest"}, &GlobalFunctionCall{Name: "XMLHttpRequest"}, true},
		{"local calls", &LocalFunctionCall{Function: "G#A"}, &LocalFunctionCall{Function: "G#B"}, false},
		{"object calls", &ObjectFunctionCall{Members: &MemberExpression{Parts: []Value{&Reference{Name: "G#a"}}}},
			&ObjectFunctionCall{Members: &MemberExpression{Parts: []Value{&Reference{Name: "G#a"}}}}, true},
		{"invocations", &FunctionInvocation{Callee: &Reference{Name: "G#f"}, Args: []Value{&Unknown{}}},
			&FunctionInvocation{Callee: &Reference{Name: "G#f"}, Args: []Value{&Unknown{}}}, true},
		{"unknowns", &Unknown{Span: Span{1, 2}}, &Unknown{}, true},
		{"nil", nil, nil, true},
		{"nil vs value", nil, &Unknown{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Equal(tc.a, tc.b))
			assert.Equal(t, tc.want, Equal(tc.b, tc.a))
		})
	}
}

func TestEqualObjectsIgnoreOrder(t *testing.T) {
	a := NewObject("")
	a.Set("url", &Constant{Value: "/a"})
	a.Set("type", &Constant{Value: "GET"})
	b := NewObject("")
	b.Set("type", &Constant{Value: "GET"})
	b.Set("url", &Constant{Value: "/a"})
	assert.True(t, Equal(a, b))

	b.Set("url", &Constant{Value: "/b"})
	assert.False(t, Equal(a, b))

	c := NewObject(Global("Other"))
	c.Set("url", &Constant{Value: "/a"})
	c.Set("type", &Constant{Value: "GET"})
	assert.False(t, Equal(a, c))
}

func TestObjectKeysKeepInsertionOrder(t *testing.T) {
	o := NewObject("")
	o.Set("b", &Unknown{})
	o.Set("a", &Unknown{})
	o.Set("b", &Constant{Value: "x"})
	assert.Equal(t, []string{"b", "a"}, o.Keys())
	assert.Equal(t, 2, o.Len())
	assert.Equal(t, DefaultObjectType, o.Type)
}

func TestHuman(t *testing.T) {
	obj := NewObject("")
	cases := map[string]struct {
		v    Value
		want string
	}{
		"constant":      {&Constant{Value: "/test"}, "/test"},
		"number":        {&Constant{Value: 2.0}, "2"},
		"reference":     {&Reference{Name: "G#FS0#a"}, "@{ref(a)}"},
		"concatenation": {&Concatenation{Left: &Constant{Value: "/x/"}, Right: &Reference{Name: "G#id"}}, "/x/@{ref(id)}"},
		"argument":      {&FunctionArgument{Function: "G#f", Name: "path", Index: 1}, "@{arg1(path)}"},
		"object":        {obj, "@{obj(G#Object)}"},
		"array":         {&ArrayStructure{Values: []Value{&Constant{Value: "a"}, &Constant{Value: "b"}}}, "@{[a,b]}"},
		"member":        {&MemberExpression{Parts: []Value{&Reference{Name: "G#$"}, &Constant{Value: "get"}}}, "@{ref($)}.get"},
		"global call":   {&GlobalFunctionCall{Name: "XMLHttpRequest"}, "XMLHttpRequest()"},
		"local call":    {&LocalFunctionCall{Function: "G#Api", Args: []Value{&Constant{Value: "/v1"}}}, "@{ref(Api)}(/v1)"},
		"invocation": {&FunctionInvocation{
			Callee: &Reference{Name: "G#f"},
			Args:   []Value{&Constant{Value: "a"}, &Unknown{}},
		}, "@{ref(f)}(a,@{UNKNOWN})"},
		"unknown": {&Unknown{}, "@{UNKNOWN}"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, Human(tc.v))
		})
	}
}

func TestFormatLiteral(t *testing.T) {
	assert.Equal(t, "null", FormatLiteral(nil))
	assert.Equal(t, "true", FormatLiteral(true))
	assert.Equal(t, "1.5", FormatLiteral(1.5))
	assert.Equal(t, "-3", FormatLiteral(-3.0))
	assert.Equal(t, "0", FormatLiteral(math.Copysign(0, -1)))
	assert.Equal(t, "NaN", FormatLiteral(math.NaN()))
	assert.Equal(t, "Infinity", FormatLiteral(math.Inf(1)))
	assert.Equal(t, "1e+21", FormatLiteral(1e21))
	assert.Equal(t, "1e-7", FormatLiteral(1e-7))
}

func TestQualifiedSymbols(t *testing.T) {
	fs := FunctionScope(GlobalScope, 2)
	assert.Equal(t, "G#FS2#", fs)
	assert.Equal(t, "G#FS2#LS3#", BlockScope(fs, 3, 0))
	assert.Equal(t, "G#FS2#LS3_1#", BlockScope(fs, 3, 1))

	q := Qualify(fs, "$http")
	assert.Equal(t, "$http", SurfaceName(q))
	assert.Equal(t, fs, ScopeOf(q))
	assert.Equal(t, 2, Depth(q))
	assert.Equal(t, 1, Depth(Global("x")))
	assert.Equal(t, "plain", SurfaceName("plain"))
}

func TestEqualSelfReferencingObjects(t *testing.T) {
	selfRef := func(url string) *ObjectStructure {
		o := NewObject("")
		o.Set("url", &Constant{Value: url})
		o.Set("self", o)
		return o
	}
	a, b := selfRef("/a"), selfRef("/a")
	assert.True(t, Equal(a, a))
	assert.True(t, Equal(a, b))
	assert.False(t, Equal(a, selfRef("/b")))

	// x.peer = y; y.peer = x
	x, y := NewObject(""), NewObject("")
	x.Set("peer", y)
	y.Set("peer", x)
	assert.True(t, Equal(x, y))
	assert.False(t, Equal(x, a))
	assert.Equal(t, "@{obj(G#Object)}", Human(x))
}

func TestHumanSharedSubterms(t *testing.T) {
	// s = "ab"; s += s, forty times over.
	var s Value = &Constant{Value: "ab"}
	for i := 0; i < 40; i++ {
		s = &Concatenation{Left: s, Right: s}
	}
	got := Human(s)
	assert.Len(t, got, MaxHumanLen+len(Truncation))
	assert.Equal(t, Truncation, got[MaxHumanLen:])
	assert.True(t, Equal(s, s))
}
