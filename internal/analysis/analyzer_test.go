package analysis

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tavgar/endpointfinder/internal/symbolic"
	"github.com/tavgar/endpointfinder/internal/syntax"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var equalValues = cmp.Comparer(func(a, b symbolic.Value) bool { return symbolic.Equal(a, b) })

func analyze(t *testing.T, code string) *Result {
	t.Helper()
	res, err := NewAnalyzer(nil).AnalyzeSource(context.Background(), []byte(code))
	require.NoError(t, err)
	return res
}

func lookup(t *testing.T, res *Result, symbol string) symbolic.Value {
	t.Helper()
	v, ok := res.Lookup(symbol)
	require.True(t, ok, "no binding for %s", symbol)
	return v
}

func str(s string) symbolic.Value { return &symbolic.Constant{Value: s} }

func assertValue(t *testing.T, want, got symbolic.Value) {
	t.Helper()
	if diff := cmp.Diff(want, got, equalValues); diff != "" {
		t.Fatalf("value mismatch (-want +got):\n%s\ngot %s", diff, symbolic.Human(got))
	}
}

func TestTopLevelBindings(t *testing.T) {
	res := analyze(t, `var a = "/x"; let b = 2; const c = true; d = null;`)
	assertValue(t, str("/x"), lookup(t, res, "G#a"))
	assertValue(t, &symbolic.Constant{Value: 2.0}, lookup(t, res, "G#b"))
	assertValue(t, &symbolic.Constant{Value: true}, lookup(t, res, "G#c"))
	assertValue(t, &symbolic.Constant{Value: nil}, lookup(t, res, "G#d"))
}

func TestConcatenationAndReassignment(t *testing.T) {
	res := analyze(t, `
		var base = "/api";
		var url = base + "/users";
		url = url + "/1";
	`)
	want := &symbolic.Concatenation{
		Left:  &symbolic.Concatenation{Left: str("/api"), Right: str("/users")},
		Right: str("/1"),
	}
	assertValue(t, want, lookup(t, res, "G#url"))
}

func TestCompoundAssignment(t *testing.T) {
	res := analyze(t, `var a = "/test"; a += "abc"; var n = 1; n -= 1;`)
	assertValue(t, &symbolic.Concatenation{Left: str("/test"), Right: str("abc")}, lookup(t, res, "G#a"))
	_, unknown := lookup(t, res, "G#n").(*symbolic.Unknown)
	assert.True(t, unknown)
}

func TestFunctionParametersBecomePlaceholders(t *testing.T) {
	res := analyze(t, `function f(a, b) { var c = a + b; }`)
	assertValue(t, &symbolic.FunctionArgument{Function: "G#f", Name: "a", Index: 0}, lookup(t, res, "G#FS0#a"))
	assertValue(t, &symbolic.FunctionArgument{Function: "G#f", Name: "b", Index: 1}, lookup(t, res, "G#FS0#b"))
	assertValue(t, &symbolic.Concatenation{
		Left:  &symbolic.FunctionArgument{Function: "G#f", Name: "a", Index: 0},
		Right: &symbolic.FunctionArgument{Function: "G#f", Name: "b", Index: 1},
	}, lookup(t, res, "G#FS0#c"))
}

func TestNestedFunctionScopes(t *testing.T) {
	res := analyze(t, `
		function outer(a) {
			function inner(a) { var x = a; }
			var y = a;
		}
	`)
	assertValue(t, &symbolic.FunctionArgument{Function: "G#outer", Name: "a"}, lookup(t, res, "G#FS0#y"))
	assertValue(t, &symbolic.FunctionArgument{Function: "G#FS0#inner", Name: "a"}, lookup(t, res, "G#FS0#FS0#x"))
}

func TestBlockScopes(t *testing.T) {
	res := analyze(t, `
		if (ok) { let inner = "/block"; var hoisted = "/var"; } else { let other = 1; }
		try { let t = 1; } catch (e) { let c = 2; }
	`)
	assertValue(t, str("/block"), lookup(t, res, "G#LS0#inner"))
	assertValue(t, str("/var"), lookup(t, res, "G#hoisted"))
	assertValue(t, &symbolic.Constant{Value: 1.0}, lookup(t, res, "G#LS0_1#other"))
	assertValue(t, &symbolic.Constant{Value: 2.0}, lookup(t, res, "G#LS1_1#c"))
	_, leaked := res.Lookup("G#inner")
	assert.False(t, leaked)
}

func TestUnboundIdentifiersAreGlobalReferences(t *testing.T) {
	res := analyze(t, `var a = $http; function f() { var b = later; } later = "/x";`)
	assertValue(t, &symbolic.Reference{Name: "G#$http"}, lookup(t, res, "G#a"))
	// f's body is analyzed after the top level, so the implicit global is known.
	assertValue(t, str("/x"), lookup(t, res, "G#FS0#b"))
}

func TestInvocationsInEvaluationOrder(t *testing.T) {
	res := analyze(t, `f(g("/a"), 1); h();`)
	invs := res.Invocations()
	require.Len(t, invs, 3)
	assert.Equal(t, "@{ref(g)}(/a)", symbolic.Human(invs[0]))
	assert.Equal(t, "@{ref(f)}(@{ref(g)}(/a),1)", symbolic.Human(invs[1]))
	assert.Equal(t, "@{ref(h)}()", symbolic.Human(invs[2]))
}

func TestCallsInControlFlowAndReturns(t *testing.T) {
	res := analyze(t, `
		function load() { return $http.get("/r"); }
		if (check("/c")) { run("/body"); }
		for (var i = next("/i"); i; i++) {}
		ok && go("/and");
		cond ? yes("/y") : no("/n");
	`)
	var seen []string
	for _, inv := range res.Invocations() {
		seen = append(seen, symbolic.Human(inv))
	}
	assert.ElementsMatch(t, []string{
		"@{ref(check)}(/c)", "@{ref(run)}(/body)", "@{ref(next)}(/i)",
		"@{ref(go)}(/and)", "@{ref(yes)}(/y)", "@{ref(no)}(/n)",
		"@{ref($http)}.get(/r)",
	}, seen)
}

func TestObjectStructureTracking(t *testing.T) {
	res := analyze(t, `
		var o = {url: "/a", "quoted": 1, 2: "two", nested: {}};
		o.extra = "/b";
		o["dyn" + "amic"] = "/c";
		o.nested.deep = "/d";
		o.missing.deep = "/e";
		var read = o.nested.deep;
	`)
	obj, ok := lookup(t, res, "G#o").(*symbolic.ObjectStructure)
	require.True(t, ok)
	assert.Equal(t, []string{"url", "quoted", "2", "nested", "extra", "dynamic"}, obj.Keys())
	v, _ := obj.Get("extra")
	assertValue(t, str("/b"), v)
	v, _ = obj.Get("dynamic")
	assertValue(t, str("/c"), v)
	assertValue(t, str("/d"), lookup(t, res, "G#read"))

	var structural []Binding
	for _, b := range res.Bindings() {
		if b.Key != nil {
			structural = append(structural, b)
		}
	}
	require.Len(t, structural, 1, "an assignment through an unknown property is stored structurally")
	assertValue(t, str("/e"), structural[0].Value)
}

func TestStructuralBindingsReplaceEqualKeys(t *testing.T) {
	res := analyze(t, `this.url = "/one"; this.url = "/two"; var u = this.url;`)
	count := 0
	for _, b := range res.Bindings() {
		if b.Key != nil {
			count++
			assertValue(t, str("/two"), b.Value)
		}
	}
	assert.Equal(t, 1, count)
	assertValue(t, str("/two"), lookup(t, res, "G#u"))
}

func TestNewExpressions(t *testing.T) {
	res := analyze(t, `
		function Local() {}
		var a = new XMLHttpRequest();
		var b = new Local("/x");
		var c = new window.Thing();
	`)
	assertValue(t, &symbolic.GlobalFunctionCall{Name: "XMLHttpRequest", Args: []symbolic.Value{}}, lookup(t, res, "G#a"))
	assertValue(t, &symbolic.LocalFunctionCall{Function: "G#Local", Args: []symbolic.Value{str("/x")}}, lookup(t, res, "G#b"))
	assertValue(t, &symbolic.ObjectFunctionCall{
		Members: &symbolic.MemberExpression{Parts: []symbolic.Value{&symbolic.Reference{Name: "G#window"}, str("Thing")}},
		Args:    []symbolic.Value{},
	}, lookup(t, res, "G#c"))
}

func TestTemplateLiterals(t *testing.T) {
	res := analyze(t, "var id = 7; var a = `/plain`; var b = `/users/${id}/posts`; var c = `${1}${2}`;")
	assertValue(t, str("/plain"), lookup(t, res, "G#a"))
	assertValue(t, &symbolic.Concatenation{
		Left:  &symbolic.Concatenation{Left: str("/users/"), Right: &symbolic.Constant{Value: 7.0}},
		Right: str("/posts"),
	}, lookup(t, res, "G#b"))
	assertValue(t, &symbolic.Concatenation{
		Left:  &symbolic.Concatenation{Left: str(""), Right: &symbolic.Constant{Value: 1.0}},
		Right: &symbolic.Constant{Value: 2.0},
	}, lookup(t, res, "G#c"))
}

func TestInjectRecordsSyntheticInvocation(t *testing.T) {
	res := analyze(t, `
		function Ctrl($http, api) {}
		Ctrl.$inject = ["$http", "api"];
		app.Svc.$inject = ["$q"];
		Bad.$inject = [dynamic];
	`)
	invs := res.Invocations()
	require.Len(t, invs, 2)
	assertValue(t, &symbolic.FunctionInvocation{
		Callee: &symbolic.Reference{Name: "G#Ctrl"},
		Args:   []symbolic.Value{&symbolic.Reference{Name: "G#$http"}, &symbolic.Reference{Name: "G#api"}},
	}, invs[0])
	assertValue(t, &symbolic.FunctionInvocation{
		Callee: &symbolic.MemberExpression{Parts: []symbolic.Value{&symbolic.Reference{Name: "G#app"}, str("Svc")}},
		Args:   []symbolic.Value{&symbolic.Reference{Name: "G#$q"}},
	}, invs[1])
}

func TestFunctionExpressionsCorrelateWithCallSites(t *testing.T) {
	res := analyze(t, `
		var f = function (a) {};
		f("/named");
		(function (b) {})("/iife");
		var g = (c) => c;
	`)
	fRef, ok := lookup(t, res, "G#f").(*symbolic.Reference)
	require.True(t, ok)
	arg, ok := lookup(t, res, "G#FS0#a").(*symbolic.FunctionArgument)
	require.True(t, ok)
	assert.Equal(t, fRef.Name, arg.Function)

	invs := res.Invocations()
	require.Len(t, invs, 2)
	assertValue(t, &symbolic.Reference{Name: arg.Function}, invs[0].Callee)

	iife, ok := lookup(t, res, "G#FS1#b").(*symbolic.FunctionArgument)
	require.True(t, ok)
	assertValue(t, &symbolic.Reference{Name: iife.Function}, invs[1].Callee)

	_, ok = lookup(t, res, "G#FS2#c").(*symbolic.FunctionArgument)
	assert.True(t, ok)
}

func TestDestructuringDeclarations(t *testing.T) {
	res := analyze(t, `var cfg = {url: "/cfg", other: 1}; var {url, other: renamed, missing} = cfg;`)
	assertValue(t, str("/cfg"), lookup(t, res, "G#url"))
	assertValue(t, &symbolic.Constant{Value: 1.0}, lookup(t, res, "G#renamed"))
	_, unknown := lookup(t, res, "G#missing").(*symbolic.Unknown)
	assert.True(t, unknown)
}

func TestSequenceExpressions(t *testing.T) {
	res := analyze(t, `var a, b; a = "/test", b = a + "678"; var c = (a, "/last");`)
	assertValue(t, &symbolic.Concatenation{Left: str("/test"), Right: str("678")}, lookup(t, res, "G#b"))
	assertValue(t, str("/last"), lookup(t, res, "G#c"))
}

func TestAnalysisIsDeterministic(t *testing.T) {
	code := `
		var o = {a: "/x"}; o.b = "/y";
		function f(p) { $.get(o.a + p); }
		f("/1"); f("/2");
		(function(){ var q = new XMLHttpRequest(); q.open("GET", "/z"); })();
	`
	render := func(res *Result) []string {
		var out []string
		for _, b := range res.Bindings() {
			out = append(out, b.Symbol+"="+symbolic.Human(b.Value))
		}
		for _, inv := range res.Invocations() {
			out = append(out, symbolic.Human(inv))
		}
		return out
	}
	first := render(analyze(t, code))
	for i := 0; i < 5; i++ {
		if diff := cmp.Diff(first, render(analyze(t, code))); diff != "" {
			t.Fatalf("run %d differs:\n%s", i, diff)
		}
	}
}

func TestSyntaxErrorsDoNotAbort(t *testing.T) {
	res := analyze(t, `var a = "/ok"; } f(a);`)
	assertValue(t, str("/ok"), lookup(t, res, "G#a"))
}

// walkGuarded runs walk the way Analyze runs the tree walk.
func walkGuarded(walk func()) (err error) {
	defer recoverMalformed(&err)
	walk()
	return nil
}

func TestMalformedNodesBecomeErrors(t *testing.T) {
	bad := &syntax.MalformedNodeError{Kind: "call_expression", Field: "function", Offset: 7}

	err := walkGuarded(func() { panic(bad) })
	require.Error(t, err)
	var malformed *syntax.MalformedNodeError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, bad, malformed)

	err = walkGuarded(func() { panic(fmt.Errorf("walk: %w", bad)) })
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, "function", malformed.Field)

	assert.NoError(t, walkGuarded(func() {}))
}

func TestOtherPanicsPropagate(t *testing.T) {
	assert.PanicsWithValue(t, "boom", func() {
		_ = walkGuarded(func() { panic("boom") })
	})
	plain := errors.New("not malformed")
	assert.PanicsWithError(t, plain.Error(), func() {
		_ = walkGuarded(func() { panic(plain) })
	})
}
