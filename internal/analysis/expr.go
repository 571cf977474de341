package analysis

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/tavgar/endpointfinder/internal/symbolic"
	"github.com/tavgar/endpointfinder/internal/syntax"
)

// reduce reduces an expression node to a symbolic value. With resolve set,
// identifiers and member reads are replaced by their current binding where
// one is known; otherwise they are returned as opaque references, which is
// how assignment targets are read. Every call met on the way is recorded.
func (w *walker) reduce(ctx *scopeContext, n *sitter.Node, resolve bool) symbolic.Value {
	span := syntax.SpanOf(n)
	switch n.Type() {
	case "string":
		return &symbolic.Constant{Span: span, Value: syntax.StringValue(n, w.src)}
	case "template_string":
		return w.template(ctx, n)
	case "number":
		if f, ok := syntax.NumberValue(syntax.Text(n, w.src)); ok {
			return &symbolic.Constant{Span: span, Value: f}
		}
		return &symbolic.Unknown{Span: span}
	case "true":
		return &symbolic.Constant{Span: span, Value: true}
	case "false":
		return &symbolic.Constant{Span: span, Value: false}
	case "null":
		return &symbolic.Constant{Span: span, Value: nil}
	case "undefined":
		return &symbolic.Unknown{Span: span}
	case "identifier", "this", "shorthand_property_identifier":
		return w.identifier(ctx, n, resolve)
	case "parenthesized_expression":
		return w.sequence(ctx, syntax.Children(n), resolve)
	case "sequence_expression":
		return w.sequence(ctx, flattenSequence(n), resolve)
	case "binary_expression":
		left := w.reduce(ctx, syntax.Require(n, "left"), true)
		right := w.reduce(ctx, syntax.Require(n, "right"), true)
		if syntax.Text(syntax.Require(n, "operator"), w.src) == "+" {
			return &symbolic.Concatenation{Span: span, Left: left, Right: right}
		}
		return &symbolic.Unknown{Span: span}
	case "member_expression", "subscript_expression":
		return w.member(ctx, n, resolve)
	case "new_expression":
		return w.construct(ctx, n)
	case "call_expression":
		return w.call(ctx, n)
	case "object":
		return w.object(ctx, n)
	case "array":
		values := make([]symbolic.Value, 0, n.NamedChildCount())
		for _, c := range syntax.Children(n) {
			values = append(values, w.reduce(ctx, c, true))
		}
		return &symbolic.ArrayStructure{Span: span, Values: values}
	case "assignment_expression", "augmented_assignment_expression":
		return w.assign(ctx, n)
	case "await_expression":
		if c := syntax.FirstChild(n); c != nil {
			return w.reduce(ctx, c, resolve)
		}
		return &symbolic.Unknown{Span: span}
	case "ternary_expression", "unary_expression", "update_expression",
		"spread_element", "yield_expression", "template_substitution":
		for _, c := range syntax.Children(n) {
			w.reduce(ctx, c, true)
		}
		return &symbolic.Unknown{Span: span}
	}
	if syntax.IsFunction(n) {
		return &symbolic.Reference{Span: span, Name: w.owner(n, ctx.scope)}
	}
	return &symbolic.Unknown{Span: span}
}

func (w *walker) identifier(ctx *scopeContext, n *sitter.Node, resolve bool) symbolic.Value {
	span := syntax.SpanOf(n)
	name := syntax.Text(n, w.src)
	if name == "undefined" {
		return &symbolic.Unknown{Span: span}
	}
	q, ok := ctx.scope.Lookup(name)
	if !ok {
		q = symbolic.Global(name)
		if !resolve {
			ctx.scope.Declare(name, q)
		}
	}
	if resolve {
		if v, bound := w.result.Lookup(q); bound {
			return v
		}
	}
	return &symbolic.Reference{Span: span, Name: q}
}

// sequence evaluates every expression and yields the last one.
func (w *walker) sequence(ctx *scopeContext, nodes []*sitter.Node, resolve bool) symbolic.Value {
	var last symbolic.Value = &symbolic.Unknown{}
	for i, c := range nodes {
		last = w.reduce(ctx, c, resolve || i < len(nodes)-1)
	}
	return last
}

// template turns a template literal into a left-leaning concatenation chain
// that starts with a string so numbers are not added.
func (w *walker) template(ctx *scopeContext, n *sitter.Node) symbolic.Value {
	span := syntax.SpanOf(n)
	start, end := int(n.StartByte())+1, int(n.EndByte())-1
	pos := start
	var parts []symbolic.Value
	fragment := func(from, to int) {
		if to > from {
			parts = append(parts, &symbolic.Constant{
				Span:  symbolic.Span{Start: from, End: to},
				Value: syntax.Unescape(string(w.src[from:to])),
			})
		}
	}
	for _, c := range syntax.Children(n) {
		if c.Type() != "template_substitution" {
			continue
		}
		fragment(pos, int(c.StartByte()))
		if e := syntax.FirstChild(c); e != nil {
			parts = append(parts, w.reduce(ctx, e, true))
		} else {
			parts = append(parts, &symbolic.Unknown{Span: syntax.SpanOf(c)})
		}
		pos = int(c.EndByte())
	}
	fragment(pos, end)

	if len(parts) == 0 {
		return &symbolic.Constant{Span: span, Value: ""}
	}
	if c, ok := parts[0].(*symbolic.Constant); !ok || !isString(c) {
		parts = append([]symbolic.Value{&symbolic.Constant{Span: symbolic.Span{Start: start, End: start}, Value: ""}}, parts...)
	}
	v := parts[0]
	for _, p := range parts[1:] {
		v = &symbolic.Concatenation{Span: span, Left: v, Right: p}
	}
	if len(parts) == 1 {
		if c, ok := v.(*symbolic.Constant); ok {
			return &symbolic.Constant{Span: span, Value: c.Value}
		}
	}
	return v
}

func isString(c *symbolic.Constant) bool {
	_, ok := c.Value.(string)
	return ok
}

// member flattens a property chain. Reads through known object structures
// and structural bindings are substituted when resolving.
func (w *walker) member(ctx *scopeContext, n *sitter.Node, resolve bool) symbolic.Value {
	me := &symbolic.MemberExpression{Span: syntax.SpanOf(n), Parts: w.flatten(ctx, n)}
	if !resolve {
		return me
	}
	if v, ok := readMember(me.Parts); ok {
		return v
	}
	if v, ok := w.result.LookupStructural(me); ok {
		return v
	}
	return me
}

func (w *walker) flatten(ctx *scopeContext, n *sitter.Node) []symbolic.Value {
	switch n.Type() {
	case "member_expression":
		obj := syntax.Require(n, "object")
		prop := syntax.Require(n, "property")
		return append(w.flatten(ctx, obj), &symbolic.Constant{Span: syntax.SpanOf(prop), Value: syntax.Text(prop, w.src)})
	case "subscript_expression":
		obj := syntax.Require(n, "object")
		idx := syntax.Require(n, "index")
		parts := w.flatten(ctx, obj)
		return append(parts, w.reduce(ctx, idx, true))
	case "parenthesized_expression":
		if inner := syntax.Unwrap(n); inner != n {
			return w.flatten(ctx, inner)
		}
	}
	return []symbolic.Value{w.reduce(ctx, n, true)}
}

// readMember follows parts through nested object structures.
func readMember(parts []symbolic.Value) (symbolic.Value, bool) {
	if len(parts) < 2 {
		return nil, false
	}
	cur := parts[0]
	for _, p := range parts[1:] {
		obj, ok := cur.(*symbolic.ObjectStructure)
		if !ok {
			return nil, false
		}
		key, ok := propertyKey(p)
		if !ok {
			return nil, false
		}
		if cur, ok = obj.Get(key); !ok {
			return nil, false
		}
	}
	return cur, true
}

// propertyKey folds a value used as a property name into its string form.
func propertyKey(v symbolic.Value) (string, bool) {
	switch x := v.(type) {
	case *symbolic.Constant:
		return symbolic.FormatLiteral(x.Value), true
	case *symbolic.Concatenation:
		l, ok := propertyKey(x.Left)
		if !ok {
			return "", false
		}
		r, ok := propertyKey(x.Right)
		if !ok {
			return "", false
		}
		return l + r, true
	}
	return "", false
}

func (w *walker) construct(ctx *scopeContext, n *sitter.Node) symbolic.Value {
	span := syntax.SpanOf(n)
	ctor := syntax.Require(n, "constructor")
	args := w.arguments(ctx, syntax.Field(n, "arguments"))
	switch ctor.Type() {
	case "identifier":
		name := syntax.Text(ctor, w.src)
		if q, ok := ctx.scope.Lookup(name); ok {
			return &symbolic.LocalFunctionCall{Span: span, Function: q, Args: args}
		}
		return &symbolic.GlobalFunctionCall{Span: span, Name: name, Args: args}
	case "member_expression", "subscript_expression":
		members := &symbolic.MemberExpression{Span: syntax.SpanOf(ctor), Parts: w.flatten(ctx, ctor)}
		return &symbolic.ObjectFunctionCall{Span: span, Members: members, Args: args}
	}
	w.reduce(ctx, ctor, true)
	return &symbolic.Unknown{Span: span}
}

func (w *walker) call(ctx *scopeContext, n *sitter.Node) symbolic.Value {
	callee := w.reduce(ctx, syntax.Require(n, "function"), true)
	args := w.arguments(ctx, syntax.Field(n, "arguments"))
	inv := &symbolic.FunctionInvocation{Span: syntax.SpanOf(n), Callee: callee, Args: args}
	w.result.Record(inv)
	return inv
}

func (w *walker) arguments(ctx *scopeContext, n *sitter.Node) []symbolic.Value {
	if n == nil {
		return nil
	}
	if n.Type() == "template_string" {
		return []symbolic.Value{w.reduce(ctx, n, true)}
	}
	children := syntax.Children(n)
	args := make([]symbolic.Value, 0, len(children))
	for _, c := range children {
		args = append(args, w.reduce(ctx, c, true))
	}
	return args
}

func (w *walker) object(ctx *scopeContext, n *sitter.Node) symbolic.Value {
	obj := symbolic.NewObject("")
	obj.Span = syntax.SpanOf(n)
	for _, c := range syntax.Children(n) {
		switch c.Type() {
		case "pair":
			key, ok := w.propertyName(ctx, syntax.Require(c, "key"))
			val := w.reduce(ctx, syntax.Require(c, "value"), true)
			if ok {
				obj.Set(key, val)
			}
		case "shorthand_property_identifier":
			obj.Set(syntax.Text(c, w.src), w.identifier(ctx, c, true))
		case "method_definition":
			if key, ok := w.propertyName(ctx, syntax.Require(c, "name")); ok {
				obj.Set(key, &symbolic.Reference{Span: syntax.SpanOf(c), Name: w.owner(c, ctx.scope)})
			}
		case "spread_element":
			inner := syntax.FirstChild(c)
			if inner == nil {
				continue
			}
			if src, ok := w.reduce(ctx, inner, true).(*symbolic.ObjectStructure); ok {
				for _, k := range src.Keys() {
					v, _ := src.Get(k)
					obj.Set(k, v)
				}
			}
		}
	}
	return obj
}

// propertyName returns the static name of an object key.
func (w *walker) propertyName(ctx *scopeContext, key *sitter.Node) (string, bool) {
	switch key.Type() {
	case "property_identifier", "private_property_identifier", "identifier":
		return syntax.Text(key, w.src), true
	case "string":
		return syntax.StringValue(key, w.src), true
	case "number":
		f, ok := syntax.NumberValue(syntax.Text(key, w.src))
		if !ok {
			return syntax.Text(key, w.src), true
		}
		return symbolic.FormatLiteral(f), true
	case "computed_property_name":
		if inner := syntax.FirstChild(key); inner != nil {
			return propertyKey(w.reduce(ctx, inner, true))
		}
	}
	return "", false
}
