package analysis

import (
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"go.uber.org/zap"

	"github.com/tavgar/endpointfinder/internal/symbolic"
	"github.com/tavgar/endpointfinder/internal/syntax"
)

type walker struct {
	src    []byte
	result *Result
	logger *zap.Logger
}

// analyze walks one scope. fn is the owning function node or nil for the
// program and nested blocks. partial marks nested blocks, which neither
// hoist var declarations nor analyze functions themselves.
func (w *walker) analyze(block, fn *sitter.Node, parent *Scope, name string, partial bool) {
	stmts := w.statements(block)
	scope := parent.Child()
	for _, v := range w.declaredIn(stmts, !partial) {
		scope.Declare(v, symbolic.Qualify(name, v))
	}

	if fn != nil {
		owner := w.owner(fn, parent)
		for _, p := range syntax.Parameters(fn, w.src) {
			if p.Name == "" {
				continue
			}
			q := symbolic.Qualify(name, p.Name)
			scope.Declare(p.Name, q)
			w.result.Bind(q, &symbolic.FunctionArgument{
				Span:     syntax.SpanOf(p.Node),
				Function: owner,
				Name:     p.Name,
				Index:    p.Index,
			})
		}
	}

	ctx := &scopeContext{scope: scope, name: name}
	for i, st := range stmts {
		w.statement(ctx, st, i)
	}
	if partial {
		return
	}
	for i, f := range collectFunctions(stmts) {
		w.analyze(syntax.Require(f, "body"), f, scope, symbolic.FunctionScope(name, i), false)
	}
}

// statements returns the statement list of a scope body.
func (w *walker) statements(block *sitter.Node) []*sitter.Node {
	switch block.Type() {
	case "program", "statement_block", "class_body":
		return syntax.Children(block)
	case "switch_case", "switch_default":
		value := syntax.Field(block, "value")
		var out []*sitter.Node
		for _, c := range syntax.Children(block) {
			if value != nil && syntax.Same(c, value) {
				continue
			}
			out = append(out, c)
		}
		return out
	default:
		return []*sitter.Node{block}
	}
}

// declaredIn lists the names a scope declares up front. Function level
// scopes hoist var and function declarations out of nested blocks.
func (w *walker) declaredIn(stmts []*sitter.Node, hoist bool) []string {
	var names []string
	for _, st := range stmts {
		names = append(names, w.declared(st, hoist, true)...)
	}
	return names
}

func (w *walker) declared(st *sitter.Node, hoist, immediate bool) []string {
	switch st.Type() {
	case "variable_declaration":
		if hoist {
			return w.declaratorNames(st)
		}
	case "lexical_declaration":
		if immediate {
			return w.declaratorNames(st)
		}
	case "class_declaration":
		if immediate {
			if n := syntax.Field(st, "name"); n != nil {
				return []string{syntax.Text(n, w.src)}
			}
		}
	case "function_declaration", "generator_function_declaration":
		if hoist {
			if n := syntax.FunctionName(st, w.src); n != "" {
				return []string{n}
			}
		}
	case "export_statement":
		if d := syntax.Field(st, "declaration"); d != nil {
			return w.declared(d, hoist, immediate)
		}
	default:
		if !hoist {
			return nil
		}
		var names []string
		for _, h := range headers(st) {
			if h.Type() == "variable_declaration" {
				names = append(names, w.declaratorNames(h)...)
			}
		}
		for _, body := range controlBodies(st) {
			for _, inner := range w.statements(body) {
				names = append(names, w.declared(inner, true, false)...)
			}
		}
		return names
	}
	return nil
}

func (w *walker) declaratorNames(decl *sitter.Node) []string {
	var names []string
	for _, d := range syntax.Children(decl) {
		if d.Type() != "variable_declarator" {
			continue
		}
		names = append(names, w.patternNames(syntax.Require(d, "name"))...)
	}
	return names
}

func (w *walker) patternNames(p *sitter.Node) []string {
	switch p.Type() {
	case "identifier", "shorthand_property_identifier_pattern":
		return []string{syntax.Text(p, w.src)}
	case "pair_pattern":
		return w.patternNames(syntax.Require(p, "value"))
	case "assignment_pattern", "object_assignment_pattern":
		return w.patternNames(syntax.Require(p, "left"))
	}
	var names []string
	for _, c := range syntax.Children(p) {
		names = append(names, w.patternNames(c)...)
	}
	return names
}

func (w *walker) statement(ctx *scopeContext, st *sitter.Node, i int) {
	switch st.Type() {
	case "variable_declaration", "lexical_declaration":
		w.declaration(ctx, st)
	case "expression_statement", "return_statement", "throw_statement":
		if e := syntax.FirstChild(st); e != nil {
			w.effect(ctx, e)
		}
	case "export_statement":
		if d := syntax.Field(st, "declaration"); d != nil {
			w.statement(ctx, d, i)
		} else if v := syntax.Field(st, "value"); v != nil {
			w.effect(ctx, v)
		}
	case "function_declaration", "generator_function_declaration", "class_declaration",
		"import_statement", "empty_statement", "debugger_statement",
		"break_statement", "continue_statement":
	default:
		bodies := controlBodies(st)
		hs := headers(st)
		if bodies == nil && hs == nil {
			if strings.HasSuffix(st.Type(), "_statement") || st.Type() == "ERROR" {
				w.logger.Debug("skipping statement", zap.String("kind", st.Type()), zap.Uint32("offset", st.StartByte()))
				return
			}
			w.effect(ctx, st)
			return
		}
		for _, h := range hs {
			w.header(ctx, h)
		}
		for k, b := range bodies {
			w.analyze(b, nil, ctx.scope, symbolic.BlockScope(ctx.name, i, k), true)
		}
	}
}

// header reduces the non-body parts of a control statement in the
// enclosing scope.
func (w *walker) header(ctx *scopeContext, h *sitter.Node) {
	switch h.Type() {
	case "variable_declaration", "lexical_declaration":
		w.declaration(ctx, h)
	case "expression_statement":
		if e := syntax.FirstChild(h); e != nil {
			w.effect(ctx, e)
		}
	case "empty_statement", ";":
	default:
		w.effect(ctx, h)
	}
}

func (w *walker) declaration(ctx *scopeContext, decl *sitter.Node) {
	for _, d := range syntax.Children(decl) {
		if d.Type() != "variable_declarator" {
			continue
		}
		name := syntax.Require(d, "name")
		value := syntax.Field(d, "value")
		if value == nil {
			continue
		}
		w.bindPattern(ctx, name, w.reduce(ctx, value, true))
	}
}

// bindPattern binds the identifiers of a declaration target. Destructured
// names read through a known object structure, everything else is Unknown.
func (w *walker) bindPattern(ctx *scopeContext, p *sitter.Node, v symbolic.Value) {
	switch p.Type() {
	case "identifier":
		name := syntax.Text(p, w.src)
		q, ok := ctx.scope.Lookup(name)
		if !ok {
			q = ctx.qualify(name)
			ctx.scope.Declare(name, q)
		}
		w.result.Bind(q, v)
	case "object_pattern":
		obj, _ := v.(*symbolic.ObjectStructure)
		for _, c := range syntax.Children(p) {
			switch c.Type() {
			case "shorthand_property_identifier_pattern":
				w.bindPattern(ctx, c, property(obj, syntax.Text(c, w.src), c))
			case "pair_pattern":
				key, ok := w.propertyName(ctx, syntax.Require(c, "key"))
				var pv symbolic.Value = &symbolic.Unknown{Span: syntax.SpanOf(c)}
				if ok {
					pv = property(obj, key, c)
				}
				w.bindPattern(ctx, syntax.Require(c, "value"), pv)
			default:
				w.bindPattern(ctx, c, &symbolic.Unknown{Span: syntax.SpanOf(c)})
			}
		}
	case "shorthand_property_identifier_pattern":
		name := syntax.Text(p, w.src)
		q, ok := ctx.scope.Lookup(name)
		if !ok {
			q = ctx.qualify(name)
			ctx.scope.Declare(name, q)
		}
		w.result.Bind(q, v)
	case "assignment_pattern", "object_assignment_pattern":
		w.bindPattern(ctx, syntax.Require(p, "left"), v)
	default:
		for _, c := range syntax.Children(p) {
			w.bindPattern(ctx, c, &symbolic.Unknown{Span: syntax.SpanOf(c)})
		}
	}
}

func property(obj *symbolic.ObjectStructure, key string, at *sitter.Node) symbolic.Value {
	if obj != nil {
		if v, ok := obj.Get(key); ok {
			return v
		}
	}
	return &symbolic.Unknown{Span: syntax.SpanOf(at)}
}

// effect reduces an expression whose value is discarded.
func (w *walker) effect(ctx *scopeContext, e *sitter.Node) {
	switch e.Type() {
	case "parenthesized_expression":
		for _, c := range syntax.Children(e) {
			w.effect(ctx, c)
		}
	case "sequence_expression":
		for _, c := range flattenSequence(e) {
			w.effect(ctx, c)
		}
	case "binary_expression":
		w.effect(ctx, syntax.Require(e, "left"))
		w.effect(ctx, syntax.Require(e, "right"))
	case "ternary_expression":
		for _, c := range syntax.Children(e) {
			w.effect(ctx, c)
		}
	case "unary_expression", "await_expression":
		if c := syntax.FirstChild(e); c != nil {
			w.effect(ctx, c)
		}
	default:
		w.reduce(ctx, e, true)
	}
}

// controlBodies returns the nested bodies of a control statement, each
// analyzed as its own block scope.
func controlBodies(st *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	add := func(n *sitter.Node) {
		if n != nil {
			out = append(out, n)
		}
	}
	switch st.Type() {
	case "statement_block":
		add(st)
	case "if_statement":
		add(syntax.Field(st, "consequence"))
		if alt := syntax.Field(st, "alternative"); alt != nil {
			if alt.Type() == "else_clause" {
				add(syntax.FirstChild(alt))
			} else {
				add(alt)
			}
		}
	case "for_statement", "for_in_statement", "while_statement", "do_statement",
		"with_statement", "labeled_statement":
		add(syntax.Field(st, "body"))
	case "try_statement":
		add(syntax.Field(st, "body"))
		add(syntax.Field(syntax.Field(st, "handler"), "body"))
		add(syntax.Field(syntax.Field(st, "finalizer"), "body"))
	case "switch_statement":
		for _, c := range syntax.Children(syntax.Field(st, "body")) {
			add(c)
		}
	}
	return out
}

// headers returns the expressions a control statement evaluates outside its
// bodies.
func headers(st *sitter.Node) []*sitter.Node {
	switch st.Type() {
	case "if_statement", "while_statement", "do_statement", "for_statement",
		"for_in_statement", "switch_statement", "with_statement":
	default:
		return nil
	}
	var out []*sitter.Node
	for _, f := range []string{"initializer", "condition", "increment", "right", "value", "object"} {
		if n := syntax.Field(st, f); n != nil {
			out = append(out, n)
		}
	}
	return out
}

func flattenSequence(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for _, c := range syntax.Children(n) {
		if c.Type() == "sequence_expression" {
			out = append(out, flattenSequence(c)...)
			continue
		}
		out = append(out, c)
	}
	return out
}

// collectFunctions finds the functions nested in stmts without descending
// into function bodies.
func collectFunctions(stmts []*sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		if syntax.IsFunction(n) {
			out = append(out, n)
			return
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if c := n.NamedChild(i); c != nil {
				visit(c)
			}
		}
	}
	for _, st := range stmts {
		visit(st)
	}
	return out
}

// owner names the function a parameter belongs to. Declarations use their
// hoisted symbol; expressions, arrows and methods get a sentinel derived from
// their position, which is also the value they reduce to.
func (w *walker) owner(fn *sitter.Node, scope *Scope) string {
	if syntax.IsDeclaration(fn) {
		if name := syntax.FunctionName(fn, w.src); name != "" {
			if q, ok := scope.Lookup(name); ok {
				return q
			}
			return symbolic.Global(name)
		}
	}
	return anonymous(fn)
}

func anonymous(fn *sitter.Node) string {
	var outer []int
	for p := fn.Parent(); p != nil; p = p.Parent() {
		if syntax.IsFunction(p) {
			outer = append(outer, int(p.StartByte()))
		}
	}
	var b strings.Builder
	b.WriteString(symbolic.GlobalScope)
	for i := len(outer) - 1; i >= 0; i-- {
		b.WriteString("F" + strconv.Itoa(outer[i]) + symbolic.Separator)
	}
	b.WriteString("<anonymous@" + strconv.Itoa(int(fn.StartByte())) + ">")
	return b.String()
}
