// Package resolve evaluates symbolic expressions into every concrete value
// they can take, expanding function parameters through the call sites
// recorded for their function.
package resolve

import (
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/tavgar/endpointfinder/internal/analysis"
	"github.com/tavgar/endpointfinder/internal/symbolic"
)

// Limits bounds the expansion of a single Resolve call.
type Limits struct {
	// MaxDepth caps nested call-site expansion. Placeholders still
	// unresolved at that depth evaluate to the placeholder token.
	MaxDepth int `mapstructure:"max_depth"`
	// MaxResults caps the number of tuples returned.
	MaxResults int `mapstructure:"max_results"`
	// MaxLength caps the length of an evaluated string. Longer strings are
	// cut and end with the placeholder token.
	MaxLength int `mapstructure:"max_length"`
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{MaxDepth: 16, MaxResults: 512, MaxLength: 8192}
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLimits overrides the expansion ceilings. Non-positive fields keep
// their defaults.
func WithLimits(l Limits) Option {
	return func(r *Resolver) {
		if l.MaxDepth > 0 {
			r.limits.MaxDepth = l.MaxDepth
		}
		if l.MaxResults > 0 {
			r.limits.MaxResults = l.MaxResults
		}
		if l.MaxLength > 0 {
			r.limits.MaxLength = l.MaxLength
		}
	}
}

// WithPassthrough keeps expressions that cannot be evaluated as Symbolic
// values instead of replacing them with the placeholder.
func WithPassthrough() Option {
	return func(r *Resolver) { r.passthrough = true }
}

// WithLogger sets the logger used to report truncated expansions.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l.Named("resolve")
		}
	}
}

// Resolver expands expressions against one analysis result. It never
// modifies the result.
type Resolver struct {
	result      *analysis.Result
	limits      Limits
	passthrough bool
	logger      *zap.Logger
	truncated   bool
}

// New returns a Resolver reading call sites from result.
func New(result *analysis.Result, opts ...Option) *Resolver {
	r := &Resolver{result: result, limits: DefaultLimits(), logger: zap.NewNop()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Truncated reports whether any resolution so far hit a ceiling.
func (r *Resolver) Truncated() bool { return r.truncated }

// Resolve returns every tuple of values args can evaluate to, one tuple per
// combination of call sites reaching them. The result always holds at least
// one tuple.
func (r *Resolver) Resolve(args []symbolic.Value) [][]Value {
	return r.resolve(args, 0)
}

// binding maps the parameter indices of one function to evaluated actuals.
type binding struct {
	function string
	indices  []int
	values   []Value
}

func (b *binding) lookup(arg *symbolic.FunctionArgument) (Value, bool) {
	if b == nil || arg.Function != b.function {
		return Value{}, false
	}
	for k, i := range b.indices {
		if i == arg.Index {
			return b.values[k], true
		}
	}
	return Value{}, false
}

func (r *Resolver) resolve(args []symbolic.Value, depth int) [][]Value {
	params := gather(args)
	if len(params) == 0 {
		return [][]Value{r.evaluate(args, nil)}
	}
	if depth >= r.limits.MaxDepth {
		r.truncate("max_depth", depth)
		return [][]Value{r.evaluate(args, nil)}
	}

	// Deeper functions first: their call sites are more specific.
	sort.SliceStable(params, func(i, j int) bool {
		return symbolic.Depth(params[i].Function) > symbolic.Depth(params[j].Function)
	})
	target := params[0].Function
	var indices []int
	var firsts []*symbolic.FunctionArgument
	for _, p := range params {
		if p.Function != target || contains(indices, p.Index) {
			continue
		}
		indices = append(indices, p.Index)
		firsts = append(firsts, p)
	}

	bindings := r.callSites(target, indices, depth)
	if len(bindings) == 0 {
		// Never called: the parameter keeps an unknown value.
		values := make([]Value, len(indices))
		for k, p := range firsts {
			if r.passthrough {
				values[k] = Value{Kind: Symbolic, Symbol: p}
			} else {
				values[k] = opaque(p.Span)
			}
		}
		bindings = []*binding{{function: target, indices: indices, values: values}}
	}

	var out [][]Value
	for _, b := range bindings {
		e := r.evaluation(b)
		tuple := make([]Value, len(args))
		pending := make([]symbolic.Value, len(args))
		finished := true
		for i, a := range args {
			v, sym, done := e.substitute(a)
			tuple[i], pending[i] = v, sym
			finished = finished && done
		}
		if finished {
			out = append(out, tuple)
		} else {
			carried := make([][]symbolic.Span, len(args))
			for i := range args {
				carried[i] = settled(tuple[i].Unknown, pending[i])
			}
			for _, again := range r.resolve(pending, depth+1) {
				for i := range again {
					again[i].Unknown = mergeSpans(carried[i], again[i].Unknown)
				}
				out = append(out, again)
			}
		}
		if len(out) >= r.limits.MaxResults {
			break
		}
	}
	if len(out) > r.limits.MaxResults {
		r.truncate("max_results", depth)
		out = out[:r.limits.MaxResults]
	}
	return out
}

// callSites evaluates the actual arguments of every recorded call of
// function, one binding per resolved tuple.
func (r *Resolver) callSites(function string, indices []int, depth int) []*binding {
	var out []*binding
	for _, inv := range r.result.Invocations() {
		ref, ok := inv.Callee.(*symbolic.Reference)
		if !ok || ref.Name != function {
			continue
		}
		actuals := make([]symbolic.Value, len(indices))
		for k, i := range indices {
			if i < len(inv.Args) {
				actuals[k] = inv.Args[i]
			} else {
				actuals[k] = &symbolic.Unknown{Span: inv.Span}
			}
		}
		for _, values := range r.resolve(actuals, depth+1) {
			out = append(out, &binding{function: function, indices: indices, values: values})
		}
		if len(out) >= r.limits.MaxResults {
			r.truncate("max_results", depth)
			return out[:r.limits.MaxResults]
		}
	}
	return out
}

func (r *Resolver) evaluate(args []symbolic.Value, b *binding) []Value {
	e := r.evaluation(b)
	tuple := make([]Value, len(args))
	for i, a := range args {
		tuple[i], _, _ = e.substitute(a)
	}
	return tuple
}

// substitution is the outcome of substituting one expression: its value,
// the partly substituted symbolic form and whether no other parameter was
// left behind.
type substitution struct {
	value    Value
	symbol   symbolic.Value
	finished bool
}

// evaluation substitutes one binding into expressions. Shared subterms are
// evaluated once, and an object reached again through its own properties
// evaluates to the placeholder.
type evaluation struct {
	r      *Resolver
	b      *binding
	done   map[symbolic.Value]substitution
	active map[*symbolic.ObjectStructure]bool
}

func (r *Resolver) evaluation(b *binding) *evaluation {
	return &evaluation{
		r:      r,
		b:      b,
		done:   make(map[symbolic.Value]substitution),
		active: make(map[*symbolic.ObjectStructure]bool),
	}
}

func (e *evaluation) remember(v symbolic.Value, s substitution) (Value, symbolic.Value, bool) {
	e.done[v] = s
	return s.value, s.symbol, s.finished
}

// substitute evaluates v, replacing the parameters e binds.
func (e *evaluation) substitute(v symbolic.Value) (Value, symbolic.Value, bool) {
	if s, ok := e.done[v]; ok {
		return s.value, s.symbol, s.finished
	}
	switch x := v.(type) {
	case nil:
		return opaque(), &symbolic.Unknown{}, true
	case *symbolic.Constant:
		return literal(x.Value), x, true
	case *symbolic.Concatenation:
		l, ls, lok := e.substitute(x.Left)
		if e.r.oversized(l) {
			return e.remember(x, e.r.clip(l, x.Span))
		}
		rv, rs, rok := e.substitute(x.Right)
		joined := concat(l, rv)
		if e.r.oversized(joined) {
			return e.remember(x, e.r.clip(joined, x.Span))
		}
		return e.remember(x, substitution{
			value:    joined,
			symbol:   &symbolic.Concatenation{Span: x.Span, Left: ls, Right: rs},
			finished: lok && rok,
		})
	case *symbolic.ObjectStructure:
		if e.active[x] {
			return opaque(x.Span), &symbolic.Unknown{Span: x.Span}, true
		}
		e.active[x] = true
		defer delete(e.active, x)

		out := Value{Kind: Object, Type: x.Type}
		sym := symbolic.NewObject(x.Type)
		sym.Span = x.Span
		finished := true
		for _, k := range x.Keys() {
			pv, _ := x.Get(k)
			fv, fs, ok := e.substitute(pv)
			out.Fields = append(out.Fields, Field{Name: k, Value: fv})
			out.Unknown = mergeSpans(fv.Unknown, out.Unknown)
			sym.Set(k, fs)
			finished = finished && ok
		}
		if finished {
			out.Symbol = sym
		}
		return e.remember(x, substitution{value: out, symbol: sym, finished: finished})
	case *symbolic.FunctionArgument:
		if val, ok := e.b.lookup(x); ok {
			if val.Kind == Opaque && len(val.Unknown) == 0 {
				val.Unknown = []symbolic.Span{x.Span}
			}
			return val, toSymbol(val, x.Span), true
		}
		if e.r.passthrough {
			return Value{Kind: Symbolic, Symbol: x}, x, false
		}
		return opaque(x.Span), x, false
	case *symbolic.Unknown:
		return opaque(x.Span), x, true
	case *symbolic.Reference, *symbolic.MemberExpression, *symbolic.ArrayStructure,
		*symbolic.GlobalFunctionCall, *symbolic.LocalFunctionCall, *symbolic.ObjectFunctionCall,
		*symbolic.FunctionInvocation:
		if e.r.passthrough {
			return Value{Kind: Symbolic, Symbol: x}, x, true
		}
		return opaque(x.Position()), x, true
	default:
		panic("resolve: unhandled symbolic variant")
	}
}

// oversized reports whether v is a string longer than MaxLength.
func (r *Resolver) oversized(v Value) bool {
	s, ok := v.Literal.(string)
	return v.Kind == Literal && ok && len(s) > r.limits.MaxLength
}

// clip cuts an oversized string to MaxLength and ends it with the
// placeholder for the range at. Clipping a clipped string is a no-op.
func (r *Resolver) clip(v Value, at symbolic.Span) substitution {
	s := v.Literal.(string)
	n := r.limits.MaxLength
	if len(s) == n+len(symbolic.Placeholder) && strings.HasSuffix(s, symbolic.Placeholder) {
		return substitution{value: v, symbol: toSymbol(v, at), finished: true}
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	r.truncate("max_length", 0)
	cut := concat(Value{Kind: Literal, Literal: s[:n], Unknown: v.Unknown}, opaque(at))
	return substitution{value: cut, symbol: toSymbol(cut, at), finished: true}
}

func (r *Resolver) truncate(reason string, depth int) {
	if !r.truncated {
		r.logger.Debug("expansion truncated", zap.String("reason", reason), zap.Int("depth", depth))
	}
	r.truncated = true
}

// HasPlaceholders reports whether any of vs depends on a function parameter.
func HasPlaceholders(vs ...symbolic.Value) bool {
	return len(gather(vs)) > 0
}

// gather collects the parameter placeholders reachable from args through
// concatenations and object structures. Each compound node is visited once.
func gather(args []symbolic.Value) []*symbolic.FunctionArgument {
	g := gatherer{seen: make(map[symbolic.Value]bool)}
	for _, a := range args {
		g.visit(a)
	}
	return g.out
}

type gatherer struct {
	seen map[symbolic.Value]bool
	out  []*symbolic.FunctionArgument
}

func (g *gatherer) visit(v symbolic.Value) {
	switch x := v.(type) {
	case *symbolic.FunctionArgument:
		g.out = append(g.out, x)
	case *symbolic.Concatenation:
		if g.seen[x] {
			return
		}
		g.seen[x] = true
		g.visit(x.Left)
		g.visit(x.Right)
	case *symbolic.ObjectStructure:
		if g.seen[x] {
			return
		}
		g.seen[x] = true
		for _, k := range x.Keys() {
			pv, _ := x.Get(k)
			g.visit(pv)
		}
	}
}

func contains(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

// settled drops from spans the ranges of parameters still pending in v,
// which the next expansion step may resolve.
func settled(spans []symbolic.Span, v symbolic.Value) []symbolic.Span {
	pending := gather([]symbolic.Value{v})
	var out []symbolic.Span
	for _, s := range spans {
		open := false
		for _, p := range pending {
			if p.Span == s {
				open = true
				break
			}
		}
		if !open {
			out = append(out, s)
		}
	}
	return out
}

func mergeSpans(a, b []symbolic.Span) []symbolic.Span {
	if len(a) == 0 {
		return b
	}
	out := append([]symbolic.Span(nil), b...)
	for _, s := range a {
		dup := false
		for _, t := range out {
			if s == t {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, s)
		}
	}
	return out
}
