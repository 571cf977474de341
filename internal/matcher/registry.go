package matcher

import (
	"go.uber.org/zap"

	"github.com/tavgar/endpointfinder/internal/analysis"
	"github.com/tavgar/endpointfinder/internal/resolve"
	"github.com/tavgar/endpointfinder/internal/symbolic"
)

// Registry is an ordered set of matchers. The zero value is not usable;
// create one with NewRegistry or Default.
type Registry struct {
	matchers []Matcher
	logger   *zap.Logger
}

// NewRegistry returns an empty registry. A nil logger disables logging.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{logger: logger.Named("matcher")}
}

// Builtin returns a registry holding only the native, jquery and angular
// matchers. Matchers added with Register are not included.
func Builtin(logger *zap.Logger) *Registry {
	r := NewRegistry(logger)
	r.Add(Native())
	r.Add(JQuery())
	r.Add(Angular())
	return r
}

// Default returns a registry holding the built-in matchers followed by
// those added with Register.
func Default(logger *zap.Logger) *Registry {
	r := Builtin(logger)
	for _, m := range registered() {
		r.Add(m)
	}
	return r
}

// Add appends m. A matcher with the same name is replaced in place.
func (r *Registry) Add(m Matcher) {
	for i, existing := range r.matchers {
		if existing.Name() == m.Name() {
			r.matchers[i] = m
			return
		}
	}
	r.matchers = append(r.matchers, m)
}

// Names lists the registered matchers in run order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.matchers))
	for i, m := range r.matchers {
		names[i] = m.Name()
	}
	return names
}

// Report is the outcome of one Run.
type Report struct {
	Endpoints []Endpoint
	// Truncated is set when an expansion ceiling cut resolution short.
	Truncated bool
}

// Run matches every call site of res against every matcher, in recorded
// order, and concatenates the extracted endpoints.
func (r *Registry) Run(res *analysis.Result, opts ...resolve.Option) Report {
	values := resolve.New(res, opts...)
	callees := resolve.New(res, append(opts[:len(opts):len(opts)], resolve.WithPassthrough())...)

	var rep Report
	for _, inv := range res.Invocations() {
		call := Call{Callee: normalize(inv.Callee, callees), Invocation: inv, Result: res}
		for _, m := range r.matchers {
			if !m.MayMatch(call) {
				continue
			}
			for _, ep := range m.Match(call, values) {
				ep.Matcher = m.Name()
				ep.Call = inv.Span
				rep.Endpoints = append(rep.Endpoints, ep)
			}
		}
	}
	rep.Truncated = values.Truncated() || callees.Truncated()
	r.logger.Debug("matching complete",
		zap.Int("invocations", len(res.Invocations())),
		zap.Int("endpoints", len(rep.Endpoints)),
		zap.Bool("truncated", rep.Truncated),
	)
	return rep
}

// normalize flattens a callee into a member path and replaces each segment
// that depends on a function parameter with what the call sites pass for
// it, when that is a single expression or literal.
func normalize(callee symbolic.Value, r *resolve.Resolver) []symbolic.Value {
	var parts []symbolic.Value
	if me, ok := callee.(*symbolic.MemberExpression); ok {
		parts = append(parts, me.Parts...)
	} else {
		parts = []symbolic.Value{callee}
	}
	for i, p := range parts {
		if !resolve.HasPlaceholders(p) {
			continue
		}
		v := r.Resolve([]symbolic.Value{p})[0][0]
		switch v.Kind {
		case resolve.Symbolic:
			parts[i] = v.Symbol
		case resolve.Literal:
			parts[i] = &symbolic.Constant{Span: p.Position(), Value: v.Literal}
		}
	}
	return parts
}
