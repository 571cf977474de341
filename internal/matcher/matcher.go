// Package matcher recognizes the call shapes of HTTP client APIs among the
// call sites of an analysis result and extracts the endpoints they request.
package matcher

import (
	"sync"

	"github.com/tavgar/endpointfinder/internal/analysis"
	"github.com/tavgar/endpointfinder/internal/resolve"
	"github.com/tavgar/endpointfinder/internal/symbolic"
)

// Endpoint is one URL extracted from a call site.
type Endpoint struct {
	Value   string          `json:"value"`
	Matcher string          `json:"matcher"`
	Call    symbolic.Span   `json:"call"`
	Unknown []symbolic.Span `json:"unknown,omitempty"`
}

// Call is a recorded invocation prepared for matching. Callee is the member
// path of the called expression with parameter placeholders substituted
// where their call sites pin them down.
type Call struct {
	Callee     []symbolic.Value
	Invocation *symbolic.FunctionInvocation
	Result     *analysis.Result
}

// Head returns the first segment of the callee path.
func (c Call) Head() symbolic.Value {
	if len(c.Callee) == 0 {
		return nil
	}
	return c.Callee[0]
}

// Verb returns the method name of a two segment callee such as $.get.
func (c Call) Verb() (string, bool) {
	if len(c.Callee) != 2 {
		return "", false
	}
	k, ok := c.Callee[1].(*symbolic.Constant)
	if !ok {
		return "", false
	}
	s, ok := k.Value.(string)
	return s, ok
}

// Arg returns the i-th actual argument.
func (c Call) Arg(i int) (symbolic.Value, bool) {
	if c.Invocation == nil || i < 0 || i >= len(c.Invocation.Args) {
		return nil, false
	}
	return c.Invocation.Args[i], true
}

// Matcher recognizes one API family.
type Matcher interface {
	// Name identifies the matcher in results and registries.
	Name() string
	// MayMatch is a cheap structural guard run on every call site.
	MayMatch(c Call) bool
	// Match extracts the endpoints of a call that passed the guard.
	Match(c Call, r *resolve.Resolver) []Endpoint
}

// Funcs adapts a pair of functions to the Matcher interface.
type Funcs struct {
	Label string
	May   func(Call) bool
	Get   func(Call, *resolve.Resolver) []Endpoint
}

func (f Funcs) Name() string { return f.Label }

func (f Funcs) MayMatch(c Call) bool { return f.May == nil || f.May(c) }

func (f Funcs) Match(c Call, r *resolve.Resolver) []Endpoint {
	if f.Get == nil {
		return nil
	}
	return f.Get(c, r)
}

var (
	pluginMu sync.Mutex
	plugins  []Matcher
)

// Register adds m to the matchers Default includes after the built-in
// ones. Plugin init functions should call this to make their matchers
// available.
func Register(m Matcher) {
	pluginMu.Lock()
	defer pluginMu.Unlock()
	plugins = append(plugins, m)
}

func registered() []Matcher {
	pluginMu.Lock()
	defer pluginMu.Unlock()
	return append([]Matcher(nil), plugins...)
}

// extract resolves argument index of c and turns every possible value into
// an endpoint. Object values yield their settingsKey property when one is
// given and are skipped otherwise.
func extract(c Call, r *resolve.Resolver, index int, settingsKey string) []Endpoint {
	arg, ok := c.Arg(index)
	if !ok {
		return nil
	}
	var out []Endpoint
	for _, tuple := range r.Resolve([]symbolic.Value{arg}) {
		v := tuple[0]
		if v.Kind == resolve.Object {
			if settingsKey == "" {
				continue
			}
			if v, ok = v.Field(settingsKey); !ok {
				continue
			}
		}
		out = append(out, Endpoint{Value: v.String(), Unknown: v.Unknown})
	}
	return out
}

// surface returns the source name of a callee head: the unqualified name of
// a reference or the parameter name of a placeholder.
func surface(v symbolic.Value) (string, bool) {
	switch x := v.(type) {
	case *symbolic.Reference:
		return symbolic.SurfaceName(x.Name), true
	case *symbolic.FunctionArgument:
		return x.Name, true
	}
	return "", false
}

func oneOf(s string, set []string) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}
