package analysis

import "github.com/tavgar/endpointfinder/internal/symbolic"

// Binding is one entry of the binding table. Exactly one of Symbol and Key
// is set.
type Binding struct {
	Symbol string
	Key    symbolic.Value
	Value  symbolic.Value
}

// Result accumulates every binding and call site of one source unit. All
// scopes of the unit write into the same Result.
type Result struct {
	symbols     map[string]symbolic.Value
	order       []string
	structural  []Binding
	invocations []*symbolic.FunctionInvocation
}

// NewResult returns an empty result.
func NewResult() *Result {
	return &Result{symbols: make(map[string]symbolic.Value)}
}

// Bind records v as the latest value of the qualified symbol.
func (r *Result) Bind(symbol string, v symbolic.Value) {
	if _, ok := r.symbols[symbol]; !ok {
		r.order = append(r.order, symbol)
	}
	r.symbols[symbol] = v
}

// Lookup returns the latest value bound to symbol.
func (r *Result) Lookup(symbol string) (symbolic.Value, bool) {
	v, ok := r.symbols[symbol]
	return v, ok
}

// BindStructural records v under a structural key. A binding whose key is
// structurally equal is replaced in place.
func (r *Result) BindStructural(key, v symbolic.Value) {
	for i := range r.structural {
		if symbolic.Equal(r.structural[i].Key, key) {
			r.structural[i].Value = v
			return
		}
	}
	r.structural = append(r.structural, Binding{Key: key, Value: v})
}

// LookupStructural returns the value bound under a key equal to key.
func (r *Result) LookupStructural(key symbolic.Value) (symbolic.Value, bool) {
	for _, b := range r.structural {
		if symbolic.Equal(b.Key, key) {
			return b.Value, true
		}
	}
	return nil, false
}

// Record appends a call site.
func (r *Result) Record(inv *symbolic.FunctionInvocation) {
	r.invocations = append(r.invocations, inv)
}

// Invocations returns the call sites in the order they were analyzed.
func (r *Result) Invocations() []*symbolic.FunctionInvocation {
	return r.invocations
}

// Bindings lists symbol bindings in first write order followed by the
// structural ones.
func (r *Result) Bindings() []Binding {
	out := make([]Binding, 0, len(r.order)+len(r.structural))
	for _, s := range r.order {
		out = append(out, Binding{Symbol: s, Value: r.symbols[s]})
	}
	return append(out, r.structural...)
}

// Len returns the number of bindings.
func (r *Result) Len() int { return len(r.symbols) + len(r.structural) }
