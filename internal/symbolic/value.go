// Package symbolic defines the abstract values the analyzer assigns to
// JavaScript expressions.
//
// A Value is a closed sum type: every variant lives in this package and
// embeds Span. Consumers switch over the concrete pointer types.
package symbolic

// Span is the byte range in the source a value was derived from. It is only
// used for diagnostics and never takes part in equality.
type Span struct {
	Start int
	End   int
}

// Position returns the span itself so variants embedding Span satisfy Value.
func (s Span) Position() Span { return s }

// Valid reports whether the span points into the source.
func (s Span) Valid() bool { return s.End > s.Start }

// Value is implemented by every symbolic variant of this package.
type Value interface {
	Position() Span
	isValue()
}

// Constant holds a literal: string, float64, bool or nil.
type Constant struct {
	Span
	Value any
}

// Reference names a binding by its qualified symbol.
type Reference struct {
	Span
	Name string
}

// Concatenation is the binary "+" of two values.
type Concatenation struct {
	Span
	Left  Value
	Right Value
}

// MemberExpression is a flattened property path such as a.b["c"].
type MemberExpression struct {
	Span
	Parts []Value
}

// ObjectStructure models an object literal. It is mutable: member
// assignments performed later in the program update it in place.
type ObjectStructure struct {
	Span
	Type  string
	keys  []string
	props map[string]Value
}

// ArrayStructure models an array literal.
type ArrayStructure struct {
	Span
	Values []Value
}

// GlobalFunctionCall is a "new" expression on a constructor with no local
// binding, e.g. new XMLHttpRequest().
type GlobalFunctionCall struct {
	Span
	Name string
	Args []Value
}

// LocalFunctionCall is a "new" expression on a locally declared constructor.
type LocalFunctionCall struct {
	Span
	Function string
	Args     []Value
}

// ObjectFunctionCall is a "new" expression on a member path, e.g. new a.B().
type ObjectFunctionCall struct {
	Span
	Members *MemberExpression
	Args    []Value
}

// FunctionArgument is the placeholder bound to a formal parameter. Function
// is the qualified symbol (or anonymous sentinel) of the owning function.
type FunctionArgument struct {
	Span
	Function string
	Name     string
	Index    int
}

// FunctionInvocation records a call site.
type FunctionInvocation struct {
	Span
	Callee Value
	Args   []Value
}

// Unknown is any expression the analyzer does not model.
type Unknown struct {
	Span
}

func (*Constant) isValue()           {}
func (*Reference) isValue()          {}
func (*Concatenation) isValue()      {}
func (*MemberExpression) isValue()   {}
func (*ObjectStructure) isValue()    {}
func (*ArrayStructure) isValue()     {}
func (*GlobalFunctionCall) isValue() {}
func (*LocalFunctionCall) isValue()  {}
func (*ObjectFunctionCall) isValue() {}
func (*FunctionArgument) isValue()   {}
func (*FunctionInvocation) isValue() {}
func (*Unknown) isValue()            {}

// DefaultObjectType is the type tag of plain object literals.
const DefaultObjectType = GlobalScope + "Object"

// NewObject returns an empty object structure with the given type tag. An
// empty tag selects DefaultObjectType.
func NewObject(typ string) *ObjectStructure {
	if typ == "" {
		typ = DefaultObjectType
	}
	return &ObjectStructure{Type: typ, props: make(map[string]Value)}
}

// Get returns the property named key.
func (o *ObjectStructure) Get(key string) (Value, bool) {
	v, ok := o.props[key]
	return v, ok
}

// Set adds or replaces the property named key.
func (o *ObjectStructure) Set(key string, v Value) {
	if o.props == nil {
		o.props = make(map[string]Value)
	}
	if _, ok := o.props[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.props[key] = v
}

// Len returns the number of properties.
func (o *ObjectStructure) Len() int { return len(o.props) }

// Keys returns the property names in first insertion order.
func (o *ObjectStructure) Keys() []string {
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}
