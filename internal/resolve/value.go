package resolve

import (
	"github.com/tavgar/endpointfinder/internal/symbolic"
)

// Kind tags the shape of an evaluated Value.
type Kind int

const (
	// Opaque values could not be determined statically.
	Opaque Kind = iota
	// Literal values hold a string, float64, bool or nil.
	Literal
	// Object values hold evaluated properties.
	Object
	// Symbolic values carry an expression through unevaluated. They only
	// appear when the resolver runs in passthrough mode.
	Symbolic
)

// Field is one evaluated object property.
type Field struct {
	Name  string
	Value Value
}

// Value is one concrete evaluation of a symbolic expression.
type Value struct {
	Kind    Kind
	Literal any
	Type    string
	Fields  []Field
	// Symbol is the expression a Symbolic value stands for, or the
	// substituted form of a fully resolved Object.
	Symbol symbolic.Value
	// Unknown lists the source ranges whose value ended up opaque.
	Unknown []symbolic.Span
}

// Field returns the property called name of an object value.
func (v Value) Field(name string) (Value, bool) {
	for _, f := range v.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// String renders v the way JavaScript would stringify it, with the
// placeholder token for opaque parts.
func (v Value) String() string {
	switch v.Kind {
	case Literal:
		return symbolic.FormatLiteral(v.Literal)
	case Object:
		return "[object Object]"
	case Symbolic:
		return symbolic.Human(v.Symbol)
	default:
		return symbolic.Placeholder
	}
}

// Resolved reports whether v holds no opaque part.
func (v Value) Resolved() bool {
	return v.Kind != Opaque && len(v.Unknown) == 0
}

func opaque(spans ...symbolic.Span) Value {
	var unknown []symbolic.Span
	for _, s := range spans {
		if s.Valid() {
			unknown = append(unknown, s)
		}
	}
	return Value{Kind: Opaque, Unknown: unknown}
}

func literal(x any) Value { return Value{Kind: Literal, Literal: x} }

// concat joins two evaluations with JavaScript "+" semantics.
func concat(l, r Value) Value {
	unknown := mergeSpans(r.Unknown, l.Unknown)
	if l.Kind == Symbolic || r.Kind == Symbolic {
		return Value{
			Kind:    Symbolic,
			Symbol:  &symbolic.Concatenation{Left: toSymbol(l, symbolic.Span{}), Right: toSymbol(r, symbolic.Span{})},
			Unknown: unknown,
		}
	}
	if l.Kind == Literal && r.Kind == Literal {
		if a, ok := l.Literal.(float64); ok {
			if b, ok := r.Literal.(float64); ok {
				return Value{Kind: Literal, Literal: a + b, Unknown: unknown}
			}
		}
	}
	return Value{Kind: Literal, Literal: l.String() + r.String(), Unknown: unknown}
}

// toSymbol turns an evaluation back into a symbolic value so that a partly
// substituted expression can be resolved again. at positions opaque parts
// that carry no range of their own.
func toSymbol(v Value, at symbolic.Span) symbolic.Value {
	switch v.Kind {
	case Literal:
		return &symbolic.Constant{Span: at, Value: v.Literal}
	case Object:
		if v.Symbol != nil {
			return v.Symbol
		}
		obj := symbolic.NewObject(v.Type)
		obj.Span = at
		for _, f := range v.Fields {
			obj.Set(f.Name, toSymbol(f.Value, at))
		}
		return obj
	case Symbolic:
		return v.Symbol
	default:
		if len(v.Unknown) > 0 {
			at = v.Unknown[0]
		}
		return &symbolic.Unknown{Span: at}
	}
}
