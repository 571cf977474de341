package symbolic

// Equal reports whether a and b are structurally identical. Spans are
// ignored, object properties are compared regardless of insertion order.
// Objects that reach themselves through their properties compare equal when
// their structure matches at every depth.
func Equal(a, b Value) bool {
	e := equality{pairs: make(map[[2]Value]bool)}
	return e.equal(a, b)
}

// equality remembers the outcome of every compound pair compared so far.
// A pair still being compared is assumed equal, which ends cycles.
type equality struct {
	pairs map[[2]Value]bool
}

func (e *equality) memo(a, b Value, compare func() bool) bool {
	key := [2]Value{a, b}
	if eq, ok := e.pairs[key]; ok {
		return eq
	}
	e.pairs[key] = true
	eq := compare()
	e.pairs[key] = eq
	return eq
}

func (e *equality) equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch x := a.(type) {
	case *Constant:
		y, ok := b.(*Constant)
		return ok && x.Value == y.Value
	case *Reference:
		y, ok := b.(*Reference)
		return ok && x.Name == y.Name
	case *Concatenation:
		y, ok := b.(*Concatenation)
		return ok && e.memo(x, y, func() bool {
			return e.equal(x.Left, y.Left) && e.equal(x.Right, y.Right)
		})
	case *MemberExpression:
		y, ok := b.(*MemberExpression)
		return ok && e.all(x.Parts, y.Parts)
	case *ObjectStructure:
		y, ok := b.(*ObjectStructure)
		if !ok || x.Type != y.Type || x.Len() != y.Len() {
			return false
		}
		return e.memo(x, y, func() bool {
			for k, v := range x.props {
				w, ok := y.props[k]
				if !ok || !e.equal(v, w) {
					return false
				}
			}
			return true
		})
	case *ArrayStructure:
		y, ok := b.(*ArrayStructure)
		return ok && e.memo(x, y, func() bool { return e.all(x.Values, y.Values) })
	case *GlobalFunctionCall:
		y, ok := b.(*GlobalFunctionCall)
		return ok && x.Name == y.Name && e.all(x.Args, y.Args)
	case *LocalFunctionCall:
		y, ok := b.(*LocalFunctionCall)
		return ok && x.Function == y.Function && e.all(x.Args, y.Args)
	case *ObjectFunctionCall:
		y, ok := b.(*ObjectFunctionCall)
		return ok && e.members(x.Members, y.Members) && e.all(x.Args, y.Args)
	case *FunctionArgument:
		y, ok := b.(*FunctionArgument)
		return ok && x.Function == y.Function && x.Name == y.Name && x.Index == y.Index
	case *FunctionInvocation:
		y, ok := b.(*FunctionInvocation)
		return ok && e.equal(x.Callee, y.Callee) && e.all(x.Args, y.Args)
	case *Unknown:
		_, ok := b.(*Unknown)
		return ok
	default:
		panic("symbolic: unhandled variant in Equal")
	}
}

func (e *equality) all(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !e.equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func (e *equality) members(a, b *MemberExpression) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return e.all(a.Parts, b.Parts)
}
