package analysis

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/tavgar/endpointfinder/internal/symbolic"
	"github.com/tavgar/endpointfinder/internal/syntax"
)

const injectProperty = "$inject"

// assign handles plain and compound assignments and yields the assigned
// value. Compound "+=" becomes a concatenation with the current value; the
// other compound operators produce Unknown.
func (w *walker) assign(ctx *scopeContext, n *sitter.Node) symbolic.Value {
	leftNode := syntax.Require(n, "left")
	rightNode := syntax.Require(n, "right")

	switch leftNode.Type() {
	case "object_pattern", "array_pattern":
		right := w.reduce(ctx, rightNode, true)
		w.bindPattern(ctx, leftNode, right)
		return right
	}

	left := w.reduce(ctx, leftNode, false)
	var right symbolic.Value
	if n.Type() == "augmented_assignment_expression" {
		current := w.reduce(ctx, leftNode, true)
		operand := w.reduce(ctx, rightNode, true)
		if syntax.Text(syntax.Require(n, "operator"), w.src) == "+=" {
			right = &symbolic.Concatenation{Span: syntax.SpanOf(n), Left: current, Right: operand}
		} else {
			right = &symbolic.Unknown{Span: syntax.SpanOf(n)}
		}
	} else {
		right = w.reduce(ctx, rightNode, true)
	}

	switch l := left.(type) {
	case *symbolic.Reference:
		w.result.Bind(l.Name, right)
	case *symbolic.MemberExpression:
		w.assignMember(l, right)
		w.inject(l, right)
	default:
		w.result.BindStructural(left, right)
	}
	return right
}

// assignMember stores right at the path described by left. Paths into a live
// object structure update it in place; anything else is recorded under the
// whole member expression.
func (w *walker) assignMember(left *symbolic.MemberExpression, right symbolic.Value) {
	if !assignPath(left.Parts, right) {
		w.result.BindStructural(left, right)
	}
}

func assignPath(parts []symbolic.Value, right symbolic.Value) bool {
	if len(parts) < 2 {
		return false
	}
	obj, ok := parts[0].(*symbolic.ObjectStructure)
	if !ok {
		return false
	}
	key, ok := propertyKey(parts[1])
	if !ok {
		return false
	}
	if len(parts) == 2 {
		obj.Set(key, right)
		return true
	}
	inner, ok := obj.Get(key)
	if !ok {
		return false
	}
	rest := make([]symbolic.Value, 0, len(parts)-1)
	rest = append(rest, inner)
	return assignPath(append(rest, parts[2:]...), right)
}

// inject turns `fn.$inject = ["a", "b"]` into a synthetic call of fn whose
// arguments are the named global services.
func (w *walker) inject(left *symbolic.MemberExpression, right symbolic.Value) {
	parts := left.Parts
	if len(parts) < 2 {
		return
	}
	if last, ok := parts[len(parts)-1].(*symbolic.Constant); !ok || last.Value != injectProperty {
		return
	}
	arr, ok := right.(*symbolic.ArrayStructure)
	if !ok {
		return
	}
	args := make([]symbolic.Value, 0, len(arr.Values))
	for _, v := range arr.Values {
		c, ok := v.(*symbolic.Constant)
		if !ok {
			return
		}
		name, ok := c.Value.(string)
		if !ok {
			return
		}
		args = append(args, &symbolic.Reference{Span: c.Span, Name: symbolic.Global(name)})
	}

	callee := parts[0]
	if len(parts) > 2 {
		callee = &symbolic.MemberExpression{Span: left.Span, Parts: parts[:len(parts)-1]}
	}
	w.result.Record(&symbolic.FunctionInvocation{Span: left.Span, Callee: callee, Args: args})
}
