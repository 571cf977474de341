package symbolic

import (
	"math"
	"strconv"
	"strings"
)

// MaxHumanLen caps a rendering. Expressions sharing subterms, such as a
// string doubled with s += s, would otherwise render exponentially long.
const MaxHumanLen = 1 << 16

// Truncation ends a rendering cut at MaxHumanLen.
const Truncation = "@{TRUNCATED}"

// Human renders v for diagnostics. Unresolved parts render as @{...} tags.
// Object properties are not rendered, so self-referencing objects are safe.
func Human(v Value) string {
	var b strings.Builder
	writeHuman(&b, v)
	if b.Len() > MaxHumanLen {
		return b.String()[:MaxHumanLen] + Truncation
	}
	return b.String()
}

func writeHuman(b *strings.Builder, v Value) {
	if b.Len() > MaxHumanLen {
		return
	}
	switch x := v.(type) {
	case nil:
		b.WriteString("@{UNKNOWN}")
	case *Constant:
		b.WriteString(FormatLiteral(x.Value))
	case *Reference:
		b.WriteString("@{ref(" + SurfaceName(x.Name) + ")}")
	case *Concatenation:
		writeHuman(b, x.Left)
		writeHuman(b, x.Right)
	case *MemberExpression:
		for i, p := range x.Parts {
			if i > 0 {
				b.WriteByte('.')
			}
			writeHuman(b, p)
		}
	case *ObjectStructure:
		b.WriteString("@{obj(" + x.Type + ")}")
	case *ArrayStructure:
		b.WriteString("@{[")
		writeList(b, x.Values)
		b.WriteString("]}")
	case *GlobalFunctionCall:
		b.WriteString(x.Name)
		writeArgs(b, x.Args)
	case *LocalFunctionCall:
		b.WriteString("@{ref(" + SurfaceName(x.Function) + ")}")
		writeArgs(b, x.Args)
	case *ObjectFunctionCall:
		writeHuman(b, x.Members)
		writeArgs(b, x.Args)
	case *FunctionArgument:
		b.WriteString("@{arg" + strconv.Itoa(x.Index) + "(" + x.Name + ")}")
	case *FunctionInvocation:
		writeHuman(b, x.Callee)
		writeArgs(b, x.Args)
	case *Unknown:
		b.WriteString("@{UNKNOWN}")
	default:
		panic("symbolic: unhandled variant in Human")
	}
}

func writeArgs(b *strings.Builder, args []Value) {
	b.WriteByte('(')
	writeList(b, args)
	b.WriteByte(')')
}

func writeList(b *strings.Builder, vs []Value) {
	for i, v := range vs {
		if i > 0 {
			b.WriteByte(',')
		}
		writeHuman(b, v)
	}
}

// FormatLiteral stringifies a constant the way JavaScript's String() does for
// the literal kinds Constant can hold.
func FormatLiteral(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		switch {
		case math.IsNaN(x):
			return "NaN"
		case math.IsInf(x, 1):
			return "Infinity"
		case math.IsInf(x, -1):
			return "-Infinity"
		case x == 0:
			return "0"
		}
		abs := math.Abs(x)
		if abs >= 1e21 || abs < 1e-6 {
			s := strconv.FormatFloat(x, 'e', -1, 64)
			return strings.Replace(s, "e-0", "e-", 1)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return ""
	}
}
