package symbolic

import (
	"strconv"
	"strings"
)

// Separator joins scope tags and names in a qualified symbol. It cannot
// appear in a JavaScript identifier.
const Separator = "#"

// GlobalScope prefixes top level symbols. Identifiers with no binding in
// scope are qualified with it too, the way undeclared names become globals.
const GlobalScope = "G" + Separator

// Placeholder is the evaluated form of anything that could not be resolved.
const Placeholder = "@{VAR}"

// Qualify joins a scope prefix and a surface name.
func Qualify(scope, name string) string { return scope + name }

// Global qualifies name in the global scope.
func Global(name string) string { return GlobalScope + name }

// FunctionScope returns the prefix of the i-th function scope nested in parent.
func FunctionScope(parent string, i int) string {
	return parent + "FS" + strconv.Itoa(i) + Separator
}

// BlockScope returns the prefix of a nested block. Statement index i names the
// block; k > 0 distinguishes further bodies of the same statement.
func BlockScope(parent string, i, k int) string {
	tag := "LS" + strconv.Itoa(i)
	if k > 0 {
		tag += "_" + strconv.Itoa(k)
	}
	return parent + tag + Separator
}

// SurfaceName returns the part of a qualified symbol after the last separator.
func SurfaceName(q string) string {
	if i := strings.LastIndex(q, Separator); i >= 0 {
		return q[i+len(Separator):]
	}
	return q
}

// ScopeOf returns the scope prefix of a qualified symbol.
func ScopeOf(q string) string {
	if i := strings.LastIndex(q, Separator); i >= 0 {
		return q[:i+len(Separator)]
	}
	return ""
}

// Depth counts the scope segments of a qualified symbol.
func Depth(q string) int { return strings.Count(q, Separator) }
