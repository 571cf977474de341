package matcher

import (
	"github.com/tavgar/endpointfinder/internal/resolve"
	"github.com/tavgar/endpointfinder/internal/symbolic"
)

const xhrConstructor = "XMLHttpRequest"

// Native matches XMLHttpRequest.open, taking the URL from its second
// argument.
func Native() Matcher {
	return Funcs{
		Label: "native",
		May: func(c Call) bool {
			verb, ok := c.Verb()
			return ok && verb == "open"
		},
		Get: func(c Call, r *resolve.Resolver) []Endpoint {
			if !isXHR(c.Head()) {
				return nil
			}
			return extract(c, r, 1, "")
		},
	}
}

// isXHR reports whether v is the result of constructing an XMLHttpRequest,
// directly or through a namespace such as window.
func isXHR(v symbolic.Value) bool {
	switch x := v.(type) {
	case *symbolic.GlobalFunctionCall:
		return x.Name == xhrConstructor
	case *symbolic.LocalFunctionCall:
		return x.Function == symbolic.Global(xhrConstructor)
	case *symbolic.ObjectFunctionCall:
		if x.Members == nil || len(x.Members.Parts) == 0 {
			return false
		}
		last, ok := x.Members.Parts[len(x.Members.Parts)-1].(*symbolic.Constant)
		return ok && last.Value == xhrConstructor
	}
	return false
}
