package matcher

import (
	"github.com/tavgar/endpointfinder/internal/resolve"
	"github.com/tavgar/endpointfinder/internal/symbolic"
)

var angularVerbs = []string{"get", "post", "delete", "patch", "put", "head", "jsonp"}

// Angular matches the shortcut methods of AngularJS's $http service, URL
// first, and the $http(config) form with the URL in config.url.
func Angular() Matcher {
	return Funcs{
		Label: "angular",
		May: func(c Call) bool {
			if len(c.Callee) == 1 {
				return isHTTPService(c.Head())
			}
			verb, ok := c.Verb()
			return ok && oneOf(verb, angularVerbs)
		},
		Get: func(c Call, r *resolve.Resolver) []Endpoint {
			if !isHTTPService(c.Head()) {
				return nil
			}
			if len(c.Callee) == 1 {
				return extract(c, r, 0, "url")
			}
			return extract(c, r, 0, "")
		},
	}
}

// isHTTPService accepts the global $http or http service and an injected
// parameter named $http whose provider is unknown.
func isHTTPService(v symbolic.Value) bool {
	switch x := v.(type) {
	case *symbolic.Reference:
		return x.Name == symbolic.Global("$http") || x.Name == symbolic.Global("http")
	case *symbolic.FunctionArgument:
		return x.Name == "$http"
	}
	return false
}
