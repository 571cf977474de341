package matcher

import "github.com/tavgar/endpointfinder/internal/resolve"

var jqueryVerbs = []string{"get", "post", "ajax", "getJSON"}

// JQuery matches $.get, $.post, $.ajax and $.getJSON. The URL is the first
// argument; all but getJSON also accept a settings object carrying it in
// its url property.
func JQuery() Matcher {
	return Funcs{
		Label: "jquery",
		May: func(c Call) bool {
			verb, ok := c.Verb()
			return ok && oneOf(verb, jqueryVerbs)
		},
		Get: func(c Call, r *resolve.Resolver) []Endpoint {
			name, ok := surface(c.Head())
			if !ok || (name != "$" && name != "jQuery") {
				return nil
			}
			verb, _ := c.Verb()
			if verb == "getJSON" {
				return extract(c, r, 0, "")
			}
			return extract(c, r, 0, "url")
		},
	}
}
