package scan

import (
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/tavgar/endpointfinder/internal/scan/jsast"
	"github.com/tavgar/endpointfinder/internal/syntax"
)

// endpointRe matches whole literals that look like endpoints: absolute URLs,
// protocol-relative URLs and paths beginning with `/`, `./` or `../`.
var endpointRe = regexp.MustCompile(`(?i)^(?:(?:https?:)?//[^\s"'` + "`" + `]+|\.{0,2}/[^\s"'` + "`" + `]+)$`)

func isURL(val string) bool {
	lower := strings.ToLower(val)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "//")
}

func validEndpoint(val string) bool {
	if !endpointRe.MatchString(val) {
		return false
	}
	if isURL(val) {
		u, err := url.Parse(val)
		if err != nil || u.Hostname() == "" {
			return false
		}
		host := strings.ToLower(u.Hostname())
		if strings.HasSuffix(host, "w3.org") {
			return false
		}
		if !strings.Contains(host, ".") && net.ParseIP(host) == nil && host != "localhost" {
			return false
		}
		return true
	}
	switch val {
	case "/", "//", "/./", "/$", "/*", "./", "../":
		return false
	}
	return true
}

// harvest reports endpoint-shaped string literals of src not already among
// found.
func harvest(source string, src []byte, found []Match) []Match {
	seen := make(map[string]struct{}, len(found))
	for _, m := range found {
		seen[m.Value] = struct{}{}
	}
	var out []Match
	for _, lit := range jsast.Literals(src) {
		val := strings.TrimSpace(lit.Value)
		if !validEndpoint(val) {
			continue
		}
		if _, ok := seen[val]; ok {
			continue
		}
		seen[val] = struct{}{}
		loc := syntax.LocationAt(src, lit.Offset)
		out = append(out, Match{
			Source:  source,
			Pattern: LiteralPattern,
			Value:   val,
			Line:    loc.Line,
			Column:  loc.Column,
		})
	}
	return out
}
