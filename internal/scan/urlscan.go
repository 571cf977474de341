package scan

import (
	"context"
	"net/url"
	"path"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
)

var importRe = regexp.MustCompile(`(?m)import\s+(?:[^"']+\s+from\s+)?['"]([^'"\n]+)['"]`)
var dynImportRe = regexp.MustCompile(`(?m)import\(\s*['"]([^'"\n]+)['"]\s*\)`)

// extractJSImports returns the sorted module specifiers imported by data.
func extractJSImports(data []byte) []string {
	uniq := make(map[string]struct{})
	for _, m := range importRe.FindAllSubmatch(data, -1) {
		uniq[string(m[1])] = struct{}{}
	}
	for _, m := range dynImportRe.FindAllSubmatch(data, -1) {
		uniq[string(m[1])] = struct{}{}
	}
	out := make([]string, 0, len(uniq))
	for v := range uniq {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func resolveURL(base string, ref string) string {
	bu, err := url.Parse(base)
	if err != nil {
		return ref
	}
	u, err := bu.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}

func sameScope(baseHost, otherHost string) bool {
	baseHost = strings.TrimPrefix(baseHost, "www.")
	otherHost = strings.TrimPrefix(otherHost, "www.")
	if otherHost == baseHost {
		return true
	}
	return strings.HasSuffix(otherHost, "."+baseHost)
}

func isHTMLContent(urlStr, ct string) bool {
	if strings.Contains(ct, "html") {
		return true
	}
	ext := strings.ToLower(path.Ext(urlStr))
	return ext == ".html" || ext == ".htm"
}

// crawl tracks the URLs visited by one scan.
type crawl struct {
	baseHost string
	external bool
	visited  map[string]struct{}
}

func newCrawl(rawURL string, external bool) (*crawl, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	return &crawl{baseHost: u.Hostname(), external: external, visited: make(map[string]struct{})}, nil
}

// follow reports whether ref, relative to base, should be scanned, and its
// absolute form.
func (c *crawl) follow(base, ref string) (string, bool) {
	u, err := url.Parse(resolveURL(base, ref))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}
	u.Fragment = ""
	if !c.external && !sameScope(c.baseHost, u.Hostname()) {
		return "", false
	}
	return u.String(), true
}

// ScanURL fetches urlStr and analyzes it. From HTML pages it follows script
// elements, from JavaScript it follows module imports. Only hosts within the
// starting domain are followed unless external is set. Failures of followed
// resources are logged and skipped.
func (f *Finder) ScanURL(ctx context.Context, urlStr string, external bool) ([]Match, error) {
	c, err := newCrawl(urlStr, external)
	if err != nil {
		return nil, err
	}
	return f.scanURL(ctx, c, urlStr)
}

func (f *Finder) scanURL(ctx context.Context, c *crawl, urlStr string) ([]Match, error) {
	if _, ok := c.visited[urlStr]; ok {
		return nil, nil
	}
	c.visited[urlStr] = struct{}{}
	if f.isAllowed(urlStr) {
		return nil, nil
	}

	page, err := f.fetcher.Fetch(ctx, urlStr)
	if err != nil {
		f.metrics.Failure("fetch")
		return nil, err
	}
	c.visited[page.URL] = struct{}{}

	var matches []Match
	var refs []string
	if isHTMLContent(page.URL, page.ContentType) {
		ms, err := f.FindHTML(ctx, page.URL, page.Body)
		if err != nil {
			return nil, err
		}
		matches = append(matches, ms...)
		refs = scriptSources(page.Body)
	} else {
		ms, err := f.Find(ctx, page.URL, page.Body)
		if err != nil {
			return nil, err
		}
		matches = append(matches, ms...)
		refs = extractJSImports(page.Body)
	}

	for _, ref := range refs {
		next, ok := c.follow(page.URL, ref)
		if !ok {
			continue
		}
		ms, err := f.scanURL(ctx, c, next)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			f.logger.Warn("skipping resource", zap.String("url", next), zap.Error(err))
			continue
		}
		matches = append(matches, ms...)
	}
	return matches, nil
}
