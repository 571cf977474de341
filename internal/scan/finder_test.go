package scan

import (
	"context"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tavgar/endpointfinder/internal/matcher"
	"github.com/tavgar/endpointfinder/internal/metrics"
	"github.com/tavgar/endpointfinder/internal/resolve"
)

func valuesOf(ms []Match) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.Value)
	}
	return out
}

func TestGetEndpoints(t *testing.T) {
	code := `
		function load(id) {
			$.get("/users/" + id);
		}
		load(1);
		load(getId());
		var x = new XMLHttpRequest();
		x.open("GET", "/ping");
	`
	got, err := GetEndpoints([]byte(code))
	require.NoError(t, err)
	// Function bodies are analyzed after the statements of their scope.
	assert.Equal(t, []string{"/ping", "/users/1", "/users/@{VAR}"}, got)

	got, err = GetEndpoints(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGetEndpointsIgnoresRegisteredMatchers(t *testing.T) {
	// Registration is process wide; no other test here calls sendBeacon.
	matcher.Register(matcher.Definition{
		Name:    "beacon",
		Objects: []string{"navigator"},
		Verbs:   []string{"sendBeacon"},
	}.Matcher())
	code := []byte(`navigator.sendBeacon("/collect"); $.get("/j");`)

	got, err := GetEndpoints(code)
	require.NoError(t, err)
	assert.Equal(t, []string{"/j"}, got)

	ms, err := NewFinder(nil).Find(context.Background(), "app.js", code)
	require.NoError(t, err)
	assert.Equal(t, []string{"/collect", "/j"}, valuesOf(ms))
}

func TestFindReportsPositions(t *testing.T) {
	code := "var id = getId();\n$.get(\"/users/\" + id);"
	f := NewFinder(nil)
	ms, err := f.Find(context.Background(), "app.js", []byte(code))
	require.NoError(t, err)
	require.Len(t, ms, 1)

	m := ms[0]
	assert.Equal(t, "app.js", m.Source)
	assert.Equal(t, "jquery", m.Pattern)
	assert.Equal(t, "/users/@{VAR}", m.Value)
	assert.Equal(t, 2, m.Line)
	assert.Equal(t, 1, m.Column)
	require.Len(t, m.Unknown, 1)
	assert.Equal(t, Position{Start: 9, End: 16, Line: 1, Column: 10}, m.Unknown[0])
}

func TestFindHTML(t *testing.T) {
	doc := `<html><head>
<script>var base = "/api";</script>
<script type="text/template">$.get("/no");</script>
<script src="x.js"></script>
<script>$.get(base + "/users");</script>
</head></html>`
	f := NewFinder(nil)
	ms, err := f.ScanReader(context.Background(), "index.html", strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.Equal(t, "/api/users", ms[0].Value)
	assert.Equal(t, 5, ms[0].Line)
	assert.Equal(t, 9, ms[0].Column)
}

func TestScanReaderSafeMode(t *testing.T) {
	code := `$.get("/a");`
	f := NewFinder(nil, WithSafeMode(true))
	ctx := context.Background()

	ms, err := f.ScanReader(ctx, "notes.txt", strings.NewReader(code))
	require.NoError(t, err)
	assert.Empty(t, ms)

	for _, source := range []string{"app.js", "app.MJS", stdinSource} {
		ms, err = f.ScanReader(ctx, source, strings.NewReader(code))
		require.NoError(t, err)
		assert.Equal(t, []string{"/a"}, valuesOf(ms), source)
	}

	ms, err = NewFinder(nil).ScanReader(ctx, "notes.txt", strings.NewReader(code))
	require.NoError(t, err)
	assert.Equal(t, []string{"/a"}, valuesOf(ms))
}

func TestAllowlist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "allow.txt")
	require.NoError(t, os.WriteFile(path, []byte("# vendored\n\ncdn.example.com/lib.js\n  vendor.js  \n"), 0o600))

	f := NewFinder(nil)
	require.NoError(t, f.LoadAllowlist(path))
	ctx := context.Background()
	code := `$.get("/a");`

	for _, source := range []string{"lib/vendor.js", "https://cdn.example.com/lib.js"} {
		ms, err := f.ScanReader(ctx, source, strings.NewReader(code))
		require.NoError(t, err)
		assert.Empty(t, ms, source)
	}
	ms, err := f.ScanReader(ctx, "app.js", strings.NewReader(code))
	require.NoError(t, err)
	assert.Len(t, ms, 1)

	assert.Error(t, f.LoadAllowlist(filepath.Join(t.TempDir(), "missing.txt")))
}

func TestWithLiterals(t *testing.T) {
	code := `
		var cfg = {api: "https://api.example.com/v1"};
		$.get("/a");
		var x = "/a";
		var y = "/static/logo.png";
		var z = "hello";
		var w = "https://www.w3.org/2000/svg";
	`
	f := NewFinder(nil, WithLiterals(true))
	ms, err := f.Find(context.Background(), "app.js", []byte(code))
	require.NoError(t, err)
	assert.Equal(t, []string{"/a", "https://api.example.com/v1", "/static/logo.png"}, valuesOf(ms))
	assert.Equal(t, "jquery", ms[0].Pattern)
	assert.Equal(t, LiteralPattern, ms[1].Pattern)
	assert.Equal(t, 2, ms[1].Line)
}

func TestWithRegistry(t *testing.T) {
	defs, err := matcher.Parse([]byte("matchers:\n  - name: fetch\n    functions: [fetch]\n"))
	require.NoError(t, err)
	r := matcher.NewRegistry(nil)
	for _, d := range defs {
		r.Add(d)
	}

	f := NewFinder(nil, WithRegistry(r))
	ms, err := f.Find(context.Background(), "app.js", []byte(`fetch("/f"); $.get("/j");`))
	require.NoError(t, err)
	assert.Equal(t, []string{"/f"}, valuesOf(ms))
	assert.Equal(t, "fetch", ms[0].Pattern)
}

func TestMetricsRecorded(t *testing.T) {
	m := metrics.New()
	f := NewFinder(nil, WithMetrics(m), WithLimits(resolve.Limits{MaxDepth: 2}))
	code := `function f(a) { f(a + "x"); $.get(a); } f("/r");`
	_, err := f.Find(context.Background(), "app.js", []byte(code))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `endpointfinder_sources_total{kind="js"} 1`)
	assert.Contains(t, string(body), `endpointfinder_endpoints_total{matcher="jquery"}`)
	assert.Contains(t, string(body), `endpointfinder_truncations_total 1`)
}

func TestUniqueMatches(t *testing.T) {
	ms := []Match{
		{Source: "a.js", Pattern: "jquery", Value: "/a"},
		{Source: "b.js", Pattern: "native", Value: "/a"},
		{Source: "b.js", Pattern: "native", Value: "/b"},
	}
	got := UniqueMatches(ms)
	require.Len(t, got, 2)
	assert.Equal(t, "a.js", got[0].Source)
	assert.Equal(t, "/b", got[1].Value)
	assert.Empty(t, UniqueMatches(nil))
}
