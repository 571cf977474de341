package scan

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tavgar/endpointfinder/internal/analysis"
	"github.com/tavgar/endpointfinder/internal/matcher"
	"github.com/tavgar/endpointfinder/internal/metrics"
	"github.com/tavgar/endpointfinder/internal/resolve"
	"github.com/tavgar/endpointfinder/internal/symbolic"
	"github.com/tavgar/endpointfinder/internal/syntax"
)

// Position locates a byte range of a source.
type Position struct {
	Start  int `json:"start"`
	End    int `json:"end"`
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Match is one endpoint found in a source.
type Match struct {
	Source string `json:"source"`
	// Pattern names the matcher that produced the match, or "literal" for
	// harvested string literals.
	Pattern string `json:"pattern"`
	Value   string `json:"value"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	// Unknown lists the expressions that were replaced by the placeholder.
	Unknown []Position `json:"unknown,omitempty"`
}

// LiteralPattern is the pattern of matches harvested from string literals.
const LiteralPattern = "literal"

var jsExts = []string{".js", ".jsx", ".mjs", ".cjs"}

var htmlExts = []string{".html", ".htm"}

// Finder extracts endpoints from JavaScript and HTML sources. It is safe for
// concurrent use.
type Finder struct {
	logger    *zap.Logger
	analyzer  *analysis.Analyzer
	registry  *matcher.Registry
	limits    resolve.Limits
	safeMode  bool
	literals  bool
	allowlist []string
	fetcher   *Fetcher
	metrics   *metrics.Metrics
}

// Option configures a Finder.
type Option func(*Finder)

// WithRegistry replaces the default matcher registry.
func WithRegistry(r *matcher.Registry) Option {
	return func(f *Finder) { f.registry = r }
}

// WithLimits sets the argument resolution ceilings.
func WithLimits(l resolve.Limits) Option {
	return func(f *Finder) { f.limits = l }
}

// WithSafeMode restricts scanning to JavaScript and HTML sources.
func WithSafeMode(safe bool) Option {
	return func(f *Finder) { f.safeMode = safe }
}

// WithLiterals also reports endpoint-shaped string literals.
func WithLiterals(on bool) Option {
	return func(f *Finder) { f.literals = on }
}

// WithAllowlist skips sources ending in any of the given suffixes.
func WithAllowlist(suffixes ...string) Option {
	return func(f *Finder) { f.allowlist = append(f.allowlist, suffixes...) }
}

// WithFetcher sets the fetcher used for URL scans.
func WithFetcher(fe *Fetcher) Option {
	return func(f *Finder) { f.fetcher = fe }
}

// WithMetrics records scan counters on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Finder) { f.metrics = m }
}

// NewFinder creates a Finder. A nil logger disables logging.
func NewFinder(logger *zap.Logger, opts ...Option) *Finder {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Finder{
		logger:   logger.Named("finder"),
		analyzer: analysis.NewAnalyzer(logger),
		limits:   resolve.DefaultLimits(),
	}
	for _, o := range opts {
		o(f)
	}
	if f.registry == nil {
		f.registry = matcher.Default(logger)
	}
	if f.fetcher == nil {
		f.fetcher = NewFetcher(DefaultFetcherConfig())
	}
	return f
}

// LoadAllowlist adds the suffixes listed in path, one per line. Blank lines
// and lines starting with '#' are ignored.
func (f *Finder) LoadAllowlist(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	sc := bufio.NewScanner(file)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		f.allowlist = append(f.allowlist, line)
	}
	return sc.Err()
}

func hasExt(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

func isJSFile(path string) bool { return hasExt(path, jsExts) }

func isHTMLFile(path string) bool { return hasExt(path, htmlExts) }

func (f *Finder) isAllowed(source string) bool {
	for _, s := range f.allowlist {
		if strings.HasSuffix(source, s) {
			return true
		}
	}
	return false
}

// Find analyzes src as one JavaScript unit.
func (f *Finder) Find(ctx context.Context, source string, src []byte) ([]Match, error) {
	return f.find(ctx, source, "js", src)
}

// ScanReader reads a whole source and analyzes it. HTML sources contribute
// their inline scripts. Allowlisted sources, and in safe mode anything that
// is neither JavaScript nor HTML, are drained and skipped.
func (f *Finder) ScanReader(ctx context.Context, source string, r io.Reader) ([]Match, error) {
	if f.isAllowed(source) {
		io.Copy(io.Discard, r)
		return nil, nil
	}
	html := isHTMLFile(source)
	if f.safeMode && source != stdinSource && !html && !isJSFile(source) {
		io.Copy(io.Discard, r)
		return nil, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", source, err)
	}
	if html {
		return f.FindHTML(ctx, source, data)
	}
	return f.Find(ctx, source, data)
}

// FindHTML analyzes the inline scripts of an HTML document as one unit.
// Reported positions refer to the document.
func (f *Finder) FindHTML(ctx context.Context, source string, doc []byte) ([]Match, error) {
	return f.find(ctx, source, "html", maskHTML(doc))
}

func (f *Finder) find(ctx context.Context, source, kind string, src []byte) ([]Match, error) {
	logger := f.logger.With(zap.String("run", uuid.NewString()), zap.String("source", source))
	start := time.Now()

	res, err := f.analyzer.AnalyzeSource(ctx, src)
	if err != nil {
		f.metrics.Failure("analyze")
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	rep := f.registry.Run(res, resolve.WithLimits(f.limits), resolve.WithLogger(logger))
	if rep.Truncated {
		f.metrics.Truncation()
		logger.Info("argument resolution truncated; results may be incomplete")
	}

	matches := make([]Match, 0, len(rep.Endpoints))
	for _, ep := range rep.Endpoints {
		loc := syntax.LocationAt(src, ep.Call.Start)
		matches = append(matches, Match{
			Source:  source,
			Pattern: ep.Matcher,
			Value:   ep.Value,
			Line:    loc.Line,
			Column:  loc.Column,
			Unknown: positions(src, ep.Unknown),
		})
		f.metrics.Endpoint(ep.Matcher)
	}
	if f.literals {
		matches = append(matches, harvest(source, src, matches)...)
	}

	f.metrics.Source(kind, time.Since(start))
	logger.Debug("source analyzed",
		zap.String("kind", kind),
		zap.Int("matches", len(matches)),
		zap.Duration("took", time.Since(start)),
	)
	return matches, nil
}

func positions(src []byte, spans []symbolic.Span) []Position {
	if len(spans) == 0 {
		return nil
	}
	out := make([]Position, 0, len(spans))
	for _, s := range spans {
		loc := syntax.LocationAt(src, s.Start)
		out = append(out, Position{Start: s.Start, End: s.End, Line: loc.Line, Column: loc.Column})
	}
	return out
}

// GetEndpoints returns the endpoints of a JavaScript source in the order
// their calls appear, using the built-in matchers only. Matchers added with
// matcher.Register do not apply.
func GetEndpoints(src []byte) ([]string, error) {
	res, err := analysis.NewAnalyzer(nil).AnalyzeSource(context.Background(), src)
	if err != nil {
		return nil, err
	}
	rep := matcher.Builtin(nil).Run(res)
	out := make([]string, 0, len(rep.Endpoints))
	for _, ep := range rep.Endpoints {
		out = append(out, ep.Value)
	}
	return out, nil
}
