package scan

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// RenderOptions controls headless rendering.
type RenderOptions struct {
	Timeout   time.Duration
	Wait      time.Duration
	UserAgent string
	Headers   map[string]string
	Insecure  bool
}

// DefaultRenderOptions returns the settings used when none are given.
func DefaultRenderOptions() RenderOptions {
	return RenderOptions{Timeout: RenderTimeout, Wait: RenderWait, UserAgent: DefaultUserAgent}
}

func (o RenderOptions) withDefaults() RenderOptions {
	def := DefaultRenderOptions()
	if o.Timeout <= 0 {
		o.Timeout = def.Timeout
	}
	if o.Wait < 0 {
		o.Wait = 0
	}
	if o.UserAgent == "" {
		o.UserAgent = def.UserAgent
	}
	return o
}

// headers merges the user agent into the extra request headers.
func (o RenderOptions) headers() network.Headers {
	h := network.Headers{"User-Agent": o.UserAgent}
	for k, v := range o.Headers {
		if strings.EqualFold(k, "User-Agent") {
			h["User-Agent"] = v
			continue
		}
		h[k] = v
	}
	return h
}

func isScriptResponse(u, mime string) bool {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	lower := strings.ToLower(u)
	return strings.HasSuffix(lower, ".js") || strings.HasSuffix(lower, ".mjs") ||
		strings.Contains(mime, "javascript") || strings.Contains(mime, "ecmascript")
}

// RenderURL loads the page at urlStr in headless Chrome and returns the
// rendered HTML along with the sorted JavaScript URLs fetched while loading.
func RenderURL(ctx context.Context, urlStr string, opts RenderOptions) ([]byte, []string, error) {
	opts = opts.withDefaults()
	headers := opts.headers()

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	if opts.Insecure {
		allocOpts = append(allocOpts, chromedp.Flag("ignore-certificate-errors", true))
	}
	allocCtx, cancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancel()

	ctx, cancelCtx := chromedp.NewContext(allocCtx)
	defer cancelCtx()

	ctx, cancelTimeout := context.WithTimeout(ctx, opts.Timeout)
	defer cancelTimeout()

	var mu sync.Mutex
	scriptSet := make(map[string]struct{})
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		if e, ok := ev.(*network.EventResponseReceived); ok && e.Response != nil {
			if isScriptResponse(e.Response.URL, e.Response.MimeType) {
				mu.Lock()
				scriptSet[e.Response.URL] = struct{}{}
				mu.Unlock()
			}
		}
	})

	var html string
	err := chromedp.Run(ctx,
		network.Enable(),
		network.SetExtraHTTPHeaders(headers),
		emulation.SetUserAgentOverride(headers["User-Agent"].(string)),
		chromedp.Navigate(urlStr),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(opts.Wait),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, nil, err
	}

	mu.Lock()
	scripts := make([]string, 0, len(scriptSet))
	for s := range scriptSet {
		scripts = append(scripts, s)
	}
	mu.Unlock()
	sort.Strings(scripts)
	return []byte(html), scripts, nil
}

// ScanRendered renders urlStr, analyzes the inline scripts of the rendered
// document, then scans every script the page loaded the way ScanURL does.
func (f *Finder) ScanRendered(ctx context.Context, urlStr string, external bool, opts RenderOptions) ([]Match, error) {
	c, err := newCrawl(urlStr, external)
	if err != nil {
		return nil, err
	}
	doc, scripts, err := RenderURL(ctx, urlStr, opts)
	if err != nil {
		f.metrics.Failure("render")
		return nil, err
	}
	c.visited[urlStr] = struct{}{}

	matches, err := f.FindHTML(ctx, urlStr, doc)
	if err != nil {
		return nil, err
	}
	for _, s := range scripts {
		next, ok := c.follow(urlStr, s)
		if !ok {
			continue
		}
		ms, err := f.scanURL(ctx, c, next)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			f.logger.Warn("skipping script", zap.String("url", next), zap.Error(err))
			continue
		}
		matches = append(matches, ms...)
	}
	return matches, nil
}
