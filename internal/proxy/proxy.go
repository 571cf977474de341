// Package proxy runs an intercepting HTTP proxy that analyzes the JavaScript
// and HTML passing through it.
package proxy

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/elazarl/goproxy"
	"github.com/spaolacci/murmur3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tavgar/endpointfinder/internal/metrics"
	"github.com/tavgar/endpointfinder/internal/output"
	"github.com/tavgar/endpointfinder/internal/scan"
)

// Config holds the listen addresses.
type Config struct {
	Addr string `mapstructure:"addr"`
	// MetricsAddr serves Prometheus metrics when set.
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// Proxy analyzes proxied responses and prints their endpoints live.
type Proxy struct {
	finder  *scan.Finder
	printer *output.Printer
	logger  *zap.Logger
	metrics *metrics.Metrics

	// limit caps how many body bytes are buffered for analysis.
	limit int64

	mu   sync.Mutex
	out  io.Writer
	seen map[uint64]struct{}
}

// New creates a Proxy writing matches to out. m may be nil.
func New(finder *scan.Finder, printer *output.Printer, out io.Writer, logger *zap.Logger, m *metrics.Metrics) *Proxy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Proxy{
		finder:  finder,
		printer: printer,
		out:     out,
		logger:  logger.Named("proxy"),
		metrics: m,
		limit:   scan.MaxBodySize,
		seen:    make(map[uint64]struct{}),
	}
}

type printfLogger struct{ *zap.SugaredLogger }

func (l printfLogger) Printf(format string, v ...any) { l.Debugf(format, v...) }

// Handler returns the proxy handler. HTTPS connections are intercepted so
// their bodies can be read.
func (p *Proxy) Handler() http.Handler {
	prx := goproxy.NewProxyHttpServer()
	prx.Verbose = false
	prx.Logger = printfLogger{p.logger.Sugar()}
	prx.OnRequest().HandleConnect(goproxy.AlwaysMitm)
	prx.OnResponse().DoFunc(func(resp *http.Response, ctx *goproxy.ProxyCtx) *http.Response {
		p.inspect(resp)
		return resp
	})
	return prx
}

func scriptLike(resp *http.Response) (html bool, ok bool) {
	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	switch {
	case strings.Contains(ct, "html"):
		return true, true
	case strings.Contains(ct, "javascript"), strings.Contains(ct, "ecmascript"):
		return false, true
	}
	ext := strings.ToLower(path.Ext(resp.Request.URL.Path))
	switch ext {
	case ".js", ".mjs", ".cjs", ".jsx":
		return false, true
	case ".html", ".htm":
		return true, true
	}
	return false, false
}

// inspect analyzes resp and restores its body for the client.
func (p *Proxy) inspect(resp *http.Response) {
	if resp == nil || resp.Body == nil || resp.Request == nil {
		return
	}
	html, ok := scriptLike(resp)
	if !ok {
		return
	}
	body := resp.Body
	data, err := io.ReadAll(io.LimitReader(body, p.limit+1))
	if err == nil && int64(len(data)) > p.limit {
		// Hand the client the buffered prefix followed by the unread rest.
		resp.Body = readCloser{io.MultiReader(bytes.NewReader(data), body), body}
		p.logger.Debug("body too large", zap.String("url", resp.Request.URL.String()), zap.Int64("limit", p.limit))
		return
	}
	body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(data))
	if err != nil {
		p.logger.Warn("reading response", zap.String("url", resp.Request.URL.String()), zap.Error(err))
		return
	}

	src, err := decode(resp.Header.Get("Content-Encoding"), data, p.limit)
	if err != nil {
		p.logger.Debug("undecodable body", zap.String("url", resp.Request.URL.String()), zap.Error(err))
		return
	}
	if !p.first(src) {
		return
	}

	source := resp.Request.URL.String()
	ctx := resp.Request.Context()
	var ms []scan.Match
	if html {
		ms, err = p.finder.FindHTML(ctx, source, src)
	} else {
		ms, err = p.finder.Find(ctx, source, src)
	}
	if err != nil {
		p.logger.Warn("analysis failed", zap.String("url", source), zap.Error(err))
		return
	}
	p.emit(ms)
}

type readCloser struct {
	io.Reader
	io.Closer
}

// decode undoes encoding, failing with scan.ErrBodyTooLarge when the
// decoded body exceeds limit bytes.
func decode(encoding string, data []byte, limit int64) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		if int64(len(data)) > limit {
			return nil, scan.ErrBodyTooLarge
		}
		return data, nil
	case "gzip":
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return readLimited(zr, limit)
	case "deflate":
		zr, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return readLimited(zr, limit)
	case "br":
		return readLimited(brotli.NewReader(bytes.NewReader(data)), limit)
	default:
		return nil, errors.New("unsupported content encoding " + encoding)
	}
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, scan.ErrBodyTooLarge
	}
	return data, nil
}

// first reports whether body has not been analyzed before.
func (p *Proxy) first(body []byte) bool {
	h := murmur3.Sum64(body)
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, dup := p.seen[h]; dup {
		return false
	}
	p.seen[h] = struct{}{}
	return true
}

func (p *Proxy) emit(ms []scan.Match) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range ms {
		if err := p.printer.PrintMatch(p.out, m); err != nil {
			p.logger.Error("writing match", zap.Error(err))
			return
		}
	}
}

// Run listens on cfg.Addr until ctx is done.
func (p *Proxy) Run(ctx context.Context, cfg Config) error {
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return err
	}
	var mln net.Listener
	if cfg.MetricsAddr != "" {
		if mln, err = net.Listen("tcp", cfg.MetricsAddr); err != nil {
			ln.Close()
			return err
		}
	}
	return p.Serve(ctx, ln, mln)
}

// Serve accepts proxy connections on ln, and metrics scrapes on mln when it
// is not nil, until ctx is done. It returns nil after a clean shutdown.
func (p *Proxy) Serve(ctx context.Context, ln, mln net.Listener) error {
	g, ctx := errgroup.WithContext(ctx)
	servers := []*http.Server{{Handler: p.Handler(), ReadHeaderTimeout: 10 * time.Second}}
	listeners := []net.Listener{ln}
	if mln != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", p.metrics.Handler())
		servers = append(servers, &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second})
		listeners = append(listeners, mln)
	}

	for i, srv := range servers {
		l := listeners[i]
		p.logger.Info("listening", zap.String("addr", l.Addr().String()), zap.Bool("metrics", i > 0))
		g.Go(func() error {
			if err := srv.Serve(l); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		var errs []error
		for _, srv := range servers {
			errs = append(errs, srv.Shutdown(shutdownCtx))
		}
		return errors.Join(errs...)
	})
	return g.Wait()
}
