package scan

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// ErrBodyTooLarge is returned when a response exceeds MaxBodySize.
var ErrBodyTooLarge = errors.New("response body exceeds size limit")

// FetcherConfig controls outgoing requests.
type FetcherConfig struct {
	Timeout      time.Duration     `mapstructure:"timeout"`
	MaxRedirects int               `mapstructure:"max_redirects"`
	UserAgent    string            `mapstructure:"user_agent"`
	Headers      map[string]string `mapstructure:"headers"`
	Insecure     bool              `mapstructure:"insecure"`
	// Rate limits requests per second. Zero disables limiting.
	Rate  float64 `mapstructure:"rate"`
	Burst int     `mapstructure:"burst"`
}

// DefaultFetcherConfig returns the settings used when none are given.
func DefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		Timeout:      HTTPClientTimeout,
		MaxRedirects: MaxRedirects,
		UserAgent:    DefaultUserAgent,
	}
}

// Page is a fetched document.
type Page struct {
	// URL is the final URL after redirects.
	URL         string
	ContentType string
	Body        []byte
}

// Fetcher retrieves documents over HTTP. It is safe for concurrent use.
type Fetcher struct {
	client  *http.Client
	cfg     FetcherConfig
	limiter *rate.Limiter
}

// NewFetcher creates a Fetcher. Zero fields of cfg take their defaults.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	def := DefaultFetcherConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = def.MaxRedirects
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.Insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in
	}
	maxRedirects := cfg.MaxRedirects
	f := &Fetcher{
		cfg: cfg,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
	if cfg.Rate > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), burst)
	}
	return f
}

// Fetch retrieves url. Responses with an error status fail.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	for k, v := range f.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("fetch %s: %s", url, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if len(body) > MaxBodySize {
		return nil, fmt.Errorf("fetch %s: %w", url, ErrBodyTooLarge)
	}
	return &Page{
		URL:         resp.Request.URL.String(),
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}
