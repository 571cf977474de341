package scan

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test that Fetch sets the User-Agent header on requests
func TestFetchSetsUserAgent(t *testing.T) {
	var ua string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/javascript")
		io.WriteString(w, "ok")
	}))
	defer ts.Close()

	page, err := NewFetcher(FetcherConfig{}).Fetch(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if ua != DefaultUserAgent {
		t.Fatalf("expected User-Agent %q, got %q", DefaultUserAgent, ua)
	}
	assert.Equal(t, "ok", string(page.Body))
	assert.Equal(t, "application/javascript", page.ContentType)
}

func TestFetchExtraHeaders(t *testing.T) {
	var hv, ua string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hv = r.Header.Get("X-Test")
		ua = r.Header.Get("User-Agent")
	}))
	defer ts.Close()

	f := NewFetcher(FetcherConfig{UserAgent: "probe/1", Headers: map[string]string{"X-Test": "yes"}})
	_, err := f.Fetch(context.Background(), ts.URL)
	require.NoError(t, err)
	assert.Equal(t, "yes", hv)
	assert.Equal(t, "probe/1", ua)
}

func TestFetchSkipTLSVerify(t *testing.T) {
	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	}))
	defer ts.Close()

	_, err := NewFetcher(FetcherConfig{}).Fetch(context.Background(), ts.URL)
	assert.Error(t, err, "expected TLS error when verification enabled")

	page, err := NewFetcher(FetcherConfig{Insecure: true}).Fetch(context.Background(), ts.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(page.Body))
}

func TestFetchFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusFound)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "moved")
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	page, err := NewFetcher(FetcherConfig{}).Fetch(context.Background(), ts.URL+"/old")
	require.NoError(t, err)
	assert.Equal(t, ts.URL+"/new", page.URL)
	assert.Equal(t, "moved", string(page.Body))
}

func TestFetchErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	_, err := NewFetcher(FetcherConfig{}).Fetch(context.Background(), ts.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestFetchRateLimited(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer ts.Close()

	f := NewFetcher(FetcherConfig{Rate: 0.001, Burst: 1})
	_, err := f.Fetch(context.Background(), ts.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = f.Fetch(ctx, ts.URL)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrBodyTooLarge))
}
