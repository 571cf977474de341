package scan

import "time"

// Network defaults
const (
	// DefaultUserAgent is sent with every fetch unless overridden.
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36 endpointfinder"

	// HTTPClientTimeout bounds a single HTTP exchange.
	HTTPClientTimeout = 10 * time.Second

	// MaxRedirects is the maximum number of HTTP redirects to follow
	MaxRedirects = 5

	// MaxBodySize caps how much of a response is read for analysis.
	MaxBodySize = 16 << 20
)

// Rendering defaults
const (
	// RenderTimeout is the timeout for page rendering operations
	RenderTimeout = 15 * time.Second

	// RenderWait is how long a rendered page may keep loading scripts.
	RenderWait = 8 * time.Second
)

// stdinSource names input read from standard input.
const stdinSource = "stdin"
