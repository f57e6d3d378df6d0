package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

const (
	// DefaultTimeout bounds a single request including reading the body.
	DefaultTimeout = 15 * time.Second

	// DefaultMaxBodySize is the default limit for a response body (20MB).
	// PDF documents are the largest resources the crawler downloads.
	DefaultMaxBodySize int64 = 20 * 1024 * 1024

	// DefaultUserAgent identifies the crawler to site operators.
	DefaultUserAgent = "sitecrawl/1.0 (+https://github.com/nao1215/sitecrawl)"

	// acceptHeader prefers HTML but accepts PDF documents.
	acceptHeader = "text/html,application/xhtml+xml,application/xml;q=0.9,application/pdf;q=0.8,*/*;q=0.5"

	// acceptLanguageHeader is sent with every request.
	acceptLanguageHeader = "en-US,en;q=0.5"

	// maxRedirects bounds redirect chains.
	maxRedirects = 10

	// probeTimeout bounds the TCP reachability probe.
	probeTimeout = 5 * time.Second
)

// Response is a fully read HTTP response.
type Response struct {
	// URL is the final URL after redirects.
	URL string

	// StatusCode is the HTTP status code.
	StatusCode int

	// ContentType is the Content-Type header value.
	ContentType string

	// Body holds the response body.
	Body []byte

	// FetchedAt is when the response headers arrived.
	FetchedAt time.Time
}

// Client fetches resources over HTTP.
// A Client is safe for concurrent use by multiple goroutines.
type Client struct {
	// httpClient performs the requests.
	httpClient *http.Client

	// userAgent is sent as the User-Agent header.
	userAgent string

	// headers are extra headers sent with every request.
	headers map[string]string

	// cookie is a raw cookie string sent with every request.
	cookie string

	// maxBodySize limits how many bytes of a body are read.
	maxBodySize int64

	// timeout is the per-request timeout.
	timeout time.Duration

	// proxyAddress is the SOCKS5 proxy in "host:port" form, empty for direct connections.
	proxyAddress string

	// dialer connects through the SOCKS5 proxy. Nil for direct connections.
	dialer proxy.Dialer

	// followRedirects makes Fetch follow same-host redirects. When false a
	// redirect response is returned as *RedirectError.
	followRedirects bool

	// logger receives debug output.
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithHeaders sets extra headers sent with every request.
func WithHeaders(headers map[string]string) Option {
	return func(c *Client) {
		c.headers = headers
	}
}

// WithCookie sets a raw cookie string (e.g., "session=abc123") sent with every request.
func WithCookie(cookie string) Option {
	return func(c *Client) {
		c.cookie = cookie
	}
}

// WithMaxBodySize sets the body size limit in bytes.
func WithMaxBodySize(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBodySize = n
		}
	}
}

// WithProxy routes all traffic through the SOCKS5 proxy at address ("host:port").
func WithProxy(address string) Option {
	return func(c *Client) {
		c.proxyAddress = address
	}
}

// WithoutRedirects makes Fetch return redirect responses as *RedirectError
// instead of following them, so the caller decides whether to visit the
// target.
func WithoutRedirects() Option {
	return func(c *Client) {
		c.followRedirects = false
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a Client. It fails only when a proxy address is configured
// and is malformed; the proxy itself is not contacted here.
func New(opts ...Option) (*Client, error) {
	c := &Client{
		userAgent:       DefaultUserAgent,
		maxBodySize:     DefaultMaxBodySize,
		timeout:         DefaultTimeout,
		followRedirects: true,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.proxyAddress != "" {
		if !isValidProxyAddress(c.proxyAddress) {
			return nil, ErrInvalidProxyAddress
		}
		dialer, err := proxy.SOCKS5("tcp", c.proxyAddress, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		c.dialer = dialer
	}

	c.httpClient = c.newHTTPClient()
	return c, nil
}

// newHTTPClient builds the underlying http.Client.
// Headers and the cookie are injected by a RoundTripper so that redirected
// requests carry them too. Redirects to another host are refused before
// the request is sent, so the cookie never reaches a foreign host.
func (c *Client) newHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 4
	transport.IdleConnTimeout = 30 * time.Second
	if c.dialer != nil {
		transport.Proxy = nil
		transport.DialContext = c.dialContext
	}

	return &http.Client{
		Transport: &headerInjectingTransport{
			base:    transport,
			cookie:  c.cookie,
			headers: c.headers,
		},
		Timeout: c.timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if !c.followRedirects || len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			if hostKey(req.URL) != hostKey(via[0].URL) {
				return fmt.Errorf("%w: %s", ErrOffHostRedirect, req.URL.Redacted())
			}
			return nil
		},
	}
}

// Fetch performs a GET request for rawURL and reads the body.
//
// A redirect that is not followed is returned as *RedirectError and a
// redirect to another host yields ErrOffHostRedirect. Other non-2xx
// responses are returned as *StatusError. Transport failures and timeouts
// are returned wrapped. A body larger than the size limit yields
// ErrBodyTooLarge.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, parsed.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Accept-Language", acceptLanguageHeader)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("fetched",
		"url", rawURL,
		"status", resp.StatusCode,
		"elapsed", time.Since(start))

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		if loc, err := resp.Location(); err == nil {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck // best effort
			return nil, &RedirectError{URL: rawURL, Location: loc.String(), StatusCode: resp.StatusCode}
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain a little so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck // best effort
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	// Read one byte past the limit to detect oversized bodies.
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if int64(len(body)) > c.maxBodySize {
		return nil, fmt.Errorf("%w: %s", ErrBodyTooLarge, rawURL)
	}

	return &Response{
		URL:         resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
		FetchedAt:   start,
	}, nil
}

// CheckReachable verifies that a TCP connection to the host of rawURL can
// be established. The port defaults to 80 or 443 by scheme. When a proxy is
// configured the probe goes through it.
func (c *Client) CheckReachable(ctx context.Context, rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}

	port := parsed.Port()
	if port == "" {
		switch parsed.Scheme {
		case "http":
			port = "80"
		case "https":
			port = "443"
		default:
			return fmt.Errorf("%w: %q", ErrUnsupportedScheme, parsed.Scheme)
		}
	}
	address := net.JoinHostPort(parsed.Hostname(), port)

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	var conn net.Conn
	if c.dialer != nil {
		conn, err = c.dialContext(ctx, "tcp", address)
	} else {
		var d net.Dialer
		conn, err = d.DialContext(ctx, "tcp", address)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrHostUnreachable, address, err)
	}
	return conn.Close()
}

// ProxyAddress returns the configured proxy address, empty when none.
func (c *Client) ProxyAddress() string {
	return c.proxyAddress
}

// UserAgent returns the User-Agent the client sends.
func (c *Client) UserAgent() string {
	return c.userAgent
}

// dialContext dials through the SOCKS5 proxy with context support.
// proxy.SOCKS5 returns a ContextDialer; the goroutine fallback covers
// dialers that only implement Dial.
func (c *Client) dialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if cd, ok := c.dialer.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, address)
	}

	type dialResult struct {
		conn net.Conn
		err  error
	}
	resultCh := make(chan dialResult, 1)
	go func() {
		conn, err := c.dialer.Dial(network, address)
		resultCh <- dialResult{conn, err}
	}()

	select {
	case result := <-resultCh:
		return result.conn, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// hostKey returns the lowercased host of u without the default port of
// its scheme, so http://a:80 and https://a are the same host.
func hostKey(u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	switch {
	case port == "":
		return host
	case u.Scheme == "http" && port == "80", u.Scheme == "https" && port == "443":
		return host
	}
	return net.JoinHostPort(host, port)
}

// isValidProxyAddress checks if the address is in valid "host:port" format.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" || port == "" {
		return false
	}
	if strings.ContainsAny(host, "/ ") {
		return false
	}

	portNum := 0
	for _, c := range port {
		if c < '0' || c > '9' {
			return false
		}
		portNum = portNum*10 + int(c-'0')
		if portNum > 65535 {
			return false
		}
	}
	return portNum >= 1
}

// headerInjectingTransport wraps an http.RoundTripper to inject
// custom headers and cookies into every request.
type headerInjectingTransport struct {
	base    http.RoundTripper
	cookie  string
	headers map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.cookie == "" && len(t.headers) == 0 {
		return t.base.RoundTrip(req)
	}

	clone := req.Clone(req.Context())
	if t.cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+t.cookie)
		} else {
			clone.Header.Set("Cookie", t.cookie)
		}
	}
	for key, value := range t.headers {
		clone.Header.Set(key, value)
	}
	return t.base.RoundTrip(clone)
}
