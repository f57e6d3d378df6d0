// Package fetch retrieves resources over HTTP for the crawler.
//
// A Client issues plain GET requests with a bounded timeout, a descriptive
// User-Agent and the optional headers and cookie configured for the site.
// Response bodies are read fully into memory up to a size limit; anything
// outside the 2xx range is returned as a *StatusError so callers can tell
// HTTP failures from transport failures with errors.As.
//
// Traffic can optionally be routed through a SOCKS5 proxy
// (golang.org/x/net/proxy). CheckReachable performs a plain TCP probe of
// the seed host (through the proxy when one is configured) so that an
// unreachable site is detected before crawling starts.
//
// The Client never retries. A failed fetch is reported once and the
// crawler moves on.
package fetch
