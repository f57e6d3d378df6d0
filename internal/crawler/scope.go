package crawler

import (
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"strings"
)

// droppedSchemes are href schemes that never lead to a crawlable page.
var droppedSchemes = []string{"javascript:", "mailto:", "tel:", "data:"}

// Scope decides which URLs belong to the crawl.
// A URL is in scope when its scheme is http or https and its host,
// including the port, equals the seed host.
type Scope struct {
	// seed is the normalized seed URL.
	seed string

	// host is the lowercased seed host with any non-default port.
	host string

	// ignorePatterns are URL path patterns never admitted to the frontier.
	ignorePatterns []string

	// followPatterns, when set, are the only URL path patterns admitted.
	followPatterns []string
}

// ScopeOption configures a Scope.
type ScopeOption func(*Scope)

// WithIgnorePatterns sets URL path patterns to skip during crawling.
// Patterns use glob syntax (e.g., "/admin/*", "*.zip", "/logout*").
func WithIgnorePatterns(patterns []string) ScopeOption {
	return func(s *Scope) {
		s.ignorePatterns = patterns
	}
}

// WithFollowPatterns sets URL path patterns to follow during crawling.
// If set, only URLs matching at least one pattern are crawled.
// The seed itself is always crawled.
func WithFollowPatterns(patterns []string) ScopeOption {
	return func(s *Scope) {
		s.followPatterns = patterns
	}
}

// NewScope validates seed and creates a Scope around its host.
// A seed without a scheme is treated as https.
func NewScope(seed string, opts ...ScopeOption) (*Scope, error) {
	seed = strings.TrimSpace(seed)
	if seed == "" {
		return nil, fmt.Errorf("%w: empty URL", ErrInvalidSeed)
	}
	if !strings.Contains(seed, "://") {
		seed = "https://" + seed
	}

	u, err := url.Parse(seed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSeed, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidSeed, u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidSeed)
	}

	normalizeURL(u)
	s := &Scope{
		seed: u.String(),
		host: u.Host,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Seed returns the normalized seed URL.
func (s *Scope) Seed() string {
	return s.seed
}

// Host returns the host the crawl is confined to.
func (s *Scope) Host() string {
	return s.host
}

// Resolve resolves href against base, normalizes the result and reports
// whether it is in scope. Relative, root-relative and protocol-relative
// hrefs are supported and the query string is kept. Malformed hrefs and
// javascript:, mailto:, tel: and data: links are rejected.
func (s *Scope) Resolve(base, href string) (string, bool) {
	href = strings.TrimSpace(href)
	lower := strings.ToLower(href)
	for _, scheme := range droppedSchemes {
		if strings.HasPrefix(lower, scheme) {
			return "", false
		}
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}

	abs := baseURL.ResolveReference(ref)
	if !s.contains(abs) {
		return "", false
	}
	normalizeURL(abs)
	return abs.String(), true
}

// InScope reports whether rawURL belongs to the crawled site.
func (s *Scope) InScope(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return s.contains(u)
}

// contains applies the scheme and host rules to u.
func (s *Scope) contains(u *url.URL) bool {
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return canonicalHost(u) == s.host
}

// Admit applies the ignore and follow patterns to the path of rawURL.
//
// Logic:
//  1. If the path matches any ignore pattern, reject it
//  2. If follow patterns are set and the path matches none, reject it
//  3. Otherwise, admit it
func (s *Scope) Admit(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	for _, pattern := range s.ignorePatterns {
		if matchPattern(pattern, path) {
			return false
		}
	}

	if len(s.followPatterns) > 0 {
		for _, pattern := range s.followPatterns {
			if matchPattern(pattern, path) {
				return true
			}
		}
		return false
	}

	return true
}

// Normalize returns rawURL in the form used for deduplication.
func Normalize(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	normalizeURL(u)
	return u.String(), nil
}

// normalizeURL rewrites u in place: the fragment is dropped, scheme and host
// are lowercased, a default port is removed and an empty path becomes "/".
func normalizeURL(u *url.URL) {
	u.Fragment = ""
	u.RawFragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = canonicalHost(u)
	if u.Path == "" {
		u.Path = "/"
		u.RawPath = ""
	}
}

// canonicalHost returns the lowercased host of u without the default port
// of its scheme.
func canonicalHost(u *url.URL) string {
	host := strings.ToLower(u.Host)
	hostname, port, err := net.SplitHostPort(host)
	if err != nil {
		return host
	}
	scheme := strings.ToLower(u.Scheme)
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		if strings.Contains(hostname, ":") {
			return "[" + hostname + "]"
		}
		return hostname
	}
	return host
}

// matchPattern checks if a path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//
// Examples:
//   - "/admin/*" matches "/admin/dashboard", "/admin/users"
//   - "*.zip" matches "/downloads/file.zip"
//   - "/api/v?" matches "/api/v1", "/api/v2"
func matchPattern(pattern, path string) bool {
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
	}

	if strings.HasPrefix(pattern, "*.") {
		if strings.HasSuffix(path, strings.TrimPrefix(pattern, "*")) {
			return true
		}
	}

	if matched, err := filepath.Match(pattern, path); err == nil && matched {
		return true
	}

	// Patterns without a slash are matched against the last path segment.
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		if matched, err := filepath.Match(pattern, filepath.Base(path)); err == nil && matched {
			return true
		}
	}

	return false
}
