package politeness

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/nao1215/sitecrawl/internal/fetch"
	"github.com/temoto/robotstxt"
)

// robotsTxtPath is the well-known path for robots.txt files.
const robotsTxtPath = "/robots.txt"

// Mode selects how an unavailable robots.txt is treated.
type Mode string

const (
	// ModeLenient allows everything when robots.txt cannot be retrieved.
	ModeLenient Mode = "lenient"

	// ModeStrict treats an unavailable robots.txt as a fatal error.
	ModeStrict Mode = "strict"
)

// ParseMode converts a string to a Mode. An empty string yields ModeLenient.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeLenient:
		return ModeLenient, nil
	case ModeStrict:
		return ModeStrict, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// PolicySource describes where a RobotsPolicy came from.
type PolicySource string

const (
	// SourceParsed means robots.txt was retrieved and parsed.
	SourceParsed PolicySource = "parsed"

	// SourceMissing means the site answered 4xx: no robots.txt, no rules.
	SourceMissing PolicySource = "missing"

	// SourceUnavailable means robots.txt could not be retrieved and the
	// lenient mode fell back to allowing everything.
	SourceUnavailable PolicySource = "unavailable"
)

// Fetcher retrieves a URL. *fetch.Client satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.Response, error)
}

// RobotsPolicy is the parsed robots exclusion policy of one host.
// It is read-only once loaded.
type RobotsPolicy struct {
	// data is the parsed robots.txt, nil when every path is allowed.
	data *robotstxt.RobotsData

	// source records how the policy was obtained.
	source PolicySource
}

// AllowAll returns a policy without rules.
func AllowAll(source PolicySource) *RobotsPolicy {
	return &RobotsPolicy{source: source}
}

// ParseRobots parses a robots.txt body.
func ParseRobots(body []byte) (*RobotsPolicy, error) {
	data, err := robotstxt.FromBytes(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse robots.txt: %w", err)
	}
	return &RobotsPolicy{data: data, source: SourceParsed}, nil
}

// Source reports how the policy was obtained.
func (p *RobotsPolicy) Source() PolicySource {
	return p.source
}

// Allowed reports whether agent may fetch the path (with query) of rawURL.
func (p *RobotsPolicy) Allowed(rawURL, agent string) bool {
	if p.data == nil {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return p.data.TestAgent(path, agent)
}

// CrawlDelay returns the Crawl-delay that applies to agent, zero if none.
func (p *RobotsPolicy) CrawlDelay(agent string) time.Duration {
	if p.data == nil {
		return 0
	}
	group := p.data.FindGroup(agent)
	if group == nil {
		return 0
	}
	return group.CrawlDelay
}

// robotsURL returns the robots.txt URL for the origin of rawURL.
func robotsURL(rawURL string) (string, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("invalid URL %q: empty host", rawURL)
	}
	scheme := u.Scheme
	if scheme == "" {
		scheme = "https"
	}
	host := strings.ToLower(u.Host)
	return scheme + "://" + host + robotsTxtPath, host, nil
}

// loadPolicy fetches and parses robots.txt for the origin of rawURL.
// The returned error is non-nil only when robots.txt is unavailable and
// mode is strict.
func (g *Gate) loadPolicy(ctx context.Context, rawURL string) (*RobotsPolicy, error) {
	target, _, err := robotsURL(rawURL)
	if err != nil {
		return nil, err
	}

	resp, err := g.fetcher.Fetch(ctx, target)
	if err != nil {
		var statusErr *fetch.StatusError
		if errors.As(err, &statusErr) && statusErr.IsClientError() {
			g.logger.Debug("no robots.txt", "url", target, "status", statusErr.StatusCode)
			return AllowAll(SourceMissing), nil
		}
		return g.unavailable(target, err)
	}

	policy, err := ParseRobots(resp.Body)
	if err != nil {
		return g.unavailable(target, err)
	}
	g.logger.Debug("loaded robots.txt", "url", target)
	return policy, nil
}

// unavailable applies the robots mode to a retrieval failure.
func (g *Gate) unavailable(target string, cause error) (*RobotsPolicy, error) {
	if g.mode == ModeStrict {
		return nil, fmt.Errorf("%w: %s: %w", ErrRobotsUnavailable, target, cause)
	}
	g.logger.Warn("robots.txt unavailable, allowing all paths",
		"url", target,
		"error", cause)
	return AllowAll(SourceUnavailable), nil
}
