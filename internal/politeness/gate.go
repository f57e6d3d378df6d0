package politeness

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultDelay is the minimum spacing between two requests to one host.
	DefaultDelay = time.Second

	// DefaultJitterMin is the lower bound of the random jitter.
	DefaultJitterMin = 500 * time.Millisecond

	// DefaultJitterMax is the upper bound of the random jitter.
	DefaultJitterMax = time.Second
)

// Gate enforces robots exclusion and request pacing.
// A Gate is safe for concurrent use; all workers of a crawl share one Gate.
type Gate struct {
	// fetcher retrieves robots.txt.
	fetcher Fetcher

	// userAgent is matched against robots.txt groups.
	userAgent string

	// mode decides how an unavailable robots.txt is handled.
	mode Mode

	// delay is the configured spacing between requests to one host.
	delay time.Duration

	// jitterMin and jitterMax bound the random jitter added before each request.
	jitterMin time.Duration
	jitterMax time.Duration

	// logger receives policy decisions.
	logger *slog.Logger

	// policiesMu guards policies. It is held while a policy is loading so
	// robots.txt is requested once per host even with many workers.
	policiesMu sync.Mutex
	policies   map[string]*policyEntry

	// limitersMu guards limiters.
	limitersMu sync.Mutex
	limiters   map[string]*hostLimiter
}

// policyEntry caches the outcome of loading robots.txt for one host.
type policyEntry struct {
	policy *RobotsPolicy
	err    error
}

// hostLimiter paces requests to one host. mu serializes waiters so the
// jitter of one request is not overlapped by the next.
type hostLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
}

// Option configures a Gate.
type Option func(*Gate)

// WithUserAgent sets the agent name matched against robots.txt.
func WithUserAgent(ua string) Option {
	return func(g *Gate) {
		if ua != "" {
			g.userAgent = ua
		}
	}
}

// WithMode sets the robots mode.
func WithMode(mode Mode) Option {
	return func(g *Gate) {
		if mode != "" {
			g.mode = mode
		}
	}
}

// WithDelay sets the minimum spacing between requests to one host.
func WithDelay(d time.Duration) Option {
	return func(g *Gate) {
		if d >= 0 {
			g.delay = d
		}
	}
}

// WithJitter sets the bounds of the random jitter added before each request.
// Passing zero for both disables the jitter.
func WithJitter(minJitter, maxJitter time.Duration) Option {
	return func(g *Gate) {
		if minJitter < 0 || maxJitter < minJitter {
			return
		}
		g.jitterMin = minJitter
		g.jitterMax = maxJitter
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGate creates a Gate that retrieves robots.txt with fetcher.
func NewGate(fetcher Fetcher, opts ...Option) *Gate {
	g := &Gate{
		fetcher:   fetcher,
		userAgent: "sitecrawl",
		mode:      ModeLenient,
		delay:     DefaultDelay,
		jitterMin: DefaultJitterMin,
		jitterMax: DefaultJitterMax,
		logger:    slog.Default(),
		policies:  make(map[string]*policyEntry),
		limiters:  make(map[string]*hostLimiter),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Policy returns the robots policy for the host of rawURL, loading it on
// first use. In strict mode an unavailable robots.txt yields
// ErrRobotsUnavailable, and keeps yielding it for that host.
func (g *Gate) Policy(ctx context.Context, rawURL string) (*RobotsPolicy, error) {
	_, host, err := robotsURL(rawURL)
	if err != nil {
		return nil, err
	}

	g.policiesMu.Lock()
	defer g.policiesMu.Unlock()

	if entry, ok := g.policies[host]; ok {
		return entry.policy, entry.err
	}

	policy, err := g.loadPolicy(ctx, rawURL)
	if ctx.Err() != nil {
		// Do not cache a result produced by cancellation.
		return policy, err
	}
	g.policies[host] = &policyEntry{policy: policy, err: err}
	return policy, err
}

// Allowed reports whether robots.txt permits fetching rawURL.
// The error is non-nil only in strict mode when robots.txt is unavailable.
func (g *Gate) Allowed(ctx context.Context, rawURL string) (bool, error) {
	policy, err := g.Policy(ctx, rawURL)
	if err != nil {
		return false, err
	}
	return policy.Allowed(rawURL, g.userAgent), nil
}

// Delay returns the effective spacing for host: the larger of the configured
// delay and the robots Crawl-delay, if robots.txt for host is already loaded.
func (g *Gate) Delay(host string) time.Duration {
	host = strings.ToLower(host)

	g.policiesMu.Lock()
	entry, ok := g.policies[host]
	g.policiesMu.Unlock()

	d := g.delay
	if ok && entry.policy != nil {
		if crawlDelay := entry.policy.CrawlDelay(g.userAgent); crawlDelay > d {
			d = crawlDelay
		}
	}
	return d
}

// Wait blocks until a request to host may be sent.
//
// Consecutive requests to one host are spaced by at least Delay(host).
// Each request is preceded by a random jitter in [jitterMin, jitterMax].
// The limiter interval includes the jitter spread, so the spacing holds
// whatever jitter the previous request drew. The first request to a host
// also waits a full interval. Wait returns the context error if ctx ends
// first.
func (g *Gate) Wait(ctx context.Context, host string) error {
	hl := g.limiter(host)

	hl.mu.Lock()
	defer hl.mu.Unlock()

	if err := hl.limiter.Wait(ctx); err != nil {
		return err
	}
	return sleep(ctx, g.jitter())
}

// limiter returns the limiter for host, creating it on first use.
func (g *Gate) limiter(host string) *hostLimiter {
	host = strings.ToLower(host)

	g.limitersMu.Lock()
	defer g.limitersMu.Unlock()

	if hl, ok := g.limiters[host]; ok {
		return hl
	}

	interval := g.Delay(host) + (g.jitterMax - g.jitterMin)
	var limiter *rate.Limiter
	if interval <= 0 {
		limiter = rate.NewLimiter(rate.Inf, 1)
	} else {
		limiter = rate.NewLimiter(rate.Every(interval), 1)
		// Consume the initial token so the first request waits too.
		limiter.Allow()
	}

	hl := &hostLimiter{limiter: limiter}
	g.limiters[host] = hl
	g.logger.Debug("created host limiter", "host", host, "interval", interval)
	return hl
}

// jitter returns a random duration in [jitterMin, jitterMax].
func (g *Gate) jitter() time.Duration {
	spread := g.jitterMax - g.jitterMin
	if spread <= 0 {
		return g.jitterMin
	}
	return g.jitterMin + rand.N(spread+1) //nolint:gosec // jitter does not need a secure source
}

// sleep pauses for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
