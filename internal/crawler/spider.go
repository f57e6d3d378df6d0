package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/nao1215/sitecrawl/internal/extract"
	"github.com/nao1215/sitecrawl/internal/fetch"
	"github.com/nao1215/sitecrawl/internal/model"
	"golang.org/x/sync/errgroup"
)

// Fetcher retrieves a resource. *fetch.Client satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.Response, error)
}

// Gate decides whether and when a URL may be fetched.
// *politeness.Gate satisfies it.
type Gate interface {
	// Allowed reports whether robots rules permit rawURL. An error means
	// no robots policy can be applied and the crawl must stop.
	Allowed(ctx context.Context, rawURL string) (bool, error)

	// Wait blocks until a request to host may be sent.
	Wait(ctx context.Context, host string) error
}

// PageExtractor extracts an HTML page. *extract.HTMLExtractor satisfies it.
type PageExtractor interface {
	Extract(pageURL string, body []byte, resolve extract.Resolver) (*extract.Document, error)
}

// DocumentExtractor extracts a PDF document. *extract.PDFExtractor satisfies it.
type DocumentExtractor interface {
	Extract(ctx context.Context, pdfURL string, body []byte) (*extract.Document, error)
}

// Sink receives the records produced by a crawl.
type Sink interface {
	Put(ctx context.Context, record *model.ContentRecord) error
}

// Spider crawls one site from a seed URL.
//
// A Spider holds configuration only. All state of a crawl lives in the
// Crawl call, so a Spider can run several crawls one after another.
type Spider struct {
	// fetcher retrieves pages and documents.
	fetcher Fetcher

	// gate enforces robots rules and request pacing.
	gate Gate

	// pages extracts HTML pages.
	pages PageExtractor

	// documents extracts PDF documents.
	documents DocumentExtractor

	// workers is the number of concurrent fetch/extract workers.
	workers int

	// maxPages limits the number of successfully fetched resources.
	// Zero means unbounded.
	maxPages int

	// ignorePatterns and followPatterns are passed to the Scope.
	ignorePatterns []string
	followPatterns []string

	// logger receives progress and per-URL errors.
	logger *slog.Logger

	// onFailure is called by the coordinator for every per-URL error.
	onFailure func(model.Failure)
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithGate sets the politeness gate. Without one every URL is allowed and
// requests are not paced.
func WithGate(g Gate) SpiderOption {
	return func(s *Spider) {
		if g != nil {
			s.gate = g
		}
	}
}

// WithPageExtractor replaces the HTML extractor.
func WithPageExtractor(e PageExtractor) SpiderOption {
	return func(s *Spider) {
		if e != nil {
			s.pages = e
		}
	}
}

// WithDocumentExtractor replaces the PDF extractor.
func WithDocumentExtractor(e DocumentExtractor) SpiderOption {
	return func(s *Spider) {
		if e != nil {
			s.documents = e
		}
	}
}

// WithWorkers sets the number of concurrent workers. Values below 1 are ignored.
// With one worker the crawl is a strict breadth-first traversal.
func WithWorkers(n int) SpiderOption {
	return func(s *Spider) {
		if n >= 1 {
			s.workers = n
		}
	}
}

// WithMaxPages sets the page budget. Zero means unbounded.
func WithMaxPages(maxPages int) SpiderOption {
	return func(s *Spider) {
		if maxPages >= 0 {
			s.maxPages = maxPages
		}
	}
}

// WithPatterns sets the ignore and follow path patterns of the crawl scope.
func WithPatterns(ignore, follow []string) SpiderOption {
	return func(s *Spider) {
		s.ignorePatterns = ignore
		s.followPatterns = follow
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithFailureHandler sets a function called for every per-URL error.
// It runs on the coordinator goroutine and must not block.
func WithFailureHandler(fn func(model.Failure)) SpiderOption {
	return func(s *Spider) {
		s.onFailure = fn
	}
}

// NewSpider creates a Spider that fetches with fetcher.
func NewSpider(fetcher Fetcher, opts ...SpiderOption) *Spider {
	s := &Spider{
		fetcher:   fetcher,
		gate:      openGate{},
		pages:     extract.NewHTMLExtractor(),
		documents: extract.NewPDFExtractor(),
		workers:   1,
		logger:    slog.Default(),
		onFailure: func(model.Failure) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// outcome is what a worker reports for one target.
type outcome struct {
	target Target

	// fetched is true when the resource was retrieved successfully.
	fetched bool

	// finalURL is the normalized URL the fetcher ended up at when it
	// followed a redirect. Empty when it equals the target URL.
	finalURL string

	// redirect is the Location of a redirect the fetcher did not follow.
	redirect string

	// record is set when extraction succeeded.
	record *model.ContentRecord

	// err is the per-URL error, if any.
	err *CrawlError

	// fatal stops the crawl.
	fatal error

	// cancelled is true when the context ended before the target was done.
	cancelled bool
}

// crawlState is the state owned by the coordinator during one crawl.
type crawlState struct {
	scope     *Scope
	frontier  *Frontier
	sink      Sink
	stats     *model.CrawlStats
	processed int
	inFlight  int
	fatal     error
}

// Crawl crawls the site of seed and hands every record to sink.
//
// The crawl ends when the frontier is empty and no target is in flight, or
// when the page budget is used up. Cancelling ctx stops dispatching; targets
// already in flight are drained before Crawl returns the stats collected so
// far together with the context error. The sink is not closed.
func (s *Spider) Crawl(ctx context.Context, seed string, sink Sink) (*model.CrawlStats, error) {
	scope, err := NewScope(seed, WithIgnorePatterns(s.ignorePatterns), WithFollowPatterns(s.followPatterns))
	if err != nil {
		return nil, &CrawlError{Kind: FatalStartup, URL: seed, Err: err}
	}

	st := &crawlState{
		scope:    scope,
		frontier: NewFrontier(),
		sink:     sink,
		stats:    &model.CrawlStats{},
	}
	st.frontier.Enqueue(scope.Seed())

	s.logger.Info("crawl started",
		"seed", scope.Seed(),
		"workers", s.workers,
		"max_pages", s.maxPages)

	tasks := make(chan Target)
	results := make(chan outcome)

	var g errgroup.Group
	for i := 0; i < s.workers; i++ {
		g.Go(func() error {
			for t := range tasks {
				results <- s.process(ctx, scope, t)
			}
			return nil
		})
	}

	for {
		// inFlight < workers guarantees an idle worker is receiving on tasks.
		for st.inFlight < s.workers && s.canDispatch(ctx, st) {
			t, ok := s.nextTarget(st)
			if !ok {
				break
			}
			tasks <- t
			st.inFlight++
		}
		if st.inFlight == 0 {
			break
		}
		res := <-results
		st.inFlight--
		s.handle(ctx, st, res)
	}

	close(tasks)
	if err := g.Wait(); err != nil {
		return st.stats, err
	}

	st.stats.Visited = st.frontier.VisitedCount()
	s.logger.Info("crawl finished",
		"pages", st.stats.PagesProcessed,
		"records", st.stats.RecordsProduced,
		"visited", st.stats.Visited,
		"remaining", st.frontier.Len())

	if st.fatal != nil {
		return st.stats, st.fatal
	}
	if err := ctx.Err(); err != nil {
		return st.stats, err
	}
	return st.stats, nil
}

// canDispatch reports whether another target may be handed to a worker.
func (s *Spider) canDispatch(ctx context.Context, st *crawlState) bool {
	if st.fatal != nil || ctx.Err() != nil {
		return false
	}
	return s.maxPages == 0 || st.processed+st.inFlight < s.maxPages
}

// nextTarget pops targets until one that is not yet visited is found and
// marks it visited.
func (s *Spider) nextTarget(st *crawlState) (Target, bool) {
	for {
		t, ok := st.frontier.Next()
		if !ok {
			return Target{}, false
		}
		if t.Claimed || st.frontier.MarkVisited(t.URL) {
			return t, true
		}
	}
}

// process runs the politeness check, the fetch and the extraction of one
// target. It runs on a worker goroutine and must not touch crawl state.
func (s *Spider) process(ctx context.Context, scope *Scope, t Target) outcome {
	out := outcome{target: t}

	allowed, err := s.gate.Allowed(ctx, t.URL)
	if err != nil {
		if ctx.Err() != nil {
			out.cancelled = true
			return out
		}
		out.fatal = &CrawlError{Kind: FatalStartup, URL: t.URL, Err: err}
		return out
	}
	if !allowed {
		out.err = &CrawlError{Kind: PolicyDenied, URL: t.URL, Err: ErrDisallowed}
		return out
	}

	if err := s.gate.Wait(ctx, hostOf(t.URL)); err != nil {
		out.cancelled = true
		return out
	}

	resp, err := s.fetcher.Fetch(ctx, t.URL)
	if err != nil {
		if ctx.Err() != nil {
			out.cancelled = true
			return out
		}
		var redirectErr *fetch.RedirectError
		if errors.As(err, &redirectErr) {
			out.redirect = redirectErr.Location
			return out
		}
		out.err = &CrawlError{Kind: FetchFailure, URL: t.URL, Err: err}
		return out
	}

	sourceURL := t.URL
	if resp.URL != "" {
		final, err := Normalize(resp.URL)
		if err != nil || !scope.InScope(final) {
			out.err = &CrawlError{Kind: FetchFailure, URL: t.URL, Err: fmt.Errorf("%w: %s", ErrRedirectOutOfScope, resp.URL)}
			return out
		}
		if final != t.URL {
			allowed, err := s.gate.Allowed(ctx, final)
			if err != nil {
				if ctx.Err() != nil {
					out.cancelled = true
					return out
				}
				out.fatal = &CrawlError{Kind: FatalStartup, URL: final, Err: err}
				return out
			}
			if !allowed {
				out.err = &CrawlError{Kind: PolicyDenied, URL: final, Err: ErrDisallowed}
				return out
			}
			out.finalURL = final
			sourceURL = final
		}
	}
	out.fetched = true

	doc, err := s.extract(ctx, scope, t, sourceURL, resp)
	if err != nil {
		out.err = &CrawlError{Kind: ExtractionFailure, URL: sourceURL, Err: err}
		return out
	}

	out.record = &model.ContentRecord{
		SourceURL:       sourceURL,
		SourceKind:      t.Kind,
		Title:           doc.Title,
		RawText:         doc.RawText,
		CleanedText:     doc.CleanedText,
		DiscoveredLinks: doc.Links,
		ContentType:     resp.ContentType,
		FetchedAt:       resp.FetchedAt,
	}
	if t.Kind == model.SourceKindHTML {
		out.record.HTML = string(resp.Body)
	}
	return out
}

// extract dispatches to the extractor for the target kind. Relative links
// resolve against sourceURL, the URL the body was served from.
func (s *Spider) extract(ctx context.Context, scope *Scope, t Target, sourceURL string, resp *fetch.Response) (*extract.Document, error) {
	switch t.Kind {
	case model.SourceKindPDF:
		return s.documents.Extract(ctx, sourceURL, resp.Body)
	case model.SourceKindHTML:
		return s.pages.Extract(sourceURL, resp.Body, func(href string) (string, bool) {
			return scope.Resolve(sourceURL, href)
		})
	default:
		return nil, fmt.Errorf("unsupported source kind %q", t.Kind)
	}
}

// handle applies a worker outcome to the crawl state.
// It runs on the coordinator goroutine.
func (s *Spider) handle(ctx context.Context, st *crawlState, res outcome) {
	switch {
	case res.cancelled:
		s.logger.Debug("target abandoned", "url", res.target.URL)
		return
	case res.fatal != nil:
		if st.fatal == nil {
			st.fatal = res.fatal
			s.logger.Error("crawl aborted", "url", res.target.URL, "error", res.fatal)
		}
		return
	}

	if res.redirect != "" {
		s.followRedirect(st, res)
		return
	}
	if res.err != nil {
		s.recordError(st, res.err)
	}
	if !res.fetched {
		return
	}

	st.processed++
	st.stats.PagesProcessed = st.processed
	if res.finalURL != "" && !st.frontier.MarkVisited(res.finalURL) {
		s.logger.Debug("redirect target already visited", "url", res.target.URL, "target", res.finalURL)
		return
	}
	if res.record == nil {
		return
	}

	// Records still in flight at cancellation are stored anyway.
	if err := st.sink.Put(context.WithoutCancel(ctx), res.record); err != nil {
		s.recordError(st, &CrawlError{Kind: PersistenceFailure, URL: res.target.URL, Err: err})
	} else {
		st.stats.RecordsProduced++
		if res.record.SourceKind == model.SourceKindPDF {
			st.stats.PDFRecords++
		} else {
			st.stats.HTMLRecords++
		}
		s.logger.Info("record stored",
			"url", res.record.SourceURL,
			"kind", res.record.SourceKind,
			"title", res.record.Title)
	}

	s.route(st, res.record.DiscoveredLinks)
}

// followRedirect queues the target of an unfollowed redirect like a
// discovered link, so it passes the same scope, pattern, robots and
// dedup checks. A target outside the scope is a fetch failure.
func (s *Spider) followRedirect(st *crawlState, res outcome) {
	link, ok := st.scope.Resolve(res.target.URL, res.redirect)
	if !ok {
		s.recordError(st, &CrawlError{
			Kind: FetchFailure,
			URL:  res.target.URL,
			Err:  fmt.Errorf("%w: %s", ErrRedirectOutOfScope, res.redirect),
		})
		return
	}
	s.logger.Debug("redirected", "url", res.target.URL, "target", link)
	s.route(st, []string{link})
}

// route adds discovered links to the frontier. PDF links are marked visited
// and put on the document lane; other links join the page queue.
func (s *Spider) route(st *crawlState, links []string) {
	for _, link := range links {
		if !st.scope.Admit(link) {
			s.logger.Debug("link not admitted", "url", link)
			continue
		}
		if Classify(link) == model.SourceKindPDF {
			if st.frontier.MarkVisited(link) {
				st.frontier.PushDocument(link)
			}
			continue
		}
		st.frontier.Enqueue(link)
	}
}

// recordError counts a per-URL error, logs it and reports it to the
// failure handler.
func (s *Spider) recordError(st *crawlState, crawlErr *CrawlError) {
	switch crawlErr.Kind {
	case PolicyDenied:
		st.stats.Denied++
		s.logger.Info("denied by robots.txt", "url", crawlErr.URL)
		return
	case FetchFailure:
		st.stats.FetchFailures++
	case ExtractionFailure:
		st.stats.ExtractionFailures++
	case PersistenceFailure:
		st.stats.PersistenceFailures++
	}

	attrs := []any{"url", crawlErr.URL, "kind", crawlErr.Kind.String(), "error", crawlErr.Err}
	if code, ok := statusCode(crawlErr.Err); ok {
		attrs = append(attrs, "status", code)
	}
	s.logger.Warn("url failed", attrs...)
	s.onFailure(model.Failure{
		URL:     crawlErr.URL,
		Kind:    crawlErr.Kind.String(),
		Message: crawlErr.Err.Error(),
	})
}

// hostOf returns the host of rawURL, or rawURL itself if it cannot be parsed.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Host
}

// openGate allows every URL without pacing.
type openGate struct{}

// Allowed implements Gate.
func (openGate) Allowed(context.Context, string) (bool, error) {
	return true, nil
}

// Wait implements Gate.
func (openGate) Wait(ctx context.Context, _ string) error {
	return ctx.Err()
}

// statusCode returns the HTTP status code carried by err, if any.
func statusCode(err error) (int, bool) {
	var statusErr *fetch.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode, true
	}
	return 0, false
}
