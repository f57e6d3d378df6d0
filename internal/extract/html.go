package extract

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const (
	// NoTitle is used when a page has no <title>.
	NoTitle = "No Title"

	// DefaultMinBlockLength is the shortest block, in characters, kept in the output.
	DefaultMinBlockLength = 5

	// DefaultStripSelectors lists elements removed before text extraction.
	DefaultStripSelectors = "script, style, noscript, template, meta, link, head, header, footer, nav"

	// blockSelector matches the elements rendered as text blocks.
	blockSelector = "h1, h2, h3, h4, h5, h6, p, li"

	// blockSeparator separates blocks in RawText.
	blockSeparator = "\n\n"
)

// Document is the text extracted from one resource.
type Document struct {
	// Title is the page title or PDF filename.
	Title string

	// RawText holds the text blocks separated by newlines.
	RawText string

	// CleanedText is RawText normalized with all whitespace collapsed.
	CleanedText string

	// Links lists resolved in-scope links in document order, without duplicates.
	Links []string

	// Region names the strategy that located the content, empty for PDFs.
	Region string
}

// Resolver resolves an href found on the page to an absolute in-scope URL.
// It reports false for hrefs that must be dropped.
type Resolver func(href string) (string, bool)

// HTMLExtractor extracts structured text from HTML pages.
// It holds no per-page state and is safe for concurrent use.
type HTMLExtractor struct {
	// strategies locate the content region, tried in order.
	strategies []RegionStrategy

	// stripSelectors lists elements removed before text extraction.
	stripSelectors string

	// minBlockLength is the minimum block length in characters.
	minBlockLength int
}

// HTMLOption configures an HTMLExtractor.
type HTMLOption func(*HTMLExtractor)

// WithContentSelectors puts a strategy for the given CSS selectors in front
// of the default strategies. Used for site-specific content containers.
func WithContentSelectors(selectors ...string) HTMLOption {
	return func(e *HTMLExtractor) {
		if len(selectors) == 0 {
			return
		}
		e.strategies = append([]RegionStrategy{Selectors(selectors...)}, e.strategies...)
	}
}

// WithStrategies replaces the region strategies.
func WithStrategies(strategies ...RegionStrategy) HTMLOption {
	return func(e *HTMLExtractor) {
		if len(strategies) > 0 {
			e.strategies = strategies
		}
	}
}

// WithStripSelectors replaces the selector of elements removed before extraction.
func WithStripSelectors(selectors string) HTMLOption {
	return func(e *HTMLExtractor) {
		e.stripSelectors = selectors
	}
}

// WithMinBlockLength sets the minimum block length in characters.
func WithMinBlockLength(n int) HTMLOption {
	return func(e *HTMLExtractor) {
		if n >= 0 {
			e.minBlockLength = n
		}
	}
}

// NewHTMLExtractor creates an HTMLExtractor.
func NewHTMLExtractor(opts ...HTMLOption) *HTMLExtractor {
	e := &HTMLExtractor{
		strategies:     DefaultStrategies(),
		stripSelectors: DefaultStripSelectors,
		minBlockLength: DefaultMinBlockLength,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract parses body as the HTML page at pageURL.
//
// The title and the anchors are taken from the full document. Non-content
// elements are then removed and the content region is rendered block by
// block: headings as "H2: text", paragraphs and list items as plain text.
// Links are passed through resolve; those it rejects are dropped.
func (e *HTMLExtractor) Extract(pageURL string, body []byte, resolve Resolver) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrParseHTML, pageURL, err)
	}

	result := &Document{
		Title: extractTitle(doc),
		Links: extractLinks(doc, resolve),
	}

	if e.stripSelectors != "" {
		doc.Find(e.stripSelectors).Remove()
	}

	region, name := findRegion(doc, e.strategies)
	result.Region = name

	blocks := e.extractBlocks(region)
	result.RawText = strings.Join(blocks, blockSeparator)
	result.CleanedText = CleanText(result.RawText)

	return result, nil
}

// extractTitle returns the trimmed <title> text or NoTitle.
func extractTitle(doc *goquery.Document) string {
	title := doc.Find("title").First()
	if title.Length() == 0 {
		return NoTitle
	}
	if text := CollapseWhitespace(title.Text()); text != "" {
		return text
	}
	return NoTitle
}

// extractLinks resolves every anchor href, keeping first occurrences only.
func extractLinks(doc *goquery.Document, resolve Resolver) []string {
	links := make([]string, 0)
	if resolve == nil {
		return links
	}

	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		link, ok := resolve(strings.TrimSpace(href))
		if !ok {
			return
		}
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		links = append(links, link)
	})
	return links
}

// extractBlocks renders the block elements of region in document order.
// A block nested inside another block is covered by its ancestor's text
// and is skipped.
func (e *HTMLExtractor) extractBlocks(region *goquery.Selection) []string {
	blocks := make([]string, 0)
	region.Each(func(_ int, area *goquery.Selection) {
		area.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
			if s.ParentsUntilSelection(area).Filter(blockSelector).Length() > 0 {
				return
			}

			node := s.Get(0)
			text := nodeText(node)
			if utf8.RuneCountInString(text) < e.minBlockLength {
				return
			}

			if isHeading(node.Data) {
				text = strings.ToUpper(node.Data) + ": " + text
			}
			blocks = append(blocks, text)
		})
	})
	return blocks
}

// isHeading reports whether tag is h1 through h6.
func isHeading(tag string) bool {
	return len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6'
}
