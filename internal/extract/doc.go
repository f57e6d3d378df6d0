// Package extract turns fetched bytes into structured text.
//
// HTMLExtractor parses a page with github.com/PuerkitoBio/goquery, captures
// the title and anchors, strips non-content elements, locates the content
// region through an ordered list of RegionStrategy values and renders
// headings, paragraphs and list items as text blocks.
//
// PDFExtractor writes the document to a temporary file and reads its page
// text with github.com/ledongthuc/pdf. The temporary file is removed on
// every path, and panics raised by malformed documents are turned into
// errors.
//
// Both extractors produce a Document carrying the raw text (block structure
// kept) and the cleaned text (NFKC-normalized, whitespace collapsed).
package extract
