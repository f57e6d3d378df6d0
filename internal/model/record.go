package model

import (
	"encoding/hex"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"
)

// SourceKind identifies what kind of resource a ContentRecord was extracted from.
type SourceKind string

const (
	// SourceKindHTML marks records extracted from HTML pages.
	SourceKindHTML SourceKind = "html_page"

	// SourceKindPDF marks records extracted from PDF documents.
	SourceKindPDF SourceKind = "pdf_document"
)

// String returns the kind as a string.
func (k SourceKind) String() string {
	return string(k)
}

// Valid reports whether k is one of the known kinds.
func (k SourceKind) Valid() bool {
	return k == SourceKindHTML || k == SourceKindPDF
}

// Label returns a short human-readable label for reports ("HTML" or "PDF").
func (k SourceKind) Label() string {
	switch k {
	case SourceKindHTML:
		return "HTML"
	case SourceKindPDF:
		return "PDF"
	default:
		return "unknown"
	}
}

// ContentRecord is the unit of crawl output: the structured content of one
// fetched resource. A record is created once by an extractor and is not
// modified afterwards; sinks only read it.
type ContentRecord struct {
	// SourceURL is the normalized URL the resource was fetched from.
	SourceURL string `json:"source_url"`

	// SourceKind tells whether the resource was an HTML page or a PDF document.
	SourceKind SourceKind `json:"source_kind"`

	// Title is the HTML <title> text, or a label derived from the PDF filename.
	Title string `json:"title"`

	// RawText keeps block structure: text blocks separated by newlines.
	RawText string `json:"raw_text"`

	// CleanedText is RawText with every whitespace run collapsed to one space.
	CleanedText string `json:"cleaned_text"`

	// DiscoveredLinks lists in-scope links found in the resource, in document
	// order. Always empty for PDF documents.
	DiscoveredLinks []string `json:"discovered_links"`

	// ContentType is the Content-Type header of the response, if any.
	ContentType string `json:"content_type,omitempty"`

	// FetchedAt is when the response was received.
	FetchedAt time.Time `json:"fetched_at"`

	// HTML is the fetched markup of an HTML page. It is not serialized.
	HTML string `json:"-"`
}

// ContentHash returns the hex-encoded SHA3-256 digest of the cleaned text.
// Two records with the same hash carry the same text.
func (r *ContentRecord) ContentHash() string {
	sum := sha3.Sum256([]byte(r.CleanedText))
	return hex.EncodeToString(sum[:])
}

// WordCount returns the number of whitespace-separated words in the cleaned text.
func (r *ContentRecord) WordCount() int {
	return len(strings.Fields(r.CleanedText))
}

// IsEmpty reports whether the record carries no text at all.
func (r *ContentRecord) IsEmpty() bool {
	return strings.TrimSpace(r.CleanedText) == ""
}
