package crawler

import (
	"net/url"
	"strings"

	"github.com/nao1215/sitecrawl/internal/model"
)

// Classify decides the kind of resource rawURL points to.
// A path ending in ".pdf" (any case) is a PDF document, anything else is
// an HTML page. Only the URL is consulted, never the response.
func Classify(rawURL string) model.SourceKind {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	} else if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if strings.HasSuffix(strings.ToLower(p), ".pdf") {
		return model.SourceKindPDF
	}
	return model.SourceKindHTML
}
