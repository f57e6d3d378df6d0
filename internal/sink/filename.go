package sink

import (
	"encoding/hex"
	"net/url"
	"path"
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/nao1215/sitecrawl/internal/model"
)

const (
	// MaxFileNameLength is the longest file name FileName returns.
	MaxFileNameLength = 150

	// maxQueryLength bounds the part of the file name taken from the query.
	maxQueryLength = 50

	// hashNameLength is the number of hex digits used by fallback names.
	hashNameLength = 32
)

// FileName derives a file name for a record from its URL and kind.
//
// The URL path segments are joined with "_" ("index" for the site root),
// any extension is replaced with ".txt" (".pdf.txt" for PDF documents), and
// the query string is appended with "&" turned into "_" and "=" into "-".
// Only ASCII letters, digits, '.', '_' and '-' are kept. A name that ends up
// empty or longer than MaxFileNameLength is replaced by "page_" followed by
// a SHA3-256 prefix of the URL. The result depends on nothing but the
// arguments.
func FileName(rawURL string, kind model.SourceKind) string {
	ext := ".txt"
	if kind == model.SourceKindPDF {
		ext = ".pdf.txt"
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return hashName(rawURL, ext)
	}

	base := "index"
	if p := strings.Trim(u.Path, "/"); p != "" {
		base = strings.ReplaceAll(strings.TrimSuffix(p, path.Ext(path.Base(p))), "/", "_")
	}

	if u.RawQuery != "" {
		query := strings.NewReplacer("&", "_", "=", "-").Replace(u.RawQuery)
		if len(query) > maxQueryLength {
			query = query[:maxQueryLength]
		}
		base += "_" + query
	}

	name := sanitize(base)
	if name == "" || len(name)+len(ext) > MaxFileNameLength {
		return hashName(rawURL, ext)
	}
	return name + ext
}

// sanitize drops every byte outside [A-Za-z0-9._-].
func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteByte(c)
		case c == '.', c == '_', c == '-':
			b.WriteByte(c)
		}
	}
	return strings.Trim(b.String(), ".")
}

// hashName returns the fallback name for rawURL.
func hashName(rawURL, ext string) string {
	sum := sha3.Sum256([]byte(rawURL))
	return "page_" + hex.EncodeToString(sum[:])[:hashNameLength] + ext
}
