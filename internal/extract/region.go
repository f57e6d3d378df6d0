package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// RegionStrategy locates the content region of a page.
// Strategies are tried in order; the first one returning a non-empty
// selection wins.
type RegionStrategy interface {
	// Name identifies the strategy in logs.
	Name() string

	// Select returns the candidate content elements, possibly empty.
	Select(doc *goquery.Document) *goquery.Selection
}

// selectorStrategy matches a list of CSS selectors, first match wins.
type selectorStrategy struct {
	name      string
	selectors []string
}

// Selectors returns a strategy that tries each CSS selector in turn and
// returns the elements of the first one that matches.
// Empty selectors are ignored.
func Selectors(selectors ...string) RegionStrategy {
	cleaned := make([]string, 0, len(selectors))
	for _, s := range selectors {
		if s = strings.TrimSpace(s); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	return &selectorStrategy{name: "selectors", selectors: cleaned}
}

// Name implements RegionStrategy.
func (s *selectorStrategy) Name() string {
	return s.name
}

// Select implements RegionStrategy.
func (s *selectorStrategy) Select(doc *goquery.Document) *goquery.Selection {
	for _, selector := range s.selectors {
		if found := doc.Find(selector); found.Length() > 0 {
			return found
		}
	}
	return empty(doc)
}

// Semantic returns a strategy matching <main> and <article> elements.
func Semantic() RegionStrategy {
	return &selectorStrategy{name: "semantic", selectors: []string{"main, article"}}
}

// contentHint matches class and id values that usually mark content containers.
var contentHint = regexp.MustCompile(`(?i)content|main|article|text|body`)

// heuristicStrategy matches containers whose class or id looks like content.
type heuristicStrategy struct{}

// Heuristic returns a strategy matching article, main, div and section
// elements whose class or id contains content, main, article, text or body.
func Heuristic() RegionStrategy {
	return heuristicStrategy{}
}

// Name implements RegionStrategy.
func (heuristicStrategy) Name() string {
	return "heuristic"
}

// Select implements RegionStrategy.
func (heuristicStrategy) Select(doc *goquery.Document) *goquery.Selection {
	return doc.Find("article, main, div, section").FilterFunction(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		id, _ := s.Attr("id")
		return contentHint.MatchString(class) || contentHint.MatchString(id)
	})
}

// WholeBody returns a strategy matching the <body> element.
func WholeBody() RegionStrategy {
	return &selectorStrategy{name: "body", selectors: []string{"body"}}
}

// DefaultStrategies returns the built-in strategy order:
// semantic, heuristic, whole body.
func DefaultStrategies() []RegionStrategy {
	return []RegionStrategy{Semantic(), Heuristic(), WholeBody()}
}

// findRegion runs the strategies in order and returns the outermost
// elements of the first non-empty match with the strategy name.
// It returns an empty selection and "" when nothing matches.
func findRegion(doc *goquery.Document, strategies []RegionStrategy) (*goquery.Selection, string) {
	for _, strategy := range strategies {
		found := strategy.Select(doc)
		if found.Length() == 0 {
			continue
		}
		return outermost(found), strategy.Name()
	}
	return empty(doc), ""
}

// empty returns an empty selection bound to doc.
func empty(doc *goquery.Document) *goquery.Selection {
	return doc.Selection.Slice(0, 0)
}

// outermost drops every element of sel that has an ancestor in sel.
func outermost(sel *goquery.Selection) *goquery.Selection {
	return sel.FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Parents().FilterSelection(sel).Length() == 0
	})
}
