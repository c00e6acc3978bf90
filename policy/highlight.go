package policy

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

var highlightSanitizer = bluemonday.StrictPolicy()

// NormalizeHighlight converts backend highlight markup into plain text and
// the list of emphasized terms. RAGFlow wraps matched terms in <em> tags;
// the graph backend returns raw clause text. Either way the result is safe
// to render verbatim.
func NormalizeHighlight(markup string) (text string, terms []string) {
	if strings.TrimSpace(markup) == "" {
		return "", nil
	}

	if strings.Contains(markup, "<") {
		terms = extractEmphasized(markup)
	}

	text = strings.TrimSpace(highlightSanitizer.Sanitize(markup))
	return text, terms
}

func extractEmphasized(markup string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var terms []string
	doc.Find("em, mark, strong").Each(func(_ int, sel *goquery.Selection) {
		term := strings.TrimSpace(sel.Text())
		if term != "" && !seen[term] {
			seen[term] = true
			terms = append(terms, term)
		}
	})
	return terms
}
