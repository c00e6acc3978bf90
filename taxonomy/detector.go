package taxonomy

import "strings"

// Detector reports which categories an answer history satisfies.
// Implementations must be idempotent: the same history always yields the
// same result, regardless of how many answers arrived per call.
type Detector interface {
	Detect(answers []string) []Category
}

// KeywordDetector satisfies a category when any of its derived keywords or
// example answers appears as a substring of the lowercased answer history.
//
// Keywords come from three sources: the category name split on "/", the
// example answers (also split on "/"), and a fixed synonym table covering
// phrasings the literal name never matches ("30-person fintech startup"
// names neither "company size" nor "industry"). It is a substring
// heuristic, not a classifier; swap the Detector for anything smarter.
type KeywordDetector struct {
	synonyms map[string][]string
}

// NewKeywordDetector returns the default keyword detector.
func NewKeywordDetector() *KeywordDetector {
	return &KeywordDetector{
		synonyms: map[string][]string{
			CompanySize:   {"employees", "employee", "headcount", "staff", "-person", " person "},
			Industry:      {"fintech", "startup", "tech ", "technology", "finance", "manufacturing", "retail", "healthcare", "saas", "software"},
			AnnualRevenue: {"revenue", "turnover"},
			RiskProfile:   {"risk", "worried", "concerned", "cyberattack", "cyber attack", "data breach", "lawsuit", "claims"},
			Budget:        {"budget", "spend", "premium"},
			Country:       {"country", "based in", "headquartered"},
			CryptoNeeds:   {"crypto", "bitcoin", "digital asset"},
			GracePeriod:   {"grace period", "subsidiary"},
		},
	}
}

var _ Detector = (*KeywordDetector)(nil)

// Detect returns the satisfied categories in canonical order. It always
// re-scans the entire history, so it is order-independent in outcome.
func (d *KeywordDetector) Detect(answers []string) []Category {
	text := strings.ToLower(strings.Join(answers, " "))
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var satisfied []Category
	for _, category := range categories {
		if d.matches(category, text) {
			satisfied = append(satisfied, category)
		}
	}
	return satisfied
}

func (d *KeywordDetector) matches(category Category, text string) bool {
	for _, keyword := range splitKeywords(category.Name) {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	for _, answer := range category.ExampleAnswers {
		for _, keyword := range splitKeywords(answer) {
			if strings.Contains(text, keyword) {
				return true
			}
		}
	}
	for _, keyword := range d.synonyms[category.Name] {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}

// splitKeywords lowercases s and splits it on "/", trimming each segment.
func splitKeywords(s string) []string {
	parts := strings.Split(strings.ToLower(s), "/")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Missing returns the categories not present in satisfied, in canonical
// order.
func Missing(satisfied []Category) []Category {
	have := make(map[string]bool, len(satisfied))
	for _, c := range satisfied {
		have[c.Name] = true
	}

	var missing []Category
	for _, c := range categories {
		if !have[c.Name] {
			missing = append(missing, c)
		}
	}
	return missing
}
