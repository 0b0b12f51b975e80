package extract

import (
	"regexp"

	"github.com/docpin/docpin/internal/querytypes"
	"github.com/docpin/docpin/internal/resolve"
)

// Pattern-detectable query types. Rules extraction runs without a model and
// covers only these; other requested types simply produce no candidates.
var rulePatterns = map[string]*regexp.Regexp{
	// CJK book titles are bracketed unambiguously.
	querytypes.BookTitle: regexp.MustCompile(`《([^《》]+)》`),
	// Amounts and percentages, with common CJK unit suffixes.
	querytypes.Number: regexp.MustCompile(`[-+]?\d[\d,]*(?:\.\d+)?(?:%|万元|亿元|万|亿|元)?`),
}

// extractRules runs the regex extractors for the requested types over the
// document text. Output order follows the type list, then text position.
func extractRules(text string, types []querytypes.QueryType) []resolve.Candidate {
	var out []resolve.Candidate
	for _, qt := range types {
		re, ok := rulePatterns[qt.Name]
		if !ok {
			continue
		}
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			value := m[0]
			if len(m) > 1 {
				value = m[1]
			}
			out = append(out, resolve.Candidate{Type: qt.Name, Value: value})
		}
	}
	return out
}
