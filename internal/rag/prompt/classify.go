// Package prompt implements C5: query classification, template selection,
// context formatting, safety/format instructions, and response validation
// (spec §4.5).
package prompt

import (
	"strings"

	"ragcore/internal/rag/domain"
)

// classificationOrder is the precedence FACTUAL -> ANALYTICAL -> COMPARATIVE
// -> SUMMARIZATION -> CREATIVE -> GENERAL (spec §4.5); keywords per the
// glossary.
var classificationOrder = []struct {
	qtype    domain.QueryType
	keywords []string
}{
	{domain.QueryFactual, []string{"what is", "when", "where", "who", "how many", "how much", "facts", "data"}},
	{domain.QueryAnalytical, []string{"analyze", "explain", "why", "how does", "what causes", "implications", "trends", "analysis"}},
	{domain.QueryComparative, []string{"compare", "difference", "similar", "versus", "vs", "contrast", "better", "worse"}},
	{domain.QuerySummarization, []string{"summarize", "summary", "overview", "brief", "key points", "main points"}},
	{domain.QueryCreative, []string{"creative", "innovative", "ideas", "suggestions", "brainstorm", "imagine"}},
}

// Classify assigns a QueryType by keyword heuristics over the lowercased
// query, in the fixed precedence order above, defaulting to GENERAL.
func Classify(query string) domain.QueryType {
	lower := strings.ToLower(query)
	for _, class := range classificationOrder {
		for _, kw := range class.keywords {
			if strings.Contains(lower, kw) {
				return class.qtype
			}
		}
	}
	return domain.QueryGeneral
}
