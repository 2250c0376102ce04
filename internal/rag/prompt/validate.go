package prompt

import (
	"regexp"
	"strings"

	"ragcore/internal/rag/domain"
)

// dangerousPatterns flags dangerous-how-to phrasing (spec §4.5 response
// validation). Each match costs 0.1, floored at 0.5 for this category alone.
var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)how to (make|build|create) (a |an )?(bomb|explosive|weapon)`),
	regexp.MustCompile(`(?i)how to (hack|break into|bypass security)`),
	regexp.MustCompile(`(?i)how to (synthesi[sz]e|manufacture) (drugs|poison)`),
	regexp.MustCompile(`(?i)how to (harm|hurt|kill) (someone|yourself|a person)`),
}

// genericPhrases are low-information responses penalized under 100 chars.
var genericPhrases = []string{
	"i don't know", "i do not know", "i cannot answer", "i can't answer",
	"no information available", "unable to determine",
}

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true, "was": true,
	"were": true, "of": true, "to": true, "and": true, "or": true, "in": true,
	"on": true, "at": true, "for": true, "with": true, "it": true, "this": true,
	"that": true, "as": true, "by": true, "be": true, "has": true, "have": true,
	"not": true, "but": true, "its": true, "from": true, "do": true, "does": true,
}

var wordRe = regexp.MustCompile(`[a-zA-Z0-9]+`)

// Validation is the outcome of ValidateResponse (spec §4.5: status +
// safetyScore).
type Validation struct {
	Status      domain.ValidationStatus
	SafetyScore float32
}

// ValidateResponse scores response against context per spec §4.5.
func ValidateResponse(response string, context domain.RAGContext) Validation {
	score := float32(1.0)
	status := domain.ValidationValid

	if n := countDangerousMatches(response); n > 0 {
		score -= 0.1 * float32(n)
		if score < 0.5 {
			score = 0.5
		}
		status = domain.ValidationWarning
	}

	if context.AssembledText != "" && !sharesNonStopwordToken(response, context.AssembledText) {
		score -= 0.2
		status = domain.ValidationWarning
	}

	trimmed := strings.TrimSpace(response)
	if len(trimmed) < 20 {
		score -= 0.1
		status = domain.ValidationWarning
	} else if len(trimmed) < 100 && containsGenericPhrase(trimmed) {
		score -= 0.1
		status = domain.ValidationWarning
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	if score < 0.3 {
		status = domain.ValidationError
	}

	return Validation{Status: status, SafetyScore: score}
}

func countDangerousMatches(response string) int {
	n := 0
	for _, re := range dangerousPatterns {
		if re.MatchString(response) {
			n++
		}
	}
	return n
}

func containsGenericPhrase(response string) bool {
	lower := strings.ToLower(response)
	for _, p := range genericPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// sharesNonStopwordToken reports whether response and context share at
// least one non-stopword token (case-insensitive).
func sharesNonStopwordToken(response, context string) bool {
	ctxTokens := tokenSet(context)
	for _, w := range wordRe.FindAllString(strings.ToLower(response), -1) {
		if stopwords[w] {
			continue
		}
		if ctxTokens[w] {
			return true
		}
	}
	return false
}

func tokenSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range wordRe.FindAllString(strings.ToLower(s), -1) {
		if stopwords[w] {
			continue
		}
		out[w] = true
	}
	return out
}
