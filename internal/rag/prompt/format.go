package prompt

import (
	"fmt"
	"strings"

	"ragcore/internal/rag/domain"
)

// formatContext renders each retrieved result as a "Document i" block with
// its relevance score, chunk index, and content (spec §4.5 step 2). It
// formats directly off the structured RAGContext.Results rather than
// re-parsing RAGContext.AssembledText's "Source:" headers, which is more
// robust than string round-tripping and produces the identical block shape.
func formatContext(ctx domain.RAGContext) string {
	if len(ctx.Results) == 0 {
		return ""
	}
	var b strings.Builder
	for i, r := range ctx.Results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Document %d: %s (Relevance: %.3f)\nChunk: %d\nContent: %s", i+1, r.SourceFile, r.Score, r.ChunkIndex, r.Text)
	}
	return b.String()
}

// safetyGuidelines returns the five-bullet safety block for level (spec
// §4.5 step 3). CONSERVATIVE swaps in an explicit medical/legal/financial
// caution in place of the generic caveat PERMISSIVE/STANDARD carry.
func safetyGuidelines(level domain.SafetyLevel) string {
	switch level {
	case domain.SafetyConservative:
		return "Safety Guidelines:\n" + strings.Join([]string{
			"- Only state facts that are directly supported by the provided context.",
			"- Do not speculate or fill gaps with assumptions.",
			"- For medical, legal, or financial topics, explicitly caution that this is not professional advice and a qualified expert should be consulted.",
			"- Decline to answer if the context does not contain enough information.",
			"- Flag any contradictions found across the provided sources.",
		}, "\n")
	case domain.SafetyPermissive:
		return "Safety Guidelines:\n" + strings.Join([]string{
			"- Prefer the provided context, but reasonable general knowledge may fill small gaps.",
			"- Clearly mark any part of the answer not grounded in the context.",
			"- Avoid fabricating sources, statistics, or quotes.",
			"- Keep the response focused on what was asked.",
			"- Note when the available context is thin or ambiguous.",
		}, "\n")
	default: // domain.SafetyStandard and any unrecognized value
		return "Safety Guidelines:\n" + strings.Join([]string{
			"- Base the answer on the provided context wherever possible.",
			"- Do not fabricate facts, sources, or quotes.",
			"- Acknowledge when the context is insufficient to answer fully.",
			"- Keep the response focused and avoid unnecessary speculation.",
			"- Flag any contradictions found across the provided sources.",
		}, "\n")
	}
}

// responseFormatInstruction returns the formatting instruction appended for
// format, or "" for an empty/unrecognized value (spec §4.5 step 4).
func responseFormatInstruction(format domain.ResponseFormat) string {
	switch format {
	case domain.FormatBulletPoints:
		return "Respond using concise bullet points."
	case domain.FormatNumberedList:
		return "Respond as a numbered list of steps or items."
	case domain.FormatTable:
		return "Respond as a Markdown table with appropriate columns."
	case domain.FormatJSON:
		return "Respond with a single JSON object and no surrounding prose."
	case domain.FormatSummary:
		return "Respond with a brief summary of 2-3 sentences."
	case domain.FormatText:
		return ""
	default:
		return ""
	}
}
