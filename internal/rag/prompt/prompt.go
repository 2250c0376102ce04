package prompt

import (
	"strings"

	"ragcore/internal/rag/domain"
)

// Request carries everything Build needs to assemble a prompt (spec §4.5/§4.6).
type Request struct {
	Query          string
	Context        domain.RAGContext
	QueryType      domain.QueryType // auto-classified from Query when empty
	SafetyLevel    domain.SafetyLevel
	ResponseFormat domain.ResponseFormat
}

// Build selects a template by queryType (classifying from the query when
// unset), formats the context, and appends the safety and response-format
// blocks (spec §4.5 steps 1-4).
func Build(req Request) string {
	qtype := req.QueryType
	if qtype == "" {
		qtype = Classify(req.Query)
	}

	formatted := formatContext(req.Context)
	body := templateFor(qtype, formatted != "")
	body = strings.ReplaceAll(body, "{context}", formatted)
	body = strings.ReplaceAll(body, "{query}", req.Query)

	var b strings.Builder
	b.WriteString(body)

	level := req.SafetyLevel
	if level == "" {
		level = domain.SafetyStandard
	}
	b.WriteString("\n\n")
	b.WriteString(safetyGuidelines(level))

	if instr := responseFormatInstruction(req.ResponseFormat); instr != "" {
		b.WriteString("\n\n")
		b.WriteString(instr)
	}

	return b.String()
}
