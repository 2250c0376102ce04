package prompt

import "ragcore/internal/rag/domain"

// templates holds one body per query class plus BASE/FALLBACK (spec §4.5).
// Each template carries the {context}/{query} placeholders filled in by Build.
var templates = map[domain.QueryType]string{
	domain.QueryFactual: "Using only the context below, answer the factual question precisely and cite the source document for each fact.\n\nContext:\n{context}\n\nQuestion: {query}\n\nAnswer:",
	domain.QueryAnalytical: "Using the context below, analyze the question in depth: explain causes, mechanisms, and implications, grounding every claim in the provided sources.\n\nContext:\n{context}\n\nQuestion: {query}\n\nAnalysis:",
	domain.QueryComparative: "Using the context below, compare and contrast the subjects of the question, calling out concrete similarities and differences found in the sources.\n\nContext:\n{context}\n\nQuestion: {query}\n\nComparison:",
	domain.QuerySummarization: "Using the context below, produce a concise summary that captures the key points relevant to the question.\n\nContext:\n{context}\n\nQuestion: {query}\n\nSummary:",
	domain.QueryCreative: "Using the context below as inspiration, respond creatively to the request while staying grounded in the facts it contains.\n\nContext:\n{context}\n\nRequest: {query}\n\nResponse:",
	domain.QueryGeneral: "Using the context below, answer the question as helpfully and accurately as possible.\n\nContext:\n{context}\n\nQuestion: {query}\n\nAnswer:",
}

// baseTemplate is used when no context was retrieved but a queryType was
// still classified.
const baseTemplate = "Answer the following as helpfully and accurately as possible.\n\nQuestion: {query}\n\nAnswer:"

// fallbackTemplate is used when the query type has no dedicated template
// (should not happen given GENERAL always matches, but kept as a safety net).
const fallbackTemplate = "Context:\n{context}\n\nQuestion: {query}\n\nAnswer:"

func templateFor(qtype domain.QueryType, hasContext bool) string {
	if !hasContext {
		return baseTemplate
	}
	if t, ok := templates[qtype]; ok {
		return t
	}
	return fallbackTemplate
}
