package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ragcore/internal/rag/domain"
)

func TestFormatContextEmptyWhenNoResults(t *testing.T) {
	assert.Empty(t, formatContext(domain.RAGContext{}))
}

func TestFormatContextRendersDocumentBlocks(t *testing.T) {
	ctx := domain.RAGContext{Results: []domain.SearchResult{
		{SourceFile: "a.txt", ChunkIndex: 0, Score: 0.913, Text: "first chunk"},
		{SourceFile: "b.txt", ChunkIndex: 2, Score: 0.5, Text: "second chunk"},
	}}
	got := formatContext(ctx)
	assert.Contains(t, got, "Document 1: a.txt (Relevance: 0.913)")
	assert.Contains(t, got, "Chunk: 0")
	assert.Contains(t, got, "Content: first chunk")
	assert.Contains(t, got, "Document 2: b.txt (Relevance: 0.500)")
	assert.Contains(t, got, "Chunk: 2")
}

func TestSafetyGuidelinesConservativeMentionsExperts(t *testing.T) {
	got := safetyGuidelines(domain.SafetyConservative)
	assert.Contains(t, got, "qualified expert")
}

func TestSafetyGuidelinesHasFiveBullets(t *testing.T) {
	for _, level := range []domain.SafetyLevel{domain.SafetyStandard, domain.SafetyConservative, domain.SafetyPermissive} {
		got := safetyGuidelines(level)
		count := 0
		for _, line := range splitLines(got) {
			if len(line) > 0 && line[0] == '-' {
				count++
			}
		}
		assert.Equal(t, 5, count, level)
	}
}

func TestResponseFormatInstructionKnownFormats(t *testing.T) {
	assert.Contains(t, responseFormatInstruction(domain.FormatJSON), "JSON")
	assert.Equal(t, "", responseFormatInstruction(domain.FormatText))
	assert.Equal(t, "", responseFormatInstruction(""))
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i, r := range s {
		if r == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	lines = append(lines, s[start:])
	return lines
}
