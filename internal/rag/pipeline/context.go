package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"ragcore/internal/persistence/databases"
	"ragcore/internal/rag/domain"
)

// assembleContext implements spec §4.6 step 4: sort by score desc
// (defensively, results should already arrive sorted), then greedily pack
// full chunk texts under maxContextChars, truncating the last one that
// still fits at least 100 chars and stopping there.
func assembleContext(hits []databases.VectorResult, maxContextChars int) domain.RAGContext {
	sorted := make([]databases.VectorResult, len(hits))
	copy(sorted, hits)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	var b strings.Builder
	var results []domain.SearchResult
	var sources []string
	var scores []float32
	seenSource := map[string]bool{}

	for _, h := range sorted {
		header := fmt.Sprintf("Source: %s chunkIndex: %d\n", h.SourceFile, h.ChunkIndex)
		full := header + h.Text
		sep := ""
		if b.Len() > 0 {
			sep = "\n\n"
		}
		remaining := maxContextChars - b.Len() - len(sep)
		if remaining <= 0 {
			break
		}

		var piece string
		var text string
		if len(full) <= remaining {
			piece = full
			text = h.Text
		} else if remaining-len(header) >= 100 {
			avail := remaining - len(header) - 3
			text = h.Text[:avail] + "..."
			piece = header + text
		} else {
			break
		}

		b.WriteString(sep)
		b.WriteString(piece)

		results = append(results, domain.SearchResult{
			ChunkID:    h.ChunkID,
			Text:       text,
			Score:      h.Score,
			SourceFile: h.SourceFile,
			ChunkIndex: h.ChunkIndex,
			Metadata:   h.Metadata,
		})
		scores = append(scores, h.Score)
		if !seenSource[h.SourceFile] {
			seenSource[h.SourceFile] = true
			sources = append(sources, h.SourceFile)
		}

		if text != h.Text {
			break // this chunk was truncated; nothing more will fit
		}
	}

	return domain.RAGContext{
		Results:         results,
		AssembledText:   b.String(),
		ContextLength:   b.Len(),
		SourceFiles:     sources,
		RelevanceScores: scores,
	}
}
