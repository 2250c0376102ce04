// Package chunker implements C3's chunk assembly (spec §4.3 steps 6-7):
// greedy fill to MaxChunkChars with whole-sentence overlap, and offset/ID
// assignment. It consumes the normalized sentences docproc produces.
package chunker

import (
	"time"

	"github.com/google/uuid"

	"ragcore/internal/rag/docproc"
	"ragcore/internal/rag/domain"
	"ragcore/internal/ragerr"
)

// Options configures chunk assembly; field meanings match spec §6's
// MAX_CHUNK_CHARS / CHUNK_OVERLAP / MIN_CHUNK_CHARS / MAX_CHUNKS_PER_DOC.
type Options struct {
	MaxChunkChars   int
	ChunkOverlap    int
	MinChunkChars   int
	MaxChunksPerDoc int
}

// Assemble splits normalized text into sentences and greedily fills chunks up
// to MaxChunkChars, seeding each new chunk with up to ChunkOverlap trailing
// characters (whole sentences only) from the previous chunk. A final
// remainder shorter than MinChunkChars is folded into the previous chunk; a
// document with no previous chunk still yields that one short chunk. Returns UnsupportedFormat-free
// domain.Chunk values with DocumentID/SourceFile left for the caller to set.
func Assemble(text string, opt Options) ([]domain.Chunk, error) {
	sentences := docproc.SplitSentences(text)
	if len(sentences) == 0 {
		return nil, nil
	}

	var chunks []domain.Chunk
	var current []string
	currentLen := 0
	offset := 0
	chunkStart := 0

	flush := func(endOffset int) {
		text := joinSentences(current)
		if text == "" {
			return
		}
		chunks = append(chunks, domain.Chunk{
			Text:      text,
			StartChar: chunkStart,
			EndChar:   endOffset,
			ChunkIndex: len(chunks),
		})
	}

	for _, s := range sentences {
		sLen := len(s) + 1 // +1 for the joining space
		if currentLen > 0 && currentLen+sLen > opt.MaxChunkChars {
			flush(offset)
			if opt.MaxChunksPerDoc > 0 && len(chunks) > 0 && len(chunks) >= opt.MaxChunksPerDoc {
				return nil, ragerr.New("chunker.Assemble", ragerr.InvalidInput)
			}
			current, currentLen, chunkStart = seedOverlap(current, opt.ChunkOverlap, offset)
		}
		current = append(current, s)
		currentLen += sLen
		offset += len(s) + 1
	}

	if currentLen >= opt.MinChunkChars {
		flush(offset)
	} else if len(chunks) > 0 {
		// fold a too-small trailing remainder into the previous chunk rather
		// than dropping it, so no sentence is silently lost.
		last := &chunks[len(chunks)-1]
		last.Text = last.Text + " " + joinSentences(current)
		last.EndChar = offset
	} else if currentLen > 0 {
		// the whole document is shorter than MinChunkChars: still emit it,
		// there is nothing else to fold into.
		flush(offset)
	}

	if opt.MaxChunksPerDoc > 0 && len(chunks) > opt.MaxChunksPerDoc {
		return nil, ragerr.New("chunker.Assemble", ragerr.InvalidInput)
	}

	now := time.Now()
	for i := range chunks {
		chunks[i].ID = uuid.NewString()
		chunks[i].ChunkIndex = i
		chunks[i].CreatedAt = now
		chunks[i].UpdatedAt = now
	}
	return chunks, nil
}

func joinSentences(sentences []string) string {
	out := ""
	for i, s := range sentences {
		if i > 0 {
			out += " "
		}
		out += s
	}
	return out
}

// seedOverlap takes the trailing whole sentences of the just-flushed chunk
// totalling up to overlap chars, and returns them as the seed for the next
// chunk plus the offset at which the new chunk logically starts.
func seedOverlap(prevSentences []string, overlap int, endOffset int) ([]string, int, int) {
	if overlap <= 0 || len(prevSentences) == 0 {
		return nil, 0, endOffset
	}
	var seed []string
	total := 0
	start := endOffset
	for i := len(prevSentences) - 1; i >= 0; i-- {
		s := prevSentences[i]
		if total+len(s)+1 > overlap {
			break
		}
		seed = append([]string{s}, seed...)
		total += len(s) + 1
		start -= len(s) + 1
	}
	if start < 0 {
		start = 0
	}
	return seed, total, start
}
