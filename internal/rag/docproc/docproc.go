// Package docproc implements C3's format dispatch, decoding, format-specific
// extraction, normalization and sentence splitting (spec §4.3 steps 1-5).
// Chunk assembly (steps 6-7) lives in internal/rag/chunker, which consumes
// the sentences this package produces.
package docproc

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
	"golang.org/x/text/encoding/charmap"

	"ragcore/internal/ragerr"
)

// SupportedExtensions is the closed allow-list (§4.3 step 1, §6).
var SupportedExtensions = map[string]bool{
	".txt": true,
	".md":  true,
	".csv": true,
}

// Extracted is the result of decoding + format-specific extraction + normalization.
type Extracted struct {
	Text     string
	Encoding string
	Format   string
}

// Decode tries UTF-8 first, then latin-1, cp1252, iso-8859-1 in that order
// (§4.3 step 2). Returns DecodeError if all encodings fail.
func Decode(raw []byte) (text string, encodingName string, err error) {
	if isValidUTF8(raw) {
		return string(raw), "utf-8", nil
	}
	candidates := []struct {
		name string
		enc  *charmap.Charmap
	}{
		{"latin-1", charmap.ISO8859_1},
		{"cp1252", charmap.Windows1252},
		{"iso-8859-1", charmap.ISO8859_1},
	}
	for _, c := range candidates {
		decoded, decErr := c.enc.NewDecoder().String(string(raw))
		if decErr == nil {
			return decoded, c.name, nil
		}
	}
	return "", "", ragerr.New("docproc.Decode", ragerr.DecodeError)
}

func isValidUTF8(raw []byte) bool {
	return utf8.Valid(raw)
}

// Process dispatches on extension, decodes, extracts, and normalizes the
// given raw file bytes, returning normalized text ready for sentence
// splitting and chunk assembly.
func Process(filename string, raw []byte) (Extracted, error) {
	ext := extOf(filename)
	if !SupportedExtensions[ext] {
		return Extracted{}, ragerr.New("docproc.Process", ragerr.UnsupportedFormat)
	}

	text, enc, err := Decode(raw)
	if err != nil {
		return Extracted{}, err
	}

	var extractedText string
	switch ext {
	case ".txt":
		extractedText = text
	case ".csv":
		extractedText = extractCSV(text)
	case ".md":
		extractedText = extractMarkdown(text)
	}

	normalized := Normalize(extractedText)
	return Extracted{Text: normalized, Encoding: enc, Format: ext}, nil
}

func extOf(filename string) string {
	i := strings.LastIndex(filename, ".")
	if i < 0 {
		return ""
	}
	return strings.ToLower(filename[i:])
}

// extractCSV renders "Row i: col1=v1, col2=v2, ..." lines from a header +
// body CSV, preserving header labels (§4.3 step 3).
func extractCSV(text string) string {
	lines := splitLines(text)
	if len(lines) == 0 {
		return ""
	}
	headers := splitCSVLine(lines[0])
	var b strings.Builder
	for i, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		cols := splitCSVLine(line)
		fmt.Fprintf(&b, "Row %d: ", i+1)
		parts := make([]string, 0, len(cols))
		for j, col := range cols {
			label := fmt.Sprintf("col%d", j+1)
			if j < len(headers) && headers[j] != "" {
				label = headers[j]
			}
			parts = append(parts, fmt.Sprintf("%s=%s", label, col))
		}
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString("\n")
	}
	return b.String()
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Split(text, "\n")
}

func splitCSVLine(line string) []string {
	fields := strings.Split(line, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}

var (
	fencedCodeRe  = regexp.MustCompile("(?s)```.*?```")
	inlineCodeRe  = regexp.MustCompile("`[^`]*`")
	headerRe      = regexp.MustCompile(`(?m)^#{1,6}\s*`)
	boldItalicRe  = regexp.MustCompile(`(\*{1,3}|_{1,3})`)
	imageRe       = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	linkRe        = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	blankRunsRe   = regexp.MustCompile(`\n{3,}`)
)

// extractMarkdown strips fenced/inline code, headers, emphasis markers,
// images, and link targets (keeping link text), and collapses blank runs
// (§4.3 step 3).
func extractMarkdown(text string) string {
	out := fencedCodeRe.ReplaceAllString(text, "")
	out = inlineCodeRe.ReplaceAllString(out, "")
	out = imageRe.ReplaceAllString(out, "")
	out = linkRe.ReplaceAllString(out, "$1")
	out = headerRe.ReplaceAllString(out, "")
	out = boldItalicRe.ReplaceAllString(out, "")
	out = blankRunsRe.ReplaceAllString(out, "\n\n")
	return out
}

var controlCharRe = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
var whitespaceRunRe = regexp.MustCompile(`[ \t]+`)

// Normalize collapses whitespace runs to a single space, strips control
// characters (keeping \n and \t), normalizes line endings, caps consecutive
// newlines at 2, and trims (§4.3 step 4).
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = controlCharRe.ReplaceAllString(text, "")
	text = whitespaceRunRe.ReplaceAllString(text, " ")
	text = blankRunsRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// minSentenceChars drops sentence fragments shorter than this (§4.3 step 5).
const minSentenceChars = 10

var sentenceTokenizer *sentences.DefaultSentenceTokenizer

func init() {
	tok, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		// english.NewSentenceTokenizer(nil) uses built-in training data and
		// should never fail; if it somehow does, fall back to a tokenizer
		// with no training data rather than leaving a nil global.
		tok = sentences.NewSentenceTokenizer(nil)
	}
	sentenceTokenizer = tok
}

// SplitSentences splits normalized text into sentences, dropping fragments
// shorter than minSentenceChars (§4.3 step 5). Uses a trained sentence
// boundary detector instead of the lookbehind/lookahead regex a non-RE2
// engine could express, since Go's regexp (RE2) does not support either.
func SplitSentences(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	raw := sentenceTokenizer.Tokenize(text)
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		t := strings.TrimSpace(s.Text)
		if len(t) < minSentenceChars {
			continue
		}
		out = append(out, t)
	}
	return out
}
