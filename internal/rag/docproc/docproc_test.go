package docproc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragcore/internal/ragerr"
)

func TestProcessRejectsUnsupportedExtension(t *testing.T) {
	_, err := Process("doc.pdf", []byte("hello"))
	require.Error(t, err)
	assert.True(t, ragerr.Is(err, ragerr.UnsupportedFormat))
}

func TestProcessCSVRendersRows(t *testing.T) {
	raw := []byte("Name,Age\nAlice,30\nBob,25\n")
	out, err := Process("people.csv", raw)
	require.NoError(t, err)
	assert.Contains(t, out.Text, "Row 1: Name=Alice, Age=30")
	assert.Contains(t, out.Text, "Row 2: Name=Bob, Age=25")
}

func TestProcessMarkdownStripsCodeAndHeaders(t *testing.T) {
	raw := []byte("# Test\n\n```go\nfunc main(){}\n```\n\n- item one\n- item two\n- item three\n")
	out, err := Process("test.md", raw)
	require.NoError(t, err)
	assert.NotContains(t, out.Text, "func main")
	assert.NotContains(t, out.Text, "#")
	assert.Contains(t, out.Text, "item one")
}

func TestNormalizeCollapsesWhitespaceAndBlankLines(t *testing.T) {
	in := "hello   world\r\n\r\n\r\n\r\nnext \t line"
	got := Normalize(in)
	assert.NotContains(t, got, "\r")
	assert.NotContains(t, got, "\n\n\n")
	assert.Contains(t, got, "hello world")
}

func TestSplitSentencesDropsShortFragments(t *testing.T) {
	text := "Hi. This is a longer sentence that should survive. Ok."
	out := SplitSentences(text)
	for _, s := range out {
		assert.GreaterOrEqual(t, len(s), minSentenceChars)
	}
	assert.NotEmpty(t, out)
}

func TestDecodeValidUTF8(t *testing.T) {
	text, enc, err := Decode([]byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, "utf-8", enc)
	assert.Equal(t, "hello world", text)
}
