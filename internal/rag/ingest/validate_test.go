package ingest

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragcore/internal/ragerr"
)

func TestValidateRejectsUnsupportedExtension(t *testing.T) {
	_, err := validate("payload.exe", []byte("hello"), 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ragerr.ErrUnsupportedFormat)
}

func TestValidateRejectsDoubleExtension(t *testing.T) {
	_, err := validate("invoice.exe.txt", []byte("hello"), 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ragerr.ErrInvalidInput)
}

func TestValidateRejectsHardSizeCap(t *testing.T) {
	data := bytes.Repeat([]byte("a"), hardSizeCapBytes+1)
	_, err := validate("big.txt", data, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ragerr.ErrInvalidInput)
}

func TestValidateRejectsConfiguredMaxFileSize(t *testing.T) {
	data := bytes.Repeat([]byte("a"), 100)
	_, err := validate("small.txt", data, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, ragerr.ErrInvalidInput)
}

func TestValidateAcceptsPlainText(t *testing.T) {
	res, err := validate("notes.txt", []byte("hello world"), 0)
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
}

func TestUniquifyPathAppendsSuffixOnCollision(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc.txt"), []byte("x"), 0o644))
	got := uniquifyPath(dir, "doc.txt")
	assert.Equal(t, filepath.Join(dir, "doc_1.txt"), got)
}

func TestUniquifyPathReturnsOriginalWhenFree(t *testing.T) {
	dir := t.TempDir()
	got := uniquifyPath(dir, "fresh.txt")
	assert.Equal(t, filepath.Join(dir, "fresh.txt"), got)
}
