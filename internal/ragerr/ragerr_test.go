package ragerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapNilIsNil(t *testing.T) {
	require.Nil(t, Wrap("op", Internal, nil))
}

func TestIsMatchesSentinel(t *testing.T) {
	err := Wrap("Embedder.Encode", InvalidInput, errors.New("empty text"))
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.True(t, Is(err, InvalidInput))
	assert.False(t, Is(err, Timeout))
}

func TestKindOfUnknownErrorIsInternal(t *testing.T) {
	assert.Equal(t, Internal, KindOf(errors.New("boom")))
}

func TestKindOfExtractsWrappedKind(t *testing.T) {
	err := New("VectorStore.Search", NotFound)
	assert.Equal(t, NotFound, KindOf(err))
}

func TestErrorMessageIncludesCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Wrap("VectorStore.Upsert", Unavailable, cause)
	assert.Contains(t, err.Error(), "VectorStore.Upsert")
	assert.Contains(t, err.Error(), "unavailable")
	assert.Contains(t, err.Error(), "refused")
}
