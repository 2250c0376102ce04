package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilRedisCacheIsDisabled(t *testing.T) {
	var c *RedisCache
	_, ok, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, c.Set(context.Background(), "k", []byte("v"), 0))
	assert.NoError(t, c.Close())
}
