package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb, err := Connect(context.Background(), mr.Addr(), 0)
	require.NoError(t, err)
	require.NotNil(t, rdb)
	defer rdb.Close()

	assert.NoError(t, rdb.Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestConnectDisabled(t *testing.T) {
	rdb, err := Connect(context.Background(), "", 0)
	assert.NoError(t, err)
	assert.Nil(t, rdb)
}

func TestConnectUnreachable(t *testing.T) {
	rdb, err := Connect(context.Background(), "127.0.0.1:1", 0)
	assert.Error(t, err)
	assert.Nil(t, rdb)
}
