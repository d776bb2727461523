package cache

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSelectsConfiguredDatabase(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.RequireAuth("s3cret")

	_, err := New(context.Background(), Options{Addr: mr.Addr(), Password: "wrong"})
	require.Error(t, err)

	client, err := New(context.Background(), Options{Addr: mr.Addr(), Password: "s3cret", DB: 2})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Set(context.Background(), "cart:1:7", "x", 0).Err())
	got, err := mr.DB(2).Get("cart:1:7")
	require.NoError(t, err)
	assert.Equal(t, "x", got)
	assert.False(t, mr.DB(0).Exists("cart:1:7"))
}

func TestNewRequiresAddress(t *testing.T) {
	_, err := New(context.Background(), Options{})
	assert.Error(t, err)
}

func TestQueueSharesConnectionSettings(t *testing.T) {
	opts := Options{Addr: "redis:6379", Password: "pw", DB: 3, ClientName: "b2b-worker"}
	q := opts.Queue()
	assert.Equal(t, "redis:6379", q.Addr)
	assert.Equal(t, "pw", q.Password)
	assert.Equal(t, 3, q.DB)
}
