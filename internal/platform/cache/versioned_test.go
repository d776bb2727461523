package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Value int `json:"value"`
}

func newTestCache(t *testing.T) *Versioned {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewVersioned(client, "test", time.Minute)
}

func TestFetchJSONCachesUntilBump(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return payload{Value: calls * 10}, nil
	}

	key, err := c.BuildKey(ctx, "7", "summary")
	require.NoError(t, err)

	var got payload
	require.NoError(t, c.FetchJSON(ctx, key, &got, loader))
	require.Equal(t, 10, got.Value)
	require.NoError(t, c.FetchJSON(ctx, key, &got, loader))
	require.Equal(t, 1, calls)

	require.NoError(t, c.Bump(ctx, "7"))
	key2, err := c.BuildKey(ctx, "7", "summary")
	require.NoError(t, err)
	require.NotEqual(t, key, key2)

	require.NoError(t, c.FetchJSON(ctx, key2, &got, loader))
	require.Equal(t, 20, got.Value)
	require.Equal(t, 2, calls)
}

func TestBumpIsScoped(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	a1, err := c.BuildKey(ctx, "1", "x")
	require.NoError(t, err)
	b1, err := c.BuildKey(ctx, "2", "x")
	require.NoError(t, err)

	require.NoError(t, c.Bump(ctx, "1"))

	a2, err := c.BuildKey(ctx, "1", "x")
	require.NoError(t, err)
	b2, err := c.BuildKey(ctx, "2", "x")
	require.NoError(t, err)
	require.NotEqual(t, a1, a2)
	require.Equal(t, b1, b2)
}

func TestNilClientCallsLoader(t *testing.T) {
	c := NewVersioned(nil, "test", time.Minute)
	var got payload
	err := c.FetchJSON(context.Background(), "k", &got, func(context.Context) (any, error) {
		return payload{Value: 3}, nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, got.Value)
}
