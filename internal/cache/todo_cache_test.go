package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/mtodo/internal/model"
)

func setupCache(t *testing.T) (*TodoCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return NewTodoCache(client, time.Minute), mr
}

func TestTodoCacheFillGet(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()
	ts := int64(1700000000000)
	todo := &model.Todo{ID: "t1", Text: "x", Completed: true, CompletedAt: &ts, Creator: "u1", Ctime: 1, Mtime: 2}

	_, version, err := c.Get(ctx, "u1", "t1")
	require.NoError(t, err)
	require.NoError(t, c.Fill(ctx, todo, version))

	got, _, err := c.Get(ctx, "u1", "t1")
	require.NoError(t, err)
	require.Equal(t, todo, got)
}

func TestTodoCacheMiss(t *testing.T) {
	c, _ := setupCache(t)
	got, version, err := c.Get(context.Background(), "u1", "missing")
	require.NoError(t, err)
	require.Nil(t, got)
	require.Equal(t, int64(0), version)
}

func TestTodoCacheOwnerScopedKey(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()
	require.NoError(t, c.Fill(ctx, &model.Todo{ID: "t1", Text: "x", Creator: "u1"}, 0))

	got, _, err := c.Get(ctx, "u2", "t1")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestTodoCacheInvalidateBumpsVersion(t *testing.T) {
	c, mr := setupCache(t)
	ctx := context.Background()
	require.NoError(t, c.Fill(ctx, &model.Todo{ID: "t1", Text: "x", Creator: "u1"}, 0))
	require.NoError(t, c.Invalidate(ctx, "u1", "t1"))

	got, version, err := c.Get(ctx, "u1", "t1")
	require.NoError(t, err)
	require.Nil(t, got)
	require.Equal(t, int64(1), version)
	require.Equal(t, versionTTL, mr.TTL(versionKey("u1", "t1")))
}

func TestTodoCacheStaleFillIsDropped(t *testing.T) {
	c, mr := setupCache(t)
	ctx := context.Background()
	_, version, err := c.Get(ctx, "u1", "t1")
	require.NoError(t, err)

	require.NoError(t, c.Invalidate(ctx, "u1", "t1"))
	require.NoError(t, c.Fill(ctx, &model.Todo{ID: "t1", Text: "old", Creator: "u1"}, version))
	require.False(t, mr.Exists(todoKey("u1", "t1")))

	_, version, err = c.Get(ctx, "u1", "t1")
	require.NoError(t, err)
	require.NoError(t, c.Fill(ctx, &model.Todo{ID: "t1", Text: "new", Creator: "u1"}, version))
	got, _, err := c.Get(ctx, "u1", "t1")
	require.NoError(t, err)
	require.Equal(t, "new", got.Text)
}

func TestTodoCacheTTL(t *testing.T) {
	c, mr := setupCache(t)
	ctx := context.Background()
	require.NoError(t, c.Fill(ctx, &model.Todo{ID: "t1", Text: "x", Creator: "u1"}, 0))
	require.Equal(t, time.Minute, mr.TTL(todoKey("u1", "t1")))

	mr.FastForward(2 * time.Minute)
	got, _, err := c.Get(ctx, "u1", "t1")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestTodoCacheCorruptEntryIsDropped(t *testing.T) {
	c, mr := setupCache(t)
	require.NoError(t, mr.Set(todoKey("u1", "t1"), "{not json"))

	_, _, err := c.Get(context.Background(), "u1", "t1")
	require.Error(t, err)
	require.False(t, mr.Exists(todoKey("u1", "t1")))
}

func TestNewRedisClientUnreachable(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "127.0.0.1:1", "", 0)
	require.Error(t, err)
}
