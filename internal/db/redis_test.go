package db

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := OpenRedis(mr.Addr(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestRedisStore(t *testing.T) {
	store, _ := newTestRedis(t)
	runStoreContract(t, store)
}

func TestRedisStore_MalformedRecordIsAbsent(t *testing.T) {
	store, mr := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("chat:42", "{not json"))
	_, err := mr.ZAdd(redisByCreatedKey, 1, "42")
	require.NoError(t, err)

	_, err = store.GetChat(ctx, 42)
	assert.True(t, errors.Is(err, ErrNotFound))

	headers, err := store.ListHeaders(ctx)
	require.NoError(t, err)
	assert.Empty(t, headers)
}

func TestRedisStore_LogsMalformedRecord(t *testing.T) {
	mr := miniredis.RunT(t)
	var buf bytes.Buffer
	store, err := OpenRedis(mr.Addr(), slog.New(slog.NewTextHandler(&buf, nil)))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, mr.Set("chat:42", "{not json"))
	_, err = store.GetChat(context.Background(), 42)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, buf.String(), "chat_id=42")
}

func TestRedisStore_LatestChatIDBreaksTiesByID(t *testing.T) {
	store, _ := newTestRedis(t)
	ctx := context.Background()
	at := time.UnixMilli(1_700_000_000_000)

	var last int64
	for i := 0; i < 10; i++ {
		id, err := store.AddChat(ctx, sampleChat(fmt.Sprintf("chat %d", i), at))
		require.NoError(t, err)
		last = id
	}
	require.Equal(t, int64(10), last)

	id, ok, err := store.LatestChatID(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, last, id, "ids compare as numbers, not strings")

	_, err = store.AddChat(ctx, sampleChat("backdated", at.Add(-time.Hour)))
	require.NoError(t, err)
	id, _, err = store.LatestChatID(ctx)
	require.NoError(t, err)
	assert.Equal(t, last, id, "creation time decides, not insertion order")
}

func TestRedisStore_Usage(t *testing.T) {
	store, mr := newTestRedis(t)
	ctx := context.Background()

	empty, err := store.Usage(ctx)
	require.NoError(t, err)
	assert.Zero(t, empty)

	id, err := store.AddChat(ctx, sampleChat("measured", time.Now()))
	require.NoError(t, err)
	raw, err := mr.Get(fmt.Sprintf("chat:%d", id))
	require.NoError(t, err)

	size, err := store.Usage(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(len(raw)), size)

	require.NoError(t, store.DeleteChat(ctx, id))
	size, err = store.Usage(ctx)
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestOpenRedis_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := OpenRedis(addr, nil)
	assert.Error(t, err)
}
