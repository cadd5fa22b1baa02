package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInMemoryHandle(t *testing.T) *Handle {
	t.Helper()
	task, err := newInMemoryTask(nil)
	require.NoError(t, err)
	h, ok := task.(*Handle)
	require.True(t, ok)
	return h
}

func TestInMemoryGetSetRoundTrip(t *testing.T) {
	h := newInMemoryHandle(t)
	ctx := context.Background()

	_, ok, err := h.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, h.Set(ctx, "k", "v", nil))
	v, ok, err := h.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestInMemorySetExplicitTTLExpires(t *testing.T) {
	h := newInMemoryHandle(t)
	ctx := context.Background()

	ttl := 10 * time.Millisecond
	require.NoError(t, h.Set(ctx, "k", "v", &ttl))

	_, ok, err := h.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	time.Sleep(20 * time.Millisecond)
	_, ok, err = h.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "entry should have expired")
}

func TestInMemorySetNilTTLUsesDefault(t *testing.T) {
	task, err := newInMemoryTask(mustJSON(t, Config{DefaultTTL: 1}))
	require.NoError(t, err)
	h := task.(*Handle)
	assert.Equal(t, time.Second, h.defaultTTL)

	require.NoError(t, h.Set(context.Background(), "k", "v", nil))
	entry := h.backend.(*inMemoryBackend).items["k"]
	assert.False(t, entry.expires.IsZero(), "nil ttl should apply the configured default expiry")
}

func TestInMemoryDeleteAndExists(t *testing.T) {
	h := newInMemoryHandle(t)
	ctx := context.Background()

	ok, err := h.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, h.Set(ctx, "k", "v", nil))
	ok, err = h.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	deleted, err := h.Delete(ctx, "k")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = h.Delete(ctx, "k")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestInMemoryIncrCreatesAndAccumulates(t *testing.T) {
	h := newInMemoryHandle(t)
	ctx := context.Background()

	n, err := h.Incr(ctx, "counter", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	n, err = h.Incr(ctx, "counter", -2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestInMemoryIncrNonIntegerFails(t *testing.T) {
	h := newInMemoryHandle(t)
	ctx := context.Background()

	require.NoError(t, h.Set(ctx, "counter", "not-a-number", nil))
	_, err := h.Incr(ctx, "counter", 1)
	assert.Error(t, err)
}

func TestInMemoryMGet(t *testing.T) {
	h := newInMemoryHandle(t)
	ctx := context.Background()

	require.NoError(t, h.Set(ctx, "a", "1", nil))
	values, err := h.MGet(ctx, []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, values, 2)
	require.NotNil(t, values[0])
	assert.Equal(t, "1", *values[0])
	assert.Nil(t, values[1])
}

func mustJSON(t *testing.T, cfg Config) []byte {
	t.Helper()
	b, err := json.Marshal(cfg)
	require.NoError(t, err)
	return b
}
