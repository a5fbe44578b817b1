package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCompositePanicOnEmpty(t *testing.T) {
	assert.Panics(t, func() {
		NewComposite()
	})
}

func TestCompositeGetOrder(t *testing.T) {
	ctx := context.Background()
	l1 := NewInMemory(ctx)
	l2 := NewInMemory(ctx)
	c := NewComposite(l1, l2)
	defer c.Close()

	l1.Set(ctx, "key", "from-l1", time.Minute)
	l2.Set(ctx, "key", "from-l2", time.Minute)

	found, val, err := c.Get(ctx, "key")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "from-l1", val)

	l2.Set(ctx, "only-l2", "deep", time.Minute)
	found, val, err = c.Get(ctx, "only-l2")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "deep", val)
}

func TestCompositeSetExpireClear(t *testing.T) {
	ctx := context.Background()
	l1 := NewInMemory(ctx)
	l2 := NewInMemory(ctx)
	c := NewComposite(l1, l2)
	defer c.Close()

	assert.NoError(t, c.Set(ctx, "key", "shared", time.Minute))
	for _, layer := range []Cache{l1, l2} {
		found, val, err := layer.Get(ctx, "key")
		assert.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "shared", val)
	}

	l2.Set(ctx, "extra", 1, time.Minute)
	n, err := c.Len(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 2, n)

	found, err := c.Expire(ctx, "key")
	assert.NoError(t, err)
	assert.True(t, found)
	found, _, _ = l2.Get(ctx, "key")
	assert.False(t, found)

	assert.NoError(t, c.Clear(ctx))
	n, err = c.Len(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestCompositeWithRedis(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	l1 := NewInMemory(ctx)
	l2 := NewRedis(client, WithPrefix("l2"))
	c := NewComposite(l1, l2)
	defer c.Close()

	assert.NoError(t, l2.Set(ctx, "key", "remote", time.Minute))
	ok, v, err := GetContext[string](ctx, c, "key")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "remote", v)
}

func TestCompositeBackfillsFrontLayers(t *testing.T) {
	ctx := context.Background()
	l1 := NewInMemory(ctx)
	l2 := NewInMemory(ctx)
	c := NewComposite(l1, l2)
	defer c.Close()

	l2.Set(ctx, "warm", "from-l2", time.Minute)
	found, _, _ := l1.Get(ctx, "warm")
	assert.False(t, found)

	found, val, err := c.Get(ctx, "warm")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "from-l2", val)

	found, val, err = l1.Get(ctx, "warm")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "from-l2", val)
}
