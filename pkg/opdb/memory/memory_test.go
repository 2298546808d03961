package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutLoadDelete(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Put(ctx, "ns", "b", []byte("2")))
	require.NoError(t, s.Put(ctx, "ns", "a", []byte("1")))
	require.NoError(t, s.Put(ctx, "other", "c", []byte("3")))
	require.NoError(t, s.Delete(ctx, "ns", "missing"))

	var keys []string
	require.NoError(t, s.Load(ctx, "ns", func(key string, value []byte) error {
		keys = append(keys, key+"="+string(value))
		return nil
	}))
	assert.Equal(t, []string{"a=1", "b=2"}, keys)

	require.NoError(t, s.Delete(ctx, "ns", "a"))
	require.NoError(t, s.Clear(ctx, "other"))

	count := 0
	require.NoError(t, s.Load(ctx, "other", func(string, []byte) error { count++; return nil }))
	assert.Zero(t, count)
}

func TestValuesAreCopied(t *testing.T) {
	ctx := context.Background()
	s := New()

	v := []byte("abc")
	require.NoError(t, s.Put(ctx, "ns", "k", v))
	v[0] = 'x'

	require.NoError(t, s.Load(ctx, "ns", func(_ string, value []byte) error {
		assert.Equal(t, "abc", string(value))
		return nil
	}))
}

func TestClosed(t *testing.T) {
	s := New()
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Put(context.Background(), "ns", "k", nil), ErrClosed)
}
