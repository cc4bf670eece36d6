package valkeyrie_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ducktors/valkeyrie"
	"github.com/ducktors/valkeyrie/key"
)

func TestListRejectsStartAfterEnd(t *testing.T) {
	ctx := context.Background()
	kv := openTestKV(t)

	_, err := kv.List(ctx, valkeyrie.ByRange(
		[]key.Part{key.String("z")},
		[]key.Part{key.String("a")},
	), valkeyrie.ListOptions{})
	require.ErrorIs(t, err, valkeyrie.ErrStartAfterEnd)
}

func TestListRejectsPrefixBoundsViolation(t *testing.T) {
	ctx := context.Background()
	kv := openTestKV(t)

	_, err := kv.List(ctx, valkeyrie.ByPrefixFrom(
		[]key.Part{key.String("a")},
		[]key.Part{key.String("b")},
	), valkeyrie.ListOptions{})
	require.ErrorIs(t, err, valkeyrie.ErrPrefixBoundsViolation)
}

func TestListByRangeWithoutPrefix(t *testing.T) {
	ctx := context.Background()
	kv := openTestKV(t)

	for i := 0; i < 5; i++ {
		_, err := kv.Set(ctx, []key.Part{key.Int(int64(i))}, i, valkeyrie.SetOptions{})
		require.NoError(t, err)
	}

	it, err := kv.List(ctx, valkeyrie.ByRange(
		[]key.Part{key.Int(1)},
		[]key.Part{key.Int(4)},
	), valkeyrie.ListOptions{})
	require.NoError(t, err)

	var got []int64
	for {
		e, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		n, _ := e.Key[0].AsInt()
		got = append(got, n)
	}
	require.Equal(t, []int64{1, 2, 3}, got)
}

func TestListReverse(t *testing.T) {
	ctx := context.Background()
	kv := openTestKV(t)

	for i := 0; i < 5; i++ {
		_, err := kv.Set(ctx, []key.Part{key.Int(int64(i))}, i, valkeyrie.SetOptions{})
		require.NoError(t, err)
	}

	it, err := kv.List(ctx, valkeyrie.ByPrefix(nil), valkeyrie.ListOptions{Reverse: true})
	require.NoError(t, err)

	var got []int64
	for {
		e, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		n, _ := e.Key[0].AsInt()
		got = append(got, n)
	}
	require.Equal(t, []int64{4, 3, 2, 1, 0}, got)
}
