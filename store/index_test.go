package store

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeydirPutGetRemove(t *testing.T) {
	idx := newKeydir()

	_, replaced := idx.put([]byte("a"), Location{SegmentID: 1, Offset: 0, Length: 10})
	require.False(t, replaced)
	_, replaced = idx.put([]byte("b"), Location{SegmentID: 1, Offset: 10, Length: 20})
	require.False(t, replaced)
	require.Equal(t, 2, idx.len())

	loc, ok := idx.get([]byte("a"))
	require.True(t, ok)
	require.Equal(t, int64(0), loc.Offset)
	loc, ok = idx.get([]byte("b"))
	require.True(t, ok)
	require.Equal(t, int64(10), loc.Offset)

	prev, ok := idx.remove([]byte("a"))
	require.True(t, ok)
	require.Equal(t, int64(10), prev.Length)
	_, ok = idx.get([]byte("a"))
	require.False(t, ok)
	require.Equal(t, 1, idx.len())

	_, ok = idx.remove([]byte("a"))
	require.False(t, ok)
}

func TestKeydirOverwriteReturnsPrevious(t *testing.T) {
	idx := newKeydir()

	idx.put([]byte("a"), Location{SegmentID: 1, Offset: 0, Length: 10})
	prev, replaced := idx.put([]byte("a"), Location{SegmentID: 2, Offset: 5, Length: 12})
	require.True(t, replaced)
	require.Equal(t, Location{SegmentID: 1, Offset: 0, Length: 10}, prev)
	require.Equal(t, 1, idx.len())

	loc, ok := idx.get([]byte("a"))
	require.True(t, ok)
	require.Equal(t, uint64(2), loc.SegmentID)
}

func TestKeydirCopiesKeys(t *testing.T) {
	idx := newKeydir()

	key := []byte("mutable")
	idx.put(key, Location{SegmentID: 1})
	key[0] = 'X'

	_, ok := idx.get([]byte("mutable"))
	require.True(t, ok)
	_, ok = idx.get(key)
	require.False(t, ok)
}

func TestKeydirManyKeys(t *testing.T) {
	idx := newKeydir()

	const n = 2000
	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("key-%04d", i))
		idx.put(key, Location{SegmentID: uint64(i), Offset: int64(i)})
	}
	require.Equal(t, n, idx.len())

	for i := 0; i < n; i++ {
		loc, ok := idx.get([]byte(fmt.Sprintf("key-%04d", i)))
		require.True(t, ok, "key-%04d missing", i)
		require.Equal(t, int64(i), loc.Offset)
	}

	for i := 0; i < n; i += 2 {
		_, ok := idx.remove([]byte(fmt.Sprintf("key-%04d", i)))
		require.True(t, ok)
	}
	require.Equal(t, n/2, idx.len())

	seen := 0
	idx.rangeEntries(func(key []byte, _ Location) bool {
		seen++
		return true
	})
	require.Equal(t, n/2, seen)
}
