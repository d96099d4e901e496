package skill

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skill-lang/skillrt/internal/stream"
)

func TestPrepareAndWriteAssignsSortedIDs(t *testing.T) {
	sp := NewStringPool()
	sp.Add("banana")
	sp.Add("apple")
	sp.Add("cherry")

	buf := make([]byte, sizeOfStringBlock([]string{"apple", "banana", "cherry"}))
	w := stream.NewWriter(buf)
	require.NoError(t, sp.PrepareAndWrite(w))

	require.Equal(t, int64(1), sp.IDOf("apple"))
	require.Equal(t, int64(2), sp.IDOf("banana"))
	require.Equal(t, int64(3), sp.IDOf("cherry"))
}

func TestAppendBlockPositionsAndGet(t *testing.T) {
	strs := []string{"foo", "bar"}
	buf := make([]byte, sizeOfStringBlock(strs))
	w := stream.NewWriter(buf)
	require.NoError(t, writeStringBlock(w, strs))

	sp := NewStringPool()
	r := stream.NewReader(buf)
	require.NoError(t, sp.AppendBlockPositions(r, buf, 0))
	require.True(t, r.EOF())

	got, ok := sp.Get(1)
	require.True(t, ok)
	require.Equal(t, "foo", got)

	got, ok = sp.Get(2)
	require.True(t, ok)
	require.Equal(t, "bar", got)

	_, ok = sp.Get(0)
	require.False(t, ok)

	_, ok = sp.Get(99)
	require.False(t, ok)
}

func TestPrepareDeltaPreservesExistingIDs(t *testing.T) {
	sp := NewStringPool()
	sp.Add("a")
	sp.Add("b")
	first := sp.prepareFull()
	require.Equal(t, []string{"a", "b"}, first)

	sp.Add("c")
	sp.Add("a") // already known, no new ID
	fresh := sp.prepareDelta()
	require.Equal(t, []string{"c"}, fresh)

	require.Equal(t, int64(1), sp.IDOf("a"))
	require.Equal(t, int64(2), sp.IDOf("b"))
	require.Equal(t, int64(3), sp.IDOf("c"))
}

func TestPendingBytes(t *testing.T) {
	sp := NewStringPool()
	sp.Add("hello")
	require.Equal(t, len("hello"), sp.PendingBytes())

	sp.prepareFull()
	require.Equal(t, 0, sp.PendingBytes())
}

func TestSizeOfStringBlockMatchesWrite(t *testing.T) {
	strs := []string{"x", "yy", "zzz"}
	size := sizeOfStringBlock(strs)
	buf := make([]byte, size)
	w := stream.NewWriter(buf)
	require.NoError(t, writeStringBlock(w, strs))
	require.Equal(t, size, w.Pos())
}
