package skill

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skill-lang/skillrt/internal/stream"
)

// TestFieldDeclarationLazyLoad exercises spec §4.4 Lazy fields: a field
// marked lazy defers chunk decoding until EnsureLoaded is called explicitly,
// and DecodeJobs produces no jobs for it in the meantime. MarkLazy itself is
// generated-binding surface never invoked by this runtime's own parser (see
// DESIGN.md); this test drives it directly rather than through a full file
// parse.
func TestFieldDeclarationLazyLoad(t *testing.T) {
	s, pool, _, _ := buildPointState(t)
	require.NoError(t, s.Write("mem")) // bakes the 3 instances into the pool's base array with live skillIDs

	fz := NewDistributedField("z", I32)
	pool.AddField(fz)
	fz.MarkLazy()
	require.True(t, fz.IsLazy())

	buf := make([]byte, 12)
	w := stream.NewWriter(buf)
	for _, v := range []int32{42, 43, 44} {
		require.NoError(t, w.I32(v))
	}
	fz.AppendChunk(SimpleChunk{Begin: 0, End: len(buf), BPO: 0, Count: 3})

	require.Nil(t, fz.DecodeJobs(buf))

	require.NoError(t, fz.EnsureLoaded(buf))

	var got []int32
	for obj := range pool.TypeOrderIterator() {
		got = append(got, fz.Get(obj).(int32))
	}
	require.Equal(t, []int32{42, 43, 44}, got)

	// A second call must be a no-op: it short-circuits on f.loaded rather
	// than re-decoding the chunk.
	require.NoError(t, fz.EnsureLoaded(buf))
}
