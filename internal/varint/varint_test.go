package varint_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skill-lang/skillrt/internal/varint"
)

func TestRoundTrip(t *testing.T) {
	values := []int64{0, 1, -1, 127, 128, 16383, 16384, 1 << 34, -(1 << 40), 1<<63 - 1, -1 << 63}
	for _, v := range values {
		buf := varint.Append(nil, v)
		require.LessOrEqual(t, len(buf), varint.MaxLen)
		require.Equal(t, varint.Len(v), len(buf))

		got, n, err := varint.Decode(buf)
		require.NoError(t, err)
		require.Equal(t, len(buf), n)
		require.Equal(t, v, got)
	}
}

func TestDecodeContinuation(t *testing.T) {
	v := int64(123456789)
	buf := varint.Append(nil, v)

	got, n, err := varint.DecodeContinuation(buf[0], buf[1:])
	require.NoError(t, err)
	require.Equal(t, len(buf)-1, n)
	require.Equal(t, v, got)
}

func TestDecodeContinuationSingleByte(t *testing.T) {
	buf := varint.Append(nil, 42)
	require.Len(t, buf, 1)

	got, n, err := varint.DecodeContinuation(buf[0], nil)
	require.NoError(t, err)
	require.Equal(t, 0, n)
	require.Equal(t, int64(42), got)
}

func TestDecodeTruncated(t *testing.T) {
	buf := varint.Append(nil, 1<<20)
	_, _, err := varint.Decode(buf[:1])
	require.ErrorIs(t, err, varint.ErrTruncated)
}

func TestNarrow(t *testing.T) {
	require.Equal(t, int32(-1), varint.Narrow(int64(0xFFFFFFFF)))
}

func TestNinthByteCarriesFullValue(t *testing.T) {
	buf := varint.Append(nil, -1)
	require.Len(t, buf, varint.MaxLen)

	got, n, err := varint.Decode(buf)
	require.NoError(t, err)
	require.Equal(t, varint.MaxLen, n)
	require.Equal(t, int64(-1), got)
}
